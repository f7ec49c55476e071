package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, WithRetryMax(0))
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)

	_, err = NewClient("ftp://example.com")
	assert.Error(t, err)

	c, err := NewClient("http://localhost:8080/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
}

func TestAnnotate(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/annotate", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req AnnotateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "doc-1", req.DocumentID)
		assert.Equal(t, "discharge_summary", req.NoteType)
		require.Len(t, req.Chunks, 1)
		assert.Equal(t, "c1", req.Chunks[0].ID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&AnnotateResult{
			DocumentID: req.DocumentID,
			Annotations: []*Annotation{
				{ID: "a1", ChunkID: "c1", Label: "KEEP", Scope: "this_document"},
			},
			Explanations: map[string]*Explanation{
				"c1": {Source: "heuristic", Confidence: 0.95},
			},
			Counts: LabelCounts{Keep: 1},
		})
	})

	c := newTestClient(t, handler)
	result, err := c.Annotate(context.Background(), &AnnotateRequest{
		DocumentID: "doc-1",
		NoteType:   "discharge_summary",
		Chunks: []*Chunk{
			{ID: "c1", Text: "Allergic to penicillin.", Type: "paragraph"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "doc-1", result.DocumentID)
	require.Len(t, result.Annotations, 1)
	assert.Equal(t, "KEEP", result.Annotations[0].Label)
	assert.Equal(t, 1, result.Counts.Keep)
	require.Contains(t, result.Explanations, "c1")
	assert.InDelta(t, 0.95, result.Explanations["c1"].Confidence, 1e-9)
}

func TestAnnotateValidation(t *testing.T) {
	c, err := NewClient("http://localhost:1")
	require.NoError(t, err)

	_, err = c.Annotate(context.Background(), nil)
	assert.Error(t, err)

	_, err = c.Annotate(context.Background(), &AnnotateRequest{DocumentID: "doc-1"})
	assert.ErrorContains(t, err, "chunk")
}

func TestAPIErrorMapping(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"DOC_004","message":"annotation not found"}`))
	})

	c := newTestClient(t, handler)
	err := c.Confirm(context.Background(), "missing", &ConfirmRequest{Scope: "note_type"})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "DOC_004", apiErr.Code)
	assert.Equal(t, "annotation not found", apiErr.Message)
	assert.True(t, apiErr.IsNotFound())
	assert.False(t, apiErr.IsServerError())
	assert.Contains(t, apiErr.Error(), "DOC_004")
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"synced":7}`))
	})

	srv := httptest.NewServer(handler)
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryMax(2), WithRetryWait(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)

	synced, err := c.SyncRuleIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, synced)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":"COMMON_002","message":"bad request"}`))
	})

	srv := httptest.NewServer(handler)
	defer srv.Close()

	c, err := NewClient(srv.URL, WithRetryMax(3), WithRetryWait(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)

	_, err = c.SyncRuleIndex(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestConfirmPath(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/annotations/ann-42/confirm", r.URL.Path)

		var req ConfirmRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "service", req.Scope)
		assert.Equal(t, "cardiology", req.Service)

		w.Write([]byte(`{"status":"confirmed"}`))
	})

	c := newTestClient(t, handler)
	err := c.Confirm(context.Background(), "ann-42", &ConfirmRequest{Scope: "service", Service: "cardiology"})
	require.NoError(t, err)

	err = c.Confirm(context.Background(), "", &ConfirmRequest{Scope: "global"})
	assert.Error(t, err)

	err = c.Confirm(context.Background(), "ann-42", nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/healthz", r.URL.Path)
		w.Write([]byte(`{"status":"alive"}`))
	})

	c := newTestClient(t, handler)
	assert.NoError(t, c.Health(context.Background()))
}

func TestAPIKeyHeader(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`{"status":"alive"}`))
	})

	srv := httptest.NewServer(handler)
	defer srv.Close()

	c, err := NewClient(srv.URL, WithAPIKey("secret"))
	require.NoError(t, err)
	assert.NoError(t, c.Health(context.Background()))
}
