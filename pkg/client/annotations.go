package client

import (
	"context"
	"fmt"
	"net/url"
)

// Chunk is one segmented span of a clinical document to be labelled.
type Chunk struct {
	ID                  string   `json:"id"`
	Text                string   `json:"text"`
	Type                string   `json:"type"`
	StartIndex          int      `json:"start_index"`
	EndIndex            int      `json:"end_index"`
	IsCritical          bool     `json:"is_critical,omitempty"`
	CriticalType        string   `json:"critical_type,omitempty"`
	SuggestedLabel      *string  `json:"suggested_label,omitempty"`
	SuggestedConfidence *float64 `json:"suggested_confidence,omitempty"`
}

// AnnotateRequest is the payload for the annotate endpoint.
type AnnotateRequest struct {
	DocumentID        string   `json:"document_id"`
	NoteType          string   `json:"note_type,omitempty"`
	Service           string   `json:"service,omitempty"`
	DuplicateChunkIDs []string `json:"duplicate_chunk_ids,omitempty"`
	Chunks            []*Chunk `json:"chunks"`
	Persist           bool     `json:"persist,omitempty"`
}

// Annotation is a label assigned to a chunk by the engine.
type Annotation struct {
	ID               string `json:"id"`
	ChunkID          string `json:"chunk_id"`
	RawText          string `json:"raw_text"`
	SectionType      string `json:"section_type"`
	Label            string `json:"label"`
	RemoveReason     string `json:"remove_reason,omitempty"`
	CondenseStrategy string `json:"condense_strategy,omitempty"`
	Scope            string `json:"scope"`
	Confirmed        bool   `json:"confirmed"`
}

// Explanation describes how a chunk's label was decided.
type Explanation struct {
	Source     string   `json:"source"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason,omitempty"`
	Signals    []string `json:"signals,omitempty"`
}

// ExtractedField is one structured field pulled out of the document text.
type ExtractedField struct {
	ID            string  `json:"id"`
	Category      string  `json:"category"`
	Label         string  `json:"label"`
	Value         string  `json:"value"`
	Confidence    float64 `json:"confidence"`
	SourceChunkID string  `json:"source_chunk_id"`
}

// LabelCounts tallies annotations per label.
type LabelCounts struct {
	Keep        int `json:"keep"`
	Condense    int `json:"condense"`
	Remove      int `json:"remove"`
	Unannotated int `json:"unannotated"`
}

// AnnotateResult is the full response from the annotate endpoint.
type AnnotateResult struct {
	DocumentID      string                  `json:"document_id"`
	Annotations     []*Annotation           `json:"annotations"`
	Explanations    map[string]*Explanation `json:"explanations"`
	ExtractedFields []*ExtractedField       `json:"extracted_fields"`
	Counts          LabelCounts             `json:"counts"`
	ElapsedMs       int64                   `json:"elapsed_ms"`
}

// ConfirmRequest promotes an annotation to a confirmed learned rule.
type ConfirmRequest struct {
	Scope    string `json:"scope"`
	NoteType string `json:"note_type,omitempty"`
	Service  string `json:"service,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

// Annotate submits a chunked document for label inference.
func (c *Client) Annotate(ctx context.Context, req *AnnotateRequest) (*AnnotateResult, error) {
	if req == nil || req.DocumentID == "" {
		return nil, fmt.Errorf("client: document_id is required")
	}
	if len(req.Chunks) == 0 {
		return nil, fmt.Errorf("client: at least one chunk is required")
	}

	var result AnnotateResult
	if err := c.post(ctx, "/api/v1/annotate", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Confirm marks an annotation as human-reviewed at the given scope.
func (c *Client) Confirm(ctx context.Context, annotationID string, req *ConfirmRequest) error {
	if annotationID == "" {
		return fmt.Errorf("client: annotationID is required")
	}
	if req == nil || req.Scope == "" {
		return fmt.Errorf("client: scope is required")
	}

	path := fmt.Sprintf("/api/v1/annotations/%s/confirm", url.PathEscape(annotationID))
	return c.post(ctx, path, req, nil)
}

// SyncRuleIndex rebuilds the server's learned-rule vector index and returns
// the number of rules indexed.
func (c *Client) SyncRuleIndex(ctx context.Context) (int, error) {
	var resp struct {
		Synced int `json:"synced"`
	}
	if err := c.post(ctx, "/api/v1/rules/index/sync", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Synced, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil)
}
