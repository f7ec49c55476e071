package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	app "github.com/nasher721/note-clarity-sub000/internal/application/annotation"
	domain "github.com/nasher721/note-clarity-sub000/internal/domain/annotation"
	"github.com/nasher721/note-clarity-sub000/internal/infrastructure/monitoring/logging"
	notetypes "github.com/nasher721/note-clarity-sub000/pkg/types/note"
)

// AnnotateHandler exposes the annotation service over HTTP.
type AnnotateHandler struct {
	svc    app.Service
	logger logging.Logger
}

// NewAnnotateHandler creates a new AnnotateHandler.
func NewAnnotateHandler(svc app.Service, logger logging.Logger) *AnnotateHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AnnotateHandler{svc: svc, logger: logger.Named("http.annotate")}
}

// AnnotateRequest is the body for POST /api/v1/annotate.
type AnnotateRequest struct {
	DocumentID        string          `json:"document_id" binding:"required"`
	NoteType          string          `json:"note_type"`
	Service           string          `json:"service"`
	DuplicateChunkIDs []string        `json:"duplicate_chunk_ids"`
	Chunks            []*domain.Chunk `json:"chunks" binding:"required"`
	Persist           bool            `json:"persist"`
}

// Annotate handles POST /api/v1/annotate. It runs one inference pass over
// the submitted chunks and returns annotations, explanations, and extracted
// fields. Annotations are persisted only when the request asks for it.
func (h *AnnotateHandler) Annotate(c *gin.Context) {
	var req AnnotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ictx := &domain.InferenceContext{
		NoteType: req.NoteType,
		Service:  req.Service,
	}
	if len(req.DuplicateChunkIDs) > 0 {
		ictx.DuplicateChunkIDs = make(map[string]struct{}, len(req.DuplicateChunkIDs))
		for _, id := range req.DuplicateChunkIDs {
			ictx.DuplicateChunkIDs[id] = struct{}{}
		}
	}

	result, err := h.svc.AnnotateDocument(c.Request.Context(), &app.AnnotateInput{
		DocumentID: req.DocumentID,
		Chunks:     req.Chunks,
		Context:    ictx,
		Persist:    req.Persist,
	})
	if err != nil {
		h.logger.Warn("annotate request failed",
			logging.String("document_id", req.DocumentID),
			logging.Err(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ConfirmRequest is the body for POST /api/v1/annotations/:id/confirm.
type ConfirmRequest struct {
	Scope    string `json:"scope" binding:"required"`
	NoteType string `json:"note_type"`
	Service  string `json:"service"`
	UserID   string `json:"user_id"`
}

// Confirm handles POST /api/v1/annotations/:id/confirm, promoting an
// annotation to a learned rule at the requested scope.
func (h *AnnotateHandler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	err := h.svc.ConfirmAnnotation(c.Request.Context(), &app.ConfirmInput{
		AnnotationID: c.Param("id"),
		Scope:        notetypes.RuleScope(req.Scope),
		NoteType:     req.NoteType,
		Service:      req.Service,
		UserID:       req.UserID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "confirmed"})
}

// SyncIndexResponse reports how many rules a sync pushed to the index.
type SyncIndexResponse struct {
	Synced int `json:"synced"`
}

// SyncIndex handles POST /api/v1/rules/index/sync, pushing the confirmed
// rule corpus into the vector index.
func (h *AnnotateHandler) SyncIndex(c *gin.Context) {
	synced, err := h.svc.SyncRuleIndex(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SyncIndexResponse{Synced: synced})
}
