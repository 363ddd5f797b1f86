package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindfold/mindfold-backend/internal/http/response"
	"github.com/mindfold/mindfold-backend/internal/services"
)

type IngestHandler struct {
	ingestion services.IngestionService
	graphs    services.GraphSpaceService
}

func NewIngestHandler(ingestion services.IngestionService, graphs services.GraphSpaceService) *IngestHandler {
	return &IngestHandler{ingestion: ingestion, graphs: graphs}
}

type ingestRequest struct {
	SourceID    string `json:"source_id"`
	SourceLabel string `json:"source_label"`
	Domain      string `json:"domain"`
	Text        string `json:"text"`
	Segmented   bool   `json:"segmented"`
	Async       bool   `json:"async"`
	BranchID    string `json:"branch_id"`
}

// POST /api/ingest/lecture
func (h *IngestHandler) IngestLecture(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	result, err := h.ingestion.Ingest(c.Request.Context(), scope, services.IngestRequest{
		SourceID:    req.SourceID,
		SourceLabel: req.SourceLabel,
		Domain:      req.Domain,
		Text:        req.Text,
		Segmented:   req.Segmented,
		Async:       req.Async,
	})
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, result)
}

// GET /api/ingest/runs/:id
func (h *IngestHandler) GetRun(c *gin.Context) {
	scope, err := h.graphs.ResolveScope(c.Request.Context(), c.Query("branch_id"))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	run, err := h.ingestion.GetRun(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"run": run})
}

// POST /api/ingest/runs/:id/undo
func (h *IngestHandler) UndoRun(c *gin.Context) {
	scope, err := h.graphs.ResolveScope(c.Request.Context(), c.Query("branch_id"))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	if err := h.ingestion.UndoRun(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"undone": true})
}
