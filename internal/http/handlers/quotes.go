package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindfold/mindfold-backend/internal/http/response"
	"github.com/mindfold/mindfold-backend/internal/services"
)

type QuoteHandler struct {
	quotes services.QuoteService
	graphs services.GraphSpaceService
}

func NewQuoteHandler(quotes services.QuoteService, graphs services.GraphSpaceService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes, graphs: graphs}
}

type captureQuoteRequest struct {
	Text     string   `json:"text"`
	Anchor   string   `json:"anchor"`
	UserNote string   `json:"user_note"`
	Tags     []string `json:"tags"`
	SourceID string   `json:"source_id"`
	ClaimIDs []string `json:"claim_ids"`
	BranchID string   `json:"branch_id"`
}

// POST /api/quotes
func (h *QuoteHandler) Capture(c *gin.Context) {
	var req captureQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	quote, err := h.quotes.Capture(c.Request.Context(), scope, services.CaptureQuoteRequest{
		Text:     req.Text,
		Anchor:   req.Anchor,
		UserNote: req.UserNote,
		Tags:     req.Tags,
		SourceID: req.SourceID,
		ClaimIDs: req.ClaimIDs,
	})
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"quote": quote})
}

// GET /api/quotes/:id
func (h *QuoteHandler) Get(c *gin.Context) {
	scope, err := h.graphs.ResolveScope(c.Request.Context(), c.Query("branch_id"))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	quote, err := h.quotes.Get(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"quote": quote})
}
