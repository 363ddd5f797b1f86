package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/http/response"
	"github.com/mindfold/mindfold-backend/internal/platform/ctxutil"
	"github.com/mindfold/mindfold-backend/internal/services"
)

type ReviewHandler struct {
	review services.ReviewService
	graphs services.GraphSpaceService
}

func NewReviewHandler(review services.ReviewService, graphs services.GraphSpaceService) *ReviewHandler {
	return &ReviewHandler{review: review, graphs: graphs}
}

// GET /api/relationships/proposed
func (h *ReviewHandler) ListProposed(c *gin.Context) {
	scope, err := h.graphs.ResolveScope(c.Request.Context(), c.Query("branch_id"))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	rels, err := h.review.ListProposed(c.Request.Context(), scope, limit)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"relationships": rels})
}

type reviewRequest struct {
	Triples  []domain.RelTriple `json:"triples"`
	BranchID string             `json:"branch_id"`
}

type reviewOp func(ctx context.Context, scope domain.Scope, triples []domain.RelTriple, reviewedBy string) (int, error)

// POST /api/relationships/accept
func (h *ReviewHandler) Accept(c *gin.Context) {
	h.decide(c, h.review.Accept)
}

// POST /api/relationships/reject
func (h *ReviewHandler) Reject(c *gin.Context) {
	h.decide(c, h.review.Reject)
}

func (h *ReviewHandler) decide(c *gin.Context, op reviewOp) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	n, err := op(c.Request.Context(), scope, req.Triples, reviewerID(c))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"updated": n})
}

type editRequest struct {
	Old          domain.RelTriple `json:"old"`
	NewPredicate string           `json:"new_predicate"`
	BranchID     string           `json:"branch_id"`
}

// POST /api/relationships/edit
func (h *ReviewHandler) Edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	if err := h.review.Edit(c.Request.Context(), scope, req.Old, req.NewPredicate, reviewerID(c)); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"edited": true})
}

func reviewerID(c *gin.Context) string {
	if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
		return rd.UserID
	}
	return ""
}
