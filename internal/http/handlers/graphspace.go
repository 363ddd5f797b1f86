package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/http/response"
	"github.com/mindfold/mindfold-backend/internal/services"
)

type GraphHandler struct {
	graphs services.GraphSpaceService
}

func NewGraphHandler(graphs services.GraphSpaceService) *GraphHandler {
	return &GraphHandler{graphs: graphs}
}

// GET /api/graph/overview
func (h *GraphHandler) Overview(c *gin.Context) {
	scope, err := h.graphs.ResolveScope(c.Request.Context(), c.Query("branch_id"))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	limitNodes, _ := strconv.Atoi(c.DefaultQuery("limit_nodes", "100"))
	limitEdges, _ := strconv.Atoi(c.DefaultQuery("limit_edges", "300"))
	overview, err := h.graphs.Overview(c.Request.Context(), scope, limitNodes, limitEdges,
		domain.ParseProposedPolicy(c.Query("proposed_policy")))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, overview)
}

type forkRequest struct {
	NewBranchID string `json:"new_branch_id"`
	BranchID    string `json:"branch_id"`
}

// POST /api/graph/branches/fork
func (h *GraphHandler) ForkBranch(c *gin.Context) {
	var req forkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	if err := h.graphs.ForkBranch(c.Request.Context(), scope, req.NewBranchID); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"branch_id": req.NewBranchID})
}

// POST /api/concepts/:id/archive
func (h *GraphHandler) ArchiveConcept(c *gin.Context) {
	scope, err := h.graphs.ResolveScope(c.Request.Context(), c.Query("branch_id"))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	if err := h.graphs.ArchiveConcept(c.Request.Context(), scope, c.Param("id")); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"archived": true})
}

type mergeRequest struct {
	WinnerID string `json:"winner_id"`
	LoserID  string `json:"loser_id"`
	BranchID string `json:"branch_id"`
}

// POST /api/concepts/merge
func (h *GraphHandler) MergeConcepts(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	if err := h.graphs.MergeConcepts(c.Request.Context(), scope, req.WinnerID, req.LoserID); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"merged": true})
}
