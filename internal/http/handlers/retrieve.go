package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/http/response"
	"github.com/mindfold/mindfold-backend/internal/modules/retrieval"
	"github.com/mindfold/mindfold-backend/internal/services"
)

type RetrieveHandler struct {
	retrieval services.RetrievalService
	graphs    services.GraphSpaceService
}

func NewRetrieveHandler(retrievalSvc services.RetrievalService, graphs services.GraphSpaceService) *RetrieveHandler {
	return &RetrieveHandler{retrieval: retrievalSvc, graphs: graphs}
}

type retrieveRequest struct {
	Message        string `json:"message"`
	Mode           string `json:"mode"`
	Intent         string `json:"intent"`
	GraphID        string `json:"graph_id"`
	BranchID       string `json:"branch_id"`
	DetailLevel    string `json:"detail_level"`
	Strictness     string `json:"evidence_strictness"`
	ProposedPolicy string `json:"proposed_policy"`
	SinceDays      int    `json:"since_days"`
	Limit          int    `json:"limit"`
	LimitClaims    int    `json:"limit_claims"`
	LimitEntities  int    `json:"limit_entities"`
	LimitSources   int    `json:"limit_sources"`
	FocusConceptID string `json:"focus_concept_id"`
	FocusQuoteID   string `json:"focus_quote_id"`
	FocusPageURL   string `json:"focus_page_url"`
}

// POST /api/retrieve
func (h *RetrieveHandler) Retrieve(c *gin.Context) {
	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.Mode != "" && req.Mode != "graphrag" {
		response.RespondError(c, http.StatusBadRequest, "invalid_argument",
			errors.New("unsupported mode: "+req.Mode))
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	if req.GraphID != "" && req.GraphID != scope.GraphID {
		response.RespondError(c, http.StatusForbidden, "forbidden",
			errors.New("graph_id does not match the caller's graph"))
		return
	}
	result, err := h.retrieval.Retrieve(c.Request.Context(), scope, retrieval.PlanRequest{
		Question:       req.Message,
		Intent:         domain.ParseIntent(req.Intent),
		Detail:         domain.ParseDetailLevel(req.DetailLevel),
		Strictness:     domain.ParseStrictness(req.Strictness),
		Policy:         domain.ParseProposedPolicy(req.ProposedPolicy),
		SinceDays:      req.SinceDays,
		Limit:          req.Limit,
		LimitClaims:    req.LimitClaims,
		LimitEntities:  req.LimitEntities,
		LimitSources:   req.LimitSources,
		FocusConceptID: req.FocusConceptID,
		FocusQuoteID:   req.FocusQuoteID,
		FocusPageURL:   req.FocusPageURL,
	})
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, result)
}

type subgraphRequest struct {
	ClaimIDs       []string `json:"claim_ids"`
	LimitNodes     int      `json:"limit_nodes"`
	LimitEdges     int      `json:"limit_edges"`
	ProposedPolicy string   `json:"proposed_policy"`
	GraphID        string   `json:"graph_id"`
	BranchID       string   `json:"branch_id"`
}

// POST /api/evidence-subgraph
func (h *RetrieveHandler) EvidenceSubgraph(c *gin.Context) {
	var req subgraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	if req.GraphID != "" && req.GraphID != scope.GraphID {
		response.RespondError(c, http.StatusForbidden, "forbidden",
			errors.New("graph_id does not match the caller's graph"))
		return
	}
	subgraph, err := h.retrieval.EvidenceSubgraph(c.Request.Context(), scope,
		req.ClaimIDs, req.LimitNodes, req.LimitEdges, domain.ParseProposedPolicy(req.ProposedPolicy))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"subgraph": subgraph})
}

type contextRequest struct {
	Message         string `json:"message"`
	GraphID         string `json:"graph_id"`
	BranchID        string `json:"branch_id"`
	Strictness      string `json:"evidence_strictness"`
	RecencyDays     int    `json:"recency_days"`
	IncludeProposed *bool  `json:"include_proposed_edges"`
}

// POST /api/graphrag-context
func (h *RetrieveHandler) GraphRAGContext(c *gin.Context) {
	var req contextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.RecencyDays < 0 {
		response.RespondError(c, http.StatusBadRequest, "invalid_argument",
			errors.New("recency_days must be non-negative"))
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	if req.GraphID != "" && req.GraphID != scope.GraphID {
		response.RespondError(c, http.StatusForbidden, "forbidden",
			errors.New("graph_id does not match the caller's graph"))
		return
	}
	out, err := h.retrieval.ContextForMessage(c.Request.Context(), scope, req.Message, services.ContextOptions{
		Strictness:      domain.ParseStrictness(req.Strictness),
		RecencyDays:     req.RecencyDays,
		IncludeProposed: req.IncludeProposed,
	})
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, out)
}
