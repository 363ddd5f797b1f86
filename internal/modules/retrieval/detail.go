package retrieval

import "github.com/mindfold/mindfold-backend/internal/domain"

// Summary and full response caps. Summary strips descriptions, chunks and
// community summaries; retrieval_meta keeps the full id lists either way.
const (
	summaryMaxEntities     = 5
	summaryMaxClaims       = 5
	summaryMaxSources      = 3
	summaryMaxPreviewEdges = 10
	summaryMaxTrace        = 10
	summaryClaimTextLen    = 200
	metaMaxClaimIDs        = 20
	metaMaxCommunityIDs    = 10

	fullMaxClaims = 20
	fullMaxEdges  = 50
	fullMaxChunks = 10
)

// limitOverrides are per-request caps. A positive value tightens the
// detail-level default; it never widens it.
type limitOverrides struct {
	Claims   int
	Entities int
	Sources  int
}

func capWith(def, override int) int {
	if override > 0 && override < def {
		return override
	}
	return def
}

// shapeResult applies the detail-level caps to a raw plan result. Input
// ordering is preserved; shaping only truncates.
func shapeResult(res *domain.PlanResult, detail domain.DetailLevel, lim limitOverrides) *domain.PlanResult {
	ctx := &res.Context
	ctx.RetrievalMeta = buildMeta(ctx)

	if detail == domain.DetailFull {
		if maxClaims := capWith(fullMaxClaims, lim.Claims); len(ctx.Claims) > maxClaims {
			ctx.Claims = ctx.Claims[:maxClaims]
		}
		if lim.Entities > 0 && len(ctx.FocusEntities) > lim.Entities {
			ctx.FocusEntities = ctx.FocusEntities[:lim.Entities]
		}
		if lim.Sources > 0 && len(ctx.FocusCommunities) > lim.Sources {
			ctx.FocusCommunities = ctx.FocusCommunities[:lim.Sources]
		}
		if ctx.Subgraph != nil && len(ctx.Subgraph.Edges) > fullMaxEdges {
			ctx.Subgraph.Edges = ctx.Subgraph.Edges[:fullMaxEdges]
		}
		if len(ctx.Chunks) > fullMaxChunks {
			ctx.Chunks = ctx.Chunks[:fullMaxChunks]
		}
		ctx.SubgraphPreview = nil
		return res
	}

	if maxEntities := capWith(summaryMaxEntities, lim.Entities); len(ctx.FocusEntities) > maxEntities {
		ctx.FocusEntities = ctx.FocusEntities[:maxEntities]
	}
	for i := range ctx.FocusEntities {
		ctx.FocusEntities[i].Description = ""
	}
	if maxClaims := capWith(summaryMaxClaims, lim.Claims); len(ctx.Claims) > maxClaims {
		ctx.Claims = ctx.Claims[:maxClaims]
	}
	for i := range ctx.Claims {
		ctx.Claims[i].Text = truncate(ctx.Claims[i].Text, summaryClaimTextLen)
	}
	if maxSources := capWith(summaryMaxSources, lim.Sources); len(ctx.FocusCommunities) > maxSources {
		ctx.FocusCommunities = ctx.FocusCommunities[:maxSources]
	}
	for i := range ctx.FocusCommunities {
		ctx.FocusCommunities[i].Summary = ""
	}
	if ctx.Subgraph != nil {
		preview := &domain.Subgraph{Edges: ctx.Subgraph.Edges}
		if len(preview.Edges) > summaryMaxPreviewEdges {
			preview.Edges = preview.Edges[:summaryMaxPreviewEdges]
		}
		ctx.SubgraphPreview = preview
		ctx.Subgraph = nil
	}
	ctx.Chunks = nil
	if len(res.Trace) > summaryMaxTrace {
		res.Trace = res.Trace[:summaryMaxTrace]
	}
	return res
}

// buildMeta snapshots the full id lists before truncation so summary
// responses still expose what the retrieval found.
func buildMeta(ctx *domain.PlanContext) domain.RetrievalMeta {
	meta := domain.RetrievalMeta{
		Communities: len(ctx.FocusCommunities),
		Claims:      len(ctx.Claims),
		Concepts:    len(ctx.FocusEntities),
	}
	if ctx.Subgraph != nil {
		meta.Edges = len(ctx.Subgraph.Edges)
	}
	for i, cl := range ctx.Claims {
		if i < metaMaxClaimIDs {
			meta.ClaimIDs = append(meta.ClaimIDs, cl.ClaimID)
		}
		if i < summaryMaxClaims {
			meta.TopClaims = append(meta.TopClaims, truncate(cl.Text, summaryClaimTextLen))
		}
	}
	for i, co := range ctx.FocusCommunities {
		if i >= metaMaxCommunityIDs {
			break
		}
		meta.CommunityIDs = append(meta.CommunityIDs, co.CommunityID)
	}
	return meta
}
