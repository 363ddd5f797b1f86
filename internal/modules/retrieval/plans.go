package retrieval

import (
	"context"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// StructuredExtractor is the slice of the model client plans use for
// structured extraction (compare-target parsing).
type StructuredExtractor interface {
	GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error)
}

// PlanRequest is one intent-dispatched retrieval call. The Limit fields
// lower the detail-level caps; zero keeps the defaults. The Focus fields
// narrow retrieval to one concept, one captured quote, or one ingested page.
type PlanRequest struct {
	Question   string
	Intent     domain.Intent
	Detail     domain.DetailLevel
	Strictness domain.Strictness
	Policy     domain.ProposedPolicy
	SinceDays  int

	Limit          int
	LimitClaims    int
	LimitEntities  int
	LimitSources   int
	FocusConceptID string
	FocusQuoteID   string
	FocusPageURL   string

	focusSourceID string
}

// Planner dispatches the retrieval plan for an intent and shapes the result
// to the requested detail level.
type Planner struct {
	engine *Engine
	graph  GraphReader
	llm    StructuredExtractor
	log    *logger.Logger
}

func NewPlanner(engine *Engine, graph GraphReader, llm StructuredExtractor, log *logger.Logger) *Planner {
	return &Planner{
		engine: engine,
		graph:  graph,
		llm:    llm,
		log:    log.With("service", "RetrievalPlanner"),
	}
}

// tracer accumulates plan steps with parameter and count snapshots.
type tracer struct {
	steps []domain.TraceStep
}

func (t *tracer) add(step string, params map[string]any, counts map[string]int) {
	t.steps = append(t.steps, domain.TraceStep{Step: step, Params: params, Counts: counts})
}

// Run executes the plan selected by the request intent. Unknown intents fall
// back to the definition overview.
func (p *Planner) Run(ctx context.Context, scope domain.Scope, req PlanRequest) (*domain.PlanResult, error) {
	if req.Intent == "" {
		req.Intent = domain.IntentDefinitionOverview
	}
	if req.Detail == "" {
		req.Detail = domain.DetailSummary
	}
	var focusWarnings []string
	req, focusWarnings = p.resolveFocus(ctx, scope, req)
	var (
		res *domain.PlanResult
		err error
	)
	switch req.Intent {
	case domain.IntentTimeline:
		res, err = p.planTimeline(ctx, scope, req)
	case domain.IntentCausalChain:
		res, err = p.planCausalChain(ctx, scope, req)
	case domain.IntentCompare:
		res, err = p.planCompare(ctx, scope, req)
	case domain.IntentWhoNetwork:
		res, err = p.planWhoNetwork(ctx, scope, req)
	case domain.IntentEvidenceCheck:
		res, err = p.planEvidenceCheck(ctx, scope, req)
	case domain.IntentExploreNext:
		res, err = p.planExploreNext(ctx, scope, req)
	case domain.IntentWhatChanged:
		res, err = p.planWhatChanged(ctx, scope, req)
	case domain.IntentSelfKnowledge:
		res, err = p.planSelfKnowledge(ctx, scope, req)
	default:
		res, err = p.planDefinitionOverview(ctx, scope, req)
	}
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, focusWarnings...)
	return shapeResult(res, req.Detail, limitOverrides{
		Claims:   firstPositive(req.LimitClaims, req.Limit),
		Entities: req.LimitEntities,
		Sources:  req.LimitSources,
	}), nil
}

// resolveFocus turns the focus parameters into retrieval inputs: a quote's
// text joins the question, a page URL narrows to its source. Unresolvable
// focuses degrade to warnings rather than failing the request.
func (p *Planner) resolveFocus(ctx context.Context, scope domain.Scope, req PlanRequest) (PlanRequest, []string) {
	var warnings []string
	if req.FocusQuoteID != "" {
		quotes, err := p.graph.QuotesByIDs(ctx, scope, []string{req.FocusQuoteID})
		if err != nil || len(quotes) == 0 {
			p.log.Warn("focus quote not found", "quote_id", req.FocusQuoteID, "error", err)
			warnings = append(warnings, "focus_quote_id did not match a quote")
		} else {
			req.Question = req.Question + "\n" + quotes[0].Text
		}
	}
	if req.FocusPageURL != "" {
		sourceID, err := p.graph.SourceIDForURL(ctx, scope, req.FocusPageURL)
		if err != nil || sourceID == "" {
			p.log.Warn("focus page not found", "url", req.FocusPageURL, "error", err)
			warnings = append(warnings, "focus_page_url did not match an ingested page")
		} else {
			req.focusSourceID = sourceID
		}
	}
	return req, warnings
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// runRetrieval executes the shared engine pipeline and converts the bundle
// into a raw plan context.
func (p *Planner) runRetrieval(ctx context.Context, scope domain.Scope, req PlanRequest, opts Options, tr *tracer) (*domain.ContextBundle, domain.PlanContext, []domain.ClaimCandidate, error) {
	opts.Strictness = req.Strictness
	opts.Policy = req.Policy
	opts.FocusConceptID = req.FocusConceptID
	opts.FocusSourceID = req.focusSourceID
	if n := firstPositive(req.LimitClaims, req.Limit); n > 0 && (opts.MaxSelectedClaims == 0 || n < opts.MaxSelectedClaims) {
		opts.MaxSelectedClaims = n
	}
	bundle, communities, selected, err := p.engine.Retrieve(ctx, scope, req.Question, opts)
	if err != nil {
		return nil, domain.PlanContext{}, nil, err
	}
	tr.add("retrieve", map[string]any{
		"community_k":          opts.withDefaults().CommunityK,
		"claims_per_community": opts.withDefaults().ClaimsPerCommunity,
		"strictness":           string(opts.withDefaults().Strictness),
	}, map[string]int{
		"communities": len(communities),
		"claims":      len(bundle.Claims),
		"concepts":    len(bundle.Concepts),
		"edges":       len(bundle.Edges),
	})

	pctx := domain.PlanContext{
		FocusEntities:    bundle.Concepts,
		FocusCommunities: bundle.Communities,
		Claims:           bundle.Claims,
	}
	if len(bundle.Concepts) > 0 || len(bundle.Edges) > 0 {
		pctx.Subgraph = &domain.Subgraph{Concepts: bundle.Concepts, Edges: bundle.Edges}
	}
	return bundle, pctx, selected, nil
}

// attachChunks loads up to n source chunks backing the selected claims.
func (p *Planner) attachChunks(ctx context.Context, scope domain.Scope, selected []domain.ClaimCandidate, n int, pctx *domain.PlanContext, tr *tracer) {
	seen := map[string]bool{}
	chunkIDs := make([]string, 0, n)
	for _, cl := range selected {
		if cl.ChunkID == "" || seen[cl.ChunkID] {
			continue
		}
		seen[cl.ChunkID] = true
		chunkIDs = append(chunkIDs, cl.ChunkID)
		if len(chunkIDs) >= n {
			break
		}
	}
	if len(chunkIDs) == 0 {
		return
	}
	chunks, err := p.graph.ChunksByIDs(ctx, scope, chunkIDs)
	if err != nil {
		p.log.Warn("chunk fetch failed", "error", err)
		return
	}
	for _, ch := range chunks {
		pctx.Chunks = append(pctx.Chunks, domain.ChunkRef{
			ChunkID:  ch.ChunkID,
			SourceID: ch.SourceID,
			Index:    ch.ChunkIndex,
			Text:     ch.Text,
		})
	}
	tr.add("chunks", map[string]any{"limit": n}, map[string]int{"chunks": len(pctx.Chunks)})
}

func (p *Planner) planDefinitionOverview(ctx context.Context, scope domain.Scope, req PlanRequest) (*domain.PlanResult, error) {
	tr := &tracer{}
	bundle, pctx, selected, err := p.runRetrieval(ctx, scope, req, Options{CommunityK: 2, ClaimsPerCommunity: 15}, tr)
	if err != nil {
		return nil, err
	}
	res := &domain.PlanResult{Intent: domain.IntentDefinitionOverview, Context: pctx}
	if !bundle.HasEvidence && len(bundle.Claims) == 0 {
		res.Warnings = append(res.Warnings, "No results found")
	}
	p.attachChunks(ctx, scope, selected, fullMaxChunks, &res.Context, tr)
	res.Suggestions = []domain.Suggestion{
		{Label: "Show the timeline", Query: req.Question, Intent: string(domain.IntentTimeline)},
		{Label: "Trace causes and effects", Query: req.Question, Intent: string(domain.IntentCausalChain)},
		{Label: "What should I explore next?", Query: req.Question, Intent: string(domain.IntentExploreNext)},
	}
	res.Trace = tr.steps
	return res, nil
}
