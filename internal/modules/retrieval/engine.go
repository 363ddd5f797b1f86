package retrieval

import (
	"context"
	"sort"
	"time"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/pkg/cache"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// GraphReader is the slice of the graph store the retrieval engine consumes.
type GraphReader interface {
	ListCommunityEmbeddings(ctx context.Context, scope domain.Scope, limit int) ([]domain.Community, error)
	ListConceptEmbeddings(ctx context.Context, scope domain.Scope, limit int) ([]domain.ConceptLite, error)
	ClaimsByCommunities(ctx context.Context, scope domain.Scope, communityIDs []string, strictness domain.Strictness, perCommunity int) ([]domain.ClaimCandidate, error)
	ClaimsByIDs(ctx context.Context, scope domain.Scope, claimIDs []string) ([]domain.ClaimCandidate, error)
	RecentClaims(ctx context.Context, scope domain.Scope, since time.Time, strictness domain.Strictness, limit int) ([]domain.ClaimCandidate, error)
	ConceptDetails(ctx context.Context, scope domain.Scope, nodeIDs []string, policy domain.ProposedPolicy) ([]domain.ConceptDetail, error)
	EdgesAmong(ctx context.Context, scope domain.Scope, nodeIDs []string, policy domain.ProposedPolicy, limit int) ([]domain.Edge, error)
	ConceptNeighbors(ctx context.Context, scope domain.Scope, nodeID string, policy domain.ProposedPolicy, limit int) ([]domain.Edge, error)
	ShortestPathEdges(ctx context.Context, scope domain.Scope, srcID, dstID string, maxHops int, policy domain.ProposedPolicy) ([]domain.Edge, error)
	ChunksByIDs(ctx context.Context, scope domain.Scope, chunkIDs []string) ([]domain.SourceChunk, error)
	QuotesByIDs(ctx context.Context, scope domain.Scope, quoteIDs []string) ([]domain.Quote, error)
	SourceIDForURL(ctx context.Context, scope domain.Scope, url string) (string, error)
}

// TelemetryPublisher receives one event per retrieval. Implementations must
// be non-blocking and failure-tolerant.
type TelemetryPublisher interface {
	PublishRetrieval(ctx context.Context, event domain.TelemetryEvent)
}

// Options bound one retrieval call. Zero values fall back to defaults and
// out-of-range values are clamped.
type Options struct {
	CommunityK         int
	ClaimsPerCommunity int
	Strictness         domain.Strictness
	Policy             domain.ProposedPolicy
	MaxSelectedClaims  int
	MaxPathQueries     int
	MaxHops            int

	// FocusConceptID seeds the anchor set; FocusSourceID narrows candidates
	// to one source; RecencyDays drops candidates older than the window.
	FocusConceptID string
	FocusSourceID  string
	RecencyDays    int
}

func (o Options) withDefaults() Options {
	if o.CommunityK <= 0 || o.CommunityK > 20 {
		o.CommunityK = 5
	}
	if o.ClaimsPerCommunity <= 0 || o.ClaimsPerCommunity > 50 {
		o.ClaimsPerCommunity = 12
	}
	if o.Strictness == "" {
		o.Strictness = domain.StrictnessMedium
	}
	if o.Policy == "" {
		o.Policy = domain.ProposedAuto
	}
	if o.MaxSelectedClaims <= 0 {
		o.MaxSelectedClaims = o.CommunityK * o.ClaimsPerCommunity
	}
	if o.MaxSelectedClaims > 40 {
		o.MaxSelectedClaims = 40
	}
	if o.MaxPathQueries <= 0 || o.MaxPathQueries > 20 {
		o.MaxPathQueries = 10
	}
	if o.MaxHops <= 0 || o.MaxHops > 6 {
		o.MaxHops = 4
	}
	return o
}

const (
	subgraphMaxConcepts   = 25
	subgraphMaxEdges      = 80
	topMentionedConcepts  = 30
	anchorTargetConcepts  = 5
	communitySummaryLimit = 1200
)

// Engine runs the GraphRAG retrieval pipeline: communities, candidate
// claims, relevance scoring, MMR selection, evidence subgraph, assembly.
type Engine struct {
	graph     GraphReader
	index     *semanticIndex
	log       *logger.Logger
	telemetry TelemetryPublisher
}

func NewEngine(graph GraphReader, embedder Embedder, log *logger.Logger, telemetry TelemetryPublisher, qvecs *cache.TTL[[]float32]) *Engine {
	eng := &Engine{
		graph:     graph,
		log:       log.With("service", "RetrievalEngine"),
		telemetry: telemetry,
	}
	eng.index = newSemanticIndex(graph, embedder, log, qvecs)
	return eng
}

// Retrieve executes the full pipeline and returns a context bundle. It never
// fails for lack of evidence; an empty bundle carries the diagnostic reason.
func (e *Engine) Retrieve(ctx context.Context, scope domain.Scope, question string, opts Options) (*domain.ContextBundle, []domain.CommunityHit, []domain.ClaimCandidate, error) {
	opts = opts.withDefaults()

	anchors, err := e.detectAnchors(ctx, scope, question)
	if err != nil {
		return nil, nil, nil, err
	}
	if opts.FocusConceptID != "" {
		anchors.AnchorIDs = prependUnique(anchors.AnchorIDs, opts.FocusConceptID)
	}
	communities, qVec, err := e.index.SearchCommunities(ctx, scope, question, opts.CommunityK)
	if err != nil {
		return nil, nil, nil, err
	}
	communityIDs := make([]string, 0, len(communities))
	for _, co := range communities {
		communityIDs = append(communityIDs, co.CommunityID)
	}

	candidates, err := e.graph.ClaimsByCommunities(ctx, scope, communityIDs, opts.Strictness, opts.ClaimsPerCommunity)
	if err != nil {
		return nil, nil, nil, err
	}
	candidates = filterCandidates(candidates, opts)
	if len(candidates) == 0 {
		bundle := &domain.ContextBundle{
			HasEvidence: false,
			Debug: domain.RetrievalDebug{
				AnchorIDs:      anchors.AnchorIDs,
				Strictness:     string(opts.Strictness),
				CommunityCount: len(communities),
				Reason:         "no_claims_found",
			},
		}
		e.publish(ctx, scope, question, communityIDs, nil, bundle)
		return bundle, communities, nil, nil
	}

	items := make([]mmrItem, len(candidates))
	for i, cand := range candidates {
		items[i] = mmrItem{
			Relevance: scoreClaim(qVec, cand, anchors.AnchorIDs, anchors.IsTwoEntity),
			Embedding: cand.Embedding,
		}
	}
	selectedIdx := selectMMR(items, opts.MaxSelectedClaims, defaultMMRLambda)
	selected := make([]domain.ClaimCandidate, 0, len(selectedIdx))
	for _, i := range selectedIdx {
		selected = append(selected, candidates[i])
	}

	sub, pathQueries, err := e.evidenceSubgraph(ctx, scope, anchors.AnchorIDs, selected, opts)
	if err != nil {
		return nil, nil, nil, err
	}

	bundle := e.assemble(communities, selected, sub, anchors, opts, pathQueries, len(candidates))
	e.publish(ctx, scope, question, communityIDs, selected, bundle)
	return bundle, communities, selected, nil
}

// evidenceSubgraph connects anchors by shortest paths, reaches from anchors
// toward the most-mentioned concepts, then fetches details and inner edges.
func (e *Engine) evidenceSubgraph(ctx context.Context, scope domain.Scope, anchorIDs []string, selected []domain.ClaimCandidate, opts Options) (*domain.Subgraph, int, error) {
	mentionCount := map[string]int{}
	for _, cl := range selected {
		for _, id := range cl.MentionNodeIDs {
			mentionCount[id]++
		}
	}
	topMentioned := rankByCount(mentionCount, topMentionedConcepts)

	if len(anchorIDs) == 0 {
		// Without semantic anchors the densest mentions stand in.
		if n := len(topMentioned); n > 0 {
			anchorIDs = topMentioned[:min(3, n)]
		}
	}

	nodeSet := map[string]bool{}
	for _, id := range anchorIDs {
		nodeSet[id] = true
	}
	for _, id := range topMentioned {
		nodeSet[id] = true
	}

	var edges []domain.Edge
	pathQueries := 0
	addPath := func(src, dst string) error {
		if pathQueries >= opts.MaxPathQueries || src == dst {
			return nil
		}
		pathQueries++
		pathEdges, err := e.graph.ShortestPathEdges(ctx, scope, src, dst, opts.MaxHops, opts.Policy)
		if err != nil {
			return err
		}
		for _, edge := range pathEdges {
			edges = append(edges, edge)
			nodeSet[edge.SourceID] = true
			nodeSet[edge.TargetID] = true
		}
		return nil
	}

	for i := 0; i < len(anchorIDs); i++ {
		for j := i + 1; j < len(anchorIDs); j++ {
			if err := addPath(anchorIDs[i], anchorIDs[j]); err != nil {
				return nil, pathQueries, err
			}
		}
	}
	targets := topMentioned
	if len(targets) > anchorTargetConcepts {
		targets = targets[:anchorTargetConcepts]
	}
	for _, anchor := range anchorIDs {
		for _, target := range targets {
			if err := addPath(anchor, target); err != nil {
				return nil, pathQueries, err
			}
		}
	}

	nodeIDs := make([]string, 0, len(nodeSet))
	for id := range nodeSet {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)
	if len(nodeIDs) > subgraphMaxConcepts {
		nodeIDs = nodeIDs[:subgraphMaxConcepts]
	}

	details, err := e.graph.ConceptDetails(ctx, scope, nodeIDs, opts.Policy)
	if err != nil {
		return nil, pathQueries, err
	}
	inner, err := e.graph.EdgesAmong(ctx, scope, nodeIDs, opts.Policy, subgraphMaxEdges)
	if err != nil {
		return nil, pathQueries, err
	}
	edges = dedupeEdges(append(edges, inner...))
	if len(edges) > subgraphMaxEdges {
		edges = edges[:subgraphMaxEdges]
	}
	return &domain.Subgraph{Concepts: details, Edges: edges}, pathQueries, nil
}

func (e *Engine) assemble(communities []domain.CommunityHit, selected []domain.ClaimCandidate, sub *domain.Subgraph, anchors anchorResult, opts Options, pathQueries, candidateCount int) *domain.ContextBundle {
	nameByID := map[string]string{}
	for _, c := range sub.Concepts {
		nameByID[c.NodeID] = c.Name
	}

	refs := make([]domain.CommunityRef, 0, len(communities))
	for _, co := range communities {
		refs = append(refs, domain.CommunityRef{
			CommunityID: co.CommunityID,
			Name:        co.Name,
			Summary:     truncate(co.Summary, communitySummaryLimit),
		})
	}

	claimRefs := make([]domain.ClaimRef, 0, len(selected))
	claimIDs := make([]string, 0, len(selected))
	hasVerified := false
	for _, cl := range selected {
		if cl.Status == domain.ClaimVerified {
			hasVerified = true
		}
		names := make([]string, 0, len(cl.MentionNodeIDs))
		for _, id := range cl.MentionNodeIDs {
			if name, ok := nameByID[id]; ok {
				names = append(names, name)
			}
		}
		claimRefs = append(claimRefs, domain.ClaimRef{
			ClaimID:      cl.ClaimID,
			Text:         cl.Text,
			Confidence:   cl.Confidence,
			Status:       string(cl.Status),
			SourceID:     cl.SourceID,
			ChunkID:      cl.ChunkID,
			ConceptNames: names,
			EvidenceIDs:  cl.EvidenceIDs,
		})
		claimIDs = append(claimIDs, cl.ClaimID)
	}

	return &domain.ContextBundle{
		Communities: refs,
		Claims:      claimRefs,
		Concepts:    sub.Concepts,
		Edges:       sub.Edges,
		HasEvidence: len(selected) >= 3 || hasVerified,
		Debug: domain.RetrievalDebug{
			AnchorIDs:        anchors.AnchorIDs,
			SelectedClaimIDs: claimIDs,
			PathQueries:      pathQueries,
			CandidateCount:   candidateCount,
			Strictness:       string(opts.Strictness),
			CommunityCount:   len(communities),
		},
	}
}

func (e *Engine) publish(ctx context.Context, scope domain.Scope, question string, communityIDs []string, selected []domain.ClaimCandidate, bundle *domain.ContextBundle) {
	if e.telemetry == nil {
		return
	}
	claimIDs := make([]string, 0, len(selected))
	for _, cl := range selected {
		claimIDs = append(claimIDs, cl.ClaimID)
	}
	e.telemetry.PublishRetrieval(ctx, domain.TelemetryEvent{
		GraphID:      scope.GraphID,
		BranchID:     scope.BranchID,
		Question:     question,
		CommunityIDs: communityIDs,
		ClaimIDs:     claimIDs,
		Sizes: map[string]int{
			"communities": len(bundle.Communities),
			"claims":      len(bundle.Claims),
			"concepts":    len(bundle.Concepts),
			"edges":       len(bundle.Edges),
		},
	})
}

// rankByCount orders keys by count desc, key asc, keeping at most n.
func rankByCount(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if counts[keys[a]] != counts[keys[b]] {
			return counts[keys[a]] > counts[keys[b]]
		}
		return keys[a] < keys[b]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func dedupeEdges(edges []domain.Edge) []domain.Edge {
	seen := map[string]bool{}
	out := make([]domain.Edge, 0, len(edges))
	for _, edge := range edges {
		key := edge.SourceID + "|" + edge.TargetID + "|" + edge.Predicate
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, edge)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].SourceID != out[b].SourceID {
			return out[a].SourceID < out[b].SourceID
		}
		if out[a].TargetID != out[b].TargetID {
			return out[a].TargetID < out[b].TargetID
		}
		return out[a].Predicate < out[b].Predicate
	})
	return out
}

// filterCandidates applies the focus-source and recency narrowing. A focus
// filter that would leave nothing is skipped so the question still gets an
// answer from the wider pool.
func filterCandidates(candidates []domain.ClaimCandidate, opts Options) []domain.ClaimCandidate {
	if opts.FocusSourceID != "" {
		focused := make([]domain.ClaimCandidate, 0, len(candidates))
		for _, cand := range candidates {
			if cand.SourceID == opts.FocusSourceID {
				focused = append(focused, cand)
			}
		}
		if len(focused) > 0 {
			candidates = focused
		}
	}
	if opts.RecencyDays > 0 {
		since := time.Now().UTC().Add(-time.Duration(opts.RecencyDays) * 24 * time.Hour)
		recent := make([]domain.ClaimCandidate, 0, len(candidates))
		for _, cand := range candidates {
			if cand.UpdatedAt.IsZero() || !cand.UpdatedAt.Before(since) {
				recent = append(recent, cand)
			}
		}
		candidates = recent
	}
	return candidates
}

func prependUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append([]string{id}, ids...)
}

// truncate cuts at rune boundaries so multibyte text never splits mid-rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
