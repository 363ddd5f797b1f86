package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mindfold/mindfold-backend/internal/domain"
)

var yearPattern = regexp.MustCompile(`\b(1[0-9]{3}|20[0-9]{2})\b`)

func (p *Planner) planTimeline(ctx context.Context, scope domain.Scope, req PlanRequest) (*domain.PlanResult, error) {
	tr := &tracer{}
	_, pctx, selected, err := p.runRetrieval(ctx, scope, req, Options{CommunityK: 3}, tr)
	if err != nil {
		return nil, err
	}

	chunkDates := p.chunkDates(ctx, scope, selected)
	type datedClaim struct {
		ClaimID string `json:"claim_id"`
		Text    string `json:"text"`
		Date    string `json:"date"`
	}
	dated := 0
	entries := make([]datedClaim, 0, len(selected))
	for _, cl := range selected {
		// A date carried on the backing chunk's metadata wins over a year
		// pulled from the claim text.
		date := "unknown"
		if d, ok := chunkDates[cl.ChunkID]; ok {
			date = d
		} else if m := yearPattern.FindString(cl.Text); m != "" {
			date = m
		}
		if date != "unknown" {
			dated++
		}
		entries = append(entries, datedClaim{ClaimID: cl.ClaimID, Text: cl.Text, Date: date})
	}
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].Date == "unknown" {
			return false
		}
		if entries[b].Date == "unknown" {
			return true
		}
		if entries[a].Date != entries[b].Date {
			return entries[a].Date < entries[b].Date
		}
		return entries[a].ClaimID < entries[b].ClaimID
	})
	tr.add("timeline", nil, map[string]int{"entries": len(entries), "dated": dated})

	pctx.Extra = map[string]any{"timeline": entries}
	res := &domain.PlanResult{Intent: domain.IntentTimeline, Context: pctx, Trace: tr.steps}
	if len(entries) == 0 {
		res.Warnings = append(res.Warnings, "No results found")
	}
	return res, nil
}

// chunkDates maps chunk id to the "date" string recorded in chunk metadata
// for the chunks backing the selected claims.
func (p *Planner) chunkDates(ctx context.Context, scope domain.Scope, selected []domain.ClaimCandidate) map[string]string {
	seen := map[string]bool{}
	chunkIDs := make([]string, 0, len(selected))
	for _, cl := range selected {
		if cl.ChunkID == "" || seen[cl.ChunkID] {
			continue
		}
		seen[cl.ChunkID] = true
		chunkIDs = append(chunkIDs, cl.ChunkID)
	}
	if len(chunkIDs) == 0 {
		return nil
	}
	chunks, err := p.graph.ChunksByIDs(ctx, scope, chunkIDs)
	if err != nil {
		p.log.Warn("chunk date fetch failed", "error", err)
		return nil
	}
	dates := map[string]string{}
	for _, ch := range chunks {
		if d, ok := ch.Metadata["date"].(string); ok && d != "" {
			dates[ch.ChunkID] = d
		}
	}
	return dates
}

func (p *Planner) planCausalChain(ctx context.Context, scope domain.Scope, req PlanRequest) (*domain.PlanResult, error) {
	tr := &tracer{}
	bundle, pctx, selected, err := p.runRetrieval(ctx, scope, req, Options{CommunityK: 3}, tr)
	if err != nil {
		return nil, err
	}

	// Supporting claims per chain edge: a claim backs an edge when it
	// mentions both endpoints.
	type chainLink struct {
		Edge     domain.Edge `json:"edge"`
		ClaimIDs []string    `json:"claim_ids,omitempty"`
	}
	links := make([]chainLink, 0, len(bundle.Edges))
	for _, edge := range bundle.Edges {
		link := chainLink{Edge: edge}
		for _, cl := range selected {
			src, dst := false, false
			for _, m := range cl.MentionNodeIDs {
				if m == edge.SourceID {
					src = true
				}
				if m == edge.TargetID {
					dst = true
				}
			}
			if src && dst {
				link.ClaimIDs = append(link.ClaimIDs, cl.ClaimID)
			}
		}
		links = append(links, link)
	}
	tr.add("causal_chain", map[string]any{"anchors": bundle.Debug.AnchorIDs}, map[string]int{
		"links":        len(links),
		"path_queries": bundle.Debug.PathQueries,
	})

	pctx.Extra = map[string]any{"chain": links}
	res := &domain.PlanResult{Intent: domain.IntentCausalChain, Context: pctx, Trace: tr.steps}
	if len(links) == 0 {
		res.Warnings = append(res.Warnings, "No results found")
	}
	return res, nil
}

var (
	vsPattern      = regexp.MustCompile(`(?i)^(.*?)\s+vs\.?\s+(.*?)[?.!]*$`)
	comparePattern = regexp.MustCompile(`(?i)compare\s+(.*?)\s+(?:and|with|to)\s+(.*?)[?.!]*$`)
)

// compareTargets resolves the two subjects of a comparison question:
// structured LLM extraction first, regex fallback, then the top two semantic
// hits.
func (p *Planner) compareTargets(ctx context.Context, scope domain.Scope, question string) (string, string) {
	if p.llm != nil {
		out, err := p.llm.GenerateJSON(ctx,
			"Extract the two subjects being compared. Reply with JSON only.",
			question,
			"compare_targets",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"a": map[string]any{"type": "string"},
					"b": map[string]any{"type": "string"},
				},
				"required": []string{"a", "b"},
			})
		if err == nil {
			a, _ := out["a"].(string)
			b, _ := out["b"].(string)
			if strings.TrimSpace(a) != "" && strings.TrimSpace(b) != "" {
				return strings.TrimSpace(a), strings.TrimSpace(b)
			}
		} else {
			p.log.Warn("compare target extraction failed", "error", err)
		}
	}
	if m := vsPattern.FindStringSubmatch(question); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	if m := comparePattern.FindStringSubmatch(question); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	hits, _, err := p.engine.index.SearchConcepts(ctx, scope, question, 2)
	if err == nil && len(hits) == 2 {
		return hits[0].Name, hits[1].Name
	}
	return "", ""
}

func (p *Planner) planCompare(ctx context.Context, scope domain.Scope, req PlanRequest) (*domain.PlanResult, error) {
	tr := &tracer{}
	targetA, targetB := p.compareTargets(ctx, scope, req.Question)
	tr.add("targets", map[string]any{"a": targetA, "b": targetB}, nil)
	if targetA == "" || targetB == "" {
		res, err := p.planDefinitionOverview(ctx, scope, req)
		if err != nil {
			return nil, err
		}
		res.Intent = domain.IntentCompare
		res.Warnings = append(res.Warnings, "Could not identify two comparison targets")
		return res, nil
	}

	sideA := req
	sideA.Question = targetA
	_, ctxA, _, err := p.runRetrieval(ctx, scope, sideA, Options{CommunityK: 2}, tr)
	if err != nil {
		return nil, err
	}
	sideB := req
	sideB.Question = targetB
	_, ctxB, _, err := p.runRetrieval(ctx, scope, sideB, Options{CommunityK: 2}, tr)
	if err != nil {
		return nil, err
	}

	inA := map[string]bool{}
	for _, c := range ctxA.FocusEntities {
		inA[c.NodeID] = true
	}
	var shared, uniqueA, uniqueB []string
	seen := map[string]bool{}
	for _, c := range ctxB.FocusEntities {
		if inA[c.NodeID] {
			shared = append(shared, c.NodeID)
		} else {
			uniqueB = append(uniqueB, c.NodeID)
		}
		seen[c.NodeID] = true
	}
	for _, c := range ctxA.FocusEntities {
		if !seen[c.NodeID] {
			uniqueA = append(uniqueA, c.NodeID)
		}
	}
	sort.Strings(shared)
	sort.Strings(uniqueA)
	sort.Strings(uniqueB)
	tr.add("compare", nil, map[string]int{
		"shared":      len(shared),
		"unique_to_a": len(uniqueA),
		"unique_to_b": len(uniqueB),
	})

	merged := ctxA
	merged.FocusEntities = append(merged.FocusEntities, ctxB.FocusEntities...)
	merged.FocusCommunities = append(merged.FocusCommunities, ctxB.FocusCommunities...)
	merged.Claims = append(merged.Claims, ctxB.Claims...)
	if ctxB.Subgraph != nil {
		if merged.Subgraph == nil {
			merged.Subgraph = ctxB.Subgraph
		} else {
			merged.Subgraph.Concepts = append(merged.Subgraph.Concepts, ctxB.Subgraph.Concepts...)
			merged.Subgraph.Edges = dedupeEdges(append(merged.Subgraph.Edges, ctxB.Subgraph.Edges...))
		}
	}
	merged.Extra = map[string]any{
		"A":        targetA,
		"B":        targetB,
		"overlaps": map[string]any{"shared_concepts": shared},
		"differences": map[string]any{
			"unique_to_a": uniqueA,
			"unique_to_b": uniqueB,
		},
	}
	return &domain.PlanResult{Intent: domain.IntentCompare, Context: merged, Trace: tr.steps}, nil
}

func (p *Planner) planWhoNetwork(ctx context.Context, scope domain.Scope, req PlanRequest) (*domain.PlanResult, error) {
	tr := &tracer{}
	hits, _, err := p.engine.index.SearchConcepts(ctx, scope, req.Question, 1)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		res, err := p.planDefinitionOverview(ctx, scope, req)
		if err != nil {
			return nil, err
		}
		res.Intent = domain.IntentWhoNetwork
		return res, nil
	}
	center := hits[0]
	tr.add("center", map[string]any{"node_id": center.NodeID, "name": center.Name}, nil)

	policy := req.Policy
	if policy == "" {
		policy = domain.ProposedAuto
	}
	edges, err := p.graph.ConceptNeighbors(ctx, scope, center.NodeID, policy, 50)
	if err != nil {
		return nil, err
	}
	nodeSet := map[string]bool{center.NodeID: true}
	for _, edge := range edges {
		nodeSet[edge.SourceID] = true
		nodeSet[edge.TargetID] = true
	}
	nodeIDs := make([]string, 0, len(nodeSet))
	for id := range nodeSet {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)
	details, err := p.graph.ConceptDetails(ctx, scope, nodeIDs, policy)
	if err != nil {
		return nil, err
	}
	tr.add("neighbors", nil, map[string]int{"concepts": len(details), "edges": len(edges)})

	_, pctx, _, err := p.runRetrieval(ctx, scope, req, Options{CommunityK: 2}, tr)
	if err != nil {
		return nil, err
	}
	pctx.FocusEntities = details
	pctx.Subgraph = &domain.Subgraph{Concepts: details, Edges: edges}
	res := &domain.PlanResult{Intent: domain.IntentWhoNetwork, Context: pctx, Trace: tr.steps}
	if len(details) == 0 {
		res.Warnings = append(res.Warnings, "No results found")
	}
	return res, nil
}

var negationPattern = regexp.MustCompile(`(?i)\b(not|no|never|cannot|can't|doesn't|don't|isn't|aren't|wasn't|won't|fails?|refutes?|contradicts?)\b`)

func (p *Planner) planEvidenceCheck(ctx context.Context, scope domain.Scope, req PlanRequest) (*domain.PlanResult, error) {
	tr := &tracer{}
	wide := req
	wide.Strictness = domain.StrictnessLow
	_, pctx, selected, err := p.runRetrieval(ctx, scope, wide, Options{CommunityK: 5, MaxSelectedClaims: 25}, tr)
	if err != nil {
		return nil, err
	}

	var supporting, conflicting []string
	sources := map[string]bool{}
	for _, cl := range selected {
		if cl.SourceID != "" {
			sources[cl.SourceID] = true
		}
		if negationPattern.MatchString(cl.Text) {
			conflicting = append(conflicting, cl.ClaimID)
		} else {
			supporting = append(supporting, cl.ClaimID)
		}
	}
	tr.add("evidence_check", nil, map[string]int{
		"supporting":  len(supporting),
		"conflicting": len(conflicting),
		"sources":     len(sources),
	})

	pctx.Extra = map[string]any{
		"supporting":       supporting,
		"conflicting":      conflicting,
		"source_diversity": len(sources),
	}
	res := &domain.PlanResult{Intent: domain.IntentEvidenceCheck, Context: pctx, Trace: tr.steps}
	if len(selected) == 0 {
		res.Warnings = append(res.Warnings, "No results found")
	}
	return res, nil
}

func (p *Planner) planExploreNext(ctx context.Context, scope domain.Scope, req PlanRequest) (*domain.PlanResult, error) {
	base, err := p.planDefinitionOverview(ctx, scope, req)
	if err != nil {
		return nil, err
	}
	tr := &tracer{steps: base.Trace}

	// Novelty favors concepts the selected claims barely touch.
	mentions := map[string]int{}
	for _, cl := range base.Context.Claims {
		for _, name := range cl.ConceptNames {
			mentions[name]++
		}
	}
	type ranked struct {
		detail domain.ConceptDetail
		score  float64
	}
	rankedConcepts := make([]ranked, 0, len(base.Context.FocusEntities))
	for _, c := range base.Context.FocusEntities {
		novelty := 1.0 / float64(1+mentions[c.Name])
		rankedConcepts = append(rankedConcepts, ranked{detail: c, score: float64(c.Degree) * novelty})
	}
	sort.SliceStable(rankedConcepts, func(a, b int) bool {
		if rankedConcepts[a].score != rankedConcepts[b].score {
			return rankedConcepts[a].score > rankedConcepts[b].score
		}
		return rankedConcepts[a].detail.NodeID < rankedConcepts[b].detail.NodeID
	})

	suggestions := make([]domain.Suggestion, 0, 3)
	reordered := make([]domain.ConceptDetail, 0, len(rankedConcepts))
	for i, rc := range rankedConcepts {
		reordered = append(reordered, rc.detail)
		if i < 3 {
			suggestions = append(suggestions, domain.Suggestion{
				Label:  fmt.Sprintf("Dig into %s", rc.detail.Name),
				Query:  fmt.Sprintf("What is %s?", rc.detail.Name),
				Intent: string(domain.IntentDefinitionOverview),
			})
		}
	}
	tr.add("explore_rank", nil, map[string]int{"ranked": len(reordered)})

	base.Intent = domain.IntentExploreNext
	base.Context.FocusEntities = reordered
	base.Suggestions = suggestions
	base.Trace = tr.steps
	return base, nil
}

func (p *Planner) planWhatChanged(ctx context.Context, scope domain.Scope, req PlanRequest) (*domain.PlanResult, error) {
	tr := &tracer{}
	sinceDays := req.SinceDays
	if sinceDays <= 0 {
		sinceDays = 7
	}
	since := time.Now().UTC().Add(-time.Duration(sinceDays) * 24 * time.Hour)
	strictness := req.Strictness
	if strictness == "" {
		strictness = domain.StrictnessMedium
	}
	recent, err := p.graph.RecentClaims(ctx, scope, since, strictness, 50)
	if err != nil {
		return nil, err
	}
	tr.add("recent_claims", map[string]any{"since_days": sinceDays}, map[string]int{"claims": len(recent)})

	var newIDs, updatedIDs []string
	claimRefs := make([]domain.ClaimRef, 0, len(recent))
	nodeSet := map[string]bool{}
	for _, cl := range recent {
		if !cl.CreatedAt.IsZero() && cl.CreatedAt.Equal(cl.UpdatedAt) {
			newIDs = append(newIDs, cl.ClaimID)
		} else {
			updatedIDs = append(updatedIDs, cl.ClaimID)
		}
		claimRefs = append(claimRefs, domain.ClaimRef{
			ClaimID:     cl.ClaimID,
			Text:        cl.Text,
			Confidence:  cl.Confidence,
			Status:      string(cl.Status),
			SourceID:    cl.SourceID,
			ChunkID:     cl.ChunkID,
			EvidenceIDs: cl.EvidenceIDs,
		})
		for _, m := range cl.MentionNodeIDs {
			nodeSet[m] = true
		}
	}

	policy := req.Policy
	if policy == "" {
		policy = domain.ProposedAuto
	}
	nodeIDs := make([]string, 0, len(nodeSet))
	for id := range nodeSet {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)
	if len(nodeIDs) > subgraphMaxConcepts {
		nodeIDs = nodeIDs[:subgraphMaxConcepts]
	}
	details, err := p.graph.ConceptDetails(ctx, scope, nodeIDs, policy)
	if err != nil {
		return nil, err
	}
	edges, err := p.graph.EdgesAmong(ctx, scope, nodeIDs, policy, fullMaxEdges)
	if err != nil {
		return nil, err
	}
	tr.add("changed_subgraph", nil, map[string]int{"concepts": len(details), "edges": len(edges)})

	pctx := domain.PlanContext{
		FocusEntities: details,
		Claims:        claimRefs,
		Extra: map[string]any{
			"new_claim_ids":     newIDs,
			"updated_claim_ids": updatedIDs,
		},
	}
	if len(details) > 0 || len(edges) > 0 {
		pctx.Subgraph = &domain.Subgraph{Concepts: details, Edges: edges}
	}
	res := &domain.PlanResult{Intent: domain.IntentWhatChanged, Context: pctx, Trace: tr.steps}
	if len(recent) == 0 {
		res.Warnings = append(res.Warnings, "No results found")
	}
	return res, nil
}

func (p *Planner) planSelfKnowledge(ctx context.Context, scope domain.Scope, req PlanRequest) (*domain.PlanResult, error) {
	tr := &tracer{}
	hits, _, err := p.engine.index.SearchConcepts(ctx, scope, req.Question, 5)
	if err != nil {
		return nil, err
	}
	tr.add("self_concepts", nil, map[string]int{"hits": len(hits)})

	if len(hits) == 0 {
		// No concept match; fall back to semantic claim retrieval.
		res, err := p.planDefinitionOverview(ctx, scope, req)
		if err != nil {
			return nil, err
		}
		res.Intent = domain.IntentSelfKnowledge
		res.Trace = append(tr.steps, res.Trace...)
		return res, nil
	}

	policy := req.Policy
	if policy == "" {
		policy = domain.ProposedAuto
	}
	nodeIDs := make([]string, 0, len(hits))
	for _, h := range hits {
		nodeIDs = append(nodeIDs, h.NodeID)
	}
	sort.Strings(nodeIDs)
	details, err := p.graph.ConceptDetails(ctx, scope, nodeIDs, policy)
	if err != nil {
		return nil, err
	}
	edges, err := p.graph.EdgesAmong(ctx, scope, nodeIDs, policy, fullMaxEdges)
	if err != nil {
		return nil, err
	}
	tr.add("self_subgraph", nil, map[string]int{"concepts": len(details), "edges": len(edges)})

	pctx := domain.PlanContext{FocusEntities: details}
	if len(details) > 0 || len(edges) > 0 {
		pctx.Subgraph = &domain.Subgraph{Concepts: details, Edges: edges}
	}
	res := &domain.PlanResult{Intent: domain.IntentSelfKnowledge, Context: pctx, Trace: tr.steps}
	if len(details) == 0 {
		res.Warnings = append(res.Warnings, "No results found")
	}
	return res, nil
}
