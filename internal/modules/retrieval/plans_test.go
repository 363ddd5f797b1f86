package retrieval

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/mindfold/mindfold-backend/internal/domain"
)

func newTestPlanner(t *testing.T, graph *fakeGraph) *Planner {
	t.Helper()
	eng := newTestEngine(t, graph)
	return NewPlanner(eng, graph, nil, testLogger(t))
}

func TestDefinitionOverviewOnEmptyStore(t *testing.T) {
	p := newTestPlanner(t, &fakeGraph{
		details: map[string]domain.ConceptDetail{},
		chunks:  map[string]domain.SourceChunk{},
	})
	res, err := p.Run(context.Background(), testScope(), PlanRequest{
		Question: "What is machine learning?",
		Intent:   domain.IntentDefinitionOverview,
		Detail:   domain.DetailSummary,
	})
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	if len(res.Context.FocusEntities) != 0 {
		t.Fatalf("focus_entities: got=%d want=0", len(res.Context.FocusEntities))
	}
	found := false
	for _, w := range res.Warnings {
		if w == "No results found" {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings missing 'No results found': %v", res.Warnings)
	}
	if len(res.Trace) > 10 {
		t.Fatalf("trace: got=%d want<=10", len(res.Trace))
	}
	if res.Context.RetrievalMeta.Claims != 0 {
		t.Fatalf("retrieval_meta claims: got=%d want=0", res.Context.RetrievalMeta.Claims)
	}
}

func TestSummaryModeCaps(t *testing.T) {
	p := newTestPlanner(t, populatedGraph())
	res, err := p.Run(context.Background(), testScope(), PlanRequest{
		Question: "What is machine learning?",
		Intent:   domain.IntentDefinitionOverview,
		Detail:   domain.DetailSummary,
	})
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	if len(res.Context.FocusEntities) > 5 {
		t.Fatalf("focus_entities: got=%d want<=5", len(res.Context.FocusEntities))
	}
	if len(res.Context.Claims) > 5 {
		t.Fatalf("claims: got=%d want<=5", len(res.Context.Claims))
	}
	if len(res.Context.FocusCommunities) > 3 {
		t.Fatalf("top_sources: got=%d want<=3", len(res.Context.FocusCommunities))
	}
	if res.Context.SubgraphPreview != nil && len(res.Context.SubgraphPreview.Edges) > 10 {
		t.Fatalf("subgraph_preview edges: got=%d want<=10", len(res.Context.SubgraphPreview.Edges))
	}
	if res.Context.Subgraph != nil {
		t.Fatalf("summary mode must not carry the full subgraph")
	}
	if res.Context.Chunks != nil {
		t.Fatalf("summary mode must not carry chunks")
	}
	for _, co := range res.Context.FocusCommunities {
		if co.Summary != "" {
			t.Fatalf("summary mode must strip community summaries")
		}
	}
	for _, e := range res.Context.FocusEntities {
		if e.Description != "" {
			t.Fatalf("summary mode must strip concept descriptions")
		}
	}
	payload, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: err=%v", err)
	}
	if len(payload) >= 100*1024 {
		t.Fatalf("payload: %d bytes, want < 100KB", len(payload))
	}
	if len(res.Context.RetrievalMeta.ClaimIDs) > 20 || len(res.Context.RetrievalMeta.CommunityIDs) > 10 {
		t.Fatalf("retrieval_meta id caps violated: %+v", res.Context.RetrievalMeta)
	}
}

func TestFullModeCaps(t *testing.T) {
	p := newTestPlanner(t, populatedGraph())
	res, err := p.Run(context.Background(), testScope(), PlanRequest{
		Question: "What is machine learning?",
		Intent:   domain.IntentDefinitionOverview,
		Detail:   domain.DetailFull,
	})
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	if len(res.Context.Claims) > 20 {
		t.Fatalf("claims: got=%d want<=20", len(res.Context.Claims))
	}
	if res.Context.Subgraph != nil && len(res.Context.Subgraph.Edges) > 50 {
		t.Fatalf("subgraph edges: got=%d want<=50", len(res.Context.Subgraph.Edges))
	}
	if len(res.Context.Chunks) > 10 {
		t.Fatalf("chunks: got=%d want<=10", len(res.Context.Chunks))
	}
	for _, co := range res.Context.FocusCommunities {
		if co.Summary == "" {
			t.Fatalf("full mode must preserve community summaries")
		}
	}
}

func TestPlanOrderingStability(t *testing.T) {
	p := newTestPlanner(t, populatedGraph())
	run := func() []string {
		res, err := p.Run(context.Background(), testScope(), PlanRequest{
			Question: "What is machine learning?",
			Detail:   domain.DetailFull,
		})
		if err != nil {
			t.Fatalf("Run: err=%v", err)
		}
		return res.Context.RetrievalMeta.ClaimIDs
	}
	first := run()
	if len(first) == 0 {
		t.Fatalf("no claim ids returned")
	}
	for i := 0; i < 5; i++ {
		if got := run(); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d diverged: got=%v want=%v", i, got, first)
		}
	}
}

func TestTimelinePlanOrdersUnknownLast(t *testing.T) {
	g := populatedGraph()
	g.claims[0].Text = "in 1956 the field was founded"
	g.claims[2].Text = "by 2012 deep learning took over"
	p := newTestPlanner(t, g)
	res, err := p.Run(context.Background(), testScope(), PlanRequest{
		Question: "history of the field",
		Intent:   domain.IntentTimeline,
		Detail:   domain.DetailFull,
	})
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	raw, ok := res.Context.Extra["timeline"]
	if !ok {
		t.Fatalf("timeline extra missing")
	}
	blob, _ := json.Marshal(raw)
	var entries []struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(blob, &entries); err != nil {
		t.Fatalf("unmarshal timeline: err=%v", err)
	}
	seenUnknown := false
	for _, e := range entries {
		if e.Date == "unknown" {
			seenUnknown = true
		} else if seenUnknown {
			t.Fatalf("dated entry after unknown: %+v", entries)
		}
	}
}

func TestTimelinePrefersChunkMetadataDate(t *testing.T) {
	g := populatedGraph()
	g.claims[0].Text = "in 1956 the field was founded"
	ch := g.chunks[g.claims[0].ChunkID]
	ch.Metadata = map[string]any{"date": "2011-03-01"}
	g.chunks[g.claims[0].ChunkID] = ch
	p := newTestPlanner(t, g)
	res, err := p.Run(context.Background(), testScope(), PlanRequest{
		Question: "history of the field",
		Intent:   domain.IntentTimeline,
		Detail:   domain.DetailFull,
	})
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	blob, _ := json.Marshal(res.Context.Extra["timeline"])
	var entries []struct {
		ClaimID string `json:"claim_id"`
		Date    string `json:"date"`
	}
	if err := json.Unmarshal(blob, &entries); err != nil {
		t.Fatalf("unmarshal timeline: err=%v", err)
	}
	for _, e := range entries {
		if e.ClaimID != g.claims[0].ClaimID {
			continue
		}
		if e.Date != "2011-03-01" {
			t.Fatalf("timeline date: got=%q want metadata date, not the text year", e.Date)
		}
		return
	}
	t.Fatalf("claim %s absent from timeline: %+v", g.claims[0].ClaimID, entries)
}

func TestClaimLimitTightensResponse(t *testing.T) {
	p := newTestPlanner(t, populatedGraph())
	res, err := p.Run(context.Background(), testScope(), PlanRequest{
		Question:    "What is machine learning?",
		Detail:      domain.DetailFull,
		LimitClaims: 3,
	})
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	if len(res.Context.Claims) > 3 {
		t.Fatalf("claims: got=%d want<=3", len(res.Context.Claims))
	}

	res, err = p.Run(context.Background(), testScope(), PlanRequest{
		Question:      "What is machine learning?",
		Detail:        domain.DetailSummary,
		Limit:         2,
		LimitEntities: 1,
		LimitSources:  1,
	})
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	if len(res.Context.Claims) > 2 {
		t.Fatalf("claims: got=%d want<=2", len(res.Context.Claims))
	}
	if len(res.Context.FocusEntities) > 1 {
		t.Fatalf("focus_entities: got=%d want<=1", len(res.Context.FocusEntities))
	}
	if len(res.Context.FocusCommunities) > 1 {
		t.Fatalf("top_sources: got=%d want<=1", len(res.Context.FocusCommunities))
	}
}

func TestFocusQuoteJoinsRetrieval(t *testing.T) {
	g := populatedGraph()
	g.quotes = map[string]domain.Quote{
		"QUOTE_aa": {QuoteID: "QUOTE_aa", Text: "gradient descent minimizes loss"},
	}
	p := newTestPlanner(t, g)

	res, err := p.Run(context.Background(), testScope(), PlanRequest{
		Question:     "what does this mean?",
		Detail:       domain.DetailSummary,
		FocusQuoteID: "QUOTE_aa",
	})
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	for _, w := range res.Warnings {
		if strings.Contains(w, "focus_quote_id") {
			t.Fatalf("known quote produced warning: %v", res.Warnings)
		}
	}

	res, err = p.Run(context.Background(), testScope(), PlanRequest{
		Question:     "what does this mean?",
		Detail:       domain.DetailSummary,
		FocusQuoteID: "QUOTE_missing",
		FocusPageURL: "https://example.com/unseen",
	})
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	var quoteWarn, pageWarn bool
	for _, w := range res.Warnings {
		if strings.Contains(w, "focus_quote_id") {
			quoteWarn = true
		}
		if strings.Contains(w, "focus_page_url") {
			pageWarn = true
		}
	}
	if !quoteWarn || !pageWarn {
		t.Fatalf("missing focus warnings: %v", res.Warnings)
	}
}

func TestCompareRegexFallback(t *testing.T) {
	p := newTestPlanner(t, populatedGraph())
	a, b := p.compareTargets(context.Background(), testScope(), "supervised learning vs unsupervised learning?")
	if a != "supervised learning" || b != "unsupervised learning" {
		t.Fatalf("compareTargets: a=%q b=%q", a, b)
	}
	a, b = p.compareTargets(context.Background(), testScope(), "compare CNNs and RNNs")
	if a != "CNNs" || b != "RNNs" {
		t.Fatalf("compareTargets: a=%q b=%q", a, b)
	}
}

func TestWhatChangedSplitsNewAndUpdated(t *testing.T) {
	g := populatedGraph()
	p := newTestPlanner(t, g)
	res, err := p.Run(context.Background(), testScope(), PlanRequest{
		Question:  "what changed recently",
		Intent:    domain.IntentWhatChanged,
		Detail:    domain.DetailFull,
		SinceDays: 7,
	})
	if err != nil {
		t.Fatalf("Run: err=%v", err)
	}
	if res.Intent != domain.IntentWhatChanged {
		t.Fatalf("intent: got=%s", res.Intent)
	}
	if _, ok := res.Context.Extra["new_claim_ids"]; !ok {
		t.Fatalf("extra missing new_claim_ids")
	}
	if _, ok := res.Context.Extra["updated_claim_ids"]; !ok {
		t.Fatalf("extra missing updated_claim_ids")
	}
}

func TestExtractQuoted(t *testing.T) {
	got := extractQuoted(`how does "gradient descent" relate to “backprop”?`)
	want := []string{"gradient descent", "backprop"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("extractQuoted: got=%v want=%v", got, want)
	}
}
