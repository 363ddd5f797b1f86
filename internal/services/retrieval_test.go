package services

import (
	"strings"
	"testing"

	"github.com/mindfold/mindfold-backend/internal/domain"
)

func TestContextCacheKeyVariesByInputs(t *testing.T) {
	scope := domain.Scope{TenantID: "t1", GraphID: "g1", BranchID: "main"}
	base := contextCacheKey(scope, "what is backprop?", domain.StrictnessMedium)

	if contextCacheKey(scope, "what is backprop?", domain.StrictnessMedium) != base {
		t.Fatalf("contextCacheKey: not stable")
	}
	if contextCacheKey(scope, "what is dropout?", domain.StrictnessMedium) == base {
		t.Fatalf("contextCacheKey: message did not change the key")
	}
	if contextCacheKey(scope, "what is backprop?", domain.StrictnessHigh) == base {
		t.Fatalf("contextCacheKey: strictness did not change the key")
	}
	other := scope
	other.BranchID = "experiment"
	if contextCacheKey(other, "what is backprop?", domain.StrictnessMedium) == base {
		t.Fatalf("contextCacheKey: branch did not change the key")
	}
}

func TestRenderContextTextSections(t *testing.T) {
	bundle := &domain.ContextBundle{
		Communities: []domain.CommunityRef{{CommunityID: "COMM_01", Name: "Optimization", Summary: "gradient methods"}},
		Claims: []domain.ClaimRef{
			{ClaimID: "CLAIM_01", Text: "SGD updates weights per batch", Confidence: 0.9, Status: "VERIFIED"},
		},
		Concepts: []domain.ConceptDetail{
			{NodeID: "CONCEPT_01", Name: "SGD"},
			{NodeID: "CONCEPT_02", Name: "Momentum"},
		},
		Edges: []domain.Edge{{SourceID: "CONCEPT_01", TargetID: "CONCEPT_02", Predicate: "RELATED_TO"}},
	}
	got := renderContextText(bundle)
	for _, want := range []string{
		"## Topic summaries",
		"Optimization: gradient methods",
		"## Evidence",
		"[VERIFIED 0.90] SGD updates weights per batch",
		"## Relationships",
		"SGD RELATED_TO Momentum",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("renderContextText: missing %q in:\n%s", want, got)
		}
	}
}

func TestRenderContextTextEmptyBundle(t *testing.T) {
	got := renderContextText(&domain.ContextBundle{})
	if !strings.Contains(got, "No graph evidence") {
		t.Fatalf("renderContextText: %q", got)
	}
}

func TestParseDigestSectionsDropsMalformed(t *testing.T) {
	raw := map[string]any{
		"sections": []any{
			map[string]any{
				"heading": "Key ideas",
				"entries": []any{
					map[string]any{"body": "SGD is an optimizer", "related_concepts": []any{"SGD"}},
					map[string]any{"body": ""},
				},
			},
			map[string]any{"heading": ""},
			"not a section",
			map[string]any{"heading": "Empty", "entries": []any{}},
		},
	}
	got := parseDigestSections(raw)
	if len(got) != 1 {
		t.Fatalf("parseDigestSections: len=%d want=1 (%+v)", len(got), got)
	}
	if got[0].Heading != "Key ideas" || len(got[0].Entries) != 1 {
		t.Fatalf("parseDigestSections: %+v", got[0])
	}
	if len(got[0].Entries[0].RelatedNodeIDs) != 1 || got[0].Entries[0].RelatedNodeIDs[0] != "SGD" {
		t.Fatalf("parseDigestSections: related=%v", got[0].Entries[0].RelatedNodeIDs)
	}
}
