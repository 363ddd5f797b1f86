package graph

import (
	"strings"
	"testing"

	"github.com/mindfold/mindfold-backend/internal/domain"
)

func TestGraphIDForIsStablePerTenantUser(t *testing.T) {
	a := graphIDFor("tenant-1", "user-1")
	b := graphIDFor("tenant-1", "user-1")
	if a != b {
		t.Fatalf("graphIDFor: %q != %q", a, b)
	}
	if !strings.HasPrefix(a, "G_") {
		t.Fatalf("graphIDFor: prefix missing: %q", a)
	}
	if graphIDFor("tenant-2", "user-1") == a {
		t.Fatalf("graphIDFor: tenant did not change the id")
	}
	if graphIDFor("tenant-1", "user-2") == a {
		t.Fatalf("graphIDFor: user did not change the id")
	}
}

func TestConceptNodeIDNormalizesName(t *testing.T) {
	a := conceptNodeID("G_abc", "Machine Learning")
	b := conceptNodeID("G_abc", "  machine learning  ")
	if a != b {
		t.Fatalf("conceptNodeID: %q != %q", a, b)
	}
	if !strings.HasPrefix(a, "CONCEPT_") {
		t.Fatalf("conceptNodeID: prefix missing: %q", a)
	}
	if conceptNodeID("G_other", "Machine Learning") == a {
		t.Fatalf("conceptNodeID: graph id did not change the id")
	}
}

func TestStrictnessPredicate(t *testing.T) {
	tests := []struct {
		strictness domain.Strictness
		want       []string
		notWant    []string
	}{
		{domain.StrictnessHigh, []string{"'VERIFIED'"}, []string{"PROPOSED"}},
		{domain.StrictnessMedium, []string{"'VERIFIED'", "'PROPOSED'", "0.7"}, nil},
		{domain.StrictnessLow, nil, []string{"VERIFIED"}},
	}
	for _, tt := range tests {
		got := strictnessPredicate("cl", tt.strictness)
		for _, w := range tt.want {
			if !strings.Contains(got, w) {
				t.Fatalf("strictnessPredicate(%s): %q missing %q", tt.strictness, got, w)
			}
		}
		for _, nw := range tt.notWant {
			if strings.Contains(got, nw) {
				t.Fatalf("strictnessPredicate(%s): %q should not contain %q", tt.strictness, got, nw)
			}
		}
	}
}

func TestEdgeVisibilityNeverShowsRejected(t *testing.T) {
	s := &Store{proposedThreshold: 0.6}
	for _, policy := range []domain.ProposedPolicy{domain.ProposedAuto, domain.ProposedAll, domain.ProposedNone} {
		clause, params := s.edgeVisibility("e", policy)
		if strings.Contains(clause, "REJECTED") {
			t.Fatalf("edgeVisibility(%s): %q exposes rejected edges", policy, clause)
		}
		if policy == domain.ProposedAuto {
			if params["proposed_threshold"] != 0.6 {
				t.Fatalf("edgeVisibility(auto): params=%v", params)
			}
			if !strings.Contains(clause, "$proposed_threshold") {
				t.Fatalf("edgeVisibility(auto): %q missing threshold", clause)
			}
		}
	}
	noneClause, _ := s.edgeVisibility("e", domain.ProposedNone)
	if strings.Contains(noneClause, "PROPOSED") {
		t.Fatalf("edgeVisibility(none): %q shows proposed edges", noneClause)
	}
}

func TestEdgeVisibilityScopedToBranch(t *testing.T) {
	s := &Store{proposedThreshold: 0.6}
	for _, policy := range []domain.ProposedPolicy{domain.ProposedAuto, domain.ProposedAll, domain.ProposedNone} {
		clause, _ := s.edgeVisibility("e", policy)
		if !strings.Contains(clause, "$branch_id IN e.on_branches") {
			t.Fatalf("edgeVisibility(%s): %q not scoped to the active branch", policy, clause)
		}
	}
	clause, _ := s.edgeVisibility("rel", domain.ProposedAuto)
	if !strings.Contains(clause, "rel.on_branches") {
		t.Fatalf("edgeVisibility: %q ignores the edge variable", clause)
	}
}

func TestClaimEvidenceAlwaysIncludesChunk(t *testing.T) {
	got := claimEvidence(domain.Claim{ChunkID: "CHUNK_ab_0"})
	if len(got) != 1 || got[0] != "CHUNK_ab_0" {
		t.Fatalf("claimEvidence: got=%v", got)
	}
	got = claimEvidence(domain.Claim{
		ChunkID:     "CHUNK_ab_0",
		EvidenceIDs: []string{"QUOTE_1", "CHUNK_ab_0", "", "QUOTE_1"},
	})
	want := []string{"QUOTE_1", "CHUNK_ab_0"}
	if len(got) != len(want) {
		t.Fatalf("claimEvidence: got=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("claimEvidence: got=%v want=%v", got, want)
		}
	}
	if got := claimEvidence(domain.Claim{}); len(got) != 0 {
		t.Fatalf("claimEvidence: empty claim produced %v", got)
	}
}
