package domain

import "strings"

// Scope is the resolved (tenant, graph, branch) every read and write is bound to.
type Scope struct {
	TenantID string
	GraphID  string
	BranchID string
}

func (s Scope) Valid() bool {
	return strings.TrimSpace(s.TenantID) != "" &&
		strings.TrimSpace(s.GraphID) != "" &&
		strings.TrimSpace(s.BranchID) != ""
}

const MainBranch = "main"

// ProposedPolicy controls visibility of PROPOSED relationships to readers.
type ProposedPolicy string

const (
	ProposedAuto ProposedPolicy = "auto"
	ProposedAll  ProposedPolicy = "all"
	ProposedNone ProposedPolicy = "none"
)

func ParseProposedPolicy(s string) ProposedPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all":
		return ProposedAll
	case "none":
		return ProposedNone
	default:
		return ProposedAuto
	}
}

// Strictness is the evidence filter over claim status/confidence.
type Strictness string

const (
	StrictnessHigh   Strictness = "high"
	StrictnessMedium Strictness = "medium"
	StrictnessLow    Strictness = "low"
)

func ParseStrictness(s string) Strictness {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return StrictnessHigh
	case "low":
		return StrictnessLow
	default:
		return StrictnessMedium
	}
}
