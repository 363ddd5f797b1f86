package domain

import "strings"

// Intent tags select a retrieval plan. Classification happens upstream;
// unknown tags fall back to DEFINITION_OVERVIEW.
type Intent string

const (
	IntentDefinitionOverview Intent = "DEFINITION_OVERVIEW"
	IntentTimeline           Intent = "TIMELINE"
	IntentCausalChain        Intent = "CAUSAL_CHAIN"
	IntentCompare            Intent = "COMPARE"
	IntentWhoNetwork         Intent = "WHO_NETWORK"
	IntentEvidenceCheck      Intent = "EVIDENCE_CHECK"
	IntentExploreNext        Intent = "EXPLORE_NEXT"
	IntentWhatChanged        Intent = "WHAT_CHANGED"
	IntentSelfKnowledge      Intent = "SELF_KNOWLEDGE"
)

func ParseIntent(s string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(s))) {
	case IntentTimeline:
		return IntentTimeline
	case IntentCausalChain:
		return IntentCausalChain
	case IntentCompare:
		return IntentCompare
	case IntentWhoNetwork:
		return IntentWhoNetwork
	case IntentEvidenceCheck:
		return IntentEvidenceCheck
	case IntentExploreNext:
		return IntentExploreNext
	case IntentWhatChanged:
		return IntentWhatChanged
	case IntentSelfKnowledge:
		return IntentSelfKnowledge
	default:
		return IntentDefinitionOverview
	}
}

// DetailLevel controls response shaping.
type DetailLevel string

const (
	DetailSummary DetailLevel = "summary"
	DetailFull    DetailLevel = "full"
)

func ParseDetailLevel(s string) DetailLevel {
	if strings.ToLower(strings.TrimSpace(s)) == "full" {
		return DetailFull
	}
	return DetailSummary
}
