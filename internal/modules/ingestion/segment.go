package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
)

// Segment is one ordered slice of a lecture with the concepts it covers.
type Segment struct {
	Title           string   `json:"title"`
	Summary         string   `json:"summary,omitempty"`
	CoveredConcepts []string `json:"covered_concepts,omitempty"`
	Analogies       []string `json:"analogies,omitempty"`
}

const segmentSystemPrompt = `You segment a lecture into an ordered outline.
Return JSON only: {"segments":[{"title","summary","covered_concepts","analogies"}]}.`

// ExtractSegments runs the optional segmentation pass. Truncated model
// output is tolerated: well-formed segment objects are recovered from the
// partial payload before giving up.
func (e *Extractor) ExtractSegments(ctx context.Context, text string, conceptNames []string) ([]Segment, error) {
	client := e.router.Client()
	if client == nil {
		return nil, fmt.Errorf("extract segments: %w", apperrors.ErrProviderUnavailable)
	}
	user := "Concepts: " + strings.Join(conceptNames, ", ") + "\n\n" + text
	raw, err := client.GenerateText(ctx, segmentSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("extract segments: %w", err)
	}
	segments, err := parseSegments(raw)
	if err != nil {
		return nil, fmt.Errorf("extract segments: parse: %w", err)
	}
	return segments, nil
}

// parseSegments parses the segments payload, recovering individual objects
// when the envelope is truncated mid-array.
func parseSegments(raw string) ([]Segment, error) {
	var envelope struct {
		Segments []Segment `json:"segments"`
	}
	if err := unmarshalSalvaging(raw, &envelope); err == nil && len(envelope.Segments) > 0 {
		return envelope.Segments, nil
	}

	// Slice past the array opener so each segment object is top-level in
	// the remainder; a truncated trailing object never balances and drops.
	if idx := strings.Index(raw, `"segments"`); idx >= 0 {
		raw = raw[idx:]
	}
	if br := strings.Index(raw, "["); br >= 0 {
		raw = raw[br+1:]
	}
	var out []Segment
	for _, candidate := range balancedObjects(raw) {
		var seg Segment
		if err := json.Unmarshal([]byte(candidate), &seg); err != nil {
			continue
		}
		if strings.TrimSpace(seg.Title) == "" {
			continue
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no recoverable segments: %w", apperrors.ErrInvalidArgument)
	}
	return out, nil
}
