package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
	"github.com/mindfold/mindfold-backend/internal/platform/openai"
)

// ExtractedNode is one concept proposed by the model.
type ExtractedNode struct {
	Name        string   `json:"name"`
	Domain      string   `json:"domain,omitempty"`
	Type        string   `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// ExtractedLink is one relationship proposed by the model.
type ExtractedLink struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Predicate  string  `json:"predicate"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// ExtractionResult is the parsed output of one concept-extraction call.
type ExtractionResult struct {
	Nodes []ExtractedNode `json:"nodes"`
	Links []ExtractedLink `json:"links"`
}

// ExtractedClaim is one claim proposed for a chunk.
type ExtractedClaim struct {
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Mentions   []string `json:"mentions,omitempty"`
}

// Extractor wraps the model calls of the pipeline: concept extraction over
// the whole source and claim extraction per chunk.
type Extractor struct {
	router *openai.ModelRouter
	log    *logger.Logger
}

func NewExtractor(router *openai.ModelRouter, log *logger.Logger) *Extractor {
	return &Extractor{
		router: router,
		log:    log.With("component", "IngestionExtractor"),
	}
}

const conceptSystemPrompt = `You extract knowledge-graph concepts from lecture text.
Return JSON only: {"nodes":[{"name","domain","type","description","tags","aliases"}],
"links":[{"source","target","predicate","confidence","rationale"}]}.
Predicates: DEPENDS_ON, PREREQUISITE_FOR, RELATED_TO, PART_OF, CAUSES, CONTRASTS_WITH.
Confidence in [0,1].`

// ExtractConcepts runs one model call over the full text and parses the
// node/link payload, salvaging balanced JSON when the reply is wrapped in
// prose.
func (e *Extractor) ExtractConcepts(ctx context.Context, sourceDomain, text string) (*ExtractionResult, error) {
	client := e.router.Client()
	if client == nil {
		return nil, fmt.Errorf("extract concepts: %w", apperrors.ErrProviderUnavailable)
	}
	user := text
	if sourceDomain != "" {
		user = "Domain: " + sourceDomain + "\n\n" + text
	}
	raw, err := client.GenerateText(ctx, conceptSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("extract concepts: %w", err)
	}
	var out ExtractionResult
	if err := unmarshalSalvaging(raw, &out); err != nil {
		return nil, fmt.Errorf("extract concepts: parse: %w", err)
	}
	nodes := out.Nodes[:0]
	for _, n := range out.Nodes {
		if strings.TrimSpace(n.Name) != "" {
			nodes = append(nodes, n)
		}
	}
	out.Nodes = nodes
	return &out, nil
}

const claimSystemPrompt = `You extract atomic factual claims from a text chunk.
Each claim must be a single self-contained assertion.
"mentions" lists names from the provided concept list that the claim refers to.
Return JSON only: {"claims":[{"text","confidence","mentions"}]}.`

// ExtractClaims runs one model call for a chunk, constrained to the known
// concept names so mentions resolve to graph nodes.
func (e *Extractor) ExtractClaims(ctx context.Context, chunkText string, conceptNames []string) ([]ExtractedClaim, error) {
	client := e.router.Client()
	if client == nil {
		return nil, fmt.Errorf("extract claims: %w", apperrors.ErrProviderUnavailable)
	}
	user := "Concepts: " + strings.Join(conceptNames, ", ") + "\n\nChunk:\n" + chunkText
	raw, err := client.GenerateText(ctx, claimSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}
	var out struct {
		Claims []ExtractedClaim `json:"claims"`
	}
	if err := unmarshalSalvaging(raw, &out); err != nil {
		return nil, fmt.Errorf("extract claims: parse: %w", err)
	}
	claims := out.Claims[:0]
	for _, cl := range out.Claims {
		if strings.TrimSpace(cl.Text) != "" {
			claims = append(claims, cl)
		}
	}
	return claims, nil
}

// unmarshalSalvaging parses model output as JSON, falling back to the first
// balanced {...} substring that parses. Code fences are stripped first.
func unmarshalSalvaging(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	for _, candidate := range balancedObjects(raw) {
		if err := json.Unmarshal([]byte(candidate), v); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no parseable JSON object: %w", apperrors.ErrInvalidArgument)
}

// balancedObjects scans for top-level balanced {...} substrings, respecting
// string literals and escapes.
func balancedObjects(s string) []string {
	var out []string
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				if depth == 0 {
					start = i
				}
				depth++
			}
		case '}':
			if !inString && depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					out = append(out, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return out
}

// ToConceptUpserts converts extracted nodes into graph write shapes, pairing
// each with its embedding when available.
func (res *ExtractionResult) ToConceptUpserts(sourceLabel string, embeddings map[string][]float32) []domain.ConceptUpsert {
	out := make([]domain.ConceptUpsert, 0, len(res.Nodes))
	for _, n := range res.Nodes {
		out = append(out, domain.ConceptUpsert{
			Name:        n.Name,
			Domain:      n.Domain,
			Type:        n.Type,
			Description: n.Description,
			Tags:        n.Tags,
			Aliases:     n.Aliases,
			Source:      sourceLabel,
			Embedding:   embeddings[n.Name],
		})
	}
	return out
}
