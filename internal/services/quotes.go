package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mindfold/mindfold-backend/internal/data/graph"
	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// CaptureQuoteRequest is one user-anchored quote submission.
type CaptureQuoteRequest struct {
	Text     string   `json:"text"`
	Anchor   string   `json:"anchor"`
	UserNote string   `json:"user_note"`
	Tags     []string `json:"tags"`
	SourceID string   `json:"source_id"`
	ClaimIDs []string `json:"claim_ids"`
}

// QuoteService captures and reads user-anchored evidence quotes.
type QuoteService interface {
	Capture(ctx context.Context, scope domain.Scope, req CaptureQuoteRequest) (*domain.Quote, error)
	Get(ctx context.Context, scope domain.Scope, quoteID string) (*domain.Quote, error)
}

type quoteService struct {
	graph *graph.Store
	log   *logger.Logger
}

func NewQuoteService(store *graph.Store, log *logger.Logger) QuoteService {
	return &quoteService{
		graph: store,
		log:   log.With("service", "QuoteService"),
	}
}

// quoteID derives a stable id from the normalized quote text, so capturing
// the same span twice updates one Quote node.
func quoteID(graphID, sourceID, text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	h := sha256.Sum256([]byte(graphID + "\x00" + sourceID + "\x00" + norm))
	return "QUOTE_" + hex.EncodeToString(h[:])[:16]
}

func (s *quoteService) Capture(ctx context.Context, scope domain.Scope, req CaptureQuoteRequest) (*domain.Quote, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("capture quote: %w", apperrors.ErrUnauthorized)
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("capture quote: empty text: %w", apperrors.ErrInvalidArgument)
	}
	quote := domain.Quote{
		QuoteID:    quoteID(scope.GraphID, req.SourceID, text),
		GraphID:    scope.GraphID,
		Text:       text,
		Anchor:     req.Anchor,
		CapturedAt: time.Now().UTC().Format(time.RFC3339Nano),
		UserNote:   req.UserNote,
		Tags:       req.Tags,
		SourceID:   req.SourceID,
		ClaimIDs:   req.ClaimIDs,
	}
	if _, err := s.graph.UpsertQuotes(ctx, scope, "", []domain.Quote{quote}); err != nil {
		return nil, err
	}
	s.log.Info("quote captured", "quote_id", quote.QuoteID, "graph_id", scope.GraphID, "claims", len(quote.ClaimIDs))
	return &quote, nil
}

func (s *quoteService) Get(ctx context.Context, scope domain.Scope, quoteID string) (*domain.Quote, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("get quote: %w", apperrors.ErrUnauthorized)
	}
	quotes, err := s.graph.QuotesByIDs(ctx, scope, []string{quoteID})
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("get quote: %w", apperrors.ErrNotFound)
	}
	return &quotes[0], nil
}
