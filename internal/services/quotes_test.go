package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mindfold/mindfold-backend/internal/domain"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

func TestQuoteIDNormalizesText(t *testing.T) {
	a := quoteID("g1", "src-1", "Gradient  Descent minimizes loss")
	b := quoteID("g1", "src-1", "  gradient descent   minimizes loss ")
	if a != b {
		t.Fatalf("quoteID: %q != %q", a, b)
	}
	if !strings.HasPrefix(a, "QUOTE_") {
		t.Fatalf("quoteID: prefix missing: %q", a)
	}
	if quoteID("g2", "src-1", "Gradient Descent minimizes loss") == a {
		t.Fatalf("quoteID: graph did not change the id")
	}
	if quoteID("g1", "src-2", "Gradient Descent minimizes loss") == a {
		t.Fatalf("quoteID: source did not change the id")
	}
	if quoteID("g1", "src-1", "a different span") == a {
		t.Fatalf("quoteID: text did not change the id")
	}
}

func TestCaptureRejectsBadInput(t *testing.T) {
	log, err := logger.New("dev")
	if err != nil {
		t.Fatalf("logger.New: err=%v", err)
	}
	svc := NewQuoteService(nil, log)
	scope := domain.Scope{TenantID: "t1", GraphID: "g1", BranchID: "main"}

	if _, err := svc.Capture(context.Background(), domain.Scope{}, CaptureQuoteRequest{Text: "x"}); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("Capture: err=%v want ErrUnauthorized", err)
	}
	if _, err := svc.Capture(context.Background(), scope, CaptureQuoteRequest{Text: "   "}); !errors.Is(err, apperrors.ErrInvalidArgument) {
		t.Fatalf("Capture: err=%v want ErrInvalidArgument", err)
	}
	if _, err := svc.Get(context.Background(), domain.Scope{}, "QUOTE_x"); !errors.Is(err, apperrors.ErrUnauthorized) {
		t.Fatalf("Get: err=%v want ErrUnauthorized", err)
	}
}
