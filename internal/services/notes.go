package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	chatrepo "github.com/mindfold/mindfold-backend/internal/data/repos/chat"
	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/pkg/dbctx"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/ctxutil"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
	"github.com/mindfold/mindfold-backend/internal/platform/openai"
)

const digestSystemPrompt = `You turn a study conversation into revision notes.
Return JSON only: {"sections":[{"heading","entries":[{"body","related_concepts"}]}]}.
Keep entries short and factual; one idea per entry.`

// DigestView is a fully loaded digest for read endpoints.
type DigestView struct {
	Digest   *domain.NotesDigest    `json:"digest"`
	Sections []*domain.NotesSection `json:"sections"`
	Entries  []*domain.NotesEntry   `json:"entries"`
}

// NotesService synthesizes revision digests from chat sessions.
type NotesService interface {
	GenerateDigest(ctx context.Context, scope domain.Scope, sessionID uuid.UUID, title string) (*domain.NotesDigest, error)
	GetDigest(ctx context.Context, digestID uuid.UUID) (*DigestView, error)
	ListDigests(ctx context.Context, limit int) ([]*domain.NotesDigest, error)
}

type notesService struct {
	notes    chatrepo.NotesRepo
	messages chatrepo.MessageRepo
	sessions chatrepo.SessionRepo
	router   *openai.ModelRouter
	log      *logger.Logger
}

func NewNotesService(
	notes chatrepo.NotesRepo,
	messages chatrepo.MessageRepo,
	sessions chatrepo.SessionRepo,
	router *openai.ModelRouter,
	log *logger.Logger,
) NotesService {
	return &notesService{
		notes:    notes,
		messages: messages,
		sessions: sessions,
		router:   router,
		log:      log.With("service", "NotesService"),
	}
}

// GenerateDigest summarizes a session transcript into sectioned notes and
// persists them. The session must belong to the caller's tenant.
func (s *notesService) GenerateDigest(ctx context.Context, scope domain.Scope, sessionID uuid.UUID, title string) (*domain.NotesDigest, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.TenantID == "" {
		return nil, fmt.Errorf("generate digest: %w", apperrors.ErrUnauthorized)
	}
	dbc := dbctx.Context{Ctx: ctx}
	session, err := s.sessions.GetByID(dbc, rd.TenantID, sessionID)
	if err != nil {
		return nil, err
	}
	history, err := s.messages.ListBySession(dbc, session.ID, 200)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("generate digest: empty session: %w", apperrors.ErrInvalidArgument)
	}

	client := s.router.Client()
	if client == nil {
		return nil, fmt.Errorf("generate digest: %w", apperrors.ErrProviderUnavailable)
	}
	var transcript strings.Builder
	for _, m := range history {
		transcript.WriteString(m.Role + ": " + m.Content + "\n")
	}
	raw, err := client.GenerateJSON(ctx, digestSystemPrompt, transcript.String(), "notes_digest", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sections": map[string]any{"type": "array"},
		},
		"required": []string{"sections"},
	})
	if err != nil {
		return nil, fmt.Errorf("generate digest: %w", err)
	}
	sections := parseDigestSections(raw)
	if len(sections) == 0 {
		return nil, fmt.Errorf("generate digest: no sections produced: %w", apperrors.ErrInvalidArgument)
	}

	if strings.TrimSpace(title) == "" {
		title = "Notes for " + session.Title
	}
	digest := &domain.NotesDigest{
		ID:       uuid.New(),
		TenantID: rd.TenantID,
		UserID:   rd.UserID,
		GraphID:  scope.GraphID,
		Title:    title,
	}
	if err := s.notes.CreateDigest(dbc, digest, sections); err != nil {
		return nil, err
	}
	s.log.Info("digest created", "digest_id", digest.ID, "sections", len(sections))
	return digest, nil
}

func (s *notesService) GetDigest(ctx context.Context, digestID uuid.UUID) (*DigestView, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.TenantID == "" {
		return nil, fmt.Errorf("get digest: %w", apperrors.ErrUnauthorized)
	}
	digest, sections, entries, err := s.notes.GetDigest(dbctx.Context{Ctx: ctx}, rd.TenantID, digestID)
	if err != nil {
		return nil, err
	}
	return &DigestView{Digest: digest, Sections: sections, Entries: entries}, nil
}

func (s *notesService) ListDigests(ctx context.Context, limit int) ([]*domain.NotesDigest, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.TenantID == "" {
		return nil, fmt.Errorf("list digests: %w", apperrors.ErrUnauthorized)
	}
	return s.notes.ListDigests(dbctx.Context{Ctx: ctx}, rd.TenantID, rd.UserID, limit)
}

// parseDigestSections walks the loosely typed model reply, dropping anything
// that does not look like a section with at least one entry body.
func parseDigestSections(raw map[string]any) []chatrepo.NotesSectionInput {
	items, _ := raw["sections"].([]any)
	out := make([]chatrepo.NotesSectionInput, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		heading, _ := m["heading"].(string)
		if strings.TrimSpace(heading) == "" {
			continue
		}
		section := chatrepo.NotesSectionInput{Heading: heading}
		entries, _ := m["entries"].([]any)
		for _, e := range entries {
			em, ok := e.(map[string]any)
			if !ok {
				continue
			}
			body, _ := em["body"].(string)
			if strings.TrimSpace(body) == "" {
				continue
			}
			entry := chatrepo.NotesEntryInput{Body: body}
			if related, ok := em["related_concepts"].([]any); ok {
				for _, r := range related {
					if name, ok := r.(string); ok && name != "" {
						entry.RelatedNodeIDs = append(entry.RelatedNodeIDs, name)
					}
				}
			}
			section.Entries = append(section.Entries, entry)
		}
		if len(section.Entries) > 0 {
			out = append(out, section)
		}
	}
	return out
}
