package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	chatrepo "github.com/mindfold/mindfold-backend/internal/data/repos/chat"
	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/pkg/dbctx"
	apperrors "github.com/mindfold/mindfold-backend/internal/pkg/errors"
	"github.com/mindfold/mindfold-backend/internal/platform/ctxutil"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
	"github.com/mindfold/mindfold-backend/internal/platform/openai"
)

const (
	usageKindChat      = "chat_message"
	defaultDailyLimit  = 200
	historyWindowTurns = 12
)

const chatSystemPrompt = `You are a study companion answering from the user's own knowledge graph.
Ground every statement in the supplied context block. When the context says no
evidence was found, say so plainly instead of guessing.`

// ChatReply is the assistant's answer plus the grounding used to produce it.
type ChatReply struct {
	SessionID uuid.UUID           `json:"session_id"`
	Message   *domain.ChatMessage `json:"message"`
	Grounding *GraphRAGContext    `json:"grounding,omitempty"`
}

// ChatService owns relational chat state and the grounded answer loop.
type ChatService interface {
	CreateSession(ctx context.Context, scope domain.Scope, title string) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, limit int) ([]*domain.ChatSession, error)
	RenameSession(ctx context.Context, sessionID uuid.UUID, title string) error
	DeleteSession(ctx context.Context, sessionID uuid.UUID) error
	History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
	SendMessage(ctx context.Context, scope domain.Scope, sessionID uuid.UUID, text string, intent domain.Intent) (*ChatReply, error)
	StreamMessage(ctx context.Context, scope domain.Scope, sessionID uuid.UUID, text string, onFrame func(domain.StreamFrame)) error
}

type chatService struct {
	db         *gorm.DB
	sessions   chatrepo.SessionRepo
	messages   chatrepo.MessageRepo
	usage      chatrepo.UsageRepo
	retrieval  RetrievalService
	router     *openai.ModelRouter
	log        *logger.Logger
	dailyLimit int64
}

func NewChatService(
	db *gorm.DB,
	sessions chatrepo.SessionRepo,
	messages chatrepo.MessageRepo,
	usage chatrepo.UsageRepo,
	retrievalSvc RetrievalService,
	router *openai.ModelRouter,
	log *logger.Logger,
	dailyLimit int64,
) ChatService {
	if dailyLimit <= 0 {
		dailyLimit = defaultDailyLimit
	}
	return &chatService{
		db:         db,
		sessions:   sessions,
		messages:   messages,
		usage:      usage,
		retrieval:  retrievalSvc,
		router:     router,
		log:        log.With("service", "ChatService"),
		dailyLimit: dailyLimit,
	}
}

func (s *chatService) identity(ctx context.Context) (*ctxutil.RequestData, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || strings.TrimSpace(rd.TenantID) == "" {
		return nil, fmt.Errorf("chat: %w", apperrors.ErrUnauthorized)
	}
	return rd, nil
}

func (s *chatService) CreateSession(ctx context.Context, scope domain.Scope, title string) (*domain.ChatSession, error) {
	rd, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	row := &domain.ChatSession{
		ID:       uuid.New(),
		TenantID: rd.TenantID,
		UserID:   rd.UserID,
		GraphID:  scope.GraphID,
		BranchID: scope.BranchID,
		Title:    strings.TrimSpace(title),
	}
	if row.Title == "" {
		row.Title = "New session"
	}
	if err := s.sessions.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *chatService) ListSessions(ctx context.Context, limit int) ([]*domain.ChatSession, error) {
	rd, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	return s.sessions.ListByUser(dbctx.Context{Ctx: ctx}, rd.TenantID, rd.UserID, limit)
}

func (s *chatService) RenameSession(ctx context.Context, sessionID uuid.UUID, title string) error {
	rd, err := s.identity(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("rename session: empty title: %w", apperrors.ErrInvalidArgument)
	}
	return s.sessions.Rename(dbctx.Context{Ctx: ctx}, rd.TenantID, sessionID, title)
}

func (s *chatService) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	rd, err := s.identity(ctx)
	if err != nil {
		return err
	}
	return s.sessions.Delete(dbctx.Context{Ctx: ctx}, rd.TenantID, sessionID)
}

func (s *chatService) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.ChatMessage, error) {
	rd, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.GetByID(dbctx.Context{Ctx: ctx}, rd.TenantID, sessionID); err != nil {
		return nil, err
	}
	return s.messages.ListBySession(dbctx.Context{Ctx: ctx}, sessionID, limit)
}

// SendMessage grounds the user's question against the graph, generates an
// answer, and persists both turns. The daily usage counter gates the whole
// operation; a tenant over quota gets an error before any model call.
func (s *chatService) SendMessage(ctx context.Context, scope domain.Scope, sessionID uuid.UUID, text string, intent domain.Intent) (*ChatReply, error) {
	rd, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("send message: empty text: %w", apperrors.ErrInvalidArgument)
	}
	dbc := dbctx.Context{Ctx: ctx}
	session, err := s.sessions.GetByID(dbc, rd.TenantID, sessionID)
	if err != nil {
		return nil, err
	}

	day := time.Now().UTC().Format("2006-01-02")
	used, err := s.usage.CountForDay(dbc, rd.TenantID, usageKindChat, day)
	if err != nil {
		return nil, err
	}
	if used >= s.dailyLimit {
		return nil, fmt.Errorf("send message: daily limit %d reached: %w", s.dailyLimit, apperrors.ErrInvalidArgument)
	}

	grounding, err := s.retrieval.ContextForMessage(ctx, scope, text, ContextOptions{Strictness: domain.StrictnessMedium})
	if err != nil {
		s.log.Warn("retrieval failed, answering without grounding", "session_id", sessionID, "error", err)
		grounding = &GraphRAGContext{ContextText: "No graph evidence found for this question."}
	}

	answer, err := s.generate(ctx, sessionID, text, grounding.ContextText)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	userMsg := &domain.ChatMessage{
		SessionID: session.ID,
		Role:      "user",
		Content:   text,
		Intent:    string(intent),
		CreatedAt: now,
	}
	assistantMsg := &domain.ChatMessage{
		SessionID: session.ID,
		Role:      "assistant",
		Content:   answer,
		CreatedAt: now.Add(time.Millisecond),
	}
	if err := s.messages.Append(dbc, []*domain.ChatMessage{userMsg, assistantMsg}); err != nil {
		return nil, err
	}
	if err := s.usage.Increment(dbc, rd.TenantID, usageKindChat, 1); err != nil {
		s.log.Warn("usage increment failed", "tenant_id", rd.TenantID, "error", err)
	}

	return &ChatReply{
		SessionID: session.ID,
		Message:   assistantMsg,
		Grounding: grounding,
	}, nil
}

// StreamMessage is SendMessage over the typed frame protocol: chunk frames
// carry answer deltas, the done frame carries grounding metadata. The
// transcript is persisted after the stream completes.
func (s *chatService) StreamMessage(ctx context.Context, scope domain.Scope, sessionID uuid.UUID, text string, onFrame func(domain.StreamFrame)) error {
	rd, err := s.identity(ctx)
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("stream message: empty text: %w", apperrors.ErrInvalidArgument)
	}
	dbc := dbctx.Context{Ctx: ctx}
	session, err := s.sessions.GetByID(dbc, rd.TenantID, sessionID)
	if err != nil {
		return err
	}
	client := s.router.Client()
	if client == nil {
		return fmt.Errorf("stream message: %w", apperrors.ErrProviderUnavailable)
	}

	onFrame(domain.StreamFrame{Type: "tool_status", ToolName: "retrieve", ToolStatus: "running"})
	grounding, err := s.retrieval.ContextForMessage(ctx, scope, text, ContextOptions{Strictness: domain.StrictnessMedium})
	if err != nil {
		s.log.Warn("retrieval failed, streaming without grounding", "session_id", sessionID, "error", err)
		grounding = &GraphRAGContext{ContextText: "No graph evidence found for this question."}
	}
	onFrame(domain.StreamFrame{Type: "tool_status", ToolName: "retrieve", ToolStatus: "done",
		Meta: map[string]any{"has_evidence": grounding.HasEvidence, "claims": len(grounding.ClaimIDs)}})

	history, err := s.messages.ListBySession(dbc, session.ID, historyWindowTurns)
	if err != nil {
		s.log.Warn("history load failed", "session_id", sessionID, "error", err)
	}
	messages := []openai.Message{{Role: "system", Content: chatSystemPrompt}}
	for _, m := range history {
		messages = append(messages, openai.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.Message{
		Role:    "user",
		Content: "Context:\n" + grounding.ContextText + "\n\nQuestion: " + text,
	})

	answer, err := client.StreamText(ctx, s.router.ModelFor(openai.TaskChatFast), messages, openai.CompletionOptions{},
		func(delta string) {
			onFrame(domain.StreamFrame{Type: "chunk", Delta: delta})
		}, nil)
	if err != nil {
		onFrame(domain.StreamFrame{Type: "error", Error: err.Error()})
		return fmt.Errorf("stream message: %w", err)
	}

	now := time.Now().UTC()
	rows := []*domain.ChatMessage{
		{SessionID: session.ID, Role: "user", Content: text, CreatedAt: now},
		{SessionID: session.ID, Role: "assistant", Content: strings.TrimSpace(answer), CreatedAt: now.Add(time.Millisecond)},
	}
	if err := s.messages.Append(dbc, rows); err != nil {
		s.log.Warn("transcript persist failed", "session_id", sessionID, "error", err)
	}
	if err := s.usage.Increment(dbc, rd.TenantID, usageKindChat, 1); err != nil {
		s.log.Warn("usage increment failed", "tenant_id", rd.TenantID, "error", err)
	}
	onFrame(domain.StreamFrame{Type: "done", Meta: map[string]any{
		"session_id": session.ID.String(),
		"claim_ids":  grounding.ClaimIDs,
	}})
	return nil
}

func (s *chatService) generate(ctx context.Context, sessionID uuid.UUID, question, contextText string) (string, error) {
	client := s.router.Client()
	if client == nil {
		return "", fmt.Errorf("send message: %w", apperrors.ErrProviderUnavailable)
	}
	history, err := s.messages.ListBySession(dbctx.Context{Ctx: ctx}, sessionID, historyWindowTurns)
	if err != nil {
		s.log.Warn("history load failed", "session_id", sessionID, "error", err)
	}
	messages := []openai.Message{{Role: "system", Content: chatSystemPrompt}}
	for _, m := range history {
		messages = append(messages, openai.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, openai.Message{
		Role:    "user",
		Content: "Context:\n" + contextText + "\n\nQuestion: " + question,
	})
	answer, _, err := client.Complete(ctx, s.router.ModelFor(openai.TaskChatFast), messages, openai.CompletionOptions{})
	if err != nil {
		return "", fmt.Errorf("send message: generate: %w", err)
	}
	return strings.TrimSpace(answer), nil
}
