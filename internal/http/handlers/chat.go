package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mindfold/mindfold-backend/internal/domain"
	"github.com/mindfold/mindfold-backend/internal/http/response"
	"github.com/mindfold/mindfold-backend/internal/services"
)

type ChatHandler struct {
	chat   services.ChatService
	notes  services.NotesService
	voice  services.VoiceService
	graphs services.GraphSpaceService
}

func NewChatHandler(chat services.ChatService, notes services.NotesService, voice services.VoiceService, graphs services.GraphSpaceService) *ChatHandler {
	return &ChatHandler{chat: chat, notes: notes, voice: voice, graphs: graphs}
}

type createSessionRequest struct {
	Title    string `json:"title"`
	BranchID string `json:"branch_id"`
}

// POST /api/chat/sessions
func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	session, err := h.chat.CreateSession(c.Request.Context(), scope, req.Title)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// GET /api/chat/sessions
func (h *ChatHandler) ListSessions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	sessions, err := h.chat.ListSessions(c.Request.Context(), limit)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": sessions})
}

type renameSessionRequest struct {
	Title string `json:"title"`
}

// PATCH /api/chat/sessions/:id
func (h *ChatHandler) RenameSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	var req renameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.chat.RenameSession(c.Request.Context(), sessionID, req.Title); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"renamed": true})
}

// DELETE /api/chat/sessions/:id
func (h *ChatHandler) DeleteSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	if err := h.chat.DeleteSession(c.Request.Context(), sessionID); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

// GET /api/chat/sessions/:id/messages
func (h *ChatHandler) History(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	messages, err := h.chat.History(c.Request.Context(), sessionID, limit)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"messages": messages})
}

type sendMessageRequest struct {
	Text     string `json:"text"`
	Intent   string `json:"intent"`
	BranchID string `json:"branch_id"`
}

// POST /api/chat/sessions/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	reply, err := h.chat.SendMessage(c.Request.Context(), scope, sessionID, req.Text, domain.ParseIntent(req.Intent))
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, reply)
}

// POST /api/chat/sessions/:id/stream
// Streams typed frames as SSE data events until the answer completes.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	flusher, _ := c.Writer.(http.Flusher)

	err = h.chat.StreamMessage(c.Request.Context(), scope, sessionID, req.Text, func(frame domain.StreamFrame) {
		raw, err := json.Marshal(frame)
		if err != nil {
			return
		}
		_, _ = c.Writer.Write([]byte("data: "))
		_, _ = c.Writer.Write(raw)
		_, _ = c.Writer.Write([]byte("\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
	})
	if err != nil {
		// The error frame already went out; nothing more to send.
		c.Status(http.StatusOK)
	}
}

type digestRequest struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	BranchID  string `json:"branch_id"`
}

// POST /api/notes/digests
func (h *ChatHandler) GenerateDigest(c *gin.Context) {
	var req digestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	digest, err := h.notes.GenerateDigest(c.Request.Context(), scope, sessionID, req.Title)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"digest": digest})
}

// GET /api/notes/digests/:id
func (h *ChatHandler) GetDigest(c *gin.Context) {
	digestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_digest_id", err)
		return
	}
	view, err := h.notes.GetDigest(c.Request.Context(), digestID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, view)
}

// GET /api/notes/digests
func (h *ChatHandler) ListDigests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	digests, err := h.notes.ListDigests(c.Request.Context(), limit)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"digests": digests})
}

type startVoiceRequest struct {
	BranchID string `json:"branch_id"`
}

// POST /api/voice/sessions
func (h *ChatHandler) StartVoice(c *gin.Context) {
	var req startVoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	scope, err := h.graphs.ResolveScope(c.Request.Context(), req.BranchID)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	session, err := h.voice.Start(c.Request.Context(), scope)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"session": session})
}

// POST /api/voice/sessions/:id/end
func (h *ChatHandler) EndVoice(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_session_id", err)
		return
	}
	if err := h.voice.End(c.Request.Context(), sessionID); err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ended": true})
}

// GET /api/voice/sessions
func (h *ChatHandler) ListVoice(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	sessions, err := h.voice.List(c.Request.Context(), limit)
	if err != nil {
		response.RespondFromError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"sessions": sessions})
}
