package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/taskbox/taskbox/internal/chat"
	"github.com/taskbox/taskbox/internal/database"
	"github.com/taskbox/taskbox/internal/models"
	"github.com/taskbox/taskbox/internal/webservice/middleware"
)

type chatStore interface {
	CreateChatSession(ctx context.Context, userID uuid.UUID) (models.ChatSession, error)
	ChatSessionByID(ctx context.Context, sessionID uuid.UUID) (models.ChatSession, error)
	EndChatSession(ctx context.Context, sessionID, userID uuid.UUID) error
	ChatHistoryByUser(ctx context.Context, userID uuid.UUID) ([]models.ChatRecord, error)
	CountTodos(ctx context.Context, userID uuid.UUID) (int, error)
}

type assistant interface {
	ProcessMessage(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, message string) (chat.Result, error)
	Welcome() string
}

// Chat bundles the assistant and chat session handlers. All of them require
// authentication; the acting user always comes from the access token, never
// from the request body.
type Chat struct {
	store     chatStore
	assistant assistant
}

// NewChat creates the chat handlers.
func NewChat(store chatStore, assistant assistant) *Chat {
	return &Chat{
		store:     store,
		assistant: assistant,
	}
}

type chatMessageRequest struct {
	Message   string     `json:"message"`
	SessionID *uuid.UUID `json:"session_id"`
}

// Message handles POST /chat.
//
// An assistant failure is answered with a 200 carrying an apologetic reply so
// conversational clients never have to special case errors.
func (h *Chat) Message(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req chatMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Message == "" {
		respondDetail(w, http.StatusBadRequest, "Message is required")
		return
	}

	result, err := h.assistant.ProcessMessage(r.Context(), user.ID, req.SessionID, req.Message)
	if err != nil {
		slog.Error("Chat message processing failed", "user_id", user.ID, "err", err)
		result = chat.Result{
			Reply:        "I'm sorry, I encountered an issue processing your request. Could you try again? 😊",
			Action:       chat.ActionNone,
			UpdatedTasks: []models.Todo{},
			Success:      false,
		}
	}

	respondJSON(w, http.StatusOK, result)
}

// History handles GET /chat/history/{user_id}. Users can only read their own
// history.
func (h *Chat) History(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	requested, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil || requested != user.ID {
		respondDetail(w, http.StatusForbidden, "Not authorized to access this chat history")
		return
	}

	history, err := h.store.ChatHistoryByUser(r.Context(), user.ID)
	if err != nil {
		slog.Error("Chat history retrieval failed", "user_id", user.ID, "err", err)
		respondDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"history": history,
		"success": true,
	})
}

// StartSession handles POST /chat/session.
func (h *Chat) StartSession(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	session, err := h.store.CreateChatSession(r.Context(), user.ID)
	if err != nil {
		slog.Error("Chat session creation failed", "user_id", user.ID, "err", err)
		respondDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	count, err := h.store.CountTodos(r.Context(), user.ID)
	if err != nil {
		slog.Warn("Could not count tasks for new chat session", "user_id", user.ID, "err", err)
		count = 0
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"session_id":          session.SessionID.String(),
		"welcome_message":     h.assistant.Welcome(),
		"current_tasks_count": count,
		"success":             true,
	})
}

// EndSession handles DELETE /chat/session/{session_id}. Only the session
// owner may end it.
func (h *Chat) EndSession(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	sessionID, err := uuid.Parse(r.PathValue("session_id"))
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	session, err := h.store.ChatSessionByID(r.Context(), sessionID)
	if errors.Is(err, database.ErrNotFound) {
		respondDetail(w, http.StatusNotFound, "Session not found")
		return
	}
	if err != nil {
		slog.Error("Chat session lookup failed", "session_id", sessionID, "err", err)
		respondDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if session.UserID != user.ID {
		respondDetail(w, http.StatusForbidden, "Not authorized to end this session")
		return
	}

	if err := h.store.EndChatSession(r.Context(), sessionID, user.ID); err != nil {
		slog.Error("Chat session termination failed", "session_id", sessionID, "err", err)
		respondDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Session ended successfully",
		"success": true,
	})
}
