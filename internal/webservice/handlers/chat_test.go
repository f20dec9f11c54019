package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskbox/taskbox/internal/chat"
	"github.com/taskbox/taskbox/internal/database"
	"github.com/taskbox/taskbox/internal/models"
	"github.com/taskbox/taskbox/internal/webservice/handlers"
)

type fakeChatStore struct {
	sessions map[uuid.UUID]models.ChatSession
	history  []models.ChatRecord
	count    int

	countErr error
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{sessions: make(map[uuid.UUID]models.ChatSession)}
}

func (f *fakeChatStore) CreateChatSession(_ context.Context, userID uuid.UUID) (models.ChatSession, error) {
	s := models.ChatSession{SessionID: uuid.New(), UserID: userID, StartedAt: time.Now(), IsActive: true}
	f.sessions[s.SessionID] = s
	return s, nil
}

func (f *fakeChatStore) ChatSessionByID(_ context.Context, sessionID uuid.UUID) (models.ChatSession, error) {
	s, ok := f.sessions[sessionID]
	if !ok {
		return models.ChatSession{}, database.ErrNotFound
	}
	return s, nil
}

func (f *fakeChatStore) EndChatSession(_ context.Context, sessionID, userID uuid.UUID) error {
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID {
		return database.ErrNotFound
	}
	s.IsActive = false
	f.sessions[sessionID] = s
	return nil
}

func (f *fakeChatStore) ChatHistoryByUser(_ context.Context, userID uuid.UUID) ([]models.ChatRecord, error) {
	var history []models.ChatRecord
	for _, r := range f.history {
		if r.UserID == userID {
			history = append(history, r)
		}
	}
	return history, nil
}

func (f *fakeChatStore) CountTodos(_ context.Context, _ uuid.UUID) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

type fakeAssistant struct {
	result chat.Result
	err    error

	gotMessage   string
	gotSessionID *uuid.UUID
}

func (f *fakeAssistant) ProcessMessage(_ context.Context, _ uuid.UUID, sessionID *uuid.UUID, message string) (chat.Result, error) {
	f.gotMessage = message
	f.gotSessionID = sessionID
	return f.result, f.err
}

func (f *fakeAssistant) Welcome() string {
	return "Hello! I'm Taskie!"
}

// serveChat routes the request through a mux so that path values resolve.
func serveChat(h *handlers.Chat, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", h.Message)
	mux.HandleFunc("GET /chat/history/{user_id}", h.History)
	mux.HandleFunc("POST /chat/session", h.StartSession)
	mux.HandleFunc("DELETE /chat/session/{session_id}", h.EndSession)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestChatMessage(t *testing.T) {
	t.Parallel()

	user := models.User{ID: uuid.New(), Email: "user@example.com"}
	sessionID := uuid.New()

	tests := map[string]struct {
		body      string
		assistant *fakeAssistant

		wantStatus  int
		wantSuccess bool
		wantReply   string
	}{
		"Message is processed": {
			body: `{"message": "show my tasks"}`,
			assistant: &fakeAssistant{result: chat.Result{
				Reply: "Here are your current tasks:", Action: chat.ActionRead, Success: true,
			}},
			wantStatus:  http.StatusOK,
			wantSuccess: true,
			wantReply:   "Here are your current tasks:",
		},
		"Session ID is forwarded": {
			body: `{"message": "hello", "session_id": "` + sessionID.String() + `"}`,
			assistant: &fakeAssistant{result: chat.Result{
				Reply: "Hi!", Action: chat.ActionNone, Success: true,
			}},
			wantStatus:  http.StatusOK,
			wantSuccess: true,
			wantReply:   "Hi!",
		},
		"Assistant failure degrades to an apology": {
			body:        `{"message": "show my tasks"}`,
			assistant:   &fakeAssistant{err: errors.New("database down")},
			wantStatus:  http.StatusOK,
			wantSuccess: false,
			wantReply:   "I'm sorry, I encountered an issue processing your request. Could you try again? 😊",
		},

		"Empty message is rejected": {
			body:       `{"message": ""}`,
			assistant:  &fakeAssistant{},
			wantStatus: http.StatusBadRequest,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := handlers.NewChat(newFakeChatStore(), tc.assistant)
			rr := serveChat(h, authedRequest(http.MethodPost, "/chat", tc.body, user, "token"))

			require.Equal(t, tc.wantStatus, rr.Code, "Status code should match")
			if tc.wantStatus != http.StatusOK {
				assert.Equal(t, "Message is required", decodeBody(t, rr)["detail"], "Error detail should match")
				return
			}

			body := decodeBody(t, rr)
			assert.Equal(t, tc.wantSuccess, body["success"], "Success flag should match")
			assert.Equal(t, tc.wantReply, body["reply"], "Reply should match")
		})
	}
}

func TestChatMessageForwardsSessionID(t *testing.T) {
	t.Parallel()

	user := models.User{ID: uuid.New(), Email: "user@example.com"}
	sessionID := uuid.New()
	assistant := &fakeAssistant{result: chat.Result{Reply: "Hi!", Success: true}}

	h := handlers.NewChat(newFakeChatStore(), assistant)
	rr := serveChat(h, authedRequest(http.MethodPost, "/chat",
		`{"message": "hello", "session_id": "`+sessionID.String()+`"}`, user, "token"))

	require.Equal(t, http.StatusOK, rr.Code, "Message should be processed")
	assert.Equal(t, "hello", assistant.gotMessage, "Message should reach the assistant")
	require.NotNil(t, assistant.gotSessionID, "Session ID should reach the assistant")
	assert.Equal(t, sessionID, *assistant.gotSessionID, "Session ID should match")
}

func TestChatHistory(t *testing.T) {
	t.Parallel()

	user := models.User{ID: uuid.New(), Email: "user@example.com"}

	tests := map[string]struct {
		requestedID string

		wantStatus int
	}{
		"Own history is served":        {requestedID: user.ID.String(), wantStatus: http.StatusOK},
		"Other user's history is forbidden": {requestedID: uuid.NewString(), wantStatus: http.StatusForbidden},
		"Malformed user ID is forbidden":    {requestedID: "not-a-uuid", wantStatus: http.StatusForbidden},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := newFakeChatStore()
			store.history = []models.ChatRecord{
				{ID: uuid.New(), UserID: user.ID, UserMessage: "hi", ChatbotReply: "Hello!"},
				{ID: uuid.New(), UserID: uuid.New(), UserMessage: "not yours", ChatbotReply: "..."},
			}

			h := handlers.NewChat(store, &fakeAssistant{})
			rr := serveChat(h, authedRequest(http.MethodGet, "/chat/history/"+tc.requestedID, "", user, "token"))

			require.Equal(t, tc.wantStatus, rr.Code, "Status code should match")
			body := decodeBody(t, rr)
			if tc.wantStatus != http.StatusOK {
				assert.Equal(t, "Not authorized to access this chat history", body["detail"], "Error detail should match")
				return
			}

			assert.Equal(t, true, body["success"], "Success flag should be set")
			history, ok := body["history"].([]any)
			require.True(t, ok, "History should be a list")
			assert.Len(t, history, 1, "Only the user's own records should be served")
		})
	}
}

func TestStartChatSession(t *testing.T) {
	t.Parallel()

	user := models.User{ID: uuid.New(), Email: "user@example.com"}

	tests := map[string]struct {
		store *fakeChatStore

		wantCount float64
	}{
		"Session starts with the task count": {
			store:     func() *fakeChatStore { s := newFakeChatStore(); s.count = 7; return s }(),
			wantCount: 7,
		},
		"Count failure degrades to zero": {
			store:     &fakeChatStore{sessions: make(map[uuid.UUID]models.ChatSession), countErr: errors.New("query failed")},
			wantCount: 0,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := handlers.NewChat(tc.store, &fakeAssistant{})
			rr := serveChat(h, authedRequest(http.MethodPost, "/chat/session", "", user, "token"))

			require.Equal(t, http.StatusOK, rr.Code, "Session start should succeed")
			body := decodeBody(t, rr)
			assert.Equal(t, true, body["success"], "Success flag should be set")
			assert.Equal(t, "Hello! I'm Taskie!", body["welcome_message"], "Welcome message should come from the assistant")
			assert.Equal(t, tc.wantCount, body["current_tasks_count"], "Task count should match")

			sessionID, _ := body["session_id"].(string)
			_, err := uuid.Parse(sessionID)
			assert.NoError(t, err, "Session ID should be a UUID")
		})
	}
}

func TestEndChatSession(t *testing.T) {
	t.Parallel()

	user := models.User{ID: uuid.New(), Email: "user@example.com"}
	other := models.User{ID: uuid.New(), Email: "other@example.com"}

	tests := map[string]struct {
		asUser    models.User
		sessionID func(existing uuid.UUID) string

		wantStatus int
		wantDetail string
	}{
		"Owner ends the session": {
			asUser:     user,
			sessionID:  func(existing uuid.UUID) string { return existing.String() },
			wantStatus: http.StatusOK,
		},

		"Unknown session is not found": {
			asUser:     user,
			sessionID:  func(uuid.UUID) string { return uuid.NewString() },
			wantStatus: http.StatusNotFound,
			wantDetail: "Session not found",
		},
		"Other user's session is forbidden": {
			asUser:     other,
			sessionID:  func(existing uuid.UUID) string { return existing.String() },
			wantStatus: http.StatusForbidden,
			wantDetail: "Not authorized to end this session",
		},
		"Malformed session ID is rejected": {
			asUser:     user,
			sessionID:  func(uuid.UUID) string { return "not-a-uuid" },
			wantStatus: http.StatusBadRequest,
			wantDetail: "Invalid session ID",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := newFakeChatStore()
			session, err := store.CreateChatSession(context.Background(), user.ID)
			require.NoError(t, err, "Setup: could not create session")

			h := handlers.NewChat(store, &fakeAssistant{})
			rr := serveChat(h, authedRequest(http.MethodDelete,
				"/chat/session/"+tc.sessionID(session.SessionID), "", tc.asUser, "token"))

			require.Equal(t, tc.wantStatus, rr.Code, "Status code should match")
			body := decodeBody(t, rr)
			if tc.wantDetail != "" {
				assert.Equal(t, tc.wantDetail, body["detail"], "Error detail should match")
				return
			}

			assert.Equal(t, "Session ended successfully", body["message"], "Success message should match")
			assert.False(t, store.sessions[session.SessionID].IsActive, "Session should be inactive")
		})
	}
}
