package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/taskbox/taskbox/internal/database"
	"github.com/taskbox/taskbox/internal/models"
	"github.com/taskbox/taskbox/internal/webservice/middleware"
)

type todoStore interface {
	CreateTodo(ctx context.Context, userID uuid.UUID, t database.NewTodo) (models.Todo, error)
	TodoByID(ctx context.Context, todoID, userID uuid.UUID) (models.Todo, error)
	TodosByUser(ctx context.Context, userID uuid.UUID, filter database.TodoFilter) ([]models.Todo, error)
	UpdateTodo(ctx context.Context, todoID, userID uuid.UUID, u database.TodoUpdate) (models.Todo, error)
	ToggleTodo(ctx context.Context, todoID, userID uuid.UUID) (models.Todo, error)
	DeleteTodo(ctx context.Context, todoID, userID uuid.UUID) error
}

// Todos bundles the todo CRUD handlers. All of them require authentication
// and only ever operate on the authenticated user's todos.
type Todos struct {
	store           todoStore
	defaultPageSize int
	maxPageSize     int
}

// NewTodos creates the todo handlers with the given pagination bounds.
func NewTodos(store todoStore, defaultPageSize, maxPageSize int) *Todos {
	return &Todos{
		store:           store,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

type todoCreateRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	IsCompleted bool            `json:"is_completed"`
	Priority    models.Priority `json:"priority"`
	Category    string          `json:"category"`
	DueDate     *string         `json:"due_date"`
}

type todoUpdateRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	IsCompleted *bool            `json:"is_completed"`
	Priority    *models.Priority `json:"priority"`
	Category    *string          `json:"category"`
	DueDate     *string          `json:"due_date"`
}

// Create handles POST /todos.
func (h *Todos) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req todoCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		respondDetail(w, http.StatusBadRequest, "Title is required")
		return
	}
	if req.Priority != "" && !req.Priority.Valid() {
		respondDetail(w, http.StatusBadRequest, "Invalid priority value")
		return
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid due date, expected YYYY-MM-DD")
		return
	}

	todo, err := h.store.CreateTodo(r.Context(), user.ID, database.NewTodo{
		Title:       req.Title,
		Description: req.Description,
		IsCompleted: req.IsCompleted,
		Priority:    req.Priority,
		Category:    req.Category,
		DueDate:     dueDate,
	})
	if err != nil {
		slog.Error("Todo creation failed", "user_id", user.ID, "err", err)
		respondDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusCreated, todo)
}

// List handles GET /todos with optional filtering and pagination.
func (h *Todos) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	q := r.URL.Query()
	filter := database.TodoFilter{
		Search:   q.Get("search"),
		Priority: models.Priority(q.Get("priority")),
		Category: q.Get("category"),
		DueDate:  q.Get("due_date"),
		Offset:   intParam(q.Get("skip"), 0),
		Limit:    intParam(q.Get("limit"), h.defaultPageSize),
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		respondDetail(w, http.StatusBadRequest, "Invalid priority value")
		return
	}
	if s := q.Get("status_filter"); s != "" {
		status, err := strconv.ParseBool(s)
		if err != nil {
			respondDetail(w, http.StatusBadRequest, "Invalid status filter, expected true or false")
			return
		}
		filter.Status = &status
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit < 1 || filter.Limit > h.maxPageSize {
		filter.Limit = h.maxPageSize
	}

	todos, err := h.store.TodosByUser(r.Context(), user.ID, filter)
	if err != nil {
		slog.Error("Todo listing failed", "user_id", user.ID, "err", err)
		respondDetail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, todos)
}

// Get handles GET /todos/{todo_id}.
func (h *Todos) Get(w http.ResponseWriter, r *http.Request) {
	user, todoID, ok := h.requestTarget(w, r)
	if !ok {
		return
	}

	todo, err := h.store.TodoByID(r.Context(), todoID, user.ID)
	if h.respondTodoErr(w, user.ID, todoID, err) {
		return
	}
	respondJSON(w, http.StatusOK, todo)
}

// Update handles PUT /todos/{todo_id} with a partial update body.
func (h *Todos) Update(w http.ResponseWriter, r *http.Request) {
	user, todoID, ok := h.requestTarget(w, r)
	if !ok {
		return
	}

	var req todoUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Priority != nil && !req.Priority.Valid() {
		respondDetail(w, http.StatusBadRequest, "Invalid priority value")
		return
	}
	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid due date, expected YYYY-MM-DD")
		return
	}

	todo, err := h.store.UpdateTodo(r.Context(), todoID, user.ID, database.TodoUpdate{
		Title:       req.Title,
		Description: req.Description,
		IsCompleted: req.IsCompleted,
		Priority:    req.Priority,
		Category:    req.Category,
		DueDate:     dueDate,
	})
	if h.respondTodoErr(w, user.ID, todoID, err) {
		return
	}
	respondJSON(w, http.StatusOK, todo)
}

// Toggle handles PATCH /todos/{todo_id}/toggle.
func (h *Todos) Toggle(w http.ResponseWriter, r *http.Request) {
	user, todoID, ok := h.requestTarget(w, r)
	if !ok {
		return
	}

	todo, err := h.store.ToggleTodo(r.Context(), todoID, user.ID)
	if h.respondTodoErr(w, user.ID, todoID, err) {
		return
	}
	respondJSON(w, http.StatusOK, todo)
}

// Delete handles DELETE /todos/{todo_id}.
func (h *Todos) Delete(w http.ResponseWriter, r *http.Request) {
	user, todoID, ok := h.requestTarget(w, r)
	if !ok {
		return
	}

	err := h.store.DeleteTodo(r.Context(), todoID, user.ID)
	if h.respondTodoErr(w, user.ID, todoID, err) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestTarget resolves the authenticated user and the todo ID from the
// request path, answering the appropriate error itself when either is missing.
func (h *Todos) requestTarget(w http.ResponseWriter, r *http.Request) (models.User, uuid.UUID, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		respondDetail(w, http.StatusUnauthorized, "Not authenticated")
		return models.User{}, uuid.Nil, false
	}

	todoID, err := uuid.Parse(r.PathValue("todo_id"))
	if err != nil {
		respondDetail(w, http.StatusBadRequest, "Invalid todo ID")
		return models.User{}, uuid.Nil, false
	}
	return user, todoID, true
}

// respondTodoErr writes the error response for a store failure and reports
// whether an error was handled.
func (h *Todos) respondTodoErr(w http.ResponseWriter, userID, todoID uuid.UUID, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, database.ErrNotFound) {
		respondDetail(w, http.StatusNotFound, "Todo not found")
		return true
	}
	slog.Error("Todo operation failed", "user_id", userID, "todo_id", todoID, "err", err)
	respondDetail(w, http.StatusInternalServerError, "Internal server error")
	return true
}

func intParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}

// parseDueDate parses an optional YYYY-MM-DD due date.
func parseDueDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q: %v", *s, err)
	}
	return &t, nil
}
