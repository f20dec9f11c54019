package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/taskbox/taskbox/internal/models"
)

// NewTodo holds the fields accepted when creating a todo.
type NewTodo struct {
	Title       string
	Description string
	IsCompleted bool
	Priority    models.Priority
	Category    string
	DueDate     *time.Time
}

// TodoUpdate holds a partial update of a todo. Nil fields are left unchanged.
type TodoUpdate struct {
	Title       *string
	Description *string
	IsCompleted *bool
	Priority    *models.Priority
	Category    *string
	DueDate     *time.Time
}

// TodoFilter narrows the result of TodosByUser.
//
// DueDate accepts the buckets "today", "upcoming", "overdue", or a specific
// date in YYYY-MM-DD format. An unparsable date is ignored.
type TodoFilter struct {
	Search   string
	Status   *bool
	Priority models.Priority
	Category string
	DueDate  string
	Offset   int
	Limit    int
}

const todoColumns = `id, user_id, title, description, is_completed, priority, category, due_date, created_at, updated_at`

// CreateTodo inserts a new todo owned by the given user.
func (db *Manager) CreateTodo(ctx context.Context, userID uuid.UUID, t NewTodo) (models.Todo, error) {
	pool, err := db.pool()
	if err != nil {
		return models.Todo{}, err
	}

	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if !t.Priority.Valid() {
		return models.Todo{}, fmt.Errorf("invalid priority %q", t.Priority)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := pool.QueryRow(ctx,
		`INSERT INTO todos (id, user_id, title, description, is_completed, priority, category, due_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		 RETURNING `+todoColumns,
		uuid.New(), userID, t.Title, t.Description, t.IsCompleted, t.Priority, t.Category, t.DueDate,
	)
	return scanTodo(row)
}

// TodoByID returns the todo with the given ID if it belongs to the given user.
func (db *Manager) TodoByID(ctx context.Context, todoID, userID uuid.UUID) (models.Todo, error) {
	pool, err := db.pool()
	if err != nil {
		return models.Todo{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanTodo(pool.QueryRow(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1 AND user_id = $2`,
		todoID, userID,
	))
}

// TodosByUser returns the todos owned by the given user, filtered and paginated.
func (db *Manager) TodosByUser(ctx context.Context, userID uuid.UUID, filter TodoFilter) ([]models.Todo, error) {
	pool, err := db.pool()
	if err != nil {
		return nil, err
	}

	query, args := buildTodosQuery(userID, filter)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query todos: %v", err)
	}
	defer rows.Close()

	todos := []models.Todo{}
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read todos: %v", err)
	}
	return todos, nil
}

// CountTodos returns the number of todos owned by the given user.
func (db *Manager) CountTodos(ctx context.Context, userID uuid.UUID) (int, error) {
	pool, err := db.pool()
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM todos WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count todos: %v", err)
	}
	return count, nil
}

// UpdateTodo applies a partial update to the todo with the given ID, scoped to
// its owner. Returns ErrNotFound when the todo does not exist or belongs to
// another user.
func (db *Manager) UpdateTodo(ctx context.Context, todoID, userID uuid.UUID, u TodoUpdate) (models.Todo, error) {
	pool, err := db.pool()
	if err != nil {
		return models.Todo{}, err
	}

	sets := []string{"updated_at = now()"}
	args := []any{todoID, userID}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.IsCompleted != nil {
		add("is_completed", *u.IsCompleted)
	}
	if u.Priority != nil {
		if !u.Priority.Valid() {
			return models.Todo{}, fmt.Errorf("invalid priority %q", *u.Priority)
		}
		add("priority", *u.Priority)
	}
	if u.Category != nil {
		add("category", *u.Category)
	}
	if u.DueDate != nil {
		add("due_date", *u.DueDate)
	}

	query := fmt.Sprintf(
		`UPDATE todos SET %s WHERE id = $1 AND user_id = $2 RETURNING %s`,
		strings.Join(sets, ", "), todoColumns,
	)

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanTodo(pool.QueryRow(ctx, query, args...))
}

// ToggleTodo flips the completion status of the todo with the given ID.
func (db *Manager) ToggleTodo(ctx context.Context, todoID, userID uuid.UUID) (models.Todo, error) {
	pool, err := db.pool()
	if err != nil {
		return models.Todo{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return scanTodo(pool.QueryRow(ctx,
		`UPDATE todos SET is_completed = NOT is_completed, updated_at = now()
		 WHERE id = $1 AND user_id = $2 RETURNING `+todoColumns,
		todoID, userID,
	))
}

// DeleteTodo removes the todo with the given ID, scoped to its owner.
func (db *Manager) DeleteTodo(ctx context.Context, todoID, userID uuid.UUID) error {
	pool, err := db.pool()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := pool.Exec(ctx, `DELETE FROM todos WHERE id = $1 AND user_id = $2`, todoID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete todo: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("todo %s: %w", todoID, ErrNotFound)
	}
	return nil
}

func buildTodosQuery(userID uuid.UUID, filter TodoFilter) (query string, args []any) {
	conds := []string{"user_id = $1"}
	args = []any{userID}
	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Search != "" {
		add("title ILIKE $%d", "%"+filter.Search+"%")
	}
	if filter.Status != nil {
		add("is_completed = $%d", *filter.Status)
	}
	if filter.Priority != "" {
		add("priority = $%d", filter.Priority)
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}

	switch filter.DueDate {
	case "":
	case "today":
		conds = append(conds, "due_date = CURRENT_DATE")
	case "upcoming":
		conds = append(conds, "due_date > CURRENT_DATE")
	case "overdue":
		conds = append(conds, "due_date < CURRENT_DATE")
	default:
		if date, err := time.Parse("2006-01-02", filter.DueDate); err == nil {
			add("due_date = $%d", date)
		}
		// unparsable dates are ignored
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(filter.Offset, 0)

	query = `SELECT ` + todoColumns + ` FROM todos WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)
	return query, args
}

func scanTodo(row pgx.Row) (models.Todo, error) {
	var t models.Todo
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &t.IsCompleted,
		&t.Priority, &t.Category, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Todo{}, fmt.Errorf("todo: %w", ErrNotFound)
	}
	if err != nil {
		return models.Todo{}, fmt.Errorf("failed to scan todo: %v", err)
	}
	return t, nil
}
