// Package models provides the data structures persisted and served by the TaskBox service.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Priority is the importance level of a todo.
type Priority string

// Valid priority values, mirrored by a CHECK constraint on the todos table.
const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is one of the accepted priority values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// User represents a registered account.
//
// PasswordHash is never serialized.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Todo represents a single todo item owned by a user.
type Todo struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	IsCompleted bool       `json:"is_completed"`
	Priority    Priority   `json:"priority"`
	Category    string     `json:"category"`
	DueDate     *time.Time `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ChatSession represents an active or ended conversation with the assistant.
type ChatSession struct {
	SessionID         uuid.UUID `json:"session_id"`
	UserID            uuid.UUID `json:"user_id"`
	StartedAt         time.Time `json:"started_at"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
	ContextData       []byte    `json:"-"`
	IsActive          bool      `json:"is_active"`
}

// ChatRecord is one exchange (user message and assistant reply) in the chat history.
type ChatRecord struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"-"`
	UserMessage      string     `json:"user_message"`
	ChatbotReply     string     `json:"chatbot_reply"`
	Timestamp        time.Time  `json:"timestamp"`
	AssociatedTaskID *uuid.UUID `json:"associated_task_id"`
	SessionID        *uuid.UUID `json:"session_id"`
}
