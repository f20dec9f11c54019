package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/taskbox/taskbox/internal/models"
)

// CreateChatSession opens a new active chat session for the given user.
func (db *Manager) CreateChatSession(ctx context.Context, userID uuid.UUID) (models.ChatSession, error) {
	pool, err := db.pool()
	if err != nil {
		return models.ChatSession{}, err
	}

	session := models.ChatSession{
		SessionID: uuid.New(),
		UserID:    userID,
		IsActive:  true,
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := pool.QueryRow(ctx,
		`INSERT INTO chat_sessions (session_id, user_id, started_at, last_interaction_at, context_data, is_active)
		 VALUES ($1, $2, now(), now(), '{}'::jsonb, TRUE)
		 RETURNING started_at, last_interaction_at`,
		session.SessionID, session.UserID,
	)
	if err := row.Scan(&session.StartedAt, &session.LastInteractionAt); err != nil {
		return models.ChatSession{}, fmt.Errorf("failed to create chat session: %v", err)
	}
	return session, nil
}

// ChatSessionByID returns the chat session with the given ID, or ErrNotFound.
func (db *Manager) ChatSessionByID(ctx context.Context, sessionID uuid.UUID) (models.ChatSession, error) {
	pool, err := db.pool()
	if err != nil {
		return models.ChatSession{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s models.ChatSession
	err = pool.QueryRow(ctx,
		`SELECT session_id, user_id, started_at, last_interaction_at, is_active
		 FROM chat_sessions WHERE session_id = $1`,
		sessionID,
	).Scan(&s.SessionID, &s.UserID, &s.StartedAt, &s.LastInteractionAt, &s.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ChatSession{}, fmt.Errorf("chat session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return models.ChatSession{}, fmt.Errorf("failed to query chat session: %v", err)
	}
	return s, nil
}

// EndChatSession marks the session inactive, scoped to its owner.
func (db *Manager) EndChatSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	pool, err := db.pool()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := pool.Exec(ctx,
		`UPDATE chat_sessions SET is_active = FALSE, last_interaction_at = now()
		 WHERE session_id = $1 AND user_id = $2`,
		sessionID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to end chat session: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chat session %s: %w", sessionID, ErrNotFound)
	}
	return nil
}

// AppendChatRecord stores one exchange between a user and the assistant.
func (db *Manager) AppendChatRecord(ctx context.Context, record models.ChatRecord) error {
	pool, err := db.pool()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = pool.Exec(ctx,
		`INSERT INTO chat_history (id, user_id, user_message, chatbot_reply, created_at, associated_task_id, session_id)
		 VALUES ($1, $2, $3, $4, now(), $5, $6)`,
		uuid.New(), record.UserID, record.UserMessage, record.ChatbotReply,
		record.AssociatedTaskID, record.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to append chat record: %v", err)
	}
	return nil
}

// ChatHistoryByUser returns the chat history of the given user in chronological order.
func (db *Manager) ChatHistoryByUser(ctx context.Context, userID uuid.UUID) ([]models.ChatRecord, error) {
	pool, err := db.pool()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := pool.Query(ctx,
		`SELECT id, user_id, user_message, chatbot_reply, created_at, associated_task_id, session_id
		 FROM chat_history WHERE user_id = $1 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat history: %v", err)
	}
	defer rows.Close()

	records := []models.ChatRecord{}
	for rows.Next() {
		var r models.ChatRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.UserMessage, &r.ChatbotReply,
			&r.Timestamp, &r.AssociatedTaskID, &r.SessionID); err != nil {
			return nil, fmt.Errorf("failed to scan chat record: %v", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chat history: %v", err)
	}
	return records, nil
}
