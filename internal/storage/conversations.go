package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"conductor/internal/runner"
)

// Conversation is the stored summary of a finished Run.
type Conversation struct {
	ID             string          `json:"id"`
	Mode           string          `json:"mode"`
	Message        string          `json:"message"`
	Answer         string          `json:"answer"`
	State          string          `json:"state"`
	Rounds         int             `json:"rounds"`
	HitRoundLimit  bool            `json:"hit_round_limit"`
	Plan           json.RawMessage `json:"plan,omitempty"`
	FileOperations json.RawMessage `json:"file_operations"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewConversation builds the stored form of res.
func NewConversation(req runner.Request, res *runner.Result) (*Conversation, error) {
	c := &Conversation{
		ID:            res.ConversationID,
		Mode:          string(req.Mode),
		Message:       req.Message,
		Answer:        res.Answer,
		State:         res.State.String(),
		Rounds:        len(res.Rounds),
		HitRoundLimit: res.HitRoundLimit,
		CreatedAt:     time.Now(),
	}
	if res.Plan != nil {
		data, err := json.Marshal(res.Plan)
		if err != nil {
			return nil, fmt.Errorf("encode plan: %w", err)
		}
		c.Plan = data
	}
	ops, err := json.Marshal(res.FileOperations)
	if err != nil {
		return nil, fmt.Errorf("encode file operations: %w", err)
	}
	c.FileOperations = ops
	return c, nil
}

// SaveConversation inserts c, replacing a previous record with the same id.
func (db *DB) SaveConversation(ctx context.Context, c *Conversation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	ops := string(c.FileOperations)
	if ops == "" || ops == "null" {
		ops = "[]"
	}
	_, err := db.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversations
			(id, mode, message, answer, state, rounds, hit_round_limit, plan, file_operations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Mode, c.Message, c.Answer, c.State, c.Rounds, boolInt(c.HitRoundLimit),
		string(c.Plan), ops, c.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

const conversationColumns = `id, mode, message, answer, state, rounds, hit_round_limit, plan, file_operations, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanConversation(s scanner) (*Conversation, error) {
	var (
		c       Conversation
		limit   int
		plan    string
		ops     string
		created int64
	)
	if err := s.Scan(&c.ID, &c.Mode, &c.Message, &c.Answer, &c.State, &c.Rounds, &limit, &plan, &ops, &created); err != nil {
		return nil, err
	}
	c.HitRoundLimit = limit != 0
	if plan != "" {
		c.Plan = json.RawMessage(plan)
	}
	c.FileOperations = json.RawMessage(ops)
	c.CreatedAt = time.UnixMilli(created)
	return &c, nil
}

// GetConversation returns the conversation with id or ErrNotFound.
func (db *DB) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	row := db.QueryRowContext(ctx, "SELECT "+conversationColumns+" FROM conversations WHERE id = ?", id)
	c, err := scanConversation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListConversations returns the most recent conversations first.
func (db *DB) ListConversations(ctx context.Context, limit int) ([]*Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteConversation removes a conversation and its executions.
func (db *DB) DeleteConversation(ctx context.Context, id string) error {
	return db.WithTx(func(tx *Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM tool_executions WHERE conversation_id = ?", id)
		return err
	})
}
