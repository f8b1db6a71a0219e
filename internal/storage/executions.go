package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"conductor/internal/executor"
	"conductor/internal/tools"
)

// Execution is a persisted tool call.
type Execution struct {
	executor.Result
	ConversationID string `json:"conversation_id,omitempty"`
}

// ExecutionFilter narrows ListExecutions.
type ExecutionFilter struct {
	Tool           string
	ConversationID string
	ErrorsOnly     bool
	Limit          int
}

// ToolUsage aggregates persisted executions of one tool.
type ToolUsage struct {
	Tool       string    `json:"tool"`
	Calls      int       `json:"calls"`
	Failures   int       `json:"failures"`
	TotalMs    int64     `json:"total_ms"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// AverageMs returns the mean duration.
func (u ToolUsage) AverageMs() float64 {
	if u.Calls == 0 {
		return 0
	}
	return float64(u.TotalMs) / float64(u.Calls)
}

// Recorder persists executor results. It satisfies executor.Recorder.
type Recorder struct {
	db *DB
}

// NewRecorder returns a Recorder writing to db.
func NewRecorder(db *DB) *Recorder {
	return &Recorder{db: db}
}

type conversationKey struct{}

// WithConversationID tags executions recorded under ctx.
func WithConversationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, conversationKey{}, id)
}

// ConversationID returns the id set by WithConversationID, or "".
func ConversationID(ctx context.Context) string {
	id, _ := ctx.Value(conversationKey{}).(string)
	return id
}

// Record implements executor.Recorder.
func (r *Recorder) Record(ctx context.Context, res executor.Result) error {
	return r.db.InsertExecution(ctx, Execution{Result: res, ConversationID: ConversationID(ctx)})
}

// InsertExecution stores one execution. A missing id or start time is filled in.
func (db *DB) InsertExecution(ctx context.Context, e Execution) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	args := "{}"
	if len(e.Arguments) > 0 {
		data, err := json.Marshal(e.Arguments)
		if err != nil {
			return fmt.Errorf("encode arguments: %w", err)
		}
		args = string(data)
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO tool_executions
			(id, conversation_id, tool, arguments, result, is_error, error_kind, duration_ms, result_length, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ConversationID, e.Tool, args, e.Text, boolInt(e.IsError), string(e.ErrorKind),
		e.DurationMs, e.ResultLength, e.StartedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// ListExecutions returns executions newest first.
func (db *DB) ListExecutions(ctx context.Context, f ExecutionFilter) ([]Execution, error) {
	var (
		where []string
		args  []any
	)
	if f.Tool != "" {
		where = append(where, "tool = ?")
		args = append(args, f.Tool)
	}
	if f.ConversationID != "" {
		where = append(where, "conversation_id = ?")
		args = append(args, f.ConversationID)
	}
	if f.ErrorsOnly {
		where = append(where, "is_error = 1")
	}

	query := `SELECT id, conversation_id, tool, arguments, result, is_error, error_kind, duration_ms, result_length, started_at
		FROM tool_executions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var (
			e         Execution
			argsJSON  string
			isError   int
			errorKind string
			started   int64
		)
		if err := rows.Scan(&e.ID, &e.ConversationID, &e.Tool, &argsJSON, &e.Text, &isError, &errorKind,
			&e.DurationMs, &e.ResultLength, &started); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(argsJSON), &e.Arguments); err != nil {
			e.Arguments = map[string]any{}
		}
		e.IsError = isError != 0
		e.ErrorKind = tools.ErrorKind(errorKind)
		e.StartedAt = time.UnixMilli(started)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UsageSummary aggregates executions per tool, sorted by tool name.
func (db *DB) UsageSummary(ctx context.Context) ([]ToolUsage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tool, COUNT(*), COALESCE(SUM(is_error), 0), COALESCE(SUM(duration_ms), 0), MAX(started_at)
		FROM tool_executions GROUP BY tool ORDER BY tool`)
	if err != nil {
		return nil, fmt.Errorf("usage summary: %w", err)
	}
	defer rows.Close()

	var out []ToolUsage
	for rows.Next() {
		var (
			u    ToolUsage
			last int64
		)
		if err := rows.Scan(&u.Tool, &u.Calls, &u.Failures, &u.TotalMs, &last); err != nil {
			return nil, err
		}
		u.LastUsedAt = time.UnixMilli(last)
		out = append(out, u)
	}
	return out, rows.Err()
}

// ClearExecutions deletes every execution and returns the count removed.
func (db *DB) ClearExecutions(ctx context.Context) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM tool_executions")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PruneBefore deletes executions and conversations older than cutoff.
func (db *DB) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	err := db.WithTx(func(tx *Tx) error {
		for _, q := range []string{
			"DELETE FROM tool_executions WHERE started_at < ?",
			"DELETE FROM conversations WHERE created_at < ?",
		} {
			res, err := tx.ExecContext(ctx, q, cutoff.UnixMilli())
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return total, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ executor.Recorder = (*Recorder)(nil)
