package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/executor"
	"conductor/internal/tools"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func result(tool string, failed bool, ms int64, at time.Time) executor.Result {
	r := executor.Result{
		Tool:         tool,
		Arguments:    map[string]any{"path": "a.txt"},
		Text:         "ok",
		DurationMs:   ms,
		ResultLength: 2,
		StartedAt:    at,
	}
	if failed {
		r.IsError = true
		r.ErrorKind = tools.ErrorExecution
		r.Text = "boom"
	}
	return r
}

func TestRecorder_Record(t *testing.T) {
	db := openTestDB(t)
	rec := NewRecorder(db)
	ctx := WithConversationID(context.Background(), "conv-1")
	at := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, rec.Record(ctx, result(tools.NameReadFile, false, 12, at)))

	got, err := db.ListExecutions(context.Background(), ExecutionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	e := got[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "conv-1", e.ConversationID)
	assert.Equal(t, tools.NameReadFile, e.Tool)
	assert.Equal(t, map[string]any{"path": "a.txt"}, e.Arguments)
	assert.Equal(t, "ok", e.Text)
	assert.False(t, e.IsError)
	assert.Equal(t, int64(12), e.DurationMs)
	assert.True(t, at.Equal(e.StartedAt))
}

func TestListExecutions_Filters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, db.InsertExecution(ctx, Execution{Result: result(tools.NameReadFile, false, 5, base), ConversationID: "a"}))
	require.NoError(t, db.InsertExecution(ctx, Execution{Result: result(tools.NameExecuteCommand, true, 50, base.Add(time.Second)), ConversationID: "a"}))
	require.NoError(t, db.InsertExecution(ctx, Execution{Result: result(tools.NameReadFile, false, 7, base.Add(2*time.Second)), ConversationID: "b"}))

	tests := []struct {
		name   string
		filter ExecutionFilter
		tools  []string
	}{
		{"all newest first", ExecutionFilter{}, []string{tools.NameReadFile, tools.NameExecuteCommand, tools.NameReadFile}},
		{"by tool", ExecutionFilter{Tool: tools.NameExecuteCommand}, []string{tools.NameExecuteCommand}},
		{"by conversation", ExecutionFilter{ConversationID: "b"}, []string{tools.NameReadFile}},
		{"errors only", ExecutionFilter{ErrorsOnly: true}, []string{tools.NameExecuteCommand}},
		{"limit", ExecutionFilter{Limit: 2}, []string{tools.NameReadFile, tools.NameExecuteCommand}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListExecutions(ctx, tt.filter)
			require.NoError(t, err)
			var names []string
			for _, e := range got {
				names = append(names, e.Tool)
			}
			assert.Equal(t, tt.tools, names)
		})
	}

	failed, err := db.ListExecutions(ctx, ExecutionFilter{ErrorsOnly: true})
	require.NoError(t, err)
	assert.Equal(t, tools.ErrorExecution, failed[0].ErrorKind)
}

func TestUsageSummary(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	summary, err := db.UsageSummary(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary)

	require.NoError(t, db.InsertExecution(ctx, Execution{Result: result(tools.NameReadFile, false, 10, base)}))
	require.NoError(t, db.InsertExecution(ctx, Execution{Result: result(tools.NameReadFile, true, 30, base.Add(time.Minute))}))
	require.NoError(t, db.InsertExecution(ctx, Execution{Result: result(tools.NameCalculate, false, 1, base)}))

	summary, err = db.UsageSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 2)

	assert.Equal(t, tools.NameCalculate, summary[0].Tool)
	read := summary[1]
	assert.Equal(t, tools.NameReadFile, read.Tool)
	assert.Equal(t, 2, read.Calls)
	assert.Equal(t, 1, read.Failures)
	assert.Equal(t, int64(40), read.TotalMs)
	assert.InDelta(t, 20.0, read.AverageMs(), 0.001)
	assert.True(t, base.Add(time.Minute).Equal(read.LastUsedAt))
	assert.Equal(t, 0.0, ToolUsage{}.AverageMs())
}

func TestClearExecutions(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.InsertExecution(ctx, Execution{Result: result(tools.NameReadFile, false, 1, time.Now())}))
	require.NoError(t, db.InsertExecution(ctx, Execution{Result: result(tools.NameReadFile, false, 1, time.Now())}))

	n, err := db.ClearExecutions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := db.ListExecutions(ctx, ExecutionFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecorder_WiredIntoExecutor(t *testing.T) {
	db := openTestDB(t)
	catalog := tools.NewCatalog()
	exec := executor.New(catalog, executor.DefaultConfig(), executor.WithRecorder(NewRecorder(db)))

	results := exec.Execute(context.Background(), []tools.Call{{Name: "missing_tool"}}, false)
	require.Len(t, results, 1)

	got, err := db.ListExecutions(context.Background(), ExecutionFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "missing_tool", got[0].Tool)
	assert.Equal(t, tools.ErrorNotFound, got[0].ErrorKind)
}
