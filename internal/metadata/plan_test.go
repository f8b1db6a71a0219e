package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]Status{
		"pending":     StatusPending,
		"":            StatusPending,
		"todo":        StatusPending,
		"In Progress": StatusInProgress,
		"in-progress": StatusInProgress,
		"doing":       StatusInProgress,
		"DONE":        StatusCompleted,
		"completed":   StatusCompleted,
		"finished":    StatusCompleted,
		"blocked":     StatusBlocked,
		"failed":      StatusBlocked,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, NormalizeStatus(in))
		})
	}
}

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []Task
		wantErr error
		wantID  string
	}{
		{name: "empty"},
		{
			name: "chain",
			tasks: []Task{
				{ID: "a"},
				{ID: "b", DependsOn: []string{"a"}},
				{ID: "c", DependsOn: []string{"a", "b"}},
			},
		},
		{
			name:    "duplicate",
			tasks:   []Task{{ID: "a"}, {ID: "a"}},
			wantErr: ErrDuplicateTask,
			wantID:  "a",
		},
		{
			name:    "unknown dependency",
			tasks:   []Task{{ID: "a", DependsOn: []string{"zzz"}}},
			wantErr: ErrUnknownDependency,
			wantID:  "a",
		},
		{
			name:    "self cycle",
			tasks:   []Task{{ID: "a", DependsOn: []string{"a"}}},
			wantErr: ErrDependencyCycle,
		},
		{
			name: "long cycle",
			tasks: []Task{
				{ID: "a", DependsOn: []string{"c"}},
				{ID: "b", DependsOn: []string{"a"}},
				{ID: "c", DependsOn: []string{"b"}},
			},
			wantErr: ErrDependencyCycle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Plan{Tasks: tt.tasks}).Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			var pe *PlanError
			require.ErrorAs(t, err, &pe)
			if tt.wantID != "" {
				assert.Equal(t, tt.wantID, pe.TaskID)
			}
		})
	}
}

func TestPlan_Pending(t *testing.T) {
	var nilPlan *Plan
	assert.False(t, nilPlan.HasPending())

	p := &Plan{Tasks: []Task{
		{ID: "a", Status: StatusCompleted},
		{ID: "b", Status: StatusBlocked},
		{ID: "c", Status: StatusPending},
	}}
	pending := p.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID)
	assert.True(t, p.HasPending())

	p.Tasks[1].Status = StatusCompleted
	p.Tasks[2].Status = StatusCompleted
	assert.False(t, p.HasPending())
}

func TestPlan_Merge(t *testing.T) {
	base := &Plan{Summary: "ship", Tasks: []Task{
		{ID: "t1", Title: "write", Status: StatusInProgress},
		{ID: "t2", Title: "test", Status: StatusPending, DependsOn: []string{"t1"}},
	}}
	next := &Plan{Tasks: []Task{
		{ID: "t1", Status: StatusCompleted},
		{ID: "t3", Title: "release", Status: StatusPending, DependsOn: []string{"t2"}},
	}}

	merged := base.Merge(next)
	assert.Equal(t, "ship", merged.Summary)
	require.Len(t, merged.Tasks, 3)
	assert.Equal(t, Task{ID: "t1", Title: "write", Status: StatusCompleted}, merged.Tasks[0])
	assert.Equal(t, "t2", merged.Tasks[1].ID)
	assert.Equal(t, "release", merged.Tasks[2].Title)
	assert.NoError(t, merged.Validate())

	// inputs untouched
	assert.Equal(t, StatusInProgress, base.Tasks[0].Status)
	assert.Len(t, base.Tasks, 2)

	t.Run("nil sides", func(t *testing.T) {
		var none *Plan
		got := none.Merge(next)
		require.NotNil(t, got)
		assert.Len(t, got.Tasks, 2)
		assert.Nil(t, none.Merge(nil))
		assert.Len(t, base.Merge(nil).Tasks, 2)
	})

	t.Run("summary replaced when given", func(t *testing.T) {
		got := base.Merge(&Plan{Summary: "ship faster"})
		assert.Equal(t, "ship faster", got.Summary)
	})
}

func TestPlan_Clone(t *testing.T) {
	p := &Plan{Tasks: []Task{{ID: "a", DependsOn: []string{"b"}}, {ID: "b"}}}
	c := p.Clone()
	c.Tasks[0].DependsOn[0] = "x"
	c.Tasks[1].Title = "changed"
	assert.Equal(t, "b", p.Tasks[0].DependsOn[0])
	assert.Empty(t, p.Tasks[1].Title)
}

func TestPlan_String(t *testing.T) {
	p := &Plan{Summary: "goal", Tasks: []Task{
		{ID: "t1", Title: "one", Status: StatusCompleted},
		{ID: "t2", Title: "two", Status: StatusInProgress, DependsOn: []string{"t1"}},
		{ID: "t3", Title: "three", Status: StatusPending},
	}}
	want := "goal\n" +
		"[x] t1: one (completed)\n" +
		"[~] t2: two (in_progress) after t1\n" +
		"[ ] t3: three (pending)"
	assert.Equal(t, want, p.String())
}
