package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActive(t *testing.T) {
	local := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	ls, err := NewActive(5, local)
	require.NoError(t, err)
	assert.True(t, ls.Active)
	assert.Zero(t, ls.Iteration)
	assert.Equal(t, 5, ls.MaxIterations)
	assert.Equal(t, time.UTC, ls.StartTime.Location())
	assert.Empty(t, ls.CompletionReason, "active loop must not carry a completion reason")

	_, err = NewActive(0, local)
	assert.Error(t, err)
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name    string
		state   LoopState
		wantErr bool
		wantIt  int
	}{
		{"increments", LoopState{Active: true, Iteration: 2, MaxIterations: 10}, false, 3},
		{"last step before cap", LoopState{Active: true, Iteration: 8, MaxIterations: 10}, false, 9},
		{"refuses to reach cap", LoopState{Active: true, Iteration: 9, MaxIterations: 10}, true, 9},
		{"inactive", LoopState{Iteration: 1, MaxIterations: 10}, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.state.Advance()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantIt, got.Iteration)
		})
	}
}

func TestEnd(t *testing.T) {
	active := LoopState{Active: true, Iteration: 3, MaxIterations: 10}

	ended, err := active.End(ReasonAllConditionsMet)
	require.NoError(t, err)
	assert.False(t, ended.Active)
	assert.Equal(t, ReasonAllConditionsMet, ended.CompletionReason)
	assert.Equal(t, 3, ended.Iteration)
	assert.False(t, ended.NeverStarted(), "an ended loop is distinct from a never-started one")

	_, err = active.End("")
	assert.Error(t, err)
	_, err = ended.End(ReasonMaxIterations)
	assert.Error(t, err)
}

func TestWithMeasurements(t *testing.T) {
	ls := LoopState{}.WithMeasurements(3, -1)
	assert.Equal(t, 3, ls.LastErrorCount)
	assert.Zero(t, ls.LastWarningCount)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		state   LoopState
		wantErr bool
	}{
		{"zero", LoopState{}, false},
		{"active", LoopState{Active: true, MaxIterations: 3}, false},
		{"ended", LoopState{CompletionReason: ReasonMaxIterations, Iteration: 9}, false},
		{"active without cap", LoopState{Active: true}, true},
		{"active with reason", LoopState{Active: true, MaxIterations: 3, CompletionReason: "x"}, true},
		{"negative iteration", LoopState{Iteration: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
