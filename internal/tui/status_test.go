package tui

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/state"
)

func TestStateLabel(t *testing.T) {
	tests := []struct {
		name  string
		state state.LoopState
		want  string
	}{
		{"never started", state.LoopState{}, "IDLE"},
		{"active", state.LoopState{Active: true, MaxIterations: 5}, "ACTIVE"},
		{"complete", state.LoopState{CompletionReason: state.ReasonAllConditionsMet}, "COMPLETE"},
		{"stopped", state.LoopState{CompletionReason: state.ReasonMaxIterations}, "STOPPED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StateLabel(tt.state))
		})
	}
}

func TestRenderStatus(t *testing.T) {
	s := activeState()
	s.LastWarningCount = 4
	s.FilesModified = []string{"main.go", "README.md"}

	got := RenderStatus(StatusProps{
		ProjectName: "demo",
		Branch:      "feature/gate",
		LastCommit:  "abc1234 fix parser",
		State:       s,
		Now:         s.StartTime.Add(90 * time.Second),
	})

	for _, want := range []string{
		"Ralph Loop · demo",
		"feature/gate",
		"abc1234 fix parser",
		"ACTIVE",
		"3/10",
		"Last errors", "2",
		"Last warnings", "4",
		"1m30s ago",
		"loop-123",
		"main.go", "README.md",
	} {
		assert.Contains(t, got, want)
	}
}

func TestRenderStatus_NoLoop(t *testing.T) {
	got := RenderStatus(StatusProps{})
	assert.Contains(t, got, "No active loop")
	assert.NotContains(t, got, "Iteration", "no iteration row without a loop")
}

func TestRenderStatus_TruncatesFileList(t *testing.T) {
	s := activeState()
	for i := range maxListedFiles + 3 {
		s.FilesModified = append(s.FilesModified, fmt.Sprintf("file%02d.go", i))
	}

	got := RenderStatus(StatusProps{State: s})
	assert.Contains(t, got, "3 more")
	assert.NotContains(t, got, fmt.Sprintf("file%02d.go", maxListedFiles), "files past the cap should not be listed")
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{5 * time.Second, "5s"},
		{150 * time.Second, "2m30s"},
		{75 * time.Minute, "1h15m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatElapsed(tt.d), "FormatElapsed(%s)", tt.d)
	}
}

func TestAbbreviatePath(t *testing.T) {
	assert.Empty(t, AbbreviatePath(""))
	assert.Equal(t, "C:/work/repo", AbbreviatePath(`C:\work\repo`))
}
