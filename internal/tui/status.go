package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/state"
)

// maxListedFiles caps the modified-file list in the status block.
const maxListedFiles = 8

// StatusProps holds everything the status block shows.
type StatusProps struct {
	ProjectName string
	Dir         string
	Branch      string
	LastCommit  string
	State       state.LoopState
	Now         time.Time
}

// StateLabel names the loop phase of s.
func StateLabel(s state.LoopState) string {
	switch {
	case s.Active:
		return "ACTIVE"
	case s.CompletionReason == state.ReasonAllConditionsMet:
		return "COMPLETE"
	case s.CompletionReason != "":
		return "STOPPED"
	}
	return "IDLE"
}

func stateStyleFor(label string) func(...string) string {
	switch label {
	case "ACTIVE":
		return activeStyle.Render
	case "COMPLETE":
		return completeStyle.Render
	case "STOPPED":
		return stoppedStyle.Render
	}
	return footerStyle.Render
}

// RenderStatus renders the status block printed by `ralphgate status` and
// embedded in the watch view.
func RenderStatus(p StatusProps) string {
	var b strings.Builder
	title := "Ralph Loop"
	if p.ProjectName != "" {
		title += " · " + p.ProjectName
	}
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")

	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	row("Project", AbbreviatePath(p.Dir))
	row("Branch", p.Branch)
	row("Last commit", p.LastCommit)

	s := p.State
	label := StateLabel(s)
	b.WriteString(labelStyle.Render("State"))
	b.WriteString(stateStyleFor(label)(label))
	b.WriteString("\n")

	if s.NeverStarted() {
		b.WriteString(footerStyle.Render("No active loop. Run 'ralphgate start' to begin one."))
		b.WriteString("\n")
		return b.String()
	}

	row("Iteration", fmt.Sprintf("%d/%d", s.Iteration, s.MaxIterations))
	row("Last errors", fmt.Sprintf("%d", s.LastErrorCount))
	row("Last warnings", fmt.Sprintf("%d", s.LastWarningCount))
	if !s.StartTime.IsZero() {
		started := s.StartTime.Local().Format("2006-01-02 15:04:05")
		if !p.Now.IsZero() {
			started += " (" + FormatElapsed(p.Now.Sub(s.StartTime)) + " ago)"
		}
		row("Started", started)
	}
	row("Reason", s.CompletionReason)
	row("Loop ID", s.LoopID)

	if n := len(s.FilesModified); n > 0 {
		b.WriteString(labelStyle.Render("Modified files"))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%d", n)))
		b.WriteString("\n")
		for i, f := range s.FilesModified {
			if i == maxListedFiles {
				b.WriteString(footerStyle.Render(fmt.Sprintf("  … %d more", n-maxListedFiles)))
				b.WriteString("\n")
				break
			}
			b.WriteString("  " + valueStyle.Render(f) + "\n")
		}
	}
	return b.String()
}
