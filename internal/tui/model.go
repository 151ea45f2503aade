package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/LISSConsulting/LISSTech.RalphGate/internal/state"
)

// StateReader returns the persisted loop state.
type StateReader interface {
	Read() (state.LoopState, error)
}

// stateMsg carries a freshly read state.
type stateMsg struct {
	state state.LoopState
	err   error
	at    time.Time
}

// changedMsg signals the state file changed on disk.
type changedMsg struct{}

// watchClosedMsg signals the change channel closed.
type watchClosedMsg struct{}

// tickMsg is sent every second for the clock.
type tickMsg time.Time

// Model is the bubbletea model behind `ralphgate watch`.
type Model struct {
	reader  StateReader
	changes <-chan struct{}
	props   StatusProps

	spinner spinner.Model
	width   int
	height  int

	state    state.LoopState
	err      error
	loadedAt time.Time
	reloads  int
}

// New creates the watch model. changes may be nil, in which case the view
// only refreshes on the 'r' key.
func New(reader StateReader, changes <-chan struct{}, props StatusProps) Model {
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(activeStyle),
	)
	if props.Now.IsZero() {
		props.Now = time.Now()
	}
	return Model{
		reader:  reader,
		changes: changes,
		props:   props,
		spinner: sp,
		width:   80,
		height:  24,
	}
}

// Err returns the last state read error, if any.
func (m Model) Err() error { return m.err }

// Init loads the state and starts the listeners.
func (m Model) Init() tea.Cmd {
	return tea.Batch(loadState(m.reader), waitForChange(m.changes), m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func loadState(r StateReader) tea.Cmd {
	return func() tea.Msg {
		s, err := r.Read()
		return stateMsg{state: s, err: err, at: time.Now()}
	}
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return watchClosedMsg{}
		}
		return changedMsg{}
	}
}

// Update handles all incoming bubbletea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, loadState(m.reader)
		}
		return m, nil
	case stateMsg:
		m.state, m.err, m.loadedAt = msg.state, msg.err, msg.at
		m.reloads++
		return m, nil
	case changedMsg:
		return m, tea.Batch(loadState(m.reader), waitForChange(m.changes))
	case watchClosedMsg:
		m.changes = nil
		return m, nil
	case tickMsg:
		m.props.Now = time.Time(msg)
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the status block, a waiting indicator while the loop is
// active, and the key help.
func (m Model) View() string {
	props := m.props
	props.State = m.state

	var b strings.Builder
	b.WriteString(RenderStatus(props))
	if m.err != nil {
		b.WriteString(errorStyle.Render("State file unreadable: " + m.err.Error()))
		b.WriteString("\n")
	}
	if m.state.Active {
		b.WriteString(m.spinner.View() + " waiting for the next stop event")
		b.WriteString("\n")
	}

	width := m.width - 2
	if width < 40 {
		width = 40
	}
	out := boxStyle.Width(width).Render(strings.TrimRight(b.String(), "\n"))

	footer := "q quit · r reload"
	if !m.loadedAt.IsZero() {
		footer += " · updated " + m.loadedAt.Format("15:04:05")
	}
	return lipgloss.JoinVertical(lipgloss.Left, out, footerStyle.Render(footer))
}
