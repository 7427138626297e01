// Package tui is a terminal preview picker. Terminals report no key
// releases, so Enter stands in for releasing Alt.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/runnerr0/tabcycle/internal/cycle"
	"github.com/runnerr0/tabcycle/internal/history"
)

// headerRows is the number of lines rendered above the first entry.
const headerRows = 2

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	closedStyle   = lipgloss.NewStyle().Faint(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type openedMsg struct {
	state cycle.State
	err   error
}

// Model drives one controller's preview from terminal input.
type Model struct {
	ctx     context.Context
	ctrl    *cycle.Controller
	reverse bool

	view   cycle.SessionView
	opened bool
	chosen *history.TabRecord
	err    error
	done   bool
}

// New creates a picker for ctrl. The preview opens on Init.
func New(ctx context.Context, ctrl *cycle.Controller, reverse bool) Model {
	return Model{ctx: ctx, ctrl: ctrl, reverse: reverse}
}

func (m Model) Init() tea.Cmd {
	ctx, ctrl, reverse := m.ctx, m.ctrl, m.reverse
	return func() tea.Msg {
		st, err := ctrl.Handle(ctx, cycle.Event{Kind: cycle.EventKeyDown, Key: cycle.KeyTab, Alt: true, Shift: reverse})
		return openedMsg{state: st, err: err}
	}
}

// Chosen is the entry switched to, or nil when the preview was cancelled.
func (m Model) Chosen() *history.TabRecord { return m.chosen }

func (m Model) Err() error { return m.err }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case openedMsg:
		m.view = m.ctrl.View()
		if msg.err != nil {
			m.err = msg.err
			return m.finish()
		}
		if msg.state != cycle.StateOpen {
			return m.finish()
		}
		m.opened = true
		return m, nil

	case tea.KeyMsg:
		if ev, ok := keyEvent(msg.String()); ok {
			return m.apply(ev)
		}
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m.apply(cycle.Event{Kind: cycle.EventKeyDown, Key: cycle.KeyEscape})
		}
		if n, ok := digit(msg.String()); ok {
			return m.apply(cycle.Event{Kind: cycle.EventPointer, Index: n - 1})
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			idx := msg.Y - headerRows
			if idx >= 0 && idx < len(m.view.Entries) {
				return m.apply(cycle.Event{Kind: cycle.EventPointer, Index: idx})
			}
		}

	case tea.BlurMsg:
		return m.apply(cycle.Event{Kind: cycle.EventVisibility, Visible: false})
	}
	return m, nil
}

func keyEvent(key string) (cycle.Event, bool) {
	switch key {
	case "tab", "down", "j":
		return cycle.Event{Kind: cycle.EventKeyDown, Key: cycle.KeyTab, Alt: true}, true
	case "shift+tab", "up", "k":
		return cycle.Event{Kind: cycle.EventKeyDown, Key: cycle.KeyTab, Alt: true, Shift: true}, true
	case "enter":
		return cycle.Event{Kind: cycle.EventKeyUp, Key: cycle.KeyAlt}, true
	case "esc":
		return cycle.Event{Kind: cycle.EventKeyDown, Key: cycle.KeyEscape}, true
	case "`":
		return cycle.Event{Kind: cycle.EventKeyDown, Key: cycle.KeyDead}, true
	}
	return cycle.Event{}, false
}

func digit(key string) (int, bool) {
	if len(key) != 1 || key[0] < '1' || key[0] > '9' {
		return 0, false
	}
	return int(key[0] - '0'), true
}

func (m Model) apply(ev cycle.Event) (tea.Model, tea.Cmd) {
	if !m.opened {
		// Only cancelling is possible while the preview loads.
		if ev.Kind == cycle.EventKeyDown && (ev.Key == cycle.KeyEscape || ev.Key == cycle.KeyDead) {
			m.ctrl.HardCancel()
			return m.finish()
		}
		return m, nil
	}
	var target *history.TabRecord
	if ev.Kind == cycle.EventKeyUp || ev.Kind == cycle.EventPointer {
		target = m.switchTarget(ev)
	}

	st, err := m.ctrl.Handle(m.ctx, ev)
	if err != nil {
		m.err = err
		m.view = m.ctrl.View()
		if st == cycle.StateOpen {
			return m, nil
		}
		return m.finish()
	}
	if st != cycle.StateOpen {
		m.chosen = target
		return m.finish()
	}
	m.view = m.ctrl.View()
	return m, nil
}

// switchTarget is the entry a confirming event would switch to; nil when
// the selection ends where it started.
func (m Model) switchTarget(ev cycle.Event) *history.TabRecord {
	idx := m.view.Selection
	if ev.Kind == cycle.EventPointer {
		idx = ev.Index
	}
	if idx == m.view.Start || idx < 0 || idx >= len(m.view.Entries) {
		return nil
	}
	rec := m.view.Entries[idx]
	return &rec
}

func (m Model) finish() (tea.Model, tea.Cmd) {
	m.done = true
	return m, tea.Quit
}

func (m Model) View() string {
	if m.done {
		return ""
	}
	if !m.opened {
		return titleStyle.Render("Loading tabs...") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Recent tabs (%d)", len(m.view.Entries))))
	b.WriteString("\n\n")
	for i, rec := range m.view.Entries {
		title := rec.Title
		if title == "" {
			title = rec.URL
		}
		line := fmt.Sprintf("%d  %s  %s", i+1, title, rec.URL)
		switch {
		case i == m.view.Selection:
			line = selectedStyle.Render(line)
		case rec.Closed == history.ClosedYes:
			line = closedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("[tab/shift+tab] move  [enter] switch  [1-9/click] pick  [esc] cancel"))
	return b.String()
}

// Run shows the picker until the user switches or cancels.
func Run(ctx context.Context, ctrl *cycle.Controller, reverse bool) (*history.TabRecord, error) {
	p := tea.NewProgram(New(ctx, ctrl, reverse),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithReportFocus(),
	)
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("run picker: %w", err)
	}
	m := final.(Model)
	return m.Chosen(), m.Err()
}
