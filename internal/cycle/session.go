// Package cycle implements hold-to-preview tab cycling and the direct
// "previous tab" gesture for one page instance.
package cycle

import (
	"errors"

	"github.com/runnerr0/tabcycle/internal/history"
)

var (
	// ErrNotOpen is returned by preview operations when no preview is open.
	ErrNotOpen = errors.New("no preview open")
	// ErrIndexOutOfRange is returned by SelectAt for an index outside the snapshot.
	ErrIndexOutOfRange = errors.New("selection index out of range")
)

// Direction is a step through the preview.
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Session is one preview: a frozen copy of the history and a selection.
type Session struct {
	snapshot  []history.TabRecord
	selection int
	start     int
}

// Begin opens a session over snapshot. The selection starts on the previous
// page, or on the oldest one when reverse is set and there are more than two
// entries. It reports false when there is nothing to cycle through.
func Begin(snapshot []history.TabRecord, reverse bool) (*Session, bool) {
	n := len(snapshot)
	if n <= 1 {
		return nil, false
	}
	sel := 1
	if reverse && n > 2 {
		sel = n - 1
	}
	return &Session{
		snapshot:  history.Clone(snapshot),
		selection: sel,
		start:     sel,
	}, true
}

// Advance moves the selection one step, wrapping at both ends.
func (s *Session) Advance(dir Direction) int {
	n := len(s.snapshot)
	step := 1
	if dir == Backward {
		step = -1
	}
	s.selection = (s.selection + step + n) % n
	return s.selection
}

// SelectAt jumps straight to index.
func (s *Session) SelectAt(index int) error {
	if index < 0 || index >= len(s.snapshot) {
		return ErrIndexOutOfRange
	}
	s.selection = index
	return nil
}

func (s *Session) Selection() int { return s.selection }
func (s *Session) Start() int     { return s.start }

// Selected returns the record under the selection.
func (s *Session) Selected() history.TabRecord {
	return s.snapshot[s.selection]
}

// Changed reports whether the selection moved away from where it started.
func (s *Session) Changed() bool {
	return s.selection != s.start
}

// Snapshot returns a copy of the frozen history.
func (s *Session) Snapshot() []history.TabRecord {
	return history.Clone(s.snapshot)
}
