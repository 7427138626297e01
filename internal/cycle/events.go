package cycle

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned by Handle for an event kind it does not know.
var ErrUnknownEvent = errors.New("unknown event")

// EventKind names a raw input event.
type EventKind string

const (
	EventKeyDown    EventKind = "keydown"
	EventKeyUp      EventKind = "keyup"
	EventPointer    EventKind = "pointer"
	EventVisibility EventKind = "visibility"
)

// Key names as delivered by the host.
const (
	KeyTab    = "Tab"
	KeyAlt    = "Alt"
	KeyEscape = "Escape"
	KeyDead   = "Dead"
)

// Event is a raw input event. Only the fields relevant to Kind are read.
type Event struct {
	Kind    EventKind `json:"kind"`
	Key     string    `json:"key,omitempty"`
	Alt     bool      `json:"alt,omitempty"`
	Shift   bool      `json:"shift,omitempty"`
	Index   int       `json:"index,omitempty"`
	Visible bool      `json:"visible,omitempty"`
}

// Handle maps a raw input event onto the preview operations and returns the
// resulting state:
//
//	Alt+Tab          open, or step when already open (Shift steps back)
//	Escape           hard-cancel an opening or open preview
//	Dead             hard-cancel, always
//	Alt released     confirm, or abandon a preview still opening
//	pointer          select the entry and confirm
//	hidden           hard-cancel
//	visible          report the current page again
func (c *Controller) Handle(ctx context.Context, ev Event) (State, error) {
	switch ev.Kind {
	case EventKeyDown:
		return c.handleKeyDown(ctx, ev)

	case EventKeyUp:
		if ev.Key != KeyAlt {
			return c.State(), nil
		}
		switch c.State() {
		case StateOpen:
			_, err := c.Confirm(ctx)
			return c.State(), err
		case StateOpening:
			return c.HardCancel(), nil
		}
		return StateClosed, nil

	case EventPointer:
		if err := c.SelectAt(ev.Index); err != nil {
			return c.State(), err
		}
		_, err := c.Confirm(ctx)
		return c.State(), err

	case EventVisibility:
		if !ev.Visible {
			return c.HardCancel(), nil
		}
		cur := c.Current()
		if cur.URL != "" {
			_, err := c.Report(ctx, SelfReport{
				URL:          cur.URL,
				Title:        cur.Title,
				PositionHint: cur.PositionHint,
				Timestamp:    c.clock.Now(),
			})
			return c.State(), err
		}
		return c.State(), nil
	}
	return c.State(), fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
}

func (c *Controller) handleKeyDown(ctx context.Context, ev Event) (State, error) {
	switch {
	case ev.Key == KeyDead, ev.Key == KeyEscape:
		return c.HardCancel(), nil

	case ev.Alt && ev.Key == KeyTab:
		switch c.State() {
		case StateClosed:
			return c.Open(ctx, ev.Shift)
		case StateOpen:
			dir := Forward
			if ev.Shift {
				dir = Backward
			}
			if _, err := c.Advance(dir); err != nil {
				return c.State(), err
			}
			return StateOpen, nil
		}
	}
	return c.State(), nil
}
