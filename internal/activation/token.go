// Package activation turns a history record into a focus switch performed
// outside the process.
package activation

import (
	"context"
	"errors"
	"strconv"

	"github.com/runnerr0/tabcycle/internal/history"
)

// ErrEmptyToken is returned when a record carries neither a position nor a title.
var ErrEmptyToken = errors.New("empty activation token")

// Token identifies the tab to switch to. A known position wins over the title.
type Token struct {
	Position int    `json:"position"`
	Title    string `json:"title,omitempty"`
}

// TokenFor builds the switch token for rec.
func TokenFor(rec history.TabRecord) Token {
	if rec.HasPosition() {
		return Token{Position: rec.PositionHint}
	}
	return Token{Position: history.NoPosition, Title: rec.Title}
}

// HasPosition reports whether the token addresses a tab by position.
func (t Token) HasPosition() bool {
	return t.Position >= 0
}

// Empty reports whether the token cannot address any tab.
func (t Token) Empty() bool {
	return !t.HasPosition() && t.Title == ""
}

// Argument is the token as passed to an external switcher.
func (t Token) Argument() string {
	if t.HasPosition() {
		return strconv.Itoa(t.Position)
	}
	return t.Title
}

func (t Token) String() string {
	if t.HasPosition() {
		return "position:" + strconv.Itoa(t.Position)
	}
	return "title:" + strconv.Quote(t.Title)
}

// Executor performs a focus switch. Activate returns once the request has
// been handed off; an error means it could not even be issued. There is no
// acknowledgement that the switch happened.
type Executor interface {
	Activate(ctx context.Context, token Token) error
}
