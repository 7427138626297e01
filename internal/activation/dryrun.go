package activation

import (
	"context"
	"log/slog"
	"sync"
)

// DryRunExecutor logs and records tokens without switching anything.
type DryRunExecutor struct {
	logger *slog.Logger

	mu     sync.Mutex
	issued []Token
}

func NewDryRunExecutor(logger *slog.Logger) *DryRunExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunExecutor{logger: logger}
}

func (e *DryRunExecutor) Activate(ctx context.Context, token Token) error {
	if token.Empty() {
		return ErrEmptyToken
	}
	e.mu.Lock()
	e.issued = append(e.issued, token)
	e.mu.Unlock()
	e.logger.Info("dry-run activation", "token", token.String())
	return nil
}

// Issued returns the tokens seen so far, oldest first.
func (e *DryRunExecutor) Issued() []Token {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Token(nil), e.issued...)
}
