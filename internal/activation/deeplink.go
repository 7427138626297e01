package activation

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"
)

// DefaultDeepLinkPrefix is the script command that switches Safari tabs.
const DefaultDeepLinkPrefix = "raycast://script-commands/switch-safari-tab-url"

// DeepLinkExecutor hands a deep link to an opener command and does not wait
// for it to finish.
type DeepLinkExecutor struct {
	prefix string
	opener string
	logger *slog.Logger
	start  func(name string, args ...string) error
}

// NewDeepLinkExecutor creates an executor launching "<opener> <prefix>?arguments=<token>".
func NewDeepLinkExecutor(prefix, opener string, logger *slog.Logger) *DeepLinkExecutor {
	if prefix == "" {
		prefix = DefaultDeepLinkPrefix
	}
	if opener == "" {
		opener = "open"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeepLinkExecutor{prefix: prefix, opener: opener, logger: logger, start: startDetached}
}

func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait() //nolint:errcheck
	return nil
}

// Link returns the deep link for token.
func (e *DeepLinkExecutor) Link(token Token) string {
	arg := strings.ReplaceAll(url.QueryEscape(token.Argument()), "+", "%20")
	return e.prefix + "?arguments=" + arg
}

func (e *DeepLinkExecutor) Activate(ctx context.Context, token Token) error {
	if token.Empty() {
		return ErrEmptyToken
	}
	link := e.Link(token)
	if err := e.start(e.opener, link); err != nil {
		return fmt.Errorf("launch %s: %w", e.opener, err)
	}
	e.logger.Debug("activation requested", "token", token.String(), "link", link)
	return nil
}
