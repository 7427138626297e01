// Package cdp reads open tabs from a Chromium browser over the DevTools
// protocol and switches between them.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/runnerr0/tabcycle/internal/activation"
	"github.com/runnerr0/tabcycle/internal/history"
)

// Browser is a browser-level DevTools connection. It attaches to no tab, so
// listing and activating targets never opens a new one.
type Browser struct {
	httpBase string
	logger   *slog.Logger

	mu      sync.Mutex
	browser *chromedp.Browser
	cancel  context.CancelFunc
}

// New creates a Browser for the DevTools endpoint at address:port. The
// connection is made lazily on first use.
func New(address string, port int, logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{
		httpBase: fmt.Sprintf("http://%s:%d", address, port),
		logger:   logger,
	}
}

func (b *Browser) conn(ctx context.Context) (*chromedp.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	wsURL, err := b.browserWSURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser ws url: %w", err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	browser, err := chromedp.NewBrowser(connCtx, wsURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	b.logger.Info("Connected to browser", "ws_url", wsURL)
	b.browser, b.cancel = browser, cancel
	return browser, nil
}

// reset drops a connection that failed so the next call redials.
func (b *Browser) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
	b.browser, b.cancel = nil, nil
}

// browserWSURL reads the browser websocket endpoint from /json/version.
func (b *Browser) browserWSURL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.httpBase+"/json/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("/json/version: HTTP %d", resp.StatusCode)
	}

	var info struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", err
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("empty webSocketDebuggerUrl")
	}
	return info.WebSocketDebuggerURL, nil
}

// Pages lists the open page targets in browser order.
func (b *Browser) Pages(ctx context.Context) ([]Page, error) {
	browser, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}
	infos, err := target.GetTargets().Do(cdp.WithExecutor(ctx, browser))
	if err != nil {
		b.reset()
		return nil, fmt.Errorf("get targets: %w", err)
	}
	return pagesFromTargets(infos), nil
}

// Live maps every open page's target id to its record.
func (b *Browser) Live(ctx context.Context) (map[string]*history.TabRecord, error) {
	pages, err := b.Pages(ctx)
	if err != nil {
		return nil, err
	}
	live := make(map[string]*history.TabRecord, len(pages))
	for _, p := range pages {
		rec := p.Record()
		live[string(p.ID)] = &rec
	}
	return live, nil
}

// Publish is a no-op: the browser already knows its own tabs.
func (b *Browser) Publish(ctx context.Context, instanceID string, rec history.TabRecord) error {
	return nil
}

// Activate brings the page addressed by token to the front.
func (b *Browser) Activate(ctx context.Context, token activation.Token) error {
	if token.Empty() {
		return activation.ErrEmptyToken
	}
	pages, err := b.Pages(ctx)
	if err != nil {
		return err
	}
	p, ok := pickPage(pages, token)
	if !ok {
		return fmt.Errorf("no page matches %s", token)
	}

	browser, err := b.conn(ctx)
	if err != nil {
		return err
	}
	if err := target.ActivateTarget(p.ID).Do(cdp.WithExecutor(ctx, browser)); err != nil {
		b.reset()
		return fmt.Errorf("activate target %s: %w", p.ID, err)
	}
	b.logger.Debug("target activated", "target_id", p.ID, "title", p.Title, "token", token.String())
	return nil
}

// Close drops the browser connection without closing any tab.
func (b *Browser) Close() error {
	b.reset()
	return nil
}
