// Package checkin reports run progress to a cron monitor.
//
// The ping layout follows healthchecks.io: POST <url>/start when a run begins,
// <url> when it succeeds and <url>/fail when it fails. Every ping carries the
// run ID as ?rid= so the monitor can pair start and finish.
package checkin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	logx "schnitzelbot/pkg/logx"
)

// maxBody keeps the monitor's log excerpt small.
const maxBody = 10_000

// Reporter is best-effort: failures are logged, never returned.
type Reporter interface {
	Start(ctx context.Context, runID string)
	OK(ctx context.Context, runID, summary string)
	Fail(ctx context.Context, runID string, err error)
}

type nopReporter struct{}

func (nopReporter) Start(context.Context, string) {}
func (nopReporter) OK(context.Context, string, string) {}
func (nopReporter) Fail(context.Context, string, error) {}

// Nop returns a Reporter that does nothing.
func Nop() Reporter { return nopReporter{} }

type Config struct {
	URL     string
	Timeout time.Duration
}

// HTTP pings a monitor endpoint.
type HTTP struct {
	base   string
	client *http.Client
	log    logx.Logger
}

// NewHTTP returns an HTTP reporter, or an error when cfg.URL is not absolute.
func NewHTTP(cfg Config, client *http.Client, log logx.Logger) (*HTTP, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("checkin: invalid url %q", cfg.URL)
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &HTTP{base: base, client: client, log: log}, nil
}

func (h *HTTP) Start(ctx context.Context, runID string) {
	h.ping(ctx, "/start", runID, "")
}

func (h *HTTP) OK(ctx context.Context, runID, summary string) {
	h.ping(ctx, "", runID, summary)
}

func (h *HTTP) Fail(ctx context.Context, runID string, err error) {
	body := ""
	if err != nil {
		body = err.Error()
	}
	h.ping(ctx, "/fail", runID, body)
}

func (h *HTTP) ping(ctx context.Context, suffix, runID, body string) {
	target := h.base + suffix
	if runID != "" {
		target += "?rid=" + url.QueryEscape(runID)
	}
	body = truncateUTF8(body, maxBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		h.log.Warn("checkin request build failed", logx.Err(err))
		return
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := h.client.Do(req)
	if err != nil {
		h.log.Warn("checkin ping failed", logx.String("kind", kindOf(suffix)), logx.Err(err))
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.log.Warn("checkin ping rejected", logx.String("kind", kindOf(suffix)), logx.Int("status", resp.StatusCode))
		return
	}
	h.log.Debug("checkin ping sent", logx.String("kind", kindOf(suffix)))
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func kindOf(suffix string) string {
	if suffix == "" {
		return "ok"
	}
	return strings.TrimPrefix(suffix, "/")
}
