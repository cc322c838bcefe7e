// Package source retrieves the raw menu document.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is the published weekly menu.
const DefaultURL = "https://noon-food.com/karte/wochenspeisekarte.pdf"

const defaultMaxBytes int64 = 20 << 20

var errTooLarge = errors.New("document exceeds size limit")

// FetchError reports a transport failure or a non-success response.
type FetchError struct {
	URL    string
	Status int // 0 when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: http %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher returns the current document bytes.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type Config struct {
	URL      string
	Timeout  time.Duration
	MaxBytes int64
}

// HTTP fetches the document with a plain GET.
type HTTP struct {
	cfg    Config
	client *http.Client
}

func NewHTTP(cfg Config, client *http.Client) *HTTP {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = DefaultURL
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = defaultMaxBytes
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTP{cfg: cfg, client: client}
}

func (h *HTTP) URL() string { return h.cfg.URL }

func (h *HTTP) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.cfg.URL, nil)
	if err != nil {
		return nil, &FetchError{URL: h.cfg.URL, Err: err}
	}
	req.Header.Set("Accept", "application/pdf")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: h.cfg.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, &FetchError{URL: h.cfg.URL, Status: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: h.cfg.URL, Status: resp.StatusCode, Err: err}
	}
	if int64(len(b)) > h.cfg.MaxBytes {
		return nil, &FetchError{URL: h.cfg.URL, Status: resp.StatusCode, Err: errTooLarge}
	}
	return b, nil
}

// Static serves a document already held in memory, e.g. a fixture in tests.
type Static []byte

func (s Static) Fetch(context.Context) ([]byte, error) { return []byte(s), nil }
