package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"schnitzelbot/internal/transport"
)

func TestFormatAlert(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "json line",
			in:   `{"level":"error","time":"2024-02-14T09:00:00Z","message":"run failed","state":"fetching","err":"boom"}`,
			want: "[ERROR] run failed\n- err=boom\n- state=fetching",
		},
		{
			name: "not json",
			in:   "plain text\n",
			want: "plain text",
		},
		{
			name: "no level",
			in:   `{"message":"hello"}`,
			want: "hello",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := formatAlert([]byte(tc.in)); got != tc.want {
				t.Fatalf("formatAlert:\n got %q\nwant %q", got, tc.want)
			}
		})
	}
}

func TestFormatAlertTruncates(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 5000)
	got := formatAlert([]byte(`{"level":"error","message":"` + long + `"}`))
	if len(got) != alertTextLimit || !strings.HasSuffix(got, "...") {
		t.Fatalf("expected %d bytes ending in ..., got %d", alertTextLimit, len(got))
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in, LevelInfo); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWriterLoggerFieldsAndLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "runner"))
	log.Debug("hidden")
	log.Info("menu fetched", Int("bytes", 42), Err(errors.New("late")), Duration("took", 1500*time.Millisecond))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["message"] != "menu fetched" || m["comp"] != "runner" || m["bytes"] != float64(42) || m["err"] != "late" {
		t.Fatalf("unexpected fields: %v", m)
	}
	if c, _ := m["caller"].(string); !strings.HasPrefix(c, "logging_test.go:") {
		t.Fatalf("expected caller in this file, got %q", c)
	}
}

func TestZeroLoggerIsNop(t *testing.T) {
	t.Parallel()

	var log Logger
	if !log.IsZero() {
		t.Fatalf("expected zero logger")
	}
	log.Error("ignored")
	if Nop().IsZero() {
		t.Fatalf("Nop must not report zero")
	}
}

func TestAlertSinkDeliversAboveMinLevel(t *testing.T) {
	t.Parallel()

	type post struct{ dest, text string }
	posts := make(chan post, 4)
	client := transport.ClientFunc(func(ctx context.Context, destination, text string) error {
		posts <- post{destination, text}
		return nil
	})

	svc, log := New(Config{Level: "debug", Alert: AlertConfig{Enabled: true, MinLevel: "error", RatePerSec: 5}})
	defer svc.Close()
	svc.SetAlertTarget(client, " ops ")

	log.Warn("not alerted")
	log.Error("delivery failed", String("subscriber", "team-a"))

	select {
	case p := <-posts:
		if p.dest != "ops" {
			t.Fatalf("expected trimmed destination, got %q", p.dest)
		}
		if !strings.HasPrefix(p.text, "[ERROR] delivery failed") || !strings.Contains(p.text, "- subscriber=team-a") {
			t.Fatalf("unexpected alert text %q", p.text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("alert not delivered")
	}

	select {
	case p := <-posts:
		t.Fatalf("unexpected second alert %q", p.text)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAlertSinkWithoutTargetDropsLines(t *testing.T) {
	t.Parallel()

	svc, log := New(Config{Level: "info", Alert: AlertConfig{Enabled: true}})
	log.Error("nobody listens")
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
