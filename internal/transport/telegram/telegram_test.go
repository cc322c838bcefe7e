package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestParseDestination(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{in: "-1001234", want: Target{ChatID: -1001234}},
		{in: " 42 / 7 ", want: Target{ChatID: 42, ThreadID: 7}},
		{in: "", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "42/x", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDestination(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDestination(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("ParseDestination(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestSplitText(t *testing.T) {
	t.Parallel()
	if got := splitText("short", 10); len(got) != 1 || got[0] != "short" {
		t.Fatalf("splitText short = %q", got)
	}
	long := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitText(long, 10)
	if len(got) != 2 || got[0] != strings.Repeat("a", 8) || got[1] != strings.Repeat("b", 8) {
		t.Fatalf("splitText newline = %q", got)
	}
	got = splitText(strings.Repeat("x", 25), 10)
	if len(got) != 3 {
		t.Fatalf("splitText hard = %d chunks", len(got))
	}
}

func TestPostTextCallsSendMessage(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "Schnitzel day!") {
			t.Errorf("body missing text: %s", body)
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"group"}}}`)
	}))
	defer srv.Close()

	c, err := NewWithOptions("123:abc", Options{APIURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewWithOptions: %v", err)
	}
	if err := c.PostText(context.Background(), "42", "Schnitzel day!"); err != nil {
		t.Fatalf("PostText: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("sendMessage calls = %d", calls.Load())
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	t.Parallel()
	if _, err := New("  "); err == nil {
		t.Fatal("expected error for empty token")
	}
}
