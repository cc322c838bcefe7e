package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"schnitzelbot/internal/subscriber"
	logx "schnitzelbot/pkg/logx"
)

func openTestStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	fileSt, err := Open(ctx, Config{Driver: "file", Path: filepath.Join(dir, "bot.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	sqliteSt, err := Open(ctx, Config{Driver: "sqlite", Path: filepath.Join(dir, "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stores := map[string]Store{
		"memory": NewMemory(),
		"file":   fileSt,
		"sqlite": sqliteSt,
	}
	t.Cleanup(func() {
		for _, st := range stores {
			_ = st.Close()
		}
	})
	return stores
}

func TestStoreSubscriberLifecycle(t *testing.T) {
	t.Parallel()
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			created, err := st.PutSubscriber(ctx, subscriber.Subscriber{
				Provider:      "Slack",
				Credential:    "xoxb-1",
				DestinationID: " C1 ",
				DisplayName:   "kitchen",
			})
			if err != nil {
				t.Fatalf("put: %v", err)
			}
			if created.ID == "" {
				t.Fatalf("expected generated ID")
			}
			if created.Provider != "slack" || created.DestinationID != "C1" {
				t.Fatalf("not normalized: %+v", created)
			}

			created.DisplayName = "canteen"
			if _, err := st.PutSubscriber(ctx, created); err != nil {
				t.Fatalf("update: %v", err)
			}

			items, next, err := st.ListSubscribers(ctx, "", 10)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if next != "" || len(items) != 1 || items[0].DisplayName != "canteen" {
				t.Fatalf("unexpected list: %+v next=%q", items, next)
			}

			if err := st.DeleteSubscriber(ctx, created.ID); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := st.DeleteSubscriber(ctx, created.ID); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStorePaging(t *testing.T) {
	t.Parallel()
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"c", "a", "e", "b", "d"} {
				if _, err := st.PutSubscriber(ctx, subscriber.Subscriber{ID: id, Provider: "slack", Credential: "t", DestinationID: "C" + id}); err != nil {
					t.Fatalf("put %s: %v", id, err)
				}
			}
			var got []string
			cursor := ""
			pages := 0
			for {
				items, next, err := st.ListSubscribers(ctx, cursor, 2)
				if err != nil {
					t.Fatalf("list: %v", err)
				}
				pages++
				for _, s := range items {
					got = append(got, s.ID)
				}
				if next == "" {
					break
				}
				cursor = next
			}
			if strings.Join(got, "") != "abcde" {
				t.Fatalf("unexpected order: %v", got)
			}
			if pages != 3 {
				t.Fatalf("expected 3 pages, got %d", pages)
			}
		})
	}
}

func TestStoreRejectsInvalidSubscriber(t *testing.T) {
	t.Parallel()
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.PutSubscriber(context.Background(), subscriber.Subscriber{Provider: "slack", DestinationID: "C1"})
			if err == nil {
				t.Fatalf("expected error for missing credential")
			}
		})
	}
}

func TestStoreRecentRuns(t *testing.T) {
	t.Parallel()
	for name, st := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC)
			for i, outcome := range []string{OutcomeSkipped, OutcomeNoMatch, OutcomeDispatched} {
				r := RunRecord{At: base.Add(time.Duration(i) * 24 * time.Hour), Outcome: outcome, Week: 7, Attempted: i}
				if err := st.AppendRun(ctx, r); err != nil {
					t.Fatalf("append: %v", err)
				}
			}
			runs, err := st.RecentRuns(ctx, 2)
			if err != nil {
				t.Fatalf("recent: %v", err)
			}
			if len(runs) != 2 {
				t.Fatalf("expected 2 runs, got %d", len(runs))
			}
			if runs[0].Outcome != OutcomeDispatched || runs[1].Outcome != OutcomeNoMatch {
				t.Fatalf("expected newest first, got %+v", runs)
			}
			if !runs[0].At.Equal(base.Add(48 * time.Hour)) {
				t.Fatalf("unexpected time: %v", runs[0].At)
			}
		})
	}
}

func TestFileStoreReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state.json")}

	st, err := Open(ctx, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := st.PutSubscriber(ctx, subscriber.Subscriber{ID: "s1", Provider: "telegram", Credential: "123:abc", DestinationID: "-100"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := st.AppendRun(ctx, RunRecord{Outcome: OutcomeNoMatch}); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = st.Close()

	st, err = Open(ctx, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()

	items, _, err := st.ListSubscribers(ctx, "", 0)
	if err != nil || len(items) != 1 || items[0].Credential != "123:abc" {
		t.Fatalf("unexpected reload: %+v err=%v", items, err)
	}
	runs, err := st.RecentRuns(ctx, 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("unexpected runs: %+v err=%v", runs, err)
	}
}

func TestClosedStore(t *testing.T) {
	t.Parallel()
	st := NewMemory()
	_ = st.Close()
	if _, _, err := st.ListSubscribers(context.Background(), "", 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(context.Background(), Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := Open(context.Background(), Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for missing dsn")
	}
}
