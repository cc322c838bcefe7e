package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "schnitzelbot/pkg/logx"
)

func TestTriggerSkipsWhileRunning(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32

	s := New("menu", Config{}, func(ctx context.Context) error {
		calls.Add(1)
		close(started)
		<-release
		return nil
	}, logx.Nop())

	done := make(chan error, 1)
	go func() { done <- s.Trigger(context.Background()) }()
	<-started

	if err := s.Trigger(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected exactly one run, got %d", calls.Load())
	}
}

func TestTriggerAppliesTimeout(t *testing.T) {
	t.Parallel()
	s := New("menu", Config{Timeout: 20 * time.Millisecond}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, logx.Nop())

	if err := s.Trigger(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestTriggerRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New("menu", Config{}, func(ctx context.Context) error { panic("boom") }, logx.Nop())
	if err := s.Trigger(context.Background()); err == nil {
		t.Fatalf("expected error from panicking job")
	}
	// The running flag must be released after a panic.
	if err := s.Trigger(context.Background()); errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("running flag leaked after panic")
	}
}

func TestStartRunsOnInterval(t *testing.T) {
	t.Parallel()
	ran := make(chan struct{}, 4)
	s := New("menu", Config{Enabled: true, Spec: "every:1s"}, func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	if s.Next().IsZero() {
		t.Fatalf("expected a planned next run")
	}
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatalf("job was not triggered")
	}
}

func TestApplyValidatesAndDisables(t *testing.T) {
	t.Parallel()
	s := New("menu", Config{Enabled: true, Spec: "@daily"}, func(context.Context) error { return nil }, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(context.Background())

	if err := s.Apply(Config{Enabled: true, Spec: "61 * * * *"}); err == nil {
		t.Fatalf("expected invalid cron to be rejected")
	}
	if s.Next().IsZero() {
		t.Fatalf("rejected apply must keep the old schedule")
	}
	if err := s.Apply(Config{Enabled: false}); err != nil {
		t.Fatalf("Apply disable: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatalf("disabled scheduler should have no next run")
	}
}
