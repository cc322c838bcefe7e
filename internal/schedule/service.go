// Package schedule triggers a single job on a cron or interval schedule.
//
// Invocations never overlap: a tick that fires while the previous run is still
// in flight is skipped and logged.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "schnitzelbot/pkg/logx"
)

// Job is the unit of work triggered by the scheduler.
type Job func(ctx context.Context) error

// ErrAlreadyRunning is returned by Trigger when a previous run is still in flight.
var ErrAlreadyRunning = errors.New("schedule: job already running")

type Config struct {
	Enabled  bool
	Spec     string
	Timeout  time.Duration // 0 disables the per-run deadline
	Location *time.Location
}

// Service owns one cron instance and one job.
type Service struct {
	name   string
	job    Job
	log    logx.Logger
	parser cron.Parser

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	entryID cron.EntryID
	baseCtx context.Context

	running atomic.Bool
	wg      sync.WaitGroup
}

func New(name string, cfg Config, job Job, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		name: name,
		job:  job,
		log:  log,
		cfg:  cfg,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Validate checks that cfg.Spec can be registered.
func (s *Service) Validate(cfg Config) error {
	_, err := s.schedule(cfg.Spec)
	return err
}

func (s *Service) schedule(spec string) (cron.Schedule, error) {
	ps, err := ParseSchedule(spec)
	if err != nil {
		return nil, err
	}
	switch ps.Kind {
	case SpecCron:
		sched, err := s.parser.Parse(ps.Cron)
		if err != nil {
			return nil, fmt.Errorf("invalid cron %q: %w", ps.Cron, err)
		}
		return sched, nil
	case SpecInterval:
		return cron.Every(ps.Every), nil
	default:
		return nil, fmt.Errorf("unsupported schedule kind")
	}
}

// Start begins triggering when the config is enabled. ctx is the parent of every run.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.baseCtx = ctx
	return s.startLocked()
}

func (s *Service) startLocked() error {
	cfg := s.cfg
	if !cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	sched, err := s.schedule(cfg.Spec)
	if err != nil {
		return err
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	s.entryID = s.c.Schedule(sched, cron.FuncJob(s.tick))
	s.c.Start()

	next := s.c.Entry(s.entryID).Next
	s.log.Info("scheduler started",
		logx.String("name", s.name),
		logx.String("spec", strings.TrimSpace(cfg.Spec)),
		logx.String("tz", loc.String()),
		logx.Time("next", next),
	)
	return nil
}

// Apply swaps the schedule. A run in flight is not interrupted.
func (s *Service) Apply(cfg Config) error {
	if cfg.Enabled {
		if err := s.Validate(cfg); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if s.baseCtx == nil {
		// not started yet
		return nil
	}
	if s.c != nil {
		s.c.Stop()
		s.c = nil
		s.entryID = 0
	}
	return s.startLocked()
}

// Next returns the next planned trigger, or zero when the scheduler is idle.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	return s.c.Entry(s.entryID).Next
}

// Stop stops triggering and waits for a run in flight, bounded by ctx.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; run still in flight", logx.String("name", s.name))
	}
}

func (s *Service) tick() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	err := s.Trigger(ctx)
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		s.log.Warn("scheduled run skipped; previous run still in flight", logx.String("name", s.name))
	case err != nil:
		s.log.Error("scheduled run failed", logx.String("name", s.name), logx.Err(err))
	}
}

// Trigger runs the job now, applying the configured timeout.
// It returns ErrAlreadyRunning without running the job if a run is in flight.
func (s *Service) Trigger(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	s.wg.Add(1)
	defer func() {
		s.running.Store(false)
		s.wg.Done()
	}()

	s.mu.Lock()
	timeout := s.cfg.Timeout
	s.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.runJob(ctx)
	s.log.Debug("run finished", logx.String("name", s.name), logx.Duration("took", time.Since(start)), logx.Err(err))
	return err
}

func (s *Service) runJob(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return s.job(ctx)
}
