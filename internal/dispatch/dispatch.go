// Package dispatch fans one message out to every subscriber.
//
// Each subscriber gets its own goroutine and its own client. All sends settle
// before Dispatch returns, and any individual failure makes the whole call fail
// with *PartialDeliveryError so callers can alert on it.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"schnitzelbot/internal/eventbus"
	"schnitzelbot/internal/subscriber"
	"schnitzelbot/internal/transport"
	logx "schnitzelbot/pkg/logx"
)

type Config struct {
	// SendTimeout bounds each subscriber's send independently. 0 disables it.
	SendTimeout time.Duration
}

// Outcome is the result of one subscriber's send.
type Outcome struct {
	SubscriberID string
	Label        string
	Destination  string
	Err          error
}

func (o Outcome) OK() bool { return o.Err == nil }

// Report aggregates one Dispatch call.
type Report struct {
	Attempted int
	Failed    int
	Failures  []Outcome
	Took      time.Duration
}

// PartialDeliveryError is returned when at least one subscriber send failed.
// It is only produced after every send has settled.
type PartialDeliveryError struct {
	Attempted int
	Failures  []Outcome
}

func (e *PartialDeliveryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "partial delivery: %d of %d sends failed", len(e.Failures), e.Attempted)
	for i, f := range e.Failures {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(f.Label)
		b.WriteString(": ")
		b.WriteString(f.Err.Error())
	}
	return b.String()
}

// Unwrap exposes every per-subscriber error to errors.Is / errors.As.
func (e *PartialDeliveryError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

// FailedIDs lists the subscriber IDs that did not receive the message.
func (e *PartialDeliveryError) FailedIDs() []string {
	out := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.SubscriberID)
	}
	return out
}

type Dispatcher struct {
	cfg     Config
	factory transport.Factory
	log     logx.Logger
	bus     eventbus.Bus
}

func New(cfg Config, factory transport.Factory, log logx.Logger, bus eventbus.Bus) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Dispatcher{cfg: cfg, factory: factory, log: log, bus: bus}
}

// Dispatch sends message to every subscriber concurrently and waits for all of them.
// The report is always returned, including on error.
func (d *Dispatcher) Dispatch(ctx context.Context, message string, subs []subscriber.Subscriber) (Report, error) {
	start := time.Now()
	outcomes := make([]Outcome, len(subs))

	// Every task returns nil so Wait is a settle-all join, never fail-fast.
	var g errgroup.Group
	for i := range subs {
		idx := i
		sub := subs[i]
		g.Go(func() error {
			outcomes[idx] = d.sendOne(ctx, sub, message)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Attempted: len(subs), Took: time.Since(start)}
	for _, o := range outcomes {
		if !o.OK() {
			rep.Failures = append(rep.Failures, o)
		}
	}
	rep.Failed = len(rep.Failures)

	fields := []logx.Field{
		logx.Int("attempted", rep.Attempted),
		logx.Int("failed", rep.Failed),
		logx.Duration("took", rep.Took),
	}
	if rep.Failed > 0 {
		d.log.Warn("dispatch finished with failures", fields...)
		return rep, &PartialDeliveryError{Attempted: rep.Attempted, Failures: rep.Failures}
	}
	d.log.Info("dispatch finished", fields...)
	return rep, nil
}

func (d *Dispatcher) sendOne(ctx context.Context, sub subscriber.Subscriber, message string) (out Outcome) {
	out = Outcome{SubscriberID: sub.ID, Label: sub.Label(), Destination: sub.DestinationID}
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("panic during send: %v", r)
			d.log.Error("panic in subscriber send", logx.String("subscriber", out.Label), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
		d.publish(out)
	}()

	client, err := d.factory.NewClient(sub.Provider, sub.Credential)
	if err != nil {
		out.Err = fmt.Errorf("build client: %w", err)
		d.log.Warn("subscriber client setup failed", logx.String("subscriber", out.Label), logx.Err(err))
		return out
	}

	callCtx := ctx
	if d.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()
	}
	if err := client.PostText(callCtx, sub.DestinationID, message); err != nil {
		out.Err = err
		d.log.Warn("subscriber send failed", logx.String("subscriber", out.Label), logx.String("provider", transport.NormalizeProvider(sub.Provider)), logx.Err(err))
		return out
	}
	d.log.Debug("subscriber send ok", logx.String("subscriber", out.Label))
	return out
}

func (d *Dispatcher) publish(o Outcome) {
	typ := eventbus.TypeDispatchSent
	if !o.OK() {
		typ = eventbus.TypeDispatchFailed
	}
	d.bus.Publish(eventbus.Event{Type: typ, Data: o})
}
