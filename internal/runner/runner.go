// Package runner sequences one menu check: fetch, extract, validate the week,
// scan for today's dish and, on a match, notify every subscriber.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"schnitzelbot/internal/dispatch"
	"schnitzelbot/internal/eventbus"
	"schnitzelbot/internal/menu"
	"schnitzelbot/internal/source"
	"schnitzelbot/internal/storage"
	"schnitzelbot/internal/subscriber"
	logx "schnitzelbot/pkg/logx"
)

// State names a step of a run. Failures carry the state they happened in.
type State string

const (
	StateFetching       State = "fetching"
	StateExtracting     State = "extracting"
	StateValidatingWeek State = "validating_week"
	StateSkipped        State = "skipped"
	StateScanning       State = "scanning"
	StateNoMatch        State = "no_match"
	StateDispatching    State = "dispatching"
	StateDone           State = "done"
)

// Kind classifies a successful run.
type Kind int

const (
	OutcomeSkipped Kind = iota + 1
	OutcomeNoMatch
	OutcomeDispatched
)

func (k Kind) String() string {
	switch k {
	case OutcomeSkipped:
		return storage.OutcomeSkipped
	case OutcomeNoMatch:
		return storage.OutcomeNoMatch
	case OutcomeDispatched:
		return storage.OutcomeDispatched
	default:
		return "unknown"
	}
}

// Outcome is the result of a successful run. Dish and Report are set only
// for OutcomeDispatched.
type Outcome struct {
	Kind   Kind
	Week   int
	Dish   menu.Dish
	Report dispatch.Report
}

// RunError is a fatal run failure.
type RunError struct {
	State State
	Err   error
}

func (e *RunError) Error() string { return fmt.Sprintf("run failed while %s: %v", e.State, e.Err) }

func (e *RunError) Unwrap() error { return e.Err }

// Sender delivers one message to a subscriber list.
type Sender interface {
	Dispatch(ctx context.Context, message string, subs []subscriber.Subscriber) (dispatch.Report, error)
}

// Deps wires a Runner. Source, Registry and Sender are required.
type Deps struct {
	Source    source.Fetcher
	Extractor menu.Extractor // defaults to menu.PDFExtractor
	Registry  subscriber.Lister
	Sender    Sender

	// Dishes defaults to menu.Dishes.
	Dishes []menu.Dish
	// URL is substituted into dish messages. Defaults to the source URL when it exposes one.
	URL string

	Location *time.Location   // defaults to time.Local
	Now      func() time.Time // defaults to time.Now

	Log logx.Logger
	Bus eventbus.Bus
}

type Runner struct {
	d Deps
}

func New(d Deps) *Runner {
	if d.Extractor == nil {
		d.Extractor = menu.PDFExtractor{}
	}
	if d.Dishes == nil {
		d.Dishes = menu.Dishes
	}
	if strings.TrimSpace(d.URL) == "" {
		if u, ok := d.Source.(interface{ URL() string }); ok {
			d.URL = u.URL()
		}
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Bus == nil {
		d.Bus = eventbus.Nop()
	}
	return &Runner{d: d}
}

// RunOnce performs one complete check. Skipped and no-match runs succeed.
// Every error is a *RunError.
func (r *Runner) RunOnce(ctx context.Context) (out Outcome, err error) {
	start := time.Now()
	now := r.d.Now().In(r.d.Location)
	_, week := now.ISOWeek()
	today := now.Weekday()
	log := r.d.Log.With(logx.Int("week", week), logx.String("today", today.String()))

	defer func() {
		r.finish(now, start, out, err)
		if err != nil {
			log.Error("run failed", logx.Err(err))
		}
	}()

	log.Debug("fetching menu")
	raw, err := r.d.Source.Fetch(ctx)
	if err != nil {
		return Outcome{}, &RunError{State: StateFetching, Err: err}
	}

	text, err := r.d.Extractor.Extract(raw)
	if err != nil {
		return Outcome{}, &RunError{State: StateExtracting, Err: err}
	}
	doc := menu.NewDocument(text)

	current, err := menu.ValidateWeek(doc.Text, week)
	if err != nil {
		return Outcome{}, &RunError{State: StateValidatingWeek, Err: err}
	}
	if !current {
		log.Info("menu is for another week; skipping", logx.Int("menu_week", doc.Week))
		return Outcome{Kind: OutcomeSkipped, Week: doc.Week}, nil
	}

	dish, ok := menu.Match(doc.Text, today, r.d.Dishes)
	if !ok {
		log.Info("no watched dish today")
		return Outcome{Kind: OutcomeNoMatch, Week: doc.Week}, nil
	}
	log = log.With(logx.String("dish", dish.ID))

	subs, err := r.d.Registry.List(ctx)
	if err != nil {
		return Outcome{}, &RunError{State: StateScanning, Err: err}
	}

	log.Info("dish served today; notifying subscribers", logx.Int("subscribers", len(subs)))
	rep, err := r.d.Sender.Dispatch(ctx, dish.Render(r.d.URL), subs)
	out = Outcome{Kind: OutcomeDispatched, Week: doc.Week, Dish: dish, Report: rep}
	if err != nil {
		return out, &RunError{State: StateDispatching, Err: err}
	}
	return out, nil
}

// finish publishes the run summary.
func (r *Runner) finish(at, start time.Time, out Outcome, err error) {
	rec := storage.RunRecord{
		At:        at,
		Outcome:   out.Kind.String(),
		Week:      out.Week,
		Dish:      out.Dish.ID,
		Attempted: out.Report.Attempted,
		Failed:    out.Report.Failed,
		TookMS:    time.Since(start).Milliseconds(),
	}
	if err != nil {
		rec.Outcome = storage.OutcomeFailed
		rec.Error = err.Error()
		var re *RunError
		if errors.As(err, &re) {
			rec.State = string(re.State)
		}
	} else {
		switch out.Kind {
		case OutcomeSkipped:
			rec.State = string(StateSkipped)
		case OutcomeNoMatch:
			rec.State = string(StateNoMatch)
		default:
			rec.State = string(StateDone)
		}
	}
	r.d.Bus.Publish(eventbus.Event{Type: eventbus.TypeRunFinished, Data: rec})
}

// Summary renders a one-line description of a run result for humans and monitors.
func Summary(out Outcome, err error) string {
	if err != nil {
		return err.Error()
	}
	switch out.Kind {
	case OutcomeSkipped:
		return fmt.Sprintf("skipped: menu is for week %d", out.Week)
	case OutcomeNoMatch:
		return fmt.Sprintf("no watched dish today (week %d)", out.Week)
	case OutcomeDispatched:
		return fmt.Sprintf("%s today: notified %d subscriber(s)", out.Dish.ID, out.Report.Attempted)
	default:
		return "unknown outcome"
	}
}
