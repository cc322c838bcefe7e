package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"schnitzelbot/internal/dispatch"
	"schnitzelbot/internal/eventbus"
	"schnitzelbot/internal/menu"
	"schnitzelbot/internal/source"
	"schnitzelbot/internal/storage"
	"schnitzelbot/internal/subscriber"
	"schnitzelbot/internal/transport"
	logx "schnitzelbot/pkg/logx"
)

const menuURL = "https://menu.example/week.pdf"

// Wednesday of ISO week 7.
var wednesdayWeek7 = time.Date(2024, time.February, 14, 10, 0, 0, 0, time.UTC)

func menuText(week string) string {
	return week + " wochenkarte " +
		"m o n t a g gulasch " +
		"d i e n s t a g linsensuppe " +
		"m i t t w o c h cordon bleu mit pommes " +
		"d o n n e r s t a g schnitzel wiener art " +
		"f r e i t a g fisch"
}

type fakeSender struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeSender) Dispatch(ctx context.Context, message string, subs []subscriber.Subscriber) (dispatch.Report, error) {
	f.mu.Lock()
	f.calls = append(f.calls, message)
	f.mu.Unlock()
	rep := dispatch.Report{Attempted: len(subs)}
	if f.err != nil {
		rep.Failed = 1
	}
	return rep, f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type countingLister struct {
	subs  []subscriber.Subscriber
	err   error
	calls int
}

func (l *countingLister) List(context.Context) ([]subscriber.Subscriber, error) {
	l.calls++
	if l.err != nil {
		return nil, &subscriber.UnavailableError{Err: l.err}
	}
	return l.subs, nil
}

func textExtractor(text string) menu.Extractor {
	return menu.ExtractorFunc(func([]byte) (string, error) { return text, nil })
}

func newRunner(text string, now time.Time, reg subscriber.Lister, sender Sender) *Runner {
	return New(Deps{
		Source:    source.Static("%PDF-fake"),
		Extractor: textExtractor(text),
		Registry:  reg,
		Sender:    sender,
		URL:       menuURL,
		Location:  time.UTC,
		Now:       func() time.Time { return now },
		Log:       logx.Nop(),
	})
}

func twoSubs() []subscriber.Subscriber {
	return []subscriber.Subscriber{
		{ID: "a", Provider: "slack", Credential: "x", DestinationID: "C1"},
		{ID: "b", Provider: "telegram", Credential: "y", DestinationID: "42"},
	}
}

func TestRunOnceWrongWeekSkips(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	reg := &countingLister{subs: twoSubs()}
	r := newRunner(menuText("kw 8"), wednesdayWeek7, reg, sender)

	out, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Kind != OutcomeSkipped || out.Week != 8 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if sender.count() != 0 || reg.calls != 0 {
		t.Fatalf("skipped run must not read registry or dispatch (sends=%d lists=%d)", sender.count(), reg.calls)
	}
}

func TestRunOnceDispatchesCordonBleuOnWednesday(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	reg := &countingLister{subs: twoSubs()}
	r := newRunner(menuText("kw7"), wednesdayWeek7, reg, sender)

	out, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Kind != OutcomeDispatched || out.Dish.ID != "cordon bleu" {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.Report.Attempted != 2 {
		t.Fatalf("expected 2 attempted, got %d", out.Report.Attempted)
	}
	if sender.count() != 1 {
		t.Fatalf("expected exactly one dispatch call, got %d", sender.count())
	}
	if want := "Cordon bleu day! " + menuURL; sender.calls[0] != want {
		t.Fatalf("message = %q, want %q", sender.calls[0], want)
	}
}

func TestRunOnceWeekMarkerWithNoBreakSpace(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{}
	r := newRunner(menuText("Wochenkarte KW\u00a07"), wednesdayWeek7, &countingLister{subs: twoSubs()}, sender)

	out, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Kind != OutcomeDispatched || out.Week != 7 || sender.count() != 1 {
		t.Fatalf("unexpected outcome: %+v (sends=%d)", out, sender.count())
	}
}

func TestRunOnceEndToEndDeliversOncePerSubscriber(t *testing.T) {
	t.Parallel()
	var (
		mu   sync.Mutex
		sent = map[string][]string{}
	)
	factory := transport.NewMux(
		transport.WithProvider(transport.ProviderSlack, func(cred string) (transport.Client, error) {
			return transport.ClientFunc(func(ctx context.Context, dest, text string) error {
				mu.Lock()
				sent[dest] = append(sent[dest], text)
				mu.Unlock()
				return nil
			}), nil
		}),
	)
	subs := []subscriber.Subscriber{
		{ID: "1", Provider: "slack", Credential: "t1", DestinationID: "C1"},
		{ID: "2", Provider: "slack", Credential: "t2", DestinationID: "C2"},
		{ID: "3", Provider: "slack", Credential: "t3", DestinationID: "C3"},
	}
	d := dispatch.New(dispatch.Config{}, factory, logx.Nop(), nil)
	r := newRunner(menuText("KW 7"), wednesdayWeek7, subscriber.Static(subs), d)

	out, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Kind != OutcomeDispatched || out.Dish.ID != "cordon bleu" || out.Report.Failed != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	for _, s := range subs {
		msgs := sent[s.DestinationID]
		if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "Cordon bleu day!") {
			t.Fatalf("subscriber %s got %v", s.ID, msgs)
		}
	}
}

func TestRunOnceNoMatch(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		now  time.Time
		text string
	}{
		{"monday has neither dish", time.Date(2024, time.February, 12, 9, 0, 0, 0, time.UTC), menuText("kw 7")},
		{"dish without heading", wednesdayWeek7, "kw 7 schnitzel des tages"},
		{"weekend", time.Date(2024, time.February, 18, 9, 0, 0, 0, time.UTC), menuText("kw 7")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sender := &fakeSender{}
			reg := &countingLister{subs: twoSubs()}
			out, err := newRunner(tc.text, tc.now, reg, sender).RunOnce(context.Background())
			if err != nil {
				t.Fatalf("RunOnce: %v", err)
			}
			if out.Kind != OutcomeNoMatch {
				t.Fatalf("expected no match, got %+v", out)
			}
			if sender.count() != 0 || reg.calls != 0 {
				t.Fatalf("no-match run must not read registry or dispatch")
			}
		})
	}
}

func TestRunOnceSchnitzelWinsOverCordonBleu(t *testing.T) {
	t.Parallel()
	text := "kw 7 m i t t w o c h cordon bleu oder schnitzel"
	sender := &fakeSender{}
	out, err := newRunner(text, wednesdayWeek7, &countingLister{}, sender).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Dish.ID != "schnitzel" || sender.count() != 1 {
		t.Fatalf("expected a single schnitzel dispatch, got %+v (calls=%d)", out, sender.count())
	}
}

func TestRunOnceFailures(t *testing.T) {
	t.Parallel()
	fetchErr := &source.FetchError{URL: menuURL, Status: 503, Err: errors.New("unavailable")}

	cases := []struct {
		name      string
		deps      func(d *Deps)
		wantState State
		check     func(t *testing.T, err error)
	}{
		{
			name:      "fetch",
			deps:      func(d *Deps) { d.Source = failingSource{err: fetchErr} },
			wantState: StateFetching,
			check: func(t *testing.T, err error) {
				var fe *source.FetchError
				if !errors.As(err, &fe) || fe.Status != 503 {
					t.Fatalf("expected FetchError, got %v", err)
				}
			},
		},
		{
			name:      "extract",
			deps:      func(d *Deps) { d.Extractor = menu.PDFExtractor{}; d.Source = source.Static("<html>") },
			wantState: StateExtracting,
			check: func(t *testing.T, err error) {
				var ee *menu.ExtractionError
				if !errors.As(err, &ee) {
					t.Fatalf("expected ExtractionError, got %v", err)
				}
			},
		},
		{
			name:      "week missing",
			deps:      func(d *Deps) { d.Extractor = textExtractor("m i t t w o c h schnitzel") },
			wantState: StateValidatingWeek,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, menu.ErrWeekNumberMissing) {
					t.Fatalf("expected ErrWeekNumberMissing, got %v", err)
				}
			},
		},
		{
			name:      "registry",
			deps:      func(d *Deps) { d.Registry = &countingLister{err: errors.New("table gone")} },
			wantState: StateScanning,
			check: func(t *testing.T, err error) {
				var ue *subscriber.UnavailableError
				if !errors.As(err, &ue) {
					t.Fatalf("expected UnavailableError, got %v", err)
				}
			},
		},
		{
			name: "partial delivery",
			deps: func(d *Deps) {
				d.Sender = &fakeSender{err: &dispatch.PartialDeliveryError{Attempted: 2, Failures: []dispatch.Outcome{{SubscriberID: "b", Err: errors.New("401")}}}}
			},
			wantState: StateDispatching,
			check: func(t *testing.T, err error) {
				var pe *dispatch.PartialDeliveryError
				if !errors.As(err, &pe) || len(pe.FailedIDs()) != 1 || pe.FailedIDs()[0] != "b" {
					t.Fatalf("expected PartialDeliveryError for b, got %v", err)
				}
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := Deps{
				Source:    source.Static("%PDF-"),
				Extractor: textExtractor(menuText("kw 7")),
				Registry:  &countingLister{subs: twoSubs()},
				Sender:    &fakeSender{},
				Location:  time.UTC,
				Now:       func() time.Time { return wednesdayWeek7 },
			}
			tc.deps(&d)
			_, err := New(d).RunOnce(context.Background())
			var re *RunError
			if !errors.As(err, &re) {
				t.Fatalf("expected RunError, got %v", err)
			}
			if re.State != tc.wantState {
				t.Fatalf("State = %s, want %s", re.State, tc.wantState)
			}
			tc.check(t, err)
		})
	}
}

type failingSource struct{ err error }

func (f failingSource) Fetch(context.Context) ([]byte, error) { return nil, f.err }

func TestRunOnceIsIdempotent(t *testing.T) {
	t.Parallel()
	for _, text := range []string{menuText("kw 6"), menuText("kw 7")} {
		r := newRunner(text, wednesdayWeek7, &countingLister{subs: twoSubs()}, &fakeSender{})
		first, err1 := r.RunOnce(context.Background())
		second, err2 := r.RunOnce(context.Background())
		if (err1 == nil) != (err2 == nil) || first.Kind != second.Kind || first.Dish.ID != second.Dish.ID {
			t.Fatalf("runs differ: %+v/%v vs %+v/%v", first, err1, second, err2)
		}
	}
}

func TestRunOncePublishesRunRecord(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()

	r := New(Deps{
		Source:    source.Static("%PDF-"),
		Extractor: textExtractor(menuText("kw 7")),
		Registry:  &countingLister{subs: twoSubs()},
		Sender:    &fakeSender{},
		Location:  time.UTC,
		Now:       func() time.Time { return wednesdayWeek7 },
		Bus:       bus,
	})
	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	select {
	case ev := <-ch:
		rec, ok := ev.Data.(storage.RunRecord)
		if ev.Type != eventbus.TypeRunFinished || !ok {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if rec.Outcome != storage.OutcomeDispatched || rec.Dish != "cordon bleu" || rec.Week != 7 || rec.State != string(StateDone) {
			t.Fatalf("unexpected record: %+v", rec)
		}
	case <-time.After(time.Second):
		t.Fatalf("no run.finished event")
	}
}

func TestSummary(t *testing.T) {
	t.Parallel()
	if got := Summary(Outcome{Kind: OutcomeSkipped, Week: 8}, nil); !strings.Contains(got, "week 8") {
		t.Fatalf("Summary = %q", got)
	}
	if got := Summary(Outcome{}, &RunError{State: StateFetching, Err: errors.New("boom")}); !strings.Contains(got, "fetching") {
		t.Fatalf("Summary = %q", got)
	}
}
