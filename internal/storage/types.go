package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"schnitzelbot/internal/subscriber"
	"schnitzelbot/internal/transport"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: closed")
)

// Config configures storage.
//
// Driver values: "memory", "file", "sqlite", "postgres".
// Path is used by file and sqlite, DSN by postgres.
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
	SecretKey   string        // optional; enables credential sealing
}

// Store is the persistence API used by the app and CLI.
type Store interface {
	subscriber.Pager
	PutSubscriber(ctx context.Context, s subscriber.Subscriber) (subscriber.Subscriber, error)
	DeleteSubscriber(ctx context.Context, id string) error
	AppendRun(ctx context.Context, r RunRecord) error
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	Close() error
}

// Run outcomes as stored in RunRecord.Outcome.
const (
	OutcomeSkipped    = "skipped"
	OutcomeNoMatch    = "no_match"
	OutcomeDispatched = "dispatched"
	OutcomeFailed     = "failed"
)

// RunRecord is the persisted summary of one run.
// Keep it compact and schema-stable.
type RunRecord struct {
	At        time.Time `json:"at"`
	Outcome   string    `json:"outcome"`
	State     string    `json:"state,omitempty"`
	Dish      string    `json:"dish,omitempty"`
	Week      int       `json:"week,omitempty"`
	Attempted int       `json:"attempted"`
	Failed    int       `json:"failed"`
	Error     string    `json:"error,omitempty"`
	TookMS    int64     `json:"took_ms"`
}

// prepareSubscriber validates s, normalizes the provider and assigns an ID when missing.
func prepareSubscriber(s subscriber.Subscriber) (subscriber.Subscriber, error) {
	s.Provider = transport.NormalizeProvider(s.Provider)
	s.DestinationID = strings.TrimSpace(s.DestinationID)
	s.DisplayName = strings.TrimSpace(s.DisplayName)
	if err := s.Validate(); err != nil {
		return subscriber.Subscriber{}, err
	}
	if strings.TrimSpace(s.ID) == "" {
		s.ID = uuid.NewString()
	}
	return s, nil
}

// pageOf returns the page after cursor from subscribers keyed by ID.
func pageOf(m map[string]subscriber.Subscriber, cursor string, limit int) ([]subscriber.Subscriber, string) {
	ids := make([]string, 0, len(m))
	for id := range m {
		if id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit <= 0 {
		limit = subscriber.DefaultPageSize
	}
	next := ""
	if len(ids) > limit {
		ids = ids[:limit]
		next = ids[len(ids)-1]
	}
	out := make([]subscriber.Subscriber, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out, next
}

// lastRuns returns up to limit records, newest first.
func lastRuns(all []RunRecord, limit int) []RunRecord {
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]RunRecord, 0, limit)
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out
}
