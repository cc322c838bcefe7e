package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"schnitzelbot/internal/subscriber"
	logx "schnitzelbot/pkg/logx"
)

//go:embed migrations.sql
var sqliteMigrations string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = time.Second
	}
	_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(ctx, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) ListSubscribers(ctx context.Context, cursor string, limit int) ([]subscriber.Subscriber, string, error) {
	if limit <= 0 {
		limit = subscriber.DefaultPageSize
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, provider, credential, destination_id, COALESCE(display_name, '')
		 FROM subscribers WHERE id > ? ORDER BY id LIMIT ?`, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	out := make([]subscriber.Subscriber, 0, limit)
	for rows.Next() {
		var sub subscriber.Subscriber
		if err := rows.Scan(&sub.ID, &sub.Provider, &sub.Credential, &sub.DestinationID, &sub.DisplayName); err != nil {
			return nil, "", err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}

func (s *sqliteStore) PutSubscriber(ctx context.Context, in subscriber.Subscriber) (subscriber.Subscriber, error) {
	sub, err := prepareSubscriber(in)
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO subscribers(id, provider, credential, destination_id, display_name, updated_at)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   provider=excluded.provider, credential=excluded.credential,
		   destination_id=excluded.destination_id, display_name=excluded.display_name,
		   updated_at=excluded.updated_at`,
		sub.ID, sub.Provider, sub.Credential, sub.DestinationID, nullStr(sub.DisplayName), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	return sub, nil
}

func (s *sqliteStore) DeleteSubscriber(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) AppendRun(ctx context.Context, r RunRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs(at, outcome, state, dish, week, attempted, failed, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		r.At.UTC().Format(time.RFC3339Nano), r.Outcome, nullStr(r.State), nullStr(r.Dish),
		r.Week, r.Attempted, r.Failed, nullStr(r.Error), r.TookMS,
	)
	return err
}

func (s *sqliteStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, outcome, COALESCE(state, ''), COALESCE(dish, ''), week, attempted, failed, COALESCE(err, ''), took_ms
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r  RunRecord
			at string
		)
		if err := rows.Scan(&at, &r.Outcome, &r.State, &r.Dish, &r.Week, &r.Attempted, &r.Failed, &r.Error, &r.TookMS); err != nil {
			return nil, err
		}
		r.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
