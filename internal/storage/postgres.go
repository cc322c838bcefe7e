package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"schnitzelbot/internal/subscriber"
	logx "schnitzelbot/pkg/logx"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS subscribers (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL DEFAULT 'slack',
	credential TEXT NOT NULL,
	destination_id TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id BIGSERIAL PRIMARY KEY,
	at TIMESTAMPTZ NOT NULL,
	outcome TEXT NOT NULL,
	state TEXT NOT NULL DEFAULT '',
	dish TEXT NOT NULL DEFAULT '',
	week INTEGER NOT NULL DEFAULT 0,
	attempted INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	err TEXT NOT NULL DEFAULT '',
	took_ms BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_at ON runs(at);
`

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pcfg.MaxConnLifetime = 5 * time.Minute
	pcfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	log.Debug("postgres store opened")
	return &postgresStore{pool: pool, log: log}, nil
}

func (s *postgresStore) ListSubscribers(ctx context.Context, cursor string, limit int) ([]subscriber.Subscriber, string, error) {
	if limit <= 0 {
		limit = subscriber.DefaultPageSize
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, provider, credential, destination_id, display_name
		FROM subscribers WHERE id > $1 ORDER BY id LIMIT $2
	`, cursor, limit+1)
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

func (s *postgresStore) PutSubscriber(ctx context.Context, in subscriber.Subscriber) (subscriber.Subscriber, error) {
	sub, err := prepareSubscriber(in)
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO subscribers (id, provider, credential, destination_id, display_name, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE
		SET provider=$2, credential=$3, destination_id=$4, display_name=$5, updated_at=$6
	`, sub.ID, sub.Provider, sub.Credential, sub.DestinationID, sub.DisplayName, time.Now().UTC())
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	return sub, nil
}

func (s *postgresStore) DeleteSubscriber(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM subscribers WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) AppendRun(ctx context.Context, r RunRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (at, outcome, state, dish, week, attempted, failed, err, took_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, r.At.UTC(), r.Outcome, r.State, r.Dish, r.Week, r.Attempted, r.Failed, r.Error, r.TookMS)
	return err
}

func (s *postgresStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT at, outcome, state, dish, week, attempted, failed, err, took_ms
		FROM runs ORDER BY id DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.At, &r.Outcome, &r.State, &r.Dish, &r.Week, &r.Attempted, &r.Failed, &r.Error, &r.TookMS); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
