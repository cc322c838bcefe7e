package storage

import (
	"context"
	"errors"
	"strings"

	logx "schnitzelbot/pkg/logx"
)

// Open initializes the configured store.
// An empty driver selects "memory".
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	var (
		st  Store
		err error
	)
	switch driver {
	case "", "memory":
		st = NewMemory()
	case "file":
		st, err = openFile(cfg, log)
	case "sqlite", "sqlite3":
		st, err = openSQLite(ctx, cfg, log)
	case "postgres", "postgresql", "pg":
		st, err = openPostgres(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.SecretKey) != "" {
		sealer, err := NewSealer(cfg.SecretKey)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		st = &sealedStore{Store: st, sealer: sealer}
	}
	return st, nil
}
