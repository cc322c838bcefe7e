package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"schnitzelbot/internal/subscriber"
	logx "schnitzelbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.subscribers.json (snapshot, rewritten atomically on change)
//   - <prefix>.runs.jsonl       (append-only JSON Lines)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	subsPath string
	subs     map[string]subscriber.Subscriber

	runsPath string
	runsFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	subsPath := prefix + ".subscribers.json"
	runsPath := prefix + ".runs.jsonl"

	subs := map[string]subscriber.Subscriber{}
	if err := loadSubscribers(subsPath, subs); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	rf, err := os.OpenFile(runsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	log.Debug("file store opened", logx.String("prefix", prefix), logx.Int("subscribers", len(subs)))

	return &fileStore{
		log:      log,
		subsPath: subsPath,
		subs:     subs,
		runsPath: runsPath,
		runsFile: rf,
	}, nil
}

func (s *fileStore) ListSubscribers(ctx context.Context, cursor string, limit int) ([]subscriber.Subscriber, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return nil, "", ErrClosed
	}
	items, next := pageOf(s.subs, cursor, limit)
	return items, next, nil
}

func (s *fileStore) PutSubscriber(ctx context.Context, in subscriber.Subscriber) (subscriber.Subscriber, error) {
	sub, err := prepareSubscriber(in)
	if err != nil {
		return subscriber.Subscriber{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return subscriber.Subscriber{}, ErrClosed
	}
	prev, had := s.subs[sub.ID]
	s.subs[sub.ID] = sub
	if err := s.writeSubscribersLocked(); err != nil {
		if had {
			s.subs[sub.ID] = prev
		} else {
			delete(s.subs, sub.ID)
		}
		return subscriber.Subscriber{}, err
	}
	return sub, nil
}

func (s *fileStore) DeleteSubscriber(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return ErrClosed
	}
	prev, ok := s.subs[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.subs, id)
	if err := s.writeSubscribersLocked(); err != nil {
		s.subs[id] = prev
		return err
	}
	return nil
}

func (s *fileStore) AppendRun(ctx context.Context, r RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return ErrClosed
	}
	return json.NewEncoder(s.runsFile).Encode(r)
}

func (s *fileStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return nil, ErrClosed
	}
	f, err := os.Open(s.runsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var all []RunRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r RunRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			// Skip torn lines from a crash mid-write.
			continue
		}
		all = append(all, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lastRuns(all, limit), nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runsFile == nil {
		return nil
	}
	err := s.runsFile.Close()
	s.runsFile = nil
	return err
}

func (s *fileStore) writeSubscribersLocked() error {
	list := make([]subscriber.Subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		list = append(list, sub)
	}
	tmp := s.subsPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(list); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.subsPath)
}

func loadSubscribers(path string, out map[string]subscriber.Subscriber) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var list []subscriber.Subscriber
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	for _, sub := range list {
		if sub.ID != "" {
			out[sub.ID] = sub
		}
	}
	return nil
}
