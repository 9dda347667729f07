package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/ClaudioCeppi83/albion-parchis/internal/storage"
	"github.com/ClaudioCeppi83/albion-parchis/internal/storage/postgres"
	"github.com/ClaudioCeppi83/albion-parchis/internal/storage/sqlite"
)

// Store persists full game snapshots keyed by game id. LoadActiveGames may
// return a *storage.CorruptError together with the games that did decode.
type Store interface {
	SaveGame(ctx context.Context, g *parchis.Game) error
	LoadGame(ctx context.Context, id string) (*parchis.Game, error)
	LoadActiveGames(ctx context.Context) ([]*parchis.Game, error)
	DeleteGame(ctx context.Context, id string) error
	CleanupFinished(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}

// OpenStore picks a store from the database URL:
//
//	""                          in memory, lost on restart
//	postgres://, postgresql://  pgx pool
//	sqlite://path, file:path    embedded sqlite file
func OpenStore(ctx context.Context, databaseURL string) (Store, error) {
	url := strings.TrimSpace(databaseURL)
	switch {
	case url == "":
		return NewMemoryStore(), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		store, err := postgres.Open(ctx, url)
		if err != nil {
			return nil, err
		}
		return store, nil
	case strings.HasPrefix(url, "sqlite://"), strings.HasPrefix(url, "file:"):
		path := strings.TrimPrefix(strings.TrimPrefix(url, "sqlite://"), "file:")
		store, err := sqlite.Open(path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported DATABASE_URL scheme in %q", url)
}

// MemoryStore keeps encoded records in a map. It goes through the same
// codec as the database stores, so a game read back never shares memory
// with the live one.
type MemoryStore struct {
	records map[string]storage.Record
	now     func() time.Time
	mu      sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]storage.Record),
		now:     time.Now,
	}
}

func (m *MemoryStore) SaveGame(_ context.Context, g *parchis.Game) error {
	rec, err := storage.Encode(g)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.records[rec.ID]; ok {
		rec.CreatedAt = prev.CreatedAt
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *MemoryStore) LoadGame(_ context.Context, id string) (*parchis.Game, error) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.Decode(rec.Data)
}

func (m *MemoryStore) LoadActiveGames(_ context.Context) ([]*parchis.Game, error) {
	m.mu.RLock()
	recs := make([]storage.Record, 0, len(m.records))
	for _, rec := range m.records {
		if rec.Status != parchis.StatusFinished {
			recs = append(recs, rec)
		}
	}
	m.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].UpdatedAt.After(recs[j].UpdatedAt) })

	games := make([]*parchis.Game, 0, len(recs))
	var corrupt []string
	for _, rec := range recs {
		g, err := storage.Decode(rec.Data)
		if err != nil {
			corrupt = append(corrupt, rec.ID)
			continue
		}
		games = append(games, g)
	}
	return games, storage.Corrupt(corrupt)
}

func (m *MemoryStore) DeleteGame(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *MemoryStore) CleanupFinished(_ context.Context, olderThan time.Duration) (int64, error) {
	cutoff := m.now().Add(-olderThan)
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for id, rec := range m.records {
		if rec.Status == parchis.StatusFinished && rec.UpdatedAt.Before(cutoff) {
			delete(m.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) Close() error { return nil }
