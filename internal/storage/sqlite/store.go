// Package sqlite keeps game snapshots in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/ClaudioCeppi83/albion-parchis/internal/storage"
	"github.com/ClaudioCeppi83/albion-parchis/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

// Open opens (or creates) the database at path and applies the embedded
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	list, err := storage.ReadMigrations(migrations.FS)
	if err != nil {
		return err
	}

	create := `CREATE TABLE IF NOT EXISTS ` + storage.MigrationTable + ` (name TEXT PRIMARY KEY, applied_at INTEGER NOT NULL)`
	if _, err := db.Exec(create); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, m := range list {
		var found int
		err := db.QueryRow(`SELECT 1 FROM `+storage.MigrationTable+` WHERE name = ?`, m.Name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", m.Name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(m.Up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", m.Name, err)
		}
		if _, err := tx.Exec(`INSERT INTO `+storage.MigrationTable+` (name, applied_at) VALUES (?, ?)`, m.Name, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.Name, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveGame upserts the full game snapshot.
func (s *Store) SaveGame(ctx context.Context, g *parchis.Game) error {
	rec, err := storage.Encode(g)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO games (id, status, game_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			game_data = excluded.game_data,
			updated_at = excluded.updated_at`,
		rec.ID,
		string(rec.Status),
		string(rec.Data),
		toMillis(rec.CreatedAt),
		toMillis(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", g.ID, err)
	}
	return nil
}

func (s *Store) LoadGame(ctx context.Context, id string) (*parchis.Game, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT game_data FROM games WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", id, err)
	}
	return storage.Decode([]byte(data))
}

// LoadActiveGames returns every game that has not finished, most recently
// updated first. Rows that no longer decode are skipped and reported in a
// *storage.CorruptError next to the games that did.
func (s *Store) LoadActiveGames(ctx context.Context) ([]*parchis.Game, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_data FROM games WHERE status != ? ORDER BY updated_at DESC`,
		string(parchis.StatusFinished),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query active games: %w", err)
	}
	defer rows.Close()

	var games []*parchis.Game
	var corrupt []string
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		g, err := storage.Decode([]byte(data))
		if err != nil {
			corrupt = append(corrupt, id)
			continue
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game rows: %w", err)
	}
	return games, storage.Corrupt(corrupt)
}

func (s *Store) DeleteGame(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion result: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CleanupFinished deletes finished games last updated more than olderThan
// ago.
func (s *Store) CleanupFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := toMillis(time.Now().Add(-olderThan))
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM games WHERE status = ? AND updated_at < ?`,
		string(parchis.StatusFinished), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old games: %w", err)
	}
	return res.RowsAffected()
}
