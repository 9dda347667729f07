// Package postgres keeps game snapshots in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/ClaudioCeppi83/albion-parchis/internal/storage"
	"github.com/ClaudioCeppi83/albion-parchis/internal/storage/postgres/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and applies the embedded migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	list, err := storage.ReadMigrations(migrations.FS)
	if err != nil {
		return err
	}

	create := `CREATE TABLE IF NOT EXISTS ` + storage.MigrationTable + ` (name TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`
	if _, err := pool.Exec(ctx, create); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, m := range list {
		var found int
		err := pool.QueryRow(ctx, `SELECT 1 FROM `+storage.MigrationTable+` WHERE name = $1`, m.Name).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", m.Name, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			// Simple protocol so a file may hold several statements.
			if _, err := tx.Conn().PgConn().Exec(ctx, m.Up).ReadAll(); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO `+storage.MigrationTable+` (name) VALUES ($1)`, m.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) SaveGame(ctx context.Context, g *parchis.Game) error {
	rec, err := storage.Encode(g)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO games (id, status, game_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			game_data = EXCLUDED.game_data,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, string(rec.Status), rec.Data, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save game %s: %w", g.ID, err)
	}
	return nil
}

func (s *Store) LoadGame(ctx context.Context, id string) (*parchis.Game, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT game_data FROM games WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game %s: %w", id, err)
	}
	return storage.Decode(data)
}

type gameRow struct {
	ID   string
	Data []byte
}

// LoadActiveGames returns every unfinished game, most recently updated
// first. Rows that no longer decode come back in a *storage.CorruptError.
func (s *Store) LoadActiveGames(ctx context.Context) ([]*parchis.Game, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, game_data FROM games WHERE status <> $1 ORDER BY updated_at DESC`,
		string(parchis.StatusFinished),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query active games: %w", err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowToStructByPos[gameRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan game rows: %w", err)
	}

	games := make([]*parchis.Game, 0, len(found))
	var corrupt []string
	for _, row := range found {
		g, err := storage.Decode(row.Data)
		if err != nil {
			corrupt = append(corrupt, row.ID)
			continue
		}
		games = append(games, g)
	}
	return games, storage.Corrupt(corrupt)
}

func (s *Store) DeleteGame(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete game %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) CleanupFinished(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM games WHERE status = $1 AND updated_at < $2`,
		string(parchis.StatusFinished), time.Now().Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old games: %w", err)
	}
	return tag.RowsAffected(), nil
}
