// Package storage holds what the game stores share: the row shape and the
// JSON codec for persisted games.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
)

var ErrNotFound = errors.New("GAME_NOT_FOUND: game not found")

// CorruptError names stored games whose snapshots no longer decode. Bulk
// loaders return it together with the games that did decode.
type CorruptError struct {
	IDs []string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%d stored games failed to decode: %s", len(e.IDs), strings.Join(e.IDs, ", "))
}

// Corrupt returns a *CorruptError for ids, or nil when there are none.
func Corrupt(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return &CorruptError{IDs: ids}
}

// Record is one row of the games table.
type Record struct {
	ID        string
	Status    parchis.Status
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func Encode(g *parchis.Game) (Record, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return Record{}, fmt.Errorf("failed to serialize game %s: %w", g.ID, err)
	}
	return Record{
		ID:        g.ID,
		Status:    g.Status,
		Data:      data,
		CreatedAt: g.CreatedAt.UTC(),
		UpdatedAt: g.UpdatedAt.UTC(),
	}, nil
}

func Decode(data []byte) (*parchis.Game, error) {
	var g parchis.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to deserialize game: %w", err)
	}
	return &g, nil
}
