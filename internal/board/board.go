package board

import (
	"errors"
	"fmt"
)

type Zone string

const (
	ZoneHome   Zone = "home"
	ZoneStart  Zone = "start"
	ZoneNormal Zone = "normal"
	ZoneSafe   Zone = "safe"
	ZoneFinish Zone = "finish"
)

// Position is a cell on the square grid. Zone is derived from the layout and
// carried along so clients don't need a copy of the tables.
type Position struct {
	X    int  `json:"x"`
	Y    int  `json:"y"`
	Zone Zone `json:"zone"`
}

// SameCell compares coordinates only.
func (p Position) SameCell(o Position) bool {
	return p.X == o.X && p.Y == o.Y
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d %s)", p.X, p.Y, p.Zone)
}

// Layout holds the static tables for a board. Indices are row-major over a
// Size x Size grid. Track cells are 0..TrackLength-1; home and finish cells
// must live outside the track.
type Layout struct {
	Size        int
	TrackLength int
	Safe        []int
	Start       [4]int
	Finish      [4][4]int
	Home        [4][4]int
}

var StandardLayout = Layout{
	Size:        15,
	TrackLength: 60,
	Safe:        []int{8, 25, 42, 59},
	Start:       [4]int{0, 17, 34, 51},
	Finish: [4][4]int{
		{60, 61, 62, 63},
		{64, 65, 66, 67},
		{68, 69, 70, 71},
		{72, 73, 74, 75},
	},
	Home: [4][4]int{
		{76, 77, 78, 79},
		{80, 81, 82, 83},
		{84, 85, 86, 87},
		{88, 89, 90, 91},
	},
}

type Board struct {
	layout Layout
	cells  int
	safe   map[int]bool
	start  map[int]Faction
	home   map[int]Faction
	finish map[int]Faction
}

var ErrInvalidLayout = errors.New("invalid board layout")

func New(layout Layout) (*Board, error) {
	if layout.Size <= 0 {
		return nil, fmt.Errorf("%w: size must be positive", ErrInvalidLayout)
	}
	cells := layout.Size * layout.Size
	if layout.TrackLength <= 0 || layout.TrackLength > cells {
		return nil, fmt.Errorf("%w: track length %d out of range", ErrInvalidLayout, layout.TrackLength)
	}

	b := &Board{
		layout: layout,
		cells:  cells,
		safe:   make(map[int]bool, len(layout.Safe)),
		start:  make(map[int]Faction, 4),
		home:   make(map[int]Faction, 16),
		finish: make(map[int]Faction, 16),
	}

	for _, idx := range layout.Safe {
		if idx < 0 || idx >= layout.TrackLength {
			return nil, fmt.Errorf("%w: safe cell %d is not on the track", ErrInvalidLayout, idx)
		}
		b.safe[idx] = true
	}

	seen := make(map[int]bool)
	for _, f := range Factions {
		s := layout.Start[f]
		if s < 0 || s >= layout.TrackLength {
			return nil, fmt.Errorf("%w: %s start %d is not on the track", ErrInvalidLayout, f, s)
		}
		if b.safe[s] {
			return nil, fmt.Errorf("%w: %s start %d is also a safe cell", ErrInvalidLayout, f, s)
		}
		if _, dup := b.start[s]; dup {
			return nil, fmt.Errorf("%w: start cell %d shared", ErrInvalidLayout, s)
		}
		b.start[s] = f

		for _, idx := range layout.Finish[f] {
			if err := b.checkOffTrack(idx, seen); err != nil {
				return nil, err
			}
			b.finish[idx] = f
		}
		for _, idx := range layout.Home[f] {
			if err := b.checkOffTrack(idx, seen); err != nil {
				return nil, err
			}
			b.home[idx] = f
		}
	}

	return b, nil
}

func (b *Board) checkOffTrack(idx int, seen map[int]bool) error {
	if idx < b.layout.TrackLength || idx >= b.cells {
		return fmt.Errorf("%w: cell %d must be off the track and on the grid", ErrInvalidLayout, idx)
	}
	if seen[idx] {
		return fmt.Errorf("%w: cell %d used twice", ErrInvalidLayout, idx)
	}
	seen[idx] = true
	return nil
}

func MustNew(layout Layout) *Board {
	b, err := New(layout)
	if err != nil {
		panic(err)
	}
	return b
}

// Standard returns the 15x15 board used by default.
func Standard() *Board {
	return MustNew(StandardLayout)
}

func (b *Board) Size() int        { return b.layout.Size }
func (b *Board) TrackLength() int { return b.layout.TrackLength }

func (b *Board) PositionAt(index int) Position {
	return Position{
		X:    index % b.layout.Size,
		Y:    index / b.layout.Size,
		Zone: b.zoneOfIndex(index),
	}
}

func (b *Board) IndexOf(p Position) int {
	return p.Y*b.layout.Size + p.X
}

func (b *Board) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < b.layout.Size && p.Y < b.layout.Size
}

// ZoneOf classifies a cell: safe, then home/finish, then start, else normal.
func (b *Board) ZoneOf(p Position) Zone {
	if !b.InBounds(p) {
		return ZoneNormal
	}
	return b.zoneOfIndex(b.IndexOf(p))
}

func (b *Board) zoneOfIndex(index int) Zone {
	if b.safe[index] {
		return ZoneSafe
	}
	if _, ok := b.home[index]; ok {
		return ZoneHome
	}
	if _, ok := b.finish[index]; ok {
		return ZoneFinish
	}
	if _, ok := b.start[index]; ok {
		return ZoneStart
	}
	return ZoneNormal
}

func (b *Board) IsSafe(p Position) bool {
	return b.ZoneOf(p) == ZoneSafe
}

func (b *Board) OnTrack(p Position) bool {
	if !b.InBounds(p) {
		return false
	}
	return b.IndexOf(p) < b.layout.TrackLength
}

// IsFinishFor reports whether p is one of f's own finish cells.
func (b *Board) IsFinishFor(p Position, f Faction) bool {
	if !b.InBounds(p) {
		return false
	}
	owner, ok := b.finish[b.IndexOf(p)]
	return ok && owner == f
}

func (b *Board) StartPosition(f Faction) Position {
	return b.PositionAt(b.layout.Start[f])
}

func (b *Board) HomePositions(f Faction) [4]Position {
	var out [4]Position
	for i, idx := range b.layout.Home[f] {
		out[i] = b.PositionAt(idx)
	}
	return out
}

func (b *Board) FinishPositions(f Faction) [4]Position {
	var out [4]Position
	for i, idx := range b.layout.Finish[f] {
		out[i] = b.PositionAt(idx)
	}
	return out
}

// NewPosition advances a piece on the track by dice steps. The walk is
// relative to the faction's start cell: once a piece completes a lap it
// enters its own finish lane, and rolls that would carry it past the last
// finish cell are rejected. Otherwise the index wraps around the track.
func (b *Board) NewPosition(current Position, dice int, f Faction) (Position, bool) {
	if dice < 1 || !f.Valid() || !b.OnTrack(current) {
		return Position{}, false
	}

	length := b.layout.TrackLength
	start := b.layout.Start[f]
	progress := (b.IndexOf(current) - start + length) % length
	next := progress + dice

	if next >= length {
		slot := next - length
		if slot >= len(b.layout.Finish[f]) {
			return Position{}, false
		}
		return b.PositionAt(b.layout.Finish[f][slot]), true
	}

	index := start + next
	if index >= length {
		index -= length
	}
	pos := b.PositionAt(index)
	if !b.InBounds(pos) {
		return Position{}, false
	}
	return pos, true
}

// Progress is the number of steps a piece at p has covered from f's start
// cell. Finish cells continue the count past the track length; home and
// foreign cells report -1.
func (b *Board) Progress(p Position, f Faction) int {
	if !b.InBounds(p) || !f.Valid() {
		return -1
	}
	if b.OnTrack(p) {
		length := b.layout.TrackLength
		return (b.IndexOf(p) - b.layout.Start[f] + length) % length
	}
	idx := b.IndexOf(p)
	for slot, fi := range b.layout.Finish[f] {
		if fi == idx {
			return b.layout.TrackLength + slot
		}
	}
	return -1
}

// DistanceToFinish counts the steps left before a piece reaches its finish
// lane. Pieces at home need a full lap plus the exit.
func (b *Board) DistanceToFinish(p Position, f Faction) int {
	if b.IsFinishFor(p, f) {
		return 0
	}
	progress := b.Progress(p, f)
	if progress < 0 {
		return b.layout.TrackLength + 1
	}
	return b.layout.TrackLength - progress
}
