package parchis

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// Dice produces values in 1..6. Implementations are shared across games and
// must be safe for concurrent use.
type Dice interface {
	Roll() int
}

type RandomDice struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomDice(seed uint64) *RandomDice {
	return &RandomDice{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewSeededDice seeds from crypto/rand.
func NewSeededDice() *RandomDice {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return NewRandomDice(0)
	}
	return NewRandomDice(binary.LittleEndian.Uint64(buf[:]))
}

func (d *RandomDice) Roll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.IntN(6) + 1
}

// SequenceDice replays a fixed list of values, cycling when exhausted.
type SequenceDice struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewSequenceDice(values ...int) *SequenceDice {
	if len(values) == 0 {
		values = []int{1}
	}
	return &SequenceDice{values: values}
}

func (d *SequenceDice) Roll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	v := d.values[d.next%len(d.values)]
	d.next++
	return v
}

