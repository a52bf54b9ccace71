// Package dice provides the single deterministic random source a battle
// draws from. Every raw value handed out is recorded so a battle can be
// replayed exactly.
package dice

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// Source produces raw 32-bit random values.
type Source interface {
	Raw() uint32
}

// Generator is a seeded pseudo-random source.
type Generator struct {
	seed int64
	rng  *rand.Rand
}

// NewGenerator returns a generator that always yields the same sequence for
// the same seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed the generator was created with.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Raw returns the next value.
func (g *Generator) Raw() uint32 {
	return g.rng.Uint32()
}

// Stream replays previously recorded values, then falls back to another
// source once they run out.
type Stream struct {
	values   []uint32
	pos      int
	fallback Source
}

// NewStream returns a source that yields values in order.
func NewStream(values []uint32, fallback Source) *Stream {
	return &Stream{values: values, fallback: fallback}
}

// Raw returns the next recorded value, or a fallback value when exhausted.
func (s *Stream) Raw() uint32 {
	if s.pos < len(s.values) {
		v := s.values[s.pos]
		s.pos++
		return v
	}
	if s.fallback == nil {
		return 0
	}
	return s.fallback.Raw()
}

// Remaining returns the number of recorded values not yet consumed.
func (s *Stream) Remaining() int {
	return len(s.values) - s.pos
}

// Recorder wraps a source and logs every value it returns.
type Recorder struct {
	src  Source
	log  []uint32
	sink func(uint32)
}

// NewRecorder wraps src. sink, if not nil, is called with every value.
func NewRecorder(src Source, sink func(uint32)) *Recorder {
	return &Recorder{src: src, sink: sink}
}

// Raw returns the next value from the wrapped source.
func (r *Recorder) Raw() uint32 {
	v := r.src.Raw()
	r.log = append(r.log, v)
	if r.sink != nil {
		r.sink(v)
	}
	return v
}

// Intn returns a value in [0, n). n must be positive.
func (r *Recorder) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Raw() % uint32(n))
}

// Float returns a value in [0, 1) built from the top 16 bits of a raw value.
func (r *Recorder) Float() float64 {
	return float64(r.Raw()>>16) / 65536.0
}

// Log returns every value handed out so far.
func (r *Recorder) Log() []uint32 {
	return r.log
}

// NewSeed generates a seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
