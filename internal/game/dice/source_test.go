package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(42)
	b := NewGenerator(42)
	for z := 0; z < 100; z++ {
		require.Equal(t, a.Raw(), b.Raw())
	}
	assert.Equal(t, int64(42), a.Seed())
}

func TestRecorderLogsAndReplays(t *testing.T) {
	var sunk []uint32
	rec := NewRecorder(NewGenerator(7), func(v uint32) { sunk = append(sunk, v) })
	for z := 0; z < 10; z++ {
		v := rec.Intn(6)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 6)
	}
	f := rec.Float()
	assert.GreaterOrEqual(t, f, 0.0)
	assert.Less(t, f, 1.0)
	require.Len(t, rec.Log(), 11)
	assert.Equal(t, rec.Log(), sunk)

	replay := NewRecorder(NewStream(rec.Log(), nil), nil)
	for _, want := range rec.Log() {
		assert.Equal(t, want, replay.Raw())
	}
	assert.Equal(t, 0, rec.Intn(0))
}

func TestStreamFallsBack(t *testing.T) {
	s := NewStream([]uint32{5}, NewGenerator(1))
	assert.Equal(t, uint32(5), s.Raw())
	assert.Equal(t, 0, s.Remaining())
	assert.Equal(t, NewGenerator(1).Raw(), s.Raw())

	empty := NewStream(nil, nil)
	assert.Equal(t, uint32(0), empty.Raw())
}

func TestNewSeed(t *testing.T) {
	_, err := NewSeed()
	require.NoError(t, err)
}
