package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeftToRightEvaluation(t *testing.T) {
	var stats Stats
	tests := []struct {
		expr string
		want int32
	}{
		{"4+4//2", 4},
		{"2+3*4", 20},
		{"10-2-3", 5},
		{"7", 7},
		{"-3", -3},
		{"7/2", 4},
		{"-7/2", -4},
		{"7//2", 3},
		{"-7//2", -4},
		{"9/4", 2},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			res, err := Evaluate(tt.expr, &stats)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Value)
			assert.False(t, res.DiceUsed)
		})
	}
}

func TestReferences(t *testing.T) {
	var stats Stats
	stats.Set(StatEffectiveAP, 6)
	stats.Set(StatDiceRoll1, 3)
	stats.SetInt(StatLastAttackDamage, -2)

	res, err := Evaluate("ap+1", &stats)
	require.NoError(t, err)
	assert.Equal(t, int32(7), res.Value)
	assert.False(t, res.DiceUsed)

	res, err = Evaluate("d*2", &stats)
	require.NoError(t, err)
	assert.Equal(t, int32(6), res.Value)
	assert.True(t, res.DiceUsed)

	res, err = Evaluate("rdm", &stats)
	require.NoError(t, err)
	assert.Equal(t, int32(-2), res.Value)

	res, err = Evaluate("dc", &stats)
	require.NoError(t, err)
	assert.True(t, res.DiceUsed)
}

func TestEvaluationErrors(t *testing.T) {
	var stats Stats
	for _, text := range []string{"4+", "ap +1", "zz", "4#2", "3/0", "3//0", "2+*3"} {
		_, err := Evaluate(text, &stats)
		assert.Error(t, err, text)
	}
	_, err := Evaluate("4+", &stats)
	assert.ErrorIs(t, err, ErrMissingOperand)
}

func TestExpressionLengthLimit(t *testing.T) {
	var stats Stats
	res, err := Evaluate("1+1+1+1+1+1+1+1", &stats)
	require.NoError(t, err)
	assert.Equal(t, int32(8), res.Value)

	_, err = Evaluate("1+1+1+1+1+1+1+11", &stats)
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestStatTokensRoundTrip(t *testing.T) {
	for z := Stat(0); z < NumStats; z++ {
		st, ok := LookupStat(z.Token())
		require.True(t, ok, z.String())
		assert.Equal(t, z, st)
	}
	_, ok := LookupStat("nope")
	assert.False(t, ok)
	assert.Equal(t, StatTargetCurrentHP, Stat(38))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, int32(99), Clamp(150))
	assert.Equal(t, int32(-99), Clamp(-100))
	assert.Equal(t, int32(5), Clamp(5))
}
