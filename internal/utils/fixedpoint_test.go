package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipsToDec(t *testing.T) {
	assert.Equal(t, "0.003000000000000000", PipsToDec(3000).String())
	assert.Equal(t, "1.000000000000000000", PipsToDec(1_000_000).String())
	assert.True(t, PipsToDec(0).IsZero())
}

func TestBpsToDec(t *testing.T) {
	assert.Equal(t, "0.005000000000000000", BpsToDec(50).String())
	assert.Equal(t, "1.000000000000000000", BpsToDec(10_000).String())
}

func TestMulDivFloorAndCeil(t *testing.T) {
	a := sdkmath.NewInt(10)
	b := sdkmath.NewInt(10)
	c := sdkmath.NewInt(3)

	floor, err := MulDivFloor(a, b, c)
	require.NoError(t, err)
	assert.Equal(t, int64(33), floor.Int64())

	ceil, err := MulDivCeil(a, b, c)
	require.NoError(t, err)
	assert.Equal(t, int64(34), ceil.Int64())

	// Exact division rounds identically in both directions.
	exactFloor, err := MulDivFloor(sdkmath.NewInt(6), sdkmath.NewInt(4), sdkmath.NewInt(8))
	require.NoError(t, err)
	exactCeil, err := MulDivCeil(sdkmath.NewInt(6), sdkmath.NewInt(4), sdkmath.NewInt(8))
	require.NoError(t, err)
	assert.Equal(t, exactFloor, exactCeil)
}

func TestMulDivRejectsBadInputs(t *testing.T) {
	_, err := MulDivFloor(sdkmath.NewInt(1), sdkmath.NewInt(1), sdkmath.ZeroInt())
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = MulDivCeil(sdkmath.NewInt(-1), sdkmath.NewInt(1), sdkmath.NewInt(1))
	assert.ErrorIs(t, err, ErrNegativeValue)

	var nilInt sdkmath.Int
	_, err = MulDivFloor(nilInt, sdkmath.NewInt(1), sdkmath.NewInt(1))
	assert.ErrorIs(t, err, ErrNilValue)
}

func TestClampInt64(t *testing.T) {
	v, err := ClampInt64(5, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(5), v)

	v, err = ClampInt64(-3, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = ClampInt64(42, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), v)

	_, err = ClampInt64(0, 10, 1)
	assert.Error(t, err)
}

func TestRelativeDeviation(t *testing.T) {
	dev, err := RelativeDeviation(sdkmath.LegacyNewDec(110), sdkmath.LegacyNewDec(100))
	require.NoError(t, err)
	assert.Equal(t, "0.100000000000000000", dev.String())

	dev, err = RelativeDeviation(sdkmath.LegacyNewDec(90), sdkmath.LegacyNewDec(100))
	require.NoError(t, err)
	assert.Equal(t, "0.100000000000000000", dev.String())

	_, err = RelativeDeviation(sdkmath.LegacyNewDec(1), sdkmath.LegacyZeroDec())
	assert.ErrorIs(t, err, ErrDivisionByZero)
}
