package slippage

import (
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/dfre/internal/types"
)

func TestCheckZeroExpectedPriceBypasses(t *testing.T) {
	// Opt-out must pass regardless of how far the observed price is.
	assert.NoError(t, Check(sdkmath.LegacyZeroDec(), sdkmath.LegacyNewDec(1_000_000), 1))

	var nilDec sdkmath.LegacyDec
	assert.NoError(t, Check(nilDec, sdkmath.LegacyNewDec(5), 1))
}

func TestCheckWithinTolerance(t *testing.T) {
	expected := sdkmath.LegacyNewDec(100)

	// 50 bps tolerance admits a 0.5% move exactly.
	assert.NoError(t, Check(expected, sdkmath.LegacyNewDecWithPrec(1005, 1), 50))
	assert.NoError(t, Check(expected, sdkmath.LegacyNewDecWithPrec(995, 1), 50))
	assert.NoError(t, Check(expected, expected, 0))
}

func TestCheckTripsBeyondTolerance(t *testing.T) {
	expected := sdkmath.LegacyNewDec(100)
	observed := sdkmath.LegacyNewDec(102) // 2% above

	err := Check(expected, observed, 150)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrPriceSlippageExceeded)

	var slipErr *types.PriceSlippageError
	require.True(t, errors.As(err, &slipErr))
	assert.Equal(t, expected, slipErr.Expected)
	assert.Equal(t, observed, slipErr.Observed)
	assert.Equal(t, uint32(150), slipErr.ToleranceBps)
}

func TestCheckTripsOnDownwardMoves(t *testing.T) {
	err := Check(sdkmath.LegacyNewDec(100), sdkmath.LegacyNewDec(98), 150)
	assert.ErrorIs(t, err, types.ErrPriceSlippageExceeded)
}
