/*

The slippage guard compares an operation's expected price against the live
price within a caller-chosen tolerance. It is the primary defense against
sandwich attacks on deposits and withdrawals: an attacker who moves the
price immediately before the victim's call makes the check fail before any
funds move.

*/

package slippage

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/dfre/internal/types"
	"github.com/elys-network/dfre/internal/utils"
)

// Check validates observedPrice against expectedPrice within toleranceBps.
// An expected price of zero is an explicit opt-out: the check passes without
// looking at the observed price at all.
func Check(expectedPrice, observedPrice sdkmath.LegacyDec, toleranceBps uint32) error {
	if expectedPrice.IsNil() || expectedPrice.IsZero() {
		return nil
	}

	deviation, err := utils.RelativeDeviation(observedPrice, expectedPrice)
	if err != nil {
		return err
	}

	if deviation.GT(utils.BpsToDec(toleranceBps)) {
		return &types.PriceSlippageError{
			Expected:     expectedPrice,
			Observed:     observedPrice,
			ToleranceBps: toleranceBps,
		}
	}
	return nil
}
