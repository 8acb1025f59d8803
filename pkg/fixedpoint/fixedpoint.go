// Package fixedpoint centralizes the integer percentage and basis-point math
// used by both settlement engines. All monetary values are unsigned integers
// in the smallest currency unit; division always truncates. Keeping the
// arithmetic in one place guarantees identical rounding everywhere fees and
// inheritance shares are computed.
package fixedpoint

import dErrors "landledger/pkg/domain-errors"

// BpsDenominator is the number of basis points in a whole (100%).
const BpsDenominator = 10_000

// PercentDenominator is the number of percentage points in a whole.
const PercentDenominator = 100

// BasisPointsOf returns amount scaled by bps basis points, truncating.
// An overflow of the intermediate product is rejected rather than wrapped.
func BasisPointsOf(amount uint64, bps uint32) (uint64, error) {
	if bps == 0 || amount == 0 {
		return 0, nil
	}
	if uint64(bps) > BpsDenominator {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "basis points out of range: %d", bps)
	}
	if amount > ^uint64(0)/uint64(bps) {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "amount overflows basis-point scaling: %d", amount)
	}
	return amount * uint64(bps) / BpsDenominator, nil
}

// PercentOf returns value scaled by pct percent, truncating. pct above 100 is
// rejected; shares never exceed the whole.
func PercentOf(value uint64, pct uint8) (uint64, error) {
	if pct > PercentDenominator {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "percentage out of range: %d", pct)
	}
	if value > ^uint64(0)/PercentDenominator {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "value overflows percentage scaling: %d", value)
	}
	return value * uint64(pct) / PercentDenominator, nil
}

// ScalePercent returns share×pct/100 where both operands are percentages
// (0-100). Used for milestone-gated inheritance shares: an heir holding 60%
// with 50% of milestones met may claim 30%.
func ScalePercent(share, pct uint8) uint8 {
	if share > PercentDenominator {
		share = PercentDenominator
	}
	if pct > PercentDenominator {
		pct = PercentDenominator
	}
	return uint8(uint16(share) * uint16(pct) / PercentDenominator)
}

// AddChecked sums two amounts, rejecting overflow. Deposits are validated
// against amount+fee and must not wrap.
func AddChecked(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "amount sum overflows")
	}
	return sum, nil
}
