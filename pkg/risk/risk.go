// Package risk sizes positions from a fixed dollar risk per trade. All
// arithmetic is decimal; share counts round down so the realized risk never
// exceeds the budget.
package risk

import (
	"errors"

	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

var (
	ErrNoStopDistance = errors.New("risk: entry and stop are equal")
	ErrBadInput       = errors.New("risk: non-positive input")
)

// SharesForRisk returns how many shares keep the loss at the stop within
// maxRisk. Slippage widens the assumed per-share loss; pass fixed.Zero for
// none. Works for both directions, only the entry-stop distance matters.
func SharesForRisk(entry, stop, maxRisk, slippage fixed.Point) (int64, error) {
	if !entry.IsPos() || !maxRisk.IsPos() {
		return 0, ErrBadInput
	}

	perShare := entry.Sub(stop).Abs().Add(slippage.Abs())
	if perShare.IsZero() {
		return 0, ErrNoStopDistance
	}

	shares := maxRisk.Div(perShare).Int64Floor()
	if shares < 0 {
		shares = 0
	}
	return shares, nil
}

// PositionRisk is the dollar loss if a position of the given size stops
// out: |entry-stop| * shares.
func PositionRisk(entry, stop fixed.Point, shares int64) fixed.Point {
	if shares < 0 {
		shares = -shares
	}
	return entry.Sub(stop).Abs().MulInt64(shares)
}

// SuggestStop places the stop so the position risks exactly maxRisk. The
// stop lands below the entry for longs and above it for shorts.
func SuggestStop(entry, maxRisk fixed.Point, shares int64, short bool) (fixed.Point, error) {
	if shares == 0 || !maxRisk.IsPos() {
		return fixed.Zero, ErrBadInput
	}
	if shares < 0 {
		shares = -shares
	}

	distance := maxRisk.DivInt64(shares)
	if short {
		return entry.Add(distance), nil
	}
	stop := entry.Sub(distance)
	if stop.IsNeg() {
		return fixed.Zero, nil
	}
	return stop, nil
}

// RiskRewardRatio relates the distance to the target against the distance
// to the stop.
func RiskRewardRatio(entry, stop, target fixed.Point) (fixed.Point, error) {
	riskDist := entry.Sub(stop).Abs()
	if riskDist.IsZero() {
		return fixed.Zero, ErrNoStopDistance
	}
	return target.Sub(entry).Abs().Div(riskDist), nil
}

// MaxSharesForBuyingPower is the largest position the account can open at
// the given price.
func MaxSharesForBuyingPower(price, buyingPower fixed.Point) (int64, error) {
	if !price.IsPos() {
		return 0, ErrBadInput
	}
	if !buyingPower.IsPos() {
		return 0, nil
	}
	return buyingPower.Div(price).Int64Floor(), nil
}

// PositionSize combines the risk budget with the buying power ceiling and
// returns the smaller share count.
func PositionSize(entry, stop, maxRisk, slippage, buyingPower fixed.Point) (int64, error) {
	byRisk, err := SharesForRisk(entry, stop, maxRisk, slippage)
	if err != nil {
		return 0, err
	}

	byPower, err := MaxSharesForBuyingPower(entry, buyingPower)
	if err != nil {
		return 0, err
	}
	if byPower < byRisk {
		return byPower, nil
	}
	return byRisk, nil
}
