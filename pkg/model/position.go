package model

import (
	"time"

	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

// Position is the per-symbol aggregate. Quantity is signed: positive long,
// negative short. A zero quantity means flat, not deleted.
type Position struct {
	Symbol        string      `json:"symbol"`
	Quantity      int64       `json:"quantity"`
	AvgCost       fixed.Point `json:"avg_cost"`
	CurrentPrice  fixed.Point `json:"current_price"`
	UnrealizedPnL fixed.Point `json:"unrealized_pnl"`
	RealizedPnL   fixed.Point `json:"realized_pnl"`
	PnLPercent    fixed.Point `json:"pnl_percent"`
	MarketValue   fixed.Point `json:"market_value"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (p Position) IsLong() bool  { return p.Quantity > 0 }
func (p Position) IsShort() bool { return p.Quantity < 0 }
func (p Position) IsFlat() bool  { return p.Quantity == 0 }

// RecalcPnL derives unrealized PnL and PnL percent from the given mark.
// The mark may lag the position update by one quote tick.
func (p *Position) RecalcPnL(mark fixed.Point) {
	p.CurrentPrice = mark
	qty := fixed.FromInt64(p.Quantity, 0)
	p.MarketValue = mark.Mul(qty)

	if p.Quantity == 0 {
		p.UnrealizedPnL = fixed.Zero
		p.PnLPercent = fixed.Zero
		return
	}

	cost := p.AvgCost.Mul(qty)
	p.UnrealizedPnL = p.MarketValue.Sub(cost)
	if cost.IsZero() {
		p.PnLPercent = fixed.Zero
		return
	}
	p.PnLPercent = p.UnrealizedPnL.Div(cost.Abs()).Mul(fixed.Hundred)
}

// BuyingPower is a point-in-time account snapshot. Values are stale the
// moment they are read.
type BuyingPower struct {
	BuyingPower fixed.Point `json:"buying_power"`
	DayTrading  fixed.Point `json:"day_trading_bp"`
	Overnight   fixed.Point `json:"overnight_bp"`
	Cash        fixed.Point `json:"cash"`
	TimeStamp   time.Time   `json:"ts"`
}
