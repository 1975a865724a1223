package risk

import (
	"errors"
	"testing"

	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

func TestSharesForRisk(t *testing.T) {
	tests := []struct {
		name     string
		entry    string
		stop     string
		maxRisk  string
		slippage string
		want     int64
		wantErr  error
	}{
		{"one dollar stop", "150.00", "149.00", "200.00", "0", 200, nil},
		{"slippage widens the loss", "150.00", "149.00", "200.00", "0.05", 190, nil},
		{"short side", "50.00", "51.00", "100.00", "0", 100, nil},
		{"fractional shares round down", "100.00", "99.70", "100.00", "0", 333, nil},
		{"no stop distance", "150.00", "150.00", "200.00", "0", 0, ErrNoStopDistance},
		{"zero risk budget", "150.00", "149.00", "0", "0", 0, ErrBadInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SharesForRisk(
				fixed.MustParse(tt.entry),
				fixed.MustParse(tt.stop),
				fixed.MustParse(tt.maxRisk),
				fixed.MustParse(tt.slippage),
			)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v; want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("shares = %d; want %d", got, tt.want)
			}
		})
	}
}

func TestPositionRisk(t *testing.T) {
	got := PositionRisk(fixed.MustParse("150.00"), fixed.MustParse("149.00"), 200)
	if !got.Eq(fixed.MustParse("200.00")) {
		t.Errorf("risk = %s; want 200.00", got.String())
	}

	// Negative share counts mean short; the loss is the same magnitude.
	got = PositionRisk(fixed.MustParse("50.00"), fixed.MustParse("51.00"), -100)
	if !got.Eq(fixed.MustParse("100.00")) {
		t.Errorf("short risk = %s; want 100.00", got.String())
	}
}

func TestSuggestStop(t *testing.T) {
	stop, err := SuggestStop(fixed.MustParse("150.00"), fixed.MustParse("200.00"), 200, false)
	if err != nil {
		t.Fatalf("SuggestStop: %v", err)
	}
	if !stop.Eq(fixed.MustParse("149.00")) {
		t.Errorf("stop = %s; want 149.00", stop.String())
	}

	stop, err = SuggestStop(fixed.MustParse("50.00"), fixed.MustParse("100.00"), 100, true)
	if err != nil {
		t.Fatalf("short SuggestStop: %v", err)
	}
	if !stop.Eq(fixed.MustParse("51.00")) {
		t.Errorf("short stop = %s; want 51.00", stop.String())
	}

	// A risk budget wider than the entry clamps to zero instead of going
	// negative.
	stop, err = SuggestStop(fixed.MustParse("1.00"), fixed.MustParse("500.00"), 100, false)
	if err != nil {
		t.Fatalf("clamped SuggestStop: %v", err)
	}
	if !stop.IsZero() {
		t.Errorf("stop = %s; want 0", stop.String())
	}
}

func TestRiskRewardRatio(t *testing.T) {
	ratio, err := RiskRewardRatio(fixed.MustParse("150.00"), fixed.MustParse("149.00"), fixed.MustParse("153.00"))
	if err != nil {
		t.Fatalf("RiskRewardRatio: %v", err)
	}
	if !ratio.Eq(fixed.MustParse("3")) {
		t.Errorf("ratio = %s; want 3", ratio.String())
	}

	if _, err := RiskRewardRatio(fixed.MustParse("150.00"), fixed.MustParse("150.00"), fixed.MustParse("153.00")); !errors.Is(err, ErrNoStopDistance) {
		t.Errorf("err = %v; want ErrNoStopDistance", err)
	}
}

func TestMaxSharesForBuyingPower(t *testing.T) {
	shares, err := MaxSharesForBuyingPower(fixed.MustParse("150.00"), fixed.MustParse("25000.00"))
	if err != nil {
		t.Fatalf("MaxSharesForBuyingPower: %v", err)
	}
	if shares != 166 {
		t.Errorf("shares = %d; want 166", shares)
	}

	shares, err = MaxSharesForBuyingPower(fixed.MustParse("150.00"), fixed.Zero)
	if err != nil || shares != 0 {
		t.Errorf("zero power: shares = %d, err = %v", shares, err)
	}
}

func TestPositionSize(t *testing.T) {
	// Risk allows 200 shares but buying power only covers 100.
	shares, err := PositionSize(
		fixed.MustParse("150.00"),
		fixed.MustParse("149.00"),
		fixed.MustParse("200.00"),
		fixed.Zero,
		fixed.MustParse("15000.00"),
	)
	if err != nil {
		t.Fatalf("PositionSize: %v", err)
	}
	if shares != 100 {
		t.Errorf("shares = %d; want 100 capped by buying power", shares)
	}

	// Ample buying power: the risk budget decides.
	shares, err = PositionSize(
		fixed.MustParse("150.00"),
		fixed.MustParse("149.00"),
		fixed.MustParse("200.00"),
		fixed.Zero,
		fixed.MustParse("1000000.00"),
	)
	if err != nil {
		t.Fatalf("PositionSize: %v", err)
	}
	if shares != 200 {
		t.Errorf("shares = %d; want 200", shares)
	}
}
