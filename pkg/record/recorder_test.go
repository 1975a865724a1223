package record

import (
	"context"
	"testing"
	"time"

	"github.com/peter-kozarec/terminus/pkg/model"
	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r := NewRecorder("")
	if err := r.Connect(); err != nil {
		t.Skipf("duckdb unavailable: %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

func TestTableName(t *testing.T) {
	if name, err := tableName("aapl", "tape"); err != nil || name != "AAPL_tape" {
		t.Errorf("tableName(aapl) = %q, %v", name, err)
	}

	for _, bad := range []string{"", "  ", "AA PL", "AAPL;DROP", "x-y"} {
		if _, err := tableName(bad, "tape"); err == nil {
			t.Errorf("tableName(%q) accepted", bad)
		}
	}
}

func TestRecordAndLoadTape(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 9, 31, 0, 0, time.UTC)

	prints := []model.TimeSale{
		{Symbol: "AAPL", Price: fixed.MustParse("150.01"), Size: 100, TimeStamp: base},
		{Symbol: "AAPL", Price: fixed.MustParse("150.02"), Size: 200, Condition: "T", TimeStamp: base.Add(time.Second)},
	}
	for _, ts := range prints {
		if err := r.RecordTimeSale(ctx, ts); err != nil {
			t.Fatalf("RecordTimeSale: %v", err)
		}
	}

	var got []model.TimeSale
	err := r.LoadTape(ctx, "AAPL", base.Add(-time.Minute), base.Add(time.Minute), func(ts model.TimeSale) error {
		got = append(got, ts)
		return nil
	})
	if err != nil {
		t.Fatalf("LoadTape: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d prints; want 2", len(got))
	}
	if got[0].Size != 100 || got[1].Size != 200 {
		t.Errorf("prints out of order: %+v", got)
	}
	if got[1].Condition != "T" || got[1].Symbol != "AAPL" {
		t.Errorf("fields lost on round trip: %+v", got[1])
	}
}

func TestRecordAndLoadBars(t *testing.T) {
	r := newTestRecorder(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)

	bar := model.Bar{
		Symbol: "SPY", Type: model.ChartMinute,
		Open: fixed.MustParse("500.10"), High: fixed.MustParse("500.50"),
		Low: fixed.MustParse("499.90"), Close: fixed.MustParse("500.25"),
		Volume: 80000, TimeStamp: base,
	}
	if err := r.RecordBar(ctx, bar); err != nil {
		t.Fatalf("RecordBar: %v", err)
	}
	// A day bar in the same table must not leak into the minute scan.
	day := bar
	day.Type = model.ChartDay
	if err := r.RecordBar(ctx, day); err != nil {
		t.Fatalf("RecordBar day: %v", err)
	}

	var got []model.Bar
	err := r.LoadBars(ctx, "SPY", model.ChartMinute, base.Add(-time.Hour), base.Add(time.Hour), func(b model.Bar) error {
		got = append(got, b)
		return nil
	})
	if err != nil {
		t.Fatalf("LoadBars: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("loaded %d bars; want 1", len(got))
	}
	if got[0].Volume != 80000 || got[0].Type != model.ChartMinute {
		t.Errorf("unexpected bar: %+v", got[0])
	}
}
