// Package record persists market data streams into DuckDB for later
// replay and analysis. One table pair per symbol: <symbol>_tape for prints,
// <symbol>_bars for chart bars.
package record

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/peter-kozarec/terminus/pkg/model"
	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

type Recorder struct {
	dataSourceName string
	db             *sql.DB

	created map[string]struct{}
}

func NewRecorder(dataSourceName string) *Recorder {
	return &Recorder{
		dataSourceName: dataSourceName,
		created:        make(map[string]struct{}),
	}
}

func (r *Recorder) Connect() error {
	db, err := sql.Open("duckdb", r.dataSourceName)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	r.db = db
	return nil
}

func (r *Recorder) Close() {
	_ = r.db.Close()
}

// tableName keeps symbols from reaching the SQL text unsanitized. Symbols
// are validated upstream, but the recorder does not rely on that.
func tableName(symbol, suffix string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return "", fmt.Errorf("empty symbol")
	}
	for _, ch := range symbol {
		isAlnum := (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
		if !isAlnum {
			return "", fmt.Errorf("invalid symbol %q", symbol)
		}
	}
	return symbol + "_" + suffix, nil
}

func (r *Recorder) ensureTape(ctx context.Context, symbol string) (string, error) {
	table, err := tableName(symbol, "tape")
	if err != nil {
		return "", err
	}
	if _, ok := r.created[table]; ok {
		return table, nil
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMP, price DECIMAL(18,6), size BIGINT, condition VARCHAR)`, table)
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return "", fmt.Errorf("error creating table %s: %w", table, err)
	}
	r.created[table] = struct{}{}
	return table, nil
}

func (r *Recorder) ensureBars(ctx context.Context, symbol string) (string, error) {
	table, err := tableName(symbol, "bars")
	if err != nil {
		return "", err
	}
	if _, ok := r.created[table]; ok {
		return table, nil
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMP, bar_type VARCHAR, open DECIMAL(18,6), high DECIMAL(18,6),
		low DECIMAL(18,6), close DECIMAL(18,6), volume BIGINT)`, table)
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return "", fmt.Errorf("error creating table %s: %w", table, err)
	}
	r.created[table] = struct{}{}
	return table, nil
}

func (r *Recorder) RecordTimeSale(ctx context.Context, ts model.TimeSale) error {
	table, err := r.ensureTape(ctx, ts.Symbol)
	if err != nil {
		return err
	}

	price, _ := ts.Price.Float64()
	query := fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?, ?)`, table)
	if _, err := r.db.ExecContext(ctx, query, ts.TimeStamp, price, ts.Size, ts.Condition); err != nil {
		return fmt.Errorf("error inserting print: %w", err)
	}
	return nil
}

func (r *Recorder) RecordBar(ctx context.Context, bar model.Bar) error {
	table, err := r.ensureBars(ctx, bar.Symbol)
	if err != nil {
		return err
	}

	open, _ := bar.Open.Float64()
	high, _ := bar.High.Float64()
	low, _ := bar.Low.Float64()
	closePx, _ := bar.Close.Float64()
	query := fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?, ?, ?, ?, ?)`, table)
	if _, err := r.db.ExecContext(ctx, query, bar.TimeStamp, string(bar.Type), open, high, low, closePx, bar.Volume); err != nil {
		return fmt.Errorf("error inserting bar: %w", err)
	}
	return nil
}

// LoadTape streams recorded prints for a symbol through the handler in
// timestamp order. A handler error stops the scan.
func (r *Recorder) LoadTape(ctx context.Context, symbol string, from, to time.Time, handler func(ts model.TimeSale) error) error {
	table, err := tableName(symbol, "tape")
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`SELECT ts, price, size, condition FROM %s WHERE ts BETWEEN ? AND ? ORDER BY ts`, table)
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return fmt.Errorf("error preparing query: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for rows.Next() {
		var (
			ts        model.TimeSale
			price     float64
			condition sql.NullString
		)
		if err := rows.Scan(&ts.TimeStamp, &price, &ts.Size, &condition); err != nil {
			return fmt.Errorf("error scanning row: %w", err)
		}
		ts.Symbol = symbol
		ts.Price = fixed.FromFloat64(price)
		ts.Condition = condition.String
		if err := handler(ts); err != nil {
			return fmt.Errorf("error processing print: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error scanning rows: %w", err)
	}
	return nil
}

// LoadBars streams recorded bars of one chart type through the handler in
// timestamp order.
func (r *Recorder) LoadBars(ctx context.Context, symbol string, chartType model.ChartType, from, to time.Time, handler func(bar model.Bar) error) error {
	table, err := tableName(symbol, "bars")
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`SELECT ts, open, high, low, close, volume FROM %s WHERE bar_type = ? AND ts BETWEEN ? AND ? ORDER BY ts`, table)
	rows, err := r.db.QueryContext(ctx, query, string(chartType), from, to)
	if err != nil {
		return fmt.Errorf("error preparing query: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for rows.Next() {
		var (
			bar                   model.Bar
			open, high, low, last float64
		)
		if err := rows.Scan(&bar.TimeStamp, &open, &high, &low, &last, &bar.Volume); err != nil {
			return fmt.Errorf("error scanning row: %w", err)
		}
		bar.Symbol = symbol
		bar.Type = chartType
		bar.Open = fixed.FromFloat64(open)
		bar.High = fixed.FromFloat64(high)
		bar.Low = fixed.FromFloat64(low)
		bar.Close = fixed.FromFloat64(last)
		if err := handler(bar); err != nil {
			return fmt.Errorf("error processing bar: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error scanning rows: %w", err)
	}
	return nil
}
