package locate

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/terminus/pkg/model"
	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

// Inquirer is the slice of the dispatch core the manager needs.
// *terminal.Client satisfies it.
type Inquirer interface {
	LocatePriceInquire(ctx context.Context, symbol string, quantity int64) (model.LocateQuote, error)
	LocateNewOrder(ctx context.Context, symbol string, quantity int64) (string, error)
	LocateAvailQuery(ctx context.Context, symbol string) (model.LocateAvailability, error)
	GetLocateInfo(ctx context.Context, symbol string) (model.LocateInfo, error)
}

// QuoteSource supplies the price and volume context for cost analysis.
// *marketdata.Cache satisfies it.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (model.Quote, error)
}

// Config bounds what a locate purchase may cost. The zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// MaxVolumePct caps the located quantity at this percentage of the
	// symbol's daily volume.
	MaxVolumePct fixed.Point
	// MaxCostPct caps the total borrow cost at this percentage of the
	// position's notional value.
	MaxCostPct fixed.Point
	// MaxTotalCost is the absolute dollar ceiling per locate.
	MaxTotalCost fixed.Point
	// BlockSize is the lot granularity locate routes deal in.
	BlockSize int64
	// Cooldown is the minimum spacing between price inquiries. The terminal
	// destabilizes when inquiries overlap or arrive back to back.
	Cooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxVolumePct: fixed.One,
		MaxCostPct:   fixed.MustParse("1.5"),
		MaxTotalCost: fixed.MustParse("2.50"),
		BlockSize:    100,
		Cooldown:     3 * time.Second,
	}
}

// Rates below this are treated as easy-to-borrow: the route charges
// nothing, so no purchase is needed.
var etbThreshold = fixed.MustParse("0.0001")

// Decision is the outcome of a locate analysis. Quantity may be lower than
// Requested when the volume cap bites.
type Decision struct {
	Symbol       string      `json:"symbol"`
	Requested    int64       `json:"requested"`
	Quantity     int64       `json:"quantity"`
	Rate         fixed.Point `json:"rate"`
	TotalCost    fixed.Point `json:"total_cost"`
	EasyToBorrow bool        `json:"easy_to_borrow"`
	Approved     bool        `json:"approved"`
	Reasons      []string    `json:"reasons,omitempty"`
	OrderToken   string      `json:"order_token,omitempty"`
}

func (d Decision) Reason() string {
	return strings.Join(d.Reasons, "; ")
}

// Manager serializes locate negotiation against one terminal session. All
// inquiries go through a single mutex with a cooldown between them.
type Manager struct {
	conn   Inquirer
	quotes QuoteSource
	logger *zap.Logger
	cfg    Config

	mu          sync.Mutex
	lastInquiry time.Time
}

func NewManager(conn Inquirer, quotes QuoteSource, logger *zap.Logger, cfg Config) *Manager {
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = DefaultConfig().BlockSize
	}
	return &Manager{conn: conn, quotes: quotes, logger: logger, cfg: cfg}
}

// Analyze prices a locate for the requested share count and applies the
// configured caps. Wire failures degrade to a rejection rather than an
// error: a locate that cannot be priced cannot be approved.
func (m *Manager) Analyze(ctx context.Context, symbol string, shares int64) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analyzeLocked(ctx, symbol, shares)
}

func (m *Manager) analyzeLocked(ctx context.Context, symbol string, shares int64) Decision {
	decision := Decision{Symbol: symbol, Requested: shares}
	if shares <= 0 {
		return reject(decision, "non-positive share count")
	}

	quote, err := m.quotes.Quote(ctx, symbol)
	if err != nil {
		m.logger.Warn("locate analysis has no quote", zap.String("symbol", symbol), zap.Error(err))
		return reject(decision, "quote unavailable: "+err.Error())
	}

	price := quote.Last
	if price.IsZero() {
		price = quote.Mid()
	}
	if !price.IsPos() {
		return reject(decision, "no usable price")
	}

	quantity := shares
	volumeCap := int64(-1)
	if quote.Volume > 0 {
		volumeCap = fixed.FromInt64(quote.Volume, 0).Mul(m.cfg.MaxVolumePct).Div(fixed.Hundred).Int64Floor()
		if quantity > volumeCap {
			quantity = volumeCap
		}
	}
	// Locate routes deal in whole blocks: round up, but never past the
	// volume cap.
	quantity = roundUpToBlock(quantity, m.cfg.BlockSize)
	if volumeCap >= 0 && quantity > volumeCap {
		quantity -= m.cfg.BlockSize
	}
	if quantity <= 0 {
		return reject(decision, "volume cap leaves nothing to locate")
	}
	decision.Quantity = quantity

	if err := m.waitCooldown(ctx); err != nil {
		return reject(decision, err.Error())
	}
	offer, err := m.conn.LocatePriceInquire(ctx, symbol, quantity)
	m.lastInquiry = time.Now()
	if err != nil {
		m.logger.Warn("locate inquiry failed", zap.String("symbol", symbol), zap.Error(err))
		return reject(decision, "inquiry failed: "+err.Error())
	}

	decision.Rate = offer.Rate
	if offer.Rate.Lt(etbThreshold) {
		decision.EasyToBorrow = true
		decision.TotalCost = fixed.Zero
		decision.Approved = true
		return decision
	}
	if !offer.Available {
		return reject(decision, "no shares offered")
	}

	decision.TotalCost = offer.Rate.MulInt64(quantity)
	if decision.TotalCost.Gt(m.cfg.MaxTotalCost) {
		return reject(decision, "total cost "+decision.TotalCost.String()+" exceeds cap "+m.cfg.MaxTotalCost.String())
	}

	notional := price.MulInt64(quantity)
	costPct := decision.TotalCost.Div(notional).Mul(fixed.Hundred)
	if costPct.Gt(m.cfg.MaxCostPct) {
		return reject(decision, "cost "+costPct.String()+"% of notional exceeds cap "+m.cfg.MaxCostPct.String()+"%")
	}

	decision.Approved = true
	return decision
}

// Ensure makes the given share count shortable: it checks what is already
// available, analyzes the shortfall, and with autoPurchase set buys the
// locate when the analysis approves. Verification afterwards is best
// effort; the %SLOrder stream is the authoritative confirmation.
func (m *Manager) Ensure(ctx context.Context, symbol string, shares int64, autoPurchase bool) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	decision := Decision{Symbol: symbol, Requested: shares}
	if shares <= 0 {
		return reject(decision, "non-positive share count"), nil
	}

	var available int64
	if avail, err := m.conn.LocateAvailQuery(ctx, symbol); err != nil {
		// Treat an unanswerable query as zero availability.
		m.logger.Warn("locate availability query failed", zap.String("symbol", symbol), zap.Error(err))
	} else {
		available = avail.AvailableShares
	}

	needed := shares - available
	if needed <= 0 {
		decision.Approved = true
		decision.Quantity = 0
		return decision, nil
	}

	decision = m.analyzeLocked(ctx, symbol, needed)
	decision.Requested = shares
	if !decision.Approved || decision.EasyToBorrow || !autoPurchase {
		return decision, nil
	}

	token, err := m.conn.LocateNewOrder(ctx, symbol, decision.Quantity)
	if err != nil {
		return reject(decision, "purchase failed: "+err.Error()), err
	}
	decision.OrderToken = token
	m.logger.Info("locate purchase submitted",
		zap.String("symbol", symbol),
		zap.Int64("quantity", decision.Quantity),
		zap.String("rate", decision.Rate.String()),
		zap.String("token", token))

	if info, err := m.conn.GetLocateInfo(ctx, symbol); err == nil && !info.Located {
		m.logger.Warn("locate not yet confirmed", zap.String("symbol", symbol))
	}
	return decision, nil
}

func (m *Manager) waitCooldown(ctx context.Context) error {
	remaining := m.cfg.Cooldown - time.Since(m.lastInquiry)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func reject(d Decision, reason string) Decision {
	d.Approved = false
	d.Reasons = append(d.Reasons, reason)
	return d
}

func roundUpToBlock(quantity, block int64) int64 {
	if block <= 1 {
		return quantity
	}
	if rem := quantity % block; rem != 0 {
		return quantity + block - rem
	}
	return quantity
}
