package terminal

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peter-kozarec/terminus/pkg/model"
	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

const (
	DefaultHost    = "localhost"
	DefaultPort    = "9910"
	DefaultTimeout = 30 * time.Second
)

// Options tune a Client. The zero value is usable.
type Options struct {
	// Timeout bounds every correlated wait that is not already bounded by
	// its context. Defaults to DefaultTimeout.
	Timeout time.Duration
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

// Client is the public surface of the dispatch core. All collaborators
// reach the terminal through it; the socket is never handed out.
type Client struct {
	conn   *connection
	logger *zap.Logger
	opts   Options
}

// Dial opens a plain TCP session to the terminal.
func Dial(logger *zap.Logger, host, port string, opts Options) (*Client, error) {
	return dial(logger, host, port, opts, false)
}

// DialTLS opens a TLS-wrapped session.
func DialTLS(logger *zap.Logger, host, port string, opts Options) (*Client, error) {
	return dial(logger, host, port, opts, true)
}

func dial(logger *zap.Logger, host, port string, opts Options, useTLS bool) (*Client, error) {
	if host == "" {
		host = DefaultHost
	}
	if port == "" {
		port = DefaultPort
	}

	tcpConn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), time.Second*5)
	if err != nil {
		return nil, fmt.Errorf("unable to dial terminal: %w", err)
	}

	conn := tcpConn
	if useTLS {
		tlsConn := tls.Client(tcpConn, &tls.Config{ServerName: host})
		if err := tlsConn.Handshake(); err != nil {
			_ = tcpConn.Close()
			return nil, fmt.Errorf("tls handshake failed: %w", err)
		}
		conn = tlsConn
	}

	return newClient(conn, logger, opts), nil
}

// newClient wraps an established transport. Split out so tests can drive a
// Client over net.Pipe.
func newClient(conn net.Conn, logger *zap.Logger, opts Options) *Client {
	c := &Client{
		conn:   newConnection(conn, logger),
		logger: logger,
		opts:   opts,
	}
	c.conn.setState(StateConnecting)
	c.conn.start()
	c.addDiagnosticsHandler()
	return c
}

// Login performs the credential handshake. The terminal acknowledges with
// an INFO line or rejects with an ERROR line; whichever arrives first
// decides the outcome.
func (client *Client) Login(ctx context.Context, user, password, account string) error {
	client.conn.setState(StateAuthenticating)

	okPending := client.conn.registerPending(KindInfo, "")
	errPending := client.conn.registerPending(KindError, "")
	defer client.conn.removePending(okPending)
	defer client.conn.removePending(errPending)

	cmd := fmt.Sprintf("LOGIN %s %s %s", user, password, account)
	if err := client.conn.sendLine(ctx, cmd); err != nil {
		client.conn.setState(StateConnecting)
		return err
	}

	timer := time.NewTimer(client.opts.timeout())
	defer timer.Stop()

	select {
	case msg, ok := <-okPending.respChan:
		if !ok {
			return ErrConnectionClosed
		}
		client.conn.setState(StateReady)
		client.logger.Info("login accepted", zap.String("detail", msg.Text))
		return nil
	case msg, ok := <-errPending.respChan:
		if !ok {
			return ErrConnectionClosed
		}
		client.conn.setState(StateConnecting)
		return fmt.Errorf("login rejected: %s", msg.Text)
	case <-timer.C:
		client.conn.setState(StateConnecting)
		return fmt.Errorf("login: %w", ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-client.conn.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close tears the session down, cancelling every outstanding wait.
func (client *Client) Close() {
	_ = client.conn.sendLine(context.Background(), "QUIT")
	client.conn.stop()
}

func (client *Client) State() ConnState {
	return client.conn.getState()
}

// Send writes a fire-and-forget command line.
func (client *Client) Send(ctx context.Context, command string) error {
	return client.conn.sendLine(ctx, command)
}

// SendAwait writes a command and suspends until the next matching event of
// the expected kind arrives, the timeout elapses, or the connection drops.
// The symbol hint sharpens correlation for kinds that echo a symbol back;
// pass "" when the reply carries none. The pending entry is registered
// before the write so a fast reply cannot race the waiter.
func (client *Client) SendAwait(ctx context.Context, command string, expect Kind, symbol string) (Message, error) {
	p := client.conn.registerPending(expect, symbol)

	if err := client.conn.sendLine(ctx, command); err != nil {
		client.conn.removePending(p)
		return Message{}, err
	}

	return client.awaitPending(ctx, p)
}

func (client *Client) awaitPending(ctx context.Context, p *pendingRequest) (Message, error) {
	timer := time.NewTimer(client.opts.timeout())
	defer timer.Stop()

	select {
	case msg, ok := <-p.respChan:
		if !ok {
			return Message{}, ErrConnectionClosed
		}
		return msg, nil
	case <-timer.C:
		if client.conn.removePending(p) {
			return Message{}, fmt.Errorf("%s after %s: %w", p.kind, client.opts.timeout(), ErrTimeout)
		}
		// Lost the race: the reply was matched before the purge. Take it.
		msg, ok := <-p.respChan
		if !ok {
			return Message{}, ErrConnectionClosed
		}
		return msg, nil
	case <-ctx.Done():
		client.conn.removePending(p)
		return Message{}, ctx.Err()
	case <-client.conn.ctx.Done():
		return Message{}, ErrConnectionClosed
	}
}

// RegisterHandler subscribes a callback to every message of the kind that
// is not consumed by a pending correlated request. The returned func
// removes the subscription.
func (client *Client) RegisterHandler(kind Kind, cb Handler) func() {
	return client.conn.addSubscriber(kind, cb)
}

// ValidateSymbol applies the basic format rule: 1-8 alphanumeric
// characters. Checked before any network I/O.
func ValidateSymbol(symbol string) bool {
	symbol = strings.TrimSpace(symbol)
	if len(symbol) < 1 || len(symbol) > 8 {
		return false
	}
	for _, r := range symbol {
		isAlnum := (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			return false
		}
	}
	return true
}

// NewOrder submits an order and returns the client-generated token
// identifying it. Order state arrives via the order event stream; there is
// no synchronous acknowledgment.
func (client *Client) NewOrder(ctx context.Context, req model.OrderRequest) (string, error) {
	if !ValidateSymbol(req.Symbol) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, req.Symbol)
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	route := req.Route
	if route == "" {
		route = model.RouteAuto
	}
	tif := req.TimeInForce
	if tif == "" {
		tif = model.TimeInForceDay
	}

	parts := []string{
		"NEWORDER", token,
		string(req.Side),
		strings.ToUpper(req.Symbol),
		formatQty(req.Quantity),
		string(req.Type),
	}
	if req.Type != model.OrderTypeMarket {
		parts = append(parts, formatPrice(req.Price))
	}
	if req.Type == model.OrderTypeStopLimit || req.Type == model.OrderTypeStop {
		parts = append(parts, "StopPrice="+formatPrice(req.StopPrice))
	}
	parts = append(parts, string(route), string(tif))

	if err := client.Send(ctx, strings.Join(parts, " ")); err != nil {
		return "", err
	}
	return token, nil
}

func (client *Client) CancelOrder(ctx context.Context, orderId string) error {
	return client.Send(ctx, "CANCEL "+orderId)
}

func (client *Client) CancelAll(ctx context.Context) error {
	return client.Send(ctx, "CANCELALL")
}

func (client *Client) ReplaceOrder(ctx context.Context, orderId string, quantity int64, price fixed.Point) error {
	return client.Send(ctx, fmt.Sprintf("REPLACE %s %s %s", orderId, formatQty(quantity), formatPrice(price)))
}

// RefreshPositions asks the terminal to replay every open position as
// %POS events.
func (client *Client) RefreshPositions(ctx context.Context) error {
	return client.Send(ctx, "POSREFRESH")
}

// GetBuyingPower is a correlated one-shot snapshot query.
func (client *Client) GetBuyingPower(ctx context.Context) (model.BuyingPower, error) {
	msg, err := client.SendAwait(ctx, "GET BP", KindBuyingPower, "")
	if err != nil {
		return model.BuyingPower{}, fmt.Errorf("unable to query buying power: %w", err)
	}
	return *msg.BuyingPower, nil
}

func (client *Client) GetShortInfo(ctx context.Context, symbol string) (model.ShortInfo, error) {
	if !ValidateSymbol(symbol) {
		return model.ShortInfo{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	symbol = strings.ToUpper(symbol)
	msg, err := client.SendAwait(ctx, "GET SHORTINFO "+symbol, KindShortInfo, symbol)
	if err != nil {
		return model.ShortInfo{}, fmt.Errorf("unable to query short info for %s: %w", symbol, err)
	}
	return *msg.ShortInfo, nil
}

func (client *Client) GetLocateInfo(ctx context.Context, symbol string) (model.LocateInfo, error) {
	if !ValidateSymbol(symbol) {
		return model.LocateInfo{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	symbol = strings.ToUpper(symbol)
	msg, err := client.SendAwait(ctx, "GETLOCATEINFO "+symbol, KindLocateInfo, symbol)
	if err != nil {
		return model.LocateInfo{}, fmt.Errorf("unable to query locate info for %s: %w", symbol, err)
	}
	return *msg.LocateInfo, nil
}

// GetQuote is the correlated one-shot variant used by the market data
// cache on a miss. Streaming consumers subscribe instead.
func (client *Client) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	if !ValidateSymbol(symbol) {
		return model.Quote{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	symbol = strings.ToUpper(symbol)
	msg, err := client.SendAwait(ctx, "GETQUOTE "+symbol, KindQuote, symbol)
	if err != nil {
		return model.Quote{}, fmt.Errorf("unable to query quote for %s: %w", symbol, err)
	}
	return *msg.Quote, nil
}

func (client *Client) Subscribe(ctx context.Context, symbol string, level model.DataLevel) error {
	if !ValidateSymbol(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return client.Send(ctx, fmt.Sprintf("SUBSCRIBE %s %s", strings.ToUpper(symbol), level))
}

func (client *Client) Unsubscribe(ctx context.Context, symbol string, level model.DataLevel) error {
	if !ValidateSymbol(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return client.Send(ctx, fmt.Sprintf("UNSUBSCRIBE %s %s", strings.ToUpper(symbol), level))
}

// GetChart requests historical bars. The terminal answers with a burst of
// $Chart lines with no terminator; they stream to chart subscribers.
func (client *Client) GetChart(ctx context.Context, symbol string, chartType model.ChartType, bars int) error {
	if !ValidateSymbol(symbol) {
		return fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	return client.Send(ctx, fmt.Sprintf("GETCHART %s %s BARS=%d", strings.ToUpper(symbol), chartType, bars))
}

// LocatePriceInquire asks for a borrow-rate offer. Callers must serialize
// these through the locate package; the terminal destabilizes under
// concurrent inquiries.
func (client *Client) LocatePriceInquire(ctx context.Context, symbol string, quantity int64) (model.LocateQuote, error) {
	if !ValidateSymbol(symbol) {
		return model.LocateQuote{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	symbol = strings.ToUpper(symbol)
	cmd := fmt.Sprintf("SLPRICEINQUIRE %s %s ALLROUTE", symbol, formatQty(quantity))
	msg, err := client.SendAwait(ctx, cmd, KindLocateReturn, symbol)
	if err != nil {
		return model.LocateQuote{}, fmt.Errorf("locate inquiry for %s failed: %w", symbol, err)
	}
	return *msg.LocateQuote, nil
}

// LocateNewOrder submits a locate purchase. Confirmation arrives on the
// %SLOrder stream, possibly well after this call returns.
func (client *Client) LocateNewOrder(ctx context.Context, symbol string, quantity int64) (string, error) {
	if !ValidateSymbol(symbol) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	token, err := newToken()
	if err != nil {
		return "", err
	}

	cmd := fmt.Sprintf("SLNEWORDER %s %s %s ALLROUTE", token, strings.ToUpper(symbol), formatQty(quantity))
	if err := client.Send(ctx, cmd); err != nil {
		return "", err
	}
	return token, nil
}

// LocateAvailQuery reports shares currently borrowable for the account.
func (client *Client) LocateAvailQuery(ctx context.Context, symbol string) (model.LocateAvailability, error) {
	if !ValidateSymbol(symbol) {
		return model.LocateAvailability{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}

	symbol = strings.ToUpper(symbol)
	msg, err := client.SendAwait(ctx, "SLAvailQuery "+symbol, KindLocateAvail, symbol)
	if err != nil {
		return model.LocateAvailability{}, fmt.Errorf("locate availability query for %s failed: %w", symbol, err)
	}
	return *msg.LocateAvail, nil
}

func (client *Client) Echo(ctx context.Context, text string) error {
	return client.Send(ctx, "ECHO "+text)
}

func (client *Client) addDiagnosticsHandler() {
	client.RegisterHandler(KindError, func(msg Message) {
		client.logger.Warn("terminal error", zap.String("detail", msg.Text))
	})
	client.RegisterHandler(KindWarning, func(msg Message) {
		client.logger.Warn("terminal warning", zap.String("detail", msg.Text))
	})
}

func newToken() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("cannot create token: %w", err)
	}
	return id.String(), nil
}

func formatQty(q int64) string {
	return fmt.Sprintf("%d", q)
}

func formatPrice(p fixed.Point) string {
	return p.Rescale(4).String()
}
