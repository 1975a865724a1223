// termwatch connects to a trading terminal, mirrors its account and market
// data state, and republishes the feed over websockets. Symbols given on
// the command line are subscribed at startup.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/peter-kozarec/terminus/internal/config"
	"github.com/peter-kozarec/terminus/internal/dbg"
	"github.com/peter-kozarec/terminus/pkg/ledger"
	"github.com/peter-kozarec/terminus/pkg/locate"
	"github.com/peter-kozarec/terminus/pkg/marketdata"
	"github.com/peter-kozarec/terminus/pkg/middleware"
	"github.com/peter-kozarec/terminus/pkg/model"
	"github.com/peter-kozarec/terminus/pkg/record"
	"github.com/peter-kozarec/terminus/pkg/session"
	"github.com/peter-kozarec/terminus/pkg/stream"
	"github.com/peter-kozarec/terminus/pkg/terminal"
	"github.com/peter-kozarec/terminus/pkg/utility/fixed"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := dbg.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := terminal.Options{Timeout: cfg.Terminal.Timeout.Std()}
	dial := terminal.Dial
	if cfg.Terminal.TLS {
		dial = terminal.DialTLS
	}
	client, err := dial(logger, cfg.Terminal.Host, cfg.Terminal.Port, opts)
	if err != nil {
		logger.Fatal("error connecting to terminal", zap.Error(err))
	}
	defer client.Close()

	if err := client.Login(ctx, cfg.Terminal.User, cfg.Terminal.Password, cfg.Terminal.Account); err != nil {
		logger.Fatal("login failed", zap.Error(err))
	}

	// Create
	cache := marketdata.NewCache(client, logger, cfg.MarketData.TapeDepth)
	defer cache.Close()

	book := ledger.NewLedger(client, logger)
	defer book.Close()

	locates := locate.NewManager(client, cache, logger, locateConfig(cfg.Locate))

	clock := session.NewClock()
	logger.Info("session", zap.Stringer("current", clock.Current()))

	telemetry := middleware.NewTelemetry(logger)
	defer telemetry.PrintStatistics()

	unsub := client.RegisterHandler(terminal.KindWatchTrade, middleware.Wrap(
		func(msg terminal.Message) {
			trade := msg.WatchTrade
			logger.Info("execution",
				zap.String("symbol", trade.Symbol),
				zap.String("side", string(trade.Side)),
				zap.Int64("quantity", trade.Quantity),
				zap.String("price", trade.Price.String()))
		},
		telemetry.WithMessage,
		middleware.WithMonitor(logger, middleware.MonitorFaults),
	))
	defer unsub()

	if cfg.Recorder.Enabled {
		recorder := record.NewRecorder(cfg.Recorder.Path)
		if err := recorder.Connect(); err != nil {
			logger.Fatal("error opening recorder", zap.Error(err))
		}
		defer recorder.Close()

		cache.OnTimeSale(func(ts model.TimeSale) {
			if err := recorder.RecordTimeSale(ctx, ts); err != nil {
				logger.Warn("error recording print", zap.Error(err))
			}
		})
		cache.OnBar(func(bar model.Bar) {
			if err := recorder.RecordBar(ctx, bar); err != nil {
				logger.Warn("error recording bar", zap.Error(err))
			}
		})

		// Minute bars built from the live tape, alongside the terminal's
		// own historical bars.
		builder := marketdata.NewBarBuilder(time.Minute, func(bar model.Bar) {
			if err := recorder.RecordBar(ctx, bar); err != nil {
				logger.Warn("error recording built bar", zap.Error(err))
			}
		})
		cache.OnTimeSale(builder.OnTimeSale)
		defer builder.Flush()
	}

	if cfg.Stream.Enabled {
		hub := stream.NewHub(logger)
		hub.Attach(cache)
		go hub.Run(ctx)

		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, book.Positions())
		})
		mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, book.Orders())
		})
		mux.HandleFunc("/locate", func(w http.ResponseWriter, r *http.Request) {
			symbol := r.URL.Query().Get("symbol")
			shares, err := strconv.ParseInt(r.URL.Query().Get("shares"), 10, 64)
			if !terminal.ValidateSymbol(symbol) || err != nil {
				http.Error(w, "symbol and shares required", http.StatusBadRequest)
				return
			}
			writeJSON(w, locates.Analyze(r.Context(), symbol, shares))
		})

		srv := &http.Server{Addr: cfg.Stream.Addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("stream server failed", zap.Error(err))
			}
		}()
		defer func() {
			_ = srv.Shutdown(context.Background())
		}()
		logger.Info("streaming", zap.String("addr", cfg.Stream.Addr))
	}

	if err := book.Refresh(ctx); err != nil {
		logger.Warn("position refresh failed", zap.Error(err))
	}

	for _, symbol := range flag.Args() {
		if err := cache.Subscribe(ctx, symbol, model.DataLevel1); err != nil {
			logger.Warn("subscribe failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if err := cache.Subscribe(ctx, symbol, model.DataLevelTape); err != nil {
			logger.Warn("tape subscribe failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func locateConfig(lc config.Locate) locate.Config {
	cfg := locate.DefaultConfig()
	if v, ok := fixed.Parse(lc.MaxVolumePct); ok {
		cfg.MaxVolumePct = v
	}
	if v, ok := fixed.Parse(lc.MaxCostPct); ok {
		cfg.MaxCostPct = v
	}
	if v, ok := fixed.Parse(lc.MaxTotalCost); ok {
		cfg.MaxTotalCost = v
	}
	if lc.BlockSize > 0 {
		cfg.BlockSize = lc.BlockSize
	}
	if lc.Cooldown > 0 {
		cfg.Cooldown = lc.Cooldown.Std()
	}
	return cfg
}
