// Command ibgateprobe connects to a broker terminal, subscribes to market
// data for one instrument and prints every normalized event as JSON. It is a
// diagnostic tool for checking terminal connectivity and protocol behavior.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/coachpo/ibgate"
	"github.com/coachpo/ibgate/config"
)

const probeLoggerPrefix = "ibgateprobe "

func main() {
	opts := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := log.New(os.Stderr, probeLoggerPrefix, log.LstdFlags|log.Lmicroseconds)

	cfg, err := loadSettings(opts)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	adapter := ibgate.New(cfg, config.RoleMarketData, nil)
	if err := adapter.Connect(ctx); err != nil {
		logger.Fatalf("connect %s: %v", cfg.Address, err)
	}
	defer adapter.Close()
	logger.Printf("connected to %s, negotiated protocol %s", cfg.Address, adapter.Negotiated())

	sec := ibgate.Security{
		ID:       ibgate.SecurityID{Code: opts.symbol, Board: opts.board},
		Type:     ibgate.SecurityStock,
		Currency: opts.currency,
	}
	if _, err := adapter.SubscribeMarketData(ctx, sec); err != nil {
		logger.Fatalf("subscribe market data: %v", err)
	}
	if opts.depthRows > 0 {
		if _, err := adapter.SubscribeMarketDepth(ctx, sec, opts.depthRows); err != nil {
			logger.Fatalf("subscribe market depth: %v", err)
		}
	}
	if err := adapter.RequestCurrentTime(ctx); err != nil {
		logger.Fatalf("request current time: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			logger.Printf("interrupted, closing")
			return
		case ev := <-adapter.Events():
			if err := enc.Encode(ev); err != nil {
				logger.Fatalf("encode event: %v", err)
			}
			if ev.Type == ibgate.EventDisconnected {
				logger.Printf("session ended")
				return
			}
		}
	}
}

type options struct {
	configPath string
	address    string
	gateway    bool
	clientID   int64
	symbol     string
	board      string
	currency   string
	depthRows  int64
	timeout    time.Duration
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to YAML settings file")
	flag.StringVar(&opts.address, "address", "", "terminal address (overrides config)")
	flag.BoolVar(&opts.gateway, "gateway", false, "use headless gateway defaults instead of desktop terminal")
	flag.Int64Var(&opts.clientID, "client-id", 0, "client id for this session")
	flag.StringVar(&opts.symbol, "symbol", "AAPL", "ticker code to subscribe")
	flag.StringVar(&opts.board, "board", "SMART", "exchange/board code")
	flag.StringVar(&opts.currency, "currency", "USD", "instrument currency")
	flag.Int64Var(&opts.depthRows, "depth", 0, "order book rows to subscribe (0 disables depth)")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Second, "connect timeout")
	flag.Parse()
	return opts
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func loadSettings(opts options) (config.Settings, error) {
	var cfg config.Settings
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Settings{}, err
		}
		cfg = loaded
	} else if opts.gateway {
		cfg = config.DefaultGateway()
	} else {
		cfg = config.Default()
	}
	if opts.address != "" {
		cfg.Address = opts.address
	}
	if opts.clientID != 0 {
		cfg.ClientID = opts.clientID
	}
	cfg.ConnectTimeout = opts.timeout
	return cfg, cfg.Validate()
}
