// Package config centralises runtime configuration for the ibgate adapter.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coachpo/ibgate/internal/protocol"
)

// Role selects which logical adapter a connection serves. Both roles share
// one physical session against the same terminal instance.
type Role string

const (
	// RoleTransaction carries order/account traffic.
	RoleTransaction Role = "transaction"
	// RoleMarketData carries market data traffic.
	RoleMarketData Role = "market_data"
)

// Settings is the adapter configuration tree.
type Settings struct {
	// Address of the broker terminal process.
	Address string `yaml:"address"`
	// ClientID distinguishes multiple logical sessions against one terminal.
	ClientID int64 `yaml:"client_id"`
	// ConnectTimeout bounds the TCP dial; the handshake itself has no
	// internal timeout (callers wrap Connect if they need one).
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// ServerLogLevel is requested from the terminal after connect (1..5,
	// 0 leaves the terminal default untouched).
	ServerLogLevel int64 `yaml:"server_log_level"`
	// DelayedMarketData requests delayed instead of real-time quotes.
	DelayedMarketData bool `yaml:"delayed_market_data"`
	// GenericTicks lists optional generic tick codes to request on every
	// level-1 subscription.
	GenericTicks []int64 `yaml:"generic_ticks"`
	// OutboundRate caps outbound requests per second; the terminal drops
	// the session of clients that flood it.
	OutboundRate float64 `yaml:"outbound_rate"`
}

// Default returns settings for a full desktop terminal on loopback.
func Default() Settings {
	return Settings{
		Address:           protocol.DefaultTerminalAddress,
		ClientID:          0,
		ConnectTimeout:    5 * time.Second,
		ServerLogLevel:    0,
		DelayedMarketData: false,
		GenericTicks:      nil,
		OutboundRate:      50,
	}
}

// DefaultGateway returns settings for a headless gateway deployment.
func DefaultGateway() Settings {
	s := Default()
	s.Address = protocol.DefaultGatewayAddress
	return s
}

// Load reads YAML overrides from path on top of the defaults.
func Load(path string) (Settings, error) {
	s := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("parse config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate rejects settings the session layer cannot work with.
func (s Settings) Validate() error {
	if s.Address == "" {
		return fmt.Errorf("config: address required")
	}
	if s.ClientID < 0 {
		return fmt.Errorf("config: client id must be non-negative")
	}
	if s.ServerLogLevel < 0 || s.ServerLogLevel > 5 {
		return fmt.Errorf("config: server log level must be 0..5")
	}
	if s.OutboundRate <= 0 {
		return fmt.Errorf("config: outbound rate must be positive")
	}
	return nil
}

// MarketDataType resolves the wire market data delivery mode.
func (s Settings) MarketDataType() int64 {
	if s.DelayedMarketData {
		return protocol.MarketDataDelayed
	}
	return protocol.MarketDataRealTime
}
