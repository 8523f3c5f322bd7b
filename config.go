// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package mircd

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultPort is the IRC port used when neither the environment, the flags
// nor the network file name one.
const DefaultPort = "6667"

var (
	// ErrMissingOperatorPassword is returned when no operator password is set.
	ErrMissingOperatorPassword = errors.New("an operator password is required")

	// ErrNetworkNeedsServerName is returned when a network file is given
	// without the name of this server.
	ErrNetworkNeedsServerName = errors.New("a network file requires a server name")
)

// Config holds the server configuration. Every field can be set from the
// environment, prefixed by the options passed to NewConfig.
type Config struct {
	// Identity
	ServerName       string `env:"SERVER_NAME"`
	Version          string `env:"VERSION"           envDefault:"mircd-0.1"`
	CreatedDate      string `env:"CREATED_DATE"`
	OperatorPassword string `env:"OPERATOR_PASSWORD"`
	ClientHost       string `env:"CLIENT_HOST"`
	NetworkFile      string `env:"NETWORK_FILE"`

	// Listeners
	Host             string   `env:"HOST"`
	Port             string   `env:"PORT"`
	WSPort           string   `env:"WS_PORT"`
	WSPath           string   `env:"WS_PATH"            envDefault:"/"`
	WSAllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`

	// Observability
	MetricsPort   string `env:"METRICS_PORT"   envDefault:"9090"`
	HealthPort    string `env:"HEALTH_PORT"    envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL"      envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT"     envDefault:"json"`
	MaxGoroutines int    `env:"MAX_GOROUTINES" envDefault:"50000"`

	// Protocol and resource limits
	MaxLineLength  int `env:"MAX_LINE_LENGTH" envDefault:"512"`
	MaxNickLength  int `env:"MAX_NICK_LENGTH" envDefault:"30"`
	MaxConnections int `env:"MAX_CONNECTIONS" envDefault:"10000"`
	BufferSize     int `env:"BUFFER_SIZE"     envDefault:"4096"`

	// Timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"5m"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	TCPKeepAlive    time.Duration `env:"TCP_KEEPALIVE"    envDefault:"30s"`

	// Rate Limiting
	ConnectRateCapacity int64   `env:"CONNECT_RATE_CAPACITY" envDefault:"5"`
	ConnectRateRefill   float64 `env:"CONNECT_RATE_REFILL"   envDefault:"0.2"`
	GlobalRateCapacity  int64   `env:"GLOBAL_RATE_CAPACITY"  envDefault:"200"`
	GlobalRateRefill    float64 `env:"GLOBAL_RATE_REFILL"    envDefault:"50"`
	FloodCapacity       int64   `env:"FLOOD_CAPACITY"        envDefault:"20"`
	FloodRefill         float64 `env:"FLOOD_REFILL"          envDefault:"2"`
}

// NewConfig parses the environment into a Config.
func NewConfig(opts env.Options) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that have no usable default.
func (c Config) Validate() error {
	if c.OperatorPassword == "" {
		return ErrMissingOperatorPassword
	}
	if c.NetworkFile != "" && c.ServerName == "" {
		return ErrNetworkNeedsServerName
	}
	return nil
}

// ApplyNetwork takes this server's entry from the network. The entry's
// host and port are used when none were configured.
func (c *Config) ApplyNetwork(n Network) error {
	srv, ok := n.Lookup(c.ServerName)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownServer, c.ServerName)
	}
	if c.Host == "" {
		c.Host = srv.Host
	}
	if c.Port == "" {
		c.Port = srv.Port
	}
	return nil
}

// Address returns the TCP listen address.
func (c Config) Address() string {
	port := c.Port
	if port == "" {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, port)
}

// WSAddress returns the WebSocket listen address, or "" when disabled.
func (c Config) WSAddress() string {
	if c.WSPort == "" {
		return ""
	}
	return net.JoinHostPort(c.Host, c.WSPort)
}
