package server

import (
	"net"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// API settings
	PathPrefix string

	// Authentication settings
	AuthEnabled bool
	AuthHeader  string
	APIKey      string

	// HTTP timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Features
	MetricsEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           9090,
		PathPrefix:     "/api/v1",
		AuthEnabled:    false,
		AuthHeader:     "X-API-Key",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   0, // streams stay open
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
	}
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ParseAddr splits a listen address such as ":9090" or "0.0.0.0:9090"
// into the host and port fields of c.
func (c *Config) ParseAddr(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return err
	}
	c.Host = host
	c.Port = p
	return nil
}
