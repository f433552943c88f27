package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/docrag/internal/config"
)

// Export protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config configures OpenTelemetry export.
type Config struct {
	Enabled bool
	// Endpoint is the OTLP collector as host:port.
	Endpoint string
	Protocol string
	// Insecure disables TLS. Only loopback endpoints may be insecure.
	Insecure       bool
	ServiceName    string
	ServiceVersion string
	// SampleRate is the fraction of root traces recorded.
	SampleRate      float64
	MetricInterval  time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a disabled configuration aimed at a local
// collector.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		Insecure:        true,
		ServiceName:     "docrag",
		ServiceVersion:  "dev",
		SampleRate:      1,
		MetricInterval:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// FromConfig applies the telemetry section of the configuration file on
// top of DefaultConfig.
func FromConfig(c config.TelemetryConfig, version string) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = c.Enabled
	cfg.Insecure = c.Insecure
	if c.Endpoint != "" {
		cfg.Endpoint = c.Endpoint
	}
	if c.Protocol != "" {
		cfg.Protocol = c.Protocol
	}
	if c.ServiceName != "" {
		cfg.ServiceName = c.ServiceName
	}
	if c.SampleRate > 0 {
		cfg.SampleRate = c.SampleRate
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// Validate reports configuration errors. A disabled configuration is always
// valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		errs = append(errs, fmt.Errorf("protocol must be %s or %s, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol))
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("sample rate must be in [0, 1], got %v", c.SampleRate))
	}
	if c.MetricInterval <= 0 || c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("metric interval and shutdown timeout must be positive"))
	}
	if c.Insecure && c.Endpoint != "" && !loopback(c.Endpoint) {
		errs = append(errs, fmt.Errorf("insecure export to %s is not allowed; enable TLS or use a loopback collector", c.Endpoint))
	}
	return errors.Join(errs...)
}

// loopback reports whether endpoint names the local host.
func loopback(endpoint string) bool {
	host := endpoint
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
