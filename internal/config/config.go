package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/banshee-data/argus/internal/protocol"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/argus.defaults.json"

// Device key modes.
const (
	KeyModeAddress  = "address"
	KeyModeConstant = "constant"
)

// Config is the ingest service configuration. Every field is optional; the
// Get* accessors supply the default for anything left unset.
type Config struct {
	// Listener
	Listen          *string `json:"listen,omitempty"`
	RcvBuf          *int    `json:"rcv_buf,omitempty"`
	MaxDatagram     *int    `json:"max_datagram,omitempty"`
	StatsInterval   *string `json:"stats_interval,omitempty"` // duration string like "1m"
	ForwardAddr     *string `json:"forward_addr,omitempty"`
	IMUSampleLayout *string `json:"imu_sample_layout,omitempty"`

	// Tracking
	DeviceKeyMode     *string `json:"device_key_mode,omitempty"`
	ConstantDeviceKey *uint64 `json:"constant_device_key,omitempty"`
	SubscriberBuffer  *int    `json:"subscriber_buffer,omitempty"`

	// HTTP monitor; empty string disables it.
	HTTPListen *string `json:"http_listen,omitempty"`

	// mDNS instance name to advertise; empty disables advertising.
	MDNSInstance *string `json:"mdns_instance,omitempty"`

	// Logging
	WarnRate  *float64 `json:"warn_rate,omitempty"`
	WarnBurst *int     `json:"warn_burst,omitempty"`
	LogFile   *string  `json:"log_file,omitempty"` // rotated log file; empty logs to stderr
}

// Helper functions to create pointers
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }
func ptrFloat64(v float64) *float64 { return &v }

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() *Config {
	return &Config{
		Listen:            ptrString(":4210"),
		RcvBuf:            ptrInt(1 << 20),
		MaxDatagram:       ptrInt(2048),
		StatsInterval:     ptrString("1m"),
		ForwardAddr:       ptrString(""),
		IMUSampleLayout:   ptrString("compact"),
		DeviceKeyMode:     ptrString(KeyModeAddress),
		ConstantDeviceKey: ptrUint64(1),
		SubscriberBuffer:  ptrInt(64),
		HTTPListen:        ptrString(":8081"),
		MDNSInstance:      ptrString(""),
		WarnRate:          ptrFloat64(5),
		WarnBurst:         ptrInt(10),
		LogFile:           ptrString(""),
	}
}

// LoadConfig loads a Config from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Config) Validate() error {
	if c.Listen != nil {
		if _, _, err := net.SplitHostPort(*c.Listen); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", *c.Listen, err)
		}
	}

	if c.RcvBuf != nil && *c.RcvBuf < 0 {
		return fmt.Errorf("rcv_buf must be non-negative, got %d", *c.RcvBuf)
	}

	if c.MaxDatagram != nil {
		if *c.MaxDatagram < protocol.MinFrameSize || *c.MaxDatagram > 65535 {
			return fmt.Errorf("max_datagram must be between %d and 65535, got %d", protocol.MinFrameSize, *c.MaxDatagram)
		}
	}

	if c.StatsInterval != nil && *c.StatsInterval != "" {
		d, err := time.ParseDuration(*c.StatsInterval)
		if err != nil {
			return fmt.Errorf("invalid stats_interval '%s': %w", *c.StatsInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("stats_interval must be positive, got %s", d)
		}
	}

	if c.ForwardAddr != nil && *c.ForwardAddr != "" {
		if _, _, err := net.SplitHostPort(*c.ForwardAddr); err != nil {
			return fmt.Errorf("invalid forward_addr %q: %w", *c.ForwardAddr, err)
		}
	}

	if c.IMUSampleLayout != nil {
		if _, err := protocol.ParseSampleLayout(*c.IMUSampleLayout); err != nil {
			return err
		}
	}

	if c.DeviceKeyMode != nil {
		switch strings.ToLower(*c.DeviceKeyMode) {
		case KeyModeAddress, KeyModeConstant:
		default:
			return fmt.Errorf("device_key_mode must be %q or %q, got %q", KeyModeAddress, KeyModeConstant, *c.DeviceKeyMode)
		}
	}

	if c.SubscriberBuffer != nil && *c.SubscriberBuffer <= 0 {
		return fmt.Errorf("subscriber_buffer must be positive, got %d", *c.SubscriberBuffer)
	}

	if c.HTTPListen != nil && *c.HTTPListen != "" {
		if _, _, err := net.SplitHostPort(*c.HTTPListen); err != nil {
			return fmt.Errorf("invalid http_listen %q: %w", *c.HTTPListen, err)
		}
	}

	if c.MDNSInstance != nil && strings.ContainsAny(*c.MDNSInstance, ". ") {
		return fmt.Errorf("mdns_instance must be a single DNS label, got %q", *c.MDNSInstance)
	}

	if c.WarnRate != nil && *c.WarnRate < 0 {
		return fmt.Errorf("warn_rate must be non-negative, got %f", *c.WarnRate)
	}
	if c.WarnBurst != nil && *c.WarnBurst < 0 {
		return fmt.Errorf("warn_burst must be non-negative, got %d", *c.WarnBurst)
	}

	return nil
}

// GetListen returns the UDP listen address or the default.
func (c *Config) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":4210"
	}
	return *c.Listen
}

// GetRcvBuf returns the socket receive buffer size or the default.
func (c *Config) GetRcvBuf() int {
	if c.RcvBuf == nil {
		return 1 << 20
	}
	return *c.RcvBuf
}

// GetMaxDatagram returns the receive buffer length per datagram or the default.
func (c *Config) GetMaxDatagram() int {
	if c.MaxDatagram == nil {
		return 2048
	}
	return *c.MaxDatagram
}

// GetStatsInterval parses and returns the StatsInterval as a time.Duration.
func (c *Config) GetStatsInterval() time.Duration {
	if c.StatsInterval == nil || *c.StatsInterval == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(*c.StatsInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// GetForwardAddr returns the mirror destination, empty when disabled.
func (c *Config) GetForwardAddr() string {
	if c.ForwardAddr == nil {
		return ""
	}
	return *c.ForwardAddr
}

// GetIMUSampleLayout returns the configured sample layout or compact.
func (c *Config) GetIMUSampleLayout() protocol.SampleLayout {
	if c.IMUSampleLayout == nil {
		return protocol.SampleLayoutCompact
	}
	l, err := protocol.ParseSampleLayout(*c.IMUSampleLayout)
	if err != nil {
		return protocol.SampleLayoutCompact
	}
	return l
}

// GetDeviceKeyMode returns the device key mode or the default.
func (c *Config) GetDeviceKeyMode() string {
	if c.DeviceKeyMode == nil || *c.DeviceKeyMode == "" {
		return KeyModeAddress
	}
	return strings.ToLower(*c.DeviceKeyMode)
}

// GetConstantDeviceKey returns the key used in constant mode.
func (c *Config) GetConstantDeviceKey() uint64 {
	if c.ConstantDeviceKey == nil {
		return 1
	}
	return *c.ConstantDeviceKey
}

// GetSubscriberBuffer returns the notification channel capacity.
func (c *Config) GetSubscriberBuffer() int {
	if c.SubscriberBuffer == nil {
		return 64
	}
	return *c.SubscriberBuffer
}

// GetHTTPListen returns the HTTP monitor address. An explicit empty string
// disables the monitor.
func (c *Config) GetHTTPListen() string {
	if c.HTTPListen == nil {
		return ":8081"
	}
	return *c.HTTPListen
}

// GetWarnRate returns the warning budget in warnings per second.
func (c *Config) GetWarnRate() float64 {
	if c.WarnRate == nil {
		return 5
	}
	return *c.WarnRate
}

// GetWarnBurst returns the warning burst size.
func (c *Config) GetWarnBurst() int {
	if c.WarnBurst == nil {
		return 10
	}
	return *c.WarnBurst
}

// GetMDNSInstance returns the mDNS instance name, or "" when advertising is
// disabled.
func (c *Config) GetMDNSInstance() string {
	if c.MDNSInstance == nil {
		return ""
	}
	return *c.MDNSInstance
}

// GetLogFile returns the rotated log file path, or "" for stderr.
func (c *Config) GetLogFile() string {
	if c.LogFile == nil {
		return ""
	}
	return *c.LogFile
}
