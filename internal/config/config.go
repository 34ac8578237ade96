package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/wspackets/internal/protocol/frame"
	"github.com/danmuck/wspackets/internal/protocol/session"
	"github.com/danmuck/wspackets/internal/transport/wsconn"
	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultName             = "wspacketsd"
	DefaultAddr             = ":9300"
	DefaultPath             = "/ws"
	DefaultBroadcastWorkers = 16
)

// ServerConfig is the on-disk shape of the wspacketsd config.
type ServerConfig struct {
	Name               string   `toml:"name"`
	Addr               string   `toml:"addr"`
	Path               string   `toml:"path"`
	CorsOrigins        []string `toml:"cors_origins"`
	ReadBufferSize     int      `toml:"read_buffer_size"`
	WriteBufferSize    int      `toml:"write_buffer_size"`
	WriteTimeout       string   `toml:"write_timeout"`
	FragmentSize       int      `toml:"fragment_size"`
	InitialAccumulator int      `toml:"initial_accumulator"`
	MaxPayloadBytes    int      `toml:"max_payload_bytes"`
	BroadcastWorkers   int      `toml:"broadcast_workers"`
	Metrics            bool     `toml:"metrics"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Name:               DefaultName,
		Addr:               DefaultAddr,
		Path:               DefaultPath,
		CorsOrigins:        []string{},
		WriteTimeout:       "10s",
		InitialAccumulator: 32,
		MaxPayloadBytes:    frame.MaxPayloadBytes,
		BroadcastWorkers:   DefaultBroadcastWorkers,
		Metrics:            true,
	}
}

// LoadServerConfig reads path over DefaultServerConfig. An empty path returns
// the defaults.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if strings.TrimSpace(path) != "" {
		if err := loadToml(path, &cfg); err != nil {
			return ServerConfig{}, err
		}
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = DefaultName
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = DefaultAddr
	}
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = DefaultPath
	}
	if err := ValidateServerConfig(cfg); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateServerConfig(cfg ServerConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("server config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("server config missing addr")
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		return fmt.Errorf("server config path must start with /: %q", cfg.Path)
	}
	if cfg.ReadBufferSize < 0 || cfg.WriteBufferSize < 0 {
		return fmt.Errorf("server config buffer sizes must not be negative")
	}
	if cfg.FragmentSize < 0 {
		return fmt.Errorf("server config fragment_size must not be negative")
	}
	if cfg.InitialAccumulator < 0 {
		return fmt.Errorf("server config initial_accumulator must not be negative")
	}
	if cfg.MaxPayloadBytes < 0 || cfg.MaxPayloadBytes > frame.MaxPayloadBytes {
		return fmt.Errorf("server config max_payload_bytes must be within 0..%d", frame.MaxPayloadBytes)
	}
	if cfg.BroadcastWorkers < 0 {
		return fmt.Errorf("server config broadcast_workers must not be negative")
	}
	if _, err := cfg.writeTimeout(); err != nil {
		return err
	}
	for i, origin := range cfg.CorsOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("cors_origins[%d] is empty", i)
		}
	}
	return nil
}

func (c ServerConfig) writeTimeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.WriteTimeout)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse write_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("write_timeout must not be negative")
	}
	return d, nil
}

// Session maps the file settings onto session.Config. Zero values fall back
// to session defaults. write_timeout belongs to the transport.
func (c ServerConfig) Session() session.Config {
	cfg := session.DefaultConfig()
	cfg.InitialAccumulator = c.InitialAccumulator
	cfg.FragmentSize = c.FragmentSize
	cfg.Limits = frame.Limits{MaxPayloadBytes: c.MaxPayloadBytes}
	return cfg.WithDefaults()
}

// Transport maps the file settings onto the websocket adapter config.
func (c ServerConfig) Transport() wsconn.Config {
	timeout, _ := c.writeTimeout()
	cfg := wsconn.DefaultConfig()
	if c.ReadBufferSize > 0 {
		cfg.ReadBufferSize = c.ReadBufferSize
	}
	if c.WriteBufferSize > 0 {
		cfg.WriteBufferSize = c.WriteBufferSize
	}
	if timeout > 0 {
		cfg.WriteTimeout = timeout
	}
	return cfg
}
