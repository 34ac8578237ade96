package session

import (
	"time"

	"github.com/danmuck/wspackets/internal/protocol/frame"
)

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines per-connection session defaults.
type Config struct {
	// InitialAccumulator is the starting capacity of each reassembly buffer.
	InitialAccumulator int
	// MaxRetainedAccumulator caps the buffer kept between messages; larger
	// buffers are dropped after dispatch.
	MaxRetainedAccumulator int
	// FragmentSize splits outbound frames; 0 sends each frame as one message.
	FragmentSize int
	Limits       frame.Limits
	DialAttempts int
	Backoff      BackoffConfig
}

func DefaultConfig() Config {
	return Config{
		InitialAccumulator:     32,
		MaxRetainedAccumulator: 64 * 1024,
		FragmentSize:           0,
		Limits:                 frame.DefaultLimits(),
		DialAttempts:           5,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.InitialAccumulator <= 0 {
		c.InitialAccumulator = d.InitialAccumulator
	}
	if c.MaxRetainedAccumulator < c.InitialAccumulator {
		c.MaxRetainedAccumulator = max(d.MaxRetainedAccumulator, c.InitialAccumulator)
	}
	if c.FragmentSize < 0 {
		c.FragmentSize = 0
	}
	if c.Limits.MaxPayloadBytes <= 0 {
		c.Limits = d.Limits
	}
	if c.DialAttempts <= 0 {
		c.DialAttempts = d.DialAttempts
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = d.Backoff
	}
	return c
}
