package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/wspackets/internal/client"
	"github.com/danmuck/wspackets/internal/protocol/session"
	"github.com/danmuck/wspackets/internal/transport/wsconn"
)

const defaultURL = "ws://127.0.0.1:9300/ws"

// profile is the client settings after defaults, the optional profile file
// and command line flags have been applied, in that order.
type profile struct {
	URL          string
	From         string
	DialAttempts int
	FragmentSize int
	Timeout      time.Duration
}

type fileProfile struct {
	URL          string `toml:"url"`
	From         string `toml:"from"`
	DialAttempts int    `toml:"dial_attempts"`
	FragmentSize int    `toml:"fragment_size"`
	Timeout      string `toml:"timeout"`
}

func defaultProfile() profile {
	return profile{
		URL:          defaultURL,
		From:         "anon",
		DialAttempts: session.DefaultConfig().DialAttempts,
		Timeout:      10 * time.Second,
	}
}

func loadProfile(path string) (profile, error) {
	p := defaultProfile()
	if strings.TrimSpace(path) == "" {
		return p, nil
	}

	var raw fileProfile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return profile{}, fmt.Errorf("load profile: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return profile{}, fmt.Errorf("load profile: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("url") {
		if url := strings.TrimSpace(raw.URL); url != "" {
			p.URL = url
		}
	}
	if meta.IsDefined("from") {
		if from := strings.TrimSpace(raw.From); from != "" {
			p.From = from
		}
	}
	if meta.IsDefined("dial_attempts") {
		if raw.DialAttempts < 1 {
			return profile{}, fmt.Errorf("dial_attempts must be at least 1")
		}
		p.DialAttempts = raw.DialAttempts
	}
	if meta.IsDefined("fragment_size") {
		if raw.FragmentSize < 0 {
			return profile{}, fmt.Errorf("fragment_size must not be negative")
		}
		p.FragmentSize = raw.FragmentSize
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return profile{}, fmt.Errorf("parse timeout: %w", err)
		}
		p.Timeout = d
	}
	return p, nil
}

func (p profile) clientConfig() client.Config {
	cfg := session.DefaultConfig()
	cfg.DialAttempts = p.DialAttempts
	cfg.FragmentSize = p.FragmentSize
	return client.Config{
		URL:       p.URL,
		Session:   cfg,
		Transport: wsconn.DefaultConfig(),
	}
}
