package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadProfileDefaults(t *testing.T) {
	p, err := loadProfile("")
	require.NoError(t, err)
	require.Equal(t, defaultProfile(), p)
	require.Equal(t, defaultURL, p.clientConfig().URL)
}

func TestLoadProfileOverlaysDefinedKeys(t *testing.T) {
	path := writeProfile(t, `
url = "ws://chat.local:9300/ws"
from = "ana"
fragment_size = 256
timeout = "2s"
`)
	p, err := loadProfile(path)
	require.NoError(t, err)
	require.Equal(t, "ws://chat.local:9300/ws", p.URL)
	require.Equal(t, "ana", p.From)
	require.Equal(t, 256, p.FragmentSize)
	require.Equal(t, 2*time.Second, p.Timeout)
	require.Equal(t, defaultProfile().DialAttempts, p.DialAttempts)

	cfg := p.clientConfig()
	require.Equal(t, 256, cfg.Session.FragmentSize)
}

func TestLoadProfileKeepsDefaultsForBlankStrings(t *testing.T) {
	p, err := loadProfile(writeProfile(t, "url = \"  \"\nfrom = \"\"\n"))
	require.NoError(t, err)
	require.Equal(t, defaultURL, p.URL)
	require.Equal(t, "anon", p.From)
}

func TestLoadProfileErrors(t *testing.T) {
	for name, body := range map[string]string{
		"attempts": "dial_attempts = 0",
		"fragment": "fragment_size = -4",
		"timeout":  `timeout = "later"`,
		"unknown":  `room = "lobby"`,
		"syntax":   "url = ",
	} {
		_, err := loadProfile(writeProfile(t, body))
		require.Error(t, err, name)
	}
	_, err := loadProfile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
