package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/wspackets/internal/protocol/frame"
	"github.com/danmuck/wspackets/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadServerConfigDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadServerConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultServerConfig(), cfg)

	s := cfg.Session()
	require.Equal(t, 32, s.InitialAccumulator)
	require.Equal(t, frame.MaxPayloadBytes, s.Limits.MaxPayloadBytes)
	require.Equal(t, 10*time.Second, cfg.Transport().WriteTimeout)
}

func TestLoadServerConfigOverrides(t *testing.T) {
	testlog.Start(t)
	path := writeConfig(t, `
name = "edge-chat"
addr = "127.0.0.1:9999"
path = "/packets"
cors_origins = ["http://localhost:5173"]
read_buffer_size = 8192
write_timeout = "3s"
fragment_size = 512
initial_accumulator = 128
max_payload_bytes = 65536
broadcast_workers = 4
metrics = false
`)
	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, "edge-chat", cfg.Name)
	require.Equal(t, "/packets", cfg.Path)
	require.Equal(t, []string{"http://localhost:5173"}, cfg.CorsOrigins)
	require.False(t, cfg.Metrics)
	require.Equal(t, 4, cfg.BroadcastWorkers)

	s := cfg.Session()
	require.Equal(t, 128, s.InitialAccumulator)
	require.Equal(t, 512, s.FragmentSize)
	require.Equal(t, 65536, s.Limits.MaxPayloadBytes)

	tr := cfg.Transport()
	require.Equal(t, 8192, tr.ReadBufferSize)
	require.Equal(t, 4096, tr.WriteBufferSize)
	require.Equal(t, 3*time.Second, tr.WriteTimeout)
}

func TestLoadServerConfigFillsBlankFields(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadServerConfig(writeConfig(t, "name = \"\"\naddr = \"\"\n"))
	require.NoError(t, err)
	require.Equal(t, DefaultName, cfg.Name)
	require.Equal(t, DefaultAddr, cfg.Addr)
	require.Equal(t, DefaultPath, cfg.Path)
}

func TestLoadServerConfigErrors(t *testing.T) {
	testlog.Start(t)
	_, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorContains(t, err, "config load failed")

	_, err = LoadServerConfig(writeConfig(t, "addr = [\n"))
	require.ErrorContains(t, err, "config parse failed")

	cases := map[string]string{
		"path":      `path = "ws"`,
		"timeout":   `write_timeout = "soon"`,
		"fragment":  `fragment_size = -1`,
		"payload":   `max_payload_bytes = 9000000`,
		"cors":      `cors_origins = [" "]`,
		"workers":   `broadcast_workers = -2`,
		"negbuffer": `read_buffer_size = -1`,
	}
	for name, body := range cases {
		_, err := LoadServerConfig(writeConfig(t, body))
		require.Error(t, err, name)
	}
}

func TestTemplatesParse(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	require.NoError(t, WriteTemplate(path, "server", false))
	require.ErrorContains(t, WriteTemplate(path, "server", false), "already exists")
	require.NoError(t, WriteTemplate(path, "server", true))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9300", cfg.Addr)

	_, err = Template("client")
	require.NoError(t, err)
	_, err = Template("mirage")
	require.ErrorContains(t, err, "unknown config kind")
}
