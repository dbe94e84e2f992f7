package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
database: /var/lib/pyro/shows.db
active_protocol: cobra
protocols:
  cobra:
    require_continuity: true
    receivers:
      rx-1:
        label: Left bank
        cues:
          A: [1, 2, 3]
      rx-2:
        cues:
          B: [4, 1]
  bilusocn:
    receivers: {}
daemon:
  host: 10.0.0.5
  port: 9000
feed:
  kind: mqtt
  broker: 10.0.0.5:1883
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/pyro/shows.db", cfg.Database)
	assert.Equal(t, "10.0.0.5", cfg.Daemon.Host)
	assert.Equal(t, 9000, cfg.Daemon.Port)
	assert.Equal(t, FeedMQTT, cfg.Feed.Kind)
	assert.Equal(t, "pyro/state", cfg.Feed.Topic)
	assert.Equal(t, ":8080", cfg.API.Addr)

	proto, ok := cfg.Protocol("cobra")
	require.True(t, ok)
	assert.True(t, proto.RequireContinuity)
	assert.Equal(t, "Left bank", proto.Receivers["rx-1"].Label)

	p, ok := proto.Topology().Position("B", 1)
	require.True(t, ok)
	assert.Equal(t, "rx-2", p.Receiver)
	assert.Equal(t, 1, p.Index)
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "pyroshow.db", cfg.Database)
	assert.Equal(t, FeedWebSocket, cfg.Feed.Kind)
	assert.Equal(t, "ws://127.0.0.1:8765/ws", cfg.Feed.URL)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, Validate(cfg))
	assert.Equal(t, 8765, cfg.Daemon.Port)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("PYRO_DB", "/tmp/override.db")
	t.Setenv("PYRO_DAEMON_HOST", "daemon.local")
	t.Setenv("PYRO_DAEMON_PORT", "7000")

	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Database)
	assert.Equal(t, "daemon.local", cfg.Daemon.Host)
	assert.Equal(t, 7000, cfg.Daemon.Port)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown active protocol", "active_protocol: nope\n"},
		{"bad target", "protocols:\n  p:\n    receivers:\n      rx:\n        cues:\n          A: [0]\n"},
		{"mqtt without broker", "feed:\n  kind: mqtt\n"},
		{"unknown feed", "feed:\n  kind: carrier-pigeon\n"},
		{"bad port", "daemon:\n  port: 70000\n"},
		{"not yaml", "protocols: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyro.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cobra", cfg.ActiveProtocol)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
