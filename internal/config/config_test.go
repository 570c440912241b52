package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  listen_addr: ":9000"
  outbox_size: 8
  shutdown_timeout: 2s
  write_timeout: 3s
storage:
  driver: sqlite
  path: /tmp/mist.db
components:
  - name: Row
    entity_types: [M1, M2]
    template: "<div>{{.component.m1.text}}</div>"
    actions: [delete]
`))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, "/mist/ws", cfg.Server.WSPath)
	assert.Equal(t, 8, cfg.Server.OutboxSize)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 3*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	require.Len(t, cfg.Components, 1)
	assert.Equal(t, []string{"M1", "M2"}, cfg.Components[0].EntityTypes)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestInvalidConfigs(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "server:\n  listen: x\n",
		"bad yaml":        "server: [",
		"no entity types": "components:\n  - name: Row\n",
		"no name":         "components:\n  - entity_types: [M1]\n",
		"bad driver":      "storage:\n  driver: redis\n",
		"sqlite no path":  "storage:\n  driver: sqlite\n",
		"bad ws path":     "server:\n  ws_path: ws\n",
		"bad action":      "components:\n  - name: Row\n    entity_types: [M1]\n    actions: [explode]\n",
		"two templates":   "components:\n  - name: Row\n    entity_types: [M1]\n    template: a\n    template_file: b\n",
		"duplicate name":  "components:\n  - name: Row\n    entity_types: [M1]\n  - name: Row\n    entity_types: [M2]\n",
		"negative write":  "server:\n  write_timeout: -1s\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	var nilCfg *Config
	assert.ErrorIs(t, nilCfg.Validate(), ErrInvalidConfig)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
