package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ".db", cfg.DBDir)
	assert.Equal(t, "notary-certificates", cfg.NotaryDir)
	assert.Equal(t, 2*time.Second, cfg.CacheTimeout.Std())
	assert.Equal(t, 10*time.Second, cfg.ParamUpdateDelay.Std())
	assert.Equal(t, time.Second, cfg.NetworkMapDelay.Std())
	assert.Equal(t, "embed", cfg.MongoConnectionString)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
db.dir: /var/lib/atlas
paramUpdate.delay: 24h
networkMap.delay: 500ms
tls: true
tls.cert.path: /etc/atlas/tls.crt
tls.key.path: /etc/atlas/tls.key
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/var/lib/atlas", cfg.DBDir)
	assert.Equal(t, 24*time.Hour, cfg.ParamUpdateDelay.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.NetworkMapDelay.Std())
	// Untouched keys keep their defaults.
	assert.Equal(t, 8080, Default().Port)
	assert.Equal(t, "admin", cfg.Username)
	assert.True(t, cfg.TLS)
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache.timeout: soon\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"port overflow", func(c *Config) { c.Port = 70000 }, true},
		{"external mongo", func(c *Config) { c.MongoConnectionString = "mongodb://host" }, true},
		{"tls without cert", func(c *Config) { c.TLS = true }, true},
		{"tls complete", func(c *Config) {
			c.TLS = true
			c.TLSCertPath = "tls.crt"
			c.TLSKeyPath = "tls.key"
		}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
