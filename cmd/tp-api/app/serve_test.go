package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DrFlowerkick/fk-tournament-planer-sub001/internal/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadServeConfig(t *testing.T) {
	reset := func() {
		viper.Set("config", "")
		viper.Set("in-memory", false)
	}
	t.Cleanup(reset)

	t.Run("requires config without in-memory", func(t *testing.T) {
		reset()
		_, err := loadServeConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--config is required")
	})

	t.Run("in-memory needs no config file", func(t *testing.T) {
		reset()
		viper.Set("in-memory", true)
		cfg, err := loadServeConfig()
		require.NoError(t, err)
		assert.Equal(t, config.StorageTypeMemory, cfg.GetStorageType())
	})

	t.Run("loads config file", func(t *testing.T) {
		reset()
		viper.Set("config", writeConfigFile(t, `
storage: memory
server:
  address: ":9090"
notify:
  bufferSize: 16
  keepAliveInterval: 10s
`))
		cfg, err := loadServeConfig()
		require.NoError(t, err)
		assert.Equal(t, config.StorageTypeMemory, cfg.GetStorageType())
		assert.Equal(t, ":9090", cfg.Server.Address)
		assert.Equal(t, 16, cfg.Notify.BufferSize)
	})

	t.Run("in-memory overrides configured storage", func(t *testing.T) {
		reset()
		viper.Set("config", writeConfigFile(t, `
storage: postgres
database:
  host: localhost
  port: 5432
  user: tp
  database: tournaments
`))
		viper.Set("in-memory", true)
		cfg, err := loadServeConfig()
		require.NoError(t, err)
		assert.Equal(t, config.StorageTypeMemory, cfg.GetStorageType())
	})
}

func TestRootCmdSubcommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["serve"])
	assert.True(t, names["version"])
	assert.True(t, names["migrate"])
}
