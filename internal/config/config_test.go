package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pennyhq/penny-companion/internal/common"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "tilde prefix resolves to home",
			input: "~/.local/share/penny/session.db",
			want:  filepath.Join(home, ".local/share/penny/session.db"),
		},
		{
			name:  "bare tilde",
			input: "~",
			want:  home,
		},
		{
			name:  "absolute path is untouched",
			input: "/var/lib/penny/session.db",
			want:  "/var/lib/penny/session.db",
		},
		{
			name:  "tilde in the middle is untouched",
			input: "/data/~backup/session.db",
			want:  "/data/~backup/session.db",
		},
		{
			name:  "empty path",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandHome(tt.input))
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8000/api/v1", cfg.API.BaseURL)
	assert.Equal(t, "https://api.pricesapi.io/api/v1", cfg.Deals.BaseURL)
	assert.Equal(t, 750*time.Millisecond, cfg.Browser.PollInterval)
	assert.True(t, filepath.IsAbs(cfg.Storage.Path), "the default storage path must come out expanded")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			API:     APIConfig{BaseURL: "http://localhost:8000"},
			Deals:   DealsConfig{BaseURL: "http://localhost:9000"},
			Storage: StorageConfig{Path: "/tmp/session.db"},
		}
	}

	t.Run("valid config passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("missing api base url", func(t *testing.T) {
		cfg := valid()
		cfg.API.BaseURL = ""
		assert.ErrorIs(t, cfg.Validate(), common.ErrMissingConfig)
	})

	t.Run("missing storage path", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Path = ""
		assert.ErrorIs(t, cfg.Validate(), common.ErrMissingConfig)
	})

	t.Run("negative poll interval", func(t *testing.T) {
		cfg := valid()
		cfg.Browser.PollInterval = -time.Second
		assert.ErrorIs(t, cfg.Validate(), common.ErrInvalidConfig)
	})

	t.Run("negative timeout", func(t *testing.T) {
		cfg := valid()
		cfg.API.Timeout = -time.Second
		assert.ErrorIs(t, cfg.Validate(), common.ErrInvalidConfig)
	})
}
