package main

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pennyhq/penny-companion/internal/config"
	"github.com/pennyhq/penny-companion/internal/pennyapi"
	"github.com/pennyhq/penny-companion/internal/session"
)

// loadConfig reads the merged viper state.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openSession builds the session manager over the local store and the
// finance API. The caller owns closing the returned store.
func openSession(cfg *config.Config) (*session.Store, *session.Manager, error) {
	if err := cfg.EnsureStorageDir(); err != nil {
		return nil, nil, err
	}

	store, err := session.NewStore(cfg.Storage.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session store: %w", err)
	}

	api := pennyapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout)
	return store, session.NewManager(store, api), nil
}
