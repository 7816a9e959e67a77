package cli

import (
	"fmt"

	"github.com/usexrp/agentwallet/internal/config"
	"github.com/usexrp/agentwallet/internal/secrets"
)

type app struct {
	cfg   *config.Config
	store *secrets.FileStore
}

func wireApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return &app{
		cfg:   cfg,
		store: secrets.NewFileStore(cfg.Secrets.Path, secrets.NewKeyringProtector(cfg.Secrets.KeyringService)),
	}, nil
}
