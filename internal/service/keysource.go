package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/usexrp/agentwallet/internal/secrets"
	"github.com/usexrp/agentwallet/internal/signer"
)

var ErrWalletNotConfigured = errors.New("wallet not configured")

// KeySource materializes the signing keypair for one request. The keypair
// is not cached between requests.
type KeySource interface {
	Keypair(ctx context.Context) (*signer.Keypair, error)
}

// StoreKeySource derives the keypair from the seed held in a secrets.Store.
type StoreKeySource struct {
	store secrets.Store
}

func NewStoreKeySource(store secrets.Store) *StoreKeySource {
	return &StoreKeySource{store: store}
}

func (s *StoreKeySource) Keypair(ctx context.Context) (*signer.Keypair, error) {
	seed, err := s.store.Get(ctx, secrets.KeySeed)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, ErrWalletNotConfigured
		}
		return nil, err
	}
	if strings.TrimSpace(seed) == "" {
		return nil, ErrWalletNotConfigured
	}

	kp, err := signer.KeypairFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("stored seed is unusable: %w", err)
	}
	return kp, nil
}
