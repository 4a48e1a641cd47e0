package file

import (
	"fmt"

	"github.com/nextlevelbuilder/clawgate/internal/store"
)

// NewFileStores creates all stores backed by local files (standalone mode).
func NewFileStores(cfg store.StoreConfig) (*store.Stores, error) {
	pairing, err := NewPairingStore(cfg.PairingDir)
	if err != nil {
		return nil, fmt.Errorf("open pairing store: %w", err)
	}
	return &store.Stores{
		Pairing: pairing,
	}, nil
}
