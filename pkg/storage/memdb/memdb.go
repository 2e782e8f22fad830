package memdb

import (
	"context"
	"fmt"
	"sync"

	"inventory/pkg/storage"
)

type Store struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func New() *Store {
	db := Store{
		docs: make(map[string][]byte),
	}

	return &db
}

func (db *Store) Inventory(ctx context.Context, player string) (storage.Inventory, error) {
	db.mu.Lock()
	raw, ok := db.docs[player]
	db.mu.Unlock()

	if !ok {
		return storage.Inventory{}, storage.ErrInventoryNotFound
	}

	return storage.ParseInventory(raw)
}

func (db *Store) SaveInventory(ctx context.Context, player string, raw []byte) error {
	if !storage.ValidPlayerName(player) {
		return fmt.Errorf("%w: %q", storage.ErrInvalidPlayer, player)
	}

	doc := make([]byte, len(raw))
	copy(doc, raw)

	db.mu.Lock()
	defer db.mu.Unlock()
	db.docs[player] = doc

	return nil
}

// Raw returns a copy of the stored document of player.
func (db *Store) Raw(player string) ([]byte, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	raw, ok := db.docs[player]
	if !ok {
		return nil, false
	}
	doc := make([]byte, len(raw))
	copy(doc, raw)

	return doc, true
}
