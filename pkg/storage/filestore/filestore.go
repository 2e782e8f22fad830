// Package filestore keeps every player's inventory in its own JSON file
// under a single data directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"inventory/pkg/storage"
)

type Store struct {
	mu  sync.Mutex
	dir string
}

// New returns a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}

	return &Store{dir: dir}, nil
}

// Path returns the file that holds the inventory of player.
func (s *Store) Path(player string) (string, error) {
	if !storage.ValidPlayerName(player) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidPlayer, player)
	}
	return filepath.Join(s.dir, player+".json"), nil
}

func (s *Store) Inventory(ctx context.Context, player string) (storage.Inventory, error) {
	path, err := s.Path(player)
	if err != nil {
		return storage.Inventory{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.Inventory{}, storage.ErrInventoryNotFound
		}
		return storage.Inventory{}, fmt.Errorf("read inventory of %s: %w", player, err)
	}

	return storage.ParseInventory(raw)
}

// SaveInventory overwrites the player's file with raw. Nothing is merged.
func (s *Store) SaveInventory(ctx context.Context, player string, raw []byte) error {
	path, err := s.Path(player)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write inventory of %s: %w", player, err)
	}
	return nil
}
