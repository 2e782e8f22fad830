package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrInventoryNotFound  = errors.New("inventory not found")
	ErrMalformedInventory = errors.New("malformed inventory data")
	ErrInvalidPlayer      = errors.New("invalid player name")
)

var playerNameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

// Storage keeps one inventory document per player.
type Storage interface {
	// Inventory returns the stored inventory of player.
	Inventory(ctx context.Context, player string) (Inventory, error)
	// SaveInventory replaces the stored document of player with raw.
	SaveInventory(ctx context.Context, player string, raw []byte) error
}

type Inventory struct {
	Player string
	Items  []Item
}

// Item is a single inventory slot. Exporters are not consistent about field
// names, so both name/id and amount/count are accepted, as strings or numbers.
type Item struct {
	Name         json.RawMessage `json:"name,omitempty"`
	ID           json.RawMessage `json:"id,omitempty"`
	Amount       json.RawMessage `json:"amount,omitempty"`
	Count        json.RawMessage `json:"count,omitempty"`
	Enchantments json.RawMessage `json:"enchantments,omitempty"`
}

// UnmarshalJSON leaves the item empty when b is not an object.
func (it *Item) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		*it = Item{}
		return nil
	}

	type plain Item
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*it = Item(p)
	return nil
}

func (it Item) DisplayName() string {
	if name := scalarText(it.Name); name != "" {
		return name
	}
	if id := scalarText(it.ID); id != "" {
		return id
	}
	return "Unknown Item"
}

func (it Item) Quantity() string {
	if q := scalarText(it.Amount); q != "" {
		return q
	}
	return scalarText(it.Count)
}

// EnchantmentsText returns the compact JSON of the enchantments, or "" when
// there are none.
func (it Item) EnchantmentsText() string {
	raw := bytes.TrimSpace(it.Enchantments)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func scalarText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// ParseInventory decodes a stored inventory document. Only a document that
// is not JSON at all is malformed; a missing or non-array items field yields
// an inventory without items.
func ParseInventory(raw []byte) (Inventory, error) {
	if !json.Valid(raw) {
		return Inventory{}, ErrMalformedInventory
	}

	var doc struct {
		Player json.RawMessage `json:"player"`
		Items  json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Inventory{}, nil
	}

	inv := Inventory{Player: scalarText(doc.Player)}
	items := bytes.TrimSpace(doc.Items)
	if len(items) == 0 || items[0] != '[' {
		return inv, nil
	}
	if err := json.Unmarshal(items, &inv.Items); err != nil {
		return Inventory{}, fmt.Errorf("%w: %v", ErrMalformedInventory, err)
	}
	return inv, nil
}

// ValidPlayerName reports whether name is a well-formed account name. Only
// such names are used to build file paths.
func ValidPlayerName(name string) bool {
	return playerNameRe.MatchString(name)
}
