// Package inventory keeps the bot's backpack contents.
package inventory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/growbot-project/growbot/internal/protocol"
)

// Item is one backpack slot.
type Item struct {
	ID     uint16 `json:"id"`
	Amount uint8  `json:"amount"`
	Flags  uint8  `json:"flags"`
}

// Inventory is the last inventory state received. Safe for concurrent use.
type Inventory struct {
	mu      sync.RWMutex
	version uint8
	size    uint32
	items   map[uint16]Item
	loaded  bool
}

// New creates an empty Inventory.
func New() *Inventory {
	return &Inventory{items: make(map[uint16]Item)}
}

// ApplyInventoryData replaces the inventory with the one in data.
// Format: [version:1][backpack_size:4][count:2] then count × [id:2][amount:1][flags:1].
// On error the previous contents are kept.
func (inv *Inventory) ApplyInventoryData(data []byte) error {
	r := protocol.NewReader("inventory", data)

	version, err := r.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to parse inventory: %w", err)
	}
	size, err := r.ReadUint32()
	if err != nil {
		return fmt.Errorf("failed to parse inventory: %w", err)
	}
	count, err := r.ReadUint16()
	if err != nil {
		return fmt.Errorf("failed to parse inventory: %w", err)
	}

	items := make(map[uint16]Item, count)
	for i := 0; i < int(count); i++ {
		raw, err := r.ReadBytes(4)
		if err != nil {
			return fmt.Errorf("failed to parse inventory item %d: %w", i, err)
		}
		item := Item{
			ID:     uint16(raw[0]) | uint16(raw[1])<<8,
			Amount: raw[2],
			Flags:  raw[3],
		}
		items[item.ID] = item
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.version = version
	inv.size = size
	inv.items = items
	inv.loaded = true
	return nil
}

// Amount returns how many of item id the bot holds.
func (inv *Inventory) Amount(id uint16) int {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return int(inv.items[id].Amount)
}

// Size returns the backpack capacity.
func (inv *Inventory) Size() uint32 {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.size
}

// Items returns the slots ordered by item id.
func (inv *Inventory) Items() []Item {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := make([]Item, 0, len(inv.items))
	for _, it := range inv.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Loaded reports whether an inventory state has been received.
func (inv *Inventory) Loaded() bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.loaded
}
