// Package world keeps the map the bot is currently standing in.
package world

import (
	"fmt"
	"sync"

	"github.com/growbot-project/growbot/internal/protocol"
)

// Header is the fixed prefix of a map data payload.
type Header struct {
	Version   uint16 `json:"version"`
	Flags     uint32 `json:"flags"`
	Name      string `json:"name"`
	Width     uint32 `json:"width"`
	Height    uint32 `json:"height"`
	TileCount uint32 `json:"tile_count"`
}

// maxTiles guards against absurd dimensions from a corrupt payload.
const maxTiles = 1 << 20

// ParseHeader decodes the map header.
// Format: [version:2][flags:4][name_len:2][name][width:4][height:4][tile_count:4]
func ParseHeader(data []byte) (Header, error) {
	r := protocol.NewReader("map data", data)
	var h Header
	var err error

	if h.Version, err = r.ReadUint16(); err != nil {
		return Header{}, err
	}
	if h.Flags, err = r.ReadUint32(); err != nil {
		return Header{}, err
	}
	if h.Name, err = r.ReadShortString(); err != nil {
		return Header{}, err
	}
	if h.Width, err = r.ReadUint32(); err != nil {
		return Header{}, err
	}
	if h.Height, err = r.ReadUint32(); err != nil {
		return Header{}, err
	}
	if h.TileCount, err = r.ReadUint32(); err != nil {
		return Header{}, err
	}

	if uint64(h.Width)*uint64(h.Height) > maxTiles {
		return Header{}, fmt.Errorf("world %q too large: %dx%d", h.Name, h.Width, h.Height)
	}
	return h, nil
}

// World is the last map received. Safe for concurrent use.
type World struct {
	mu      sync.RWMutex
	header  Header
	loaded  bool
	updates int
}

// New creates an empty World.
func New() *World {
	return &World{}
}

// ApplyMapData replaces the current map with the one in data. On error the
// previous map is kept.
func (w *World) ApplyMapData(data []byte) error {
	h, err := ParseHeader(data)
	if err != nil {
		return fmt.Errorf("failed to parse map data: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.header = h
	w.loaded = true
	w.updates++
	return nil
}

// Header returns the current map header and whether a map is loaded.
func (w *World) Header() (Header, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.header, w.loaded
}

// Updates returns how many maps have been loaded.
func (w *World) Updates() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.updates
}
