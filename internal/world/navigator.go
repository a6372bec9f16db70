package world

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/growbot-project/growbot/internal/session"
)

// Navigator is the pathfinding hook the dispatcher refreshes after every
// map load. It tracks the walk grid dimensions of the current world.
type Navigator struct {
	mu     sync.RWMutex
	world  *World
	width  int
	height int
	logger zerolog.Logger
}

// NewNavigator creates a Navigator over w.
func NewNavigator(w *World) *Navigator {
	return &Navigator{
		world:  w,
		logger: log.With().Str("component", "navigator").Logger(),
	}
}

// Update rebuilds the grid from the current world.
func (n *Navigator) Update(s *session.Session) {
	h, ok := n.world.Header()
	if !ok {
		return
	}

	n.mu.Lock()
	n.width = int(h.Width)
	n.height = int(h.Height)
	n.mu.Unlock()

	n.logger.Debug().
		Str("world", h.Name).
		Uint32("width", h.Width).
		Uint32("height", h.Height).
		Str("username", s.Username()).
		Msg("navigation grid rebuilt")
}

// Size returns the grid dimensions of the last map.
func (n *Navigator) Size() (int, int) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.width, n.height
}
