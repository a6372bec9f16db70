package transport

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Sent is one message recorded by a MemoryHost.
type Sent struct {
	Peer Peer
	Data []byte
	Mode Reliability
}

// MemoryHost is an in-process Host. Connects succeed immediately, sends are
// recorded, and the other side injects traffic with Deliver. It is used for
// dry runs and tests.
type MemoryHost struct {
	mu          sync.Mutex
	events      chan Event
	sent        []Sent
	disconnects []Peer
	dials       []string
	peers       map[Peer]bool
	nextID      Peer
	closed      bool
}

// NewMemoryHost creates a MemoryHost with a buffered event queue.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		events: make(chan Event, 256),
		peers:  make(map[Peer]bool),
	}
}

func (h *MemoryHost) Connect(ctx context.Context, ip string, port int) (Peer, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0, ErrHostClosed
	}
	h.nextID++
	h.peers[h.nextID] = true
	h.dials = append(h.dials, fmt.Sprintf("%s:%d", ip, port))
	h.events <- Event{Type: EventConnect, Peer: h.nextID}
	return h.nextID, nil
}

func (h *MemoryHost) Service(timeout time.Duration) (Event, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return Event{}, ErrHostClosed
	}

	select {
	case ev := <-h.events:
		if ev.Type == EventDisconnect {
			h.mu.Lock()
			delete(h.peers, ev.Peer)
			h.mu.Unlock()
		}
		return ev, nil
	case <-time.After(timeout):
		return Event{Type: EventNone}, nil
	}
}

func (h *MemoryHost) Send(peer Peer, data []byte, mode Reliability) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.peers[peer] {
		return fmt.Errorf("send to peer %d: %w", peer, ErrUnknownPeer)
	}
	h.sent = append(h.sent, Sent{Peer: peer, Data: append([]byte(nil), data...), Mode: mode})
	return nil
}

func (h *MemoryHost) Disconnect(peer Peer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.peers[peer] {
		return fmt.Errorf("disconnect peer %d: %w", peer, ErrUnknownPeer)
	}
	h.disconnects = append(h.disconnects, peer)
	h.events <- Event{Type: EventDisconnect, Peer: peer}
	return nil
}

func (h *MemoryHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// Deliver queues data as if peer had sent it.
func (h *MemoryHost) Deliver(peer Peer, data []byte) {
	h.events <- Event{Type: EventReceive, Peer: peer, Data: data}
}

// Sent returns a copy of everything sent so far.
func (h *MemoryHost) Sent() []Sent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Sent(nil), h.sent...)
}

// Disconnects returns the peers Disconnect was called for.
func (h *MemoryHost) Disconnects() []Peer {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Peer(nil), h.disconnects...)
}

// Dials returns every ip:port passed to Connect.
func (h *MemoryHost) Dials() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.dials...)
}

// MemoryDialer hands out the same MemoryHost on every NewHost call, reopening it.
type MemoryDialer struct {
	Host *MemoryHost
}

// NewHost implements Dialer.
func (d *MemoryDialer) NewHost() (Host, error) {
	d.Host.mu.Lock()
	d.Host.closed = false
	d.Host.mu.Unlock()
	return d.Host, nil
}
