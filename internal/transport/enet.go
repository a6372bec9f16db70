package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/codecat/go-enet"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var enetInit sync.Once

// ENetDialer creates ENet client hosts with the range coder enabled, which
// game servers require.
type ENetDialer struct {
	Channels int
}

// NewENetDialer creates a dialer.
func NewENetDialer() *ENetDialer {
	return &ENetDialer{Channels: 2}
}

// NewHost implements Dialer.
func (d *ENetDialer) NewHost() (Host, error) {
	enetInit.Do(enet.Initialize)

	host, err := enet.NewHost(nil, 1, uint64(d.Channels), 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create enet host: %w", err)
	}
	if err := host.CompressWithRangeCoder(); err != nil {
		host.Destroy()
		return nil, fmt.Errorf("failed to enable range coder: %w", err)
	}

	return &enetHost{
		host:     host,
		channels: d.Channels,
		peers:    make(map[Peer]enet.Peer),
		logger:   log.With().Str("component", "enet").Logger(),
	}, nil
}

type enetHost struct {
	host     enet.Host
	channels int
	peers    map[Peer]enet.Peer
	nextID   Peer
	closed   bool
	logger   zerolog.Logger
}

func (h *enetHost) Connect(ctx context.Context, ip string, port int) (Peer, error) {
	if h.closed {
		return 0, ErrHostClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %d", port)
	}

	p, err := h.host.Connect(enet.NewAddress(ip, uint16(port)), h.channels, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to %s:%d: %w", ip, port, err)
	}

	h.nextID++
	h.peers[h.nextID] = p
	h.logger.Debug().Str("address", fmt.Sprintf("%s:%d", ip, port)).Uint32("peer", uint32(h.nextID)).Msg("connecting")
	return h.nextID, nil
}

func (h *enetHost) lookup(p enet.Peer) Peer {
	for id, candidate := range h.peers {
		if candidate == p {
			return id
		}
	}
	return 0
}

func (h *enetHost) Service(timeout time.Duration) (Event, error) {
	if h.closed {
		return Event{}, ErrHostClosed
	}

	ev := h.host.Service(uint32(timeout / time.Millisecond))
	switch ev.GetType() {
	case enet.EventConnect:
		return Event{Type: EventConnect, Peer: h.lookup(ev.GetPeer())}, nil

	case enet.EventDisconnect:
		id := h.lookup(ev.GetPeer())
		delete(h.peers, id)
		return Event{Type: EventDisconnect, Peer: id}, nil

	case enet.EventReceive:
		packet := ev.GetPacket()
		defer packet.Destroy()
		// The packet buffer is freed on Destroy.
		src := packet.GetData()
		data := make([]byte, len(src))
		copy(data, src)
		return Event{Type: EventReceive, Peer: h.lookup(ev.GetPeer()), Data: data}, nil

	default:
		return Event{Type: EventNone}, nil
	}
}

func (h *enetHost) Send(peer Peer, data []byte, mode Reliability) error {
	p, ok := h.peers[peer]
	if !ok {
		return fmt.Errorf("send to peer %d: %w", peer, ErrUnknownPeer)
	}

	var flags enet.PacketFlags
	switch mode {
	case Reliable:
		flags = enet.PacketFlagReliable
	case Unsequenced:
		flags = enet.PacketFlagUnsequenced
	}

	if err := p.SendBytes(data, 0, flags); err != nil {
		return fmt.Errorf("failed to send %d bytes to peer %d: %w", len(data), peer, err)
	}
	return nil
}

func (h *enetHost) Disconnect(peer Peer) error {
	p, ok := h.peers[peer]
	if !ok {
		return fmt.Errorf("disconnect peer %d: %w", peer, ErrUnknownPeer)
	}
	p.Disconnect(0)
	return nil
}

func (h *enetHost) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	for id, p := range h.peers {
		p.DisconnectNow(0)
		delete(h.peers, id)
	}
	h.host.Destroy()
	return nil
}
