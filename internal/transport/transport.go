// Package transport adapts a reliable-UDP library to the narrow send and
// disconnect surface the packet dispatcher needs.
package transport

import (
	"context"
	"errors"
	"time"
)

// Peer identifies one connection on a Host.
type Peer uint32

// Reliability selects the delivery guarantee of a send.
type Reliability int

const (
	Reliable    Reliability = iota // ordered, retransmitted
	Unsequenced                    // unordered, retransmitted
	Unreliable                     // fire and forget
)

func (r Reliability) String() string {
	switch r {
	case Reliable:
		return "reliable"
	case Unsequenced:
		return "unsequenced"
	case Unreliable:
		return "unreliable"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownPeer = errors.New("unknown peer")
	ErrHostClosed  = errors.New("host closed")
)

// Transport is what the dispatcher sends through. Disconnect only requests
// teardown; completion arrives later as an EventDisconnect.
type Transport interface {
	Send(peer Peer, data []byte, mode Reliability) error
	Disconnect(peer Peer) error
}

// EventType classifies a Host event.
type EventType int

const (
	EventNone EventType = iota
	EventConnect
	EventDisconnect
	EventReceive
)

func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventReceive:
		return "receive"
	default:
		return "none"
	}
}

// Event is one result of servicing a Host.
type Event struct {
	Type EventType
	Peer Peer
	Data []byte
}

// Host is a client-side transport endpoint. A Host is not safe for
// concurrent use; it belongs to the goroutine that created it.
type Host interface {
	Transport
	Connect(ctx context.Context, ip string, port int) (Peer, error)
	Service(timeout time.Duration) (Event, error)
	Close() error
}

// Dialer creates Hosts. One Host is created per bot run.
type Dialer interface {
	NewHost() (Host, error)
}
