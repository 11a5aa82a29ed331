// Package transport defines the interfaces the event pipeline consumes from
// the underlying reliable/unreliable datagram library, plus implementations
// (quic, mem). Connection establishment, retransmission, ordering and
// fragmentation are the transport's job; the pipeline only services hosts
// and translates their events.
package transport

import (
    "context"
    "net"
    "time"
)

// Flag selects the delivery mode of one send. Bits are independent and
// combinable, and are passed through to the transport verbatim.
type Flag uint8

const (
    // Reliable guarantees ordered delivery; the transport retransmits until
    // acknowledged. Higher latency.
    Reliable Flag = 1 << 0
    // Unsequenced is best-effort: packets may arrive out of order or be
    // dropped. Lowest latency.
    Unsequenced Flag = 1 << 1
    // UnreliableFragment lets the transport split payloads larger than the
    // effective MTU across datagrams. Combine with Reliable for large
    // reliable transfers.
    UnreliableFragment Flag = 1 << 3
)

// EventType identifies a transport notification.
type EventType uint8

const (
    EventNone EventType = iota
    EventConnect
    EventReceive
    EventDisconnect
    // EventDisconnectTimeout is a disconnect the transport decided on its
    // own after losing the peer.
    EventDisconnectTimeout
)

func (t EventType) String() string {
    switch t {
    case EventConnect:
        return "connect"
    case EventReceive:
        return "receive"
    case EventDisconnect:
        return "disconnect"
    case EventDisconnectTimeout:
        return "disconnect-timeout"
    default:
        return "none"
    }
}

// Event is one raw transport notification surfaced by Host.Service.
// Data is the delivered datagram for EventReceive and nil otherwise; the
// slice is owned by the receiver.
type Event struct {
    Type EventType
    Peer Peer
    Data []byte
}

// Peer is an opaque handle to a remote endpoint.
//
// Send must be safe to call concurrently with Host.Service from another
// goroutine; the pipeline's send path runs on the caller's thread while the
// driver services the host.
type Peer interface {
    // Send delivers one datagram on the given channel with the given flags.
    Send(channel uint8, data []byte, flag Flag) error
    // Disconnect requests a graceful teardown. The result arrives later as
    // an EventDisconnect on both sides; the call does not wait for it.
    Disconnect()
    // Reset tears the peer down immediately with no notification to the
    // remote side.
    Reset()
    RemoteAddr() net.Addr
}

// Host is a transport endpoint: a listening server host or a client host
// with at most one outgoing connection.
type Host interface {
    // Service waits up to timeout for the next transport notification.
    // It returns ok=false when nothing happened within the timeout or the
    // context was canceled.
    Service(ctx context.Context, timeout time.Duration) (Event, bool)
    // Broadcast sends one datagram to every connected peer. Per-peer
    // failures are not reported.
    Broadcast(channel uint8, data []byte, flag Flag)
    Addr() net.Addr
    Close() error
}

// Connector is implemented by client-side hosts.
type Connector interface {
    // Connect establishes a connection to address. The EventConnect is
    // surfaced through Service once the transport handshake completes.
    Connect(ctx context.Context, address string) (Peer, error)
}

// ClientHost is the surface the client pipeline drives.
type ClientHost interface {
    Host
    Connector
}
