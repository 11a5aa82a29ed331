// Package event defines the uniform notification model handed to the
// application by the client and server pipelines.
package event

import (
    "github.com/vaaako/scarabnet/pkg/protocol"
)

// Type identifies what happened on the connection.
type Type uint8

const (
    // None marks an uninitialized event; it is never queued.
    None Type = iota
    Connect
    Disconnect
    Receive
)

func (t Type) String() string {
    switch t {
    case Connect:
        return "connect"
    case Disconnect:
        return "disconnect"
    case Receive:
        return "receive"
    default:
        return "none"
    }
}

// ServerID is the peer id a client sees for its server. Server-assigned
// client ids start at 1, so the value is never ambiguous.
const ServerID uint32 = 0

// Event is one notification crossing from the network goroutine to the
// application. Packet is non-nil exactly when Type is Receive; the
// constructors below are the only way drivers build events, which keeps that
// pairing intact. Whoever pops the event owns the packet.
type Event struct {
    PeerID uint32
    Type   Type
    Packet *protocol.Packet
}

// NewConnect builds a Connect notification for peer.
func NewConnect(peer uint32) Event { return Event{PeerID: peer, Type: Connect} }

// NewDisconnect builds a Disconnect notification for peer.
func NewDisconnect(peer uint32) Event { return Event{PeerID: peer, Type: Disconnect} }

// NewReceive builds a Receive notification carrying pkt.
func NewReceive(peer uint32, pkt *protocol.Packet) Event {
    return Event{PeerID: peer, Type: Receive, Packet: pkt}
}
