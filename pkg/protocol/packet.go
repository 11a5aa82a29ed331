// Package protocol defines the Packet wire format exchanged between client
// and server: a fixed 8-byte header followed by an opaque payload. One
// datagram carries exactly one Packet; payload length is implied by the
// datagram size, so no length prefix is transmitted.
package protocol

import (
    "encoding/binary"
    "fmt"
)

// Fixed header layout (8 bytes). All integer fields are little-endian.
//
//  0 ..3  ID   u32
//  4 ..7  Type u32
const HeaderSize = 8

// Header carries application-defined identifiers; the pipeline never
// interprets them.
type Header struct {
    ID   uint32
    Type uint32
}

// Packet is the unit of application data. Data is owned exclusively by the
// Packet; Marshal/Unmarshal always copy.
type Packet struct {
    Header Header
    Data   []byte
}

// New builds a packet with a copy of payload.
func New(id, typ uint32, payload []byte) *Packet {
    p := &Packet{Header: Header{ID: id, Type: typ}}
    p.SetData(payload)
    return p
}

// SetData replaces the payload with a copy of b.
func (p *Packet) SetData(b []byte) {
    if len(b) == 0 {
        p.Data = nil
        return
    }
    p.Data = make([]byte, len(b))
    copy(p.Data, b)
}

// Size returns the whole serialized size of the packet.
func (p *Packet) Size() int { return HeaderSize + len(p.Data) }

// Marshal encodes the packet to header || payload.
func (p *Packet) Marshal() []byte {
    buf := make([]byte, p.Size())
    binary.LittleEndian.PutUint32(buf[0:4], p.Header.ID)
    binary.LittleEndian.PutUint32(buf[4:8], p.Header.Type)
    copy(buf[HeaderSize:], p.Data)
    return buf
}

// Unmarshal decodes one datagram into a packet. Input shorter than the
// header is a truncated frame and yields (nil, false); the caller drops it.
// The remainder past the header, possibly empty, becomes the payload.
func Unmarshal(buf []byte) (*Packet, bool) {
    if len(buf) < HeaderSize {
        return nil, false
    }
    p := &Packet{Header: Header{
        ID:   binary.LittleEndian.Uint32(buf[0:4]),
        Type: binary.LittleEndian.Uint32(buf[4:8]),
    }}
    p.SetData(buf[HeaderSize:])
    return p, true
}

func (p *Packet) String() string {
    return fmt.Sprintf("packet id=%d type=%d size=%d", p.Header.ID, p.Header.Type, p.Size())
}
