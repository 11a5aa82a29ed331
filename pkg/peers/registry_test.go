package peers

import (
    "net"
    "testing"

    "github.com/vaaako/scarabnet/pkg/transport"
)

type fakePeer struct{ name string }

func (f *fakePeer) Send(uint8, []byte, transport.Flag) error { return nil }
func (f *fakePeer) Disconnect()                              {}
func (f *fakePeer) Reset()                                   {}
func (f *fakePeer) RemoteAddr() net.Addr                     { return nil }

func TestMonotonicIDs(t *testing.T) {
    r := NewRegistry()

    // Interleave connects and disconnects; ids must strictly increase and
    // never repeat.
    seen := make(map[uint32]bool)
    var last uint32
    for i := 0; i < 10; i++ {
        id := r.Insert(&fakePeer{})
        if id <= last {
            t.Fatalf("id %d not strictly increasing after %d", id, last)
        }
        if seen[id] {
            t.Fatalf("id %d reused", id)
        }
        seen[id] = true
        last = id
        if i%2 == 0 {
            r.Remove(id)
        }
    }
    if last != 10 {
        t.Fatalf("last id = %d, want 10", last)
    }
}

func TestIDZeroNeverAllocated(t *testing.T) {
    r := NewRegistry()
    if id := r.Insert(&fakePeer{}); id != 1 {
        t.Fatalf("first id = %d, want 1", id)
    }
}

func TestLookupBothWays(t *testing.T) {
    r := NewRegistry()
    p := &fakePeer{name: "a"}
    id := r.Insert(p)

    got, ok := r.Lookup(id)
    if !ok || got != transport.Peer(p) {
        t.Fatalf("Lookup(%d) = %v ok=%v", id, got, ok)
    }
    rid, ok := r.IDOf(p)
    if !ok || rid != id {
        t.Fatalf("IDOf = %d ok=%v, want %d", rid, ok, id)
    }

    r.Remove(id)
    if _, ok := r.Lookup(id); ok {
        t.Fatalf("Lookup after Remove returned ok")
    }
    if _, ok := r.IDOf(p); ok {
        t.Fatalf("IDOf after Remove returned ok")
    }
    if r.Len() != 0 {
        t.Fatalf("Len = %d after removal", r.Len())
    }
}
