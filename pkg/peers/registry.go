// Package peers maps transport peer handles to stable integer identifiers on
// the server side. Ids start at 1 and are never reused for the lifetime of
// the host; 0 stays reserved for "the server" as seen from a client.
package peers

import (
    "sync"

    "github.com/vaaako/scarabnet/pkg/transport"
)

// Registry is guarded by its own mutex, kept distinct from the event queue's
// lock: the send path (caller goroutine) and the connection driver both touch
// the registry while the queue is touched independently.
type Registry struct {
    mu   sync.Mutex
    next uint32
    byID map[uint32]transport.Peer
    ids  map[transport.Peer]uint32
}

func NewRegistry() *Registry {
    return &Registry{
        next: 1,
        byID: make(map[uint32]transport.Peer),
        ids:  make(map[transport.Peer]uint32),
    }
}

// Insert allocates the next sequential id for handle and records the mapping
// both ways.
func (r *Registry) Insert(handle transport.Peer) uint32 {
    r.mu.Lock()
    defer r.mu.Unlock()
    id := r.next
    r.next++
    r.byID[id] = handle
    r.ids[handle] = id
    return id
}

// Remove deletes the mapping for id.
func (r *Registry) Remove(id uint32) {
    r.mu.Lock()
    defer r.mu.Unlock()
    if handle, ok := r.byID[id]; ok {
        delete(r.byID, id)
        delete(r.ids, handle)
    }
}

// Lookup returns the live handle for id.
func (r *Registry) Lookup(id uint32) (transport.Peer, bool) {
    r.mu.Lock()
    defer r.mu.Unlock()
    handle, ok := r.byID[id]
    return handle, ok
}

// IDOf is the reverse lookup the driver uses when the transport surfaces an
// event for a handle.
func (r *Registry) IDOf(handle transport.Peer) (uint32, bool) {
    r.mu.Lock()
    defer r.mu.Unlock()
    id, ok := r.ids[handle]
    return id, ok
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
    r.mu.Lock()
    defer r.mu.Unlock()
    return len(r.byID)
}
