// Package mem is an in-process transport: hosts register under a name on a
// shared switchboard and exchange datagrams over channels. Useful for tests
// and demos; delivery is deterministic and every flag behaves as reliable.
package mem

import (
    "context"
    "errors"
    "fmt"
    "net"
    "sync"
    "time"

    "github.com/vaaako/scarabnet/pkg/transport"
)

// Network is the switchboard connecting in-process hosts.
type Network struct {
    mu    sync.Mutex
    hosts map[string]*Host
}

func NewNetwork() *Network { return &Network{hosts: make(map[string]*Host)} }

// Listen registers a server host under name, accepting up to maxPeers
// concurrent connections.
func (n *Network) Listen(name string, maxPeers int) (*Host, error) {
    n.mu.Lock()
    defer n.mu.Unlock()
    if _, ok := n.hosts[name]; ok {
        return nil, errors.New("mem: listener already exists")
    }
    h := newHost(n, name, maxPeers)
    n.hosts[name] = h
    return h, nil
}

// NewClient creates a client host with room for one outgoing connection.
func (n *Network) NewClient() *Host { return newHost(n, "", 1) }

func (n *Network) lookup(name string) *Host {
    n.mu.Lock()
    defer n.mu.Unlock()
    return n.hosts[name]
}

func (n *Network) forget(name string) {
    n.mu.Lock()
    defer n.mu.Unlock()
    delete(n.hosts, name)
}

// Host implements transport.ClientHost over the switchboard.
type Host struct {
    net      *Network
    name     string
    maxPeers int

    evCh    chan transport.Event
    closeCh chan struct{}

    mu        sync.Mutex
    peers     map[*Peer]struct{}
    closeOnce sync.Once
}

func newHost(n *Network, name string, maxPeers int) *Host {
    return &Host{
        net:      n,
        name:     name,
        maxPeers: maxPeers,
        evCh:     make(chan transport.Event, 256),
        closeCh:  make(chan struct{}),
        peers:    make(map[*Peer]struct{}),
    }
}

func (h *Host) Service(ctx context.Context, timeout time.Duration) (transport.Event, bool) {
    timer := time.NewTimer(timeout)
    defer timer.Stop()
    select {
    case <-ctx.Done():
        return transport.Event{}, false
    case <-h.closeCh:
        return transport.Event{}, false
    case <-timer.C:
        return transport.Event{}, false
    case ev := <-h.evCh:
        return ev, true
    }
}

func (h *Host) Connect(_ context.Context, address string) (transport.Peer, error) {
    remote := h.net.lookup(address)
    if remote == nil {
        return nil, fmt.Errorf("mem: no host listening on %q", address)
    }

    local := &Peer{home: h}
    far := &Peer{home: remote}
    local.other, far.other = far, local

    if !remote.adopt(far) {
        return nil, fmt.Errorf("mem: host %q is full", address)
    }
    if !h.adopt(local) {
        far.close()
        return nil, errors.New("mem: client host is full")
    }

    // Both sides learn about the connection through their own service loop.
    remote.post(transport.Event{Type: transport.EventConnect, Peer: far})
    h.post(transport.Event{Type: transport.EventConnect, Peer: local})
    return local, nil
}

func (h *Host) Broadcast(channel uint8, data []byte, flag transport.Flag) {
    for _, p := range h.snapshot() {
        _ = p.Send(channel, data, flag)
    }
}

func (h *Host) Addr() net.Addr { return addr(h.name) }

func (h *Host) Close() error {
    h.closeOnce.Do(func() {
        close(h.closeCh)
        if h.name != "" {
            h.net.forget(h.name)
        }
        for _, p := range h.snapshot() {
            p.Reset()
        }
    })
    return nil
}

func (h *Host) snapshot() []*Peer {
    h.mu.Lock()
    defer h.mu.Unlock()
    peers := make([]*Peer, 0, len(h.peers))
    for p := range h.peers {
        peers = append(peers, p)
    }
    return peers
}

func (h *Host) adopt(p *Peer) bool {
    h.mu.Lock()
    defer h.mu.Unlock()
    if len(h.peers) >= h.maxPeers {
        return false
    }
    h.peers[p] = struct{}{}
    return true
}

func (h *Host) drop(p *Peer) {
    h.mu.Lock()
    delete(h.peers, p)
    h.mu.Unlock()
}

func (h *Host) post(ev transport.Event) {
    select {
    case <-h.closeCh:
    case h.evCh <- ev:
    }
}

// Peer is one end of an in-process connection.
type Peer struct {
    home  *Host
    other *Peer

    mu     sync.Mutex
    closed bool
}

func (p *Peer) Send(_ uint8, data []byte, _ transport.Flag) error {
    p.mu.Lock()
    if p.closed {
        p.mu.Unlock()
        return errors.New("mem: peer closed")
    }
    p.mu.Unlock()

    buf := make([]byte, len(data))
    copy(buf, data)
    p.other.home.post(transport.Event{Type: transport.EventReceive, Peer: p.other, Data: buf})
    return nil
}

func (p *Peer) Disconnect() {
    if !p.close() {
        return
    }
    p.other.close()
    p.other.home.post(transport.Event{Type: transport.EventDisconnect, Peer: p.other})
    p.home.post(transport.Event{Type: transport.EventDisconnect, Peer: p})
}

func (p *Peer) Reset() {
    if !p.close() {
        return
    }
    p.other.close()
    // The far side only ever finds out the hard way.
    p.other.home.post(transport.Event{Type: transport.EventDisconnectTimeout, Peer: p.other})
}

func (p *Peer) RemoteAddr() net.Addr { return addr(p.other.home.name) }

// close marks the peer dead and detaches it from its host.
// Returns false if it was already closed.
func (p *Peer) close() bool {
    p.mu.Lock()
    if p.closed {
        p.mu.Unlock()
        return false
    }
    p.closed = true
    p.mu.Unlock()
    p.home.drop(p)
    return true
}

type addr string

func (a addr) Network() string { return "mem" }
func (a addr) String() string {
    if a == "" {
        return "client"
    }
    return string(a)
}
