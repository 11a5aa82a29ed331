// Package client implements the connecting side of the pipeline: a facade
// owning one transport host, one background driver goroutine and the event
// queue the application drains.
package client

import (
    "context"
    "sync"
    "sync/atomic"
    "time"

    "go.uber.org/zap"

    "github.com/vaaako/scarabnet/pkg/config"
    "github.com/vaaako/scarabnet/pkg/event"
    "github.com/vaaako/scarabnet/pkg/eventq"
    "github.com/vaaako/scarabnet/pkg/observability"
    "github.com/vaaako/scarabnet/pkg/protocol"
    "github.com/vaaako/scarabnet/pkg/transport"
    quictransport "github.com/vaaako/scarabnet/pkg/transport/quic"
)

// State is the session lifecycle. One enum instead of separate running and
// connected flags, so no caller can observe a half-transitioned pair.
type State int32

const (
    StateIdle State = iota
    StateConnecting
    StateConnected
    StateDisconnecting
)

func (s State) String() string {
    switch s {
    case StateConnecting:
        return "connecting"
    case StateConnected:
        return "connected"
    case StateDisconnecting:
        return "disconnecting"
    default:
        return "idle"
    }
}

// Client connects to one server. All methods run on the caller's goroutine
// and never block on network I/O, except Close which joins the driver.
//
// The event queue is unbounded; an application that never calls PollEvent
// accumulates events without limit.
type Client struct {
    host        transport.ClientHost
    pollTimeout time.Duration
    dialTimeout time.Duration

    events *eventq.Queue[event.Event]
    state  atomic.Int32

    mu     sync.Mutex
    peer   transport.Peer
    stopCh chan struct{}
    wg     sync.WaitGroup

    log *zap.Logger
}

// New creates a client over the QUIC transport.
func New(cfg *config.Config) (*Client, error) {
    if cfg == nil {
        cfg = config.Default()
    }
    host := quictransport.NewClient(quictransport.Options{
        ChannelCount:   cfg.Net.ChannelCount,
        MaxIdleTimeout: time.Duration(cfg.Net.IdleTimeoutMS) * time.Millisecond,
        KeepAlive:      time.Duration(cfg.Net.KeepAliveMS) * time.Millisecond,
    })
    return NewWithHost(host, cfg), nil
}

// NewWithHost creates a client over a caller-provided transport host. The
// host's Peer.Send must be safe to call concurrently with Service; both
// bundled transports are.
func NewWithHost(host transport.ClientHost, cfg *config.Config) *Client {
    if cfg == nil {
        cfg = config.Default()
    }
    return &Client{
        host:        host,
        pollTimeout: time.Duration(cfg.Net.PollTimeoutMS) * time.Millisecond,
        dialTimeout: time.Duration(cfg.Net.DialTimeoutMS) * time.Millisecond,
        events:      eventq.New[event.Event](),
        log:         zap.L().Named("client"),
    }
}

// IsRunning reports whether the driver goroutine is active.
func (c *Client) IsRunning() bool { return c.currentState() != StateIdle }

// IsConnected reports whether the connection handshake has completed.
func (c *Client) IsConnected() bool { return c.currentState() == StateConnected }

func (c *Client) currentState() State { return State(c.state.Load()) }

// Connect starts a non-blocking connection attempt. The result arrives as an
// event through PollEvent: Connect on success, Disconnect on failure.
// Calling while already running is a no-op.
func (c *Client) Connect(address string) {
    if !c.state.CompareAndSwap(int32(StateIdle), int32(StateConnecting)) {
        c.log.Warn("already connected or connection in progress",
            zap.String("state", c.currentState().String()))
        return
    }

    c.mu.Lock()
    c.stopCh = make(chan struct{})
    stop := c.stopCh
    c.mu.Unlock()

    c.log.Info("connection attempt started", zap.String("address", address))
    c.wg.Add(1)
    go c.run(address, stop)
}

// Disconnect requests a graceful teardown. The state transition happens when
// the transport surfaces the disconnect inside the driver; the call does not
// wait for it. A no-op unless currently connected.
func (c *Client) Disconnect() {
    if !c.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnecting)) {
        c.log.Debug("not connected, disconnect ignored")
        return
    }
    if p := c.peerHandle(); p != nil {
        c.log.Info("disconnecting from server")
        p.Disconnect()
    }
}

// Send serializes the packet and hands it to the transport. A logged no-op
// while not connected.
func (c *Client) Send(pkt *protocol.Packet, flag transport.Flag) {
    if c.currentState() != StateConnected {
        c.log.Debug("not connected, send ignored")
        return
    }
    p := c.peerHandle()
    if p == nil {
        return
    }
    buf := pkt.Marshal()
    if err := p.Send(0, buf, flag); err != nil {
        c.log.Debug("send failed", zap.Error(err))
        return
    }
    observability.PacketsSent.WithLabelValues("client").Inc()
    observability.BytesSent.WithLabelValues("client").Add(float64(len(buf)))
    c.log.Debug("packet sent", zap.Int("size", len(buf)))
}

// PollEvent pops the oldest pending event, non-blocking. Returns false when
// the queue is empty. Ownership of a carried packet moves to the caller.
func (c *Client) PollEvent() (event.Event, bool) {
    return c.events.PopFront()
}

// Close disconnects if needed, stops the driver and releases the host.
// Blocks until the driver goroutine has exited.
func (c *Client) Close() error {
    if c.IsConnected() {
        c.Disconnect()
    }

    c.mu.Lock()
    if c.stopCh != nil {
        select {
        case <-c.stopCh:
        default:
            close(c.stopCh)
        }
    }
    c.mu.Unlock()
    c.wg.Wait()

    if p := c.peerHandle(); p != nil {
        p.Reset()
        c.setPeer(nil)
    }
    c.state.Store(int32(StateIdle))
    return c.host.Close()
}

// run is the session driver: it owns the connection attempt and the service
// loop, and is the only writer of Connected/Idle transitions after launch.
func (c *Client) run(address string, stop <-chan struct{}) {
    defer c.wg.Done()

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go func() {
        // The deferred cancel also releases this watcher when the session
        // ends on its own, e.g. a remote-initiated disconnect.
        select {
        case <-stop:
            cancel()
        case <-ctx.Done():
        }
    }()

    dialCtx, dialCancel := context.WithTimeout(ctx, c.dialTimeout)
    peer, err := c.host.Connect(dialCtx, address)
    dialCancel()
    if err != nil {
        c.log.Warn("connection failed", zap.String("address", address), zap.Error(err))
        c.state.Store(int32(StateIdle))
        c.pushEvent(event.NewDisconnect(event.ServerID))
        return
    }
    c.setPeer(peer)

    for {
        select {
        case <-stop:
            return
        default:
        }

        ev, ok := c.host.Service(ctx, c.pollTimeout)
        if !ok {
            continue
        }

        switch ev.Type {
        case transport.EventConnect:
            c.state.Store(int32(StateConnected))
            c.pushEvent(event.NewConnect(event.ServerID))
            c.log.Info("connection successful")

        case transport.EventReceive:
            pkt, ok := protocol.Unmarshal(ev.Data)
            if !ok {
                observability.DecodeDrops.WithLabelValues("client").Inc()
                c.log.Debug("truncated datagram dropped", zap.Int("size", len(ev.Data)))
                continue
            }
            observability.PacketsReceived.WithLabelValues("client").Inc()
            observability.BytesReceived.WithLabelValues("client").Add(float64(len(ev.Data)))
            c.pushEvent(event.NewReceive(event.ServerID, pkt))
            c.log.Debug("packet received from server", zap.Int("size", len(ev.Data)))

        case transport.EventDisconnect, transport.EventDisconnectTimeout:
            // Remote-initiated or acknowledged teardown terminates the loop.
            c.state.Store(int32(StateIdle))
            c.setPeer(nil)
            c.pushEvent(event.NewDisconnect(event.ServerID))
            c.log.Info("disconnected from server",
                zap.String("reason", ev.Type.String()))
            return
        }
    }
}

func (c *Client) pushEvent(ev event.Event) {
    observability.EventsQueued.WithLabelValues("client", ev.Type.String()).Inc()
    c.events.PushBack(ev)
}

func (c *Client) peerHandle() transport.Peer {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.peer
}

func (c *Client) setPeer(p transport.Peer) {
    c.mu.Lock()
    c.peer = p
    c.mu.Unlock()
}
