// Package server implements the listening side of the pipeline: a facade
// owning the transport host, the peer registry, one background driver
// goroutine and the event queue the application drains.
package server

import (
    "context"
    "fmt"
    "sync"
    "sync/atomic"
    "time"

    "go.uber.org/zap"

    "github.com/vaaako/scarabnet/pkg/config"
    "github.com/vaaako/scarabnet/pkg/event"
    "github.com/vaaako/scarabnet/pkg/eventq"
    "github.com/vaaako/scarabnet/pkg/observability"
    "github.com/vaaako/scarabnet/pkg/peers"
    "github.com/vaaako/scarabnet/pkg/protocol"
    "github.com/vaaako/scarabnet/pkg/transport"
    quictransport "github.com/vaaako/scarabnet/pkg/transport/quic"
)

// Server accepts up to max_clients concurrent connections and assigns each a
// stable uint32 id, starting at 1 and never reused. All methods run on the
// caller's goroutine and never block on network I/O, except Stop and Close
// which join the driver.
//
// The event queue is unbounded; an application that never calls PollEvent
// accumulates events without limit.
type Server struct {
    host     transport.Host
    registry *peers.Registry

    pollTimeout time.Duration
    events      *eventq.Queue[event.Event]

    running atomic.Bool
    mu      sync.Mutex
    stopCh  chan struct{}
    wg      sync.WaitGroup

    log *zap.Logger
}

// New creates a server listening on cfg.Server.Listen over the QUIC
// transport. Host creation failure aborts construction.
func New(cfg *config.Config) (*Server, error) {
    if cfg == nil {
        cfg = config.Default()
    }
    host, err := quictransport.NewServer(cfg.Server.Listen, cfg.Server.MaxClients, quictransport.Options{
        ChannelCount:   cfg.Net.ChannelCount,
        MaxIdleTimeout: time.Duration(cfg.Net.IdleTimeoutMS) * time.Millisecond,
        KeepAlive:      time.Duration(cfg.Net.KeepAliveMS) * time.Millisecond,
    })
    if err != nil {
        return nil, fmt.Errorf("server: create host: %w", err)
    }
    s := NewWithHost(host, cfg)
    s.log.Info("server host created", zap.String("listen", cfg.Server.Listen),
        zap.Int("max_clients", cfg.Server.MaxClients))
    return s, nil
}

// NewWithHost creates a server over a caller-provided transport host.
func NewWithHost(host transport.Host, cfg *config.Config) *Server {
    if cfg == nil {
        cfg = config.Default()
    }
    return &Server{
        host:        host,
        registry:    peers.NewRegistry(),
        pollTimeout: time.Duration(cfg.Net.PollTimeoutMS) * time.Millisecond,
        events:      eventq.New[event.Event](),
        log:         zap.L().Named("server"),
    }
}

// IsRunning reports whether the driver goroutine is active.
func (s *Server) IsRunning() bool { return s.running.Load() }

// Start spawns the driver. A no-op if already running.
func (s *Server) Start() {
    if !s.running.CompareAndSwap(false, true) {
        return
    }
    s.mu.Lock()
    s.stopCh = make(chan struct{})
    stop := s.stopCh
    s.mu.Unlock()

    s.wg.Add(1)
    go s.run(stop)
    s.log.Info("server started")
}

// Stop signals the driver and blocks until it exits. Connected peers stay
// connected; events already queued remain drainable.
func (s *Server) Stop() {
    if !s.running.CompareAndSwap(true, false) {
        return
    }
    s.mu.Lock()
    close(s.stopCh)
    s.mu.Unlock()
    s.wg.Wait()
    s.log.Info("server stopped")
}

// PollEvent pops the oldest pending event, non-blocking. Returns false when
// the queue is empty. Ownership of a carried packet moves to the caller.
func (s *Server) PollEvent() (event.Event, bool) {
    return s.events.PopFront()
}

// Send delivers a packet to one client. Sending to an id no longer in the
// registry is a silent no-op: by the time the caller reacts to a disconnect
// event the entry may already be gone, an accepted race.
func (s *Server) Send(clientID uint32, pkt *protocol.Packet, flag transport.Flag) {
    if !s.running.Load() {
        s.log.Debug("not running, send ignored")
        return
    }
    handle, ok := s.registry.Lookup(clientID)
    if !ok {
        s.log.Debug("client not found", zap.Uint32("client", clientID))
        return
    }
    buf := pkt.Marshal()
    if err := handle.Send(0, buf, flag); err != nil {
        s.log.Debug("send failed", zap.Uint32("client", clientID), zap.Error(err))
        return
    }
    observability.PacketsSent.WithLabelValues("server").Inc()
    observability.BytesSent.WithLabelValues("server").Add(float64(len(buf)))
    s.log.Debug("packet sent", zap.Uint32("client", clientID), zap.Int("size", len(buf)))
}

// Broadcast serializes once and delivers to every connected client. Per-peer
// failures are not reported.
func (s *Server) Broadcast(pkt *protocol.Packet, flag transport.Flag) {
    if !s.running.Load() {
        s.log.Debug("not running, broadcast ignored")
        return
    }
    buf := pkt.Marshal()
    s.host.Broadcast(0, buf, flag)
    observability.PacketsSent.WithLabelValues("server").Inc()
    observability.BytesSent.WithLabelValues("server").Add(float64(len(buf)))
    s.log.Debug("packet broadcasted", zap.Int("size", len(buf)))
}

// Close stops the driver and releases the host.
func (s *Server) Close() error {
    s.Stop()
    return s.host.Close()
}

// run is the connection driver: it services the host and fans transport
// notifications out into per-client events via the registry.
func (s *Server) run(stop <-chan struct{}) {
    defer s.wg.Done()

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go func() {
        <-stop
        cancel()
    }()

    for {
        select {
        case <-stop:
            return
        default:
        }

        ev, ok := s.host.Service(ctx, s.pollTimeout)
        if !ok {
            continue
        }

        switch ev.Type {
        case transport.EventConnect:
            id := s.registry.Insert(ev.Peer)
            s.pushEvent(event.NewConnect(id))
            s.log.Info("client connected", zap.Uint32("client", id))

        case transport.EventReceive:
            id, known := s.registry.IDOf(ev.Peer)
            if !known {
                // Data raced past its own disconnect; nothing to attribute
                // it to.
                continue
            }
            pkt, ok := protocol.Unmarshal(ev.Data)
            if !ok {
                observability.DecodeDrops.WithLabelValues("server").Inc()
                s.log.Debug("truncated datagram dropped",
                    zap.Uint32("client", id), zap.Int("size", len(ev.Data)))
                continue
            }
            observability.PacketsReceived.WithLabelValues("server").Inc()
            observability.BytesReceived.WithLabelValues("server").Add(float64(len(ev.Data)))
            s.pushEvent(event.NewReceive(id, pkt))
            s.log.Debug("packet received", zap.Uint32("client", id), zap.Int("size", len(ev.Data)))

        case transport.EventDisconnect, transport.EventDisconnectTimeout:
            id, known := s.registry.IDOf(ev.Peer)
            if !known {
                continue
            }
            s.registry.Remove(id)
            s.pushEvent(event.NewDisconnect(id))
            s.log.Info("client disconnected", zap.Uint32("client", id),
                zap.String("reason", ev.Type.String()))
        }
    }
}

func (s *Server) pushEvent(ev event.Event) {
    observability.EventsQueued.WithLabelValues("server", ev.Type.String()).Inc()
    s.events.PushBack(ev)
}
