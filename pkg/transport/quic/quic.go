// Package quic implements the transport host over QUIC. Reliable sends
// travel on one unidirectional stream per channel with u32 little-endian
// length framing; unsequenced sends go out as QUIC datagrams. Connection
// lifecycle, retransmission and fragmentation belong to quic-go.
package quic

import (
    "context"
    "crypto/rand"
    "crypto/rsa"
    "crypto/tls"
    "crypto/x509"
    "encoding/binary"
    "errors"
    "fmt"
    "io"
    "math/big"
    "net"
    "sync"
    "time"

    quicgo "github.com/quic-go/quic-go"

    "github.com/vaaako/scarabnet/pkg/transport"
)

const (
    alpn = "scarabnet"
    // One datagram is one packet; anything bigger than this is not a frame.
    maxFrameSize = 1 << 24

    codeDisconnect quicgo.ApplicationErrorCode = 0
    codeReset      quicgo.ApplicationErrorCode = 1
    codeFull       quicgo.ApplicationErrorCode = 2
)

// Options tune a host. Zero values get sensible defaults.
type Options struct {
    ChannelCount   int
    MaxIdleTimeout time.Duration
    KeepAlive      time.Duration
}

func (o *Options) defaults() {
    if o.ChannelCount <= 0 {
        o.ChannelCount = 2
    }
    if o.MaxIdleTimeout <= 0 {
        o.MaxIdleTimeout = 10 * time.Second
    }
    if o.KeepAlive <= 0 {
        o.KeepAlive = o.MaxIdleTimeout / 2
    }
}

func (o Options) quicConfig() *quicgo.Config {
    return &quicgo.Config{
        EnableDatagrams: true,
        MaxIdleTimeout:  o.MaxIdleTimeout,
        KeepAlivePeriod: o.KeepAlive,
    }
}

// Host implements transport.Host (and transport.Connector for client hosts).
type Host struct {
    opts     Options
    listener *quicgo.Listener
    maxPeers int

    evCh    chan transport.Event
    closeCh chan struct{}

    mu        sync.Mutex
    peers     map[*Peer]struct{}
    closeOnce sync.Once

    cancel context.CancelFunc
}

// NewServer creates a listening host on address, accepting up to maxPeers
// concurrent connections.
func NewServer(address string, maxPeers int, opts Options) (*Host, error) {
    opts.defaults()
    cert, err := selfSignedCert()
    if err != nil {
        return nil, fmt.Errorf("quic: generate certificate: %w", err)
    }
    tlsConf := &tls.Config{
        Certificates: []tls.Certificate{cert},
        NextProtos:   []string{alpn},
        MinVersion:   tls.VersionTLS13,
    }
    l, err := quicgo.ListenAddr(address, tlsConf, opts.quicConfig())
    if err != nil {
        return nil, fmt.Errorf("quic: listen %s: %w", address, err)
    }
    h := newHost(opts, maxPeers)
    h.listener = l
    ctx, cancel := context.WithCancel(context.Background())
    h.cancel = cancel
    go h.acceptLoop(ctx)
    return h, nil
}

// NewClient creates a host with room for one outgoing connection.
func NewClient(opts Options) *Host {
    opts.defaults()
    h := newHost(opts, 1)
    h.cancel = func() {}
    return h
}

func newHost(opts Options, maxPeers int) *Host {
    return &Host{
        opts:     opts,
        maxPeers: maxPeers,
        evCh:     make(chan transport.Event, 256),
        closeCh:  make(chan struct{}),
        peers:    make(map[*Peer]struct{}),
    }
}

func (h *Host) Connect(ctx context.Context, address string) (transport.Peer, error) {
    // Identity is not verified at the TLS layer; the server certificate is
    // an ephemeral self-signed one.
    tlsConf := &tls.Config{
        InsecureSkipVerify: true,
        NextProtos:         []string{alpn},
        MinVersion:         tls.VersionTLS13,
    }
    conn, err := quicgo.DialAddr(ctx, address, tlsConf, h.opts.quicConfig())
    if err != nil {
        return nil, fmt.Errorf("quic: dial %s: %w", address, err)
    }
    p := h.adopt(conn)
    if p == nil {
        _ = conn.CloseWithError(codeFull, "client host full")
        return nil, errors.New("quic: client host already connected")
    }
    return p, nil
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

func (h *Host) Broadcast(channel uint8, data []byte, flag transport.Flag) {
    for _, p := range h.snapshot() {
        _ = p.Send(channel, data, flag)
    }
}

func (h *Host) Addr() net.Addr {
    if h.listener != nil {
        return h.listener.Addr()
    }
    return nil
}

func (h *Host) Close() error {
    h.closeOnce.Do(func() {
        close(h.closeCh)
        h.cancel()
        if h.listener != nil {
            _ = h.listener.Close()
        }
        for _, p := range h.snapshot() {
            p.Reset()
        }
    })
    return nil
}

func (h *Host) acceptLoop(ctx context.Context) {
    for {
        conn, err := h.listener.Accept(ctx)
        if err != nil {
            return
        }
        p := h.adopt(conn)
        if p == nil {
            _ = conn.CloseWithError(codeFull, "host full")
            continue
        }
    }
}

// adopt registers a connection as a peer, queues its EventConnect and starts
// its receive loops. Returns nil when the host is at capacity.
func (h *Host) adopt(conn quicgo.Connection) *Peer {
    h.mu.Lock()
    if len(h.peers) >= h.maxPeers {
        h.mu.Unlock()
        return nil
    }
    p := &Peer{
        host:    h,
        conn:    conn,
        streams: make(map[uint8]quicgo.SendStream),
    }
    h.peers[p] = struct{}{}
    h.mu.Unlock()
    // EventConnect must be queued before the receive loops run, or a peer
    // sending right after the handshake could surface its first receive
    // ahead of the connect.
    h.post(transport.Event{Type: transport.EventConnect, Peer: p})
    go p.streamLoop()
    go p.datagramLoop()
    return p
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

// Peer wraps one QUIC connection.
type Peer struct {
    host *Host
    conn quicgo.Connection

    // sendMu guards the per-channel send streams so Send is safe to call
    // concurrently with the host's service loop.
    sendMu  sync.Mutex
    streams map[uint8]quicgo.SendStream

    goneOnce sync.Once
}

func (p *Peer) Send(channel uint8, data []byte, flag transport.Flag) error {
    if int(channel) >= p.host.opts.ChannelCount {
        return fmt.Errorf("quic: channel %d out of range", channel)
    }
    if flag&transport.Unsequenced != 0 && flag&transport.Reliable == 0 {
        err := p.conn.SendDatagram(data)
        var tooLarge *quicgo.DatagramTooLargeError
        if err == nil || !errors.As(err, &tooLarge) {
            return err
        }
        // Oversized unsequenced payloads fall through to stream delivery;
        // that is the fragmentation path here.
    }
    return p.sendFramed(channel, data)
}

func (p *Peer) sendFramed(channel uint8, data []byte) error {
    p.sendMu.Lock()
    defer p.sendMu.Unlock()
    st, ok := p.streams[channel]
    if !ok {
        var err error
        st, err = p.conn.OpenUniStreamSync(context.Background())
        if err != nil {
            return fmt.Errorf("quic: open stream: %w", err)
        }
        p.streams[channel] = st
    }
    var lenbuf [4]byte
    binary.LittleEndian.PutUint32(lenbuf[:], uint32(len(data)))
    if _, err := st.Write(lenbuf[:]); err != nil {
        return err
    }
    _, err := st.Write(data)
    return err
}

func (p *Peer) Disconnect() {
    _ = p.conn.CloseWithError(codeDisconnect, "disconnect")
}

func (p *Peer) Reset() {
    _ = p.conn.CloseWithError(codeReset, "reset")
}

func (p *Peer) RemoteAddr() net.Addr { return p.conn.RemoteAddr() }

// streamLoop accepts inbound per-channel streams and spawns a frame reader
// for each. Its Accept error is also where connection teardown surfaces.
func (p *Peer) streamLoop() {
    for {
        rs, err := p.conn.AcceptUniStream(context.Background())
        if err != nil {
            p.gone(err)
            return
        }
        go p.readFrames(rs)
    }
}

func (p *Peer) readFrames(rs quicgo.ReceiveStream) {
    var lenbuf [4]byte
    for {
        if _, err := io.ReadFull(rs, lenbuf[:]); err != nil {
            return
        }
        n := binary.LittleEndian.Uint32(lenbuf[:])
        if n > maxFrameSize {
            return
        }
        buf := make([]byte, n)
        if _, err := io.ReadFull(rs, buf); err != nil {
            return
        }
        p.host.post(transport.Event{Type: transport.EventReceive, Peer: p, Data: buf})
    }
}

func (p *Peer) datagramLoop() {
    for {
        buf, err := p.conn.ReceiveDatagram(context.Background())
        if err != nil {
            return
        }
        p.host.post(transport.Event{Type: transport.EventReceive, Peer: p, Data: buf})
    }
}

// gone surfaces connection teardown exactly once, separating idle timeouts
// from everything else.
func (p *Peer) gone(err error) {
    p.goneOnce.Do(func() {
        p.host.drop(p)
        typ := transport.EventDisconnect
        var idle *quicgo.IdleTimeoutError
        if errors.As(err, &idle) {
            typ = transport.EventDisconnectTimeout
        }
        p.host.post(transport.Event{Type: typ, Peer: p})
    })
}

// selfSignedCert generates a short-lived self-signed TLS certificate for the
// server side.
func selfSignedCert() (tls.Certificate, error) {
    priv, err := rsa.GenerateKey(rand.Reader, 2048)
    if err != nil {
        return tls.Certificate{}, err
    }
    tmpl := x509.Certificate{
        SerialNumber:          big.NewInt(time.Now().UnixNano()),
        NotBefore:             time.Now().Add(-time.Minute),
        NotAfter:              time.Now().Add(24 * time.Hour),
        KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
        ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
        BasicConstraintsValid: true,
        DNSNames:              []string{"localhost"},
    }
    der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
    if err != nil {
        return tls.Certificate{}, err
    }
    return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}, nil
}
