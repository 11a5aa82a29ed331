package client_test

import (
    "runtime"
    "testing"
    "time"

    "github.com/vaaako/scarabnet/pkg/client"
    "github.com/vaaako/scarabnet/pkg/config"
    "github.com/vaaako/scarabnet/pkg/event"
    "github.com/vaaako/scarabnet/pkg/protocol"
    "github.com/vaaako/scarabnet/pkg/server"
    "github.com/vaaako/scarabnet/pkg/transport"
    "github.com/vaaako/scarabnet/pkg/transport/mem"
)

const waitFor = 2 * time.Second

type poller interface {
    PollEvent() (event.Event, bool)
}

func waitEvent(t *testing.T, p poller) event.Event {
    t.Helper()
    deadline := time.Now().Add(waitFor)
    for time.Now().Before(deadline) {
        if ev, ok := p.PollEvent(); ok {
            return ev
        }
        time.Sleep(time.Millisecond)
    }
    t.Fatalf("no event within %v", waitFor)
    return event.Event{}
}

func waitUntil(t *testing.T, cond func() bool) {
    t.Helper()
    deadline := time.Now().Add(waitFor)
    for time.Now().Before(deadline) {
        if cond() {
            return
        }
        time.Sleep(time.Millisecond)
    }
    t.Fatalf("condition not reached within %v", waitFor)
}

func startPair(t *testing.T) (*server.Server, *client.Client) {
    t.Helper()
    network := mem.NewNetwork()
    host, err := network.Listen("srv", 8)
    if err != nil {
        t.Fatalf("listen: %v", err)
    }
    srv := server.NewWithHost(host, config.Default())
    srv.Start()
    t.Cleanup(func() { _ = srv.Close() })

    cli := client.NewWithHost(network.NewClient(), config.Default())
    t.Cleanup(func() { _ = cli.Close() })
    cli.Connect("srv")
    return srv, cli
}

func TestConnectSurfacesConnectFirst(t *testing.T) {
    _, cli := startPair(t)

    ev := waitEvent(t, cli)
    if ev.Type != event.Connect {
        t.Fatalf("first event = %v, want connect", ev.Type)
    }
    if ev.PeerID != event.ServerID {
        t.Fatalf("peer id = %d, want %d", ev.PeerID, event.ServerID)
    }
    if ev.Packet != nil {
        t.Fatalf("connect event carries a packet")
    }
    waitUntil(t, cli.IsConnected)
}

func TestConnectWhileRunningIsNoop(t *testing.T) {
    _, cli := startPair(t)
    waitUntil(t, cli.IsConnected)

    cli.Connect("srv")
    if !cli.IsConnected() {
        t.Fatalf("second Connect disturbed a live session")
    }
    // Exactly one connect event total.
    if ev := waitEvent(t, cli); ev.Type != event.Connect {
        t.Fatalf("event = %v, want connect", ev.Type)
    }
    if ev, ok := cli.PollEvent(); ok {
        t.Fatalf("unexpected extra event %v", ev.Type)
    }
}

func TestConnectFailureSurfacesDisconnect(t *testing.T) {
    network := mem.NewNetwork()
    cli := client.NewWithHost(network.NewClient(), config.Default())
    t.Cleanup(func() { _ = cli.Close() })

    cli.Connect("nobody-home")
    ev := waitEvent(t, cli)
    if ev.Type != event.Disconnect {
        t.Fatalf("event = %v, want disconnect", ev.Type)
    }
    waitUntil(t, func() bool { return !cli.IsRunning() })
}

func TestSendWhileNotConnectedIsNoop(t *testing.T) {
    network := mem.NewNetwork()
    cli := client.NewWithHost(network.NewClient(), config.Default())
    t.Cleanup(func() { _ = cli.Close() })

    cli.Send(protocol.New(1, 1, []byte("hi")), transport.Reliable)
    if ev, ok := cli.PollEvent(); ok {
        t.Fatalf("unexpected event %v", ev.Type)
    }
}

func TestClientToServerDelivery(t *testing.T) {
    srv, cli := startPair(t)

    if ev := waitEvent(t, srv); ev.Type != event.Connect {
        t.Fatalf("server event = %v, want connect", ev.Type)
    }
    waitUntil(t, cli.IsConnected)

    cli.Send(protocol.New(3, 9, []byte("ping")), transport.Reliable)

    // Connect may still be pending on the client side; only the server
    // queue matters here.
    ev := waitEvent(t, srv)
    if ev.Type != event.Receive {
        t.Fatalf("server event = %v, want receive", ev.Type)
    }
    if ev.PeerID != 1 {
        t.Fatalf("peer id = %d, want 1", ev.PeerID)
    }
    if ev.Packet == nil || string(ev.Packet.Data) != "ping" {
        t.Fatalf("payload mismatch: %v", ev.Packet)
    }
    if ev.Packet.Header.ID != 3 || ev.Packet.Header.Type != 9 {
        t.Fatalf("header mismatch: %+v", ev.Packet.Header)
    }
}

// Repeated connect/disconnect cycles must not park a goroutine per session.
func TestReconnectDoesNotLeakGoroutines(t *testing.T) {
    network := mem.NewNetwork()
    host, err := network.Listen("srv", 8)
    if err != nil {
        t.Fatalf("listen: %v", err)
    }
    srv := server.NewWithHost(host, config.Default())
    srv.Start()
    t.Cleanup(func() { _ = srv.Close() })

    cli := client.NewWithHost(network.NewClient(), config.Default())
    t.Cleanup(func() { _ = cli.Close() })

    cycle := func() {
        cli.Connect("srv")
        waitUntil(t, cli.IsConnected)
        if ev := waitEvent(t, cli); ev.Type != event.Connect {
            t.Fatalf("event = %v, want connect", ev.Type)
        }
        cli.Disconnect()
        if ev := waitEvent(t, cli); ev.Type != event.Disconnect {
            t.Fatalf("event = %v, want disconnect", ev.Type)
        }
        waitUntil(t, func() bool { return !cli.IsRunning() })
    }

    cycle() // warm-up
    base := runtime.NumGoroutine()
    for i := 0; i < 10; i++ {
        cycle()
    }
    waitUntil(t, func() bool { return runtime.NumGoroutine() <= base+3 })
}

// Disconnecting while two received packets are still queued: the drain yields
// both, then exactly one final disconnect, then the client is idle.
func TestDisconnectDrainsQueuedEventsFirst(t *testing.T) {
    srv, cli := startPair(t)

    sev := waitEvent(t, srv)
    if sev.Type != event.Connect {
        t.Fatalf("server event = %v, want connect", sev.Type)
    }
    clientID := sev.PeerID
    waitUntil(t, cli.IsConnected)
    if ev := waitEvent(t, cli); ev.Type != event.Connect {
        t.Fatalf("client event = %v, want connect", ev.Type)
    }

    srv.Send(clientID, protocol.New(1, 0, []byte("a")), transport.Reliable)
    srv.Send(clientID, protocol.New(2, 0, []byte("b")), transport.Reliable)

    // Tear down while both receives sit undelivered in the client queue.
    time.Sleep(100 * time.Millisecond)
    cli.Disconnect()

    first := waitEvent(t, cli)
    second := waitEvent(t, cli)
    for _, ev := range []event.Event{first, second} {
        if ev.Type != event.Receive {
            t.Fatalf("event = %v, want receive", ev.Type)
        }
    }
    if string(first.Packet.Data) != "a" || string(second.Packet.Data) != "b" {
        t.Fatalf("receive order broken: %q then %q", first.Packet.Data, second.Packet.Data)
    }
    ev := waitEvent(t, cli)
    if ev.Type != event.Disconnect {
        t.Fatalf("event = %v, want disconnect", ev.Type)
    }
    if ev, ok := cli.PollEvent(); ok {
        t.Fatalf("extra event after disconnect: %v", ev.Type)
    }
    waitUntil(t, func() bool { return !cli.IsRunning() })
    if cli.IsConnected() {
        t.Fatalf("still connected after disconnect")
    }
}
