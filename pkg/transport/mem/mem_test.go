package mem

import (
    "context"
    "testing"
    "time"

    "github.com/vaaako/scarabnet/pkg/transport"
)

func service(t *testing.T, h *Host, want transport.EventType) transport.Event {
    t.Helper()
    deadline := time.Now().Add(2 * time.Second)
    for time.Now().Before(deadline) {
        if ev, ok := h.Service(context.Background(), 5*time.Millisecond); ok {
            if ev.Type != want {
                t.Fatalf("event = %v, want %v", ev.Type, want)
            }
            return ev
        }
    }
    t.Fatalf("no %v event within 2s", want)
    return transport.Event{}
}

func TestConnectSendDisconnect(t *testing.T) {
    network := NewNetwork()
    srv, err := network.Listen("srv", 2)
    if err != nil {
        t.Fatalf("listen: %v", err)
    }
    defer srv.Close()

    cli := network.NewClient()
    defer cli.Close()

    peer, err := cli.Connect(context.Background(), "srv")
    if err != nil {
        t.Fatalf("connect: %v", err)
    }
    service(t, cli, transport.EventConnect)
    srvSide := service(t, srv, transport.EventConnect).Peer

    if err := peer.Send(0, []byte("ping"), transport.Reliable); err != nil {
        t.Fatalf("send: %v", err)
    }
    ev := service(t, srv, transport.EventReceive)
    if string(ev.Data) != "ping" {
        t.Fatalf("data = %q", ev.Data)
    }
    if ev.Peer != srvSide {
        t.Fatalf("receive attributed to a different peer handle")
    }

    peer.Disconnect()
    service(t, srv, transport.EventDisconnect)
    service(t, cli, transport.EventDisconnect)

    if err := peer.Send(0, []byte("late"), transport.Reliable); err == nil {
        t.Fatalf("send on closed peer succeeded")
    }
}

func TestListenerCapacity(t *testing.T) {
    network := NewNetwork()
    srv, err := network.Listen("srv", 1)
    if err != nil {
        t.Fatalf("listen: %v", err)
    }
    defer srv.Close()

    a := network.NewClient()
    defer a.Close()
    if _, err := a.Connect(context.Background(), "srv"); err != nil {
        t.Fatalf("first connect: %v", err)
    }

    b := network.NewClient()
    defer b.Close()
    if _, err := b.Connect(context.Background(), "srv"); err == nil {
        t.Fatalf("connect beyond capacity succeeded")
    }
}

// A client host has room for one connection; a second attempt must fail
// without leaving a half-registered peer or a stray connect on either side.
func TestClientHostCapacity(t *testing.T) {
    network := NewNetwork()
    srv, err := network.Listen("srv", 4)
    if err != nil {
        t.Fatalf("listen: %v", err)
    }
    defer srv.Close()

    cli := network.NewClient()
    defer cli.Close()
    if _, err := cli.Connect(context.Background(), "srv"); err != nil {
        t.Fatalf("first connect: %v", err)
    }
    if _, err := cli.Connect(context.Background(), "srv"); err == nil {
        t.Fatalf("second connect on a full client host succeeded")
    }

    service(t, cli, transport.EventConnect)
    service(t, srv, transport.EventConnect)
    if ev, ok := srv.Service(context.Background(), 50*time.Millisecond); ok {
        t.Fatalf("unexpected server event %v after rejected connect", ev.Type)
    }
    if ev, ok := cli.Service(context.Background(), 50*time.Millisecond); ok {
        t.Fatalf("unexpected client event %v after rejected connect", ev.Type)
    }
}

func TestDuplicateListener(t *testing.T) {
    network := NewNetwork()
    if _, err := network.Listen("srv", 1); err != nil {
        t.Fatalf("listen: %v", err)
    }
    if _, err := network.Listen("srv", 1); err == nil {
        t.Fatalf("duplicate listen succeeded")
    }
}
