package main

import (
    "flag"
    "fmt"
    "os"
    "time"

    "go.uber.org/zap"

    "github.com/vaaako/scarabnet/pkg/client"
    "github.com/vaaako/scarabnet/pkg/config"
    "github.com/vaaako/scarabnet/pkg/event"
    "github.com/vaaako/scarabnet/pkg/protocol"
    "github.com/vaaako/scarabnet/pkg/protocol/codec"
    "github.com/vaaako/scarabnet/pkg/transport"
)

// chatLine is the demo payload: the server echoes it back verbatim.
type chatLine struct {
    From string `json:"from"`
    Text string `json:"text"`
}

func main() {
    addr := flag.String("addr", "127.0.0.1:9000", "address to connect to")
    from := flag.String("from", "scarabnet-client", "sender name placed in the payload")
    msg := flag.String("message", "hello scarabnet", "message to send after connecting")
    encoding := flag.String("codec", "application/json", "payload encoding: application/json or application/cbor")
    id := flag.Uint("id", 1, "header id for the test packet")
    typ := flag.Uint("type", 1, "header type for the test packet")
    timeout := flag.Duration("timeout", 5*time.Second, "connect/reply timeout")
    flag.Parse()

    logger, _ := zap.NewDevelopment()
    zap.ReplaceGlobals(logger)
    defer func() { _ = logger.Sync() }()

    reg := codec.NewRegistry()
    cb, err := codec.CBOR()
    if err != nil {
        fatalf("cbor init: %v", err)
    }
    reg.Register(cb)
    c := reg.Get(*encoding)
    if c == nil {
        fatalf("unknown codec %q", *encoding)
    }

    cli, err := client.New(config.Default())
    if err != nil {
        fatalf("create client: %v", err)
    }
    defer func() { _ = cli.Close() }()

    cli.Connect(*addr)
    if !waitFor(cli, event.Connect, *timeout) {
        fatalf("no connect event within %v", *timeout)
    }

    pkt := protocol.New(uint32(*id), uint32(*typ), nil)
    if err := pkt.PutValue(c, chatLine{From: *from, Text: *msg}); err != nil {
        fatalf("encode payload: %v", err)
    }
    cli.Send(pkt, transport.Reliable)

    deadline := time.Now().Add(*timeout)
    for time.Now().Before(deadline) {
        ev, ok := cli.PollEvent()
        if !ok {
            time.Sleep(time.Millisecond)
            continue
        }
        switch ev.Type {
        case event.Receive:
            var line chatLine
            if err := ev.Packet.UnpackValue(c, &line); err != nil {
                fatalf("decode reply: %v", err)
            }
            fmt.Printf("reply from %s: %s (%s)\n", line.From, line.Text, ev.Packet)
            cli.Disconnect()
        case event.Disconnect:
            return
        }
    }
    fatalf("no reply within %v", *timeout)
}

func waitFor(cli *client.Client, want event.Type, timeout time.Duration) bool {
    deadline := time.Now().Add(timeout)
    for time.Now().Before(deadline) {
        if ev, ok := cli.PollEvent(); ok && ev.Type == want {
            return true
        }
        time.Sleep(time.Millisecond)
    }
    return false
}

func fatalf(format string, args ...any) {
    fmt.Fprintf(os.Stderr, format+"\n", args...)
    os.Exit(1)
}
