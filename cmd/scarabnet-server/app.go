package main

import (
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "github.com/vaaako/scarabnet/pkg/config"
    "github.com/vaaako/scarabnet/pkg/event"
    "github.com/vaaako/scarabnet/pkg/observability"
    "github.com/vaaako/scarabnet/pkg/server"
    "github.com/vaaako/scarabnet/pkg/transport"
)

// run is the main entry point after CLI parsing. The demo server echoes
// every received packet back to its sender.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }
    if opts.Listen != "" {
        cfg.Server.Listen = opts.Listen
    }

    logger, err := observability.SetupLogger(cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()

    zap.L().Info("scarabnet-server started", zap.String("app", cfg.AppName))

    srv, err := server.New(cfg)
    if err != nil {
        zap.L().Error("failed to create server", zap.Error(err))
        return 1
    }
    defer func() { _ = srv.Close() }()

    if cfg.Metrics.Enable {
        go func() {
            mux := http.NewServeMux()
            mux.Handle("/metrics", observability.MetricsHandler())
            zap.L().Info("metrics endpoint up", zap.String("listen", cfg.Metrics.Listen))
            if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
                zap.L().Warn("metrics endpoint failed", zap.Error(err))
            }
        }()
    }

    srv.Start()

    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

    ticker := time.NewTicker(time.Millisecond)
    defer ticker.Stop()
    for {
        select {
        case sig := <-sigCh:
            zap.L().Info("shutting down", zap.String("signal", sig.String()))
            srv.Stop()
            return 0
        case <-ticker.C:
            for {
                ev, ok := srv.PollEvent()
                if !ok {
                    break
                }
                switch ev.Type {
                case event.Connect:
                    zap.L().Info("client joined", zap.Uint32("client", ev.PeerID))
                case event.Disconnect:
                    zap.L().Info("client left", zap.Uint32("client", ev.PeerID))
                case event.Receive:
                    srv.Send(ev.PeerID, ev.Packet, transport.Reliable)
                }
            }
        }
    }
}
