package observability

import (
    "net/http"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline counters. `side` is "client" or "server".
var (
    EventsQueued = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "scarabnet_events_queued_total",
        Help: "Events pushed into the application queue, by type.",
    }, []string{"side", "type"})

    PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "scarabnet_packets_sent_total",
        Help: "Packets handed to the transport for delivery.",
    }, []string{"side"})

    BytesSent = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "scarabnet_bytes_sent_total",
        Help: "Serialized bytes handed to the transport.",
    }, []string{"side"})

    PacketsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "scarabnet_packets_received_total",
        Help: "Packets decoded from transport receive events.",
    }, []string{"side"})

    BytesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "scarabnet_bytes_received_total",
        Help: "Datagram bytes delivered by the transport.",
    }, []string{"side"})

    DecodeDrops = promauto.NewCounterVec(prometheus.CounterOpts{
        Name: "scarabnet_decode_drops_total",
        Help: "Received datagrams dropped as truncated during decode.",
    }, []string{"side"})
)

// MetricsHandler returns the prometheus scrape handler.
func MetricsHandler() http.Handler { return promhttp.Handler() }
