package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var wsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "ws_connections_active",
		Help: "Currently open websocket connections",
	},
)

func WSConnected()    { wsActive.Inc() }
func WSDisconnected() { wsActive.Dec() }
