package config

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gauges keep the last observed bitrate per flow so a scrape during a
	// long run always sees the most recent measurement.
	BitrateTxGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tft",
		Name:      "bitrate_tx_gbps",
		Help:      "Transmit bitrate of the last finished flow in Gbps",
	}, []string{"suite", "test_case", "test_type", "reverse"})
	BitrateRxGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "tft",
		Name:      "bitrate_rx_gbps",
		Help:      "Receive bitrate of the last finished flow in Gbps",
	}, []string{"suite", "test_case", "test_type", "reverse"})

	// Every flow counts exactly once, so failures stay visible even after
	// the bitrate gauges move on.
	FlowStatusCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tft",
		Name:      "flow_status_counter",
		Help:      "Count of finished flows grouped by outcome",
	}, []string{"suite", "test_case", "test_type", "status"})

	RunDurationSummary = promauto.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  "tft",
		Name:       "run_duration_seconds",
		Help:       "Percentile wall-clock duration of a single flow run",
		Objectives: map[float64]float64{0.9: 0.01, 0.99: 0.001},
	}, []string{"suite", "test_type"})
)
