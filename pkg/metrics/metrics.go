package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Map lifecycle metrics
	MapRebuildsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "atlas_map_rebuilds_total",
			Help: "Total number of signed network map rebuilds",
		},
	)

	NodePublishesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "atlas_node_publishes_total",
			Help: "Total number of accepted node info publishes",
		},
	)

	PublishRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_publish_rejections_total",
			Help: "Total number of rejected node info publishes by reason",
		},
		[]string{"reason"},
	)

	ParameterUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "atlas_parameter_updates_total",
			Help: "Total number of network parameter updates",
		},
	)

	ParameterActivationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "atlas_parameter_activations_total",
			Help: "Total number of scheduled parameter activations applied",
		},
	)

	// State gauges
	NodesInMap = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "atlas_map_nodes",
			Help: "Number of node info hashes in the latest signed map",
		},
	)

	CurrentEpoch = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "atlas_parameters_epoch",
			Help: "Epoch of the current network parameters",
		},
	)

	PendingUpdate = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "atlas_parameters_update_pending",
			Help: "1 when a parameters update is scheduled, 0 otherwise",
		},
	)

	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlas_http_requests_total",
			Help: "Total HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atlas_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		MapRebuildsTotal,
		NodePublishesTotal,
		PublishRejectionsTotal,
		ParameterUpdatesTotal,
		ParameterActivationsTotal,
		NodesInMap,
		CurrentEpoch,
		PendingUpdate,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
