package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// GatewayRequests counts proxied requests by outcome
	// (allowed, denied, method, upstream_error, non_json).
	GatewayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "victimfeed",
		Name:      "gateway_requests_total",
		Help:      "Proxied gateway requests by outcome",
	}, []string{"outcome"})

	// FetchResults counts orchestrated snapshot fetches by slot and result.
	FetchResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "victimfeed",
		Name:      "fetch_results_total",
		Help:      "Snapshot fetch slot outcomes",
	}, []string{"slot", "result"})

	// Dispatches counts notification dispatch attempts by result.
	Dispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "victimfeed",
		Name:      "notification_dispatches_total",
		Help:      "Notification dispatch attempts by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(GatewayRequests, FetchResults, Dispatches)
}
