package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OAuth-related Prometheus metrics. Defined in a standalone package to avoid
// import cycles between the protocol core and HTTP packages.

var (
	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_tokens_issued_total",
		Help: "Access tokens issued, by grant type",
	}, []string{"grant_type"})

	GrantFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_grant_failures_total",
		Help: "Refused token requests, by grant type and error code",
	}, []string{"grant_type", "error"})

	TokenRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "oauth_token_request_duration_ms",
		Help:    "Token endpoint latency in milliseconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	ResourceRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oauth_resource_requests_total",
		Help: "Protected resource requests, by outcome",
	}, []string{"outcome"})
)

// Register registers the oauth metrics on the given registry (or default if nil).
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	collectors := []prometheus.Collector{
		TokensIssued,
		GrantFailures,
		TokenRequestDuration,
		ResourceRequests,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
