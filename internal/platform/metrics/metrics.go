package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the portal.
type Metrics struct {
	TenantsOnboarded   prometheus.Counter
	AdminLogins        *prometheus.CounterVec
	UserLogins         *prometheus.CounterVec
	ChallengeAccepts   *prometheus.CounterVec
	ChallengeRejects   *prometheus.CounterVec
	UpstreamErrors     prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		TenantsOnboarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ssoportal_tenants_onboarded_total",
			Help: "Total number of tenants onboarded",
		}),
		AdminLogins: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ssoportal_admin_logins_total",
			Help: "Admin login attempts by outcome",
		}, []string{"outcome"}),
		UserLogins: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ssoportal_user_logins_total",
			Help: "End-user login attempts by outcome",
		}, []string{"outcome"}),
		ChallengeAccepts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ssoportal_challenge_accepts_total",
			Help: "Accepted provider challenges by flow",
		}, []string{"flow"}),
		ChallengeRejects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ssoportal_challenge_rejects_total",
			Help: "Rejected provider challenges by flow",
		}, []string{"flow"}),
		UpstreamErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ssoportal_upstream_errors_total",
			Help: "Failed calls to the OAuth provider admin API",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ssoportal_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// NewForTest creates metrics on a private registry so parallel tests don't
// collide on promauto's default registerer.
func NewForTest() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		TenantsOnboarded: factory.NewCounter(prometheus.CounterOpts{Name: "ssoportal_tenants_onboarded_total"}),
		AdminLogins:      factory.NewCounterVec(prometheus.CounterOpts{Name: "ssoportal_admin_logins_total"}, []string{"outcome"}),
		UserLogins:       factory.NewCounterVec(prometheus.CounterOpts{Name: "ssoportal_user_logins_total"}, []string{"outcome"}),
		ChallengeAccepts: factory.NewCounterVec(prometheus.CounterOpts{Name: "ssoportal_challenge_accepts_total"}, []string{"flow"}),
		ChallengeRejects: factory.NewCounterVec(prometheus.CounterOpts{Name: "ssoportal_challenge_rejects_total"}, []string{"flow"}),
		UpstreamErrors:   factory.NewCounter(prometheus.CounterOpts{Name: "ssoportal_upstream_errors_total"}),
		RequestDuration:  factory.NewHistogramVec(prometheus.HistogramOpts{Name: "ssoportal_request_duration_seconds"}, []string{"route", "method"}),
	}
}
