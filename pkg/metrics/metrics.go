package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts records password logins by result (success|invalid|unverified|error).
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_auth_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"},
	)

	// Registrations counts registration and verification steps by stage and result.
	Registrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_auth_registrations_total",
			Help: "Total number of registration flow steps",
		},
		[]string{"stage", "result"},
	)

	// Rotations counts access token rotations by result.
	Rotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_auth_token_rotations_total",
			Help: "Total number of access token rotations",
		},
		[]string{"result"},
	)

	// GuardDecisions counts interceptor outcomes (pass|rotated|denied reason).
	GuardDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_auth_guard_decisions_total",
			Help: "Total number of guarded operation checks",
		},
		[]string{"role", "outcome"},
	)

	// CleanupRemoved counts rows purged by the maintenance job.
	CleanupRemoved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shop_auth_cleanup_removed_total",
			Help: "Rows removed by scheduled cleanup",
		},
		[]string{"kind"},
	)
)
