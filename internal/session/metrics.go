package session

import "github.com/prometheus/client_golang/prometheus"

var (
	loginSuccess = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gohome_session_login_success_total",
			Help: "Successful vendor logins",
		},
		[]string{"provider"},
	)
	loginFailure = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gohome_session_login_failure_total",
			Help: "Failed vendor logins",
		},
		[]string{"provider"},
	)
	tokenValid = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gohome_session_token_valid",
			Help: "Session token validity (1=valid, 0=invalid)",
		},
		[]string{"provider"},
	)
	remotePersistOK = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gohome_session_remote_persist_ok",
			Help: "Remote blob persistence health (1=ok, 0=error)",
		},
		[]string{"provider"},
	)
)

// MetricsCollectors returns collectors for the shared session module.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		loginSuccess,
		loginFailure,
		tokenValid,
		remotePersistOK,
	}
}
