package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mallkit/passport/internal/core/port"
)

// Metrics exposes authentication counters to Prometheus. It implements
// port.MetricsSink so usecases stay decoupled from the metrics product.
type Metrics struct {
	loginAttempts *prometheus.CounterVec
	codesSent     *prometheus.CounterVec
	qrcodePolls   *prometheus.CounterVec
}

// NewMetrics registers the counters with the provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passport",
			Name:      "login_attempts_total",
			Help:      "Login attempts by user type, method, and outcome.",
		}, []string{"user_type", "method", "outcome"}),
		codesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passport",
			Name:      "verification_codes_sent_total",
			Help:      "Verification codes dispatched by user type.",
		}, []string{"user_type"}),
		qrcodePolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "passport",
			Name:      "qrcode_polls_total",
			Help:      "QR-code login state polls by observed state.",
		}, []string{"state"}),
	}
}

func (m *Metrics) LoginAttempt(userType, method, outcome string) {
	m.loginAttempts.WithLabelValues(userType, method, outcome).Inc()
}

func (m *Metrics) CodeSent(userType string) {
	m.codesSent.WithLabelValues(userType).Inc()
}

func (m *Metrics) QrcodePoll(state string) {
	m.qrcodePolls.WithLabelValues(state).Inc()
}

var _ port.MetricsSink = (*Metrics)(nil)

// NopSink discards all counters. Used in tests and as a default.
type NopSink struct{}

func (NopSink) LoginAttempt(string, string, string) {}
func (NopSink) CodeSent(string)                     {}
func (NopSink) QrcodePoll(string)                   {}

var _ port.MetricsSink = NopSink{}
