// Package metrics expone contadores Prometheus de autenticacion.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder es lo que consumen casos de uso y workers.
type Recorder interface {
	LoginSucceeded(method string)
	LoginFailed(method, reason string)
	SessionIssued(method string)
	SessionValidated(result string)
	SessionsSwept(count int64)
	AuditFailed(action string)
}

// Collector implementa Recorder sobre Prometheus.
type Collector struct {
	logins      *prometheus.CounterVec
	issued      *prometheus.CounterVec
	validations *prometheus.CounterVec
	swept       prometheus.Counter
	auditFails  *prometheus.CounterVec
}

// NewCollector crea el Collector y registra sus metricas en reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authsuite_logins_total",
			Help: "Intentos de login por metodo y resultado.",
		}, []string{"method", "result"}),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authsuite_sessions_issued_total",
			Help: "Sesiones emitidas por metodo de autenticacion.",
		}, []string{"method"}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authsuite_session_validations_total",
			Help: "Validaciones de sesion por resultado.",
		}, []string{"result"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authsuite_sessions_swept_total",
			Help: "Sesiones vencidas eliminadas por el barrido periodico.",
		}),
		auditFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authsuite_audit_failures_total",
			Help: "Eventos de auditoria que no pudieron persistirse.",
		}, []string{"action"}),
	}

	reg.MustRegister(c.logins, c.issued, c.validations, c.swept, c.auditFails)
	return c
}

func (c *Collector) LoginSucceeded(method string) {
	c.logins.WithLabelValues(method, "success").Inc()
}

// LoginFailed registra un fallo; reason no se usa como label para acotar cardinalidad.
func (c *Collector) LoginFailed(method, _ string) {
	c.logins.WithLabelValues(method, "failure").Inc()
}

func (c *Collector) SessionIssued(method string) {
	c.issued.WithLabelValues(method).Inc()
}

func (c *Collector) SessionValidated(result string) {
	c.validations.WithLabelValues(result).Inc()
}

func (c *Collector) SessionsSwept(count int64) {
	if count > 0 {
		c.swept.Add(float64(count))
	}
}

func (c *Collector) AuditFailed(action string) {
	c.auditFails.WithLabelValues(action).Inc()
}

// Handler devuelve el handler de scrape para gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop descarta todo; util en tests.
type Nop struct{}

func (Nop) LoginSucceeded(string)      {}
func (Nop) LoginFailed(string, string) {}
func (Nop) SessionIssued(string)       {}
func (Nop) SessionValidated(string)    {}
func (Nop) SessionsSwept(int64)        {}
func (Nop) AuditFailed(string)         {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
