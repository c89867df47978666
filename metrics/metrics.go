// Package metrics exposes game counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mininggame"

// Recorder holds the game's Prometheus collectors. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	moves       *prometheus.CounterVec
	collected   *prometheus.CounterVec
	credits     prometheus.Counter
	purchases   *prometheus.CounterVec
	sales       *prometheus.CounterVec
	portalUses  prometheus.Counter
	robotEvents *prometheus.CounterVec
	sessions    prometheus.Gauge
}

// NewRecorder creates the collectors and registers them on reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moves_total",
			Help:      "Move requests by result.",
		}, []string{"result"}),
		collected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_collected_total",
			Help:      "Elements collected by type.",
		}, []string{"type"}),
		credits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credits_total",
			Help:      "Money deposited from collected elements.",
		}),
		purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shop_purchases_total",
			Help:      "Completed shop purchases by item.",
		}, []string{"item"}),
		sales: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shop_sales_total",
			Help:      "Items sold back to the shop.",
		}, []string{"item"}),
		portalUses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "portal_uses_total",
			Help:      "Portal teleports.",
		}),
		robotEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "robot_events_total",
			Help:      "Robot change events forwarded to viewers, by kind.",
		}, []string{"kind"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}),
	}
	reg.MustRegister(r.moves, r.collected, r.credits, r.purchases, r.sales, r.portalUses, r.robotEvents, r.sessions)
	return r
}

// Move counts a move attempt. Rejected moves are labeled by reason.
func (r *Recorder) Move(allowed bool, reason string) {
	if r == nil {
		return
	}
	result := "ok"
	if !allowed {
		result = reason
	}
	r.moves.WithLabelValues(result).Inc()
}

// Collected counts a collected element and its credit
func (r *Recorder) Collected(elementType string, price int) {
	if r == nil {
		return
	}
	r.collected.WithLabelValues(elementType).Inc()
	r.credits.Add(float64(price))
}

// Purchase counts a shop purchase
func (r *Recorder) Purchase(item string) {
	if r == nil {
		return
	}
	r.purchases.WithLabelValues(item).Inc()
}

// Sale counts an item sold back to the shop
func (r *Recorder) Sale(item string) {
	if r == nil {
		return
	}
	r.sales.WithLabelValues(item).Inc()
}

// PortalUsed counts a portal teleport
func (r *Recorder) PortalUsed() {
	if r == nil {
		return
	}
	r.portalUses.Inc()
}

// RobotEvent counts a forwarded robot event
func (r *Recorder) RobotEvent(kind string) {
	if r == nil {
		return
	}
	r.robotEvents.WithLabelValues(kind).Inc()
}

// SetActiveSessions reports the number of sessions in memory
func (r *Recorder) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.sessions.Set(float64(n))
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
