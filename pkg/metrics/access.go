package metrics

import "github.com/prometheus/client_golang/prometheus"

// AccessMetrics counts route guard outcomes.
type AccessMetrics struct {
	decisions *prometheus.CounterVec
}

// NewAccessMetrics registers the guard decision counter on reg. A nil
// registerer yields a no-op recorder.
func NewAccessMetrics(reg prometheus.Registerer) *AccessMetrics {
	if reg == nil {
		return &AccessMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_access_decisions_total",
		Help: "Route guard decisions by outcome and reason.",
	}, []string{"decision", "reason"})
	reg.MustRegister(decisions)
	return &AccessMetrics{decisions: decisions}
}

// IncDecision records a resolved guard decision.
func (a *AccessMetrics) IncDecision(decision, reason string) {
	if a == nil || a.decisions == nil {
		return
	}
	a.decisions.WithLabelValues(decision, normalizeLabel(reason)).Inc()
}

// WishlistMetrics counts server mirror outcomes for wishlist toggles.
type WishlistMetrics struct {
	mirror *prometheus.CounterVec
}

// NewWishlistMetrics registers the wishlist mirror counter on reg.
func NewWishlistMetrics(reg prometheus.Registerer) *WishlistMetrics {
	if reg == nil {
		return &WishlistMetrics{}
	}
	mirror := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_wishlist_mirror_total",
		Help: "Wishlist mirror writes by result (ok, queued, replayed).",
	}, []string{"result"})
	reg.MustRegister(mirror)
	return &WishlistMetrics{mirror: mirror}
}

// IncMirror records a mirror write result.
func (w *WishlistMetrics) IncMirror(result string) {
	if w == nil || w.mirror == nil {
		return
	}
	w.mirror.WithLabelValues(normalizeLabel(result)).Inc()
}
