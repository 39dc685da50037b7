package purchasebills

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts workflow outcomes. A nil *Metrics records nothing.
type Metrics struct {
	lookups     *prometheus.CounterVec
	submissions *prometheus.CounterVec
	grnUpdates  *prometheus.CounterVec
}

// NewMetrics registers the workflow counters against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billdesk_price_lookups_total",
		Help: "Price lookups by outcome (found, miss, error, stale).",
	}, []string{"outcome"})
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billdesk_bill_submissions_total",
		Help: "Purchase bill submissions by outcome.",
	}, []string{"outcome"})
	grn := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billdesk_grn_updates_total",
		Help: "GRN updates by channel and outcome.",
	}, []string{"channel", "outcome"})
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerer.MustRegister(lookups, submissions, grn)
	return &Metrics{lookups: lookups, submissions: submissions, grnUpdates: grn}
}

func (m *Metrics) lookup(outcome string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) grn(channel Channel, outcome string) {
	if m == nil {
		return
	}
	m.grnUpdates.WithLabelValues(string(channel), outcome).Inc()
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
