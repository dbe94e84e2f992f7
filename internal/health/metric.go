package health

import "fmt"

// MetricState classifies a metric for display and gating.
type MetricState string

const (
	// MetricNoReceivers means the show references no receivers, so there is nothing
	// to count. It is never rendered as 0/0.
	MetricNoReceivers MetricState = "no_receivers"
	MetricIncomplete  MetricState = "incomplete"
	MetricComplete    MetricState = "complete"
	// MetricError is an incomplete metric that gates the show, e.g. continuity when
	// the protocol requires it.
	MetricError MetricState = "error"
)

// Metric is a (current, total) count.
type Metric struct {
	Current int         `json:"current"`
	Total   int         `json:"total"`
	State   MetricState `json:"state"`
}

func newMetric(current, total int, noReceivers, required bool) Metric {
	m := Metric{Current: current, Total: total}
	switch {
	case noReceivers:
		m.State = MetricNoReceivers
	case total > 0 && current == total:
		m.State = MetricComplete
	case required:
		m.State = MetricError
	default:
		m.State = MetricIncomplete
	}
	return m
}

// Complete reports whether every counted element passed.
func (m Metric) Complete() bool {
	return m.State == MetricComplete
}

// Percent returns current/total as a percentage. The boolean is false when there is
// nothing to count.
func (m Metric) Percent() (float64, bool) {
	if m.State == MetricNoReceivers || m.Total == 0 {
		return 0, false
	}
	return float64(m.Current) * 100 / float64(m.Total), true
}

func (m Metric) String() string {
	if m.State == MetricNoReceivers {
		return "no receivers"
	}
	return fmt.Sprintf("%d/%d", m.Current, m.Total)
}
