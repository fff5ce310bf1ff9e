package domain

import "time"

// RawRecord is one (ad, day) row exactly as decoded from the insights API.
// Values may be scalars, numbers encoded as strings, nulls, nested
// action-breakdown lists, or string-encoded versions of those lists.
type RawRecord map[string]any

// ActionBreakdownFields are the raw fields holding per-action-type
// breakdown lists that the flattener expands into scalar columns.
var ActionBreakdownFields = []string{"actions", "action_values", "cost_per_action_type"}

// Row is a normalized (ad, day) record. Every cell is either a float64
// metric or a string text value; absence resolves to 0 / "" through the
// accessors, so nothing downstream branches on missing values.
type Row struct {
	DateStart time.Time
	DateStop  time.Time
	Text      map[string]string
	Metrics   map[string]float64
}

func NewRow() Row {
	return Row{
		Text:    make(map[string]string),
		Metrics: make(map[string]float64),
	}
}

// Metric returns the named metric, 0 when absent.
func (r Row) Metric(name string) float64 {
	return r.Metrics[name]
}

// HasMetric reports whether the row carries the named metric column.
func (r Row) HasMetric(name string) bool {
	_, ok := r.Metrics[name]
	return ok
}

// TextValue returns the named text cell, "" when absent.
func (r Row) TextValue(name string) string {
	return r.Text[name]
}

// Clone returns a deep copy so output tables never alias pipeline input.
func (r Row) Clone() Row {
	out := Row{
		DateStart: r.DateStart,
		DateStop:  r.DateStop,
		Text:      make(map[string]string, len(r.Text)),
		Metrics:   make(map[string]float64, len(r.Metrics)),
	}
	for k, v := range r.Text {
		out.Text[k] = v
	}
	for k, v := range r.Metrics {
		out.Metrics[k] = v
	}
	return out
}
