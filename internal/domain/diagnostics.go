package domain

import "time"

// DiagnosticStatus indicates the outcome of one environment check.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusWarn DiagnosticStatus = "warn"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is one check result. Fixable items can be passed to the
// install-or-fix action.
type DiagnosticItem struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
	Fixable bool             `json:"fixable,omitempty"`
}

// DiagnosticReport aggregates checks for the desktop, web and CLI front ends.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// Item returns the check with the given id.
func (r DiagnosticReport) Item(id string) (DiagnosticItem, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return DiagnosticItem{}, false
}
