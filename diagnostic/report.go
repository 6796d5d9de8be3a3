// Package diagnostic builds the rule execution report sidecar spec §7
// requires: a record of every rule attempted during a scan and whether it
// succeeded, errored, or timed out, independent of the findings collection
// itself (which stays well-formed even when individual rules fail).
package diagnostic

import (
	"time"

	"github.com/codalyze/sastcore/rule"
)

// Status is the outcome of one rule execution against one file.
type Status string

const (
	StatusOK      Status = "ok"
	StatusError   Status = "error"
	StatusTimeout Status = "timeout"
)

// timeoutMessage is the exact error text rule.Engine reports when a rule
// observes its deadline (spec §5); it distinguishes a timeout from any
// other rule failure in the sidecar.
const timeoutMessage = "Rule execution timeout"

// RuleReportEntry is one attempted (rule, file) execution.
type RuleReportEntry struct {
	RuleID       string
	FilePath     string
	Status       Status
	Error        string
	Duration     time.Duration
	FindingCount int
}

// ExecutionReport is the sidecar for one scan: one entry per rule attempted
// against one file, regardless of outcome.
type ExecutionReport struct {
	Entries []RuleReportEntry
}

// Record appends one rule.RuleResult as a report entry, classifying its
// status from the error string rule.Engine populates.
func (r *ExecutionReport) Record(result rule.RuleResult) {
	entry := RuleReportEntry{
		RuleID:       result.RuleID,
		FilePath:     result.FilePath,
		Error:        result.Error,
		Duration:     result.Duration,
		FindingCount: len(result.Findings),
		Status:       StatusOK,
	}
	switch {
	case result.Error == timeoutMessage:
		entry.Status = StatusTimeout
	case result.Error != "":
		entry.Status = StatusError
	}
	r.Entries = append(r.Entries, entry)
}

// NewExecutionReport builds a report from a batch of already-collected
// rule results, for callers (tests, offline tooling) that have the full
// batch up front rather than recording incrementally during a scan.
func NewExecutionReport(results []rule.RuleResult) *ExecutionReport {
	report := &ExecutionReport{}
	for _, result := range results {
		report.Record(result)
	}
	return report
}

// Failed reports whether any entry did not succeed.
func (r *ExecutionReport) Failed() bool {
	for _, e := range r.Entries {
		if e.Status != StatusOK {
			return true
		}
	}
	return false
}
