package diagnostic

import "time"

// Metrics aggregates an ExecutionReport's entries into scan-wide totals,
// the same confusion-matrix-style rollup the teacher's diagnostic package
// computed over LLM-vs-tool comparisons, here over rule-execution outcomes.
type Metrics struct {
	TotalExecutions int
	Succeeded       int
	Errored         int
	TimedOut        int
	TotalFindings   int
	TotalDuration   time.Duration

	// FailuresByRule counts non-OK entries per rule id, so the rule
	// responsible for the most failures surfaces first in a console report.
	FailuresByRule map[string]int
}

// CalculateMetrics aggregates report's entries.
func CalculateMetrics(report *ExecutionReport) *Metrics {
	m := &Metrics{FailuresByRule: map[string]int{}}
	if report == nil {
		return m
	}
	m.TotalExecutions = len(report.Entries)
	for _, e := range report.Entries {
		m.TotalFindings += e.FindingCount
		m.TotalDuration += e.Duration
		switch e.Status {
		case StatusOK:
			m.Succeeded++
		case StatusTimeout:
			m.TimedOut++
			m.FailuresByRule[e.RuleID]++
		case StatusError:
			m.Errored++
			m.FailuresByRule[e.RuleID]++
		}
	}
	return m
}
