package diagnostic

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// GenerateConsoleReport prints a human-readable execution report summary.
func GenerateConsoleReport(w io.Writer, report *ExecutionReport) {
	metrics := CalculateMetrics(report)

	fmt.Fprintln(w, "===============================================================================")
	fmt.Fprintln(w, "                         RULE EXECUTION REPORT")
	fmt.Fprintln(w, "===============================================================================")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Executions: %d\n", metrics.TotalExecutions)
	fmt.Fprintf(w, "Succeeded:  %d\n", metrics.Succeeded)
	fmt.Fprintf(w, "Errored:    %d\n", metrics.Errored)
	fmt.Fprintf(w, "Timed out:  %d\n", metrics.TimedOut)
	fmt.Fprintf(w, "Findings:   %d\n", metrics.TotalFindings)
	fmt.Fprintf(w, "Duration:   %s\n", metrics.TotalDuration)
	fmt.Fprintln(w)

	if len(metrics.FailuresByRule) == 0 {
		fmt.Fprintln(w, "===============================================================================")
		return
	}

	fmt.Fprintln(w, "-------------------------------------------------------------------------------")
	fmt.Fprintln(w, "RULES WITH FAILURES")
	fmt.Fprintln(w, "-------------------------------------------------------------------------------")

	type ruleCount struct {
		ruleID string
		count  int
	}
	ordered := make([]ruleCount, 0, len(metrics.FailuresByRule))
	for id, count := range metrics.FailuresByRule {
		ordered = append(ordered, ruleCount{id, count})
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].count != ordered[j].count {
			return ordered[i].count > ordered[j].count
		}
		return ordered[i].ruleID < ordered[j].ruleID
	})
	for i, rc := range ordered {
		marker := ""
		if i == 0 {
			marker = " <- most failures"
		}
		fmt.Fprintf(w, "  %-30s %d failure(s)%s\n", rc.ruleID, rc.count, marker)
	}
	fmt.Fprintln(w)

	for _, e := range report.Entries {
		if e.Status == StatusOK {
			continue
		}
		fmt.Fprintf(w, "  [%s] %s on %s: %s\n", e.Status, e.RuleID, e.FilePath, e.Error)
	}
	fmt.Fprintln(w, "===============================================================================")
}

// WriteJSONReport writes report as indented JSON to path.
func WriteJSONReport(report *ExecutionReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("diagnostic: marshal execution report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("diagnostic: write execution report: %w", err)
	}
	return nil
}
