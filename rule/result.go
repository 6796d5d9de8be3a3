package rule

import "time"

// RuleResult is the sidecar execution report for one (rule, file)
// evaluation. A rule's failure never aborts a batch: it produces a
// RuleResult with Error populated and Findings empty.
type RuleResult struct {
	RuleID   string
	FilePath string
	Findings []Finding
	Error    string
	Duration time.Duration
}

func errorResult(ruleID, filePath string, err error, elapsed time.Duration) RuleResult {
	return RuleResult{RuleID: ruleID, FilePath: filePath, Error: err.Error(), Duration: elapsed}
}
