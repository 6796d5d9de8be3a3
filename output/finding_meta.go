package output

import (
	"strconv"
	"strings"
)

// detectionType classifies a finding as "pattern" or "dataflow" from the
// metadata the rule engine stamps on flow-derived findings
// (rule.Engine.buildFlowFinding sets metadata["analysis_type"]).
func detectionType(f EnrichedFinding) string {
	if f.Finding.Metadata["analysis_type"] == "dataflow" {
		return "dataflow"
	}
	return "pattern"
}

// metaList splits a comma-separated metadata value (e.g. a rule's
// "cwe"/"owasp" key) into its components. Absent keys yield nil.
func metaList(f EnrichedFinding, key string) []string {
	v := f.Finding.Metadata[key]
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// confidenceScore returns the dataflow runner's numeric confidence
// (0-100, set in metadata["confidence_score"]) as a fraction in [0,1],
// or 0 for pattern findings that carry no numeric score.
func confidenceScore(f EnrichedFinding) float64 {
	v := f.Finding.Metadata["confidence_score"]
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return float64(n) / 100
}
