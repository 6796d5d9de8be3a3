package output

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// JSONFormatter formats enriched findings as JSON.
type JSONFormatter struct {
	writer  io.Writer
	options *OutputOptions
}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter(opts *OutputOptions) *JSONFormatter {
	if opts == nil {
		opts = NewDefaultOptions()
	}
	return &JSONFormatter{
		writer:  os.Stdout,
		options: opts,
	}
}

// NewJSONFormatterWithWriter creates a formatter with custom writer (for testing).
func NewJSONFormatterWithWriter(w io.Writer, opts *OutputOptions) *JSONFormatter {
	jf := NewJSONFormatter(opts)
	jf.writer = w
	return jf
}

// JSONOutput represents the complete JSON output structure.
type JSONOutput struct {
	Tool    JSONTool     `json:"tool"`
	Scan    JSONScan     `json:"scan"`
	Results []JSONResult `json:"results"`
	Summary JSONSummary  `json:"summary"`
	Errors  []string     `json:"errors,omitempty"`
}

// JSONTool contains tool metadata.
type JSONTool struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// JSONScan contains scan metadata.
type JSONScan struct {
	Target        string  `json:"target"`
	Timestamp     string  `json:"timestamp"`
	Duration      float64 `json:"duration"`
	RulesExecuted int     `json:"rules_executed"`
}

// JSONResult represents a single finding.
type JSONResult struct {
	RuleID     string        `json:"rule_id"`
	Message    string        `json:"message"`
	Severity   string        `json:"severity"`
	Confidence string        `json:"confidence"`
	Location   JSONLocation  `json:"location"`
	Detection  JSONDetection `json:"detection"`
	Metadata   JSONMetadata  `json:"metadata"`
}

// JSONLocation contains finding location.
type JSONLocation struct {
	File    string       `json:"file"`
	Line    int          `json:"line"`
	Column  int          `json:"column,omitempty"`
	Snippet *JSONSnippet `json:"snippet,omitempty"`
}

// JSONSnippet contains code context.
type JSONSnippet struct {
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Lines     []string `json:"lines"`
}

// JSONDetection contains detection method info.
type JSONDetection struct {
	Type            string   `json:"type"`
	ConfidenceScore float64  `json:"confidence_score"`
	VulnTypes       []string `json:"vulnerability_types,omitempty"`
	SourceLocation  string   `json:"source_location,omitempty"`
}

// JSONMetadata contains rule metadata.
type JSONMetadata struct {
	CWE        []string `json:"cwe,omitempty"`
	OWASP      []string `json:"owasp,omitempty"`
	References []string `json:"references,omitempty"`
}

// JSONSummary contains aggregated statistics.
type JSONSummary struct {
	Total           int            `json:"total"`
	BySeverity      map[string]int `json:"by_severity"`
	ByDetectionType map[string]int `json:"by_detection_type"`
}

// ScanInfo contains metadata about the scan.
type ScanInfo struct {
	Target        string
	Version       string
	Duration      time.Duration
	RulesExecuted int
	Errors        []string
}

// Format outputs all findings as JSON.
func (f *JSONFormatter) Format(findings []EnrichedFinding, summary *Summary, scanInfo ScanInfo) error {
	output := f.buildOutput(findings, summary, scanInfo)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func (f *JSONFormatter) buildOutput(findings []EnrichedFinding, summary *Summary, scanInfo ScanInfo) JSONOutput {
	version := scanInfo.Version
	if version == "" {
		version = "unknown"
	}

	return JSONOutput{
		Tool: JSONTool{
			Name:    "Sastcore",
			Version: version,
			URL:     "https://github.com/codalyze/sastcore",
		},
		Scan: JSONScan{
			Target:        scanInfo.Target,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			Duration:      scanInfo.Duration.Seconds(),
			RulesExecuted: scanInfo.RulesExecuted,
		},
		Results: f.buildResults(findings),
		Summary: JSONSummary{
			Total:           summary.TotalFindings,
			BySeverity:      summary.BySeverity,
			ByDetectionType: summary.ByDetectionType,
		},
		Errors: scanInfo.Errors,
	}
}

func (f *JSONFormatter) buildResults(findings []EnrichedFinding) []JSONResult {
	results := make([]JSONResult, 0, len(findings))

	for _, ef := range findings {
		results = append(results, JSONResult{
			RuleID:     ef.Finding.RuleID,
			Message:    ef.Finding.Message,
			Severity:   string(ef.Finding.Severity),
			Confidence: string(ef.Finding.Confidence),
			Location:   f.buildLocation(ef),
			Detection:  f.buildDetection(ef),
			Metadata:   f.buildMetadata(ef),
		})
	}

	return results
}

func (f *JSONFormatter) buildLocation(ef EnrichedFinding) JSONLocation {
	loc := JSONLocation{
		File:   ef.RelPath,
		Line:   ef.Finding.Location.StartLine,
		Column: ef.Finding.Location.StartColumn,
	}
	if loc.File == "" {
		loc.File = ef.Finding.Location.File
	}

	if len(ef.Snippet.Lines) > 0 {
		lines := make([]string, len(ef.Snippet.Lines))
		for i, sl := range ef.Snippet.Lines {
			lines[i] = sl.Content
		}
		loc.Snippet = &JSONSnippet{
			StartLine: ef.Snippet.StartLine,
			EndLine:   ef.Snippet.StartLine + len(ef.Snippet.Lines) - 1,
			Lines:     lines,
		}
	}

	return loc
}

func (f *JSONFormatter) buildDetection(ef EnrichedFinding) JSONDetection {
	detection := JSONDetection{
		Type:            detectionType(ef),
		ConfidenceScore: confidenceScore(ef),
	}

	if detection.Type == "dataflow" {
		detection.VulnTypes = metaList(ef, "vulnerability_types")
		detection.SourceLocation = ef.Finding.Metadata["source_location"]
	}

	return detection
}

func (f *JSONFormatter) buildMetadata(ef EnrichedFinding) JSONMetadata {
	return JSONMetadata{
		CWE:        metaList(ef, "cwe"),
		OWASP:      metaList(ef, "owasp"),
		References: metaList(ef, "references"),
	}
}
