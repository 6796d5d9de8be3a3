package output

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
)

// CSVFormatter formats enriched findings as CSV.
type CSVFormatter struct {
	writer  io.Writer
	options *OutputOptions
}

// NewCSVFormatter creates a CSV formatter.
func NewCSVFormatter(opts *OutputOptions) *CSVFormatter {
	if opts == nil {
		opts = NewDefaultOptions()
	}
	return &CSVFormatter{
		writer:  os.Stdout,
		options: opts,
	}
}

// NewCSVFormatterWithWriter creates a formatter with custom writer (for testing).
func NewCSVFormatterWithWriter(w io.Writer, opts *OutputOptions) *CSVFormatter {
	cf := NewCSVFormatter(opts)
	cf.writer = w
	return cf
}

// CSVHeaders returns the CSV column headers.
func CSVHeaders() []string {
	return []string{
		"severity",
		"confidence",
		"rule_id",
		"cwe",
		"owasp",
		"file",
		"line",
		"column",
		"message",
		"detection_type",
		"confidence_score",
		"vulnerability_types",
	}
}

// Format outputs all findings as CSV.
func (f *CSVFormatter) Format(findings []EnrichedFinding) error {
	w := csv.NewWriter(f.writer)
	defer w.Flush()

	if err := w.Write(CSVHeaders()); err != nil {
		return err
	}

	for _, ef := range findings {
		if err := w.Write(f.buildRow(ef)); err != nil {
			return err
		}
	}

	return w.Error()
}

func (f *CSVFormatter) buildRow(ef EnrichedFinding) []string {
	file := ef.RelPath
	if file == "" {
		file = ef.Finding.Location.File
	}

	cwe := ""
	if list := metaList(ef, "cwe"); len(list) > 0 {
		cwe = list[0]
	}
	owasp := ""
	if list := metaList(ef, "owasp"); len(list) > 0 {
		owasp = list[0]
	}

	score := ""
	if s := confidenceScore(ef); s > 0 {
		score = strconv.FormatFloat(s, 'f', 2, 64)
	}

	return []string{
		string(ef.Finding.Severity),
		string(ef.Finding.Confidence),
		ef.Finding.RuleID,
		cwe,
		owasp,
		file,
		intToString(ef.Finding.Location.StartLine),
		intToString(ef.Finding.Location.StartColumn),
		ef.Finding.Message,
		detectionType(ef),
		score,
		ef.Finding.Metadata["vulnerability_types"],
	}
}

func intToString(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}
