package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/codalyze/sastcore/rule"
)

// TextFormatter formats enriched findings as human-readable text.
type TextFormatter struct {
	writer  io.Writer
	options *OutputOptions
	logger  *Logger
}

// NewTextFormatter creates a text formatter.
func NewTextFormatter(opts *OutputOptions, logger *Logger) *TextFormatter {
	if opts == nil {
		opts = NewDefaultOptions()
	}
	return &TextFormatter{
		writer:  os.Stdout,
		options: opts,
		logger:  logger,
	}
}

// NewTextFormatterWithWriter creates a formatter with custom writer (for testing).
func NewTextFormatterWithWriter(w io.Writer, opts *OutputOptions, logger *Logger) *TextFormatter {
	tf := NewTextFormatter(opts, logger)
	tf.writer = w
	return tf
}

// Format outputs all findings as formatted text.
func (f *TextFormatter) Format(findings []EnrichedFinding, summary *Summary) error {
	if len(findings) == 0 {
		f.writeNoFindings()
		return nil
	}

	f.writeHeader()
	f.writeResults(findings)
	f.writeSummary(summary)

	if f.options.ShouldShowStatistics() {
		f.writeStatistics(summary)
	}

	return nil
}

func (f *TextFormatter) writeHeader() {
	fmt.Fprintln(f.writer, "Sastcore Security Scan")
	fmt.Fprintln(f.writer, strings.Repeat("-", headerRuleWidth(f.writer)))
	fmt.Fprintln(f.writer)
}

// headerRuleWidth sizes the header's horizontal rule to the terminal width
// when f.writer is a TTY, capped so a huge terminal doesn't print an
// absurdly long line; a fixed width is used for non-TTY output (redirected
// to a file or pipe).
func headerRuleWidth(w io.Writer) int {
	const maxWidth = 60
	width := GetTerminalWidth(w)
	if width > maxWidth {
		return maxWidth
	}
	return width
}

func (f *TextFormatter) writeNoFindings() {
	f.writeHeader()
	fmt.Fprintln(f.writer, "No security issues found.")
}

func (f *TextFormatter) writeResults(findings []EnrichedFinding) {
	fmt.Fprintln(f.writer, "Results:")
	fmt.Fprintln(f.writer)

	grouped := f.groupBySeverity(findings)

	severityOrder := []rule.Severity{
		rule.SeverityCritical, rule.SeverityError, rule.SeverityWarning, rule.SeverityInfo,
	}
	for _, sev := range severityOrder {
		if group, ok := grouped[sev]; ok && len(group) > 0 {
			f.writeSeverityGroup(sev, group)
		}
	}
}

func (f *TextFormatter) groupBySeverity(findings []EnrichedFinding) map[rule.Severity][]EnrichedFinding {
	grouped := make(map[rule.Severity][]EnrichedFinding)
	for _, ef := range findings {
		grouped[ef.Finding.Severity] = append(grouped[ef.Finding.Severity], ef)
	}
	return grouped
}

func (f *TextFormatter) writeSeverityGroup(severity rule.Severity, findings []EnrichedFinding) {
	title := fmt.Sprintf("%s Issues (%d):", strings.Title(string(severity)), len(findings))
	fmt.Fprintln(f.writer, title)
	fmt.Fprintln(f.writer)

	showDetailed := severity == rule.SeverityCritical || severity == rule.SeverityError

	for _, ef := range findings {
		if showDetailed {
			f.writeDetailedFinding(ef)
		} else {
			f.writeAbbreviatedFinding(ef)
		}
	}
	fmt.Fprintln(f.writer)
}

func (f *TextFormatter) writeDetailedFinding(ef EnrichedFinding) {
	fmt.Fprintf(f.writer, "  [%s] %s: %s\n",
		ef.Finding.Severity,
		ef.Finding.RuleID,
		ef.Finding.Message)

	var metaParts []string
	if cwe := metaList(ef, "cwe"); len(cwe) > 0 {
		metaParts = append(metaParts, cwe[0])
	}
	if owasp := metaList(ef, "owasp"); len(owasp) > 0 {
		metaParts = append(metaParts, owasp[0])
	}
	if len(metaParts) > 0 {
		fmt.Fprintf(f.writer, "    %s\n", strings.Join(metaParts, " | "))
	}
	fmt.Fprintln(f.writer)

	fmt.Fprintf(f.writer, "    %s\n", f.formatLocation(ef))

	if f.options.ShowSnippets && len(ef.Snippet.Lines) > 0 {
		f.writeCodeSnippet(ef.Snippet)
	}
	fmt.Fprintln(f.writer)

	if detectionType(ef) == "dataflow" {
		f.writeTaintFlow(ef)
	}

	fmt.Fprintf(f.writer, "    Confidence: %s | Detection: %s\n",
		strings.Title(string(ef.Finding.Confidence)),
		f.formatDetectionMethod(ef))
	fmt.Fprintln(f.writer)
}

func (f *TextFormatter) writeAbbreviatedFinding(ef EnrichedFinding) {
	fmt.Fprintf(f.writer, "  [%s] %s: %s\n",
		ef.Finding.Severity,
		ef.Finding.RuleID,
		f.formatLocation(ef))
}

func (f *TextFormatter) formatLocation(ef EnrichedFinding) string {
	path := ef.RelPath
	if path == "" {
		path = ef.Finding.Location.File
	}
	if ef.Finding.Location.StartLine > 0 {
		return fmt.Sprintf("%s:%d", path, ef.Finding.Location.StartLine)
	}
	return path
}

func (f *TextFormatter) writeCodeSnippet(snippet CodeSnippet) {
	maxLineNum := 0
	for _, line := range snippet.Lines {
		if line.Number > maxLineNum {
			maxLineNum = line.Number
		}
	}
	lineWidth := len(fmt.Sprintf("%d", maxLineNum))

	for _, line := range snippet.Lines {
		marker := " "
		if line.IsHighlight {
			marker = ">"
		}
		fmt.Fprintf(f.writer, "      %s %*d | %s\n",
			marker,
			lineWidth,
			line.Number,
			line.Content)
	}
}

func (f *TextFormatter) writeTaintFlow(ef EnrichedFinding) {
	vulnTypes := ef.Finding.Metadata["vulnerability_types"]
	source := ef.Finding.Metadata["source_location"]
	if source == "" {
		return
	}
	fmt.Fprintf(f.writer, "    Flow: %s -> %s\n", source, f.formatLocation(ef))
	if vulnTypes != "" {
		fmt.Fprintf(f.writer, "    Tainted data (%s) reaches this sink without sanitization\n", vulnTypes)
	}
}

func (f *TextFormatter) formatDetectionMethod(ef EnrichedFinding) string {
	if detectionType(ef) == "dataflow" {
		return "Data-flow / taint analysis"
	}
	return "Pattern matching"
}

func (f *TextFormatter) writeSummary(summary *Summary) {
	fmt.Fprintln(f.writer, "Summary:")
	fmt.Fprintf(f.writer, "  %d findings across %d rules\n",
		summary.TotalFindings, summary.RulesExecuted)

	var parts []string
	for _, sev := range []string{"critical", "error", "warning", "info"} {
		if count, ok := summary.BySeverity[sev]; ok && count > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", count, sev))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(f.writer, "  %s\n", strings.Join(parts, " | "))
	}
	fmt.Fprintln(f.writer)
}

func (f *TextFormatter) writeStatistics(summary *Summary) {
	fmt.Fprintln(f.writer, "Detection Methods:")
	for method, count := range summary.ByDetectionType {
		fmt.Fprintf(f.writer, "  %s: %d findings\n", method, count)
	}
	fmt.Fprintln(f.writer)
}

// Summary holds aggregated statistics.
type Summary struct {
	TotalFindings   int
	RulesExecuted   int
	BySeverity      map[string]int
	ByDetectionType map[string]int
	FilesScanned    int
	Duration        string
}

// BuildSummary creates a summary from enriched findings.
func BuildSummary(findings []EnrichedFinding, rulesExecuted int) *Summary {
	summary := &Summary{
		TotalFindings:   len(findings),
		RulesExecuted:   rulesExecuted,
		BySeverity:      make(map[string]int),
		ByDetectionType: make(map[string]int),
	}

	for _, ef := range findings {
		summary.BySeverity[string(ef.Finding.Severity)]++
		summary.ByDetectionType[detectionType(ef)]++
	}

	return summary
}
