package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	sarif "github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/codalyze/sastcore/rule"
)

// SARIFFormatter formats enriched findings as SARIF 2.1.0.
type SARIFFormatter struct {
	writer  io.Writer
	options *OutputOptions
}

// NewSARIFFormatter creates a SARIF formatter.
func NewSARIFFormatter(opts *OutputOptions) *SARIFFormatter {
	if opts == nil {
		opts = NewDefaultOptions()
	}
	return &SARIFFormatter{
		writer:  os.Stdout,
		options: opts,
	}
}

// NewSARIFFormatterWithWriter creates a formatter with custom writer (for testing).
func NewSARIFFormatterWithWriter(w io.Writer, opts *OutputOptions) *SARIFFormatter {
	sf := NewSARIFFormatter(opts)
	sf.writer = w
	return sf
}

// Format outputs all findings as SARIF.
func (f *SARIFFormatter) Format(findings []EnrichedFinding) error {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return err
	}

	run := sarif.NewRunWithInformationURI("sastcore", "https://github.com/codalyze/sastcore")

	f.buildRules(findings, run)

	for _, ef := range findings {
		f.buildResult(ef, run)
	}

	report.AddRun(run)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func (f *SARIFFormatter) buildRules(findings []EnrichedFinding, run *sarif.Run) {
	seen := make(map[string]bool)

	for _, ef := range findings {
		if seen[ef.Finding.RuleID] {
			continue
		}
		seen[ef.Finding.RuleID] = true

		cwe := metaList(ef, "cwe")
		owasp := metaList(ef, "owasp")
		fullDesc := ef.Finding.Message
		if len(cwe) > 0 || len(owasp) > 0 {
			var parts []string
			if len(cwe) > 0 {
				parts = append(parts, strings.Join(cwe, ", "))
			}
			if len(owasp) > 0 {
				parts = append(parts, strings.Join(owasp, ", "))
			}
			fullDesc += " (" + strings.Join(parts, ", ") + ")"
		}

		sarifRule := run.AddRule(ef.Finding.RuleID).
			WithDescription(fullDesc).
			WithName(ef.Finding.RuleID).
			WithHelpURI("https://github.com/codalyze/sastcore")

		level := severityToLevelString(ef.Finding.Severity)
		sarifRule.WithDefaultConfiguration(sarif.NewReportingConfiguration().WithLevel(level))
		sarifRule.WithProperties(f.buildRuleProperties(ef.Finding.Severity))
	}
}

func severityToLevelString(severity rule.Severity) string {
	switch severity {
	case rule.SeverityCritical, rule.SeverityError:
		return "error"
	case rule.SeverityWarning:
		return "warning"
	case rule.SeverityInfo:
		return "note"
	default:
		return "warning"
	}
}

func (f *SARIFFormatter) buildRuleProperties(severity rule.Severity) map[string]interface{} {
	return map[string]interface{}{
		"tags":               []string{"security"},
		"security-severity":  severityToScore(severity),
		"precision":          "high",
	}
}

func severityToScore(severity rule.Severity) string {
	switch severity {
	case rule.SeverityCritical:
		return "9.0"
	case rule.SeverityError:
		return "7.0"
	case rule.SeverityWarning:
		return "5.0"
	case rule.SeverityInfo:
		return "3.0"
	default:
		return "5.0"
	}
}

func (f *SARIFFormatter) buildResult(ef EnrichedFinding, run *sarif.Run) {
	message := ef.Finding.Message
	if score := confidenceScore(ef); detectionType(ef) == "dataflow" && score > 0 {
		message += fmt.Sprintf(" (confidence: %.0f%%)", score*100)
	}

	result := run.CreateResultForRule(ef.Finding.RuleID).
		WithMessage(sarif.NewTextMessage(message))

	f.addLocation(ef, result)

	if detectionType(ef) == "dataflow" {
		f.addCodeFlow(ef, result)
	}
}

func (f *SARIFFormatter) addLocation(ef EnrichedFinding, result *sarif.Result) {
	filePath := ef.RelPath
	if filePath == "" {
		filePath = ef.Finding.Location.File
	}

	region := sarif.NewRegion().WithStartLine(ef.Finding.Location.StartLine)
	if ef.Finding.Location.StartColumn > 0 {
		region.WithStartColumn(ef.Finding.Location.StartColumn)
	}

	location := sarif.NewLocation().
		WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(filePath)).
				WithRegion(region),
		)

	result.AddLocation(location)
}

// addCodeFlow attaches the source location the dataflow runner recorded
// in metadata (runner.go's "source_location", an ast.Location.String()
// rendering) as a single-hop thread flow from source to sink.
func (f *SARIFFormatter) addCodeFlow(ef EnrichedFinding, result *sarif.Result) {
	source := ef.Finding.Metadata["source_location"]
	if source == "" {
		return
	}

	filePath := ef.RelPath
	if filePath == "" {
		filePath = ef.Finding.Location.File
	}

	sourceLocation := sarif.NewLocation().
		WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(filePath)),
		).
		WithMessage(sarif.NewTextMessage("Taint source: " + source))

	sinkLocation := sarif.NewLocation().
		WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(filePath)).
				WithRegion(sarif.NewRegion().WithStartLine(ef.Finding.Location.StartLine)),
		).
		WithMessage(sarif.NewTextMessage("Taint sink"))

	threadFlow := sarif.NewThreadFlow().
		WithLocations([]*sarif.ThreadFlowLocation{
			sarif.NewThreadFlowLocation().WithLocation(sourceLocation),
			sarif.NewThreadFlowLocation().WithLocation(sinkLocation),
		})

	codeFlow := sarif.NewCodeFlow().
		WithThreadFlows([]*sarif.ThreadFlow{threadFlow}).
		WithMessage(sarif.NewTextMessage("Tainted data flow from " + source))

	result.WithCodeFlows([]*sarif.CodeFlow{codeFlow})
	result.WithRelatedLocations([]*sarif.Location{sourceLocation})
}
