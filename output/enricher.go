package output

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/codalyze/sastcore/rule"
)

// SnippetLine is one line of source shown around a finding.
type SnippetLine struct {
	Number      int
	Content     string
	IsHighlight bool
}

// CodeSnippet is the source context displayed alongside a finding.
type CodeSnippet struct {
	StartLine int
	Lines     []SnippetLine
}

// EnrichedFinding pairs a rule.Finding with the display context the
// formatters need: a project-relative path and an optional code
// snippet. The rule engine's Finding is already a complete verdict
// (spec §4.4 step 4/7); enrichment only adds presentation context a
// formatter can't derive from the AST it no longer has access to.
type EnrichedFinding struct {
	Finding rule.Finding
	RelPath string
	Snippet CodeSnippet
}

// Enricher adds a relative path and source snippet to findings.
type Enricher struct {
	options   *OutputOptions
	fileCache map[string][]string
}

// NewEnricher creates an enricher with the given options.
func NewEnricher(opts *OutputOptions) *Enricher {
	if opts == nil {
		opts = NewDefaultOptions()
	}
	return &Enricher{
		options:   opts,
		fileCache: make(map[string][]string),
	}
}

// Enrich transforms one finding into a display-ready EnrichedFinding.
func (e *Enricher) Enrich(f rule.Finding) EnrichedFinding {
	enriched := EnrichedFinding{
		Finding: f,
		RelPath: e.relPath(f.Location.File),
	}

	if snippet, err := e.extractSnippet(f.Location.File, f.Location.StartLine); err == nil {
		enriched.Snippet = snippet
	}

	return enriched
}

// EnrichAll enriches every finding, preserving order.
func (e *Enricher) EnrichAll(findings []rule.Finding) []EnrichedFinding {
	out := make([]EnrichedFinding, 0, len(findings))
	for _, f := range findings {
		out = append(out, e.Enrich(f))
	}
	return out
}

func (e *Enricher) relPath(file string) string {
	if file == "" {
		return file
	}
	if e.options.ProjectRoot == "" {
		return file
	}
	rel, err := filepath.Rel(e.options.ProjectRoot, file)
	if err != nil {
		return file
	}
	return rel
}

func (e *Enricher) extractSnippet(file string, line int) (CodeSnippet, error) {
	var snippet CodeSnippet
	if file == "" || line <= 0 {
		return snippet, nil
	}

	lines, err := e.readFileLines(file)
	if err != nil {
		return snippet, err
	}

	contextLines := e.options.ContextLines
	if contextLines == 0 {
		contextLines = 3
	}

	startLine := line - contextLines
	if startLine < 1 {
		startLine = 1
	}
	endLine := line + contextLines
	if endLine > len(lines) {
		endLine = len(lines)
	}
	snippet.StartLine = startLine

	for i := startLine; i <= endLine; i++ {
		if i > 0 && i <= len(lines) {
			snippet.Lines = append(snippet.Lines, SnippetLine{
				Number:      i,
				Content:     lines[i-1],
				IsHighlight: i == line,
			})
		}
	}

	return snippet, nil
}

func (e *Enricher) readFileLines(file string) ([]string, error) {
	if lines, ok := e.fileCache[file]; ok {
		return lines, nil
	}

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	e.fileCache[file] = lines
	return lines, nil
}
