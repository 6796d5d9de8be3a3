package output

// DiffFilter filters findings to only include those in changed files.
// Used for diff-aware scanning where the full project is scanned but
// output is limited to files changed in the PR/commit.
type DiffFilter struct {
	changedFiles map[string]bool // Set of relative file paths.
}

// NewDiffFilter creates a filter from a list of changed file paths.
// Paths should be relative to the project root (matching EnrichedFinding.RelPath).
func NewDiffFilter(changedFiles []string) *DiffFilter {
	fileSet := make(map[string]bool, len(changedFiles))
	for _, f := range changedFiles {
		fileSet[f] = true
	}
	return &DiffFilter{changedFiles: fileSet}
}

// Filter returns only findings whose RelPath is in the changed files set.
// If no changed files were provided (empty set), all findings are returned.
func (f *DiffFilter) Filter(findings []EnrichedFinding) []EnrichedFinding {
	if len(f.changedFiles) == 0 {
		return findings
	}
	filtered := make([]EnrichedFinding, 0, len(findings))
	for _, ef := range findings {
		if f.changedFiles[ef.RelPath] {
			filtered = append(filtered, ef)
		}
	}
	return filtered
}

// FilteredCount returns the number of findings that would be removed.
func (f *DiffFilter) FilteredCount(findings []EnrichedFinding) int {
	if len(f.changedFiles) == 0 {
		return 0
	}
	count := 0
	for _, ef := range findings {
		if !f.changedFiles[ef.RelPath] {
			count++
		}
	}
	return count
}

// ChangedFileCount returns the number of changed files in the filter set.
func (f *DiffFilter) ChangedFileCount() int {
	return len(f.changedFiles)
}
