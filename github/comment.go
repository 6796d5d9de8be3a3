package github

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/codalyze/sastcore/output"
	"github.com/codalyze/sastcore/rule"
)

// summaryMarker is an invisible HTML comment embedded in every summary comment.
// Used to find and update existing comments instead of creating duplicates.
const summaryMarker = "<!-- sastcore-summary -->"

// ScanMetrics captures aggregate scan statistics for the summary comment.
type ScanMetrics struct {
	FilesScanned  int
	RulesExecuted int
	BlobBaseURL   string // e.g. "https://github.com/owner/repo/blob/sha" — enables file links.
}

// CommentManager handles creating and updating PR summary comments.
type CommentManager struct {
	client   *Client
	prNumber int
}

// NewCommentManager creates a comment manager for the given PR.
func NewCommentManager(client *Client, prNumber int) *CommentManager {
	return &CommentManager{client: client, prNumber: prNumber}
}

// PostOrUpdate posts a new summary comment or updates the existing one.
// It searches for a comment containing the marker to avoid duplicates.
// A rate-limited token is reported as a *RateLimitError rather than a bare
// error so the caller can log it as a skipped annotation instead of a scan
// failure — the scan's findings themselves are unaffected.
func (cm *CommentManager) PostOrUpdate(ctx context.Context, markdown string) error {
	body := summaryMarker + "\n" + markdown

	existingID, err := cm.findExisting(ctx)
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			return rl
		}
		return fmt.Errorf("find existing comment: %w", err)
	}

	if existingID != 0 {
		_, err = cm.client.UpdateComment(ctx, existingID, body)
		if err != nil {
			var rl *RateLimitError
			if errors.As(err, &rl) {
				return rl
			}
			return fmt.Errorf("update summary comment: %w", err)
		}
		return nil
	}

	_, err = cm.client.CreateComment(ctx, cm.prNumber, body)
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) {
			return rl
		}
		return fmt.Errorf("create summary comment: %w", err)
	}
	return nil
}

// findExisting returns the ID of an existing summary comment, or 0 if none.
func (cm *CommentManager) findExisting(ctx context.Context) (int64, error) {
	comments, err := cm.client.ListComments(ctx, cm.prNumber)
	if err != nil {
		return 0, err
	}
	for _, c := range comments {
		if strings.Contains(c.Body, summaryMarker) {
			return c.ID, nil
		}
	}
	return 0, nil
}

// severityOrder returns a numeric rank for sorting (lower = more severe).
func severityOrder(severity rule.Severity) int {
	switch severity {
	case rule.SeverityCritical:
		return 0
	case rule.SeverityError:
		return 1
	case rule.SeverityWarning:
		return 2
	case rule.SeverityInfo:
		return 3
	default:
		return 4
	}
}

// sortBySeverity returns a copy of findings sorted by severity (critical first).
func sortBySeverity(findings []output.EnrichedFinding) []output.EnrichedFinding {
	sorted := make([]output.EnrichedFinding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return severityOrder(sorted[i].Finding.Severity) < severityOrder(sorted[j].Finding.Severity)
	})
	return sorted
}

// FormatSummaryComment builds the markdown body for a PR summary comment.
func FormatSummaryComment(findings []output.EnrichedFinding, metrics ScanMetrics) string {
	counts := countBySeverity(findings)
	sorted := sortBySeverity(findings)
	var sb strings.Builder

	sb.WriteString("## [Sastcore](https://sastcore.dev) Security Scan\n\n")

	// Status and severity badges.
	if counts.Critical == 0 && counts.Error == 0 && counts.Warning == 0 && counts.Info == 0 {
		sb.WriteString(statusBadge("Pass", "success"))
	} else {
		sb.WriteString(statusBadge("Issues Found", "critical"))
	}
	sb.WriteString(" ")
	sb.WriteString(severityBadge("Critical", counts.Critical))
	sb.WriteString(" ")
	sb.WriteString(severityBadge("Error", counts.Error))
	sb.WriteString(" ")
	sb.WriteString(severityBadge("Warning", counts.Warning))
	sb.WriteString(" ")
	sb.WriteString(severityBadge("Info", counts.Info))
	sb.WriteString("\n\n")

	if len(sorted) == 0 {
		sb.WriteString("**No security issues detected.**\n\n")
	} else {
		writeFindingsTable(&sb, sorted, metrics.BlobBaseURL)
		if counts.Critical > 0 {
			sb.WriteString(fmt.Sprintf("> **%d critical issue(s)** require attention.\n\n", counts.Critical))
		}
	}

	// Metrics table.
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|:-------|------:|\n")
	sb.WriteString(fmt.Sprintf("| Files Scanned | %d |\n", metrics.FilesScanned))
	sb.WriteString(fmt.Sprintf("| Rules | %d |\n", metrics.RulesExecuted))

	sb.WriteString("\n---\n")
	sb.WriteString("<sub>Powered by <a href=\"https://sastcore.dev\">Sastcore</a></sub>\n")

	return sb.String()
}

// severityCounts holds per-severity finding totals.
type severityCounts struct {
	Critical int
	Error    int
	Warning  int
	Info     int
}

func countBySeverity(findings []output.EnrichedFinding) severityCounts {
	var c severityCounts
	for _, ef := range findings {
		switch ef.Finding.Severity {
		case rule.SeverityCritical:
			c.Critical++
		case rule.SeverityError:
			c.Error++
		case rule.SeverityWarning:
			c.Warning++
		case rule.SeverityInfo:
			c.Info++
		}
	}
	return c
}

func statusBadge(label, color string) string {
	safe := strings.ReplaceAll(label, " ", "_")
	return fmt.Sprintf("![%s](https://img.shields.io/badge/Security-%s-%s?style=flat-square)", label, safe, color)
}

func severityBadge(label string, count int) string {
	color := "lightgrey"
	switch label {
	case "Critical":
		if count > 0 {
			color = "critical"
		} else {
			color = "success"
		}
	case "Error":
		if count > 0 {
			color = "orange"
		} else {
			color = "success"
		}
	case "Warning":
		if count > 0 {
			color = "yellow"
		} else {
			color = "success"
		}
	case "Info":
		if count > 0 {
			color = "informational"
		} else {
			color = "success"
		}
	}
	return fmt.Sprintf("![%s](https://img.shields.io/badge/%s-%d-%s?style=flat-square)", label, label, count, color)
}

func severityEmoji(severity rule.Severity) string {
	switch severity {
	case rule.SeverityCritical:
		return "\xf0\x9f\x94\xb4" // red circle
	case rule.SeverityError:
		return "\xf0\x9f\x9f\xa0" // orange circle
	case rule.SeverityWarning:
		return "\xf0\x9f\x9f\xa1" // yellow circle
	case rule.SeverityInfo:
		return "\xe2\x84\xb9\xef\xb8\x8f" // info icon
	default:
		return ""
	}
}

func severityLabel(severity rule.Severity) string {
	switch severity {
	case rule.SeverityCritical:
		return severityEmoji(severity) + " **Critical**"
	case rule.SeverityError:
		return severityEmoji(severity) + " Error"
	case rule.SeverityWarning:
		return severityEmoji(severity) + " Warning"
	case rule.SeverityInfo:
		return severityEmoji(severity) + " Info"
	default:
		return string(severity)
	}
}

func writeFindingsTable(sb *strings.Builder, findings []output.EnrichedFinding, blobBaseURL string) {
	sb.WriteString("### Findings\n\n")
	if blobBaseURL != "" {
		sb.WriteString("| Severity | File | Line | Issue | |\n")
		sb.WriteString("|:---------|:-----|-----:|:------|:-:|\n")
	} else {
		sb.WriteString("| Severity | File | Line | Issue |\n")
		sb.WriteString("|:---------|:-----|-----:|:------|\n")
	}
	for _, ef := range findings {
		line := ef.Finding.Location.StartLine
		if blobBaseURL != "" {
			link := fmt.Sprintf("[%s](%s/%s#L%d)",
				"\xf0\x9f\x94\x97", // link emoji
				blobBaseURL,
				ef.RelPath,
				line,
			)
			sb.WriteString(fmt.Sprintf("| %s | `%s` | %d | %s | %s |\n",
				severityLabel(ef.Finding.Severity),
				ef.RelPath,
				line,
				issueLabel(ef.Finding),
				link,
			))
		} else {
			sb.WriteString(fmt.Sprintf("| %s | `%s` | %d | %s |\n",
				severityLabel(ef.Finding.Severity),
				ef.RelPath,
				line,
				issueLabel(ef.Finding),
			))
		}
	}
	sb.WriteString("\n")
}

// issueLabel picks the short human-facing label for a finding: the rule
// message when present, falling back to the rule ID.
func issueLabel(f rule.Finding) string {
	if f.Message != "" {
		return f.Message
	}
	return f.RuleID
}
