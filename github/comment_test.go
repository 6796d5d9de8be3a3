package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/codalyze/sastcore/ast"
	"github.com/codalyze/sastcore/output"
	"github.com/codalyze/sastcore/rule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- CommentManager tests ---

func TestPostOrUpdate_CreatesNew(t *testing.T) {
	var createdBody string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/comments"):
			// ListComments returns empty — no existing summary comment.
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]*Comment{})

		case r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/comments"):
			var req createCommentRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			createdBody = req.Body
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(Comment{ID: 1, Body: req.Body})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := newTestClient(t, handler)
	cm := NewCommentManager(client, 42)

	err := cm.PostOrUpdate(context.Background(), "## Scan Results")
	require.NoError(t, err)
	assert.Contains(t, createdBody, summaryMarker)
	assert.Contains(t, createdBody, "## Scan Results")
}

func TestPostOrUpdate_RateLimited(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "API rate limit exceeded"})
	})

	client := newTestClient(t, handler)
	cm := NewCommentManager(client, 42)

	err := cm.PostOrUpdate(context.Background(), "## Scan Results")
	require.Error(t, err)
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, http.StatusForbidden, rl.StatusCode)
}

func TestPostOrUpdate_UpdatesExisting(t *testing.T) {
	var updatedBody string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/comments"):
			// ListComments returns a comment with the marker.
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]*Comment{
				{ID: 10, Body: "unrelated comment"},
				{ID: 77, Body: summaryMarker + "\nold results"},
			})

		case r.Method == http.MethodPatch && strings.Contains(r.URL.Path, "/comments/77"):
			var req updateCommentRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			updatedBody = req.Body
			json.NewEncoder(w).Encode(Comment{ID: 77, Body: req.Body})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := newTestClient(t, handler)
	cm := NewCommentManager(client, 42)

	err := cm.PostOrUpdate(context.Background(), "## Updated Results")
	require.NoError(t, err)
	assert.Contains(t, updatedBody, summaryMarker)
	assert.Contains(t, updatedBody, "## Updated Results")
}

func TestPostOrUpdate_ListError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(apiError{Message: "Bad credentials"})
	})

	client := newTestClient(t, handler)
	cm := NewCommentManager(client, 42)

	err := cm.PostOrUpdate(context.Background(), "body")
	assert.ErrorContains(t, err, "find existing comment")
}

func TestPostOrUpdate_CreateError(t *testing.T) {
	callCount := 0
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]*Comment{})
			return
		}
		// POST fails.
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(apiError{Message: "forbidden"})
	})

	client := newTestClient(t, handler)
	cm := NewCommentManager(client, 42)

	err := cm.PostOrUpdate(context.Background(), "body")
	assert.ErrorContains(t, err, "create summary comment")
}

func TestPostOrUpdate_UpdateError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode([]*Comment{
				{ID: 5, Body: summaryMarker + "\nold"},
			})
			return
		}
		// PATCH fails.
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(apiError{Message: "server error"})
	})

	client := newTestClient(t, handler)
	cm := NewCommentManager(client, 42)

	err := cm.PostOrUpdate(context.Background(), "body")
	assert.ErrorContains(t, err, "update summary comment")
}

// --- FormatSummaryComment tests ---

func ef(relPath string, line int, ruleID, message string, severity rule.Severity, metadata map[string]string) output.EnrichedFinding {
	return output.EnrichedFinding{
		RelPath: relPath,
		Finding: rule.Finding{
			RuleID:   ruleID,
			Message:  message,
			Severity: severity,
			Location: ast.Location{File: relPath, StartLine: line},
			Metadata: metadata,
		},
	}
}

func TestFormatSummaryComment_NoFindings(t *testing.T) {
	result := FormatSummaryComment(nil, ScanMetrics{FilesScanned: 5, RulesExecuted: 10})

	assert.Contains(t, result, "## [Sastcore](https://sastcore.dev) Security Scan")
	assert.Contains(t, result, "Security-Pass-success")
	assert.Contains(t, result, "**No security issues detected.**")
	assert.Contains(t, result, "| Files Scanned | 5 |")
	assert.Contains(t, result, "| Rules | 10 |")
	assert.Contains(t, result, "Sastcore")
	// Should not contain findings table.
	assert.NotContains(t, result, "### Findings")
}

func TestFormatSummaryComment_WithFindings(t *testing.T) {
	// Provide findings in non-severity order to verify sorting.
	findings := []output.EnrichedFinding{
		ef("app/utils.py", 100, "PATH-001", "Path Traversal", rule.SeverityWarning, nil),
		ef("app/views.py", 47, "CMD-001", "Command Injection", rule.SeverityCritical, map[string]string{"cwe": "CWE-78"}),
		ef("app/auth.py", 23, "SQL-001", "SQL Injection", rule.SeverityError, map[string]string{"cwe": "CWE-89"}),
	}
	metrics := ScanMetrics{FilesScanned: 6, RulesExecuted: 23}

	result := FormatSummaryComment(findings, metrics)

	// Status badge.
	assert.Contains(t, result, "Security-Issues_Found-critical")
	// Severity badges.
	assert.Contains(t, result, "Critical-1-critical")
	assert.Contains(t, result, "Error-1-orange")
	assert.Contains(t, result, "Warning-1-yellow")
	// Findings table.
	assert.Contains(t, result, "### Findings")
	assert.Contains(t, result, "| `app/views.py` | 47 | Command Injection |")
	assert.Contains(t, result, "| `app/auth.py` | 23 | SQL Injection |")
	assert.Contains(t, result, "| `app/utils.py` | 100 | Path Traversal |")
	// Verify sort order: critical before error before warning.
	critIdx := strings.Index(result, "Command Injection")
	errIdx := strings.Index(result, "SQL Injection")
	warnIdx := strings.Index(result, "Path Traversal")
	assert.Less(t, critIdx, errIdx, "critical should appear before error")
	assert.Less(t, errIdx, warnIdx, "error should appear before warning")
	// No details section (removed).
	assert.NotContains(t, result, "<details>")
	// Critical warning.
	assert.Contains(t, result, "1 critical issue(s)")
	// Metrics.
	assert.Contains(t, result, "| Files Scanned | 6 |")
	assert.Contains(t, result, "| Rules | 23 |")
}

func TestFormatSummaryComment_WarningOnlyFindings(t *testing.T) {
	findings := []output.EnrichedFinding{
		ef("a.py", 1, "MINOR-001", "Minor Issue", rule.SeverityWarning, nil),
	}

	result := FormatSummaryComment(findings, ScanMetrics{})

	// Issues found badge (not pass).
	assert.Contains(t, result, "Issues_Found")
	// Warning badge with count.
	assert.Contains(t, result, "Warning-1-yellow")
	// No critical warning.
	assert.NotContains(t, result, "critical issue(s)")
	// Still has findings table.
	assert.Contains(t, result, "### Findings")
}

func TestFormatSummaryComment_InfoOnlyFindings(t *testing.T) {
	findings := []output.EnrichedFinding{
		ef("Dockerfile", 1, "MAINT-001", "Deprecated Maintainer", rule.SeverityInfo, nil),
	}

	result := FormatSummaryComment(findings, ScanMetrics{})

	// Issues found badge (not pass).
	assert.Contains(t, result, "Issues_Found")
	// Info badge with count.
	assert.Contains(t, result, "Info-1-informational")
	// No critical warning.
	assert.NotContains(t, result, "critical issue(s)")
	// Has findings table.
	assert.Contains(t, result, "### Findings")
}

func TestFormatSummaryComment_ZeroBadgesGreen(t *testing.T) {
	result := FormatSummaryComment(nil, ScanMetrics{})

	assert.Contains(t, result, "Critical-0-success")
	assert.Contains(t, result, "Error-0-success")
	assert.Contains(t, result, "Warning-0-success")
	assert.Contains(t, result, "Info-0-success")
}

// --- Sorting tests ---

func TestSeverityOrder(t *testing.T) {
	assert.Equal(t, 0, severityOrder(rule.SeverityCritical))
	assert.Equal(t, 1, severityOrder(rule.SeverityError))
	assert.Equal(t, 2, severityOrder(rule.SeverityWarning))
	assert.Equal(t, 3, severityOrder(rule.SeverityInfo))
	assert.Equal(t, 4, severityOrder(rule.Severity("unknown")))
}

func TestSortBySeverity(t *testing.T) {
	findings := []output.EnrichedFinding{
		ef("", 0, "R1", "", rule.SeverityWarning, nil),
		ef("", 0, "R2", "", rule.SeverityCritical, nil),
		ef("", 0, "R3", "", rule.SeverityError, nil),
		ef("", 0, "R5", "", rule.SeverityInfo, nil),
	}

	sorted := sortBySeverity(findings)

	// Verify order: critical, error, warning, info.
	assert.Equal(t, "R2", sorted[0].Finding.RuleID)
	assert.Equal(t, "R3", sorted[1].Finding.RuleID)
	assert.Equal(t, "R1", sorted[2].Finding.RuleID)
	assert.Equal(t, "R5", sorted[3].Finding.RuleID)

	// Verify original slice is not mutated.
	assert.Equal(t, "R1", findings[0].Finding.RuleID)
}

func TestSortBySeverity_StableOrder(t *testing.T) {
	findings := []output.EnrichedFinding{
		ef("", 0, "A", "", rule.SeverityError, nil),
		ef("", 0, "B", "", rule.SeverityError, nil),
		ef("", 0, "C", "", rule.SeverityError, nil),
	}

	sorted := sortBySeverity(findings)

	// Same-severity items preserve original order (stable sort).
	assert.Equal(t, "A", sorted[0].Finding.RuleID)
	assert.Equal(t, "B", sorted[1].Finding.RuleID)
	assert.Equal(t, "C", sorted[2].Finding.RuleID)
}

// --- Helper function tests ---

func TestCountBySeverity(t *testing.T) {
	findings := []output.EnrichedFinding{
		ef("", 0, "", "", rule.SeverityCritical, nil),
		ef("", 0, "", "", rule.SeverityCritical, nil),
		ef("", 0, "", "", rule.SeverityError, nil),
		ef("", 0, "", "", rule.SeverityWarning, nil),
		ef("", 0, "", "", rule.SeverityWarning, nil),
		ef("", 0, "", "", rule.SeverityInfo, nil),
		ef("", 0, "", "", rule.Severity("unknown"), nil), // Ignored.
	}

	c := countBySeverity(findings)
	assert.Equal(t, 2, c.Critical)
	assert.Equal(t, 1, c.Error)
	assert.Equal(t, 2, c.Warning)
	assert.Equal(t, 1, c.Info)
}

func TestCountBySeverity_Empty(t *testing.T) {
	c := countBySeverity(nil)
	assert.Equal(t, 0, c.Critical)
	assert.Equal(t, 0, c.Error)
	assert.Equal(t, 0, c.Warning)
	assert.Equal(t, 0, c.Info)
}

func TestSeverityEmoji(t *testing.T) {
	assert.NotEmpty(t, severityEmoji(rule.SeverityCritical))
	assert.NotEmpty(t, severityEmoji(rule.SeverityError))
	assert.NotEmpty(t, severityEmoji(rule.SeverityWarning))
	assert.NotEmpty(t, severityEmoji(rule.SeverityInfo))
	assert.Empty(t, severityEmoji(rule.Severity("unknown")))
}

func TestSeverityLabel(t *testing.T) {
	assert.Contains(t, severityLabel(rule.SeverityCritical), "**Critical**")
	assert.Contains(t, severityLabel(rule.SeverityError), "Error")
	assert.Contains(t, severityLabel(rule.SeverityWarning), "Warning")
	assert.Contains(t, severityLabel(rule.SeverityInfo), "Info")
	assert.Equal(t, "other", severityLabel(rule.Severity("other")))
}

func TestStatusBadge(t *testing.T) {
	badge := statusBadge("Pass", "success")
	assert.Contains(t, badge, "Security-Pass-success")
	assert.Contains(t, badge, "shields.io")

	badge = statusBadge("Issues Found", "critical")
	assert.Contains(t, badge, "Security-Issues_Found-critical")
}

func TestSeverityBadge(t *testing.T) {
	assert.Contains(t, severityBadge("Critical", 3), "Critical-3-critical")
	assert.Contains(t, severityBadge("Critical", 0), "Critical-0-success")
	assert.Contains(t, severityBadge("Error", 1), "Error-1-orange")
	assert.Contains(t, severityBadge("Error", 0), "Error-0-success")
	assert.Contains(t, severityBadge("Warning", 2), "Warning-2-yellow")
	assert.Contains(t, severityBadge("Warning", 0), "Warning-0-success")
	assert.Contains(t, severityBadge("Info", 1), "Info-1-informational")
	assert.Contains(t, severityBadge("Info", 0), "Info-0-success")
}

func TestWriteFindingsTable_NoLinks(t *testing.T) {
	findings := []output.EnrichedFinding{
		ef("x.py", 5, "ISSUE-X", "Issue X", rule.SeverityError, nil),
	}
	var sb strings.Builder
	writeFindingsTable(&sb, findings, "")

	result := sb.String()
	assert.Contains(t, result, "### Findings")
	assert.Contains(t, result, "| Severity | File | Line | Issue |")
	assert.Contains(t, result, "| `x.py` | 5 | Issue X |")
	assert.NotContains(t, result, "\xf0\x9f\x94\x97") // No link emoji.
}

func TestWriteFindingsTable_WithLinks(t *testing.T) {
	findings := []output.EnrichedFinding{
		ef("app/views.py", 42, "SQLI", "SQL Injection", rule.SeverityCritical, nil),
	}
	var sb strings.Builder
	writeFindingsTable(&sb, findings, "https://github.com/owner/repo/blob/abc123")

	result := sb.String()
	assert.Contains(t, result, "| Severity | File | Line | Issue | |")
	assert.Contains(t, result, "https://github.com/owner/repo/blob/abc123/app/views.py#L42")
	assert.Contains(t, result, "\xf0\x9f\x94\x97") // Link emoji.
}
