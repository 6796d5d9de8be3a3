package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/codalyze/sastcore/output"
	"github.com/codalyze/sastcore/rule"
)

// ReviewManager handles posting inline review comments on a PR.
type ReviewManager struct {
	client    *Client
	prNumber  int
	commitSHA string
}

// NewReviewManager creates a review manager for the given PR and commit.
func NewReviewManager(client *Client, prNumber int, commitSHA string) *ReviewManager {
	return &ReviewManager{
		client:    client,
		prNumber:  prNumber,
		commitSHA: commitSHA,
	}
}

// PostInlineComments posts inline review comments for critical and error findings.
// Findings are batched into a single review request (atomic).
// Existing comments with matching markers are updated; new ones are created.
func (rm *ReviewManager) PostInlineComments(ctx context.Context, findings []output.EnrichedFinding) error {
	// Filter to inline-eligible findings.
	eligible := filterEligible(findings)
	if len(eligible) == 0 {
		return nil
	}

	// Fetch existing review comments for marker comparison.
	existing, err := rm.client.ListReviewComments(ctx, rm.prNumber)
	if err != nil {
		return fmt.Errorf("list existing review comments: %w", err)
	}
	existingByMarker := indexByMarker(existing)

	// Separate findings into updates vs new comments.
	newComments := make([]ReviewCommentInput, 0, len(eligible))
	for _, ef := range eligible {
		marker := ReviewCommentMarker(ef)
		body := FormatInlineComment(ef)

		if commentID, ok := existingByMarker[marker]; ok {
			// Update existing review comment in-place (uses pulls/comments endpoint).
			if _, err := rm.client.UpdateReviewComment(ctx, commentID, body); err != nil {
				return fmt.Errorf("update inline comment: %w", err)
			}
			continue
		}

		newComments = append(newComments, ReviewCommentInput{
			Path: ef.RelPath,
			Line: ef.Finding.Location.StartLine,
			Side: "RIGHT",
			Body: body,
		})
	}

	// Post new comments as a single atomic review.
	if len(newComments) > 0 {
		if err := rm.client.CreateReview(ctx, rm.prNumber, rm.commitSHA, "", newComments); err != nil {
			return fmt.Errorf("create review: %w", err)
		}
	}

	return nil
}

// ShouldPostInline returns true if the severity warrants an inline comment.
// Only critical and error findings get inline comments; warning and info go in the summary only.
func ShouldPostInline(severity rule.Severity) bool {
	return severity == rule.SeverityCritical || severity == rule.SeverityError
}

// ReviewCommentMarker generates a hidden HTML marker for a finding.
// Used to match existing comments for update-in-place.
func ReviewCommentMarker(ef output.EnrichedFinding) string {
	return fmt.Sprintf("<!-- cpf-%s-%s-%d -->", ef.Finding.RuleID, ef.RelPath, ef.Finding.Location.StartLine)
}

// FormatInlineComment builds the markdown body for a single inline comment.
func FormatInlineComment(ef output.EnrichedFinding) string {
	var sb strings.Builder

	// Severity + rule header.
	sb.WriteString(fmt.Sprintf("%s **%s**\n\n", severityEmoji(ef.Finding.Severity), ef.Finding.RuleID))

	// Message.
	if ef.Finding.Message != "" {
		sb.WriteString(ef.Finding.Message)
		sb.WriteString("\n\n")
	}

	// Taint flow, for findings produced by the data-flow/taint core.
	if ef.Finding.Metadata["analysis_type"] == "dataflow" {
		writeTaintFlow(&sb, ef)
	}

	// CWE and OWASP references.
	writeReferences(&sb, ef.Finding.Metadata["cwe"], ef.Finding.Metadata["owasp"])

	// Hidden marker for update-in-place.
	// Trim trailing whitespace to avoid excess blank lines.
	body := strings.TrimRight(sb.String(), "\n")
	return body + "\n\n" + ReviewCommentMarker(ef) + "\n"
}

// filterEligible returns only critical and error findings with valid locations.
func filterEligible(findings []output.EnrichedFinding) []output.EnrichedFinding {
	result := make([]output.EnrichedFinding, 0, len(findings))
	for _, ef := range findings {
		if ShouldPostInline(ef.Finding.Severity) && ef.RelPath != "" && ef.Finding.Location.StartLine > 0 {
			result = append(result, ef)
		}
	}
	return result
}

// indexByMarker builds a map from marker string to comment ID for existing comments.
func indexByMarker(comments []*ReviewComment) map[string]int64 {
	m := make(map[string]int64, len(comments))
	for _, c := range comments {
		// Extract marker from comment body.
		if idx := strings.Index(c.Body, "<!-- cpf-"); idx != -1 {
			end := strings.Index(c.Body[idx:], "-->")
			if end != -1 {
				marker := c.Body[idx : idx+end+3]
				m[marker] = c.ID
			}
		}
	}
	return m
}

// writeTaintFlow writes the source -> sink flow section using the flat
// metadata the dataflow runner stamps on a Finding (there is no separate
// taint-path node list — see dataflow.Runner.toRuleFlow).
func writeTaintFlow(sb *strings.Builder, ef output.EnrichedFinding) {
	source := ef.Finding.Metadata["source_location"]
	if source == "" {
		return
	}
	sink := fmt.Sprintf("%s:%d", ef.RelPath, ef.Finding.Location.StartLine)

	sb.WriteString("**Flow:**\n")
	sb.WriteString(fmt.Sprintf("- Source: `%s`\n", source))
	sb.WriteString(fmt.Sprintf("- Sink: `%s`\n", sink))
	if vulnTypes := ef.Finding.Metadata["vulnerability_types"]; vulnTypes != "" {
		sb.WriteString(fmt.Sprintf("- Tainted data (%s) reaches this sink without sanitization\n", vulnTypes))
	}
	sb.WriteString("\n")
}

// writeReferences writes the CWE and OWASP reference line. cwe and owasp are
// comma-joined strings as stored in Finding.Metadata.
func writeReferences(sb *strings.Builder, cwe, owasp string) {
	parts := make([]string, 0, 2)
	if cwe != "" {
		parts = append(parts, strings.ReplaceAll(cwe, ",", ", "))
	}
	if owasp != "" {
		parts = append(parts, strings.ReplaceAll(owasp, ",", ", "))
	}
	if len(parts) > 0 {
		sb.WriteString(strings.Join(parts, " · "))
		sb.WriteString("\n")
	}
}
