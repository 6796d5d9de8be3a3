package diff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/codalyze/sastcore/github"
)

const (
	// githubAPIBaseURL is the base URL for the GitHub REST API.
	githubAPIBaseURL = "https://api.github.com"

	// githubPerPage is the maximum items per page for GitHub API pagination.
	githubPerPage = 100

	// githubTimeout is the HTTP request timeout for GitHub API calls.
	githubTimeout = 30 * time.Second

	// githubMaxRateLimitRetries bounds how many times fetchPage backs off and
	// retries a page after hitting an exhausted rate limit, so a very distant
	// reset time can't stall the scan indefinitely.
	githubMaxRateLimitRetries = 2
)

// GitHubAPIDiffProvider gets changed files from the GitHub Pull Request API.
// This is preferred over git-based diff because it handles edge cases better:
// works with shallow clones, immune to merge commit confusion, and returns
// the same file list as GitHub's "Files changed" tab.
type GitHubAPIDiffProvider struct {
	// Token is the GitHub API token for authentication.
	Token string

	// Owner is the GitHub repository owner.
	Owner string

	// Repo is the GitHub repository name.
	Repo string

	// PRNumber is the pull request number.
	PRNumber int

	// BaseURL overrides the GitHub API base URL (for testing).
	BaseURL string
}

// pullRequestFile represents a file in a GitHub pull request API response.
type pullRequestFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"` // "added", "modified", "removed", "renamed", "copied", "changed", "unchanged".
}

// GetChangedFiles returns relative file paths changed in the pull request.
// It calls the GitHub PR files endpoint with pagination and filters out removed files.
// A page that comes back rate-limited is retried after waiting for the reset
// time, up to githubMaxRateLimitRetries times, rather than failing the whole
// diff computation over a transient quota hit.
func (p *GitHubAPIDiffProvider) GetChangedFiles() ([]string, error) {
	var allFiles []string
	page := 1

	for {
		files, hasMore, err := p.fetchPageWithRetry(page)
		if err != nil {
			return nil, err
		}

		for _, f := range files {
			// Exclude removed files — they no longer exist in the PR head.
			if f.Status != "removed" {
				allFiles = append(allFiles, f.Filename)
			}
		}

		if !hasMore {
			break
		}
		page++
	}

	return allFiles, nil
}

// fetchPageWithRetry wraps fetchPage, retrying after a wait when the response
// is a rate-limit error with a usable reset time.
func (p *GitHubAPIDiffProvider) fetchPageWithRetry(page int) ([]pullRequestFile, bool, error) {
	var lastErr error
	for attempt := 0; attempt <= githubMaxRateLimitRetries; attempt++ {
		files, hasMore, err := p.fetchPage(page)
		if err == nil {
			return files, hasMore, nil
		}

		var rl *github.RateLimitError
		if !errors.As(err, &rl) || rl.ResetAt.IsZero() {
			return nil, false, err
		}
		lastErr = err

		if attempt == githubMaxRateLimitRetries {
			break
		}
		if wait := time.Until(rl.ResetAt); wait > 0 {
			time.Sleep(wait)
		}
	}

	return nil, false, lastErr
}

// fetchPage fetches a single page of PR files from the GitHub API.
// Returns the files, whether there are more pages, and any error.
func (p *GitHubAPIDiffProvider) fetchPage(page int) ([]pullRequestFile, bool, error) {
	baseURL := p.BaseURL
	if baseURL == "" {
		baseURL = githubAPIBaseURL
	}

	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d",
		baseURL, p.Owner, p.Repo, p.PRNumber, githubPerPage, page)

	ctx, cancel := context.WithTimeout(context.Background(), githubTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create GitHub API request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+p.Token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("GitHub API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if rl := rateLimitFromResponse(resp); rl != nil {
			return nil, false, rl
		}
		body, _ := io.ReadAll(resp.Body)
		return nil, false, fmt.Errorf("GitHub API returned status %d: %s", resp.StatusCode, string(body))
	}

	var files []pullRequestFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, false, fmt.Errorf("failed to decode GitHub API response: %w", err)
	}

	// Check for more pages via Link header.
	hasMore := hasNextPage(resp.Header.Get("Link"))

	return files, hasMore, nil
}

// rateLimitFromResponse returns a *github.RateLimitError when resp carries
// GitHub's rate-limit headers with an exhausted quota, mirroring the
// detection the github package applies to its own REST calls; nil otherwise
// so fetchPage falls back to a plain status error.
func rateLimitFromResponse(resp *http.Response) *github.RateLimitError {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "0" {
		return nil
	}
	var resetAt time.Time
	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		if unix, err := strconv.ParseInt(reset, 10, 64); err == nil {
			resetAt = time.Unix(unix, 0)
		}
	}
	return &github.RateLimitError{StatusCode: resp.StatusCode, ResetAt: resetAt}
}

// linkNextRe matches the "next" relation in a GitHub Link header.
var linkNextRe = regexp.MustCompile(`<[^>]+>;\s*rel="next"`)

// hasNextPage checks if the Link header indicates more pages.
func hasNextPage(linkHeader string) bool {
	if linkHeader == "" {
		return false
	}
	return linkNextRe.MatchString(linkHeader)
}
