package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codalyze/sastcore/analytics"
	"github.com/codalyze/sastcore/dataflow"
	"github.com/codalyze/sastcore/diagnostic"
	"github.com/codalyze/sastcore/diff"
	"github.com/codalyze/sastcore/github"
	"github.com/codalyze/sastcore/match"
	"github.com/codalyze/sastcore/output"
	"github.com/codalyze/sastcore/parseradapter"
	"github.com/codalyze/sastcore/pattern"
	"github.com/codalyze/sastcore/rule"
	"github.com/spf13/cobra"
)

// prFlags holds the CLI flags for PR commenting.
type prFlags struct {
	Token    string
	Repo     string // "owner/repo" format
	PRNumber int
	Comment  bool
	Inline   bool
}

var ciCmd = &cobra.Command{
	Use:   "ci",
	Short: "CI mode with SARIF, JSON, or CSV output for CI/CD integration",
	Long: `CI mode for integrating security scans into CI/CD pipelines.

Outputs results in SARIF, JSON, or CSV format for consumption by CI tools.
Diff-aware by default: only findings in files changed since the detected
base ref are reported.

Examples:
  # Generate SARIF report with a single rules file
  sastcore ci --rules rules/owasp_top10.yml --project . --output sarif > results.sarif

  # Generate SARIF report with a rules directory
  sastcore ci --rules rules/ --project . --output sarif > results.sarif

  # Use remote rulesets
  sastcore ci --ruleset go/security --project . --output sarif

  # Write output to file
  sastcore ci --ruleset go/security --project . --output sarif --output-file results.sarif

  # Generate JSON report
  sastcore ci --rules rules/owasp_top10.yml --project . --output json > results.json

  # Generate CSV report
  sastcore ci --rules rules/owasp_top10.yml --project . --output csv > results.csv

  # Post PR comments on GitHub
  sastcore ci --ruleset go/security --project . --output sarif \
    --github-token $GITHUB_TOKEN --github-repo owner/repo --github-pr 42 \
    --pr-comment --pr-inline`,
	RunE: func(cmd *cobra.Command, args []string) error {
		startTime := time.Now()
		rulesPath, _ := cmd.Flags().GetString("rules")
		rulesetSpecs, _ := cmd.Flags().GetStringArray("ruleset")
		refreshRules, _ := cmd.Flags().GetBool("refresh-rules")
		projectPath, _ := cmd.Flags().GetString("project")
		outputFormat, _ := cmd.Flags().GetString("output")
		outputFile, _ := cmd.Flags().GetString("output-file")
		verbose, _ := cmd.Flags().GetBool("verbose")
		debug, _ := cmd.Flags().GetBool("debug")
		failOnStr, _ := cmd.Flags().GetString("fail-on")
		skipTests, _ := cmd.Flags().GetBool("skip-tests")
		baseRef, _ := cmd.Flags().GetString("base")
		headRef, _ := cmd.Flags().GetString("head")
		noDiff, _ := cmd.Flags().GetBool("no-diff")
		reportPath, _ := cmd.Flags().GetString("report-path")

		// GitHub PR commenting flags.
		var prOpts prFlags
		prOpts.Token, _ = cmd.Flags().GetString("github-token")
		prOpts.Repo, _ = cmd.Flags().GetString("github-repo")
		prOpts.PRNumber, _ = cmd.Flags().GetInt("github-pr")
		prOpts.Comment, _ = cmd.Flags().GetBool("pr-comment")
		prOpts.Inline, _ = cmd.Flags().GetBool("pr-inline")

		// Track CI started event (no PII, just metadata)
		analytics.ReportEventWithProperties(analytics.CIStarted, map[string]interface{}{
			"output_format":     outputFormat,
			"skip_tests":        skipTests,
			"has_local_rules":   rulesPath != "",
			"has_remote_rules":  len(rulesetSpecs) > 0,
			"remote_rule_count": len(rulesetSpecs),
		})

		// Setup logger with appropriate verbosity
		verbosity := output.VerbosityDefault
		if debug {
			verbosity = output.VerbosityDebug
		} else if verbose {
			verbosity = output.VerbosityVerbose
		}
		logger := output.NewLogger(verbosity)

		// Display banner if appropriate
		noBanner, _ := cmd.Flags().GetBool("no-banner")
		if output.ShouldShowBanner(logger.IsTTY(), noBanner) {
			output.PrintBanner(logger.GetWriter(), Version, output.DefaultBannerOptions())
		} else if logger.IsTTY() && !noBanner {
			fmt.Fprintln(logger.GetWriter(), output.GetCompactBanner(Version))
		}

		// Parse and validate --fail-on severities
		failOn := output.ParseFailOn(failOnStr)
		if len(failOn) > 0 {
			if err := output.ValidateSeverities(failOn); err != nil {
				return err
			}
		}

		if rulesPath == "" && len(rulesetSpecs) == 0 {
			analytics.ReportEventWithProperties(analytics.CIFailed, map[string]interface{}{
				"error_type": "validation",
				"phase":      "initialization",
			})
			return fmt.Errorf("either --rules or --ruleset flag is required")
		}

		if projectPath == "" {
			analytics.ReportEventWithProperties(analytics.CIFailed, map[string]interface{}{
				"error_type": "validation",
				"phase":      "initialization",
			})
			return fmt.Errorf("--project flag is required")
		}

		if outputFormat != "sarif" && outputFormat != "json" && outputFormat != "csv" {
			analytics.ReportEventWithProperties(analytics.CIFailed, map[string]interface{}{
				"error_type": "validation",
				"phase":      "initialization",
			})
			return fmt.Errorf("--output must be 'sarif', 'json', or 'csv'")
		}

		// Validate PR commenting flags early.
		if prOpts.Comment || prOpts.Inline {
			if prOpts.Token == "" {
				return fmt.Errorf("--github-token is required for PR commenting")
			}
			if prOpts.Repo == "" {
				return fmt.Errorf("--github-repo is required for PR commenting")
			}
			if prOpts.PRNumber <= 0 {
				return fmt.Errorf("--github-pr must be a positive number")
			}
			if _, _, err := github.ParseRepo(prOpts.Repo); err != nil {
				return err
			}
		}

		// Handle remote ruleset downloads and merge with local rules.
		finalRulesPath, tempDir, err := prepareRules(rulesPath, rulesetSpecs, refreshRules, logger)
		if err != nil {
			analytics.ReportEventWithProperties(analytics.CIFailed, map[string]interface{}{
				"error_type": "rule_preparation",
				"phase":      "initialization",
			})
			return fmt.Errorf("failed to prepare rules: %w", err)
		}
		if tempDir != "" {
			defer func() {
				if err := os.RemoveAll(tempDir); err != nil {
					logger.Warning("Failed to clean up temporary directory: %v", err)
				}
			}()
		}
		rulesPath = finalRulesPath

		absProjectPath, err := filepath.Abs(projectPath)
		if err != nil {
			return fmt.Errorf("failed to resolve project path: %w", err)
		}
		projectPath = absProjectPath

		// Diff-aware scanning (on by default in CI mode, with a graceful
		// fallback to a full scan on any resolution failure).
		var changedFiles []string
		diffEnabled := !noDiff
		if diffEnabled {
			if baseRef == "" {
				baseRef = diff.ResolveBaseRef()
			}
			if baseRef == "" {
				logger.Progress("No baseline ref detected, running full scan")
				diffEnabled = false
			}
		}
		if diffEnabled {
			if err := diff.ValidateGitRef(projectPath, baseRef); err != nil {
				logger.Warning("Invalid base ref %q: %v (running full scan)", baseRef, err)
				diffEnabled = false
			}
		}
		if diffEnabled {
			files, err := diff.ComputeChangedFiles(baseRef, headRef, projectPath)
			if err != nil {
				logger.Warning("Failed to compute changed files: %v (showing all findings)", err)
				diffEnabled = false
			} else {
				changedFiles = files
				logger.Progress("Changed files: %d", len(changedFiles))
			}
		}

		// Step 1: Load rule documents
		logger.StartProgress("Loading rules", -1)
		rules, err := loadRuleDocuments(rulesPath)
		logger.FinishProgress()
		if err != nil {
			analytics.ReportEventWithProperties(analytics.CIFailed, map[string]interface{}{
				"error_type": "rule_loading",
				"phase":      "rule_loading",
			})
			return fmt.Errorf("failed to load rules: %w", err)
		}
		if len(rules) == 0 {
			analytics.ReportEventWithProperties(analytics.CIFailed, map[string]interface{}{
				"error_type": "no_rules",
				"phase":      "rule_loading",
			})
			return fmt.Errorf("no rules loaded from %s", rulesPath)
		}
		logger.Statistic("Loaded %d rules", len(rules))

		// Step 2: Discover scannable source files via the registered parser adapters
		adapters := parseradapter.NewRegistry()
		adapters.Register(parseradapter.NewGoAdapter())

		sourceFiles, err := discoverSourceFiles(projectPath, adapters, skipTests)
		if err != nil {
			analytics.ReportEventWithProperties(analytics.CIFailed, map[string]interface{}{
				"error_type": "walk_failed",
				"phase":      "parsing",
			})
			return fmt.Errorf("failed to walk project: %w", err)
		}
		if len(sourceFiles) == 0 {
			analytics.ReportEventWithProperties(analytics.CIFailed, map[string]interface{}{
				"error_type": "empty_project",
				"phase":      "parsing",
			})
			return fmt.Errorf("no source files found in project")
		}
		logger.Statistic("Found %d source file(s) across %d language(s)", len(sourceFiles), len(adapters.Languages()))

		// Step 3: Build a shared rule engine, wired to the data-flow core for taint rules
		cache := pattern.NewCache(pattern.DefaultCacheSize)
		matchConfig := match.NewConfig()
		classifyEngine := rule.NewEngine(rule.WithPatternCache(cache), rule.WithMatchConfig(matchConfig))
		dataflowRunner := dataflow.NewRunner(dataflow.WithEngine(classifyEngine), dataflow.WithConfig(dataflow.NewConfig()))
		engine := rule.NewEngine(
			rule.WithPatternCache(cache),
			rule.WithMatchConfig(matchConfig),
			rule.WithDataflowRunner(dataflowRunner),
		)

		// Step 4: Execute every rule against every parsed file
		enricher := output.NewEnricher(&output.OutputOptions{
			ProjectRoot:  projectPath,
			ContextLines: 3,
			Verbosity:    verbosity,
		})

		ctx := context.Background()
		var allFindings []rule.Finding
		var scanErrors []string
		hadErrors := false
		execReport := &diagnostic.ExecutionReport{}

		totalExecutions := len(rules) * len(sourceFiles)
		logger.StartProgress("Executing rules", totalExecutions)
		for _, sf := range sourceFiles {
			src, err := os.ReadFile(sf.path)
			if err != nil {
				errMsg := fmt.Sprintf("Failed to read %s: %v", sf.path, err)
				logger.Warning("%s", errMsg)
				scanErrors = append(scanErrors, errMsg)
				hadErrors = true
				logger.UpdateProgress(len(rules))
				continue
			}

			root, err := sf.adapter.Parse(ctx, sf.path, src)
			if err != nil {
				logger.Debug("Failed to parse %s: %v", sf.path, err)
				hadErrors = true
				logger.UpdateProgress(len(rules))
				continue
			}

			ectx := rule.ExecutionContext{FilePath: sf.path, Language: sf.adapter.Language()}
			for _, r := range rules {
				result := engine.Execute(r, root, ectx)
				execReport.Record(result)
				if result.Error != "" {
					errMsg := fmt.Sprintf("Error executing rule %s on %s: %v", r.ID, sf.path, result.Error)
					logger.Warning("%s", errMsg)
					scanErrors = append(scanErrors, errMsg)
					hadErrors = true
				}
				allFindings = append(allFindings, result.Findings...)
				logger.UpdateProgress(1)
			}
		}
		logger.FinishProgress()

		if reportPath != "" {
			if err := diagnostic.WriteJSONReport(execReport, reportPath); err != nil {
				logger.Warning("Failed to write execution report: %v", err)
			} else {
				logger.Progress("Wrote rule execution report to %s", reportPath)
			}
		}
		logger.RuleFailureSummary(execReport)

		allEnriched := enricher.EnrichAll(allFindings)

		// Apply diff filter when diff-aware mode is active.
		if diffEnabled && len(changedFiles) > 0 {
			totalBefore := len(allEnriched)
			diffFilter := output.NewDiffFilter(changedFiles)
			allEnriched = diffFilter.Filter(allEnriched)
			logger.Progress("Diff filter: %d/%d findings in changed files", len(allEnriched), totalBefore)
		}

		uniqueRules := make(map[string]bool)
		for _, r := range rules {
			uniqueRules[r.ID] = true
		}
		totalRules := len(uniqueRules)

		// Count unique source files. When diff-aware, only count changed files.
		var filesScanned int
		if diffEnabled && len(changedFiles) > 0 {
			filesScanned = len(changedFiles)
		} else {
			filesScanned = len(sourceFiles)
		}

		logger.Statistic("Scan complete. Found %d vulnerabilities", len(allEnriched))
		logger.Progress("Generating %s output...", outputFormat)

		// Setup output writer (file or stdout).
		var outputWriter *os.File
		if outputFile != "" {
			outputWriter, err = os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer outputWriter.Close()
			logger.Progress("Writing output to %s", outputFile)
		}

		// Generate output.
		switch outputFormat {
		case "sarif":
			var formatter *output.SARIFFormatter
			if outputWriter != nil {
				formatter = output.NewSARIFFormatterWithWriter(outputWriter, nil)
			} else {
				formatter = output.NewSARIFFormatter(nil)
			}
			if err := formatter.Format(allEnriched); err != nil {
				return fmt.Errorf("failed to format SARIF output: %w", err)
			}
		case "json":
			summary := output.BuildSummary(allEnriched, totalRules)
			scanInfo := output.ScanInfo{
				Target:        projectPath,
				Version:       Version,
				RulesExecuted: totalRules,
				Errors:        scanErrors,
			}
			var formatter *output.JSONFormatter
			if outputWriter != nil {
				formatter = output.NewJSONFormatterWithWriter(outputWriter, nil)
			} else {
				formatter = output.NewJSONFormatter(nil)
			}
			if err := formatter.Format(allEnriched, summary, scanInfo); err != nil {
				return fmt.Errorf("failed to format JSON output: %w", err)
			}
		case "csv":
			var formatter *output.CSVFormatter
			if outputWriter != nil {
				formatter = output.NewCSVFormatterWithWriter(outputWriter, nil)
			} else {
				formatter = output.NewCSVFormatter(nil)
			}
			if err := formatter.Format(allEnriched); err != nil {
				return fmt.Errorf("failed to format CSV output: %w", err)
			}
		default:
			return fmt.Errorf("unknown output format: %s", outputFormat)
		}

		if outputWriter != nil {
			logger.Progress("Successfully wrote results to %s", outputFile)
		}

		// Post PR comments if configured.
		if prOpts.Comment || prOpts.Inline {
			owner, repo, _ := github.ParseRepo(prOpts.Repo) // Already validated.
			client := github.NewClient(prOpts.Token, owner, repo)
			ghOpts := github.PRCommentOptions{
				PRNumber: prOpts.PRNumber,
				Comment:  prOpts.Comment,
				Inline:   prOpts.Inline,
			}
			metrics := github.ScanMetrics{
				FilesScanned:  filesScanned,
				RulesExecuted: totalRules,
			}
			if err := github.PostPRComments(client, ghOpts, allEnriched, metrics, logger.Progress); err != nil {
				logger.Warning("Failed to post PR comments: %v", err)
			}
		}

		// Determine exit code based on findings and --fail-on flag
		exitCode := output.DetermineExitCode(allEnriched, failOn, hadErrors)

		// Track CI completion with results (no PII, just counts and metadata)
		severityBreakdown := make(map[string]int)
		for _, ef := range allEnriched {
			severityBreakdown[string(ef.Finding.Severity)]++
		}

		analytics.ReportEventWithProperties(analytics.CICompleted, map[string]interface{}{
			"duration_ms":        time.Since(startTime).Milliseconds(),
			"rules_count":        totalRules,
			"findings_count":     len(allEnriched),
			"diff_aware":         diffEnabled,
			"diff_changed_files": len(changedFiles),
			"severity_critical":  severityBreakdown["critical"],
			"severity_error":     severityBreakdown["error"],
			"severity_warning":   severityBreakdown["warning"],
			"severity_info":      severityBreakdown["info"],
			"output_format":      outputFormat,
			"exit_code":          int(exitCode),
			"had_errors":         hadErrors,
		})

		if exitCode != output.ExitCodeSuccess {
			osExit(int(exitCode))
		}

		return nil
	},
}

// Variable to allow mocking os.Exit in tests.
var osExit = os.Exit

func init() {
	rootCmd.AddCommand(ciCmd)
	ciCmd.Flags().StringP("rules", "r", "", "Path to a YAML rules file or directory")
	ciCmd.Flags().StringArray("ruleset", []string{}, "Ruleset bundle (e.g., go/security) or individual rule ID (e.g., go/GO-SEC-001). Can be specified multiple times.")
	ciCmd.Flags().Bool("refresh-rules", false, "Force refresh of cached rulesets")
	ciCmd.Flags().StringP("project", "p", "", "Path to project directory to scan (required)")
	ciCmd.Flags().StringP("output", "o", "sarif", "Output format: sarif, json, or csv (default: sarif)")
	ciCmd.Flags().StringP("output-file", "f", "", "Write output to file instead of stdout")
	ciCmd.Flags().BoolP("verbose", "v", false, "Show statistics and timing information")
	ciCmd.Flags().Bool("debug", false, "Show detailed debug diagnostics with file-level progress and timestamps")
	ciCmd.Flags().String("fail-on", "", "Fail with exit code 1 if findings match severities (e.g., critical,error)")
	ciCmd.Flags().Bool("skip-tests", true, "Skip test files (_test.go, test_*.py, *_test.py, etc.)")
	ciCmd.Flags().String("base", "", "Base git ref for diff-aware scanning (auto-detected in CI)")
	ciCmd.Flags().String("head", "HEAD", "Head git ref for diff-aware scanning")
	ciCmd.Flags().Bool("no-diff", false, "Disable diff-aware scanning (scan all files)")
	ciCmd.Flags().String("github-token", "", "GitHub API token for posting PR comments")
	ciCmd.Flags().String("github-repo", "", "GitHub repository in owner/repo format")
	ciCmd.Flags().Int("github-pr", 0, "Pull request number for posting comments")
	ciCmd.Flags().Bool("pr-comment", false, "Post summary comment on the pull request")
	ciCmd.Flags().Bool("pr-inline", false, "Post inline review comments for critical/error findings")
	ciCmd.Flags().String("report-path", "", "Write a JSON rule execution report (per-rule success/error/timeout status) to this path")
	ciCmd.MarkFlagRequired("project")
}
