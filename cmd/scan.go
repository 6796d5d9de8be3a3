package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codalyze/sastcore/analytics"
	"github.com/codalyze/sastcore/dataflow"
	"github.com/codalyze/sastcore/diagnostic"
	"github.com/codalyze/sastcore/diff"
	"github.com/codalyze/sastcore/match"
	"github.com/codalyze/sastcore/output"
	"github.com/codalyze/sastcore/parseradapter"
	"github.com/codalyze/sastcore/pattern"
	"github.com/codalyze/sastcore/rule"
	"github.com/codalyze/sastcore/ruleset"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan code for security vulnerabilities using YAML rules",
	Long: `Scan a codebase with declarative YAML security rules.

Examples:
  # Scan with a single rules file
  sastcore scan --rules rules/owasp_top10.yml --project /path/to/project

  # Scan with a directory of rules
  sastcore scan --rules rules/ --project /path/to/project

  # Scan with a remote ruleset bundle
  sastcore scan --ruleset go/security --project /path/to/project

  # Scan with an individual rule by ID
  sastcore scan --ruleset go/GO-SEC-001 --project /path/to/project

  # Scan with multiple individual rules
  sastcore scan --ruleset go/GO-SEC-001 --ruleset go/GO-SEC-002 --project .

  # Mix bundles, individual rules, and local rules
  sastcore scan --rules rules/ --ruleset go/security --ruleset go/GO-SEC-042 --project .

  # Output to JSON file
  sastcore scan --ruleset go/security --project . --output json --output-file results.json

  # SARIF output for CI/CD integration
  sastcore scan --ruleset go/security --project . --output sarif --output-file results.sarif`,
	// Note: The main RunE logic is covered by integration tests in exit_code_integration_test.go.
	// Unit testing cobra commands requires complex mocking of the filesystem and parser
	// adapters; integration tests provide better coverage for the full execution path.
	RunE: func(cmd *cobra.Command, args []string) error {
		startTime := time.Now()
		rulesPath, _ := cmd.Flags().GetString("rules")
		rulesetSpecs, _ := cmd.Flags().GetStringArray("ruleset")
		refreshRules, _ := cmd.Flags().GetBool("refresh-rules")
		projectPath, _ := cmd.Flags().GetString("project")
		verbose, _ := cmd.Flags().GetBool("verbose")
		debug, _ := cmd.Flags().GetBool("debug")
		failOnStr, _ := cmd.Flags().GetString("fail-on")
		outputFormat, _ := cmd.Flags().GetString("output")
		outputFile, _ := cmd.Flags().GetString("output-file")
		skipTests, _ := cmd.Flags().GetBool("skip-tests")
		diffAware, _ := cmd.Flags().GetBool("diff-aware")
		baseRef, _ := cmd.Flags().GetString("base")
		headRef, _ := cmd.Flags().GetString("head")
		reportPath, _ := cmd.Flags().GetString("report-path")

		// Track scan started event (no PII, just metadata)
		analytics.ReportEventWithProperties(analytics.ScanStarted, map[string]interface{}{
			"output_format":     outputFormat,
			"has_local_rules":   rulesPath != "",
			"has_remote_rules":  len(rulesetSpecs) > 0,
			"remote_rule_count": len(rulesetSpecs),
			"skip_tests":        skipTests,
		})

		// Validate that at least one rule source is provided
		if len(rulesetSpecs) == 0 && rulesPath == "" {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
				"error_type": "validation",
				"phase":      "initialization",
			})
			return fmt.Errorf("either --rules or --ruleset flag is required")
		}

		if projectPath == "" {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
				"error_type": "validation",
				"phase":      "initialization",
			})
			return fmt.Errorf("--project flag is required")
		}

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

		// Handle remote ruleset downloads and merge with local rules
		finalRulesPath, tempDir, err := prepareRules(rulesPath, rulesetSpecs, refreshRules, logger)
		if err != nil {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
				"error_type": "rule_preparation",
				"phase":      "initialization",
			})
			return fmt.Errorf("failed to prepare rules: %w", err)
		}
		// Clean up temporary directory if created
		if tempDir != "" {
			defer func() {
				if err := os.RemoveAll(tempDir); err != nil {
					logger.Warning("Failed to clean up temporary directory: %v", err)
				}
			}()
		}

		// Use the prepared rules path for scanning
		rulesPath = finalRulesPath

		if outputFormat != "" && outputFormat != "text" && outputFormat != "json" && outputFormat != "sarif" && outputFormat != "csv" {
			return fmt.Errorf("--output must be 'text', 'json', 'sarif', or 'csv'")
		}

		// Convert project path to absolute path to ensure consistency
		absProjectPath, err := filepath.Abs(projectPath)
		if err != nil {
			return fmt.Errorf("failed to resolve project path: %w", err)
		}
		projectPath = absProjectPath

		// Diff-aware scanning (opt-in for scan command).
		var changedFiles []string
		if diffAware {
			if baseRef == "" {
				return fmt.Errorf("--base flag is required when --diff-aware is enabled")
			}
			if err := diff.ValidateGitRef(projectPath, baseRef); err != nil {
				return fmt.Errorf("invalid base ref %q: %w", baseRef, err)
			}
			files, err := diff.ComputeChangedFiles(baseRef, headRef, projectPath)
			if err != nil {
				return fmt.Errorf("failed to compute changed files: %w", err)
			}
			changedFiles = files
			logger.Progress("Changed files: %d", len(changedFiles))
		}

		// Step 1: Load rule documents
		logger.StartProgress("Loading rules", -1)
		rules, err := loadRuleDocuments(rulesPath)
		logger.FinishProgress()
		if err != nil {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
				"error_type": "rule_loading",
				"phase":      "rule_loading",
			})
			return fmt.Errorf("failed to load rules: %w", err)
		}
		if len(rules) == 0 {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
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
			return fmt.Errorf("failed to walk project: %w", err)
		}
		if len(sourceFiles) == 0 {
			analytics.ReportEventWithProperties(analytics.ScanFailed, map[string]interface{}{
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
		var scanErrors bool
		execReport := &diagnostic.ExecutionReport{}

		totalExecutions := len(rules) * len(sourceFiles)
		logger.StartProgress("Executing rules", totalExecutions)
		for _, sf := range sourceFiles {
			src, err := os.ReadFile(sf.path)
			if err != nil {
				logger.Warning("Failed to read %s: %v", sf.path, err)
				scanErrors = true
				logger.UpdateProgress(len(rules))
				continue
			}

			root, err := sf.adapter.Parse(ctx, sf.path, src)
			if err != nil {
				logger.Debug("Failed to parse %s: %v", sf.path, err)
				scanErrors = true
				logger.UpdateProgress(len(rules))
				continue
			}

			ectx := rule.ExecutionContext{FilePath: sf.path, Language: sf.adapter.Language()}
			for _, r := range rules {
				result := engine.Execute(r, root, ectx)
				execReport.Record(result)
				if result.Error != "" {
					logger.Warning("Error executing rule %s on %s: %v", r.ID, sf.path, result.Error)
					scanErrors = true
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
		if diffAware && len(changedFiles) > 0 {
			totalBefore := len(allEnriched)
			diffFilter := output.NewDiffFilter(changedFiles)
			allEnriched = diffFilter.Filter(allEnriched)
			logger.Progress("Diff filter: %d/%d findings in changed files", len(allEnriched), totalBefore)
		}

		// Step 5: Format and display results
		uniqueRules := make(map[string]bool)
		for _, r := range rules {
			uniqueRules[r.ID] = true
		}
		summary := output.BuildSummary(allEnriched, len(uniqueRules))

		// Default to text format if not specified
		if outputFormat == "" {
			outputFormat = "text"
		}

		logger.Progress("Generating %s output...", outputFormat)

		// Setup output writer (file or stdout)
		var outputWriter *os.File
		if outputFile != "" {
			var err error
			outputWriter, err = os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer outputWriter.Close()
			logger.Progress("Writing output to %s", outputFile)
		}

		// Generate output based on format
		switch outputFormat {
		case "text":
			formatter := output.NewTextFormatter(&output.OutputOptions{
				Verbosity: verbosity,
			}, logger)
			if err := formatter.Format(allEnriched, summary); err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
		case "json":
			scanInfo := output.ScanInfo{
				Target:        projectPath,
				Version:       Version,
				RulesExecuted: len(uniqueRules),
				Errors:        []string{},
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

		// Determine exit code based on findings and --fail-on flag
		exitCode := output.DetermineExitCode(allEnriched, failOn, scanErrors)

		// Track scan completion with results (no PII, just counts and metadata)
		severityBreakdown := make(map[string]int)
		for _, ef := range allEnriched {
			severityBreakdown[string(ef.Finding.Severity)]++
		}

		analytics.ReportEventWithProperties(analytics.ScanCompleted, map[string]interface{}{
			"duration_ms":        time.Since(startTime).Milliseconds(),
			"rules_count":        len(uniqueRules),
			"findings_count":     len(allEnriched),
			"diff_aware":         diffAware,
			"diff_changed_files": len(changedFiles),
			"severity_critical":  severityBreakdown["critical"],
			"severity_error":     severityBreakdown["error"],
			"severity_warning":   severityBreakdown["warning"],
			"severity_info":      severityBreakdown["info"],
			"output_format":      outputFormat,
			"exit_code":          int(exitCode),
			"had_errors":         scanErrors,
		})

		if exitCode != output.ExitCodeSuccess {
			os.Exit(int(exitCode))
		}

		return nil
	},
}

// sourceFile pairs a discovered path with the adapter that claimed it.
type sourceFile struct {
	path    string
	adapter parseradapter.Adapter
}

// discoverSourceFiles walks projectPath and returns every file claimed by
// one of the registry's adapters, skipping test files when skipTests is set.
func discoverSourceFiles(projectPath string, adapters *parseradapter.Registry, skipTests bool) ([]sourceFile, error) {
	var files []sourceFile
	err := filepath.Walk(projectPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if skipVendorDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if skipTests && isTestFile(info.Name()) {
			return nil
		}
		if a, ok := adapters.For(path); ok {
			files = append(files, sourceFile{path: path, adapter: a})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func skipVendorDir(name string) bool {
	switch name {
	case ".git", "vendor", "node_modules", ".sastcore":
		return true
	}
	return false
}

// isTestFile reports whether name looks like a test file in any of the
// languages the engine supports (Go's _test.go, Python's test_*.py /
// *_test.py, etc.) so --skip-tests behaves consistently across adapters.
func isTestFile(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(base, "_test") || strings.HasPrefix(base, "test_")
}

// loadRuleDocuments reads localRulesPath (a single YAML file or a
// directory of them) and returns every rule across all documents found.
func loadRuleDocuments(localRulesPath string) ([]*rule.Rule, error) {
	info, err := os.Stat(localRulesPath)
	if err != nil {
		return nil, fmt.Errorf("stat rules path: %w", err)
	}

	var files []string
	if info.IsDir() {
		err := filepath.Walk(localRulesPath, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() && (strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml")) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		files = []string{localRulesPath}
	}

	var all []*rule.Rule
	seen := make(map[string]bool)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		rules, err := rule.LoadRules(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		for _, r := range rules {
			if seen[r.ID] {
				return nil, fmt.Errorf("duplicate rule id %q across rule files", r.ID)
			}
			seen[r.ID] = true
			all = append(all, r)
		}
	}
	return all, nil
}

// findRulesDirectory locates the rules directory for resolving rule IDs.
// Looks in current directory, parent directories, and common locations.
func findRulesDirectory() string {
	// Check common locations
	candidates := []string{
		"rules",           // Current directory
		"../rules",        // Parent directory
		"../../rules",     // Grandparent
		filepath.Join(os.Getenv("HOME"), ".local", "share", "sastcore", "rules"),
		"/usr/local/share/sastcore/rules",
		"/opt/sastcore/rules",
	}

	for _, dir := range candidates {
		if absDir, err := filepath.Abs(dir); err == nil {
			if stat, err := os.Stat(absDir); err == nil && stat.IsDir() {
				return absDir
			}
		}
	}

	// Fallback to current directory + rules
	pwd, _ := os.Getwd()
	return filepath.Join(pwd, "rules")
}

// prepareRules downloads remote rulesets, resolves rule IDs, and merges with local rules if needed.
// Returns: (finalRulesPath, tempDirToCleanup, error).
func prepareRules(localRulesPath string, rulesetSpecs []string, refresh bool, logger *output.Logger) (string, string, error) {
	// Case 1: Only local rules - use directly
	if len(rulesetSpecs) == 0 {
		return localRulesPath, "", nil
	}

	// Separate ruleset specs into bundles and individual rule IDs
	var bundleSpecs []string
	var ruleIDSpecs []string

	for _, spec := range rulesetSpecs {
		parts := strings.Split(spec, "/")
		if len(parts) == 2 && ruleset.IsRuleID(parts[1]) {
			// This is a rule ID (e.g., go/GO-SEC-001)
			ruleIDSpecs = append(ruleIDSpecs, spec)
		} else {
			// This is a bundle (e.g., go/security) or category expansion (e.g., go/all)
			bundleSpecs = append(bundleSpecs, spec)
		}
	}

	// Expand "category/all" specs to individual bundle specs
	if len(bundleSpecs) > 0 {
		manifestLoader := ruleset.NewManifestLoader("https://assets.sastcore.dev/rules", getCacheDir())
		expanded, err := expandBundleSpecs(bundleSpecs, manifestLoader, logger)
		if err != nil {
			return "", "", err
		}
		bundleSpecs = expanded
	}

	// Download remote bundles
	var downloadedPaths []string
	if len(bundleSpecs) > 0 {
		config := &ruleset.DownloadConfig{
			BaseURL:       "https://assets.sastcore.dev/rules",
			CacheDir:      getCacheDir(),
			CacheTTL:      24 * time.Hour,
			ManifestTTL:   1 * time.Hour,
			HTTPTimeout:   30 * time.Second,
			RetryAttempts: 3,
		}

		downloader, err := ruleset.NewDownloader(config)
		if err != nil {
			return "", "", fmt.Errorf("failed to create downloader: %w", err)
		}
		defer downloader.Close()

		downloadedPaths = make([]string, 0, len(bundleSpecs))
		for _, spec := range bundleSpecs {
			if refresh {
				logger.Progress("Refreshing ruleset cache for %s...", spec)
				if err := downloader.RefreshCache(spec); err != nil {
					logger.Warning("Failed to invalidate cache for %s: %v", spec, err)
				}
			}

			path, err := downloader.Download(spec)
			if err != nil {
				return "", "", fmt.Errorf("failed to download ruleset %s: %w", spec, err)
			}
			downloadedPaths = append(downloadedPaths, path)
			logger.Progress("Downloaded ruleset: %s", spec)
		}
	}

	// Resolve individual rule IDs to file paths
	var resolvedRulePaths []string
	if len(ruleIDSpecs) > 0 {
		rulesBaseDir := findRulesDirectory()
		finder := ruleset.NewRuleFinder(rulesBaseDir)

		for _, spec := range ruleIDSpecs {
			ruleSpec, err := ruleset.ParseRuleSpec(spec)
			if err != nil {
				return "", "", fmt.Errorf("invalid rule spec %s: %w", spec, err)
			}

			if err := ruleSpec.Validate(); err != nil {
				return "", "", fmt.Errorf("invalid rule spec %s: %w", spec, err)
			}

			filePath, err := finder.FindRuleFile(ruleSpec)
			if err != nil {
				return "", "", fmt.Errorf("failed to find rule %s: %w", spec, err)
			}

			resolvedRulePaths = append(resolvedRulePaths, filePath)
			logger.Progress("Resolved rule %s → %s", spec, filepath.Base(filePath))
		}
	}

	// Calculate total sources
	totalSources := len(downloadedPaths) + len(resolvedRulePaths) + boolToInt(localRulesPath != "")

	// Case 2: Single source - use directly
	if totalSources == 1 {
		if localRulesPath != "" {
			return localRulesPath, "", nil
		}
		if len(downloadedPaths) == 1 {
			return downloadedPaths[0], "", nil
		}
		// Single resolved rule file - create temp dir with just that file
		tempDir, err := os.MkdirTemp("", "sastcore-rules-*")
		if err != nil {
			return "", "", fmt.Errorf("failed to create temp directory: %w", err)
		}
		if err := copyFile(resolvedRulePaths[0], filepath.Join(tempDir, filepath.Base(resolvedRulePaths[0]))); err != nil {
			os.RemoveAll(tempDir)
			return "", "", fmt.Errorf("failed to copy rule file: %w", err)
		}
		return tempDir, tempDir, nil
	}

	// Case 3: Multiple sources - need to merge
	tempDir, err := os.MkdirTemp("", "sastcore-rules-*")
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp directory: %w", err)
	}

	logger.Progress("Merging %d rule source(s)...", totalSources)

	// Copy local rules if provided
	if localRulesPath != "" {
		if err := copyRules(localRulesPath, tempDir, "local"); err != nil {
			os.RemoveAll(tempDir)
			return "", "", fmt.Errorf("failed to copy local rules: %w", err)
		}
	}

	// Copy downloaded bundles
	for i, path := range downloadedPaths {
		destName := fmt.Sprintf("remote-%d", i)
		if err := copyRules(path, tempDir, destName); err != nil {
			os.RemoveAll(tempDir)
			return "", "", fmt.Errorf("failed to copy remote ruleset: %w", err)
		}
	}

	// Copy individual resolved rule files
	for i, filePath := range resolvedRulePaths {
		destName := fmt.Sprintf("rule-%d", i)
		destPath := filepath.Join(tempDir, destName)
		if err := os.MkdirAll(destPath, 0755); err != nil {
			os.RemoveAll(tempDir)
			return "", "", fmt.Errorf("failed to create directory: %w", err)
		}
		destFile := filepath.Join(destPath, filepath.Base(filePath))
		if err := copyFile(filePath, destFile); err != nil {
			os.RemoveAll(tempDir)
			return "", "", fmt.Errorf("failed to copy rule file %s: %w", filePath, err)
		}
	}

	logger.Progress("Merged %d rule source(s)", totalSources)
	return tempDir, tempDir, nil
}

// copyRules copies YAML rule files from src to dest/subdir.
func copyRules(src, dest, subdir string) error {
	destDir := filepath.Join(dest, subdir)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	// Check if src is a file or directory
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	if srcInfo.IsDir() {
		// Copy all YAML files from directory
		entries, err := os.ReadDir(src)
		if err != nil {
			return fmt.Errorf("failed to read directory: %w", err)
		}

		for _, entry := range entries {
			if entry.IsDir() || !(strings.HasSuffix(entry.Name(), ".yml") || strings.HasSuffix(entry.Name(), ".yaml")) {
				continue
			}

			srcFile := filepath.Join(src, entry.Name())
			destFile := filepath.Join(destDir, entry.Name())
			if err := copyFile(srcFile, destFile); err != nil {
				return fmt.Errorf("failed to copy %s: %w", entry.Name(), err)
			}
		}
	} else {
		// Single file - copy directly
		destFile := filepath.Join(destDir, filepath.Base(src))
		if err := copyFile(src, destFile); err != nil {
			return fmt.Errorf("failed to copy file: %w", err)
		}
	}

	return nil
}

// expandBundleSpecs expands "category/all" specs into individual bundle specs.
// This function is extracted for testability with mock manifest providers.
func expandBundleSpecs(bundleSpecs []string, manifestProvider ruleset.ManifestProvider, logger *output.Logger) ([]string, error) {
	expandedBundleSpecs := make([]string, 0, len(bundleSpecs))

	for _, spec := range bundleSpecs {
		parsed, err := ruleset.ParseSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid ruleset spec %s: %w", spec, err)
		}

		// Check if this is a category expansion (bundle == "*")
		if parsed.Bundle == "*" {
			// Load category manifest to get all bundle names
			manifest, err := manifestProvider.LoadCategoryManifest(parsed.Category)
			if err != nil {
				return nil, fmt.Errorf("failed to load manifest for category %s: %w", parsed.Category, err)
			}

			// Expand to all bundles in category
			bundleNames := manifest.GetAllBundleNames()
			if len(bundleNames) == 0 {
				logger.Warning("Category %s has no bundles", parsed.Category)
				continue
			}

			logger.Progress("Expanding %s/all to %d bundles: %v", parsed.Category, len(bundleNames), bundleNames)

			for _, bundleName := range bundleNames {
				expandedBundleSpecs = append(expandedBundleSpecs, fmt.Sprintf("%s/%s", parsed.Category, bundleName))
			}
		} else {
			// Regular bundle spec, keep as-is
			expandedBundleSpecs = append(expandedBundleSpecs, spec)
		}
	}

	return expandedBundleSpecs, nil
}

// copyFile copies a single file from src to dest.
func copyFile(src, dest string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Close()
}

// boolToInt converts bool to int (0 or 1).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// getCacheDir returns platform-specific cache directory.
func getCacheDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	return filepath.Join(cacheDir, "sastcore", "rules")
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringP("rules", "r", "", "Path to a YAML rules file or directory")
	scanCmd.Flags().StringArray("ruleset", []string{}, "Ruleset bundle (e.g., go/security) or individual rule ID (e.g., go/GO-SEC-001). Can be specified multiple times.")
	scanCmd.Flags().Bool("refresh-rules", false, "Force refresh of cached rulesets")
	scanCmd.Flags().StringP("project", "p", "", "Path to project directory to scan (required)")
	scanCmd.Flags().StringP("output", "o", "text", "Output format: text, json, sarif, or csv (default: text)")
	scanCmd.Flags().StringP("output-file", "f", "", "Write output to file instead of stdout")
	scanCmd.Flags().BoolP("verbose", "v", false, "Show statistics and timing information")
	scanCmd.Flags().Bool("debug", false, "Show detailed debug diagnostics with file-level progress and timestamps")
	scanCmd.Flags().String("fail-on", "", "Fail with exit code 1 if findings match severities (e.g., critical,error)")
	scanCmd.Flags().Bool("skip-tests", true, "Skip test files (_test.go, test_*.py, *_test.py, etc.)")
	scanCmd.Flags().Bool("diff-aware", false, "Enable diff-aware scanning (only report findings in changed files)")
	scanCmd.Flags().String("base", "", "Base git ref for diff-aware scanning (required with --diff-aware)")
	scanCmd.Flags().String("head", "HEAD", "Head git ref for diff-aware scanning")
	scanCmd.Flags().String("report-path", "", "Write a JSON rule execution report (per-rule success/error/timeout status) to this path")
	scanCmd.MarkFlagRequired("project")
}
