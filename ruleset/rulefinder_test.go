package ruleset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleFinder_FindRuleFile(t *testing.T) {
	tmpDir := t.TempDir()

	dockerDir := filepath.Join(tmpDir, "docker")
	securityDir := filepath.Join(dockerDir, "security")
	bpDir := filepath.Join(dockerDir, "best-practice")

	require.NoError(t, os.MkdirAll(securityDir, 0755))
	require.NoError(t, os.MkdirAll(bpDir, 0755))

	testFiles := map[string]string{
		filepath.Join(securityDir, "privileged_mode.yml"): `rules:
  - id: DOCKER-SEC-001
    name: Privileged Mode
    severity: critical
    languages: [docker]
    patterns:
      - pattern: "privileged: true"
`,
		filepath.Join(bpDir, "apk_no_cache.yml"): `rules:
  - id: DOCKER-BP-007
    name: apk without --no-cache
    severity: warning
    languages: [docker]
    patterns:
      - pattern: "apk add"
`,
		filepath.Join(bpDir, "apt_recommends.yml"): `rules:
  - id: DOCKER-BP-005
    name: apt without --no-install-recommends
    severity: warning
    languages: [docker]
    patterns:
      - pattern: "apt-get install"
`,
	}

	for path, content := range testFiles {
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	finder := NewRuleFinder(tmpDir)

	tests := []struct {
		name     string
		spec     *RuleSpec
		wantFile string
		wantErr  bool
		errMsg   string
	}{
		{
			name:     "find DOCKER-SEC-001",
			spec:     &RuleSpec{Language: "docker", RuleID: "DOCKER-SEC-001"},
			wantFile: "privileged_mode.yml",
			wantErr:  false,
		},
		{
			name:     "find DOCKER-BP-007",
			spec:     &RuleSpec{Language: "docker", RuleID: "DOCKER-BP-007"},
			wantFile: "apk_no_cache.yml",
			wantErr:  false,
		},
		{
			name:     "find DOCKER-BP-005",
			spec:     &RuleSpec{Language: "docker", RuleID: "DOCKER-BP-005"},
			wantFile: "apt_recommends.yml",
			wantErr:  false,
		},
		{
			name:    "rule not found",
			spec:    &RuleSpec{Language: "docker", RuleID: "DOCKER-BP-999"},
			wantErr: true,
			errMsg:  "rule DOCKER-BP-999 not found",
		},
		{
			name:    "language directory not found",
			spec:    &RuleSpec{Language: "python", RuleID: "PYTHON-SEC-001"},
			wantErr: true,
			errMsg:  "language directory not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := finder.FindRuleFile(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
				assert.Contains(t, got, tt.wantFile)
				_, err := os.Stat(got)
				assert.NoError(t, err)
			}
		})
	}
}

func TestFileContainsRuleID(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		content string
		ruleID  string
		want    bool
		wantErr bool
	}{
		{
			name: "rule ID present unquoted",
			content: `rules:
  - id: DOCKER-BP-007
    name: Test
`,
			ruleID: "DOCKER-BP-007",
			want:   true,
		},
		{
			name: "rule ID present quoted",
			content: `rules:
  - id: "DOCKER-BP-007"
    name: Test
`,
			ruleID: "DOCKER-BP-007",
			want:   true,
		},
		{
			name: "rule ID not present",
			content: `rules:
  - id: DOCKER-BP-999
    name: Test
`,
			ruleID: "DOCKER-BP-007",
			want:   false,
		},
		{
			name: "partial match should not match",
			content: `rules:
  - id: DOCKER-BP-0071
    name: Test
`,
			ruleID: "DOCKER-BP-007",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpFile := filepath.Join(tmpDir, "test.yml")
			require.NoError(t, os.WriteFile(tmpFile, []byte(tt.content), 0644))
			defer os.Remove(tmpFile)

			got, err := fileContainsRuleID(tmpFile, tt.ruleID)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRuleFinder_SkipsNonYAMLFiles(t *testing.T) {
	tmpDir := t.TempDir()
	dockerDir := filepath.Join(tmpDir, "docker")
	require.NoError(t, os.MkdirAll(dockerDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(dockerDir, "README.md"), []byte("id: DOCKER-TEST-001"), 0644))

	validFile := filepath.Join(dockerDir, "test_rule.yml")
	validContent := `rules:
  - id: DOCKER-TEST-002
    name: Test
    severity: warning
    languages: [docker]
    patterns:
      - pattern: "FROM"
`
	require.NoError(t, os.WriteFile(validFile, []byte(validContent), 0644))

	finder := NewRuleFinder(tmpDir)

	spec := &RuleSpec{Language: "docker", RuleID: "DOCKER-TEST-002"}
	got, err := finder.FindRuleFile(spec)
	require.NoError(t, err)
	assert.Contains(t, got, "test_rule.yml")
}
