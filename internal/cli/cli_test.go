package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asynkron/patchsplit/internal/config"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

const sampleDiff = "diff --git a b\nindex 123..456\n@@ -1,3 +1,3 @@\nline A\n@@ -583,2 +583,2 @@\nline B\n"

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeRepoDiff(t *testing.T, dir string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "repo.diff"), content, 0o644))
}

func TestRunDefaultProfileIsSilentOnSuccess(t *testing.T) {
	dir := t.TempDir()
	writeRepoDiff(t, dir, []byte(sampleDiff))

	code, stdout, stderr := runCLI(t, "-dir", dir)
	require.Equal(t, 0, code, stderr)
	require.Empty(t, stdout)
	require.Empty(t, stderr)

	ours, err := os.ReadFile(filepath.Join(dir, "our_patch.diff"))
	require.NoError(t, err)
	require.Equal(t, "diff --git a b\nindex 123..456\n@@ -1,3 +1,3 @@\nline A\n", string(ours))

	existing, err := os.ReadFile(filepath.Join(dir, "existing_patch.diff"))
	require.NoError(t, err)
	require.Equal(t, "diff --git a b\nindex 123..456\n@@ -583,2 +583,2 @@\nline B\n", string(existing))
}

func TestRunUTF16Profile(t *testing.T) {
	dir := t.TempDir()
	text := strings.ReplaceAll(sampleDiff, "@@ -583", "@@ -591")
	raw, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(text))
	require.NoError(t, err)
	writeRepoDiff(t, dir, raw)

	code, _, stderr := runCLI(t, "-dir", dir, "-profile", "utf16")
	require.Equal(t, 0, code, stderr)

	existing, err := os.ReadFile(filepath.Join(dir, "existing_patch.diff"))
	require.NoError(t, err)
	require.Equal(t, "diff --git a b\nindex 123..456\n@@ -591,2 +583,2 @@\nline B\n", string(existing))
}

func TestRunMarkerNotFoundExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	writeRepoDiff(t, dir, []byte(sampleDiff))

	code, stdout, stderr := runCLI(t, "-dir", dir, "-marker", "@@ -999")
	require.Equal(t, 1, code)
	require.Empty(t, stdout)
	require.Contains(t, stderr, "error:")
	require.Contains(t, stderr, `no line starts with "@@ -999"`)

	_, statErr := os.Stat(filepath.Join(dir, "our_patch.diff"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRunMalformedInputExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	writeRepoDiff(t, dir, []byte("just one line\n"))

	code, _, stderr := runCLI(t, "-dir", dir)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "at least 2 are required")
}

func TestRunDryRunReportsWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	writeRepoDiff(t, dir, []byte(sampleDiff))

	code, stdout, stderr := runCLI(t, "-dir", dir, "-dry-run")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "# Patch split (dry run)")
	require.Contains(t, stdout, "line 5 (body line 3)")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRunVerboseLogsAndReports(t *testing.T) {
	dir := t.TempDir()
	writeRepoDiff(t, dir, []byte(sampleDiff+"@@ -583,9 +583,9 @@\n"))

	code, stdout, stderr := runCLI(t, "-dir", dir, "-v")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stdout, "| A | our_patch.diff |")
	require.Contains(t, stderr, "[DEBUG] splitting patch")
	require.Contains(t, stderr, "[WARN] marker matched more than one line")
	require.Contains(t, stderr, "matches=2")
}

func TestRunMultipleMatchesStaySilentByDefault(t *testing.T) {
	dir := t.TempDir()
	writeRepoDiff(t, dir, []byte(sampleDiff+"@@ -583,9 +583,9 @@\n"))

	code, stdout, stderr := runCLI(t, "-dir", dir)
	require.Equal(t, 0, code, stderr)
	require.Empty(t, stdout)
	require.Empty(t, stderr)

	code, _, stderr = runCLI(t, "-dir", dir, "-log-level", "warn")
	require.Equal(t, 0, code, stderr)
	require.Contains(t, stderr, "[WARN] marker matched more than one line")
}

func TestRunLogsSplitFailureAtErrorLevel(t *testing.T) {
	dir := t.TempDir()
	writeRepoDiff(t, dir, []byte(sampleDiff))

	code, _, stderr := runCLI(t, "-dir", dir, "-marker", "@@ -999", "-log-level", "error")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "[ERROR]")
	require.Contains(t, stderr, "split failed")
	require.Contains(t, stderr, "code=MARKER_NOT_FOUND")
	require.Contains(t, stderr, "profile=default")

	code, _, stderr = runCLI(t, "-dir", dir, "-marker", "@@ -999")
	require.Equal(t, 1, code)
	require.NotContains(t, stderr, "[ERROR]")
}

// clearEnv unsets key for the test and restores it afterwards, so values
// loaded from a .env file do not leak into later tests.
func clearEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestRunLoadsDotEnvFromWorkingDir(t *testing.T) {
	for _, key := range []string{config.EnvProfile, config.EnvConfig, config.EnvLogLevel} {
		clearEnv(t, key)
	}
	dir := t.TempDir()
	writeRepoDiff(t, dir, []byte(sampleDiff))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(config.EnvProfile+"=nosuch\n"), 0o644))

	code, _, stderr := runCLI(t, "-dir", dir)
	require.Equal(t, 1, code)
	require.Contains(t, stderr, `unknown profile "nosuch"`)

	code, _, stderr = runCLI(t, "-dir", dir, "-profile", "default")
	require.Equal(t, 0, code, stderr)
	require.FileExists(t, filepath.Join(dir, "our_patch.diff"))
}

func TestRunUsesConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeRepoDiff(t, dir, []byte(sampleDiff))
	cfg := `{"default": "early", "profiles": [{"name": "early", "marker": "@@ -1,3", "ours": "a.diff", "existing": "b.diff"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patchsplit.json"), []byte(cfg), 0o644))

	code, _, stderr := runCLI(t, "-dir", dir)
	require.Equal(t, 0, code, stderr)

	ours, err := os.ReadFile(filepath.Join(dir, "a.diff"))
	require.NoError(t, err)
	require.Equal(t, "diff --git a b\nindex 123..456\n\n", string(ours))
	require.FileExists(t, filepath.Join(dir, "b.diff"))
}

func TestRunInvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeRepoDiff(t, dir, []byte(sampleDiff))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte(`{"profiles": [{"name": "x"}]}`), 0o644))

	code, _, stderr := runCLI(t, "-dir", dir, "-config", "custom.json")
	require.Equal(t, 1, code)
	require.Contains(t, stderr, "schema validation")
}

func TestRunListProfiles(t *testing.T) {
	code, stdout, _ := runCLI(t, "-dir", t.TempDir(), "-list-profiles")
	require.Equal(t, 0, code)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "default\t"))
	require.True(t, strings.HasPrefix(lines[1], "utf16\t"))
}

func TestRunRejectsBadFlags(t *testing.T) {
	code, _, _ := runCLI(t, "-no-such-flag")
	require.Equal(t, 2, code)

	code, _, stderr := runCLI(t, "stray")
	require.Equal(t, 2, code)
	require.Contains(t, stderr, "unexpected arguments")

	code, _, _ = runCLI(t, "-log-level", "loud")
	require.Equal(t, 2, code)
}
