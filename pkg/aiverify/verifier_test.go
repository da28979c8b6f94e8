package aiverify

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScriptVerifier(t *testing.T, script string, timeout time.Duration) (*Verifier, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "verify.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o600))

	logDir := filepath.Join(dir, "logs")

	v := New(Config{
		ScriptPath: path,
		Python:     "/bin/sh",
		Timeout:    timeout,
		Grace:      200 * time.Millisecond,
		LogDir:     logDir,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	return v, logDir
}

func logFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names
}

func TestVerifier_Success(t *testing.T) {
	script := `echo "[INFO] loading" >&2
test -f "$1" || exit 9
test -f "$2" || exit 9
echo "Model loaded"
echo '{"overall_status":"ok","total_errors":0,"total_warnings":0,"total_suggestions":0,"openapi":{"status":"ok"},"bpmn":{"status":"ok"}}'
`
	v, logDir := newScriptVerifier(t, script, 5*time.Second)

	report := v.Verify(context.Background(), `{"openapi":"3.0.0"}`, "<definitions/>", "")

	assert.Equal(t, models.VerificationOK, report.OverallStatus)
	assert.True(t, strings.HasPrefix(report.RawModelOutput, `{"overall_status"`))
	assert.Contains(t, report.RawModelStderr, "[INFO] loading")

	files := logFiles(t, logDir)
	require.Len(t, files, 2)

	for _, f := range files {
		assert.True(t, strings.HasPrefix(f, RawLogPrefix), f)
	}
}

func TestVerifier_ModelEnvironment(t *testing.T) {
	script := `printf '{"overall_status":"ok","openapi":{"summary":"%s"}}' "$QWEN_MODEL_NAME:$PYTHONUTF8"`
	v, _ := newScriptVerifier(t, script, 5*time.Second)

	report := v.Verify(context.Background(), "{}", "<x/>", "Qwen/Qwen2.5-1.5B-Instruct")

	require.NotNil(t, report.OpenAPI)
	assert.Equal(t, "Qwen/Qwen2.5-1.5B-Instruct:1", report.OpenAPI.Summary)
}

func TestVerifier_NonZeroExit(t *testing.T) {
	v, logDir := newScriptVerifier(t, "echo partial output\nexit 3\n", 5*time.Second)

	report := v.Verify(context.Background(), "{}", "<x/>", "")

	assert.Equal(t, models.VerificationWarning, report.OverallStatus)
	assert.Equal(t, []string{unparsedWarning}, report.OpenAPI.Warnings)
	assert.Contains(t, report.OpenAPI.Suggestions[0], "partial output")

	var exitLog bool

	for _, f := range logFiles(t, logDir) {
		if strings.HasSuffix(f, "_exit-3.log") {
			exitLog = true
		}
	}

	assert.True(t, exitLog)
}

func TestVerifier_Unparseable(t *testing.T) {
	tests := []struct {
		name   string
		script string
		suffix string
	}{
		{"empty output", "exit 0\n", "_empty-output.log"},
		{"no json", "echo 'I think the files look fine'\n", "_no-json.log"},
		{"broken json", "echo '{\"overall_status\": nope'\n", "_parse-error.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, logDir := newScriptVerifier(t, tt.script, 5*time.Second)

			report := v.Verify(context.Background(), "{}", "<x/>", "")
			assert.Equal(t, 2, report.TotalWarnings)

			var found bool

			for _, f := range logFiles(t, logDir) {
				if strings.HasSuffix(f, tt.suffix) {
					found = true
				}
			}

			assert.True(t, found, tt.suffix)
		})
	}
}

func TestVerifier_Timeout(t *testing.T) {
	v, _ := newScriptVerifier(t, "sleep 5\n", 200*time.Millisecond)

	start := time.Now()
	report := v.Verify(context.Background(), "{}", "<x/>", "")

	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, models.VerificationWarning, report.OverallStatus)
	assert.Contains(t, report.OpenAPI.Warnings[0], "Verification timeout")
}

func TestVerifier_ScriptMissing(t *testing.T) {
	v := New(Config{ScriptPath: filepath.Join(t.TempDir(), "missing.py"), LogDir: t.TempDir()}, nil)

	report := v.Verify(context.Background(), "{}", "<x/>", "")

	assert.Equal(t, 1, report.TotalWarnings)
	assert.Contains(t, report.OpenAPI.Summary, "Verification script not found")
}

func TestRawLogName(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 6_000_000, time.UTC)

	assert.Equal(t, "model_output_20250102_030405_006_stdout.log", rawLogName(ts, "stdout"))
	assert.Equal(t, "model_output_20250102_030405_006.log", rawLogName(ts, ""))
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv(LogDirEnv, "/tmp/ai-logs-test")

	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultGrace, cfg.Grace)
	assert.Equal(t, "/tmp/ai-logs-test", cfg.LogDir)
}
