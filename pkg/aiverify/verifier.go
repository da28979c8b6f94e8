package aiverify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dukex/flowprobe/pkg/models"
)

const logPreview = 1000

// Verifier runs the external verification script.
type Verifier struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New returns a verifier.
func New(cfg Config, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &Verifier{cfg: cfg.withDefaults(), logger: logger.With("module", "ai_verifier"), now: time.Now}
}

// LogDir is the directory raw model output is written to.
func (v *Verifier) LogDir() string {
	return v.cfg.LogDir
}

// Verify reviews both documents with model (empty for the default). It never
// fails: every problem degrades to a warning report.
func (v *Verifier) Verify(ctx context.Context, openAPIJSON, bpmnXML, model string) *models.AIVerificationReport {
	start := v.now()

	v.logger.InfoContext(ctx, "Starting AI verification", "model", model)

	script, ok := v.findScript()
	if !ok {
		checked := strings.Join(v.cfg.scriptCandidates(), " or ")
		v.logger.WarnContext(ctx, "Verification script not found", "checked", checked)

		return FallbackReport("Verification script not found. Checked: " + checked)
	}

	dir, err := os.MkdirTemp("", "ai_verification_")
	if err != nil {
		return FallbackReport("Error: " + err.Error())
	}

	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			v.logger.Warn("Failed to delete temporary files", "dir", dir, "error", err)
		}
	}()

	openAPIPath := filepath.Join(dir, "openapi.json")
	bpmnPath := filepath.Join(dir, "bpmn.xml")

	if err := os.WriteFile(openAPIPath, []byte(openAPIJSON), 0o600); err != nil {
		return FallbackReport("Error: " + err.Error())
	}

	if err := os.WriteFile(bpmnPath, []byte(bpmnXML), 0o600); err != nil {
		return FallbackReport("Error: " + err.Error())
	}

	stdout, stderr, exitCode, err := v.run(ctx, script, model, openAPIPath, bpmnPath)

	if errors.Is(err, context.DeadlineExceeded) {
		v.logger.ErrorContext(ctx, "Verification script timed out", "timeout", v.cfg.Timeout)
		v.writeRawOutput(stdout, "timeout")

		return FallbackReport(fmt.Sprintf("Verification timeout after %s", v.cfg.Timeout))
	}

	if err != nil {
		v.logger.ErrorContext(ctx, "Verification script failed to run", "error", err)

		return FallbackReport("Error: " + err.Error())
	}

	v.logger.InfoContext(ctx, "Verification script finished",
		"duration_ms", v.now().Sub(start).Milliseconds(), "exit_code", exitCode, "stdout", preview(stdout))
	v.writeRawOutput(stdout, "stdout")

	if stderr != "" {
		v.writeRawOutput(stderr, "stderr")
	}

	if exitCode != 0 {
		v.writeRawOutput(stdout, fmt.Sprintf("exit-%d", exitCode))

		return UnparsedReport(stdout)
	}

	trimmed := strings.TrimSpace(stdout)
	if trimmed == "" {
		v.logger.WarnContext(ctx, "Verification script returned empty output")
		v.writeRawOutput(stdout, "empty-output")

		return UnparsedReport(stdout)
	}

	report, err := ParseReport(trimmed)
	if err != nil {
		suffix := "parse-error"
		if errors.Is(err, ErrNoJSON) {
			suffix = "no-json"
		}

		v.logger.InfoContext(ctx, "Could not parse model output, using fallback", "error", err)
		v.writeRawOutput(stdout, suffix)

		return UnparsedReport(stdout)
	}

	if text, ok := stripNoise(trimmed); ok {
		report.RawModelOutput = text
	}

	report.RawModelStderr = stderr

	v.logger.InfoContext(ctx, "AI verification completed",
		"duration_ms", v.now().Sub(start).Milliseconds(),
		"errors", report.TotalErrors,
		"warnings", report.TotalWarnings,
		"suggestions", report.TotalSuggestions)

	return report
}

func (v *Verifier) findScript() (string, bool) {
	for _, path := range v.cfg.scriptCandidates() {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}

	return "", false
}

func (v *Verifier) python() string {
	if v.cfg.Python != "" {
		return v.cfg.Python
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	return "python"
}

// run executes the script and returns its output. Output is collected
// concurrently while the process runs; on timeout the process is killed and
// the pipes are given Grace to drain.
func (v *Verifier) run(ctx context.Context, script, model string, args ...string) (string, string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	// #nosec G204 -- interpreter and script come from operator configuration
	cmd := exec.CommandContext(ctx, v.python(), append([]string{script}, args...)...)
	cmd.Dir = filepath.Dir(script)
	cmd.Env = v.environment(model)
	cmd.WaitDelay = v.cfg.Grace

	var stdout bytes.Buffer

	stderr := &stderrLogger{logger: v.logger}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	err := cmd.Run()

	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stdout.String(), stderr.String(), -1, context.DeadlineExceeded
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitCode(), nil
	}

	if err != nil {
		return stdout.String(), stderr.String(), -1, err
	}

	return stdout.String(), stderr.String(), 0, nil
}

// environment inherits the current one, adding UTF-8 and model settings when unset.
func (v *Verifier) environment(model string) []string {
	env := os.Environ()

	setDefault := func(key, value string) {
		if _, ok := os.LookupEnv(key); !ok {
			env = append(env, key+"="+value)
		}
	}

	setDefault("PYTHONIOENCODING", "UTF-8")
	setDefault("PYTHONUTF8", "1")
	setDefault("DISABLE_TRITON", "1")
	setDefault("USE_ORT", "1")
	setDefault("AI_VERIFICATION_PROFILE", "legacy")
	setDefault("USE_REMOTE_INFERENCE", "0")

	if model != "" {
		env = append(env, "QWEN_MODEL_NAME="+model, "QWEN_CPU_MODEL="+model)
	} else {
		setDefault("QWEN_MODEL_NAME", DefaultModel)
		setDefault("QWEN_CPU_MODEL", DefaultModel)
	}

	return env
}

// stderrLogger buffers the script's stderr and forwards complete lines to the logger.
type stderrLogger struct {
	mu      sync.Mutex
	logger  *slog.Logger
	buf     bytes.Buffer
	pending []byte
}

func (s *stderrLogger) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Write(p)
	s.pending = append(s.pending, p...)

	for {
		i := bytes.IndexByte(s.pending, '\n')
		if i < 0 {
			break
		}

		s.logLine(string(s.pending[:i]))
		s.pending = s.pending[i+1:]
	}

	return len(p), nil
}

func (s *stderrLogger) logLine(line string) {
	if i := strings.Index(line, "[INFO]"); i >= 0 {
		s.logger.Info("[verifier] " + strings.TrimSpace(line[i+len("[INFO]"):]))

		return
	}

	s.logger.Debug("[verifier] " + strings.TrimSpace(strings.Replace(line, "[DEBUG]", "", 1)))
}

func (s *stderrLogger) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buf.String()
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= logPreview {
		return s
	}

	return string(r[:logPreview]) + "..."
}
