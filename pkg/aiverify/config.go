// Package aiverify runs the external model that reviews an OpenAPI document
// and a BPMN process, and turns whatever it prints into a report.
package aiverify

import (
	"os"
	"path/filepath"
	"time"
)

// Defaults for the verifier subprocess.
const (
	DefaultTimeout    = 300 * time.Second
	DefaultGrace      = 2 * time.Second
	DefaultModel      = "Qwen/Qwen2.5-0.5B-Instruct"
	DefaultScriptName = "file_verification_service.py"
	LogDirEnv         = "AI_VERIFICATION_LOG_DIR"
)

// Config locates the verifier script and bounds its run.
type Config struct {
	// ScriptPath is the verifier script. When empty, ai/<DefaultScriptName> is
	// looked up in the working directory and its parent.
	ScriptPath string
	// Python is the interpreter. When empty, python3 then python are tried.
	Python  string
	Timeout time.Duration
	// Grace bounds the wait for output pipes after the process is killed.
	Grace time.Duration
	// LogDir receives raw model output. Defaults to $AI_VERIFICATION_LOG_DIR, then ./ai-logs.
	LogDir string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}

	if c.Grace <= 0 {
		c.Grace = DefaultGrace
	}

	if c.LogDir == "" {
		c.LogDir = os.Getenv(LogDirEnv)
	}

	if c.LogDir == "" {
		if wd, err := os.Getwd(); err == nil {
			c.LogDir = filepath.Join(wd, "ai-logs")
		} else {
			c.LogDir = "ai-logs"
		}
	}

	return c
}

// scriptCandidates lists where the script is searched for, in order.
func (c Config) scriptCandidates() []string {
	if c.ScriptPath != "" {
		return []string{c.ScriptPath}
	}

	wd, err := os.Getwd()
	if err != nil {
		return []string{filepath.Join("ai", DefaultScriptName)}
	}

	return []string{
		filepath.Join(wd, "ai", DefaultScriptName),
		filepath.Join(filepath.Dir(wd), "ai", DefaultScriptName),
	}
}
