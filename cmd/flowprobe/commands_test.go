package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dir     string
	bpmn    string
	openapi string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	f := &fixture{
		dir:     dir,
		bpmn:    filepath.Join(dir, "process.bpmn"),
		openapi: filepath.Join(dir, "openapi.json"),
	}

	require.NoError(t, os.WriteFile(f.bpmn, []byte(testutil.AccountsBPMN), 0o600))
	require.NoError(t, os.WriteFile(f.openapi, []byte(testutil.AccountsOpenAPI), 0o600))

	return f
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	command := newCommand()
	command.Writer = &out

	err := command.Run(context.Background(), append([]string{"flowprobe", "--log-level", "error"}, args...))

	return out.String(), err
}

func TestMapCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out, err := run(t, "map", "--bpmn", f.bpmn, "--openapi", f.openapi)
	require.NoError(t, err)

	var result models.MappingResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 2, result.TotalTasks)
	assert.Equal(t, 2, result.MatchedTasks)
	assert.Nil(t, result.AIVerificationReport)
}

func TestMapCommand_WithVerification(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out, err := run(t, "map", "--bpmn", f.bpmn, "--openapi", f.openapi, "--verify",
		"--ai-script-path", filepath.Join(f.dir, "missing.py"),
		"--ai-log-dir", filepath.Join(f.dir, "logs"))
	require.NoError(t, err)

	var result models.MappingResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotNil(t, result.AIVerificationReport)
	assert.Equal(t, models.VerificationWarning, result.AIVerificationReport.OverallStatus)
}

func TestMapCommand_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := run(t, "map", "--bpmn", filepath.Join(f.dir, "missing.bpmn"), "--openapi", f.openapi)
	require.Error(t, err)

	broken := filepath.Join(f.dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{not json"), 0o600))

	_, err = run(t, "map", "--bpmn", f.bpmn, "--openapi", broken)
	require.Error(t, err)
}

func TestRunCommand(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"acc-1","owner":"ada","amount":10}`))
	}))
	defer target.Close()

	f := newFixture(t)

	out, err := run(t, "run", "--bpmn", f.bpmn, "--openapi", f.openapi, "--base-url", target.URL, "--seed", "7")
	require.NoError(t, err)

	var result models.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, models.ExecutionStatusSuccess, result.Status)
	assert.Len(t, result.Steps, 2)
}

func TestRunCommand_Failed(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer target.Close()

	f := newFixture(t)

	out, err := run(t, "run", "--bpmn", f.bpmn, "--openapi", f.openapi, "--base-url", target.URL, "--seed", "7")
	require.ErrorIs(t, err, ErrExecutionFailed)

	var result models.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, models.ExecutionStatusFailed, result.Status)
	assert.NotEmpty(t, result.Problems)
}

func TestVerifyCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out, err := run(t, "verify", "--bpmn", f.bpmn, "--openapi", f.openapi, "--model-id", "2",
		"--ai-script-path", filepath.Join(f.dir, "missing.py"),
		"--ai-log-dir", filepath.Join(f.dir, "logs"))
	require.NoError(t, err)

	var report models.AIVerificationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, models.VerificationWarning, report.OverallStatus)
}
