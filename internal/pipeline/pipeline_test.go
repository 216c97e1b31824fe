package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fegome90-cmd/pit-crew-agents/internal/agentcore"
	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
	"github.com/fegome90-cmd/pit-crew-agents/internal/toolrunner"
)

func TestOutputPathPrefersTaskSupplied(t *testing.T) {
	req := agentcore.TaskRequest{ID: "t1", Output: "/tmp/explicit.sarif.json"}
	assert.Equal(t, "/tmp/explicit.sarif.json", outputPath(req, "quality-agent"))
}

func TestOutputPathFallsBackToOBSPath(t *testing.T) {
	t.Setenv("OBS_PATH", "/tmp/obs-test")
	req := agentcore.TaskRequest{ID: "t1"}
	got := outputPath(req, "quality-agent")
	assert.Equal(t, filepath.Join("/tmp/obs-test", "reports", "quality-agent-t1.sarif.json"), got)
}

func TestRepoRootOfReadsContext(t *testing.T) {
	req := agentcore.TaskRequest{Context: map[string]any{"repo_root": "/repo"}}
	assert.Equal(t, "/repo", repoRootOf(req))
	assert.Equal(t, "", repoRootOf(agentcore.TaskRequest{}))
}

func TestFinalizeWritesSarifAndSummarizes(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "report.sarif.json")

	all := []findings.Finding{
		{Tool: "ruff", RuleID: "F401", Message: "x", Severity: findings.SeverityError, FilePath: "a.py", StartLine: 1},
	}
	req := agentcore.TaskRequest{ID: "t1", Output: out}

	result, err := finalize(all, req, "quality-agent", []string{"ruff"}, 1024)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FindingsCount)
	assert.Equal(t, out, result.OutputFile)
	assert.Contains(t, result.AnalysisSummary, "1.0 kB")

	_, statErr := os.Stat(out)
	assert.NoError(t, statErr)
}

func TestReadFilesSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(existing, []byte("x = 1\n"), 0o644))

	out := readFiles([]string{existing, filepath.Join(dir, "missing.py")})
	assert.Len(t, out, 1)
	assert.Contains(t, out, existing)
}

func TestNewScratchDirCreatesAndCleansUp(t *testing.T) {
	dir, cleanup, err := newScratchDir("quality-agent", "t1")
	require.NoError(t, err)
	_, statErr := os.Stat(dir)
	require.NoError(t, statErr)

	cleanup()
	_, statErr = os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestScratchOutputOnlyReadsOnSuccessOutcomes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ok":true}`), 0o644))

	assert.Equal(t, []byte(`{"ok":true}`), scratchOutput(toolrunner.Result{Outcome: toolrunner.OutcomeOK}, path))
	assert.Equal(t, []byte(`{"ok":true}`), scratchOutput(toolrunner.Result{Outcome: toolrunner.OutcomeFindings}, path))
	assert.Nil(t, scratchOutput(toolrunner.Result{Outcome: toolrunner.OutcomeTimeout}, path))
	assert.Nil(t, scratchOutput(toolrunner.Result{Outcome: toolrunner.OutcomeError}, path))
	assert.Nil(t, scratchOutput(toolrunner.Result{Outcome: toolrunner.OutcomeOK}, filepath.Join(dir, "missing.json")))
}

func TestOutcomeFindingsNeverSignalsAnError(t *testing.T) {
	parse := func(raw []byte) []findings.Finding { return []findings.Finding{{Severity: findings.SeverityError, StartLine: 1}} }

	assert.Nil(t, outcomeFindings(toolrunner.Result{Outcome: toolrunner.OutcomeMissingTool}, "ruff", nil, nil, parse))

	timeoutFindings := outcomeFindings(toolrunner.Result{Outcome: toolrunner.OutcomeTimeout}, "ruff", nil, nil, parse)
	require.Len(t, timeoutFindings, 1)
	assert.Equal(t, findings.SeverityWarning, timeoutFindings[0].Severity)

	assert.Nil(t, outcomeFindings(toolrunner.Result{Outcome: toolrunner.OutcomeError, ExitCode: 2}, "ruff", nil, nil, parse))

	found := outcomeFindings(toolrunner.Result{Outcome: toolrunner.OutcomeFindings}, "ruff", nil, []byte("raw"), parse)
	require.Len(t, found, 1)
	assert.Equal(t, findings.SeverityError, found[0].Severity)
}

func TestRanTool(t *testing.T) {
	assert.False(t, ranTool(toolrunner.Result{Outcome: toolrunner.OutcomeMissingTool}))
	assert.True(t, ranTool(toolrunner.Result{Outcome: toolrunner.OutcomeOK}))
	assert.True(t, ranTool(toolrunner.Result{Outcome: toolrunner.OutcomeTimeout}))
	assert.True(t, ranTool(toolrunner.Result{Outcome: toolrunner.OutcomeError}))
}
