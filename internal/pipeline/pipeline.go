// Package pipeline implements agentcore.Pipeline: it filters a task's scope,
// fans out to external tools and in-process plugins, parses their raw
// output into the uniform finding model, aggregates and writes a SARIF
// report, and returns the summary AgentCore sends back over IPC.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/fegome90-cmd/pit-crew-agents/internal/agentcore"
	"github.com/fegome90-cmd/pit-crew-agents/internal/dedup"
	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
	"github.com/fegome90-cmd/pit-crew-agents/internal/sarif"
	"github.com/fegome90-cmd/pit-crew-agents/internal/toolrunner"
)

// defaultReportDir is used, under OBS_PATH, when a task supplies no output path.
const defaultReportDir = "reports"

func repoRootOf(req agentcore.TaskRequest) string {
	if req.Context == nil {
		return ""
	}
	if root, ok := req.Context["repo_root"].(string); ok {
		return root
	}
	return ""
}

// outputPath resolves where the SARIF report for this task must land: the
// task-supplied path if present, otherwise "<agent>-<task id>.sarif.json"
// under $OBS_PATH/reports (OBS_PATH defaulting to ./obs).
func outputPath(req agentcore.TaskRequest, agentName string) string {
	if req.Output != "" {
		return req.Output
	}
	base := os.Getenv("OBS_PATH")
	if base == "" {
		base = "./obs"
	}
	return filepath.Join(base, defaultReportDir, fmt.Sprintf("%s-%s.sarif.json", agentName, req.ID))
}

// finalize writes the SARIF report and builds the TaskResult summary common
// to both agent pipelines. scannedBytes is the total size of the files the
// pipeline actually read, humanized into AnalysisSummary. Per-tool
// degradation (missing tool, timeout, non-zero exit) is folded into
// findings/toolsUsed upstream by outcomeFindings and never reaches here —
// the only error finalize can return is a genuine failure to write the
// task's own report (§7: an aggregate tool error never fails the task).
func finalize(all []findings.Finding, req agentcore.TaskRequest, agentName string, toolsUsed []string, scannedBytes int64) (agentcore.TaskResult, error) {
	sevBreakdown, catBreakdown := findings.Summarize(all)
	if toolsUsed == nil {
		toolsUsed = []string{}
	}

	sev := make(map[string]int, len(sevBreakdown))
	for k, v := range sevBreakdown {
		sev[string(k)] = v
	}
	cat := make(map[string]int, len(catBreakdown))
	for k, v := range catBreakdown {
		cat[string(k)] = v
	}

	var errs *multierror.Error
	out := outputPath(req, agentName)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("create report dir: %w", err))
	} else {
		doc := sarif.Build(all, repoRootOf(req))
		if err := sarif.WriteFile(out, doc); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("write sarif report: %w", err))
		}
	}

	result := agentcore.TaskResult{
		FindingsCount:     len(all),
		SeverityBreakdown: sev,
		CategoryBreakdown: cat,
		ToolsUsed:         toolsUsed,
		OutputFile:        out,
		AnalysisSummary:   fmt.Sprintf("%d findings across %d tools, %s scanned", len(all), len(toolsUsed), humanize.Bytes(uint64(scannedBytes))),
	}

	if errs != nil && errs.Len() > 0 {
		return result, errs.ErrorOrNil()
	}
	return result, nil
}

// newScratchDir creates the per-task scratch directory every tool that
// needs file output writes into (§4.3). The caller must invoke the
// returned cleanup unconditionally, including when the task fails, so the
// directory never outlives the task's response.
func newScratchDir(agentName, taskID string) (dir string, cleanup func(), err error) {
	dir, err = os.MkdirTemp("", fmt.Sprintf("%s-%s-", agentName, taskID))
	if err != nil {
		return "", func() {}, err
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

// scratchOutput reads a tool's scratch-file output after a run that
// produced or could have produced one; any other outcome (including a
// file the tool never wrote) yields nil so parse sees empty input.
func scratchOutput(res toolrunner.Result, path string) []byte {
	if res.Outcome != toolrunner.OutcomeOK && res.Outcome != toolrunner.OutcomeFindings {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return data
}

// outcomeFindings converts one tool invocation's classified outcome into
// findings, per the degrade rules of §7: a missing tool degrades silently
// (nil, no entry at all), a non-zero exit outside the tool's allow-list is
// logged and contributes nothing, and a timeout produces a single warning
// finding — none of these ever propagate as a pipeline error.
func outcomeFindings(res toolrunner.Result, toolName string, logger *zap.Logger, raw []byte, parse func([]byte) []findings.Finding) []findings.Finding {
	switch res.Outcome {
	case toolrunner.OutcomeMissingTool:
		return nil
	case toolrunner.OutcomeTimeout:
		return []findings.Finding{{
			Tool: toolName, RuleID: toolName + "-timeout",
			Message:  fmt.Sprintf("%s did not complete within its timeout", toolName),
			Severity: findings.SeverityWarning, StartLine: 1,
			Category: findings.CategoryOther,
		}}
	case toolrunner.OutcomeError:
		if logger != nil {
			logger.Warn("tool exited with an unexpected status",
				zap.String("tool", toolName), zap.Int("exit_code", res.ExitCode),
				zap.ByteString("stderr", res.Stderr))
		}
		return nil
	default:
		return parse(raw)
	}
}

// ranTool reports whether a tool invocation actually executed (as opposed
// to being skipped because the binary is missing), for toolsUsed bookkeeping.
func ranTool(res toolrunner.Result) bool {
	return res.Outcome != toolrunner.OutcomeMissingTool
}

func duplicationFindings(files map[string][]byte, minLines int, threshold float64) []findings.Finding {
	var blocks []dedup.Block
	for path, content := range files {
		blocks = append(blocks, dedup.Blocks(path, string(content), minLines)...)
	}
	return dedup.Detect(blocks, threshold)
}

// totalSize sums the on-disk size of paths, skipping any that no longer stat.
func totalSize(paths []string) int64 {
	var sum int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			sum += info.Size()
		}
	}
	return sum
}

func readFiles(paths []string) map[string][]byte {
	out := make(map[string][]byte, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		out[p] = content
	}
	return out
}
