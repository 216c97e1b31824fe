package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fegome90-cmd/pit-crew-agents/internal/agentcore"
	"github.com/fegome90-cmd/pit-crew-agents/internal/config"
	"github.com/fegome90-cmd/pit-crew-agents/internal/dedup"
	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
	"github.com/fegome90-cmd/pit-crew-agents/internal/parsers"
	"github.com/fegome90-cmd/pit-crew-agents/internal/plugins"
	"github.com/fegome90-cmd/pit-crew-agents/internal/scope"
	"github.com/fegome90-cmd/pit-crew-agents/internal/toolrunner"
)

// Quality implements agentcore.Pipeline for the quality agent. Mode
// selects which scope profile and which checks run: "standard"
// (ruff/eslint/lizard/dedup), "syntax_extended" (TypeScript/JavaScript and
// YAML syntax checks only; ruff/eslint/lizard/dedup do not run, so Python
// files in its scope are not analyzed), "yaml_strict" (YAML syntax only).
type Quality struct {
	Defaults    config.QualityConfig
	MaxFileSize int64
	Logger      *zap.Logger
}

var _ agentcore.Pipeline = (*Quality)(nil)

func (q *Quality) Run(ctx context.Context, req agentcore.TaskRequest) (agentcore.TaskResult, error) {
	cfg, err := config.ResolveQualityConfig(q.Defaults, req.Config)
	if err != nil {
		return agentcore.TaskResult{}, err
	}

	repoRoot := repoRootOf(req)
	profile := modeProfile(req.Mode)
	files := scope.Filter(repoRoot, req.Scope, profile, q.MaxFileSize)
	if len(files) == 0 {
		return finalize(nil, req, "quality-agent", nil, 0)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch req.Mode {
	case "yaml_strict":
		return q.runYAMLOnly(toolCtx, req, cfg, files)
	case "syntax_extended":
		return q.runSyntaxExtended(toolCtx, req, cfg, files)
	default:
		return q.runStandard(toolCtx, req, cfg, files)
	}
}

func modeProfile(mode string) scope.Profile {
	switch mode {
	case "yaml_strict":
		return scope.ProfileQualityYAMLStrict
	case "syntax_extended":
		return scope.ProfileQualitySyntaxExt
	default:
		return scope.ProfileQuality
	}
}

func (q *Quality) runYAMLOnly(ctx context.Context, req agentcore.TaskRequest, cfg config.QualityConfig, files []string) (agentcore.TaskResult, error) {
	if !cfg.YAMLSyntaxEnabled {
		return finalize(nil, req, "quality-agent", nil, 0)
	}

	contents := readFiles(files)
	var all []findings.Finding
	for path, content := range contents {
		all = append(all, plugins.YAML(path, content)...)
	}
	var toolsUsed []string
	if len(contents) > 0 {
		toolsUsed = []string{"yaml-syntax"}
	}
	return finalize(all, req, "quality-agent", toolsUsed, totalSize(files))
}

func (q *Quality) runSyntaxExtended(ctx context.Context, req agentcore.TaskRequest, cfg config.QualityConfig, files []string) (agentcore.TaskResult, error) {
	var (
		mu        sync.Mutex
		all       []findings.Finding
		toolsUsed = map[string]struct{}{}
		wg        sync.WaitGroup
	)

	for _, f := range files {
		f := f
		switch strings.ToLower(filepath.Ext(f)) {
		case ".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs":
			if !cfg.TypeScriptSyntaxEnabled {
				continue
			}
			ext := strings.ToLower(filepath.Ext(f))
			wg.Add(1)
			go func() {
				defer wg.Done()
				var found []findings.Finding
				if ext == ".ts" || ext == ".tsx" {
					found = plugins.TypeScript(ctx, f)
				} else {
					found = plugins.JavaScript(ctx, f)
				}
				mu.Lock()
				defer mu.Unlock()
				all = append(all, found...)
				if len(found) > 0 {
					toolsUsed["ts-syntax"] = struct{}{}
				}
			}()
		case ".yaml", ".yml":
			if !cfg.YAMLSyntaxEnabled {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				content, err := os.ReadFile(f)
				if err != nil {
					return
				}
				found := plugins.YAML(f, content)
				mu.Lock()
				defer mu.Unlock()
				all = append(all, found...)
				if len(found) > 0 {
					toolsUsed["yaml-syntax"] = struct{}{}
				}
			}()
		}
	}
	wg.Wait()

	names := make([]string, 0, len(toolsUsed))
	for name := range toolsUsed {
		names = append(names, name)
	}
	return finalize(all, req, "quality-agent", names, totalSize(files))
}

func (q *Quality) runStandard(ctx context.Context, req agentcore.TaskRequest, cfg config.QualityConfig, files []string) (agentcore.TaskResult, error) {
	pyFiles := filterExt(files, ".py")
	jsFiles := filterExt(files, ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs")

	scratchDir, cleanup, err := newScratchDir("quality-agent", req.ID)
	if err != nil {
		return agentcore.TaskResult{}, err
	}
	defer cleanup()

	type toolRun struct {
		name string
		run  func(context.Context) ([]findings.Finding, bool)
	}
	var runs []toolRun

	if cfg.RuffEnabled && len(pyFiles) > 0 {
		reportPath := filepath.Join(scratchDir, "ruff_results.json")
		args := append([]string{"check", "--output-format=json", "--output-file", reportPath}, pyFiles...)
		runs = append(runs, toolRun{"ruff", func(c context.Context) ([]findings.Finding, bool) {
			res := toolrunner.Run(c, "ruff", args, toolrunner.AllowZeroAndOne)
			found := outcomeFindings(res, "ruff", q.Logger, scratchOutput(res, reportPath), parsers.Ruff)
			return found, ranTool(res)
		}})
	}
	if cfg.ESLintEnabled && len(jsFiles) > 0 {
		reportPath := filepath.Join(scratchDir, "eslint_results.json")
		args := append([]string{"--format", "json", "--output-file", reportPath}, jsFiles...)
		runs = append(runs, toolRun{"eslint", func(c context.Context) ([]findings.Finding, bool) {
			res := toolrunner.Run(c, "eslint", args, toolrunner.AllowZeroAndOne)
			found := outcomeFindings(res, "eslint", q.Logger, scratchOutput(res, reportPath), parsers.ESLint)
			return found, ranTool(res)
		}})
	}
	if cfg.ScanComplexity && cfg.LizardEnabled {
		// Lizard has no --output/--json flag: its text table goes to
		// stdout, which is written into the scratch dir manually so its
		// result survives the same read-back path as every other tool.
		reportPath := filepath.Join(scratchDir, "lizard_results.txt")
		args := append([]string{}, files...)
		runs = append(runs, toolRun{"lizard", func(c context.Context) ([]findings.Finding, bool) {
			res := toolrunner.Run(c, "lizard", args, toolrunner.AllowZeroAndOne)
			if res.Outcome == toolrunner.OutcomeOK || res.Outcome == toolrunner.OutcomeFindings {
				_ = os.WriteFile(reportPath, res.Stdout, 0o644)
			}
			found := outcomeFindings(res, "lizard", q.Logger, scratchOutput(res, reportPath), func(raw []byte) []findings.Finding {
				return parsers.Lizard(raw, cfg.ComplexityThreshold)
			})
			return found, ranTool(res)
		}})
	}

	var (
		mu        sync.Mutex
		all       []findings.Finding
		toolsUsed []string
		wg        sync.WaitGroup
	)

	for _, r := range runs {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			found, ran := r.run(ctx)
			mu.Lock()
			defer mu.Unlock()
			all = append(all, found...)
			if ran {
				toolsUsed = append(toolsUsed, r.name)
			}
		}()
	}

	if cfg.ScanDuplication {
		wg.Add(1)
		go func() {
			defer wg.Done()
			contents := readFiles(files)
			found := duplicationFindings(contents, dedup.DefaultMinLines, cfg.DuplicationThreshold)
			mu.Lock()
			defer mu.Unlock()
			all = append(all, found...)
			if len(found) > 0 {
				toolsUsed = append(toolsUsed, "dedup")
			}
		}()
	}
	wg.Wait()

	return finalize(all, req, "quality-agent", toolsUsed, totalSize(files))
}

func filterExt(files []string, exts ...string) []string {
	want := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		want[e] = struct{}{}
	}
	var out []string
	for _, f := range files {
		if _, ok := want[strings.ToLower(filepath.Ext(f))]; ok {
			out = append(out, f)
		}
	}
	return out
}
