package pipeline

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fegome90-cmd/pit-crew-agents/internal/agentcore"
	"github.com/fegome90-cmd/pit-crew-agents/internal/config"
	"github.com/fegome90-cmd/pit-crew-agents/internal/findings"
	"github.com/fegome90-cmd/pit-crew-agents/internal/parsers"
	"github.com/fegome90-cmd/pit-crew-agents/internal/scope"
	"github.com/fegome90-cmd/pit-crew-agents/internal/toolrunner"
)

// Security implements agentcore.Pipeline for the security agent:
// semgrep + gitleaks + osv-scanner, run concurrently against a shared
// per-task scratch directory, with per-tool degradation rather than
// aborting the whole task on one tool's failure.
type Security struct {
	Defaults    config.SecurityConfig
	MaxFileSize int64
	Logger      *zap.Logger
}

var _ agentcore.Pipeline = (*Security)(nil)

func (s *Security) Run(ctx context.Context, req agentcore.TaskRequest) (agentcore.TaskResult, error) {
	cfg, err := config.ResolveSecurityConfig(s.Defaults, req.Config)
	if err != nil {
		return agentcore.TaskResult{}, err
	}

	repoRoot := repoRootOf(req)
	files := scope.Filter(repoRoot, req.Scope, scope.ProfileSecurity, s.MaxFileSize)
	if len(files) == 0 {
		return finalize(nil, req, "security-agent", nil, 0)
	}

	scratchDir, cleanup, err := newScratchDir("security-agent", req.ID)
	if err != nil {
		return agentcore.TaskResult{}, err
	}
	defer cleanup()

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	type toolRun struct {
		name string
		run  func(context.Context) ([]findings.Finding, bool)
	}
	var runs []toolRun

	if cfg.ScanSecrets {
		args := []string{"scan", "--json", "--output", filepath.Join(scratchDir, "semgrep_results.json")}
		for _, r := range cfg.SemgrepRules {
			args = append(args, "--config", r)
		}
		args = append(args, files...)
		runs = append(runs, toolRun{"semgrep", func(c context.Context) ([]findings.Finding, bool) {
			reportPath := filepath.Join(scratchDir, "semgrep_results.json")
			res := toolrunner.Run(c, "semgrep", args, toolrunner.AllowZeroAndOne)
			found := outcomeFindings(res, "semgrep", s.Logger, scratchOutput(res, reportPath), parsers.Semgrep)
			return found, ranTool(res)
		}})

		if cfg.GitleaksEnabled {
			runs = append(runs, toolRun{"gitleaks", func(c context.Context) ([]findings.Finding, bool) {
				reportPath := filepath.Join(scratchDir, "gitleaks_results.json")
				res := toolrunner.Run(c, "gitleaks", []string{"detect", "--no-git", "--report-format", "json", "--report-path", reportPath, "--source", repoRoot}, toolrunner.AllowAtMostOne)
				found := outcomeFindings(res, "gitleaks", s.Logger, scratchOutput(res, reportPath), func(raw []byte) []findings.Finding { return parsers.Gitleaks(raw) })
				return found, ranTool(res)
			}})
		}
	}
	if cfg.ScanDependencies && cfg.OSVScannerEnabled {
		runs = append(runs, toolRun{"osv-scanner", func(c context.Context) ([]findings.Finding, bool) {
			reportPath := filepath.Join(scratchDir, "osv_results.json")
			res := toolrunner.Run(c, "osv-scanner", []string{"--format", "json", "--output", reportPath, "--recursive", repoRoot}, toolrunner.AllowOnlyZero)
			found := outcomeFindings(res, "osv-scanner", s.Logger, scratchOutput(res, reportPath), func(raw []byte) []findings.Finding { return parsers.OSV(raw, repoRoot) })
			return found, ranTool(res)
		}})
	}

	var (
		mu        sync.Mutex
		all       []findings.Finding
		toolsUsed []string
		wg        sync.WaitGroup
	)
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for _, r := range runs {
		r := r
		wg.Add(1)
		go func() {
			defer wg.Done()
			found, ran := r.run(toolCtx)
			mu.Lock()
			defer mu.Unlock()
			all = append(all, found...)
			if ran {
				toolsUsed = append(toolsUsed, r.name)
			}
		}()
	}
	wg.Wait()

	return finalize(all, req, "security-agent", toolsUsed, totalSize(files))
}
