// Package standalone drives an AnalyzerPipeline directly against the
// current working tree, bypassing IpcClient entirely, for STANDALONE_MODE.
package standalone

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/fegome90-cmd/pit-crew-agents/internal/agentcore"
)

// Run walks the current working directory for a fresh scope, invokes
// pipeline once with a synthetic task id, and logs the outcome the way the
// original standalone entrypoint does.
func Run(ctx context.Context, agentName string, pipeline agentcore.Pipeline, logger *zap.Logger) error {
	repoRoot, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("standalone: resolve working directory: %w", err)
	}

	taskID := fmt.Sprintf("standalone-%d", time.Now().UnixNano())
	req := agentcore.TaskRequest{
		ID:    taskID,
		Scope: []string{"."},
		Context: map[string]any{
			"repo_root":   repoRoot,
			"commit_hash": "standalone",
			"branch":      "main",
		},
	}

	logger.Info("starting standalone analysis", zap.String("agent", agentName), zap.String("repo_root", repoRoot))

	start := time.Now()
	result, err := pipeline.Run(ctx, req)
	if err != nil {
		logger.Error("standalone analysis failed", zap.Error(err))
		return err
	}

	logger.Info("standalone analysis completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("findings", result.FindingsCount),
		zap.Strings("tools_used", result.ToolsUsed),
		zap.String("report", result.OutputFile),
	)
	return nil
}
