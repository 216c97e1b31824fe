// Package main is the entry point for the quality-agent binary.
//
// Startup sequence:
//  1. Parse CLI flags / environment variables, optionally layering an
//     AGENT_CONFIG_FILE TOML file over the built-in defaults.
//  2. Build logger.
//  3. If STANDALONE_MODE is set, drive the pipeline once against the
//     current working tree and exit; otherwise connect to the
//     orchestrator over IPC and block.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fegome90-cmd/pit-crew-agents/internal/agentcore"
	"github.com/fegome90-cmd/pit-crew-agents/internal/config"
	"github.com/fegome90-cmd/pit-crew-agents/internal/ipc"
	"github.com/fegome90-cmd/pit-crew-agents/internal/pipeline"
	"github.com/fegome90-cmd/pit-crew-agents/internal/standalone"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type cliConfig struct {
	socketPath     string
	agentName      string
	logLevel       string
	agentConfig    string
	standaloneMode bool
	obsPath        string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &cliConfig{}

	root := &cobra.Command{
		Use:   "quality-agent",
		Short: "Quality agent — complexity, duplication, and syntax analysis",
		Long: `The quality agent connects to the pit-crew orchestrator over a Unix
socket, receives analysis tasks, and runs ruff/eslint/lizard plus in-process
syntax plugins against the requested scope, emitting a SARIF report per task.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.socketPath, "socket-path", envOrDefault("SOCKET_PATH", ""), "Unix socket path of the orchestrator (default from the config file, else /tmp/pit-crew-orchestrator.sock)")
	root.PersistentFlags().StringVar(&cfg.agentName, "agent-name", envOrDefault("AGENT_NAME", "quality-agent"), "Agent name reported at registration")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.agentConfig, "config-file", os.Getenv("AGENT_CONFIG_FILE"), "Optional TOML file overlaying agent defaults")
	root.PersistentFlags().BoolVar(&cfg.standaloneMode, "standalone", os.Getenv("STANDALONE_MODE") == "true", "Run once against the working tree instead of connecting to an orchestrator")
	root.PersistentFlags().StringVar(&cfg.obsPath, "obs-path", envOrDefault("OBS_PATH", "./obs"), "Directory standalone reports are written under")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("quality-agent %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cli *cliConfig) error {
	logger, err := buildLogger(cli.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	agentCfg, err := config.LoadAgentConfigFile(cli.agentConfig)
	if err != nil {
		return err
	}
	if cli.socketPath != "" {
		agentCfg.SocketPath = cli.socketPath
	}

	logger.Info("starting quality agent",
		zap.String("version", version),
		zap.String("socket_path", agentCfg.SocketPath),
		zap.Bool("standalone", cli.standaloneMode),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	qp := &pipeline.Quality{
		Defaults:    config.DefaultQualityConfig(),
		MaxFileSize: int64(agentCfg.MaxFileSizeMB) * 1024 * 1024,
		Logger:      logger,
	}

	if cli.standaloneMode {
		os.Setenv("OBS_PATH", cli.obsPath)
		return standalone.Run(ctx, cli.agentName, qp, logger)
	}

	core := agentcore.New(agentcore.Config{
		AgentName:            cli.agentName,
		MaxActiveTasks:       agentCfg.MaxActiveTasks,
		DefaultTaskTimeout:   secondsOrDefault(agentCfg.DefaultTaskTimeoutSeconds, 300),
		MaxConsecutiveErrors: agentCfg.MaxConsecutiveErrors,
		ErrorCooldown:        secondsOrDefault(agentCfg.ErrorCooldownSeconds, 300),
	}, qp, logger)

	client := ipc.New(ipc.Config{
		SocketPath: agentCfg.SocketPath,
		AgentName:  cli.agentName,
		Version:    version,
		Capabilities: ipc.Capabilities{
			SupportsHeartbeat: true,
			SupportsTasks:     true,
			SupportsEvents:    true,
			Tools:             []string{"ruff", "eslint", "lizard", "dedup", "yaml-syntax", "ts-syntax"},
			Languages:         []string{"python", "javascript", "typescript", "yaml"},
			ScanTypes:         []string{"standard", "syntax_extended", "yaml_strict"},
			OutputFormats:     []string{"sarif"},
		},
	}, core, logger)

	if err := client.Run(ctx); err != nil {
		return fmt.Errorf("ipc client stopped: %w", err)
	}

	logger.Info("quality agent stopped")
	return nil
}

func buildLogger(level string) (*zap.Logger, error) {
	var zcfg zap.Config
	switch level {
	case "debug":
		zcfg = zap.NewDevelopmentConfig()
	default:
		zcfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zcfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zcfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return zcfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func secondsOrDefault(seconds, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}
