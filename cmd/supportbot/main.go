package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"supportbot/internal/config"
	"supportbot/internal/domain"
	"supportbot/internal/logger"
	"supportbot/internal/server"
	"supportbot/internal/tui"
)

type rootFlags struct {
	configPath string
	logLevel   string
	logJSON    bool
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "supportbot",
		Short:        "Support chat backend with intent routing and knowledge-base answers",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to YAML config file (defaults to ./supportbot.yaml or ~/.config/supportbot/config.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error, disabled")
	root.PersistentFlags().BoolVar(&flags.logJSON, "log-json", false, "Emit logs as JSON")

	root.AddCommand(
		newServeCmd(flags),
		newAskCmd(flags),
		newChatCmd(flags),
		newIngestCmd(flags),
		newStatsCmd(flags),
	)
	return root
}

func loadConfig(flags *rootFlags) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if flags.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(flags.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newLogger(flags *rootFlags, cfg *config.AppConfig) logger.Logger {
	lc := logger.DefaultConfig()
	lc.Level = logger.ParseLevel(cfg.Log.Level)
	if flags.logLevel != "" {
		lc.Level = logger.ParseLevel(flags.logLevel)
	}
	lc.JSON = cfg.Log.JSON || flags.logJSON
	return logger.Init(lc)
}

// bootstrap loads config, sets up logging and builds the app.
func bootstrap(ctx context.Context, flags *rootFlags) (*app, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, newLogger(flags, cfg)), nil
}

func newServeCmd(flags *rootFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a, err := bootstrap(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()
			if port > 0 {
				a.cfg.Server.Port = port
			}
			a.log.Info("Starting support assistant", "components", a.String())
			return server.New(a.serverDeps(), a.log).Run(ctx, a.cfg.Server.Address())
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "Override the configured listen port")
	return cmd
}

func newAskCmd(flags *rootFlags) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()
			query := strings.Join(args, " ")
			res := a.orch.Orchestrate(ctx, domain.Query{Text: query, UserID: userID})
			if a.history != nil {
				if err := a.history.Record(ctx, userID, query, res.Response, res.ActionInvoked, res.Confidence); err != nil {
					a.log.Warn("Failed to save chat history", "error", err)
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "cli", "User id recorded with the exchange")
	return cmd
}

func newChatCmd(flags *rootFlags) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			// The console owns the terminal, so logs go to a file.
			logPath := filepath.Join(os.TempDir(), "supportbot-chat.log")
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open chat log: %w", err)
			}
			defer logFile.Close()
			lc := logger.DefaultConfig()
			lc.Level = logger.ParseLevel(cfg.Log.Level)
			lc.Output = logFile
			log := logger.Init(lc)

			ctx := cmd.Context()
			a := newApp(ctx, cfg, log)
			defer a.Close()
			n, _ := a.store.Count(ctx)
			banner := fmt.Sprintf("%d passages indexed (%s). Logs: %s", n, a.String(), logPath)
			_, err = tea.NewProgram(tui.New(a.orch, userID, banner), tea.WithAltScreen()).Run()
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "cli", "User id for the session")
	return cmd
}

func newIngestCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [files or globs...]",
		Short: "Chunk, embed and store knowledge-base documents (.txt, .md)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()
			report, err := a.ingestService().IngestFiles(ctx, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ingested %d files into %d chunks (%s)\n", report.Files, report.Chunks, a.store.Backend())
			if report.Overview != "" {
				fmt.Fprintf(out, "\nOverview:\n%s\n", report.Overview)
			}
			return nil
		},
	}
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show component health and knowledge-base size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()
			h := a.health(ctx)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:      %s\n", h.Status)
			fmt.Fprintf(out, "embedder:    %s\n", h.EmbedderMode)
			fmt.Fprintf(out, "vectors:     %s (%d passages)\n", h.VectorBackend, h.Documents)
			fmt.Fprintf(out, "generator:   %s (available=%t)\n", a.generator.Provider(), h.GeneratorAvailable)
			if a.history != nil {
				if n, err := a.history.Count(ctx); err == nil {
					fmt.Fprintf(out, "history:     %d exchanges\n", n)
				}
			}
			return nil
		},
	}
}
