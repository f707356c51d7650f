package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/martinemde/cliengineer/agentloop"
	"github.com/martinemde/cliengineer/artifact"
	"github.com/martinemde/cliengineer/config"
	"github.com/martinemde/cliengineer/conversation"
	"github.com/martinemde/cliengineer/events"
	"github.com/martinemde/cliengineer/llm"
	"github.com/martinemde/cliengineer/logging"
)

const eventBufferSize = 1000

// run wires the managers together and drives one loop to completion.
func run(cmd *cobra.Command, flags *rootFlags, spec commandSpec, prompt string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if flags.verbose {
		level = logging.LevelDebug
	}
	logger, err := logging.NewLogger(cfg.Log.File, level)
	if err != nil {
		return err
	}
	defer logger.Close()
	if cfg.Execution.ParallelEnabled {
		logger.Warn("execution.parallel_enabled is ignored; plan steps always run in order")
	}

	workDir := flags.workDir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
	}

	bus := events.NewBus(eventBufferSize)
	defer bus.Close()

	llmManager := llm.NewManager(
		llm.WithEmitter(bus),
		llm.WithLogger(logger),
	)
	for _, p := range buildProviders(ctx, cfg, logger) {
		llmManager.RegisterProvider(p)
	}
	for name, pricing := range pricingOverrides(cfg) {
		llmManager.Usage().SetPricing(name, pricing)
	}
	defer llmManager.Close()

	active, err := llmManager.Active()
	if err != nil {
		return err
	}

	artifactDir := cfg.Execution.ArtifactDir
	if !filepath.IsAbs(artifactDir) {
		artifactDir = filepath.Join(workDir, artifactDir)
	}
	store, err := artifact.NewManager(artifactDir,
		artifact.WithEmitter(bus),
		artifact.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	cacheDir := cfg.Context.CacheDir
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(workDir, cacheDir)
	}
	conv, err := conversation.NewManager(conversation.Config{
		MaxTokens:            cfg.Context.MaxTokens,
		CompressionThreshold: cfg.Context.CompressionThreshold,
		CacheEnabled:         cfg.Context.CacheEnabled,
		CacheDir:             cacheDir,
		ArchiveSize:          cfg.Context.ArchiveSize,
	},
		conversation.WithModel(llmManager),
		conversation.WithEmitter(bus),
		conversation.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	contextID := conv.Create(map[string]string{"command": spec.name})

	workspace := agentloop.NewLocalWorkspace(workDir)
	loop := agentloop.NewLoop(llmManager, store,
		agentloop.WithMaxIterations(cfg.Execution.MaxIterations),
		agentloop.WithConversation(conv),
		agentloop.WithEventSink(bus),
		agentloop.WithLogger(logger),
		agentloop.WithWorkspace(workspace, active.Model(), !cfg.Execution.DisableAutoGit),
	)

	out := newPrinter(cmd.OutOrStdout(), cfg.UI.OutputFormat, cfg.UI.Colorful, flags.verbose)
	printerSub := bus.Subscribe()

	var (
		srv     *http.Server
		metrics *events.Metrics
		metSub  *events.Subscription
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = events.MustNewMetrics(reg)
		metSub = bus.Subscribe()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.consume(printerSub)
		return nil
	})
	if srv != nil {
		g.Go(func() error {
			return metrics.Consume(gctx, metSub)
		})
		g.Go(func() error {
			logger.Info("serving metrics", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	var runErr error
	g.Go(func() error {
		if spec.scan {
			prompt = loadCodebase(gctx, workspace, conv, contextID, bus, logger, prompt)
		}
		runErr = loop.Run(gctx, prompt, contextID)

		bus.Close()
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if cfg.Context.CacheEnabled {
		if err := conv.Save(contextID); err != nil {
			logger.Warn("failed to save conversation", "context_id", contextID, "error", err)
		}
	}

	tokens, pct, _ := conv.Usage(contextID)
	summary := runSummary{
		Command:        spec.name,
		Outcome:        runErr,
		Provider:       active.Name() + "/" + active.Model(),
		Artifacts:      len(store.List()),
		ArtifactDir:    store.Dir(),
		Usage:          llmManager.Usage().Snapshot(),
		TotalCost:      llmManager.Usage().TotalCost(),
		ContextTokens:  tokens,
		ContextPercent: pct,
	}
	if cfg.UI.OutputFormat != "json" {
		fmt.Fprintln(cmd.OutOrStdout(), summary.render(errors.Is(runErr, agentloop.ErrMaxIterations)))
	}

	if cfg.Execution.CleanupOnExit {
		removed, err := store.Cleanup()
		if err != nil {
			logger.Warn("artifact cleanup failed", "error", err)
		} else {
			logger.Info("artifact cleanup finished", "removed", removed)
		}
	}
	return runErr
}

// loadConfig reads configuration and applies command line overrides.
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	v := config.NewViper(flags.cfgFile)
	if cmd.Flags().Changed("max-iterations") {
		v.Set("execution.max_iterations", flags.maxIterations)
	}
	return config.Load(v)
}

// loadCodebase adds the workspace's source files to the conversation as
// system messages and returns prompt extended with the list of files.
func loadCodebase(ctx context.Context, w agentloop.Workspace, conv *conversation.Manager, contextID string,
	bus *events.Bus, logger *logging.Logger, prompt string) string {
	bus.Emit(events.LogLine(logging.LevelInfo, "Scanning codebase for context..."))

	files, err := agentloop.ScanCodebase(w, agentloop.DefaultScanOptions)
	if err != nil {
		logger.Warn("codebase scan failed", "error", err)
		return prompt
	}
	added := files[:0]
	for _, f := range files {
		if err := conv.AddMessage(ctx, contextID, conversation.RoleSystem, f.ContextMessage()); err != nil {
			logger.Warn("failed to add file to context", "file", f.Path, "error", err)
			continue
		}
		logger.Debug("added file to context", "file", f.Path, "bytes", len(f.Content))
		added = append(added, f)
	}

	bus.Emit(events.LogLine(logging.LevelInfo, fmt.Sprintf("Scanning complete. Added %d files to context", len(added))))
	return prompt + agentloop.FileListNote(added)
}
