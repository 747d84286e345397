package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fathomlabs/fathom/internal/config"
	"github.com/fathomlabs/fathom/internal/observability"
	"github.com/fathomlabs/fathom/internal/server"
	"github.com/fathomlabs/fathom/internal/server/handlers"
	"github.com/fathomlabs/fathom/pkg/jobstore"
	"github.com/fathomlabs/fathom/pkg/llm"
	"github.com/fathomlabs/fathom/pkg/research"
	"github.com/fathomlabs/fathom/pkg/websearch"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the research HTTP service",
	Long: `Run the HTTP API for asynchronous research jobs.

The service accepts research jobs, runs them in the background, and
serves status polling and result retrieval endpoints.

Example:
  fathom serve
  fathom serve --config fathom.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx, cfgFile)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if err := observability.Init(cfg.Logging.Level, cfg.Logging.Profile); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}
	defer observability.Sync()
	logger := observability.Logger()

	if cfg.LLM.APIKey == "" {
		return exitError(foundry.ExitInvalidArgument, "Missing Gemini API key",
			fmt.Errorf("set llm.api_key or %s_LLM_API_KEY", config.EnvPrefix))
	}

	store, err := jobstore.Open(ctx, jobstore.Config{Path: cfg.Store.Path})
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot open job store", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.Migrate(ctx); err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot migrate job store", err)
	}

	gen, err := llm.New(ctx, llm.Config{
		APIKey:            cfg.LLM.APIKey,
		Model:             cfg.LLM.Model,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		MaxRetries:        cfg.LLM.MaxRetries,
		Logger:            logger,
	})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Cannot create generation client", err)
	}

	filter, err := websearch.NewSourceFilter(websearch.FilterConfig{
		Allow: cfg.Search.Allow,
		Block: cfg.Search.Block,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid source filter patterns", err)
	}
	searcher, err := websearch.NewBrowser(websearch.BrowserConfig{
		Headless:    cfg.Search.Headless,
		PageTimeout: cfg.Search.PageTimeout,
		Filter:      filter,
		Logger:      logger,
	})
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Cannot start browser session", err)
	}
	defer func() { _ = searcher.Close() }()

	orch, err := research.NewOrchestrator(research.OrchestratorConfig{
		Store:     store,
		Generator: gen,
		Searcher:  searcher,
		Logger:    logger,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot build orchestrator", err)
	}

	handlers.InitHealthManager(versionInfo.Version)
	hm := handlers.GetHealthManager()
	hm.RegisterChecker("signal", signalHealthChecker{})
	hm.RegisterChecker("store", storeHealthChecker{store: store})
	hm.RegisterChecker("identity", identityHealthChecker{
		binaryName: appIdentity.BinaryName,
		envPrefix:  appIdentity.EnvPrefix,
		configName: appIdentity.ConfigName,
	})

	server.SetVersionInfo(versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
	srv := server.New(cfg.Server.Host, cfg.Server.Port,
		server.WithJobs(handlers.NewJobsHandler(store, orch, logger)),
		server.WithQuestions(handlers.NewQuestionsHandler(gen)),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("server started",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("version", versionInfo.Version))

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received",
		zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitError(foundry.ExitSignalInt, "Forced shutdown", err)
	}

	logger.Info("server stopped")
	return nil
}

// signalHealthChecker reports liveness of the serve loop itself. It can
// only be consulted while the process is up, so it always passes.
type signalHealthChecker struct{}

func (signalHealthChecker) CheckHealth(ctx context.Context) error {
	return nil
}

// storeHealthChecker verifies the job store connection is usable.
type storeHealthChecker struct {
	store *jobstore.Store
}

func (c storeHealthChecker) CheckHealth(ctx context.Context) error {
	if c.store == nil {
		return errors.New("job store not initialized")
	}
	if err := c.store.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("job store unreachable: %w", err)
	}
	return nil
}

// identityHealthChecker verifies the binary identity was wired during
// init. A blank field means a broken build, not a transient fault.
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (c identityHealthChecker) CheckHealth(ctx context.Context) error {
	if c.binaryName == "" {
		return errors.New("missing binary name")
	}
	if c.envPrefix == "" {
		return errors.New("missing env prefix")
	}
	if c.configName == "" {
		return errors.New("missing config name")
	}
	return nil
}
