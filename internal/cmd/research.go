package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fathomlabs/fathom/internal/config"
	"github.com/fathomlabs/fathom/internal/observability"
	"github.com/fathomlabs/fathom/pkg/archive"
	"github.com/fathomlabs/fathom/pkg/jobstore"
	"github.com/fathomlabs/fathom/pkg/llm"
	"github.com/fathomlabs/fathom/pkg/manifest"
	"github.com/fathomlabs/fathom/pkg/research"
	"github.com/fathomlabs/fathom/pkg/trace"
	"github.com/fathomlabs/fathom/pkg/websearch"
)

var researchCmd = &cobra.Command{
	Use:   "research",
	Short: "Run a research job from manifest",
	Long: `Run a one-shot research job as defined in a YAML or JSON manifest file.

The manifest specifies the query, breadth/depth budgets, clarifying
answers, source filtering, and output configuration.

Example:
  fathom research --job research.yaml
  fathom research --job research.yaml --output report.md
  fathom research --job research.yaml --trace trace.jsonl
  fathom research --job research.yaml --dry-run`,
	RunE: runResearch,
}

var (
	researchJobPath string
	researchOutput  string
	researchTrace   string
	researchDryRun  bool
)

func init() {
	rootCmd.AddCommand(researchCmd)

	researchCmd.Flags().StringVarP(&researchJobPath, "job", "j", "", "Path to job manifest (required)")
	researchCmd.Flags().StringVarP(&researchOutput, "output", "o", "", "Override report destination (stdout or file path)")
	researchCmd.Flags().StringVar(&researchTrace, "trace", "", "Override trace destination (none|stderr|file path)")
	researchCmd.Flags().BoolVar(&researchDryRun, "dry-run", false, "Validate manifest and show plan without executing")

	_ = researchCmd.MarkFlagRequired("job")
}

func runResearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := manifest.Load(researchJobPath)
	if err != nil {
		observability.CLILogger.Error("Failed to load manifest",
			zap.String("path", researchJobPath),
			zap.Error(err))
		return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
	}

	observability.CLILogger.Debug("Loaded manifest",
		zap.String("path", researchJobPath),
		zap.String("query", m.Research.Query),
		zap.Int("breadth", m.Research.Breadth),
		zap.Int("depth", m.Research.Depth))

	if researchOutput != "" {
		m.Output.Destination = researchOutput
	}
	if researchTrace != "" {
		m.Output.Trace = researchTrace
	}

	if researchDryRun {
		return showResearchPlan(m)
	}

	return executeResearch(ctx, m)
}

// showResearchPlan displays what would run without executing.
func showResearchPlan(m *manifest.Manifest) error {
	fmt.Println("=== Research Plan (dry-run) ===")
	fmt.Println()
	fmt.Printf("Query:       %s\n", m.Research.Query)
	fmt.Printf("Breadth:     %d\n", m.Research.Breadth)
	fmt.Printf("Depth:       %d\n", m.Research.Depth)
	if m.Research.DirectSearch {
		fmt.Println("Strategy:    direct grounded search")
	} else {
		fmt.Println("Strategy:    recursive + grounded")
	}
	if m.Research.RequestedBy != "" {
		fmt.Printf("Requester:   %s\n", m.Research.RequestedBy)
	}
	if len(m.Research.Questions) > 0 {
		fmt.Println()
		fmt.Println("Clarifying answers:")
		for _, qa := range m.Research.Questions {
			fmt.Printf("  Q: %s\n", qa.Question)
			if qa.Answer != "" {
				fmt.Printf("  A: %s\n", qa.Answer)
			}
		}
	}
	if len(m.Sources.Allow) > 0 || len(m.Sources.Block) > 0 {
		fmt.Println()
		fmt.Println("Source filters:")
		if len(m.Sources.Allow) > 0 {
			fmt.Println("  Allow:")
			for _, p := range m.Sources.Allow {
				fmt.Printf("    - %s\n", p)
			}
		}
		if len(m.Sources.Block) > 0 {
			fmt.Println("  Block:")
			for _, p := range m.Sources.Block {
				fmt.Printf("    - %s\n", p)
			}
		}
	}
	fmt.Println()
	fmt.Printf("Report:      %s\n", m.Output.Destination)
	fmt.Printf("Trace:       %s\n", m.Output.Trace)
	if m.Archive != nil {
		switch m.Archive.Backend {
		case manifest.ArchiveBackendS3:
			fmt.Printf("Archive:     s3://%s/%s\n", m.Archive.Bucket, m.Archive.Prefix)
		default:
			fmt.Printf("Archive:     %s (%s)\n", m.Archive.Backend, m.Archive.Dir)
		}
	}
	fmt.Println()
	fmt.Println("Manifest is valid. Run without --dry-run to execute.")
	return nil
}

// executeResearch runs the research job described by the manifest and
// writes the report to the configured destination.
func executeResearch(ctx context.Context, m *manifest.Manifest) error {
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

	// Manifest filter patterns extend the service-level ones.
	filter, err := websearch.NewSourceFilter(websearch.FilterConfig{
		Allow: append(append([]string{}, cfg.Search.Allow...), m.Sources.Allow...),
		Block: append(append([]string{}, cfg.Search.Block...), m.Sources.Block...),
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid source filter patterns", err)
	}

	var searcher research.Searcher
	if !m.Research.DirectSearch {
		browser, err := websearch.NewBrowser(websearch.BrowserConfig{
			Headless:    cfg.Search.Headless,
			PageTimeout: cfg.Search.PageTimeout,
			Filter:      filter,
			Logger:      logger,
		})
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Cannot start browser session", err)
		}
		defer func() { _ = browser.Close() }()
		searcher = browser
	}

	questions := make([]jobstore.QuestionAnswer, 0, len(m.Research.Questions))
	for _, qa := range m.Research.Questions {
		questions = append(questions, jobstore.QuestionAnswer{Question: qa.Question, Answer: qa.Answer})
	}

	job, err := store.Create(ctx, jobstore.CreateParams{
		Query:        m.Research.Query,
		Breadth:      m.Research.Breadth,
		Depth:        m.Research.Depth,
		Questions:    questions,
		DirectSearch: m.Research.DirectSearch,
		RequestedBy:  m.Research.RequestedBy,
	})
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot create job record", err)
	}

	tracer, traceCleanup, err := setupTraceWriter(m.Output.Trace, job.ID)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot open trace destination", err)
	}
	defer traceCleanup()

	archiver, err := setupArchiver(ctx, m.Archive)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid archive configuration", err)
	}

	orch, err := research.NewOrchestrator(research.OrchestratorConfig{
		Store:     store,
		Generator: gen,
		Searcher:  searcher,
		Tracer:    tracer,
		Archiver:  archiver,
		Logger:    logger,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot build orchestrator", err)
	}

	observability.CLILogger.Info("Research started",
		zap.String("job_id", job.ID),
		zap.String("query", m.Research.Query))

	if err := orch.Run(ctx, job); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Research run failed", err)
	}

	finished, err := store.Get(ctx, job.ID)
	if err != nil {
		return exitError(foundry.ExitFileReadError, "Cannot read finished job", err)
	}
	if finished.Result == nil {
		return exitError(foundry.ExitFileReadError, "Finished job has no report",
			fmt.Errorf("job %s completed without a result", job.ID))
	}

	return writeReport(m.Output.Destination, *finished.Result)
}

// setupTraceWriter resolves the trace destination to a writer and a
// cleanup function. "none" disables tracing.
func setupTraceWriter(dest, jobID string) (trace.Writer, func(), error) {
	switch dest {
	case "", manifest.DefaultTrace:
		return trace.NopWriter{}, func() {}, nil
	case "stderr":
		w := trace.NewJSONLWriter(os.Stderr, jobID)
		return w, func() { _ = w.Close() }, nil
	}

	f, err := os.Create(dest)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace file: %w", err)
	}
	w := trace.NewJSONLWriter(f, jobID)
	cleanup := func() {
		_ = w.Close()
		_ = f.Close()
	}
	return w, cleanup, nil
}

// setupArchiver builds the archiver named by the manifest, or nil when
// archival is not configured.
func setupArchiver(ctx context.Context, cfg *manifest.ArchiveConfig) (archive.Archiver, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Backend {
	case manifest.ArchiveBackendFile:
		return archive.NewFile(cfg.Dir)
	case manifest.ArchiveBackendS3:
		return archive.NewS3(ctx, archive.S3Config{
			Bucket:         cfg.Bucket,
			Prefix:         cfg.Prefix,
			Region:         cfg.Region,
			Endpoint:       cfg.Endpoint,
			Profile:        cfg.Profile,
			ForcePathStyle: cfg.ForcePathStyle,
		})
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s", cfg.Backend)
	}
}

// writeReport sends the report to stdout or the named file.
func writeReport(dest, report string) error {
	if dest == "" || dest == manifest.DefaultDestination {
		fmt.Println(report)
		return nil
	}
	if err := os.WriteFile(dest, []byte(report), 0o644); err != nil {
		return exitError(foundry.ExitFileWriteError, "Cannot write report", err)
	}
	observability.CLILogger.Info("Report written", zap.String("path", dest))
	return nil
}
