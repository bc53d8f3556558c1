package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ncolesummers/web-research-agent/pkg/browser"
	"github.com/ncolesummers/web-research-agent/pkg/cache"
	"github.com/ncolesummers/web-research-agent/pkg/config"
	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/llm"
	"github.com/ncolesummers/web-research-agent/pkg/observability"
	"github.com/ncolesummers/web-research-agent/pkg/research"
	"github.com/ncolesummers/web-research-agent/pkg/resilience"
	"github.com/ncolesummers/web-research-agent/pkg/workflow"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "configs/default.yaml", "Path to configuration file")
		version     = flag.Bool("version", false, "Show version information")
		query       = flag.String("query", "", "Research question (read from stdin when empty)")
		sessionID   = flag.String("session", "", "Session owning the background tabs (random when empty)")
		jsonOutput  = flag.Bool("json", false, "Print the full result as JSON")
		writeConfig = flag.String("write-config", "", "Write the effective configuration to this path and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("Web Research Agent\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	cfg := config.LoadOrDefault(*configPath)
	observability.SetLogLevel(observability.ParseLogLevel(cfg.Observability.Logging.Level))

	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Configuration written to %s\n", *writeConfig)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetry, err := initObservability(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize observability: %v", err)
	}
	defer shutdownObservability(telemetry)

	ctx, span := telemetry.StartSpan(ctx, "main",
		trace.WithAttributes(attribute.String("version", Version)),
	)
	defer span.End()

	if err := run(ctx, cfg, telemetry, *query, *sessionID, *jsonOutput); err != nil {
		span.RecordError(err)
		span.End()
		shutdownObservability(telemetry)
		log.Fatalf("Research failed: %v", err)
	}
}

func initObservability(cfg *config.Config) (*observability.Telemetry, error) {
	telemetry, err := observability.NewTelemetry(&observability.TelemetryConfig{
		ServiceName:    "web-research-agent",
		ServiceVersion: Version,
		Environment:    getEnvironment(),
		OTLPEndpoint:   cfg.Observability.Tracing.Endpoint,
		SamplingRate:   cfg.Observability.Tracing.SamplingRate,
		EnableTracing:  cfg.Observability.Tracing.Enabled,
		EnableMetrics:  cfg.Observability.Metrics.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return telemetry, nil
}

func shutdownObservability(telemetry *observability.Telemetry) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down telemetry: %v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, telemetry *observability.Telemetry, query, sessionID string, jsonOutput bool) error {
	logger := observability.NewStructuredLogger("ora")

	query, err := readQuery(query)
	if err != nil {
		return err
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	client, err := newLLMClient(ctx, cfg, telemetry)
	if err != nil {
		return err
	}

	manager := browser.NewManager(browser.Config{
		RemoteURL:         cfg.Browser.RemoteURL,
		Headless:          cfg.Browser.Headless,
		Stealth:           cfg.Browser.Stealth,
		ResourceBlocking:  cfg.Browser.ResourceBlocking,
		NavigationTimeout: cfg.GetDuration(cfg.Browser.NavigationTimeout, 15*time.Second),
	}, logger.WithComponent("browser"))
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() { _ = manager.Close() }()

	contentCache, closeCache, err := newContentCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	graph, cleanup, err := buildGraph(cfg, client, manager, contentCache, telemetry, sessionID)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(ctx, cfg.GetDuration(cfg.Research.Timeout, 10*time.Minute))
	defer cancel()

	logger.Info(ctx, "Starting research", map[string]any{"query": query, "session": sessionID})
	result, err := graph.Execute(ctx, query)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(result)
	return nil
}

func newLLMClient(ctx context.Context, cfg *config.Config, telemetry *observability.Telemetry) (domain.LLMClient, error) {
	ollamaClient := llm.NewOllamaClient(
		cfg.Ollama.BaseURL,
		cfg.Ollama.Model,
		&llm.OllamaOptions{
			Temperature: cfg.Ollama.Temperature,
			MaxTokens:   cfg.Ollama.MaxTokens,
			TopP:        cfg.Ollama.TopP,
			TopK:        cfg.Ollama.TopK,
			Timeout:     cfg.GetDuration(cfg.Ollama.Timeout, 2*time.Minute),
		},
	)

	healthCtx, healthSpan := telemetry.StartSpan(ctx, "ollama_health_check")
	defer healthSpan.End()
	if err := ollamaClient.CheckHealth(healthCtx); err != nil {
		healthSpan.RecordError(err)
		return nil, fmt.Errorf("ollama health check failed: %w", err)
	}
	if err := ollamaClient.EnsureModel(healthCtx); err != nil {
		healthSpan.RecordError(err)
		return nil, err
	}

	return llm.NewInstrumentedLLMClient(ollamaClient, telemetry, cfg.Ollama.Model)
}

func newContentCache(cfg *config.Config) (domain.ContentCache, func(), error) {
	ttl := cfg.GetDuration(cfg.Cache.TTL, cache.DefaultTTL)

	if cfg.Cache.Type != "redis" {
		return cache.NewMemoryCache(ttl), func() {}, nil
	}

	rc, err := cache.NewRedisCache(cache.RedisConfig{
		Address:  cfg.Cache.Redis.Address,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		TTL:      ttl,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect content cache: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

func buildGraph(cfg *config.Config, client domain.LLMClient, manager *browser.Manager, contentCache domain.ContentCache, telemetry *observability.Telemetry, sessionID string) (*workflow.ResearchGraph, func(), error) {
	logger := observability.NewStructuredLogger("research")
	metrics := telemetry.Metrics()

	policy := resilience.DefaultAttemptPolicy()
	policy.MaxAttempts = cfg.Research.MaxAttempts
	policy.Delay = cfg.GetDuration(cfg.Research.RetryDelay, time.Second)

	authority := research.DefaultAuthorityTable()
	if path := cfg.Research.AuthorityTable; path != "" {
		table, err := research.LoadAuthorityTable(path)
		if err != nil {
			return nil, nil, err
		}
		authority = table
	}

	searcher := research.NewSearcher(
		browser.NewSearchEngine(manager, cfg.Browser.SearchURL),
		cfg.Research.SearchConcurrency,
		cfg.Research.SearchResults,
		logger.WithComponent("searcher"),
		metrics,
	).WithRegion(cfg.Browser.Region)

	page := browser.NewPage(manager)
	retrieverOpts := []research.RetrieverOption{
		research.WithPage(page),
		research.WithRetrieverTelemetry(telemetry),
	}
	var tabs *browser.TabPool
	if cfg.Browser.BackgroundTabs {
		tabs = browser.NewTabPool(manager)
		retrieverOpts = append(retrieverOpts, research.WithTabPool(tabs, sessionID))
	}

	retrieverCfg := research.DefaultRetrieverConfig()
	retrieverCfg.Concurrency = cfg.Research.FetchConcurrency
	retrieverCfg.PageTimeout = cfg.GetDuration(cfg.Research.PageTimeout, retrieverCfg.PageTimeout)
	retrieverCfg.SettleDelay = cfg.GetDuration(cfg.Research.SettleDelay, retrieverCfg.SettleDelay)

	graph, err := workflow.NewResearchGraph(cfg.Research.ToDeepResearchConfig(), workflow.Components{
		Decomposer: research.NewDecomposer(client, policy, logger.WithComponent("decomposer")),
		Searcher:   searcher,
		Retriever:  research.NewRetriever(retrieverCfg, contentCache, logger.WithComponent("retriever"), retrieverOpts...),
		Evaluator: research.NewEvaluator(client, policy, logger.WithComponent("evaluator"),
			research.WithAuthorityTable(authority),
			research.WithEvaluatorMetrics(metrics),
			research.WithBatchSize(cfg.Research.EvalBatchSize),
		),
		Gaps:        research.NewGapAnalyzer(client, policy, logger.WithComponent("gap_analyzer")),
		Synthesizer: research.NewSynthesizer(client, policy, logger.WithComponent("synthesizer")),
	}, workflow.WithTelemetry(telemetry), workflow.WithLogger(logger.WithComponent("research_graph")))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build research graph: %w", err)
	}

	cleanup := func() {
		if tabs != nil {
			tabs.CloseSession(context.Background(), sessionID)
		}
		_ = page.Close()
	}
	return graph, cleanup, nil
}

func readQuery(query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		fmt.Print("Enter your research question: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read query from stdin: %w", err)
		}
		query = line
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("no research query provided")
	}
	return query, nil
}

func printResult(result *domain.ResearchResult) {
	fmt.Println()
	fmt.Println(result.Response)

	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, src := range result.Sources {
			title := src.Title
			if title == "" {
				title = src.Domain
			}
			fmt.Printf("[%d] %s - %s\n", i+1, title, src.URL)
		}
	}

	if len(result.FollowUpQuestions) > 0 {
		fmt.Println("\nYou might also ask:")
		for _, q := range result.FollowUpQuestions {
			fmt.Printf("- %s\n", q)
		}
	}

	stats := result.Stats
	fmt.Printf("\nConfidence: %s\n", result.Confidence)
	fmt.Printf("Searches: %d (follow-up %d)  Pages: %d  Facts: %d extracted, %d verified\n",
		stats.TotalSearches, stats.FollowUpSearches, stats.PagesAnalyzed, stats.FactsExtracted, stats.FactsVerified)
	for _, p := range stats.Phases {
		fmt.Printf("  %-14s %6dms  %d items\n", p.Name, p.DurationMs(), p.ItemsProcessed)
	}
	fmt.Printf("Duration: %s\n", stats.TotalDuration.Round(time.Millisecond))
}

func getEnvironment() string {
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}
