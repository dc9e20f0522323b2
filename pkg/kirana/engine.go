package kirana

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/harunnryd/kirana/pkg/ingest"
	"github.com/harunnryd/kirana/pkg/llm"
	"github.com/harunnryd/kirana/pkg/logging"
	"github.com/harunnryd/kirana/pkg/metrics"
	"github.com/harunnryd/kirana/pkg/observers"
	"github.com/harunnryd/kirana/pkg/orchestrator"
	"github.com/harunnryd/kirana/pkg/redact"
	"github.com/harunnryd/kirana/pkg/resilience"
	"github.com/harunnryd/kirana/pkg/runner"
	"github.com/harunnryd/kirana/pkg/session"
	"github.com/harunnryd/kirana/pkg/store"
	"github.com/harunnryd/kirana/pkg/tools"
	"github.com/harunnryd/kirana/pkg/transports"
)

// Engine wires the store, session manager, orchestrator, ingestion, and
// transport into one serving unit. It implements transports.Answerer: every
// Answer call builds a fresh tool registry over the shared store, so
// concurrent requests never share a sources slot.
type Engine struct {
	cfg       Config
	store     store.VectorStore
	sessions  *session.Manager
	orch      *orchestrator.Orchestrator
	transport transports.Transport
	providers *ProviderRegistry
	runner    *runner.LifecycleRunner
	asyncObs  *metrics.AsyncObserver
	ingestor  *ingest.Ingestor
	watcher   *ingest.Watcher
	source    ingest.Source
	ctx       context.Context
	cancel    context.CancelFunc
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	// Transport, when set, is used as-is. Otherwise TransportFactory builds
	// the transport once the engine exists, so it can call back into it.
	Transport        transports.Transport
	TransportFactory func(cfg Config, answerer transports.Answerer) (transports.Transport, error)
}

type drainerFunc func() error

func (f drainerFunc) Drain() error { return f() }

func NewEngine(opts EngineOptions) (*Engine, error) {
	cfg := opts.Config
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	redact.SetEnabled(cfg.Privacy.RedactPII)

	slog.Info("kirana_init",
		"environment", cfg.Environment,
		"llm_provider", cfg.LLM.Provider,
		"store_provider", cfg.Store.Provider,
		"transport", cfg.Transports.Provider,
	)

	latencyObs := observers.NewLatencyObserver(logging.NewComponentLogger(slog.Default(), "latency"))
	logObs := observers.NewLoggerObserver(slog.Default())
	var timelineObs *observers.TimelineObserver
	var costObs *observers.CostObserver
	var eventLog *os.File
	obsList := []metrics.Observer{latencyObs, logObs}
	if dir := strings.TrimSpace(cfg.Observability.ArtifactsDir); dir != "" {
		if cfg.Observability.RetentionDays > 0 {
			_, _ = observers.PurgeArtifacts(dir, time.Duration(cfg.Observability.RetentionDays)*24*time.Hour)
		}
		timelineObs = observers.NewTimelineObserver(dir)
		costObs = observers.NewCostObserver(dir, observers.CostRates{
			InputPerMTok:  cfg.Observability.CostInputPerMTok,
			OutputPerMTok: cfg.Observability.CostOutputPerMTok,
		})
		obsList = append(obsList, timelineObs, costObs)
		if f, err := openEventLog(dir); err != nil {
			slog.Warn("event_log_unavailable", "error", err)
		} else {
			eventLog = f
			obsList = append(obsList, metrics.NewJSONLObserver(f))
		}
	}
	var multiObs metrics.Observer = observers.NewMultiObserver(obsList...)
	if cfg.Observability.SampleRate > 0 && cfg.Observability.SampleRate < 1 {
		multiObs = metrics.NewSamplingObserver(multiObs, cfg.Observability.SampleRate)
	}
	buffer := cfg.Observability.BufferSize
	if buffer <= 0 {
		buffer = 2048
	}
	asyncObs := metrics.NewAsyncObserver(multiObs, buffer)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}

	vectorStore, err := providers.BuildStore(cfg.Store.Provider, cfg)
	if err != nil {
		return nil, err
	}
	adapter, err := providers.BuildLLM(cfg.LLM.Provider, cfg)
	if err != nil {
		return nil, err
	}
	adapter = wrapAdapter(adapter, cfg.Resilience, asyncObs)

	var dispatcher *orchestrator.ToolDispatcher
	if cfg.Dispatcher.Concurrency > 0 {
		dispatcher = orchestrator.NewToolDispatcher(orchestrator.ToolDispatcherOptions{
			Concurrency: cfg.Dispatcher.Concurrency,
			Timeout:     time.Duration(cfg.Dispatcher.TimeoutMS) * time.Millisecond,
		})
	}

	orch := orchestrator.New(adapter, orchestrator.Config{
		SystemPrompt: cfg.Orchestrator.SystemPrompt,
		MaxRounds:    cfg.Orchestrator.MaxRounds,
		MaxTokens:    cfg.Orchestrator.MaxTokens,
		Temperature:  cfg.Orchestrator.Temperature,
		Dispatcher:   dispatcher,
	})
	orch.SetObserver(asyncObs)

	processor := ingest.NewDocumentProcessor(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	ingestor := ingest.NewIngestor(processor, vectorStore)
	source, err := buildSource(cfg.Ingest)
	if err != nil {
		return nil, err
	}
	var watcher *ingest.Watcher
	if cfg.Ingest.Watch && localDocsDir(cfg.Ingest) != "" {
		watcher = ingest.NewWatcher(cfg.Ingest.DocsDir, ingestor)
	}

	ctx, cancel := context.WithCancel(context.Background())
	engine := &Engine{
		cfg:       cfg,
		store:     vectorStore,
		sessions:  session.NewManager(cfg.Session.MaxHistory),
		orch:      orch,
		providers: providers,
		asyncObs:  asyncObs,
		ingestor:  ingestor,
		watcher:   watcher,
		source:    source,
		ctx:       ctx,
		cancel:    cancel,
	}

	transport := opts.Transport
	if transport == nil && opts.TransportFactory != nil {
		transport, err = opts.TransportFactory(cfg, engine)
		if err != nil {
			cancel()
			return nil, err
		}
	}
	engine.transport = transport

	hooks := runner.Hooks{
		OnStart: func() {
			fields := []any{"message", "Kirana Engine Ready"}
			if rr, ok := transport.(transports.ReadyReporter); ok {
				fields = append(fields, "transport_ready", rr.Ready())
			}
			slog.Info("engine_ready", fields...)
		},
		OnStop: func() {
			// Drain the async queue before closing the file-backed sinks
			// behind it.
			if asyncObs != nil {
				asyncObs.Close()
			}
			if timelineObs != nil {
				_ = timelineObs.Close()
			}
			if costObs != nil {
				_ = costObs.Close()
			}
			if eventLog != nil {
				_ = eventLog.Close()
			}
			slog.Info("shutdown", "goroutines", runtime.NumGoroutine())
		},
	}
	drainer := drainerFunc(func() error {
		if engine.watcher != nil {
			engine.watcher.Stop()
		}
		if engine.transport != nil {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			_ = engine.transport.Stop(stopCtx)
		}
		return nil
	})
	engine.runner = runner.NewLifecycleRunner(drainer, hooks, 30*time.Second)

	return engine, nil
}

// wrapAdapter layers the configured resilience wrappers around the raw
// completion adapter. The breaker sits inside the retry wrapper so retries
// see breaker denials.
func wrapAdapter(adapter llm.LLMAdapter, cfg ResilienceConfig, obs metrics.Observer) llm.LLMAdapter {
	if cfg.Breaker.Enabled {
		breaker := resilience.NewCircuitBreaker(cfg.Breaker.Threshold, time.Duration(cfg.Breaker.CooldownMS)*time.Millisecond)
		wrapped := llm.NewCircuitBreakerAdapter(adapter, breaker)
		wrapped.SetObserver(obs)
		adapter = wrapped
	}
	if cfg.Retry.Enabled {
		adapter = llm.NewRetryAdapter(adapter, llm.RetryConfig{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
		})
	}
	return adapter
}

func buildSource(cfg IngestConfig) (ingest.Source, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Source.Type)) {
	case "s3":
		return ingest.NewS3Source(ingest.S3Config{
			Endpoint:  cfg.Source.Endpoint,
			AccessKey: cfg.Source.AccessKey,
			SecretKey: cfg.Source.SecretKey,
			Bucket:    cfg.Source.Bucket,
			Prefix:    cfg.Source.Prefix,
			UseSSL:    cfg.Source.UseSSL,
		})
	default:
		if dir := localDocsDir(cfg); dir != "" {
			return ingest.LocalSource{Dir: dir}, nil
		}
		return nil, nil
	}
}

func localDocsDir(cfg IngestConfig) string {
	switch strings.ToLower(strings.TrimSpace(cfg.Source.Type)) {
	case "", "local":
		return strings.TrimSpace(cfg.DocsDir)
	default:
		return ""
	}
}

func openEventLog(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "events.jsonl"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// Start ingests the configured source, then brings up the watcher and the
// transport, then hands lifecycle control to the runner.
func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.source != nil {
		stats, err := e.ingestor.IngestSource(ctx, e.source, e.cfg.Ingest.ClearOnStart)
		if err != nil {
			return err
		}
		slog.Info("ingest_complete", "source", e.source.Name(), "courses", stats.Courses, "chunks", stats.Chunks)
	}
	if e.watcher != nil {
		if err := e.watcher.Start(e.ctx); err != nil {
			slog.Warn("docs_watcher_start_failed", "error", err)
			e.watcher = nil
		}
	}
	if e.transport != nil {
		if err := e.transport.Start(e.ctx); err != nil {
			return err
		}
	}
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.runner.Stop()
}

// Answer implements transports.Answerer. The tool registry is rebuilt per
// call; LastSources is harvested and reset before the exchange is recorded.
func (e *Engine) Answer(ctx context.Context, query, sessionID string) (transports.Answer, error) {
	if strings.TrimSpace(sessionID) == "" {
		sessionID = e.sessions.Create()
	}
	registry := e.toolRegistry()
	answer, err := e.orch.Generate(ctx, orchestrator.Request{
		Query:    query,
		History:  e.sessions.History(sessionID),
		Tools:    registry.Definitions(),
		Registry: registry,
	})
	if err != nil {
		return transports.Answer{}, err
	}
	sources := registry.LastSources()
	registry.ResetSources()
	e.sessions.AddExchange(sessionID, query, answer)
	return transports.Answer{Answer: answer, Sources: sources, SessionID: sessionID}, nil
}

// CourseStats implements transports.Answerer.
func (e *Engine) CourseStats(ctx context.Context) (transports.CourseStats, error) {
	return transports.CourseStats{
		TotalCourses: e.store.CourseCount(ctx),
		CourseTitles: e.store.CourseTitles(ctx),
	}, nil
}

// ClearSession implements transports.Answerer.
func (e *Engine) ClearSession(sessionID string) {
	e.sessions.Clear(sessionID)
}

func (e *Engine) toolRegistry() *tools.Registry {
	registry := tools.NewRegistry()
	_ = registry.Register(tools.NewSearchTool(e.store))
	_ = registry.Register(tools.NewOutlineTool(e.store))
	return registry
}

func (e *Engine) ProviderRegistry() *ProviderRegistry { return e.providers }

func (e *Engine) Transport() transports.Transport { return e.transport }

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) Store() store.VectorStore { return e.store }

func (e *Engine) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

func (e *Engine) Health() error {
	if e.transport == nil {
		return fmt.Errorf("missing transport")
	}
	return nil
}

var _ transports.Answerer = (*Engine)(nil)
