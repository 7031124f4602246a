package application

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/kubeagent/core/internal/application/usecase"
	"github.com/kubeagent/core/internal/domain/entity"
	"github.com/kubeagent/core/internal/domain/repository"
	"github.com/kubeagent/core/internal/domain/service"
	domaintool "github.com/kubeagent/core/internal/domain/tool"
	"github.com/kubeagent/core/internal/domain/valueobject"
	"github.com/kubeagent/core/internal/infrastructure/config"
	"github.com/kubeagent/core/internal/infrastructure/k8s"
	"github.com/kubeagent/core/internal/infrastructure/llm"
	_ "github.com/kubeagent/core/internal/infrastructure/llm/anthropic"
	_ "github.com/kubeagent/core/internal/infrastructure/llm/gemini"
	_ "github.com/kubeagent/core/internal/infrastructure/llm/openai"
	"github.com/kubeagent/core/internal/infrastructure/monitoring"
	"github.com/kubeagent/core/internal/infrastructure/persistence"
	"github.com/kubeagent/core/internal/infrastructure/prompt"
	"github.com/kubeagent/core/internal/infrastructure/sandbox"
	infratool "github.com/kubeagent/core/internal/infrastructure/tool"
	httpserver "github.com/kubeagent/core/internal/interfaces/http"
	"github.com/kubeagent/core/internal/interfaces/http/handlers"
)

// App wires every layer together: repositories, the Execution Engine and
// Conversation Driver, the Catalog (Kubernetes + shell tools), and the
// HTTP binding. It is the single composition root — nothing outside this
// file knows how these pieces are assembled.
type App struct {
	config *config.Config
	logger *zap.Logger

	conversations repository.ConversationRepository
	pendings      repository.PendingRepository
	audit         repository.AuditRepository

	registry domaintool.Registry
	engine   *service.ExecutionEngine
	approval *service.ApprovalController
	driver   *service.ConversationDriver

	chatUseCase     *usecase.ChatUseCase
	approvalUseCase *usecase.ApprovalUseCase

	monitor    *monitoring.Monitor
	httpServer *httpserver.Server
	sweeper    *cron.Cron
}

// NewApp builds a fully wired App against durable storage (gorm-backed
// audit log, sqlite by default) and starts the HTTP binding on Start.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	if err := app.initRepositories(); err != nil {
		return nil, fmt.Errorf("init repositories: %w", err)
	}
	if err := app.initCatalog(); err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	if err := app.initDomainServices(); err != nil {
		return nil, fmt.Errorf("init domain services: %w", err)
	}
	app.initUseCases()
	if err := app.initHTTP(); err != nil {
		return nil, fmt.Errorf("init http: %w", err)
	}
	return app, nil
}

// NewAppCLI builds an App against in-memory storage only, skipping the
// durable audit database and the HTTP binding — for one-shot or scripted
// invocations that never need a listening server.
func NewAppCLI(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	app.conversations = persistence.NewMemoryConversationRepository()
	app.pendings = persistence.NewMemoryPendingRepository()
	app.audit = persistence.NewMemoryAuditRepository()

	if err := app.initCatalog(); err != nil {
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	if err := app.initDomainServices(); err != nil {
		return nil, fmt.Errorf("init domain services: %w", err)
	}
	app.initUseCases()
	return app, nil
}

func (a *App) initRepositories() error {
	a.conversations = persistence.NewMemoryConversationRepository()
	a.pendings = persistence.NewMemoryPendingRepository()

	db, err := persistence.NewDBConnection(&a.config.Database)
	if err != nil {
		return fmt.Errorf("connect audit database: %w", err)
	}
	a.audit = persistence.NewGormAuditRepository(db)
	return nil
}

func (a *App) initCatalog() error {
	k8sClient, err := k8s.NewClient(k8s.Config{
		InCluster:        a.config.Kubernetes.InCluster,
		Kubeconfig:       a.config.Kubernetes.Kubeconfig,
		DefaultNamespace: a.config.Kubernetes.DefaultNamespace,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("build kubernetes client: %w", err)
	}

	shellCfg := &sandbox.Config{
		WorkDir:     a.config.Shell.WorkDir,
		Timeout:     a.config.Runtime.ProcessToolTimeout,
		AllowedBins: a.config.Shell.AllowedBinaries,
	}
	if shellCfg.WorkDir == "" {
		shellCfg.WorkDir = sandbox.DefaultConfig().WorkDir
	}
	box, err := sandbox.NewProcessSandbox(shellCfg, a.logger)
	if err != nil {
		return fmt.Errorf("build process sandbox: %w", err)
	}

	registry, err := infratool.BuildCatalog(k8sClient, box, a.config.Runtime.ProcessToolTimeout)
	if err != nil {
		return fmt.Errorf("register catalog tools: %w", err)
	}
	a.registry = registry
	return nil
}

func (a *App) initDomainServices() error {
	router := llm.NewRouter(a.logger)
	for _, p := range a.config.LLM.Providers {
		provider, err := llm.CreateProvider(llm.ProviderConfig{
			Name:     p.Name,
			Type:     p.Name,
			BaseURL:  p.BaseURL,
			APIKey:   p.APIKey,
			Models:   p.Models,
			Priority: p.Priority,
		}, a.logger)
		if err != nil {
			a.logger.Warn("skipping unconfigured LLM provider", zap.String("name", p.Name), zap.Error(err))
			continue
		}
		router.AddProvider(provider)
	}

	bridge := newToolBridge(a.registry)
	a.engine = service.NewExecutionEngine(bridge, a.pendings, a.audit, a.logger)
	a.approval = service.NewApprovalController(a.pendings, a.audit, a.logger)

	driverCfg := service.DefaultDriverConfig()
	driverCfg.Model = a.config.LLM.DefaultModel
	driverCfg.MaxIterations = a.config.Runtime.MaxIterations
	driverCfg.TurnTimeout = a.config.Runtime.TurnTimeout
	driverCfg.ContextMaxTokens = a.config.Guardrails.ContextMaxTokens
	driverCfg.ContextWarnRatio = a.config.Guardrails.ContextWarnRatio
	driverCfg.ContextHardRatio = a.config.Guardrails.ContextHardRatio
	driverCfg.SystemPrompt = prompt.Build(prompt.Options{
		ModelName:        driverCfg.Model,
		DefaultNamespace: a.config.Kubernetes.DefaultNamespace,
	}, a.registry.List())

	a.driver = service.NewConversationDriver(router, bridge, a.engine, driverCfg, a.logger)

	middleware := service.NewMiddlewarePipeline(a.logger)
	middleware.Use(service.NewDanglingToolCallMiddleware(a.logger))
	a.driver.SetMiddleware(middleware)

	a.monitor = monitoring.NewMonitor(a.logger)
	a.driver.SetHooks(monitoring.NewMetricsHook(a.monitor))
	return nil
}

func (a *App) initUseCases() {
	a.chatUseCase = usecase.NewChatUseCase(a.conversations, a.driver, a.logger)
	a.approvalUseCase = usecase.NewApprovalUseCase(a.approval, a.engine, a.conversations, a.driver, a.logger)
}

func (a *App) initHTTP() error {
	h := httpserver.Handlers{
		Chat:     handlers.NewChatHandler(a.chatUseCase, a.logger),
		Approval: handlers.NewApprovalHandler(a.approvalUseCase, a.logger),
		Conversation: handlers.NewConversationHandler(
			usecase.NewListConversationsUseCase(a.conversations),
			usecase.NewLoadConversationUseCase(a.conversations),
			usecase.NewDeleteConversationUseCase(a.conversations),
			a.logger,
		),
		Catalog: handlers.NewCatalogHandler(
			usecase.NewListPendingUseCase(a.pendings),
			usecase.NewListHistoryUseCase(a.audit),
			usecase.NewListToolsUseCase(a.registry),
			a.logger,
		),
	}

	mode := "release"
	if a.config.Log.Level == "debug" {
		mode = "debug"
	}
	a.httpServer = httpserver.NewServer(httpserver.Config{
		Host: a.config.Server.Host,
		Port: a.config.Server.Port,
		Mode: mode,
	}, h, a.logger)
	return nil
}

// Start begins serving the HTTP API and the approval-expiry sweep (§4.6:
// pending executions older than their TTL are marked expired).
func (a *App) Start(ctx context.Context) error {
	if a.httpServer != nil {
		if err := a.httpServer.Start(ctx); err != nil {
			return fmt.Errorf("start http server: %w", err)
		}
	}

	a.sweeper = cron.New()
	schedule := a.config.Approval.SweepCron
	if schedule == "" {
		schedule = "@every 1m"
	}
	if _, err := a.sweeper.AddFunc(schedule, a.runSweep); err != nil {
		return fmt.Errorf("schedule approval sweep: %w", err)
	}
	a.sweeper.Start()

	a.logger.Info("kubeagent started",
		zap.String("host", a.config.Server.Host),
		zap.Int("port", a.config.Server.Port),
		zap.Int("tools", len(a.registry.List())),
	)
	return nil
}

func (a *App) runSweep() {
	ctx := context.Background()

	n, err := a.approval.SweepExpired(ctx, time.Now())
	if err != nil {
		a.logger.Error("approval sweep failed", zap.Error(err))
	} else if n > 0 {
		a.logger.Info("expired stale pending executions", zap.Int("count", n))
	}

	cutoff := time.Now().Add(-entity.AuditRetention).Unix()
	deleted, err := a.audit.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		a.logger.Error("audit retention sweep failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		a.logger.Info("deleted audit records past retention", zap.Int64("count", deleted))
	}
}

// Stop gracefully shuts down the HTTP server and the sweep scheduler.
func (a *App) Stop(ctx context.Context) error {
	if a.sweeper != nil {
		sweepCtx := a.sweeper.Stop()
		<-sweepCtx.Done()
	}
	if a.httpServer != nil {
		return a.httpServer.Stop(ctx)
	}
	return nil
}

// ToolRegistry exposes the Catalog, e.g. for a CLI's tool-count display.
func (a *App) ToolRegistry() domaintool.Registry { return a.registry }

// Logger exposes the app's configured logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// ChatUseCase exposes the chat use case for non-HTTP callers (CLI, tests).
func (a *App) ChatUseCase() *usecase.ChatUseCase { return a.chatUseCase }

// ApprovalUseCase exposes the approval use case for non-HTTP callers.
func (a *App) ApprovalUseCase() *usecase.ApprovalUseCase { return a.approvalUseCase }

// DefaultApprovalMode returns the configured default approval mode,
// falling back to normal when unset or invalid.
func (a *App) DefaultApprovalMode() valueobject.ApprovalMode {
	mode := valueobject.ApprovalMode(a.config.Approval.DefaultMode)
	if !mode.IsValid() {
		return valueobject.ApprovalNormal
	}
	return mode
}
