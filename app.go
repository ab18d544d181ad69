package main

import (
	"context"
	"fmt"
	"path/filepath"

	"vizchat/agent"
	"vizchat/config"
	"vizchat/database"
	"vizchat/dataset"
	"vizchat/logger"
)

// App wires the services together for one interactive session.
type App struct {
	configService *ConfigService
	logger        *logger.Logger
	cfg           config.Config

	llm          *agent.ChatClient
	sandbox      *agent.TransformSandbox
	preparer     *agent.DataPreparer
	planner      *agent.PlanGenerator
	memory       *agent.KeywordMemory
	store        *database.SessionStore
	orchestrator *agent.Orchestrator
}

// NewApp creates the application shell. Services are wired in Startup.
func NewApp() *App {
	return &App{
		configService: NewConfigService(nil),
		logger:        logger.NewLogger(),
	}
}

// Startup initializes configuration, logging, the model client and the
// session services. It must be called before LoadFile or Ask.
func (a *App) Startup(ctx context.Context) error {
	if err := a.configService.Initialize(); err != nil {
		return err
	}
	storageDir, err := a.configService.GetStorageDir()
	if err != nil {
		return err
	}

	cfg, err := a.configService.GetConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.logger.Init(storageDir, cfg.DetailedLog); err != nil {
		return WrapError("app", "Startup", err)
	}
	a.configService.logger = a.logger.Log

	llm, err := agent.NewChatClient(cfg, a.logger.Log)
	if err != nil {
		return WrapError("app", "Startup", err)
	}
	a.llm = llm

	store, err := database.OpenSessionStore(filepath.Join(storageDir, "sessions.db"))
	if err != nil {
		return WrapError("app", "Startup", err)
	}
	a.store = store

	a.sandbox = agent.NewTransformSandbox(a.logger.Log)
	a.preparer = agent.NewDataPreparer(a.llm, a.sandbox, a.logger.Log)
	a.planner = agent.NewPlanGenerator(a.llm, a.logger.Log)
	a.memory = agent.NewKeywordMemory()
	a.orchestrator = agent.NewOrchestrator(a.llm, a.sandbox, a.memory, a.store, a.logger.Log)

	a.logger.Log("App services initialized")
	return nil
}

// Shutdown flushes and closes what Startup opened.
func (a *App) Shutdown() {
	if a.store != nil {
		a.store.Close()
	}
	a.logger.Close()
}

// LoadFile ingests a data file, runs the preparation flow and builds the
// initial set of analysis cards.
func (a *App) LoadFile(ctx context.Context, path string) ([]agent.AnalysisCard, error) {
	rows, headers, err := dataset.Load(path)
	if err != nil {
		return nil, WrapError("app", "LoadFile", err)
	}
	a.logger.Logf("Loaded %d rows from %s", len(rows), path)

	return a.prepareAndPlan(ctx, rows, headers)
}

// LoadMySQL ingests a query result from a MySQL source instead of a file.
func (a *App) LoadMySQL(ctx context.Context, dsn, query string) ([]agent.AnalysisCard, error) {
	rows, headers, err := dataset.LoadMySQL(dsn, query)
	if err != nil {
		return nil, WrapError("app", "LoadMySQL", err)
	}
	a.logger.Logf("Loaded %d rows from mysql query", len(rows))

	return a.prepareAndPlan(ctx, rows, headers)
}

func (a *App) prepareAndPlan(ctx context.Context, rows []dataset.Row, headers []string) ([]agent.AnalysisCard, error) {
	prepPlan, prepared, profiles, err := a.preparer.PrepareDataset(ctx, headers, rows)
	if err != nil {
		return nil, WrapError("app", "prepareAndPlan", err)
	}
	a.logger.Logf("Preparation complete: %d rows, %d columns", len(prepared), len(profiles))

	outHeaders := make([]string, 0, len(profiles))
	for _, p := range profiles {
		outHeaders = append(outHeaders, p.Name)
	}
	a.orchestrator.LoadDataset(prepared, outHeaders, profiles, prepPlan)

	plans, err := a.planner.GeneratePlans(ctx, profiles, agent.SampleRows(prepared, a.previewRows()))
	if err != nil {
		return nil, WrapError("app", "prepareAndPlan", err)
	}
	if len(plans) == 0 {
		a.logger.Log("No viable analysis plans for this dataset")
		return nil, nil
	}

	cards := a.orchestrator.CreateCards(plans)
	a.logger.Logf("Created %d analysis cards", len(cards))
	return cards, nil
}

// Ask submits one user chat message and returns the resulting turn.
func (a *App) Ask(ctx context.Context, text string) (*agent.TurnResult, error) {
	if a.orchestrator == nil {
		return nil, WrapError("app", "Ask", fmt.Errorf("no dataset loaded"))
	}
	return a.orchestrator.SubmitUserMessage(ctx, text)
}

func (a *App) previewRows() int {
	if a.cfg.MaxPreviewRows > 0 {
		return a.cfg.MaxPreviewRows
	}
	return 15
}
