// Package wire provides dependency injection for the loanflow daemon. The
// database handle and the rule pack are loaded once at bootstrap and passed
// explicitly into every component; nothing holds them as module-level state.
package wire

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/example/loanflow/internal/adapters/dispatch"
	"github.com/example/loanflow/internal/adapters/sqlite"
	"github.com/example/loanflow/internal/app"
	"github.com/example/loanflow/internal/config"
	"github.com/example/loanflow/internal/core/transition"
	"github.com/example/loanflow/internal/db"
	"github.com/example/loanflow/internal/models"
	"github.com/example/loanflow/internal/ports/primary"
	"github.com/example/loanflow/internal/ports/secondary"
	"github.com/example/loanflow/internal/scheduler"
)

// App bundles the wired services and owned resources of one process.
type App struct {
	DB          *sql.DB
	Workflow    primary.WorkflowService
	Escalations primary.EscalationService
	SLA         primary.SLAService
	Reminders   primary.ReminderService
	Jobs        secondary.JobRepository
	Loop        *scheduler.Loop

	// MetricsAddr is the Prometheus exposition address; empty disables it.
	MetricsAddr string
}

// Build wires the full application from process config. The caller owns the
// returned App and must Close it.
func Build(cfg config.Config, logger *slog.Logger) (*App, error) {
	pack, err := loadPack(cfg)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := sqlite.NewEntityStore(database)
	jobRepo := sqlite.NewJobRepository(database)
	escalationRepo := sqlite.NewEscalationRepository(database)
	effectIndex := sqlite.NewEffectIndex(database)
	gateway := dispatch.NewLogGateway(logger)

	escalations := app.NewEscalationService(escalationRepo)
	executor := app.NewActionExecutor(store, jobRepo, escalations, app.ExecutorDefaults{
		Channel: models.ChannelWhatsApp,
	})
	engine := app.NewRuleEngine(pack.AutomationRules, effectIndex, executor, logger)

	sched := scheduler.New(pack.ReminderRules, jobRepo, gateway, store, pack.Transitions, scheduler.Config{
		BackoffBase:     cfg.BackoffBase(),
		BackoffCap:      cfg.BackoffCap(),
		DispatchTimeout: cfg.DispatchTimeout(),
		LeaseTimeout:    cfg.LeaseTimeout(),
		LeaseBatch:      cfg.LeaseBatch,
	}, logger)

	workflow := app.NewWorkflowService(store, jobRepo, pack.Transitions, engine, escalations, sched, logger)
	slaService := app.NewSLAService(store, pack.Transitions, app.NewExpectationSet(pack.Expectations), engine, escalations, effectIndex, sched, logger)

	loop := scheduler.NewLoop(cfg.TickInterval(), slaService, sched, logger)

	return &App{
		DB:          database,
		Workflow:    workflow,
		Escalations: escalations,
		SLA:         slaService,
		Reminders:   sched,
		Jobs:        jobRepo,
		Loop:        loop,
		MetricsAddr: cfg.MetricsAddr,
	}, nil
}

// Close releases the application's owned resources.
func (a *App) Close() error {
	return a.DB.Close()
}

func loadPack(cfg config.Config) (*config.RulePack, error) {
	if cfg.RulePackPath == "" {
		return &config.RulePack{Transitions: transition.Default()}, nil
	}
	pack, err := config.LoadRulePack(cfg.RulePackPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule pack: %w", err)
	}
	return pack, nil
}
