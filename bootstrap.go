package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"solarfarm-cloud/internal/audit"
	"solarfarm-cloud/internal/config"
	"solarfarm-cloud/internal/farm/application"
	"solarfarm-cloud/internal/farm/generator"
	"solarfarm-cloud/internal/farm/infrastructure/memory"
	"solarfarm-cloud/internal/farm/infrastructure/postgres"
	"solarfarm-cloud/internal/farm/simrand"
	"solarfarm-cloud/internal/notify"
	"solarfarm-cloud/internal/observability/metrics"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// farmApp holds every wired component of a running farm.
type farmApp struct {
	db    *sql.DB
	rng   *simrand.Source
	store *memory.Store

	evolution   *application.EvolutionEngine
	analytics   *application.AnalyticsService
	cleaning    *application.CleaningService
	sensors     *application.SensorService
	alerts      *application.AlertService
	snapshotter *application.Snapshotter
	autoCleaner *application.AutoCleaner
	audit       audit.Log
	notifier    *notify.Notifier
}

func (a *farmApp) Close() {
	a.notifier.Wait()
	if a.db != nil {
		_ = a.db.Close()
	}
}

type farmLogs struct {
	sensors   application.SensorLog
	cleanings application.CleaningLog
	alerts    application.AlertLog
	analytics application.AnalyticsLog
	state     application.PanelStateSink
	audit     audit.Log
}

func bootstrap(ctx context.Context, cfg config.Config, logger *log.Logger) (*farmApp, error) {
	clock := systemClock{}
	app := &farmApp{rng: simrand.New(cfg.Seed)}

	var (
		populated generator.Farm
		logs      farmLogs
		err       error
	)
	if cfg.DatabaseURL != "" {
		app.db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		if err := app.db.PingContext(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("db ping: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, app.db); err != nil {
			app.Close()
			return nil, fmt.Errorf("db schema: %w", err)
		}
		auditRepo := audit.NewRepository(app.db)
		if err := auditRepo.EnsureSchema(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("db audit schema: %w", err)
		}
		panels := postgres.NewPanelRepository(app.db)
		populated, err = restoreOrSeed(ctx, panels, cfg, app.rng, clock.Now(), logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		logs = farmLogs{
			sensors:   postgres.NewSensorRepository(app.db),
			cleanings: postgres.NewCleaningRepository(app.db),
			alerts:    postgres.NewAlertRepository(app.db),
			analytics: postgres.NewAnalyticsRepository(app.db),
			state:     panels,
			audit:     auditRepo,
		}
	} else {
		populated, err = generator.Generate(cfg.Farm.Generator(), app.rng, clock.Now())
		if err != nil {
			return nil, err
		}
		logs = farmLogs{
			sensors:   memory.NewSensorHistory(0),
			cleanings: memory.NewCleaningHistory(),
			alerts:    memory.NewAlertLog(),
			analytics: memory.NewAnalyticsStore(),
			audit:     audit.NewMemoryLog(0),
		}
		logger.Printf("farm: generated in memory: panels=%d sectors=%d", len(populated.Panels), len(populated.Sectors))
	}

	metrics.Init(app.db, logger)

	if app.store, err = memory.NewStore(populated.Sectors, populated.Panels); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.wire(cfg, logs, clock, logger); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *farmApp) wire(cfg config.Config, logs farmLogs, clock application.Clock, logger *log.Logger) error {
	var err error
	if a.evolution, err = application.NewEvolutionEngine(a.store, a.rng, logger); err != nil {
		return err
	}
	opts := application.AnalyticsOptions{UseLastCleaned: cfg.Prediction.UseLastCleaned}
	if a.analytics, err = application.NewAnalyticsService(a.store, logs.analytics, opts, clock); err != nil {
		return err
	}
	if a.cleaning, err = application.NewCleaningService(a.store, logs.cleanings, a.rng, logger, application.WithCleaningClock(clock)); err != nil {
		return err
	}
	if a.sensors, err = application.NewSensorService(a.store, logs.sensors, logs.alerts, clock, logger); err != nil {
		return err
	}
	if a.alerts, err = application.NewAlertService(logs.alerts, clock); err != nil {
		return err
	}
	a.audit = logs.audit
	if cfg.AlertNotify.WebhookURL != "" {
		if a.notifier, err = newAlertNotifier(cfg.AlertNotify, clock, logger); err != nil {
			return err
		}
		a.sensors.SetNotifier(a.notifier)
	}
	if a.snapshotter, err = application.NewSnapshotter(a.store, logs.analytics, logs.cleanings, logs.state, clock, logger); err != nil {
		return err
	}
	if cfg.AutoClean.Enabled {
		if a.autoCleaner, err = application.NewAutoCleaner(a.analytics, a.cleaning, a.store, cfg.AutoClean.ScoreThreshold, logger); err != nil {
			return err
		}
	}
	return nil
}

// restoreOrSeed loads the persisted farm, or generates and inserts one when the panels table is empty.
func restoreOrSeed(ctx context.Context, repo *postgres.PanelRepository, cfg config.Config, rng *simrand.Source, now time.Time, logger *log.Logger) (generator.Farm, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return generator.Farm{}, fmt.Errorf("farm: count panels: %w", err)
	}
	if count > 0 {
		sectors, panels, err := repo.Load(ctx)
		if err != nil {
			return generator.Farm{}, fmt.Errorf("farm: restore: %w", err)
		}
		logger.Printf("farm: restored from database: panels=%d sectors=%d", len(panels), len(sectors))
		return generator.Farm{Sectors: sectors, Panels: panels}, nil
	}

	generated, err := generator.Generate(cfg.Farm.Generator(), rng, now)
	if err != nil {
		return generator.Farm{}, err
	}
	if err := repo.InsertFarm(ctx, generated.Sectors, generated.Panels); err != nil {
		return generator.Farm{}, fmt.Errorf("farm: seed: %w", err)
	}
	logger.Printf("farm: seeded database: panels=%d sectors=%d", len(generated.Panels), len(generated.Sectors))
	return generated, nil
}

func newAlertNotifier(cfg config.AlertNotify, clock notify.Clock, logger *log.Logger) (*notify.Notifier, error) {
	channel, err := notify.NewWebhookChannel(cfg.WebhookURL)
	if err != nil {
		return nil, err
	}
	tpl, err := notify.NewTemplate(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("alert template: %w", err)
	}
	return notify.NewNotifier(channel, tpl,
		notify.WithClock(clock),
		notify.WithMinSeverity(cfg.MinSeverity),
		notify.WithCooldown(cfg.Cooldown),
		notify.WithLogger(logger),
	)
}
