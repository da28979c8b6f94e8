// Package main provides the flowprobe API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dukex/flowprobe/pkg/aiverify"
	"github.com/dukex/flowprobe/pkg/cmd"
	"github.com/dukex/flowprobe/pkg/config"
	"github.com/dukex/flowprobe/pkg/eventbus"
	"github.com/dukex/flowprobe/pkg/events"
	"github.com/dukex/flowprobe/pkg/execution"
	"github.com/dukex/flowprobe/pkg/jobqueue"
	"github.com/dukex/flowprobe/pkg/mapping"
	"github.com/dukex/flowprobe/pkg/metrics"
	"github.com/dukex/flowprobe/pkg/otelhelper"
	"github.com/dukex/flowprobe/pkg/persistence"
	"github.com/dukex/flowprobe/pkg/persistence/file"
	"github.com/dukex/flowprobe/pkg/persistence/redisstore"
	"github.com/dukex/flowprobe/pkg/retention"
	"github.com/dukex/flowprobe/pkg/runner"
	"github.com/dukex/flowprobe/pkg/services"
	"github.com/dukex/flowprobe/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// Config holds everything the API server is assembled from.
type Config struct {
	DatabaseURL       string
	JobStoreURL       string
	EventBus          string
	KafkaBrokers      string
	DataDir           string
	ExecutionProfile  string
	TargetBaseURL     string
	OTelEnabled       bool
	RetentionSchedule string
	RetentionMaxAge   time.Duration
	Verifier          aiverify.Config
}

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	jobStore    *redisstore.JobRepository
	eventBus    eventbus.EventBus
	queue       *jobqueue.Queue
	runs        *runner.Manager
	sweeper     *retention.Sweeper
	metrics     *metrics.Collector
	handlers    *web.APIHandlers
	shutdown    otelhelper.ShutdownFunc
	cancel      context.CancelFunc
}

// NewAPI opens every backend named by cfg and wires the services on top of them.
func NewAPI(ctx context.Context, log *slog.Logger, cfg Config) (*API, error) {
	execConfig, err := config.LoadProfileOrDefault(cfg.ExecutionProfile, cfg.TargetBaseURL)
	if err != nil {
		return nil, err
	}

	tracer, shutdown, err := cmd.NewTracer(ctx, cfg.OTelEnabled)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	a := &API{logger: log, shutdown: shutdown, metrics: metrics.New()}

	a.persistence, err = cmd.NewPersistence(ctx, log, cfg.DatabaseURL)
	if err != nil {
		a.Close(ctx)

		return nil, err
	}

	a.jobStore, err = cmd.NewJobStore(ctx, cfg.JobStoreURL)
	if err != nil {
		a.Close(ctx)

		return nil, err
	}

	a.eventBus, err = cmd.NewEventBus(cfg.EventBus, cfg.KafkaBrokers, log)
	if err != nil {
		a.Close(ctx)

		return nil, err
	}

	busCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	if err := a.subscribe(busCtx); err != nil {
		a.Close(ctx)

		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	verifier := aiverify.New(cfg.Verifier, log)

	jobRepo := a.persistence.JobRepository()
	if a.jobStore != nil {
		jobRepo = a.jobStore
	}

	fileJobs := file.NewJobRepository(cfg.DataDir)

	a.queue = jobqueue.New(verifier, log,
		jobqueue.WithRepository(jobRepo),
		jobqueue.WithFileStore(fileJobs),
		jobqueue.WithMetrics(a.metrics),
		jobqueue.WithPublisher(a.eventBus),
		jobqueue.WithTracer(tracer),
	)
	a.queue.Start(busCtx)

	engine := execution.NewEngine(execution.NewHTTPClient(nil), tracer, log)

	a.runs = runner.New(a.persistence.RunRepository(), a.persistence.ProjectRepository(), engine, log,
		runner.WithConfig(execConfig),
		runner.WithJobs(a.queue),
		runner.WithPublisher(a.eventBus),
		runner.WithMetrics(a.metrics),
		runner.WithTracer(tracer),
	)

	purgers := []retention.JobPurger{fileJobs}
	if p := jobPurger(a.persistence, a.jobStore); p != nil {
		purgers = append(purgers, p)
	}

	a.sweeper = retention.New(retention.Config{
		LogDir:    verifier.LogDir(),
		LogPrefix: aiverify.RawLogPrefix,
		MaxAge:    cfg.RetentionMaxAge,
		Purgers:   purgers,
		Pruner:    a.queue,
	}, log)

	if err := a.sweeper.Start(busCtx, cfg.RetentionSchedule); err != nil {
		a.Close(ctx)

		return nil, err
	}

	mappingService := services.NewMapping(mapping.NewMapper(nil, log), verifier, log)

	a.handlers = web.NewAPIHandlers(
		mappingService,
		services.NewProject(a.persistence.ProjectRepository(), mappingService, log),
		services.NewHealth(a.persistence),
		a.runs,
		a.queue,
		validator.New(validator.WithRequiredStructEnabled()),
		log,
	)

	return a, nil
}

// jobPurger returns the repository tier that can drop finished jobs, if any.
func jobPurger(p persistence.Persistence, jobStore *redisstore.JobRepository) retention.JobPurger {
	if jobStore != nil {
		return jobStore
	}

	if purger, ok := p.JobRepository().(retention.JobPurger); ok {
		return purger
	}

	if purger, ok := p.(retention.JobPurger); ok {
		return purger
	}

	return nil
}

func (a *API) subscribe(ctx context.Context) error {
	err := a.eventBus.Handle(events.RunFinishedEvent, func(ctx context.Context, event any) error {
		if e, ok := event.(*events.RunFinished); ok {
			a.logger.InfoContext(ctx, "Run finished",
				"run_id", e.RunID, "status", e.Status, "execution_status", e.ExecutionStatus, "error", e.Error)
		}

		return nil
	})
	if err != nil {
		return err
	}

	err = a.eventBus.Handle(events.JobFinishedEvent, func(ctx context.Context, event any) error {
		if e, ok := event.(*events.JobFinished); ok {
			a.logger.InfoContext(ctx, "AI job finished",
				"job_id", e.JobID, "status", e.Status, "overall_status", e.OverallStatus)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return a.eventBus.Subscribe(ctx)
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("flowprobe API")
	})

	app.Get("/metrics", adaptor.HTTPHandler(a.metrics.Handler()))

	a.handlers.Routes(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}

// Close stops the background workers and releases every backend. It is safe
// on a partially built API.
func (a *API) Close(ctx context.Context) {
	if a.sweeper != nil {
		a.sweeper.Stop()
	}

	if a.runs != nil {
		a.runs.Wait()
	}

	if a.queue != nil {
		a.queue.Close()
	}

	if a.cancel != nil {
		a.cancel()
	}

	var errs []error

	if a.eventBus != nil {
		errs = append(errs, a.eventBus.Close())
	}

	if a.jobStore != nil {
		errs = append(errs, a.jobStore.Close())
	}

	if a.persistence != nil {
		errs = append(errs, a.persistence.Close(ctx))
	}

	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.ErrorContext(ctx, "Failed to close API resources", "error", err)
	}
}
