package main

import (
	"context"
	"os"
	"time"

	"github.com/dukex/flowprobe/pkg/aiverify"
	"github.com/dukex/flowprobe/pkg/log"
	"github.com/dukex/flowprobe/pkg/retention"
	cli "github.com/urfave/cli/v3"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	cmd := &cli.Command{
		Name:                  "flowprobe-api",
		Usage:                 "Map BPMN processes to OpenAPI endpoints and execute them",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Persistence URL (file://, postgres://, sqlite://, memory://)",
				Value:   "file://./data",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "job-store-url",
				Usage:   "Redis URL shared by API instances for AI jobs",
				Sources: cli.EnvVars("JOB_STORE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory for AI job files",
				Value:   "./data",
				Sources: cli.EnvVars("DATA_DIR"),
			},
			&cli.StringFlag{
				Name:    "ai-script-path",
				Usage:   "Path to the AI verification script",
				Sources: cli.EnvVars("AI_SCRIPT_PATH"),
			},
			&cli.StringFlag{
				Name:    "ai-python",
				Usage:   "Python interpreter running the AI verification script",
				Sources: cli.EnvVars("AI_PYTHON"),
			},
			&cli.DurationFlag{
				Name:    "ai-timeout",
				Usage:   "Maximum run time of one AI verification",
				Value:   aiverify.DefaultTimeout,
				Sources: cli.EnvVars("AI_TIMEOUT"),
			},
			&cli.StringFlag{
				Name:    "ai-log-dir",
				Usage:   "Directory receiving raw model output",
				Sources: cli.EnvVars(aiverify.LogDirEnv),
			},
			&cli.StringFlag{
				Name:    "execution-profile",
				Usage:   "YAML file with the execution config",
				Sources: cli.EnvVars("EXECUTION_PROFILE"),
			},
			&cli.StringFlag{
				Name:    "target-base-url",
				Usage:   "Base URL of the API under test, overrides the profile",
				Sources: cli.EnvVars("TARGET_BASE_URL"),
			},
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "retention-schedule",
				Usage:   "Cron spec of the retention sweep",
				Value:   retention.DefaultSchedule,
				Sources: cli.EnvVars("RETENTION_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "retention-max-age",
				Usage:   "Age after which AI logs and finished jobs are removed",
				Value:   retention.DefaultMaxAge,
				Sources: cli.EnvVars("RETENTION_MAX_AGE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger = log.Setup(command.String("log-level"), command.String("log-format")).With("module", "api")

			logger.InfoContext(ctx, "Initializing flowprobe API")

			api, err := NewAPI(ctx, logger, Config{
				DatabaseURL:       command.String("database-url"),
				JobStoreURL:       command.String("job-store-url"),
				EventBus:          command.String("event-bus"),
				KafkaBrokers:      command.String("kafka-brokers"),
				DataDir:           command.String("data-dir"),
				ExecutionProfile:  command.String("execution-profile"),
				TargetBaseURL:     command.String("target-base-url"),
				OTelEnabled:       command.Bool("otel-enabled"),
				RetentionSchedule: command.String("retention-schedule"),
				RetentionMaxAge:   command.Duration("retention-max-age"),
				Verifier: aiverify.Config{
					ScriptPath: command.String("ai-script-path"),
					Python:     command.String("ai-python"),
					Timeout:    command.Duration("ai-timeout"),
					LogDir:     command.String("ai-log-dir"),
				},
			})
			if err != nil {
				return err
			}

			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				api.Close(shutdownCtx)
			}()

			err = api.Start(int(command.Int("port")))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return err
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		logger.Error("flowprobe-api stopped", "error", err)
		os.Exit(1)
	}
}
