// Package main provides the flowprobe command line tool. It maps, executes
// and verifies a BPMN process against an OpenAPI document without a server.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dukex/flowprobe/pkg/aiverify"
	"github.com/dukex/flowprobe/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func documentFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "bpmn",
			Aliases:  []string{"b"},
			Usage:    "Path to the BPMN 2.0 XML document",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "openapi",
			Aliases:  []string{"o"},
			Usage:    "Path to the OpenAPI 3 JSON document",
			Required: true,
		},
	}
}

func verifierFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "model-id",
			Usage: "Id of the model used for AI verification (see flowprobe-api /ai/models)",
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
			Usage:   "Maximum run time of the AI verification",
			Value:   aiverify.DefaultTimeout,
			Sources: cli.EnvVars("AI_TIMEOUT"),
		},
		&cli.StringFlag{
			Name:    "ai-log-dir",
			Usage:   "Directory receiving raw model output",
			Sources: cli.EnvVars(aiverify.LogDirEnv),
		},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "flowprobe",
		Usage:                 "Map, execute and verify BPMN processes against OpenAPI documents",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), command.String("log-format"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:    "map",
				Aliases: []string{"m"},
				Usage:   "Map the BPMN tasks to OpenAPI endpoints and print the mapping result",
				Flags: append(append(documentFlags(), &cli.BoolFlag{
					Name:  "verify",
					Usage: "Attach an AI verification report",
				}), verifierFlags()...),
				Action: mapAction,
			},
			{
				Name:    "run",
				Aliases: []string{"r"},
				Usage:   "Map the documents, generate test data and execute the process against a live API",
				Flags: append(documentFlags(),
					&cli.StringFlag{
						Name:    "profile",
						Usage:   "YAML execution profile",
						Sources: cli.EnvVars("EXECUTION_PROFILE"),
					},
					&cli.StringFlag{
						Name:    "base-url",
						Usage:   "Base URL of the API under test, overrides the profile",
						Sources: cli.EnvVars("TARGET_BASE_URL"),
					},
					&cli.IntFlag{
						Name:  "seed",
						Usage: "Seed of the test data generator (0 picks one from the clock)",
					},
				),
				Action: runAction,
			},
			{
				Name:    "verify",
				Aliases: []string{"v"},
				Usage:   "Review the documents with the AI verifier and print its report",
				Flags:   append(documentFlags(), verifierFlags()...),
				Action:  verifyAction,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "flowprobe:", err)
		os.Exit(1)
	}
}
