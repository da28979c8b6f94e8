package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dukex/flowprobe/pkg/aiverify"
	"github.com/dukex/flowprobe/pkg/config"
	"github.com/dukex/flowprobe/pkg/execution"
	"github.com/dukex/flowprobe/pkg/generator"
	"github.com/dukex/flowprobe/pkg/jobqueue"
	"github.com/dukex/flowprobe/pkg/mapping"
	"github.com/dukex/flowprobe/pkg/models"
	"github.com/dukex/flowprobe/pkg/services"
	cli "github.com/urfave/cli/v3"
)

// ErrExecutionFailed is returned by the run command when no step succeeded.
var ErrExecutionFailed = errors.New("execution failed")

type documents struct {
	BPMN    string
	OpenAPI string
}

func readDocuments(command *cli.Command) (*documents, error) {
	bpmnXML, err := os.ReadFile(command.String("bpmn"))
	if err != nil {
		return nil, fmt.Errorf("failed to read BPMN document: %w", err)
	}

	openAPIJSON, err := os.ReadFile(command.String("openapi"))
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI document: %w", err)
	}

	return &documents{BPMN: string(bpmnXML), OpenAPI: string(openAPIJSON)}, nil
}

func newVerifier(command *cli.Command, logger *slog.Logger) *aiverify.Verifier {
	return aiverify.New(aiverify.Config{
		ScriptPath: command.String("ai-script-path"),
		Python:     command.String("ai-python"),
		Timeout:    command.Duration("ai-timeout"),
		LogDir:     command.String("ai-log-dir"),
	}, logger)
}

func modelName(command *cli.Command) string {
	if !command.IsSet("model-id") {
		return ""
	}

	id := int(command.Int("model-id"))

	return jobqueue.ResolveModel(&id)
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}

func mapAction(ctx context.Context, command *cli.Command) error {
	logger := slog.Default().With("module", "cli")

	docs, err := readDocuments(command)
	if err != nil {
		return err
	}

	service := services.NewMapping(mapping.NewMapper(nil, logger), newVerifier(command, logger), logger)

	result, err := service.Map(ctx, services.MapRequest{
		BPMNXML:     docs.BPMN,
		OpenAPIJSON: docs.OpenAPI,
		Verify:      command.Bool("verify"),
		Model:       modelName(command),
	})
	if err != nil {
		return err
	}

	return writeJSON(command.Root().Writer, result)
}

func runAction(ctx context.Context, command *cli.Command) error {
	logger := slog.Default().With("module", "cli")

	docs, err := readDocuments(command)
	if err != nil {
		return err
	}

	cfg, err := config.LoadProfileOrDefault(command.String("profile"), command.String("base-url"))
	if err != nil {
		return err
	}

	service := services.NewMapping(mapping.NewMapper(nil, logger), nil, logger)

	parsed, err := service.Parse(docs.BPMN, docs.OpenAPI)
	if err != nil {
		return err
	}

	mappingResult, err := service.Map(ctx, services.MapRequest{BPMNXML: docs.BPMN, OpenAPIJSON: docs.OpenAPI})
	if err != nil {
		return err
	}

	seed := uint64(command.Int("seed")) // #nosec G115
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) // #nosec G115
	}

	engine := execution.NewEngine(execution.NewHTTPClient(nil), nil, logger)

	result := engine.Execute(ctx, &models.ExecutionRequest{
		ProcessModel:  parsed.Process,
		MappingResult: mappingResult,
		APISpec:       parsed.Spec,
		TestData:      generator.New(seed).Generate(mappingResult, parsed.Spec, 1),
		Config:        cfg,
	}, func(step *models.ExecutionStep, index, total int) {
		logger.InfoContext(ctx, "Step finished",
			"step", index+1, "total", total, "task_id", step.TaskID, "status", step.Status)
	})

	if err := writeJSON(command.Root().Writer, result); err != nil {
		return err
	}

	if result.Status == models.ExecutionStatusFailed {
		return fmt.Errorf("%w: %d problems", ErrExecutionFailed, len(result.Problems))
	}

	return nil
}

func verifyAction(ctx context.Context, command *cli.Command) error {
	logger := slog.Default().With("module", "cli")

	docs, err := readDocuments(command)
	if err != nil {
		return err
	}

	report := newVerifier(command, logger).Verify(ctx, docs.OpenAPI, docs.BPMN, modelName(command))

	return writeJSON(command.Root().Writer, report)
}
