package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/ibradecode/internal/logger"
	"github.com/yoockh/ibradecode/internal/models"
	"github.com/yoockh/ibradecode/internal/providers/llm"
	"github.com/yoockh/ibradecode/internal/utils"
)

const (
	StageSummarize = "summarize"
	StageOptimize  = "optimize"
	StageGenerate  = "generate"
)

const (
	summarizeInstruction = "Please summarize the following request in a clear and concise way, focusing on the main requirements and objectives:\n\n"
	optimizeInstruction  = "Transform the following summary into a powerful, detailed, and technical prompt that will help generate high-quality code. Make it specific, actionable, and include technical requirements:\n\nSummary: "
	generateInstruction  = "Based on the following optimized requirements, generate clean, well-documented, and production-ready code. Include comments and follow best practices:\n\n"
)

// SummarizePrompt, OptimizePrompt and GeneratePrompt build the stage inputs.
// Upstream text is interpolated verbatim.
func SummarizePrompt(raw string) string { return summarizeInstruction + raw }
func OptimizePrompt(summary string) string { return optimizeInstruction + summary }
func GeneratePrompt(optimizedPrompt string) string { return generateInstruction + optimizedPrompt }

// PipelineModels names the model used by each stage.
type PipelineModels struct {
	Summarizer string
	Optimizer  string
	Coder      string
}

var DefaultPipelineModels = PipelineModels{
	Summarizer: "phi3",
	Optimizer:  "mistral",
	Coder:      "deepseek-coder:6.7b",
}

type PipelineResult struct {
	Summary         string
	OptimizedPrompt string
	GeneratedCode   string
	Stages          []models.StageMetadata
}

type PipelineService interface {
	Run(ctx context.Context, rawPrompt string) (*PipelineResult, error)
}

type pipelineService struct {
	invoker llm.Invoker
	models  PipelineModels
	log     logrus.FieldLogger
}

func NewPipelineService(invoker llm.Invoker, m PipelineModels, log logrus.FieldLogger) PipelineService {
	if m.Summarizer == "" {
		m.Summarizer = DefaultPipelineModels.Summarizer
	}
	if m.Optimizer == "" {
		m.Optimizer = DefaultPipelineModels.Optimizer
	}
	if m.Coder == "" {
		m.Coder = DefaultPipelineModels.Coder
	}
	return &pipelineService{invoker: invoker, models: m, log: log.WithField("component", "pipeline")}
}

// Run executes summarize, optimize and generate strictly in that order.
// The first failing stage aborts the run and its error is returned as is.
func (s *pipelineService) Run(ctx context.Context, rawPrompt string) (*PipelineResult, error) {
	const op = "PipelineService.Run"

	if strings.TrimSpace(rawPrompt) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Prompt is required and must be a non-empty string", nil)
	}
	s.log.WithField("prompt", logger.Preview(rawPrompt, 100)).Info("pipeline started")

	res := &PipelineResult{Stages: make([]models.StageMetadata, 0, 3)}

	summary, err := s.stage(ctx, res, 1, StageSummarize, s.models.Summarizer, SummarizePrompt(rawPrompt))
	if err != nil {
		return nil, err
	}
	res.Summary = summary

	optimized, err := s.stage(ctx, res, 2, StageOptimize, s.models.Optimizer, OptimizePrompt(summary))
	if err != nil {
		return nil, err
	}
	res.OptimizedPrompt = optimized

	code, err := s.stage(ctx, res, 3, StageGenerate, s.models.Coder, GeneratePrompt(optimized))
	if err != nil {
		return nil, err
	}
	res.GeneratedCode = code

	return res, nil
}

func (s *pipelineService) stage(ctx context.Context, res *PipelineResult, step int, name, model, prompt string) (string, error) {
	log := s.log.WithFields(logrus.Fields{"step": step, "stage": name, "model": model})
	log.Info("stage started")

	gen, err := s.invoker.Generate(ctx, model, prompt)
	if err != nil {
		log.WithError(err).Warn("stage failed, aborting pipeline")
		return "", err
	}

	res.Stages = append(res.Stages, models.StageMetadata{
		Stage:     name,
		Model:     gen.Model,
		ElapsedMS: gen.ElapsedMS,
		Done:      gen.Done,
	})
	log.WithFields(logrus.Fields{
		"elapsed_ms": gen.ElapsedMS,
		"output":     logger.Preview(gen.Text, 100),
	}).Info("stage completed")
	return gen.Text, nil
}
