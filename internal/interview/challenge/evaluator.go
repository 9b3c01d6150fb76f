package challenge

import (
	"context"
	"fmt"
	"strings"

	_ "embed"

	"github.com/spigell/interviewd/internal/gateway"
	"github.com/spigell/interviewd/internal/interview"

	"go.uber.org/zap"
)

//go:embed evaluator_prompt.md
var evaluatorPrompt string

const critiqueShape = `{"correctness": <number 0..1>, "styleNotes": "<string>", "issues": ["<string>"]}`

type generator interface {
	Generate(ctx context.Context, req gateway.Request, out any, validate func() error) error
}

// Evaluator reviews a submitted solution with a structured gateway call.
type Evaluator struct {
	gen    generator
	logger *zap.Logger
}

// NewEvaluator creates an Evaluator backed by the given gateway.
func NewEvaluator(gen generator, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{gen: gen, logger: logger}
}

type critiquePayload struct {
	Correctness float64  `json:"correctness"`
	StyleNotes  string   `json:"styleNotes"`
	Issues      []string `json:"issues"`
}

func (p *critiquePayload) validate() error {
	if p.Correctness < 0 || p.Correctness > 1 {
		return fmt.Errorf("correctness %v outside [0,1]", p.Correctness)
	}
	return nil
}

// Evaluate produces the structured critique for the submission. Unlike the
// dialogue decision there is no safe default for correctness, so every
// gateway failure propagates to the caller.
func (e *Evaluator) Evaluate(ctx context.Context, ch *interview.Challenge, code string) (*interview.Critique, error) {
	if ch == nil {
		return nil, fmt.Errorf("challenge is required")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("code submission must not be empty")
	}

	prompt := strings.NewReplacer(
		"{{CHALLENGE}}", fmt.Sprintf("%s\n\n%s", ch.Title, ch.Description),
		"{{NOTES}}", ch.ReferenceNotes,
		"{{CODE}}", code,
	).Replace(evaluatorPrompt)

	var payload critiquePayload
	req := gateway.Request{
		Schema: "code_critique",
		System: "You are an expert in algorithms and data structures.",
		Prompt: prompt,
		Shape:  critiqueShape,
	}

	if err := e.gen.Generate(ctx, req, &payload, payload.validate); err != nil {
		return nil, fmt.Errorf("evaluate code: %w", err)
	}

	e.logger.Info("code evaluated",
		zap.String("challenge_id", ch.ID),
		zap.Float64("correctness", payload.Correctness),
		zap.Int("issues", len(payload.Issues)),
	)

	return &interview.Critique{
		Correctness: payload.Correctness,
		StyleNotes:  strings.TrimSpace(payload.StyleNotes),
		Issues:      payload.Issues,
	}, nil
}
