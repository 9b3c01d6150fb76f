package dialogue

import (
	"context"
	"fmt"
	"strings"

	_ "embed"

	"github.com/spigell/interviewd/internal/gateway"
	"github.com/spigell/interviewd/internal/interview"

	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const shape = `{"sufficient": <bool>, "followUp": <string or null>}`

type generator interface {
	Generate(ctx context.Context, req gateway.Request, out any, validate func() error) error
}

// Engine decides, after each candidate answer, whether the current topic
// deserves a bounded follow-up or is done.
type Engine struct {
	gen    generator
	logger *zap.Logger
}

// NewEngine creates an Engine backed by the given gateway.
func NewEngine(gen generator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{gen: gen, logger: logger}
}

type decisionPayload struct {
	Sufficient bool    `json:"sufficient"`
	FollowUp   *string `json:"followUp"`
}

func (p *decisionPayload) validate() error {
	if !p.Sufficient && (p.FollowUp == nil || strings.TrimSpace(*p.FollowUp) == "") {
		return fmt.Errorf("insufficient verdict must carry a follow-up question")
	}
	return nil
}

// Decide returns the verdict for the current topic given the session state.
// The adaptive bypass is checked before anything else so a disabled engine
// never costs a gateway call. A gateway failure fails open: the answer is
// treated as sufficient, and the decision is marked degraded so the quality
// loss stays visible in the session record.
func (e *Engine) Decide(ctx context.Context, sess *interview.Session) interview.Decision {
	topic := sess.CurrentTopic()
	decision := interview.Decision{
		Round: sess.FollowUpCount,
	}
	if topic != nil {
		decision.Topic = topic.Name
	}

	if !sess.Config.AdaptiveQuestioning {
		decision.Sufficient = true
		return decision
	}

	if sess.FollowUpCount >= sess.Config.MaxFollowUpsPerTopic {
		// The budget is spent; the verdict could not change the outcome.
		decision.Sufficient = true
		return decision
	}

	if topic == nil {
		decision.Sufficient = true
		return decision
	}

	answers := sess.TopicAnswers()
	prompt := strings.NewReplacer(
		"{{TOPIC}}", topic.Name,
		"{{QUESTION}}", PrimaryQuestion(*topic, sess.TopicIndex),
		"{{ANSWERS}}", formatAnswers(answers),
	).Replace(promptTemplate)

	var payload decisionPayload
	req := gateway.Request{
		Schema: "dialogue_decision",
		System: "You are an expert technical interviewer.",
		Prompt: prompt,
		Shape:  shape,
	}

	if err := e.gen.Generate(ctx, req, &payload, payload.validate); err != nil {
		// Fail open: a flaky model must never deadlock a session.
		e.logger.Warn("dialogue decision failed open",
			zap.String("topic", topic.Name),
			zap.Int("round", sess.FollowUpCount),
			zap.Error(err),
		)
		decision.Sufficient = true
		decision.Degraded = true
		return decision
	}

	decision.Sufficient = payload.Sufficient
	if payload.FollowUp != nil {
		decision.FollowUp = strings.TrimSpace(*payload.FollowUp)
	}
	return decision
}

func formatAnswers(answers []string) string {
	if len(answers) == 0 {
		return "(no answers yet)"
	}
	var b strings.Builder
	for i, answer := range answers {
		fmt.Fprintf(&b, "%d. %s\n", i+1, answer)
	}
	return strings.TrimSpace(b.String())
}
