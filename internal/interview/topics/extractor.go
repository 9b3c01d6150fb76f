// Package topics turns normalized resume text into the ordered set of
// discussion topics that drives questioning.
package topics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	_ "embed"

	"github.com/spigell/interviewd/internal/gateway"
	"github.com/spigell/interviewd/internal/interview"

	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const (
	minTopics = 3
	maxTopics = 6

	// GenericTopicName is the fallback topic used when the model never
	// produces a conforming topic list. Questioning must always be
	// possible, so a broken extraction degrades instead of failing the
	// session.
	GenericTopicName = "general technical background"
)

const shape = `{"topics": [{"name": "<string>", "priority": <number>}]}`

type generator interface {
	Generate(ctx context.Context, req gateway.Request, out any, validate func() error) error
}

// Extractor derives interview topics from resume text with a single
// structured gateway call.
type Extractor struct {
	gen    generator
	logger *zap.Logger
}

// NewExtractor creates an Extractor backed by the given gateway.
func NewExtractor(gen generator, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{gen: gen, logger: logger}
}

type topicsPayload struct {
	Topics []struct {
		Name     string `json:"name"`
		Priority int    `json:"priority"`
	} `json:"topics"`
}

func (p *topicsPayload) validate() error {
	if len(p.Topics) < minTopics || len(p.Topics) > maxTopics {
		return fmt.Errorf("expected %d-%d topics, got %d", minTopics, maxTopics, len(p.Topics))
	}
	for i, t := range p.Topics {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("topic %d has an empty name", i)
		}
	}
	return nil
}

// Extract returns the ordered topic list for the resume. A contract violation
// after gateway retries falls back to the single generic topic; transient and
// fatal gateway failures propagate to the caller.
func (e *Extractor) Extract(ctx context.Context, resumeText string) ([]interview.Topic, error) {
	resumeText = strings.TrimSpace(resumeText)
	if resumeText == "" {
		return nil, fmt.Errorf("resume text must not be empty")
	}

	var payload topicsPayload
	req := gateway.Request{
		Schema: "topics",
		System: "You are an expert technical recruiter.",
		Prompt: strings.ReplaceAll(promptTemplate, "{{RESUME}}", resumeText),
		Shape:  shape,
	}

	err := e.gen.Generate(ctx, req, &payload, payload.validate)
	if err != nil {
		if gateway.IsContractViolation(err) {
			e.logger.Warn("topic extraction never conformed, using generic topic", zap.Error(err))
			return []interview.Topic{{Name: GenericTopicName, Priority: 1}}, nil
		}
		return nil, fmt.Errorf("extract topics: %w", err)
	}

	topics := make([]interview.Topic, 0, len(payload.Topics))
	for _, t := range payload.Topics {
		topics = append(topics, interview.Topic{
			Name:     strings.TrimSpace(t.Name),
			Priority: t.Priority,
		})
	}

	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].Priority < topics[j].Priority
	})

	e.logger.Info("extracted topics", zap.Int("count", len(topics)))
	return topics, nil
}
