// Package scoring aggregates all sub-assessments of a session into the final
// score and feedback. The numeric score is pure aggregation: it never depends
// on a model call succeeding.
package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/interviewd/internal/gateway"
	"github.com/spigell/interviewd/internal/interview"

	"go.uber.org/zap"
)

//go:embed feedback_prompt.md
var feedbackPrompt string

const feedbackShape = `{"feedback": "<string>", "strengths": ["<string>"], "improvements": ["<string>"]}`

// Weights of the two score components. Code correctness dominates because it
// is the only directly verified signal.
const (
	dialogueWeight    = 0.4
	correctnessWeight = 0.6
)

// Score bands used by the templated fallback feedback, matching the grading
// scale communicated to candidates.
const (
	passingScore   = 60
	goodScore      = 80
	excellentScore = 90
)

type generator interface {
	Generate(ctx context.Context, req gateway.Request, out any, validate func() error) error
}

// Scorer computes the final result for a session that has finished
// evaluation.
type Scorer struct {
	gen    generator
	logger *zap.Logger
}

// NewScorer creates a Scorer backed by the given gateway.
func NewScorer(gen generator, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{gen: gen, logger: logger}
}

type feedbackPayload struct {
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

func (p *feedbackPayload) validate() error {
	if strings.TrimSpace(p.Feedback) == "" {
		return fmt.Errorf("feedback must not be empty")
	}
	return nil
}

// Score aggregates the recorded dialogue signals and the code critique into
// the final result. The feedback text comes from one gateway call; when that
// call fails the numeric score is still returned with a templated summary.
func (s *Scorer) Score(ctx context.Context, sess *interview.Session) *interview.Result {
	correctness := 0.0
	if sess.Critique != nil {
		correctness = clamp(sess.Critique.Correctness, 0, 1)
	}

	dialogue := dialogueQuality(sess)
	score := math.Round((dialogueWeight*dialogue + correctnessWeight*correctness) * 100)
	score = clamp(score, 0, 100)

	result := &interview.Result{
		Score:    score,
		Analysis: append([]interview.Decision(nil), sess.Decisions...),
		Degraded: sess.Degraded,
	}

	var payload feedbackPayload
	req := gateway.Request{
		Schema: "final_feedback",
		System: "You are an expert technical interviewer and evaluator.",
		Prompt: buildFeedbackPrompt(sess, score),
		Shape:  feedbackShape,
	}

	if err := s.gen.Generate(ctx, req, &payload, payload.validate); err != nil {
		s.logger.Warn("feedback generation failed, using templated summary",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		result.Feedback = templatedFeedback(score)
		return result
	}

	result.Feedback = strings.TrimSpace(payload.Feedback)
	result.Strengths = payload.Strengths
	result.Improvements = payload.Improvements
	return result
}

// dialogueQuality reduces the recorded per-topic decisions and answer lengths
// to a quality fraction in [0,1].
func dialogueQuality(sess *interview.Session) float64 {
	if len(sess.Topics) == 0 {
		return 0.5
	}

	byTopic := make(map[string][]interview.Decision)
	for _, d := range sess.Decisions {
		byTopic[d.Topic] = append(byTopic[d.Topic], d)
	}

	total := 0.0
	for _, topic := range sess.Topics {
		q := 1.0
		degraded := false
		insufficient := 0
		for _, d := range byTopic[topic.Name] {
			if d.Degraded {
				degraded = true
			}
			if !d.Sufficient {
				insufficient++
			}
		}
		// Every follow-up that was needed signals a shallower first answer.
		q -= 0.15 * float64(insufficient)
		if degraded {
			// A failed-open verdict gives no real signal for this topic.
			q = math.Min(q, 0.5)
		}
		total += clamp(q, 0.4, 1)
	}
	quality := total / float64(len(sess.Topics))

	// Consistently terse answers drag the quality down regardless of the
	// verdicts.
	switch avg := averageAnswerLength(sess); {
	case avg == 0:
		quality = 0
	case avg < 40:
		quality *= 0.6
	case avg < 120:
		quality *= 0.85
	}

	return clamp(quality, 0, 1)
}

func averageAnswerLength(sess *interview.Session) float64 {
	count := 0
	runes := 0
	for _, msg := range sess.Transcript {
		if msg.Role != interview.RoleCandidate {
			continue
		}
		count++
		runes += utf8.RuneCountInString(msg.Content)
	}
	if count == 0 {
		return 0
	}
	return float64(runes) / float64(count)
}

func buildFeedbackPrompt(sess *interview.Session, score float64) string {
	var topicsSummary strings.Builder
	for _, topic := range sess.Topics {
		followUps := 0
		degraded := false
		for _, d := range sess.Decisions {
			if d.Topic != topic.Name {
				continue
			}
			if !d.Sufficient {
				followUps++
			}
			if d.Degraded {
				degraded = true
			}
		}
		fmt.Fprintf(&topicsSummary, "- %s: %d follow-up(s)", topic.Name, followUps)
		if degraded {
			topicsSummary.WriteString(" (decision degraded)")
		}
		topicsSummary.WriteString("\n")
	}

	challengeTitle := "(none)"
	correctness := "n/a"
	styleNotes := ""
	issues := "(none)"
	if sess.Challenge != nil {
		challengeTitle = sess.Challenge.Title
	}
	if sess.Critique != nil {
		correctness = fmt.Sprintf("%.2f", sess.Critique.Correctness)
		styleNotes = sess.Critique.StyleNotes
		if len(sess.Critique.Issues) > 0 {
			issues = "- " + strings.Join(sess.Critique.Issues, "\n- ")
		}
	}

	var transcript strings.Builder
	for _, msg := range sess.Transcript {
		fmt.Fprintf(&transcript, "[%s] %s\n", msg.Role, msg.Content)
	}

	return strings.NewReplacer(
		"{{SCORE}}", fmt.Sprintf("%.0f", score),
		"{{TOPICS}}", strings.TrimSpace(topicsSummary.String()),
		"{{CHALLENGE}}", challengeTitle,
		"{{CORRECTNESS}}", correctness,
		"{{STYLE_NOTES}}", styleNotes,
		"{{ISSUES}}", issues,
		"{{TRANSCRIPT}}", strings.TrimSpace(transcript.String()),
	).Replace(feedbackPrompt)
}

func templatedFeedback(score float64) string {
	band := "below the passing bar; focus on depth of technical answers and solution correctness"
	switch {
	case score >= excellentScore:
		band = "an excellent result"
	case score >= goodScore:
		band = "a good result"
	case score >= passingScore:
		band = "a passing result"
	}
	return fmt.Sprintf(
		"The interview is complete with a final score of %.0f/100, %s. A detailed written assessment could not be generated for this session.",
		score, band,
	)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
