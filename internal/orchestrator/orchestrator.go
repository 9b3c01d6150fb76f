// Package orchestrator sequences an interview session through its stages.
// Every client turn enters through Step, which loads the session, checks the
// event against the transition table, runs the stage's component, and
// publishes the new state with an optimistic-version commit. Two racing steps
// for one session resolve so that exactly one is applied.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/interviewd/internal/gateway"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/interview/dialogue"
	"github.com/spigell/interviewd/internal/logger"
	"github.com/spigell/interviewd/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrRetryLater marks a step that failed on a transient dependency without
// mutating the session. The caller may resubmit the same event.
var ErrRetryLater = errors.New("step could not complete, retry later")

// TopicExtractor derives the ordered topic list from resume text.
type TopicExtractor interface {
	Extract(ctx context.Context, resumeText string) ([]interview.Topic, error)
}

// DialogueEngine produces the per-answer follow-up verdict.
type DialogueEngine interface {
	Decide(ctx context.Context, sess *interview.Session) interview.Decision
}

// ChallengeSelector picks the coding challenge for a session.
type ChallengeSelector interface {
	Select(difficulty interview.Difficulty, sessionID string) (*interview.Challenge, error)
}

// CodeEvaluator reviews the submitted solution.
type CodeEvaluator interface {
	Evaluate(ctx context.Context, ch *interview.Challenge, code string) (*interview.Critique, error)
}

// Scorer aggregates the session into its final result.
type Scorer interface {
	Score(ctx context.Context, sess *interview.Session) *interview.Result
}

// Deps aggregates the components the orchestrator drives.
type Deps struct {
	Store     session.Store
	Topics    TopicExtractor
	Dialogue  DialogueEngine
	Selector  ChallengeSelector
	Evaluator CodeEvaluator
	Scorer    Scorer
	Logger    *zap.Logger
}

// Progress reports where a session is in its state machine.
type Progress struct {
	Stage         interview.Stage `json:"stage"`
	TopicIndex    int             `json:"topic_index"`
	TotalTopics   int             `json:"total_topics"`
	FollowUpCount int             `json:"follow_up_count"`
}

// StepResult is the outcome of one accepted step: either the next prompt for
// the candidate or, on completion, the final result.
type StepResult struct {
	SessionID string            `json:"session_id"`
	Prompt    string            `json:"prompt,omitempty"`
	Progress  Progress          `json:"progress"`
	Result    *interview.Result `json:"result,omitempty"`
}

// Orchestrator is the per-session workflow engine.
type Orchestrator struct {
	deps Deps
}

// New validates the dependency set and creates the orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("session store is required")
	case deps.Topics == nil:
		return nil, errors.New("topic extractor is required")
	case deps.Dialogue == nil:
		return nil, errors.New("dialogue engine is required")
	case deps.Selector == nil:
		return nil, errors.New("challenge selector is required")
	case deps.Evaluator == nil:
		return nil, errors.New("code evaluator is required")
	case deps.Scorer == nil:
		return nil, errors.New("scorer is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{deps: deps}, nil
}

// Create registers a new session in stage CREATED with the behavior settings
// frozen into its record.
func (o *Orchestrator) Create(ctx context.Context, cfg interview.Config) (*interview.Session, error) {
	sess := &interview.Session{
		ID:        uuid.NewString(),
		Stage:     interview.StageCreated,
		Config:    cfg.Normalize(),
		CreatedAt: time.Now().UTC(),
	}
	sess.Append(interview.RoleSystem, "interview session created")

	if err := o.deps.Store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	o.deps.Logger.Info("session created", logger.SessionFields(sess.ID, string(sess.Stage))...)
	return sess, nil
}

// Step applies one client event to the session. It returns the next prompt or
// the terminal result, or a typed error: interview.ErrSessionNotFound,
// *interview.InvalidTransitionError, interview.ErrVersionConflict, or
// ErrRetryLater. Any other failure has already moved the session to FAILED.
func (o *Orchestrator) Step(ctx context.Context, sessionID string, event Event) (*StepResult, error) {
	sess, err := o.deps.Store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	expected := sess.Version

	if sess.Stage.Terminal() {
		return nil, &interview.InvalidTransitionError{Stage: sess.Stage, Event: event.eventName()}
	}

	log := logger.WithSessionFields(o.deps.Logger, sess.ID, string(sess.Stage))

	var result *StepResult
	switch ev := event.(type) {
	case ResumeSubmitted:
		result, err = o.stepResume(ctx, sess, ev, log)
	case AnswerSubmitted:
		result, err = o.stepAnswer(ctx, sess, ev, log)
	case CodeSubmitted:
		result, err = o.stepCode(ctx, sess, ev, log)
	default:
		return nil, &interview.InvalidTransitionError{Stage: sess.Stage, Event: event.eventName()}
	}
	if err != nil {
		return nil, err
	}

	if err := o.deps.Store.Commit(ctx, sess, expected); err != nil {
		return nil, err
	}

	log.Info("step applied",
		zap.String("next_stage", string(sess.Stage)),
		zap.Int64("version", sess.Version),
	)
	return result, nil
}

// stepResume drives CREATED -> ANALYZING_RESUME -> QUESTIONING in one turn:
// extract topics, plan the question queue, ask the first question.
func (o *Orchestrator) stepResume(ctx context.Context, sess *interview.Session, ev ResumeSubmitted, log *zap.Logger) (*StepResult, error) {
	if sess.Stage != interview.StageCreated {
		return nil, &interview.InvalidTransitionError{Stage: sess.Stage, Event: ev.eventName()}
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: resume text must not be empty", ErrRetryLater)
	}

	sess.Stage = interview.StageAnalyzingResume
	sess.ResumeText = text

	topics, err := o.deps.Topics.Extract(ctx, text)
	if err != nil {
		return nil, o.stageFailure(ctx, sess, err, log)
	}

	sess.Topics = topics
	sess.TopicIndex = 0
	sess.FollowUpCount = 0
	sess.Stage = interview.StageQuestioning

	question := dialogue.PrimaryQuestion(topics[0], 0)
	sess.Append(interview.RoleInterviewer, question)

	return o.stepResult(sess, question), nil
}

// stepAnswer is the QUESTIONING self-loop: record the answer, decide between
// a bounded follow-up and advancing, and hand over to the coding stage once
// the last topic resolves.
func (o *Orchestrator) stepAnswer(ctx context.Context, sess *interview.Session, ev AnswerSubmitted, log *zap.Logger) (*StepResult, error) {
	if sess.Stage != interview.StageQuestioning {
		return nil, &interview.InvalidTransitionError{Stage: sess.Stage, Event: ev.eventName()}
	}
	answer := strings.TrimSpace(ev.Text)
	if answer == "" {
		return nil, fmt.Errorf("%w: answer must not be empty", ErrRetryLater)
	}

	sess.Append(interview.RoleCandidate, answer)

	decision := o.deps.Dialogue.Decide(ctx, sess)
	sess.Decisions = append(sess.Decisions, decision)
	if decision.Degraded {
		sess.Degraded = true
		log.Warn("dialogue decision degraded", zap.String("topic", decision.Topic))
	}

	if !decision.Sufficient && decision.FollowUp != "" && sess.FollowUpCount < sess.Config.MaxFollowUpsPerTopic {
		sess.FollowUpCount++
		sess.Append(interview.RoleInterviewer, decision.FollowUp)
		return o.stepResult(sess, decision.FollowUp), nil
	}

	if topic := sess.CurrentTopic(); topic != nil {
		topic.Resolved = true
	}
	sess.FollowUpCount = 0
	sess.TopicIndex++

	if topic := sess.CurrentTopic(); topic != nil {
		question := dialogue.PrimaryQuestion(*topic, sess.TopicIndex)
		sess.Append(interview.RoleInterviewer, question)
		return o.stepResult(sess, question), nil
	}

	// All topics resolved: assign the coding challenge.
	sess.Stage = interview.StageCodingChallenge
	ch, err := o.deps.Selector.Select(sess.Config.Difficulty, sess.ID)
	if err != nil {
		return nil, o.stageFailure(ctx, sess, err, log)
	}
	sess.Challenge = ch

	prompt := fmt.Sprintf("Coding challenge: %s\n\n%s", ch.Title, ch.Description)
	sess.Append(interview.RoleInterviewer, prompt)
	return o.stepResult(sess, prompt), nil
}

// stepCode drives CODING_CHALLENGE -> EVALUATING -> COMPLETED in one turn.
// There is no safe default for code correctness, so a retryable evaluator
// failure leaves the session uncommitted in CODING_CHALLENGE and the caller
// resubmits; only a fatal failure ends the session.
func (o *Orchestrator) stepCode(ctx context.Context, sess *interview.Session, ev CodeSubmitted, log *zap.Logger) (*StepResult, error) {
	if sess.Stage != interview.StageCodingChallenge {
		return nil, &interview.InvalidTransitionError{Stage: sess.Stage, Event: ev.eventName()}
	}
	code := strings.TrimSpace(ev.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: code submission must not be empty", ErrRetryLater)
	}

	sess.Stage = interview.StageEvaluating
	sess.CodeSubmission = code
	sess.Append(interview.RoleCandidate, code)

	critique, err := o.deps.Evaluator.Evaluate(ctx, sess.Challenge, code)
	if err != nil {
		if gateway.IsTransient(err) || gateway.IsContractViolation(err) {
			log.Warn("code evaluation unavailable", zap.Error(err))
			return nil, fmt.Errorf("%w: code evaluation unavailable: %v", ErrRetryLater, err)
		}
		return nil, o.stageFailure(ctx, sess, err, log)
	}
	sess.Critique = critique

	// The numeric score is pure aggregation; Score never fails.
	sess.Result = o.deps.Scorer.Score(ctx, sess)
	sess.Stage = interview.StageCompleted
	sess.Append(interview.RoleSystem, "interview completed")

	res := o.stepResult(sess, "")
	res.Result = sess.Result
	return res, nil
}

// Expire moves a non-terminal session to FAILED with the partial transcript
// retained. It serves the external idle-timeout policy and goes through the
// same versioned commit as any step.
func (o *Orchestrator) Expire(ctx context.Context, sessionID, reason string) error {
	sess, err := o.deps.Store.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Stage.Terminal() {
		return &interview.InvalidTransitionError{Stage: sess.Stage, Event: "expire"}
	}
	expected := sess.Version

	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "session expired"
	}
	sess.Stage = interview.StageFailed
	sess.FailureCause = reason
	sess.Append(interview.RoleSystem, "session expired: "+reason)

	if err := o.deps.Store.Commit(ctx, sess, expected); err != nil {
		return err
	}

	o.deps.Logger.Info("session expired",
		append(logger.SessionFields(sessionID, string(interview.StageFailed)), zap.String("reason", reason))...,
	)
	return nil
}

// Sweep expires every non-terminal session idle past its configured timeout.
// It is a no-op when the store cannot enumerate sessions. Sessions that race
// with a live step keep the step's outcome.
func (o *Orchestrator) Sweep(ctx context.Context) error {
	lister, ok := o.deps.Store.(session.Lister)
	if !ok {
		return nil
	}

	ids, err := lister.List(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	now := time.Now()
	for _, id := range ids {
		sess, err := o.deps.Store.Load(ctx, id)
		if err != nil {
			continue
		}
		if sess.Stage.Terminal() || now.Sub(sess.LastUpdated) < sess.Config.IdleTimeout {
			continue
		}
		if err := o.Expire(ctx, id, "idle timeout"); err != nil && !errors.Is(err, interview.ErrVersionConflict) && !interview.IsInvalidTransition(err) {
			o.deps.Logger.Warn("expiring idle session", append(logger.SessionFields(id, string(sess.Stage)), zap.Error(err))...)
		}
	}
	return nil
}

// Inspect returns a copy of the session for result and progress queries.
func (o *Orchestrator) Inspect(ctx context.Context, sessionID string) (*interview.Session, error) {
	return o.deps.Store.Load(ctx, sessionID)
}

// Delete removes the session record. Unknown ids are not an error.
func (o *Orchestrator) Delete(ctx context.Context, sessionID string) error {
	return o.deps.Store.Delete(ctx, sessionID)
}

// stageFailure records an unrecoverable component error on the session,
// commits the FAILED state, and returns the original error wrapped. The
// failed commit path deliberately ignores version conflicts: if another step
// won the race, its outcome stands.
func (o *Orchestrator) stageFailure(ctx context.Context, sess *interview.Session, cause error, log *zap.Logger) error {
	log.Error("unrecoverable step failure", zap.Error(cause))

	failed := sess.Clone()
	failed.Stage = interview.StageFailed
	failed.FailureCause = cause.Error()
	failed.Append(interview.RoleSystem, "session failed: "+cause.Error())

	if err := o.deps.Store.Commit(ctx, failed, sess.Version); err != nil && !errors.Is(err, interview.ErrVersionConflict) {
		log.Error("recording session failure", zap.Error(err))
	}

	return fmt.Errorf("session %s failed: %w", sess.ID, cause)
}

func (o *Orchestrator) stepResult(sess *interview.Session, prompt string) *StepResult {
	return &StepResult{
		SessionID: sess.ID,
		Prompt:    prompt,
		Progress: Progress{
			Stage:         sess.Stage,
			TopicIndex:    sess.TopicIndex,
			TotalTopics:   len(sess.Topics),
			FollowUpCount: sess.FollowUpCount,
		},
	}
}
