// Package interview holds the domain model for a single interview session:
// the session state machine stages, the transcript, resume-derived topics and
// the terminal result. All mutation goes through the orchestrator; this
// package only defines the shapes and their small invariant-preserving
// helpers.
package interview

import (
	"time"
)

// Stage is the current phase of the session state machine.
type Stage string

const (
	StageCreated         Stage = "created"
	StageAnalyzingResume Stage = "analyzing_resume"
	StageQuestioning     Stage = "questioning"
	StageCodingChallenge Stage = "coding_challenge"
	StageEvaluating      Stage = "evaluating"
	StageCompleted       Stage = "completed"
	StageFailed          Stage = "failed"
)

// Terminal reports whether the stage accepts no further mutating steps.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem      Role = "system"
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Message is a single transcript entry. Immutable after creation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Ordinal   int       `json:"ordinal"`
	Timestamp time.Time `json:"timestamp"`
}

// Topic is a resume-derived subject area driving one primary question.
type Topic struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Resolved bool   `json:"resolved"`
}

// Difficulty tags a coding challenge.
type Difficulty string

const (
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Challenge is a coding challenge from the fixed catalogue. Immutable once
// assigned to a session.
type Challenge struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Difficulty  Difficulty `json:"difficulty" yaml:"difficulty"`
	// Hints for the evaluator, never shown to the candidate.
	ReferenceNotes string `json:"-" yaml:"reference_notes"`
}

// Critique is the structured review of a submitted solution.
type Critique struct {
	Correctness float64  `json:"correctness"`
	StyleNotes  string   `json:"style_notes"`
	Issues      []string `json:"issues"`
}

// Decision records one adaptive-dialogue verdict for a topic round. The
// sequence of decisions is retained on the session so the final result can
// expose per-topic response analysis.
type Decision struct {
	Topic      string `json:"topic"`
	Round      int    `json:"round"`
	Sufficient bool   `json:"sufficient"`
	FollowUp   string `json:"follow_up,omitempty"`
	// Degraded marks a verdict that was defaulted because the decision
	// call failed, not because the model judged the answer sufficient.
	Degraded bool `json:"degraded"`
}

// Result is the terminal outcome of a completed session.
type Result struct {
	Score        float64  `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	// Analysis carries the per-topic dialogue verdicts so a reader can see
	// how the questioning depth was judged, not just the aggregate score.
	Analysis []Decision `json:"analysis,omitempty"`
	// Degraded is true when at least one dialogue decision failed open, so
	// the questioning depth may be shallower than the score suggests.
	Degraded bool `json:"degraded"`
}

// Session is one candidate's end-to-end interview instance. It is owned by
// the session store; callers always operate on private copies and publish
// changes through a versioned commit.
type Session struct {
	ID      string `json:"id"`
	Stage   Stage  `json:"stage"`
	Config  Config `json:"config"`
	Version int64  `json:"version"`

	ResumeText string  `json:"resume_text"`
	Topics     []Topic `json:"topics"`
	// TopicIndex is the cursor into Topics; FollowUpCount counts follow-ups
	// asked for the topic under the cursor.
	TopicIndex    int `json:"topic_index"`
	FollowUpCount int `json:"follow_up_count"`

	Transcript []Message  `json:"transcript"`
	Decisions  []Decision `json:"decisions,omitempty"`

	Challenge      *Challenge `json:"challenge,omitempty"`
	CodeSubmission string     `json:"code_submission,omitempty"`
	Critique       *Critique  `json:"critique,omitempty"`

	Result       *Result `json:"result,omitempty"`
	FailureCause string  `json:"failure_cause,omitempty"`
	Degraded     bool    `json:"degraded"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Append adds a message to the transcript, assigning the next ordinal.
func (s *Session) Append(role Role, content string) {
	s.Transcript = append(s.Transcript, Message{
		Role:      role,
		Content:   content,
		Ordinal:   len(s.Transcript),
		Timestamp: time.Now().UTC(),
	})
}

// CurrentTopic returns the topic under the cursor, or nil when the cursor has
// moved past the last topic.
func (s *Session) CurrentTopic() *Topic {
	if s.TopicIndex < 0 || s.TopicIndex >= len(s.Topics) {
		return nil
	}
	return &s.Topics[s.TopicIndex]
}

// TopicAnswers returns the candidate's answers collected so far for the
// current topic: the last FollowUpCount+1 candidate messages.
func (s *Session) TopicAnswers() []string {
	want := s.FollowUpCount + 1
	answers := make([]string, 0, want)
	for i := len(s.Transcript) - 1; i >= 0 && len(answers) < want; i-- {
		if s.Transcript[i].Role == RoleCandidate {
			answers = append(answers, s.Transcript[i].Content)
		}
	}
	// Restore chronological order.
	for i, j := 0, len(answers)-1; i < j; i, j = i+1, j-1 {
		answers[i], answers[j] = answers[j], answers[i]
	}
	return answers
}

// Clone returns a deep copy of the session. The store hands out and accepts
// only copies so that callers can never alias its authoritative state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Topics = append([]Topic(nil), s.Topics...)
	c.Transcript = append([]Message(nil), s.Transcript...)
	c.Decisions = append([]Decision(nil), s.Decisions...)
	if s.Challenge != nil {
		ch := *s.Challenge
		c.Challenge = &ch
	}
	if s.Critique != nil {
		cr := *s.Critique
		cr.Issues = append([]string(nil), s.Critique.Issues...)
		c.Critique = &cr
	}
	if s.Result != nil {
		r := *s.Result
		r.Strengths = append([]string(nil), s.Result.Strengths...)
		r.Improvements = append([]string(nil), s.Result.Improvements...)
		r.Analysis = append([]Decision(nil), s.Result.Analysis...)
		c.Result = &r
	}
	return &c
}
