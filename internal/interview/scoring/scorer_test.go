package scoring

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spigell/interviewd/internal/gateway"
	"github.com/spigell/interviewd/internal/interview"

	"go.uber.org/zap"
)

type stubGenerator struct {
	response string
	err      error
	lastReq  gateway.Request
}

func (s *stubGenerator) Generate(_ context.Context, req gateway.Request, out any, validate func() error) error {
	s.lastReq = req
	if s.err != nil {
		return s.err
	}
	if err := json.Unmarshal([]byte(s.response), out); err != nil {
		return err
	}
	if validate != nil {
		return validate()
	}
	return nil
}

func scoredSession() *interview.Session {
	sess := &interview.Session{
		ID:    "sess-1",
		Stage: interview.StageEvaluating,
		Config: interview.Config{
			AdaptiveQuestioning:  true,
			MaxFollowUpsPerTopic: 2,
			Difficulty:           interview.DifficultyMedium,
		},
		Topics: []interview.Topic{
			{Name: "Go services", Priority: 1, Resolved: true},
			{Name: "PostgreSQL", Priority: 2, Resolved: true},
		},
		Decisions: []interview.Decision{
			{Topic: "Go services", Round: 0, Sufficient: true},
			{Topic: "PostgreSQL", Round: 0, Sufficient: false, FollowUp: "How did you index it?"},
			{Topic: "PostgreSQL", Round: 1, Sufficient: true},
		},
		Challenge: &interview.Challenge{ID: "lru-cache", Title: "LRU Cache", Difficulty: interview.DifficultyMedium},
		Critique: &interview.Critique{
			Correctness: 0.9,
			StyleNotes:  "clean",
			Issues:      []string{"missing capacity check"},
		},
	}
	long := strings.Repeat("detailed answer text ", 10)
	sess.Append(interview.RoleInterviewer, "Tell me about Go services.")
	sess.Append(interview.RoleCandidate, long)
	sess.Append(interview.RoleInterviewer, "Tell me about PostgreSQL.")
	sess.Append(interview.RoleCandidate, long)
	sess.Append(interview.RoleInterviewer, "How did you index it?")
	sess.Append(interview.RoleCandidate, long)
	return sess
}

func TestScoreCombinesDialogueAndCorrectness(t *testing.T) {
	stub := &stubGenerator{response: `{
		"feedback": "Strong showing overall.",
		"strengths": ["clear communication"],
		"improvements": ["edge cases"]
	}`}

	s := NewScorer(stub, zap.NewNop())
	result := s.Score(context.Background(), scoredSession())

	if result.Score < 0 || result.Score > 100 {
		t.Fatalf("score out of range: %v", result.Score)
	}
	// Correctness 0.9 alone contributes 54; dialogue must add the rest.
	if result.Score < 54 {
		t.Fatalf("score lower than correctness contribution: %v", result.Score)
	}
	if result.Feedback != "Strong showing overall." {
		t.Fatalf("unexpected feedback: %q", result.Feedback)
	}
	if len(result.Strengths) != 1 || len(result.Improvements) != 1 {
		t.Fatalf("unexpected feedback lists: %+v", result)
	}

	if !strings.Contains(stub.lastReq.Prompt, "LRU Cache") {
		t.Fatalf("feedback prompt missing challenge: %q", stub.lastReq.Prompt)
	}
	if len(result.Analysis) != 3 {
		t.Fatalf("expected per-topic analysis in the result, got %+v", result.Analysis)
	}
}

func TestScoreSurvivesFeedbackFailure(t *testing.T) {
	stub := &stubGenerator{err: &gateway.Error{Kind: gateway.KindTransient, Schema: "final_feedback"}}

	s := NewScorer(stub, zap.NewNop())
	sess := scoredSession()
	result := s.Score(context.Background(), sess)

	if result.Score <= 0 {
		t.Fatalf("expected numeric score despite feedback failure, got %v", result.Score)
	}
	if result.Feedback == "" {
		t.Fatal("expected templated fallback feedback")
	}
	if !strings.Contains(result.Feedback, "could not be generated") {
		t.Fatalf("unexpected fallback feedback: %q", result.Feedback)
	}
}

func TestScoreMarksDegradedSessions(t *testing.T) {
	stub := &stubGenerator{response: `{"feedback": "ok", "strengths": [], "improvements": []}`}

	sess := scoredSession()
	sess.Degraded = true
	sess.Decisions = append(sess.Decisions, interview.Decision{
		Topic: "Go services", Round: 0, Sufficient: true, Degraded: true,
	})

	s := NewScorer(stub, zap.NewNop())
	result := s.Score(context.Background(), sess)
	if !result.Degraded {
		t.Fatal("expected degraded marker to survive into the result")
	}
}

func TestDialogueQualityPenalizesDegradedDecisions(t *testing.T) {
	clean := scoredSession()
	degraded := scoredSession()
	for i := range degraded.Decisions {
		degraded.Decisions[i].Degraded = true
	}

	if q1, q2 := dialogueQuality(clean), dialogueQuality(degraded); q2 >= q1 {
		t.Fatalf("expected degraded quality (%v) below clean quality (%v)", q2, q1)
	}
}

func TestDialogueQualityPenalizesTerseAnswers(t *testing.T) {
	long := scoredSession()
	short := scoredSession()
	for i := range short.Transcript {
		if short.Transcript[i].Role == interview.RoleCandidate {
			short.Transcript[i].Content = "yes"
		}
	}

	if q1, q2 := dialogueQuality(long), dialogueQuality(short); q2 >= q1 {
		t.Fatalf("expected terse-answer quality (%v) below detailed quality (%v)", q2, q1)
	}
}

func TestTemplatedFeedbackBands(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{95, "excellent"},
		{85, "good"},
		{65, "passing"},
		{30, "below the passing bar"},
	}
	for _, tc := range cases {
		if got := templatedFeedback(tc.score); !strings.Contains(got, tc.want) {
			t.Fatalf("feedback for %v missing %q: %q", tc.score, tc.want, got)
		}
	}
}
