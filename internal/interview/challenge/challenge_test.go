package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/spigell/interviewd/internal/gateway"
	"github.com/spigell/interviewd/internal/interview"

	"go.uber.org/zap"
)

func TestNewSelectorParsesCatalogue(t *testing.T) {
	s, err := NewSelector()
	if err != nil {
		t.Fatalf("expected catalogue to parse, got %v", err)
	}
	if len(s.byDifficulty[interview.DifficultyMedium]) == 0 {
		t.Fatal("expected medium challenges in catalogue")
	}
	if len(s.byDifficulty[interview.DifficultyHard]) == 0 {
		t.Fatal("expected hard challenges in catalogue")
	}
}

func TestSelectIsDeterministicPerSession(t *testing.T) {
	s, err := NewSelector()
	if err != nil {
		t.Fatal(err)
	}

	first, err := s.Select(interview.DifficultyMedium, "session-abc")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Select(interview.DifficultyMedium, "session-abc")
	if err != nil {
		t.Fatal(err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected same challenge for same session, got %q and %q", first.ID, second.ID)
	}
	if first.Difficulty != interview.DifficultyMedium {
		t.Fatalf("unexpected difficulty: %q", first.Difficulty)
	}
}

func TestSelectSpreadsAcrossSessions(t *testing.T) {
	s, err := NewSelector()
	if err != nil {
		t.Fatal(err)
	}

	seen := map[string]bool{}
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		ch, err := s.Select(interview.DifficultyHard, id)
		if err != nil {
			t.Fatal(err)
		}
		seen[ch.ID] = true
	}

	if len(seen) < 2 {
		t.Fatalf("expected selection to vary across sessions, saw only %v", seen)
	}
}

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

func testChallenge() *interview.Challenge {
	return &interview.Challenge{
		ID:             "lru-cache",
		Title:          "LRU Cache",
		Description:    "Implement an LRU cache.",
		Difficulty:     interview.DifficultyMedium,
		ReferenceNotes: "hash map plus doubly linked list",
	}
}

func TestEvaluateReturnsCritique(t *testing.T) {
	stub := &stubGenerator{response: `{
		"correctness": 0.75,
		"styleNotes": "Clear structure, inconsistent naming.",
		"issues": ["Get does not move the entry to the front"]
	}`}

	e := NewEvaluator(stub, zap.NewNop())
	critique, err := e.Evaluate(context.Background(), testChallenge(), "func main() {}")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if critique.Correctness != 0.75 {
		t.Fatalf("unexpected correctness: %v", critique.Correctness)
	}
	if len(critique.Issues) != 1 {
		t.Fatalf("unexpected issues: %v", critique.Issues)
	}

	if !strings.Contains(stub.lastReq.Prompt, "LRU Cache") {
		t.Fatalf("prompt missing challenge: %q", stub.lastReq.Prompt)
	}
	if !strings.Contains(stub.lastReq.Prompt, "func main() {}") {
		t.Fatalf("prompt missing submitted code: %q", stub.lastReq.Prompt)
	}
	if !strings.Contains(stub.lastReq.Prompt, "doubly linked list") {
		t.Fatalf("prompt missing reviewer notes: %q", stub.lastReq.Prompt)
	}
}

func TestEvaluatePropagatesGatewayFailure(t *testing.T) {
	stub := &stubGenerator{err: &gateway.Error{Kind: gateway.KindFatal, Err: errors.New("auth")}}

	e := NewEvaluator(stub, zap.NewNop())
	_, err := e.Evaluate(context.Background(), testChallenge(), "code")
	if !gateway.IsFatal(err) {
		t.Fatalf("expected fatal gateway error to propagate, got %v", err)
	}
}

func TestEvaluateRejectsEmptySubmission(t *testing.T) {
	e := NewEvaluator(&stubGenerator{}, zap.NewNop())
	if _, err := e.Evaluate(context.Background(), testChallenge(), "   "); err == nil {
		t.Fatal("expected error for empty submission")
	}
}

func TestCritiquePayloadValidate(t *testing.T) {
	p := critiquePayload{Correctness: 1.5}
	if err := p.validate(); err == nil {
		t.Fatal("expected validation error for correctness above 1")
	}
}
