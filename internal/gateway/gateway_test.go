package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spigell/interviewd/internal/ai"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type fakeInvoker struct {
	responses []fakeResponse
	prompts   []string
}

type fakeResponse struct {
	raw string
	err error
}

func (f *fakeInvoker) Invoke(_ context.Context, _ string, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if len(f.responses) == 0 {
		return "", errors.New("unexpected call")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp.raw, resp.err
}

func (f *fakeInvoker) Model() string { return "fake-model" }

func newTestGateway(invoker ai.Invoker) *Gateway {
	g := New(invoker, Config{}, zap.NewNop())
	g.limiter = rate.NewLimiter(rate.Inf, 0)
	return g
}

func silenceSleep(t *testing.T) {
	t.Helper()
	original := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = original })
}

type scorePayload struct {
	Score float64 `json:"score"`
}

func TestGenerateDecodesConformingResponse(t *testing.T) {
	invoker := &fakeInvoker{responses: []fakeResponse{{raw: `{"score": 42}`}}}
	g := newTestGateway(invoker)

	var out scorePayload
	err := g.Generate(context.Background(), Request{Schema: "score", Prompt: "p"}, &out, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Score != 42 {
		t.Fatalf("unexpected score: %v", out.Score)
	}
	if len(invoker.prompts) != 1 {
		t.Fatalf("expected 1 call, got %d", len(invoker.prompts))
	}
}

func TestGenerateStripsCodeFences(t *testing.T) {
	invoker := &fakeInvoker{responses: []fakeResponse{{raw: "```json\n{\"score\": 7}\n```"}}}
	g := newTestGateway(invoker)

	var out scorePayload
	if err := g.Generate(context.Background(), Request{Schema: "score", Prompt: "p"}, &out, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Score != 7 {
		t.Fatalf("unexpected score: %v", out.Score)
	}
}

func TestGenerateRepromptsOnMalformedOutput(t *testing.T) {
	invoker := &fakeInvoker{responses: []fakeResponse{
		{raw: "sure! here is the score you asked for"},
		{raw: `{"score": 3}`},
	}}
	g := newTestGateway(invoker)

	var out scorePayload
	req := Request{Schema: "score", Prompt: "rate this", Shape: `{"score": <number>}`}
	if err := g.Generate(context.Background(), req, &out, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Score != 3 {
		t.Fatalf("unexpected score: %v", out.Score)
	}

	if len(invoker.prompts) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(invoker.prompts))
	}
	reprompt := invoker.prompts[1]
	if !strings.Contains(reprompt, "rate this") || !strings.Contains(reprompt, `{"score": <number>}`) {
		t.Fatalf("re-prompt missing original prompt or shape: %q", reprompt)
	}
}

func TestGenerateReturnsContractViolationAfterRetries(t *testing.T) {
	invoker := &fakeInvoker{responses: []fakeResponse{
		{raw: "nope"},
		{raw: "still nope"},
		{raw: "nope again"},
	}}
	g := newTestGateway(invoker)

	var out scorePayload
	err := g.Generate(context.Background(), Request{Schema: "score", Prompt: "p"}, &out, nil)
	if !IsContractViolation(err) {
		t.Fatalf("expected contract violation, got %v", err)
	}
	// Default is 2 re-prompts on top of the first try.
	if len(invoker.prompts) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(invoker.prompts))
	}
}

func TestGenerateRunsValidateAfterDecode(t *testing.T) {
	invoker := &fakeInvoker{responses: []fakeResponse{
		{raw: `{"score": 500}`},
		{raw: `{"score": 50}`},
	}}
	g := newTestGateway(invoker)

	var out scorePayload
	validate := func() error {
		if out.Score < 0 || out.Score > 100 {
			return errors.New("score out of range")
		}
		return nil
	}
	if err := g.Generate(context.Background(), Request{Schema: "score", Prompt: "p"}, &out, validate); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Score != 50 {
		t.Fatalf("unexpected score: %v", out.Score)
	}
}

func TestGenerateRetriesTemporaryFailures(t *testing.T) {
	silenceSleep(t)

	invoker := &fakeInvoker{responses: []fakeResponse{
		{err: &ai.CallError{Err: errors.New("rate limited"), Transient: true}},
		{raw: `{"score": 1}`},
	}}
	g := newTestGateway(invoker)

	var out scorePayload
	if err := g.Generate(context.Background(), Request{Schema: "score", Prompt: "p"}, &out, nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(invoker.prompts) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(invoker.prompts))
	}
}

func TestGenerateStopsWhenTransientRetriesExhaust(t *testing.T) {
	silenceSleep(t)

	temp := &ai.CallError{Err: errors.New("timeout"), Transient: true}
	invoker := &fakeInvoker{responses: []fakeResponse{
		{err: temp}, {err: temp}, {err: temp}, {err: temp},
	}}
	g := newTestGateway(invoker)

	var out scorePayload
	err := g.Generate(context.Background(), Request{Schema: "score", Prompt: "p"}, &out, nil)
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	// Default is 3 retries on top of the first attempt.
	if len(invoker.prompts) != 4 {
		t.Fatalf("expected 4 calls, got %d", len(invoker.prompts))
	}
}

func TestGenerateDoesNotRetryFatalFailures(t *testing.T) {
	invoker := &fakeInvoker{responses: []fakeResponse{
		{err: &ai.CallError{Err: errors.New("invalid api key"), Transient: false}},
	}}
	g := newTestGateway(invoker)

	var out scorePayload
	err := g.Generate(context.Background(), Request{Schema: "score", Prompt: "p"}, &out, nil)
	if !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if len(invoker.prompts) != 1 {
		t.Fatalf("expected single call, got %d", len(invoker.prompts))
	}
}

func TestGenerateStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invoker := &fakeInvoker{responses: []fakeResponse{{raw: `{"score": 1}`}}}
	g := newTestGateway(invoker)
	g.limiter = rate.NewLimiter(rate.Limit(0.0001), 0)

	var out scorePayload
	err := g.Generate(ctx, Request{Schema: "score", Prompt: "p"}, &out, nil)
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
	if !IsTransient(err) {
		t.Fatalf("expected transient classification, got %v", err)
	}
}
