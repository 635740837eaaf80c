package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stellarlinkco/evobench/internal/llm"
	"github.com/stellarlinkco/evobench/internal/structured"
)

// scriptedProvider returns queued responses in order, then repeats the last.
type scriptedProvider struct {
	responses []scriptedResponse
	calls     int
	requests  []*llm.Request
}

type scriptedResponse struct {
	text string
	err  error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.requests = append(p.requests, req)
	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++
	r := p.responses[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &llm.Response{Content: []llm.ContentBlock{{Type: "text", Text: r.text}}}, nil
}

func textProvider(texts ...string) *scriptedProvider {
	p := &scriptedProvider{}
	for _, t := range texts {
		p.responses = append(p.responses, scriptedResponse{text: t})
	}
	return p
}

func failingProvider(err error) *scriptedProvider {
	return &scriptedProvider{responses: []scriptedResponse{{err: err}}}
}

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	p := textProvider(`{"topic":" quantum tunneling ","question":" Explain X. ","difficulty_intent":"7/10"}`)
	g := &Generator{Client: &structured.Client{Provider: p}}

	item, ok := g.Generate(context.Background(), "physics", 7, []string{"entropy", " ", "decoherence"})
	if !ok {
		t.Fatalf("Generate: not ok")
	}
	if item.Topic != "quantum tunneling" || item.Question != "Explain X." {
		t.Fatalf("item: got %+v", item)
	}
	if item.DifficultyIntent != 7 {
		t.Fatalf("difficulty: got %d", item.DifficultyIntent)
	}

	prompt := p.requests[0].Messages[0].Content
	if !strings.Contains(prompt, "physics") {
		t.Fatalf("prompt: missing domain: %q", prompt)
	}
	if !strings.Contains(prompt, "Target difficulty: 7") {
		t.Fatalf("prompt: missing difficulty: %q", prompt)
	}
	if !strings.Contains(prompt, "- entropy\n") || !strings.Contains(prompt, "- decoherence\n") {
		t.Fatalf("prompt: missing recent topics: %q", prompt)
	}
	if strings.Contains(prompt, "false premise") {
		t.Fatalf("prompt: adversarial mode active below threshold")
	}
}

func TestGenerator_AdversarialMode(t *testing.T) {
	t.Parallel()

	p := textProvider(`{"topic":"t","question":"q","difficulty_intent":9}`)
	g := &Generator{Client: &structured.Client{Provider: p}, AdversarialThreshold: 9}

	if _, ok := g.Generate(context.Background(), "chemistry", 9, nil); !ok {
		t.Fatalf("Generate: not ok")
	}
	if !strings.Contains(p.requests[0].Messages[0].Content, "false premise") {
		t.Fatalf("prompt: trap instruction missing")
	}

	// Threshold zero disables the mode even at difficulty 10.
	p2 := textProvider(`{"topic":"t","question":"q","difficulty_intent":10}`)
	g2 := &Generator{Client: &structured.Client{Provider: p2}}
	if _, ok := g2.Generate(context.Background(), "chemistry", 10, nil); !ok {
		t.Fatalf("Generate: not ok")
	}
	if strings.Contains(p2.requests[0].Messages[0].Content, "false premise") {
		t.Fatalf("prompt: trap instruction present with mode disabled")
	}
}

func TestGenerator_FailSoft(t *testing.T) {
	t.Parallel()

	g := &Generator{Client: &structured.Client{Provider: failingProvider(errBoom)}}
	item, ok := g.Generate(context.Background(), "biology", 12, nil)
	if ok {
		t.Fatalf("Generate: expected degraded")
	}
	if item.Topic != GenerationErrorTopic {
		t.Fatalf("topic: got %q", item.Topic)
	}
	if !strings.Contains(item.Question, "[system placeholder:") {
		t.Fatalf("question: got %q", item.Question)
	}
	// Requested difficulty is clamped and preserved in the sentinel.
	if item.DifficultyIntent != 10 {
		t.Fatalf("difficulty: got %d", item.DifficultyIntent)
	}

	// Malformed upstream payload degrades the same way.
	g = &Generator{Client: &structured.Client{Provider: textProvider(`{"topic":"x"}`)}}
	if _, ok := g.Generate(context.Background(), "biology", 5, nil); ok {
		t.Fatalf("Generate: expected degraded on schema violation")
	}

	var nilGen *Generator
	if _, ok := nilGen.Generate(context.Background(), "biology", 5, nil); ok {
		t.Fatalf("nil generator: expected degraded")
	}
}

func TestSolver_Solve(t *testing.T) {
	t.Parallel()

	p := textProvider("  The answer is 42.  ")
	s := &Solver{Provider: p}

	answer, ok := s.Solve(context.Background(), "math", "What is 6*7?")
	if !ok || answer != "The answer is 42." {
		t.Fatalf("Solve: ok=%v answer=%q", ok, answer)
	}
	if !strings.Contains(p.requests[0].System, "math") {
		t.Fatalf("system: got %q", p.requests[0].System)
	}
	if p.requests[0].JSONOnly {
		t.Fatalf("JSONOnly: solver must request free text")
	}
}

func TestSolver_FailSoft(t *testing.T) {
	t.Parallel()

	s := &Solver{Provider: failingProvider(errBoom)}
	answer, ok := s.Solve(context.Background(), "math", "q")
	if ok || !strings.Contains(answer, "[system placeholder: no answer produced:") {
		t.Fatalf("Solve: ok=%v answer=%q", ok, answer)
	}

	s = &Solver{Provider: textProvider("   ")}
	if answer, ok := s.Solve(context.Background(), "math", "q"); ok || !strings.Contains(answer, "empty answer") {
		t.Fatalf("Solve(empty): ok=%v answer=%q", ok, answer)
	}

	var nilSolver *Solver
	if _, ok := nilSolver.Solve(context.Background(), "math", "q"); ok {
		t.Fatalf("nil solver: expected degraded")
	}
}

func TestJudge_Judge(t *testing.T) {
	t.Parallel()

	p := textProvider(`{"score":0.5,"reasoning":" missing caveat ","failure_modes":[{"category":"omission","description":"no units"}]}`)
	j := &Judge{Client: &structured.Client{Provider: p}}

	eval, ok := j.Judge(context.Background(), "physics", "q", "a")
	if !ok {
		t.Fatalf("Judge: not ok")
	}
	if eval.Score != 0.5 || eval.Reasoning != "missing caveat" {
		t.Fatalf("eval: got %+v", eval)
	}
	if len(eval.FailureModes) != 1 || eval.FailureModes[0].Category != "omission" {
		t.Fatalf("failure modes: got %+v", eval.FailureModes)
	}

	prompt := p.requests[0].Messages[0].Content
	for _, want := range []string{"## Question", "## Answer", "## Rubric", "No partial credit"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt: missing %q", want)
		}
	}
}

func TestJudge_ScoreOutOfRangeIsFailure(t *testing.T) {
	t.Parallel()

	// An out-of-range score is a validation failure at the adapter, which the
	// judge converts into the zero-score sentinel; it is never clamped.
	j := &Judge{Client: &structured.Client{Provider: textProvider(`{"score":1.4,"reasoning":"great"}`)}}
	eval, ok := j.Judge(context.Background(), "d", "q", "a")
	if ok {
		t.Fatalf("Judge: expected degraded")
	}
	if eval.Score != 0.0 {
		t.Fatalf("score: got %v", eval.Score)
	}
	if len(eval.FailureModes) != 1 || eval.FailureModes[0].Category != SystemErrorCategory {
		t.Fatalf("failure modes: got %+v", eval.FailureModes)
	}
}

func TestJudge_FailSoft(t *testing.T) {
	t.Parallel()

	j := &Judge{Client: &structured.Client{Provider: failingProvider(errBoom)}}
	eval, ok := j.Judge(context.Background(), "d", "q", "a")
	if ok {
		t.Fatalf("Judge: expected degraded")
	}
	if eval.Score != 0.0 || !strings.Contains(eval.Reasoning, "[system placeholder: judge unavailable:") {
		t.Fatalf("eval: got %+v", eval)
	}

	var nilJudge *Judge
	if _, ok := nilJudge.Judge(context.Background(), "d", "q", "a"); ok {
		t.Fatalf("nil judge: expected degraded")
	}
}
