package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/evobench/internal/llm"
)

const defaultSolverMaxTokens = 2048

// Solver submits a generated question to the solver model and returns its
// free-text answer.
type Solver struct {
	Provider  llm.Provider
	MaxTokens int
}

// Solve answers the question under a domain-expert framing. Adapter failures
// are absorbed into a clearly marked sentinel answer; ok is false then.
func (s *Solver) Solve(ctx context.Context, domain string, question string) (string, bool) {
	if s == nil || s.Provider == nil {
		return sentinelAnswer("nil solver"), false
	}

	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultSolverMaxTokens
	}

	system := fmt.Sprintf("You are a senior expert in %s. Answer precisely, state your reasoning, and explicitly flag any uncertainty or unverifiable premise.", strings.TrimSpace(domain))

	resp, err := s.Provider.Complete(ctx, &llm.Request{
		Messages:  []llm.Message{{Role: "user", Content: question}},
		System:    system,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return sentinelAnswer(err.Error()), false
	}

	answer := strings.TrimSpace(llm.Text(resp))
	if answer == "" {
		return sentinelAnswer(errEmptyAnswer.Error()), false
	}
	return answer, true
}

var errEmptyAnswer = errors.New("empty answer from solver model")

func sentinelAnswer(reason string) string {
	return fmt.Sprintf("[system placeholder: no answer produced: %s]", reason)
}
