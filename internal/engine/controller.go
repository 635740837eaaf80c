package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stellarlinkco/evobench/internal/config"
	"github.com/stellarlinkco/evobench/internal/llm"
	"github.com/stellarlinkco/evobench/internal/structured"
)

// Params are the named tuning knobs of the adaptive loop.
type Params struct {
	// Alpha is the EMA smoothing constant, in (0,1).
	Alpha float64
	// RaiseThreshold is the EMA level above which difficulty scales up.
	RaiseThreshold float64
	// NeutralDifficulty is used before any score exists.
	NeutralDifficulty int
	// MinDifficulty floors the downward scale.
	MinDifficulty int
	// MaxDifficulty caps the upward scale.
	MaxDifficulty int
	// AdversarialThreshold enables trap questions at difficulty >= this
	// value; 0 disables the mode.
	AdversarialThreshold int
	// HistoryWindow bounds how many recent topics feed the novelty prompt.
	HistoryWindow int
}

// DefaultParams returns the reference policy.
func DefaultParams() Params {
	return Params{
		Alpha:                0.3,
		RaiseThreshold:       0.75,
		NeutralDifficulty:    5,
		MinDifficulty:        3,
		MaxDifficulty:        10,
		AdversarialThreshold: 9,
		HistoryWindow:        10,
	}
}

// ParamsFromConfig overlays set config values onto the defaults. An explicit
// adversarial_threshold of zero (or below) disables the trap mode; leaving
// the key out keeps the default.
func ParamsFromConfig(ec config.EngineConfig) Params {
	p := DefaultParams()
	if ec.Alpha > 0 {
		p.Alpha = ec.Alpha
	}
	if ec.RaiseThreshold > 0 {
		p.RaiseThreshold = ec.RaiseThreshold
	}
	if ec.NeutralDifficulty > 0 {
		p.NeutralDifficulty = ec.NeutralDifficulty
	}
	if ec.MinDifficulty > 0 {
		p.MinDifficulty = ec.MinDifficulty
	}
	if ec.MaxDifficulty > 0 {
		p.MaxDifficulty = ec.MaxDifficulty
	}
	if ec.AdversarialThreshold != nil {
		p.AdversarialThreshold = *ec.AdversarialThreshold
		if p.AdversarialThreshold < 0 {
			p.AdversarialThreshold = 0
		}
	}
	if ec.HistoryWindow > 0 {
		p.HistoryWindow = ec.HistoryWindow
	}
	return p
}

func (p Params) validate() error {
	if p.Alpha <= 0 || p.Alpha >= 1 {
		return fmt.Errorf("engine: alpha must be in (0,1), got %v", p.Alpha)
	}
	if p.RaiseThreshold < 0 || p.RaiseThreshold > 1 {
		return fmt.Errorf("engine: raise threshold must be in [0,1], got %v", p.RaiseThreshold)
	}
	if p.NeutralDifficulty < 1 || p.NeutralDifficulty > 10 {
		return fmt.Errorf("engine: neutral difficulty must be in [1,10], got %d", p.NeutralDifficulty)
	}
	if p.MinDifficulty < 1 || p.MinDifficulty > 10 {
		return fmt.Errorf("engine: min difficulty must be in [1,10], got %d", p.MinDifficulty)
	}
	if p.MaxDifficulty < 1 || p.MaxDifficulty > 10 {
		return fmt.Errorf("engine: max difficulty must be in [1,10], got %d", p.MaxDifficulty)
	}
	if p.HistoryWindow <= 0 {
		return fmt.Errorf("engine: history window must be > 0, got %d", p.HistoryWindow)
	}
	return nil
}

// Controller owns iteration state and drives one generate -> solve -> judge
// cycle per call. It is single-caller: one instance must not be invoked
// concurrently.
type Controller struct {
	params    Params
	generator *Generator
	solver    *Solver
	judge     *Judge

	history    []string
	ema        *float64
	iterations int
}

// NewController assembles a controller from its three stages.
func NewController(gen *Generator, sol *Solver, judge *Judge, params Params) (*Controller, error) {
	if gen == nil {
		return nil, errors.New("engine: nil generator")
	}
	if sol == nil {
		return nil, errors.New("engine: nil solver")
	}
	if judge == nil {
		return nil, errors.New("engine: nil judge")
	}
	if err := params.validate(); err != nil {
		return nil, err
	}
	gen.AdversarialThreshold = params.AdversarialThreshold
	return &Controller{
		params:    params,
		generator: gen,
		solver:    sol,
		judge:     judge,
	}, nil
}

// FromConfig builds a controller with one provider per pipeline role.
func FromConfig(cfg *config.Config) (*Controller, error) {
	if cfg == nil {
		return nil, errors.New("engine: nil config")
	}

	reg, err := llm.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	genProvider, err := reg.ProviderForRole(cfg.LLM.Roles, "generator")
	if err != nil {
		return nil, err
	}
	solProvider, err := reg.ProviderForRole(cfg.LLM.Roles, "solver")
	if err != nil {
		return nil, err
	}
	judgeProvider, err := reg.ProviderForRole(cfg.LLM.Roles, "judge")
	if err != nil {
		return nil, err
	}

	maxTokens := cfg.Engine.MaxTokens
	gen := &Generator{Client: &structured.Client{Provider: genProvider, MaxTokens: maxTokens}}
	sol := &Solver{Provider: solProvider, MaxTokens: maxTokens}
	judge := &Judge{Client: &structured.Client{Provider: judgeProvider, MaxTokens: maxTokens}}

	return NewController(gen, sol, judge, ParamsFromConfig(cfg.Engine))
}

// RunIteration executes one full cycle for the domain and returns its
// record. Upstream failures degrade the record but never fail the call;
// an error is returned only for invalid input. State mutates only at the
// end of a completed iteration, so a failure mid-cycle cannot corrupt it.
func (c *Controller) RunIteration(ctx context.Context, domain string) (*Record, error) {
	if c == nil {
		return nil, errors.New("engine: nil controller")
	}
	if ctx == nil {
		return nil, errors.New("engine: nil context")
	}
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, errors.New("engine: empty domain")
	}

	start := time.Now()
	difficulty := c.nextDifficulty()

	item, genOK := c.generator.Generate(ctx, domain, difficulty, c.recentTopics())
	answer, solOK := c.solver.Solve(ctx, domain, item.Question)
	eval, judgeOK := c.judge.Judge(ctx, domain, item.Question, answer)

	// Topic history grows even through failures: the sentinel topic is
	// appended too, keeping novelty context monotonically growing.
	c.history = append(c.history, item.Topic)
	ema := c.updateEMA(eval.Score)
	c.iterations++

	return &Record{
		Iteration:    c.iterations,
		Domain:       domain,
		Difficulty:   difficulty,
		Topic:        item.Topic,
		Question:     item.Question,
		Answer:       answer,
		Score:        eval.Score,
		EMA:          ema,
		Reasoning:    eval.Reasoning,
		FailureModes: eval.FailureModes,
		Degraded:     !genOK || !solOK || !judgeOK,
		CreatedAt:    start.UTC(),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// nextDifficulty implements the adaptive policy. It reads the EMA rather
// than the last raw score, so difficulty follows sustained performance, not
// single-shot noise.
func (c *Controller) nextDifficulty() int {
	p := c.params
	if c.ema == nil {
		return ClampDifficulty(p.NeutralDifficulty, 1, 10)
	}
	if *c.ema > p.RaiseThreshold {
		return ClampDifficulty(p.NeutralDifficulty+c.iterations/2, 1, p.MaxDifficulty)
	}
	return ClampDifficulty(p.NeutralDifficulty-c.iterations/2, p.MinDifficulty, 10)
}

// updateEMA folds a raw score into the running average and returns the new
// value. The first observation defines the baseline exactly, avoiding a
// cold start biased toward zero.
func (c *Controller) updateEMA(score float64) float64 {
	if c.ema == nil {
		v := score
		c.ema = &v
		return v
	}
	v := c.params.Alpha*score + (1-c.params.Alpha)**c.ema
	c.ema = &v
	return v
}

// Restore rehydrates loop state from previously recorded iterations, so a
// persisted session can continue where it stopped. Records must be in
// iteration order; calling with an empty slice is a no-op.
func (c *Controller) Restore(records []*Record) {
	if c == nil || len(records) == 0 {
		return
	}
	for _, rec := range records {
		if rec == nil {
			continue
		}
		c.history = append(c.history, rec.Topic)
		if rec.Iteration > c.iterations {
			c.iterations = rec.Iteration
		}
		v := rec.EMA
		c.ema = &v
	}
}

// EMA returns the current smoothed score; ok is false before the first
// iteration completes.
func (c *Controller) EMA() (float64, bool) {
	if c == nil || c.ema == nil {
		return 0, false
	}
	return *c.ema, true
}

// Iterations returns the number of completed iterations.
func (c *Controller) Iterations() int {
	if c == nil {
		return 0
	}
	return c.iterations
}

// TopicHistory returns a copy of the full topic history.
func (c *Controller) TopicHistory() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Controller) recentTopics() []string {
	n := c.params.HistoryWindow
	if len(c.history) <= n {
		return c.history
	}
	return c.history[len(c.history)-n:]
}
