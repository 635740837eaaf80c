// Package engine implements the self-evolving benchmark loop: question
// generation, solving, rubric judging, and the adaptive controller that
// steers difficulty from a smoothed score signal.
package engine

import "time"

// BenchmarkItem is one generated benchmark question. Immutable once
// produced; owned by the iteration record.
type BenchmarkItem struct {
	Topic            string     `json:"topic"`
	Question         string     `json:"question"`
	DifficultyIntent Difficulty `json:"difficulty_intent"`
}

// FailureMode tags one judged deficiency. Pure value type.
type FailureMode struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

// Evaluation is the judge's verdict for one question/answer pair.
type Evaluation struct {
	Score        float64       `json:"score"`
	Reasoning    string        `json:"reasoning"`
	FailureModes []FailureMode `json:"failure_modes,omitempty"`
}

// Record is the complete outcome of one iteration. Every call to
// Controller.RunIteration yields exactly one, sentinel values included.
type Record struct {
	Iteration    int           `json:"iteration"`
	Domain       string        `json:"domain"`
	Difficulty   int           `json:"difficulty"`
	Topic        string        `json:"topic"`
	Question     string        `json:"question"`
	Answer       string        `json:"answer"`
	Score        float64       `json:"score"`
	EMA          float64       `json:"ema"`
	Reasoning    string        `json:"reasoning"`
	FailureModes []FailureMode `json:"failure_modes,omitempty"`
	// Degraded marks iterations where at least one stage substituted a
	// sentinel for a failed upstream call.
	Degraded  bool      `json:"degraded,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	LatencyMs int64     `json:"latency_ms"`
}
