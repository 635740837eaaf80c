package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/stellarlinkco/evobench/internal/structured"
)

// GenerationErrorTopic is the sentinel topic recorded when question
// generation fails.
const GenerationErrorTopic = "generation_error"

const generatorSystemPrompt = "You are a benchmark creator. You design novel, rigorous evaluation questions for expert-level AI assessment."

const itemSchemaJSON = `{
	"type": "object",
	"required": ["topic", "question", "difficulty_intent"],
	"properties": {
		"topic": {"type": "string", "minLength": 1},
		"question": {"type": "string", "minLength": 1},
		"difficulty_intent": {"type": ["integer", "string"]}
	}
}`

var itemSchema = structured.MustSchema(itemSchemaJSON)

// Generator produces one novel benchmark item per call.
type Generator struct {
	Client *structured.Client
	// AdversarialThreshold enables the trap-question mode at difficulty >=
	// this value. Zero disables the mode entirely.
	AdversarialThreshold int
}

// Generate builds a benchmark item for the domain at the target difficulty,
// steering away from recent topics. Adapter failures are absorbed: the
// returned item is then a clearly marked sentinel and ok is false.
func (g *Generator) Generate(ctx context.Context, domain string, difficulty int, recentTopics []string) (BenchmarkItem, bool) {
	difficulty = ClampDifficulty(difficulty, 1, 10)
	if g == nil || g.Client == nil {
		return sentinelItem(difficulty, "nil generator"), false
	}

	var item BenchmarkItem
	err := g.Client.Request(ctx, generatorSystemPrompt, g.buildPrompt(domain, difficulty, recentTopics), itemSchema, &item)
	if err != nil {
		return sentinelItem(difficulty, err.Error()), false
	}

	item.Topic = strings.TrimSpace(item.Topic)
	item.Question = strings.TrimSpace(item.Question)
	item.DifficultyIntent = Difficulty(ClampDifficulty(int(item.DifficultyIntent), 1, 10))
	return item, true
}

func (g *Generator) buildPrompt(domain string, difficulty int, recentTopics []string) string {
	var sb strings.Builder
	sb.WriteString("Generate one novel, challenging benchmark question in the domain of ")
	sb.WriteString(strings.TrimSpace(domain))
	sb.WriteString(".\n\n")

	fmt.Fprintf(&sb, "Target difficulty: %d on a 1-10 scale. Calibrate the question precisely to that level.\n", difficulty)

	if g.AdversarialThreshold > 0 && difficulty >= g.AdversarialThreshold {
		sb.WriteString("This is an adversarial stress test: embed a subtle false premise or a counter-intuitive trap in the question, designed to expose a model that answers confidently without checking its assumptions.\n")
	}

	if len(recentTopics) > 0 {
		sb.WriteString("\nRecently covered topics; avoid semantic repetition of any of them:\n")
		for _, topic := range recentTopics {
			topic = strings.TrimSpace(topic)
			if topic == "" {
				continue
			}
			sb.WriteString("- ")
			sb.WriteString(topic)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nReport the topic as a short label and difficulty_intent as an integer from 1 to 10.")
	return sb.String()
}

func sentinelItem(difficulty int, reason string) BenchmarkItem {
	return BenchmarkItem{
		Topic:            GenerationErrorTopic,
		Question:         fmt.Sprintf("[system placeholder: question generation failed: %s]", reason),
		DifficultyIntent: Difficulty(difficulty),
	}
}
