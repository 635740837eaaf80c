package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/stellarlinkco/evobench/internal/engine"
)

var (
	scoreHigh = color.New(color.FgGreen).SprintfFunc()
	scoreMid  = color.New(color.FgYellow).SprintfFunc()
	scoreLow  = color.New(color.FgRed).SprintfFunc()
	dimText   = color.New(color.Faint).SprintFunc()
	warnText  = color.New(color.FgYellow, color.Bold).SprintFunc()
)

func formatScore(score float64) string {
	switch {
	case score >= 0.75:
		return scoreHigh("%.3f", score)
	case score >= 0.5:
		return scoreMid("%.3f", score)
	default:
		return scoreLow("%.3f", score)
	}
}

func printRecord(out io.Writer, rec *engine.Record) {
	if rec == nil {
		return
	}

	header := fmt.Sprintf("[%d] difficulty=%d topic=%s", rec.Iteration, rec.Difficulty, rec.Topic)
	if rec.Degraded {
		header += " " + warnText("DEGRADED")
	}
	fmt.Fprintln(out, header)

	fmt.Fprintf(out, "    Q: %s\n", truncate(rec.Question, 160))
	fmt.Fprintf(out, "    A: %s\n", truncate(rec.Answer, 160))
	fmt.Fprintf(out, "    score=%s ema=%s latency_ms=%d\n", formatScore(rec.Score), formatScore(rec.EMA), rec.LatencyMs)

	for _, fm := range rec.FailureModes {
		fmt.Fprintf(out, "    %s %s: %s\n", dimText("-"), fm.Category, truncate(fm.Description, 120))
	}
	fmt.Fprintln(out)
}

// truncate collapses whitespace and cuts on a rune boundary, so multi-byte
// text is never split mid-character.
func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
