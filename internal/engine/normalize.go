package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Difficulty is an intended difficulty level. Models occasionally return it
// as "5/10" or "5 out of 10" instead of an integer; decoding coerces such
// values by taking the leading integer token.
type Difficulty int

func (d *Difficulty) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Difficulty(int(n))
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("engine: difficulty: expected number or string, got %s", strings.TrimSpace(string(b)))
	}

	v, err := leadingInt(s)
	if err != nil {
		return fmt.Errorf("engine: difficulty: %w", err)
	}
	*d = Difficulty(v)
	return nil
}

// leadingInt extracts the first run of digits from s.
func leadingInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, fmt.Errorf("no integer token in %q", s)
	}

	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	v := 0
	for _, r := range s[start:end] {
		v = v*10 + int(r-'0')
		if v > 1<<30 {
			break
		}
	}
	return v, nil
}

// ClampDifficulty forces v into [lo, hi].
func ClampDifficulty(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
