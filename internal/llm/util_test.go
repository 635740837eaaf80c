package llm

import (
	"strings"
	"testing"
)

func TestText(t *testing.T) {
	t.Parallel()

	if got := Text(nil); got != "" {
		t.Fatalf("Text(nil): got %q", got)
	}

	resp := &Response{Content: []ContentBlock{
		{Type: "text", Text: "hello "},
		{Type: "other", Text: "skipped"},
		{Type: "text", Text: "world"},
	}}
	if got := Text(resp); got != "hello world" {
		t.Fatalf("Text: got %q", got)
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr string
	}{
		{name: "empty", raw: "  ", wantErr: "empty output"},
		{name: "no object", raw: "just text", wantErr: "missing JSON object"},
		{name: "plain", raw: `{"a":1}`, want: `{"a":1}`},
		{name: "fenced", raw: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "fenced no lang", raw: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "surrounded", raw: "Sure! Here you go: {\"a\":1} hope that helps", want: `{"a":1}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractJSON(tc.raw)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("error: got %v want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
