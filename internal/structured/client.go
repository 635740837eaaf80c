// Package structured wraps an llm.Provider behind a prompt+schema contract:
// a request either yields a value validated against a JSON Schema or fails
// with a typed RequestError. No retries happen at this layer; backoff policy
// belongs to the caller.
package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/xeipuuv/gojsonschema"

	"github.com/stellarlinkco/evobench/internal/claude"
	"github.com/stellarlinkco/evobench/internal/llm"
)

const defaultMaxTokens = 2048

// Schema is a compiled JSON Schema plus its source text, which is appended to
// prompts so providers without a native JSON mode still see the contract.
type Schema struct {
	raw      string
	compiled *gojsonschema.Schema
}

// CompileSchema parses and compiles a JSON Schema document.
func CompileSchema(raw string) (*Schema, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("structured: empty schema")
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("structured: compile schema: %w", err)
	}
	return &Schema{raw: raw, compiled: compiled}, nil
}

// MustSchema compiles a schema and panics on failure. For package-level
// schema constants.
func MustSchema(raw string) *Schema {
	s, err := CompileSchema(raw)
	if err != nil {
		panic(err)
	}
	return s
}

// Raw returns the schema source text.
func (s *Schema) Raw() string {
	if s == nil {
		return ""
	}
	return s.raw
}

// Stage identifies where a structured request failed.
type Stage string

const (
	StageTransport Stage = "transport"
	StageDecode    Stage = "decode"
	StageValidate  Stage = "validate"
)

// RequestError is the adapter's failure type. RateLimited marks upstream
// "too many requests" failures so callers can decide to back off.
type RequestError struct {
	Stage       Stage
	RateLimited bool
	Err         error
}

func (e *RequestError) Error() string {
	if e == nil {
		return "structured: <nil>"
	}
	if e.RateLimited {
		return fmt.Sprintf("structured: %s: rate limited: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("structured: %s: %v", e.Stage, e.Err)
}

func (e *RequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsRateLimited reports whether err carries an upstream rate-limit marker.
func IsRateLimited(err error) bool {
	var re *RequestError
	return errors.As(err, &re) && re.RateLimited
}

// Client issues schema-constrained requests against a provider.
type Client struct {
	Provider  llm.Provider
	MaxTokens int
}

// Request sends a fully-formed prompt and decodes the response into out,
// validating it against schema first. A non-nil return is always a
// *RequestError; out is never partially populated on failure.
func (c *Client) Request(ctx context.Context, system, prompt string, schema *Schema, out any) error {
	if c == nil || c.Provider == nil {
		return &RequestError{Stage: StageTransport, Err: errors.New("nil provider")}
	}
	if ctx == nil {
		return &RequestError{Stage: StageTransport, Err: errors.New("nil context")}
	}
	if schema == nil || schema.compiled == nil {
		return &RequestError{Stage: StageValidate, Err: errors.New("nil schema")}
	}
	if strings.TrimSpace(prompt) == "" {
		return &RequestError{Stage: StageTransport, Err: errors.New("empty prompt")}
	}

	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	fullPrompt := prompt + "\n\nRespond with ONLY a JSON object conforming to this JSON Schema, no markdown fences or extra text:\n" + schema.raw

	resp, err := c.Provider.Complete(ctx, &llm.Request{
		Messages:  []llm.Message{{Role: "user", Content: fullPrompt}},
		System:    system,
		MaxTokens: maxTokens,
		JSONOnly:  true,
	})
	if err != nil {
		return &RequestError{Stage: StageTransport, RateLimited: rateLimited(err), Err: err}
	}
	if resp == nil {
		return &RequestError{Stage: StageTransport, Err: errors.New("nil response")}
	}

	doc, err := llm.ExtractJSON(llm.Text(resp))
	if err != nil {
		return &RequestError{Stage: StageDecode, Err: err}
	}

	result, err := schema.compiled.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return &RequestError{Stage: StageValidate, Err: err}
	}
	if !result.Valid() {
		return &RequestError{Stage: StageValidate, Err: errors.New(joinSchemaErrors(result.Errors()))}
	}

	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return &RequestError{Stage: StageDecode, Err: err}
	}
	return nil
}

func joinSchemaErrors(errs []gojsonschema.ResultError) string {
	if len(errs) == 0 {
		return "schema validation failed"
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.String())
	}
	return strings.Join(parts, "; ")
}

func rateLimited(err error) bool {
	if err == nil {
		return false
	}

	var claudeErr *claude.APIError
	if errors.As(err, &claudeErr) {
		return claudeErr.RateLimited()
	}

	var oaAPIErr *openai.APIError
	if errors.As(err, &oaAPIErr) {
		return oaAPIErr.HTTPStatusCode == 429
	}
	var oaReqErr *openai.RequestError
	if errors.As(err, &oaReqErr) {
		return oaReqErr.HTTPStatusCode == 429
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit")
}
