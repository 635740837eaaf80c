package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stellarlinkco/evobench/internal/claude"
)

// claudeRequestTimeout bounds a single completion round trip.
const claudeRequestTimeout = 120 * time.Second

type ClaudeProvider struct {
	client  *claude.Client
	apiKey  string
	baseURL string
	model   string
}

func NewClaudeProvider(apiKey string, baseURL string, model string) *ClaudeProvider {
	apiKey = strings.TrimSpace(apiKey)
	baseURL = strings.TrimSpace(baseURL)
	model = strings.TrimSpace(model)

	opts := make([]claude.Option, 0, 3)
	opts = append(opts, claude.WithTimeout(claudeRequestTimeout))
	if baseURL != "" {
		opts = append(opts, claude.WithBaseURL(baseURL))
	}
	if model != "" {
		opts = append(opts, claude.WithModel(model))
	}
	return &ClaudeProvider{
		client:  claude.NewClient(apiKey, opts...),
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
	}
}

func (p *ClaudeProvider) Name() string {
	return "claude"
}

// WithModel returns a copy of the provider bound to another model name on
// the same endpoint.
func (p *ClaudeProvider) WithModel(model string) Provider {
	model = strings.TrimSpace(model)
	if p == nil || model == "" || model == p.model {
		return p
	}
	return NewClaudeProvider(p.apiKey, p.baseURL, model)
}

func (p *ClaudeProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("llm: claude: nil client")
	}
	cReq, err := toClaudeRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Complete(ctx, cReq)
	return fromClaudeResponse(resp), err
}

func toClaudeRequest(req *Request) (*claude.Request, error) {
	if req == nil {
		return nil, errors.New("llm: claude: nil request")
	}

	msgs := make([]claude.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := strings.TrimSpace(m.Role)
		if role == "" {
			role = "user"
		}
		msgs = append(msgs, claude.Message{
			Role:    role,
			Content: m.Content,
		})
	}

	// No JSON response mode on the messages API; JSONOnly rides on the prompt.
	return &claude.Request{
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Temperature: req.Temperature,
	}, nil
}

func fromClaudeResponse(resp *claude.Response) *Response {
	if resp == nil {
		return nil
	}

	out := &Response{
		StopReason: resp.StopReason,
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}

	if len(resp.Content) == 0 {
		return out
	}

	out.Content = make([]ContentBlock, 0, len(resp.Content))
	for _, b := range resp.Content {
		if b.Type != "text" {
			continue
		}
		out.Content = append(out.Content, ContentBlock{
			Type: "text",
			Text: b.Text,
		})
	}

	return out
}
