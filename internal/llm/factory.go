package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/evobench/internal/config"
)

// ModelBinder is implemented by providers that can rebind to another model
// name on the same endpoint.
type ModelBinder interface {
	WithModel(model string) Provider
}

// NewRegistryFromConfig registers one provider per configured endpoint,
// each bound to its default model.
func NewRegistryFromConfig(cfg *config.Config) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("llm: nil config")
	}

	r := NewRegistry()
	for name, pcfg := range cfg.LLM.Providers {
		switch canonicalProviderName(name) {
		case "":
			continue
		case "claude":
			r.Register(NewClaudeProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		case "openai":
			r.Register(NewOpenAIProvider(pcfg.APIKey, pcfg.BaseURL, pcfg.Model))
		default:
			return nil, fmt.Errorf("llm: unknown provider %q", name)
		}
	}

	return r, nil
}

// ProviderForRole resolves the provider bound to a pipeline role. The role's
// model override, when set, wins over the provider's default model so that
// three roles can share one endpoint under different model names.
func (r *Registry) ProviderForRole(roles config.RolesConfig, role string) (Provider, error) {
	if r == nil {
		return nil, errors.New("llm: nil registry")
	}

	rc, err := roles.Role(role)
	if err != nil {
		return nil, err
	}

	name := canonicalProviderName(rc.Provider)
	if name == "" {
		name, err = r.soleName()
		if err != nil {
			return nil, fmt.Errorf("llm: role %q: %w", role, err)
		}
	}

	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("llm: role %q: provider %q not configured (available: %s)",
			role, name, strings.Join(r.Names(), ", "))
	}

	if model := strings.TrimSpace(rc.Model); model != "" {
		b, ok := p.(ModelBinder)
		if !ok {
			return nil, fmt.Errorf("llm: role %q: provider %q has no model override", role, name)
		}
		p = b.WithModel(model)
	}
	return p, nil
}

func (r *Registry) soleName() (string, error) {
	names := r.Names()
	switch len(names) {
	case 1:
		return names[0], nil
	case 0:
		return "", errors.New("no providers configured")
	default:
		return "", fmt.Errorf("no provider bound and several configured (available: %s)", strings.Join(names, ", "))
	}
}

// canonicalProviderName lowercases a provider name; "anthropic" aliases
// "claude" in both provider keys and role bindings.
func canonicalProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "anthropic" {
		return "claude"
	}
	return name
}
