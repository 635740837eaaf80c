package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Engine  EngineConfig  `yaml:"engine"`
	Storage StorageConfig `yaml:"storage"`
}

type LLMConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`
	Roles     RolesConfig               `yaml:"roles,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// RolesConfig binds the three pipeline roles to providers. Each role may
// override the provider's default model, so one shared endpoint can serve
// three different model names.
type RolesConfig struct {
	Generator RoleConfig `yaml:"generator,omitempty"`
	Solver    RoleConfig `yaml:"solver,omitempty"`
	Judge     RoleConfig `yaml:"judge,omitempty"`
}

type RoleConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
}

// EngineConfig holds the adaptive-loop tuning knobs. Zero values mean
// "use the engine default". AdversarialThreshold is a pointer so an
// explicit 0 (disable trap questions) is distinct from an absent key.
type EngineConfig struct {
	Alpha                float64 `yaml:"alpha,omitempty"`
	RaiseThreshold       float64 `yaml:"raise_threshold,omitempty"`
	NeutralDifficulty    int     `yaml:"neutral_difficulty,omitempty"`
	MinDifficulty        int     `yaml:"min_difficulty,omitempty"`
	MaxDifficulty        int     `yaml:"max_difficulty,omitempty"`
	AdversarialThreshold *int    `yaml:"adversarial_threshold,omitempty"`
	HistoryWindow        int     `yaml:"history_window,omitempty"`
	MaxTokens            int     `yaml:"max_tokens,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := cfg.LLM.Providers["openai"]
		p.APIKey = v
		cfg.LLM.Providers["openai"] = p
	}

	return &cfg, nil
}

// Role returns the binding for a named role ("generator", "solver", "judge").
func (r RolesConfig) Role(name string) (RoleConfig, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "generator":
		return r.Generator, nil
	case "solver":
		return r.Solver, nil
	case "judge":
		return r.Judge, nil
	default:
		return RoleConfig{}, fmt.Errorf("config: unknown role %q", name)
	}
}
