package provider

import (
	"strings"

	"github.com/tokengate/tokengate/internal/config"
	"go.uber.org/fx"
)

// Provider describes one upstream chat-completion vendor. All vendors speak
// the OpenAI chat-completions wire format; only endpoint, credentials and
// extra headers differ.
type Provider struct {
	Name    string
	BaseURL string
	APIKey  string
	Headers map[string]string
}

const (
	NameGLM     = "glm"
	NameArk     = "ark"
	NameMiniMax = "minimax"
	NameOpenAI  = "openai"
)

// Resolver maps model identifiers to upstream providers by case-insensitive
// prefix match. Resolution is total: unknown models fall back to GLM.
type Resolver struct {
	glm     Provider
	ark     Provider
	minimax Provider
	openai  Provider
}

func NewResolver(cfg config.Config) *Resolver {
	pc := cfg.Providers

	minimaxHeaders := map[string]string{}
	if pc.MiniMaxGroupID != "" {
		minimaxHeaders["GroupId"] = pc.MiniMaxGroupID
	}

	return &Resolver{
		glm:     Provider{Name: NameGLM, BaseURL: pc.GLMAPIBase, APIKey: pc.GLMAPIKey},
		ark:     Provider{Name: NameArk, BaseURL: pc.ArkAPIBase, APIKey: pc.ArkAPIKey},
		minimax: Provider{Name: NameMiniMax, BaseURL: pc.MiniMaxAPIBase, APIKey: pc.MiniMaxAPIKey, Headers: minimaxHeaders},
		openai:  Provider{Name: NameOpenAI, BaseURL: pc.OpenAIAPIBase, APIKey: pc.OpenAIAPIKey},
	}
}

// Resolve returns the provider for a model identifier.
func (r *Resolver) Resolve(model string) Provider {
	key := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(key, "minimax"), strings.HasPrefix(key, "abab"):
		return r.minimax
	// ep-* is an Ark endpoint ID.
	case strings.HasPrefix(key, "doubao"), strings.HasPrefix(key, "ep-"):
		return r.ark
	case strings.HasPrefix(key, "glm"):
		return r.glm
	case strings.HasPrefix(key, "gpt"):
		return r.openai
	default:
		return r.glm
	}
}

var costMultiplier = map[string]float64{
	"gpt-4o":                   2.0,
	"gpt-4o-mini":              1.0,
	"glm-5":                    1.0,
	"glm-4-plus":               1.5,
	"doubao-pro":               1.2,
	"doubao-lite":              0.8,
	"doubao-seed-1-6-thinking": 1.5,
	"minimax-m2.5":             1.0,
	"minimax-text-01":          1.0,
	"abab7-chat-preview":       1.5,
	"abab6.5s-chat":            1.0,
	"abab5.5-chat":             0.8,
}

// Multiplier returns the per-model cost multiplier, defaulting to 1.0.
func (r *Resolver) Multiplier(model string) float64 {
	if m, ok := costMultiplier[strings.ToLower(strings.TrimSpace(model))]; ok {
		return m
	}
	return 1.0
}

// BodyPatch returns fields merged into the upstream request body for models
// that need vendor-specific switches. MiniMax-M2.5 gets interleaved thinking
// split so downstream rendering can separate reasoning from content.
func (r *Resolver) BodyPatch(model string) map[string]any {
	if strings.ToLower(strings.TrimSpace(model)) == "minimax-m2.5" {
		return map[string]any{
			"extra_body": map[string]any{"reasoning_split": true},
		}
	}
	return nil
}

var Module = fx.Module("provider",
	fx.Provide(NewResolver),
)
