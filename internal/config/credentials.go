package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"

	"github.com/klytics/sheetbot/internal/ai"
)

// envKeys are the provider credentials read from the process environment.
// AI_API_KEY is a generic key for whichever provider is selected.
type envKeys struct {
	OpenAI     string `env:"OPENAI_API_KEY"`
	Anthropic  string `env:"ANTHROPIC_API_KEY"`
	Gemini     string `env:"GEMINI_API_KEY"`
	Google     string `env:"GOOGLE_API_KEY"`
	OpenRouter string `env:"OPENROUTER_API_KEY"`
	Generic    string `env:"AI_API_KEY"`
}

func envCredentials() (envKeys, error) {
	var keys envKeys
	if err := env.Parse(&keys); err != nil {
		return keys, fmt.Errorf("could not parse credentials: %w", err)
	}
	return keys, nil
}

// merge combines environment and file keys. The environment wins. The generic
// key is carried alongside so it follows a --provider override.
func (e envKeys) merge(file APIKeys) ai.Credentials {
	return ai.Credentials{
		OpenAI:     first(e.OpenAI, file.OpenAI),
		Anthropic:  first(e.Anthropic, file.Anthropic),
		Gemini:     first(e.Gemini, e.Google, file.Gemini),
		OpenRouter: first(e.OpenRouter, file.OpenRouter),
		Generic:    first(e.Generic),
	}
}

func first(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// EnvName returns the environment variable holding a provider's key.
func EnvName(id ai.ProviderID) string {
	switch id {
	case ai.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ai.ProviderGemini:
		return "GEMINI_API_KEY"
	case ai.ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

func mask(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:min(6, len(key)-4)] + "****"
}
