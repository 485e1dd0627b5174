// Package ai provides a unified interface to multiple AI inference providers.
//
// A Config snapshot is turned into a Handle by Resolve. Callers never talk to
// a provider SDK directly; they call Binding.Send, which maps every variant's
// request and response shapes onto plain text or an *Error.
package ai

import (
	"context"
	"strings"
)

// ProviderID names one of the supported provider variants.
type ProviderID string

const (
	ProviderOpenAI     ProviderID = "openai"
	ProviderAnthropic  ProviderID = "anthropic"
	ProviderGemini     ProviderID = "gemini"
	ProviderOpenRouter ProviderID = "openrouter"
)

// Providers lists every supported provider in a stable order.
var Providers = []ProviderID{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderOpenRouter}

// ParseProvider normalizes a provider identifier. Unknown identifiers are
// returned lowercased and report false.
func ParseProvider(s string) (ProviderID, bool) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	for _, p := range Providers {
		if p == id {
			return id, true
		}
	}
	return id, false
}

// Role is the author of a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message represents a single message in a conversation with an AI model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// System returns a system message.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }

// User returns a user message.
func User(content string) Message { return Message{Role: RoleUser, Content: content} }

// Credentials holds one API key per provider. Generic serves whichever
// provider ends up selected when that provider has no key of its own.
type Credentials struct {
	OpenAI     string `json:"openai,omitempty"`
	Anthropic  string `json:"anthropic,omitempty"`
	Gemini     string `json:"gemini,omitempty"`
	OpenRouter string `json:"openrouter,omitempty"`
	Generic    string `json:"-"`
}

// For returns the key of the given provider.
func (c Credentials) For(id ProviderID) string {
	switch id {
	case ProviderOpenAI:
		return c.OpenAI
	case ProviderAnthropic:
		return c.Anthropic
	case ProviderGemini:
		return c.Gemini
	case ProviderOpenRouter:
		return c.OpenRouter
	}
	return ""
}

// Select returns the key used when id is the selected provider: its own key,
// or the generic one. Unknown providers get nothing.
func (c Credentials) Select(id ProviderID) string {
	if k := c.For(id); k != "" {
		return k
	}
	if _, ok := ParseProvider(string(id)); !ok {
		return ""
	}
	return c.Generic
}

// Config is an immutable snapshot of the provider settings. It is passed and
// stored by value; a reload builds a new one.
type Config struct {
	Provider ProviderID  `json:"provider"`
	Model    string      `json:"model,omitempty"`
	Keys     Credentials `json:"-"`

	// BaseURLs overrides the endpoint per provider (gateways, tests).
	BaseURLs map[ProviderID]string `json:"baseURLs,omitempty"`
}

// Key returns the credential of the selected provider.
func (c Config) Key() string {
	id, _ := ParseProvider(string(c.Provider))
	return c.Keys.Select(id)
}

// ModelOrDefault returns the configured model, or the provider's default.
func (c Config) ModelOrDefault() string {
	if c.Model != "" {
		return c.Model
	}
	id, _ := ParseProvider(string(c.Provider))
	return DefaultModel(id)
}

func (c Config) baseURL(id ProviderID, fallback string) string {
	if u := c.BaseURLs[id]; u != "" {
		return strings.TrimRight(u, "/")
	}
	return fallback
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(id ProviderID) string {
	switch id {
	case ProviderAnthropic:
		return "claude-sonnet-4-20250514"
	case ProviderGemini:
		return "gemini-2.0-flash"
	case ProviderOpenRouter:
		return "openai/gpt-4o-mini"
	default:
		return "gpt-4o-mini"
	}
}

// transport is one provider variant's request/response mapping.
type transport interface {
	send(ctx context.Context, model string, messages []Message) (string, error)
}
