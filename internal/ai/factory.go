package ai

import (
	"net/http"
	"time"
)

const requestTimeout = 120 * time.Second

// Handle is a constructed client for one provider. It carries the Config that
// produced it and is never modified after Resolve returns it.
type Handle struct {
	cfg Config
	id  ProviderID
	t   transport
}

// Config returns the snapshot the handle was built from.
func (h *Handle) Config() Config { return h.cfg }

// Provider returns the resolved provider.
func (h *Handle) Provider() ProviderID { return h.id }

// Resolve builds a handle for the configured provider. It returns nil when
// the provider is unknown, its credential is empty, or its client cannot be
// constructed. No network traffic happens here.
func Resolve(cfg Config) *Handle {
	id, ok := ParseProvider(string(cfg.Provider))
	if !ok {
		return nil
	}
	key := cfg.Keys.Select(id)
	if key == "" {
		return nil
	}

	client := &http.Client{Timeout: requestTimeout}

	var (
		t   transport
		err error
	)
	switch id {
	case ProviderOpenAI:
		t = newOpenAITransport(cfg.baseURL(id, openaiBaseURL), key, client)
	case ProviderOpenRouter:
		t = newOpenAITransport(cfg.baseURL(id, openrouterBaseURL), key, client)
	case ProviderAnthropic:
		t = newAnthropicTransport(cfg.baseURL(id, ""), key, client)
	case ProviderGemini:
		t, err = newGeminiTransport(cfg.baseURL(id, ""), key, client)
	}
	if err != nil || t == nil {
		return nil
	}
	return &Handle{cfg: cfg, id: id, t: t}
}
