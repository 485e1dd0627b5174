package ai

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/klytics/sheetbot/internal/metrics"
)

// Binding pairs a Config with the handle resolved from it. A nil Handle means
// the provider is absent.
type Binding struct {
	Config Config
	Handle *Handle

	logger  *zap.Logger
	metrics *metrics.Collector
}

// Ready reports whether a provider handle is available.
func (b *Binding) Ready() bool {
	return b != nil && b.Handle != nil
}

// Provider returns the configured provider identifier, even when absent.
func (b *Binding) Provider() ProviderID {
	id, _ := ParseProvider(string(b.Config.Provider))
	return id
}

// Send forwards the conversation to the bound provider and returns its text.
// Errors are always *Error; no retries happen here.
func (b *Binding) Send(ctx context.Context, messages []Message) (string, error) {
	provider := b.Provider()
	if !b.Ready() {
		b.metrics.ObserveProviderCall(string(provider), KindNotConfigured.String(), 0)
		return "", &Error{Provider: provider, Kind: KindNotConfigured}
	}

	model := b.Config.ModelOrDefault()
	start := time.Now()
	text, err := b.Handle.t.send(ctx, model, messages)
	elapsed := time.Since(start)

	if err != nil {
		b.metrics.ObserveProviderCall(string(provider), KindTransport.String(), elapsed)
		b.log().Debug("provider call failed",
			zap.String("provider", string(provider)),
			zap.String("model", model),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return "", &Error{Provider: provider, Kind: KindTransport, Err: err}
	}

	b.metrics.ObserveProviderCall(string(provider), "ok", elapsed)
	b.log().Debug("provider call completed",
		zap.String("provider", string(provider)),
		zap.String("model", model),
		zap.Duration("elapsed", elapsed),
		zap.Int("reply_chars", len(text)))
	return text, nil
}

func (b *Binding) log() *zap.Logger {
	if b.logger == nil {
		return zap.NewNop()
	}
	return b.logger
}

// Holder owns the current Binding. Reload swaps config and handle together,
// so concurrent readers see either the old pair or the new one.
type Holder struct {
	current atomic.Pointer[Binding]
	logger  *zap.Logger
	metrics *metrics.Collector
}

// NewHolder creates a holder and resolves cfg immediately.
func NewHolder(cfg Config, logger *zap.Logger, m *metrics.Collector) *Holder {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Holder{logger: logger, metrics: m}
	h.Reload(cfg)
	return h
}

// Reload resolves a new handle from cfg and publishes it.
func (h *Holder) Reload(cfg Config) *Binding {
	b := &Binding{Config: cfg, Handle: Resolve(cfg), logger: h.logger, metrics: h.metrics}
	if b.Handle == nil {
		h.logger.Warn("AI provider not available",
			zap.String("provider", string(cfg.Provider)),
			zap.Bool("credential_set", cfg.Key() != ""))
	} else {
		h.logger.Debug("AI provider resolved",
			zap.String("provider", string(b.Handle.Provider())),
			zap.String("model", cfg.ModelOrDefault()))
	}
	h.current.Store(b)
	return b
}

// Current returns the binding in effect.
func (h *Holder) Current() *Binding {
	return h.current.Load()
}

// Send is shorthand for Current().Send.
func (h *Holder) Send(ctx context.Context, messages []Message) (string, error) {
	return h.Current().Send(ctx, messages)
}
