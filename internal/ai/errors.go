package ai

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is matched by errors.Is for every send on an absent handle.
var ErrNotConfigured = errors.New("provider not initialized")

// Kind separates a missing credential from a failure at the provider.
type Kind int

const (
	KindNotConfigured Kind = iota + 1
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindNotConfigured:
		return "not_configured"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

// Error is the uniform error returned by Binding.Send.
type Error struct {
	Provider ProviderID
	Kind     Kind
	Err      error
}

func (e *Error) Error() string {
	if e.Kind == KindNotConfigured {
		return fmt.Sprintf("Error: %s provider not initialized (API key missing)", e.Provider)
	}
	return fmt.Sprintf("Error from %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	if e.Kind == KindNotConfigured {
		return ErrNotConfigured
	}
	return e.Err
}

// IsTransport reports whether err is a provider-side failure.
func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindTransport
}
