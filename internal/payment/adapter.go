package payment

import (
	"errors"
	"net/http"

	orderdomain "github.com/tokengate/tokengate/internal/order/domain"
)

// Adapter verifies a payment provider's webhook notification and extracts
// the settlement it carries.
type Adapter interface {
	Provider() string

	// Parse authenticates the raw webhook payload and returns the settlement.
	// ErrEventIgnored means the event is authentic but not a settlement.
	Parse(body []byte, header http.Header) (orderdomain.Settlement, error)
}

var (
	ErrUnknownProvider = errors.New("unknown_provider")
	ErrBadSignature    = errors.New("bad_signature")
	ErrMalformedEvent  = errors.New("malformed_event")
	ErrEventIgnored    = errors.New("event_ignored")
)

// Registry holds the enabled adapters keyed by provider name.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		if a == nil {
			continue
		}
		m[a.Provider()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Get(provider string) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return a, nil
}
