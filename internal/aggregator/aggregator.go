// Package aggregator initiates bank-account linking with third-party providers.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Provider names a bank-data aggregator.
type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderTeller Provider = "teller"
)

var (
	// ErrUnknownProvider indicates the provider is not supported.
	ErrUnknownProvider = errors.New("unknown aggregator provider")
	// ErrProviderFailure wraps any failure reported by the provider.
	ErrProviderFailure = errors.New("aggregator request failed")
)

// ParseProvider validates a provider name.
func ParseProvider(raw string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(raw))); p {
	case ProviderStripe, ProviderTeller:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, raw)
	}
}

// DefaultPermissions are the data categories requested from providers.
var DefaultPermissions = []string{"balances", "transactions", "ownership"}

// InitiateInput identifies the customer starting a bank connection.
type InitiateInput struct {
	VerificationID string
	CustomerName   string
	CustomerEmail  string
	Permissions    []string
}

// Initiation carries what the client needs to open the provider's flow.
// Stripe returns a client secret, Teller a redirect URL.
type Initiation struct {
	Provider     Provider `json:"provider"`
	SessionID    string   `json:"session_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	RedirectURL  string   `json:"redirect_url,omitempty"`
}

// Account is a bank account reported back after a successful connection.
type Account struct {
	ID          string   `json:"id"`
	Provider    Provider `json:"provider"`
	Institution string   `json:"institution"`
	Name        string   `json:"name"`
	Mask        string   `json:"mask"`
	Type        string   `json:"type"`
}

// Connector starts the provider-specific handshake.
type Connector interface {
	Provider() Provider
	Initiate(ctx context.Context, input InitiateInput) (Initiation, error)
}

// Registry resolves connectors by provider.
type Registry struct {
	connectors map[Provider]Connector
}

// NewRegistry indexes the given connectors by their provider.
func NewRegistry(connectors ...Connector) *Registry {
	r := &Registry{connectors: make(map[Provider]Connector, len(connectors))}
	for _, c := range connectors {
		r.connectors[c.Provider()] = c
	}
	return r
}

// Initiate dispatches to the connector for provider.
func (r *Registry) Initiate(ctx context.Context, provider Provider, input InitiateInput) (Initiation, error) {
	c, ok := r.connectors[provider]
	if !ok {
		return Initiation{}, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if len(input.Permissions) == 0 {
		input.Permissions = DefaultPermissions
	}
	return c.Initiate(ctx, input)
}

// StaticConnector simulates a provider with synthetic credentials.
type StaticConnector struct {
	Kind Provider
}

// Provider returns the simulated provider.
func (s StaticConnector) Provider() Provider { return s.Kind }

// Initiate returns a synthetic client secret or redirect URL.
func (s StaticConnector) Initiate(_ context.Context, input InitiateInput) (Initiation, error) {
	session := uuid.NewString()
	out := Initiation{Provider: s.Kind, SessionID: session}
	if s.Kind == ProviderTeller {
		out.RedirectURL = "https://teller.io/connect/sandbox?nonce=" + session
	} else {
		out.ClientSecret = "fcsess_static_" + strings.ReplaceAll(input.VerificationID, "-", "") + "_secret"
	}
	return out, nil
}
