package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	fcsession "github.com/stripe/stripe-go/v79/financialconnections/session"
)

// StripeConnector creates Stripe Financial Connections sessions.
type StripeConnector struct {
	customers customer.Client
	sessions  fcsession.Client
}

// NewStripeConnector builds a connector against baseURL (https://api.stripe.com in production).
func NewStripeConnector(secretKey, baseURL string, client *http.Client) *StripeConnector {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:        client,
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
		MaxNetworkRetries: stripe.Int64(0),
	}
	if baseURL = strings.TrimRight(baseURL, "/"); baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	return &StripeConnector{
		customers: customer.Client{B: backend, Key: secretKey},
		sessions:  fcsession.Client{B: backend, Key: secretKey},
	}
}

// Provider returns ProviderStripe.
func (s *StripeConnector) Provider() Provider { return ProviderStripe }

// Initiate creates a Stripe customer and a Financial Connections session for it.
func (s *StripeConnector) Initiate(ctx context.Context, input InitiateInput) (Initiation, error) {
	customerParams := &stripe.CustomerParams{}
	customerParams.Context = ctx
	if input.CustomerEmail != "" {
		customerParams.Email = stripe.String(input.CustomerEmail)
	}
	if input.CustomerName != "" {
		customerParams.Name = stripe.String(input.CustomerName)
	}
	customerParams.AddMetadata("verification_id", input.VerificationID)

	cus, err := s.customers.New(customerParams)
	if err != nil {
		return Initiation{}, stripeFailure("create customer", err)
	}

	sessionParams := &stripe.FinancialConnectionsSessionParams{
		AccountHolder: &stripe.FinancialConnectionsSessionAccountHolderParams{
			Type:     stripe.String(string(stripe.FinancialConnectionsSessionAccountHolderTypeCustomer)),
			Customer: stripe.String(cus.ID),
		},
		Permissions: stripe.StringSlice(input.Permissions),
	}
	sessionParams.Context = ctx

	session, err := s.sessions.New(sessionParams)
	if err != nil {
		return Initiation{}, stripeFailure("create financial connections session", err)
	}
	if session.ClientSecret == "" {
		return Initiation{}, fmt.Errorf("%w: stripe returned no client secret", ErrProviderFailure)
	}
	return Initiation{Provider: ProviderStripe, SessionID: session.ID, ClientSecret: session.ClientSecret}, nil
}

func stripeFailure(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return fmt.Errorf("%w: stripe %s: %s", ErrProviderFailure, op, se.Msg)
	}
	return fmt.Errorf("%w: stripe %s: %v", ErrProviderFailure, op, err)
}
