package aggregator

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// TellerConnector builds Teller Connect redirect URLs.
type TellerConnector struct {
	applicationID string
	environment   string
	connectURL    string
	redirectURI   string
}

// NewTellerConnector builds a connector for a Teller application.
func NewTellerConnector(applicationID, environment, connectURL, redirectURI string) *TellerConnector {
	return &TellerConnector{
		applicationID: applicationID,
		environment:   environment,
		connectURL:    connectURL,
		redirectURI:   redirectURI,
	}
}

// Provider returns ProviderTeller.
func (t *TellerConnector) Provider() Provider { return ProviderTeller }

// Initiate returns the Teller Connect URL. The nonce doubles as session id.
func (t *TellerConnector) Initiate(_ context.Context, input InitiateInput) (Initiation, error) {
	if t.applicationID == "" {
		return Initiation{}, fmt.Errorf("%w: teller application id is not configured", ErrProviderFailure)
	}
	base, err := url.Parse(t.connectURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return Initiation{}, fmt.Errorf("%w: invalid teller connect url %q", ErrProviderFailure, t.connectURL)
	}
	nonce := uuid.NewString()
	q := base.Query()
	q.Set("application_id", t.applicationID)
	q.Set("environment", t.environment)
	q.Set("nonce", nonce)
	q.Set("products", strings.Join(tellerProducts(input.Permissions), ","))
	if t.redirectURI != "" {
		redirect, err := url.Parse(t.redirectURI)
		if err != nil {
			return Initiation{}, fmt.Errorf("%w: invalid teller redirect uri %q", ErrProviderFailure, t.redirectURI)
		}
		rq := redirect.Query()
		rq.Set("verification_id", input.VerificationID)
		redirect.RawQuery = rq.Encode()
		q.Set("redirect_uri", redirect.String())
	}
	base.RawQuery = q.Encode()
	return Initiation{Provider: ProviderTeller, SessionID: nonce, RedirectURL: base.String()}, nil
}

// tellerProducts maps permission names onto Teller product names.
func tellerProducts(perms []string) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		switch p {
		case "balances":
			out = append(out, "balance")
		case "transactions":
			out = append(out, "transactions")
		case "ownership":
			out = append(out, "identity")
		}
	}
	if len(out) == 0 {
		out = append(out, "verify")
	}
	return out
}
