package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestParseProvider(t *testing.T) {
	if p, err := ParseProvider(" Stripe "); err != nil || p != ProviderStripe {
		t.Fatalf("expected stripe, got %q %v", p, err)
	}
	if _, err := ParseProvider("plaid"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected unknown provider, got %v", err)
	}
}

func TestStripeConnectorInitiate(t *testing.T) {
	var sessionForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/customers":
			if r.PostForm.Get("metadata[verification_id]") != "v-1" {
				t.Errorf("missing verification metadata: %v", r.PostForm)
			}
			_, _ = w.Write([]byte(`{"id":"cus_1","object":"customer"}`))
		case "/v1/financial_connections/sessions":
			sessionForm = r.PostForm
			_, _ = w.Write([]byte(`{"id":"fcsess_1","object":"financial_connections.session","client_secret":"fcsess_1_secret_abc"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	reg := NewRegistry(NewStripeConnector("sk_test_123", srv.URL, srv.Client()))
	out, err := reg.Initiate(context.Background(), ProviderStripe, InitiateInput{VerificationID: "v-1", CustomerEmail: "jane@example.com"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if out.ClientSecret != "fcsess_1_secret_abc" || out.SessionID != "fcsess_1" || out.RedirectURL != "" {
		t.Fatalf("unexpected initiation %+v", out)
	}
	if sessionForm.Get("account_holder[customer]") != "cus_1" {
		t.Fatalf("session not bound to customer: %v", sessionForm)
	}
	for i, want := range DefaultPermissions {
		if got := sessionForm.Get(fmt.Sprintf("permissions[%d]", i)); got != want {
			t.Fatalf("permission %d: expected %q, got %q in %v", i, want, got, sessionForm)
		}
	}
}

func TestStripeConnectorSurfacesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`))
	}))
	defer srv.Close()

	c := NewStripeConnector("bad", srv.URL, srv.Client())
	_, err := c.Initiate(context.Background(), InitiateInput{VerificationID: "v-1"})
	if !errors.Is(err, ErrProviderFailure) || !strings.Contains(err.Error(), "Invalid API Key") {
		t.Fatalf("expected provider failure with stripe message, got %v", err)
	}
}

func TestTellerConnectorBuildsRedirect(t *testing.T) {
	c := NewTellerConnector("app_123", "sandbox", "https://teller.io/connect", "https://verify.example.com/teller/callback")
	out, err := c.Initiate(context.Background(), InitiateInput{VerificationID: "v-9", Permissions: []string{"balances", "transactions"}})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	u, err := url.Parse(out.RedirectURL)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	q := u.Query()
	if q.Get("application_id") != "app_123" || q.Get("environment") != "sandbox" || q.Get("nonce") != out.SessionID {
		t.Fatalf("unexpected query %v", q)
	}
	if q.Get("products") != "balance,transactions" {
		t.Fatalf("unexpected products %q", q.Get("products"))
	}
	if !strings.Contains(q.Get("redirect_uri"), "verification_id=v-9") {
		t.Fatalf("redirect uri lacks verification id: %q", q.Get("redirect_uri"))
	}
}

func TestTellerConnectorKeepsRedirectQuery(t *testing.T) {
	c := NewTellerConnector("app_123", "sandbox", "https://teller.io/connect", "https://verify.example.com/teller/callback?source=wizard")
	out, err := c.Initiate(context.Background(), InitiateInput{VerificationID: "v-9"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	u, _ := url.Parse(out.RedirectURL)
	redirect, err := url.Parse(u.Query().Get("redirect_uri"))
	if err != nil {
		t.Fatalf("parse redirect_uri: %v", err)
	}
	q := redirect.Query()
	if redirect.Path != "/teller/callback" || q.Get("source") != "wizard" || q.Get("verification_id") != "v-9" {
		t.Fatalf("unexpected redirect uri %q", redirect.String())
	}
}

func TestTellerConnectorRequiresApplication(t *testing.T) {
	c := NewTellerConnector("", "sandbox", "https://teller.io/connect", "")
	if _, err := c.Initiate(context.Background(), InitiateInput{}); !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected provider failure, got %v", err)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	reg := NewRegistry(StaticConnector{Kind: ProviderTeller})
	if _, err := reg.Initiate(context.Background(), ProviderStripe, InitiateInput{}); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected unknown provider, got %v", err)
	}
	out, err := reg.Initiate(context.Background(), ProviderTeller, InitiateInput{})
	if err != nil || out.RedirectURL == "" {
		t.Fatalf("static teller initiation failed: %v %+v", err, out)
	}
}
