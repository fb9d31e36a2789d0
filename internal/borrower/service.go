// Package borrower drives the token-gated wizard a borrower walks through to
// share bank data: welcome, customer-info, consent, connect and complete.
package borrower

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bankverify/bankverify/internal/aggregator"
	"github.com/bankverify/bankverify/internal/audit"
	"github.com/bankverify/bankverify/internal/verification"
)

// Verifications is the slice of the verification service the wizard drives.
type Verifications interface {
	FindByToken(ctx context.Context, token string) (verification.Request, error)
	MarkStarted(ctx context.Context, id string) (verification.Request, error)
	MarkExpired(ctx context.Context, id string) (verification.Request, error)
	UpdateCustomer(ctx context.Context, id string, update verification.Customer) (verification.Request, error)
	MarkConsented(ctx context.Context, id string) (verification.Request, error)
	MarkConnected(ctx context.Context, id string, accounts []aggregator.Account) (verification.Request, error)
	MarkCompleted(ctx context.Context, id string) (verification.Request, error)
	MarkFailed(ctx context.Context, id, reason string) (verification.Request, error)
}

// Initiator opens a bank connection with an aggregator.
type Initiator interface {
	Initiate(ctx context.Context, provider aggregator.Provider, input aggregator.InitiateInput) (aggregator.Initiation, error)
}

// State is what each wizard page renders.
type State struct {
	VerificationID    string                `json:"verification_id"`
	Status            verification.Status   `json:"status"`
	Customer          verification.Customer `json:"customer"`
	ExpiresAt         time.Time             `json:"expires_at"`
	Step              Step                  `json:"step"`
	MissingFields     []string              `json:"missing_fields"`
	ConsentGiven      bool                  `json:"consent_given"`
	Provider          aggregator.Provider   `json:"provider,omitempty"`
	ConnectedAccounts []aggregator.Account  `json:"connected_accounts"`
}

// ConsentInput is the borrower's answer on the consent page.
type ConsentInput struct {
	Accept     bool     `json:"accept"`
	All        bool     `json:"all"`
	Categories []string `json:"categories"`
}

// Completion summarises a finished verification.
type Completion struct {
	ReferenceID    string    `json:"reference_id"`
	VerificationID string    `json:"verification_id,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
	AccountCount   int       `json:"account_count"`
	Institutions   []string  `json:"institutions"`
	Fallback       bool      `json:"fallback,omitempty"`
}

// Service runs the borrower wizard.
type Service struct {
	verifications Verifications
	sessions      SessionStore
	aggregators   Initiator
	audit         audit.Recorder
	logger        *slog.Logger
	now           func() time.Time
}

// NewService wires the wizard to its collaborators.
func NewService(verifications Verifications, sessions SessionStore, aggregators Initiator, recorder audit.Recorder, logger *slog.Logger) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		verifications: verifications,
		sessions:      sessions,
		aggregators:   aggregators,
		audit:         recorder,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// resolve maps a token to a request the borrower may act on.
func (s *Service) resolve(ctx context.Context, token string) (verification.Request, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return verification.Request{}, flowError(KindInvalid, verification.ErrNotFound)
	}
	req, err := s.verifications.FindByToken(ctx, token)
	if errors.Is(err, verification.ErrNotFound) {
		return verification.Request{}, flowError(KindInvalid, err)
	}
	if err != nil {
		return verification.Request{}, flowError(KindNetwork, err)
	}

	switch {
	case req.Cancelled():
		return verification.Request{}, flowError(KindInvalid, errors.New("request was cancelled"))
	case req.Status == verification.StatusFailed:
		if req.FailureReason == verification.FailureConsentDeclined {
			return verification.Request{}, flowError(KindConsentDeclined, nil)
		}
		return verification.Request{}, flowError(KindInvalid, errors.New("request failed"))
	case req.Status == verification.StatusExpired:
		return verification.Request{}, flowError(KindExpired, nil)
	case req.Overdue(s.now()):
		if _, err := s.verifications.MarkExpired(ctx, req.ID); err != nil {
			s.logger.Warn("mark overdue request expired", "verification_id", req.ID, "error", err)
		}
		return verification.Request{}, flowError(KindExpired, nil)
	}
	return req, nil
}

// session loads the wizard state, starting at welcome when none exists.
func (s *Service) session(ctx context.Context, req verification.Request) (Session, error) {
	session, err := s.sessions.Get(ctx, req.ID)
	if errors.Is(err, ErrSessionNotFound) {
		step := StepWelcome
		if req.Status == verification.StatusCompleted {
			step = StepComplete
		}
		return Session{VerificationID: req.ID, CurrentStep: step, UpdatedAt: s.now()}, nil
	}
	if err != nil {
		return Session{}, flowError(KindNetwork, err)
	}
	return session, nil
}

func (s *Service) save(ctx context.Context, session Session) error {
	session.UpdatedAt = s.now()
	if err := s.sessions.Save(ctx, session); err != nil {
		return flowError(KindNetwork, err)
	}
	return nil
}

// load resolves the token and its session and checks the wizard is at step.
func (s *Service) load(ctx context.Context, token string, step Step) (verification.Request, Session, error) {
	req, err := s.resolve(ctx, token)
	if err != nil {
		return verification.Request{}, Session{}, err
	}
	session, err := s.session(ctx, req)
	if err != nil {
		return verification.Request{}, Session{}, err
	}
	if session.CurrentStep != step {
		return verification.Request{}, Session{}, &StepError{Current: session.CurrentStep, Expected: step}
	}
	return req, session, nil
}

// Validate checks the token on landing and resumes any saved progress.
func (s *Service) Validate(ctx context.Context, token string) (State, error) {
	req, err := s.resolve(ctx, token)
	if err != nil {
		return State{}, err
	}
	session, err := s.session(ctx, req)
	if err != nil {
		return State{}, err
	}
	if req.Status != verification.StatusCompleted {
		if req, err = s.verifications.MarkStarted(ctx, req.ID); err != nil {
			return State{}, flowError(KindNetwork, err)
		}
		if err := s.save(ctx, session); err != nil {
			return State{}, err
		}
	}
	s.track(ctx, req.ID, "borrower.link_opened", map[string]any{"step": session.CurrentStep})
	return newState(req, session), nil
}

// Start leaves the welcome page, skipping customer-info when nothing is missing.
func (s *Service) Start(ctx context.Context, token string) (State, error) {
	req, session, err := s.load(ctx, token, StepWelcome)
	if err != nil {
		return State{}, err
	}
	session.CurrentStep = StepAfterWelcome(req.Customer.MissingFields())
	if err := s.save(ctx, session); err != nil {
		return State{}, err
	}
	s.track(ctx, req.ID, "borrower.started", map[string]any{"next": session.CurrentStep})
	return newState(req, session), nil
}

// SubmitCustomerInfo fills in missing personal data.
func (s *Service) SubmitCustomerInfo(ctx context.Context, token string, update verification.Customer) (State, error) {
	req, session, err := s.load(ctx, token, StepCustomerInfo)
	if err != nil {
		return State{}, err
	}
	if missing := req.Customer.Merge(update).MissingFields(); len(missing) > 0 {
		return State{}, &MissingFieldsError{Fields: missing}
	}
	req, err = s.verifications.UpdateCustomer(ctx, req.ID, update)
	if err != nil {
		if errors.Is(err, verification.ErrInvalidCustomer) {
			return State{}, err
		}
		return State{}, flowError(KindNetwork, err)
	}
	session.CurrentStep = StepConsent
	if err := s.save(ctx, session); err != nil {
		return State{}, err
	}
	s.track(ctx, req.ID, "borrower.customer_info_submitted", nil)
	return newState(req, session), nil
}

// Consent records the borrower's data-sharing decision. Declining fails the request.
func (s *Service) Consent(ctx context.Context, token string, input ConsentInput) (State, error) {
	req, session, err := s.load(ctx, token, StepConsent)
	if err != nil {
		return State{}, err
	}

	if !input.Accept {
		if _, err := s.verifications.MarkFailed(ctx, req.ID, verification.FailureConsentDeclined); err != nil {
			return State{}, flowError(KindNetwork, err)
		}
		if err := s.sessions.Delete(ctx, req.ID); err != nil {
			s.logger.Warn("drop declined session", "verification_id", req.ID, "error", err)
		}
		s.track(ctx, req.ID, "borrower.consent_declined", nil)
		return State{}, flowError(KindConsentDeclined, nil)
	}

	categories := input.Categories
	if input.All {
		categories = ConsentCategories
	}
	if !coversAllCategories(categories) {
		return State{}, ErrConsentIncomplete
	}
	if req, err = s.verifications.MarkConsented(ctx, req.ID); err != nil {
		return State{}, flowError(KindNetwork, err)
	}
	session.ConsentGiven = true
	session.ConsentCategories = append([]string(nil), ConsentCategories...)
	session.CurrentStep = StepConnect
	if err := s.save(ctx, session); err != nil {
		return State{}, err
	}
	s.track(ctx, req.ID, "borrower.consent_given", map[string]any{"categories": session.ConsentCategories})
	return newState(req, session), nil
}

// Connect opens a bank connection with the chosen aggregator.
func (s *Service) Connect(ctx context.Context, token, provider string) (aggregator.Initiation, error) {
	req, session, err := s.load(ctx, token, StepConnect)
	if err != nil {
		return aggregator.Initiation{}, err
	}
	p, err := aggregator.ParseProvider(provider)
	if err != nil {
		return aggregator.Initiation{}, err
	}
	initiation, err := s.aggregators.Initiate(ctx, p, aggregator.InitiateInput{
		VerificationID: req.ID,
		CustomerName:   req.Customer.FullName(),
		CustomerEmail:  req.Customer.Email,
	})
	if err != nil {
		s.track(ctx, req.ID, "borrower.connection_failed", map[string]any{"provider": p})
		return aggregator.Initiation{}, flowError(KindConnection, err)
	}
	session.Provider = p
	if err := s.save(ctx, session); err != nil {
		return aggregator.Initiation{}, err
	}
	s.track(ctx, req.ID, "borrower.connection_started", map[string]any{"provider": p})
	return initiation, nil
}

// LinkAccounts stores the accounts the aggregator reported after a successful connection.
// Accounts already linked under the same id keep their first entry.
func (s *Service) LinkAccounts(ctx context.Context, token string, accounts []aggregator.Account) (State, error) {
	req, session, err := s.load(ctx, token, StepConnect)
	if err != nil {
		return State{}, err
	}
	if len(accounts) == 0 {
		return State{}, ErrNoConnectedAccounts
	}
	linked := append([]aggregator.Account(nil), req.ConnectedAccounts...)
	known := make(map[string]bool, len(linked)+len(accounts))
	for _, a := range linked {
		known[a.ID] = true
	}
	for _, a := range accounts {
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			return State{}, ErrInvalidAccount
		}
		if known[a.ID] {
			continue
		}
		if a.Provider == "" {
			a.Provider = session.Provider
		}
		known[a.ID] = true
		linked = append(linked, a)
	}
	if req, err = s.verifications.MarkConnected(ctx, req.ID, linked); err != nil {
		return State{}, flowError(KindNetwork, err)
	}
	session.ConnectedAccounts = req.ConnectedAccounts
	if err := s.save(ctx, session); err != nil {
		return State{}, err
	}
	s.track(ctx, req.ID, "borrower.accounts_linked", map[string]any{"count": len(req.ConnectedAccounts)})
	return newState(req, session), nil
}

// Complete finalises the verification. Completing again returns the same summary.
func (s *Service) Complete(ctx context.Context, token string) (Completion, error) {
	req, err := s.resolve(ctx, token)
	if err != nil {
		return Completion{}, err
	}
	if req.Status == verification.StatusCompleted {
		return newCompletion(req), nil
	}
	session, err := s.session(ctx, req)
	if err != nil {
		return Completion{}, err
	}
	if session.CurrentStep != StepConnect {
		return Completion{}, &StepError{Current: session.CurrentStep, Expected: StepConnect}
	}
	if !session.ConsentGiven {
		return Completion{}, &StepError{Current: StepConnect, Expected: StepConsent}
	}
	if len(req.ConnectedAccounts) == 0 {
		return Completion{}, ErrNoConnectedAccounts
	}
	if req, err = s.verifications.MarkCompleted(ctx, req.ID); err != nil {
		return Completion{}, flowError(KindCompletion, err)
	}
	session.CurrentStep = StepComplete
	if err := s.save(ctx, session); err != nil {
		s.logger.Warn("save completed session", "verification_id", req.ID, "error", err)
	}
	s.track(ctx, req.ID, "borrower.completed", map[string]any{"accounts": len(req.ConnectedAccounts)})
	return newCompletion(req), nil
}

// Completion returns the summary shown on the final page.
func (s *Service) Completion(ctx context.Context, token string) (Completion, error) {
	req, err := s.resolve(ctx, token)
	if err != nil {
		return Completion{}, err
	}
	if req.Status != verification.StatusCompleted {
		session, err := s.session(ctx, req)
		if err != nil {
			return Completion{}, err
		}
		return Completion{}, &StepError{Current: session.CurrentStep, Expected: StepComplete}
	}
	return newCompletion(req), nil
}

// FallbackCompletion fabricates a summary when the stored one cannot be fetched.
// It never fails: whatever cannot be resolved is filled in locally.
func (s *Service) FallbackCompletion(ctx context.Context, token string) Completion {
	out := Completion{
		ReferenceID:  "local-" + strings.ToUpper(uuid.NewString()[:8]),
		CompletedAt:  s.now(),
		Institutions: []string{},
		Fallback:     true,
	}
	req, err := s.verifications.FindByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return out
	}
	out.ReferenceID = "local-" + req.ID
	out.VerificationID = req.ID
	out.AccountCount = len(req.ConnectedAccounts)
	out.Institutions = req.Institutions()
	return out
}

// Track records a client-reported wizard event. Unknown tokens are ignored.
func (s *Service) Track(ctx context.Context, token, action string, metadata map[string]any) {
	action = strings.TrimSpace(action)
	if action == "" {
		return
	}
	req, err := s.verifications.FindByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		s.logger.Debug("drop borrower event", "action", action, "error", err)
		return
	}
	s.track(ctx, req.ID, "borrower.client."+action, metadata)
}

func (s *Service) track(ctx context.Context, id, action string, meta map[string]any) {
	s.audit.Record(ctx, audit.Event{
		Actor:      audit.BorrowerActor(id),
		Action:     action,
		TargetType: audit.TargetVerification,
		TargetID:   id,
		Metadata:   meta,
		OccurredAt: s.now(),
	})
}

func newState(req verification.Request, session Session) State {
	accounts := req.ConnectedAccounts
	if accounts == nil {
		accounts = []aggregator.Account{}
	}
	missing := req.Customer.MissingFields()
	if missing == nil {
		missing = []string{}
	}
	return State{
		VerificationID:    req.ID,
		Status:            req.Status,
		Customer:          req.Customer,
		ExpiresAt:         req.ExpiresAt,
		Step:              session.CurrentStep,
		MissingFields:     missing,
		ConsentGiven:      session.ConsentGiven,
		Provider:          session.Provider,
		ConnectedAccounts: accounts,
	}
}

// newCompletion builds the summary from the stored request alone so that it
// outlives the wizard session.
func newCompletion(req verification.Request) Completion {
	var completed time.Time
	if req.Timeline.CompletedAt != nil {
		completed = *req.Timeline.CompletedAt
	}
	return Completion{
		ReferenceID:    referenceID(req.ID),
		VerificationID: req.ID,
		CompletedAt:    completed,
		AccountCount:   len(req.ConnectedAccounts),
		Institutions:   req.Institutions(),
	}
}

func referenceID(id string) string {
	compact := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(compact) > 10 {
		compact = compact[:10]
	}
	return fmt.Sprintf("BV-%s", compact)
}
