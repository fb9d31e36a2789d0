package verification

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bankverify/bankverify/internal/aggregator"
	"github.com/bankverify/bankverify/internal/audit"
	"github.com/bankverify/bankverify/internal/notification"
)

var (
	// ErrNotFound indicates no request matches the identifier or token.
	ErrNotFound = errors.New("verification request not found")
	// ErrAlreadyExists indicates a duplicate request identifier.
	ErrAlreadyExists = errors.New("verification request already exists")
	// ErrInvalidInput wraps validation failures of admin input.
	ErrInvalidInput = errors.New("invalid verification input")
	// ErrActionNotAllowed indicates the action conflicts with the current status.
	ErrActionNotAllowed = errors.New("action not allowed in current status")
)

const tokenBytes = 32

// Service manages verification requests on behalf of admins and the borrower wizard.
type Service struct {
	repo     Repository
	notifier notification.Notifier
	audit    audit.Recorder
	logger   *slog.Logger
	baseURL  string
	now      func() time.Time
}

// NewService builds a verification service. baseURL is the borrower app origin used to build links.
func NewService(repo Repository, notifier notification.Notifier, recorder audit.Recorder, logger *slog.Logger, baseURL string) *Service {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		audit:    recorder,
		logger:   logger,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput captures the admin's send-verification form.
type CreateInput struct {
	Customer Customer
	Settings Settings
	AgentID  string
}

func (in *CreateInput) normalize(now time.Time) error {
	in.Customer = Customer{}.Merge(in.Customer)
	if in.Customer.FirstName == "" || in.Customer.LastName == "" {
		return fmt.Errorf("%w: customer first_name and last_name are required", ErrInvalidInput)
	}
	if in.Settings.SendMethod == "" {
		in.Settings.SendMethod = SendEmail
	}
	switch in.Settings.SendMethod {
	case SendEmail:
		if in.Customer.Email == "" {
			return fmt.Errorf("%w: customer email is required for email delivery", ErrInvalidInput)
		}
	case SendSMS:
		if in.Customer.Phone == "" {
			return fmt.Errorf("%w: customer phone is required for sms delivery", ErrInvalidInput)
		}
	case SendLink:
	default:
		return fmt.Errorf("%w: unknown send_method %q", ErrInvalidInput, in.Settings.SendMethod)
	}
	if in.Settings.ExpirationDays == 0 {
		in.Settings.ExpirationDays = DefaultExpirationDays
	}
	if err := validateDays(in.Settings.ExpirationDays); err != nil {
		return err
	}
	if err := in.Customer.Validate(now); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func validateDays(days int) error {
	if days < 1 || days > MaxExpirationDays {
		return fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidInput, MaxExpirationDays)
	}
	return nil
}

// Create stores a new request and delivers its link for email/sms send methods.
func (s *Service) Create(ctx context.Context, input CreateInput) (Request, error) {
	now := s.now()
	if err := input.normalize(now); err != nil {
		return Request{}, err
	}
	token, err := newToken()
	if err != nil {
		return Request{}, err
	}

	req := Request{
		ID:        uuid.NewString(),
		Customer:  input.Customer,
		Settings:  input.Settings,
		Status:    StatusPending,
		Timeline:  Timeline{CreatedAt: now},
		ExpiresAt: now.Add(days(input.Settings.ExpirationDays)),
		Token:     token,
		Link:      s.link(token),
		AgentID:   input.AgentID,
	}

	if input.Settings.SendMethod != SendLink {
		if err := s.deliver(ctx, req, notification.KindVerificationLink); err != nil {
			return Request{}, err
		}
		req.Status = StatusSent
		req.Timeline.SentAt = timePtr(now)
	}

	if err := s.repo.Create(ctx, req); err != nil {
		return Request{}, err
	}
	s.record(ctx, input.AgentID, "verification.created", req.ID, map[string]any{"send_method": string(req.Settings.SendMethod)})
	s.logger.Info("verification created",
		slog.String("verification_id", req.ID),
		slog.String("agent_id", req.AgentID),
		slog.String("status", string(req.Status)),
	)
	return req, nil
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, id string) (Request, error) {
	return s.repo.Get(ctx, id)
}

// FindByToken returns the request owning a borrower token.
func (s *Service) FindByToken(ctx context.Context, token string) (Request, error) {
	if strings.TrimSpace(token) == "" {
		return Request{}, ErrNotFound
	}
	return s.repo.FindByToken(ctx, token)
}

// List returns a page of requests matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	filter = filter.Normalize()
	if filter.Status != "" && !filter.Status.Valid() {
		return ListResult{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return ListResult{}, err
	}
	return newListResult(items, total, filter), nil
}

// Stats summarises all requests for the dashboard.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx, s.now())
}

// Resend rotates the token and delivers the link again. The rotation is only
// stored once the new link was delivered.
func (s *Service) Resend(ctx context.Context, id, actorID string) (Request, error) {
	now := s.now()
	token, err := newToken()
	if err != nil {
		return Request{}, err
	}
	updated, err := s.repo.Update(ctx, id, func(r *Request) error {
		if r.Status == StatusCompleted || r.Cancelled() {
			return fmt.Errorf("%w: cannot resend a %s request", ErrActionNotAllowed, describe(*r))
		}
		r.Token = token
		r.Link = s.link(token)
		if r.Status == StatusExpired || r.Overdue(now) {
			r.ExpiresAt = now.Add(days(r.Settings.ExpirationDays))
			r.Timeline.ExpiredAt = nil
		}
		if r.Status != StatusInProgress {
			r.Status = StatusSent
		}
		r.FailureReason = ""
		r.ResendCount++
		r.Timeline.SentAt = timePtr(now)
		r.Timeline.LastResentAt = timePtr(now)
		if r.Settings.SendMethod == SendLink {
			return nil
		}
		if err := s.deliver(ctx, *r, notification.KindVerificationReminder); err != nil {
			s.logger.Warn("resend delivery failed", slog.String("verification_id", id), slog.Any("error", err))
			return fmt.Errorf("deliver link: %w", err)
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.record(ctx, actorID, "verification.resent", id, map[string]any{"resend_count": updated.ResendCount})
	return updated, nil
}

// Extend pushes the expiry out by the given number of days.
func (s *Service) Extend(ctx context.Context, id, actorID string, extraDays int) (Request, error) {
	if err := validateDays(extraDays); err != nil {
		return Request{}, err
	}
	now := s.now()
	updated, err := s.repo.Update(ctx, id, func(r *Request) error {
		if r.Status == StatusCompleted || r.Status == StatusFailed || r.Cancelled() {
			return fmt.Errorf("%w: cannot extend a %s request", ErrActionNotAllowed, describe(*r))
		}
		from := r.ExpiresAt
		if from.Before(now) {
			from = now
		}
		r.ExpiresAt = from.Add(days(extraDays))
		if r.Status == StatusExpired {
			r.Status = StatusSent
			r.Timeline.ExpiredAt = nil
		}
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	s.record(ctx, actorID, "verification.extended", id, map[string]any{"days": extraDays, "expires_at": updated.ExpiresAt})
	return updated, nil
}

// Cancel expires the request immediately and invalidates its token.
func (s *Service) Cancel(ctx context.Context, id, actorID string) (Request, error) {
	now := s.now()
	alreadyCancelled := false
	updated, err := s.repo.Update(ctx, id, func(r *Request) error {
		if r.Cancelled() {
			alreadyCancelled = true
			return nil
		}
		if r.Status == StatusCompleted {
			return fmt.Errorf("%w: cannot cancel a completed request", ErrActionNotAllowed)
		}
		r.Status = StatusExpired
		r.Timeline.CancelledAt = timePtr(now)
		r.Timeline.ExpiredAt = timePtr(now)
		r.ExpiresAt = now
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	if !alreadyCancelled {
		s.record(ctx, actorID, "verification.cancelled", id, nil)
	}
	return updated, nil
}

// ExpireOverdue marks every open request past its expiry as expired.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired overdue verifications", slog.Int("count", n))
	}
	return n, nil
}

// MarkStarted moves a pending or sent request to in_progress.
func (s *Service) MarkStarted(ctx context.Context, id string) (Request, error) {
	now := s.now()
	return s.repo.Update(ctx, id, func(r *Request) error {
		if r.Status == StatusPending || r.Status == StatusSent {
			r.Status = StatusInProgress
		}
		if r.Timeline.StartedAt == nil {
			r.Timeline.StartedAt = timePtr(now)
		}
		return nil
	})
}

// MarkExpired expires an overdue open request.
func (s *Service) MarkExpired(ctx context.Context, id string) (Request, error) {
	now := s.now()
	return s.repo.Update(ctx, id, func(r *Request) error {
		if r.Status.Open() {
			r.Status = StatusExpired
			r.Timeline.ExpiredAt = timePtr(now)
		}
		return nil
	})
}

// UpdateCustomer overlays borrower-provided fields on the snapshot.
func (s *Service) UpdateCustomer(ctx context.Context, id string, update Customer) (Request, error) {
	now := s.now()
	return s.repo.Update(ctx, id, func(r *Request) error {
		if !r.Status.Open() {
			return fmt.Errorf("%w: request is %s", ErrActionNotAllowed, r.Status)
		}
		merged := r.Customer.Merge(update)
		if err := merged.Validate(now); err != nil {
			return err
		}
		r.Customer = merged
		return nil
	})
}

// MarkConsented stamps the consent time.
func (s *Service) MarkConsented(ctx context.Context, id string) (Request, error) {
	now := s.now()
	return s.repo.Update(ctx, id, func(r *Request) error {
		if !r.Status.Open() {
			return fmt.Errorf("%w: request is %s", ErrActionNotAllowed, r.Status)
		}
		r.Timeline.ConsentedAt = timePtr(now)
		return nil
	})
}

// MarkConnected stores the linked accounts and stamps the first bank connection time.
func (s *Service) MarkConnected(ctx context.Context, id string, accounts []aggregator.Account) (Request, error) {
	now := s.now()
	return s.repo.Update(ctx, id, func(r *Request) error {
		if !r.Status.Open() {
			return fmt.Errorf("%w: request is %s", ErrActionNotAllowed, r.Status)
		}
		r.ConnectedAccounts = append([]aggregator.Account(nil), accounts...)
		if r.Timeline.ConnectedAt == nil {
			r.Timeline.ConnectedAt = timePtr(now)
		}
		return nil
	})
}

// MarkCompleted finalizes the request. Completing twice returns the stored record.
func (s *Service) MarkCompleted(ctx context.Context, id string) (Request, error) {
	now := s.now()
	return s.repo.Update(ctx, id, func(r *Request) error {
		if r.Status == StatusCompleted {
			return nil
		}
		if !r.Status.Open() {
			return fmt.Errorf("%w: request is %s", ErrActionNotAllowed, r.Status)
		}
		r.Status = StatusCompleted
		r.Timeline.CompletedAt = timePtr(now)
		return nil
	})
}

// MarkFailed terminates the request with a reason.
func (s *Service) MarkFailed(ctx context.Context, id, reason string) (Request, error) {
	return s.repo.Update(ctx, id, func(r *Request) error {
		if r.Status == StatusCompleted {
			return fmt.Errorf("%w: request is completed", ErrActionNotAllowed)
		}
		r.Status = StatusFailed
		r.FailureReason = reason
		return nil
	})
}

func (s *Service) deliver(ctx context.Context, req Request, kind string) error {
	if s.notifier == nil {
		return nil
	}
	msg := notification.Message{
		Kind:    kind,
		Subject: "Verify your bank account",
		Body: fmt.Sprintf("Hi %s, please complete your bank account verification before %s: %s",
			req.Customer.FirstName, req.ExpiresAt.Format("Jan 2, 2006"), req.Link),
	}
	switch req.Settings.SendMethod {
	case SendSMS:
		msg.Channel = notification.ChannelSMS
		msg.Destination = req.Customer.Phone
	default:
		msg.Channel = notification.ChannelEmail
		msg.Destination = req.Customer.Email
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		return fmt.Errorf("deliver verification link: %w", err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor, action, id string, meta map[string]any) {
	s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     action,
		TargetType: audit.TargetVerification,
		TargetID:   id,
		Metadata:   meta,
		OccurredAt: s.now(),
	})
}

func (s *Service) link(token string) string {
	return s.baseURL + "/verify/" + token
}

func describe(r Request) string {
	if r.Cancelled() {
		return "cancelled"
	}
	return string(r.Status)
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
