package verification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bankverify/bankverify/internal/audit"
	"github.com/bankverify/bankverify/internal/logging"
	"github.com/bankverify/bankverify/internal/notification"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type captureAudit struct{ events []audit.Event }

func (a *captureAudit) Record(_ context.Context, e audit.Event) { a.events = append(a.events, e) }

func newTestService(t *testing.T) (*Service, *notification.Recorder, *captureAudit, *clock) {
	t.Helper()
	notes := &notification.Recorder{}
	trail := &captureAudit{}
	clk := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(NewMemoryRepository(), notes, trail, logging.Discard(), "https://verify.example.com/")
	svc.now = clk.now
	return svc, notes, trail, clk
}

func createInput(method SendMethod) CreateInput {
	return CreateInput{
		Customer: Customer{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Phone: "5551234567"},
		Settings: Settings{SendMethod: method},
		AgentID:  "agent-1",
	}
}

func TestCreateEmailSendsLink(t *testing.T) {
	svc, notes, trail, clk := newTestService(t)
	req, err := svc.Create(context.Background(), createInput(SendEmail))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != StatusSent || req.Timeline.SentAt == nil {
		t.Fatalf("expected sent request, got %s", req.Status)
	}
	if !strings.HasPrefix(req.Link, "https://verify.example.com/verify/") || !strings.HasSuffix(req.Link, req.Token) {
		t.Fatalf("unexpected link %s", req.Link)
	}
	if want := clk.t.Add(7 * 24 * time.Hour); !req.ExpiresAt.Equal(want) {
		t.Fatalf("expected default 7 day expiry, got %s", req.ExpiresAt)
	}
	msgs := notes.Messages()
	if len(msgs) != 1 || msgs[0].Channel != notification.ChannelEmail || msgs[0].Destination != "jane@example.com" {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
	if len(trail.events) != 1 || trail.events[0].Action != "verification.created" {
		t.Fatalf("expected creation audit event, got %+v", trail.events)
	}
}

func TestCreateLinkStaysPending(t *testing.T) {
	svc, notes, _, _ := newTestService(t)
	req, err := svc.Create(context.Background(), createInput(SendLink))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.Status != StatusPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}
	if len(notes.Messages()) != 0 {
		t.Fatal("link method must not notify")
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	in := createInput(SendSMS)
	in.Customer.Phone = ""
	if _, err := svc.Create(ctx, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected phone required, got %v", err)
	}
	in = createInput(SendEmail)
	in.Settings.ExpirationDays = 31
	if _, err := svc.Create(ctx, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected expiration bound error, got %v", err)
	}
	in = createInput("fax")
	if _, err := svc.Create(ctx, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected unknown method error, got %v", err)
	}
}

func TestCreateFailsWhenDeliveryFails(t *testing.T) {
	svc, notes, _, _ := newTestService(t)
	notes.Err = errors.New("smtp down")
	if _, err := svc.Create(context.Background(), createInput(SendEmail)); err == nil {
		t.Fatal("expected delivery error")
	}
	res, _ := svc.List(context.Background(), ListFilter{})
	if res.Total != 0 {
		t.Fatalf("failed delivery must not store the request, found %d", res.Total)
	}
}

func TestResendKeepsOldLinkWhenDeliveryFails(t *testing.T) {
	svc, notes, _, _ := newTestService(t)
	ctx := context.Background()
	req, err := svc.Create(ctx, createInput(SendEmail))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	notes.Err = errors.New("smtp down")
	if _, err := svc.Resend(ctx, req.ID, "agent-2"); err == nil {
		t.Fatal("expected delivery error")
	}

	stored, err := svc.FindByToken(ctx, req.Token)
	if err != nil {
		t.Fatalf("old link must still resolve: %v", err)
	}
	if stored.Token != req.Token || stored.ResendCount != 0 || stored.Timeline.LastResentAt != nil {
		t.Fatalf("failed resend must not change the request, got %+v", stored)
	}
}

func TestResendRotatesTokenAndRevivesExpired(t *testing.T) {
	svc, notes, _, clk := newTestService(t)
	ctx := context.Background()
	req, _ := svc.Create(ctx, createInput(SendEmail))

	clk.advance(8 * 24 * time.Hour)
	if _, err := svc.ExpireOverdue(ctx); err != nil {
		t.Fatalf("expire: %v", err)
	}

	resent, err := svc.Resend(ctx, req.ID, "agent-2")
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if resent.Token == req.Token {
		t.Fatal("expected token rotation")
	}
	if resent.Status != StatusSent || resent.ResendCount != 1 || resent.Timeline.LastResentAt == nil {
		t.Fatalf("unexpected resend result %+v", resent)
	}
	if !resent.ExpiresAt.After(clk.t) {
		t.Fatalf("expected refreshed expiry, got %s", resent.ExpiresAt)
	}
	if _, err := svc.FindByToken(ctx, req.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old token should be invalid, got %v", err)
	}
	if got := len(notes.Messages()); got != 2 {
		t.Fatalf("expected 2 notifications, got %d", got)
	}
}

func TestResendRejectedForCompletedAndCancelled(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	done, _ := svc.Create(ctx, createInput(SendEmail))
	if _, err := svc.MarkCompleted(ctx, done.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.Resend(ctx, done.ID, "a"); !errors.Is(err, ErrActionNotAllowed) {
		t.Fatalf("expected not allowed for completed, got %v", err)
	}

	cancelled, _ := svc.Create(ctx, createInput(SendEmail))
	if _, err := svc.Cancel(ctx, cancelled.ID, "a"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.Resend(ctx, cancelled.ID, "a"); !errors.Is(err, ErrActionNotAllowed) {
		t.Fatalf("expected not allowed for cancelled, got %v", err)
	}
}

func TestExtend(t *testing.T) {
	svc, _, _, clk := newTestService(t)
	ctx := context.Background()
	req, _ := svc.Create(ctx, createInput(SendEmail))

	extended, err := svc.Extend(ctx, req.ID, "a", 3)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if want := req.ExpiresAt.Add(3 * 24 * time.Hour); !extended.ExpiresAt.Equal(want) {
		t.Fatalf("expected %s, got %s", want, extended.ExpiresAt)
	}

	clk.advance(30 * 24 * time.Hour)
	if _, err := svc.MarkExpired(ctx, req.ID); err != nil {
		t.Fatalf("mark expired: %v", err)
	}
	revived, err := svc.Extend(ctx, req.ID, "a", 2)
	if err != nil {
		t.Fatalf("extend expired: %v", err)
	}
	if revived.Status != StatusSent || !revived.ExpiresAt.Equal(clk.t.Add(2*24*time.Hour)) {
		t.Fatalf("expected revived request from now, got %s %s", revived.Status, revived.ExpiresAt)
	}

	if _, err := svc.Extend(ctx, req.ID, "a", 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid days, got %v", err)
	}
}

func TestCancelIsIdempotentAndBlocksCompleted(t *testing.T) {
	svc, _, trail, _ := newTestService(t)
	ctx := context.Background()
	req, _ := svc.Create(ctx, createInput(SendEmail))

	first, err := svc.Cancel(ctx, req.ID, "a")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if first.Status != StatusExpired || !first.Cancelled() {
		t.Fatalf("unexpected cancel result %+v", first)
	}
	if _, err := svc.Cancel(ctx, req.ID, "a"); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	cancels := 0
	for _, e := range trail.events {
		if e.Action == "verification.cancelled" {
			cancels++
		}
	}
	if cancels != 1 {
		t.Fatalf("expected a single cancel audit event, got %d", cancels)
	}

	done, _ := svc.Create(ctx, createInput(SendEmail))
	_, _ = svc.MarkCompleted(ctx, done.ID)
	if _, err := svc.Cancel(ctx, done.ID, "a"); !errors.Is(err, ErrActionNotAllowed) {
		t.Fatalf("expected not allowed, got %v", err)
	}
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc, _, _, clk := newTestService(t)
	ctx := context.Background()
	var last Request
	for i := 0; i < 12; i++ {
		last, _ = svc.Create(ctx, createInput(SendEmail))
		clk.advance(time.Minute)
	}

	page1, err := svc.List(ctx, ListFilter{PageSize: 5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page1.Total != 12 || page1.TotalPages != 3 || len(page1.Items) != 5 {
		t.Fatalf("unexpected page %+v", page1)
	}
	if page1.Items[0].ID != last.ID {
		t.Fatal("expected newest first")
	}
	page3, _ := svc.List(ctx, ListFilter{PageSize: 5, Page: 3})
	if len(page3.Items) != 2 {
		t.Fatalf("expected 2 items on last page, got %d", len(page3.Items))
	}
	if _, err := svc.List(ctx, ListFilter{Status: "bogus"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid status error, got %v", err)
	}
}

func TestStats(t *testing.T) {
	svc, _, _, clk := newTestService(t)
	ctx := context.Background()

	empty, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty.Total != 0 || empty.CompletionRate != 0 {
		t.Fatalf("unexpected empty stats %+v", empty)
	}

	a, _ := svc.Create(ctx, createInput(SendEmail))
	_, _ = svc.Create(ctx, createInput(SendLink))
	clk.advance(30 * time.Minute)
	if _, err := svc.MarkCompleted(ctx, a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	stats, _ := svc.Stats(ctx)
	if stats.Total != 2 || stats.ByStatus[StatusCompleted] != 1 || stats.ByStatus[StatusPending] != 1 {
		t.Fatalf("unexpected counts %+v", stats)
	}
	if stats.CompletionRate != 0.5 || stats.AvgCompletionMinutes != 30 || stats.CreatedLast7Days != 2 {
		t.Fatalf("unexpected derived stats %+v", stats)
	}
}

func TestBorrowerTransitions(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	req, _ := svc.Create(ctx, createInput(SendEmail))

	started, err := svc.MarkStarted(ctx, req.ID)
	if err != nil || started.Status != StatusInProgress || started.Timeline.StartedAt == nil {
		t.Fatalf("mark started: %v %+v", err, started)
	}
	if _, err := svc.UpdateCustomer(ctx, req.ID, Customer{ZipCode: "abc"}); !errors.Is(err, ErrInvalidCustomer) {
		t.Fatalf("expected invalid customer, got %v", err)
	}
	updated, err := svc.UpdateCustomer(ctx, req.ID, Customer{City: "Springfield"})
	if err != nil || updated.Customer.City != "Springfield" {
		t.Fatalf("update customer: %v", err)
	}
	first, _ := svc.MarkCompleted(ctx, req.ID)
	second, err := svc.MarkCompleted(ctx, req.ID)
	if err != nil || !second.Timeline.CompletedAt.Equal(*first.Timeline.CompletedAt) {
		t.Fatalf("complete must be idempotent: %v", err)
	}
	if _, err := svc.MarkFailed(ctx, req.ID, FailureConsentDeclined); !errors.Is(err, ErrActionNotAllowed) {
		t.Fatalf("completed request cannot fail, got %v", err)
	}
}
