package verification

import (
	"sort"
	"time"

	"github.com/bankverify/bankverify/internal/aggregator"
)

// Status is the lifecycle state of a verification request.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSent       Status = "sent"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
	StatusFailed     Status = "failed"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusSent, StatusInProgress, StatusCompleted, StatusExpired, StatusFailed}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Open reports whether the borrower can still act on a request in this status.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusSent || s == StatusInProgress
}

// SendMethod is how the verification link reaches the customer.
type SendMethod string

const (
	SendEmail SendMethod = "email"
	SendSMS   SendMethod = "sms"
	SendLink  SendMethod = "link"
)

const (
	DefaultExpirationDays = 7
	MaxExpirationDays     = 30

	FailureConsentDeclined = "consent_declined"
)

// Settings controls delivery and lifetime of a request.
type Settings struct {
	ExpirationDays int        `json:"expiration_days"`
	SendMethod     SendMethod `json:"send_method"`
}

// Timeline records when each lifecycle event happened.
type Timeline struct {
	CreatedAt    time.Time  `json:"created_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	ConsentedAt  *time.Time `json:"consented_at,omitempty"`
	ConnectedAt  *time.Time `json:"connected_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ExpiredAt    *time.Time `json:"expired_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	LastResentAt *time.Time `json:"last_resent_at,omitempty"`
}

// Request is an admin-initiated verification tracked through the borrower wizard.
type Request struct {
	ID            string    `json:"id"`
	Customer      Customer  `json:"customer"`
	Settings      Settings  `json:"settings"`
	Status        Status    `json:"status"`
	Timeline      Timeline  `json:"timeline"`
	ExpiresAt     time.Time `json:"expires_at"`
	Token         string    `json:"-"`
	Link          string    `json:"link"`
	ResendCount   int       `json:"resend_count"`
	AgentID       string    `json:"agent_id"`
	FailureReason string    `json:"failure_reason,omitempty"`
	// ConnectedAccounts are the bank accounts the borrower linked.
	ConnectedAccounts []aggregator.Account `json:"connected_accounts"`
}

// Cancelled reports whether an admin cancelled the request.
func (r Request) Cancelled() bool {
	return r.Timeline.CancelledAt != nil
}

// Institutions returns the distinct, sorted institution names of the connected accounts.
func (r Request) Institutions() []string {
	seen := make(map[string]bool, len(r.ConnectedAccounts))
	out := []string{}
	for _, a := range r.ConnectedAccounts {
		if a.Institution != "" && !seen[a.Institution] {
			seen[a.Institution] = true
			out = append(out, a.Institution)
		}
	}
	sort.Strings(out)
	return out
}

// Overdue reports whether the request is open but past its expiry.
func (r Request) Overdue(now time.Time) bool {
	return r.Status.Open() && !now.Before(r.ExpiresAt)
}

// Stats summarises verification activity for the admin dashboard.
type Stats struct {
	Total                int            `json:"total"`
	ByStatus             map[Status]int `json:"by_status"`
	CompletionRate       float64        `json:"completion_rate"`
	AvgCompletionMinutes float64        `json:"avg_completion_minutes"`
	CreatedLast7Days     int            `json:"created_last_7_days"`
}

func timePtr(t time.Time) *time.Time {
	return &t
}
