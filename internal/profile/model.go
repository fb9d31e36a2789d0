// Package profile serves the read-only financial profile of a customer and
// the per-tab summaries computed from it.
package profile

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates no profile exists for the customer.
var ErrNotFound = errors.New("customer profile not found")

// Credit bands, highest first.
const (
	BandExcellent = "excellent"
	BandVeryGood  = "very_good"
	BandGood      = "good"
	BandFair      = "fair"
	BandPoor      = "poor"
)

// CreditBand buckets a FICO-style score.
func CreditBand(score int) string {
	switch {
	case score >= 800:
		return BandExcellent
	case score >= 740:
		return BandVeryGood
	case score >= 670:
		return BandGood
	case score >= 580:
		return BandFair
	default:
		return BandPoor
	}
}

// CreditScore is the bureau score attached to a profile.
type CreditScore struct {
	Value    int       `json:"value"`
	Band     string    `json:"band"`
	Provider string    `json:"provider"`
	AsOf     time.Time `json:"as_of"`
}

// Account is a connected bank account.
type Account struct {
	ID               string          `json:"id"`
	Institution      string          `json:"institution"`
	Name             string          `json:"name"`
	Mask             string          `json:"mask"`
	Type             string          `json:"type"`
	Subtype          string          `json:"subtype"`
	Currency         string          `json:"currency"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	Provider         string          `json:"provider"`
}

// Transaction is a posted or pending account movement.
// Negative amounts are outflows.
type Transaction struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	PostedAt    time.Time       `json:"posted_at"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Pending     bool            `json:"pending"`
}

// RiskIndicator flags something an underwriter should look at.
type RiskIndicator struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Severity string `json:"severity"`
}

// Profile is a customer's financial snapshot.
type Profile struct {
	CustomerID     string          `json:"customer_id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	CreditScore    CreditScore     `json:"credit_score"`
	Accounts       []Account       `json:"accounts"`
	Transactions   []Transaction   `json:"transactions"`
	RiskIndicators []RiskIndicator `json:"risk_indicators"`
}
