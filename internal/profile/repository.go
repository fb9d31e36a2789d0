package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository loads customer profiles.
type Repository interface {
	Get(ctx context.Context, customerID string) (Profile, error)
}

// PostgresRepository reads profiles from customer_profiles, bank_accounts and bank_transactions.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed profile repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get loads the profile with its accounts and transactions.
func (r *PostgresRepository) Get(ctx context.Context, customerID string) (Profile, error) {
	var (
		p     Profile
		risks []byte
	)
	err := r.db.QueryRow(ctx, `
SELECT customer_id, name, email, credit_score, credit_provider, credit_as_of, risk_indicators
FROM customer_profiles WHERE customer_id = $1`, customerID).
		Scan(&p.CustomerID, &p.Name, &p.Email, &p.CreditScore.Value, &p.CreditScore.Provider, &p.CreditScore.AsOf, &risks)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	if len(risks) > 0 {
		if err := json.Unmarshal(risks, &p.RiskIndicators); err != nil {
			return Profile{}, fmt.Errorf("decode risk indicators: %w", err)
		}
	}
	if p.Accounts, err = r.accounts(ctx, customerID); err != nil {
		return Profile{}, err
	}
	if p.Transactions, err = r.transactions(ctx, customerID); err != nil {
		return Profile{}, err
	}
	p.CreditScore.Band = CreditBand(p.CreditScore.Value)
	return p, nil
}

func (r *PostgresRepository) accounts(ctx context.Context, customerID string) ([]Account, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, institution, name, mask, type, subtype, currency, current_balance::text, available_balance::text, provider
FROM bank_accounts WHERE customer_id = $1 ORDER BY institution, name`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Account{}
	for rows.Next() {
		var (
			a                  Account
			current, available string
		)
		if err := rows.Scan(&a.ID, &a.Institution, &a.Name, &a.Mask, &a.Type, &a.Subtype, &a.Currency, &current, &available, &a.Provider); err != nil {
			return nil, err
		}
		if a.CurrentBalance, err = decimal.NewFromString(current); err != nil {
			return nil, fmt.Errorf("parse current balance of %s: %w", a.ID, err)
		}
		if a.AvailableBalance, err = decimal.NewFromString(available); err != nil {
			return nil, fmt.Errorf("parse available balance of %s: %w", a.ID, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) transactions(ctx context.Context, customerID string) ([]Transaction, error) {
	rows, err := r.db.Query(ctx, `
SELECT t.id, t.account_id, t.posted_at, t.description, t.category, t.amount::text, t.pending
FROM bank_transactions t
JOIN bank_accounts a ON a.id = t.account_id
WHERE a.customer_id = $1
ORDER BY t.posted_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Transaction{}
	for rows.Next() {
		var (
			t      Transaction
			amount string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.PostedAt, &t.Description, &t.Category, &amount, &t.Pending); err != nil {
			return nil, err
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse amount of %s: %w", t.ID, err)
		}
		t.PostedAt = t.PostedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

type memoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryRepository holds the given profiles in memory.
func NewMemoryRepository(profiles ...Profile) Repository {
	r := &memoryRepository{profiles: make(map[string]Profile, len(profiles))}
	for _, p := range profiles {
		r.profiles[p.CustomerID] = p
	}
	return r
}

func (r *memoryRepository) Get(_ context.Context, customerID string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[customerID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	p.Accounts = append([]Account(nil), p.Accounts...)
	p.Transactions = append([]Transaction(nil), p.Transactions...)
	return p, nil
}
