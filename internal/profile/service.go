package profile

import (
	"context"
	"strings"
	"time"
)

// Service computes profile tabs on demand.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a profile service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// View is the profile page payload.
type View struct {
	Profile
	Overview Overview `json:"overview"`
}

// AccountsView is the accounts tab payload.
type AccountsView struct {
	Accounts []Account     `json:"accounts"`
	Trend    []BalancePoint `json:"balance_trend"`
}

func (s *Service) load(ctx context.Context, customerID string) (Profile, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return Profile{}, ErrNotFound
	}
	return s.repo.Get(ctx, customerID)
}

// Get returns the profile with its overview.
func (s *Service) Get(ctx context.Context, customerID string) (View, error) {
	p, err := s.load(ctx, customerID)
	if err != nil {
		return View{}, err
	}
	return View{Profile: p, Overview: Summarize(p)}, nil
}

// Cashflow returns monthly inflow and outflow.
func (s *Service) Cashflow(ctx context.Context, customerID string) ([]MonthFlow, error) {
	p, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return Cashflow(p.Transactions), nil
}

// Spending returns outflows by category.
func (s *Service) Spending(ctx context.Context, customerID string) ([]CategoryTotal, error) {
	p, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return Spending(p.Transactions), nil
}

// Income returns inflows by source.
func (s *Service) Income(ctx context.Context, customerID string) ([]SourceTotal, error) {
	p, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return Income(p.Transactions), nil
}

// Transactions returns a page of transactions.
func (s *Service) Transactions(ctx context.Context, customerID string, q TransactionQuery) (TransactionPage, error) {
	p, err := s.load(ctx, customerID)
	if err != nil {
		return TransactionPage{}, err
	}
	return PageTransactions(p.Transactions, q), nil
}

// Accounts returns the accounts and the combined balance trend over days.
func (s *Service) Accounts(ctx context.Context, customerID string, days int) (AccountsView, error) {
	p, err := s.load(ctx, customerID)
	if err != nil {
		return AccountsView{}, err
	}
	accounts := p.Accounts
	if accounts == nil {
		accounts = []Account{}
	}
	return AccountsView{Accounts: accounts, Trend: BalanceTrend(accounts, p.Transactions, s.now(), days)}, nil
}
