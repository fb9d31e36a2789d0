package profile

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultTrendDays    = 30
	maxTrendDays        = 365
	defaultTxnPageSize  = 25
	maxTxnPageSize      = 100
	lowBalanceThreshold = 500
)

var hundred = decimal.NewFromInt(100)

// Overview is the header of the profile page.
type Overview struct {
	TotalBalance     decimal.Decimal `json:"total_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	AccountCount     int             `json:"account_count"`
	TransactionCount int             `json:"transaction_count"`
	CreditScore      CreditScore     `json:"credit_score"`
	RiskIndicators   []RiskIndicator `json:"risk_indicators"`
}

// Summarize builds the overview, adding risk indicators derived from the data.
func Summarize(p Profile) Overview {
	out := Overview{
		TotalBalance:     decimal.Zero,
		AvailableBalance: decimal.Zero,
		AccountCount:     len(p.Accounts),
		TransactionCount: len(p.Transactions),
		CreditScore:      p.CreditScore,
	}
	out.CreditScore.Band = CreditBand(p.CreditScore.Value)
	overdrawn := false
	for _, a := range p.Accounts {
		out.TotalBalance = out.TotalBalance.Add(a.CurrentBalance)
		out.AvailableBalance = out.AvailableBalance.Add(a.AvailableBalance)
		if a.CurrentBalance.IsNegative() {
			overdrawn = true
		}
	}

	risks := append([]RiskIndicator(nil), p.RiskIndicators...)
	add := func(r RiskIndicator) {
		for _, existing := range risks {
			if existing.Code == r.Code {
				return
			}
		}
		risks = append(risks, r)
	}
	if overdrawn {
		add(RiskIndicator{Code: "overdrawn_account", Label: "An account is overdrawn", Severity: "high"})
	}
	if out.TotalBalance.LessThan(decimal.NewFromInt(lowBalanceThreshold)) {
		add(RiskIndicator{Code: "low_balance", Label: "Total balance is below $500", Severity: "medium"})
	}
	if flows := Cashflow(p.Transactions); len(flows) > 0 && flows[len(flows)-1].Net.IsNegative() {
		add(RiskIndicator{Code: "negative_cashflow", Label: "Spending exceeded income last month", Severity: "medium"})
	}
	if out.CreditScore.Value > 0 && out.CreditScore.Band == BandPoor {
		add(RiskIndicator{Code: "poor_credit", Label: "Credit score is in the poor band", Severity: "high"})
	}
	if risks == nil {
		risks = []RiskIndicator{}
	}
	out.RiskIndicators = risks
	return out
}

// MonthFlow is one month of the cashflow chart. Outflow is positive.
type MonthFlow struct {
	Month   string          `json:"month"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
}

// Cashflow totals inflow and outflow per calendar month, oldest first.
func Cashflow(txns []Transaction) []MonthFlow {
	byMonth := map[string]*MonthFlow{}
	for _, t := range txns {
		key := t.PostedAt.UTC().Format("2006-01")
		m, ok := byMonth[key]
		if !ok {
			m = &MonthFlow{Month: key, Inflow: decimal.Zero, Outflow: decimal.Zero, Net: decimal.Zero}
			byMonth[key] = m
		}
		if t.Amount.IsNegative() {
			m.Outflow = m.Outflow.Add(t.Amount.Neg())
		} else {
			m.Inflow = m.Inflow.Add(t.Amount)
		}
		m.Net = m.Net.Add(t.Amount)
	}
	out := make([]MonthFlow, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// CategoryTotal is one slice of the spending breakdown.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Share    float64         `json:"share"`
}

// Spending groups outflows by category, largest first. Share is a percentage.
func Spending(txns []Transaction) []CategoryTotal {
	totals := map[string]decimal.Decimal{}
	sum := decimal.Zero
	for _, t := range txns {
		if !t.Amount.IsNegative() {
			continue
		}
		category := t.Category
		if category == "" {
			category = "uncategorized"
		}
		amount := t.Amount.Neg()
		totals[category] = totals[category].Add(amount)
		sum = sum.Add(amount)
	}
	out := make([]CategoryTotal, 0, len(totals))
	for category, amount := range totals {
		share := 0.0
		if sum.IsPositive() {
			share = amount.Mul(hundred).Div(sum).Round(2).InexactFloat64()
		}
		out = append(out, CategoryTotal{Category: category, Amount: amount, Share: share})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// SourceTotal is one income source.
type SourceTotal struct {
	Source string          `json:"source"`
	Amount decimal.Decimal `json:"amount"`
	Count  int             `json:"count"`
}

// Income groups inflows by description, largest first.
func Income(txns []Transaction) []SourceTotal {
	index := map[string]int{}
	var out []SourceTotal
	for _, t := range txns {
		if !t.Amount.IsPositive() {
			continue
		}
		i, ok := index[t.Description]
		if !ok {
			i = len(out)
			index[t.Description] = i
			out = append(out, SourceTotal{Source: t.Description, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.Cmp(out[j].Amount) > 0 })
	if out == nil {
		out = []SourceTotal{}
	}
	return out
}

// BalancePoint is the end-of-day balance for a date.
type BalancePoint struct {
	Date    string          `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

// BalanceTrend reconstructs daily balances for the last days days, oldest
// first, by walking posted transactions back from the current balances.
func BalanceTrend(accounts []Account, txns []Transaction, now time.Time, days int) []BalancePoint {
	if days <= 0 {
		days = defaultTrendDays
	}
	if days > maxTrendDays {
		days = maxTrendDays
	}
	included := make(map[string]bool, len(accounts))
	balance := decimal.Zero
	for _, a := range accounts {
		included[a.ID] = true
		balance = balance.Add(a.CurrentBalance)
	}
	daily := map[string]decimal.Decimal{}
	for _, t := range txns {
		if t.Pending || !included[t.AccountID] {
			continue
		}
		key := t.PostedAt.UTC().Format(time.DateOnly)
		daily[key] = daily[key].Add(t.Amount)
	}

	day := now.UTC().Truncate(24 * time.Hour)
	points := make([]BalancePoint, days)
	for i := days - 1; i >= 0; i-- {
		key := day.Format(time.DateOnly)
		points[i] = BalancePoint{Date: key, Balance: balance}
		balance = balance.Sub(daily[key])
		day = day.AddDate(0, 0, -1)
	}
	return points
}

// TransactionQuery selects a page of transactions.
type TransactionQuery struct {
	AccountID string
	Page      int
	PageSize  int
}

// TransactionPage is a page of transactions, newest first.
type TransactionPage struct {
	Items      []Transaction `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalPages int           `json:"total_pages"`
}

// PageTransactions filters, sorts and pages transactions.
func PageTransactions(txns []Transaction, q TransactionQuery) TransactionPage {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultTxnPageSize
	}
	if q.PageSize > maxTxnPageSize {
		q.PageSize = maxTxnPageSize
	}
	filtered := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		if q.AccountID == "" || t.AccountID == q.AccountID {
			filtered = append(filtered, t)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].PostedAt.After(filtered[j].PostedAt) })

	page := TransactionPage{Total: len(filtered), Page: q.Page, PageSize: q.PageSize}
	page.TotalPages = (page.Total + q.PageSize - 1) / q.PageSize
	start := (q.Page - 1) * q.PageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + q.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	page.Items = filtered[start:end]
	return page
}
