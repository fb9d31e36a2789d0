package profile

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type recurring struct {
	description string
	category    string
	amount      string
	everyDays   int
	offset      int
}

// SampleProfiles generates deterministic development data ending at now.
func SampleProfiles(now time.Time) []Profile {
	day := now.UTC().Truncate(24 * time.Hour)
	return []Profile{
		sample(day, "cust_1001", "Jane Doe", "jane@example.com", 762, "1842.17", "12650.00", []recurring{
			{"Acme Corp Payroll", "income", "2450.00", 14, 3},
			{"Rent - Parkview Apartments", "housing", "-1450.00", 30, 1},
			{"Whole Foods Market", "groceries", "-86.42", 4, 0},
			{"Shell Gas", "transportation", "-41.10", 6, 2},
			{"Netflix", "entertainment", "-15.49", 30, 9},
			{"City Utilities", "utilities", "-112.35", 30, 12},
			{"Blue Bottle Coffee", "dining", "-6.75", 2, 1},
		}),
		sample(day, "cust_1002", "Marcus Lee", "marcus@example.com", 604, "212.48", "0", []recurring{
			{"Gig Platform Payout", "income", "640.00", 7, 2},
			{"Rent - Eastside Lofts", "housing", "-1180.00", 30, 4},
			{"Corner Market", "groceries", "-32.15", 3, 1},
			{"Payday Advance Repayment", "loans", "-225.00", 14, 6},
			{"Metro Transit", "transportation", "-2.75", 1, 0},
		}),
	}
}

func sample(day time.Time, id, name, email string, score int, checking, savings string, schedule []recurring) Profile {
	checkingID := id + "_chk"
	savingsID := id + "_sav"
	p := Profile{
		CustomerID:  id,
		Name:        name,
		Email:       email,
		CreditScore: CreditScore{Value: score, Band: CreditBand(score), Provider: "Experian", AsOf: day.AddDate(0, 0, -3)},
		Accounts: []Account{
			{
				ID: checkingID, Institution: "Chase", Name: "Total Checking", Mask: "4821", Type: "depository", Subtype: "checking",
				Currency: "USD", CurrentBalance: decimal.RequireFromString(checking), AvailableBalance: decimal.RequireFromString(checking),
				Provider: "stripe",
			},
			{
				ID: savingsID, Institution: "Ally", Name: "Online Savings", Mask: "0937", Type: "depository", Subtype: "savings",
				Currency: "USD", CurrentBalance: decimal.RequireFromString(savings), AvailableBalance: decimal.RequireFromString(savings),
				Provider: "teller",
			},
		},
		RiskIndicators: []RiskIndicator{},
	}
	n := 0
	for back := 0; back < 90; back++ {
		date := day.AddDate(0, 0, -back).Add(12 * time.Hour)
		for _, r := range schedule {
			if (back+r.offset)%r.everyDays != 0 {
				continue
			}
			n++
			p.Transactions = append(p.Transactions, Transaction{
				ID:          fmt.Sprintf("%s_txn_%04d", id, n),
				AccountID:   checkingID,
				PostedAt:    date,
				Description: r.description,
				Category:    r.category,
				Amount:      decimal.RequireFromString(r.amount),
				Pending:     back == 0 && r.category != "income",
			})
		}
	}
	return p
}
