package analytics

import (
	"math"
	"sort"

	"splitlens/internal/core"
)

type (
	// BalancePoint is one step of a person's running balance.
	BalancePoint struct {
		Date    string  `json:"date"`
		Balance float64 `json:"balance"`
		Person  string  `json:"person"`
	}

	// MonthlyChange is the gross share activity of one month: the sum of
	// absolute share amounts across all people, not the net movement.
	MonthlyChange struct {
		Month  string  `json:"month"`
		Change float64 `json:"change"`
	}

	// ImbalancePeriod reports the single date at which the largest
	// absolute running balance of any person was reached. Start always
	// equals End; the range shape is kept for the boundary contract.
	ImbalancePeriod struct {
		Start        string  `json:"start"`
		End          string  `json:"end"`
		MaxImbalance float64 `json:"maxImbalance"`
	}

	// BalanceAnalytics is the full ledger view over a transaction set.
	BalanceAnalytics struct {
		CurrentBalance         map[string]float64 `json:"currentBalance"`
		BalanceHistory         []BalancePoint     `json:"balanceHistory"`
		PaymentFrequency       map[string]int     `json:"paymentFrequency"`
		MonthlyBalanceChange   []MonthlyChange    `json:"monthlyBalanceChange"`
		LargestImbalancePeriod ImbalancePeriod    `json:"largestImbalancePeriod"`
	}
)

// Balances walks the filtered transactions in date order and accumulates
// per-person running balances from the signed share amounts. The sort is
// stable, so transactions sharing a date keep their original relative
// order and the result is deterministic for a given input order.
func Balances(txs []core.Transaction, f core.AnalysisFilters, mapping core.StoreMapping) BalanceAnalytics {
	filtered := append([]core.Transaction(nil), Filter(txs, f, mapping)...)
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Date < filtered[j].Date })

	result := BalanceAnalytics{
		CurrentBalance:   make(map[string]float64),
		BalanceHistory:   []BalancePoint{},
		PaymentFrequency: make(map[string]int),
	}

	running := make(map[string]float64)
	monthly := make(map[string]float64)

	for _, t := range filtered {
		for _, s := range t.Shares {
			running[s.Name] += s.Amount
			result.PaymentFrequency[s.Name]++
			monthly[t.Month()] += math.Abs(s.Amount)

			result.BalanceHistory = append(result.BalanceHistory, BalancePoint{
				Date:    t.Date,
				Balance: running[s.Name],
				Person:  s.Name,
			})

			if abs := math.Abs(running[s.Name]); abs > result.LargestImbalancePeriod.MaxImbalance {
				result.LargestImbalancePeriod = ImbalancePeriod{
					Start:        t.Date,
					End:          t.Date,
					MaxImbalance: abs,
				}
			}
		}
	}

	for person, balance := range running {
		result.CurrentBalance[person] = balance
	}

	result.MonthlyBalanceChange = make([]MonthlyChange, 0, len(monthly))
	for month, change := range monthly {
		result.MonthlyBalanceChange = append(result.MonthlyBalanceChange, MonthlyChange{Month: month, Change: change})
	}
	sort.Slice(result.MonthlyBalanceChange, func(i, j int) bool {
		return result.MonthlyBalanceChange[i].Month < result.MonthlyBalanceChange[j].Month
	})

	return result
}
