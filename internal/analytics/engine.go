package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"

	"splitlens/internal/core"
)

// Interval selects the time bucket for SpendingOverTime.
type Interval string

const (
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

func (i Interval) Valid() bool {
	switch i {
	case IntervalDay, IntervalWeek, IntervalMonth:
		return true
	}
	return false
}

// Dimension selects the grouping axis for SpendingBy.
type Dimension string

const (
	DimensionCategory Dimension = "category"
	DimensionStore    Dimension = "store"
	DimensionPerson   Dimension = "person"
)

func (d Dimension) Valid() bool {
	switch d {
	case DimensionCategory, DimensionStore, DimensionPerson:
		return true
	}
	return false
}

// SpendingPoint is one chart-ready bucket.
type SpendingPoint struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

// TransactionPage is one page of the filtered transaction listing.
type TransactionPage struct {
	Transactions []core.Transaction `json:"transactions"`
	Total        int                `json:"total"`
}

// SpendingOverTime buckets the filtered transactions by day, week or
// month and sums Cost per bucket. Week buckets are labelled by the
// Sunday starting the week. Output is ascending by label, which is
// chronological for all three label formats.
func SpendingOverTime(txs []core.Transaction, f core.AnalysisFilters, mapping core.StoreMapping, interval Interval) ([]SpendingPoint, error) {
	if !interval.Valid() {
		return nil, fmt.Errorf("unknown interval %q", interval)
	}

	buckets := make(map[string]float64)
	for _, t := range Filter(txs, f, mapping) {
		label := t.Date
		switch interval {
		case IntervalWeek:
			label = weekStart(t.Date)
		case IntervalMonth:
			label = t.Month()
		}
		buckets[label] += t.Cost
	}
	return sortedAscending(buckets), nil
}

// SpendingBy groups the filtered transactions along one dimension.
// The person dimension sums each share's signed amount, so a person's
// total reflects net owed/paid rather than gross spend. The store
// dimension groups by canonical name only: transactions whose
// description has no confirmed mapping are silently excluded from it.
// Output is descending by absolute amount.
func SpendingBy(txs []core.Transaction, f core.AnalysisFilters, mapping core.StoreMapping, dim Dimension) ([]SpendingPoint, error) {
	if !dim.Valid() {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}

	filtered := Filter(txs, f, mapping)
	buckets := make(map[string]float64)

	switch dim {
	case DimensionPerson:
		for _, t := range filtered {
			for _, s := range t.Shares {
				buckets[s.Name] += s.Amount
			}
		}
	case DimensionCategory:
		for _, t := range filtered {
			buckets[t.Category] += t.Cost
		}
	case DimensionStore:
		reverse := mapping.ReverseIndex()
		for _, t := range filtered {
			canonical, ok := reverse[t.Description]
			if !ok {
				continue
			}
			buckets[canonical] += t.Cost
		}
	}
	return sortedByMagnitude(buckets), nil
}

// DetailedTransactions filters, rewrites each result's description to its
// canonical name where mapped (display only, the source slice is never
// touched) and returns the 1-indexed page. An out-of-range page yields an
// empty slice with the correct total.
func DetailedTransactions(txs []core.Transaction, f core.AnalysisFilters, mapping core.StoreMapping, page, pageSize int) (TransactionPage, error) {
	if page < 1 {
		return TransactionPage{}, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if pageSize < 1 {
		return TransactionPage{}, fmt.Errorf("pageSize must be >= 1, got %d", pageSize)
	}

	filtered := Filter(txs, f, mapping)
	result := TransactionPage{Total: len(filtered), Transactions: []core.Transaction{}}

	start := (page - 1) * pageSize
	if start >= len(filtered) {
		return result, nil
	}
	end := start + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	reverse := mapping.ReverseIndex()
	pageTxs := make([]core.Transaction, 0, end-start)
	for _, t := range filtered[start:end] {
		display := t.Clone()
		if canonical, ok := reverse[t.Description]; ok {
			display.Description = canonical
		}
		pageTxs = append(pageTxs, display)
	}
	result.Transactions = pageTxs
	return result, nil
}

// weekStart returns the date of the Sunday on or before the given date.
// Malformed dates fall through unchanged; they cannot reach here from
// validated input.
func weekStart(date string) string {
	t, err := time.Parse(core.DateLayout, date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, -int(t.Weekday())).Format(core.DateLayout)
}

func sortedAscending(buckets map[string]float64) []SpendingPoint {
	points := toPoints(buckets)
	sort.Slice(points, func(i, j int) bool { return points[i].Label < points[j].Label })
	return points
}

func sortedByMagnitude(buckets map[string]float64) []SpendingPoint {
	points := toPoints(buckets)
	sort.Slice(points, func(i, j int) bool {
		ai, aj := math.Abs(points[i].Amount), math.Abs(points[j].Amount)
		if ai != aj {
			return ai > aj
		}
		return points[i].Label < points[j].Label
	})
	return points
}

func toPoints(buckets map[string]float64) []SpendingPoint {
	points := make([]SpendingPoint, 0, len(buckets))
	for label, amount := range buckets {
		points = append(points, SpendingPoint{Label: label, Amount: amount})
	}
	return points
}
