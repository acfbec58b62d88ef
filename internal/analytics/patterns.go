package analytics

import (
	"math"
	"sort"
	"time"

	"splitlens/internal/core"
)

type (
	// CategoryStat pairs a summed amount with a transaction count.
	CategoryStat struct {
		Amount float64 `json:"amount"`
		Count  int     `json:"count"`
	}

	// StoreSpend ranks one store by the money spent there.
	StoreSpend struct {
		Store  string  `json:"store"`
		Amount float64 `json:"amount"`
	}

	// PaymentPattern describes one person's spending habits. Amounts are
	// absolute share values: the pattern reflects activity volume, not
	// the signed ledger direction.
	PaymentPattern struct {
		Person                 string                  `json:"person"`
		Categories             map[string]CategoryStat `json:"categories"`
		WeekdayFrequency       map[string]int          `json:"weekdayFrequency"`
		MonthlySpending        map[string]float64      `json:"monthlySpending"`
		PreferredStores        []StoreSpend            `json:"preferredStores"`
		AverageTransactionSize float64                 `json:"averageTransactionSize"`
	}

	// DayCount is weekday visit frequency for one store.
	DayCount struct {
		Day   string `json:"day"`
		Count int    `json:"count"`
	}

	// MonthlyStoreTrend is one month of a store's visit history.
	MonthlyStoreTrend struct {
		Month  string  `json:"month"`
		Amount float64 `json:"amount"`
		Visits int     `json:"visits"`
	}

	// StoreAnalytics is the per-store visit view. Stores are grouped by
	// canonical name; descriptions without a confirmed mapping appear
	// under their raw description instead of being dropped.
	StoreAnalytics struct {
		Store        string              `json:"store"`
		VisitCount   int                 `json:"visitCount"`
		TotalSpent   float64             `json:"totalSpent"`
		FirstVisited string              `json:"firstVisited"`
		LastVisited  string              `json:"lastVisited"`
		Categories   []string            `json:"categories"`
		PopularDays  []DayCount          `json:"popularDays"`
		MonthlyTrend []MonthlyStoreTrend `json:"monthlyTrend"`
	}

	// MonthlyAmount is one month of a category's series.
	MonthlyAmount struct {
		Month  string  `json:"month"`
		Amount float64 `json:"amount"`
		Count  int     `json:"count"`
	}

	// CategoryTrend is the per-category trend view. GrowthRate compares
	// the average of the last three months against the three before
	// them, in percent, and is zero when fewer than six months exist.
	CategoryTrend struct {
		Category               string             `json:"category"`
		MonthlySeries          []MonthlyAmount    `json:"monthlySeries"`
		GrowthRate             float64            `json:"growthRate"`
		LargestTransaction     core.Transaction   `json:"largestTransaction"`
		SmallestTransaction    core.Transaction   `json:"smallestTransaction"`
		AverageTransactionSize float64            `json:"averageTransactionSize"`
		TopStores              []StoreSpend       `json:"topStores"`
		WeekdaySpending        map[string]float64 `json:"weekdaySpending"`
	}

	// HeatmapEntry is one calendar cell of the spending heatmap.
	HeatmapEntry struct {
		Date             string   `json:"date"`
		Amount           float64  `json:"amount"`
		TransactionCount int      `json:"transactionCount"`
		Categories       []string `json:"categories"`
		DayOfWeek        string   `json:"dayOfWeek"`
		WeekOfYear       int      `json:"weekOfYear"`
	}
)

const preferredStoreLimit = 10

// PaymentPatterns derives one pattern per person appearing in any share
// of the filtered transactions. Results are sorted by person name.
func PaymentPatterns(txs []core.Transaction, f core.AnalysisFilters, mapping core.StoreMapping) []PaymentPattern {
	filtered := Filter(txs, f, mapping)
	reverse := mapping.ReverseIndex()

	patterns := make(map[string]*PaymentPattern)
	txCount := make(map[string]int)

	ensure := func(person string) *PaymentPattern {
		p, ok := patterns[person]
		if !ok {
			p = &PaymentPattern{
				Person:           person,
				Categories:       make(map[string]CategoryStat),
				WeekdayFrequency: make(map[string]int),
				MonthlySpending:  make(map[string]float64),
				PreferredStores:  []StoreSpend{},
			}
			patterns[person] = p
		}
		return p
	}

	for _, t := range filtered {
		weekday := weekdayName(t.Date)
		month := t.Month()
		for _, s := range t.Shares {
			p := ensure(s.Name)
			stat := p.Categories[t.Category]
			stat.Amount += math.Abs(s.Amount)
			stat.Count++
			p.Categories[t.Category] = stat
			p.WeekdayFrequency[weekday]++
			p.MonthlySpending[month] += math.Abs(s.Amount)
			txCount[s.Name]++
		}
	}

	// Second pass: rank stores by the person's absolute share spend,
	// grouped under the canonical store name.
	storeSpend := make(map[string]map[string]float64)
	for _, t := range filtered {
		store := canonicalOrRaw(t.Description, reverse)
		for _, s := range t.Shares {
			if _, ok := patterns[s.Name]; !ok {
				continue
			}
			if storeSpend[s.Name] == nil {
				storeSpend[s.Name] = make(map[string]float64)
			}
			storeSpend[s.Name][store] += math.Abs(s.Amount)
		}
	}

	out := make([]PaymentPattern, 0, len(patterns))
	for person, p := range patterns {
		var total float64
		for _, stat := range p.Categories {
			total += stat.Amount
		}
		if txCount[person] > 0 {
			p.AverageTransactionSize = total / float64(txCount[person])
		}
		p.PreferredStores = topStores(storeSpend[person], preferredStoreLimit)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Person < out[j].Person })
	return out
}

// StoreVisits aggregates the filtered transactions per canonical store,
// returning the list sorted by total spent, highest first.
func StoreVisits(txs []core.Transaction, f core.AnalysisFilters, mapping core.StoreMapping) []StoreAnalytics {
	filtered := Filter(txs, f, mapping)
	reverse := mapping.ReverseIndex()

	type storeAccum struct {
		analytics  StoreAnalytics
		categories map[string]struct{}
		days       map[string]int
		monthly    map[string]*MonthlyStoreTrend
	}
	stores := make(map[string]*storeAccum)

	for _, t := range filtered {
		name := canonicalOrRaw(t.Description, reverse)
		acc, ok := stores[name]
		if !ok {
			acc = &storeAccum{
				analytics:  StoreAnalytics{Store: name, FirstVisited: t.Date, LastVisited: t.Date},
				categories: make(map[string]struct{}),
				days:       make(map[string]int),
				monthly:    make(map[string]*MonthlyStoreTrend),
			}
			stores[name] = acc
		}

		acc.analytics.VisitCount++
		acc.analytics.TotalSpent += t.Cost
		if t.Date < acc.analytics.FirstVisited {
			acc.analytics.FirstVisited = t.Date
		}
		if t.Date > acc.analytics.LastVisited {
			acc.analytics.LastVisited = t.Date
		}
		acc.categories[t.Category] = struct{}{}
		acc.days[weekdayName(t.Date)]++

		month := t.Month()
		trend, ok := acc.monthly[month]
		if !ok {
			trend = &MonthlyStoreTrend{Month: month}
			acc.monthly[month] = trend
		}
		trend.Amount += t.Cost
		trend.Visits++
	}

	out := make([]StoreAnalytics, 0, len(stores))
	for _, acc := range stores {
		a := acc.analytics

		a.Categories = make([]string, 0, len(acc.categories))
		for c := range acc.categories {
			a.Categories = append(a.Categories, c)
		}
		sort.Strings(a.Categories)

		a.PopularDays = make([]DayCount, 0, len(acc.days))
		for day, count := range acc.days {
			a.PopularDays = append(a.PopularDays, DayCount{Day: day, Count: count})
		}
		sort.Slice(a.PopularDays, func(i, j int) bool {
			if a.PopularDays[i].Count != a.PopularDays[j].Count {
				return a.PopularDays[i].Count > a.PopularDays[j].Count
			}
			return a.PopularDays[i].Day < a.PopularDays[j].Day
		})

		a.MonthlyTrend = make([]MonthlyStoreTrend, 0, len(acc.monthly))
		for _, trend := range acc.monthly {
			a.MonthlyTrend = append(a.MonthlyTrend, *trend)
		}
		sort.Slice(a.MonthlyTrend, func(i, j int) bool { return a.MonthlyTrend[i].Month < a.MonthlyTrend[j].Month })

		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSpent != out[j].TotalSpent {
			return out[i].TotalSpent > out[j].TotalSpent
		}
		return out[i].Store < out[j].Store
	})
	return out
}

const topStoreLimit = 5

// CategoryTrends aggregates the filtered transactions per raw category,
// sorted by total spend across all months, highest first.
func CategoryTrends(txs []core.Transaction, f core.AnalysisFilters, mapping core.StoreMapping) []CategoryTrend {
	filtered := Filter(txs, f, mapping)
	reverse := mapping.ReverseIndex()

	type catAccum struct {
		monthly   map[string]*MonthlyAmount
		stores    map[string]float64
		weekdays  map[string]float64
		largest   core.Transaction
		smallest  core.Transaction
		total     float64
		count     int
		populated bool
	}
	cats := make(map[string]*catAccum)

	for _, t := range filtered {
		acc, ok := cats[t.Category]
		if !ok {
			acc = &catAccum{
				monthly:  make(map[string]*MonthlyAmount),
				stores:   make(map[string]float64),
				weekdays: make(map[string]float64),
			}
			cats[t.Category] = acc
		}

		month := t.Month()
		ma, ok := acc.monthly[month]
		if !ok {
			ma = &MonthlyAmount{Month: month}
			acc.monthly[month] = ma
		}
		ma.Amount += t.Cost
		ma.Count++

		if !acc.populated || t.Cost > acc.largest.Cost {
			acc.largest = t
		}
		if !acc.populated || t.Cost < acc.smallest.Cost {
			acc.smallest = t
		}
		acc.populated = true

		acc.stores[canonicalOrRaw(t.Description, reverse)] += t.Cost
		acc.weekdays[weekdayName(t.Date)] += t.Cost
		acc.total += t.Cost
		acc.count++
	}

	out := make([]CategoryTrend, 0, len(cats))
	totals := make(map[string]float64, len(cats))
	for category, acc := range cats {
		trend := CategoryTrend{
			Category:            category,
			LargestTransaction:  acc.largest,
			SmallestTransaction: acc.smallest,
			TopStores:           topStores(acc.stores, topStoreLimit),
			WeekdaySpending:     acc.weekdays,
		}

		trend.MonthlySeries = make([]MonthlyAmount, 0, len(acc.monthly))
		for _, ma := range acc.monthly {
			trend.MonthlySeries = append(trend.MonthlySeries, *ma)
		}
		sort.Slice(trend.MonthlySeries, func(i, j int) bool {
			return trend.MonthlySeries[i].Month < trend.MonthlySeries[j].Month
		})

		trend.GrowthRate = growthRate(trend.MonthlySeries)
		if acc.count > 0 {
			trend.AverageTransactionSize = acc.total / float64(acc.count)
		}

		totals[category] = acc.total
		out = append(out, trend)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := totals[out[i].Category], totals[out[j].Category]
		if ti != tj {
			return ti > tj
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// SpendingHeatmap groups transactions by date into calendar cells. The
// optional start/end bounds are inclusive; empty strings mean unbounded.
func SpendingHeatmap(txs []core.Transaction, startDate, endDate string) []HeatmapEntry {
	type dayAccum struct {
		entry      HeatmapEntry
		categories map[string]struct{}
	}
	days := make(map[string]*dayAccum)

	for _, t := range txs {
		if startDate != "" && t.Date < startDate {
			continue
		}
		if endDate != "" && t.Date > endDate {
			continue
		}
		acc, ok := days[t.Date]
		if !ok {
			acc = &dayAccum{
				entry:      HeatmapEntry{Date: t.Date, DayOfWeek: weekdayName(t.Date), WeekOfYear: weekOfYear(t.Date)},
				categories: make(map[string]struct{}),
			}
			days[t.Date] = acc
		}
		acc.entry.Amount += t.Cost
		acc.entry.TransactionCount++
		acc.categories[t.Category] = struct{}{}
	}

	out := make([]HeatmapEntry, 0, len(days))
	for _, acc := range days {
		e := acc.entry
		e.Categories = make([]string, 0, len(acc.categories))
		for c := range acc.categories {
			e.Categories = append(e.Categories, c)
		}
		sort.Strings(e.Categories)
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// growthRate is the percent change between the average of the last three
// months and the average of the three before them. Fewer than six months
// of data, or a zero prior average, yield zero.
func growthRate(series []MonthlyAmount) float64 {
	if len(series) < 6 {
		return 0
	}
	recent := avgAmount(series[len(series)-3:])
	prior := avgAmount(series[len(series)-6 : len(series)-3])
	if prior == 0 {
		return 0
	}
	return (recent - prior) / prior * 100
}

func avgAmount(series []MonthlyAmount) float64 {
	var sum float64
	for _, m := range series {
		sum += m.Amount
	}
	return sum / float64(len(series))
}

func topStores(spend map[string]float64, limit int) []StoreSpend {
	ranked := make([]StoreSpend, 0, len(spend))
	for store, amount := range spend {
		ranked = append(ranked, StoreSpend{Store: store, Amount: amount})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Amount != ranked[j].Amount {
			return ranked[i].Amount > ranked[j].Amount
		}
		return ranked[i].Store < ranked[j].Store
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

func weekdayName(date string) string {
	t, err := time.Parse(core.DateLayout, date)
	if err != nil {
		return ""
	}
	return t.Weekday().String()
}

func weekOfYear(date string) int {
	t, err := time.Parse(core.DateLayout, date)
	if err != nil {
		return 0
	}
	_, week := t.ISOWeek()
	return week
}
