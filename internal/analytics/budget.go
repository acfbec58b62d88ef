package analytics

import (
	"math"
	"sort"

	"splitlens/internal/core"
)

type (
	// BudgetRecommendation is the statistical budget suggestion for one
	// category. Confidence is 1 for perfectly even monthly spending and
	// decays toward 0 as the monthly variance grows.
	BudgetRecommendation struct {
		Category              string  `json:"category"`
		CurrentMonthlyAverage float64 `json:"currentMonthlyAverage"`
		Trend                 string  `json:"trend"`
		SuggestedBudget       float64 `json:"suggestedBudget"`
		Confidence            float64 `json:"confidence"`
	}

	// PredictedSpending projects one category's next-month spending from
	// its monthly average and trend direction.
	PredictedSpending struct {
		Category                   string  `json:"category"`
		PredictedNextMonthSpending float64 `json:"predictedNextMonthSpending"`
		Confidence                 float64 `json:"confidence"`
	}

	// Anomaly flags a transaction whose cost sits more than two standard
	// deviations away from its category mean.
	Anomaly struct {
		Transaction core.Transaction `json:"transaction"`
		Type        string           `json:"type"`
		Score       float64          `json:"score"`
	}
)

const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"

	AnomalyUnusuallyHigh = "unusually_high"

	anomalyMinTransactions = 5
	anomalyZThreshold      = 2.0
	anomalyLimit           = 10
)

// BudgetRecommendations computes a suggestion per category with at least
// one month of data, sorted by suggested budget, highest first.
func BudgetRecommendations(txs []core.Transaction, f core.AnalysisFilters, mapping core.StoreMapping) []BudgetRecommendation {
	out := make([]BudgetRecommendation, 0)
	for category, months := range monthlySumsByCategory(Filter(txs, f, mapping)) {
		avg := mean(months)
		out = append(out, BudgetRecommendation{
			Category:              category,
			CurrentMonthlyAverage: avg,
			Trend:                 classifyTrend(months),
			SuggestedBudget:       avg * 1.2,
			Confidence:            confidence(months, avg),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SuggestedBudget != out[j].SuggestedBudget {
			return out[i].SuggestedBudget > out[j].SuggestedBudget
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// PredictNextMonth projects next-month spending per category: the monthly
// average scaled by 1.1 when increasing, 0.9 when decreasing, unchanged
// when stable, carrying the same confidence as the budget suggestion.
func PredictNextMonth(txs []core.Transaction, f core.AnalysisFilters, mapping core.StoreMapping) []PredictedSpending {
	out := make([]PredictedSpending, 0)
	for category, months := range monthlySumsByCategory(Filter(txs, f, mapping)) {
		avg := mean(months)
		predicted := avg
		switch classifyTrend(months) {
		case TrendIncreasing:
			predicted = avg * 1.1
		case TrendDecreasing:
			predicted = avg * 0.9
		}
		out = append(out, PredictedSpending{
			Category:                   category,
			PredictedNextMonthSpending: predicted,
			Confidence:                 confidence(months, avg),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PredictedNextMonthSpending != out[j].PredictedNextMonthSpending {
			return out[i].PredictedNextMonthSpending > out[j].PredictedNextMonthSpending
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// DetectAnomalies flags transactions whose cost z-score exceeds 2 in
// absolute value within their category. Only categories with at least
// five transactions are considered; the global list is sorted by score
// descending and truncated to the top ten.
func DetectAnomalies(txs []core.Transaction, f core.AnalysisFilters, mapping core.StoreMapping) []Anomaly {
	byCategory := make(map[string][]core.Transaction)
	for _, t := range Filter(txs, f, mapping) {
		byCategory[t.Category] = append(byCategory[t.Category], t)
	}

	out := make([]Anomaly, 0)
	for _, catTxs := range byCategory {
		if len(catTxs) < anomalyMinTransactions {
			continue
		}
		costs := make([]float64, len(catTxs))
		for i, t := range catTxs {
			costs[i] = t.Cost
		}
		avg := mean(costs)
		sd := stddev(costs, avg)
		if sd == 0 {
			continue
		}
		for _, t := range catTxs {
			z := (t.Cost - avg) / sd
			if math.Abs(z) > anomalyZThreshold {
				out = append(out, Anomaly{Transaction: t, Type: AnomalyUnusuallyHigh, Score: z})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > anomalyLimit {
		out = out[:anomalyLimit]
	}
	return out
}

// monthlySumsByCategory returns the chronological per-month cost sums of
// each category appearing in txs.
func monthlySumsByCategory(txs []core.Transaction) map[string][]float64 {
	type monthSum struct {
		month string
		sum   float64
	}
	byCategory := make(map[string]map[string]float64)
	for _, t := range txs {
		if byCategory[t.Category] == nil {
			byCategory[t.Category] = make(map[string]float64)
		}
		byCategory[t.Category][t.Month()] += t.Cost
	}

	out := make(map[string][]float64, len(byCategory))
	for category, months := range byCategory {
		ordered := make([]monthSum, 0, len(months))
		for month, sum := range months {
			ordered = append(ordered, monthSum{month, sum})
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].month < ordered[j].month })
		sums := make([]float64, len(ordered))
		for i, ms := range ordered {
			sums[i] = ms.sum
		}
		out[category] = sums
	}
	return out
}

// classifyTrend compares the mean of the last two months against the two
// before them. Fewer than three months default to stable.
func classifyTrend(months []float64) string {
	if len(months) < 3 {
		return TrendStable
	}
	recent := mean(months[len(months)-2:])
	priorStart := len(months) - 4
	if priorStart < 0 {
		priorStart = 0
	}
	prior := mean(months[priorStart : len(months)-2])
	switch {
	case recent > prior*1.1:
		return TrendIncreasing
	case recent < prior*0.9:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// confidence is clamp(1 - stddev/avg, 0, 1); a zero average has no
// meaningful spread ratio and scores zero.
func confidence(months []float64, avg float64) float64 {
	if avg == 0 {
		return 0
	}
	c := 1 - stddev(months, avg)/avg
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stddev is the population standard deviation.
func stddev(vals []float64, avg float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sq float64
	for _, v := range vals {
		d := v - avg
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)))
}
