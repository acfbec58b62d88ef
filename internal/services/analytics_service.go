package services

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"splitlens/internal/analytics"
	"splitlens/internal/core"
	"splitlens/internal/session"
)

// AnalyticsService computes read-only analytics over session snapshots.
//
// Computation failures never propagate to callers: every entry point
// recovers and returns its zero-valued result instead, so one bad
// dataset cannot take an endpoint down. Missing sessions and invalid
// parameters are still reported as errors.
type AnalyticsService struct {
	store session.Reader
}

func NewAnalyticsService(store session.Reader) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// Summary bundles the dashboard panels computed in one round trip.
type Summary struct {
	Balances   analytics.BalanceAnalytics `json:"balances"`
	ByCategory []analytics.SpendingPoint  `json:"byCategory"`
	OverTime   []analytics.SpendingPoint  `json:"overTime"`
	TopStores  []analytics.StoreAnalytics `json:"topStores"`
}

// BudgetReport pairs recommendations with next-month predictions.
type BudgetReport struct {
	Recommendations []analytics.BudgetRecommendation `json:"recommendations"`
	Predictions     []analytics.PredictedSpending    `json:"predictions"`
}

func logPanic(ctx context.Context, op, sessionID string, r any) {
	slog.ErrorContext(ctx, "Analytics computation failed",
		"op", op,
		"session_id", sessionID,
		"panic", r)
}

func (s *AnalyticsService) snapshot(ctx context.Context, sessionID string) (session.Session, error) {
	return s.store.Get(ctx, sessionID)
}

func (s *AnalyticsService) SpendingOverTime(ctx context.Context, sessionID string, f core.AnalysisFilters, interval analytics.Interval) (points []analytics.SpendingPoint, err error) {
	sess, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, "spending_over_time", sessionID, r)
			points, err = []analytics.SpendingPoint{}, nil
		}
	}()
	return analytics.SpendingOverTime(sess.Transactions, f, sess.StoreMappings, interval)
}

func (s *AnalyticsService) SpendingBy(ctx context.Context, sessionID string, f core.AnalysisFilters, dim analytics.Dimension) (points []analytics.SpendingPoint, err error) {
	sess, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, "spending_by", sessionID, r)
			points, err = []analytics.SpendingPoint{}, nil
		}
	}()
	return analytics.SpendingBy(sess.Transactions, f, sess.StoreMappings, dim)
}

func (s *AnalyticsService) Transactions(ctx context.Context, sessionID string, f core.AnalysisFilters, page, pageSize int) (pageOut analytics.TransactionPage, err error) {
	sess, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return analytics.TransactionPage{}, err
	}
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, "transactions", sessionID, r)
			pageOut, err = analytics.TransactionPage{Transactions: []core.Transaction{}}, nil
		}
	}()
	return analytics.DetailedTransactions(sess.Transactions, f, sess.StoreMappings, page, pageSize)
}

func (s *AnalyticsService) Balances(ctx context.Context, sessionID string, f core.AnalysisFilters) (out analytics.BalanceAnalytics, err error) {
	sess, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return analytics.BalanceAnalytics{}, err
	}
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, "balances", sessionID, r)
			out, err = analytics.BalanceAnalytics{}, nil
		}
	}()
	return analytics.Balances(sess.Transactions, f, sess.StoreMappings), nil
}

func (s *AnalyticsService) PaymentPatterns(ctx context.Context, sessionID string, f core.AnalysisFilters) (out []analytics.PaymentPattern, err error) {
	sess, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, "payment_patterns", sessionID, r)
			out, err = []analytics.PaymentPattern{}, nil
		}
	}()
	return analytics.PaymentPatterns(sess.Transactions, f, sess.StoreMappings), nil
}

func (s *AnalyticsService) StoreVisits(ctx context.Context, sessionID string, f core.AnalysisFilters) (out []analytics.StoreAnalytics, err error) {
	sess, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, "store_analytics", sessionID, r)
			out, err = []analytics.StoreAnalytics{}, nil
		}
	}()
	return analytics.StoreVisits(sess.Transactions, f, sess.StoreMappings), nil
}

func (s *AnalyticsService) CategoryTrends(ctx context.Context, sessionID string, f core.AnalysisFilters) (out []analytics.CategoryTrend, err error) {
	sess, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, "category_trends", sessionID, r)
			out, err = []analytics.CategoryTrend{}, nil
		}
	}()
	return analytics.CategoryTrends(sess.Transactions, f, sess.StoreMappings), nil
}

func (s *AnalyticsService) Heatmap(ctx context.Context, sessionID, startDate, endDate string) (out []analytics.HeatmapEntry, err error) {
	sess, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, "heatmap", sessionID, r)
			out, err = []analytics.HeatmapEntry{}, nil
		}
	}()
	return analytics.SpendingHeatmap(sess.Transactions, startDate, endDate), nil
}

func (s *AnalyticsService) Budget(ctx context.Context, sessionID string, f core.AnalysisFilters) (out BudgetReport, err error) {
	sess, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return BudgetReport{}, err
	}
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, "budget", sessionID, r)
			out, err = BudgetReport{
				Recommendations: []analytics.BudgetRecommendation{},
				Predictions:     []analytics.PredictedSpending{},
			}, nil
		}
	}()
	return BudgetReport{
		Recommendations: analytics.BudgetRecommendations(sess.Transactions, f, sess.StoreMappings),
		Predictions:     analytics.PredictNextMonth(sess.Transactions, f, sess.StoreMappings),
	}, nil
}

func (s *AnalyticsService) Anomalies(ctx context.Context, sessionID string, f core.AnalysisFilters) (out []analytics.Anomaly, err error) {
	sess, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			logPanic(ctx, "anomalies", sessionID, r)
			out, err = []analytics.Anomaly{}, nil
		}
	}()
	return analytics.DetectAnomalies(sess.Transactions, f, sess.StoreMappings), nil
}

// DashboardSummary computes the independent dashboard panels
// concurrently over one snapshot.
func (s *AnalyticsService) DashboardSummary(ctx context.Context, sessionID string, f core.AnalysisFilters) (Summary, error) {
	sess, err := s.snapshot(ctx, sessionID)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(gctx, "summary_balances", sessionID, r)
				err = nil
			}
		}()
		summary.Balances = analytics.Balances(sess.Transactions, f, sess.StoreMappings)
		return nil
	})
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(gctx, "summary_by_category", sessionID, r)
				err = nil
			}
		}()
		summary.ByCategory, err = analytics.SpendingBy(sess.Transactions, f, sess.StoreMappings, analytics.DimensionCategory)
		return err
	})
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(gctx, "summary_over_time", sessionID, r)
				err = nil
			}
		}()
		summary.OverTime, err = analytics.SpendingOverTime(sess.Transactions, f, sess.StoreMappings, analytics.IntervalMonth)
		return err
	})
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				logPanic(gctx, "summary_top_stores", sessionID, r)
				err = nil
			}
		}()
		summary.TopStores = analytics.StoreVisits(sess.Transactions, f, sess.StoreMappings)
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return summary, nil
}
