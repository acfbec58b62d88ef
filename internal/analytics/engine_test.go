package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitlens/internal/core"
	"splitlens/internal/stores"
)

func TestSpendingOverTime(t *testing.T) {
	txs := []core.Transaction{
		mkTx("2025-01-15", "A", "Food", 10),
		mkTx("2025-01-20", "B", "Food", 20),
		mkTx("2025-02-03", "C", "Food", 30),
	}

	t.Run("month buckets", func(t *testing.T) {
		got, err := SpendingOverTime(txs, core.AnalysisFilters{}, nil, IntervalMonth)
		require.NoError(t, err)
		assert.Equal(t, []SpendingPoint{
			{Label: "2025-01", Amount: 30},
			{Label: "2025-02", Amount: 30},
		}, got)
	})

	t.Run("day buckets", func(t *testing.T) {
		got, err := SpendingOverTime(txs, core.AnalysisFilters{}, nil, IntervalDay)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "2025-01-15", got[0].Label)
	})

	t.Run("week buckets start on Sunday", func(t *testing.T) {
		// 2025-01-15 is a Wednesday; its week starts 2025-01-12.
		got, err := SpendingOverTime(txs[:1], core.AnalysisFilters{}, nil, IntervalWeek)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "2025-01-12", got[0].Label)
	})

	t.Run("unknown interval", func(t *testing.T) {
		_, err := SpendingOverTime(txs, core.AnalysisFilters{}, nil, Interval("year"))
		assert.Error(t, err)
	})

	t.Run("empty input", func(t *testing.T) {
		got, err := SpendingOverTime(nil, core.AnalysisFilters{}, nil, IntervalMonth)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestSpendingBy(t *testing.T) {
	txs, mapping := mayuriFixture()

	t.Run("category sums cost", func(t *testing.T) {
		got, err := SpendingBy(txs, core.AnalysisFilters{}, mapping, DimensionCategory)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Groceries", got[0].Label)
		assert.InDelta(t, 70.18, got[0].Amount, 1e-9)
	})

	t.Run("person sums signed shares", func(t *testing.T) {
		got, err := SpendingBy(txs, core.AnalysisFilters{}, mapping, DimensionPerson)
		require.NoError(t, err)
		require.Len(t, got, 2)
		byName := map[string]float64{got[0].Label: got[0].Amount, got[1].Label: got[1].Amount}
		assert.InDelta(t, 35.09, byName["Alice"], 1e-9)
		assert.InDelta(t, -35.09, byName["Bob"], 1e-9)
	})

	t.Run("store groups canonical names only", func(t *testing.T) {
		withUnmapped := append(core.CloneTransactions(txs), mkTx("2025-02-26", "Unmapped Deli", "Food", 5))
		got, err := SpendingBy(withUnmapped, core.AnalysisFilters{}, mapping, DimensionStore)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Mayuri", got[0].Label)
		assert.InDelta(t, 70.18, got[0].Amount, 1e-9)
	})

	t.Run("unknown dimension", func(t *testing.T) {
		_, err := SpendingBy(txs, core.AnalysisFilters{}, mapping, Dimension("vendor"))
		assert.Error(t, err)
	})
}

// The upload-confirm-analyze round trip: clustering proposes the
// grouping, the applied mapping rewrites descriptions, and the store
// aggregation reports a single store afterwards.
func TestStoreDeduplicationRoundTrip(t *testing.T) {
	txs := []core.Transaction{
		mkTx("2025-02-24", "Mayuri", "Groceries", 42.56),
		mkTx("2025-02-25", "Mayuri Store", "Groceries", 27.62),
	}

	groupings := stores.AnalyzeSimilarStores(txs)
	require.Len(t, groupings, 1)
	require.Equal(t, "Mayuri", groupings[0].CanonicalName)
	require.Equal(t, []string{"Mayuri Store"}, groupings[0].Variations)

	mapping := core.StoreMapping{groupings[0].CanonicalName: groupings[0].Variations}
	rewritten := stores.ApplyStoreMappings(txs, mapping)

	bySt, err := SpendingBy(rewritten, core.AnalysisFilters{}, mapping, DimensionStore)
	require.NoError(t, err)
	require.Len(t, bySt, 1)
	assert.Equal(t, "Mayuri", bySt[0].Label)
	assert.InDelta(t, 70.18, bySt[0].Amount, 1e-9)

	balances := Balances(rewritten, core.AnalysisFilters{}, mapping)
	assert.InDelta(t, 35.09, balances.CurrentBalance["Alice"], 1e-9)
	assert.InDelta(t, -35.09, balances.CurrentBalance["Bob"], 1e-9)
}

func TestDetailedTransactions(t *testing.T) {
	txs, mapping := mayuriFixture()

	t.Run("rewrites display descriptions without touching the source", func(t *testing.T) {
		page, err := DetailedTransactions(txs, core.AnalysisFilters{}, mapping, 1, 50)
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.Equal(t, "Mayuri", page.Transactions[0].Description)
		assert.Equal(t, "Mayuri", page.Transactions[1].Description)
		assert.Equal(t, "Mayuri Store", txs[1].Description)
	})

	t.Run("out of range page", func(t *testing.T) {
		page, err := DetailedTransactions(txs, core.AnalysisFilters{}, mapping, 9, 50)
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.Empty(t, page.Transactions)
	})

	t.Run("invalid page arguments", func(t *testing.T) {
		_, err := DetailedTransactions(txs, core.AnalysisFilters{}, mapping, 0, 50)
		assert.Error(t, err)
		_, err = DetailedTransactions(txs, core.AnalysisFilters{}, mapping, 1, 0)
		assert.Error(t, err)
	})
}

// Concatenating all pages reproduces the filtered set exactly once.
func TestDetailedTransactionsPagination(t *testing.T) {
	var txs []core.Transaction
	for i := 0; i < 23; i++ {
		txs = append(txs, mkTx(fmt.Sprintf("2025-01-%02d", i%28+1), fmt.Sprintf("store %d", i), "Food", float64(i+1)))
	}

	const pageSize = 5
	var collected []core.Transaction
	for page := 1; ; page++ {
		p, err := DetailedTransactions(txs, core.AnalysisFilters{}, nil, page, pageSize)
		require.NoError(t, err)
		require.Equal(t, len(txs), p.Total)
		if len(p.Transactions) == 0 {
			break
		}
		collected = append(collected, p.Transactions...)
	}
	assert.Equal(t, txs, collected)
}
