package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"splitlens/internal/core"
	"splitlens/internal/session"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testSession(id string) session.Session {
	return session.Session{
		ID: id,
		Transactions: []core.Transaction{
			{
				Date:        "2025-02-24",
				Description: "Mayuri",
				Category:    "Groceries",
				Cost:        42.56,
				Currency:    "USD",
				Shares:      []core.Share{{Name: "Alice", Amount: 21.28}, {Name: "Bob", Amount: -21.28}},
			},
			{
				Date:        "2025-02-25",
				Description: "Mayuri Store",
				Category:    "Groceries",
				Cost:        27.62,
				Currency:    "USD",
				Shares:      []core.Share{{Name: "Alice", Amount: 13.81}, {Name: "Bob", Amount: -13.81}},
			},
		},
		StoreMappings: core.StoreMapping{},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Put(ctx, testSession("s1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "s1" {
		t.Errorf("id = %q", got.ID)
	}
	if len(got.Transactions) != 2 {
		t.Fatalf("transactions = %d, want 2", len(got.Transactions))
	}
	// Insertion order survives the round trip.
	if got.Transactions[0].Description != "Mayuri" || got.Transactions[1].Description != "Mayuri Store" {
		t.Errorf("order lost: %+v", got.Transactions)
	}
	first := got.Transactions[0]
	if first.Cost != 42.56 || len(first.Shares) != 2 || first.Shares[1].Amount != -21.28 {
		t.Errorf("unexpected transaction: %+v", first)
	}
	if got.StoreMappings == nil {
		t.Error("mappings decoded as nil")
	}
}

func TestGetMissing(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPutUpsertsExisting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	sess := testSession("s1")
	if err := repo.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}

	sess.Transactions = sess.Transactions[:1]
	sess.StoreMappings = core.StoreMapping{"Mayuri": {"Mayuri Store"}}
	if err := repo.Put(ctx, sess); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	got, err := repo.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Transactions) != 1 {
		t.Errorf("transactions = %d, want 1 after upsert", len(got.Transactions))
	}
	if len(got.StoreMappings["Mayuri"]) != 1 {
		t.Errorf("mappings = %v", got.StoreMappings)
	}
}

func TestUpdateTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Put(ctx, testSession("s1")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	replacement := []core.Transaction{{
		Date: "2025-03-01", Description: "Conad", Category: "Groceries", Cost: 9.99, Currency: "EUR",
		Shares: []core.Share{{Name: "Alice", Amount: 9.99}},
	}}
	if err := repo.UpdateTransactions(ctx, "s1", replacement); err != nil {
		t.Fatalf("UpdateTransactions: %v", err)
	}

	got, _ := repo.Get(ctx, "s1")
	if len(got.Transactions) != 1 || got.Transactions[0].Description != "Conad" {
		t.Errorf("transactions = %+v", got.Transactions)
	}

	if err := repo.UpdateTransactions(ctx, "missing", replacement); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateMappings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Put(ctx, testSession("s1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	m := core.StoreMapping{"Mayuri": {"Mayuri Store"}}
	if err := repo.UpdateMappings(ctx, "s1", m); err != nil {
		t.Fatalf("UpdateMappings: %v", err)
	}

	got, _ := repo.Get(ctx, "s1")
	if len(got.StoreMappings["Mayuri"]) != 1 {
		t.Errorf("mappings = %v", got.StoreMappings)
	}

	if err := repo.UpdateMappings(ctx, "missing", m); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Put(ctx, testSession("s1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := repo.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, "s1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "s1"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}

	// Re-inserting after the cascade must not trip orphaned rows.
	if err := repo.Put(ctx, testSession("s1")); err != nil {
		t.Fatalf("re-Put: %v", err)
	}
	got, _ := repo.Get(ctx, "s1")
	if len(got.Transactions) != 2 {
		t.Errorf("transactions = %d, want 2", len(got.Transactions))
	}
}

func TestJobPersistence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Put(ctx, session.Session{ID: "s1", StoreMappings: core.StoreMapping{}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	payload := []byte("Date,Description,Category,Cost,Currency,Alice\n2025-01-01,Shop,Food,10,EUR,10\n")
	job := session.ImportJob{
		ID:        "j1",
		SessionID: "s1",
		FileName:  "upload.csv",
		Payload:   payload,
		Status:    session.JobPending,
	}
	if err := repo.EnqueueJob(ctx, job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	got, err := repo.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != session.JobPending || got.FileName != "upload.csv" {
		t.Errorf("unexpected job: %+v", got)
	}
	if string(got.Payload) != string(payload) {
		t.Error("payload not persisted intact")
	}

	if err := repo.MarkJob(ctx, "j1", session.JobProcessing, ""); err != nil {
		t.Fatalf("MarkJob: %v", err)
	}
	got, _ = repo.GetJob(ctx, "j1")
	if got.Status != session.JobProcessing || got.Attempts != 1 {
		t.Errorf("after processing: status=%q attempts=%d", got.Status, got.Attempts)
	}

	if err := repo.MarkJob(ctx, "j1", session.JobFailed, "boom"); err != nil {
		t.Fatalf("MarkJob: %v", err)
	}
	got, _ = repo.GetJob(ctx, "j1")
	if got.Status != session.JobFailed || got.Error != "boom" || got.Attempts != 1 {
		t.Errorf("after failure: %+v", got)
	}
}

func TestJobNotFound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.GetJob(ctx, "nope"); !errors.Is(err, session.ErrJobNotFound) {
		t.Errorf("GetJob err = %v, want ErrJobNotFound", err)
	}
	if err := repo.MarkJob(ctx, "nope", session.JobDone, ""); !errors.Is(err, session.ErrJobNotFound) {
		t.Errorf("MarkJob err = %v, want ErrJobNotFound", err)
	}
}
