package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"splitlens/internal/core"
	"splitlens/internal/session"
	"splitlens/internal/session/memory"
)

const sampleCSV = `Date,Description,Category,Cost,Currency,Alice,Bob
2025-02-24,Mayuri,Groceries,42.56,USD,21.28,-21.28
2025-02-25,Mayuri Store,Groceries,27.62,USD,13.81,-13.81
`

func newTestService() (*SessionService, *memory.Store) {
	store := memory.New()
	return NewSessionService(store, nil), store
}

func TestImportCSV(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sess, result, err := svc.ImportCSV(ctx, strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if sess.ID == "" {
		t.Error("session ID not assigned")
	}
	if len(result.Transactions) != 2 || result.SkippedRows != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(sess.StoreMappings) != 0 {
		t.Errorf("new session should start with empty mappings, got %v", sess.StoreMappings)
	}

	stored, err := svc.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(stored.Transactions) != 2 {
		t.Errorf("stored transactions = %d, want 2", len(stored.Transactions))
	}
}

func TestImportCSVParseFailure(t *testing.T) {
	svc, _ := newTestService()
	if _, _, err := svc.ImportCSV(context.Background(), strings.NewReader("")); err == nil {
		t.Fatal("expected error for empty upload")
	}
}

func TestDeleteSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sess, _, err := svc.ImportCSV(ctx, strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if err := svc.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := svc.GetSession(ctx, sess.ID); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEnqueueImportWithoutAMQP(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	job, err := svc.EnqueueImport(ctx, "upload.csv", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("EnqueueImport: %v", err)
	}
	if job.Status != session.JobPending {
		t.Errorf("status = %q, want pending", job.Status)
	}
	if job.SessionID == "" {
		t.Error("job has no session")
	}

	// The session exists immediately, empty until the worker runs.
	sess, err := store.Get(ctx, job.SessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(sess.Transactions) != 0 {
		t.Errorf("expected empty session before processing, got %d transactions", len(sess.Transactions))
	}

	stored, err := svc.ImportJobStatus(ctx, job.ID)
	if err != nil {
		t.Fatalf("ImportJobStatus: %v", err)
	}
	if string(stored.Payload) != sampleCSV {
		t.Error("payload not persisted with the job")
	}
}

func TestProcessImportJob(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	job, err := svc.EnqueueImport(ctx, "upload.csv", []byte(sampleCSV))
	if err != nil {
		t.Fatalf("EnqueueImport: %v", err)
	}

	if err := svc.ProcessImportJob(ctx, job.ID); err != nil {
		t.Fatalf("ProcessImportJob: %v", err)
	}

	done, _ := svc.ImportJobStatus(ctx, job.ID)
	if done.Status != session.JobDone {
		t.Errorf("status = %q, want done", done.Status)
	}
	if done.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", done.Attempts)
	}

	sess, err := svc.GetSession(ctx, job.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if len(sess.Transactions) != 2 {
		t.Errorf("transactions = %d, want 2", len(sess.Transactions))
	}

	// Reprocessing a done job is a no-op, not a second attempt.
	if err := svc.ProcessImportJob(ctx, job.ID); err != nil {
		t.Fatalf("reprocess: %v", err)
	}
	done, _ = svc.ImportJobStatus(ctx, job.ID)
	if done.Attempts != 1 {
		t.Errorf("attempts after reprocess = %d, want 1", done.Attempts)
	}
}

func TestProcessImportJobBadPayload(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	job, err := svc.EnqueueImport(ctx, "broken.csv", []byte("not,a,valid\nheader\n"))
	if err != nil {
		t.Fatalf("EnqueueImport: %v", err)
	}
	if err := svc.ProcessImportJob(ctx, job.ID); err == nil {
		t.Fatal("expected parse error")
	}

	failed, _ := svc.ImportJobStatus(ctx, job.ID)
	if failed.Status != session.JobFailed {
		t.Errorf("status = %q, want failed", failed.Status)
	}
	if failed.Error == "" {
		t.Error("failure reason not recorded")
	}
}

func TestProcessImportJobMissing(t *testing.T) {
	svc, _ := newTestService()
	if err := svc.ProcessImportJob(context.Background(), "nope"); !errors.Is(err, session.ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestAnalyzeAndApplyMappings(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sess, _, err := svc.ImportCSV(ctx, strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}

	groupings, err := svc.AnalyzeSimilarStores(ctx, sess.ID)
	if err != nil {
		t.Fatalf("AnalyzeSimilarStores: %v", err)
	}
	if len(groupings) != 1 || groupings[0].CanonicalName != "Mayuri" {
		t.Fatalf("unexpected groupings: %+v", groupings)
	}

	mapping := core.StoreMapping{groupings[0].CanonicalName: groupings[0].Variations}
	updated, err := svc.ApplyMappings(ctx, sess.ID, mapping)
	if err != nil {
		t.Fatalf("ApplyMappings: %v", err)
	}
	for _, tx := range updated.Transactions {
		if tx.Description != "Mayuri" {
			t.Errorf("description = %q, want canonical Mayuri", tx.Description)
		}
	}

	// The rewrite and the mapping both survive a reload.
	reloaded, err := svc.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if reloaded.Transactions[1].Description != "Mayuri" {
		t.Error("rewritten transactions not persisted")
	}
	if len(reloaded.StoreMappings["Mayuri"]) != 1 {
		t.Errorf("mappings not persisted: %v", reloaded.StoreMappings)
	}
}

func TestApplyMappingsMergesWithExisting(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	sess, _, err := svc.ImportCSV(ctx, strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if _, err := svc.ApplyMappings(ctx, sess.ID, core.StoreMapping{"Mayuri": {"Mayuri Store"}}); err != nil {
		t.Fatalf("first ApplyMappings: %v", err)
	}
	updated, err := svc.ApplyMappings(ctx, sess.ID, core.StoreMapping{"Conad": {"Conad City"}})
	if err != nil {
		t.Fatalf("second ApplyMappings: %v", err)
	}
	if len(updated.StoreMappings) != 2 {
		t.Errorf("mappings = %v, want both groupings kept", updated.StoreMappings)
	}
}

func TestMergeStores(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	csv := `Date,Description,Category,Cost,Currency,Alice,Bob
2025-01-01,Mayuri,Groceries,10,USD,5,-5
2025-01-02,Mayuri Store,Groceries,12,USD,6,-6
2025-01-03,Mayuri Store,Groceries,14,USD,7,-7
`
	sess, _, err := svc.ImportCSV(ctx, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}

	merged, err := svc.MergeStores(ctx, sess.ID,
		core.StoreGrouping{CanonicalName: "Mayuri"},
		core.StoreGrouping{CanonicalName: "Mayuri Store"})
	if err != nil {
		t.Fatalf("MergeStores: %v", err)
	}
	if merged.CanonicalName != "Mayuri Store" {
		t.Errorf("canonical = %q, want the more frequent name", merged.CanonicalName)
	}

	reloaded, _ := svc.GetSession(ctx, sess.ID)
	for _, tx := range reloaded.Transactions {
		if tx.Description != "Mayuri Store" {
			t.Errorf("description = %q, want Mayuri Store", tx.Description)
		}
	}
	if _, ok := reloaded.StoreMappings["Mayuri"]; ok {
		t.Error("old canonical entry should be removed from the mapping")
	}
	if vars := reloaded.StoreMappings["Mayuri Store"]; len(vars) != 1 || vars[0] != "Mayuri" {
		t.Errorf("merged mapping = %v", reloaded.StoreMappings)
	}
}

func TestSplitStores(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	csv := `Date,Description,Category,Cost,Currency,Alice,Bob
2025-01-01,Mayuri,Groceries,10,USD,5,-5
2025-01-02,Mayuri Store,Groceries,12,USD,6,-6
2025-01-03,Mayuri Downtown,Groceries,14,USD,7,-7
`
	sess, _, err := svc.ImportCSV(ctx, strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	group := core.StoreGrouping{CanonicalName: "Mayuri", Variations: []string{"Mayuri Store", "Mayuri Downtown"}}
	if _, err := svc.ApplyMappings(ctx, sess.ID, core.StoreMapping{group.CanonicalName: group.Variations}); err != nil {
		t.Fatalf("ApplyMappings: %v", err)
	}

	res, err := svc.SplitStores(ctx, sess.ID, group, []string{"Mayuri Downtown"})
	if err != nil {
		t.Fatalf("SplitStores: %v", err)
	}
	if res.NewGroup.CanonicalName != "Mayuri Downtown" {
		t.Errorf("new group = %+v", res.NewGroup)
	}

	reloaded, _ := svc.GetSession(ctx, sess.ID)
	if vars := reloaded.StoreMappings["Mayuri"]; len(vars) != 1 || vars[0] != "Mayuri Store" {
		t.Errorf("original mapping = %v", reloaded.StoreMappings)
	}
	if _, ok := reloaded.StoreMappings["Mayuri Downtown"]; !ok {
		t.Error("split group missing from mapping")
	}
}

func TestSessionOperationsOnMissingSession(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.AnalyzeSimilarStores(ctx, "nope"); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("AnalyzeSimilarStores err = %v", err)
	}
	if _, err := svc.ApplyMappings(ctx, "nope", core.StoreMapping{}); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("ApplyMappings err = %v", err)
	}
}
