// Package storage is the SQLite-backed session store. It persists session
// snapshots, their transactions and pending import jobs; the analytics
// core never sees it directly.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"splitlens/internal/core"
	"splitlens/internal/session"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

var _ session.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (session.Session, error) {
	var (
		sess         session.Session
		mappingsJSON string
	)
	row := r.db.QueryRowContext(ctx,
		"SELECT id, mappings, created_at, updated_at FROM sessions WHERE id = ?", id)
	if err := row.Scan(&sess.ID, &mappingsJSON, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, session.ErrNotFound
		}
		return session.Session{}, fmt.Errorf("select session: %w", err)
	}

	sess.StoreMappings = core.StoreMapping{}
	if err := json.Unmarshal([]byte(mappingsJSON), &sess.StoreMappings); err != nil {
		return session.Session{}, fmt.Errorf("decode mappings: %w", err)
	}

	txs, err := r.loadTransactions(ctx, id)
	if err != nil {
		return session.Session{}, err
	}
	sess.Transactions = txs
	return sess, nil
}

func (r *SQLiteRepository) loadTransactions(ctx context.Context, sessionID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, description, category, cost, currency, shares
		FROM transactions
		WHERE session_id = ?
		ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var (
			t          core.Transaction
			sharesJSON string
		)
		if err := rows.Scan(&t.Date, &t.Description, &t.Category, &t.Cost, &t.Currency, &sharesJSON); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if err := json.Unmarshal([]byte(sharesJSON), &t.Shares); err != nil {
			return nil, fmt.Errorf("decode shares: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) Put(ctx context.Context, sess session.Session) error {
	mappingsJSON, err := json.Marshal(sess.StoreMappings)
	if err != nil {
		return fmt.Errorf("encode mappings: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, mappings, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET mappings = excluded.mappings, updated_at = excluded.updated_at`,
		sess.ID, string(mappingsJSON), now, now); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if err := replaceTransactions(ctx, tx, sess.ID, sess.Transactions); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLiteRepository) UpdateTransactions(ctx context.Context, id string, txs []core.Transaction) error {
	if err := r.exists(ctx, id); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := replaceTransactions(ctx, tx, id, txs); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ? WHERE id = ?", time.Now(), id); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) UpdateMappings(ctx context.Context, id string, m core.StoreMapping) error {
	mappingsJSON, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode mappings: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET mappings = ?, updated_at = ? WHERE id = ?",
		string(mappingsJSON), time.Now(), id)
	if err != nil {
		return fmt.Errorf("update mappings: %w", err)
	}
	return requireRow(res, session.ErrNotFound)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRow(res, session.ErrNotFound)
}

func (r *SQLiteRepository) EnqueueJob(ctx context.Context, job session.ImportJob) error {
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO import_jobs (id, session_id, file_name, payload, status, attempts, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SessionID, job.FileName, job.Payload, string(job.Status), job.Attempts, job.Error, job.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("insert import job: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (session.ImportJob, error) {
	var (
		job    session.ImportJob
		status string
	)
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, file_name, payload, status, attempts, error, created_at, updated_at
		FROM import_jobs WHERE id = ?`, id)
	err := row.Scan(&job.ID, &job.SessionID, &job.FileName, &job.Payload,
		&status, &job.Attempts, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.ImportJob{}, session.ErrJobNotFound
		}
		return session.ImportJob{}, fmt.Errorf("select import job: %w", err)
	}
	job.Status = session.JobStatus(status)
	return job, nil
}

func (r *SQLiteRepository) MarkJob(ctx context.Context, id string, status session.JobStatus, errMsg string) error {
	attemptBump := 0
	if status == session.JobProcessing {
		attemptBump = 1
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE import_jobs
		SET status = ?, error = ?, attempts = attempts + ?, updated_at = ?
		WHERE id = ?`,
		string(status), errMsg, attemptBump, time.Now(), id)
	if err != nil {
		return fmt.Errorf("mark import job: %w", err)
	}
	return requireRow(res, session.ErrJobNotFound)
}

func (r *SQLiteRepository) exists(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return session.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	return nil
}

func replaceTransactions(ctx context.Context, tx *sql.Tx, sessionID string, txs []core.Transaction) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (session_id, position, date, description, category, cost, currency, shares)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range txs {
		sharesJSON, err := json.Marshal(t.Shares)
		if err != nil {
			return fmt.Errorf("encode shares: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, sessionID, i, t.Date, t.Description, t.Category, t.Cost, t.Currency, string(sharesJSON)); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}
	return nil
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}
