// Package memory is the in-memory session backend: a mutex-guarded map of
// deep-copied sessions. It is the default backend and the one the tests
// run against.
package memory

import (
	"context"
	"sync"
	"time"

	"splitlens/internal/core"
	"splitlens/internal/session"
)

type Store struct {
	mu       sync.Mutex
	sessions map[string]session.Session
	jobs     map[string]session.ImportJob
}

var _ session.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		sessions: make(map[string]session.Session),
		jobs:     make(map[string]session.ImportJob),
	}
}

func (s *Store) Get(_ context.Context, id string) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *Store) Put(_ context.Context, sess session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	s.sessions[sess.ID] = sess.Clone()
	return nil
}

func (s *Store) UpdateTransactions(_ context.Context, id string, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	sess.Transactions = core.CloneTransactions(txs)
	sess.UpdatedAt = time.Now()
	s.sessions[id] = sess
	return nil
}

func (s *Store) UpdateMappings(_ context.Context, id string, m core.StoreMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	sess.StoreMappings = m.Clone()
	sess.UpdatedAt = time.Now()
	s.sessions[id] = sess
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return session.ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *Store) EnqueueJob(_ context.Context, job session.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	s.jobs[job.ID] = job
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (session.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return session.ImportJob{}, session.ErrJobNotFound
	}
	return job, nil
}

func (s *Store) MarkJob(_ context.Context, id string, status session.JobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return session.ErrJobNotFound
	}
	job.Status = status
	job.Error = errMsg
	if status == session.JobProcessing {
		job.Attempts++
	}
	job.UpdatedAt = time.Now()
	s.jobs[id] = job
	return nil
}
