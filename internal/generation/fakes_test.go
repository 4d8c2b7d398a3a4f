package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"luxgen/internal/domain"
	"luxgen/internal/ledger"
	"luxgen/internal/providers"
	"luxgen/internal/sqlinline"
)

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// creditStore is the minimal SQLExecutor the ledger needs: one balance per
// user plus a transaction counter.
type creditStore struct {
	mu       sync.Mutex
	balances map[string]int
	txns     int
}

func newCreditStore(userID string, balance int) *creditStore {
	return &creditStore{balances: map[string]int{userID: balance}}
}

func (s *creditStore) balance(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID]
}

func (s *creditStore) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if query == sqlinline.QInsertTransaction {
		s.txns++
		return pgconn.CommandTag{}, nil
	}
	return pgconn.CommandTag{}, errors.New("unexpected exec")
}

func (s *creditStore) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected query")
}

func (s *creditStore) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID := args[0].(string)
	balance, known := s.balances[userID]
	if !known {
		return scanRow{err: pgx.ErrNoRows}
	}
	switch query {
	case sqlinline.QSelectCredits:
		return scanRow{value: balance}
	case sqlinline.QDebitCredits:
		amount := args[1].(int)
		if balance < amount {
			return scanRow{err: pgx.ErrNoRows}
		}
		s.balances[userID] = balance - amount
		return scanRow{value: s.balances[userID]}
	case sqlinline.QRefundCredits:
		s.balances[userID] = balance + args[1].(int)
		return scanRow{value: s.balances[userID]}
	case sqlinline.QSetCredits:
		s.balances[userID] = args[1].(int)
		return scanRow{value: s.balances[userID]}
	}
	return scanRow{err: errors.New("unexpected query")}
}

type scanRow struct {
	value int
	err   error
}

func (r scanRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int) = r.value
	return nil
}

func newTestLedger(store *creditStore) *ledger.Ledger {
	return ledger.New(store, discardLogger())
}

// fakeJobs is an in-memory JobRepository.
type fakeJobs struct {
	mu        sync.Mutex
	jobs      map[string]*domain.GenerationJob
	createErr error
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]*domain.GenerationJob{}}
}

func (f *fakeJobs) Create(ctx context.Context, job *domain.GenerationJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *job
	f.jobs[job.ID] = &cp
	return nil
}

func (f *fakeJobs) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) GetByProviderJobID(ctx context.Context, provider domain.Provider, providerJobID string) (*domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.Provider == provider && job.ProviderJobID == providerJobID {
			cp := *job
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeJobs) ListByUser(ctx context.Context, userID string, limit int) ([]domain.GenerationJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.GenerationJob
	for _, job := range f.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeJobs) MarkSucceeded(ctx context.Context, jobID, resultURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusSucceeded
	job.Progress = 100
	job.ResultURL = resultURL
	return nil
}

func (f *fakeJobs) MarkFailed(ctx context.Context, jobID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = errMsg
	return nil
}

func (f *fakeJobs) UpdateProgress(ctx context.Context, jobID string, status domain.JobStatus, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	job.Status = status
	job.Progress = progress
	return nil
}

func (f *fakeJobs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

// fakeAdapter records submissions and serves a scripted poll status.
type fakeAdapter struct {
	mu          sync.Mutex
	name        string
	submitID    string
	submitErr   error
	lastPayload providers.Payload
	submits     int
	polls       int
	status      providers.Status
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Submit(ctx context.Context, payload providers.Payload) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.submits++
	a.lastPayload = payload
	if a.submitErr != nil {
		return "", a.submitErr
	}
	if a.submitID == "" {
		return fmt.Sprintf("%s-job-%d", a.name, a.submits), nil
	}
	return a.submitID, nil
}

func (a *fakeAdapter) Poll(ctx context.Context, providerJobID string) (*providers.Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.polls++
	st := a.status
	return &st, nil
}

func (a *fakeAdapter) pollCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.polls
}

// fakeComposer returns a fixed composite URL or an error.
type fakeComposer struct {
	url   string
	err   error
	calls int
}

func (c *fakeComposer) Compose(ctx context.Context, userID, productURL, baseURL, prompt, aspectRatio string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.url, nil
}
