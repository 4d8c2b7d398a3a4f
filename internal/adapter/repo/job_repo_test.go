package repo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"luxgen/internal/domain"
	"luxgen/internal/sqlinline"
)

type execCall struct {
	query string
	args  []any
}

// stubDB records statements and serves one canned row per QueryRow call.
type stubDB struct {
	execs    []execCall
	row      pgx.Row
	lastArgs []any
}

func (s *stubDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	return pgconn.CommandTag{}, nil
}

func (s *stubDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (s *stubDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.lastArgs = args
	return s.row
}

type jobRow struct {
	job domain.GenerationJob
	err error
}

func (r jobRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.job.ID
	*dest[1].(*string) = r.job.UserID
	*dest[2].(*string) = r.job.ProviderJobID
	*dest[3].(*string) = string(r.job.Provider)
	*dest[4].(*string) = string(r.job.Status)
	*dest[5].(*string) = r.job.Prompt
	*dest[6].(*json.RawMessage) = r.job.InputParams
	*dest[7].(*int) = r.job.CostInCredits
	*dest[8].(*int) = r.job.Progress
	*dest[9].(*string) = r.job.ResultURL
	*dest[10].(*string) = r.job.ErrorMessage
	*dest[11].(*time.Time) = r.job.CreatedAt
	*dest[12].(*time.Time) = r.job.UpdatedAt
	return nil
}

func TestCreatePassesJobFields(t *testing.T) {
	db := &stubDB{}
	repo := NewJobRepository(db)

	job := &domain.GenerationJob{
		ID:            "job-1",
		UserID:        "user-1",
		ProviderJobID: "pred-1",
		Provider:      domain.ProviderReplicate,
		Status:        domain.JobStatusStarting,
		Prompt:        "a sneaker",
		InputParams:   json.RawMessage(`{"seed":7}`),
		CostInCredits: 50,
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(db.execs) != 1 || db.execs[0].query != sqlinline.QInsertGenerationJob {
		t.Fatalf("execs = %+v", db.execs)
	}
	args := db.execs[0].args
	if args[0] != "job-1" || args[3] != "replicate" || args[7] != 50 {
		t.Fatalf("insert args = %v", args)
	}
}

func TestCreateNilsEmptyInputParams(t *testing.T) {
	db := &stubDB{}
	repo := NewJobRepository(db)

	if err := repo.Create(context.Background(), &domain.GenerationJob{ID: "job-1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got := db.execs[0].args[6]; got != nil {
		if b, ok := got.([]byte); !ok || b != nil {
			t.Fatalf("input params arg = %v, want nil for empty payload", got)
		}
	}
}

func TestGetByIDScansJob(t *testing.T) {
	want := domain.GenerationJob{
		ID:            "job-1",
		UserID:        "user-1",
		ProviderJobID: "pred-1",
		Provider:      domain.ProviderFal,
		Status:        domain.JobStatusSucceeded,
		Prompt:        "p",
		CostInCredits: 100,
		Progress:      100,
		ResultURL:     "https://store/clip.mp4",
	}
	db := &stubDB{row: jobRow{job: want}}
	repo := NewJobRepository(db)

	got, err := repo.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.ID != want.ID || got.Provider != want.Provider || got.Status != want.Status || got.ResultURL != want.ResultURL {
		t.Fatalf("GetByID() = %+v", got)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	db := &stubDB{row: jobRow{err: pgx.ErrNoRows}}
	repo := NewJobRepository(db)
	if _, err := repo.GetByID(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetByProviderJobIDArgs(t *testing.T) {
	db := &stubDB{row: jobRow{err: pgx.ErrNoRows}}
	repo := NewJobRepository(db)
	repo.GetByProviderJobID(context.Background(), domain.ProviderLuma, "gen-9")
	if len(db.lastArgs) != 2 || db.lastArgs[0] != "luma" || db.lastArgs[1] != "gen-9" {
		t.Fatalf("query args = %v", db.lastArgs)
	}
}

func TestTerminalTransitions(t *testing.T) {
	db := &stubDB{}
	repo := NewJobRepository(db)

	repo.MarkSucceeded(context.Background(), "job-1", "https://store/clip.mp4")
	repo.MarkFailed(context.Background(), "job-1", "boom")
	repo.UpdateProgress(context.Background(), "job-1", domain.JobStatusProcessing, 50)

	if len(db.execs) != 3 {
		t.Fatalf("execs = %d, want 3", len(db.execs))
	}
	if db.execs[0].query != sqlinline.QMarkJobSucceeded {
		t.Fatalf("first exec = %q", db.execs[0].query)
	}
	if db.execs[1].query != sqlinline.QMarkJobFailed || db.execs[1].args[1] != "boom" {
		t.Fatalf("second exec = %+v", db.execs[1])
	}
	if db.execs[2].query != sqlinline.QUpdateJobProgress || db.execs[2].args[2] != 50 {
		t.Fatalf("third exec = %+v", db.execs[2])
	}
}
