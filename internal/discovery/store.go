package discovery

import (
	"context"

	"jobpilot/internal/database"
	"jobpilot/internal/domain/application"
	"jobpilot/internal/domain/job"
	"jobpilot/internal/repository"

	"github.com/google/uuid"
)

// Store is the persistence discovery needs.
type Store interface {
	ExistingURLs(ctx context.Context, userID uuid.UUID, urls []string) (map[string]struct{}, error)
	// Insert stores p and, when app is non-nil, its application in the same
	// transaction. It reports false when the URL was already stored.
	Insert(ctx context.Context, p job.Posting, app *application.Application) (bool, error)
	StartRun(ctx context.Context, userID uuid.UUID, source, trigger string) (uuid.UUID, error)
	LogRun(ctx context.Context, runID uuid.UUID, level, message string) error
	FinishRun(ctx context.Context, runID uuid.UUID, status job.ScrapeRunStatus, counts repository.ScrapeCounts, errMsg string) error
}

type PostgresStore struct {
	db   database.DB
	runs *repository.PostgresScrapeRunRepository
}

func NewPostgresStore(db database.DB) *PostgresStore {
	return &PostgresStore{db: db, runs: repository.NewPostgresScrapeRunRepository(db)}
}

func (s *PostgresStore) ExistingURLs(ctx context.Context, userID uuid.UUID, urls []string) (map[string]struct{}, error) {
	return repository.NewPostgresJobRepository(s.db).ExistingURLs(ctx, userID, urls)
}

func (s *PostgresStore) Insert(ctx context.Context, p job.Posting, app *application.Application) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	inserted := false
	err := database.InTx(ctx, s.db, func(tx database.Tx) error {
		ok, err := repository.NewPostgresJobRepository(tx).InsertIgnore(ctx, p)
		if err != nil || !ok {
			return err
		}
		if app != nil {
			a := *app
			a.JobID = p.ID
			a.UserID = p.UserID
			if _, err := repository.NewPostgresApplicationRepository(tx).CreateIgnore(ctx, a); err != nil {
				return err
			}
		}
		inserted = true
		return nil
	})
	return inserted, err
}

func (s *PostgresStore) StartRun(ctx context.Context, userID uuid.UUID, source, trigger string) (uuid.UUID, error) {
	return s.runs.Start(ctx, userID, source, trigger)
}

func (s *PostgresStore) LogRun(ctx context.Context, runID uuid.UUID, level, message string) error {
	return s.runs.Log(ctx, runID, level, message)
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID uuid.UUID, status job.ScrapeRunStatus, counts repository.ScrapeCounts, errMsg string) error {
	return s.runs.Finish(ctx, runID, status, counts, errMsg)
}
