package jobs

import (
	"context"
	"fmt"

	"backoffice/internal/platform/querier"
)

type StoreAPI interface {
	CreateRun(ctx context.Context, jobType, trigger string) (string, error)
	FinishRun(ctx context.Context, runID, status string, detailsJSON []byte) error
	ListRuns(ctx context.Context, jobType string, limit, offset int) ([]Run, int, error)
}

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateRun(ctx context.Context, jobType, trigger string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, trigger, status)
    VALUES ($1, $2, $3)
    RETURNING id
  `, jobType, trigger, StatusRunning).Scan(&id)
	return id, err
}

func (s *Store) FinishRun(ctx context.Context, runID, status string, detailsJSON []byte) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, runID)
	return err
}

func (s *Store) ListRuns(ctx context.Context, jobType string, limit, offset int) ([]Run, int, error) {
	where := ""
	args := []any{}
	if jobType != "" {
		where = " WHERE job_type = $1"
		args = append(args, jobType)
	}

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM job_runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
    SELECT id, job_type, trigger, status, details_json, started_at, completed_at
    FROM job_runs%s
    ORDER BY started_at DESC
    LIMIT $%d OFFSET $%d
  `, where, len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.JobType, &run.Trigger, &run.Status, &run.Details, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, run)
	}
	return out, total, rows.Err()
}
