// internal/store/sqlstore/applications.go
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/models"
)

const applicationColumns = `id, candidate_id, job_id, status, match_score, cover_message, employer_notes, rejection_reason, created_at, updated_at, version`

func scanApplication(row rowScanner) (*models.Application, error) {
	var (
		app              models.Application
		status           string
		score            sql.NullInt64
		created, updated timestamp
	)
	if err := row.Scan(&app.ID, &app.CandidateID, &app.JobID, &status, &score,
		&app.CoverMessage, &app.EmployerNotes, &app.RejectionReason, &created, &updated, &app.Version); err != nil {
		return nil, err
	}
	app.Status = models.ApplicationStatus(status)
	if score.Valid {
		v := int(score.Int64)
		app.MatchScore = &v
	}
	app.CreatedAt = created.Time
	app.UpdatedAt = updated.Time
	return &app, nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+applicationColumns+`
		FROM job_applications
		WHERE id = $1`), id)
	return s.oneApplication(row, "get application", id)
}

func (s *Store) FindApplication(ctx context.Context, candidateID, jobID string) (*models.Application, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+applicationColumns+`
		FROM job_applications
		WHERE candidate_id = $1 AND job_id = $2`), candidateID, jobID)
	return s.oneApplication(row, "find application", candidateID+"/"+jobID)
}

func (s *Store) oneApplication(row *sql.Row, op, id string) (*models.Application, error) {
	app, err := scanApplication(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("application", id)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(op, err)
	}
	return app, nil
}

// InsertApplication maps a (candidate, job) conflict to DuplicateApplication.
func (s *Store) InsertApplication(ctx context.Context, app *models.Application) error {
	var score interface{}
	if app.MatchScore != nil {
		score = int64(*app.MatchScore)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO job_applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (candidate_id, job_id) DO NOTHING`),
		app.ID, app.CandidateID, app.JobID, string(app.Status), score,
		app.CoverMessage, app.EmployerNotes, app.RejectionReason,
		s.timeArg(app.CreatedAt), s.timeArg(app.UpdatedAt), app.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewDuplicateApplicationError(app.CandidateID, app.JobID)
		}
		return errors.NewDatabaseWriteFailedError("insert application", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseWriteFailedError("insert application", err)
	}
	if n == 0 {
		return errors.NewDuplicateApplicationError(app.CandidateID, app.JobID)
	}
	return nil
}

// UpdateApplication writes status, notes, reason and app.Version if the
// stored version still equals expectedVersion.
func (s *Store) UpdateApplication(ctx context.Context, app *models.Application, expectedVersion int) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE job_applications
		SET status = $1, employer_notes = $2, rejection_reason = $3, updated_at = $4, version = $5
		WHERE id = $6 AND version = $7`),
		string(app.Status), app.EmployerNotes, app.RejectionReason, s.timeArg(app.UpdatedAt), app.Version,
		app.ID, expectedVersion,
	)
	if err != nil {
		return errors.NewDatabaseWriteFailedError("update application", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseWriteFailedError("update application", err)
	}
	if n > 0 {
		return nil
	}

	// tell a vanished row from a lost race
	if _, err := s.GetApplication(ctx, app.ID); err != nil {
		return err
	}
	return errors.NewConcurrentUpdateError("application", app.ID)
}

func (s *Store) ListApplications(ctx context.Context, candidateID string, jobIDs []string) ([]models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications WHERE candidate_id = $1`
	args := []interface{}{candidateID}
	if len(jobIDs) > 0 {
		query += fmt.Sprintf(" AND job_id IN (%s)", in(2, len(jobIDs)))
		for _, id := range jobIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list applications", err)
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, errors.NewDatabaseQueryFailedError("list applications", err)
		}
		out = append(out, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list applications", err)
	}
	return out, nil
}

// CountApplicationsByStatus feeds the pipeline gauge.
func (s *Store) CountApplicationsByStatus(ctx context.Context) (map[models.ApplicationStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM job_applications GROUP BY status`)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("count applications", err)
	}
	defer rows.Close()

	out := make(map[models.ApplicationStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.NewDatabaseQueryFailedError("count applications", err)
		}
		out[models.ApplicationStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("count applications", err)
	}
	return out, nil
}
