// internal/store/sqlstore/interactions.go
package sqlstore

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/models"
)

const interactionColumns = `id, candidate_id, job_id, status, saved_at, clicked_at, applied_at, notes, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInteraction(row rowScanner) (*models.Interaction, error) {
	var (
		it                      models.Interaction
		status                  string
		saved, clicked, applied timestamp
		created, updated        timestamp
	)
	if err := row.Scan(&it.ID, &it.CandidateID, &it.JobID, &status,
		&saved, &clicked, &applied, &it.Notes, &created, &updated, &it.Version); err != nil {
		return nil, err
	}
	it.Status = models.InteractionStatus(status)
	it.SavedAt = saved.ptr()
	it.ClickedAt = clicked.ptr()
	it.AppliedAt = applied.ptr()
	it.CreatedAt = created.Time
	it.UpdatedAt = updated.Time
	return &it, nil
}

func (s *Store) GetInteraction(ctx context.Context, candidateID, jobID string) (*models.Interaction, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT `+interactionColumns+`
		FROM job_interactions
		WHERE candidate_id = $1 AND job_id = $2`), candidateID, jobID)

	it, err := scanInteraction(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("interaction", candidateID+"/"+jobID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("get interaction", err)
	}
	return it, nil
}

// SaveInteraction inserts when expectedVersion is zero, otherwise updates
// only if the stored version still equals expectedVersion.
func (s *Store) SaveInteraction(ctx context.Context, it *models.Interaction, expectedVersion int) error {
	var (
		res sql.Result
		err error
	)
	if expectedVersion == 0 {
		res, err = s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO job_interactions (`+interactionColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (candidate_id, job_id) DO NOTHING`),
			it.ID, it.CandidateID, it.JobID, string(it.Status),
			s.nullTimeArg(it.SavedAt), s.nullTimeArg(it.ClickedAt), s.nullTimeArg(it.AppliedAt),
			it.Notes, s.timeArg(it.CreatedAt), s.timeArg(it.UpdatedAt), it.Version,
		)
	} else {
		res, err = s.db.ExecContext(ctx, s.rebind(`
			UPDATE job_interactions
			SET status = $1, saved_at = $2, clicked_at = $3, applied_at = $4, notes = $5, updated_at = $6, version = $7
			WHERE candidate_id = $8 AND job_id = $9 AND version = $10`),
			string(it.Status), s.nullTimeArg(it.SavedAt), s.nullTimeArg(it.ClickedAt), s.nullTimeArg(it.AppliedAt),
			it.Notes, s.timeArg(it.UpdatedAt), it.Version,
			it.CandidateID, it.JobID, expectedVersion,
		)
	}
	if err != nil {
		return errors.NewDatabaseWriteFailedError("save interaction", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewDatabaseWriteFailedError("save interaction", err)
	}
	if n == 0 {
		return errors.NewConcurrentUpdateError("interaction", it.CandidateID+"/"+it.JobID)
	}
	return nil
}

// ListInteractions returns the candidate's interactions, limited to jobIDs
// when any are given.
func (s *Store) ListInteractions(ctx context.Context, candidateID string, jobIDs []string) ([]models.Interaction, error) {
	query := `SELECT ` + interactionColumns + ` FROM job_interactions WHERE candidate_id = $1`
	args := []interface{}{candidateID}
	if len(jobIDs) > 0 {
		query += fmt.Sprintf(" AND job_id IN (%s)", in(2, len(jobIDs)))
		for _, id := range jobIDs {
			args = append(args, id)
		}
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list interactions", err)
	}
	defer rows.Close()

	var out []models.Interaction
	for rows.Next() {
		it, err := scanInteraction(rows)
		if err != nil {
			return nil, errors.NewDatabaseQueryFailedError("list interactions", err)
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("list interactions", err)
	}
	return out, nil
}
