// internal/store/sqlstore/profiles.go
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/lib/pq"

	"trade-match-engine/internal/common/database"
	"trade-match-engine/internal/common/errors"
	"trade-match-engine/internal/engine/attributes"
	"trade-match-engine/internal/models"
)

// tagsArg stores tag sets as TEXT[] in Postgres and JSON text in SQLite.
func (s *Store) tagsArg(tags attributes.TagSet) (interface{}, error) {
	if tags == nil {
		tags = attributes.TagSet{}
	}
	if s.dialect == database.DialectPostgres {
		return pq.Array([]string(tags)), nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// tagsDest pairs a scan destination with the decoder for it.
type tagsDest struct {
	pg   pq.StringArray
	text sql.NullString
	pgd  bool
}

func (s *Store) newTagsDest() *tagsDest {
	return &tagsDest{pgd: s.dialect == database.DialectPostgres}
}

func (d *tagsDest) target() interface{} {
	if d.pgd {
		return &d.pg
	}
	return &d.text
}

func (d *tagsDest) value() (attributes.TagSet, error) {
	if d.pgd {
		return attributes.NewTagSet(d.pg...), nil
	}
	if !d.text.Valid || d.text.String == "" {
		return attributes.TagSet{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(d.text.String), &tags); err != nil {
		return nil, err
	}
	return attributes.NewTagSet(tags...), nil
}

func (s *Store) GetProfile(ctx context.Context, candidateID string) (*models.CandidateProfile, error) {
	var (
		p          models.CandidateProfile
		processes  = s.newTagsDest()
		positions  = s.newTagsDest()
		certs      sql.NullString
		desiredPay sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT candidate_id, years_experience, processes, positions, certifications, location, desired_pay
		FROM candidate_profiles
		WHERE candidate_id = $1`), candidateID).Scan(
		&p.ID, &p.YearsExperience, processes.target(), positions.target(), &certs, &p.Location, &desiredPay,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("candidate profile", candidateID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("get profile", err)
	}

	if p.Processes, err = processes.value(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("decode processes", err)
	}
	if p.Positions, err = positions.value(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError("decode positions", err)
	}
	if certs.Valid && certs.String != "" {
		if err := json.Unmarshal([]byte(certs.String), &p.Certifications); err != nil {
			return nil, errors.NewDatabaseQueryFailedError("decode certifications", err)
		}
	}
	if desiredPay.Valid && desiredPay.String != "" {
		var pay attributes.PayRange
		if err := json.Unmarshal([]byte(desiredPay.String), &pay); err != nil {
			return nil, errors.NewDatabaseQueryFailedError("decode desired pay", err)
		}
		p.DesiredPay = &pay
	}
	return &p, nil
}

// UpsertProfile replaces the stored profile.
func (s *Store) UpsertProfile(ctx context.Context, p *models.CandidateProfile) error {
	if err := p.Validate(); err != nil {
		return errors.NewInvalidInputError(err.Error())
	}

	processes, err := s.tagsArg(attributes.NewTagSet(p.Processes...))
	if err != nil {
		return errors.NewDatabaseWriteFailedError("encode processes", err)
	}
	positions, err := s.tagsArg(attributes.NewTagSet(p.Positions...))
	if err != nil {
		return errors.NewDatabaseWriteFailedError("encode positions", err)
	}
	certs := p.Certifications
	if certs == nil {
		certs = []attributes.Certification{}
	}
	certsJSON, err := json.Marshal(certs)
	if err != nil {
		return errors.NewDatabaseWriteFailedError("encode certifications", err)
	}
	var pay interface{}
	if p.DesiredPay != nil {
		b, err := json.Marshal(p.DesiredPay)
		if err != nil {
			return errors.NewDatabaseWriteFailedError("encode desired pay", err)
		}
		pay = string(b)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO candidate_profiles
			(candidate_id, years_experience, processes, positions, certifications, location, desired_pay, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (candidate_id) DO UPDATE SET
			years_experience = excluded.years_experience,
			processes = excluded.processes,
			positions = excluded.positions,
			certifications = excluded.certifications,
			location = excluded.location,
			desired_pay = excluded.desired_pay,
			updated_at = excluded.updated_at`),
		p.ID, p.YearsExperience, processes, positions, string(certsJSON), p.Location, pay,
		s.timeArg(time.Now()),
	)
	if err != nil {
		return errors.NewDatabaseWriteFailedError("upsert profile", err)
	}
	return nil
}

func (s *Store) GetContact(ctx context.Context, candidateID string) (*models.Contact, error) {
	var c models.Contact
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT candidate_id, name, email, phone
		FROM candidate_contacts
		WHERE candidate_id = $1`), candidateID).Scan(&c.CandidateID, &c.Name, &c.Email, &c.Phone)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("contact", candidateID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError("get contact", err)
	}
	return &c, nil
}

func (s *Store) UpsertContact(ctx context.Context, c *models.Contact) error {
	if c.CandidateID == "" {
		return errors.NewInvalidInputError("candidateId is required")
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO candidate_contacts (candidate_id, name, email, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (candidate_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone`),
		c.CandidateID, c.Name, c.Email, c.Phone,
	)
	if err != nil {
		return errors.NewDatabaseWriteFailedError("upsert contact", err)
	}
	return nil
}
