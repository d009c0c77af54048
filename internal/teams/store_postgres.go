package teams

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// NOTE: This store assumes the tables team_leads and team_lead_categories
// exist (db/schema.sql); categories are seeded by the schema.

// PostgresStore implements Store over database/sql with the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const leadColumns = `id, team_name, leader_first_name, leader_last_name, phone, category_id, intervention_started_at, created_at, updated_at`

func (s *PostgresStore) ListTeamLeads(ctx context.Context) ([]TeamLead, error) {
	q := `SELECT ` + leadColumns + ` FROM team_leads ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list team leads: %w", err)
	}
	defer rows.Close()

	var out []TeamLead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetTeamLead(ctx context.Context, id int64) (TeamLead, error) {
	q := `SELECT ` + leadColumns + ` FROM team_leads WHERE id = $1`
	lead, err := scanLead(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return TeamLead{}, ErrNotFound
	}
	if err != nil {
		return TeamLead{}, fmt.Errorf("get team lead: %w", err)
	}
	return lead, nil
}

func (s *PostgresStore) CreateTeamLead(ctx context.Context, lead *TeamLead) error {
	const q = `
INSERT INTO team_leads (team_name, leader_first_name, leader_last_name, phone, category_id, intervention_started_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, updated_at
`
	err := s.db.QueryRowContext(ctx, q,
		lead.TeamName,
		lead.LeaderFirstName,
		lead.LeaderLastName,
		nullablePhone(lead.Phone),
		nullableID(lead.CategoryID),
		lead.InterventionStartedAt,
	).Scan(&lead.ID, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create team lead: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateTeamLead(ctx context.Context, lead TeamLead) error {
	const q = `
UPDATE team_leads
SET team_name = $2,
    leader_first_name = $3,
    leader_last_name = $4,
    phone = $5,
    category_id = $6,
    intervention_started_at = $7,
    updated_at = now()
WHERE id = $1
`
	res, err := s.db.ExecContext(ctx, q,
		lead.ID,
		lead.TeamName,
		lead.LeaderFirstName,
		lead.LeaderLastName,
		nullablePhone(lead.Phone),
		nullableID(lead.CategoryID),
		lead.InterventionStartedAt,
	)
	if err != nil {
		return fmt.Errorf("update team lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteTeamLead(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM team_leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete team lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]TeamLeadCategory, error) {
	const q = `SELECT id, name, position FROM team_lead_categories ORDER BY position ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []TeamLeadCategory
	for rows.Next() {
		var c TeamLeadCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Position); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (TeamLead, error) {
	var (
		lead  TeamLead
		phone sql.NullString
		inter sql.NullTime
		cat   sql.NullInt64
	)
	if err := row.Scan(
		&lead.ID,
		&lead.TeamName,
		&lead.LeaderFirstName,
		&lead.LeaderLastName,
		&phone,
		&cat,
		&inter,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	); err != nil {
		return TeamLead{}, err
	}
	lead.Phone = phone.String
	lead.CategoryID = cat.Int64
	if inter.Valid {
		t := inter.Time.UTC()
		lead.InterventionStartedAt = &t
	}
	return lead, nil
}

func nullablePhone(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// nullableID maps the zero id to NULL so the optional category FK holds.
func nullableID(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
