package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo appends audit events to the audit_events table
// (db/schema.sql). The table carries no UPDATE or DELETE path.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor, ip_address, team_lead_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	var leadID any
	if e.TeamLeadID != 0 {
		leadID = e.TeamLeadID
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID, string(e.Type), nullStr(e.Actor), nullStr(e.IPAddress),
		leadID, nullStr(e.Message), nullStr(e.Metadata), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Event, error) {
	const q = `
SELECT id, type, actor, ip_address, team_lead_id, message, metadata, created_at
FROM audit_events
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e        Event
			typ      string
			actor    sql.NullString
			ip       sql.NullString
			leadID   sql.NullInt64
			message  sql.NullString
			metadata sql.NullString
		)
		if err := rows.Scan(&e.ID, &typ, &actor, &ip, &leadID, &message, &metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Type = EventType(typ)
		e.Actor = actor.String
		e.IPAddress = ip.String
		e.TeamLeadID = leadID.Int64
		e.Message = message.String
		e.Metadata = metadata.String
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
