package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// NOTE: This store assumes the following tables exist (db/schema.sql):
// - call_records (append-only; UNIQUE (external_id))
// - provider_settings (singleton row, id = 1)

// PostgresStore implements Store over database/sql with the pgx stdlib driver.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) GetSettings(ctx context.Context) (ProviderSettings, error) {
	const q = `
SELECT billing_account, service_names, admin_phone_number,
       app_key, app_secret, consumer_key,
       last_sync_at, last_error
FROM provider_settings
WHERE id = 1
`
	var (
		out      ProviderSettings
		billing  sql.NullString
		services sql.NullString
		admin    sql.NullString
		appKey   sql.NullString
		secret   sql.NullString
		consumer sql.NullString
		syncAt   sql.NullTime
		lastErr  sql.NullString
	)
	err := s.db.QueryRowContext(ctx, q).Scan(
		&billing, &services, &admin, &appKey, &secret, &consumer, &syncAt, &lastErr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ProviderSettings{}, nil
	}
	if err != nil {
		return ProviderSettings{}, fmt.Errorf("get settings: %w", err)
	}
	out.BillingAccount = billing.String
	out.ServiceNames = services.String
	out.AdminPhoneNumber = admin.String
	out.AppKey = appKey.String
	out.AppSecret = secret.String
	out.ConsumerKey = consumer.String
	if syncAt.Valid {
		t := syncAt.Time.UTC()
		out.LastSyncAt = &t
	}
	if lastErr.Valid {
		v := lastErr.String
		out.LastError = &v
	}
	return out, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, in ProviderSettings) error {
	// Cursor fields are deliberately absent from the upsert so settings
	// edits never clobber sync progress.
	const q = `
INSERT INTO provider_settings (id, billing_account, service_names, admin_phone_number, app_key, app_secret, consumer_key)
VALUES (1, $1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    billing_account = EXCLUDED.billing_account,
    service_names = EXCLUDED.service_names,
    admin_phone_number = EXCLUDED.admin_phone_number,
    app_key = EXCLUDED.app_key,
    app_secret = EXCLUDED.app_secret,
    consumer_key = EXCLUDED.consumer_key
`
	_, err := s.db.ExecContext(ctx, q,
		nullStr(in.BillingAccount),
		nullStr(in.ServiceNames),
		nullStr(in.AdminPhoneNumber),
		nullStr(in.AppKey),
		nullStr(in.AppSecret),
		nullStr(in.ConsumerKey),
	)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCursor(ctx context.Context, lastSyncAt *time.Time, lastError *string) error {
	const q = `
UPDATE provider_settings
SET last_sync_at = COALESCE($1, last_sync_at),
    last_error = $2
WHERE id = 1
`
	res, err := s.db.ExecContext(ctx, q, lastSyncAt, lastError)
	if err != nil {
		return fmt.Errorf("update cursor: %w", err)
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

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (CallRecord, error) {
	const q = `
SELECT id, external_id, started_at, direction, calling_number, called_number,
       duration, status, is_missed, raw_payload, created_at
FROM call_records
WHERE external_id = $1
`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, ErrNotFound
	}
	if err != nil {
		return CallRecord{}, fmt.Errorf("find by external id: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec *CallRecord) error {
	const q = `
INSERT INTO call_records (external_id, started_at, direction, calling_number, called_number, duration, status, is_missed, raw_payload)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at
`
	err := s.db.QueryRowContext(ctx, q,
		rec.ExternalID,
		rec.StartedAt,
		string(rec.Direction),
		nullStr(rec.CallingNumber),
		nullStr(rec.CalledNumber),
		rec.DurationSeconds,
		nullStr(rec.Status),
		rec.IsMissed,
		[]byte(rec.RawPayload),
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert call record: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]CallRecord, int, error) {
	f = f.withDefaults()

	where, args := buildWhere(f)

	var total int
	countQ := "SELECT COUNT(*) FROM call_records" + where
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count call records: %w", err)
	}

	listQ := `
SELECT id, external_id, started_at, direction, calling_number, called_number,
       duration, status, is_missed, raw_payload, created_at
FROM call_records` + where + fmt.Sprintf(`
ORDER BY started_at DESC
LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	rows, err := s.db.QueryContext(ctx, listQ, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list call records: %w", err)
	}
	defer rows.Close()

	out := make([]CallRecord, 0, f.PageSize)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) ListBetween(ctx context.Context, from, to time.Time) ([]CallRecord, error) {
	const q = `
SELECT id, external_id, started_at, direction, calling_number, called_number,
       duration, status, is_missed, raw_payload, created_at
FROM call_records
WHERE started_at >= $1 AND started_at < $2
ORDER BY started_at ASC
`
	rows, err := s.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("list call records between: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func buildWhere(f ListFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.From != nil {
		add("started_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("started_at < $%d", *f.To)
	}
	if f.Missed != nil {
		add("is_missed = $%d", *f.Missed)
	}
	if f.Direction != "" {
		add("direction = $%d", string(f.Direction))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (CallRecord, error) {
	var (
		rec      CallRecord
		dir      string
		calling  sql.NullString
		called   sql.NullString
		status   sql.NullString
		raw      []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.ExternalID,
		&rec.StartedAt,
		&dir,
		&calling,
		&called,
		&rec.DurationSeconds,
		&status,
		&rec.IsMissed,
		&raw,
		&rec.CreatedAt,
	); err != nil {
		return CallRecord{}, err
	}
	rec.Direction = Direction(dir)
	rec.CallingNumber = calling.String
	rec.CalledNumber = called.String
	rec.Status = status.String
	rec.RawPayload = raw
	rec.StartedAt = rec.StartedAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func nullStr(v string) sql.NullString {
	if strings.TrimSpace(v) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
