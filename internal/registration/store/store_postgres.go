package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"landtrust/internal/registration/models"
	id "landtrust/pkg/domain"
	"landtrust/pkg/platform/sentinel"
	txcontext "landtrust/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists registrations and attachments.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const registrationColumns = `
	id, user_id, status, first_name, last_name, email, phone, date_of_birth,
	address, ancestry, agreed_to_terms, signature, sign_date,
	has_existing_property, existing_lot_number, existing_property_notes,
	decided_at, decided_by, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row scanner) (*models.Registration, error) {
	var (
		r                                models.Registration
		regID, userID                    uuid.UUID
		status                           string
		dateOfBirth, signDate, decidedAt sql.NullTime
	)
	err := row.Scan(
		&regID, &userID, &status, &r.FirstName, &r.LastName, &r.Email, &r.Phone, &dateOfBirth,
		&r.Address, &r.Ancestry, &r.AgreedToTerms, &r.Signature, &signDate,
		&r.HasExistingProperty, &r.ExistingLotNumber, &r.ExistingPropertyNotes,
		&decidedAt, &r.DecidedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ID = id.RegistrationID(regID)
	r.UserID = id.UserID(userID)
	r.Status = models.Status(status)
	r.DateOfBirth = timePtr(dateOfBirth)
	r.SignDate = timePtr(signDate)
	r.DecidedAt = timePtr(decidedAt)
	return &r, nil
}

func (s *PostgresStore) Create(ctx context.Context, reg *models.Registration) error {
	query := `INSERT INTO commoner_registrations (` + registrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(reg.ID), uuid.UUID(reg.UserID), string(reg.Status),
		reg.FirstName, reg.LastName, reg.Email, reg.Phone, nullTime(reg.DateOfBirth),
		reg.Address, reg.Ancestry, reg.AgreedToTerms, reg.Signature, nullTime(reg.SignDate),
		reg.HasExistingProperty, reg.ExistingLotNumber, reg.ExistingPropertyNotes,
		nullTime(reg.DecidedAt), reg.DecidedBy, reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("create registration: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, regID id.RegistrationID) (*models.Registration, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM commoner_registrations WHERE id = $1`, uuid.UUID(regID))
	return findOne(row)
}

func (s *PostgresStore) FindByUserID(ctx context.Context, userID id.UserID) (*models.Registration, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM commoner_registrations WHERE user_id = $1`, uuid.UUID(userID))
	return findOne(row)
}

func findOne(row *sql.Row) (*models.Registration, error) {
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return reg, nil
}

func (s *PostgresStore) UpdateExistingProperty(ctx context.Context, regID id.RegistrationID, info models.ExistingProperty, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE commoner_registrations
		SET has_existing_property = $2, existing_lot_number = $3, existing_property_notes = $4, updated_at = $5
		WHERE id = $1`,
		uuid.UUID(regID), info.HasExistingProperty, info.ExistingLotNumber, info.ExistingPropertyNotes, at,
	)
	if err != nil {
		return fmt.Errorf("update existing property: %w", err)
	}
	return requireOneRow(res, sentinel.ErrNotFound)
}

// UpdateStatusIf applies the transition only if the row is still in from.
// It returns ErrInvalidState when another writer moved it first.
func (s *PostgresStore) UpdateStatusIf(ctx context.Context, regID id.RegistrationID, from, to models.Status, decidedAt time.Time, decidedBy string) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE commoner_registrations
		SET status = $3, decided_at = $4, decided_by = $5, updated_at = $4
		WHERE id = $1 AND status = $2`,
		uuid.UUID(regID), string(from), string(to), decidedAt, decidedBy,
	)
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update registration status rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, regID); err != nil {
		return err
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) AddAttachment(ctx context.Context, att *models.Attachment) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO attachments (id, registration_id, kind, url, content_type, size_bytes, label, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(att.ID), uuid.UUID(att.RegistrationID), string(att.Kind), att.URL,
		att.ContentType, att.SizeBytes, att.Label, att.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return fmt.Errorf("add attachment: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("add attachment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, regID id.RegistrationID) ([]models.Attachment, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, registration_id, kind, url, content_type, size_bytes, label, created_at
		FROM attachments
		WHERE registration_id = $1
		ORDER BY created_at DESC, id DESC`, uuid.UUID(regID))
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	out := []models.Attachment{}
	for rows.Next() {
		var (
			a             models.Attachment
			attID, parent uuid.UUID
			kind          string
		)
		if err := rows.Scan(&attID, &parent, &kind, &a.URL, &a.ContentType, &a.SizeBytes, &a.Label, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		a.ID = id.AttachmentID(attID)
		a.RegistrationID = id.RegistrationID(parent)
		a.Kind = models.Kind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPresentKinds(ctx context.Context, regID id.RegistrationID) ([]models.Kind, error) {
	required := make([]string, len(models.RequiredKinds))
	for i, k := range models.RequiredKinds {
		required[i] = string(k)
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT DISTINCT kind FROM attachments
		WHERE registration_id = $1 AND kind = ANY($2)`,
		uuid.UUID(regID), pq.Array(required))
	if err != nil {
		return nil, fmt.Errorf("list attachment kinds: %w", err)
	}
	defer rows.Close()

	kinds := []models.Kind{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan attachment kind: %w", err)
		}
		kinds = append(kinds, models.Kind(k))
	}
	return kinds, rows.Err()
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Registration, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if filter.Query != "" {
		p := arg("%" + escapeLike(filter.Query) + "%")
		where = append(where, fmt.Sprintf(
			"(first_name ILIKE %[1]s OR last_name ILIKE %[1]s OR email ILIKE %[1]s OR (first_name || ' ' || last_name) ILIKE %[1]s)", p))
	}
	if filter.After != nil {
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s)",
			arg(filter.After.CreatedAt), arg(uuid.UUID(filter.After.ID))))
	}

	query := `SELECT ` + registrationColumns + ` FROM commoner_registrations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(filter.Limit)

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	out := []*models.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func requireOneRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
