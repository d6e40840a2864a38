package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/curamind/curamind/internal/contract"
	"github.com/curamind/curamind/internal/platform/apperr"
	"github.com/curamind/curamind/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type verificationRepoPG struct{ pool *pgxpool.Pool }

func NewVerificationRepoPG(pool *pgxpool.Pool) VerificationRepository {
	return &verificationRepoPG{pool: pool}
}

func (r *verificationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const applicantSelect = `
	SELECT a.id, a.full_name, a.email, a.phone, d.license_no, d.specialization, d.verified, d.created_at
	FROM doctor_profiles d JOIN accounts a ON a.id = d.account_id`

func scanApplicant(row pgx.Row) (*Applicant, error) {
	var a Applicant
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.LicenseNo, &a.Specialization, &a.Verified, &a.AppliedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("no pending registration for doctor")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *verificationRepoPG) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.InTx(ctx, r.pool, fn)
}

func (r *verificationRepoPG) ListDoctors(ctx context.Context, verified bool, limit, offset int) ([]*Applicant, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctor_profiles WHERE verified = $1`, verified).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, applicantSelect+`
		WHERE d.verified = $1
		ORDER BY d.created_at, a.id
		LIMIT $2 OFFSET $3`, verified, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var out []*Applicant
	for rows.Next() {
		a, err := scanApplicant(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *verificationRepoPG) GetPending(ctx context.Context, id int64) (*Applicant, error) {
	return scanApplicant(r.conn(ctx).QueryRow(ctx, applicantSelect+` WHERE NOT d.verified AND d.account_id = $1`, id))
}

func (r *verificationRepoPG) MarkVerified(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_profiles SET verified = TRUE, verified_at = NOW()
		WHERE account_id = $1 AND NOT verified`, id)
	if err != nil {
		return fmt.Errorf("verify doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("doctor %d is no longer pending", id)
	}
	return nil
}

func (r *verificationRepoPG) DeleteApplicant(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM accounts a
		USING doctor_profiles d
		WHERE a.id = $1 AND d.account_id = a.id AND NOT d.verified`, id)
	if err != nil {
		return fmt.Errorf("delete applicant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("doctor %d is no longer pending", id)
	}
	return nil
}

func (r *verificationRepoPG) Stats(ctx context.Context) (contract.DashboardStats, error) {
	var s contract.DashboardStats
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM doctor_profiles WHERE NOT verified),
			(SELECT COUNT(*) FROM doctor_profiles WHERE verified),
			(SELECT COUNT(*) FROM accounts WHERE role = 'Patient')`,
	).Scan(&s.PendingVerifications, &s.TotalDoctors, &s.TotalPatients)
	if err != nil {
		return contract.DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return s, nil
}
