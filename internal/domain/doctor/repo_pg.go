package doctor

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/curamind/curamind/internal/platform/apperr"
	"github.com/curamind/curamind/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const profileSelect = `
	SELECT a.id, a.full_name, a.email, a.phone, d.specialization, d.license_no,
		d.hospital, d.bio, d.available, d.verified, d.verified_at, d.created_at
	FROM doctor_profiles d JOIN accounts a ON a.id = d.account_id`

func (r *profileRepoPG) scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Specialization, &p.LicenseNo,
		&p.Hospital, &p.Bio, &p.Available, &p.Verified, &p.VerifiedAt, &p.CreatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("doctor not found")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepoPG) ListAvailable(ctx context.Context, specialty string) ([]*Profile, error) {
	rows, err := r.conn(ctx).Query(ctx, profileSelect+`
		WHERE d.verified AND d.available
		  AND ($1 = '' OR d.specialization ILIKE '%' || $1 || '%')
		ORDER BY a.full_name`, specialty)
	if err != nil {
		return nil, fmt.Errorf("list available doctors: %w", err)
	}
	defer rows.Close()

	var out []*Profile
	for rows.Next() {
		p, err := r.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *profileRepoPG) GetByID(ctx context.Context, id int64) (*Profile, error) {
	return r.scanProfile(r.conn(ctx).QueryRow(ctx, profileSelect+` WHERE d.account_id = $1`, id))
}

func (r *profileRepoPG) Update(ctx context.Context, p *Profile) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		tag, err := r.conn(ctx).Exec(ctx, `
			UPDATE doctor_profiles SET hospital = $2, bio = $3, available = $4
			WHERE account_id = $1`, p.ID, p.Hospital, p.Bio, p.Available)
		if err != nil {
			return fmt.Errorf("update doctor profile: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("doctor not found")
		}
		_, err = r.conn(ctx).Exec(ctx,
			`UPDATE accounts SET phone = $2, updated_at = NOW() WHERE id = $1`, p.ID, p.Phone)
		return err
	})
}
