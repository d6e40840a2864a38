package identity

import (
	"context"

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

type accountRepoPG struct{ pool *pgxpool.Pool }

func NewAccountRepoPG(pool *pgxpool.Pool) AccountRepository {
	return &accountRepoPG{pool: pool}
}

func (r *accountRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const accountCols = `id, role, email, password_hash, full_name, phone, address, dob,
	must_change_password, created_at`

func (r *accountRepoPG) scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Role, &a.Email, &a.PasswordHash, &a.FullName, &a.Phone,
		&a.Address, &a.DOB, &a.MustChangePassword, &a.CreatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("account not found")
	}
	return &a, err
}

func (r *accountRepoPG) insert(ctx context.Context, a *Account) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO accounts (role, email, password_hash, full_name, phone, address, dob, must_change_password)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at`,
		a.Role, a.Email, a.PasswordHash, a.FullName, a.Phone, a.Address, a.DOB, a.MustChangePassword,
	).Scan(&a.ID, &a.CreatedAt)
	if db.IsUniqueViolation(err, "idx_accounts_email") {
		return apperr.Conflict("email %s is already registered", a.Email)
	}
	return err
}

func (r *accountRepoPG) Create(ctx context.Context, a *Account) error {
	return r.insert(ctx, a)
}

func (r *accountRepoPG) CreateDoctor(ctx context.Context, a *Account, app DoctorApplication) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		if err := r.insert(ctx, a); err != nil {
			return err
		}
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO doctor_profiles (account_id, specialization, license_no)
			VALUES ($1,$2,$3)`,
			a.ID, app.Specialization, app.LicenseNo)
		if db.IsUniqueViolation(err, "idx_doctor_profiles_license") {
			return apperr.Conflict("license %s is already registered", app.LicenseNo)
		}
		return err
	})
}

func (r *accountRepoPG) GetByID(ctx context.Context, id int64) (*Account, error) {
	return r.scanAccount(r.conn(ctx).QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id))
}

func (r *accountRepoPG) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return r.scanAccount(r.conn(ctx).QueryRow(ctx,
		`SELECT `+accountCols+` FROM accounts WHERE LOWER(email) = LOWER($1)`, email))
}

func (r *accountRepoPG) SetPassword(ctx context.Context, id int64, hash string, mustChange bool) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE accounts SET password_hash = $2, must_change_password = $3, updated_at = NOW()
		WHERE id = $1`, id, hash, mustChange)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("account not found")
	}
	return nil
}

func (r *accountRepoPG) DoctorVerified(ctx context.Context, id int64) (bool, error) {
	var verified bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT verified FROM doctor_profiles WHERE account_id = $1`, id).Scan(&verified)
	if db.IsNoRows(err) {
		return false, nil
	}
	return verified, err
}

type otpRepoPG struct{ accountRepoPG }

func NewOTPRepoPG(pool *pgxpool.Pool) OTPRepository {
	return &otpRepoPG{accountRepoPG{pool: pool}}
}

func (r *otpRepoPG) Issue(ctx context.Context, o *OTP) error {
	return db.InTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx,
			`UPDATE otp_codes SET used = TRUE WHERE account_id = $1 AND NOT used`, o.AccountID); err != nil {
			return err
		}
		return r.conn(ctx).QueryRow(ctx, `
			INSERT INTO otp_codes (account_id, code_hash, expires_at)
			VALUES ($1,$2,$3)
			RETURNING id, created_at`,
			o.AccountID, o.CodeHash, o.ExpiresAt,
		).Scan(&o.ID, &o.CreatedAt)
	})
}

func (r *otpRepoPG) Active(ctx context.Context, accountID int64) (*OTP, error) {
	var o OTP
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, account_id, code_hash, expires_at, used, created_at
		FROM otp_codes WHERE account_id = $1 AND NOT used
		ORDER BY id DESC LIMIT 1`, accountID,
	).Scan(&o.ID, &o.AccountID, &o.CodeHash, &o.ExpiresAt, &o.Used, &o.CreatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("no active code")
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *otpRepoPG) MarkUsed(ctx context.Context, id int64) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE otp_codes SET used = TRUE WHERE id = $1 AND NOT used`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
