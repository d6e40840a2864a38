package triage

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

type sessionRepoPG struct{ pool *pgxpool.Pool }

func NewSessionRepoPG(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepoPG{pool: pool}
}

func (r *sessionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const sessionCols = `id, patient_id, state, step, age, answers, flag, soap, created_at, completed_at`

func (r *sessionRepoPG) scanSession(row pgx.Row) (*Session, error) {
	var s Session
	var flag *string
	err := row.Scan(&s.ID, &s.PatientID, &s.State, &s.Step, &s.Age, &s.Answers,
		&flag, &s.SOAP, &s.CreatedAt, &s.CompletedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("triage session not found")
	}
	if err != nil {
		return nil, err
	}
	if flag != nil {
		s.Flag = contract.Flag(*flag)
	}
	if s.Answers == nil {
		s.Answers = Answers{}
	}
	return &s, nil
}

func (r *sessionRepoPG) Create(ctx context.Context, s *Session) error {
	if s.Answers == nil {
		s.Answers = Answers{}
	}
	s.State = StateOpen
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO triage_sessions (patient_id, state, step, age, answers)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		s.PatientID, s.State, s.Step, s.Age, s.Answers,
	).Scan(&s.ID, &s.CreatedAt)
}

func (r *sessionRepoPG) GetByID(ctx context.Context, id int64) (*Session, error) {
	return r.scanSession(r.conn(ctx).QueryRow(ctx,
		`SELECT `+sessionCols+` FROM triage_sessions WHERE id = $1`, id))
}

func (r *sessionRepoPG) LatestOpen(ctx context.Context, patientID int64) (*Session, error) {
	return r.scanSession(r.conn(ctx).QueryRow(ctx, `
		SELECT `+sessionCols+` FROM triage_sessions
		WHERE patient_id = $1 AND state = 'open'
		ORDER BY id DESC LIMIT 1`, patientID))
}

func (r *sessionRepoPG) AbandonOpen(ctx context.Context, patientID int64) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE triage_sessions SET state = 'abandoned'
		WHERE patient_id = $1 AND state = 'open'`, patientID)
	if err != nil {
		return 0, fmt.Errorf("abandon open sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *sessionRepoPG) SaveProgress(ctx context.Context, s *Session) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE triage_sessions SET step = $2, answers = $3
		WHERE id = $1 AND state = 'open'`, s.ID, s.Step, s.Answers)
	if err != nil {
		return fmt.Errorf("save triage progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("triage session %d is no longer open", s.ID)
	}
	return nil
}

func (r *sessionRepoPG) Complete(ctx context.Context, s *Session) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE triage_sessions
		SET state = 'complete', step = '', answers = $2, flag = $3, soap = $4, completed_at = NOW()
		WHERE id = $1 AND state = 'open'
		RETURNING completed_at`,
		s.ID, s.Answers, string(s.Flag), s.SOAP,
	).Scan(&s.CompletedAt)
	if db.IsNoRows(err) {
		return apperr.Conflict("triage session %d is no longer open", s.ID)
	}
	if err != nil {
		return fmt.Errorf("complete triage session: %w", err)
	}
	s.State = StateComplete
	s.Step = ""
	return nil
}

func (r *sessionRepoPG) ListCompleted(ctx context.Context, patientID int64) ([]*Session, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+sessionCols+` FROM triage_sessions
		WHERE patient_id = $1 AND state = 'complete'
		ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *sessionRepoPG) PatientAge(ctx context.Context, patientID int64) (int, error) {
	var age int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(EXTRACT(YEAR FROM AGE(CURRENT_DATE, dob))::int, $2)
		FROM accounts WHERE id = $1`, patientID, DefaultAge).Scan(&age)
	if db.IsNoRows(err) {
		return 0, apperr.NotFound("patient %d not found", patientID)
	}
	return age, err
}
