package consultation

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- Consultations --

type consultationRepoPG struct{ pool *pgxpool.Pool }

func NewConsultationRepoPG(pool *pgxpool.Pool) ConsultationRepository {
	return &consultationRepoPG{pool: pool}
}

func (r *consultationRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const consultationSelect = `
	SELECT c.id, c.triage_id, c.patient_id, a.full_name, c.doctor_id, c.status,
		COALESCE(t.flag, ''), c.clinical_summary, c.created_at, c.updated_at
	FROM consultations c
	JOIN accounts a ON a.id = c.patient_id
	JOIN triage_sessions t ON t.id = c.triage_id`

func (r *consultationRepoPG) scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.TriageID, &c.PatientID, &c.PatientName, &c.DoctorID, &c.Status,
		&c.TriageFlag, &c.ClinicalSummary, &c.CreatedAt, &c.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("consultation not found")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *consultationRepoPG) Create(ctx context.Context, c *Consultation) error {
	c.Status = contract.StatusPending
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO consultations (triage_id, patient_id, doctor_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		c.TriageID, c.PatientID, c.DoctorID, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if db.IsUniqueViolation(err, "idx_consultations_live_triage") {
		return apperr.Conflict("triage session %d already has an active consultation", c.TriageID)
	}
	if err != nil {
		return fmt.Errorf("create consultation: %w", err)
	}
	return nil
}

func (r *consultationRepoPG) GetByID(ctx context.Context, id int64) (*Consultation, error) {
	return r.scanConsultation(r.conn(ctx).QueryRow(ctx, consultationSelect+` WHERE c.id = $1`, id))
}

func (r *consultationRepoPG) ListForDoctor(ctx context.Context, doctorID int64) ([]*Consultation, error) {
	rows, err := r.conn(ctx).Query(ctx, consultationSelect+`
		WHERE c.doctor_id = $1
		ORDER BY c.created_at DESC`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	defer rows.Close()

	var out []*Consultation
	for rows.Next() {
		c, err := r.scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *consultationRepoPG) Transition(ctx context.Context, id int64, from, to contract.ConsultationStatus, summary *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE consultations
		SET status = $3, clinical_summary = COALESCE($4, clinical_summary), updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to, summary)
	if err != nil {
		return fmt.Errorf("update consultation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("consultation %d is no longer %s", id, from)
	}
	return nil
}

func (r *consultationRepoPG) TriageRef(ctx context.Context, triageID int64) (*TriageRef, error) {
	var t TriageRef
	var flag *string
	var soap *contract.SOAPNote
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, patient_id, state = 'complete', flag, soap
		FROM triage_sessions WHERE id = $1`, triageID,
	).Scan(&t.ID, &t.PatientID, &t.Complete, &flag, &soap)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("triage session %d not found", triageID)
	}
	if err != nil {
		return nil, err
	}
	if flag != nil {
		t.Flag = contract.Flag(*flag)
	}
	if soap != nil {
		t.SOAP = *soap
	}
	return &t, nil
}

func (r *consultationRepoPG) DoctorRef(ctx context.Context, doctorID int64) (*DoctorRef, error) {
	d := DoctorRef{ID: doctorID}
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT verified, available FROM doctor_profiles WHERE account_id = $1`, doctorID,
	).Scan(&d.Verified, &d.Available)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("doctor %d not found", doctorID)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// -- Messages --

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

func (r *messageRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

func (r *messageRepoPG) Append(ctx context.Context, m *Message) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO messages (consultation_id, sender_id, content)
		SELECT $1, $2, $3
		WHERE EXISTS (SELECT 1 FROM consultations WHERE id = $1 AND status = 'accepted')
		RETURNING id, created_at`,
		m.ConsultationID, m.SenderID, m.Content,
	).Scan(&m.ID, &m.CreatedAt)
	if db.IsNoRows(err) {
		return apperr.Conflict("consultation %d is not open for messages", m.ConsultationID)
	}
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (r *messageRepoPG) List(ctx context.Context, consultationID int64) ([]*Message, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, consultation_id, sender_id, content, created_at
		FROM messages WHERE consultation_id = $1
		ORDER BY id`, consultationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConsultationID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
