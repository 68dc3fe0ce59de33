package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

// IsUniqueViolation reports whether err is a postgres unique-constraint
// violation, used when retrying case id generation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Lead lifecycle statuses. Pipeline stages live in the same column, so
// status checks always go through these constants or the terminal set.
const (
	StatusNew       = "new"
	StatusContacted = "contacted"
	StatusQuoted    = "quoted"
	StatusBooked    = "booked"
	StatusMerged    = "merged"
	StatusClosed    = "closed"
	StatusLost      = "lost"
)

// Doctor review statuses.
const (
	ReviewPending   = "pending"
	ReviewNeedsInfo = "needs_info"
	ReviewReviewed  = "reviewed"
)

// Portal statuses and states.
const (
	PortalStatusPendingReview = "pending_review"
	PortalStatusActive        = "active"
	PortalStateVerified       = "verified"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so repository
// methods run identically inside and outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type Repository struct {
	db   querier
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// WithTx runs fn against a repository bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
// Nested calls are not supported; a transactional repository has no pool.
func (r *Repository) WithTx(ctx context.Context, fn func(tx LeadsRepository) error) error {
	if r.pool == nil {
		return errors.New("repository already transactional")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Repository{db: tx}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

type Lead struct {
	ID                   uuid.UUID
	LeadUUID             *uuid.UUID
	CaseID               string
	Name                 *string
	Email                *string
	Phone                *string
	Treatment            *string
	Message              *string
	Snapshot             *string
	Status               string
	Source               *string
	BookingRef           *string
	DoctorID             *uuid.UUID
	DoctorReviewStatus   *string
	DoctorAssignedAt     *time.Time
	PortalToken          *string
	PortalTokenExpiresAt *time.Time
	PortalStatus         *string
	PortalState          *string
	EmailVerifiedAt      *time.Time
	AIRiskScore          *int
	AISummary            *string
	AILastAnalyzedAt     *time.Time
	LastContactedAt      *time.Time
	Meta                 map[string]any
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

const leadColumns = `
	id, lead_uuid, case_id, name, email, phone, treatment, message, snapshot,
	status, source, booking_ref, doctor_id, doctor_review_status, doctor_assigned_at,
	portal_token, portal_token_expires_at, portal_status, portal_state, email_verified_at,
	ai_risk_score, ai_summary, ai_last_analyzed_at, last_contacted_at, meta,
	created_at, updated_at`

type leadRowScanner interface {
	Scan(dest ...any) error
}

func scanLead(s leadRowScanner) (Lead, error) {
	var lead Lead
	var metaJSON []byte
	err := s.Scan(
		&lead.ID, &lead.LeadUUID, &lead.CaseID, &lead.Name, &lead.Email, &lead.Phone,
		&lead.Treatment, &lead.Message, &lead.Snapshot,
		&lead.Status, &lead.Source, &lead.BookingRef, &lead.DoctorID,
		&lead.DoctorReviewStatus, &lead.DoctorAssignedAt,
		&lead.PortalToken, &lead.PortalTokenExpiresAt, &lead.PortalStatus,
		&lead.PortalState, &lead.EmailVerifiedAt,
		&lead.AIRiskScore, &lead.AISummary, &lead.AILastAnalyzedAt, &lead.LastContactedAt,
		&metaJSON, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}

	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &lead.Meta); err != nil {
			return Lead{}, err
		}
	}

	return lead, nil
}

type CreateLeadParams struct {
	LeadUUID             *uuid.UUID
	CaseID               string
	Name                 *string
	Email                *string
	Phone                *string
	Treatment            *string
	Message              *string
	Snapshot             *string
	Source               *string
	BookingRef           *string
	PortalToken          string
	PortalTokenExpiresAt time.Time
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO leads (
			lead_uuid, case_id, name, email, phone, treatment, message, snapshot,
			status, source, booking_ref, portal_token, portal_token_expires_at, portal_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+leadColumns+`
	`,
		params.LeadUUID, params.CaseID, params.Name, params.Email, params.Phone,
		params.Treatment, params.Message, params.Snapshot,
		StatusNew, params.Source, params.BookingRef,
		params.PortalToken, params.PortalTokenExpiresAt, PortalStatusPendingReview,
	)
	return scanLead(row)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := r.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) GetByCaseID(ctx context.Context, caseID string) (Lead, error) {
	row := r.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE case_id = $1`, caseID)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) GetByBookingRef(ctx context.Context, bookingRef string) (Lead, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE booking_ref = $1 AND status NOT IN ('merged', 'closed')
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, bookingRef)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// listActiveByEmailQuery selects every non-terminal lead for an email,
// oldest first. The ordering is the canonical-selection rule: the first
// row is the canonical lead for the address.
const listActiveByEmailQuery = `
	SELECT ` + leadColumns + `
	FROM leads
	WHERE lower(trim(email)) = $1
	  AND status NOT IN ('closed', 'merged')
	ORDER BY created_at ASC, id ASC`

func (r *Repository) ListActiveByEmail(ctx context.Context, email string) ([]Lead, error) {
	return r.listLeads(ctx, listActiveByEmailQuery, email)
}

// ListActiveByEmailForUpdate is the same query with row locks, used inside
// the verification transaction so concurrent verifications for one email
// serialize instead of racing on canonical selection.
func (r *Repository) ListActiveByEmailForUpdate(ctx context.Context, email string) ([]Lead, error) {
	return r.listLeads(ctx, listActiveByEmailQuery+`
	FOR UPDATE`, email)
}

type ListLeadsParams struct {
	Status   *string
	DoctorID *uuid.UUID
	Limit    int
	Offset   int
}

func (r *Repository) List(ctx context.Context, params ListLeadsParams) ([]Lead, error) {
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	return r.listLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE ($1::text IS NULL OR status = $1)
		  AND ($2::uuid IS NULL OR doctor_id = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, params.Status, params.DoctorID, limit, params.Offset)
}

// ListByDoctor returns the non-terminal leads assigned to a doctor.
func (r *Repository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Lead, error) {
	return r.listLeads(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE doctor_id = $1 AND status NOT IN ('merged', 'closed', 'lost')
		ORDER BY doctor_assigned_at DESC NULLS LAST, created_at DESC
	`, doctorID)
}

func (r *Repository) listLeads(ctx context.Context, sql string, args ...any) ([]Lead, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

type UpdateLeadParams struct {
	Name      *string
	Phone     *string
	Treatment *string
	Message   *string
	Snapshot  *string
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE leads
		SET name = COALESCE($2, name),
			phone = COALESCE($3, phone),
			treatment = COALESCE($4, treatment),
			message = COALESCE($5, message),
			snapshot = COALESCE($6, snapshot),
			updated_at = now()
		WHERE id = $1
		RETURNING `+leadColumns+`
	`, id, params.Name, params.Phone, params.Treatment, params.Message, params.Snapshot)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) AssignDoctor(ctx context.Context, id uuid.UUID, doctorID *uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads
		SET doctor_id = $2,
			doctor_assigned_at = $3,
			doctor_review_status = COALESCE(doctor_review_status, 'pending'),
			updated_at = now()
		WHERE id = $1
	`, id, doctorID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetReviewStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET doctor_review_status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetLastContacted(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE leads SET last_contacted_at = $2, updated_at = now() WHERE id = $1
	`, id, at)
	return err
}

// SetVerifiedIdentityParams carries the identity fields written after a
// successful email verification. The same values are applied to the lead
// that verified and, on merge, forced onto the canonical lead.
type SetVerifiedIdentityParams struct {
	Email           string
	EmailVerifiedAt time.Time
	PromoteToActive bool
}

func (r *Repository) SetVerifiedIdentity(ctx context.Context, id uuid.UUID, params SetVerifiedIdentityParams) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads
		SET email = $2,
			email_verified_at = $3,
			portal_state = 'verified',
			portal_status = CASE
				WHEN $4 AND (portal_status IS NULL OR portal_status = 'pending_review') THEN 'active'
				ELSE portal_status
			END,
			updated_at = now()
		WHERE id = $1
	`, id, params.Email, params.EmailVerifiedAt, params.PromoteToActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkMerged soft-merges a duplicate into the canonical lead. The merge is
// recorded in meta so the audit trail survives without deleting the row.
func (r *Repository) MarkMerged(ctx context.Context, id, canonicalID uuid.UUID, at time.Time, reason string) error {
	meta := map[string]any{
		"merged_into":   canonicalID.String(),
		"merged_at":     at.UTC().Format(time.RFC3339),
		"merged_reason": reason,
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE leads
		SET status = 'merged',
			meta = COALESCE(meta, '{}'::jsonb) || $2::jsonb,
			updated_at = now()
		WHERE id = $1
	`, id, metaJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RepointMergedReferences rewrites merged_into markers that point at the
// given lead so they land on its new canonical instead. Called when a lead
// that was itself a merge target gets merged, keeping every marker aimed at
// a live row.
func (r *Repository) RepointMergedReferences(ctx context.Context, from, to uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE leads
		SET meta = jsonb_set(meta, '{merged_into}', to_jsonb($2::text)),
			updated_at = now()
		WHERE meta->>'merged_into' = $1
	`, from.String(), to.String())
	return err
}

// SaveRiskAnalysis persists the scorer's output on the lead.
func (r *Repository) SaveRiskAnalysis(ctx context.Context, id uuid.UUID, score int, summary string, analyzedAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads
		SET ai_risk_score = $2, ai_summary = $3, ai_last_analyzed_at = $4, updated_at = now()
		WHERE id = $1
	`, id, score, summary, analyzedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetBookingRef(ctx context.Context, id uuid.UUID, bookingRef string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET booking_ref = $2, updated_at = now() WHERE id = $1
	`, id, bookingRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const listIDsForRiskRefreshQuery = `
	SELECT id
	FROM leads
	WHERE status NOT IN ('closed', 'merged', 'lost')
	  AND (last_contacted_at >= $1 OR updated_at >= $1)
	ORDER BY updated_at DESC
	LIMIT $2`

// ListIDsForRiskRefresh returns leads with recent activity whose risk
// analysis is worth recomputing.
func (r *Repository) ListIDsForRiskRefresh(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, listIDsForRiskRefreshQuery, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) SetPortalToken(ctx context.Context, id uuid.UUID, token string, expiresAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE leads
		SET portal_token = $2, portal_token_expires_at = $3, updated_at = now()
		WHERE id = $1
	`, id, token, expiresAt)
	return err
}
