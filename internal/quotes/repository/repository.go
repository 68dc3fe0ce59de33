// Package repository provides Postgres persistence for doctor treatment
// notes and quotes.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when a note or quote does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrImmutable is returned when a write targets a record whose state
	// no longer allows changes (approved note, sent quote).
	ErrImmutable = errors.New("record is no longer editable")
)

const (
	NoteStatusDraft    = "draft"
	NoteStatusApproved = "approved"

	QuoteStatusDraft = "draft"
	QuoteStatusSent  = "sent"
)

// DoctorNote is a treatment plan written by the assigned doctor. Approved
// notes are immutable and become the basis for a quote.
type DoctorNote struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	DoctorID   uuid.UUID
	Title      string
	Content    string
	Status     string
	ApprovedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const noteColumns = `id, lead_id, doctor_id, title, content, status, approved_at, created_at, updated_at`

func scanNote(row pgx.Row) (DoctorNote, error) {
	var note DoctorNote
	err := row.Scan(
		&note.ID, &note.LeadID, &note.DoctorID, &note.Title, &note.Content,
		&note.Status, &note.ApprovedAt, &note.CreatedAt, &note.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return DoctorNote{}, ErrNotFound
	}
	return note, err
}

type CreateNoteParams struct {
	LeadID   uuid.UUID
	DoctorID uuid.UUID
	Title    string
	Content  string
}

func (r *Repository) CreateNote(ctx context.Context, params CreateNoteParams) (DoctorNote, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO doctor_notes (id, lead_id, doctor_id, title, content, status)
		VALUES ($1, $2, $3, $4, $5, 'draft')
		RETURNING `+noteColumns,
		uuid.New(), params.LeadID, params.DoctorID, params.Title, params.Content)
	return scanNote(row)
}

func (r *Repository) GetNote(ctx context.Context, id uuid.UUID) (DoctorNote, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+noteColumns+` FROM doctor_notes WHERE id = $1`, id)
	return scanNote(row)
}

func (r *Repository) ListNotesByLead(ctx context.Context, leadID uuid.UUID) ([]DoctorNote, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+noteColumns+`
		FROM doctor_notes
		WHERE lead_id = $1
		ORDER BY created_at DESC`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]DoctorNote, 0)
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

type UpdateNoteParams struct {
	Title   *string
	Content *string
}

// UpdateNote changes a draft note. Approved notes are immutable: the
// status predicate makes the update miss and ErrImmutable is returned.
func (r *Repository) UpdateNote(ctx context.Context, id uuid.UUID, params UpdateNoteParams) (DoctorNote, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE doctor_notes
		SET title      = COALESCE($2, title),
		    content    = COALESCE($3, content),
		    updated_at = now()
		WHERE id = $1 AND status = 'draft'
		RETURNING `+noteColumns,
		id, params.Title, params.Content)

	note, err := scanNote(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetNote(ctx, id); getErr == nil {
			return DoctorNote{}, ErrImmutable
		}
		return DoctorNote{}, ErrNotFound
	}
	return note, err
}

// ApproveNote transitions a draft note to approved.
func (r *Repository) ApproveNote(ctx context.Context, id uuid.UUID) (DoctorNote, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE doctor_notes
		SET status = 'approved', approved_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'draft'
		RETURNING `+noteColumns, id)

	note, err := scanNote(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetNote(ctx, id); getErr == nil {
			return DoctorNote{}, ErrImmutable
		}
		return DoctorNote{}, ErrNotFound
	}
	return note, err
}
