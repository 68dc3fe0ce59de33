package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Note struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	AuthorID  uuid.UUID
	Body      string
	CreatedAt time.Time
}

func (r *Repository) CreateNote(ctx context.Context, leadID, authorID uuid.UUID, body string) (Note, error) {
	var note Note
	err := r.db.QueryRow(ctx, `
		INSERT INTO lead_notes (lead_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, lead_id, author_id, body, created_at
	`, leadID, authorID, body).Scan(&note.ID, &note.LeadID, &note.AuthorID, &note.Body, &note.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Note{}, ErrNotFound
	}
	return note, err
}

func (r *Repository) ListNotes(ctx context.Context, leadID uuid.UUID) ([]Note, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, lead_id, author_id, body, created_at
		FROM lead_notes
		WHERE lead_id = $1
		ORDER BY created_at DESC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make([]Note, 0)
	for rows.Next() {
		var note Note
		if err := rows.Scan(&note.ID, &note.LeadID, &note.AuthorID, &note.Body, &note.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (r *Repository) CountNotes(ctx context.Context, leadID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM lead_notes WHERE lead_id = $1`, leadID).Scan(&count)
	return count, err
}

// ReassignNotes moves a merged lead's notes onto the canonical lead.
func (r *Repository) ReassignNotes(ctx context.Context, fromLeadID, toLeadID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE lead_notes SET lead_id = $2 WHERE lead_id = $1
	`, fromLeadID, toLeadID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
