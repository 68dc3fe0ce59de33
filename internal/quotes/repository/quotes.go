package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Quote is a priced treatment offer derived from an approved doctor note.
// Items and totals are materialized at write time so a sent quote reflects
// the prices the patient actually saw.
type Quote struct {
	ID                  uuid.UUID
	LeadID              uuid.UUID
	DoctorNoteID        uuid.UUID
	Status              string
	Currency            string
	DiscountType        string
	DiscountValue       int64
	SubtotalCents       int64
	DiscountAmountCents int64
	TotalCents          int64
	SentAt              *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type QuoteItem struct {
	ID             uuid.UUID
	QuoteID        uuid.UUID
	Description    string
	Quantity       string
	UnitPriceCents int64
	LineTotalCents int64
	Position       int
}

const quoteColumns = `id, lead_id, doctor_note_id, status, currency, discount_type,
	discount_value, subtotal_cents, discount_amount_cents, total_cents,
	sent_at, created_at, updated_at`

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	err := row.Scan(
		&q.ID, &q.LeadID, &q.DoctorNoteID, &q.Status, &q.Currency, &q.DiscountType,
		&q.DiscountValue, &q.SubtotalCents, &q.DiscountAmountCents, &q.TotalCents,
		&q.SentAt, &q.CreatedAt, &q.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Quote{}, ErrNotFound
	}
	return q, err
}

type QuoteItemParams struct {
	Description    string
	Quantity       string
	UnitPriceCents int64
	LineTotalCents int64
}

type CreateQuoteParams struct {
	LeadID              uuid.UUID
	DoctorNoteID        uuid.UUID
	Currency            string
	DiscountType        string
	DiscountValue       int64
	SubtotalCents       int64
	DiscountAmountCents int64
	TotalCents          int64
	Items               []QuoteItemParams
}

// CreateQuote inserts the quote and its items in one transaction.
func (r *Repository) CreateQuote(ctx context.Context, params CreateQuoteParams) (Quote, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Quote{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO quotes (id, lead_id, doctor_note_id, status, currency, discount_type,
			discount_value, subtotal_cents, discount_amount_cents, total_cents)
		VALUES ($1, $2, $3, 'draft', $4, $5, $6, $7, $8, $9)
		RETURNING `+quoteColumns,
		uuid.New(), params.LeadID, params.DoctorNoteID, params.Currency,
		params.DiscountType, params.DiscountValue, params.SubtotalCents,
		params.DiscountAmountCents, params.TotalCents)

	quote, err := scanQuote(row)
	if err != nil {
		return Quote{}, err
	}

	if err := insertItems(ctx, tx, quote.ID, params.Items); err != nil {
		return Quote{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Quote{}, err
	}
	return quote, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, quoteID uuid.UUID, items []QuoteItemParams) error {
	for i, item := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO quote_items (id, quote_id, description, quantity, unit_price_cents, line_total_cents, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.New(), quoteID, item.Description, item.Quantity,
			item.UnitPriceCents, item.LineTotalCents, i)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) GetQuote(ctx context.Context, id uuid.UUID) (Quote, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id)
	return scanQuote(row)
}

func (r *Repository) ListQuoteItems(ctx context.Context, quoteID uuid.UUID) ([]QuoteItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, quote_id, description, quantity, unit_price_cents, line_total_cents, position
		FROM quote_items
		WHERE quote_id = $1
		ORDER BY position ASC`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]QuoteItem, 0)
	for rows.Next() {
		var item QuoteItem
		if err := rows.Scan(&item.ID, &item.QuoteID, &item.Description, &item.Quantity,
			&item.UnitPriceCents, &item.LineTotalCents, &item.Position); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Repository) ListQuotesByLead(ctx context.Context, leadID uuid.UUID) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+quoteColumns+`
		FROM quotes
		WHERE lead_id = $1
		ORDER BY created_at DESC`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotes := make([]Quote, 0)
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, quote)
	}
	return quotes, rows.Err()
}

type UpdateQuoteParams struct {
	Currency            *string
	DiscountType        *string
	DiscountValue       *int64
	SubtotalCents       int64
	DiscountAmountCents int64
	TotalCents          int64
	Items               []QuoteItemParams
}

// UpdateQuote rewrites a draft quote's pricing fields and, when items are
// provided, replaces the item list. Sent quotes are immutable.
func (r *Repository) UpdateQuote(ctx context.Context, id uuid.UUID, params UpdateQuoteParams) (Quote, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Quote{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE quotes
		SET currency              = COALESCE($2, currency),
		    discount_type         = COALESCE($3, discount_type),
		    discount_value        = COALESCE($4, discount_value),
		    subtotal_cents        = $5,
		    discount_amount_cents = $6,
		    total_cents           = $7,
		    updated_at            = now()
		WHERE id = $1 AND status = 'draft'
		RETURNING `+quoteColumns,
		id, params.Currency, params.DiscountType, params.DiscountValue,
		params.SubtotalCents, params.DiscountAmountCents, params.TotalCents)

	quote, err := scanQuote(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetQuote(ctx, id); getErr == nil {
			return Quote{}, ErrImmutable
		}
		return Quote{}, ErrNotFound
	}
	if err != nil {
		return Quote{}, err
	}

	if params.Items != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, id); err != nil {
			return Quote{}, err
		}
		if err := insertItems(ctx, tx, id, params.Items); err != nil {
			return Quote{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Quote{}, err
	}
	return quote, nil
}

// MarkQuoteSent transitions a draft quote to sent.
func (r *Repository) MarkQuoteSent(ctx context.Context, id uuid.UUID) (Quote, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE quotes
		SET status = 'sent', sent_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'draft'
		RETURNING `+quoteColumns, id)

	quote, err := scanQuote(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetQuote(ctx, id); getErr == nil {
			return Quote{}, ErrImmutable
		}
		return Quote{}, ErrNotFound
	}
	return quote, err
}
