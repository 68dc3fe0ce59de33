package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type OnboardingState struct {
	LeadID         uuid.UUID
	CompletedCards []string
	UpdatedAt      time.Time
}

type OnboardingAnswer struct {
	LeadID    uuid.UUID
	CardID    string
	Answers   map[string]any
	UpdatedAt time.Time
}

// GetOnboardingState returns the set of completed cards for a lead. A lead
// that never answered anything has an empty state, not an error.
func (r *Repository) GetOnboardingState(ctx context.Context, leadID uuid.UUID) (OnboardingState, error) {
	var state OnboardingState
	var cardsJSON []byte
	err := r.db.QueryRow(ctx, `
		SELECT lead_id, completed_cards, updated_at
		FROM lead_onboarding_state
		WHERE lead_id = $1
	`, leadID).Scan(&state.LeadID, &cardsJSON, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return OnboardingState{LeadID: leadID, CompletedCards: []string{}}, nil
	}
	if err != nil {
		return OnboardingState{}, err
	}
	if len(cardsJSON) > 0 {
		if err := json.Unmarshal(cardsJSON, &state.CompletedCards); err != nil {
			return OnboardingState{}, err
		}
	}
	if state.CompletedCards == nil {
		state.CompletedCards = []string{}
	}
	return state, nil
}

// MarkCardCompleted adds a card to the completed set. Completion is sticky:
// resubmitting a card never removes it, and duplicates are ignored.
func (r *Repository) MarkCardCompleted(ctx context.Context, leadID uuid.UUID, cardID string) (OnboardingState, error) {
	cardJSON, err := json.Marshal([]string{cardID})
	if err != nil {
		return OnboardingState{}, err
	}

	var state OnboardingState
	var cardsJSON []byte
	err = r.db.QueryRow(ctx, `
		INSERT INTO lead_onboarding_state (lead_id, completed_cards, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (lead_id) DO UPDATE
		SET completed_cards = (
				SELECT jsonb_agg(DISTINCT value)
				FROM jsonb_array_elements(lead_onboarding_state.completed_cards || excluded.completed_cards)
			),
			updated_at = now()
		RETURNING lead_id, completed_cards, updated_at
	`, leadID, cardJSON).Scan(&state.LeadID, &cardsJSON, &state.UpdatedAt)
	if err != nil {
		return OnboardingState{}, err
	}
	if len(cardsJSON) > 0 {
		if err := json.Unmarshal(cardsJSON, &state.CompletedCards); err != nil {
			return OnboardingState{}, err
		}
	}
	return state, nil
}

// UpsertOnboardingAnswers stores a card's answers, last write wins.
func (r *Repository) UpsertOnboardingAnswers(ctx context.Context, leadID uuid.UUID, cardID string, answers map[string]any) error {
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO lead_onboarding_answers (lead_id, card_id, answers, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (lead_id, card_id) DO UPDATE
		SET answers = excluded.answers, updated_at = now()
	`, leadID, cardID, answersJSON)
	return err
}

func (r *Repository) ListOnboardingAnswers(ctx context.Context, leadID uuid.UUID) ([]OnboardingAnswer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT lead_id, card_id, answers, updated_at
		FROM lead_onboarding_answers
		WHERE lead_id = $1
		ORDER BY card_id ASC
	`, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make([]OnboardingAnswer, 0)
	for rows.Next() {
		var answer OnboardingAnswer
		var answersJSON []byte
		if err := rows.Scan(&answer.LeadID, &answer.CardID, &answersJSON, &answer.UpdatedAt); err != nil {
			return nil, err
		}
		if len(answersJSON) > 0 {
			if err := json.Unmarshal(answersJSON, &answer.Answers); err != nil {
				return nil, err
			}
		}
		answers = append(answers, answer)
	}
	return answers, rows.Err()
}
