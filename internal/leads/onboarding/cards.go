// Package onboarding tracks which intake cards a patient has completed
// and derives the portal's percent-complete gauge.
package onboarding

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Card is one step of the patient onboarding flow. The card's fields are
// rendered by the portal front end; answers are stored as an opaque
// object and not schema-checked here.
type Card struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Catalog is the ordered set of onboarding cards loaded at startup.
type Catalog struct {
	cards []Card
	byID  map[string]Card
}

type catalogFile struct {
	Cards []Card `yaml:"cards"`
}

// LoadCatalog reads the card definitions from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read onboarding cards: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse onboarding cards: %w", err)
	}

	return NewCatalog(file.Cards)
}

func NewCatalog(cards []Card) (*Catalog, error) {
	if len(cards) == 0 {
		return nil, fmt.Errorf("onboarding catalog has no cards")
	}

	byID := make(map[string]Card, len(cards))
	for i, card := range cards {
		if card.ID == "" {
			return nil, fmt.Errorf("onboarding card %d has no id", i)
		}
		if _, dup := byID[card.ID]; dup {
			return nil, fmt.Errorf("duplicate onboarding card id %q", card.ID)
		}
		byID[card.ID] = card
	}

	return &Catalog{cards: cards, byID: byID}, nil
}

func (c *Catalog) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

func (c *Catalog) Cards() []Card {
	return c.cards
}

func (c *Catalog) Size() int {
	return len(c.cards)
}
