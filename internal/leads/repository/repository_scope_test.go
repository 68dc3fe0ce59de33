package repository

import (
	"strings"
	"testing"
)

func TestListActiveByEmailQueryExcludesTerminalStatuses(t *testing.T) {
	query := strings.ToLower(listActiveByEmailQuery)

	requiredFragments := []string{
		"lower(trim(email)) = $1",
		"status not in ('closed', 'merged')",
	}

	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected query fragment %q to be present", fragment)
		}
	}
}

func TestListActiveByEmailQueryOrdersOldestFirst(t *testing.T) {
	query := strings.ToLower(listActiveByEmailQuery)

	if !strings.Contains(query, "order by created_at asc, id asc") {
		t.Fatal("canonical selection depends on oldest-first ordering with id tiebreak")
	}
}
