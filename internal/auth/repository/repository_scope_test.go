package repository

import (
	"strings"
	"testing"
)

func TestGetUserTokenQueryExcludesUsedTokens(t *testing.T) {
	query := strings.ToLower(getUserTokenQuery)

	requiredFragments := []string{
		"where token_hash = $1",
		"and token_type = $2",
		"and used_at is null",
	}

	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected token lookup fragment %q to be present", fragment)
		}
	}
}

func TestGetUserByEmailQueryIsCaseInsensitive(t *testing.T) {
	query := strings.ToLower(getUserByEmailQuery)

	if !strings.Contains(query, "lower(email) = lower($1)") {
		t.Fatal("email lookup should be case-insensitive")
	}
}
