package privacy

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestToDoctorLeadDTONeverExposesContactFields(t *testing.T) {
	lead := map[string]any{
		"id":           "42",
		"lead_uuid":    "abcdef12-3456-7890-abcd-ef1234567890",
		"name":         "Jane Roe",
		"email":        "jane@example.com",
		"phone":        "+905551234567",
		"age":          34,
		"gender":       "female",
		"utm_source":   "google",
		"ip":           "203.0.113.9",
		"ua":           "Mozilla/5.0",
		"status":       "new",
		"created_at":   "2026-01-01T00:00:00Z",
		"treatment":    "veneers",
		"message":      "hello",
	}

	body, err := json.Marshal(ToDoctorLeadDTO(lead))
	if err != nil {
		t.Fatalf("marshal dto: %v", err)
	}

	var keys map[string]any
	if err := json.Unmarshal(body, &keys); err != nil {
		t.Fatalf("unmarshal dto: %v", err)
	}

	forbidden := []string{"email", "phone", "age", "gender", "utm_source", "ip", "ua", "status", "created_at", "lead_uuid"}
	for _, key := range forbidden {
		if _, ok := keys[key]; ok {
			t.Fatalf("doctor dto must not expose %q", key)
		}
	}
}

func TestToDoctorLeadDTONilInput(t *testing.T) {
	if dto := ToDoctorLeadDTO(nil); dto != nil {
		t.Fatalf("expected nil dto for nil lead, got %+v", dto)
	}
}

func TestDeriveCaseCode(t *testing.T) {
	tests := []struct {
		name string
		lead map[string]any
		want string
	}{
		{"numeric id", map[string]any{"id": 42}, "CASE-42"},
		{"uuid fallback", map[string]any{"lead_uuid": "abcdef12-3456-7890-abcd-ef1234567890"}, "CASE-ABCDEF12"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dto := ToDoctorLeadDTO(tc.lead)
			if dto.CaseCode == nil || *dto.CaseCode != tc.want {
				t.Fatalf("case code = %v, want %q", dto.CaseCode, tc.want)
			}
		})
	}

	if dto := ToDoctorLeadDTO(map[string]any{"name": "no identifiers"}); dto.CaseCode != nil {
		t.Fatalf("expected nil case code without id or uuid, got %q", *dto.CaseCode)
	}
}

func TestRefPrefersLeadUUID(t *testing.T) {
	dto := ToDoctorLeadDTO(map[string]any{"id": "7", "lead_uuid": "u-1"})
	if dto.Ref != "u-1" {
		t.Fatalf("ref = %v, want lead_uuid", dto.Ref)
	}

	dto = ToDoctorLeadDTO(map[string]any{"id": "7"})
	if dto.Ref != "7" {
		t.Fatalf("ref = %v, want id fallback", dto.Ref)
	}
}

func TestRedactPatterns(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"email", "contact me at jane.doe+1@example.co.uk please", "contact me at [redacted email] please"},
		{"phone digits", "call 0555 123 45 67 today", "call [redacted phone] today"},
		{"phone international", "my number is +90-555-123-4567", "my number is [redacted phone]"},
		{"url", "photos at https://example.com/album?id=3 ok", "photos at [redacted url] ok"},
		{"short digits untouched", "I want 6 crowns", "I want 6 crowns"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Redact(tc.input)
			if got != tc.want {
				t.Fatalf("Redact(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestRedactIsIdempotent(t *testing.T) {
	input := "jane@example.com / +905551234567 / https://example.com"
	once := Redact(input)
	twice := Redact(once)
	if once != twice {
		t.Fatalf("redaction not idempotent: %q vs %q", once, twice)
	}
	if strings.Contains(once.(string), "@") {
		t.Fatalf("email survived redaction: %q", once)
	}
}

func TestRedactNonStringInput(t *testing.T) {
	if got := Redact(nil); got != nil {
		t.Fatalf("expected nil passthrough, got %v", got)
	}
	if got := Redact(12345); got != 12345 {
		t.Fatalf("expected non-string passthrough, got %v", got)
	}
	if got := Redact(""); got != "" {
		t.Fatalf("expected empty string passthrough, got %v", got)
	}
}

func TestFilterByBucket(t *testing.T) {
	items := []*DoctorLeadDTO{
		{ID: "a", DoctorReviewStatus: "pending"},
		{ID: "b", DoctorReviewStatus: "needs_info"},
		{ID: "c", DoctorReviewStatus: "reviewed"},
		{ID: "d", DoctorReviewStatus: "approved"},
		{ID: "e", DoctorReviewStatus: nil},
	}

	unread := FilterByBucket(items, BucketUnread)
	if len(unread) != 3 {
		t.Fatalf("unread bucket size = %d, want 3", len(unread))
	}
	for _, item := range unread {
		if item.ID == "c" || item.ID == "d" {
			t.Fatalf("lead %v does not belong in unread", item.ID)
		}
	}

	reviewed := FilterByBucket(items, BucketReviewed)
	if len(reviewed) != 1 || reviewed[0].ID != "c" {
		t.Fatalf("reviewed bucket = %+v, want only lead c", reviewed)
	}

	all := FilterByBucket(items, "whatever")
	if len(all) != len(items) {
		t.Fatalf("unknown bucket should be unfiltered, got %d of %d", len(all), len(items))
	}
}

func TestMissingReviewStatusDefaultsToUnread(t *testing.T) {
	items := []*DoctorLeadDTO{{ID: "x"}}
	unread := FilterByBucket(items, BucketUnread)
	if len(unread) != 1 {
		t.Fatal("lead without review status must default to the unread bucket")
	}
}
