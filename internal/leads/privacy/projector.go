// Package privacy projects raw lead records into role-scoped views.
// The doctor view is the sensitive one: doctors review clinical fit and
// must never see contact details, demographics, or acquisition metadata.
package privacy

import (
	"fmt"
	"regexp"
	"strings"
)

// DoctorLeadDTO is the complete doctor-facing shape of a lead. Contact
// fields (email, phone), demographics, and tracking metadata have no
// field here, so they cannot leak through serialization.
type DoctorLeadDTO struct {
	ID                 any     `json:"id"`
	Ref                any     `json:"ref"`
	CaseCode           *string `json:"case_code"`
	Name               any     `json:"name"`
	Treatment          any     `json:"treatment"`
	Timeline           any     `json:"timeline"`
	Message            any     `json:"message"`
	Snapshot           any     `json:"snapshot"`
	DoctorReviewStatus any     `json:"doctor_review_status"`
	DoctorAssignedAt   any     `json:"doctor_assigned_at"`
	UpdatedAt          any     `json:"updated_at"`
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d(?:[\s().\-]?\d){6,}`)
	urlPattern   = regexp.MustCompile(`https?://\S+`)
)

// Redact strips contact details from free text. Emails go first so their
// digit-bearing local parts are not half-eaten by the phone pattern.
// Non-string and empty input is returned unchanged.
func Redact(value any) any {
	text, ok := value.(string)
	if !ok || text == "" {
		return value
	}

	text = emailPattern.ReplaceAllString(text, "[redacted email]")
	text = phonePattern.ReplaceAllString(text, "[redacted phone]")
	text = urlPattern.ReplaceAllString(text, "[redacted url]")
	return text
}

// ToDoctorLeadDTO maps a raw lead row to the doctor view. The input is an
// open field bag: no key is assumed present, and a nil map yields nil.
func ToDoctorLeadDTO(lead map[string]any) *DoctorLeadDTO {
	if lead == nil {
		return nil
	}

	return &DoctorLeadDTO{
		ID:                 lead["id"],
		Ref:                deriveRef(lead),
		CaseCode:           deriveCaseCode(lead),
		Name:               lead["name"],
		Treatment:          lead["treatment"],
		Timeline:           lead["timeline"],
		Message:            Redact(lead["message"]),
		Snapshot:           Redact(lead["snapshot"]),
		DoctorReviewStatus: lead["doctor_review_status"],
		DoctorAssignedAt:   lead["doctor_assigned_at"],
		UpdatedAt:          lead["updated_at"],
	}
}

// ToDoctorLeadDTOs maps a batch, dropping nil inputs.
func ToDoctorLeadDTOs(leads []map[string]any) []*DoctorLeadDTO {
	out := make([]*DoctorLeadDTO, 0, len(leads))
	for _, lead := range leads {
		if dto := ToDoctorLeadDTO(lead); dto != nil {
			out = append(out, dto)
		}
	}
	return out
}

func deriveRef(lead map[string]any) any {
	if v, ok := lead["lead_uuid"]; ok && !isEmptyValue(v) {
		return v
	}
	if v, ok := lead["id"]; ok && !isEmptyValue(v) {
		return v
	}
	return nil
}

func deriveCaseCode(lead map[string]any) *string {
	if v, ok := lead["id"]; ok && !isEmptyValue(v) {
		code := fmt.Sprintf("CASE-%v", v)
		return &code
	}
	if v, ok := lead["lead_uuid"]; ok && !isEmptyValue(v) {
		raw := strings.ReplaceAll(fmt.Sprintf("%v", v), "-", "")
		if len(raw) > 8 {
			raw = raw[:8]
		}
		if raw == "" {
			return nil
		}
		code := "CASE-" + strings.ToUpper(raw)
		return &code
	}
	return nil
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}
