// ABOUTME: Phone number contact matching for the local CRM
// ABOUTME: Ranks exact digit matches ahead of national-number suffix matches and drops duplicates
package local

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/harperreed/callbridge/models"
)

type phoneMatcher struct {
	digits string
	suffix string
}

// newPhoneMatcher creates a matcher for the number being looked up.
func newPhoneMatcher(phone string) *phoneMatcher {
	digits := normalizePhone(phone)
	suffix := digits
	if len(suffix) > 10 {
		suffix = suffix[len(suffix)-10:]
	}
	return &phoneMatcher{digits: digits, suffix: suffix}
}

// Rank orders candidates: exact matches first, then numbers sharing the last
// ten digits. Candidates matching neither are dropped.
func (m *phoneMatcher) Rank(candidates []models.Contact) []models.Contact {
	if m.digits == "" {
		return nil
	}
	seen := make(map[uuid.UUID]bool)
	var exact, partial []models.Contact
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		stored := normalizePhone(c.Phone)
		switch {
		case stored == m.digits:
			exact = append(exact, c)
		case strings.HasSuffix(stored, m.suffix):
			partial = append(partial, c)
		default:
			continue
		}
		seen[c.ID] = true
	}
	return append(exact, partial...)
}

// normalizePhone keeps only the digits of a phone number.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
