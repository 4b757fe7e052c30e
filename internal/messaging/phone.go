package messaging

import "strings"

// NormalizeAU converts local Australian phone formats to E.164. A
// leading 0 is replaced with +61, bare 9-digit mobiles are prefixed,
// and numbers already carrying a country code keep it.
func NormalizeAU(value string) string {
	digits := sanitizePhone(value)
	if digits == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(digits, "61"):
		return "+" + digits
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		return "+61" + digits[1:]
	case len(digits) == 9:
		return "+61" + digits
	default:
		return "+" + digits
	}
}

// PhoneCandidates returns the lookup forms for an inbound sender number:
// the raw value, the E.164 normalization, and the local 0-prefixed form.
// Duplicates are removed, order preserved.
func PhoneCandidates(value string) []string {
	value = strings.TrimSpace(value)
	normalized := NormalizeAU(value)

	candidates := []string{value, normalized}
	if strings.HasPrefix(normalized, "+61") {
		candidates = append(candidates, "0"+normalized[3:])
	}

	seen := make(map[string]bool, len(candidates))
	var out []string
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// sanitizePhone strips everything but digits, preserving a single
// leading zero for local formats.
func sanitizePhone(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
