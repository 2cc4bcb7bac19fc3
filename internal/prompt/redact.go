package prompt

import (
	"regexp"
	"sort"
	"strings"
)

// Sensitive identifiers masked before free text is persisted.
const (
	RedactedSSN  = "[SSN_REDACTED]"
	RedactedCard = "[CARD_REDACTED]"
)

var (
	ssnPattern = regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`)

	// 13 to 19 digits, optionally grouped by single spaces or dashes
	cardPattern = regexp.MustCompile(`\b[0-9](?:[ -]?[0-9]){12,18}\b`)
)

type span struct {
	start, end int
	mask       string
}

// RedactSensitive masks social security numbers and Luhn-valid payment card
// numbers in text. Everything else is returned unchanged.
func RedactSensitive(text string) string {
	var spans []span

	for _, m := range ssnPattern.FindAllStringIndex(text, -1) {
		if validSSN(strings.ReplaceAll(text[m[0]:m[1]], "-", "")) {
			spans = append(spans, span{m[0], m[1], RedactedSSN})
		}
	}
	for _, m := range cardPattern.FindAllStringIndex(text, -1) {
		if luhnValid(text[m[0]:m[1]]) {
			spans = append(spans, span{m[0], m[1], RedactedCard})
		}
	}
	if len(spans) == 0 {
		return text
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	last := 0
	for _, s := range spans {
		if s.start < last {
			continue
		}
		b.WriteString(text[last:s.start])
		b.WriteString(s.mask)
		last = s.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// validSSN rejects the number ranges that are never issued
func validSSN(digits string) bool {
	if len(digits) != 9 {
		return false
	}
	if digits[:3] == "000" || digits[3:5] == "00" || digits[5:] == "0000" {
		return false
	}
	return !strings.HasPrefix(digits, "666") && !strings.HasPrefix(digits, "9")
}

func luhnValid(number string) bool {
	number = strings.NewReplacer(" ", "", "-", "").Replace(number)
	if len(number) < 13 || len(number) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := int(number[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
