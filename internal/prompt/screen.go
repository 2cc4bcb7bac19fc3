package prompt

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Mode controls whether a rejection stops the request.
type Mode string

const (
	// ModeEnforcing blocks rejected input before any agent call.
	ModeEnforcing Mode = "enforcing"
	// ModeAdvisory only reports rejections. Not valid in production.
	ModeAdvisory Mode = "advisory"
)

// ParseMode accepts "enforcing"/"strict" and "advisory"/"warn".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enforcing", "strict":
		return ModeEnforcing, nil
	case "advisory", "warn":
		return ModeAdvisory, nil
	default:
		return "", fmt.Errorf("invalid screen mode: %q", s)
	}
}

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeEnforcing || m == ModeAdvisory
}

// Limits configures the structural anomaly checks. A zero value disables
// the corresponding check.
type Limits struct {
	MaxInputLength      int
	MaxSpecialCharRatio float64
}

// DefaultLimits returns the default anomaly thresholds.
func DefaultLimits() Limits {
	return Limits{
		MaxInputLength:      2000,
		MaxSpecialCharRatio: 0.5,
	}
}

// Verdict is the outcome of screening one piece of text.
type Verdict struct {
	Rejected  bool
	Reason    string
	Category  Category
	Signature string
	Match     string
	Mode      Mode
}

// Allowed reports whether no signature matched.
func (v Verdict) Allowed() bool {
	return !v.Rejected
}

// Blocks reports whether the verdict must stop the request.
func (v Verdict) Blocks() bool {
	return v.Rejected && v.Mode == ModeEnforcing
}

const maxMatchLength = 80

// Screen checks free text against a signature table. A Screen holds no
// mutable state and is safe for concurrent use.
type Screen struct {
	table  *SignatureTable
	limits Limits
}

// NewScreen creates a screen over a compiled signature table.
func NewScreen(table *SignatureTable, limits Limits) *Screen {
	return &Screen{
		table:  table,
		limits: limits,
	}
}

// NewDefaultScreen creates a screen over the built-in signatures and limits.
func NewDefaultScreen() (*Screen, error) {
	table, err := DefaultSignatures()
	if err != nil {
		return nil, err
	}
	return NewScreen(table, DefaultLimits()), nil
}

// SignatureCount returns the number of loaded signatures.
func (s *Screen) SignatureCount() int {
	return s.table.Len()
}

// Check screens text. The first signature that matches wins; signatures are
// already ordered by category priority. Anomaly checks run last.
func (s *Screen) Check(text string, mode Mode) Verdict {
	if strings.TrimSpace(text) == "" {
		return Verdict{Mode: mode}
	}

	for _, sig := range s.table.Signatures {
		loc := sig.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		return Verdict{
			Rejected:  true,
			Reason:    fmt.Sprintf("%s: %s", sig.Category, sig.Description),
			Category:  sig.Category,
			Signature: sig.Name,
			Match:     truncate(text[loc[0]:loc[1]], maxMatchLength),
			Mode:      mode,
		}
	}

	if reason, name := s.checkAnomalies(text); reason != "" {
		return Verdict{
			Rejected:  true,
			Reason:    fmt.Sprintf("%s: %s", CategoryAnomaly, reason),
			Category:  CategoryAnomaly,
			Signature: name,
			Mode:      mode,
		}
	}

	return Verdict{Mode: mode}
}

func (s *Screen) checkAnomalies(text string) (string, string) {
	length := utf8.RuneCountInString(text)
	if s.limits.MaxInputLength > 0 && length > s.limits.MaxInputLength {
		return fmt.Sprintf("input length %d exceeds %d characters", length, s.limits.MaxInputLength), "input_too_long"
	}

	if s.limits.MaxSpecialCharRatio > 0 {
		special := 0
		for _, r := range text {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
				special++
			}
		}
		ratio := float64(special) / float64(length)
		if ratio > s.limits.MaxSpecialCharRatio {
			return fmt.Sprintf("special character ratio %.2f exceeds %.2f", ratio, s.limits.MaxSpecialCharRatio), "special_char_ratio"
		}
	}

	return "", ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
