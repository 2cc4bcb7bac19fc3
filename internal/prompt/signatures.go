package prompt

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// Category groups manipulation signatures by the kind of attack they detect.
type Category string

const (
	CategoryInstructionOverride Category = "instruction-override"
	CategorySystemDisclosure    Category = "system-disclosure"
	CategoryRoleElevation       Category = "role-elevation"
	CategorySecurityBypass      Category = "security-bypass"
	CategoryBulkDisclosure      Category = "bulk-disclosure"
	CategorySQLControl          Category = "sql-control"

	// CategoryAnomaly is reported by the structural checks. It cannot be used
	// in a signature table.
	CategoryAnomaly Category = "anomaly"
)

// categoryOrder lists signature categories from most to least dangerous.
var categoryOrder = []Category{
	CategoryInstructionOverride,
	CategorySystemDisclosure,
	CategoryRoleElevation,
	CategorySecurityBypass,
	CategoryBulkDisclosure,
	CategorySQLControl,
}

// Rank returns the evaluation position of the category, or -1 if the category
// is not a signature category.
func (c Category) Rank() int {
	for i, cat := range categoryOrder {
		if cat == c {
			return i
		}
	}
	return -1
}

// IsValid reports whether signatures may be declared under the category.
func (c Category) IsValid() bool {
	return c.Rank() >= 0
}

var (
	ErrUnknownCategory  = errors.New("unknown signature category")
	ErrInvalidPattern   = errors.New("invalid signature pattern")
	ErrInvalidSignature = errors.New("invalid signature")
)

//go:embed signatures.yaml
var defaultSignaturesYAML []byte

// Signature is one row of the signature table.
type Signature struct {
	Category    Category `yaml:"category"`
	Name        string   `yaml:"name"`
	Pattern     string   `yaml:"pattern"`
	Priority    int      `yaml:"priority"`
	Description string   `yaml:"description"`

	re *regexp.Regexp
}

// SignatureTable is a compiled, ordered set of signatures.
type SignatureTable struct {
	Version    int         `yaml:"version"`
	Signatures []Signature `yaml:"signatures"`
}

// Len returns the number of signatures in the table.
func (t *SignatureTable) Len() int {
	return len(t.Signatures)
}

// DefaultSignatures returns the signature table compiled into the binary.
func DefaultSignatures() (*SignatureTable, error) {
	return ParseSignatures(defaultSignaturesYAML)
}

// LoadSignaturesFile reads a signature table from disk.
func LoadSignaturesFile(path string) (*SignatureTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open signature file: %w", err)
	}
	defer f.Close()

	return LoadSignatures(f)
}

// LoadSignatures reads a YAML signature table from r.
func LoadSignatures(r io.Reader) (*SignatureTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read signatures: %w", err)
	}
	return ParseSignatures(data)
}

// ParseSignatures decodes, validates and compiles a YAML signature table.
// Patterns are compiled case-insensitively and the rows are sorted by
// category rank and then by ascending priority.
func ParseSignatures(data []byte) (*SignatureTable, error) {
	var table SignatureTable
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&table); err != nil {
		return nil, fmt.Errorf("failed to decode signatures: %w", err)
	}

	seen := make(map[string]struct{}, len(table.Signatures))
	for i := range table.Signatures {
		sig := &table.Signatures[i]
		if sig.Name == "" {
			return nil, fmt.Errorf("%w: row %d has no name", ErrInvalidSignature, i)
		}
		if _, dup := seen[sig.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidSignature, sig.Name)
		}
		seen[sig.Name] = struct{}{}

		if !sig.Category.IsValid() {
			return nil, fmt.Errorf("%w: %q in signature %q", ErrUnknownCategory, sig.Category, sig.Name)
		}
		if sig.Pattern == "" {
			return nil, fmt.Errorf("%w: signature %q has an empty pattern", ErrInvalidPattern, sig.Name)
		}
		re, err := regexp.Compile("(?i)" + sig.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: signature %q: %v", ErrInvalidPattern, sig.Name, err)
		}
		sig.re = re
	}

	sort.SliceStable(table.Signatures, func(i, j int) bool {
		a, b := table.Signatures[i], table.Signatures[j]
		if ra, rb := a.Category.Rank(), b.Category.Rank(); ra != rb {
			return ra < rb
		}
		return a.Priority < b.Priority
	})

	return &table, nil
}
