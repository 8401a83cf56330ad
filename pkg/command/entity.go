package command

import (
	"strings"
)

// EntityType identifies the kind of entity a policy is attached to.
type EntityType string

const (
	EntityTypeDatabase EntityType = "database"
	EntityTypeTable    EntityType = "table"
)

// EntityName is a normalized Kusto entity identifier.
//
// Kusto names are case-sensitive, so normalization only removes bracket
// quoting. The zero value is the empty name.
type EntityName struct {
	name string
}

// NewEntityName returns the entity name for an already unescaped name.
func NewEntityName(name string) EntityName {
	return EntityName{name: name}
}

// Name returns the unescaped name.
func (n EntityName) Name() string {
	return n.name
}

// IsZero reports whether the name is empty.
func (n EntityName) IsZero() bool {
	return n.name == ""
}

// Compare orders names by their normalized form.
func (n EntityName) Compare(other EntityName) int {
	return strings.Compare(n.name, other.name)
}

// Script renders the name as it must appear in a command.
func (n EntityName) Script() string {
	if isPlainIdentifier(n.name) && !isReservedWord(n.name) {
		return n.name
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(n.name)
	return "['" + escaped + "']"
}

func (n EntityName) String() string {
	return n.Script()
}

func isPlainIdentifier(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		ch := value[i]
		switch {
		case ch == '_', ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

var reservedWords = map[string]struct{}{
	"columns":           {},
	"column-docstrings": {},
	"database":          {},
	"function":          {},
	"functions":         {},
	"ifexists":          {},
	"ifnotexists":       {},
	"merge":             {},
	"policy":            {},
	"table":             {},
	"tables":            {},
	"with":              {},
}

func isReservedWord(value string) bool {
	_, ok := reservedWords[strings.ToLower(value)]
	return ok
}

// QuotedText is a literal string carried inside a command payload.
type QuotedText struct {
	text string
}

// NewQuotedText wraps already unescaped text.
func NewQuotedText(text string) QuotedText {
	return QuotedText{text: text}
}

// NewQuotedTextPtr is a convenience for optional command fields.
func NewQuotedTextPtr(text string) *QuotedText {
	q := NewQuotedText(text)
	return &q
}

// Text returns the unescaped text.
func (q QuotedText) Text() string {
	return q.text
}

// Script renders the text as a double-quoted Kusto string literal.
func (q QuotedText) Script() string {
	var b strings.Builder
	b.Grow(len(q.text) + 2)
	b.WriteByte('"')
	for i := 0; i < len(q.text); i++ {
		ch := q.text[i]
		switch ch {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(ch)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func (q QuotedText) String() string {
	return q.Script()
}

// EqualText compares optional texts; two nil values are equal.
func EqualText(a, b *QuotedText) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.text == b.text
}

func cloneText(q *QuotedText) *QuotedText {
	if q == nil {
		return nil
	}
	c := *q
	return &c
}
