package command

import (
	"errors"
	"fmt"
	"strings"
)

const fence = "```"

// scanner is a cursor over a single statement used by the recursive-descent
// parser. Every method skips leading whitespace.
type scanner struct {
	src string
	pos int
}

func newScanner(src string) *scanner {
	return &scanner{src: src}
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) eof() bool {
	s.skipSpace()
	return s.pos >= len(s.src)
}

func (s *scanner) rest() string {
	s.skipSpace()
	return s.src[s.pos:]
}

func (s *scanner) peek() byte {
	s.skipSpace()
	if s.pos >= len(s.src) {
		return 0
	}
	return s.src[s.pos]
}

func (s *scanner) accept(ch byte) bool {
	if s.peek() == ch && ch != 0 {
		s.pos++
		return true
	}
	return false
}

func (s *scanner) expect(ch byte) error {
	if s.accept(ch) {
		return nil
	}
	return s.errorf("expected '%c'", ch)
}

func (s *scanner) errorf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if s.pos >= len(s.src) {
		return fmt.Errorf("%s at end of statement", msg)
	}
	near := s.src[s.pos:]
	if len(near) > 20 {
		near = near[:20] + "..."
	}
	return fmt.Errorf("%s at offset %d near %q", msg, s.pos, near)
}

func isWordByte(ch byte) bool {
	return ch == '_' || ch == '-' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}

func isIdentByte(ch byte) bool {
	return ch != '-' && isWordByte(ch)
}

// peekWord returns the next keyword-like token without consuming it.
func (s *scanner) peekWord() string {
	s.skipSpace()
	end := s.pos
	for end < len(s.src) && isWordByte(s.src[end]) {
		end++
	}
	return s.src[s.pos:end]
}

// word consumes a keyword-like token (letters, digits, '_' and '-').
func (s *scanner) word() string {
	w := s.peekWord()
	s.pos += len(w)
	return w
}

// acceptWord consumes the keyword when it is next, case-insensitively.
func (s *scanner) acceptWord(keyword string) bool {
	if strings.EqualFold(s.peekWord(), keyword) {
		s.pos += len(keyword)
		return true
	}
	return false
}

func (s *scanner) expectWord(keyword string) error {
	if s.acceptWord(keyword) {
		return nil
	}
	return s.errorf("expected '%s'", keyword)
}

// name parses an entity name: a plain identifier or a bracketed string.
func (s *scanner) name() (EntityName, error) {
	s.skipSpace()
	if s.pos >= len(s.src) {
		return EntityName{}, s.errorf("expected a name")
	}
	if s.src[s.pos] == '[' {
		s.pos++
		text, err := s.quoted()
		if err != nil {
			return EntityName{}, err
		}
		if err := s.expect(']'); err != nil {
			return EntityName{}, err
		}
		if text.text == "" {
			return EntityName{}, errors.New("empty bracketed name")
		}
		return NewEntityName(text.text), nil
	}
	end := s.pos
	for end < len(s.src) && isIdentByte(s.src[end]) {
		end++
	}
	if end == s.pos {
		return EntityName{}, s.errorf("expected a name")
	}
	value := s.src[s.pos:end]
	s.pos = end
	return NewEntityName(value), nil
}

// nameList parses "(a, b, c)".
func (s *scanner) nameList() ([]EntityName, error) {
	if err := s.expect('('); err != nil {
		return nil, err
	}
	var names []EntityName
	for {
		n, err := s.name()
		if err != nil {
			return nil, err
		}
		names = append(names, n)
		if s.accept(',') {
			continue
		}
		if err := s.expect(')'); err != nil {
			return nil, err
		}
		return names, nil
	}
}

// typeName parses a column type token such as "string" or "System.String".
func (s *scanner) typeName() (string, error) {
	s.skipSpace()
	end := s.pos
	for end < len(s.src) && (isIdentByte(s.src[end]) || s.src[end] == '.') {
		end++
	}
	if end == s.pos {
		return "", s.errorf("expected a type")
	}
	raw := s.src[s.pos:end]
	s.pos = end
	return NormalizeType(raw)
}

// quoted parses a Kusto string literal: "...", '...', @"..." or @'...'.
func (s *scanner) quoted() (QuotedText, error) {
	s.skipSpace()
	if s.pos >= len(s.src) {
		return QuotedText{}, s.errorf("expected a string literal")
	}
	verbatim := false
	if s.src[s.pos] == '@' {
		verbatim = true
		s.pos++
	}
	if s.pos >= len(s.src) || (s.src[s.pos] != '"' && s.src[s.pos] != '\'') {
		return QuotedText{}, s.errorf("expected a string literal")
	}
	quote := s.src[s.pos]
	start := s.pos
	s.pos++
	var b strings.Builder
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case ch == quote:
			if verbatim && s.pos+1 < len(s.src) && s.src[s.pos+1] == quote {
				b.WriteByte(quote)
				s.pos += 2
				continue
			}
			s.pos++
			return NewQuotedText(b.String()), nil
		case ch == '\\' && !verbatim:
			if s.pos+1 >= len(s.src) {
				s.pos = start
				return QuotedText{}, s.errorf("unterminated string literal")
			}
			b.WriteByte(unescape(s.src[s.pos+1]))
			s.pos += 2
		default:
			b.WriteByte(ch)
			s.pos++
		}
	}
	s.pos = start
	return QuotedText{}, s.errorf("unterminated string literal")
}

func unescape(ch byte) byte {
	switch ch {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	default:
		return ch
	}
}

// fenced returns the text between a pair of triple backticks.
func (s *scanner) fenced() (string, error) {
	s.skipSpace()
	if !strings.HasPrefix(s.src[s.pos:], fence) {
		return "", s.errorf("expected '%s'", fence)
	}
	start := s.pos + len(fence)
	end := strings.Index(s.src[start:], fence)
	if end < 0 {
		return "", s.errorf("unterminated '%s' block", fence)
	}
	s.pos = start + end + len(fence)
	return s.src[start : start+end], nil
}

// block returns the text inside a brace-balanced block, honoring string
// literals and line comments.
func (s *scanner) block() (string, error) {
	if err := s.expect('{'); err != nil {
		return "", err
	}
	start := s.pos
	depth := 1
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case ch == '"' || ch == '\'' || (ch == '@' && s.pos+1 < len(s.src) && (s.src[s.pos+1] == '"' || s.src[s.pos+1] == '\'')):
			if _, err := s.quoted(); err != nil {
				return "", err
			}
			continue
		case ch == '/' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/':
			newline := strings.IndexByte(s.src[s.pos:], '\n')
			if newline < 0 {
				s.pos = len(s.src)
				continue
			}
			s.pos += newline
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				body := s.src[start:s.pos]
				s.pos++
				return body, nil
			}
		}
		s.pos++
	}
	return "", s.errorf("unterminated '{' block")
}

// rawValue captures literal text up to a top-level ',' or ')'.
func (s *scanner) rawValue() (string, error) {
	s.skipSpace()
	start := s.pos
	depth := 0
	for s.pos < len(s.src) {
		ch := s.src[s.pos]
		switch {
		case ch == '"' || ch == '\'':
			if _, err := s.quoted(); err != nil {
				return "", err
			}
			continue
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case ch == ')' || ch == ']' || ch == '}':
			if depth == 0 {
				return s.trimmedSince(start)
			}
			depth--
		case ch == ',' && depth == 0:
			return s.trimmedSince(start)
		}
		s.pos++
	}
	return "", s.errorf("unterminated value")
}

func (s *scanner) trimmedSince(start int) (string, error) {
	value := strings.TrimSpace(s.src[start:s.pos])
	if value == "" {
		return "", s.errorf("expected a value")
	}
	return value, nil
}
