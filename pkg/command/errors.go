package command

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks statements that do not match any recognized command shape.
	ErrParse = errors.New("parse command")
	// ErrUnsupportedCommandKind marks recognized constructs without a handler.
	ErrUnsupportedCommandKind = errors.New("unsupported command kind")
	// ErrPolicyDecode marks policy payloads that cannot be decoded.
	ErrPolicyDecode = errors.New("decode policy")
)

// ParseError carries the offending statement verbatim.
type ParseError struct {
	Statement string
	Err       error
}

func (e *ParseError) Error() string {
	if e == nil {
		return ErrParse.Error()
	}
	msg := "issue parsing script"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + "\nstatement:\n" + e.Statement
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// AsParseError extracts a ParseError from an error chain.
func AsParseError(err error) (*ParseError, bool) {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr, true
	}
	return nil, false
}

// UnsupportedCommandKindError is returned for a recognized command keyword whose
// specific form has no handler, e.g. ".alter table T policy caching".
type UnsupportedCommandKindError struct {
	Keyword string
	Kind    string
}

func (e *UnsupportedCommandKindError) Error() string {
	if e == nil {
		return ErrUnsupportedCommandKind.Error()
	}
	return fmt.Sprintf("can't handle command kind '%s %s'", e.Keyword, e.Kind)
}

func (e *UnsupportedCommandKindError) Unwrap() error {
	return ErrUnsupportedCommandKind
}

// PolicyDecodeError reports a policy payload or field that can't be decoded.
type PolicyDecodeError struct {
	Policy string
	Field  string
	Value  string
	Err    error
}

func (e *PolicyDecodeError) Error() string {
	if e == nil {
		return ErrPolicyDecode.Error()
	}
	msg := "can't decode " + e.Policy + " policy"
	if e.Field != "" {
		msg += fmt.Sprintf(": can't parse '%s' value '%s'", e.Field, e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PolicyDecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPolicyDecode}
	}
	return []error{ErrPolicyDecode, e.Err}
}

// AsPolicyDecodeError extracts a PolicyDecodeError from an error chain.
func AsPolicyDecodeError(err error) (*PolicyDecodeError, bool) {
	var decodeErr *PolicyDecodeError
	if errors.As(err, &decodeErr) {
		return decodeErr, true
	}
	return nil, false
}
