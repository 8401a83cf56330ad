package model

import "errors"

// ErrUnsupportedModification signals a change the delta engine has no rule for.
var ErrUnsupportedModification = errors.New("unsupported modification")

// UnsupportedModificationError names the entity kind and entity whose change
// can't be expressed as commands.
type UnsupportedModificationError struct {
	Kind   string
	Entity string
}

func (e *UnsupportedModificationError) Error() string {
	if e == nil {
		return ErrUnsupportedModification.Error()
	}
	msg := "unsupported modification"
	if e.Kind != "" {
		msg += " kind=" + e.Kind
	}
	if e.Entity != "" {
		msg += " entity=" + e.Entity
	}
	return msg
}

func (e *UnsupportedModificationError) Unwrap() error {
	return ErrUnsupportedModification
}

// AsUnsupportedModification extracts an UnsupportedModificationError from an error chain.
func AsUnsupportedModification(err error) (*UnsupportedModificationError, bool) {
	var unsupported *UnsupportedModificationError
	if errors.As(err, &unsupported) {
		return unsupported, true
	}
	return nil, false
}
