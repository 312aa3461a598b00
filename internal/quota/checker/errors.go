package checker

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownType    = errors.New("unknown quota checker type")
	ErrOptionRequired = errors.New("required option not provided")
)

// OptionError reports a missing adapter option for a checker instance.
type OptionError struct {
	CheckerID string
	Key       string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("quota checker %s: %s: %s", e.CheckerID, ErrOptionRequired.Error(), e.Key)
}

func (e *OptionError) Unwrap() error {
	return ErrOptionRequired
}
