package emulator

import (
	"errors"

	"github.com/lmips/lmips/translate"
)

var f = translate.From

var (
	ErrImageAlign = errors.New(f("image not a whole number of words"))
	ErrImageLimit = errors.New(f("image too large"))
)

// ErrRuntime indicates the location of a runtime error.
type ErrRuntime struct {
	LineNo int
	Err    error
}

func (err *ErrRuntime) Error() string {
	return f("line %d %v", err.LineNo, err.Err)
}

func (err *ErrRuntime) Unwrap() error {
	return err.Err
}
