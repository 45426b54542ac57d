package mips

import (
	"errors"

	"github.com/lmips/lmips/translate"
)

var f = translate.From

var (
	// Execution faults
	ErrProgramInvalid = errors.New(f("invalid program"))
	ErrOverflow       = errors.New(f("integer overflow"))

	// Assembler errors
	ErrEquateSyntax       = errors.New(f(".equ syntax"))
	ErrEquateDuplicate    = errors.New(f(".equ duplicated"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrOpcodeMissing      = errors.New(f("operand missing"))
	ErrOpcodeExtraArgs    = errors.New(f("excessive arguments"))
	ErrInstructionInvalid = errors.New(f("instruction invalid"))
	ErrImmediateRange     = errors.New(f("immediate out of range"))
	ErrShiftRange         = errors.New(f("shift amount out of range"))
	ErrTargetRange        = errors.New(f("jump target out of range"))
	ErrBranchRange        = errors.New(f("branch offset out of range"))
)

// ErrInstructionUnknown is an instruction word whose opcode or function
// code is outside the implemented subset.
type ErrInstructionUnknown Instruction

func (eu ErrInstructionUnknown) Error() string {
	return f("unknown instruction 0x%08x", uint32(eu))
}

func (eu ErrInstructionUnknown) Is(err error) (ok bool) {
	_, ok = err.(ErrInstructionUnknown)
	return
}

// ErrSyscallUnknown is an unsupported selector found in $v0 by the
// syscall handler.
type ErrSyscallUnknown Syscall

func (es ErrSyscallUnknown) Error() string {
	return f("unknown syscall %d", int32(es))
}

func (es ErrSyscallUnknown) Is(err error) (ok bool) {
	_, ok = err.(ErrSyscallUnknown)
	return
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

func (el ErrLabelMissing) Is(err error) (ok bool) {
	_, ok = err.(ErrLabelMissing)
	return
}

type ErrRegisterInvalid string

func (er ErrRegisterInvalid) Error() string {
	return f("'%v' is not a register", string(er))
}

func (er ErrRegisterInvalid) Is(err error) (ok bool) {
	_, ok = err.(ErrRegisterInvalid)
	return
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

func (err ErrParseNumber) Is(target error) (ok bool) {
	_, ok = target.(ErrParseNumber)
	return
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

func (err ErrParseExpression) Is(target error) (ok bool) {
	_, ok = target.(ErrParseExpression)
	return
}

// ErrSyntax wraps an assembler error with its source location.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}
