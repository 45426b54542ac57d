package emulator

import (
	"fmt"
	"iter"
	"maps"

	"github.com/lmips/lmips/internal"
	"github.com/lmips/lmips/mips"
)

const (
	IMAGE_LIMIT = 1 << 20 // Largest raw program image accepted, in bytes.
)

var _emulator_defines = map[string]string{
	"IMAGE_LIMIT": fmt.Sprintf("%v", IMAGE_LIMIT),
}

// Emulator state. CPU + program listing.
type Emulator struct {
	Verbose bool // If set, enables verbose logging.

	*mips.Cpu               // Reference to the CPU simulation.
	Program   *mips.Program // Reference to the currently loaded listing.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:     &mips.Cpu{},
		Program: &mips.Program{},
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
	)
}

// Reset initializes the CPU with the current listing's program image.
func (emu *Emulator) Reset() {
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Init(emu.Program.Binary())
}

// LoadImage attaches a raw big-endian program image with no listing.
// Diagnostics for raw images carry no source line numbers.
func (emu *Emulator) LoadImage(image []byte) (err error) {
	if len(image) > IMAGE_LIMIT {
		return ErrImageLimit
	}
	if len(image)%4 != 0 {
		return ErrImageAlign
	}

	emu.Program = &mips.Program{}
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Init(image)

	return
}

// LineNo returns the source line number for the instruction at the
// current instruction pointer, or 0 when no listing covers it.
func (emu *Emulator) LineNo() int {
	dbg := emu.Program.Debug(emu.Cpu.Ip)
	if dbg.Line == nil {
		return 0
	}

	return dbg.LineNo
}

// Result returns the $v0 register, the syscall selector/result slot.
func (emu *Emulator) Result() int32 {
	return emu.Cpu.Reg[mips.REG_V0]
}

// Tick performs a single instruction step of the emulator.
func (emu *Emulator) Tick() (done bool, err error) {
	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	lineno := emu.LineNo()
	defer func() {
		if err != nil {
			err = &ErrRuntime{LineNo: lineno, Err: err}
		}
	}()

	err = emu.Cpu.Step()
	if err != nil {
		return
	}

	done = emu.Cpu.Halted

	return
}

// Run executes until the program halts via the exit syscall or a fault
// ends the run. A fault is reported, then returned with its source
// location attached.
func (emu *Emulator) Run() (err error) {
	for {
		var done bool
		done, err = emu.Tick()
		if err != nil {
			emu.Cpu.Halted = true
			mips.ReportFault(err)
			return
		}
		if done {
			return
		}
	}
}
