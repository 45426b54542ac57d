package emulator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lmips/lmips/mips"
)

func TestEmulator(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()

	assert.False(emu.Verbose)
	assert.NotNil(emu.Cpu)
	assert.NotNil(emu.Program)
}

func TestDefines(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()

	defines := map[string]string{}
	for attr, val := range emu.Defines() {
		defines[attr] = val
	}

	assert.Contains(defines, "IMAGE_LIMIT")
	assert.Contains(defines, "STACK_SIZE")
	assert.Contains(defines, "SYS_EXIT")
}

func doRunSource(t *testing.T, source ...string) (emu *Emulator, err error) {
	t.Helper()
	assert := assert.New(t)

	emu = NewEmulator()

	asm := &mips.Assembler{}
	for attr, val := range emu.Defines() {
		asm.Predefine(attr, val)
	}

	prog, err := asm.Parse(strings.NewReader(strings.Join(source, "\n")))
	if !assert.NoError(err) {
		return
	}
	emu.Program = prog

	emu.Reset()
	err = emu.Run()

	return
}

func TestRunExit(t *testing.T) {
	assert := assert.New(t)

	emu, err := doRunSource(t,
		"li $v0 SYS_EXIT",
		"syscall",
	)
	assert.NoError(err)
	assert.True(emu.Cpu.Halted)
	assert.Equal(int32(mips.SYS_EXIT), emu.Result())
}

func TestRunFaultLineNo(t *testing.T) {
	assert := assert.New(t)

	emu, err := doRunSource(t,
		"li $v0 99",
		"syscall",
	)
	assert.True(emu.Cpu.Halted)
	assert.ErrorIs(err, mips.ErrSyscallUnknown(0))

	var runtime *ErrRuntime
	if assert.ErrorAs(err, &runtime) {
		assert.Equal(2, runtime.LineNo)
	}
}

func TestRunOverflowLineNo(t *testing.T) {
	assert := assert.New(t)

	emu, err := doRunSource(t,
		"li $t0 1",
		"sll $t0 $t0 30",
		"add $t1 $t0 $t0 # 2^30 + 2^30",
		"exit",
	)
	assert.True(emu.Cpu.Halted)
	assert.ErrorIs(err, mips.ErrOverflow)

	var runtime *ErrRuntime
	if assert.ErrorAs(err, &runtime) {
		assert.Equal(3, runtime.LineNo)
	}
	// The overflowing add must not commit.
	assert.Zero(emu.Cpu.Reg[9])
}

func TestLoadImage(t *testing.T) {
	assert := assert.New(t)

	// addi $v0 $zero 10; addi $v1 $zero 7; add $a0 $v0 $v1; syscall
	emu := NewEmulator()
	err := emu.LoadImage([]byte{
		0x20, 0x02, 0x00, 0x0A,
		0x20, 0x03, 0x00, 0x07,
		0x00, 0x43, 0x20, 0x20,
		0x00, 0x00, 0x00, 0x0C,
	})
	assert.NoError(err)

	err = emu.Run()
	assert.NoError(err)
	assert.True(emu.Cpu.Halted)
	assert.Equal(int32(mips.SYS_EXIT), emu.Result())
	assert.Equal(int32(17), emu.Cpu.Reg[4])

	// No listing: diagnostics carry line 0.
	assert.Zero(emu.LineNo())
}

func TestLoadImageErrors(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()

	err := emu.LoadImage([]byte{0x20, 0x02, 0x00})
	assert.ErrorIs(err, ErrImageAlign)

	err = emu.LoadImage(make([]byte, IMAGE_LIMIT+4))
	assert.ErrorIs(err, ErrImageLimit)
}

func TestRunEmptyProgram(t *testing.T) {
	assert := assert.New(t)

	emu := NewEmulator()
	emu.Reset()

	err := emu.Run()
	assert.ErrorIs(err, mips.ErrProgramInvalid)
}
