package mips

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// jumps reports whether an instruction may rewrite the instruction
// pointer to something other than the next word.
func jumps(ins Instruction) bool {
	switch ins.Op() {
	case OP_J, OP_JAL, OP_BEQ, OP_BNE, OP_BLEZ, OP_BGTZ:
		return true
	case OP_SPECIAL:
		fn := ins.Funct()
		return fn == SPE_JR || fn == SPE_JALR
	}
	return false
}

func FuzzStep(f *testing.F) {
	f.Add(uint32(0x20020005), int32(0), int32(0))
	f.Add(uint32(0x00431020), int32(5), int32(7))
	f.Add(uint32(0x0000000C), int32(10), int32(0))
	f.Add(^uint32(0), int32(-1), int32(-1))

	f.Fuzz(func(t *testing.T, word uint32, a int32, b int32) {
		assert := assert.New(t)

		ins := Instruction(word)
		cpu := NewCpu(binary.BigEndian.AppendUint32(nil, word))
		cpu.Reg[ins.Rs()] = a
		cpu.Reg[ins.Rt()] = b

		err := cpu.Step()
		if err != nil {
			// Every fault must belong to the documented taxonomy.
			known := errors.Is(err, ErrOverflow) ||
				errors.Is(err, ErrProgramInvalid) ||
				errors.Is(err, ErrInstructionUnknown(0)) ||
				errors.Is(err, ErrSyscallUnknown(0))
			assert.True(known, "fault outside taxonomy: %v (word 0x%08x)", err, word)
			return
		}

		if !jumps(ins) {
			assert.Equal(uint32(4), cpu.Ip, "0x%08x", word)
		}
	})
}
