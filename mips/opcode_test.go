package mips

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldRoundTrip(t *testing.T) {
	assert := assert.New(t)

	rTable := [](struct {
		name       string
		fn         Funct
		rs, rt, rd uint8
		shamt      uint8
	}){
		{"add", SPE_ADD, 2, 3, 4, 0},
		{"sll_max", SPE_SLL, 0, 31, 31, 31},
		{"syscall", SPE_SYSCALL, 0, 0, 0, 0},
		{"sltu", SPE_SLTU, 29, 31, 1, 5},
	}

	for _, entry := range rTable {
		ins := MakeR(entry.fn, entry.rs, entry.rt, entry.rd, entry.shamt)
		assert.Equal(OP_SPECIAL, ins.Op(), entry.name)
		assert.Equal(entry.rs, ins.Rs(), entry.name)
		assert.Equal(entry.rt, ins.Rt(), entry.name)
		assert.Equal(entry.rd, ins.Rd(), entry.name)
		assert.Equal(entry.shamt, ins.Shamt(), entry.name)
		assert.Equal(entry.fn, ins.Funct(), entry.name)
	}

	iTable := [](struct {
		name   string
		op     Opcode
		rs, rt uint8
		imm    uint16
	}){
		{"addi", OP_ADDI, 0, 2, 5},
		{"beq_neg", OP_BEQ, 4, 5, 0xFFFF},
		{"ori", OP_ORI, 31, 1, 0x8000},
	}

	for _, entry := range iTable {
		ins := MakeI(entry.op, entry.rs, entry.rt, entry.imm)
		assert.Equal(entry.op, ins.Op(), entry.name)
		assert.Equal(entry.rs, ins.Rs(), entry.name)
		assert.Equal(entry.rt, ins.Rt(), entry.name)
		assert.Equal(entry.imm, ins.Imm(), entry.name)
	}

	jTable := [](struct {
		name   string
		op     Opcode
		target uint32
	}){
		{"j", OP_J, 0},
		{"jal", OP_JAL, 0x3FFFFFF},
		{"j_mid", OP_J, 0x123456},
	}

	for _, entry := range jTable {
		ins := MakeJ(entry.op, entry.target)
		assert.Equal(entry.op, ins.Op(), entry.name)
		assert.Equal(entry.target, ins.Target(), entry.name)
	}
}

func TestExtend(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(int32(5), SignExtend(5, 16))
	assert.Equal(int32(-1), SignExtend(0xFFFF, 16))
	assert.Equal(int32(-0x8000), SignExtend(0x8000, 16))
	assert.Equal(int32(0x7FFF), SignExtend(0x7FFF, 16))

	assert.Equal(uint32(5), ZeroExtend(5, 16))
	assert.Equal(uint32(0xFFFF), ZeroExtend(0xFFFF, 16))
	assert.Equal(uint32(0x8000), ZeroExtend(0x8000, 16))
}

func TestInstructionString(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		ins  Instruction
		text string
	}){
		{MakeR(SPE_ADD, REG_V0, REG_V1, REG_V0, 0), "add $v0 $v0 $v1"},
		{MakeR(SPE_SLL, 0, 8, 9, 4), "sll $t1 $t0 4"},
		{MakeR(SPE_SYSCALL, 0, 0, 0, 0), "syscall"},
		{MakeI(OP_ADDI, REG_ZERO, REG_V0, 5), "addi $v0 $zero 5"},
		{MakeI(OP_BEQ, 8, 9, 0xFFFF), "beq $t0 $t1 -1"},
		{MakeJ(OP_J, 0x10>>2), "j 0x10"},
		{Instruction(0xFC000000), "0xfc000000"},
	}

	for _, entry := range table {
		assert.Equal(entry.text, entry.ins.String())
	}
}

func FuzzInstructionFields(f *testing.F) {
	f.Add(uint32(0))
	f.Add(uint32(0x20020005))
	f.Add(uint32(0x00431020))
	f.Add(^uint32(0))

	f.Fuzz(func(t *testing.T, word uint32) {
		assert := assert.New(t)

		ins := Instruction(word)

		// The I-type field view covers every bit of the word.
		rebuilt := MakeI(ins.Op(), ins.Rs(), ins.Rt(), ins.Imm())
		assert.Equal(word, uint32(rebuilt))

		// The R-type fields repack to the low 26 bits.
		packed := MakeR(ins.Funct(), ins.Rs(), ins.Rt(), ins.Rd(), ins.Shamt())
		assert.Equal(word&0x3FFFFFF, uint32(packed))

		assert.Equal(word&0x3FFFFFF, ins.Target())
	})
}
