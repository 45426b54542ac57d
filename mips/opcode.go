package mips

import (
	"fmt"
)

// Opcode is the 6-bit primary instruction class selector.
type Opcode uint8

const (
	OP_SPECIAL = Opcode(0x00)
	OP_J       = Opcode(0x02)
	OP_JAL     = Opcode(0x03)
	OP_BEQ     = Opcode(0x04)
	OP_BNE     = Opcode(0x05)
	OP_BLEZ    = Opcode(0x06)
	OP_BGTZ    = Opcode(0x07)
	OP_ADDI    = Opcode(0x08)
	OP_ADDIU   = Opcode(0x09)
	OP_SLTI    = Opcode(0x0A)
	OP_SLTIU   = Opcode(0x0B)
	OP_ANDI    = Opcode(0x0C)
	OP_ORI     = Opcode(0x0D)
	OP_XORI    = Opcode(0x0E)
)

// Funct is the 6-bit secondary selector, used only within OP_SPECIAL.
type Funct uint8

const (
	SPE_SLL     = Funct(0x00)
	SPE_SRL     = Funct(0x02)
	SPE_SRA     = Funct(0x03)
	SPE_SLLV    = Funct(0x04)
	SPE_SRLV    = Funct(0x06)
	SPE_SRAV    = Funct(0x07)
	SPE_JR      = Funct(0x08)
	SPE_JALR    = Funct(0x09)
	SPE_SYSCALL = Funct(0x0C)
	SPE_MFHI    = Funct(0x10)
	SPE_MTHI    = Funct(0x11)
	SPE_MFLO    = Funct(0x12)
	SPE_MTLO    = Funct(0x13)
	SPE_MULT    = Funct(0x18)
	SPE_MULTU   = Funct(0x19)
	SPE_DIV     = Funct(0x1A)
	SPE_DIVU    = Funct(0x1B)
	SPE_ADD     = Funct(0x20)
	SPE_ADDU    = Funct(0x21)
	SPE_SUB     = Funct(0x22)
	SPE_SUBU    = Funct(0x23)
	SPE_AND     = Funct(0x24)
	SPE_OR      = Funct(0x25)
	SPE_XOR     = Funct(0x26)
	SPE_NOR     = Funct(0x27)
	SPE_SLT     = Funct(0x2A)
	SPE_SLTU    = Funct(0x2B)
)

// Syscall is a system call selector, read from $v0.
type Syscall int32

const (
	SYS_EXIT = Syscall(10)
)

// Register indices with an architectural or conventional role.
const (
	REG_ZERO  = 0  // Constant zero by convention (writes are not blocked).
	REG_V0    = 2  // Syscall selector / result.
	REG_V1    = 3  // Result.
	REG_SP    = 29 // Stack pointer.
	REG_RA    = 31 // Return address, written by jal/jalr.
	REG_COUNT = 32
)

// STACK_SIZE is the preset loaded into $sp by Init.
const STACK_SIZE = 0x100000

// regName maps register indices to their conventional names.
var regName = [REG_COUNT]string{
	"$zero", "$at", "$v0", "$v1", "$a0", "$a1", "$a2", "$a3",
	"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7",
	"$s0", "$s1", "$s2", "$s3", "$s4", "$s5", "$s6", "$s7",
	"$t8", "$t9", "$k0", "$k1", "$gp", "$sp", "$fp", "$ra",
}

// RegisterName returns the conventional name for a register index.
func RegisterName(reg uint8) string {
	if int(reg) >= len(regName) {
		return fmt.Sprintf("$%d", reg)
	}
	return regName[reg]
}

// opcodeNames maps non-SPECIAL opcodes to mnemonics. The assembler
// derives its mnemonic table from this map and functNames, so the two
// directions can never drift apart.
var opcodeNames = map[Opcode]string{
	OP_J:     "j",
	OP_JAL:   "jal",
	OP_BEQ:   "beq",
	OP_BNE:   "bne",
	OP_BLEZ:  "blez",
	OP_BGTZ:  "bgtz",
	OP_ADDI:  "addi",
	OP_ADDIU: "addiu",
	OP_SLTI:  "slti",
	OP_SLTIU: "sltiu",
	OP_ANDI:  "andi",
	OP_ORI:   "ori",
	OP_XORI:  "xori",
}

// functNames maps OP_SPECIAL function codes to mnemonics.
var functNames = map[Funct]string{
	SPE_SLL:     "sll",
	SPE_SRL:     "srl",
	SPE_SRA:     "sra",
	SPE_SLLV:    "sllv",
	SPE_SRLV:    "srlv",
	SPE_SRAV:    "srav",
	SPE_JR:      "jr",
	SPE_JALR:    "jalr",
	SPE_SYSCALL: "syscall",
	SPE_MFHI:    "mfhi",
	SPE_MTHI:    "mthi",
	SPE_MFLO:    "mflo",
	SPE_MTLO:    "mtlo",
	SPE_MULT:    "mult",
	SPE_MULTU:   "multu",
	SPE_DIV:     "div",
	SPE_DIVU:    "divu",
	SPE_ADD:     "add",
	SPE_ADDU:    "addu",
	SPE_SUB:     "sub",
	SPE_SUBU:    "subu",
	SPE_AND:     "and",
	SPE_OR:      "or",
	SPE_XOR:     "xor",
	SPE_NOR:     "nor",
	SPE_SLT:     "slt",
	SPE_SLTU:    "sltu",
}

func (op Opcode) String() string {
	if op == OP_SPECIAL {
		return "special"
	}
	name, ok := opcodeNames[op]
	if !ok {
		return fmt.Sprintf("Opcode(0x%02x)", uint8(op))
	}
	return name
}

func (fn Funct) String() string {
	name, ok := functNames[fn]
	if !ok {
		return fmt.Sprintf("Funct(0x%02x)", uint8(fn))
	}
	return name
}

// Instruction is a single raw 32-bit instruction word. All field
// accessors are pure mask-and-shift extractions with no side effects.
type Instruction uint32

// Op extracts bits 31-26, the primary opcode.
func (ins Instruction) Op() Opcode {
	return Opcode(ins >> 26)
}

// Rs extracts bits 25-21.
func (ins Instruction) Rs() uint8 {
	return uint8((ins >> 21) & 0x1F)
}

// Rt extracts bits 20-16.
func (ins Instruction) Rt() uint8 {
	return uint8((ins >> 16) & 0x1F)
}

// Rd extracts bits 15-11.
func (ins Instruction) Rd() uint8 {
	return uint8((ins >> 11) & 0x1F)
}

// Shamt extracts bits 10-6, the shift amount.
func (ins Instruction) Shamt() uint8 {
	return uint8((ins >> 6) & 0x1F)
}

// Funct extracts bits 5-0, the OP_SPECIAL function code.
func (ins Instruction) Funct() Funct {
	return Funct(ins & 0x3F)
}

// Imm extracts bits 15-0, the 16-bit immediate.
func (ins Instruction) Imm() uint16 {
	return uint16(ins & 0xFFFF)
}

// Target extracts bits 25-0, the 26-bit jump target.
func (ins Instruction) Target() uint32 {
	return uint32(ins) & 0x3FFFFFF
}

// MakeR forms an R-type (OP_SPECIAL) instruction word.
func MakeR(fn Funct, rs, rt, rd, shamt uint8) Instruction {
	return Instruction(uint32(rs&0x1F)<<21 |
		uint32(rt&0x1F)<<16 |
		uint32(rd&0x1F)<<11 |
		uint32(shamt&0x1F)<<6 |
		uint32(fn)&0x3F)
}

// MakeI forms an I-type instruction word.
func MakeI(op Opcode, rs, rt uint8, imm uint16) Instruction {
	return Instruction(uint32(op)<<26 |
		uint32(rs&0x1F)<<21 |
		uint32(rt&0x1F)<<16 |
		uint32(imm))
}

// MakeJ forms a J-type instruction word.
func MakeJ(op Opcode, target uint32) Instruction {
	return Instruction(uint32(op)<<26 | target&0x3FFFFFF)
}

// SignExtend widens an n-bit quantity by replicating bit n-1 into all
// higher bits.
func SignExtend(x uint16, n uint) int32 {
	v := int32(x)
	if (v>>(n-1))&1 != 0 {
		v |= int32(^uint32(0) << n)
	}
	return v
}

// ZeroExtend widens an n-bit quantity with zero high bits. A no-op for
// values already held as uint32; present to make intent explicit at
// call sites.
func ZeroExtend(x uint16, n uint) uint32 {
	return uint32(x) &^ (^uint32(0) << n)
}

// String renders the instruction in listing form.
func (ins Instruction) String() string {
	op := ins.Op()
	switch op {
	case OP_SPECIAL:
		fn := ins.Funct()
		name, ok := functNames[fn]
		if !ok {
			return fmt.Sprintf("0x%08x", uint32(ins))
		}
		switch fn {
		case SPE_SLL, SPE_SRL, SPE_SRA:
			return fmt.Sprintf("%s %s %s %d", name,
				RegisterName(ins.Rd()), RegisterName(ins.Rt()), ins.Shamt())
		case SPE_SLLV, SPE_SRLV, SPE_SRAV:
			return fmt.Sprintf("%s %s %s %s", name,
				RegisterName(ins.Rd()), RegisterName(ins.Rt()), RegisterName(ins.Rs()))
		case SPE_JR, SPE_MTHI, SPE_MTLO:
			return fmt.Sprintf("%s %s", name, RegisterName(ins.Rs()))
		case SPE_JALR:
			return fmt.Sprintf("%s %s %s", name,
				RegisterName(ins.Rd()), RegisterName(ins.Rs()))
		case SPE_SYSCALL:
			return name
		case SPE_MFHI, SPE_MFLO:
			return fmt.Sprintf("%s %s", name, RegisterName(ins.Rd()))
		case SPE_MULT, SPE_MULTU, SPE_DIV, SPE_DIVU:
			return fmt.Sprintf("%s %s %s", name,
				RegisterName(ins.Rs()), RegisterName(ins.Rt()))
		default:
			return fmt.Sprintf("%s %s %s %s", name,
				RegisterName(ins.Rd()), RegisterName(ins.Rs()), RegisterName(ins.Rt()))
		}
	case OP_J, OP_JAL:
		return fmt.Sprintf("%s 0x%x", op, ins.Target()<<2)
	case OP_BEQ, OP_BNE:
		return fmt.Sprintf("%s %s %s %d", op,
			RegisterName(ins.Rs()), RegisterName(ins.Rt()), SignExtend(ins.Imm(), 16))
	case OP_BLEZ, OP_BGTZ:
		return fmt.Sprintf("%s %s %d", op,
			RegisterName(ins.Rs()), SignExtend(ins.Imm(), 16))
	case OP_ADDI, OP_SLTI:
		return fmt.Sprintf("%s %s %s %d", op,
			RegisterName(ins.Rt()), RegisterName(ins.Rs()), SignExtend(ins.Imm(), 16))
	case OP_ADDIU, OP_SLTIU, OP_ANDI, OP_ORI, OP_XORI:
		return fmt.Sprintf("%s %s %s 0x%x", op,
			RegisterName(ins.Rt()), RegisterName(ins.Rs()), ins.Imm())
	default:
		return fmt.Sprintf("0x%08x", uint32(ins))
	}
}
