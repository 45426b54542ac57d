package mips

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"math"
	"strings"
)

var _cpu_defines = map[string]string{
	"STACK_SIZE": fmt.Sprintf("%#x", STACK_SIZE),
	"SYS_EXIT":   fmt.Sprintf("%d", SYS_EXIT),
}

// Cpu is the simulation context for one MIPS32-subset processor.
//
// A Cpu is a plain value owned by its caller. Running two programs
// concurrently takes two independent Cpu values; there is no shared
// state between instances.
type Cpu struct {
	Verbose bool // Set to enable verbose instruction tracing.

	Reg [REG_COUNT]int32 // General purpose register file.
	Hi  int32            // Multiply/divide result, upper word / remainder.
	Lo  int32            // Multiply/divide result, lower word / quotient.

	Ip      uint32 // Byte offset of the next instruction word.
	Halted  bool   // Set by the exit syscall. Monotonic until Reset.
	Program []byte // Borrowed, immutable program image.
}

// NewCpu creates a new CPU initialized with a program image.
func NewCpu(program []byte) (cpu *Cpu) {
	cpu = &Cpu{}
	cpu.Init(program)

	return
}

// Defines for the cpu, fed to assembler predefines.
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// Reset returns every field to zero, including the program reference.
// Init is the higher-level primitive that follows up with the stack
// pointer preset and program attach.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("mips: reset")
	}

	clear(cpu.Reg[:])
	cpu.Hi = 0
	cpu.Lo = 0
	cpu.Ip = 0
	cpu.Halted = false
	cpu.Program = nil
}

// Init resets the CPU, presets $sp to the stack size, and attaches the
// program image. A nil or empty image is accepted here; running one
// fails with ErrProgramInvalid.
func (cpu *Cpu) Init(program []byte) {
	cpu.Reset()
	cpu.Reg[REG_SP] = STACK_SIZE
	cpu.Program = program
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "   ip: %08x  halted: %v\n", cpu.Ip, cpu.Halted)
	fmt.Fprintf(&sb, "   hi: %08x      lo: %08x\n", uint32(cpu.Hi), uint32(cpu.Lo))
	for reg := 0; reg < REG_COUNT; reg += 4 {
		for col := range 4 {
			fmt.Fprintf(&sb, "% 5s: %08x  ", regName[reg+col], uint32(cpu.Reg[reg+col]))
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}

// fetch reads the 32-bit big-endian instruction word at the current
// instruction pointer and advances the pointer by 4.
func (cpu *Cpu) fetch() (ins Instruction, err error) {
	if int(cpu.Ip)+4 > len(cpu.Program) {
		err = ErrProgramInvalid
		return
	}

	// The four byte reads are a fixed, ordered sequence: the byte at
	// the instruction pointer is the most significant.
	b0 := cpu.Program[cpu.Ip+0]
	b1 := cpu.Program[cpu.Ip+1]
	b2 := cpu.Program[cpu.Ip+2]
	b3 := cpu.Program[cpu.Ip+3]
	ins = Instruction(uint32(b0)<<24 | uint32(b1)<<16 | uint32(b2)<<8 | uint32(b3))
	cpu.Ip += 4

	return
}

// Step executes a single fetch/decode/execute cycle.
func (cpu *Cpu) Step() (err error) {
	here := cpu.Ip

	ins, err := cpu.fetch()
	if err != nil {
		return
	}

	if cpu.Verbose {
		log.Printf("%08x: %v", here, ins)
	}

	return cpu.Execute(ins)
}

// Run drives repeated Step calls until the program halts via the exit
// syscall or a fault occurs. Faults are terminal: the CPU is left
// halted and the fault is reported, then returned verbatim.
func (cpu *Cpu) Run() (err error) {
	if cpu.Program == nil {
		return ErrProgramInvalid
	}

	for !cpu.Halted {
		err = cpu.Step()
		if err != nil {
			cpu.Halted = true
			ReportFault(err)
			return
		}
	}

	return
}

// ReportFault emits a diagnostic for a terminal fault. Integer overflow
// gets the dedicated message; every other fault is described by the
// error text of the layer that detected it.
func ReportFault(err error) {
	if errors.Is(err, ErrOverflow) {
		log.Printf("mips: integer overflow exception")
		return
	}

	log.Printf("mips: %v", err)
}

func addOverflows(a, b int32) bool {
	res := int64(a) + int64(b)
	return res > math.MaxInt32 || res < math.MinInt32
}

func subOverflows(a, b int32) bool {
	res := int64(a) - int64(b)
	return res > math.MaxInt32 || res < math.MinInt32
}

// Execute executes a single instruction word against the CPU state.
//
// Register 0 is not hardwired to zero: an instruction that names it as
// a destination writes through it.
func (cpu *Cpu) Execute(ins Instruction) (err error) {
	switch ins.Op() {
	case OP_SPECIAL:
		return cpu.executeSpecial(ins)
	case OP_J:
		cpu.Ip = ins.Target() << 2
	case OP_JAL:
		cpu.Reg[REG_RA] = int32(cpu.Ip)
		cpu.Ip = ins.Target() << 2
	case OP_BEQ:
		if cpu.Reg[ins.Rs()] == cpu.Reg[ins.Rt()] {
			cpu.branch(ins)
		}
	case OP_BNE:
		if cpu.Reg[ins.Rs()] != cpu.Reg[ins.Rt()] {
			cpu.branch(ins)
		}
	case OP_BLEZ:
		if cpu.Reg[ins.Rs()] <= 0 {
			cpu.branch(ins)
		}
	case OP_BGTZ:
		// Taken on rs >= 0, not rs > 0. Historical quirk, kept.
		if cpu.Reg[ins.Rs()] >= 0 {
			cpu.branch(ins)
		}
	case OP_ADDI:
		imm := SignExtend(ins.Imm(), 16)
		rs := cpu.Reg[ins.Rs()]
		if addOverflows(rs, imm) {
			return ErrOverflow
		}
		cpu.Reg[ins.Rt()] = rs + imm
	case OP_ADDIU:
		// Zero-extended, unlike addi. Never faults.
		imm := int32(ZeroExtend(ins.Imm(), 16))
		cpu.Reg[ins.Rt()] = cpu.Reg[ins.Rs()] + imm
	case OP_SLTI:
		imm := SignExtend(ins.Imm(), 16)
		cpu.Reg[ins.Rt()] = boolReg(cpu.Reg[ins.Rs()] < imm)
	case OP_SLTIU:
		imm := ZeroExtend(ins.Imm(), 16)
		cpu.Reg[ins.Rt()] = boolReg(uint32(cpu.Reg[ins.Rs()]) < imm)
	case OP_ANDI:
		imm := ZeroExtend(ins.Imm(), 16)
		cpu.Reg[ins.Rt()] = int32(uint32(cpu.Reg[ins.Rs()]) & imm)
	case OP_ORI:
		imm := ZeroExtend(ins.Imm(), 16)
		cpu.Reg[ins.Rt()] = int32(uint32(cpu.Reg[ins.Rs()]) | imm)
	case OP_XORI:
		imm := ZeroExtend(ins.Imm(), 16)
		cpu.Reg[ins.Rt()] = int32(uint32(cpu.Reg[ins.Rs()]) ^ imm)
	default:
		return ErrInstructionUnknown(ins)
	}

	return
}

// branch applies the taken-branch offset: the sign-extended immediate,
// scaled to bytes, relative to the already-advanced instruction pointer.
func (cpu *Cpu) branch(ins Instruction) {
	offset := SignExtend(ins.Imm(), 16) << 2
	cpu.Ip = uint32(int32(cpu.Ip) + offset)
}

func boolReg(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// executeSpecial executes an OP_SPECIAL instruction, selected by its
// function code.
func (cpu *Cpu) executeSpecial(ins Instruction) (err error) {
	switch ins.Funct() {
	case SPE_SLL:
		cpu.Reg[ins.Rd()] = cpu.Reg[ins.Rt()] << ins.Shamt()
	case SPE_SRL, SPE_SRA:
		// srl and sra share one implementation; the logical/arithmetic
		// distinction is deliberately not made.
		cpu.Reg[ins.Rd()] = cpu.Reg[ins.Rt()] >> ins.Shamt()
	case SPE_SLLV:
		amount := uint32(cpu.Reg[ins.Rs()]) & 0x1F
		cpu.Reg[ins.Rd()] = cpu.Reg[ins.Rt()] << amount
	case SPE_SRLV, SPE_SRAV:
		amount := uint32(cpu.Reg[ins.Rs()]) & 0x1F
		cpu.Reg[ins.Rd()] = cpu.Reg[ins.Rt()] >> amount
	case SPE_JR:
		cpu.Ip = uint32(cpu.Reg[ins.Rs()])
	case SPE_JALR:
		link := ins.Rd()
		if link == 0 {
			link = REG_RA
		}
		cpu.Reg[link] = int32(cpu.Ip)
		cpu.Ip = uint32(cpu.Reg[ins.Rs()])
	case SPE_SYSCALL:
		return cpu.syscall()
	case SPE_MFHI:
		cpu.Reg[ins.Rd()] = cpu.Hi
	case SPE_MTHI:
		cpu.Hi = cpu.Reg[ins.Rs()]
	case SPE_MFLO:
		cpu.Reg[ins.Rd()] = cpu.Lo
	case SPE_MTLO:
		// mtlo writes hi, mirroring mthi. Historical quirk, kept.
		cpu.Hi = cpu.Reg[ins.Rs()]
	case SPE_MULT, SPE_MULTU:
		// Both variants take the signed path.
		result := int64(cpu.Reg[ins.Rs()]) * int64(cpu.Reg[ins.Rt()])
		cpu.Hi = int32(result >> 32)
		cpu.Lo = int32(result)
	case SPE_DIV, SPE_DIVU:
		rs := cpu.Reg[ins.Rs()]
		rt := cpu.Reg[ins.Rt()]
		// Division by zero is a documented no-op, not a fault.
		if rt != 0 {
			cpu.Lo = rs / rt
			cpu.Hi = rs % rt
		}
	case SPE_ADD:
		rs := cpu.Reg[ins.Rs()]
		rt := cpu.Reg[ins.Rt()]
		if addOverflows(rs, rt) {
			return ErrOverflow
		}
		cpu.Reg[ins.Rd()] = rs + rt
	case SPE_ADDU:
		cpu.Reg[ins.Rd()] = cpu.Reg[ins.Rs()] + cpu.Reg[ins.Rt()]
	case SPE_SUB:
		rs := cpu.Reg[ins.Rs()]
		rt := cpu.Reg[ins.Rt()]
		if subOverflows(rs, rt) {
			return ErrOverflow
		}
		cpu.Reg[ins.Rd()] = rs - rt
	case SPE_SUBU:
		cpu.Reg[ins.Rd()] = cpu.Reg[ins.Rs()] - cpu.Reg[ins.Rt()]
	case SPE_AND:
		cpu.Reg[ins.Rd()] = cpu.Reg[ins.Rs()] & cpu.Reg[ins.Rt()]
	case SPE_OR:
		cpu.Reg[ins.Rd()] = cpu.Reg[ins.Rs()] | cpu.Reg[ins.Rt()]
	case SPE_XOR:
		cpu.Reg[ins.Rd()] = cpu.Reg[ins.Rs()] ^ cpu.Reg[ins.Rt()]
	case SPE_NOR:
		cpu.Reg[ins.Rd()] = ^(cpu.Reg[ins.Rs()] | cpu.Reg[ins.Rt()])
	case SPE_SLT, SPE_SLTU:
		// Both variants compare signed.
		cpu.Reg[ins.Rd()] = boolReg(cpu.Reg[ins.Rs()] < cpu.Reg[ins.Rt()])
	default:
		return ErrInstructionUnknown(ins)
	}

	return
}

// syscall dispatches on the selector in $v0.
func (cpu *Cpu) syscall() (err error) {
	selector := Syscall(cpu.Reg[REG_V0])

	switch selector {
	case SYS_EXIT:
		cpu.Halted = true
	default:
		return ErrSyscallUnknown(selector)
	}

	return
}
