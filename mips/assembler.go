package mips

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Predefined system equates
var sysEquate = map[string]string{
	"LINENO": "0",
}

// Assembler is a single pass assembler for the implemented MIPS32
// subset. Forward label references are patched in a final linking pass.
type Assembler struct {
	Verbose bool   // If set, verbosely logs the assembler actions.
	Lines   []Line // List of generated listing lines.

	predefine map[string]string // Predefines
	Label     map[string]uint32 // Map of labels to byte addresses.
	Equate    map[string]string // Map of equates.
}

// Predefine defines a new equate or redefines an existing equate.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// regMap maps register names and numeric aliases to register indices.
var regMap = func() map[string]uint8 {
	m := make(map[string]uint8, 2*REG_COUNT)
	for n, name := range regName {
		m[name] = uint8(n)
		m[fmt.Sprintf("$%d", n)] = uint8(n)
	}
	return m
}()

// getReg resolves a register operand.
func (asm *Assembler) getReg(word string) (reg uint8, err error) {
	reg, ok := regMap[word]
	if !ok {
		err = ErrRegisterInvalid(word)
	}
	return
}

// valueOf returns the value of a numeric word.
func (asm *Assembler) valueOf(word string) (value int64, err error) {
	value, err = strconv.ParseInt(word, 0, 64)
	if err != nil {
		err = ErrParseNumber(word)
	}
	return
}

// immOf resolves a 16-bit immediate operand. Negative values are
// encoded two's complement; the instruction decides sign- versus
// zero-extension at execution time.
func (asm *Assembler) immOf(word string) (imm uint16, err error) {
	value, err := asm.valueOf(word)
	if err != nil {
		return
	}
	if value < -0x8000 || value > 0xFFFF {
		err = ErrImmediateRange
		return
	}
	imm = uint16(value)
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int64, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, str := range asm.Equate {
		var v64 int64
		v64, err = asm.valueOf(str)
		if err != nil {
			// Ignore non-integer equates. They may be registers
			// or something else.
			continue
		}
		pred[key] = starlark.MakeInt64(v64)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value, ok = st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	return
}

// parseLine parses a single line into operand words.
func (asm *Assembler) parseLine(line string, lineno int) (words []string, err error) {
	// Set line number.
	asm.Equate["LINENO"] = fmt.Sprintf("%v", lineno)

	// Do $() evaluations
	re := regexp.MustCompile(`\$\([^\$]*\)`)
	line = re.ReplaceAllStringFunc(line, func(str string) string {
		value, _err := asm.parenEval(str[2 : len(str)-1])
		if _err != nil {
			err = _err
		}
		return fmt.Sprintf("%v", value)
	})
	if err != nil {
		return
	}

	// Operand commas are decorative.
	line = strings.ReplaceAll(line, ",", " ")

	words = slices.DeleteFunc(strings.Split(line, " "), func(a string) bool { return len(a) == 0 })

	if len(words) == 0 {
		return
	}

	// .equ CONST VALUE
	if words[0] == ".equ" {
		if len(words) != 3 {
			err = ErrEquateSyntax
			return
		}
		_, ok := asm.Equate[words[1]]
		if ok {
			err = ErrEquateDuplicate
			return
		}
		asm.Equate[words[1]] = words[2]
		words = words[:0]
		return
	}

	for n, word := range words {
		// Check for equate next
		equate, ok := asm.Equate[word]
		if ok {
			words[n] = equate
		}
	}

	for strings.HasSuffix(words[0], ":") {
		label := words[0][:len(words[0])-1]
		_, ok := asm.Label[label]
		if ok {
			err = ErrLabelDuplicate
			return
		}

		if asm.Label == nil {
			asm.Label = make(map[string]uint32, 16)
		}
		asm.Label[label] = asm.currentAddr()
		words = words[1:]
		if len(words) == 0 {
			return
		}
	}

	return
}

// currentAddr gets the byte address of the next generated word.
func (asm *Assembler) currentAddr() uint32 {
	if len(asm.Lines) == 0 {
		return 0
	}

	last := asm.Lines[len(asm.Lines)-1]

	return last.Addr + 4*uint32(len(last.Codes))
}

// Parse parses an input stream into a Program containing the
// assembled listing.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	scanner := bufio.NewScanner(input)

	var line string
	var lineno int

	defer func() {
		if err != nil {
			err = ErrSyntax{LineNo: lineno, Line: line, Err: err}
		}
	}()

	clear(asm.Label)
	asm.Lines = asm.Lines[:0]
	asm.Equate = maps.Clone(sysEquate)
	for attr, val := range asm.predefine {
		asm.Equate[attr] = val
	}

	for scanner.Scan() {
		text := scanner.Text()
		lineno += 1

		if asm.Verbose {
			log.Printf("%v: %v\n", lineno, text)
		}

		// Both '#' and ';' start a comment.
		line = text
		if i := strings.IndexAny(line, "#;"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)

		var words []string
		words, err = asm.parseLine(line, lineno)
		if err != nil {
			return
		}

		err = asm.parseWords(words, lineno)
		if err != nil {
			return
		}
	}

	// Final linking of jump and branch labels.
	for n := range asm.Lines {
		ln := &asm.Lines[n]

		if len(ln.LinkLabel) == 0 {
			continue
		}
		target, ok := asm.Label[ln.LinkLabel]
		if !ok {
			err = ErrLabelMissing(ln.LinkLabel)
			lineno = ln.LineNo
			line = strings.Join(ln.Words, " ")
			return
		}

		linked := &ln.Codes[len(ln.Codes)-1]
		switch ln.LinkKind {
		case LINK_JUMP:
			*linked |= Instruction((target >> 2) & 0x3FFFFFF)
		case LINK_BRANCH:
			// Offset is in words, relative to the instruction pointer
			// already advanced past the branch.
			branchAddr := ln.Addr + 4*uint32(len(ln.Codes)-1)
			offset := (int64(target) - int64(branchAddr+4)) / 4
			if offset < -0x8000 || offset > 0x7FFF {
				err = ErrBranchRange
				lineno = ln.LineNo
				line = strings.Join(ln.Words, " ")
				return
			}
			*linked |= Instruction(uint16(offset))
		}
	}

	prog = &Program{
		Lines: slices.Clone(asm.Lines),
	}

	return
}

// rThreeMap maps three-register mnemonics: op $rd $rs $rt
var rThreeMap = map[string]Funct{
	"add":  SPE_ADD,
	"addu": SPE_ADDU,
	"sub":  SPE_SUB,
	"subu": SPE_SUBU,
	"and":  SPE_AND,
	"or":   SPE_OR,
	"xor":  SPE_XOR,
	"nor":  SPE_NOR,
	"slt":  SPE_SLT,
	"sltu": SPE_SLTU,
}

// shiftImmMap maps constant-shift mnemonics: op $rd $rt SHAMT
var shiftImmMap = map[string]Funct{
	"sll": SPE_SLL,
	"srl": SPE_SRL,
	"sra": SPE_SRA,
}

// shiftVarMap maps variable-shift mnemonics: op $rd $rt $rs
var shiftVarMap = map[string]Funct{
	"sllv": SPE_SLLV,
	"srlv": SPE_SRLV,
	"srav": SPE_SRAV,
}

// multDivMap maps multiply/divide mnemonics: op $rs $rt
var multDivMap = map[string]Funct{
	"mult":  SPE_MULT,
	"multu": SPE_MULTU,
	"div":   SPE_DIV,
	"divu":  SPE_DIVU,
}

// iArithMap maps immediate mnemonics: op $rt $rs IMM
var iArithMap = map[string]Opcode{
	"addi":  OP_ADDI,
	"addiu": OP_ADDIU,
	"slti":  OP_SLTI,
	"sltiu": OP_SLTIU,
	"andi":  OP_ANDI,
	"ori":   OP_ORI,
	"xori":  OP_XORI,
}

// branchCmpMap maps compare-branch mnemonics: op $rs $rt TARGET
var branchCmpMap = map[string]Opcode{
	"beq": OP_BEQ,
	"bne": OP_BNE,
}

// branchZeroMap maps zero-compare branch mnemonics: op $rs TARGET
var branchZeroMap = map[string]Opcode{
	"blez": OP_BLEZ,
	"bgtz": OP_BGTZ,
}

// getRegs resolves a fixed count of register operands.
func (asm *Assembler) getRegs(words []string, count int) (regs []uint8, err error) {
	if len(words) < count {
		err = ErrOpcodeMissing
		return
	}
	if len(words) > count {
		err = ErrOpcodeExtraArgs
		return
	}
	for _, word := range words {
		var reg uint8
		reg, err = asm.getReg(word)
		if err != nil {
			return
		}
		regs = append(regs, reg)
	}
	return
}

// parseWords evaluates the words in a line of assembly text.
func (asm *Assembler) parseWords(words []string, lineno int) (err error) {
	var codes []Instruction
	var label string
	var kind LinkKind

	// no-op
	if len(words) == 0 {
		return
	}

	initial_words := words

	defer func() {
		if len(codes) == 0 {
			return
		}
		line := Line{
			LineNo:    lineno,
			Addr:      asm.currentAddr(),
			Words:     initial_words,
			Codes:     codes,
			LinkLabel: label,
			LinkKind:  kind,
		}
		asm.Lines = append(asm.Lines, line)
	}()

	// Pseudo-instruction substitutions
	switch {
	case words[0] == "li" && len(words) == 3:
		// li $rt VALUE => ori $rt $zero VALUE
		words = []string{"ori", words[1], "$zero", words[2]}
	case words[0] == "move" && len(words) == 3:
		// move $rd $rs => addu $rd $rs $zero
		words = []string{"addu", words[1], words[2], "$zero"}
	case words[0] == "nop" && len(words) == 1:
		// nop => sll $zero $zero 0
		words = []string{"sll", "$zero", "$zero", "0"}
	case words[0] == "b" && len(words) == 2:
		// b TARGET => beq $zero $zero TARGET
		words = []string{"beq", "$zero", "$zero", words[1]}
	case words[0] == "exit" && len(words) == 1:
		// exit => li $v0 SYS_EXIT / syscall
		codes = append(codes,
			MakeI(OP_ORI, REG_ZERO, REG_V0, uint16(SYS_EXIT)),
			MakeR(SPE_SYSCALL, 0, 0, 0, 0),
		)
		return
	default:
		// unchanged
	}

	name := words[0]
	args := words[1:]

	if fn, ok := rThreeMap[name]; ok {
		var regs []uint8
		regs, err = asm.getRegs(args, 3)
		if err != nil {
			return
		}
		codes = append(codes, MakeR(fn, regs[1], regs[2], regs[0], 0))
		return
	}

	if fn, ok := shiftImmMap[name]; ok {
		if len(args) != 3 {
			err = ErrOpcodeMissing
			return
		}
		var regs []uint8
		regs, err = asm.getRegs(args[:2], 2)
		if err != nil {
			return
		}
		var shamt int64
		shamt, err = asm.valueOf(args[2])
		if err != nil {
			return
		}
		if shamt < 0 || shamt > 31 {
			err = ErrShiftRange
			return
		}
		codes = append(codes, MakeR(fn, 0, regs[1], regs[0], uint8(shamt)))
		return
	}

	if fn, ok := shiftVarMap[name]; ok {
		var regs []uint8
		regs, err = asm.getRegs(args, 3)
		if err != nil {
			return
		}
		codes = append(codes, MakeR(fn, regs[2], regs[1], regs[0], 0))
		return
	}

	if fn, ok := multDivMap[name]; ok {
		var regs []uint8
		regs, err = asm.getRegs(args, 2)
		if err != nil {
			return
		}
		codes = append(codes, MakeR(fn, regs[0], regs[1], 0, 0))
		return
	}

	if op, ok := iArithMap[name]; ok {
		if len(args) != 3 {
			err = ErrOpcodeMissing
			return
		}
		var regs []uint8
		regs, err = asm.getRegs(args[:2], 2)
		if err != nil {
			return
		}
		var imm uint16
		imm, err = asm.immOf(args[2])
		if err != nil {
			return
		}
		codes = append(codes, MakeI(op, regs[1], regs[0], imm))
		return
	}

	if op, ok := branchCmpMap[name]; ok {
		if len(args) != 3 {
			err = ErrOpcodeMissing
			return
		}
		var regs []uint8
		regs, err = asm.getRegs(args[:2], 2)
		if err != nil {
			return
		}
		var imm uint16
		imm, label, err = asm.branchTarget(args[2])
		if err != nil {
			return
		}
		if label != "" {
			kind = LINK_BRANCH
		}
		codes = append(codes, MakeI(op, regs[0], regs[1], imm))
		return
	}

	if op, ok := branchZeroMap[name]; ok {
		if len(args) != 2 {
			err = ErrOpcodeMissing
			return
		}
		var rs uint8
		rs, err = asm.getReg(args[0])
		if err != nil {
			return
		}
		var imm uint16
		imm, label, err = asm.branchTarget(args[1])
		if err != nil {
			return
		}
		if label != "" {
			kind = LINK_BRANCH
		}
		codes = append(codes, MakeI(op, rs, 0, imm))
		return
	}

	switch name {
	case "j", "jal":
		if len(args) != 1 {
			err = ErrOpcodeMissing
			return
		}
		op := OP_J
		if name == "jal" {
			op = OP_JAL
		}
		var target uint32
		target, label, err = asm.jumpTarget(args[0])
		if err != nil {
			return
		}
		if label != "" {
			kind = LINK_JUMP
		}
		codes = append(codes, MakeJ(op, target))
	case "jr":
		var regs []uint8
		regs, err = asm.getRegs(args, 1)
		if err != nil {
			return
		}
		codes = append(codes, MakeR(SPE_JR, regs[0], 0, 0, 0))
	case "jalr":
		var rd, rs uint8
		switch len(args) {
		case 1:
			// jalr $rs => link into $ra
			rs, err = asm.getReg(args[0])
		case 2:
			rd, err = asm.getReg(args[0])
			if err == nil {
				rs, err = asm.getReg(args[1])
			}
		default:
			err = ErrOpcodeMissing
		}
		if err != nil {
			return
		}
		codes = append(codes, MakeR(SPE_JALR, rs, 0, rd, 0))
	case "syscall":
		if len(args) != 0 {
			err = ErrOpcodeExtraArgs
			return
		}
		codes = append(codes, MakeR(SPE_SYSCALL, 0, 0, 0, 0))
	case "mfhi", "mflo":
		fn := SPE_MFHI
		if name == "mflo" {
			fn = SPE_MFLO
		}
		var regs []uint8
		regs, err = asm.getRegs(args, 1)
		if err != nil {
			return
		}
		codes = append(codes, MakeR(fn, 0, 0, regs[0], 0))
	case "mthi", "mtlo":
		fn := SPE_MTHI
		if name == "mtlo" {
			fn = SPE_MTLO
		}
		var regs []uint8
		regs, err = asm.getRegs(args, 1)
		if err != nil {
			return
		}
		codes = append(codes, MakeR(fn, regs[0], 0, 0, 0))
	default:
		err = ErrInstructionInvalid
		return
	}

	return
}

// branchTarget resolves a branch operand: a label to link later, or a
// literal word offset.
func (asm *Assembler) branchTarget(word string) (imm uint16, label string, err error) {
	value, verr := asm.valueOf(word)
	if verr != nil {
		label = word
		return
	}
	if value < -0x8000 || value > 0x7FFF {
		err = ErrBranchRange
		return
	}
	imm = uint16(value)
	return
}

// jumpTarget resolves a jump operand: a label to link later, or a
// literal byte address.
func (asm *Assembler) jumpTarget(word string) (target uint32, label string, err error) {
	value, verr := asm.valueOf(word)
	if verr != nil {
		label = word
		return
	}
	if value < 0 || value > 0x0FFFFFFF || value%4 != 0 {
		err = ErrTargetRange
		return
	}
	target = uint32(value) >> 2
	return
}
