// Package mips implements an interpreter and assembler for a subset of
// the MIPS32 instruction set.
//
// The CPU consists of 32 general-purpose 32-bit registers, the hi/lo
// multiply and divide registers, an instruction pointer, and a halt
// flag. Programs are flat byte buffers of big-endian instruction words;
// there is no memory system, pipeline, or peripheral model. Execution
// runs fetch/decode/execute cycles until the exit syscall halts the
// machine or a fault (invalid program, unknown instruction, unknown
// syscall, integer overflow) ends the run.
//
// The assembler provides a line-oriented assembly language for the
// implemented subset, supporting labels, equates, predefines, and
// compile-time expression evaluation.
package mips
