package mips

import (
	"encoding/binary"
	"iter"
)

// LinkKind selects how a label reference patches into an instruction.
type LinkKind int

const (
	LINK_NONE   = LinkKind(0)
	LINK_JUMP   = LinkKind(1) // 26-bit absolute word target (j, jal)
	LINK_BRANCH = LinkKind(2) // 16-bit pc-relative word offset (beq, bne, blez, bgtz)
)

// Line represents a line of assembled source with its location and
// generated instruction words.
type Line struct {
	LineNo    int           // Source line number.
	Addr      uint32        // Byte address of the first generated word.
	Words     []string      // Source tokens, after substitutions.
	Codes     []Instruction // Generated instruction words.
	LinkLabel string        // Label to patch into the last word, if any.
	LinkKind  LinkKind      // How the label patches in.
}

// Program is an assembled listing: the executable image plus the
// source mapping used for diagnostics.
type Program struct {
	Lines []Line
}

// Debug locates the listing line containing an instruction address.
type Debug struct {
	*Line
	Index int
}

func (prog *Program) Debug(addr uint32) (dbg Debug) {
	for n, line := range prog.Lines {
		end := line.Addr + 4*uint32(len(line.Codes))
		if addr >= line.Addr && addr < end {
			dbg = Debug{
				Line:  &prog.Lines[n],
				Index: int(addr-line.Addr) / 4,
			}
			break
		}
	}

	return
}

// Codes iterates over all generated instruction words with their byte
// addresses.
func (prog *Program) Codes() iter.Seq2[uint32, Instruction] {
	return func(yield func(addr uint32, code Instruction) bool) {
		for _, line := range prog.Lines {
			for n, code := range line.Codes {
				if !yield(line.Addr+4*uint32(n), code) {
					return
				}
			}
		}
	}
}

// Binary emits the flat big-endian program image the CPU executes.
func (prog *Program) Binary() (image []byte) {
	for _, code := range prog.Codes() {
		image = binary.BigEndian.AppendUint32(image, uint32(code))
	}

	return
}
