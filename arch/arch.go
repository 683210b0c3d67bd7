// Package arch describes a bit-addressable target machine as data: the
// span length of a placed word and the instruction table. The memory
// mapper looks everything up here and hard-codes nothing.
package arch

import (
	"slices"

	"github.com/onebpc/onebpc/token"
)

// Flow classifies an instruction's effect on control flow. The mapper
// uses it to track reachability across the token stream.
type Flow int

const (
	FlowNext   = Flow(0) // falls through to the next word
	FlowHalt   = Flow(1) // execution stops
	FlowJump   = Flow(2) // unconditional transfer
	FlowBranch = Flow(3) // conditional transfer, may fall through
)

// Instruction is one entry of the machine's instruction table.
type Instruction struct {
	// Opcode is the bit pattern of the instruction. An instruction
	// without an inline operand is zero-extended on the left to a
	// full word; with an inline operand the opcode occupies the high
	// bits and the operand the rest.
	Opcode string
	// Names lists the long name first, mnemonic aliases after.
	Names []string
	// Operands lists the accepted operand token kinds. Nil means the
	// instruction takes no operand. Instructions never take more than
	// one operand.
	Operands []token.Kind
	Flow     Flow
}

// Name returns the canonical (long) name of the instruction.
func (in *Instruction) Name() string {
	return in.Names[0]
}

// WantsOperand reports whether the instruction expects an operand.
func (in *Instruction) WantsOperand() bool {
	return len(in.Operands) > 0
}

// Accepts reports whether the instruction accepts an operand of the
// given kind.
func (in *Instruction) Accepts(k token.Kind) bool {
	return slices.Contains(in.Operands, k)
}

// WantsLabel reports whether the instruction's operand is an address.
// Address operands occupy their own word instead of packing into the
// instruction word.
func (in *Instruction) WantsLabel() bool {
	return in.Accepts(token.LabelRef)
}

// Machine is a pluggable architecture definition.
type Machine struct {
	// WordLength is the number of bits in one placed word.
	WordLength int
	// Instructions is the machine's instruction table.
	Instructions []Instruction
}

// Lookup finds an instruction by any of its names.
func (m *Machine) Lookup(name string) *Instruction {
	for n := range m.Instructions {
		if slices.Contains(m.Instructions[n].Names, name) {
			return &m.Instructions[n]
		}
	}
	return nil
}

// OperandWidth returns the number of bits available to an inline
// operand of the instruction.
func (m *Machine) OperandWidth(in *Instruction) int {
	return m.WordLength - len(in.Opcode)
}

// Default returns the 1bpc machine: 10-bit words, one bit per
// addressable cell.
func Default() *Machine {
	number := []token.Kind{token.Binary, token.Decimal, token.Hexadecimal}
	address := []token.Kind{token.LabelRef, token.Binary, token.Decimal, token.Hexadecimal}

	math := func(opcode string, names ...string) Instruction {
		return Instruction{Opcode: opcode, Names: names, Operands: number}
	}
	jump := func(opcode string, flow Flow, names ...string) Instruction {
		return Instruction{Opcode: opcode, Names: names, Operands: address, Flow: flow}
	}

	return &Machine{
		WordLength: 10,
		Instructions: []Instruction{
			{Opcode: "0000000000", Names: []string{"halt", "h"}, Flow: FlowHalt},
			jump("0000000001", FlowJump, "jump", "j"),
			jump("0000000010", FlowJump, "ji"),
			jump("0000000011", FlowBranch, "jump_if_a_0", "ja0"),
			jump("0000000100", FlowBranch, "jump_if_a_1", "ja1"),
			jump("0000000101", FlowBranch, "jump_if_carry_0", "jc0"),
			jump("0000000110", FlowBranch, "jump_if_carry_1", "jc1"),
			jump("0000000111", FlowBranch, "jump_if_triggered", "jt"),
			math("01", "set_a"),
			math("10", "set_b"),
			math("11", "set_c"),
			math("000100", "load", "l"),
			math("000101", "add", "+"),
			math("000110", "subtract", "-"),
			math("000111", "and", "ba"),
			math("001000", "or", "bo"),
			math("001001", "xor", "bx"),
			math("001010", "nand", "bna"),
			math("001011", "nor", "bno"),
			math("001100", "nxor", "bnx"),
			math("001101", "move_data", "md"),
			math("001110", "invert", "bi"),
			math("001111", "checksum", "bc"),
		},
	}
}
