package preproc

import (
	"strconv"

	"github.com/onebpc/onebpc/token"
)

// Operation length operands are 4 bits wide, so longer operations are
// split into full-length chunks.
const maxOperationLength = 15

// mathShape describes how many address operands a math operation
// routes through the A, B and C registers.
type mathShape int

const (
	shapeSourceOnly = mathShape(1) // set_a only
	shapeSourceDest = mathShape(2) // optional set_a, then set_c
	shapeTwoInDest  = mathShape(3) // set_a, set_b, then set_c
)

var mathShapes = map[string]mathShape{
	"checksum": shapeSourceOnly, "bc": shapeSourceOnly,
	"move_data": shapeSourceDest, "md": shapeSourceDest,
	"invert": shapeSourceDest, "bi": shapeSourceDest,
	"add": shapeTwoInDest, "+": shapeTwoInDest,
	"subtract": shapeTwoInDest, "-": shapeTwoInDest,
	"and": shapeTwoInDest, "ba": shapeTwoInDest,
	"or": shapeTwoInDest, "bo": shapeTwoInDest,
	"xor": shapeTwoInDest, "bx": shapeTwoInDest,
	"nand": shapeTwoInDest, "bna": shapeTwoInDest,
	"nor": shapeTwoInDest, "bno": shapeTwoInDest,
	"nxor": shapeTwoInDest, "bnx": shapeTwoInDest,
}

// atMath expands `at <op> :label... [length]` into the register setup
// and operation sequence: set_a/set_b/set_c with the allocated
// addresses, then the operation with its length operand. The length
// defaults to the size of the labels' allocations.
func atMath(toks []token.Token, ctx *context) []token.Token {
	op := toks[1]
	refs := toks[2:]

	length := -1
	lengthToken := token.Token{}
	if refs[len(refs)-1].Kind != token.LabelRef {
		// Explicit length operand.
		lengthToken = refs[len(refs)-1]
		refs = refs[:len(refs)-1]
		var err error
		length, err = lengthToken.IntValue()
		if err != nil {
			return []token.Token{errToken(lengthToken.Line, srcText(toks), err.Error())}
		}
	} else {
		// Infer the length from the labels' allocation sizes, which
		// must agree.
		first := ""
		for _, ref := range refs {
			al, ok := ctx.allocs[ref.Value]
			if !ok {
				continue
			}
			if length < 0 {
				length = al.Size
				first = ref.Value
				continue
			}
			if length != al.Size {
				return []token.Token{errToken(ref.Line, srcText(toks),
					f("Size mismatch in 'at <math>' macro: '%v' has size %v, but '%v' has size %v. "+
						"If this is intentional, please specify the operation length explicitly by using '%v <length>'.",
						first, length, ref.Value, al.Size, srcText(toks)))}
			}
		}

		if length < 0 {
			return []token.Token{errToken(toks[0].Line, srcText(toks),
				f("Could not determine operation length in 'at <math>' macro, "+
					"because none of the provided labels are allocated."))}
		}

		// Lengths are 0-based in the operation encoding.
		length--
		lengthToken = token.Token{
			Kind:  token.Binary,
			Value: strconv.FormatInt(int64(length), 2),
			Line:  refs[len(refs)-1].Line,
			Src:   strconv.Itoa(length),
			Note:  f("Operation length determined by at math macro from alloc sizes"),
		}
	}

	shape, ok := mathShapes[op.Value]
	if !ok {
		return []token.Token{errToken(op.Line, srcText(toks),
			f("Unknown math operation '%v' in 'at <math>' macro.", op.Value))}
	}

	// Line numbers of the expansion must stay consecutive, so every
	// emitted token takes the invocation's line.
	setReg := func(reg string, ref token.Token) []token.Token {
		return []token.Token{
			{Kind: token.Instruction, Value: reg, Line: toks[0].Line, Src: reg},
			{Kind: token.Instruction, Value: "at", Line: toks[0].Line, Src: "at",
				Note: f("from 'at <math>' macro")},
			{Kind: token.LabelRef, Value: ref.Value, Line: toks[0].Line, Src: ref.Src, Note: ref.Note},
		}
	}

	var expansion []token.Token

	switch shape {
	case shapeSourceOnly:
		if len(refs) != 1 {
			return []token.Token{errToken(toks[0].Line, srcText(toks),
				f("Incorrect number of operands for '%v' in 'at <math>' macro. "+
					"This operation only takes one input, so provide only the source label.", op.Value))}
		}
		expansion = append(expansion, setReg("set_a", refs[0])...)

	case shapeSourceDest:
		if len(refs) > 2 {
			return []token.Token{errToken(toks[0].Line, srcText(toks),
				f("Too many operands for '%v' in 'at <math>' macro. "+
					"This operation only takes one input, so either give the source and destination label, "+
					"or only the destination label.", op.Value))}
		}
		if len(refs) == 2 {
			expansion = append(expansion, setReg("set_a", refs[0])...)
		}
		expansion = append(expansion, setReg("set_c", refs[len(refs)-1])...)

	case shapeTwoInDest:
		if len(refs) >= 2 {
			expansion = append(expansion, setReg("set_a", refs[0])...)
			expansion = append(expansion, setReg("set_b", refs[1])...)
		}
		if len(refs) == 1 || len(refs) == 3 {
			expansion = append(expansion, setReg("set_c", refs[len(refs)-1])...)
		}
	}

	if length > maxOperationLength {
		lengthToken = lengthToken.WithNote(f("Split operation length from 'at <math>' macro."))
	}

	for length > maxOperationLength {
		expansion = append(expansion,
			op,
			token.Token{Kind: token.Binary, Value: "1111", Line: op.Line, Src: "15",
				Note: f("Split operation length from 'at <math>' macro.")})
		length -= maxOperationLength + 1
		lengthToken.Kind = token.Binary
		lengthToken.Value = strconv.FormatInt(int64(length), 2)
		lengthToken.Src = strconv.Itoa(length)
	}

	return append(expansion, op, lengthToken)
}
