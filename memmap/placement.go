package memmap

import (
	"strings"

	"github.com/onebpc/onebpc/arch"
	"github.com/onebpc/onebpc/note"
	"github.com/onebpc/onebpc/token"
)

// cursor tracks the next free bit address during placement. It only
// ever moves forward; a placed span is never rewound, even after an
// error, so later addresses stay correct.
type cursor struct {
	addr int
}

func (c *cursor) advance(width int) (addr int) {
	checkWidth(width, "span")
	addr = c.addr
	c.addr += width
	return
}

// prevAddr is the address a free-standing comment or info note is
// attached to: the start of the most recently placed span.
func (mm *Map) prevAddr() int {
	if len(mm.Units) == 0 {
		return 0
	}
	return mm.Units[len(mm.Units)-1].Addr
}

func (mm *Map) placeNote(addr int, line int, s note.Severity, o note.Origin, text string) {
	mm.placeLog.Add(note.Note{Addr: addr, Line: line, Severity: s, Origin: o, Text: text})
}

// put places a span at the cursor and returns it.
func (mm *Map) put(cur *cursor, u *Unit) *Unit {
	u.Addr = cur.advance(u.Width)
	mm.Units = append(mm.Units, u)
	return u
}

// errorSpan places a full-word placeholder span for a token that has
// no meaningful encoding. Substituting a halt instruction, when the
// machine has one, minimizes the impact on the surrounding layout.
func (mm *Map) errorSpan(cur *cursor, tok token.Token) {
	halt := mm.Machine.Lookup("halt")
	if halt != nil {
		sub := token.Token{Kind: token.Instruction, Value: halt.Name(), Line: tok.Line, Src: tok.Src, Note: tok.Note}
		mm.put(cur, &Unit{Kind: UnitInstruction, Width: mm.Machine.WordLength, Op: halt, Tokens: []token.Token{sub}})
		return
	}
	mm.put(cur, &Unit{Kind: UnitError, Width: mm.Machine.WordLength, Tokens: []token.Token{tok}})
}

// kindList renders the accepted operand kinds of an instruction for a
// diagnostic message.
func kindList(kinds []token.Kind) string {
	names := make([]string, len(kinds))
	for n, k := range kinds {
		names[n] = "'" + k.String() + "'"
	}
	return strings.Join(names, ", ")
}

// withNote appends a token's attached note to a diagnostic message.
func withNote(text string, tok token.Token) string {
	if tok.Note == "" {
		return text
	}
	return text + " " + f("Note: %v", tok.Note)
}

// place is the placement pass: walk the token stream in order, assign
// every token a span of bit addresses, and bind labels. All errors
// found here are knowable without label resolution. The pass records
// a note and keeps going rather than aborting, so a single run
// surfaces every problem.
func (mm *Map) place(tokens []token.Token) {
	cur := &cursor{}

	// Reachability of the current code, used to warn about raw data
	// that might be read as instructions and about unreachable code.
	reachable := true

	i := 0
	for i < len(tokens) {
		tok := tokens[i]

		switch tok.Kind {
		case token.Comment:
			mm.placeNote(mm.prevAddr(), tok.Line, note.Comment, note.Conversion, tok.Value)
			i++
			continue

		case token.Info:
			mm.placeNote(mm.prevAddr(), tok.Line, note.Info, note.Conversion, tok.Value)
			i++
			continue

		case token.Err:
			// Upstream error: convert it to a note and place a halt
			// word so the rest of the layout is unaffected.
			mm.placeNote(cur.addr, tok.Line, note.Error, note.Conversion, tok.Value)
			mm.errorSpan(cur, tok)
			i++
			continue

		case token.Label:
			if _, bound := mm.Labels[tok.Value]; bound {
				mm.placeNote(cur.addr, tok.Line, note.Error, note.Placement,
					f("Duplicate label '%v'", tok.Value))
			} else {
				mm.Labels[tok.Value] = cur.addr
			}
			reachable = true
			i++
			continue

		case token.Binary:
			// Raw data. Warn if execution can fall into it.
			if len(tok.Value) > mm.Machine.WordLength {
				mm.placeNote(cur.addr, tok.Line, note.Error, note.Placement,
					f("Binary value '%v' exceeds word length of %v.", tok.Value, mm.Machine.WordLength))
			}
			if reachable {
				mm.placeNote(cur.addr, tok.Line, note.Warning, note.Placement,
					f("You put raw data where it might be read as instructions. "+
						"You might have given an argument to an instruction that doesn't expect one, "+
						"or put raw data right after a label or at the start of the program."))
			}
			mm.put(cur, &Unit{Kind: UnitData, Width: mm.Machine.WordLength, Tokens: []token.Token{tok}})
			i++
			continue

		case token.Instruction:
			if !reachable {
				mm.placeNote(cur.addr, tok.Line, note.Warning, note.Placement,
					f("Unreachable code. This code cannot be reached during execution "+
						"because it comes after a halt or unconditional jump, "+
						"and no label points to it."))
				// Warn once, then reset.
				reachable = true
			}

			op := mm.Machine.Lookup(tok.Value)
			if op == nil {
				// Assume a typo in an instruction name rather than
				// stray text: still claim one word so the rest of
				// the map keeps its size.
				mm.placeNote(cur.addr, tok.Line, note.Error, note.Placement,
					f("Unknown instruction '%v'", tok.Value))
				mm.put(cur, &Unit{Kind: UnitError, Width: mm.Machine.WordLength, Tokens: []token.Token{tok}})
				i++
				continue
			}

			unit := mm.put(cur, &Unit{Kind: UnitInstruction, Width: mm.Machine.WordLength, Op: op, Tokens: []token.Token{tok}})
			i++

			switch op.Flow {
			case arch.FlowHalt, arch.FlowJump:
				reachable = false
			}

			if !op.WantsOperand() {
				continue
			}

			if i >= len(tokens) {
				mm.placeNote(unit.Addr, tok.Line, note.Error, note.Placement,
					f("Instruction '%v' expects an operand, but it was the end of the file.", tok.Value))
				continue
			}

			opTok := tokens[i]

			if opTok.Kind == token.Err {
				mm.placeNote(unit.Addr, opTok.Line, note.Error, note.Placement,
					withNote(f("Operand for instruction '%v' has an error: %v", tok.Value, opTok.Value), opTok))
				if op.WantsLabel() {
					// An address operand cannot be guessed; drop it.
					i++
					continue
				}
				// Substitute a zero operand to keep the layout.
				opTok = token.Token{Kind: token.Binary, Value: "0", Line: opTok.Line, Src: opTok.Src}
			}

			if !op.Accepts(opTok.Kind) {
				// Place it anyway to keep the layout, and to let
				// users try weird constructs.
				mm.placeNote(unit.Addr, opTok.Line, note.Error, note.Placement,
					withNote(f("Invalid operand for instruction '%v': expected one of [%v], got '%v' with value '%v'.",
						tok.Value, kindList(op.Operands), opTok.Kind.String(), opTok.Value), opTok))
				mm.placeOperand(cur, unit, opTok)
				i++
				continue
			}

			mm.placeOperand(cur, unit, opTok)
			i++
			continue

		default:
			// Should not happen with a well-behaved preprocessor.
			mm.placeNote(mm.prevAddr(), tok.Line, note.Error, note.Placement,
				withNote(f("Unexpected token type %v with value '%v'.", tok.Kind.String(), tok.Value), tok))
			i++
			continue
		}
	}
}

// placeOperand attaches an operand to its instruction. Address
// operands get their own word, because their instructions read the
// value from the next word. Everything else packs into the remaining
// bits of the instruction word.
func (mm *Map) placeOperand(cur *cursor, unit *Unit, opTok token.Token) {
	if unit.Op.WantsLabel() {
		kind := UnitAddress
		if opTok.Kind != token.LabelRef {
			// A literal operand in address position is placed as a
			// data word, which lets addresses be set by hand.
			kind = UnitData
			if opTok.Kind != token.Binary {
				kind = UnitError
			}
		}
		mm.put(cur, &Unit{Kind: kind, Width: mm.Machine.WordLength, Tokens: []token.Token{opTok}})
		return
	}

	width := mm.Machine.OperandWidth(unit.Op)
	checkWidth(width, "operand of "+unit.Op.Name())
	if opTok.Kind == token.Binary && len(opTok.Value) > width {
		mm.placeNote(unit.Addr, opTok.Line, note.Error, note.Placement,
			f("Operand '%v' for instruction '%v' exceeds its width of %v bits.",
				opTok.Value, unit.Op.Name(), width))
	}
	unit.Tokens = append(unit.Tokens, opTok)
}
