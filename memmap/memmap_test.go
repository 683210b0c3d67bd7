package memmap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/onebpc/onebpc/arch"
	"github.com/onebpc/onebpc/note"
	"github.com/onebpc/onebpc/token"
)

func cmd(line int, name string) token.Token {
	return token.Token{Kind: token.Instruction, Value: name, Line: line, Src: name}
}

func bin(line int, value string) token.Token {
	return token.Token{Kind: token.Binary, Value: value, Line: line, Src: "%" + value}
}

func label(line int, name string) token.Token {
	return token.Token{Kind: token.Label, Value: name, Line: line, Src: name + ":"}
}

func ref(line int, name string) token.Token {
	return token.Token{Kind: token.LabelRef, Value: name, Line: line, Src: ":" + name}
}

func errTok(line int, text string) token.Token {
	return token.Token{Kind: token.Err, Value: text, Line: line, Src: text}
}

func TestEmpty(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), nil)
	assert.False(mm.Failed())
	assert.Equal(0, mm.Size())
	assert.Equal(0, len(mm.Units))
	assert.Equal(0, len(mm.AllNotes()))
}

func TestContiguity(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "load"), bin(1, "0101"),
		label(2, "loop"),
		cmd(3, "add"), bin(3, "1"),
		cmd(4, "jump"), ref(4, "loop"),
		cmd(5, "halt"),
	})

	assert.False(mm.Failed())

	next := 0
	for _, u := range mm.Units {
		assert.Equal(next, u.Addr)
		next += u.Width
	}
	assert.Equal(next, mm.Size())
	assert.Equal(len(mm.Cells), mm.Size())

	// Every cell is owned by the span that covers it.
	for addr, cell := range mm.Cells {
		assert.NotNil(cell.Unit)
		assert.GreaterOrEqual(addr, cell.Unit.Addr)
		assert.Less(addr, cell.Unit.Addr+cell.Unit.Width)
	}
}

func TestInstructionEncoding(t *testing.T) {
	assert := assert.New(t)
	m := arch.Default()

	mm := New(m, []token.Token{
		cmd(1, "load"), bin(1, "101"),
		cmd(2, "halt"),
	})

	assert.False(mm.Failed())
	assert.Equal(2, len(mm.Units))
	// Opcode in the high bits, operand zero-extended into the rest.
	assert.Equal("0001000101", mm.Bits(mm.Units[0]))
	// No operand: opcode zero-extended to the full word.
	assert.Equal("0000000000", mm.Bits(mm.Units[1]))
}

func TestLabelBinding(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "halt"),
		label(2, "start"),
		cmd(3, "halt"),
		label(4, "end"),
	})

	assert.False(mm.Failed())
	assert.Equal(10, mm.Labels["start"])
	assert.Equal(20, mm.Labels["end"])
	assert.Equal([]string{"start"}, mm.LabelsAt(10))
}

func TestDuplicateLabel(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		label(1, "twice"),
		cmd(2, "halt"),
		label(3, "twice"),
	})

	assert.True(mm.Failed())
	// The first binding wins.
	assert.Equal(0, mm.Labels["twice"])

	errs := mm.Filter(note.Error)
	assert.Equal(1, len(errs))
	assert.Contains(errs[0].Text, "Duplicate label 'twice'")
	assert.Equal(note.Placement, errs[0].Origin)
}

func TestForwardReference(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "jump"), ref(1, "end"),
		cmd(2, "halt"),
		label(3, "end"),
		cmd(4, "halt"),
	})

	assert.False(mm.Failed())
	assert.Equal(30, mm.Labels["end"])

	// The address word resolves to the label bound after it.
	addrWord := mm.Units[1]
	assert.Equal(UnitAddress, addrWord.Kind)
	assert.Equal("0000011110", mm.Bits(addrWord))

	infos := mm.Filter(note.Info)
	assert.Equal(1, len(infos))
	assert.Contains(infos[0].Text, "Points to label 'end'")
	assert.Equal(note.Resolution, infos[0].Origin)
}

func TestUndefinedReference(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "jump"), ref(1, "nowhere"),
		cmd(2, "halt"),
	})

	assert.True(mm.Failed())

	errs := mm.Filter(note.Error)
	assert.Equal(1, len(errs))
	assert.Contains(errs[0].Text, "Undefined label reference 'nowhere'")
	assert.Equal(note.Resolution, errs[0].Origin)

	// The reference word zero-fills and everything after it still
	// gets a valid address.
	assert.Equal("0000000000", mm.Bits(mm.Units[1]))
	assert.Equal(20, mm.Units[2].Addr)
}

func TestOperandOverflowKeepsAddresses(t *testing.T) {
	assert := assert.New(t)

	overflowing := New(arch.Default(), []token.Token{
		cmd(1, "load"), bin(1, "11111"), // 5 bits into a 4-bit operand
		cmd(2, "halt"),
	})
	clean := New(arch.Default(), []token.Token{
		cmd(1, "load"), bin(1, "1111"),
		cmd(2, "halt"),
	})

	assert.True(overflowing.Failed())
	assert.False(clean.Failed())

	errs := overflowing.Filter(note.Error)
	assert.Equal(1, len(errs))
	assert.Contains(errs[0].Text, "exceeds its width of 4 bits")

	// The erroring token still occupies its declared width, so every
	// later span matches the error-free run.
	assert.Equal(len(clean.Units), len(overflowing.Units))
	for n := range clean.Units {
		assert.Equal(clean.Units[n].Addr, overflowing.Units[n].Addr)
		assert.Equal(clean.Units[n].Width, overflowing.Units[n].Width)
	}
}

func TestAddressOverflow(t *testing.T) {
	assert := assert.New(t)

	// A machine with 2-bit words cannot address past 3.
	tiny := &arch.Machine{
		WordLength: 2,
		Instructions: []arch.Instruction{
			{Opcode: "00", Names: []string{"halt"}, Flow: arch.FlowHalt},
			{Opcode: "01", Names: []string{"jump"}, Operands: []token.Kind{token.LabelRef}, Flow: arch.FlowJump},
		},
	}

	mm := New(tiny, []token.Token{
		cmd(1, "jump"), ref(1, "far"),
		cmd(2, "halt"),
		cmd(3, "halt"),
		label(4, "far"),
		cmd(5, "halt"),
	})

	assert.True(mm.Failed())

	errs := mm.Filter(note.Error)
	assert.Equal(1, len(errs))
	assert.Contains(errs[0].Text, "exceeds word length")

	// Zero-fill recovery keeps the span widths intact.
	assert.Equal("00", mm.Bits(mm.Units[1]))
}

func TestUnknownInstruction(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "frobnicate"),
		cmd(2, "halt"),
	})

	assert.True(mm.Failed())

	errs := mm.Filter(note.Error)
	assert.Equal(1, len(errs))
	assert.Contains(errs[0].Text, "Unknown instruction 'frobnicate'")

	// The unknown instruction still claims one word.
	assert.Equal(UnitError, mm.Units[0].Kind)
	assert.Equal(10, mm.Units[1].Addr)
	assert.Equal("0000000000", mm.Bits(mm.Units[0]))
}

func TestErrorTokenPlacesHalt(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		errTok(1, "Syntax error: Cannot understand \"@@\""),
		cmd(2, "halt"),
	})

	assert.True(mm.Failed())
	assert.Equal(2, len(mm.Units))
	assert.Equal(UnitInstruction, mm.Units[0].Kind)
	assert.Equal("halt", mm.Units[0].Op.Name())
	assert.Equal(10, mm.Units[1].Addr)
}

func TestMissingOperand(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "load"),
	})

	assert.True(mm.Failed())
	errs := mm.Filter(note.Error)
	assert.Equal(1, len(errs))
	assert.Contains(errs[0].Text, "end of the file")
}

func TestInvalidOperandKind(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "jump"), label(1, "oops"),
		cmd(2, "halt"),
	})

	assert.True(mm.Failed())
	errs := mm.Filter(note.Error)
	assert.Equal(1, len(errs))
	assert.Contains(errs[0].Text, "Invalid operand for instruction 'jump'")
	assert.Contains(errs[0].Text, "'Label'")

	// The operand still claims an address word so the layout holds.
	assert.Equal(3, len(mm.Units))
	assert.Equal(20, mm.Units[2].Addr)
}

func TestRawDataWarning(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		bin(1, "1010101010"),
	})

	assert.False(mm.Failed())
	warnings := mm.Filter(note.Warning)
	assert.Equal(1, len(warnings))
	assert.Contains(warnings[0].Text, "raw data where it might be read as instructions")
	assert.Equal("1010101010", mm.Bits(mm.Units[0]))
}

func TestRawDataAfterHaltIsQuiet(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "halt"),
		bin(2, "1111"),
	})

	assert.False(mm.Failed())
	assert.Equal(0, len(mm.Filter(note.Warning)))
	assert.Equal("0000001111", mm.Bits(mm.Units[1]))
}

func TestUnreachableWarning(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "halt"),
		cmd(2, "halt"),
		cmd(3, "halt"),
	})

	assert.False(mm.Failed())
	// Warn once after the first halt, then reset.
	warnings := mm.Filter(note.Warning)
	assert.Equal(2, len(warnings))
	assert.Contains(warnings[0].Text, "Unreachable code")
}

func TestLabelResetsReachability(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "jump"), ref(1, "next"),
		label(2, "next"),
		cmd(3, "halt"),
	})

	assert.False(mm.Failed())
	assert.Equal(0, len(mm.Filter(note.Warning)))
}

func TestCommentAndInfoNotes(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "halt"),
		{Kind: token.Comment, Value: "the end", Line: 2, Src: "; the end"},
		{Kind: token.Info, Value: "all done", Line: 3, Src: "all done"},
	})

	assert.False(mm.Failed())
	notes := mm.AllNotes()
	assert.Equal(2, len(notes))
	assert.Equal(note.Comment, notes[0].Severity)
	assert.Equal("the end", notes[0].Text)
	assert.Equal(note.Info, notes[1].Severity)
	// Free-standing notes attach to the previous span's address.
	assert.Equal(0, notes[0].Addr)
}

func TestNoteOrdering(t *testing.T) {
	assert := assert.New(t)

	// The placement-time duplicate label is detected after the
	// resolution-time undefined reference appears in the source, but
	// placement notes still come first.
	mm := New(arch.Default(), []token.Token{
		cmd(1, "jump"), ref(1, "gone"),
		label(2, "dup"),
		label(3, "dup"),
	})

	notes := mm.AllNotes()
	assert.Equal(2, len(notes))
	assert.Contains(notes[0].Text, "Duplicate label")
	assert.Contains(notes[1].Text, "Undefined label reference")
}

func TestDeterminism(t *testing.T) {
	assert := assert.New(t)

	tokens := []token.Token{
		cmd(1, "load"), bin(1, "1"),
		label(2, "again"),
		cmd(3, "add"), bin(3, "1"),
		cmd(4, "jump"), ref(4, "again"),
		cmd(5, "jump"), ref(5, "missing"),
		bin(6, "10101"),
	}

	first := New(arch.Default(), tokens)
	second := New(arch.Default(), tokens)

	assert.Equal(first.Labels, second.Labels)
	assert.Equal(first.Cells, second.Cells)
	assert.Equal(first.AllNotes(), second.AllNotes())
	assert.Equal(first.Failed(), second.Failed())

	var firstWords, secondWords []string
	for _, bits := range first.Words() {
		firstWords = append(firstWords, bits)
	}
	for _, bits := range second.Words() {
		secondWords = append(secondWords, bits)
	}
	assert.Equal(firstWords, secondWords)
}

func TestSeverityFilter(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		bin(1, "1"),                             // warning: raw data
		{Kind: token.Comment, Value: "c", Line: 2}, // comment
		{Kind: token.Info, Value: "i", Line: 3},    // info
		cmd(4, "jump"), ref(4, "missing"), // error
	})

	filtered := mm.Filter(note.Warning)
	assert.Equal(2, len(filtered))
	assert.Equal(note.Warning, filtered[0].Severity)
	assert.Equal(note.Error, filtered[1].Severity)

	assert.Equal(1, mm.Count(note.Error))
	assert.Equal(1, mm.Count(note.Warning))
	assert.Equal(1, mm.Count(note.Comment))
	// "Points to" info is not present since resolution failed, so
	// only the free-standing info note counts.
	assert.Equal(1, mm.Count(note.Info))
}

func TestJumpWithLiteralAddress(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "jump"), bin(1, "101"),
	})

	assert.False(mm.Failed())
	assert.Equal(2, len(mm.Units))
	assert.Equal(UnitData, mm.Units[1].Kind)
	assert.Equal("0000000101", mm.Bits(mm.Units[1]))
}

func TestOperandErrorSubstitutesZero(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "load"), errTok(1, "Syntax error"),
		cmd(2, "halt"),
	})

	assert.True(mm.Failed())
	errs := mm.Filter(note.Error)
	assert.Equal(1, len(errs))
	assert.Contains(errs[0].Text, "Operand for instruction 'load' has an error")

	// Zero-substituted operand keeps the word intact.
	assert.Equal("0001000000", mm.Bits(mm.Units[0]))
	assert.Equal(10, mm.Units[1].Addr)
}

func TestOperandErrorForAddressIsDropped(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "jump"), errTok(1, "Syntax error"),
		cmd(2, "halt"),
	})

	assert.True(mm.Failed())
	// No address word was placed; the jump word is followed directly
	// by the halt.
	assert.Equal(2, len(mm.Units))
	assert.Equal(10, mm.Units[1].Addr)
}

func TestWordsAndSummaryRoundTrip(t *testing.T) {
	assert := assert.New(t)

	mm := New(arch.Default(), []token.Token{
		cmd(1, "halt"),
		bin(2, "11"),
	})

	var words []string
	for addr, bits := range mm.Words() {
		words = append(words, bits)
		assert.Equal(mm.Units[len(words)-1].Addr, addr)
	}
	assert.Equal([]string{"0000000000", "0000000011"}, words)
}
