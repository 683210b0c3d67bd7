// Package memmap implements the memory mapping and code generation
// engine: the two-pass translation of a preprocessed token stream
// into a bit-addressable memory map.
//
// The placement pass assigns every token a contiguous span of bit
// addresses and binds labels. The generation pass runs once all
// labels are bound, resolves label references, and emits the final
// bit value of every address. Problems found in either pass are
// recorded as notes and recovered locally, so one compile surfaces
// every independent problem in the source.
package memmap

import (
	"iter"
	"log"
	"slices"

	"github.com/onebpc/onebpc/arch"
	"github.com/onebpc/onebpc/internal"
	"github.com/onebpc/onebpc/note"
	"github.com/onebpc/onebpc/token"
	"github.com/onebpc/onebpc/translate"
)

var f = translate.From

// UnitKind discriminates what occupies a placed span.
type UnitKind int

const (
	// UnitInstruction is an instruction word: opcode bits, optionally
	// followed by an inline operand.
	UnitInstruction = UnitKind(1)
	// UnitData is a raw binary literal.
	UnitData = UnitKind(2)
	// UnitAddress is a label-reference word, resolved during code
	// generation.
	UnitAddress = UnitKind(3)
	// UnitError is a placeholder span for a token that could not be
	// placed meaningfully. It keeps later addresses stable.
	UnitError = UnitKind(4)
)

// Unit is one placed span of the memory map.
type Unit struct {
	Kind UnitKind
	// Addr is the first bit address of the span.
	Addr int
	// Width is the number of bits the span occupies.
	Width int
	// Op is the instruction table entry, for UnitInstruction spans.
	Op *arch.Instruction
	// Tokens are the owning tokens in source order: the instruction
	// token plus an optional inline operand, or the single data or
	// label-reference token.
	Tokens []token.Token
}

// Line returns the source line of the span's first token.
func (u *Unit) Line() int {
	if len(u.Tokens) == 0 {
		return 0
	}
	return u.Tokens[0].Line
}

// Cell is one addressed bit of the finished map, tagged with the span
// that owns it.
type Cell struct {
	Bit  byte // 0 or 1
	Unit *Unit
}

// Map is the engine state for a single compile. Every compile builds
// a fresh Map; nothing is reused between runs.
type Map struct {
	Machine *arch.Machine
	// Units is the placed span sequence, in source order.
	Units []*Unit
	// Labels maps each label name to its bound bit address.
	Labels map[string]int
	// Cells is the finished address map, one entry per bit, dense
	// from address 0.
	Cells []Cell

	placeLog note.Log
	genLog   note.Log
}

// New runs both passes over an ordered, normalized token stream and
// returns the finished map.
func New(m *arch.Machine, tokens []token.Token) (mm *Map) {
	mm = &Map{
		Machine: m,
		Labels:  make(map[string]int),
	}

	mm.place(tokens)
	mm.generate()

	return
}

// Failed reports whether any error note was recorded by either pass.
func (mm *Map) Failed() bool {
	return mm.placeLog.Failed() || mm.genLog.Failed()
}

// Notes iterates all notes in emission order, placement notes first.
func (mm *Map) Notes() iter.Seq[note.Note] {
	return internal.IterSeqConcat(mm.placeLog.All(), mm.genLog.All())
}

// AllNotes returns all notes in emission order.
func (mm *Map) AllNotes() []note.Note {
	return slices.Collect(mm.Notes())
}

// Filter returns the notes at or above the severity threshold, in
// emission order.
func (mm *Map) Filter(threshold note.Severity) []note.Note {
	return append(mm.placeLog.Filter(threshold), mm.genLog.Filter(threshold)...)
}

// Count returns the number of notes with exactly the given severity.
func (mm *Map) Count(s note.Severity) int {
	return mm.placeLog.Count(s) + mm.genLog.Count(s)
}

// Bits returns the resolved bit string of a placed span.
func (mm *Map) Bits(u *Unit) string {
	bits := make([]byte, u.Width)
	for n := range u.Width {
		bits[n] = '0' + mm.Cells[u.Addr+n].Bit
	}
	return string(bits)
}

// Words iterates the placed spans as (address, bit string) pairs.
func (mm *Map) Words() iter.Seq2[int, string] {
	return func(yield func(addr int, bits string) bool) {
		for _, u := range mm.Units {
			if !yield(u.Addr, mm.Bits(u)) {
				return
			}
		}
	}
}

// LabelsAt returns the names of all labels bound to the given
// address, sorted for deterministic output.
func (mm *Map) LabelsAt(addr int) (names []string) {
	for name, bound := range mm.Labels {
		if bound == addr {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return
}

// Size returns the total number of placed bits.
func (mm *Map) Size() int {
	return len(mm.Cells)
}

// checkWidth validates an architecture-computed span width. A
// negative width is an engine or table bug, never a source error.
func checkWidth(width int, what string) {
	if width < 0 {
		log.Fatalf("memmap: internal: negative width %d for %s", width, what)
	}
}
