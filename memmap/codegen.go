package memmap

import (
	"log"
	"strconv"
	"strings"

	"github.com/onebpc/onebpc/note"
	"github.com/onebpc/onebpc/token"
)

// zfill left-pads a bit string with zeros to the given width.
func zfill(bits string, width int) string {
	if len(bits) >= width {
		return bits
	}
	return strings.Repeat("0", width-len(bits)) + bits
}

func zeros(width int) string {
	return strings.Repeat("0", width)
}

func (mm *Map) genNote(addr int, line int, s note.Severity, text string) {
	mm.genLog.Add(note.Note{Addr: addr, Line: line, Severity: s, Origin: note.Resolution, Text: text})
}

// generate is the code generation pass: with every label bound, it
// resolves label references and emits one bit value per address. It
// may run only after placement has seen the whole token stream, which
// is what makes forward references work.
func (mm *Map) generate() {
	for _, u := range mm.Units {
		bits := mm.encode(u)
		if len(bits) != u.Width {
			log.Fatalf("memmap: internal: span at %d encoded %d bits, want %d", u.Addr, len(bits), u.Width)
		}
		if len(mm.Cells) != u.Addr {
			log.Fatalf("memmap: internal: span at %d emitted at address %d", u.Addr, len(mm.Cells))
		}
		for n := range len(bits) {
			mm.Cells = append(mm.Cells, Cell{Bit: bits[n] - '0', Unit: u})
		}
	}
}

// encode resolves one placed span to its bit string.
func (mm *Map) encode(u *Unit) string {
	switch u.Kind {
	case UnitError:
		// Already noted by the placement pass.
		return zeros(u.Width)

	case UnitData:
		value := u.Tokens[0].Value
		if len(value) > u.Width {
			// Noted at placement; keep the high bits.
			return value[:u.Width]
		}
		return zfill(value, u.Width)

	case UnitAddress:
		return mm.encodeAddress(u)

	case UnitInstruction:
		return mm.encodeInstruction(u)
	}

	log.Fatalf("memmap: internal: span at %d has kind %d", u.Addr, u.Kind)
	return ""
}

// encodeAddress resolves a label-reference word against the label
// table. Both failure cases emit a zero word so downstream address
// accounting stays intact, while the note marks the compile failed.
func (mm *Map) encodeAddress(u *Unit) string {
	name := u.Tokens[0].Value

	addr, bound := mm.Labels[name]
	if !bound {
		mm.genNote(u.Addr, u.Line(), note.Error,
			f("Error: Undefined label reference '%v'.", name))
		return zeros(u.Width)
	}

	mm.genNote(u.Addr, u.Line(), note.Info, f("Points to label '%v'", name))

	bits := strconv.FormatInt(int64(addr), 2)
	if len(bits) > u.Width {
		mm.genNote(u.Addr, u.Line(), note.Error,
			f("Error: Address of label '%v' exceeds word length of %v.", name, u.Width))
		return zeros(u.Width)
	}
	return zfill(bits, u.Width)
}

// encodeInstruction packs the opcode bits and any inline operand into
// the instruction word.
func (mm *Map) encodeInstruction(u *Unit) string {
	opcode := u.Op.Opcode
	if len(opcode) > u.Width {
		log.Fatalf("memmap: internal: opcode '%v' longer than %d-bit word", u.Op.Name(), u.Width)
	}

	if len(u.Tokens) < 2 {
		return zfill(opcode, u.Width)
	}

	operand := u.Tokens[1]
	value := operand.Value
	if operand.Kind != token.Binary {
		// Unusable operand, already noted at placement.
		value = ""
	}

	width := u.Width - len(opcode)
	if len(value) > width {
		// Noted at placement; keep the high bits.
		value = value[:width]
	}
	return opcode + zfill(value, width)
}
