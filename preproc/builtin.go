package preproc

import (
	"slices"
	"strconv"
	"strings"

	"github.com/onebpc/onebpc/token"
)

// Data memory available to malloc, in bits. The top reservedBits are
// kept free for the machine's own registers.
const (
	memoryBits   = 256
	reservedBits = 16
)

// numbers are the operand kinds a macro accepts where any literal
// will do.
var numbers = []token.Kind{token.Binary, token.Decimal, token.Hexadecimal}

// defineMacros run before expression evaluation so that $() can use
// the constants.
var defineMacros = buildDefineMacros()

// macros is the rest of the built-in table, applied in order.
var macros = buildMacros()

func buildDefineMacros() (table []macro) {
	for _, kind := range []token.Kind{token.Binary, token.Decimal, token.Hexadecimal, token.Instruction} {
		table = append(table, macro{
			Name:     "define",
			Operands: []token.Kind{token.Label, kind},
			Expand:   define,
		})
	}
	return
}

func buildMacros() (table []macro) {
	table = append(table, macro{Name: "use", Operands: []token.Kind{token.LabelRef}, Expand: use})

	for _, kind := range numbers {
		table = append(table, macro{
			Name:     "malloc",
			Operands: []token.Kind{token.Label, kind},
			Expand:   malloc,
		})
	}

	// at <math> with 3, 2 or 1 label operands, with or without an
	// explicit operation length. Longer patterns first, so they win.
	for _, labels := range []int{3, 2, 1} {
		operands := []token.Kind{token.Instruction}
		for range labels {
			operands = append(operands, token.LabelRef)
		}
		for _, kind := range numbers {
			table = append(table, macro{
				Name:     "at",
				Operands: append(append([]token.Kind{}, operands...), kind),
				Expand:   atMath,
			})
		}
		table = append(table, macro{Name: "at", Operands: operands, Expand: atMath})
	}

	table = append(table, macro{Name: "at", Operands: []token.Kind{token.LabelRef}, Expand: at})

	for _, name := range []string{"load_byte", "lb"} {
		for _, kind := range numbers {
			table = append(table, macro{Name: name, Operands: []token.Kind{kind}, Expand: loadByte})
		}
	}
	for _, name := range []string{"load_double", "ld"} {
		for _, kind := range numbers {
			table = append(table, macro{Name: name, Operands: []token.Kind{kind}, Expand: loadDouble})
		}
	}

	table = append(table,
		macro{Name: "do", Operands: nil, Expand: func([]token.Token, *context) []token.Token { return nil }},
		macro{Name: "while", Operands: []token.Kind{token.Instruction, token.LabelRef}, Expand: while},
		macro{Name: "until", Operands: []token.Kind{token.Instruction, token.LabelRef}, Expand: until},
	)

	return
}

// define records a named constant token. A later `use :name` expands
// to a copy of the constant.
func define(toks []token.Token, ctx *context) []token.Token {
	name := toks[1].Value
	body := toks[2]

	if _, ok := ctx.defines[name]; ok {
		return []token.Token{errToken(toks[0].Line, srcText(toks),
			f("Macro '%v' is already defined.", name))}
	}

	ctx.defines[name] = body
	return nil
}

// use expands a defined constant at the use site.
func use(toks []token.Token, ctx *context) []token.Token {
	name := toks[1].Value

	body, ok := ctx.defines[name]
	if !ok {
		return []token.Token{errToken(toks[1].Line, srcText(toks),
			f("Macro '%v' is not defined.", name))}
	}

	return []token.Token{{
		Kind:  body.Kind,
		Value: body.Value,
		Line:  toks[1].Line,
		Src:   srcText(toks),
		Note:  toks[1].Note,
	}}
}

// malloc reserves a region of data memory for a label and reports
// the allocation as an info token.
func malloc(toks []token.Token, ctx *context) []token.Token {
	name := toks[1].Value
	size, err := toks[2].IntValue()
	if err != nil {
		return []token.Token{errToken(toks[2].Line, srcText(toks), err.Error())}
	}

	addr := ctx.nextAddr
	next := addr + size
	if next >= memoryBits {
		next = memoryBits - 1
	}

	ctx.allocs[name] = alloc{Addr: addr, Size: size}
	ctx.nextAddr = next

	if next >= memoryBits-reservedBits {
		return []token.Token{errToken(toks[2].Line, srcText(toks),
			f("Not enough memory to allocate %v bits for '%v'.", size, name))}
	}

	return []token.Token{{
		Kind:  token.Info,
		Value: f("'%v' is allocated to [%v: %v] (%v bits)", name, addr, addr+size-1, size),
		Line:  toks[0].Line,
		Src:   srcText(toks),
	}}
}

// at expands to the allocated address of a label as a binary literal,
// which then packs into the preceding instruction word as an inline
// operand.
func at(toks []token.Token, ctx *context) []token.Token {
	name := toks[1].Value

	al, ok := ctx.allocs[name]
	if !ok {
		return []token.Token{errToken(toks[1].Line, srcText(toks),
			f("Memory label '%v' is not allocated.", name))}
	}

	var notes []string
	for _, tok := range toks {
		if tok.Note != "" {
			notes = append(notes, tok.Note)
		}
	}

	return []token.Token{{
		Kind:  token.Binary,
		Value: strconv.FormatInt(int64(al.Addr), 2),
		Line:  toks[1].Line,
		Src:   srcText(toks),
		Note:  strings.Join(notes, ", "),
	}}
}

// loadByte splits a byte into two load instructions of one nibble
// each, low nibble first.
func loadByte(toks []token.Token, ctx *context) []token.Token {
	value, err := toks[1].IntValue()
	if err != nil {
		return []token.Token{errToken(toks[1].Line, srcText(toks), err.Error())}
	}

	if value < 0 || value > 255 {
		return []token.Token{errToken(toks[1].Line, srcText(toks),
			f("Byte value %v out of range (0-255).", value))}
	}

	name := loadName(toks[0])
	bits := zfillBits(value, 8)

	return []token.Token{
		{Kind: token.Instruction, Value: name, Line: toks[0].Line, Src: name, Note: toks[1].Note},
		{Kind: token.Binary, Value: bits[4:], Line: toks[1].Line, Src: toks[1].Src,
			Note: f("lower 4 bits of byte %v", value)},
		{Kind: token.Instruction, Value: name, Line: toks[1].Line, Src: name},
		{Kind: token.Binary, Value: bits[:4], Line: toks[1].Line, Src: toks[1].Src,
			Note: f("upper 4 bits of byte %v", value)},
	}
}

// loadDouble splits a 16-bit value into four load instructions of one
// nibble each, lowest nibble first.
func loadDouble(toks []token.Token, ctx *context) []token.Token {
	value, err := toks[1].IntValue()
	if err != nil {
		return []token.Token{errToken(toks[1].Line, srcText(toks), err.Error())}
	}

	if value < 0 || value > 65535 {
		return []token.Token{errToken(toks[1].Line, srcText(toks),
			f("Double byte value %v out of range (0-65535).", value))}
	}

	name := loadName(toks[0])
	bits := zfillBits(value, 16)

	var expansion []token.Token
	for n := 3; n >= 0; n-- {
		expansion = append(expansion,
			token.Token{Kind: token.Instruction, Value: name, Line: toks[1].Line, Src: name},
			token.Token{Kind: token.Binary, Value: bits[n*4 : n*4+4], Line: toks[1].Line,
				Src: toks[1].Src + "[" + strconv.Itoa(n*4) + ":" + strconv.Itoa(n*4+4) + "]",
				Note: f("nibble %v of double byte %v", n, toks[1].Src)})
	}
	return expansion
}

// loadName picks the long or short instruction name to match the way
// the macro itself was spelled.
func loadName(tok token.Token) string {
	if strings.Contains(tok.Src, "_") {
		return "load"
	}
	return "l"
}

func zfillBits(value int, width int) string {
	bits := strconv.FormatInt(int64(value), 2)
	if len(bits) < width {
		bits = strings.Repeat("0", width-len(bits)) + bits
	}
	return bits
}

// whileConditions maps while-loop condition names to their jump
// instructions.
var whileConditions = map[string]string{
	"a0":        "ja0",
	"a_0":       "jump_if_a_0",
	"a1":        "ja1",
	"a_1":       "jump_if_a_1",
	"c0":        "jc0",
	"c_0":       "jump_if_carry_0",
	"c1":        "jc1",
	"c_1":       "jump_if_carry_1",
	"t":         "jt",
	"triggered": "jump_if_triggered",
}

// untilConditions is the subset of conditions an until-loop accepts.
var untilConditions = map[string]string{
	"t":         "jt",
	"triggered": "jump_if_triggered",
}

func conditionNames(conditions map[string]string) string {
	names := make([]string, 0, len(conditions))
	for name := range conditions {
		names = append(names, name)
	}
	// Deterministic messages regardless of map order.
	slices.Sort(names)
	return strings.Join(names, ", ")
}

// while expands to a conditional jump back to the loop label.
func while(toks []token.Token, ctx *context) []token.Token {
	cond := toks[1]
	label := toks[2]

	jump, ok := whileConditions[cond.Value]
	if !ok {
		return []token.Token{errToken(cond.Line, srcText(toks),
			f("Unknown condition '%v' in 'while' macro. Please use one of: %v.",
				cond.Value, conditionNames(whileConditions)))}
	}

	return []token.Token{
		{Kind: token.Instruction, Value: jump, Line: toks[0].Line, Src: toks[0].Src, Note: toks[0].Note},
		{Kind: token.LabelRef, Value: label.Value, Line: label.Line, Src: label.Src, Note: label.Note},
	}
}

// until expands to a conditional jump past an unconditional jump back
// to the loop label, with a synthesized end label.
func until(toks []token.Token, ctx *context) []token.Token {
	cond := toks[1]
	label := toks[2]

	jump, ok := untilConditions[cond.Value]
	if !ok {
		return []token.Token{errToken(cond.Line, srcText(toks),
			f("Unknown condition '%v' in 'until' macro. Please use one of: %v.",
				cond.Value, conditionNames(untilConditions)))}
	}

	back := "jump"
	if len(cond.Value) >= 3 {
		back = "ji"
	}

	end := "__" + label.Value + "_end"
	endNote := f("end label for until loop '%v'", label.Value)

	return []token.Token{
		{Kind: token.Instruction, Value: jump, Line: toks[0].Line,
			Src: toks[0].Src + " " + cond.Src, Note: toks[0].Note},
		{Kind: token.LabelRef, Value: end, Line: toks[0].Line, Src: ":" + end, Note: endNote},
		{Kind: token.Instruction, Value: back, Line: label.Line, Src: label.Src, Note: label.Note},
		{Kind: token.LabelRef, Value: label.Value, Line: label.Line, Src: label.Src, Note: label.Note},
		{Kind: token.Label, Value: end, Line: label.Line, Src: ":" + end, Note: endNote},
	}
}
