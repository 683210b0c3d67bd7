// Package preproc expands macros and compile-time expressions in a
// 1bpc token stream. It runs between the tokenizer and number
// normalization; the memory mapper never sees a macro.
package preproc

import (
	"slices"
	"strings"

	"github.com/onebpc/onebpc/token"
	"github.com/onebpc/onebpc/translate"
)

var f = translate.From

// alloc is one malloc'd region of data memory.
type alloc struct {
	Addr int
	Size int
}

// context carries state between macro expansions of one compile.
type context struct {
	defines  map[string]token.Token
	allocs   map[string]alloc
	nextAddr int
}

func newContext() *context {
	return &context{
		defines: make(map[string]token.Token),
		allocs:  make(map[string]alloc),
	}
}

// macro is one pattern of the built-in macro table. A macro matches
// an instruction token with its name followed by operand tokens of
// the listed kinds, and replaces them with its expansion.
type macro struct {
	Name     string
	Operands []token.Kind
	Expand   func(toks []token.Token, ctx *context) []token.Token
}

// span is the number of tokens the macro consumes.
func (mc *macro) span() int {
	return 1 + len(mc.Operands)
}

func (mc *macro) matches(toks []token.Token) bool {
	if len(toks) < mc.span() {
		return false
	}
	if toks[0].Kind != token.Instruction || toks[0].Value != mc.Name {
		return false
	}
	for n, kind := range mc.Operands {
		if toks[1+n].Kind != kind {
			return false
		}
	}
	return true
}

// apply replaces every match of the macro in the stream. The scan
// does not advance past an expansion, so an expansion is itself
// subject to the remaining macro patterns.
func apply(mc *macro, tokens []token.Token, ctx *context) []token.Token {
	i := 0
	for i < len(tokens) {
		if mc.matches(tokens[i:]) {
			expansion := mc.Expand(tokens[i:i+mc.span()], ctx)
			tokens = slices.Concat(tokens[:i:i], expansion, tokens[i+mc.span():])
		} else {
			i++
		}
	}
	return tokens
}

// srcText joins the source text of a macro invocation for messages.
func srcText(toks []token.Token) string {
	texts := make([]string, len(toks))
	for n, tok := range toks {
		texts[n] = tok.Src
	}
	return strings.Join(texts, " ")
}

func errToken(line int, src string, text string) token.Token {
	return token.Token{Kind: token.Err, Value: text, Line: line, Src: src}
}

// Preprocess expands all built-in macros and $() expressions in the
// stream. Bad macro usage and unevaluable expressions degrade to
// error tokens; the stream itself is always returned in full.
func Preprocess(tokens []token.Token) []token.Token {
	ctx := newContext()

	// Constants first, so expressions can refer to them.
	for n := range defineMacros {
		tokens = apply(&defineMacros[n], tokens, ctx)
	}

	tokens = evalExprs(tokens, ctx)

	for n := range macros {
		tokens = apply(&macros[n], tokens, ctx)
	}

	return flagMisused(tokens)
}

// flagMisused turns leftover instruction tokens that name a macro
// into error tokens describing the accepted argument shapes. A macro
// name that survived expansion was used with the wrong arguments.
func flagMisused(tokens []token.Token) []token.Token {
	for n, tok := range tokens {
		if tok.Kind != token.Instruction {
			continue
		}
		options := argumentOptions(tok.Value)
		if options == "" {
			continue
		}
		tokens[n] = errToken(tok.Line, tok.Src,
			f("Macro '%v' usage is incorrect. The argument options are: %v.", tok.Value, options))
	}
	return tokens
}

// argumentOptions lists the operand shapes of every macro with the
// given name, or "" if no macro has that name.
func argumentOptions(name string) string {
	var options []string
	for _, table := range [][]macro{defineMacros, macros} {
		for n := range table {
			mc := &table[n]
			if mc.Name != name {
				continue
			}
			kinds := make([]string, len(mc.Operands))
			for k, kind := range mc.Operands {
				kinds[k] = kind.String()
			}
			options = append(options, "["+strings.Join(kinds, ", ")+"]")
		}
	}
	return strings.Join(options, ", or ")
}
