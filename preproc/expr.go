package preproc

import (
	"strconv"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/onebpc/onebpc/token"
)

// eval does a compile-time $( ... ) evaluation with every defined
// integer constant in scope.
func eval(expr string, ctx *context) (value int, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}

	pred := starlark.StringDict{}
	for name, tok := range ctx.defines {
		v, convErr := tok.IntValue()
		if convErr != nil {
			// Non-integer defines stay out of scope.
			continue
		}
		pred[name] = starlark.MakeInt(v)
	}

	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = int(st_int64)
	return
}

// evalExprs rewrites every expression token to the decimal number it
// evaluates to. Failed evaluations become error tokens.
func evalExprs(tokens []token.Token, ctx *context) []token.Token {
	for n, tok := range tokens {
		if tok.Kind != token.Expr {
			continue
		}

		value, err := eval(tok.Value, ctx)
		if err != nil || value < 0 {
			tokens[n] = errToken(tok.Line, tok.Src,
				f("$(%v) is not a valid expression", tok.Value))
			continue
		}

		tokens[n] = token.Token{
			Kind:  token.Decimal,
			Value: strconv.Itoa(value),
			Line:  tok.Line,
			Src:   tok.Src,
			Note:  f("evaluated from %v", tok.Src),
		}
	}
	return tokens
}
