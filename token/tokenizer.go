package token

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Token text patterns, tried in order.
var (
	reInstruction = regexp.MustCompile(`^([a-z+\-_][a-z0-9+\-_]*)$`)
	reBinary      = regexp.MustCompile(`^%([01]+)$`)
	reDecimal     = regexp.MustCompile(`^(\d+)$`)
	reHexadecimal = regexp.MustCompile(`^0x([0-9a-f]+)$`)
	reLabel       = regexp.MustCompile(`^([a-z_][a-z0-9_]*):$`)
	reLabelRef    = regexp.MustCompile(`^:([a-z_][a-z0-9_]*)$`)
)

var patterns = [](struct {
	re   *regexp.Regexp
	kind Kind
}){
	{reInstruction, Instruction},
	{reBinary, Binary},
	{reDecimal, Decimal},
	{reHexadecimal, Hexadecimal},
	{reLabel, Label},
	{reLabelRef, LabelRef},
}

// isComment reports whether the remainder of a line is a comment, and
// strips the comment marker.
func isComment(text string) (body string, ok bool) {
	for _, marker := range []string{"//", ";", "#"} {
		if strings.HasPrefix(text, marker) {
			return strings.TrimSpace(text[len(marker):]), true
		}
	}
	return
}

// exprSpan returns the length of a balanced $( ... ) expression at
// the start of text, or 0 if the parens never balance.
func exprSpan(text string) int {
	depth := 0
	for n, r := range text {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return n + 1
			}
		}
	}
	return 0
}

// next scans one token from the front of a line remainder.
func next(text string, lineno int) (tok *Token, rest string) {
	text = strings.TrimLeft(text, " \t")
	if text == "" {
		return
	}

	if body, ok := isComment(text); ok {
		tok = &Token{Kind: Comment, Value: body, Line: lineno, Src: text}
		return
	}

	if strings.HasPrefix(text, "$(") {
		span := exprSpan(text)
		if span == 0 {
			tok = &Token{
				Kind:  Err,
				Value: f("Syntax error: Unbalanced parentheses in \"%v\"", text),
				Line:  lineno,
				Src:   text,
			}
			return
		}
		tok = &Token{
			Kind:  Expr,
			Value: text[2 : span-1],
			Line:  lineno,
			Src:   text[:span],
		}
		rest = text[span:]
		return
	}

	word, rest, _ := strings.Cut(text, " ")
	for _, pattern := range patterns {
		match := pattern.re.FindStringSubmatch(word)
		if match != nil {
			tok = &Token{Kind: pattern.kind, Value: match[1], Line: lineno, Src: word}
			return
		}
	}

	tok = &Token{
		Kind:  Err,
		Value: f("Syntax error: Cannot understand \"%v\"", word),
		Line:  lineno,
		Src:   word,
	}
	return
}

// Tokenize lexes source text into an ordered token stream. Text that
// matches no pattern becomes an error token rather than failing the
// whole run.
func Tokenize(source string) (tokens []Token) {
	for n, line := range strings.Split(source, "\n") {
		rest := line
		for rest != "" {
			var tok *Token
			tok, rest = next(rest, n+1)
			if tok != nil {
				tokens = append(tokens, *tok)
			}
		}
	}
	return
}

// IntValue returns the numeric value of a number token.
func (tok Token) IntValue() (value int, err error) {
	var v64 int64
	switch tok.Kind {
	case Binary:
		v64, err = strconv.ParseInt(tok.Value, 2, 64)
	case Decimal:
		v64, err = strconv.ParseInt(tok.Value, 10, 64)
	case Hexadecimal:
		v64, err = strconv.ParseInt(tok.Value, 16, 64)
	default:
		err = ErrNotANumber(tok.Value)
		return
	}
	if err != nil {
		err = ErrNotANumber(tok.Value)
		return
	}
	value = int(v64)
	return
}

// ToBinary rewrites a decimal or hexadecimal token to a binary token
// carrying a conversion note. Other tokens pass through unchanged.
func ToBinary(tok Token) Token {
	value, err := tok.IntValue()
	if err != nil {
		return tok
	}

	switch tok.Kind {
	case Decimal:
		tok = tok.WithNote(f("converted from decimal: %v", tok.Value))
	case Hexadecimal:
		tok = tok.WithNote(f("converted from hex: 0x%v", tok.Value))
	default:
		return tok
	}

	tok.Kind = Binary
	tok.Value = fmt.Sprintf("%b", value)
	return tok
}

// Normalize rewrites every numeric token in the stream to binary, so
// the memory mapper only ever sees binary literals.
func Normalize(tokens []Token) (result []Token) {
	result = make([]Token, 0, len(tokens))
	for _, tok := range tokens {
		result = append(result, ToBinary(tok))
	}
	return
}
