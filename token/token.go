// Package token lexes 1bpc assembly source into the typed token
// stream consumed by the preprocessor and the memory mapper.
package token

// Kind is the type of a token.
type Kind int

const (
	Instruction = Kind(1)
	Binary      = Kind(2)
	Decimal     = Kind(3)
	Hexadecimal = Kind(4)
	Label       = Kind(5)
	LabelRef    = Kind(6)
	Comment     = Kind(7)
	Err         = Kind(8)
	Info        = Kind(9)
	Expr        = Kind(10)
)

var kindName = map[Kind]string{
	Instruction: "Instruction",
	Binary:      "Binary Number",
	Decimal:     "Decimal Number",
	Hexadecimal: "Hexadecimal Number",
	Label:       "Label",
	LabelRef:    "Label Reference",
	Comment:     "Comment",
	Err:         "Error",
	Info:        "Info",
	Expr:        "Expression",
}

func (k Kind) String() string {
	name, ok := kindName[k]
	if !ok {
		return "Unknown"
	}
	return name
}

// Token is one unit of preprocessed source. Tokens are never mutated
// once handed to the memory mapper; downstream stages derive new
// tokens instead.
type Token struct {
	Kind Kind
	// Value is the token payload: the instruction name, the digits of
	// a number, the label name, or the message of an error token.
	Value string
	// Line is the 1-based source line the token came from.
	Line int
	// Src is the original source text of the token.
	Src string
	// Note carries an attached remark from an earlier stage, such as
	// a number-conversion trace. Empty for most tokens.
	Note string
}

// WithNote returns a copy of the token with an extra note appended.
func (tok Token) WithNote(text string) Token {
	if tok.Note != "" {
		text = tok.Note + ", " + text
	}
	tok.Note = text
	return tok
}
