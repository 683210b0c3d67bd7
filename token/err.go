package token

import (
	"github.com/onebpc/onebpc/translate"
)

var f = translate.From

type ErrNotANumber string

func (err ErrNotANumber) Error() string {
	return f("'%v' is not a number", string(err))
}
