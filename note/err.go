package note

import (
	"github.com/onebpc/onebpc/translate"
)

var f = translate.From

type ErrSeverityInvalid string

func (err ErrSeverityInvalid) Error() string {
	return f("'%v' is not a note level", string(err))
}
