package export

import (
	"encoding/json"
	"io"

	"github.com/onebpc/onebpc/memmap"
)

// jsonMap is the workshop data format: one "0b"-prefixed binary
// string per placed word.
type jsonMap struct {
	Data []string `json:"data"`
}

// WriteJSON writes the memory map in the workshop JSON format.
func WriteJSON(mm *memmap.Map, w io.Writer) error {
	out := jsonMap{Data: []string{}}
	for _, bits := range mm.Words() {
		out.Data = append(out.Data, "0b"+bits)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(&out)
}
