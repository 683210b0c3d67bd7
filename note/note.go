// Package note implements the severity-ordered diagnostics log shared
// by every stage of the 1bpc compiler pipeline.
package note

import (
	"iter"
	"slices"
)

// Severity orders notes from most to least severe. Lower values are
// more severe, so a threshold check is a single comparison.
type Severity int

const (
	Error   = Severity(1)
	Warning = Severity(2)
	Comment = Severity(3)
	Info    = Severity(4)
)

var severityName = map[Severity]string{
	Error:   "ERROR",
	Warning: "WARNING",
	Comment: "COMMENT",
	Info:    "INFO",
}

func (s Severity) String() string {
	name, ok := severityName[s]
	if !ok {
		return "UNKNOWN"
	}
	return name
}

// Meets reports whether s is at least as severe as the threshold.
func (s Severity) Meets(threshold Severity) bool {
	return s <= threshold
}

// ParseSeverity maps a user-supplied level name to a Severity.
func ParseSeverity(name string) (s Severity, err error) {
	switch name {
	case "error":
		s = Error
	case "warning":
		s = Warning
	case "comment":
		s = Comment
	case "info":
		s = Info
	default:
		err = ErrSeverityInvalid(name)
	}
	return
}

// Origin records which stage of the compile emitted a note.
type Origin int

const (
	Conversion = Origin(0) // upstream of the engine
	Placement  = Origin(1)
	Resolution = Origin(2)
)

// Note is a single diagnostic, attached to a bit address and the
// source line that produced it.
type Note struct {
	Addr     int
	Line     int
	Severity Severity
	Origin   Origin
	Text     string
}

// Log is an append-only, emission-ordered collection of notes.
type Log struct {
	notes []Note
}

// Add appends a note to the log.
func (lg *Log) Add(n Note) {
	lg.notes = append(lg.notes, n)
}

// Len returns the number of notes in the log.
func (lg *Log) Len() int {
	return len(lg.notes)
}

// All iterates the notes in emission order.
func (lg *Log) All() iter.Seq[Note] {
	return slices.Values(lg.notes)
}

// Filter returns the notes at or above the severity threshold, in
// emission order.
func (lg *Log) Filter(threshold Severity) (notes []Note) {
	for _, n := range lg.notes {
		if n.Severity.Meets(threshold) {
			notes = append(notes, n)
		}
	}
	return
}

// Count returns the number of notes with exactly the given severity.
func (lg *Log) Count(s Severity) (count int) {
	for _, n := range lg.notes {
		if n.Severity == s {
			count++
		}
	}
	return
}

// Failed reports whether the log contains any error note.
func (lg *Log) Failed() bool {
	return lg.Count(Error) > 0
}
