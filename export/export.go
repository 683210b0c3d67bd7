// Package export renders a finished memory map, its labels, and its
// notes into text or JSON. It makes no semantic decisions: everything
// here is presentation of what the memory mapper produced.
package export

import (
	"fmt"
	"slices"
	"strings"

	"github.com/onebpc/onebpc/memmap"
	"github.com/onebpc/onebpc/note"
)

// Options selects how the memory map is rendered.
type Options struct {
	// ShowLabels prints the labels bound to each address.
	ShowLabels bool
	// NoteLevel is the minimum severity of notes included in the
	// rendered map. Zero leaves all notes out of the map; the
	// summary still reports errors and warnings regardless.
	NoteLevel note.Severity
	// SpreadNotes places notes and labels on their own lines.
	SpreadNotes bool
	// WordWrapLimit wraps note text at the given column. Zero
	// disables wrapping. Implies SpreadNotes.
	WordWrapLimit int
	// AddressNumbers prefixes each line with its bit address.
	AddressNumbers bool
	// ShowTokenSrc echoes the source text of each word's tokens.
	ShowTokenSrc bool
	// TokenNotes includes the notes attached to tokens, such as
	// number-conversion traces.
	TokenNotes bool
	// Hashtags renders bits as '#' and '-' instead of '1' and '0'.
	Hashtags bool
}

// wordWrap breaks text on spaces to fit the width, indenting
// continuation lines.
func wordWrap(text string, width int, indent int) string {
	words := strings.Split(text, " ")
	if len(words) == 0 {
		return text
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+len(word)+1 <= width {
			if current != "" {
				current += " "
			}
			current += word
		} else {
			if current != "" {
				lines = append(lines, current)
			}
			current = strings.Repeat(" ", indent) + word
		}
	}

	if current != "" {
		lines = append(lines, current)
	}

	return strings.Join(lines, "\n")
}

func formatNote(n note.Note) string {
	return fmt.Sprintf("%v line %v: %v", n.Severity, n.Line, n.Text)
}

// sortBySeverity orders notes most severe first, preserving emission
// order within a severity.
func sortBySeverity(notes []note.Note) {
	slices.SortStableFunc(notes, func(a, b note.Note) int {
		return int(a.Severity) - int(b.Severity)
	})
}

// wrapAll word-wraps each note text and flattens the results.
func wrapAll(texts []string, width int, indent int) (wrapped []string) {
	for _, text := range texts {
		wrapped = append(wrapped, strings.Split(wordWrap(text, width, indent), "\n")...)
	}
	return
}

// Render produces the memory-map listing: one line per placed word,
// with labels and notes placed according to the options.
func Render(mm *memmap.Map, opts Options) string {
	if opts.WordWrapLimit > 0 {
		opts.SpreadNotes = true
	}

	all := mm.AllNotes()

	var output []string
	lastLine := 0

	for _, u := range mm.Units {
		word := mm.Bits(u)

		var labels []string
		if opts.ShowLabels {
			labels = mm.LabelsAt(u.Addr)
		}

		// Notes written between the previous word's source line and
		// this one get their own lines above this word.
		var skipped []note.Note
		if opts.SpreadNotes && opts.NoteLevel != 0 {
			for _, n := range all {
				if !n.Severity.Meets(opts.NoteLevel) {
					continue
				}
				if n.Line > lastLine && n.Line < u.Line() {
					skipped = append(skipped, n)
				}
			}
			lastLine = u.Line()
		}

		var notes []note.Note
		if opts.NoteLevel != 0 {
			for _, n := range all {
				if n.Addr != u.Addr || !n.Severity.Meets(opts.NoteLevel) {
					continue
				}
				if opts.SpreadNotes && n.Line != u.Line() {
					continue
				}
				notes = append(notes, n)
			}
		}

		if opts.TokenNotes {
			for _, tok := range u.Tokens {
				if tok.Note != "" {
					notes = append(notes, note.Note{
						Addr: u.Addr, Line: tok.Line,
						Severity: note.Info, Text: tok.Note,
					})
				}
			}
		}

		line := ""
		if opts.AddressNumbers {
			line += fmt.Sprintf("%04d:  ", u.Addr)
		}
		if opts.Hashtags {
			word = strings.ReplaceAll(word, "0", "-")
			word = strings.ReplaceAll(word, "1", "#")
		}
		line += word
		lineLen := len(line)

		sortBySeverity(skipped)
		sortBySeverity(notes)

		skippedTexts := make([]string, len(skipped))
		for n, sn := range skipped {
			skippedTexts[n] = formatNote(sn)
		}
		noteTexts := make([]string, len(notes))
		for n, nn := range notes {
			noteTexts[n] = formatNote(nn)
		}

		srcTexts := make([]string, len(u.Tokens))
		for n, tok := range u.Tokens {
			srcTexts[n] = tok.Src
		}

		if !opts.SpreadNotes {
			if len(labels) > 0 || opts.ShowTokenSrc || len(noteTexts) > 0 {
				line += " "
			}
			if len(labels) > 0 {
				line += " " + strings.Join(labels, ": ") + ":"
			}
			if opts.ShowTokenSrc {
				line += " " + strings.Join(srcTexts, " ")
			}
			if len(noteTexts) > 0 {
				for n, text := range noteTexts {
					noteTexts[n] = "[" + text + "]"
				}
				line += " " + strings.Join(noteTexts, " ")
			}
			output = append(output, line)
			continue
		}

		if opts.ShowTokenSrc {
			line += "  " + strings.Join(srcTexts, " ")
		}

		if opts.WordWrapLimit > 0 {
			width := opts.WordWrapLimit - lineLen - 2
			skippedTexts = wrapAll(skippedTexts, width, 4)
			noteTexts = wrapAll(noteTexts, width, 4)
		}

		pad := strings.Repeat(" ", lineLen+2)
		for _, text := range skippedTexts {
			output = append(output, pad+text)
		}
		for _, label := range labels {
			if opts.AddressNumbers {
				output = append(output, "      "+label+":")
			} else {
				output = append(output, label+":")
			}
		}
		if len(noteTexts) > 0 {
			if opts.ShowTokenSrc {
				output = append(output, line)
			} else {
				output = append(output, line+"  "+noteTexts[0])
				noteTexts = noteTexts[1:]
			}
			for _, text := range noteTexts {
				output = append(output, pad+text)
			}
		} else {
			output = append(output, line)
		}
	}

	return strings.Join(output, "\n")
}

// Summary renders the terminal note report: the filtered notes sorted
// by severity then address, and the error and warning totals, which
// are always reported regardless of the threshold.
func Summary(mm *memmap.Map, level note.Severity, wrapLimit int) string {
	if level == 0 {
		level = note.Warning
	}

	notes := mm.AllNotes()
	slices.SortStableFunc(notes, func(a, b note.Note) int {
		if a.Severity != b.Severity {
			return int(a.Severity) - int(b.Severity)
		}
		return a.Addr - b.Addr
	})

	var output []string
	printed := 0
	lastSeverity := note.Severity(0)

	for _, n := range notes {
		if !n.Severity.Meets(level) {
			continue
		}
		if printed > 0 && n.Severity != lastSeverity {
			output = append(output, "")
		}
		lastSeverity = n.Severity
		printed++

		text := fmt.Sprintf("Address %04d, Line %v, %v: %v", n.Addr, n.Line, n.Severity, n.Text)
		if wrapLimit > 0 {
			text = wordWrap(text, wrapLimit, 4)
		}
		output = append(output, text)
	}

	if printed > 0 {
		output = append(output, "")
	}
	output = append(output, fmt.Sprintf("Errors: %v, Warnings: %v",
		mm.Count(note.Error), mm.Count(note.Warning)))

	return strings.Join(output, "\n")
}
