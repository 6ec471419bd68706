// Package transcript assembles recognized segments into one utterance.
package transcript

import "strings"

// Options controls assembly.
type Options struct {
	// Language is the ISO 639-1 code of the spoken language. It selects the
	// casing rules and abbreviation list.
	Language            string
	CapitalizeSentences bool
}

// Assemble joins segments, collapses whitespace, and optionally applies
// sentence casing for opts.Language.
func Assemble(segments []string, opts Options) string {
	normalized := strings.Join(strings.Fields(strings.Join(segments, " ")), " ")
	if normalized == "" || !opts.CapitalizeSentences {
		return normalized
	}
	return newCaser(opts.Language).apply(normalized)
}
