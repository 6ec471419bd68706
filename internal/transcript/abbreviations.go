package transcript

import (
	"strings"
	"unicode/utf8"
)

// nonTerminalAbbreviations end in a period that does not close a sentence.
var nonTerminalAbbreviations = map[string]map[string]struct{}{
	"en": set("e.g", "i.e", "cf", "dr", "mr", "mrs", "ms", "prof", "sr", "jr", "approx", "no", "vs"),
	"nl": set("bijv", "bv", "o.a", "d.w.z", "m.a.w", "dhr", "mevr", "mw", "nr", "ca", "z.s.m", "t.a.v", "i.p.v", "vs"),
	"de": set("z.b", "d.h", "u.a", "bzw", "ca", "nr", "dr", "hr", "fr", "vgl"),
	"fr": set("p.ex", "c.-à-d", "m", "mme", "mlle", "dr", "env", "n°"),
	"es": set("p.ej", "sr", "sra", "srta", "dr", "dra", "núm", "aprox"),
}

// lowercaseAbbreviations stay lowercase at the start of a sentence.
var lowercaseAbbreviations = map[string]map[string]struct{}{
	"en": set("e.g", "i.e", "etc", "vs"),
	"nl": set("bijv", "o.a", "d.w.z", "m.a.w", "enz", "i.p.v"),
	"de": set("z.b", "d.h", "u.a", "bzw", "usw"),
}

func set(items ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, item := range items {
		out[item] = struct{}{}
	}
	return out
}

// nonTerminal reports whether the period ending token belongs to an
// abbreviation or initialism.
func (c caser) nonTerminal(token string) bool {
	stem := strings.ToLower(strings.TrimLeftFunc(strings.TrimSuffix(token, "."), isSentencePrefix))
	if _, ok := nonTerminalAbbreviations[c.lang][stem]; ok {
		return true
	}
	return isInitialism(stem)
}

func (c caser) keepLower(word string) bool {
	stem := strings.ToLower(strings.TrimRight(strings.TrimRightFunc(word, isSentencePrefix), ".,;:"))
	_, ok := lowercaseAbbreviations[c.lang][stem]
	return ok
}

// isInitialism matches dotted single letters such as "u.s" or "a.s.a.p".
func isInitialism(stem string) bool {
	parts := strings.Split(stem, ".")
	if len(parts) < 2 {
		return false
	}
	for _, part := range parts {
		if utf8.RuneCountInString(part) != 1 {
			return false
		}
	}
	return true
}
