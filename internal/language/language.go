// Package language holds the closed registry of conversation languages and the
// role-to-language binding of a session.
package language

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// ErrUnsupportedLanguage is returned for codes outside the registry.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language is one registry entry.
type Language struct {
	Code       string
	Name       string
	NativeName string
}

// Tag returns the BCP 47 tag for locale-aware text handling.
func (l Language) Tag() language.Tag {
	tag, err := language.Parse(l.Code)
	if err != nil {
		return language.Und
	}
	return tag
}

func (l Language) String() string {
	if l.NativeName == "" || l.NativeName == l.Name {
		return fmt.Sprintf("%s (%s)", l.Name, l.Code)
	}
	return fmt.Sprintf("%s / %s (%s)", l.Name, l.NativeName, l.Code)
}

var registry = map[string]Language{
	"nl": {Code: "nl", Name: "Dutch", NativeName: "Nederlands"},
	"en": {Code: "en", Name: "English", NativeName: "English"},
	"ar": {Code: "ar", Name: "Arabic", NativeName: "العربية"},
	"so": {Code: "so", Name: "Somali", NativeName: "Soomaali"},
	"ti": {Code: "ti", Name: "Tigrinya", NativeName: "ትግርኛ"},
	"fa": {Code: "fa", Name: "Persian", NativeName: "فارسی"},
	"ur": {Code: "ur", Name: "Urdu", NativeName: "اردو"},
	"tr": {Code: "tr", Name: "Turkish", NativeName: "Türkçe"},
	"ku": {Code: "ku", Name: "Kurdish", NativeName: "کوردی"},
	"ps": {Code: "ps", Name: "Pashto", NativeName: "پښتو"},
	"fr": {Code: "fr", Name: "French", NativeName: "Français"},
	"es": {Code: "es", Name: "Spanish", NativeName: "Español"},
}

// order mirrors the language picker: session languages first, then the rest.
var order = []string{"nl", "en", "ar", "so", "ti", "fa", "ur", "tr", "ku", "ps", "fr", "es"}

// Lookup resolves a code such as "nl", "NL", "nl-BE" or "en_US" to its registry entry.
func Lookup(code string) (Language, error) {
	raw := strings.TrimSpace(code)
	if raw == "" {
		return Language{}, fmt.Errorf("%w: empty code", ErrUnsupportedLanguage)
	}
	if lang, ok := registry[strings.ToLower(raw)]; ok {
		return lang, nil
	}

	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return Language{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	base, _ := tag.Base()
	if lang, ok := registry[base.String()]; ok {
		return lang, nil
	}
	return Language{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
}

// MustLookup is Lookup for registry codes known at compile time.
func MustLookup(code string) Language {
	lang, err := Lookup(code)
	if err != nil {
		panic(err)
	}
	return lang
}

// Supported reports whether code resolves to a registry entry.
func Supported(code string) bool {
	_, err := Lookup(code)
	return err == nil
}

// All returns the registry in picker order.
func All() []Language {
	out := make([]Language, 0, len(order))
	for _, code := range order {
		out = append(out, registry[code])
	}
	return out
}

// Codes returns every registry code, sorted.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Pair is the direction of one translation.
type Pair struct {
	Source Language
	Target Language
}

func (p Pair) String() string {
	return p.Source.Code + "->" + p.Target.Code
}

// Reverse swaps source and target.
func (p Pair) Reverse() Pair {
	return Pair{Source: p.Target, Target: p.Source}
}
