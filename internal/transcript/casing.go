package transcript

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	xlanguage "golang.org/x/text/language"
)

type caser struct {
	lang    string
	title   cases.Caser
	english bool
}

func newCaser(code string) caser {
	code = strings.ToLower(strings.TrimSpace(code))
	tag, err := xlanguage.Parse(code)
	if err != nil {
		tag = xlanguage.Und
	}
	return caser{
		lang:    code,
		title:   cases.Title(tag, cases.NoLower),
		english: code == "en",
	}
}

// apply capitalizes the first word of every sentence. In English the
// standalone pronoun i is capitalized as well.
func (c caser) apply(text string) string {
	words := strings.Split(text, " ")
	start := true
	for i, word := range words {
		if start {
			word = c.capitalizeWord(word)
		} else if c.english {
			word = capitalizePronounI(word)
		}
		words[i] = word
		start = c.endsSentence(word)
	}
	return strings.Join(words, " ")
}

// capitalizeWord title-cases the leading letter run of word, skipping
// opening quotes and brackets. Title casing keeps digraphs like Dutch ij
// together.
func (c caser) capitalizeWord(word string) string {
	lead := strings.IndexFunc(word, func(r rune) bool { return !isSentencePrefix(r) })
	if lead < 0 {
		return word
	}
	first, _ := utf8.DecodeRuneInString(word[lead:])
	if !unicode.IsLower(first) || c.keepLower(word[lead:]) {
		if c.english {
			return capitalizePronounI(word)
		}
		return word
	}

	end := lead
	for end < len(word) {
		r, size := utf8.DecodeRuneInString(word[end:])
		if !unicode.IsLetter(r) {
			break
		}
		end += size
	}
	return word[:lead] + c.title.String(word[lead:end]) + word[end:]
}

func (c caser) endsSentence(word string) bool {
	trimmed := strings.TrimRightFunc(word, isSentencePrefix)
	if trimmed == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	switch last {
	case '!', '?':
		return true
	case '.':
		return !c.nonTerminal(trimmed)
	default:
		return false
	}
}

var pronounIForms = map[string]struct{}{
	"i": {}, "i'm": {}, "i'd": {}, "i'll": {}, "i've": {},
	"i’m": {}, "i’d": {}, "i’ll": {}, "i’ve": {},
}

func capitalizePronounI(word string) string {
	core := strings.TrimFunc(word, func(r rune) bool {
		return unicode.IsPunct(r) && r != '\'' && r != '’'
	})
	if _, ok := pronounIForms[core]; !ok {
		return word
	}
	at := strings.Index(word, core)
	return word[:at] + "I" + word[at+1:]
}

func isSentencePrefix(r rune) bool {
	switch r {
	case '(', ')', '[', ']', '{', '}', '\'', '"', '‘', '’', '“', '”', '«', '»':
		return true
	default:
		return false
	}
}
