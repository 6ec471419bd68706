package mock

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/provider"
)

// Entry is one phrasebook translation.
type Entry struct {
	Source string
	Target string
	From   string
	To     string
}

// DefaultPhrasebook covers the canned transcriber phrases in both directions.
var DefaultPhrasebook = []Entry{
	{From: "en", To: "nl", Source: "Hello, how are you?", Target: "Hallo, hoe gaat het?"},
	{From: "nl", To: "en", Source: "Hallo, hoe gaat het?", Target: "Hello, how are you?"},
	{From: "nl", To: "en", Source: "Hallo, hoe gaat het met je?", Target: "Hello, how are you?"},
	{From: "nl", To: "en", Source: "Ik ben geïnteresseerd in werk", Target: "I am interested in work"},
	{From: "nl", To: "en", Source: "Wanneer is de volgende afspraak?", Target: "When is the next appointment?"},
	{From: "nl", To: "en", Source: "Dank je wel voor je hulp", Target: "Thank you for your help"},
	{From: "nl", To: "en", Source: "We gaan vandaag praten over werk mogelijkheden.", Target: "Today we're going to talk about job opportunities."},
	{From: "nl", To: "en", Source: "Heb je al nagedacht over welke sector je interesseert?", Target: "Have you thought about which sector interests you?"},
	{From: "en", To: "nl", Source: "Hello, I am fine, thank you.", Target: "Hallo, het gaat goed, dank je."},
	{From: "en", To: "nl", Source: "Yes, I am very interested in healthcare work.", Target: "Ja, ik ben erg geïnteresseerd in zorgwerk."},
	{From: "en", To: "nl", Source: "I have experience with elderly care.", Target: "Ik heb ervaring met ouderenzorg."},
}

// Translator looks phrases up in a phrasebook. Unknown phrases are echoed with
// the target language tag so demos stay readable.
type Translator struct {
	entries map[string]string
	calls   atomic.Int64
}

func NewTranslator(entries []Entry) *Translator {
	if entries == nil {
		entries = DefaultPhrasebook
	}
	t := &Translator{entries: make(map[string]string, len(entries))}
	for _, e := range entries {
		t.entries[phraseKey(e.From, e.To, e.Source)] = e.Target
	}
	return t
}

func (t *Translator) Translate(ctx context.Context, text string, pair language.Pair) (string, error) {
	t.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	for _, code := range []string{pair.Source.Code, pair.Target.Code} {
		if _, err := language.Lookup(code); err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty input", provider.ErrTranslationFailed)
	}
	if pair.Source.Code == pair.Target.Code {
		return text, nil
	}
	if out, ok := t.entries[phraseKey(pair.Source.Code, pair.Target.Code, text)]; ok {
		return out, nil
	}
	return fmt.Sprintf("[%s] %s", pair.Target.Code, strings.TrimSpace(text)), nil
}

// Calls reports how many Translate calls were made.
func (t *Translator) Calls() int64 {
	return t.calls.Load()
}

func phraseKey(from, to, text string) string {
	return from + "|" + to + "|" + strings.ToLower(strings.Join(strings.Fields(text), " "))
}
