// Package mock provides offline providers for demos and tests.
package mock

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/provider"
)

// Phrase is one canned recognition result.
type Phrase struct {
	Text       string
	Confidence float64
}

// DefaultPhrases are the canned utterances per language.
var DefaultPhrases = map[string][]Phrase{
	"nl": {
		{Text: "Hallo, hoe gaat het?", Confidence: 0.95},
		{Text: "Ik ben geïnteresseerd in werk", Confidence: 0.88},
		{Text: "Wanneer is de volgende afspraak?", Confidence: 0.92},
		{Text: "Dank je wel voor je hulp", Confidence: 0.96},
	},
	"en": {
		{Text: "Hello, I am fine, thank you.", Confidence: 0.94},
		{Text: "Yes, I am very interested in healthcare work.", Confidence: 0.9},
		{Text: "I have experience with elderly care.", Confidence: 0.91},
	},
}

// Transcriber returns a sampled canned phrase after a fixed capture duration,
// or immediately when the capture is ended early.
type Transcriber struct {
	Duration time.Duration
	Phrases  map[string][]Phrase
	// Pick selects an index in [0, n). Defaults to a uniform random pick.
	Pick func(n int) int
}

func NewTranscriber(duration time.Duration) *Transcriber {
	return &Transcriber{Duration: duration, Phrases: DefaultPhrases}
}

func (t *Transcriber) Begin(_ context.Context, lang language.Language) (provider.Capture, error) {
	if _, err := language.Lookup(lang.Code); err != nil {
		return nil, err
	}

	phrases := t.phrasesFor(lang.Code)
	if len(phrases) == 0 {
		return nil, provider.ErrCaptureFailed
	}
	pick := t.Pick
	if pick == nil {
		pick = rand.IntN
	}
	phrase := phrases[pick(len(phrases))]

	c := &capture{result: make(chan provider.CaptureResult, 1)}
	if t.Duration > 0 {
		c.timer = time.AfterFunc(t.Duration, func() { c.deliver(phrase) })
	}
	c.phrase = phrase
	return c, nil
}

func (t *Transcriber) phrasesFor(code string) []Phrase {
	set := t.Phrases
	if set == nil {
		set = DefaultPhrases
	}
	if phrases, ok := set[code]; ok {
		return phrases
	}
	return set["en"]
}

type capture struct {
	once   sync.Once
	timer  *time.Timer
	phrase Phrase
	result chan provider.CaptureResult
}

func (c *capture) deliver(p Phrase) {
	c.once.Do(func() {
		c.result <- provider.CaptureResult{Text: p.Text, Confidence: p.Confidence}
	})
}

func (c *capture) End(context.Context) error {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.deliver(c.phrase)
	return nil
}

func (c *capture) Cancel() error {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.once.Do(func() { close(c.result) })
	return nil
}

func (c *capture) Result() <-chan provider.CaptureResult {
	return c.result
}
