package summary

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/ledger"
	"github.com/rbright/talkthru/internal/provider"
	"github.com/rbright/talkthru/internal/provider/mock"
	"github.com/stretchr/testify/require"
)

func nlEN() language.Pair {
	return language.Pair{Source: language.MustLookup("nl"), Target: language.MustLookup("en")}
}

func sampleSnapshot() []ledger.Exchange {
	return []ledger.Exchange{
		{Speaker: language.RoleInitiator, SourceText: "Hallo, hoe gaat het met je?", TargetText: "Hello, how are you?"},
		{Speaker: language.RoleRespondent, SourceText: "I have experience\nwith elderly care.", TargetText: "Ik heb ervaring met ouderenzorg."},
	}
}

type countingSummarizer struct {
	calls atomic.Int32
	reply string
	err   error
}

func (c *countingSummarizer) Summarize(context.Context, string) (string, error) {
	c.calls.Add(1)
	return c.reply, c.err
}

func TestGenerateEmptyLedgerSkipsProvider(t *testing.T) {
	backend := &countingSummarizer{reply: "x"}
	g := NewGenerator(backend, language.DefaultLabels(), nil)

	_, err := g.Generate(context.Background(), nil, nlEN())
	require.ErrorIs(t, err, ErrEmptyLedger)
	require.Zero(t, backend.calls.Load())
}

func TestGenerateWithoutBackend(t *testing.T) {
	g := NewGenerator(nil, language.DefaultLabels(), nil)
	require.False(t, g.Available())

	_, err := g.Generate(context.Background(), sampleSnapshot(), nlEN())
	require.ErrorIs(t, err, provider.ErrProviderUnavailable)
}

func TestGenerateWithMockBackend(t *testing.T) {
	g := NewGenerator(mock.Summarizer{}, language.DefaultLabels(), nil)

	syn, err := g.Generate(context.Background(), sampleSnapshot(), nlEN())
	require.NoError(t, err)
	require.Equal(t, 2, syn.Exchanges)
	require.Contains(t, syn.Text("nl"), "werk mogelijkheden")
	require.Contains(t, syn.Text("en"), "job opportunities")
	require.Len(t, syn.ActionItems, 3)
	require.False(t, syn.GeneratedAt.IsZero())
}

func TestGeneratePropagatesBackendFailure(t *testing.T) {
	g := NewGenerator(&countingSummarizer{err: provider.ErrMissingCredential}, language.DefaultLabels(), nil)
	_, err := g.Generate(context.Background(), sampleSnapshot(), nlEN())
	require.ErrorIs(t, err, provider.ErrMissingCredential)

	g = NewGenerator(&countingSummarizer{reply: "  "}, language.DefaultLabels(), nil)
	_, err = g.Generate(context.Background(), sampleSnapshot(), nlEN())
	require.ErrorIs(t, err, provider.ErrTranslationFailed)
}

func TestBuildPromptListsExchanges(t *testing.T) {
	prompt := BuildPrompt(sampleSnapshot(), nlEN(), language.DefaultLabels())

	require.Contains(t, prompt, "in Dutch and in English")
	require.Contains(t, prompt, "[summary:nl]\n[summary:en]\n[actions]\n")
	require.Contains(t, prompt, "- Coach / Vrijwilliger: Hallo, hoe gaat het met je? (Hello, how are you?)\n")
	require.Contains(t, prompt, "- Statushouder: I have experience with elderly care. (Ik heb ervaring met ouderenzorg.)\n")
}

func TestBuildPromptSingleLanguage(t *testing.T) {
	nl := language.MustLookup("nl")
	prompt := BuildPrompt(sampleSnapshot(), language.Pair{Source: nl, Target: nl}, language.Labels{})
	require.Contains(t, prompt, "[summary:nl]\n[actions]")
	require.NotContains(t, prompt, "[summary:en]")
	require.Contains(t, prompt, "- initiator: ")
}

func TestParseSynopsisSections(t *testing.T) {
	raw := "[summary:nl]\nEerste zin.\nTweede zin.\n\n[Summary:EN]\nFirst.\n[actions]\n- one\n* two\n2. three\n• four\n"
	syn := ParseSynopsis(raw, nlEN())

	require.Equal(t, "Eerste zin. Tweede zin.", syn.Text("nl"))
	require.Equal(t, "First.", syn.Text("en"))
	require.Equal(t, []string{"one", "two", "three", "four"}, syn.ActionItems)
}

func TestParseSynopsisWithoutMarkersFallsBackToSource(t *testing.T) {
	syn := ParseSynopsis("Plain answer.\n[actions]\n- call back", nlEN())
	require.Equal(t, map[string]string{"nl": "Plain answer."}, syn.Texts)
	require.Equal(t, []string{"call back"}, syn.ActionItems)
}

func TestGenerateDoesNotTouchLedger(t *testing.T) {
	l := ledger.New()
	for _, ex := range sampleSnapshot() {
		_, err := l.Append(ex)
		require.NoError(t, err)
	}
	before := l.Snapshot()

	g := NewGenerator(provider.SummarizeFunc(func(context.Context, string) (string, error) {
		return "", errors.New("backend down")
	}), language.DefaultLabels(), nil)
	_, err := g.Generate(context.Background(), l.Snapshot(), nlEN())
	require.Error(t, err)
	require.Equal(t, before, l.Snapshot())
}
