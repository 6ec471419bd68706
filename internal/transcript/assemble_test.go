package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssembleNormalizesWhitespace(t *testing.T) {
	t.Parallel()

	got := Assemble([]string{" hello", "world.", "\nfrom", "talkthru"}, Options{Language: "en"})
	require.Equal(t, "hello world. from talkthru", got)
}

func TestAssembleEmptyInput(t *testing.T) {
	t.Parallel()

	require.Empty(t, Assemble(nil, Options{CapitalizeSentences: true}))
	require.Empty(t, Assemble([]string{"  ", "\n\t"}, Options{CapitalizeSentences: true}))
}

func TestAssembleSentenceCase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		language string
		segments []string
		want     string
	}{
		{
			name:     "english sentences and pronoun",
			language: "en",
			segments: []string{"when i speak i'm clearer.", "i think so? yes"},
			want:     "When I speak I'm clearer. I think so? Yes",
		},
		{
			name:     "english abbreviations",
			language: "en",
			segments: []string{"see dr. smith today. e.g. tomorrow works"},
			want:     "See dr. smith today. e.g. tomorrow works",
		},
		{
			name:     "initialism keeps sentence open",
			language: "en",
			segments: []string{"we moved to the u.s. last year"},
			want:     "We moved to the u.s. last year",
		},
		{
			name:     "dutch ij digraph",
			language: "nl",
			segments: []string{"ijs is koud. ik wil het niet"},
			want:     "IJs is koud. Ik wil het niet",
		},
		{
			name:     "dutch keeps i lowercase",
			language: "nl",
			segments: []string{"dat is bijv. goed. i is een letter"},
			want:     "Dat is bijv. goed. I is een letter",
		},
		{
			name:     "quoted sentence start",
			language: "en",
			segments: []string{`he left. "see you" she said`},
			want:     `He left. "See you" she said`,
		},
		{
			name:     "digits do not capitalize",
			language: "en",
			segments: []string{"3 apples. ok"},
			want:     "3 apples. Ok",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Assemble(tc.segments, Options{Language: tc.language, CapitalizeSentences: true})
			require.Equal(t, tc.want, got)
		})
	}
}

func TestAssembleIdempotent(t *testing.T) {
	t.Parallel()

	opts := Options{Language: "en", CapitalizeSentences: true}
	first := Assemble([]string{"hello world. this is talkthru"}, opts)
	require.Equal(t, first, Assemble([]string{first}, opts))
}

func TestIsInitialism(t *testing.T) {
	t.Parallel()

	require.True(t, isInitialism("u.s"))
	require.True(t, isInitialism("a.s.a.p"))
	require.False(t, isInitialism("etc"))
	require.False(t, isInitialism("e.gg"))
}
