package speechrpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendSegment(t *testing.T) {
	tests := []struct {
		name     string
		segments []string
		next     string
		want     []string
	}{
		{name: "first", segments: nil, next: " goedemorgen ", want: []string{"goedemorgen"}},
		{name: "duplicate", segments: []string{"goedemorgen"}, next: "goedemorgen", want: []string{"goedemorgen"}},
		{name: "extends", segments: []string{"hoe gaat"}, next: "hoe gaat het", want: []string{"hoe gaat het"}},
		{name: "shorter revision", segments: []string{"hoe gaat het"}, next: "hoe gaat", want: []string{"hoe gaat het"}},
		{name: "new phrase", segments: []string{"hallo"}, next: "tot ziens", want: []string{"hallo", "tot ziens"}},
		{name: "blank", segments: []string{"hallo"}, next: "   ", want: []string{"hallo"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, appendSegment(tc.segments, tc.next))
		})
	}
}

func TestIsInterimContinuation(t *testing.T) {
	require.True(t, isInterimContinuation("", "anything"))
	require.True(t, isInterimContinuation("i need", "i need help"))
	require.True(t, isInterimContinuation("i need help with", "i need a doctor"))
	require.False(t, isInterimContinuation("first phrase", "second phrase"))
}

func TestCollectSegmentsAppendsTrailingInterim(t *testing.T) {
	require.Equal(t, []string{"hello there", "how are you"}, collectSegments([]string{"hello there"}, "how are you"))
	require.Equal(t, []string{"tentative words"}, collectSegments(nil, "  tentative   words  "))
	require.Equal(t, []string{"hello world and beyond"}, collectSegments([]string{"hello world"}, "hello world and beyond"))
}
