package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "", want: nil},
		{name: "simple", input: "espeak-ng --stdin", want: []string{"espeak-ng", "--stdin"}},
		{name: "quoted spaces", input: `say --voice "Xander premium"`, want: []string{"say", "--voice", "Xander premium"}},
		{name: "single quote keeps backslash", input: `tts 'a\b'`, want: []string{"tts", `a\b`}},
		{name: "escaped space", input: `my\ tts --fast`, want: []string{"my tts", "--fast"}},
		{name: "empty quoted arg", input: `tts "" x`, want: []string{"tts", "", "x"}},
		{name: "disabled", input: `# espeak-ng --stdin`, want: nil},
		{name: "unterminated quote", input: `tts "oops`, wantErr: "unterminated quote"},
		{name: "unterminated escape", input: `tts hello\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := splitCommand(tc.input)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
