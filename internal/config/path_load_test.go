package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolvePathPrecedence(t *testing.T) {
	explicit := "/tmp/custom.jsonc"
	resolved, err := ResolvePath(explicit)
	require.NoError(t, err)
	require.Equal(t, explicit, resolved)

	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(xdg, "talkthru", "config.jsonc"), resolved)

	t.Setenv("XDG_CONFIG_HOME", "")
	home := t.TempDir()
	t.Setenv("HOME", home)
	resolved, err = ResolvePath("")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".config", "talkthru", "config.jsonc"), resolved)
}

func TestLoadMissingConfigUsesDefaultsWithWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonc")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, path, loaded.Path)
	require.False(t, loaded.Exists)
	require.Equal(t, Default(), loaded.Config)
	require.NotEmpty(t, loaded.Warnings)
	require.Contains(t, loaded.Warnings[0].Message, "not found")
}

func TestLoadExistingJSONCParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	contents := `
{
  // Dutch coach, Arabic-speaking newcomer
  "languages": {"initiator": "nl", "respondent": "ar"},
  "turn": {"same_role_policy": "IGNORE", "max_capture": "4s"},
  "transcription": {"backend": "speechrpc", "endpoint": "10.0.0.2:50051"},
  "translation": {"max_retries": 2,},
  "output": {"speak_command": "espeak-ng --stdin -v \"$TALKTHRU_LANG\""},
}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Exists)
	require.Equal(t, "ar", loaded.Config.Languages.Respondent)
	require.Equal(t, "ignore", loaded.Config.Turn.SameRolePolicy)
	require.Equal(t, 4*time.Second, loaded.Config.Turn.MaxCapture)
	require.Equal(t, "speechrpc", loaded.Config.Transcription.Backend)
	require.Equal(t, "10.0.0.2:50051", loaded.Config.Transcription.Endpoint)
	require.Equal(t, 2, loaded.Config.Translation.MaxRetries)
	require.Equal(t, []string{"espeak-ng", "--stdin", "-v", "$TALKTHRU_LANG"}, loaded.Config.Output.SpeakArgv)
	require.Equal(t, Default().Summary, loaded.Config.Summary)
}

func TestLoadEnvOverridesFileAndDotEnvFillsGaps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"translation": {"backend": "openai", "model": "file-model"}}`), 0o600))
	require.NoError(t, os.WriteFile(EnvFilePath(path), []byte("TALKTHRU_TRANSLATION_API_KEY=from-dotenv\nTALKTHRU_TRANSLATION_MODEL=dotenv-model\n"), 0o600))

	// Register cleanup for the keys godotenv will set, then clear them.
	t.Setenv("TALKTHRU_TRANSLATION_API_KEY", "")
	require.NoError(t, os.Unsetenv("TALKTHRU_TRANSLATION_API_KEY"))
	t.Setenv("TALKTHRU_TRANSLATION_MODEL", "from-env")
	t.Setenv("TALKTHRU_TURN_MAX_CAPTURE", "1500ms")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-dotenv", loaded.Config.Translation.APIKey)
	require.Equal(t, "from-env", loaded.Config.Translation.Model)
	require.Equal(t, 1500*time.Millisecond, loaded.Config.Turn.MaxCapture)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"turn": {"max_captur": "2s"}}`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "max_captur")
}

func TestLoadParseErrorIncludesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jsonc")
	require.NoError(t, os.WriteFile(path, []byte("{ not-json }"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse config")
	require.Contains(t, err.Error(), path)
}

func TestParseEmptyContentIsDefault(t *testing.T) {
	cfg, warnings, err := Parse("  // nothing configured\n")
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, Default(), cfg)
}

func TestParseRejectsInvalidSpeakCommand(t *testing.T) {
	_, _, err := Parse(`{"output": {"speak_command": "say 'unterminated"}}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid output.speak_command")
}
