// Package config resolves, parses, validates, and defaults talkthru configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by talkthru.
type Config struct {
	Languages     LanguagesConfig     `mapstructure:"languages"`
	Turn          TurnConfig          `mapstructure:"turn"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Translation   TranslationConfig   `mapstructure:"translation"`
	Summary       SummaryConfig       `mapstructure:"summary"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Indicator     IndicatorConfig     `mapstructure:"indicator"`
	Feed          FeedConfig          `mapstructure:"feed"`
	Output        OutputConfig        `mapstructure:"output"`
}

// LanguagesConfig binds a language and a display label to each role.
type LanguagesConfig struct {
	Initiator       string `mapstructure:"initiator" validate:"required"`
	Respondent      string `mapstructure:"respondent" validate:"required"`
	InitiatorLabel  string `mapstructure:"initiator_label"`
	RespondentLabel string `mapstructure:"respondent_label"`
}

// TurnConfig controls floor arbitration.
type TurnConfig struct {
	SameRolePolicy   string        `mapstructure:"same_role_policy" validate:"oneof=toggle ignore"`
	MaxCapture       time.Duration `mapstructure:"max_capture" validate:"gte=0"`
	TranslateTimeout time.Duration `mapstructure:"translate_timeout" validate:"gte=0"`
}

// TranscriptionConfig selects and configures the speech recognizer.
type TranscriptionConfig struct {
	Backend              string        `mapstructure:"backend" validate:"oneof=mock speechrpc deepgram"`
	Endpoint             string        `mapstructure:"endpoint"`
	HealthEndpoint       string        `mapstructure:"health_endpoint"`
	Model                string        `mapstructure:"model"`
	APIKey               string        `mapstructure:"api_key"`
	DialTimeout          time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
	AutomaticPunctuation bool          `mapstructure:"automatic_punctuation"`
	DebugDump            bool          `mapstructure:"debug_dump"`
	MockDuration         time.Duration `mapstructure:"mock_duration" validate:"gte=0"`
}

// TranslationConfig selects the translation and summary backend.
type TranslationConfig struct {
	Backend    string        `mapstructure:"backend" validate:"oneof=mock openai"`
	BaseURL    string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0,lte=5"`
}

// SummaryConfig toggles the summary generator.
type SummaryConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string `mapstructure:"input"`
	Fallback string `mapstructure:"fallback"`
}

// IndicatorConfig controls desktop notifications and audio cue behavior.
type IndicatorConfig struct {
	Enable            bool   `mapstructure:"enable"`
	DesktopAppName    string `mapstructure:"desktop_app_name"`
	SoundEnable       bool   `mapstructure:"sound_enable"`
	SoundStartFile    string `mapstructure:"sound_start_file"`
	SoundStopFile     string `mapstructure:"sound_stop_file"`
	SoundCompleteFile string `mapstructure:"sound_complete_file"`
	SoundCancelFile   string `mapstructure:"sound_cancel_file"`
	TimeoutMS         int    `mapstructure:"timeout_ms" validate:"gte=0"`
}

// FeedConfig controls the websocket event feed for UI shells.
type FeedConfig struct {
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port"`
	// AllowedOrigins lists browser origins beyond loopback that may connect.
	// Entries are hosts ("shell.lan:8080") or full origins ("https://shell.lan").
	AllowedOrigins []string `mapstructure:"allowed_origins" validate:"dive,required"`
}

// OutputConfig controls exchange playback.
type OutputConfig struct {
	SpeakCommand string        `mapstructure:"speak_command"`
	SpeakArgv    []string      `mapstructure:"-"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
