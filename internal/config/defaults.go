package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Languages: LanguagesConfig{
			Initiator:       "nl",
			Respondent:      "en",
			InitiatorLabel:  "Coach / Vrijwilliger",
			RespondentLabel: "Statushouder",
		},
		Turn: TurnConfig{
			SameRolePolicy:   "toggle",
			MaxCapture:       3 * time.Second,
			TranslateTimeout: 20 * time.Second,
		},
		Transcription: TranscriptionConfig{
			Backend:              "mock",
			Endpoint:             "127.0.0.1:50051",
			DialTimeout:          5 * time.Second,
			AutomaticPunctuation: true,
			MockDuration:         1500 * time.Millisecond,
		},
		Translation: TranslationConfig{
			Backend:    "mock",
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			Timeout:    15 * time.Second,
			MaxRetries: 1,
		},
		Summary: SummaryConfig{
			Enabled: true,
			Timeout: 45 * time.Second,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			DesktopAppName: "talkthru",
			SoundEnable:    true,
			TimeoutMS:      1600,
		},
		Output: OutputConfig{
			Timeout: 30 * time.Second,
		},
	}
}

// setDefaults registers every key with v so env overrides resolve for keys
// the file leaves out.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("languages.initiator", cfg.Languages.Initiator)
	v.SetDefault("languages.respondent", cfg.Languages.Respondent)
	v.SetDefault("languages.initiator_label", cfg.Languages.InitiatorLabel)
	v.SetDefault("languages.respondent_label", cfg.Languages.RespondentLabel)

	v.SetDefault("turn.same_role_policy", cfg.Turn.SameRolePolicy)
	v.SetDefault("turn.max_capture", cfg.Turn.MaxCapture)
	v.SetDefault("turn.translate_timeout", cfg.Turn.TranslateTimeout)

	v.SetDefault("transcription.backend", cfg.Transcription.Backend)
	v.SetDefault("transcription.endpoint", cfg.Transcription.Endpoint)
	v.SetDefault("transcription.health_endpoint", cfg.Transcription.HealthEndpoint)
	v.SetDefault("transcription.model", cfg.Transcription.Model)
	v.SetDefault("transcription.api_key", cfg.Transcription.APIKey)
	v.SetDefault("transcription.dial_timeout", cfg.Transcription.DialTimeout)
	v.SetDefault("transcription.automatic_punctuation", cfg.Transcription.AutomaticPunctuation)
	v.SetDefault("transcription.debug_dump", cfg.Transcription.DebugDump)
	v.SetDefault("transcription.mock_duration", cfg.Transcription.MockDuration)

	v.SetDefault("translation.backend", cfg.Translation.Backend)
	v.SetDefault("translation.base_url", cfg.Translation.BaseURL)
	v.SetDefault("translation.api_key", cfg.Translation.APIKey)
	v.SetDefault("translation.model", cfg.Translation.Model)
	v.SetDefault("translation.timeout", cfg.Translation.Timeout)
	v.SetDefault("translation.max_retries", cfg.Translation.MaxRetries)

	v.SetDefault("summary.enabled", cfg.Summary.Enabled)
	v.SetDefault("summary.timeout", cfg.Summary.Timeout)

	v.SetDefault("audio.input", cfg.Audio.Input)
	v.SetDefault("audio.fallback", cfg.Audio.Fallback)

	v.SetDefault("indicator.enable", cfg.Indicator.Enable)
	v.SetDefault("indicator.desktop_app_name", cfg.Indicator.DesktopAppName)
	v.SetDefault("indicator.sound_enable", cfg.Indicator.SoundEnable)
	v.SetDefault("indicator.sound_start_file", cfg.Indicator.SoundStartFile)
	v.SetDefault("indicator.sound_stop_file", cfg.Indicator.SoundStopFile)
	v.SetDefault("indicator.sound_complete_file", cfg.Indicator.SoundCompleteFile)
	v.SetDefault("indicator.sound_cancel_file", cfg.Indicator.SoundCancelFile)
	v.SetDefault("indicator.timeout_ms", cfg.Indicator.TimeoutMS)

	v.SetDefault("feed.listen", cfg.Feed.Listen)
	v.SetDefault("feed.allowed_origins", cfg.Feed.AllowedOrigins)

	v.SetDefault("output.speak_command", cfg.Output.SpeakCommand)
	v.SetDefault("output.timeout", cfg.Output.Timeout)
}
