package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/rbright/talkthru/internal/language"
)

var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
})

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	if err := structValidator().Struct(cfg); err != nil {
		return nil, describeValidation(err)
	}

	warnings := make([]Warning, 0)

	if _, err := language.NewBinding(cfg.Languages.Initiator, cfg.Languages.Respondent); err != nil {
		return nil, fmt.Errorf("languages: %w", err)
	}
	if strings.EqualFold(cfg.Languages.Initiator, cfg.Languages.Respondent) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("both roles use %q; translations will echo the source text", cfg.Languages.Initiator)})
	}

	switch cfg.Transcription.Backend {
	case "speechrpc":
		if strings.TrimSpace(cfg.Transcription.Endpoint) == "" {
			return nil, fmt.Errorf("transcription.endpoint must not be empty when transcription.backend=speechrpc")
		}
	case "deepgram":
		if strings.TrimSpace(cfg.Transcription.APIKey) == "" {
			warnings = append(warnings, Warning{Message: "transcription.api_key is empty; deepgram sessions will fail with a missing credential"})
		}
	}

	if cfg.Translation.Backend == "openai" {
		if strings.TrimSpace(cfg.Translation.BaseURL) == "" {
			return nil, fmt.Errorf("translation.base_url must not be empty when translation.backend=openai")
		}
		if strings.TrimSpace(cfg.Translation.Model) == "" {
			return nil, fmt.Errorf("translation.model must not be empty when translation.backend=openai")
		}
		if strings.TrimSpace(cfg.Translation.APIKey) == "" {
			warnings = append(warnings, Warning{Message: "translation.api_key is empty; set TALKTHRU_TRANSLATION_API_KEY or turns will fail with a missing credential"})
		}
	}

	if cfg.Output.SpeakCommand != "" && !strings.HasPrefix(strings.TrimSpace(cfg.Output.SpeakCommand), "#") && len(cfg.Output.SpeakArgv) == 0 {
		return nil, fmt.Errorf("output.speak_command is configured but empty")
	}

	if cfg.Indicator.SoundEnable {
		cues := []struct{ key, path string }{
			{"indicator.sound_start_file", cfg.Indicator.SoundStartFile},
			{"indicator.sound_stop_file", cfg.Indicator.SoundStopFile},
			{"indicator.sound_complete_file", cfg.Indicator.SoundCompleteFile},
			{"indicator.sound_cancel_file", cfg.Indicator.SoundCancelFile},
		}
		for _, cue := range cues {
			if cue.path == "" {
				continue
			}
			if _, err := os.Stat(cue.path); err != nil {
				warnings = append(warnings, Warning{Message: fmt.Sprintf("%s %q is not readable; using the built-in cue", cue.key, cue.path)})
			}
		}
	}

	return warnings, nil
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s (got %v)", field, fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
