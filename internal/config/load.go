package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides, e.g. TALKTHRU_TRANSLATION_API_KEY.
const EnvPrefix = "TALKTHRU"

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// A .env file next to the config is applied first; it never replaces
// variables already present in the environment.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	warnings := make([]Warning, 0)
	if err := godotenv.Load(EnvFilePath(resolvedPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("ignoring %s: %v", EnvFilePath(resolvedPath), err)})
	}

	exists := true
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
		}
		exists = false
		warnings = append(warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
		})
	}

	cfg, parseWarnings, err := Parse(string(content))
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: append(warnings, parseWarnings...),
		Exists:   exists,
	}, nil
}

// Parse layers JSONC content and TALKTHRU_* environment variables over
// Default, then validates the result. Unknown keys are rejected.
func Parse(content string) (Config, []Warning, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())

	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}
	if strings.TrimSpace(normalized) != "" {
		if err := checkDocument(normalized); err != nil {
			return Config{}, nil, err
		}
		if err := v.ReadConfig(strings.NewReader(normalized)); err != nil {
			return Config{}, nil, err
		}
	}

	var cfg Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		trimStrings,
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.UnmarshalExact(&cfg, hooks); err != nil {
		return Config{}, nil, err
	}

	argv, err := splitCommand(cfg.Output.SpeakCommand)
	if err != nil {
		return Config{}, nil, fmt.Errorf("invalid output.speak_command: %w", err)
	}
	cfg.Output.SpeakArgv = argv
	cfg.Turn.SameRolePolicy = strings.ToLower(cfg.Turn.SameRolePolicy)
	cfg.Transcription.Backend = strings.ToLower(cfg.Transcription.Backend)
	cfg.Translation.Backend = strings.ToLower(cfg.Translation.Backend)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func trimStrings(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.String {
		return data, nil
	}
	return strings.TrimSpace(reflect.ValueOf(data).String()), nil
}
