// Package doctor runs readiness diagnostics for config, languages, audio,
// and the configured speech and translation backends.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/talkthru/internal/audio"
	"github.com/rbright/talkthru/internal/config"
	"github.com/rbright/talkthru/internal/deepgram"
	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/speechrpc"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders one line per check.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// selectDevice is replaced in tests.
var selectDevice = audio.SelectDevice

// Run executes all checks for a loaded config.
func Run(ctx context.Context, loaded config.Loaded) Report {
	cfg := loaded.Config
	checks := []Check{checkConfig(loaded), checkLanguages(cfg.Languages)}

	switch cfg.Transcription.Backend {
	case "speechrpc":
		checks = append(checks, checkSpeechRPC(ctx, cfg.Transcription), checkAudioSelection(ctx, cfg.Audio))
	case "deepgram":
		checks = append(checks, checkDeepgramKey(cfg.Transcription), checkAudioSelection(ctx, cfg.Audio))
	default:
		checks = append(checks, Check{Name: "transcription", Pass: true, Message: "mock backend (no microphone used)"})
	}

	if cfg.Translation.Backend == "openai" {
		checks = append(checks, checkCompletionAPI(ctx, cfg.Translation))
	} else {
		checks = append(checks, Check{Name: "translation", Pass: true, Message: "mock phrasebook backend"})
	}

	if cfg.Indicator.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications"))
	}
	if len(cfg.Output.SpeakArgv) > 0 {
		checks = append(checks, checkCommand(cfg.Output.SpeakArgv, "output.speak_command"))
	}
	return Report{Checks: checks}
}

func checkConfig(loaded config.Loaded) Check {
	if len(loaded.Warnings) == 0 {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", loaded.Path)}
	}
	messages := make([]string, 0, len(loaded.Warnings))
	for _, w := range loaded.Warnings {
		messages = append(messages, w.Message)
	}
	return Check{Name: "config", Pass: false, Message: fmt.Sprintf("%q: %s", loaded.Path, strings.Join(messages, "; "))}
}

func checkLanguages(cfg config.LanguagesConfig) Check {
	initiator, err := language.Lookup(cfg.Initiator)
	if err != nil {
		return Check{Name: "languages", Pass: false, Message: err.Error()}
	}
	respondent, err := language.Lookup(cfg.Respondent)
	if err != nil {
		return Check{Name: "languages", Pass: false, Message: err.Error()}
	}
	return Check{Name: "languages", Pass: true, Message: fmt.Sprintf("%s <-> %s", initiator.Name, respondent.Name)}
}

func checkSpeechRPC(ctx context.Context, cfg config.TranscriptionConfig) Check {
	endpoint := strings.TrimSpace(cfg.HealthEndpoint)
	if endpoint == "" {
		endpoint = strings.TrimSpace(cfg.Endpoint)
	}
	if endpoint == "" {
		return Check{Name: "speechrpc.health", Pass: false, Message: "transcription.endpoint is empty"}
	}
	if err := speechrpc.CheckHealth(ctx, endpoint, cfg.DialTimeout); err != nil {
		return Check{Name: "speechrpc.health", Pass: false, Message: err.Error()}
	}
	return Check{Name: "speechrpc.health", Pass: true, Message: fmt.Sprintf("serving at %s", endpoint)}
}

func checkDeepgramKey(cfg config.TranscriptionConfig) Check {
	if strings.TrimSpace(cfg.APIKey) != "" {
		return Check{Name: "deepgram.credential", Pass: true, Message: "transcription.api_key is set"}
	}
	if strings.TrimSpace(os.Getenv(deepgram.APIKeyEnv)) != "" {
		return Check{Name: "deepgram.credential", Pass: true, Message: deepgram.APIKeyEnv + " is set"}
	}
	return Check{Name: "deepgram.credential", Pass: false, Message: "set transcription.api_key or " + deepgram.APIKeyEnv}
}

// checkCompletionAPI lists models to confirm the endpoint and credential.
func checkCompletionAPI(ctx context.Context, cfg config.TranslationConfig) Check {
	const name = "translation.api"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Check{Name: name, Pass: false, Message: "translation.api_key is empty"}
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + "/models"
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("credential rejected (HTTP %d)", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s (model %s)", cfg.BaseURL, cfg.Model)}
}

func checkAudioSelection(ctx context.Context, cfg config.AudioConfig) Check {
	sel, err := selectDevice(ctx, audio.Preference{Input: cfg.Input, Fallback: cfg.Fallback})
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", sel.Device.ID)
	if sel.Warning != "" {
		message += " (" + sel.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	check := checkBinary(argv[0], name)
	check.Name = name
	return check
}

func checkBinary(bin string, purpose string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, purpose)}
}
