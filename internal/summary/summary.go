// Package summary folds a session ledger into a bilingual synopsis.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/ledger"
	"github.com/rbright/talkthru/internal/provider"
)

// ErrEmptyLedger is returned when there is nothing to summarize.
var ErrEmptyLedger = errors.New("empty ledger")

const actionsMarker = "[actions]"

// Synopsis is the structured result of one summary run.
type Synopsis struct {
	Texts       map[string]string `json:"texts"`
	ActionItems []string          `json:"action_items,omitempty"`
	Exchanges   int               `json:"exchanges"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// Text returns the summary for a language code.
func (s Synopsis) Text(code string) string {
	return s.Texts[code]
}

type Generator struct {
	backend provider.Summarizer
	labels  language.Labels
	logger  *slog.Logger
	now     func() time.Time
}

// NewGenerator builds a generator. A nil backend makes every Generate call
// fail with provider.ErrProviderUnavailable.
func NewGenerator(backend provider.Summarizer, labels language.Labels, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{backend: backend, labels: labels, logger: logger, now: time.Now}
}

func (g *Generator) Available() bool {
	return g != nil && g.backend != nil
}

// Generate summarizes snapshot in both languages of pair. The ledger is only read.
func (g *Generator) Generate(ctx context.Context, snapshot []ledger.Exchange, pair language.Pair) (Synopsis, error) {
	if len(snapshot) == 0 {
		return Synopsis{}, ErrEmptyLedger
	}
	if !g.Available() {
		return Synopsis{}, provider.ErrProviderUnavailable
	}

	prompt := BuildPrompt(snapshot, pair, g.labels)
	started := g.now()
	raw, err := g.backend.Summarize(ctx, prompt)
	if err != nil {
		return Synopsis{}, fmt.Errorf("generate summary: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return Synopsis{}, fmt.Errorf("%w: empty summary", provider.ErrTranslationFailed)
	}

	syn := ParseSynopsis(raw, pair)
	syn.Exchanges = len(snapshot)
	syn.GeneratedAt = g.now()
	g.logger.Info("summary generated",
		"exchanges", syn.Exchanges,
		"languages", len(syn.Texts),
		"action_items", len(syn.ActionItems),
		"latency_ms", syn.GeneratedAt.Sub(started).Milliseconds(),
	)
	return syn, nil
}

// BuildPrompt renders the ledger as `speaker: source (target)` lines under a
// summarization instruction with one section marker per language.
func BuildPrompt(snapshot []ledger.Exchange, pair language.Pair, labels language.Labels) string {
	var b strings.Builder

	langs := summaryLanguages(pair)
	names := make([]string, 0, len(langs))
	for _, lang := range langs {
		names = append(names, lang.Name)
	}

	b.WriteString("Summarize the following conversation between two participants.\n")
	fmt.Fprintf(&b, "Write a short summary in %s, then list the agreements and action items as bullet points.\n", strings.Join(names, " and in "))
	b.WriteString("Answer using exactly these section markers, each on its own line:\n")
	for _, lang := range langs {
		b.WriteString(sectionMarker(lang.Code) + "\n")
	}
	b.WriteString(actionsMarker + "\n\nConversation:\n")

	for _, ex := range snapshot {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", labels.For(ex.Speaker), oneLine(ex.SourceText), oneLine(ex.TargetText))
	}
	return b.String()
}

// ParseSynopsis reads the marker sections of a generated summary. A response
// without markers becomes the source-language text.
func ParseSynopsis(raw string, pair language.Pair) Synopsis {
	syn := Synopsis{Texts: map[string]string{}}

	current := ""
	sections := map[string][]string{}
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if code, ok := parseMarker(trimmed); ok {
			current = code
			continue
		}
		if current == "" || trimmed == "" {
			continue
		}
		sections[current] = append(sections[current], trimmed)
	}

	for _, lang := range summaryLanguages(pair) {
		if lines := sections[lang.Code]; len(lines) > 0 {
			syn.Texts[lang.Code] = strings.Join(lines, " ")
		}
	}
	for _, line := range sections[actionsMarker] {
		if item := trimBullet(line); item != "" {
			syn.ActionItems = append(syn.ActionItems, item)
		}
	}

	if len(syn.Texts) == 0 {
		body := strings.TrimSpace(raw)
		if idx := strings.Index(body, actionsMarker); idx >= 0 {
			body = strings.TrimSpace(body[:idx])
		}
		if body != "" {
			syn.Texts[pair.Source.Code] = body
		}
	}
	return syn
}

func summaryLanguages(pair language.Pair) []language.Language {
	if pair.Source.Code == pair.Target.Code || pair.Target.Code == "" {
		return []language.Language{pair.Source}
	}
	return []language.Language{pair.Source, pair.Target}
}

func sectionMarker(code string) string {
	return "[summary:" + code + "]"
}

func parseMarker(line string) (string, bool) {
	lower := strings.ToLower(line)
	if lower == actionsMarker {
		return actionsMarker, true
	}
	if strings.HasPrefix(lower, "[summary:") && strings.HasSuffix(lower, "]") {
		return strings.TrimSuffix(strings.TrimPrefix(lower, "[summary:"), "]"), true
	}
	return "", false
}

func trimBullet(line string) string {
	line = strings.TrimSpace(line)
	for _, prefix := range []string{"- ", "* ", "• "} {
		line = strings.TrimPrefix(line, prefix)
	}
	if i := strings.Index(line, ". "); i > 0 && i <= 3 && isDigits(line[:i]) {
		line = line[i+2:]
	}
	return strings.TrimSpace(line)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
