package mock

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	summaryMarker = regexp.MustCompile(`\[summary:([a-z]{2,3})\]`)
	exchangeLine  = regexp.MustCompile(`(?m)^- `)
)

var cannedSummaries = map[string]string{
	"nl": "Tijdens dit gesprek zijn werk mogelijkheden besproken. Er is afgesproken om verdere informatie te verzamelen over certificering en trainingsmogelijkheden.",
	"en": "During this conversation, job opportunities were discussed. It was agreed to gather more information about certification and training opportunities.",
}

var cannedActions = []string{
	"Informatie verzamelen over zorg certificaten",
	"Contact opnemen met ROC voor cursussen",
	"Volgende afspraak: volgende week",
}

// Summarizer answers summary prompts with canned sections for every language
// marker the prompt asks for.
type Summarizer struct{}

func (Summarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	count := len(exchangeLine.FindAllStringIndex(prompt, -1))
	var b strings.Builder
	for _, match := range summaryMarker.FindAllStringSubmatch(prompt, -1) {
		code := match[1]
		text, ok := cannedSummaries[code]
		if !ok {
			text = fmt.Sprintf("Summary of %d exchanges (%s).", count, code)
		}
		fmt.Fprintf(&b, "[summary:%s]\n%s\n\n", code, text)
	}
	b.WriteString("[actions]\n")
	for _, item := range cannedActions {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return b.String(), nil
}
