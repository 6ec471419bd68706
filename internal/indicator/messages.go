package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
	localeDutch   locale = "nl"
)

type messages struct {
	listening   string
	translating string
	canceled    string
	failed      string
	summary     string
	summaryFail string
}

func messagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "nl") {
		return localeDutch
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeDutch:
		return messages{
			listening:   "Luisteren…",
			translating: "Vertalen…",
			canceled:    "Beurt geannuleerd",
			failed:      "Beurt mislukt",
			summary:     "Samenvatting klaar",
			summaryFail: "Samenvatting mislukt",
		}
	default:
		return messages{
			listening:   "Listening…",
			translating: "Translating…",
			canceled:    "Turn canceled",
			failed:      "Turn failed",
			summary:     "Summary ready",
			summaryFail: "Summary failed",
		}
	}
}
