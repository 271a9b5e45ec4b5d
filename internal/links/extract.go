package links

import (
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var trailingPunctRE = regexp.MustCompile(`[)\].,!?:;'"]+$`)

// HasMarker reports whether text mentions the recognized link host.
func HasMarker(text, marker string) bool {
	return marker != "" && strings.Contains(strings.ToLower(text), strings.ToLower(marker))
}

// ExtractURLs returns url and text_link entities in order of appearance, deduplicated.
func ExtractURLs(text string, entities []tgbotapi.MessageEntity) []string {
	var out []string
	seen := make(map[string]struct{}, 2)

	for _, e := range entities {
		var u string
		switch e.Type {
		case "text_link":
			u = e.URL
		case "url":
			u = SliceByUTF16(text, e.Offset, e.Length)
		default:
			continue
		}
		u = cleanToken(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// PickLink chooses the link to download from a message:
// the first entity URL mentioning marker, else the first whitespace token mentioning it,
// else the whole trimmed text. Links without a scheme get https://.
func PickLink(msg *tgbotapi.Message, marker string) string {
	if msg == nil {
		return ""
	}
	text, entities := msg.Text, msg.Entities
	if text == "" {
		text, entities = msg.Caption, msg.CaptionEntities
	}

	for _, u := range ExtractURLs(text, entities) {
		if HasMarker(u, marker) {
			return withScheme(u)
		}
	}
	for _, tok := range strings.Fields(text) {
		if HasMarker(tok, marker) {
			return withScheme(cleanToken(tok))
		}
	}
	return withScheme(strings.TrimSpace(text))
}

// withScheme defaults schemeless links like "megaup.net/x.zip" to https.
func withScheme(s string) string {
	if s == "" || strings.Contains(s, "://") {
		return s
	}
	return "https://" + strings.TrimLeft(s, "/")
}

func cleanToken(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "(<[\"'")
	s = trailingPunctRE.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
