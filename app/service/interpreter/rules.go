package interpreter

import (
	"regexp"
	"strings"
)

type Intent string

const (
	IntentCorrect   Intent = "correcao"
	IntentDeny      Intent = "cancelamento"
	IntentConfirm   Intent = "confirmacao"
	IntentPending   Intent = "pendentes"
	IntentConfirmed Intent = "confirmados"
	IntentFallback  Intent = "desconhecido"
)

// Match is a classified message. Medication and Time hold the raw captures,
// empty when the pattern has none.
type Match struct {
	Intent     Intent
	Medication string
	Time       string
}

type rule struct {
	intent   Intent
	patterns []*regexp.Regexp
}

// Patterns run against the lowercased message. Capture group 1 is the
// medication, groups 2 and 3 the hour and minute.
var rules = []rule{
	{
		intent: IntentCorrect,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`corrig(?:e|i|ir)\b.*?tomei\s+(?:(?:o|a|os|as)\s+)?(.+?)\s+(?:[àa]s|a)\s+(\d{1,2})\s*[:h]\s*(\d{2})`),
		},
	},
	{
		intent: IntentDeny,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`n[ãa]o\s+tomei(?:\s+(?:o|a|os|as)\b)?(?:\s+(.+))?`),
			regexp.MustCompile(`\berrei\b()`),
		},
	},
	{
		intent: IntentConfirm,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`^(?:eu\s+)?(?:j[áa]\s+)?tomei(?:\s+(?:o|a|os|as)\b)?\s+(.+?)\s+(?:[àa]s|a)\s+(\d{1,2})\s*[:h]\s*(\d{2})$`),
			regexp.MustCompile(`^(?:eu\s+)?(?:j[áa]\s+)?tomei(?:\s+(?:o|a|os|as)\b)?(?:\s+(.+))?$`),
			regexp.MustCompile(`^(?:sim|claro|foi|confirmado|j[áa] tomei)()$`),
		},
	},
	{
		intent: IntentPending,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\bfalta|\bpendente|\bquais\b|\brem[ée]dios de hoje\b`),
		},
	},
	{
		intent: IntentConfirmed,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\bo que (?:j[áa] )?tomei\b|\bconfirmados\b|\btomados\b`),
		},
	},
}

var trailingNoise = regexp.MustCompile(`[\s.,;:!?]+$`)

// Classify returns the first rule matching text, or the fallback intent.
func Classify(text string) Match {
	text = normalize(text)

	for _, r := range rules {
		for _, p := range r.patterns {
			groups := p.FindStringSubmatch(text)
			if groups == nil {
				continue
			}

			m := Match{Intent: r.intent}
			if len(groups) > 1 {
				m.Medication = cleanCapture(groups[1])
			}
			if len(groups) > 3 {
				m.Time = groups[2] + ":" + groups[3]
			}

			return m
		}
	}

	return Match{Intent: IntentFallback}
}

func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.Join(strings.Fields(text), " ")

	return trailingNoise.ReplaceAllString(text, "")
}

func cleanCapture(s string) string {
	words := strings.Fields(trailingNoise.ReplaceAllString(s, ""))
	for len(words) > 0 && isFiller(words[len(words)-1]) {
		words = words[:len(words)-1]
	}

	return strings.Join(words, " ")
}

func isFiller(word string) bool {
	switch word {
	case "agora", "hoje", "já", "ja", "sim":
		return true
	default:
		return false
	}
}
