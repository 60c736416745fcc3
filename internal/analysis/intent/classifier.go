package intent

import (
	"fmt"
	"regexp"
	"strings"
)

// Label is the coarse purpose of a user utterance.
type Label string

const (
	None           Label = "none"
	Greeting       Label = "greeting"
	Booking        Label = "booking"
	Pricing        Label = "pricing"
	Features       Label = "features"
	Contact        Label = "contact"
	Acknowledgment Label = "acknowledgment"
)

type rule struct {
	label   Label
	pattern *regexp.Regexp
}

// rules are evaluated in priority order; the first match wins.
var rules = []rule{
	{Greeting, wordPattern("hi", "hello", "hey", "good morning", "good afternoon", "good evening")},
	{Booking, wordPattern("demo*", "book*", "schedul*", "appointment*", "meeting*", "call*", "consult*")},
	{Pricing, wordPattern("pric*", "cost*", "how much", "plan*", "package*")},
	{Features, wordPattern("feature*", "service*", "capabilit*", "ai", "chatbot*")},
	// a bare question mark means the user does not know what to ask
	{Contact, regexp.MustCompile(`(?i)` + wordAlternation("contact*", "phone*", "email*", "reach", "support*", "help") + `|^\s*\?+\s*$`)},
	{Acknowledgment, wordPattern("ok", "okay", "thanks", "thank you", "k")},
}

// wordPattern matches any of the phrases ignoring case and tolerating runs of
// whitespace inside multi-word phrases. A phrase ending in "*" is a stem and
// also matches inflected forms ("book*" hits "booking"); every other phrase
// must appear as a whole word, so "k" never fires inside "book".
func wordPattern(phrases ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + wordAlternation(phrases...))
}

func wordAlternation(phrases ...string) string {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		stem := strings.HasSuffix(p, "*")
		words := strings.Fields(strings.TrimSuffix(p, "*"))
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		quoted[i] = strings.Join(words, `\s+`)
		if stem {
			quoted[i] += `\w*`
		}
	}
	return `\b(?:` + strings.Join(quoted, "|") + `)\b`
}

// Classify maps an utterance to exactly one Label. Unmatched input,
// including the empty string, is None.
func Classify(utterance string) Label {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return None
	}
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return r.label
		}
	}
	return None
}

// Labels lists every label except None in priority order.
func Labels() []Label {
	out := make([]Label, len(rules))
	for i, r := range rules {
		out[i] = r.label
	}
	return out
}

// Parse converts a stored label name back into a Label.
func Parse(raw string) (Label, error) {
	normalized := Label(strings.ToLower(strings.TrimSpace(raw)))
	if normalized == None {
		return None, nil
	}
	for _, r := range rules {
		if r.label == normalized {
			return r.label, nil
		}
	}
	return "", fmt.Errorf("unknown intent %q", raw)
}
