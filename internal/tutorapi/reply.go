package tutorapi

import (
	"strings"
)

// SpokenReply flattens a tutor reply into the text read aloud after a voice turn:
// encouragement first, then each correction, then the pronunciation guide and the
// next suggestion. Telugu explanations stay on screen only.
func (r *ChatResponse) SpokenReply() string {
	if r == nil {
		return ""
	}

	parts := make([]string, 0, 3+len(r.Corrections))
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if !strings.ContainsAny(s[len(s)-1:], ".!?") {
			s += "."
		}
		parts = append(parts, s)
	}

	add(r.Encouragement)
	for _, c := range r.Corrections {
		if c.CorrectedText == "" {
			continue
		}
		add("Say: " + c.CorrectedText)
		add(c.ExplanationEnglish)
	}
	add(r.PronunciationGuide)
	add(r.NextSuggestion)

	return strings.Join(parts, " ")
}

// TeluguExplanation joins the Telugu explanations of every correction, for the
// student to hear in a te-IN voice on request
func (r *ChatResponse) TeluguExplanation() string {
	if r == nil {
		return ""
	}
	parts := make([]string, 0, len(r.Corrections))
	for _, c := range r.Corrections {
		if s := strings.TrimSpace(c.ExplanationTelugu); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
