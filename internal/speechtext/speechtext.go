// Package speechtext prepares tutor text for speech output and maps language tags
// between the client, the tutor API and local synthesis voices.
package speechtext

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	emojiPattern = regexp.MustCompile(`[\x{1F600}-\x{1F64F}\x{1F300}-\x{1F5FF}\x{1F680}-\x{1F6FF}\x{1F1E0}-\x{1F1FF}\x{2702}-\x{27B0}\x{24C2}-\x{1F251}\x{1F900}-\x{1F9FF}]+`)

	// Anything outside Latin, Latin-1 and Latin Extended-A/B, whitespace and basic punctuation
	nonLatinPattern = regexp.MustCompile(`[^\x{0000}-\x{024F}\s.,!?;:()'"-]+`)

	spacePattern       = regexp.MustCompile(`\s+`)
	repeatedBang       = regexp.MustCompile(`!{2,}`)
	repeatedQuestion   = regexp.MustCompile(`\?{2,}`)
	repeatedDots       = regexp.MustCompile(`\.{3,}`)
	spaceBeforePunct   = regexp.MustCompile(`\s+([,.!?;:])`)
	trailingSentenceWS = regexp.MustCompile(`([.!?])\s*$`)
)

// Common Hindi and Telugu phrases spoken phonetically by English voices.
// Longer phrases are applied first so they win over their parts.
var transliterations = map[string]string{
	"चलो शुरू करते हैं": "Chalo shuru karte hain",
	"शुरू करते हैं":     "shuru karte hain",
	"चलो":               "Chalo",
	"शुरू":              "Shuru",
	"करते":              "Karte",
	"हैं":               "Hain",
	"नमस्ते":            "Namaste",
	"नमस्कार":           "Namaskar",
	"धन्यवाद":           "Dhanyawad",
	"अच्छा":             "Accha",
	"हाँ":               "Haan",
	"नहीं":              "Nahin",
	"నమస్కారం":          "Namaskar",
	"చలో":               "Chalo",
	"మంచిది":            "Manchidi",
	"ధన్యవాదాలు":        "Dhanyawadalu",
	"అవును":             "Avunu",
	"లేదు":              "Ledu",
}

var transliterationOrder = func() []string {
	keys := make([]string, 0, len(transliterations))
	for k := range transliterations {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// Prepare cleans text before it is rendered to speech: emoji are dropped, and for
// English voices common Hindi/Telugu phrases are transliterated while any other
// non-Latin script is replaced by a space. Whitespace and runs of punctuation are
// normalised.
func Prepare(text, languageCode string) string {
	cleaned := emojiPattern.ReplaceAllString(text, "")

	if IsEnglish(languageCode) {
		for _, original := range transliterationOrder {
			cleaned = strings.ReplaceAll(cleaned, original, transliterations[original])
		}
		cleaned = nonLatinPattern.ReplaceAllString(cleaned, " ")
	}

	cleaned = spacePattern.ReplaceAllString(strings.TrimSpace(cleaned), " ")
	cleaned = repeatedBang.ReplaceAllString(cleaned, "!")
	cleaned = repeatedQuestion.ReplaceAllString(cleaned, "?")
	cleaned = repeatedDots.ReplaceAllString(cleaned, "...")
	cleaned = spaceBeforePunct.ReplaceAllString(cleaned, "$1")
	cleaned = trailingSentenceWS.ReplaceAllString(cleaned, "$1")

	return strings.TrimSpace(cleaned)
}

// IsEnglish reports whether the tag selects an English voice
func IsEnglish(languageCode string) bool {
	return LocalePrefix(languageCode) == "en"
}

// LocalePrefix returns the lower-cased primary subtag: "en-US" -> "en", "te_IN" -> "te".
func LocalePrefix(languageCode string) string {
	tag := strings.ToLower(strings.TrimSpace(languageCode))
	if i := strings.IndexAny(tag, "-_"); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

var synthesisLanguages = map[string]string{
	"en-us": "en",
	"en-in": "en",
	"en-gb": "en",
	"te-in": "te",
	"hi-in": "hi",
	"ta-in": "ta",
	"kn-in": "kn",
	"ml-in": "ml",
}

// SynthesisLanguage maps a client tag to the short code the synthesis backends expect.
// Unknown tags fall back to English.
func SynthesisLanguage(languageCode string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(languageCode)), "_", "-")
	if lang, ok := synthesisLanguages[normalized]; ok {
		return lang
	}
	return "en"
}

// Language is an entry in the supported-language listing
type Language struct {
	Code     string `json:"code" yaml:"code"`
	Name     string `json:"name" yaml:"name"`
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Note     string `json:"note,omitempty" yaml:"note,omitempty"`
}

// SupportedLanguages lists capture and speech languages
type SupportedLanguages struct {
	SpeechToText []Language `json:"speech_to_text" yaml:"speech_to_text"`
	TextToSpeech []Language `json:"text_to_speech" yaml:"text_to_speech"`
}

// Supported returns the languages offered by the voice panel language selector
func Supported() SupportedLanguages {
	return SupportedLanguages{
		SpeechToText: []Language{
			{Code: "en-US", Name: "English (US)"},
			{Code: "en-IN", Name: "English (India)"},
			{Code: "te-IN", Name: "Telugu (India)", Note: "limited recognition accuracy"},
		},
		TextToSpeech: []Language{
			{Code: "en-US", Name: "English (US)", Provider: "tutor-api"},
			{Code: "en-IN", Name: "English (India)", Provider: "tutor-api"},
			{Code: "te-IN", Name: "Telugu (India)", Provider: "tutor-api"},
			{Code: "hi-IN", Name: "Hindi (India)", Provider: "tutor-api"},
			{Code: "ta-IN", Name: "Tamil (India)", Provider: "tutor-api"},
		},
	}
}

// PronunciationText builds the slow, repeated prompt used to model a single word
func PronunciationText(word string) string {
	word = strings.TrimSpace(word)
	return fmt.Sprintf("The word is: %s. Listen carefully: %s.", word, word)
}

// PronunciationGuideText prefixes text with a listening cue and appends a guide, if any
func PronunciationGuideText(text, guide string) string {
	if strings.TrimSpace(guide) == "" {
		return text
	}
	return fmt.Sprintf("Listen carefully. %s. Pronunciation tip: %s", text, guide)
}

// PracticeText builds a listen-and-repeat script. It returns "" when there is nothing to practice.
func PracticeText(sentences []string) string {
	var b strings.Builder
	n := 0
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if n == 0 {
			b.WriteString("Practice session. Listen and repeat after each sentence. ")
		}
		n++
		fmt.Fprintf(&b, "Sentence %d: %s. Repeat. ", n, s)
	}
	if n == 0 {
		return ""
	}
	b.WriteString("Good job! Practice complete.")
	return b.String()
}

var (
	grammarHints      = []string{"subject", "verb", "object", "tense", "present", "past", "future", "singular", "plural", "article", "preposition", "adjective", "adverb"}
	vocabularyHints   = []string{"meaning", "definition", "synonym", "antonym", "example", "sentence", "word", "phrase", "expression"}
	conversationHints = []string{"hello", "goodbye", "please", "thank you", "excuse me", "sorry", "how are you", "what is your name", "nice to meet you", "good morning"}
	learningHints     = []string{"practice", "learn", "study", "English", "Telugu", "correct", "mistake", "pronunciation", "speaking", "listening", "reading", "writing"}
)

// RecognitionHints returns words a recognizer should favour for a lesson context.
// The first of grammar, vocabulary or conversation found in context picks a topic
// list; the general learning phrases are always included.
func RecognitionHints(context string) []string {
	lower := strings.ToLower(context)
	var hints []string
	switch {
	case strings.Contains(lower, "grammar"):
		hints = append(hints, grammarHints...)
	case strings.Contains(lower, "vocabulary"):
		hints = append(hints, vocabularyHints...)
	case strings.Contains(lower, "conversation"):
		hints = append(hints, conversationHints...)
	}
	return append(hints, learningHints...)
}

// BilingualText joins an English sentence and its Telugu explanation into one
// script read by an English voice. Either part may be empty.
func BilingualText(english, telugu string) string {
	english = strings.TrimRight(strings.TrimSpace(english), ".")
	telugu = strings.TrimSpace(telugu)
	switch {
	case english == "":
		return telugu
	case telugu == "":
		return english + "."
	default:
		return fmt.Sprintf("%s. Telugu explanation: %s", english, telugu)
	}
}
