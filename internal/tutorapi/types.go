package tutorapi

// TextToSpeechRequest is the body of POST /api/text-to-speech
type TextToSpeechRequest struct {
	Text         string `json:"text"`
	LanguageCode string `json:"language_code"`
}

// TextToSpeechResponse carries base64 audio, or no audio when the backend could not render
type TextToSpeechResponse struct {
	AudioContent string `json:"audio_content,omitempty"`
	Message      string `json:"message"`
}

// SpeechToTextResponse is returned by POST /api/speech-to-text
type SpeechToTextResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// ChatRequest is a student message sent to the tutor
type ChatRequest struct {
	Message   string `json:"message"`
	StudentID string `json:"student_id"`
	IsVoice   bool   `json:"is_voice"`
}

// Example sentence with its Telugu translation
type Example struct {
	English string `json:"english"`
	Telugu  string `json:"telugu"`
}

// Correction describes one mistake in the student's message
type Correction struct {
	OriginalText       string `json:"original_text"`
	CorrectedText      string `json:"corrected_text"`
	MistakeType        string `json:"mistake_type"`
	ExplanationEnglish string `json:"explanation_english"`
	ExplanationTelugu  string `json:"explanation_telugu"`
	PositionStart      int    `json:"position_start"`
	PositionEnd        int    `json:"position_end"`
}

// VerbForms lists the five forms of a verb
type VerbForms struct {
	BaseForm          string `json:"base_form"`
	PastSimple        string `json:"past_simple"`
	PastParticiple    string `json:"past_participle"`
	PresentParticiple string `json:"present_participle"`
	ThirdPerson       string `json:"third_person"`
}

// ChatResponse is the tutor's reply
type ChatResponse struct {
	IsCorrect          bool         `json:"is_correct"`
	Corrections        []Correction `json:"corrections"`
	Examples           []Example    `json:"examples"`
	VerbForms          *VerbForms   `json:"verb_forms,omitempty"`
	Encouragement      string       `json:"encouragement"`
	NextSuggestion     string       `json:"next_suggestion,omitempty"`
	GrammarTip         string       `json:"grammar_tip,omitempty"`
	PronunciationGuide string       `json:"pronunciation_guide,omitempty"`
	StudentLevel       string       `json:"student_level"`
}

// HealthResponse is returned by GET /
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version"`
}
