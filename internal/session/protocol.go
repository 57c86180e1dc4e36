package session

import (
	"github.com/lexiqai/voicetutor/internal/tutorapi"
	"github.com/lexiqai/voicetutor/internal/voicepanel"
)

// Client to server message types
const (
	TypeStart        = "start"
	TypeMicStart     = "mic_start"
	TypeMicStop      = "mic_stop"
	TypeAudio        = "audio"
	TypeSpeak        = "speak"
	TypeStopSpeaking = "stop_speaking"
	TypeReset        = "reset"
	TypePronounce    = "pronounce"
	TypePractice     = "practice"
	TypeLanguage     = "language"
	TypeExplain      = "explain"
	TypeBilingual    = "bilingual"
)

// Server to client message types
const (
	TypeState      = "state"
	TypeTranscript = "transcript"
	TypeTutorReply = "tutor_reply"
	TypeAudioEnd   = "audio_end"
	TypeError      = "error"
)

// Error codes sent to the client
const (
	CodeBadMessage       = "bad_message"
	CodeMicDisabled      = "mic_disabled"
	CodeUnknownLanguage  = "unknown_language"
	CodeTutorUnavailable = "tutor_unavailable"
	CodeSpeech           = "speech_unavailable"
)

// ClientMessage is one inbound frame. Audio is base64 PCM16 mono at the capture rate.
type ClientMessage struct {
	Type      string   `json:"type"`
	StudentID string   `json:"student_id,omitempty"`
	Language  string   `json:"language,omitempty"`
	Audio     string   `json:"audio,omitempty"`
	Text      string   `json:"text,omitempty"`
	Word      string   `json:"word,omitempty"`
	Guide     string   `json:"guide,omitempty"`
	Telugu    string   `json:"telugu,omitempty"`
	// Context names the lesson topic (grammar, vocabulary, conversation) for recognition hints
	Context   string   `json:"context,omitempty"`
	Sentences []string `json:"sentences,omitempty"`
}

// ServerMessage is one outbound frame
type ServerMessage struct {
	Type       string                 `json:"type"`
	SessionID  string                 `json:"session_id,omitempty"`
	State      *voicepanel.State      `json:"state,omitempty"`
	Transcript string                 `json:"transcript,omitempty"`
	Reply      *tutorapi.ChatResponse `json:"reply,omitempty"`

	// Audio clips are sent in sequenced chunks followed by audio_end
	ClipID  string `json:"clip_id,omitempty"`
	Seq     int    `json:"seq,omitempty"`
	Format  string `json:"format,omitempty"`
	Mime    string `json:"mime,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Audio   string `json:"audio,omitempty"`
	Stopped bool   `json:"stopped,omitempty"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
