package audio

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Consecutive silent frames after speech that end an utterance
	FrameSize       int     // Samples per frame (320 = 20ms at 16kHz)
}

// DefaultVADConfig returns a default VAD configuration for 16kHz capture
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   40,  // 800ms pause ends the utterance
		FrameSize:       320, // 20ms at 16kHz
	}
}

// VADEvent is the edge reported after feeding audio
type VADEvent int

const (
	VADNone VADEvent = iota
	VADSpeechStarted
	VADSpeechEnded
)

// VADDetector performs energy-based Voice Activity Detection
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
	heardSpeech    bool
	framesSeen     int
	pending        []byte // PCM16 bytes not yet forming a full frame
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	if config.FrameSize <= 0 {
		config.FrameSize = DefaultVADConfig().FrameSize
	}
	return &VADDetector{config: config}
}

// ProcessFrame processes one frame of samples.
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	v.framesSeen++
	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
			v.heardSpeech = true
		}
	} else {
		v.silenceCounter++
		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// Feed splits little-endian PCM16 bytes into frames and returns the last edge seen.
// A trailing partial frame is kept for the next call.
func (v *VADDetector) Feed(pcm []byte) VADEvent {
	v.pending = append(v.pending, pcm...)
	frameBytes := v.config.FrameSize * 2

	event := VADNone
	for len(v.pending) >= frameBytes {
		_, started, ended := v.ProcessFrame(BytesToSamples(v.pending[:frameBytes]))
		v.pending = v.pending[frameBytes:]
		switch {
		case ended:
			event = VADSpeechEnded
		case started && event == VADNone:
			event = VADSpeechStarted
		}
	}
	return event
}

// Reset resets the VAD detector state
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
	v.heardSpeech = false
	v.framesSeen = 0
	v.pending = v.pending[:0]
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// HeardSpeech reports whether any speech frame was seen since the last reset
func (v *VADDetector) HeardSpeech() bool {
	return v.heardSpeech
}

// FramesSeen returns the number of frames processed since the last reset
func (v *VADDetector) FramesSeen() int {
	return v.framesSeen
}

// DetectSilence detects if audio samples represent silence
func DetectSilence(samples []int16, threshold float64) bool {
	return CalculateRMS(samples) < threshold
}
