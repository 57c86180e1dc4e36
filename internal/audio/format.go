package audio

import "bytes"

// Format names an encoded audio container
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatOgg     Format = "ogg"
	FormatPCM     Format = "pcm"
)

// MinPayloadBytes is the smallest payload treated as real audio
const MinPayloadBytes = 100

// MIMEType returns the content type clients should use for the format
func (f Format) MIMEType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatOgg:
		return "audio/ogg"
	case FormatPCM:
		return "audio/L16"
	default:
		return "application/octet-stream"
	}
}

// DetectFormat sniffs the container from the leading bytes
func DetectFormat(data []byte) Format {
	switch {
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return FormatWAV
	case len(data) >= 3 && bytes.Equal(data[0:3], []byte("ID3")):
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// MPEG audio frame sync
		return FormatMP3
	case len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS")):
		return FormatOgg
	default:
		return FormatUnknown
	}
}

// ValidatePayload reports whether data looks like playable encoded audio
func ValidatePayload(data []byte) bool {
	return len(data) >= MinPayloadBytes && DetectFormat(data) != FormatUnknown
}
