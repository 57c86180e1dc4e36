package session

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/lexiqai/voicetutor/internal/audio"
	"github.com/lexiqai/voicetutor/internal/playback"
)

const (
	defaultChunkSize = 16 * 1024
	// gTTS MP3s are 32kbps mono
	mp3BytesPerSecond = 32000 / 8
)

// WebSocketSink streams clips to the client and holds the slot for the clip's
// play time so speaking state matches what the student hears
type WebSocketSink struct {
	send      func(ctx context.Context, msg ServerMessage) error
	chunkSize int
	pace      bool
}

// NewWebSocketSink sends through send. With pace off, Play returns once the clip is sent.
func NewWebSocketSink(send func(ctx context.Context, msg ServerMessage) error, pace bool) *WebSocketSink {
	return &WebSocketSink{send: send, chunkSize: defaultChunkSize, pace: pace}
}

// Play implements playback.Sink
func (s *WebSocketSink) Play(ctx context.Context, res *playback.Resource) error {
	data := res.Data()
	if len(data) == 0 {
		return errors.New("resource has no audio")
	}

	seq := 0
	for offset := 0; offset < len(data); offset += s.chunkSize {
		end := offset + s.chunkSize
		if end > len(data) {
			end = len(data)
		}
		seq++
		err := s.send(ctx, ServerMessage{
			Type:   TypeAudio,
			ClipID: res.ID,
			Seq:    seq,
			Format: string(res.Format),
			Mime:   res.Format.MIMEType(),
			Tier:   res.Source,
			Audio:  base64.StdEncoding.EncodeToString(data[offset:end]),
		})
		if err != nil {
			return s.interrupted(ctx, res, err)
		}
	}

	if s.pace {
		timer := time.NewTimer(clipDuration(res.Format, data))
		select {
		case <-ctx.Done():
			timer.Stop()
			return s.interrupted(ctx, res, ctx.Err())
		case <-timer.C:
		}
	}

	return s.send(context.Background(), ServerMessage{Type: TypeAudioEnd, ClipID: res.ID})
}

// interrupted tells the client to drop the clip
func (s *WebSocketSink) interrupted(ctx context.Context, res *playback.Resource, err error) error {
	if ctx.Err() != nil {
		_ = s.send(context.Background(), ServerMessage{Type: TypeAudioEnd, ClipID: res.ID, Stopped: true})
	}
	return err
}

func clipDuration(format audio.Format, data []byte) time.Duration {
	switch format {
	case audio.FormatWAV:
		info, err := audio.ParseWAV(data)
		if err != nil || info.SampleRate == 0 {
			return 0
		}
		bytesPerSecond := info.SampleRate * max(info.Channels, 1) * max(info.BitsPerSample/8, 1)
		return time.Duration(info.DataSize) * time.Second / time.Duration(bytesPerSecond)
	case audio.FormatMP3:
		return time.Duration(len(data)) * time.Second / mp3BytesPerSecond
	default:
		return 0
	}
}
