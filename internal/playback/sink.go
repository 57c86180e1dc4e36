package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/lexiqai/voicetutor/internal/audio"
)

// CommandSink pipes each clip into an external player (ffplay, aplay, afplay)
type CommandSink struct {
	argv []string
}

// NewCommandSink splits a player command line such as "ffplay -nodisp -autoexit -"
func NewCommandSink(command string) (*CommandSink, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, errors.New("empty player command")
	}
	return &CommandSink{argv: argv}, nil
}

// Available reports whether the player binary is on PATH
func (s *CommandSink) Available() bool {
	_, err := exec.LookPath(s.argv[0])
	return err == nil
}

// Play runs the player with the clip on stdin; cancelling ctx kills the process
func (s *CommandSink) Play(ctx context.Context, res *Resource) error {
	data := res.Data()
	if len(data) == 0 {
		return errors.New("resource has no audio")
	}

	cmd := exec.CommandContext(ctx, s.argv[0], s.argv[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", s.argv[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// FileSink writes every clip into a directory, or to one fixed path
type FileSink struct {
	dir   string
	path  string
	count atomic.Int64
}

// NewFileSink writes clips to dir as <n>-<resource id>.<ext>
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// NewFileSinkPath overwrites path with each clip
func NewFileSinkPath(path string) *FileSink {
	return &FileSink{path: path}
}

// Play writes the clip and returns immediately
func (s *FileSink) Play(ctx context.Context, res *Resource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data := res.Data()
	if len(data) == 0 {
		return errors.New("resource has no audio")
	}

	path := s.path
	if path == "" {
		n := s.count.Add(1)
		path = filepath.Join(s.dir, fmt.Sprintf("%03d-%s.%s", n, res.ID, extension(res.Format)))
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write clip: %w", err)
	}
	return nil
}

// Written returns how many clips were written by a directory sink
func (s *FileSink) Written() int64 {
	return s.count.Load()
}

func extension(format audio.Format) string {
	switch format {
	case audio.FormatMP3:
		return "mp3"
	case audio.FormatOgg:
		return "ogg"
	case audio.FormatPCM:
		return "pcm"
	default:
		return "wav"
	}
}
