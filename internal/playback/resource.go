package playback

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lexiqai/voicetutor/internal/audio"
)

// Resource is one decoded, playable audio clip. It is released exactly once.
type Resource struct {
	ID     string
	Format audio.Format
	Source string // tier that produced the clip

	mu        sync.Mutex
	data      []byte
	released  bool
	onRelease func()
}

// NewResource wraps encoded audio. onRelease, if set, runs once on Release
// (temporary files, decoder handles).
func NewResource(data []byte, format audio.Format, source string, onRelease func()) *Resource {
	return &Resource{
		ID:        uuid.NewString(),
		Format:    format,
		Source:    source,
		data:      data,
		onRelease: onRelease,
	}
}

// Data returns the encoded bytes, or nil after release
func (r *Resource) Data() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data
}

// Release frees the clip. Safe to call any number of times.
func (r *Resource) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	r.data = nil
	hook := r.onRelease
	r.onRelease = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// Released reports whether Release has run
func (r *Resource) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}
