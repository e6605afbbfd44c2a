package testutil

import (
	"context"
	"sync"
	"syncup-api/modules/event/entity"
)

// RecordingWriter captures commit messages instead of enqueuing them.
type RecordingWriter struct {
	mu       sync.Mutex
	messages []entity.CommitMessage
	Err      error
}

func (w *RecordingWriter) Write(_ context.Context, msg entity.CommitMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.messages = append(w.messages, msg)
	return nil
}

func (w *RecordingWriter) Messages() []entity.CommitMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]entity.CommitMessage(nil), w.messages...)
}

// MemoryUploader keeps uploaded objects in a map.
type MemoryUploader struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
}

func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{Objects: make(map[string][]byte), Types: make(map[string]string)}
}

func (u *MemoryUploader) Upload(_ context.Context, key string, body []byte, contentType string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.Objects[key] = append([]byte(nil), body...)
	u.Types[key] = contentType
	return key, nil
}
