// ABOUTME: Session keyed cache of user entered call notes
// ABOUTME: Lets a note typed before the call log exists win over the inbound note
package cache

import (
	"errors"
	"time"
)

// DefaultNoteTTL bounds how long a cached note is kept.
const DefaultNoteTTL = 6 * time.Hour

const notePrefix = "note:"

// NoteCache stores one note per telephony session.
type NoteCache struct {
	kv  *KV
	ttl time.Duration
}

// NewNoteCache creates a note cache; a non-positive ttl uses DefaultNoteTTL.
func NewNoteCache(kv *KV, ttl time.Duration) *NoteCache {
	if ttl <= 0 {
		ttl = DefaultNoteTTL
	}
	return &NoteCache{kv: kv, ttl: ttl}
}

func (c *NoteCache) Put(sessionID, note string) error {
	return c.kv.Set([]byte(notePrefix+sessionID), []byte(note), c.ttl)
}

// Get returns the cached note for sessionID and whether one was found.
func (c *NoteCache) Get(sessionID string) (string, bool, error) {
	val, err := c.kv.Get([]byte(notePrefix + sessionID))
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(val), true, nil
}

func (c *NoteCache) Delete(sessionID string) error {
	return c.kv.Delete([]byte(notePrefix + sessionID))
}
