package event

import (
	"fmt"
	"time"
)

// One normalized unit of group activity, as delivered by the action gateway.
// Events are immutable once created and are consumed exactly once by the engine.
type Event struct {
	// Opaque unique identifier, assigned by the transport. Used to de-duplicate
	// at-least-once delivery.
	ID      string    `json:"id"`
	GroupID string    `json:"group_id"`
	UserID  string    `json:"user_id"`
	Time    time.Time `json:"time"`
	Kind    Kind      `json:"kind"`

	// Payload union, populated by kind: message events carry Text (and possibly
	// File for attachments), media events carry Media and usually File metadata.
	Text  string    `json:"text,omitempty"`
	File  *FileMeta `json:"file,omitempty"`
	Media *MediaRef `json:"media,omitempty"`
}

type Kind string

const (
	KindMessage = Kind("message")
	KindMedia   = Kind("media")
	KindJoin    = Kind("join")
	KindLeave   = Kind("leave")
)

// Metadata for an attached file. The bytes themselves are not carried on the
// event; only media references resolve to bytes (via the MediaRef).
type FileMeta struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Reference to an image or sticker, with the raw bytes inlined for scoring.
type MediaRef struct {
	Blob     []byte `json:"blob"`
	MimeType string `json:"mime_type"`
}

func (k Kind) Valid() bool {
	switch k {
	case KindMessage, KindMedia, KindJoin, KindLeave:
		return true
	}
	return false
}

func (e *Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event missing id")
	}
	if e.GroupID == "" || e.UserID == "" {
		return fmt.Errorf("event %s missing group or user", e.ID)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("event %s has unknown kind: %s", e.ID, e.Kind)
	}
	if e.Kind == KindMedia && e.Media == nil {
		return fmt.Errorf("media event %s missing media payload", e.ID)
	}
	return nil
}

// Key returns the serialization key for this event. All events sharing a key
// are processed in arrival order; events with different keys may be processed
// in parallel.
func (e *Event) Key() string {
	return e.GroupID + "/" + e.UserID
}
