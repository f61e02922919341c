// Package mail defines the inbound message model and the derived
// sensitivity classification consumed by strategy selection.
package mail

import (
	"time"
)

// Attachment is one attachment blob carried by a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RawMessage is an inbound email as delivered by the retrieval
// collaborator. It is immutable: the pipeline never mutates a message and
// never persists one past its terminal outcome.
type RawMessage struct {
	ID          string
	Sender      string
	Subject     string
	Body        string
	Attachments []Attachment
	ReceivedAt  time.Time
}

// Sensitivity is the derived classification of a message. Computed once
// per message, before strategy selection, and never mutated afterward.
type Sensitivity struct {
	// Regulated reports whether the message appears to contain regulated
	// personal or health information.
	Regulated bool

	// Markers lists the keyword or pattern names that matched.
	Markers []string
}
