package mail

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// ParseRFC822 parses a raw RFC 5322 message into a RawMessage. When the
// message carries no Message-Id a fresh UUID is assigned so every message
// has a stable identifier through the pipeline.
func ParseRFC822(raw []byte, received time.Time) (RawMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return RawMessage{}, fmt.Errorf("failed to parse message: %w", err)
	}

	header := mr.Header

	id, err := header.MessageID()
	if err != nil || id == "" {
		id = uuid.NewString()
	}

	var sender string
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		sender = from[0].Address
	}

	subject, _ := header.Subject()

	if date, err := header.Date(); err == nil && !date.IsZero() {
		received = date
	}

	var (
		body        string
		attachments []Attachment
	)
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return RawMessage{}, fmt.Errorf("failed to read message part: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			data, err := io.ReadAll(p.Body)
			if err != nil {
				return RawMessage{}, fmt.Errorf("failed to read body part: %w", err)
			}
			// Prefer text/plain; keep the first inline part otherwise.
			if body == "" || strings.HasPrefix(contentType, "text/plain") {
				body = string(data)
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			data, err := io.ReadAll(p.Body)
			if err != nil {
				return RawMessage{}, fmt.Errorf("failed to read attachment %q: %w", filename, err)
			}
			attachments = append(attachments, Attachment{
				Filename:    filename,
				ContentType: contentType,
				Data:        data,
			})
		}
	}

	return RawMessage{
		ID:          id,
		Sender:      sender,
		Subject:     subject,
		Body:        body,
		Attachments: attachments,
		ReceivedAt:  received,
	}, nil
}
