package models

import (
	"strings"
	"time"
)

// MessageKind tags the payload variant of a message.
type MessageKind string

const (
	KindText MessageKind = "text"
	KindFile MessageKind = "file"
)

// FileAttachment describes an uploaded blob referenced by a message.
type FileAttachment struct {
	Name      string `db:"file_name" json:"name"`
	URL       string `db:"file_url" json:"url"`
	Mime      string `db:"file_mime" json:"mime"`
	SizeBytes int64  `db:"file_size" json:"size_bytes"`
}

// Payload is the content of a message being sent: either Text or File.
type Payload struct {
	Kind MessageKind     `json:"kind"`
	Text string          `json:"text,omitempty"`
	File *FileAttachment `json:"file,omitempty"`
}

// TextPayload builds a text payload.
func TextPayload(body string) Payload {
	return Payload{Kind: KindText, Text: body}
}

// FilePayload builds a file payload.
func FilePayload(file FileAttachment) Payload {
	return Payload{Kind: KindFile, File: &file}
}

// Validate returns a description of the first problem with the payload, or "".
func (p Payload) Validate() string {
	switch p.Kind {
	case KindText:
		if strings.TrimSpace(p.Text) == "" {
			return "text body must not be empty"
		}
		if p.File != nil {
			return "text message must not carry a file"
		}
	case KindFile:
		if p.File == nil || strings.TrimSpace(p.File.URL) == "" {
			return "file message requires a url"
		}
		if p.File.SizeBytes < 0 {
			return "file size must not be negative"
		}
	default:
		return "unknown message kind"
	}
	return ""
}

// Message is an immutable entry in a chat's log.
type Message struct {
	ID         int64           `db:"id" json:"id"`
	ChatID     string          `db:"chat_id" json:"chat_id"`
	Seq        int64           `db:"seq" json:"seq"`
	SenderID   string          `db:"sender_id" json:"sender_id"`
	SenderName string          `db:"sender_name" json:"sender_name"`
	Kind       MessageKind     `db:"kind" json:"kind"`
	Text       string          `db:"body" json:"text"`
	File       *FileAttachment `db:"-" json:"file,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Event types published for a chat topic.
const (
	EventMessageCreated = "message_created"
	EventChatDeleted    = "chat_deleted"
	EventMemberRemoved  = "member_removed"
)

// ChatEvent is published to subscribers of a chat.
type ChatEvent struct {
	Type    string   `json:"type"`
	ChatID  string   `json:"chat_id"`
	UserID  string   `json:"user_id,omitempty"`
	Message *Message `json:"message,omitempty"`
}

// NextMessageTime returns the creation time for a message appended at now to a
// chat whose latest message and clear cursor are given. The result is strictly
// after both so that creation order matches append order and a message sent
// after a clear stays visible.
func NextMessageTime(now, lastMessageAt, clearedAt time.Time) time.Time {
	ts := now.UTC().Truncate(time.Microsecond)
	for _, floor := range []time.Time{lastMessageAt, clearedAt} {
		if !ts.After(floor) {
			ts = floor.UTC().Add(time.Microsecond)
		}
	}
	return ts
}
