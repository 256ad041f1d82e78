package models

import (
	"sort"
	"strings"
	"time"
)

// SourceType identifies the platform a message came from.
type SourceType string

const (
	SourceEmail SourceType = "email"
	SourceSlack SourceType = "slack"
)

// Message field names shared by the source configurations.
const (
	FieldSubject       = "subject"
	FieldContent       = "content"
	FieldCourseContext = "course_context"
	FieldChannelName   = "channel_name"
	FieldSenderName    = "sender_name"
)

// Message is one communication unit supplied by the collaborator.
// The field set depends on the source type; the engine never mutates a message.
type Message struct {
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields"`
	ID        string            `json:"id"`
	Source    SourceType        `json:"source"`
	Kind      string            `json:"kind,omitempty"`
	Sender    string            `json:"sender,omitempty"`
}

// Field returns the trimmed text of a field, or "" when absent.
func (m *Message) Field(name string) string {
	if m.Fields == nil {
		return ""
	}
	return strings.TrimSpace(m.Fields[name])
}

// FieldNames returns the names of non-empty fields in sorted order.
func (m *Message) FieldNames() []string {
	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		if m.Field(name) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Text concatenates every non-empty field in sorted field order.
func (m *Message) Text() string {
	names := m.FieldNames()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, m.Field(name))
	}
	return strings.Join(parts, " ")
}
