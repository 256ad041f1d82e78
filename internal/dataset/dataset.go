// Package dataset decodes the activity and message exports the dashboard produces.
package dataset

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/remote/internal/extract"
	"github.com/thebtf/remote/pkg/models"
)

// Sender is the sender block of an exported message.
type Sender struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	SlackID string `json:"slack_id,omitempty"`
}

// Recipient is one recipient of an exported message ("to", "cc", "bcc" or "channel").
type Recipient struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// MessageRecord is one exported email or Slack message.
type MessageRecord struct {
	Sender        Sender      `json:"sender"`
	MessageID     string      `json:"message_id"`
	SourceType    string      `json:"source_type"`
	MessageType   string      `json:"message_type,omitempty"`
	Subtype       string      `json:"subtype,omitempty"`
	Subject       string      `json:"subject"`
	Content       string      `json:"content"`
	CourseContext string      `json:"course_context"`
	Timestamp     FlexString  `json:"timestamp"`
	DateFormatted string      `json:"date_formatted"`
	Recipients    []Recipient `json:"recipients"`
}

// ActivityRecord is one exported catalog activity. Keys follow the dashboard's export.
type ActivityRecord struct {
	ID          FlexString `json:"id"`
	Title       string     `json:"Title"`
	Course      string     `json:"Course"`
	Module      FlexString `json:"Module"`
	Assignment  FlexString `json:"Assignment"`
	Date        string     `json:"Date"`
	EventType   string     `json:"Event Type"`
	Description string     `json:"Description"`
	Status      string     `json:"Status"`
}

// FlexString accepts a JSON string, number or null.
type FlexString string

// UnmarshalJSON decodes strings as-is and numbers in their literal form.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(data)
	return nil
}

// LoadMessages reads a message export file. See DecodeMessages.
func LoadMessages(path string, source models.SourceType, ref time.Time) ([]models.Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open messages: %w", err)
	}
	defer func() { _ = f.Close() }()

	msgs, err := DecodeMessages(f, source, ref)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return msgs, nil
}

// LoadActivities reads an activity export file. See DecodeActivities.
func LoadActivities(path string, ref time.Time) ([]models.Activity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open activities: %w", err)
	}
	defer func() { _ = f.Close() }()

	acts, err := DecodeActivities(f, ref)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return acts, nil
}

// DecodeMessages decodes a JSON array of message records (or an object with a
// "messages" array). Records of another source type are skipped.
func DecodeMessages(r io.Reader, source models.SourceType, ref time.Time) ([]models.Message, error) {
	var records []MessageRecord
	if err := decodeList(r, "messages", &records); err != nil {
		return nil, err
	}

	msgs := make([]models.Message, 0, len(records))
	skipped := 0
	for i := range records {
		rec := &records[i]
		if rec.SourceType != "" && !strings.EqualFold(rec.SourceType, string(source)) {
			skipped++
			continue
		}
		msgs = append(msgs, rec.Message(source, ref))
	}
	if skipped > 0 {
		log.Debug().Int("skipped", skipped).Str("source", string(source)).Msg("Skipped messages from other sources")
	}
	return msgs, nil
}

// DecodeActivities decodes a JSON array of activity records (or an object with an
// "activities" array). Dates without a year resolve against ref's year.
func DecodeActivities(r io.Reader, ref time.Time) ([]models.Activity, error) {
	var records []ActivityRecord
	if err := decodeList(r, "activities", &records); err != nil {
		return nil, err
	}
	acts := make([]models.Activity, 0, len(records))
	for i := range records {
		acts = append(acts, records[i].Activity(ref))
	}
	return acts, nil
}

// Message converts the record into an engine message.
func (rec *MessageRecord) Message(source models.SourceType, ref time.Time) models.Message {
	channel := ""
	for _, r := range rec.Recipients {
		if strings.EqualFold(r.Type, "channel") {
			channel = r.Name
			break
		}
	}

	subject := rec.Subject
	if subject == "" && channel != "" {
		subject = "Channel: " + channel
	}
	sender := rec.Sender.Name
	if sender == "" && source == models.SourceSlack {
		sender = rec.Sender.SlackID
	}

	fields := map[string]string{
		models.FieldSubject:       subject,
		models.FieldContent:       rec.Content,
		models.FieldCourseContext: rec.CourseContext,
		models.FieldSenderName:    sender,
	}
	if channel != "" {
		fields[models.FieldChannelName] = channel
	}

	kind := rec.Subtype
	if kind == "" && !isSourceName(rec.MessageType) {
		kind = rec.MessageType
	}

	ts, ok := ParseTimestamp(string(rec.Timestamp))
	if !ok && rec.DateFormatted != "" {
		ts, _ = ParseDate(rec.DateFormatted, ref)
	}

	return models.Message{
		ID:        rec.MessageID,
		Source:    source,
		Kind:      kind,
		Fields:    fields,
		Sender:    sender,
		Timestamp: ts,
	}
}

// Activity converts the record into an engine activity.
func (rec *ActivityRecord) Activity(ref time.Time) models.Activity {
	act := models.Activity{
		ID:          string(rec.ID),
		Title:       strings.TrimSpace(rec.Title),
		Course:      strings.TrimSpace(rec.Course),
		Module:      string(rec.Module),
		Assignment:  string(rec.Assignment),
		Type:        models.ActivityType(strings.TrimSpace(rec.EventType)),
		Description: rec.Description,
		Status:      rec.Status,
	}
	if rec.Date != "" {
		if d, ok := ParseDate(rec.Date, ref); ok {
			act.Date = d
		} else {
			log.Debug().Str("title", act.Title).Str("date", rec.Date).Msg("Unparseable activity date")
		}
	}
	return act
}

// ParseDate parses a calendar date. Short forms ("Mar 7", "March 7th") resolve
// against ref's year; anything else is handed to dateparse.
func ParseDate(s string, ref time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if d, ok := extract.ResolveDate(s, ref); ok {
		return d, true
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return models.TruncateDay(t), true
}

// ParseTimestamp parses an ISO 8601 timestamp, a Slack epoch ("1710000000.000100")
// or any layout dateparse recognizes. The result is in UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil && strings.Count(s, ".") <= 1 && len(s) >= 9 {
		whole := int64(secs)
		nanos := int64((secs - float64(whole)) * 1e9)
		return time.Unix(whole, nanos).UTC(), true
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func isSourceName(s string) bool {
	return s == "" || strings.EqualFold(s, string(models.SourceEmail)) || strings.EqualFold(s, string(models.SourceSlack))
}

// decodeList accepts either a bare JSON array or an object wrapping it under key.
func decodeList(r io.Reader, key string, out any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if data[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return err
		}
		raw, ok := wrapper[key]
		if !ok {
			return fmt.Errorf("object has no %q array", key)
		}
		data = raw
	}
	return json.Unmarshal(data, out)
}
