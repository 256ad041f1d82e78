package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/remote/pkg/models"
)

var testRef = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

const emailExport = `[
  {
    "message_id": "e1",
    "source_type": "email",
    "message_type": "email",
    "subject": "CS101 Problem Set 3",
    "content": "Reminder: PS 3 is due Mar 16.",
    "course_context": "CS101",
    "sender": {"name": "Prof. Ada", "email": "ada@example.edu"},
    "recipients": [{"type": "to", "name": "Student"}],
    "timestamp": "2025-03-09T14:30:00Z",
    "date_formatted": "Mar 09"
  },
  {
    "message_id": "s1",
    "source_type": "slack",
    "content": "wrong source"
  }
]`

const slackExport = `{"messages": [
  {
    "message_id": "1741600000.000200",
    "source_type": "slack",
    "subtype": "channel_join",
    "subject": "",
    "content": "<@U1> has joined the channel",
    "sender": {"name": "", "slack_id": "U1"},
    "recipients": [{"type": "channel", "name": "cs101-general"}],
    "timestamp": "1741600000.000200"
  }
]}`

func TestDecodeMessages_Email(t *testing.T) {
	msgs, err := DecodeMessages(strings.NewReader(emailExport), models.SourceEmail, testRef)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "slack record skipped")

	m := msgs[0]
	assert.Equal(t, "e1", m.ID)
	assert.Equal(t, models.SourceEmail, m.Source)
	assert.Empty(t, m.Kind, "message_type naming the source is not a kind")
	assert.Equal(t, "CS101 Problem Set 3", m.Field(models.FieldSubject))
	assert.Equal(t, "CS101", m.Field(models.FieldCourseContext))
	assert.Equal(t, "Prof. Ada", m.Sender)
	assert.Empty(t, m.Field(models.FieldChannelName))
	assert.Equal(t, time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC), m.Timestamp)
}

func TestDecodeMessages_SlackWrapped(t *testing.T) {
	msgs, err := DecodeMessages(strings.NewReader(slackExport), models.SourceSlack, testRef)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	m := msgs[0]
	assert.Equal(t, "channel_join", m.Kind)
	assert.Equal(t, "cs101-general", m.Field(models.FieldChannelName))
	assert.Equal(t, "Channel: cs101-general", m.Field(models.FieldSubject))
	assert.Equal(t, "U1", m.Sender, "slack id stands in for a missing name")
	assert.Equal(t, int64(1741600000), m.Timestamp.Unix())
	assert.Equal(t, time.UTC, m.Timestamp.Location())
}

func TestDecodeMessages_Errors(t *testing.T) {
	_, err := DecodeMessages(strings.NewReader(`{"items": []}`), models.SourceEmail, testRef)
	assert.Error(t, err)

	_, err = DecodeMessages(strings.NewReader(`[{"message_id": 1`), models.SourceEmail, testRef)
	assert.Error(t, err)

	msgs, err := DecodeMessages(strings.NewReader("  "), models.SourceEmail, testRef)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestDecodeMessages_DateFormattedFallback(t *testing.T) {
	in := `[{"message_id": "x", "source_type": "email", "content": "hi", "date_formatted": "Mar 05"}]`
	msgs, err := DecodeMessages(strings.NewReader(in), models.SourceEmail, testRef)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), msgs[0].Timestamp)
}

func TestDecodeActivities(t *testing.T) {
	in := `[
	  {"id": 7, "Title": " Problem Set 3 ", "Course": "CS101", "Module": 2, "Assignment": "3",
	   "Date": "Mar 16", "Event Type": "Assignment", "Description": "Recursion", "Status": "open"},
	  {"Title": "Office Hours", "Course": "CS101", "Date": "2025-03-12", "Event Type": "Live Event"},
	  {"Title": "Reading", "Course": "HIST210", "Date": "sometime", "Event Type": "Lecture"},
	  {"Title": "Final", "Course": "MATH200", "Date": "03/28/2025", "Event Type": "Deadline", "Module": null}
	]`
	acts, err := DecodeActivities(strings.NewReader(in), testRef)
	require.NoError(t, err)
	require.Len(t, acts, 4)

	ps := acts[0]
	assert.Equal(t, "7", ps.ID)
	assert.Equal(t, "Problem Set 3", ps.Title)
	assert.Equal(t, "2", ps.Module)
	assert.Equal(t, "3", ps.Assignment)
	assert.Equal(t, models.ActivityAssignment, ps.Type)
	assert.Equal(t, time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), ps.Date)
	assert.Equal(t, "7", ps.Key())

	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC), acts[1].Date)
	assert.Equal(t, "Office Hours_CS101_Mar 12", acts[1].Key())

	assert.False(t, acts[2].HasDate(), "unparseable date leaves the activity undated")

	assert.Equal(t, time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC), acts[3].Date)
	assert.Empty(t, acts[3].Module)
}

func TestFlexString_RejectsObjects(t *testing.T) {
	_, err := DecodeActivities(strings.NewReader(`[{"id": {"x": 1}}]`), testRef)
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"Mar 16", time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), true},
		{"March 16th", time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), true},
		{"Mar. 4", time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), true},
		{"Apr 2 2026", time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), true},
		{"2025-04-01", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"04/01/2025", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"2025-04-01T18:45:00Z", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"next sprint", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDate(tt.in, testRef)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	got, ok := ParseTimestamp("1741600000.500000")
	require.True(t, ok)
	assert.Equal(t, int64(1741600000), got.Unix())
	assert.InDelta(t, float64(500*time.Millisecond), float64(got.Nanosecond()), float64(time.Millisecond))

	got, ok = ParseTimestamp("2025-03-09T14:30:00Z")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 9, 14, 30, 0, 0, time.UTC), got)

	_, ok = ParseTimestamp("")
	assert.False(t, ok)
	_, ok = ParseTimestamp("not a time")
	assert.False(t, ok)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	msgPath := filepath.Join(dir, "messages.json")
	actPath := filepath.Join(dir, "activities.json")
	require.NoError(t, os.WriteFile(msgPath, []byte(emailExport), 0o600))
	require.NoError(t, os.WriteFile(actPath, []byte(`{"activities": [{"Title": "Quiz 1", "Course": "CS101", "Event Type": "Assignment"}]}`), 0o600))

	msgs, err := LoadMessages(msgPath, models.SourceEmail, testRef)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	acts, err := LoadActivities(actPath, testRef)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, "Quiz 1", acts[0].Title)

	_, err = LoadMessages(filepath.Join(dir, "missing.json"), models.SourceEmail, testRef)
	assert.Error(t, err)
}
