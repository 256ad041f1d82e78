// Package models contains domain models for the correlation engine.
package models

import (
	"strings"
	"time"
)

// ActivityType names the kinds of academic items the dashboard schedules.
type ActivityType string

const (
	// ActivityAssignment is a graded deliverable with a due date.
	ActivityAssignment ActivityType = "Assignment"
	// ActivityLecture is a scheduled lecture or recorded session.
	ActivityLecture ActivityType = "Lecture"
	// ActivityLiveEvent is a synchronous session (office hours, live Q&A).
	ActivityLiveEvent ActivityType = "Live Event"
	// ActivityDeadline is a standalone deadline without a deliverable.
	ActivityDeadline ActivityType = "Deadline"
)

// Activity is one academic item from the collaborator's catalog.
// Course, Module and Assignment may be empty; a zero Date means the activity is undated.
type Activity struct {
	Date        time.Time    `json:"date"`
	ID          string       `json:"id,omitempty"`
	Title       string       `json:"title"`
	Course      string       `json:"course,omitempty"`
	Module      string       `json:"module,omitempty"`
	Assignment  string       `json:"assignment,omitempty"`
	Type        ActivityType `json:"type"`
	Description string       `json:"description,omitempty"`
	Status      string       `json:"status,omitempty"`
}

// Key returns the stable identity of the activity.
// Activities without an explicit ID are keyed by title, course and date.
func (a *Activity) Key() string {
	if a.ID != "" {
		return a.ID
	}
	date := ""
	if !a.Date.IsZero() {
		date = a.Date.Format("Jan 02")
	}
	return a.Title + "_" + a.Course + "_" + date
}

// HasDate reports whether the activity carries a scheduled date.
func (a *Activity) HasDate() bool {
	return !a.Date.IsZero()
}

// Text returns the descriptive text used as the correlation target.
func (a *Activity) Text() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Title, a.Course, a.Description, string(a.Type)} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
