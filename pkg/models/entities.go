package models

import (
	"sort"
	"strings"
	"time"
)

// EntityKind names a category of extracted entity.
type EntityKind string

const (
	EntityCourse     EntityKind = "course_code"
	EntityModule     EntityKind = "module"
	EntityAssignment EntityKind = "assignment"
	EntityDate       EntityKind = "date"
)

// EntityKinds lists every supported kind in extraction order.
var EntityKinds = []EntityKind{EntityCourse, EntityModule, EntityAssignment, EntityDate}

// EntityMatch is one extracted value. Raw is the captured text as written,
// Value its normalized form (upper-case course code, decimal number).
type EntityMatch struct {
	Raw   string `json:"raw"`
	Value string `json:"value"`
}

// ExtractedEntities holds the entities found in one text blob.
// It is derived on demand and never persisted.
type ExtractedEntities struct {
	Courses     []EntityMatch `json:"courses,omitempty"`
	Modules     []EntityMatch `json:"modules,omitempty"`
	Assignments []EntityMatch `json:"assignments,omitempty"`
	Dates       []time.Time   `json:"dates,omitempty"`
}

// IsEmpty reports whether no entity of any kind was found.
func (e *ExtractedEntities) IsEmpty() bool {
	return len(e.Courses) == 0 && len(e.Modules) == 0 && len(e.Assignments) == 0 && len(e.Dates) == 0
}

// AddCourse records a course code, collapsing duplicates.
func (e *ExtractedEntities) AddCourse(raw, value string) {
	e.Courses = addMatch(e.Courses, raw, value)
}

// AddModule records a module number, collapsing duplicates.
func (e *ExtractedEntities) AddModule(raw, value string) {
	e.Modules = addMatch(e.Modules, raw, value)
}

// AddAssignment records an assignment number, collapsing duplicates.
func (e *ExtractedEntities) AddAssignment(raw, value string) {
	e.Assignments = addMatch(e.Assignments, raw, value)
}

// AddDate records a calendar date truncated to its UTC day, collapsing duplicates.
func (e *ExtractedEntities) AddDate(t time.Time) {
	day := TruncateDay(t)
	for _, d := range e.Dates {
		if d.Equal(day) {
			return
		}
	}
	e.Dates = append(e.Dates, day)
}

// Merge adds every entity of other into e.
func (e *ExtractedEntities) Merge(other ExtractedEntities) {
	for _, m := range other.Courses {
		e.AddCourse(m.Raw, m.Value)
	}
	for _, m := range other.Modules {
		e.AddModule(m.Raw, m.Value)
	}
	for _, m := range other.Assignments {
		e.AddAssignment(m.Raw, m.Value)
	}
	for _, d := range other.Dates {
		e.AddDate(d)
	}
}

// Clone returns a deep copy so cached entities can be merged safely.
func (e ExtractedEntities) Clone() ExtractedEntities {
	return ExtractedEntities{
		Courses:     append([]EntityMatch(nil), e.Courses...),
		Modules:     append([]EntityMatch(nil), e.Modules...),
		Assignments: append([]EntityMatch(nil), e.Assignments...),
		Dates:       append([]time.Time(nil), e.Dates...),
	}
}

// EntityValues is the normalized, order-independent view of ExtractedEntities.
type EntityValues struct {
	Courses     []string
	Modules     []string
	Assignments []string
	Dates       []string
}

// Values returns the sorted unique normalized values of each kind.
func (e *ExtractedEntities) Values() EntityValues {
	dates := make([]string, 0, len(e.Dates))
	for _, d := range e.Dates {
		dates = append(dates, d.Format(time.DateOnly))
	}
	return EntityValues{
		Courses:     uniqueValues(e.Courses),
		Modules:     uniqueValues(e.Modules),
		Assignments: uniqueValues(e.Assignments),
		Dates:       sortedUnique(dates),
	}
}

// Canonical renders the normalized values as text that extracts back to the same values.
func (e *ExtractedEntities) Canonical() string {
	v := e.Values()
	parts := make([]string, 0, len(v.Courses)+len(v.Modules)+len(v.Assignments)+len(v.Dates))
	parts = append(parts, v.Courses...)
	for _, m := range v.Modules {
		parts = append(parts, "module "+m)
	}
	for _, a := range v.Assignments {
		parts = append(parts, "assignment "+a)
	}
	parts = append(parts, v.Dates...)
	return strings.Join(parts, " ; ")
}

// TruncateDay returns midnight UTC of t's calendar day.
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func addMatch(list []EntityMatch, raw, value string) []EntityMatch {
	for _, m := range list {
		if m.Raw == raw && m.Value == value {
			return list
		}
	}
	return append(list, EntityMatch{Raw: raw, Value: value})
}

func uniqueValues(list []EntityMatch) []string {
	values := make([]string, 0, len(list))
	for _, m := range list {
		values = append(values, m.Value)
	}
	return sortedUnique(values)
}

func sortedUnique(values []string) []string {
	sort.Strings(values)
	out := values[:0]
	for i, v := range values {
		if i == 0 || v != values[i-1] {
			out = append(out, v)
		}
	}
	return out
}
