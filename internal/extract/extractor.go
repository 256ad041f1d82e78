// Package extract finds course codes, module and assignment numbers, and dates in free text.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/pkg/models"
)

// Extractor applies a source's compiled entity patterns.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	source   *config.Source
	patterns map[models.EntityKind][]*regexp.Regexp
}

// New creates an extractor for a compiled source configuration.
func New(src *config.Source) *Extractor {
	return &Extractor{source: src, patterns: src.Patterns}
}

// Source returns the configuration the extractor was built from.
func (e *Extractor) Source() *config.Source {
	return e.source
}

// Extract returns every entity found in text. Relative dates resolve against ref.
// Values that fail to normalize are dropped; empty text yields empty entities.
func (e *Extractor) Extract(text string, ref time.Time) models.ExtractedEntities {
	var out models.ExtractedEntities
	if strings.TrimSpace(text) == "" {
		return out
	}

	for _, raw := range e.capture(models.EntityCourse, text) {
		if value := NormalizeCourse(raw); value != "" {
			out.AddCourse(raw, value)
		}
	}
	for _, raw := range e.capture(models.EntityModule, text) {
		if value, ok := NormalizeNumber(raw); ok {
			out.AddModule(raw, value)
		}
	}
	for _, raw := range e.capture(models.EntityAssignment, text) {
		if value, ok := NormalizeNumber(raw); ok {
			out.AddAssignment(raw, value)
		}
	}
	for _, raw := range e.capture(models.EntityDate, text) {
		if day, ok := ResolveDate(raw, ref); ok {
			out.AddDate(day)
		}
	}
	return out
}

// Activity returns the entities of an activity: those found in its text
// merged with its structured course, module, assignment and date.
func (e *Extractor) Activity(act *models.Activity, ref time.Time) models.ExtractedEntities {
	out := e.Extract(act.Text(), ref)

	if course := strings.TrimSpace(act.Course); course != "" {
		codes := e.capture(models.EntityCourse, course)
		if len(codes) == 0 {
			out.AddCourse(course, NormalizeCourse(course))
		}
		for _, raw := range codes {
			out.AddCourse(raw, NormalizeCourse(raw))
		}
	}
	for raw, value := range e.structuredNumber(models.EntityModule, act.Module) {
		out.AddModule(raw, value)
	}
	for raw, value := range e.structuredNumber(models.EntityAssignment, act.Assignment) {
		out.AddAssignment(raw, value)
	}
	if act.HasDate() {
		out.AddDate(act.Date)
	}
	return out
}

// structuredNumber normalizes a catalog module/assignment field, which may be
// a bare number ("05") or a labelled one ("Module 2").
func (e *Extractor) structuredNumber(kind models.EntityKind, field string) map[string]string {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil
	}
	if value, ok := NormalizeNumber(field); ok {
		return map[string]string{field: value}
	}
	out := make(map[string]string)
	for _, raw := range e.capture(kind, field) {
		if value, ok := NormalizeNumber(raw); ok {
			out[raw] = value
		}
	}
	return out
}

// capture runs each alternative pattern of a kind in order and collects the
// first non-empty group of every match (the whole match for group-less patterns).
func (e *Extractor) capture(kind models.EntityKind, text string) []string {
	var values []string
	for _, re := range e.patterns[kind] {
		for _, groups := range re.FindAllStringSubmatch(text, -1) {
			if value := firstGroup(groups); value != "" {
				values = append(values, value)
			}
		}
	}
	return values
}

func firstGroup(groups []string) string {
	if len(groups) == 1 {
		return strings.TrimSpace(groups[0])
	}
	for _, g := range groups[1:] {
		if g = strings.TrimSpace(g); g != "" {
			return g
		}
	}
	return ""
}

// NormalizeCourse upper-cases a course code and removes whitespace ("cs 101" -> "CS101").
func NormalizeCourse(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, raw)
}

// NormalizeNumber parses the leading digit run of a module or assignment token.
// "03" -> "3", "2b" -> "2"; tokens without leading digits are rejected.
func NormalizeNumber(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == 0 {
		return "", false
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		return "", false
	}
	return strconv.Itoa(n), true
}
