package extract

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/pkg/models"
)

type ExtractorSuite struct {
	suite.Suite
	ex  *Extractor
	ref time.Time
}

func (s *ExtractorSuite) SetupTest() {
	src, err := config.EmailSourceConfig().Compile()
	s.Require().NoError(err)
	s.ex = New(src)
	s.ref = time.Date(2025, 3, 14, 15, 30, 0, 0, time.UTC)
}

func TestExtractorSuite(t *testing.T) {
	suite.Run(t, new(ExtractorSuite))
}

func (s *ExtractorSuite) TestExtract_AllKinds() {
	got := s.ex.Extract("Reminder: CS 101 Module 03, PS 3 is due Mar 16th", s.ref)
	v := got.Values()

	s.Equal([]string{"CS101"}, v.Courses)
	s.Equal([]string{"3"}, v.Modules)
	s.Equal([]string{"3"}, v.Assignments)
	s.Equal([]string{"2025-03-16"}, v.Dates)

	s.Equal("CS 101", got.Courses[0].Raw)
	s.Equal("03", got.Modules[0].Raw)
}

func (s *ExtractorSuite) TestExtract_LowercaseCourse() {
	for _, text := range []string{"question about cs 101", "question about cs101 tonight", "Cs101"} {
		got := s.ex.Extract(text, s.ref)
		s.Equal([]string{"CS101"}, got.Values().Courses, text)
	}
}

func (s *ExtractorSuite) TestExtract_AssignmentSynonyms() {
	for _, text := range []string{"HW 4", "homework #4", "Problem Set 4", "assignment no. 4", "lab 4"} {
		got := s.ex.Extract(text, s.ref)
		s.Equal([]string{"4"}, got.Values().Assignments, text)
	}
}

func (s *ExtractorSuite) TestExtract_ModuleAbbreviation() {
	got := s.ex.Extract("see mod. 7 and Modules 8", s.ref)
	s.Equal([]string{"7", "8"}, got.Values().Modules)
}

func (s *ExtractorSuite) TestExtract_RelativeDates() {
	got := s.ex.Extract("due tomorrow, posted yesterday, reviewed today", s.ref)
	s.Equal([]string{"2025-03-13", "2025-03-14", "2025-03-15"}, got.Values().Dates)
}

func (s *ExtractorSuite) TestExtract_ISOAndExplicitYear() {
	got := s.ex.Extract("Exam 2025-04-02 or January 5, 2026", s.ref)
	s.Equal([]string{"2025-04-02", "2026-01-05"}, got.Values().Dates)
}

func (s *ExtractorSuite) TestExtract_DropsUnresolvableDates() {
	got := s.ex.Extract("Feb 30 and 2025-13-01, mark 12", s.ref)
	s.Empty(got.Dates)
}

func (s *ExtractorSuite) TestExtract_EmptyText() {
	got := s.ex.Extract("   ", s.ref)
	s.True(got.IsEmpty())
}

func (s *ExtractorSuite) TestExtract_DuplicatesCollapse() {
	got := s.ex.Extract("CS101 and CS101 again, Mar 16 / 2025-03-16", s.ref)
	s.Len(got.Courses, 1)
	s.Len(got.Dates, 1)
}

func (s *ExtractorSuite) TestExtract_Idempotent() {
	texts := []string{
		"Reminder: CS 101 Module 03, PS 3 is due Mar 16th",
		"BIO 2200A lab 12 on 2025-05-01, see you tomorrow",
		"nothing to see here",
		"MATH221 homework 2b, modules 4 and 5",
	}
	for _, text := range texts {
		first := s.ex.Extract(text, s.ref)
		canonical := first.Canonical()
		second := s.ex.Extract(canonical, s.ref)
		s.Equal(first.Values(), second.Values(), "text %q canonical %q", text, canonical)
	}
}

func (s *ExtractorSuite) TestActivity_MergesStructuredFields() {
	act := &models.Activity{
		Title:      "Problem Set Review",
		Course:     "Intro to Biology",
		Module:     "Module 2",
		Assignment: "05",
		Date:       time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC),
		Type:       models.ActivityAssignment,
	}
	got := s.ex.Activity(act, s.ref)
	v := got.Values()

	s.Equal([]string{"INTROTOBIOLOGY"}, v.Courses)
	s.Equal([]string{"2"}, v.Modules)
	s.Equal([]string{"5"}, v.Assignments)
	s.Equal([]string{"2025-03-20"}, v.Dates)
}

func (s *ExtractorSuite) TestActivity_CourseCodeInsideName() {
	act := &models.Activity{Title: "Lecture", Course: "CS101 Intro to Programming", Module: "3"}
	got := s.ex.Activity(act, s.ref)
	s.Equal([]string{"CS101"}, got.Values().Courses)
	s.Equal([]string{"3"}, got.Values().Modules)
}

func TestResolveDate(t *testing.T) {
	ref := time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)
	tests := []struct {
		token string
		want  string
		ok    bool
	}{
		{"Mar 16", "2024-03-16", true},
		{"march 1st", "2024-03-01", true},
		{"Sept. 9", "2024-09-09", true},
		{"Feb 29", "2024-02-29", true},
		{"Feb 29, 2025", "", false},
		{"feb 30", "", false},
		{"Dec 0", "", false},
		{"tomorrow", "2025-01-01", true},
		{"TODAY", "2024-12-31", true},
		{"2025-02-28", "2025-02-28", true},
		{"2025-02-30", "", false},
		{"Ma 3", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, ok := ResolveDate(tt.token, ref)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.Format(time.DateOnly))
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "CS101", NormalizeCourse(" cs 101 "))
	assert.Equal(t, "BIO2200A", NormalizeCourse("Bio\t2200a"))

	v, ok := NormalizeNumber("007")
	assert.True(t, ok)
	assert.Equal(t, "7", v)

	v, ok = NormalizeNumber("2b")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	_, ok = NormalizeNumber("two")
	assert.False(t, ok)
}

func TestCache_MemoizesAndCopies(t *testing.T) {
	src, err := config.SlackSourceConfig().Compile()
	require.NoError(t, err)
	ex := New(src)
	cache := NewCache(0)
	ref := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	first := cache.Extract(ex, "CS101 due tomorrow", ref)
	first.AddCourse("X", "MUTATED")

	second := cache.Extract(ex, "CS101 due tomorrow", ref.Add(3*time.Hour))
	assert.Equal(t, []string{"CS101"}, second.Values().Courses)

	stats := cache.Stats()
	assert.EqualValues(t, 1, stats.Misses)
	assert.EqualValues(t, 1, stats.Hits)
	assert.Equal(t, 1, stats.Size)

	// A different reference day is a different entry.
	third := cache.Extract(ex, "CS101 due tomorrow", ref.AddDate(0, 0, 1))
	assert.Equal(t, []string{"2025-03-16"}, third.Values().Dates)
	assert.Equal(t, 2, cache.Stats().Size)
}

func TestCache_BoundedAndConcurrent(t *testing.T) {
	src, err := config.EmailSourceConfig().Compile()
	require.NoError(t, err)
	ex := New(src)
	cache := NewCache(10)
	ref := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got := cache.Extract(ex, "HW 3 for CS101", ref)
			assert.Equal(t, []string{"3"}, got.Values().Assignments)
			cache.Extract(ex, time.Duration(i).String(), ref)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Stats().Size, 10)
}
