package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestActivity_Key(t *testing.T) {
	withID := Activity{ID: "ps3", Title: "Problem Set 3"}
	if got := withID.Key(); got != "ps3" {
		t.Errorf("Key() = %q, want ps3", got)
	}

	dated := Activity{Title: "Problem Set 3", Course: "CS101", Date: time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)}
	if got := dated.Key(); got != "Problem Set 3_CS101_Mar 06" {
		t.Errorf("Key() = %q", got)
	}

	undated := Activity{Title: "Reading", Course: "HIST210"}
	if got := undated.Key(); got != "Reading_HIST210_" {
		t.Errorf("Key() = %q", got)
	}
	if undated.HasDate() {
		t.Error("HasDate() should be false for zero date")
	}
}

func TestActivity_Text(t *testing.T) {
	a := Activity{Title: " Problem Set 3 ", Course: "CS101", Type: ActivityAssignment}
	if got := a.Text(); got != "Problem Set 3 CS101 Assignment" {
		t.Errorf("Text() = %q", got)
	}
}

func TestMessage_Fields(t *testing.T) {
	m := Message{Fields: map[string]string{
		FieldSubject:     "  PS 3  ",
		FieldContent:     "due Friday",
		FieldChannelName: "   ",
	}}

	if got := m.Field(FieldSubject); got != "PS 3" {
		t.Errorf("Field(subject) = %q", got)
	}
	if got := m.Field("missing"); got != "" {
		t.Errorf("Field(missing) = %q", got)
	}
	if got := m.FieldNames(); !reflect.DeepEqual(got, []string{FieldContent, FieldSubject}) {
		t.Errorf("FieldNames() = %v, blank fields must be skipped", got)
	}
	if got := m.Text(); got != "due Friday PS 3" {
		t.Errorf("Text() = %q", got)
	}

	var empty Message
	if empty.Field(FieldSubject) != "" || len(empty.FieldNames()) != 0 {
		t.Error("nil field map should read as empty")
	}
}

func TestTier(t *testing.T) {
	if !(TierStrong > TierModerate && TierModerate > TierWeak && TierWeak > TierNone) {
		t.Fatal("tiers must be ordered none < weak < moderate < strong")
	}

	for _, tier := range []Tier{TierNone, TierWeak, TierModerate, TierStrong} {
		parsed, err := ParseTier(strings.ToUpper(tier.String()))
		if err != nil || parsed != tier {
			t.Errorf("ParseTier(%q) = %v, %v", tier, parsed, err)
		}
	}
	if _, err := ParseTier("great"); err == nil {
		t.Error("ParseTier should reject unknown names")
	}
	if got := Tier(9).String(); got != "tier(9)" {
		t.Errorf("String() = %q", got)
	}

	data, err := json.Marshal(struct {
		Tier Tier `json:"tier"`
	}{TierModerate})
	if err != nil || string(data) != `{"tier":"moderate"}` {
		t.Errorf("Marshal = %s, %v", data, err)
	}

	var decoded struct {
		Tier Tier `json:"tier"`
	}
	if err := json.Unmarshal([]byte(`{"tier":"weak"}`), &decoded); err != nil || decoded.Tier != TierWeak {
		t.Errorf("Unmarshal = %v, %v", decoded.Tier, err)
	}
	if err := json.Unmarshal([]byte(`{"tier":"bogus"}`), &decoded); err == nil {
		t.Error("Unmarshal should reject unknown tier")
	}
}

func TestCorrelationResult_Summary(t *testing.T) {
	r := CorrelationResult{
		BaseScore: 0.42,
		Reasons:   []BoostReason{{Kind: BoostCourse, Detail: "course CS101 (exact)", Amount: 0.3}},
		KeyTerms:  []string{"problem", "set", "recursion", "due", "friday"},
	}
	want := "course CS101 (exact), key terms: problem, set, recursion and 2 more (similarity 0.42)"
	if got := r.Summary(); got != want {
		t.Errorf("Summary() = %q\nwant %q", got, want)
	}

	bare := CorrelationResult{BaseScore: 0.31}
	if got := bare.Summary(); got != "similarity 0.31" {
		t.Errorf("Summary() = %q", got)
	}
}

func TestExtractedEntities(t *testing.T) {
	var e ExtractedEntities
	if !e.IsEmpty() {
		t.Fatal("zero value should be empty")
	}

	e.AddCourse("cs 101", "CS101")
	e.AddCourse("cs 101", "CS101")
	e.AddCourse("CS101", "CS101")
	e.AddModule("Mod 02", "2")
	e.AddAssignment("PS 3", "3")
	e.AddDate(time.Date(2025, 3, 16, 14, 0, 0, 0, time.UTC))
	e.AddDate(time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC))

	if len(e.Courses) != 2 {
		t.Errorf("Courses = %v, want raw variants kept once each", e.Courses)
	}
	if len(e.Dates) != 1 || !e.Dates[0].Equal(time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Dates = %v, want one truncated day", e.Dates)
	}

	v := e.Values()
	if !reflect.DeepEqual(v.Courses, []string{"CS101"}) {
		t.Errorf("Values().Courses = %v", v.Courses)
	}
	if got := e.Canonical(); got != "CS101 ; module 2 ; assignment 3 ; 2025-03-16" {
		t.Errorf("Canonical() = %q", got)
	}
}

func TestExtractedEntities_MergeAndClone(t *testing.T) {
	var a, b ExtractedEntities
	a.AddCourse("CS101", "CS101")
	b.AddCourse("CS101", "CS101")
	b.AddModule("module 4", "4")

	clone := a.Clone()
	a.Merge(b)

	if len(a.Courses) != 1 || len(a.Modules) != 1 {
		t.Errorf("Merge() = %+v", a)
	}
	if len(clone.Modules) != 0 {
		t.Error("Clone must not share backing arrays with the original")
	}
}
