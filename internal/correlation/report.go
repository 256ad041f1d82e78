package correlation

import (
	"time"

	"github.com/thebtf/remote/pkg/models"
)

// Summary aggregates a correlation run.
type Summary struct {
	ByTier             map[string]int `json:"by_tier"`
	Activities         int            `json:"activities"`
	Correlations       int            `json:"correlations"`
	AveragePerActivity float64        `json:"average_per_activity"`
}

// Summarize counts correlations per tier and the average per considered activity.
func Summarize(results Results) Summary {
	s := Summary{
		ByTier: map[string]int{
			models.TierStrong.String():   0,
			models.TierModerate.String(): 0,
			models.TierWeak.String():     0,
		},
		Activities: len(results),
	}
	for _, list := range results {
		for _, r := range list {
			s.ByTier[r.Tier.String()]++
			s.Correlations++
		}
	}
	if s.Activities > 0 {
		s.AveragePerActivity = float64(s.Correlations) / float64(s.Activities)
	}
	return s
}

// ReportEntry is one correlated message in a report.
type ReportEntry struct {
	DateDistance *int                 `json:"date_distance_days,omitempty"`
	MessageID    string               `json:"message_id"`
	Subject      string               `json:"subject,omitempty"`
	Sender       string               `json:"sender,omitempty"`
	Explanation  string               `json:"explanation"`
	Reasons      []models.BoostReason `json:"reasons,omitempty"`
	KeyTerms     []string             `json:"key_terms,omitempty"`
	Score        float64              `json:"score"`
	BaseScore    float64              `json:"base_score"`
	TermOverlap  float64              `json:"term_overlap"`
}

// ActivityReport groups one activity's correlations by tier.
type ActivityReport struct {
	Date       *time.Time    `json:"date,omitempty"`
	ActivityID string        `json:"activity_id"`
	Title      string        `json:"title"`
	Course     string        `json:"course,omitempty"`
	Type       string        `json:"type,omitempty"`
	Strong     []ReportEntry `json:"strong"`
	Moderate   []ReportEntry `json:"moderate"`
	Weak       []ReportEntry `json:"weak"`
}

// Report is the serializable outcome of a correlation run.
type Report struct {
	ReferenceDate time.Time        `json:"reference_date"`
	GeneratedAt   time.Time        `json:"generated_at"`
	Source        string           `json:"source"`
	Activities    []ActivityReport `json:"activities"`
	Summary       Summary          `json:"summary"`
}

// BuildReport lays results out per activity in catalog order, grouped by tier.
// Activities without an entry in results (excluded or unsampled) are left out.
func BuildReport(source string, ref time.Time, activities []models.Activity, results Results) *Report {
	report := &Report{
		Source:        source,
		ReferenceDate: ref,
		GeneratedAt:   time.Now().UTC(),
		Activities:    make([]ActivityReport, 0, len(results)),
		Summary:       Summarize(results),
	}

	seen := make(map[string]bool, len(results))
	for i := range activities {
		act := &activities[i]
		key := act.Key()
		list, ok := results[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true

		ar := ActivityReport{
			ActivityID: key,
			Title:      act.Title,
			Course:     act.Course,
			Type:       string(act.Type),
			Strong:     []ReportEntry{},
			Moderate:   []ReportEntry{},
			Weak:       []ReportEntry{},
		}
		if act.HasDate() {
			d := act.Date
			ar.Date = &d
		}
		for j := range list {
			entry := newReportEntry(&list[j])
			switch list[j].Tier {
			case models.TierStrong:
				ar.Strong = append(ar.Strong, entry)
			case models.TierModerate:
				ar.Moderate = append(ar.Moderate, entry)
			case models.TierWeak:
				ar.Weak = append(ar.Weak, entry)
			}
		}
		report.Activities = append(report.Activities, ar)
	}
	return report
}

func newReportEntry(r *models.CorrelationResult) ReportEntry {
	entry := ReportEntry{
		MessageID:    r.MessageID,
		Explanation:  r.Summary(),
		Reasons:      r.Reasons,
		KeyTerms:     r.KeyTerms,
		Score:        r.Score,
		BaseScore:    r.BaseScore,
		TermOverlap:  r.TermOverlap,
		DateDistance: r.DateDistance,
	}
	if r.Message != nil {
		entry.Subject = r.Message.Field(models.FieldSubject)
		entry.Sender = r.Message.Sender
	}
	return entry
}
