// Package scoring computes the entity and date-proximity boosts added to a similarity score.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/pkg/models"
)

// BoostCalculator applies a source's boost rules to one message/activity pair.
type BoostCalculator struct {
	config config.Correlation
}

// NewBoostCalculator creates a calculator for the correlation settings of a source.
func NewBoostCalculator(cfg config.Correlation) *BoostCalculator {
	return &BoostCalculator{config: cfg}
}

// BoostInput is everything the boost rules look at for one pair.
type BoostInput struct {
	Message  models.ExtractedEntities
	Activity models.ExtractedEntities
	// CourseContext is the message's course_context field, matched against ActivityCourse
	// when no course code agrees.
	CourseContext  string
	ActivityCourse string
	BaseScore      float64
}

// BoostComponents contains the breakdown of a final score.
type BoostComponents struct {
	DateDistance  *int                 `json:"date_distance_days,omitempty"`
	Reasons       []models.BoostReason `json:"reasons,omitempty"`
	Base          float64              `json:"base"`
	Course        float64              `json:"course"`
	Module        float64              `json:"module"`
	Assignment    float64              `json:"assignment"`
	DateProximity float64              `json:"date_proximity"`
	Final         float64              `json:"final"`
}

// Calculate returns the final score of a pair.
func (c *BoostCalculator) Calculate(in BoostInput) float64 {
	return c.CalculateComponents(in).Final
}

// CalculateComponents returns the individual boosts and the final score.
//
// The scoring formula:
//
//	Final = Base + Course + Module + Assignment + DateProximity
//
// Where each entity boost is the configured boost on a normalized match, multiplied
// by exact_match_weight when the raw strings are identical, and
//
//	DateProximity = date_proximity_boost_max × (1 − d / date_proximity_days)
//
// for the nearest pair of dates d days apart (d ≤ window). Boosts are never negative
// and the result is not renormalized.
func (c *BoostCalculator) CalculateComponents(in BoostInput) BoostComponents {
	comp := BoostComponents{Base: math.Max(in.BaseScore, 0)}

	// 1. Course code
	if amount, detail := c.entityBoost(in.Message.Courses, in.Activity.Courses, c.config.CourseMatchBoost); amount > 0 {
		comp.Course = amount
		comp.add(models.BoostCourse, amount, "course "+detail)
	} else if c.config.CourseMatchBoost > 0 && courseContextMatches(in.CourseContext, in.ActivityCourse) {
		comp.Course = c.config.CourseMatchBoost
		comp.add(models.BoostCourse, comp.Course, fmt.Sprintf("course context %q", strings.TrimSpace(in.CourseContext)))
	}

	// 2. Module number
	if amount, detail := c.entityBoost(in.Message.Modules, in.Activity.Modules, c.config.ModuleMatchBoost); amount > 0 {
		comp.Module = amount
		comp.add(models.BoostModule, amount, "module "+detail)
	}

	// 3. Assignment number
	if amount, detail := c.entityBoost(in.Message.Assignments, in.Activity.Assignments, c.config.AssignmentMatchBoost); amount > 0 {
		comp.Assignment = amount
		comp.add(models.BoostAssignment, amount, "assignment "+detail)
	}

	// 4. Date proximity, nearest pair only
	if d, ok := NearestDayDistance(in.Message.Dates, in.Activity.Dates); ok {
		comp.DateDistance = &d
		if amount := c.DateBoost(d); amount > 0 {
			comp.DateProximity = amount
			comp.add(models.BoostDateProximity, amount, dateDetail(d))
		}
	}

	comp.Final = comp.Base + comp.Course + comp.Module + comp.Assignment + comp.DateProximity
	return comp
}

// DateBoost returns the proximity boost for dates d days apart.
// It decays linearly from the maximum at 0 days to 0 at the window; a zero window
// gives the full boost only on the same day.
func (c *BoostCalculator) DateBoost(d int) float64 {
	if d < 0 {
		d = -d
	}
	window := c.config.DateProximityDays
	peak := c.config.DateProximityBoostMax
	if window == 0 {
		if d == 0 {
			return peak
		}
		return 0
	}
	if d >= window {
		return 0
	}
	return peak * (1 - float64(d)/float64(window))
}

// entityBoost compares two entity sets. An exact raw match earns boost × exact_match_weight,
// a normalized value match earns boost; the best pair wins and boosts do not stack.
func (c *BoostCalculator) entityBoost(msg, act []models.EntityMatch, boost float64) (float64, string) {
	if boost <= 0 {
		return 0, ""
	}
	var normalized string
	for _, m := range msg {
		for _, a := range act {
			if m.Raw == a.Raw {
				return boost * c.config.ExactMatchWeight, fmt.Sprintf("%s (exact)", m.Raw)
			}
			if normalized == "" && m.Value == a.Value {
				normalized = m.Value
			}
		}
	}
	if normalized != "" {
		return boost, normalized
	}
	return 0, ""
}

// NearestDayDistance returns the smallest absolute distance in days between any
// date of a and any date of b.
func NearestDayDistance(a, b []time.Time) (int, bool) {
	best := -1
	for _, x := range a {
		for _, y := range b {
			d := dayDistance(x, y)
			if best < 0 || d < best {
				best = d
			}
		}
	}
	return best, best >= 0
}

func dayDistance(a, b time.Time) int {
	d := models.TruncateDay(a).Sub(models.TruncateDay(b))
	days := int(math.Round(d.Hours() / 24))
	if days < 0 {
		days = -days
	}
	return days
}

func courseContextMatches(context, course string) bool {
	context = strings.ToLower(strings.TrimSpace(context))
	course = strings.ToLower(course)
	return context != "" && course != "" && strings.Contains(course, context)
}

func dateDetail(d int) string {
	switch d {
	case 0:
		return "same day"
	case 1:
		return "1 day apart"
	}
	return fmt.Sprintf("%d days apart", d)
}

func (comp *BoostComponents) add(kind models.BoostKind, amount float64, detail string) {
	comp.Reasons = append(comp.Reasons, models.BoostReason{Kind: kind, Amount: amount, Detail: detail})
}
