package models

import (
	"fmt"
	"strings"
)

// Tier is the confidence level assigned to a correlation.
type Tier int

const (
	TierNone Tier = iota
	TierWeak
	TierModerate
	TierStrong
)

var tierNames = map[Tier]string{
	TierNone:     "none",
	TierWeak:     "weak",
	TierModerate: "moderate",
	TierStrong:   "strong",
}

// String returns the lowercase tier name.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier converts a tier name into a Tier.
func ParseTier(s string) (Tier, error) {
	for tier, name := range tierNames {
		if strings.EqualFold(s, name) {
			return tier, nil
		}
	}
	return TierNone, fmt.Errorf("unknown tier %q", s)
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// BoostKind identifies which rule produced a boost.
type BoostKind string

const (
	BoostCourse        BoostKind = "course_match"
	BoostModule        BoostKind = "module_match"
	BoostAssignment    BoostKind = "assignment_match"
	BoostDateProximity BoostKind = "date_proximity"
)

// BoostReason records one boost applied to a score, for explainability.
type BoostReason struct {
	Kind   BoostKind `json:"kind"`
	Detail string    `json:"detail"`
	Amount float64   `json:"amount"`
}

// CorrelationResult links one message to an activity.
// Results are created per engine call and never mutated afterwards.
type CorrelationResult struct {
	Message      *Message      `json:"-"`
	DateDistance *int          `json:"date_distance_days,omitempty"`
	MessageID    string        `json:"message_id"`
	Reasons      []BoostReason `json:"reasons,omitempty"`
	KeyTerms     []string      `json:"key_terms,omitempty"`
	BaseScore    float64       `json:"base_score"`
	TermOverlap  float64       `json:"term_overlap"`
	Score        float64       `json:"score"`
	Tier         Tier          `json:"tier"`
}

// Summary renders a short human-readable explanation of the result.
func (r *CorrelationResult) Summary() string {
	parts := make([]string, 0, len(r.Reasons)+1)
	for _, reason := range r.Reasons {
		parts = append(parts, reason.Detail)
	}
	if len(r.KeyTerms) > 0 {
		terms := r.KeyTerms
		suffix := ""
		if len(terms) > 3 {
			suffix = fmt.Sprintf(" and %d more", len(terms)-3)
			terms = terms[:3]
		}
		parts = append(parts, "key terms: "+strings.Join(terms, ", ")+suffix)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("similarity %.2f", r.BaseScore)
	}
	return fmt.Sprintf("%s (similarity %.2f)", strings.Join(parts, ", "), r.BaseScore)
}
