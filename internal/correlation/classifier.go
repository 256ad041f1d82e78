package correlation

import (
	"sort"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/pkg/models"
)

// Classifier maps final scores to tiers and shapes per-activity result lists.
type Classifier struct {
	strong, moderate, weak float64
	maxPerActivity         int
}

// NewClassifier creates a classifier from a source's thresholds and output cap.
func NewClassifier(corr config.Correlation, out config.Output) *Classifier {
	return &Classifier{
		strong:         corr.ThresholdStrong,
		moderate:       corr.ThresholdModerate,
		weak:           corr.ThresholdWeak,
		maxPerActivity: out.MaxCorrelationsPerActivity,
	}
}

// Classify returns the highest tier whose threshold the score reaches.
func (c *Classifier) Classify(score float64) models.Tier {
	switch {
	case score >= c.strong:
		return models.TierStrong
	case score >= c.moderate:
		return models.TierModerate
	case score >= c.weak:
		return models.TierWeak
	}
	return models.TierNone
}

// Rank drops results of tier none, orders the rest by descending score
// (input order breaks ties) and truncates to the per-activity cap (0 = no cap).
func (c *Classifier) Rank(results []models.CorrelationResult) []models.CorrelationResult {
	ranked := make([]models.CorrelationResult, 0, len(results))
	for _, r := range results {
		if r.Tier != models.TierNone {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if c.maxPerActivity > 0 && len(ranked) > c.maxPerActivity {
		ranked = ranked[:c.maxPerActivity]
	}
	return ranked
}
