package config

import (
	"github.com/thebtf/remote/pkg/models"
)

// SourceConfig is the correlation configuration for one message source type.
// It is immutable once compiled and shared read-only by every correlation call.
type SourceConfig struct {
	FieldWeights         map[string]float64     `json:"field_weights" yaml:"field_weights" validate:"required,dive,gte=0"`
	EntityExtraction     map[string]PatternList `json:"entity_extraction" yaml:"entity_extraction"`
	MessageType          string                 `json:"message_type" yaml:"message_type"`
	ExcludeActivityTypes []string               `json:"exclude_activity_types" yaml:"exclude_activity_types"`
	ExcludeSubstrings    []string               `json:"exclude_substrings" yaml:"exclude_substrings"`
	Preprocessing        Preprocessing          `json:"preprocessing" yaml:"preprocessing"`
	Output               Output                 `json:"output" yaml:"output"`
	Correlation          Correlation            `json:"correlation" yaml:"correlation"`
	ActivitySampleSize   int                    `json:"activity_sample_size" yaml:"activity_sample_size" validate:"gte=0"`
}

// Preprocessing controls message exclusion and tokenization.
type Preprocessing struct {
	ExcludeMessageTypes []string `json:"exclude_message_types" yaml:"exclude_message_types"`
	ExcludeSubstrings   []string `json:"exclude_substrings" yaml:"exclude_substrings"`
	NGramRange          []int    `json:"ngram_range" yaml:"ngram_range" validate:"len=2,dive,gte=1"`
	TFIDFMinDF          int      `json:"tfidf_min_df" yaml:"tfidf_min_df" validate:"gte=0"`
	RemoveStopWords     bool     `json:"remove_stop_words" yaml:"remove_stop_words"`
}

// Correlation holds tier thresholds and boost magnitudes.
// Scores are additive and not renormalized, so thresholds apply to the boosted scale.
type Correlation struct {
	ThresholdStrong         float64 `json:"threshold_strong" yaml:"threshold_strong" validate:"gte=0"`
	ThresholdModerate       float64 `json:"threshold_moderate" yaml:"threshold_moderate" validate:"gte=0"`
	ThresholdWeak           float64 `json:"threshold_weak" yaml:"threshold_weak" validate:"gt=0"`
	CourseMatchBoost        float64 `json:"course_match_boost" yaml:"course_match_boost" validate:"gte=0"`
	ModuleMatchBoost        float64 `json:"module_match_boost" yaml:"module_match_boost" validate:"gte=0"`
	AssignmentMatchBoost    float64 `json:"assignment_match_boost" yaml:"assignment_match_boost" validate:"gte=0"`
	DateProximityBoostMax   float64 `json:"date_proximity_boost_max" yaml:"date_proximity_boost_max" validate:"gte=0"`
	DateProximityDays       int     `json:"date_proximity_days" yaml:"date_proximity_days" validate:"gte=0"`
	ExactMatchWeight        float64 `json:"exact_match_weight" yaml:"exact_match_weight" validate:"gte=1"`
	IncludeMessageTimestamp bool    `json:"include_message_timestamp" yaml:"include_message_timestamp"`
}

// Output controls result shaping and the execution mode.
type Output struct {
	MaxCorrelationsPerActivity int  `json:"max_correlations_per_activity" yaml:"max_correlations_per_activity" validate:"gte=0"`
	ComputeImmediately         bool `json:"compute_immediately" yaml:"compute_immediately"`
	BackgroundProcessing       bool `json:"background_processing" yaml:"background_processing"`
}

// Default entity patterns. Each kind is an ordered list of alternatives;
// the first non-empty capture group of a match is its value.
var (
	DefaultCoursePatterns = PatternList{
		`(?i)\b([A-Z]{2,4}\s?\d{3,4}[A-Z]?)\b`,
	}
	DefaultModulePatterns = PatternList{
		`(?i)\b(?:modules?|mod)\.?\s*#?\s*(\d+[a-z]?)\b`,
	}
	DefaultAssignmentPatterns = PatternList{
		`(?i)\b(?:problem\s*sets?|ps|assignments?|hw|homeworks?|labs?|exercises?)\s*(?:#|no\.?|number)?\s*(\d+[a-z]?)\b`,
	}
	DefaultDatePatterns = PatternList{
		`(?i)\b((?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?)\b`,
		`\b(\d{4}-\d{2}-\d{2})\b`,
		`(?i)\b(today|tomorrow|yesterday)\b`,
	}
)

// DefaultSourceConfig returns the base configuration shared by every source type.
func DefaultSourceConfig() *SourceConfig {
	return &SourceConfig{
		FieldWeights: map[string]float64{
			models.FieldSubject:       3.0,
			models.FieldContent:       1.0,
			models.FieldCourseContext: 2.0,
		},
		EntityExtraction: map[string]PatternList{
			string(models.EntityCourse):     append(PatternList(nil), DefaultCoursePatterns...),
			string(models.EntityModule):     append(PatternList(nil), DefaultModulePatterns...),
			string(models.EntityAssignment): append(PatternList(nil), DefaultAssignmentPatterns...),
			string(models.EntityDate):       append(PatternList(nil), DefaultDatePatterns...),
		},
		Preprocessing: Preprocessing{
			ExcludeMessageTypes: []string{},
			ExcludeSubstrings:   []string{"Automatic Reply", "Out of Office"},
			NGramRange:          []int{1, 3},
			TFIDFMinDF:          2,
			RemoveStopWords:     true,
		},
		Correlation: Correlation{
			ThresholdStrong:       0.5,
			ThresholdModerate:     0.4,
			ThresholdWeak:         0.3,
			CourseMatchBoost:      0.2,
			ModuleMatchBoost:      0.15,
			AssignmentMatchBoost:  0.15,
			DateProximityBoostMax: 0.1,
			DateProximityDays:     3,
			ExactMatchWeight:      5.0,
		},
		Output: Output{
			MaxCorrelationsPerActivity: 5,
			ComputeImmediately:         true,
			BackgroundProcessing:       true,
		},
		ExcludeActivityTypes: []string{},
		ExcludeSubstrings:    []string{},
	}
}

// EmailSourceConfig returns the defaults for email messages.
func EmailSourceConfig() *SourceConfig {
	cfg := DefaultSourceConfig()
	cfg.MessageType = string(models.SourceEmail)
	cfg.FieldWeights[models.FieldSenderName] = 0.5
	cfg.Preprocessing.ExcludeSubstrings = []string{"Automatic Reply", "Out of Office", "Do not reply"}
	return cfg
}

// SlackSourceConfig returns the defaults for Slack messages.
// The subject is reconstructed from the channel, so content carries more weight.
func SlackSourceConfig() *SourceConfig {
	cfg := DefaultSourceConfig()
	cfg.MessageType = string(models.SourceSlack)
	cfg.FieldWeights[models.FieldSubject] = 1.0
	cfg.FieldWeights[models.FieldContent] = 2.0
	cfg.FieldWeights[models.FieldChannelName] = 1.5
	cfg.Preprocessing.ExcludeMessageTypes = []string{"channel_join", "channel_leave", "bot_message"}
	cfg.Preprocessing.ExcludeSubstrings = []string{}
	return cfg
}

// PresetFor returns the preset configuration for a message type.
// Unknown types get the base defaults with the message type set.
func PresetFor(messageType string) *SourceConfig {
	switch models.SourceType(messageType) {
	case models.SourceEmail:
		return EmailSourceConfig()
	case models.SourceSlack:
		return SlackSourceConfig()
	}
	cfg := DefaultSourceConfig()
	cfg.MessageType = messageType
	return cfg
}
