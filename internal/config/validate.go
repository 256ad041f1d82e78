package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator"
	"github.com/thebtf/remote/pkg/models"
)

// ErrInvalidConfig is returned, wrapped, for every source configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid source configuration")

// ConfigError describes one invalid configuration field.
type ConfigError struct {
	Source string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("source %q: %s: %s", e.Source, e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// rangeReasons explain range checks that go beyond non-negativity.
var rangeReasons = map[string]string{
	"threshold_weak":     "must be > 0 so a message with zero similarity and no boosts stays at tier none",
	"exact_match_weight": "must be >= 1 so an exact entity match never earns less than a normalized one",
}

// Source is a validated source configuration with its entity patterns compiled.
type Source struct {
	Patterns map[models.EntityKind][]*regexp.Regexp
	Config   SourceConfig
	Name     string
}

// Validate checks field ranges, threshold ordering and pattern syntax.
// All problems are reported together; the result wraps ErrInvalidConfig.
func (c *SourceConfig) Validate() error {
	_, err := c.compilePatterns()
	return err
}

// Compile validates the configuration and compiles its entity patterns.
func (c *SourceConfig) Compile() (*Source, error) {
	patterns, err := c.compilePatterns()
	if err != nil {
		return nil, err
	}
	return &Source{
		Name:     c.MessageType,
		Config:   c.clone(),
		Patterns: patterns,
	}, nil
}

func (c *SourceConfig) compilePatterns() (map[models.EntityKind][]*regexp.Regexp, error) {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ConfigError{Source: c.MessageType, Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			if reason, ok := rangeReasons[fe.Field()]; ok {
				fail(fe.Namespace(), "%s (got %v)", reason, fe.Value())
				continue
			}
			fail(fe.Namespace(), "failed %s %s (got %v)", fe.Tag(), fe.Param(), fe.Value())
		}
	}

	corr := c.Correlation
	if corr.ThresholdStrong < corr.ThresholdModerate {
		fail("correlation.threshold_strong", "must be >= threshold_moderate (%.3f < %.3f)", corr.ThresholdStrong, corr.ThresholdModerate)
	}
	if corr.ThresholdModerate < corr.ThresholdWeak {
		fail("correlation.threshold_moderate", "must be >= threshold_weak (%.3f < %.3f)", corr.ThresholdModerate, corr.ThresholdWeak)
	}
	if r := c.Preprocessing.NGramRange; len(r) == 2 && r[0] > r[1] {
		fail("preprocessing.ngram_range", "min %d exceeds max %d", r[0], r[1])
	}

	known := make(map[string]bool, len(models.EntityKinds))
	for _, kind := range models.EntityKinds {
		known[string(kind)] = true
	}
	keys := make([]string, 0, len(c.EntityExtraction))
	for key := range c.EntityExtraction {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	compiled := make(map[models.EntityKind][]*regexp.Regexp, len(keys))
	for _, key := range keys {
		field := "entity_extraction." + key
		if !known[key] {
			fail(field, "unknown entity kind")
			continue
		}
		for i, pattern := range c.EntityExtraction[key] {
			if strings.TrimSpace(pattern) == "" {
				fail(fmt.Sprintf("%s[%d]", field, i), "empty pattern")
				continue
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				fail(fmt.Sprintf("%s[%d]", field, i), "unparseable pattern: %v", err)
				continue
			}
			compiled[models.EntityKind(key)] = append(compiled[models.EntityKind(key)], re)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return compiled, nil
}

// clone returns a deep copy so a compiled Source never aliases caller-owned maps or slices.
func (c *SourceConfig) clone() SourceConfig {
	out := *c
	out.FieldWeights = make(map[string]float64, len(c.FieldWeights))
	for k, v := range c.FieldWeights {
		out.FieldWeights[k] = v
	}
	out.EntityExtraction = make(map[string]PatternList, len(c.EntityExtraction))
	for k, v := range c.EntityExtraction {
		out.EntityExtraction[k] = append(PatternList(nil), v...)
	}
	out.ExcludeActivityTypes = append([]string(nil), c.ExcludeActivityTypes...)
	out.ExcludeSubstrings = append([]string(nil), c.ExcludeSubstrings...)
	out.Preprocessing.ExcludeMessageTypes = append([]string(nil), c.Preprocessing.ExcludeMessageTypes...)
	out.Preprocessing.ExcludeSubstrings = append([]string(nil), c.Preprocessing.ExcludeSubstrings...)
	out.Preprocessing.NGramRange = append([]int(nil), c.Preprocessing.NGramRange...)
	return out
}

// MinNGram returns the lower bound of the n-gram range.
func (s *Source) MinNGram() int {
	return s.Config.Preprocessing.NGramRange[0]
}

// MaxNGram returns the upper bound of the n-gram range.
func (s *Source) MaxNGram() int {
	return s.Config.Preprocessing.NGramRange[1]
}
