// Package preprocess filters messages and activities and turns their text into n-grams.
package preprocess

import (
	"strings"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/pkg/models"
	"github.com/thebtf/remote/pkg/similarity"
)

// ActivityField is the single field name of an activity document.
const ActivityField = "text"

// Document is the tokenized form of a message or activity.
// Fields holds n-grams per non-empty field; Grams is their concatenation.
type Document struct {
	Fields map[string][]string
	Grams  []string
}

// Preprocessor applies a source's exclusion and tokenization rules.
// It is safe for concurrent use.
type Preprocessor struct {
	excludeKinds         map[string]bool
	excludeActivityTypes map[string]bool
	messageSubstrings    []string
	activitySubstrings   []string
	minN, maxN           int
	removeStopWords      bool
}

// New creates a preprocessor for a compiled source configuration.
func New(src *config.Source) *Preprocessor {
	cfg := src.Config
	p := &Preprocessor{
		excludeKinds:         lowerSet(cfg.Preprocessing.ExcludeMessageTypes),
		excludeActivityTypes: lowerSet(cfg.ExcludeActivityTypes),
		messageSubstrings:    lowerList(cfg.Preprocessing.ExcludeSubstrings),
		activitySubstrings:   lowerList(cfg.ExcludeSubstrings),
		minN:                 src.MinNGram(),
		maxN:                 src.MaxNGram(),
		removeStopWords:      cfg.Preprocessing.RemoveStopWords,
	}
	return p
}

// ExcludeMessage reports whether a message is filtered out before scoring,
// by its kind or by an excluded substring in any field.
func (p *Preprocessor) ExcludeMessage(msg *models.Message) bool {
	if msg.Kind != "" && p.excludeKinds[strings.ToLower(msg.Kind)] {
		return true
	}
	if len(p.messageSubstrings) == 0 {
		return false
	}
	for _, text := range msg.Fields {
		if containsAny(strings.ToLower(text), p.messageSubstrings) {
			return true
		}
	}
	return false
}

// ExcludeActivity reports whether an activity is skipped entirely,
// by its type or by an excluded substring in its title, course, description or type.
func (p *Preprocessor) ExcludeActivity(act *models.Activity) bool {
	if p.excludeActivityTypes[strings.ToLower(strings.TrimSpace(string(act.Type)))] {
		return true
	}
	if len(p.activitySubstrings) == 0 {
		return false
	}
	for _, text := range []string{act.Title, act.Course, act.Description, string(act.Type)} {
		if containsAny(strings.ToLower(text), p.activitySubstrings) {
			return true
		}
	}
	return false
}

// Message returns the document of a message, or nil and false when it is excluded.
func (p *Preprocessor) Message(msg *models.Message) (*Document, bool) {
	if p.ExcludeMessage(msg) {
		return nil, false
	}
	doc := &Document{Fields: make(map[string][]string, len(msg.Fields))}
	for _, name := range msg.FieldNames() {
		grams := p.NGrams(msg.Field(name))
		doc.Fields[name] = grams
		doc.Grams = append(doc.Grams, grams...)
	}
	return doc, true
}

// Activity returns the document of an activity, or nil and false when it is excluded.
func (p *Preprocessor) Activity(act *models.Activity) (*Document, bool) {
	if p.ExcludeActivity(act) {
		return nil, false
	}
	grams := p.NGrams(act.Text())
	return &Document{
		Fields: map[string][]string{ActivityField: grams},
		Grams:  grams,
	}, true
}

// NGrams tokenizes text and returns every n-gram with n in the configured range,
// shortest first. Stop words are removed before n-grams are formed when enabled.
func (p *Preprocessor) NGrams(text string) []string {
	words := similarity.Tokenize(text)
	if p.removeStopWords {
		kept := words[:0]
		for _, w := range words {
			if !similarity.IsStopWord(w) {
				kept = append(kept, w)
			}
		}
		words = kept
	}
	return NGrams(words, p.minN, p.maxN)
}

// NGrams joins every run of minN..maxN consecutive words with single spaces.
func NGrams(words []string, minN, maxN int) []string {
	if minN < 1 {
		minN = 1
	}
	var grams []string
	for n := minN; n <= maxN; n++ {
		for i := 0; i+n <= len(words); i++ {
			grams = append(grams, strings.Join(words[i:i+n], " "))
		}
	}
	return grams
}

func containsAny(text string, substrings []string) bool {
	for _, s := range substrings {
		if s != "" && strings.Contains(text, s) {
			return true
		}
	}
	return false
}

func lowerSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			set[v] = true
		}
	}
	return set
}

func lowerList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(v); strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
