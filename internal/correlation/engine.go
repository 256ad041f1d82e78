// Package correlation scores messages against activities and groups the results per activity.
package correlation

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/remote/internal/config"
	"github.com/thebtf/remote/internal/extract"
	"github.com/thebtf/remote/internal/preprocess"
	"github.com/thebtf/remote/internal/scoring"
	"github.com/thebtf/remote/pkg/models"
	"github.com/thebtf/remote/pkg/similarity"
)

// ErrNoSource is returned when an engine is created without a source configuration.
var ErrNoSource = errors.New("correlation engine requires a source configuration")

// Results maps an activity key to its ranked correlations.
// Excluded and unsampled activities are absent; considered activities
// without correlations map to an empty slice.
type Results map[string][]models.CorrelationResult

// ProgressFunc is called after each activity is scored.
type ProgressFunc func(done, total int)

// Engine correlates messages with activities for one source type.
// It keeps no state between calls and is safe for concurrent use.
type Engine struct {
	source     *config.Source
	extractor  *extract.Extractor
	pre        *preprocess.Preprocessor
	boosts     *scoring.BoostCalculator
	classifier *Classifier
	cache      *extract.Cache
	metrics    *Metrics
	workers    int
}

// Option configures an Engine.
type Option func(*Engine)

// WithWorkers sets how many activities are scored in parallel.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithCache shares an extraction cache across calls.
func WithCache(c *extract.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithMetrics replaces the instruments created on the global meter provider.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates an engine for a compiled source configuration.
func NewEngine(src *config.Source, opts ...Option) (*Engine, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	e := &Engine{
		source:     src,
		extractor:  extract.New(src),
		pre:        preprocess.New(src),
		boosts:     scoring.NewBoostCalculator(src.Config.Correlation),
		classifier: NewClassifier(src.Config.Correlation, src.Config.Output),
		workers:    runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = globalMetrics()
	}
	return e, nil
}

// Source returns the configuration the engine was built from.
func (e *Engine) Source() *config.Source {
	return e.source
}

// Correlate scores every eligible message against every considered activity.
// It is a pure function of its inputs and ref. A cancelled context yields no
// partial results.
func (e *Engine) Correlate(ctx context.Context, activities []models.Activity, messages []models.Message, ref time.Time) (Results, error) {
	return e.run(ctx, activities, messages, ref, nil)
}

type preparedMessage struct {
	msg      *models.Message
	fields   map[string]similarity.Vector
	entities models.ExtractedEntities
	terms    map[string]bool
}

type preparedActivity struct {
	act      *models.Activity
	doc      *preprocess.Document
	vector   similarity.Vector
	entities models.ExtractedEntities
	terms    map[string]bool
	key      string
}

func (e *Engine) run(ctx context.Context, activities []models.Activity, messages []models.Message, ref time.Time, progress ProgressFunc) (Results, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 1. Filter and tokenize messages
	type messageDoc struct {
		msg *models.Message
		doc *preprocess.Document
	}
	msgDocs := make([]messageDoc, 0, len(messages))
	for i := range messages {
		if doc, ok := e.pre.Message(&messages[i]); ok {
			msgDocs = append(msgDocs, messageDoc{msg: &messages[i], doc: doc})
		}
	}

	// 2. Exclude, then sample activities
	considered, excludedActivities := e.selectActivities(activities, ref)

	// 3. Document frequencies over this batch only
	corpusDocs := make([][]string, 0, len(msgDocs)+len(considered))
	for _, md := range msgDocs {
		corpusDocs = append(corpusDocs, md.doc.Grams)
	}
	for _, pa := range considered {
		corpusDocs = append(corpusDocs, pa.doc.Grams)
	}
	corpus := similarity.NewCorpus(corpusDocs, e.source.Config.Preprocessing.TFIDFMinDF)

	prepared := make([]preparedMessage, 0, len(msgDocs))
	for _, md := range msgDocs {
		fields := make(map[string]similarity.Vector, len(md.doc.Fields))
		for name, grams := range md.doc.Fields {
			fields[name] = corpus.Vector(grams)
		}
		entities := e.extract(md.msg.Text(), ref)
		if e.source.Config.Correlation.IncludeMessageTimestamp && !md.msg.Timestamp.IsZero() {
			entities.AddDate(md.msg.Timestamp)
		}
		prepared = append(prepared, preparedMessage{
			msg:      md.msg,
			fields:   fields,
			entities: entities,
			terms:    similarity.TermSet(md.msg.Text()),
		})
	}
	for i := range considered {
		pa := &considered[i]
		pa.vector = corpus.Vector(pa.doc.Grams)
		pa.entities = e.extractor.Activity(pa.act, ref)
		pa.terms = similarity.TermSet(pa.act.Text())
	}

	// 4. Score activities in parallel; each worker owns its slot
	slots := make([][]models.CorrelationResult, len(considered))
	var processed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range considered {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = e.scoreActivity(&considered[i], prepared)
			done := processed.Add(1)
			if progress != nil {
				progress(int(done), len(considered))
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	excludedMessages := len(messages) - len(msgDocs)
	if err != nil {
		e.metrics.recordRun(ctx, e.source.Name, time.Since(start), 0, excludedMessages, excludedActivities, nil, err)
		return nil, err
	}

	results := make(Results, len(considered))
	for i, pa := range considered {
		results[pa.key] = slots[i]
	}

	e.metrics.recordRun(ctx, e.source.Name, time.Since(start), len(prepared)*len(considered), excludedMessages, excludedActivities, results, nil)
	log.Debug().
		Str("source", e.source.Name).
		Int("messages", len(prepared)).
		Int("activities", len(considered)).
		Int("excluded_messages", excludedMessages).
		Int("excluded_activities", excludedActivities).
		Int("vocabulary", corpus.Vocabulary()).
		Dur("elapsed", time.Since(start)).
		Msg("Correlation run complete")
	return results, nil
}

// selectActivities drops excluded activities and duplicate keys, then keeps the
// activity_sample_size activities closest to ref (undated last, catalog order on ties).
func (e *Engine) selectActivities(activities []models.Activity, ref time.Time) ([]preparedActivity, int) {
	eligible := make([]preparedActivity, 0, len(activities))
	seen := make(map[string]bool, len(activities))
	excluded := 0
	for i := range activities {
		act := &activities[i]
		doc, ok := e.pre.Activity(act)
		if !ok {
			excluded++
			continue
		}
		key := act.Key()
		if seen[key] {
			log.Debug().Str("activity", key).Msg("Skipping activity with duplicate key")
			continue
		}
		seen[key] = true
		eligible = append(eligible, preparedActivity{act: act, doc: doc, key: key})
	}

	n := e.source.Config.ActivitySampleSize
	if n <= 0 || n >= len(eligible) {
		return eligible, excluded
	}

	refDay := models.TruncateDay(ref)
	distance := func(pa preparedActivity) time.Duration {
		d := models.TruncateDay(pa.act.Date).Sub(refDay)
		if d < 0 {
			d = -d
		}
		return d
	}
	sorted := append([]preparedActivity(nil), eligible...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.act.HasDate() != b.act.HasDate() {
			return a.act.HasDate()
		}
		if !a.act.HasDate() {
			return false
		}
		return distance(a) < distance(b)
	})
	sample := make(map[string]bool, n)
	for _, pa := range sorted[:n] {
		sample[pa.key] = true
	}

	// Keep catalog order in the output.
	out := make([]preparedActivity, 0, n)
	for _, pa := range eligible {
		if sample[pa.key] {
			out = append(out, pa)
		}
	}
	return out, excluded
}

func (e *Engine) scoreActivity(pa *preparedActivity, messages []preparedMessage) []models.CorrelationResult {
	weights := e.source.Config.FieldWeights
	results := make([]models.CorrelationResult, 0)
	for i := range messages {
		pm := &messages[i]
		base := similarity.WeightedFieldScore(pm.fields, pa.vector, weights)
		comp := e.boosts.CalculateComponents(scoring.BoostInput{
			Message:        pm.entities,
			Activity:       pa.entities,
			CourseContext:  pm.msg.Field(models.FieldCourseContext),
			ActivityCourse: pa.act.Course,
			BaseScore:      base,
		})
		tier := e.classifier.Classify(comp.Final)
		if tier == models.TierNone {
			continue
		}
		results = append(results, models.CorrelationResult{
			Message:      pm.msg,
			MessageID:    pm.msg.ID,
			Score:        comp.Final,
			BaseScore:    comp.Base,
			TermOverlap:  termOverlap(pm.terms, pa.terms),
			Tier:         tier,
			Reasons:      comp.Reasons,
			KeyTerms:     similarity.SharedTerms(pm.terms, pa.terms),
			DateDistance: comp.DateDistance,
		})
	}
	return e.classifier.Rank(results)
}

func (e *Engine) extract(text string, ref time.Time) models.ExtractedEntities {
	if e.cache != nil {
		return e.cache.Extract(e.extractor, text, ref)
	}
	return e.extractor.Extract(text, ref)
}

func termOverlap(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return similarity.JaccardSimilarity(a, b)
}
