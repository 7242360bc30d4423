// Package pipeline orchestrates the batch run that turns stored trail
// records into a similarity model: load, corpus assembly, vectorization,
// topic modeling, feature fusion, engine construction and persistence.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/KalinMeier/TrailScout/internal/config"
	"github.com/KalinMeier/TrailScout/internal/corpus"
	"github.com/KalinMeier/TrailScout/internal/database"
	"github.com/KalinMeier/TrailScout/internal/features"
	"github.com/KalinMeier/TrailScout/internal/recommend"
	"github.com/KalinMeier/TrailScout/internal/report"
	"github.com/KalinMeier/TrailScout/internal/topics"
	"github.com/KalinMeier/TrailScout/internal/vectorize"
)

// topicSampleCount is how many highest-loading trails each topic lists in
// the run report.
const topicSampleCount = 3

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID string
	Steps []StepResult
}

// Failed returns the first step error, or nil if every step succeeded.
func (r *Result) Failed() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Pipeline orchestrates the 7-step model build.
type Pipeline struct {
	cfg *config.Config
	db  *database.DB
}

// New creates a new pipeline.
func New(cfg *config.Config, db *database.DB) *Pipeline {
	return &Pipeline{cfg: cfg, db: db}
}

// Run executes the full pipeline. Steps that leave downstream stages
// without usable input stop the run; the partial step list is returned
// either way.
func (p *Pipeline) Run() *Result {
	r := &Result{RunID: uuid.New().String()}

	trails, step := p.runLoad()
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	cleaned, built, step := p.runCorpus(trails)
	r.Steps = append(r.Steps, step)

	x, terms, step := p.runVectorize(built)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	model, step := p.runTopics(x)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	fused, joins, step := p.runFuse(built, model)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	step = p.runEngine(built, fused)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	step = p.runPersist(r.RunID, cleaned, built, x, terms, model, fused, joins)
	r.Steps = append(r.Steps, step)
	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}
	n, _ := p.db.CountTrails()

	r.Steps = append(r.Steps,
		StepResult{Name: "Load", Summary: fmt.Sprintf("[dry-run] %d trails in store", n)},
		StepResult{Name: "Corpus", Summary: fmt.Sprintf("[dry-run] would build %d documents", n)},
		StepResult{Name: "Vectorize", Summary: fmt.Sprintf("[dry-run] vocabulary cap %d, %d stopwords",
			p.cfg.Model.VocabularyCap, len(vectorize.Stopwords(p.cfg.Text.ExtraStopwords...)))},
		StepResult{Name: "Topics", Summary: fmt.Sprintf("[dry-run] would fit %d topics over %d iterations (seed %d)",
			p.cfg.Model.Topics, p.cfg.Model.MaxIterations, p.cfg.Model.Seed)},
		StepResult{Name: "Fuse", Summary: "[dry-run] would fuse topic loadings with hike attributes"},
		StepResult{Name: "Engine", Summary: fmt.Sprintf("[dry-run] cosine similarity, scaling mean=%t std=%t",
			p.cfg.Scaling.WithMean, p.cfg.Scaling.WithStd)},
		StepResult{Name: "Persist", Summary: fmt.Sprintf("[dry-run] bundle would be written to %s", p.cfg.BundlePath())},
	)
	return r
}

func (p *Pipeline) runLoad() ([]corpus.Record, StepResult) {
	log.Info().Msg("step 1/7: loading stored trails")
	trails, err := p.db.GetAllTrails()
	if err != nil {
		return nil, StepResult{Name: "Load", Err: fmt.Errorf("loading trails: %w", err)}
	}
	if len(trails) == 0 {
		return nil, StepResult{Name: "Load", Err: errors.New("no trails in store; run 'trailscout import' first")}
	}
	records := lo.Map(trails, func(t database.Trail, _ int) corpus.Record {
		return recordFromTrail(t)
	})
	return records, StepResult{
		Name:    "Load",
		Summary: fmt.Sprintf("Loaded %d trails", len(records)),
	}
}

func (p *Pipeline) runCorpus(records []corpus.Record) ([]corpus.Record, *corpus.Result, StepResult) {
	log.Info().Msg("step 2/7: building corpus")
	cleaned := corpus.Clean(records)
	built := corpus.Build(cleaned)
	return cleaned, built, StepResult{
		Name: "Corpus",
		Summary: fmt.Sprintf("Built %d documents (%d duplicates dropped, %d malformed review entries skipped)",
			len(built.Documents), len(records)-len(cleaned), built.MalformedReviews),
	}
}

func (p *Pipeline) runVectorize(built *corpus.Result) (*mat.Dense, []string, StepResult) {
	log.Info().Msg("step 3/7: weighing corpus terms")
	v := &vectorize.Vectorizer{
		Stopwords:      vectorize.Stopwords(p.cfg.Text.ExtraStopwords...),
		MaxTerms:       p.cfg.Model.VocabularyCap,
		MinTokenLength: p.cfg.Text.MinTokenLength,
	}
	texts := lo.Map(built.Documents, func(d corpus.Document, _ int) string { return d.Text })
	x, terms := v.FitTransform(texts)
	if x == nil {
		return nil, nil, StepResult{Name: "Vectorize", Err: errors.New("corpus produced no terms (all documents empty)")}
	}
	docs, cols := x.Dims()
	return x, terms, StepResult{
		Name:    "Vectorize",
		Summary: fmt.Sprintf("Weighted %d documents over %d terms", docs, cols),
	}
}

func (p *Pipeline) runTopics(x *mat.Dense) (*topics.Model, StepResult) {
	log.Info().Msg("step 4/7: fitting topic model")
	model, err := topics.Fit(x, topics.Options{
		Topics:  p.cfg.Model.Topics,
		MaxIter: p.cfg.Model.MaxIterations,
		Seed:    p.cfg.Model.Seed,
		Workers: p.cfg.Model.Workers,
	})
	if err != nil {
		return nil, StepResult{Name: "Topics", Err: err}
	}
	return model, StepResult{
		Name: "Topics",
		Summary: fmt.Sprintf("Factorized into %d topics (%d iterations, seed %d)",
			p.cfg.Model.Topics, p.cfg.Model.MaxIterations, p.cfg.Model.Seed),
	}
}

func (p *Pipeline) runFuse(built *corpus.Result, model *topics.Model) (*features.Fused, *features.JoinReport, StepResult) {
	log.Info().Msg("step 5/7: fusing features")
	fused, joins, err := features.Fuse(built.Attributes, documentNames(built.Documents), model.W, model.Labels(),
		features.Options{Weights: p.cfg.Features.Weights})
	if err != nil {
		return nil, nil, StepResult{Name: "Fuse", Err: err}
	}
	rows, cols := fused.Matrix.Dims()
	return fused, joins, StepResult{
		Name:    "Fuse",
		Summary: fmt.Sprintf("Fused %d trails into %d-column feature vectors (%d dropped in join)", rows, cols, joins.Dropped()),
	}
}

func (p *Pipeline) runEngine(built *corpus.Result, fused *features.Fused) StepResult {
	log.Info().Msg("step 6/7: building similarity engine")
	urlByName := make(map[string]string, len(built.Attributes))
	for _, a := range built.Attributes {
		urlByName[a.Name] = a.URL
	}
	urls := lo.Map(fused.Names, func(name string, _ int) string { return urlByName[name] })
	engine, err := recommend.NewEngine(fused.Names, urls, fused.Matrix, recommend.Options{
		WithMean: p.cfg.Scaling.WithMean,
		WithStd:  p.cfg.Scaling.WithStd,
	})
	if err != nil {
		return StepResult{Name: "Engine", Err: err}
	}
	return StepResult{
		Name:    "Engine",
		Summary: fmt.Sprintf("Computed %dx%d similarity matrix", engine.Len(), engine.Len()),
	}
}

func (p *Pipeline) runPersist(runID string, cleaned []corpus.Record, built *corpus.Result,
	x *mat.Dense, terms []string, model *topics.Model,
	fused *features.Fused, joins *features.JoinReport) StepResult {
	log.Info().Msg("step 7/7: persisting run artifacts")

	names := documentNames(built.Documents)
	summaries := report.Summarize(model, names, terms, p.cfg.Model.TopTerms, topicSampleCount)
	markdown := report.Compose(&report.Data{
		TrailCount: len(fused.Names),
		Params: report.Params{
			Topics:         p.cfg.Model.Topics,
			MaxIterations:  p.cfg.Model.MaxIterations,
			Seed:           p.cfg.Model.Seed,
			VocabularyCap:  p.cfg.Model.VocabularyCap,
			VocabularySize: len(terms),
		},
		Topics:            summaries,
		Keywords:          vectorize.TopTerms(x, terms, p.cfg.Model.TopTerms),
		DroppedAttributes: joins.DroppedAttributes,
		DroppedTopics:     joins.DroppedTopics,
	})

	bundlePath := p.cfg.BundlePath()
	bundle := &Bundle{
		RunID:      runID,
		CreatedAt:  time.Now().UTC(),
		Records:    cleaned,
		Documents:  built.Documents,
		Attributes: built.Attributes,
		Features:   NewFeatureTable(fused),
		Scaling:    Scaling{WithMean: p.cfg.Scaling.WithMean, WithStd: p.cfg.Scaling.WithStd},
	}
	if err := bundle.Save(bundlePath); err != nil {
		return StepResult{Name: "Persist", Err: err}
	}
	if err := SaveTopicTables(p.cfg.TopicTablesPath(), model, names, terms); err != nil {
		return StepResult{Name: "Persist", Err: err}
	}

	run := &database.Run{
		ID:           runID,
		TrailCount:   len(fused.Names),
		TopicCount:   p.cfg.Model.Topics,
		DroppedCount: joins.Dropped(),
		Topics: lo.Map(summaries, func(t report.Topic, _ int) database.TopicSummary {
			return database.TopicSummary{Label: t.Label, Terms: t.Terms, TrailCount: t.TrailCount}
		}),
		ReportMarkdown: markdown,
		BundlePath:     bundlePath,
	}
	if err := p.db.InsertRun(run); err != nil {
		return StepResult{Name: "Persist", Err: fmt.Errorf("storing run: %w", err)}
	}
	return StepResult{
		Name:    "Persist",
		Summary: fmt.Sprintf("Stored run %s, bundle at %s", runID, bundlePath),
	}
}

func documentNames(docs []corpus.Document) []string {
	return lo.Map(docs, func(d corpus.Document, _ int) string { return d.Name })
}

func recordFromTrail(t database.Trail) corpus.Record {
	reviews := make([]corpus.Review, len(t.Reviews))
	for i, rv := range t.Reviews {
		reviews[i] = corpus.Review{ID: rv.ID, Fields: rv.Fields}
	}
	return corpus.Record{
		Name:                 t.Name,
		URL:                  t.URL,
		Tags:                 deref(t.Tags),
		MainDescription:      deref(t.Description),
		SecondaryDescription: deref(t.SecondaryDescription),
		Reviews:              reviews,
		Location:             deref(t.Location),
		Difficulty:           deref(t.Difficulty),
		HikeType:             deref(t.HikeType),
		Elevation:            t.Elevation,
		Distance:             t.Distance,
		Rating:               t.Rating,
		RatingCount:          t.RatingCount,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
