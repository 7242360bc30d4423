package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"

	"github.com/KalinMeier/TrailScout/internal/corpus"
	"github.com/KalinMeier/TrailScout/internal/features"
	"github.com/KalinMeier/TrailScout/internal/recommend"
	"github.com/KalinMeier/TrailScout/internal/topics"
)

// FeatureTable is the fused feature matrix in serializable form. Row order
// matches Names; every row has one cell per column in Columns.
type FeatureTable struct {
	Names   []string    `json:"names"`
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

// Scaling records the flags the similarity engine was built with, so a
// loaded bundle rebuilds the exact same engine.
type Scaling struct {
	WithMean bool `json:"with_mean"`
	WithStd  bool `json:"with_std"`
}

// Bundle is the persisted artifact of one pipeline run: the cleaned
// records, the corpus and attribute tables, and the fused feature table
// with its scaling flags. It is sufficient to rebuild the similarity
// engine without re-running factorization.
type Bundle struct {
	RunID      string              `json:"run_id"`
	CreatedAt  time.Time           `json:"created_at"`
	Records    []corpus.Record     `json:"records"`
	Documents  []corpus.Document   `json:"documents"`
	Attributes []corpus.Attributes `json:"attributes"`
	Features   FeatureTable        `json:"features"`
	Scaling    Scaling             `json:"scaling"`
}

// NewFeatureTable copies a fused matrix into its serializable form.
func NewFeatureTable(f *features.Fused) FeatureTable {
	rows := make([][]float64, len(f.Names))
	for i := range rows {
		rows[i] = append([]float64(nil), f.Matrix.RawRowView(i)...)
	}
	return FeatureTable{Names: f.Names, Columns: f.Columns, Rows: rows}
}

// Matrix rebuilds the dense feature matrix from the stored rows, or nil
// when the table is empty.
func (t *FeatureTable) Matrix() *mat.Dense {
	if len(t.Rows) == 0 || len(t.Columns) == 0 {
		return nil
	}
	x := mat.NewDense(len(t.Rows), len(t.Columns), nil)
	for i, row := range t.Rows {
		x.SetRow(i, row)
	}
	return x
}

// Save writes the bundle as JSON. Floats serialize in shortest round-trip
// form, so a saved and reloaded bundle is numerically identical.
func (b *Bundle) Save(path string) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding bundle: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating bundle directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}
	return nil
}

// TopicTables pairs the two labeled tables of a fitted topic model: one
// row per document with the majority topic appended, and one row per
// topic over the vocabulary.
type TopicTables struct {
	Documents *topics.Table `json:"documents"`
	Terms     *topics.Table `json:"terms"`
}

// SaveTopicTables writes the rounded topic tables next to the bundle so
// a run's loadings can be inspected without refitting the model.
func SaveTopicTables(path string, model *topics.Model, names, terms []string) error {
	tables := TopicTables{Documents: model.DocTable(names), Terms: model.TermTable(terms)}
	data, err := json.MarshalIndent(&tables, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding topic tables: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing topic tables: %w", err)
	}
	return nil
}

// LoadBundle reads a bundle written by Save.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	return &b, nil
}

// Engine rebuilds the similarity engine from the stored feature table and
// scaling flags.
func (b *Bundle) Engine() (*recommend.Engine, error) {
	urls := make(map[string]string, len(b.Attributes))
	for _, a := range b.Attributes {
		urls[a.Name] = a.URL
	}
	urlList := make([]string, len(b.Features.Names))
	for i, name := range b.Features.Names {
		urlList[i] = urls[name]
	}
	return recommend.NewEngine(b.Features.Names, urlList, b.Features.Matrix(), recommend.Options{
		WithMean: b.Scaling.WithMean,
		WithStd:  b.Scaling.WithStd,
	})
}

// TagIndex returns each trail's tag text keyed by post-dedup name, for
// tag-based result filters.
func (b *Bundle) TagIndex() map[string]string {
	tags := make(map[string]string, len(b.Records))
	for _, r := range b.Records {
		tags[r.Name] = r.Tags
	}
	return tags
}
