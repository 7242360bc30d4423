// Package report composes the per-run topic report stored with each
// pipeline run and rendered by the web layer.
package report

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/KalinMeier/TrailScout/internal/topics"
	"github.com/KalinMeier/TrailScout/internal/vectorize"
)

// Topic is the digest of one latent topic: its label, top terms, how many
// trails carry it as their majority topic, and the highest-loading trails.
type Topic struct {
	Label      string   `json:"label"`
	Terms      []string `json:"terms"`
	TrailCount int      `json:"trail_count"`
	Samples    []string `json:"samples,omitempty"`
}

// Params echoes the model configuration into the report header.
type Params struct {
	Topics         int
	MaxIterations  int
	Seed           int64
	VocabularyCap  int
	VocabularySize int
}

// Data is everything one run report renders.
type Data struct {
	TrailCount        int
	Params            Params
	Topics            []Topic
	Keywords          []vectorize.TermWeight
	DroppedAttributes []string
	DroppedTopics     []string
}

// Summarize builds the per-topic digests from a fitted model: top terms
// from H, majority-topic trail counts, and the samples highest-loading
// trails per topic from W. names must align with the W rows.
func Summarize(m *topics.Model, names, terms []string, topTerms, samples int) []Topic {
	labels := m.Labels()
	topicTerms := m.TopTerms(terms, topTerms)

	counts := make([]int, len(labels))
	for _, majority := range m.MajorityTopics() {
		counts[majority-1]++
	}

	out := make([]Topic, len(labels))
	for k := range labels {
		out[k] = Topic{
			Label:      labels[k],
			Terms:      topicTerms[k],
			TrailCount: counts[k],
			Samples:    topLoadingNames(m.W, names, k, samples),
		}
	}
	return out
}

// topLoadingNames returns the n trails with the highest loading in topic
// column k, ties keeping row order.
func topLoadingNames(w *mat.Dense, names []string, k, n int) []string {
	rows, _ := w.Dims()
	idx := make([]int, rows)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return w.At(idx[a], k) > w.At(idx[b], k)
	})
	if n > rows {
		n = rows
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = names[idx[i]]
	}
	return out
}

// Compose renders the report markdown: model parameters, one section per
// topic, corpus-wide keywords, and any trails dropped during fusion.
func Compose(d *Data) string {
	var sections []string

	sections = append(sections, fmt.Sprintf(
		"# Trail Topics\n\n%d trails modeled into %d topics (%d iterations, seed %d, vocabulary %d terms of %d cap).",
		d.TrailCount, d.Params.Topics, d.Params.MaxIterations,
		d.Params.Seed, d.Params.VocabularySize, d.Params.VocabularyCap))

	for _, t := range d.Topics {
		section := fmt.Sprintf("## %s\n\n**Top terms:** %s\n\n%d trails carry this as their majority topic.",
			t.Label, strings.Join(t.Terms, ", "), t.TrailCount)
		if len(t.Samples) > 0 {
			var lines []string
			for _, name := range t.Samples {
				lines = append(lines, "- "+name)
			}
			section += "\n\n**Strongest loadings:**\n" + strings.Join(lines, "\n")
		}
		sections = append(sections, section)
	}

	if len(d.Keywords) > 0 {
		var lines []string
		for _, kw := range d.Keywords {
			lines = append(lines, fmt.Sprintf("- %s (%.2f)", kw.Term, kw.Weight))
		}
		sections = append(sections, "## Corpus keywords\n\n"+strings.Join(lines, "\n"))
	}

	if len(d.DroppedAttributes)+len(d.DroppedTopics) > 0 {
		var lines []string
		for _, name := range d.DroppedAttributes {
			lines = append(lines, fmt.Sprintf("- %s (no topic loadings)", name))
		}
		for _, name := range d.DroppedTopics {
			lines = append(lines, fmt.Sprintf("- %s (no hike attributes)", name))
		}
		sections = append(sections,
			"## Dropped in fusion\n\nThese trails were present on only one side of the attribute/topic join and are not part of the similarity index:\n"+
				strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}
