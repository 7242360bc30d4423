package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/KalinMeier/TrailScout/internal/topics"
	"github.com/KalinMeier/TrailScout/internal/vectorize"
)

func fixtureModel() *topics.Model {
	// Documents 0-2 load on topic 1, document 3 on topic 2.
	return &topics.Model{
		W: mat.NewDense(4, 2, []float64{
			0.9, 0.1,
			0.7, 0.2,
			0.8, 0.0,
			0.1, 0.6,
		}),
		H: mat.NewDense(2, 3, []float64{
			0.9, 0.8, 0.1,
			0.1, 0.2, 0.9,
		}),
	}
}

func TestSummarize(t *testing.T) {
	names := []string{"Eagle Crest", "Bear Lake", "Falls Loop", "Summit Ridge"}
	terms := []string{"lake", "water", "summit"}

	got := Summarize(fixtureModel(), names, terms, 2, 2)
	require.Len(t, got, 2)

	require.Equal(t, "topic_1", got[0].Label)
	require.Equal(t, []string{"lake", "water"}, got[0].Terms)
	require.Equal(t, 3, got[0].TrailCount)
	require.Equal(t, []string{"Eagle Crest", "Falls Loop"}, got[0].Samples)

	require.Equal(t, "topic_2", got[1].Label)
	require.Equal(t, []string{"summit", "water"}, got[1].Terms)
	require.Equal(t, 1, got[1].TrailCount)
	require.Equal(t, []string{"Summit Ridge", "Bear Lake"}, got[1].Samples)
}

func TestSummarizeSampleCap(t *testing.T) {
	names := []string{"A", "B", "C", "D"}
	terms := []string{"x", "y", "z"}

	got := Summarize(fixtureModel(), names, terms, 1, 10)
	require.Len(t, got[0].Samples, 4, "samples capped at document count")
}

func TestCompose(t *testing.T) {
	d := &Data{
		TrailCount: 42,
		Params: Params{
			Topics:         2,
			MaxIterations:  250,
			Seed:           9,
			VocabularyCap:  6000,
			VocabularySize: 312,
		},
		Topics: []Topic{
			{Label: "topic_1", Terms: []string{"lake", "water", "swim"}, TrailCount: 30, Samples: []string{"Bear Lake"}},
			{Label: "topic_2", Terms: []string{"summit", "ridge"}, TrailCount: 12},
		},
		Keywords: []vectorize.TermWeight{
			{Term: "lake", Weight: 12.3456},
			{Term: "summit", Weight: 8.7},
		},
	}

	md := Compose(d)
	require.True(t, strings.HasPrefix(md, "# Trail Topics"))
	require.Contains(t, md, "42 trails modeled into 2 topics")
	require.Contains(t, md, "250 iterations, seed 9, vocabulary 312 terms of 6000 cap")
	require.Contains(t, md, "## topic_1")
	require.Contains(t, md, "**Top terms:** lake, water, swim")
	require.Contains(t, md, "30 trails carry this as their majority topic.")
	require.Contains(t, md, "- Bear Lake")
	require.Contains(t, md, "## Corpus keywords")
	require.Contains(t, md, "- lake (12.35)")
	require.NotContains(t, md, "## Dropped in fusion")
}

func TestComposeJoinLosses(t *testing.T) {
	d := &Data{
		TrailCount:        3,
		Params:            Params{Topics: 1, MaxIterations: 10, VocabularyCap: 100, VocabularySize: 5},
		Topics:            []Topic{{Label: "topic_1", Terms: []string{"x"}, TrailCount: 3}},
		DroppedAttributes: []string{"Lost Lake"},
		DroppedTopics:     []string{"Ghost Ridge"},
	}

	md := Compose(d)
	require.Contains(t, md, "## Dropped in fusion")
	require.Contains(t, md, "- Lost Lake (no topic loadings)")
	require.Contains(t, md, "- Ghost Ridge (no hike attributes)")
}
