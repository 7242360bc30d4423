package vectorize

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
)

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Clean strips punctuation and lowercases. Idempotent, so it is safe to
// apply both when storing corpus text and again before tokenization.
func Clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(punctuation, r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Vectorizer converts a document corpus into a TF-IDF weighted term matrix.
type Vectorizer struct {
	// Stopwords are removed after cleaning. See Stopwords for the default set.
	Stopwords []string
	// MaxTerms caps the vocabulary size, keeping the terms with the highest
	// total corpus frequency. 0 means unlimited.
	MaxTerms int
	// MinTokenLength drops shorter tokens. 0 means the default of 2.
	MinTokenLength int
}

// FitTransform weighs the corpus and returns the document-term matrix plus
// the vocabulary in column order. Weights use smoothed IDF
// (ln((1+N)/(1+df))+1) over raw term counts, with each row L2-normalized.
// The vocabulary is sorted alphabetically; frequency ties during capping
// resolve alphabetically too. An empty corpus yields a nil matrix and an
// empty vocabulary.
func (v *Vectorizer) FitTransform(docs []string) (*mat.Dense, []string) {
	minLen := v.MinTokenLength
	if minLen <= 0 {
		minLen = 2
	}
	stop := make(map[string]bool, len(v.Stopwords))
	for _, w := range v.Stopwords {
		stop[w] = true
	}

	tokenized := make([][]string, len(docs))
	counts := make(map[string]int)
	df := make(map[string]int)
	for i, doc := range docs {
		toks := tokenize(doc, minLen, stop)
		tokenized[i] = toks
		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			counts[t]++
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	if len(counts) == 0 {
		return nil, []string{}
	}

	terms := lo.Keys(counts)
	sort.Strings(terms)
	if v.MaxTerms > 0 && len(terms) > v.MaxTerms {
		// Stable sort on an alphabetical base order makes frequency ties
		// resolve alphabetically.
		sort.SliceStable(terms, func(i, j int) bool {
			return counts[terms[i]] > counts[terms[j]]
		})
		terms = terms[:v.MaxTerms]
		sort.Strings(terms)
	}
	index := make(map[string]int, len(terms))
	for i, t := range terms {
		index[t] = i
	}

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for i, t := range terms {
		idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	x := mat.NewDense(len(docs), len(terms), nil)
	row := make([]float64, len(terms))
	for i, toks := range tokenized {
		for j := range row {
			row[j] = 0
		}
		for _, t := range toks {
			if j, ok := index[t]; ok {
				row[j]++
			}
		}
		var norm float64
		for j := range row {
			row[j] *= idf[j]
			norm += row[j] * row[j]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for j := range row {
				row[j] /= norm
			}
		}
		x.SetRow(i, row)
	}
	return x, terms
}

func tokenize(doc string, minLen int, stop map[string]bool) []string {
	var toks []string
	for _, tok := range strings.Fields(Clean(doc)) {
		if utf8.RuneCountInString(tok) < minLen || stop[tok] {
			continue
		}
		toks = append(toks, tok)
	}
	return toks
}

// TermWeight pairs a vocabulary term with an aggregate weight.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// TopTerms sums the matrix column-wise and returns the n terms with the
// highest aggregate weight, ties resolving by column order.
func TopTerms(x *mat.Dense, terms []string, n int) []TermWeight {
	if x == nil || len(terms) == 0 || n <= 0 {
		return nil
	}
	_, c := x.Dims()
	sums := make([]TermWeight, c)
	for j := 0; j < c; j++ {
		sums[j] = TermWeight{Term: terms[j], Weight: mat.Sum(x.ColView(j))}
	}
	sort.SliceStable(sums, func(i, j int) bool {
		return sums[i].Weight > sums[j].Weight
	})
	if n > len(sums) {
		n = len(sums)
	}
	return sums[:n]
}
