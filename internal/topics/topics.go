package topics

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// ErrTopicCount reports an infeasible topic count for the given matrix.
var ErrTopicCount = errors.New("topic count exceeds matrix dimensions")

// eps keeps multiplicative-update denominators away from zero.
const eps = 1e-9

// Options configures one factorization.
type Options struct {
	// Topics is the number of latent components K.
	Topics int

	// MaxIter is the fixed iteration budget. Every run executes the full
	// budget so results depend only on the seed.
	MaxIter int

	// Seed fixes the factor initialization.
	Seed int64

	// Workers is the number of goroutines for the update loops.
	// If <= 0, defaults to the number of CPUs. The worker count never
	// changes the result: workers split rows and each row's arithmetic
	// stays sequential.
	Workers int
}

// Model holds the factorization output: W (documents x K) and H (K x terms).
// Both are non-negative. W is unrounded; rounding happens only in the
// presentation tables.
type Model struct {
	W *mat.Dense
	H *mat.Dense
}

// Fit factorizes a non-negative term-weight matrix into K components using
// multiplicative updates (Lee & Seung). Deterministic under a fixed seed.
func Fit(x *mat.Dense, opts Options) (*Model, error) {
	if x == nil {
		return nil, errors.New("term matrix is empty")
	}
	docs, terms := x.Dims()
	k := opts.Topics
	if k <= 0 || k > docs || k > terms {
		return nil, fmt.Errorf("%w: k=%d with %d documents and %d terms",
			ErrTopicCount, k, docs, terms)
	}
	if opts.MaxIter <= 0 {
		return nil, errors.New("iteration cap must be positive")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	w, h := initFactors(x, k, opts.Seed)

	for iter := 0; iter < opts.MaxIter; iter++ {
		// H <- H * (W'X) / (W'WH)
		var wtx, wtw, wtwh mat.Dense
		wtx.Mul(w.T(), x)
		wtw.Mul(w.T(), w)
		wtwh.Mul(&wtw, h)
		parallelRows(k, workers, func(i int) {
			for j := 0; j < terms; j++ {
				h.Set(i, j, h.At(i, j)*wtx.At(i, j)/(wtwh.At(i, j)+eps))
			}
		})

		// W <- W * (XH') / (WHH')
		var xht, hht, whht mat.Dense
		xht.Mul(x, h.T())
		hht.Mul(h, h.T())
		whht.Mul(w, &hht)
		parallelRows(docs, workers, func(i int) {
			for j := 0; j < k; j++ {
				w.Set(i, j, w.At(i, j)*xht.At(i, j)/(whht.At(i, j)+eps))
			}
		})
	}

	return &Model{W: w, H: h}, nil
}

// initFactors seeds W and H with scaled absolute gaussian noise. H fills
// before W so a given seed always produces the same pair.
func initFactors(x *mat.Dense, k int, seed int64) (*mat.Dense, *mat.Dense) {
	docs, terms := x.Dims()
	avg := math.Sqrt(mat.Sum(x) / float64(docs*terms) / float64(k))

	rng := rand.New(rand.NewSource(seed))
	h := mat.NewDense(k, terms, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < terms; j++ {
			h.Set(i, j, avg*math.Abs(rng.NormFloat64()))
		}
	}
	w := mat.NewDense(docs, k, nil)
	for i := 0; i < docs; i++ {
		for j := 0; j < k; j++ {
			w.Set(i, j, avg*math.Abs(rng.NormFloat64()))
		}
	}
	return w, h
}

// parallelRows runs fn over rows [0, n), chunked across workers. Row order
// inside a chunk is sequential, so output is independent of worker count.
func parallelRows(n, workers int, fn func(row int)) {
	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Labels returns the topic column names, "topic_1".."topic_K".
func (m *Model) Labels() []string {
	k, _ := m.H.Dims()
	labels := make([]string, k)
	for i := range labels {
		labels[i] = fmt.Sprintf("topic_%d", i+1)
	}
	return labels
}

// TopTerms returns the n highest-weighted vocabulary terms per topic,
// ranked by the topic's H row. Ties resolve by column order.
func (m *Model) TopTerms(terms []string, n int) [][]string {
	k, cols := m.H.Dims()
	out := make([][]string, k)
	for i := 0; i < k; i++ {
		idx := make([]int, cols)
		for j := range idx {
			idx[j] = j
		}
		row := m.H.RawRowView(i)
		sort.SliceStable(idx, func(a, b int) bool {
			return row[idx[a]] > row[idx[b]]
		})
		limit := n
		if limit > cols {
			limit = cols
		}
		top := make([]string, limit)
		for j := 0; j < limit; j++ {
			top[j] = terms[idx[j]]
		}
		out[i] = top
	}
	return out
}

// MajorityTopics assigns each document the topic with its highest loading.
// Labels are 1-indexed, matching the topic_1..topic_K naming.
func (m *Model) MajorityTopics() []int {
	docs, k := m.W.Dims()
	out := make([]int, docs)
	for i := 0; i < docs; i++ {
		best := 0
		bestVal := m.W.At(i, 0)
		for j := 1; j < k; j++ {
			if v := m.W.At(i, j); v > bestVal {
				bestVal = v
				best = j
			}
		}
		out[i] = best + 1
	}
	return out
}

// Table is a labeled numeric table for human-readable output.
type Table struct {
	RowLabels []string    `json:"row_labels"`
	ColLabels []string    `json:"col_labels"`
	Cells     [][]float64 `json:"cells"`
}

// DocTable returns document-topic loadings rounded to 2 decimals, one row
// per document, with the majority topic appended as the last column.
func (m *Model) DocTable(names []string) *Table {
	docs, k := m.W.Dims()
	majorities := m.MajorityTopics()

	cells := make([][]float64, docs)
	for i := 0; i < docs; i++ {
		row := make([]float64, k+1)
		for j := 0; j < k; j++ {
			row[j] = round2(m.W.At(i, j))
		}
		row[k] = float64(majorities[i])
		cells[i] = row
	}
	return &Table{
		RowLabels: names,
		ColLabels: append(m.Labels(), "majority_topic"),
		Cells:     cells,
	}
}

// TermTable returns topic-term loadings rounded to 2 decimals, one row
// per topic.
func (m *Model) TermTable(terms []string) *Table {
	k, cols := m.H.Dims()
	cells := make([][]float64, k)
	for i := 0; i < k; i++ {
		row := make([]float64, cols)
		for j := 0; j < cols; j++ {
			row[j] = round2(m.H.At(i, j))
		}
		cells[i] = row
	}
	return &Table{
		RowLabels: m.Labels(),
		ColLabels: terms,
		Cells:     cells,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
