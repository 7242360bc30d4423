package recommend

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrUnknownTrail reports a query naming a trail absent from the index.
var ErrUnknownTrail = errors.New("unknown trail")

// Recommendation is one ranked result.
type Recommendation struct {
	Name  string  `json:"name"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// Options toggles feature scaling for a new engine.
type Options struct {
	WithMean bool
	WithStd  bool
}

// Engine answers similarity queries over a fused feature matrix. It is
// immutable after construction, so concurrent queries need no locking.
type Engine struct {
	names  []string
	urls   []string
	index  map[string]int
	scaled *mat.Dense
	sim    *mat.Dense
}

// NewEngine scales the feature matrix and precomputes the pairwise cosine
// similarity matrix. names, urls and the matrix rows must align.
func NewEngine(names, urls []string, features *mat.Dense, opts Options) (*Engine, error) {
	if features == nil {
		return nil, errors.New("no feature matrix")
	}
	rows, _ := features.Dims()
	if rows != len(names) || rows != len(urls) {
		return nil, fmt.Errorf("feature rows (%d) do not match names (%d) and urls (%d)",
			rows, len(names), len(urls))
	}

	scaler := &Scaler{WithMean: opts.WithMean, WithStd: opts.WithStd}
	scaled := scaler.FitTransform(features)

	index := make(map[string]int, len(names))
	for i, name := range names {
		index[name] = i
	}

	return &Engine{
		names:  names,
		urls:   urls,
		index:  index,
		scaled: scaled,
		sim:    cosineMatrix(scaled),
	}, nil
}

// Len returns the number of indexed trails.
func (e *Engine) Len() int {
	return len(e.names)
}

// Names returns the indexed trail names in row order.
func (e *Engine) Names() []string {
	out := make([]string, len(e.names))
	copy(out, e.names)
	return out
}

// Has reports whether a trail name is indexed.
func (e *Engine) Has(name string) bool {
	_, ok := e.index[name]
	return ok
}

// FromSeed ranks all trails by similarity to the seed, excluding the seed
// itself by name, and returns up to n results. Score ties keep row order.
func (e *Engine) FromSeed(seed string, n int) ([]Recommendation, error) {
	src, ok := e.index[seed]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTrail, seed)
	}

	order := e.rankedOrder(func(i int) float64 { return e.sim.At(src, i) })
	recs := make([]Recommendation, 0, n)
	for _, i := range order {
		if i == src {
			continue
		}
		if len(recs) == n {
			break
		}
		recs = append(recs, Recommendation{
			Name:  e.names[i],
			URL:   e.urls[i],
			Score: e.sim.At(src, i),
		})
	}
	return recs, nil
}

// FromProfile builds a profile vector as the elementwise sum of the liked
// trails' scaled feature vectors, ranks all trails by cosine against it,
// then skips as many top entries as there are liked trails before taking n.
// The skip is positional, not name-based: it assumes the liked trails
// occupy the top ranks, which can leave a liked trail in the results when
// another trail outranks it. Kept as documented behavior.
func (e *Engine) FromProfile(liked []string, n int) ([]Recommendation, error) {
	if len(liked) == 0 {
		return nil, errors.New("no liked trails")
	}
	_, cols := e.scaled.Dims()
	profile := make([]float64, cols)
	for _, name := range liked {
		i, ok := e.index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTrail, name)
		}
		row := e.scaled.RawRowView(i)
		for j, v := range row {
			profile[j] += v
		}
	}

	profileVec := mat.NewVecDense(cols, profile)
	profileNorm := mat.Norm(profileVec, 2)
	scores := make([]float64, len(e.names))
	for i := range scores {
		scores[i] = cosine(e.scaled.RowView(i), profileVec, profileNorm)
	}

	order := e.rankedOrder(func(i int) float64 { return scores[i] })

	recs := make([]Recommendation, 0, n)
	for pos := len(liked); pos < len(order) && len(recs) < n; pos++ {
		i := order[pos]
		recs = append(recs, Recommendation{
			Name:  e.names[i],
			URL:   e.urls[i],
			Score: scores[i],
		})
	}
	return recs, nil
}

// rankedOrder returns row indices sorted by descending score, ties keeping
// original row order.
func (e *Engine) rankedOrder(score func(int) float64) []int {
	order := make([]int, len(e.names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return score(order[a]) > score(order[b])
	})
	return order
}

// cosineMatrix computes pairwise cosine similarity between all rows.
// Zero rows yield similarity 0; the diagonal is exactly 1 for nonzero rows.
func cosineMatrix(x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	norms := make([]float64, rows)
	for i := 0; i < rows; i++ {
		norms[i] = mat.Norm(x.RowView(i), 2)
	}

	sim := mat.NewDense(rows, rows, nil)
	for i := 0; i < rows; i++ {
		if norms[i] > 0 {
			sim.Set(i, i, 1)
		}
		for j := i + 1; j < rows; j++ {
			var s float64
			if norms[i] > 0 && norms[j] > 0 {
				s = mat.Dot(x.RowView(i), x.RowView(j)) / (norms[i] * norms[j])
			}
			sim.Set(i, j, s)
			sim.Set(j, i, s)
		}
	}
	return sim
}

// cosine computes similarity between a row vector and a precomputed-norm
// profile vector.
func cosine(row, profile mat.Vector, profileNorm float64) float64 {
	rowNorm := mat.Norm(row, 2)
	if rowNorm == 0 || profileNorm == 0 {
		return 0
	}
	return mat.Dot(row, profile) / (rowNorm * profileNorm)
}
