package features

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"

	"github.com/KalinMeier/TrailScout/internal/corpus"
)

// columnRenames maps generated one-hot names to their readable forms.
var columnRenames = map[string]string{
	"hike_type_Out & Back":     "out_and_back",
	"hike_type_Point to Point": "point_to_point",
}

// Fused is the fused feature table: one row per trail, identical column
// set and order for every row.
type Fused struct {
	Names   []string
	Columns []string
	Matrix  *mat.Dense
}

// JoinReport lists trails dropped by the inner join between the attribute
// table and the topic loadings.
type JoinReport struct {
	DroppedAttributes []string
	DroppedTopics     []string
}

// Dropped returns the total number of trails lost in the join.
func (r *JoinReport) Dropped() int {
	return len(r.DroppedAttributes) + len(r.DroppedTopics)
}

// Options tunes fusion.
type Options struct {
	// Weights multiplies the one-hot columns generated from a source
	// field, e.g. {"difficulty": 0.5, "hike_type": 0.1}. Fields without
	// an entry keep weight 1.
	Weights map[string]float64
}

// Fuse joins the hike-attributes table with the topic loadings by trail
// name and encodes the result as one numeric vector per trail. Identifier,
// free-text and rating-count columns are dropped; difficulty and hike type
// are one-hot encoded with the alphabetically first category omitted as the
// reference. Column order is fixed: numeric attributes, topic loadings,
// difficulty one-hots, hike-type one-hots.
//
// Trails present on only one side of the join are dropped, logged and
// returned in the report.
func Fuse(attrs []corpus.Attributes, names []string, w *mat.Dense, topicLabels []string, opts Options) (*Fused, *JoinReport, error) {
	if w == nil {
		return nil, nil, fmt.Errorf("no topic loadings to fuse")
	}
	rows, k := w.Dims()
	if rows != len(names) {
		return nil, nil, fmt.Errorf("topic rows (%d) do not match document names (%d)", rows, len(names))
	}
	if k != len(topicLabels) {
		return nil, nil, fmt.Errorf("topic columns (%d) do not match labels (%d)", k, len(topicLabels))
	}

	docRow := make(map[string]int, len(names))
	for i, name := range names {
		docRow[name] = i
	}

	report := &JoinReport{}
	kept := make([]corpus.Attributes, 0, len(attrs))
	attrNames := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		attrNames[a.Name] = true
		if _, ok := docRow[a.Name]; !ok {
			report.DroppedAttributes = append(report.DroppedAttributes, a.Name)
			continue
		}
		kept = append(kept, a)
	}
	for _, name := range names {
		if !attrNames[name] {
			report.DroppedTopics = append(report.DroppedTopics, name)
		}
	}
	if report.Dropped() > 0 {
		log.Warn().
			Strs("attribute_only", report.DroppedAttributes).
			Strs("topic_only", report.DroppedTopics).
			Msg("join dropped trails present on one side only")
	}
	if len(kept) == 0 {
		return nil, report, fmt.Errorf("join produced no rows")
	}

	difficulties := oneHotCategories(kept, func(a corpus.Attributes) string { return a.Difficulty })
	hikeTypes := oneHotCategories(kept, func(a corpus.Attributes) string { return a.HikeType })

	columns := []string{"elevation", "distance", "rating"}
	columns = append(columns, topicLabels...)
	for _, c := range difficulties {
		columns = append(columns, renameColumn("difficulty_"+c))
	}
	for _, c := range hikeTypes {
		columns = append(columns, renameColumn("hike_type_"+c))
	}

	difficultyWeight := weightFor(opts.Weights, "difficulty")
	hikeTypeWeight := weightFor(opts.Weights, "hike_type")

	fusedNames := make([]string, len(kept))
	x := mat.NewDense(len(kept), len(columns), nil)
	row := make([]float64, len(columns))
	for i, a := range kept {
		fusedNames[i] = a.Name
		j := 0
		row[j] = a.Elevation
		j++
		row[j] = a.Distance
		j++
		row[j] = a.Rating
		j++
		src := docRow[a.Name]
		for t := 0; t < k; t++ {
			row[j] = w.At(src, t)
			j++
		}
		for _, c := range difficulties {
			row[j] = oneHot(a.Difficulty == c) * difficultyWeight
			j++
		}
		for _, c := range hikeTypes {
			row[j] = oneHot(a.HikeType == c) * hikeTypeWeight
			j++
		}
		x.SetRow(i, row)
	}

	return &Fused{Names: fusedNames, Columns: columns, Matrix: x}, report, nil
}

// oneHotCategories returns the sorted distinct values of a categorical
// field minus the first one, which becomes the implicit reference category.
func oneHotCategories(attrs []corpus.Attributes, field func(corpus.Attributes) string) []string {
	values := lo.Uniq(lo.Map(attrs, func(a corpus.Attributes, _ int) string { return field(a) }))
	sort.Strings(values)
	if len(values) <= 1 {
		return nil
	}
	return values[1:]
}

func renameColumn(name string) string {
	if renamed, ok := columnRenames[name]; ok {
		return renamed
	}
	return name
}

func weightFor(weights map[string]float64, field string) float64 {
	if w, ok := weights[field]; ok {
		return w
	}
	return 1
}

func oneHot(match bool) float64 {
	if match {
		return 1
	}
	return 0
}
