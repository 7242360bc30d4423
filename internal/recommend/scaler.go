package recommend

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes feature columns before similarity computation.
// Mean-centering and unit-variance scaling toggle independently; the
// variance is always computed about the column mean, and zero-variance
// columns divide by 1 so constant features pass through.
type Scaler struct {
	WithMean bool
	WithStd  bool
}

// FitTransform returns a scaled copy of x. The input is left untouched.
func (s *Scaler) FitTransform(x *mat.Dense) *mat.Dense {
	if x == nil {
		return nil
	}
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		mean := stat.Mean(col, nil)

		std := 1.0
		if s.WithStd {
			var variance float64
			for _, v := range col {
				d := v - mean
				variance += d * d
			}
			variance /= float64(rows)
			std = math.Sqrt(variance)
			if std == 0 {
				std = 1
			}
		}

		for i := 0; i < rows; i++ {
			v := col[i]
			if s.WithMean {
				v -= mean
			}
			out.Set(i, j, v/std)
		}
	}
	return out
}
