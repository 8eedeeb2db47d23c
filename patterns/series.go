package patterns

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

type point struct {
	cycle      int
	value      float64
	recordedAt time.Time
}

type series struct {
	entity string
	points []point
}

func (s *series) sortByTime() {
	sort.SliceStable(s.points, func(i, j int) bool {
		a, b := s.points[i], s.points[j]
		if !a.recordedAt.Equal(b.recordedAt) {
			return a.recordedAt.Before(b.recordedAt)
		}
		return a.cycle < b.cycle
	})
}

func (s series) values() []float64 {
	vs := make([]float64, len(s.points))
	for i, p := range s.points {
		vs[i] = p.value
	}
	return vs
}

// popStdDev returns the mean and population standard deviation.
func popStdDev(values []float64) (mean, std float64) {
	return stat.PopMeanStdDev(values, nil)
}

// slope fits value against point index with ordinary least squares.
func slope(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, values, nil, false)
	return beta
}
