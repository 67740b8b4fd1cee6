package score

import (
	"errors"
	"fmt"
	"math"
)

// Ensemble combines independent scores into one confidence value. With nil
// weights every score counts equally. The result is rounded to 3 decimals.
func Ensemble(scores, weights []float64) (float64, error) {
	if len(scores) == 0 {
		return 0, errors.New("no scores to combine")
	}

	if weights == nil {
		weights = make([]float64, len(scores))
		for i := range weights {
			weights[i] = 1 / float64(len(scores))
		}
	}

	if len(weights) != len(scores) {
		return 0, fmt.Errorf("got %d weights for %d scores", len(weights), len(scores))
	}

	var sum, total float64
	for i, s := range scores {
		if weights[i] < 0 {
			return 0, fmt.Errorf("negative weight %v at position %d", weights[i], i)
		}
		sum += s * weights[i]
		total += weights[i]
	}

	if total == 0 {
		return 0, errors.New("weights sum to zero")
	}

	return toFixed(sum/total, 3), nil
}

// Clamp01 bounds v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// InRange reports whether v is a finite number within [lo, hi].
func InRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi
}

// Rescale maps a score in [-1, 1] onto [0, 1].
func Rescale(v float64) float64 {
	return Clamp01((v + 1) / 2)
}

func toFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return math.Round(num*output) / output
}
