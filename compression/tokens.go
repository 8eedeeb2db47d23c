package compression

import (
	"math"
	"unicode/utf8"
)

// Estimator approximates the token cost of a piece of text.
type Estimator func(text string) int

// CharEstimator approximates one token per four characters.
// It is a deterministic heuristic, not a tokenizer.
func CharEstimator(text string) int {
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / 4))
}
