package compression

import (
	"math"

	"github.com/j3m2b/Baseball-Scientist/models"
)

const DefaultProjectionCycles = 100

type Stats struct {
	TotalCycles               int    `json:"total_cycles"`
	EstimatedFullDetailTokens int    `json:"estimated_full_detail_tokens"`
	CompressedTokens          int    `json:"compressed_tokens"`
	CompressionRatio          string `json:"compression_ratio"`
	ProjectedAt               int    `json:"projected_at_cycles"`
	ProjectedTokens           int    `json:"projected_tokens"`
}

// ComputeStats compares the compressed digest with an uncompressed estimate
// and projects the digest cost linearly to projectAt cycles.
func ComputeStats(totalCycles int, history models.History, maxCycles, projectAt int, opts Options) Stats {
	opts = opts.withDefaults()
	if projectAt <= 0 {
		projectAt = DefaultProjectionCycles
	}
	res := Compress(history, maxCycles, opts)

	st := Stats{
		TotalCycles:               totalCycles,
		EstimatedFullDetailTokens: totalCycles * opts.FullDetailPerCycle,
		CompressedTokens:          res.TokenEstimate,
		CompressionRatio:          "0%",
		ProjectedAt:               projectAt,
	}
	if st.EstimatedFullDetailTokens > 0 {
		st.CompressionRatio = ratio(st.CompressedTokens, st.EstimatedFullDetailTokens)
	}
	if totalCycles > 0 {
		st.ProjectedTokens = int(math.Ceil(float64(st.CompressedTokens) / float64(totalCycles) * float64(projectAt)))
	}
	return st
}
