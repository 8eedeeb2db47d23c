// Package compression renders cycle history as bounded context text and checks
// the token budget of a full prompt.
package compression

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/j3m2b/Baseball-Scientist/models"
)

const (
	DefaultMaxCycles     = 100
	FullDetailCycleCost  = 200
	emptyHistoryText     = "No previous research cycles yet."
	historyHeader        = "### Previous Research Cycles (for reflection only):\n\n"
	unavailableRatio     = "N/A"
	defaultBatchSize     = 10
	defaultFullClaims    = 8
	defaultFullEstimates = 6
	defaultMediumItems   = 3
)

type Options struct {
	Tiers              []Tier
	BatchSize          int
	FullClaims         int
	FullEstimates      int
	MediumClaims       int
	MediumEstimates    int
	FullDetailPerCycle int
	Estimator          Estimator
}

func DefaultOptions() Options {
	return Options{
		Tiers:              DefaultTiers,
		BatchSize:          defaultBatchSize,
		FullClaims:         defaultFullClaims,
		FullEstimates:      defaultFullEstimates,
		MediumClaims:       defaultMediumItems,
		MediumEstimates:    defaultMediumItems,
		FullDetailPerCycle: FullDetailCycleCost,
		Estimator:          CharEstimator,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if len(o.Tiers) == 0 {
		o.Tiers = d.Tiers
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.FullClaims <= 0 {
		o.FullClaims = d.FullClaims
	}
	if o.FullEstimates <= 0 {
		o.FullEstimates = d.FullEstimates
	}
	if o.MediumClaims <= 0 {
		o.MediumClaims = d.MediumClaims
	}
	if o.MediumEstimates <= 0 {
		o.MediumEstimates = d.MediumEstimates
	}
	if o.FullDetailPerCycle <= 0 {
		o.FullDetailPerCycle = d.FullDetailPerCycle
	}
	if o.Estimator == nil {
		o.Estimator = d.Estimator
	}
	return o
}

type Result struct {
	Text             string `json:"compressed"`
	TokenEstimate    int    `json:"token_count"`
	CyclesIncluded   int    `json:"cycles_included"`
	CompressionRatio string `json:"compression_ratio"`
}

// Compress renders at most maxCycles of the newest records in history
// (newest first). Adding older cycles only ever appends text, so the token
// estimate never shrinks as maxCycles grows.
func Compress(history models.History, maxCycles int, opts Options) Result {
	opts = opts.withDefaults()
	if maxCycles <= 0 {
		maxCycles = DefaultMaxCycles
	}
	included := history.Limit(maxCycles)
	if len(included) == 0 {
		return Result{
			Text:             emptyHistoryText,
			TokenEstimate:    opts.Estimator(emptyHistoryText),
			CompressionRatio: unavailableRatio,
		}
	}

	var b strings.Builder
	b.WriteString(historyHeader)
	numberWidth := len(strconv.Itoa(included.Newest()))
	for _, sp := range split(opts.Tiers, len(included)) {
		records := included[sp.start:sp.end]
		if sp.start > 0 {
			b.WriteString(sectionHeader(sp))
		}
		switch sp.tier.Detail {
		case DetailFull:
			for _, rec := range records {
				writeFull(&b, rec, opts)
			}
		case DetailMedium:
			for _, rec := range records {
				writeMedium(&b, rec, opts)
			}
			b.WriteString("\n")
		case DetailAggregate:
			for i := 0; i < len(records); i += opts.BatchSize {
				end := min(i+opts.BatchSize, len(records))
				writeBatch(&b, records[i:end], numberWidth, opts.BatchSize)
			}
			b.WriteString("\n")
		}
	}

	text := b.String()
	tokens := opts.Estimator(text)
	return Result{
		Text:             text,
		TokenEstimate:    tokens,
		CyclesIncluded:   len(included),
		CompressionRatio: ratio(tokens, len(included)*opts.FullDetailPerCycle),
	}
}

func ratio(compressed, full int) string {
	if full <= 0 {
		return unavailableRatio
	}
	return fmt.Sprintf("%.0f%%", (1-float64(compressed)/float64(full))*100)
}

func sectionHeader(sp span) string {
	label := "Compressed Summary"
	switch sp.tier.Detail {
	case DetailFull:
		label = "Full Detail"
	case DetailMedium:
		label = "Medium Detail"
	}
	if sp.tier.MaxAge == 0 {
		return fmt.Sprintf("### Cycles %d+ (%s):\n\n", sp.start+1, label)
	}
	return fmt.Sprintf("### Cycles %d-%d (%s):\n\n", sp.start+1, sp.tier.MaxAge, label)
}

func writeFull(b *strings.Builder, rec models.CycleRecord, opts Options) {
	c := rec.Cycle
	fmt.Fprintf(b, "Cycle %d (%s):\n%s\n%s\n", c.Number, c.CreatedAt.Format("2006-01-02"), c.Title, c.Summary)

	claims := rec.Claims
	if len(claims) > opts.FullClaims {
		claims = claims[:opts.FullClaims]
	}
	if len(claims) > 0 {
		parts := make([]string, len(claims))
		for i, cr := range claims {
			parts[i] = fmt.Sprintf("%s (%s, Surprise %s)", cr.Claim.Text, mark(cr.Claim.InitialValid), cr.Claim.Surprise)
		}
		fmt.Fprintf(b, "Key Claims: %s\n", strings.Join(parts, "; "))
	}

	if top := topEstimates(rec, opts.FullEstimates); len(top) > 0 {
		parts := make([]string, len(top))
		for i, e := range top {
			parts[i] = fmt.Sprintf("%s %s%%", e.Entity, formatProbability(e.Probability))
		}
		fmt.Fprintf(b, "Top Entities: %s\n", strings.Join(parts, ", "))
	}

	if learned, ok := rec.Learned(); ok {
		fmt.Fprintf(b, "Learned: %s\n", learned)
	}
	b.WriteString("\n")
}

func writeMedium(b *strings.Builder, rec models.CycleRecord, opts Options) {
	fmt.Fprintf(b, "Cycle %d: %s. ", rec.Cycle.Number, rec.Cycle.Title)

	if len(rec.Claims) > 0 {
		validated := 0
		for _, c := range rec.Claims {
			if c.Claim.InitialValid {
				validated++
			}
		}
		fmt.Fprintf(b, "Validated %d/%d claims. ", validated, len(rec.Claims))

		key := keyClaims(rec.Claims, opts.MediumClaims)
		parts := make([]string, len(key))
		for i, c := range key {
			parts[i] = fmt.Sprintf("%s (%s)", c.Text, mark(c.InitialValid))
		}
		fmt.Fprintf(b, "Key: %s. ", strings.Join(parts, "; "))
	}

	if top := topEstimates(rec, opts.MediumEstimates); len(top) > 0 {
		parts := make([]string, len(top))
		for i, e := range top {
			parts[i] = fmt.Sprintf("%s (%s%%)", e.Entity, formatProbability(e.Probability))
		}
		fmt.Fprintf(b, "Top: %s. ", strings.Join(parts, ", "))
	}

	if learned, ok := rec.Learned(); ok {
		fmt.Fprintf(b, "Learned: %s", learned)
	}
	b.WriteString("\n")
}

// writeBatch summarises a run of cycles on one line. Numeric fields are
// fixed-width and counts only grow, so appending a cycle never shortens the line.
func writeBatch(b *strings.Builder, batch []models.CycleRecord, numberWidth, batchSize int) {
	oldest, newest := batch[len(batch)-1].Cycle.Number, batch[0].Cycle.Number
	total, validated := 0, 0
	leaders := make(map[string]int)
	for _, rec := range batch {
		for _, c := range rec.Claims {
			total++
			if c.Claim.InitialValid {
				validated++
			}
		}
		for _, e := range rec.Estimates {
			if e.Estimate.Rank == 1 {
				leaders[e.Estimate.Entity]++
			}
		}
	}

	rate := "  --"
	if total > 0 {
		rate = fmt.Sprintf("%3.0f%%", float64(validated)/float64(total)*100)
	}
	countWidth := len(strconv.Itoa(batchSize))
	fmt.Fprintf(b, "Cycles %*d-%*d: %*d cycles, %d/%d claims validated (%s), most predicted: %s\n",
		numberWidth, oldest, numberWidth, newest, countWidth, len(batch), validated, total, rate, formatLeaders(leaders))
}

// formatLeaders lists rank-1 entities, the modal one first; ties break by name.
func formatLeaders(leaders map[string]int) string {
	if len(leaders) == 0 {
		return "n/a"
	}
	names := make([]string, 0, len(leaders))
	for name := range leaders {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if leaders[names[i]] != leaders[names[j]] {
			return leaders[names[i]] > leaders[names[j]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s x%d", name, leaders[name])
	}
	return strings.Join(parts, ", ")
}

func topEstimates(rec models.CycleRecord, n int) []models.Estimate {
	ests := make([]models.Estimate, 0, len(rec.Estimates))
	for _, e := range rec.Estimates {
		ests = append(ests, e.Estimate)
	}
	sort.SliceStable(ests, func(i, j int) bool { return ests[i].Rank < ests[j].Rank })
	if len(ests) > n {
		ests = ests[:n]
	}
	return ests
}

// keyClaims picks up to n claims, validated ones first, keeping recorded order otherwise.
func keyClaims(claims []models.ClaimRecord, n int) []models.Claim {
	out := make([]models.Claim, 0, len(claims))
	for _, c := range claims {
		out = append(out, c.Claim)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].InitialValid && !out[j].InitialValid })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func mark(valid bool) string {
	if valid {
		return "✓"
	}
	return "✗"
}

func formatProbability(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
