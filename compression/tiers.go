package compression

import "fmt"

type Detail string

const (
	DetailFull      Detail = "full"
	DetailMedium    Detail = "medium"
	DetailAggregate Detail = "aggregate"
)

// Tier covers cycles whose zero-based age (0 = newest) is below MaxAge.
// A MaxAge of zero leaves the tier unbounded; it must come last.
type Tier struct {
	MaxAge int    `yaml:"max_age" json:"max_age" validate:"gte=0"`
	Detail Detail `yaml:"detail" json:"detail" validate:"required,oneof=full medium aggregate"`
}

// DefaultTiers keeps the 10 newest cycles at full detail, the next 20 at
// medium detail and aggregates the rest.
var DefaultTiers = []Tier{
	{MaxAge: 10, Detail: DetailFull},
	{MaxAge: 30, Detail: DetailMedium},
	{MaxAge: 0, Detail: DetailAggregate},
}

// ValidateTiers checks that bounded tiers grow strictly and that only the last tier is unbounded.
func ValidateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("no tiers configured")
	}
	prev := 0
	for i, t := range tiers {
		switch t.Detail {
		case DetailFull, DetailMedium, DetailAggregate:
		default:
			return fmt.Errorf("tier %d: unknown detail %q", i, t.Detail)
		}
		if t.MaxAge == 0 {
			if i != len(tiers)-1 {
				return fmt.Errorf("tier %d: only the last tier may be unbounded", i)
			}
			continue
		}
		if t.MaxAge <= prev {
			return fmt.Errorf("tier %d: max_age %d must exceed %d", i, t.MaxAge, prev)
		}
		prev = t.MaxAge
	}
	return nil
}

type span struct {
	tier       Tier
	start, end int // ages [start, end)
}

// split partitions n cycles into consecutive tier spans; empty spans are dropped.
// Cycles beyond the last bounded tier are left out when no unbounded tier exists.
func split(tiers []Tier, n int) []span {
	var out []span
	start := 0
	for _, t := range tiers {
		if start >= n {
			break
		}
		end := n
		if t.MaxAge > 0 && t.MaxAge < n {
			end = t.MaxAge
		}
		if end > start {
			out = append(out, span{tier: t, start: start, end: end})
		}
		start = end
		if t.MaxAge == 0 {
			break
		}
	}
	return out
}
