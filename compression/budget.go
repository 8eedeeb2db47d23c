package compression

import "fmt"

const (
	DefaultSoftLimit = 50000
	DefaultHardLimit = 150000
)

type Budget struct {
	Soft int `yaml:"soft" json:"soft" validate:"gt=0"`
	Hard int `yaml:"hard" json:"hard" validate:"gtfield=Soft"`
}

func DefaultBudget() Budget {
	return Budget{Soft: DefaultSoftLimit, Hard: DefaultHardLimit}
}

type Level string

const (
	LevelOK       Level = "ok"
	LevelWarning  Level = "warning"
	LevelExceeded Level = "exceeded"
)

// Component is one named piece of prompt context.
type Component struct {
	Name string
	Text string
}

// PromptComponents names the context pieces assembled for a research cycle.
type PromptComponents struct {
	SystemPreamble string
	History        string
	Patterns       string
	Accuracy       string
	TuningConfig   string
	DomainData     string
}

func (p PromptComponents) Components() []Component {
	return []Component{
		{Name: "system_preamble", Text: p.SystemPreamble},
		{Name: "history", Text: p.History},
		{Name: "patterns", Text: p.Patterns},
		{Name: "accuracy", Text: p.Accuracy},
		{Name: "tuning_config", Text: p.TuningConfig},
		{Name: "domain_data", Text: p.DomainData},
	}
}

type BudgetReport struct {
	WithinHardLimit bool           `json:"within_hard_limit"`
	Total           int            `json:"total_tokens"`
	PerComponent    map[string]int `json:"breakdown"`
	Level           Level          `json:"level"`
	Warning         string         `json:"warning,omitempty"`
}

// CheckBudget sums the estimated tokens of every component and classifies the
// total against the soft and hard limits. It reports only; callers decide how to shrink.
func CheckBudget(components []Component, budget Budget, est Estimator) BudgetReport {
	if est == nil {
		est = CharEstimator
	}
	if budget.Soft <= 0 || budget.Hard <= 0 {
		budget = DefaultBudget()
	}
	report := BudgetReport{PerComponent: make(map[string]int, len(components)), Level: LevelOK}
	for _, c := range components {
		n := est(c.Text)
		report.PerComponent[c.Name] += n
		report.Total += n
	}

	switch {
	case report.Total > budget.Hard:
		report.Level = LevelExceeded
		report.Warning = fmt.Sprintf("Context exceeds hard limit! %d > %d tokens. Response may fail.", report.Total, budget.Hard)
	case report.Total > budget.Soft:
		report.Level = LevelWarning
		report.Warning = fmt.Sprintf("Context exceeds target budget. %d > %d tokens. Consider more aggressive compression.", report.Total, budget.Soft)
	}
	report.WithinHardLimit = report.Total <= budget.Hard
	return report
}
