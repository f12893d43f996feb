// Package filtering narrows a ranked shortlist for review. Filters only drop
// entries; the ranking order is preserved.
package filtering

import (
	"context"
	"fmt"

	"github.com/spigell/talentscout/internal/ranking"
	"go.uber.org/zap"
)

// Filter represents a single filtering step applied to a shortlist.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, s ranking.RankedShortlist) (ranking.RankedShortlist, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Logger *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int `json:"initial"`
	Dropped int `json:"dropped"`
	Left    int `json:"left"`
}

// StepResult pairs a step outcome with the filter that produced it.
type StepResult struct {
	Name string `json:"name"`
	Step
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	// MinScore drops candidates scoring below it.
	MinScore int `mapstructure:"min-score" json:"min_score" validate:"gte=0,lte=100"`
	// RequiredSkills lists skills every kept candidate must have matched.
	RequiredSkills []string `mapstructure:"required-skills" json:"required_skills"`
	// RequireQualitative drops results whose qualitative review was unavailable.
	RequireQualitative bool `mapstructure:"require-qualitative" json:"require_qualitative"`
	// TopN keeps only the first N results. Zero keeps all.
	TopN int `mapstructure:"top-n" json:"top_n" validate:"gte=0"`
	// ExcludeCandidates lists candidate ids removed from the shortlist.
	ExcludeCandidates []string `mapstructure:"exclude-candidates" json:"exclude_candidates"`
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// toggle carries the enabled state shared by all filters.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

// DefaultSteps returns every filter in the order they are applied.
func DefaultSteps() []Filter {
	return []Filter{
		NewExcludeCandidates(),
		NewMinScore(),
		NewRequiredSkills(),
		NewQualitative(),
		NewTopN(),
	}
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run validates the enabled filters and applies them in order. Filtering works
// on a finished shortlist, so a done context does not stop it.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, s ranking.RankedShortlist) (ranking.RankedShortlist, []StepResult, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return s, nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		if !step.IsEnabled() {
			deps.Logger.Info("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, deps, s)
		if err != nil {
			return s, results, fmt.Errorf("%s: %w", step.Name(), err)
		}

		deps.Logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		results = append(results, StepResult{Name: step.Name(), Step: info})
		s = next
	}

	return s, results, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
