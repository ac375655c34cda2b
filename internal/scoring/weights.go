package scoring

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"suptia-engine/internal/catalog"
)

// Weights are the overall-score coefficients for one priority.
type Weights struct {
	Effectiveness float64 `yaml:"effectiveness" json:"effectiveness"`
	Safety        float64 `yaml:"safety" json:"safety"`
	Cost          float64 `yaml:"cost" json:"cost"`
	Evidence      float64 `yaml:"evidence" json:"evidence"`
}

func (w Weights) sum() float64 {
	return w.Effectiveness + w.Safety + w.Cost + w.Evidence
}

func (w Weights) validate() error {
	for _, v := range []float64{w.Effectiveness, w.Safety, w.Cost, w.Evidence} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("weights must be finite and non-negative")
		}
	}
	if w.sum() <= 0 {
		return errors.New("weights must not all be zero")
	}
	return nil
}

// normalized rescales the weights to sum to one.
func (w Weights) normalized() Weights {
	total := w.sum()
	if total <= 0 {
		return Weights{Effectiveness: 0.25, Safety: 0.25, Cost: 0.25, Evidence: 0.25}
	}
	return Weights{
		Effectiveness: w.Effectiveness / total,
		Safety:        w.Safety / total,
		Cost:          w.Cost / total,
		Evidence:      w.Evidence / total,
	}
}

// WeightTable maps each priority to its weights.
type WeightTable map[catalog.Priority]Weights

// DefaultWeights gives balanced equal weights; every other priority puts
// 0.40 on its own dimension and 0.20 on the rest.
func DefaultWeights() WeightTable {
	return WeightTable{
		catalog.PriorityBalanced:      {Effectiveness: 0.25, Safety: 0.25, Cost: 0.25, Evidence: 0.25},
		catalog.PriorityCost:          {Effectiveness: 0.20, Safety: 0.20, Cost: 0.40, Evidence: 0.20},
		catalog.PrioritySafety:        {Effectiveness: 0.20, Safety: 0.40, Cost: 0.20, Evidence: 0.20},
		catalog.PriorityEvidence:      {Effectiveness: 0.20, Safety: 0.20, Cost: 0.20, Evidence: 0.40},
		catalog.PriorityEffectiveness: {Effectiveness: 0.40, Safety: 0.20, Cost: 0.20, Evidence: 0.20},
	}
}

// For returns the normalized weights of a priority, falling back to
// balanced.
func (t WeightTable) For(priority catalog.Priority) Weights {
	if w, ok := t[catalog.ParsePriority(string(priority))]; ok {
		return w.normalized()
	}
	if w, ok := t[catalog.PriorityBalanced]; ok {
		return w.normalized()
	}
	return DefaultWeights()[catalog.PriorityBalanced]
}

// LoadWeights reads a YAML file of priority weights and merges it over the
// defaults, e.g.
//
//	cost:
//	  effectiveness: 0.15
//	  safety: 0.25
//	  cost: 0.45
//	  evidence: 0.15
func LoadWeights(path string) (WeightTable, error) {
	table := DefaultWeights()
	if strings.TrimSpace(path) == "" {
		return table, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}
	var raw map[string]Weights
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal weights: %w", err)
	}
	for key, w := range raw {
		priority := catalog.Priority(strings.ToLower(strings.TrimSpace(key)))
		if catalog.ParsePriority(key) != priority {
			return nil, fmt.Errorf("unknown priority %q", key)
		}
		if err := w.validate(); err != nil {
			return nil, fmt.Errorf("priority %s: %w", priority, err)
		}
		table[priority] = w
	}
	return table, nil
}
