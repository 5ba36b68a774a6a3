package pipeline

import (
	"fmt"
	"slices"
	"strings"
)

// Step names one pass of the daily classification.
type Step string

const (
	StepMarket  Step = "market"
	StepSectors Step = "sectors"
	StepAlerts  Step = "alerts"
)

// AllSteps lists the steps in execution order.
var AllSteps = []Step{StepMarket, StepSectors, StepAlerts}

// SelectSteps resolves the --skip list and the --only selector into the steps
// to run, in execution order. The two are mutually exclusive.
func SelectSteps(skip []string, only string) ([]Step, error) {
	if only != "" && len(skip) > 0 {
		return nil, fmt.Errorf("--only and --skip cannot be combined")
	}
	if only != "" {
		s, err := parseStep(only)
		if err != nil {
			return nil, err
		}
		return []Step{s}, nil
	}

	skipped := make(map[Step]bool, len(skip))
	for _, name := range skip {
		s, err := parseStep(name)
		if err != nil {
			return nil, err
		}
		skipped[s] = true
	}
	var out []Step
	for _, s := range AllSteps {
		if !skipped[s] {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("every step is skipped")
	}
	return out, nil
}

func parseStep(name string) (Step, error) {
	s := Step(strings.ToLower(strings.TrimSpace(name)))
	if !slices.Contains(AllSteps, s) {
		return "", fmt.Errorf("unknown step %q (want one of market, sectors, alerts)", name)
	}
	return s, nil
}
