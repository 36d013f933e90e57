// Package replay applies recorded evaluator actions to an aggregator, so a
// finished run can be re-scored offline or under another profile.
package replay

import (
	"drivescore/internal/score"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrBadAction = errors.New("bad replay action")

// Action is one evaluator action. Exactly one of Scenario, Behavior, Bonus,
// Remove or Reset must be set.
type Action struct {
	// Scenario and Rating record a scenario rating.
	Scenario string `yaml:"scenario,omitempty"`
	Rating   int    `yaml:"rating,omitempty"`
	// Behavior and Delta adjust a micro-behavior counter.
	Behavior string `yaml:"behavior,omitempty"`
	// Bonus and Delta adjust the praise or penalty counter.
	Bonus string `yaml:"bonus,omitempty"`
	Delta int    `yaml:"delta,omitempty"`
	// Remove deletes the record created by the scenario action at this index.
	Remove *int `yaml:"remove,omitempty"`
	// Reset clears the whole tally.
	Reset bool `yaml:"reset,omitempty"`
}

func (a Action) kinds() int {
	n := 0
	for _, set := range []bool{a.Scenario != "", a.Behavior != "", a.Bonus != "", a.Remove != nil, a.Reset} {
		if set {
			n++
		}
	}
	return n
}

// Script is a profile, the weights to score with and the actions to apply.
type Script struct {
	Profile string             `yaml:"profile"`
	Weights map[string]float64 `yaml:"weights"`
	Actions []Action           `yaml:"actions"`
}

// Parse decodes a YAML script and checks that every action is well formed.
func Parse(content []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(content, &s); err != nil {
		return nil, err
	}

	for i, a := range s.Actions {
		if a.kinds() != 1 {
			return nil, fmt.Errorf("%w %d: exactly one of scenario, behavior, bonus, remove, reset must be set", ErrBadAction, i)
		}
		if a.Remove != nil {
			ref := *a.Remove
			if ref < 0 || ref >= i || s.Actions[ref].Scenario == "" {
				return nil, fmt.Errorf("%w %d: remove must reference an earlier scenario action", ErrBadAction, i)
			}
		}
	}

	return &s, nil
}

// HasReset reports whether any action clears the tally.
func (s *Script) HasReset() bool {
	for _, a := range s.Actions {
		if a.Reset {
			return true
		}
	}
	return false
}

// Load reads and parses a script file.
func Load(file string) (*Script, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}

// Apply runs every action against a and returns the resulting snapshot.
// The first failing action stops the replay.
func (s *Script) Apply(a *score.Aggregator) (score.Snapshot, error) {
	records := make(map[int]score.ScenarioRecord)

	for i, act := range s.Actions {
		var err error
		switch {
		case act.Scenario != "":
			var rec score.ScenarioRecord
			rec, err = a.RecordScenarioRating(act.Scenario, act.Rating)
			records[i] = rec
		case act.Behavior != "":
			_, err = a.AdjustBehaviorCount(act.Behavior, act.Delta)
		case act.Bonus != "":
			_, err = a.AdjustBonusCount(score.BonusVariant(act.Bonus), act.Delta)
		case act.Remove != nil:
			ref := s.Actions[*act.Remove]
			err = a.RemoveScenarioRecord(ref.Scenario, records[*act.Remove].ID)
		case act.Reset:
			a.Reset()
		}
		if err != nil {
			return score.Snapshot{}, fmt.Errorf("action %d: %w", i, err)
		}
	}

	return a.Snapshot(s.Weights), nil
}
