package verdict

import (
	"drivescore/internal/score"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules is an ordered verdict rule set. The first rule that matches wins.
type Rules struct {
	rules []Rule
}

// Verdict returns the label of the first rule matching the snapshot,
// or an empty string when none does. Failing rules are logged and skipped.
func (rs *Rules) Verdict(s score.Snapshot) string {
	if rs == nil {
		return ""
	}

	vars := Activation(s)
	for _, rule := range rs.rules {
		matched, err := rule.Eval(vars)
		if err != nil {
			slog.Error("verdict rule eval", "error", err, "rule", rule.When)
			continue
		}
		if matched {
			return rule.Then
		}
	}

	return ""
}

// Len returns the number of rules.
func (rs *Rules) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Parse builds a rule set from a YAML list:
//
//   - when: "final >= 85.0"
//     then: 优秀
//
// Every condition is compiled up front, so a bad expression fails here rather
// than at scoring time.
func Parse(script []byte) (*Rules, error) {
	rules := []Rule{}
	if err := yaml.Unmarshal(script, &rules); err != nil {
		return nil, err
	}

	for i := range rules {
		env, err := NewSnapshotEnv()
		if err != nil {
			return nil, err
		}
		if err := rules[i].Init(env); err != nil {
			return nil, err
		}
	}

	return &Rules{rules: rules}, nil
}

// LoadFromFile reads and parses a rule file.
func LoadFromFile(file string) (*Rules, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}
