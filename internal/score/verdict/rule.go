package verdict

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// Rule assigns a verdict label to a run whose snapshot satisfies a condition.
// When holds a CEL expression evaluated against the variables of NewSnapshotEnv.
type Rule struct {
	// When — CEL expression; must evaluate to a bool.
	When string `yaml:"when"`
	// Then — verdict label returned when the condition holds.
	Then string `yaml:"then"`
	// program — compiled form of When, set by Init.
	program cel.Program
}

// Init compiles When into an executable program.
// Syntax errors, unknown variables and non-bool results are reported as errors.
func (r *Rule) Init(env *cel.Env) error {
	ast, iss := env.Parse(r.When)
	if iss.Err() != nil {
		return iss.Err()
	}

	checked, iss := env.Check(ast)
	if iss.Err() != nil {
		return iss.Err()
	}

	if !checked.OutputType().IsExactType(cel.BoolType) {
		return fmt.Errorf("rule %q: condition must be bool, got %s", r.When, checked.OutputType())
	}

	var err error
	r.program, err = env.Program(checked)
	return err
}

// Eval reports whether the condition holds for the given activation.
func (r *Rule) Eval(vars map[string]any) (bool, error) {
	result, _, err := r.program.Eval(vars)
	if err != nil {
		return false, err
	}

	matched, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q: non-bool result %v", r.When, result.Value())
	}

	return matched, nil
}
