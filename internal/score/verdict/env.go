package verdict

import (
	"drivescore/internal/score"

	"github.com/google/cel-go/cel"
)

// NewSnapshotEnv declares the variables a verdict condition may reference.
func NewSnapshotEnv() (*cel.Env, error) {
	return cel.NewEnv(
		// --- Scores ---
		cel.Variable("final", cel.DoubleType),
		cel.Variable("scenario", cel.DoubleType),
		cel.Variable("micro", cel.DoubleType),
		cel.Variable("bonus", cel.DoubleType),

		// --- Counts ---
		cel.Variable("ratings", cel.IntType),
		cel.Variable("infractions", cel.IntType),
		cel.Variable("praise", cel.IntType),
		cel.Variable("penalty", cel.IntType),
	)
}

// Activation converts a snapshot into the variables declared by NewSnapshotEnv.
func Activation(s score.Snapshot) map[string]any {
	return map[string]any{
		"final":       s.Final,
		"scenario":    s.Scenario,
		"micro":       s.Micro,
		"bonus":       s.Bonus,
		"ratings":     int64(s.Ratings()),
		"infractions": int64(s.Infractions()),
		"praise":      int64(s.Praise),
		"penalty":     int64(s.Penalty),
	}
}
