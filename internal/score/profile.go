package score

import (
	"errors"
	"fmt"
)

const (
	ProfileA = "A"
	ProfileB = "B"
)

// Default scenario bucket names.
var DefaultBuckets = []string{"园区", "闸机", "直角弯", "绕行", "会车", "坡道"}

// Default micro-behavior names.
var DefaultBehaviors = []string{"顿挫", "不居中", "无故低速", "速度偏快", "反复修正方向盘", "异常降级/退出"}

// Profile holds the constant tables the aggregator scores with.
// Two observed tallies differ only in these values, so one aggregator
// is selected by profile at construction time instead of duplicating it.
type Profile struct {
	// RatingDelta maps a rating 1..5 to the points it adds to its bucket.
	RatingDelta map[int]int
	// MicroDeduction is the number of points one micro-behavior occurrence costs.
	MicroDeduction int
	// BonusPoints is the value of one praise or penalty.
	BonusPoints int
	// LoggingEnabled turns the export event log on.
	LoggingEnabled bool

	InitialScenarioScore int
	MinScenarioScore     int
	MaxScenarioScore     int

	InitialMicroScore int

	MinBonusScore int
	MaxBonusScore int

	// Buckets and Behaviors are the fixed name sets accepted by the aggregator.
	Buckets   []string
	Behaviors []string
}

// DefaultProfile returns profile A: deltas {-10,-5,0,5,10}, two points per
// micro-behavior and event logging.
func DefaultProfile() Profile {
	return Profile{
		RatingDelta:          map[int]int{1: -10, 2: -5, 3: 0, 4: 5, 5: 10},
		MicroDeduction:       2,
		BonusPoints:          3,
		LoggingEnabled:       true,
		InitialScenarioScore: 60,
		MinScenarioScore:     0,
		MaxScenarioScore:     100,
		InitialMicroScore:    100,
		MinBonusScore:        0,
		MaxBonusScore:        20,
		Buckets:              append([]string(nil), DefaultBuckets...),
		Behaviors:            append([]string(nil), DefaultBehaviors...),
	}
}

// LookupProfile returns a built-in profile by name.
func LookupProfile(name string) (Profile, error) {
	switch name {
	case ProfileA, "":
		return DefaultProfile(), nil
	case ProfileB:
		p := DefaultProfile()
		p.RatingDelta = map[int]int{1: -5, 2: -2, 3: 0, 4: 2, 5: 5}
		p.MicroDeduction = 3
		p.LoggingEnabled = false
		return p, nil
	default:
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
}

// Validate checks that the profile can produce scores inside its own bounds.
func (p *Profile) Validate() error {
	for r := MinRating; r <= MaxRating; r++ {
		if _, ok := p.RatingDelta[r]; !ok {
			return fmt.Errorf("profile: rating %d has no delta", r)
		}
	}

	if p.MicroDeduction <= 0 {
		return errors.New("profile: micro deduction must be positive")
	}

	if p.BonusPoints <= 0 {
		return errors.New("profile: bonus points must be positive")
	}

	if p.MinScenarioScore > p.MaxScenarioScore {
		return errors.New("profile: scenario min exceeds max")
	}

	if p.InitialScenarioScore < p.MinScenarioScore || p.InitialScenarioScore > p.MaxScenarioScore {
		return errors.New("profile: initial scenario score out of bounds")
	}

	if p.InitialMicroScore < 0 {
		return errors.New("profile: initial micro score must not be negative")
	}

	if p.MinBonusScore > p.MaxBonusScore {
		return errors.New("profile: bonus min exceeds max")
	}

	if err := uniqueNames("bucket", p.Buckets); err != nil {
		return err
	}

	return uniqueNames("behavior", p.Behaviors)
}

func uniqueNames(kind string, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("profile: no %s names", kind)
	}

	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			return fmt.Errorf("profile: empty %s name", kind)
		}
		if seen[n] {
			return fmt.Errorf("profile: duplicate %s %q", kind, n)
		}
		seen[n] = true
	}

	return nil
}
