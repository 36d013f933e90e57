package score

import (
	"errors"
	"time"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Weights of the weighted scenario score (0.6) and the micro-behavior score (0.4).
// The bonus is added on top without a cap.
const (
	ScenarioWeight = 0.6
	MicroWeight    = 0.4
)

// BonusVariant is one of the two manual adjustment counters.
type BonusVariant string

const (
	BonusPraise  BonusVariant = "praise"
	BonusPenalty BonusVariant = "penalty"
)

// Label returns the name the variant carries in the exported log.
func (v BonusVariant) Label() string {
	switch v {
	case BonusPraise:
		return "点赞"
	case BonusPenalty:
		return "惩罚"
	default:
		return string(v)
	}
}

func (v BonusVariant) sign() int {
	if v == BonusPenalty {
		return -1
	}
	return 1
}

// Event log categories.
const (
	CategoryScenario = "综合场景"
	CategoryBehavior = "微行为"
	CategoryBonus    = "用户bonus"
)

var (
	ErrInvalidBucket       = errors.New("invalid scenario bucket")
	ErrInvalidBehavior     = errors.New("invalid micro-behavior")
	ErrInvalidBonusVariant = errors.New("invalid bonus variant")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
	// ErrEmptyLog is an advisory: there is nothing to export yet.
	ErrEmptyLog = errors.New("event log is empty")
)

// EmptyLogMessage is shown to the user instead of an export file.
const EmptyLogMessage = "当前没有可导出的记录。"

// ScenarioRecord is one rating given to a scenario bucket.
type ScenarioRecord struct {
	ID     string    `json:"id"`
	Rating int       `json:"rating"`
	Time   time.Time `json:"time"`
}

// EventLogEntry is one journaled state change kept for export.
type EventLogEntry struct {
	Category    string    `json:"category"`
	Subject     string    `json:"subject"`
	Value       string    `json:"value"`
	DeltaPoints int       `json:"delta"`
	Time        time.Time `json:"time"`
}

// BucketSnapshot is the displayed state of a single scenario bucket.
type BucketSnapshot struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
}

// Snapshot carries every value the display sink renders.
type Snapshot struct {
	Buckets   []BucketSnapshot `json:"buckets"`
	Behaviors map[string]int   `json:"behaviors"`
	Praise    int              `json:"praise"`
	Penalty   int              `json:"penalty"`
	Scenario  float64          `json:"scenario"`
	Micro     float64          `json:"micro"`
	Bonus     float64          `json:"bonus"`
	Final     float64          `json:"final"`
	Verdict   string           `json:"verdict,omitempty"`
	Entries   int              `json:"entries"`
	Time      time.Time        `json:"time"`
}

// Infractions returns the total number of micro-behavior occurrences.
func (s Snapshot) Infractions() int {
	total := 0
	for _, c := range s.Behaviors {
		total += c
	}
	return total
}

// Ratings returns the total number of scenario ratings.
func (s Snapshot) Ratings() int {
	total := 0
	for _, b := range s.Buckets {
		total += b.Count
	}
	return total
}
