package score

import (
	"cmp"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Observer receives every entry appended to the event log.
type Observer func(EventLogEntry)

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithClock replaces time.Now as the source of record and log timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithIDs replaces the UUID generator used for scenario record IDs.
func WithIDs(newID func() string) Option {
	return func(a *Aggregator) {
		a.newID = newID
	}
}

// WithObserver registers a callback invoked after each event log append.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		a.observer = o
	}
}

// Aggregator holds the whole tally of one test run: scenario ratings,
// micro-behavior counts, bonus counts and the optional export log.
// It is not safe for concurrent use; callers serialize access.
type Aggregator struct {
	profile Profile

	buckets   map[string][]ScenarioRecord
	behaviors map[string]int
	bonus     map[BonusVariant]int
	log       []EventLogEntry

	now      func() time.Time
	newID    func() string
	observer Observer
}

// NewAggregator validates the profile and returns an empty aggregator.
func NewAggregator(profile Profile, opts ...Option) (*Aggregator, error) {
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	a := &Aggregator{
		profile: profile,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Reset()

	return a, nil
}

// RecordScenarioRating appends a rating to the named bucket and returns the new record.
// With logging enabled the rating is journaled with its mapped delta, even when
// the bucket score is already at a bound and the displayed score does not move.
func (a *Aggregator) RecordScenarioRating(bucket string, rating int) (ScenarioRecord, error) {
	records, ok := a.buckets[bucket]
	if !ok {
		return ScenarioRecord{}, fmt.Errorf("%w: %q", ErrInvalidBucket, bucket)
	}

	if rating < MinRating || rating > MaxRating {
		return ScenarioRecord{}, fmt.Errorf("%w: %d", ErrInvalidRating, rating)
	}

	record := ScenarioRecord{
		ID:     a.newID(),
		Rating: rating,
		Time:   a.now(),
	}
	a.buckets[bucket] = append(records, record)

	a.logEvent(CategoryScenario, bucket, fmt.Sprintf("评分%d", rating), a.profile.RatingDelta[rating], record.Time)

	return record, nil
}

// RemoveScenarioRecord deletes the record with the given id from the bucket.
// Removing an id that is not present is a no-op.
func (a *Aggregator) RemoveScenarioRecord(bucket, id string) error {
	records, ok := a.buckets[bucket]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidBucket, bucket)
	}

	kept := records[:0]
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	a.buckets[bucket] = kept

	return nil
}

// AdjustBehaviorCount adds delta to a micro-behavior counter, flooring it at zero.
// It returns the change actually applied.
func (a *Aggregator) AdjustBehaviorCount(name string, delta int) (int, error) {
	old, ok := a.behaviors[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBehavior, name)
	}

	updated := addCount(old, delta)
	a.behaviors[name] = updated

	actual := updated - old
	if actual != 0 {
		a.logEvent(CategoryBehavior, name, changeValue(actual), mulSat(-actual, a.profile.MicroDeduction), a.now())
	}

	return actual, nil
}

// AdjustBonusCount adds delta to the praise or penalty counter, flooring it at zero.
// It returns the change actually applied.
func (a *Aggregator) AdjustBonusCount(variant BonusVariant, delta int) (int, error) {
	old, ok := a.bonus[variant]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBonusVariant, variant)
	}

	updated := addCount(old, delta)
	a.bonus[variant] = updated

	actual := updated - old
	if actual != 0 {
		points := mulSat(variant.sign()*actual, a.profile.BonusPoints)
		a.logEvent(CategoryBonus, variant.Label(), changeValue(actual), points, a.now())
	}

	return actual, nil
}

// BucketScore returns the clamped score of one scenario bucket.
func (a *Aggregator) BucketScore(bucket string) (float64, error) {
	records, ok := a.buckets[bucket]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBucket, bucket)
	}

	return float64(a.bucketScore(records)), nil
}

func (a *Aggregator) bucketScore(records []ScenarioRecord) int {
	total := a.profile.InitialScenarioScore
	for _, r := range records {
		total += a.profile.RatingDelta[r.Rating]
	}
	return clamp(total, a.profile.MinScenarioScore, a.profile.MaxScenarioScore)
}

// MicroBehaviorScore returns the initial micro score minus every occurrence's
// deduction, clamped to [0, initial].
func (a *Aggregator) MicroBehaviorScore() float64 {
	deduction := 0
	for _, count := range a.behaviors {
		deduction = addSat(deduction, mulSat(count, a.profile.MicroDeduction))
	}

	initial := a.profile.InitialMicroScore
	return float64(clamp(initial-deduction, 0, initial))
}

// BonusScore returns praise minus penalty points, clamped to the bonus bounds.
func (a *Aggregator) BonusScore() float64 {
	total := mulSat(a.bonus[BonusPraise]-a.bonus[BonusPenalty], a.profile.BonusPoints)
	return float64(clamp(total, a.profile.MinBonusScore, a.profile.MaxBonusScore))
}

// WeightedScenarioScore sums weight × bucket score over the buckets named in weights.
// Weights for names that are not buckets are ignored.
func (a *Aggregator) WeightedScenarioScore(weights map[string]float64) float64 {
	total := 0.0
	for name, w := range weights {
		records, ok := a.buckets[name]
		if !ok {
			continue
		}
		total += w * float64(a.bucketScore(records))
	}
	return total
}

// FinalScore returns 0.6 × weighted scenario score + 0.4 × micro score + bonus.
func (a *Aggregator) FinalScore(weights map[string]float64) float64 {
	return ScenarioWeight*a.WeightedScenarioScore(weights) + MicroWeight*a.MicroBehaviorScore() + a.BonusScore()
}

// Reset clears every bucket, counter and the event log.
// Confirmation is the caller's responsibility.
func (a *Aggregator) Reset() {
	a.buckets = make(map[string][]ScenarioRecord, len(a.profile.Buckets))
	for _, name := range a.profile.Buckets {
		a.buckets[name] = []ScenarioRecord{}
	}

	a.behaviors = make(map[string]int, len(a.profile.Behaviors))
	for _, name := range a.profile.Behaviors {
		a.behaviors[name] = 0
	}

	a.bonus = map[BonusVariant]int{BonusPraise: 0, BonusPenalty: 0}
	a.log = []EventLogEntry{}
}

// Records returns a copy of the bucket's records in insertion order.
func (a *Aggregator) Records(bucket string) ([]ScenarioRecord, error) {
	records, ok := a.buckets[bucket]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBucket, bucket)
	}
	return append([]ScenarioRecord(nil), records...), nil
}

// BehaviorCount returns the current count of a micro-behavior.
func (a *Aggregator) BehaviorCount(name string) (int, error) {
	count, ok := a.behaviors[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBehavior, name)
	}
	return count, nil
}

// BonusCount returns the current count of a bonus variant.
func (a *Aggregator) BonusCount(variant BonusVariant) (int, error) {
	count, ok := a.bonus[variant]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBonusVariant, variant)
	}
	return count, nil
}

// Log returns a copy of the event log.
func (a *Aggregator) Log() []EventLogEntry {
	return append([]EventLogEntry(nil), a.log...)
}

// Snapshot collects every displayed value using the given weights.
// Buckets are listed in profile order.
func (a *Aggregator) Snapshot(weights map[string]float64) Snapshot {
	s := Snapshot{
		Buckets:   make([]BucketSnapshot, 0, len(a.profile.Buckets)),
		Behaviors: make(map[string]int, len(a.behaviors)),
		Praise:    a.bonus[BonusPraise],
		Penalty:   a.bonus[BonusPenalty],
		Scenario:  a.WeightedScenarioScore(weights),
		Micro:     a.MicroBehaviorScore(),
		Bonus:     a.BonusScore(),
		Final:     a.FinalScore(weights),
		Entries:   len(a.log),
		Time:      a.now(),
	}

	for _, name := range a.profile.Buckets {
		records := a.buckets[name]
		s.Buckets = append(s.Buckets, BucketSnapshot{
			Name:   name,
			Count:  len(records),
			Score:  float64(a.bucketScore(records)),
			Weight: weights[name],
		})
	}

	for name, count := range a.behaviors {
		s.Behaviors[name] = count
	}

	return s
}

func (a *Aggregator) logEvent(category, subject, value string, delta int, at time.Time) {
	if !a.profile.LoggingEnabled {
		return
	}

	entry := EventLogEntry{
		Category:    category,
		Subject:     subject,
		Value:       value,
		DeltaPoints: delta,
		Time:        at,
	}
	a.log = append(a.log, entry)

	if a.observer != nil {
		a.observer(entry)
	}
}

func changeValue(actual int) string {
	return fmt.Sprintf("变化%+d次", actual)
}

// addCount applies delta to a non-negative counter, flooring at zero and
// saturating at math.MaxInt.
func addCount(old, delta int) int {
	if delta > 0 && old > math.MaxInt-delta {
		return math.MaxInt
	}
	return max(0, old+delta)
}

// addSat adds two non-negative values, saturating at math.MaxInt.
func addSat(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// mulSat multiplies v by a positive factor, saturating at ±math.MaxInt.
func mulSat(v, factor int) int {
	switch {
	case v > math.MaxInt/factor:
		return math.MaxInt
	case v < -(math.MaxInt / factor):
		return -math.MaxInt
	}
	return v * factor
}

func clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(lo, min(hi, v))
}
