/*
 * Quantifier:
 * Takes soil moisture or temperature values and translates them into discrete status levels
 * also reports direction of level changes. (up, steady, down)
 */

package quantifier

import (
	"fmt"
	"time"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/log"
)

type QuantificationLevel struct {
	Index      int     // Position in the level table, used for the direction
	Start      float64 // Inclusive
	End        float64 // Exclusive, except for the last level
	Name       string  // Level name, such as "needs_water", "optimal", "very_wet"
	GifKeyword string  // Optional Giphy keyword for notifications

	ReminderInterval time.Duration // Repeat notification while the level persists, 0 = never
}

type QuantificationResult struct {
	Valid               bool
	Value               float64
	QuantificationLevel QuantificationLevel
}

type Quantifier struct {
	Metric               string
	Current              QuantificationResult  // the current quantification result
	History              QuantificationResult  // old value and level for comparison / history
	QuantificationLevels []QuantificationLevel // All available quantification levels.
	HysteresisMargin     float64               // Values this close outside the current level keep the level
}

// New builds a quantifier for one metric from its configured level table
func New(metric string, levels []configmanager.LevelConfig, margin float64) *Quantifier {
	q := &Quantifier{Metric: metric}
	q.setLevels(levels, margin)
	return q
}

func (q *Quantifier) setLevels(levels []configmanager.LevelConfig, margin float64) {
	q.QuantificationLevels = make([]QuantificationLevel, 0, len(levels))
	for i, level := range levels {
		q.QuantificationLevels = append(q.QuantificationLevels, QuantificationLevel{
			Index:      i,
			Start:      level.Start,
			End:        level.End,
			Name:       level.Name,
			GifKeyword: level.GifKeyword,

			ReminderInterval: level.ReminderInterval,
		})
	}
	q.HysteresisMargin = margin
}

/*
 * Reload replaces the level table. The history is dropped
 * because level indexes may have changed.
 */
func (q *Quantifier) Reload(levels []configmanager.LevelConfig, margin float64) {
	q.setLevels(levels, margin)
	q.Reset()
	log.Infof("Quantifier: Reloaded %d %s levels", len(levels), q.Metric)
}

/*
 * Quantification function
 * Params:
 *   - value to quantify
 * Returns: the level whose band contains value. Without a previous level the
 * hysteresis margin is not applied.
 */
func (q *Quantifier) Quantify(value float64) (QuantificationLevel, error) {
	if q.Current.Valid && q.HysteresisMargin > 0 {
		previous := q.Current.QuantificationLevel
		if value >= previous.Start-q.HysteresisMargin && value <= previous.End+q.HysteresisMargin {
			return previous, nil
		}
	}

	last := len(q.QuantificationLevels) - 1
	for i, level := range q.QuantificationLevels {
		if value >= level.Start && (value < level.End || (i == last && value <= level.End)) {
			return level, nil
		}
	}

	return QuantificationLevel{}, fmt.Errorf("cannot assign %s level - value %.1f out of range", q.Metric, value)
}

/*
 * Evaluate new value:
 * - Quantify new value (which level does the new value correspond to?)
 * - Check history: Has the level increased or decreased since last time?
 *
 * levelDirection: -1 = decreasing | 0 = stable | +1 = increasing
 */
func (q *Quantifier) EvaluateValue(value float64) (int, QuantificationLevel, error) {
	levelDirection := 0

	currentLevel, err := q.Quantify(value)
	if err != nil {
		return levelDirection, QuantificationLevel{}, fmt.Errorf("could not evaluate new value: %w", err)
	}

	// Save old value to history
	q.History = q.Current
	q.Current = QuantificationResult{Valid: true, Value: value, QuantificationLevel: currentLevel}

	if q.HistoryExists() {
		if currentLevel.Index > q.History.QuantificationLevel.Index {
			levelDirection = 1
		} else if currentLevel.Index < q.History.QuantificationLevel.Index {
			levelDirection = -1
		}
	} else {
		log.Debugf("Quantifier: No %s history, yet! Assuming levelDirection=0 (steady)", q.Metric)
	}

	return levelDirection, currentLevel, nil
}

func (q *Quantifier) HistoryExists() bool {
	return q.History.Valid
}

// Level returns the name of the current level, "" if nothing was quantified yet
func (q *Quantifier) Level() string {
	if !q.Current.Valid {
		return ""
	}
	return q.Current.QuantificationLevel.Name
}

func (q *Quantifier) Reset() {
	q.Current = QuantificationResult{}
	q.History = QuantificationResult{}
}
