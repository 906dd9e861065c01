/*
 * Statistics:
 * Running min / max / average temperature over all time and per day,
 * persisted so they survive a restart
 */

package statistics

import (
	"fmt"
	"time"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/log"
)

// StoreKey is the persistence key of the statistics record.
const StoreKey = "statistics"

// Store is the persistence contract; see package store.
type Store interface {
	Save(key string, v any) error
	Load(key string, v any) (bool, error)
}

type Window struct {
	MinTemp      float64   `json:"min_temperature" msgpack:"min_temperature"`
	MaxTemp      float64   `json:"max_temperature" msgpack:"max_temperature"`
	TotalTemp    float64   `json:"total_temperature" msgpack:"total_temperature"`
	ReadingCount int       `json:"reading_count" msgpack:"reading_count"`
	WindowStart  time.Time `json:"window_start" msgpack:"window_start"`
}

// Avg returns the mean temperature, 0 for an empty window.
func (w Window) Avg() float64 {
	if w.ReadingCount == 0 {
		return 0
	}
	return w.TotalTemp / float64(w.ReadingCount)
}

func (w *Window) add(temp float64) {
	if w.ReadingCount == 0 || temp < w.MinTemp {
		w.MinTemp = temp
	}
	if w.ReadingCount == 0 || temp > w.MaxTemp {
		w.MaxTemp = temp
	}
	w.TotalTemp += temp
	w.ReadingCount++
}

// Snapshot is a copy of all statistics. DailyHistory is most recent first.
type Snapshot struct {
	AllTime      Window   `json:"all_time" msgpack:"all_time"`
	Daily        Window   `json:"daily" msgpack:"daily"`
	DailyHistory []Window `json:"daily_history" msgpack:"daily_history"`
}

type persisted struct {
	Version      int      `msgpack:"version"`
	AllTime      Window   `msgpack:"all_time"`
	Daily        Window   `msgpack:"daily"`
	DailyHistory []Window `msgpack:"daily_history"`
}

type Config struct {
	DayLength       time.Duration
	HistoryDays     int // Archived daily windows to keep
	PersistInterval time.Duration
}

func ConfigFrom(config *configmanager.Config) Config {
	return Config{
		DayLength:       config.Statistics.DayLength,
		HistoryDays:     config.Statistics.HistoryDays,
		PersistInterval: config.Statistics.PersistInterval,
	}
}

type Aggregator struct {
	config  Config
	store   Store
	allTime Window
	daily   Window
	history []Window

	lastPersist time.Time
	dirty       bool
}

func New(config Config, store Store, now time.Time) *Aggregator {
	if config.HistoryDays < 0 {
		config.HistoryDays = 0
	}
	a := &Aggregator{config: config, store: store}
	a.Reset(now)
	return a
}

/*
 * Load restores persisted statistics. Without a stored record the fresh state is kept.
 * If the persisted daily window already ended, it is rolled over right away.
 */
func (a *Aggregator) Load(now time.Time) error {
	var p persisted
	found, err := a.store.Load(StoreKey, &p)
	if err != nil {
		return fmt.Errorf("could not load statistics: %w", err)
	}
	a.lastPersist = now
	if !found {
		log.Infof("Statistics: No persisted statistics, starting fresh")
		return nil
	}

	a.allTime = p.AllTime
	a.daily = p.Daily
	a.history = p.DailyHistory
	if len(a.history) > a.config.HistoryDays {
		a.history = a.history[:a.config.HistoryDays]
	}
	if a.allTime.WindowStart.IsZero() {
		a.allTime.WindowStart = now
	}
	if a.daily.WindowStart.IsZero() {
		a.daily.WindowStart = now
	}
	log.Infof("Statistics: Loaded %d all-time and %d daily readings", a.allTime.ReadingCount, a.daily.ReadingCount)

	if a.MaybeRollDaily(now) {
		log.Infof("Statistics: Daily window ended while offline")
	}
	return nil
}

// Record adds one valid temperature to both windows.
func (a *Aggregator) Record(temp float64, now time.Time) {
	a.MaybeRollDaily(now)
	a.allTime.add(temp)
	a.daily.add(temp)
	a.dirty = true
}

/*
 * MaybeRollDaily archives the daily window once it is DayLength old and starts a fresh one.
 * Empty windows are dropped instead of archived.
 */
func (a *Aggregator) MaybeRollDaily(now time.Time) bool {
	if now.Sub(a.daily.WindowStart) < a.config.DayLength {
		return false
	}

	if a.daily.ReadingCount > 0 && a.config.HistoryDays > 0 {
		a.history = append([]Window{a.daily}, a.history...)
		if len(a.history) > a.config.HistoryDays {
			a.history = a.history[:a.config.HistoryDays]
		}
	}
	log.Infof("Statistics: Daily window rolled over (%d readings, avg %.1f°C)", a.daily.ReadingCount, a.daily.Avg())
	a.daily = Window{WindowStart: now}
	a.dirty = true
	return true
}

// PersistDue reports whether the persist interval has elapsed.
func (a *Aggregator) PersistDue(now time.Time) bool {
	return now.Sub(a.lastPersist) >= a.config.PersistInterval
}

// MarkPersisted restarts the persist interval.
func (a *Aggregator) MarkPersisted(now time.Time) {
	a.lastPersist = now
	a.dirty = false
}

// MarkDirty flags the statistics for the next persist, e.g. after a failed save.
func (a *Aggregator) MarkDirty() {
	a.dirty = true
}

// Dirty reports unsaved changes.
func (a *Aggregator) Dirty() bool {
	return a.dirty
}

// Persist saves the statistics to the store.
func (a *Aggregator) Persist(now time.Time) error {
	if err := Save(a.store, a.Snapshot()); err != nil {
		return err
	}
	a.MarkPersisted(now)
	return nil
}

// Save writes a snapshot to the store. It can run without holding the aggregator.
func Save(store Store, snapshot Snapshot) error {
	if err := store.Save(StoreKey, persisted{
		Version:      1,
		AllTime:      snapshot.AllTime,
		Daily:        snapshot.Daily,
		DailyHistory: snapshot.DailyHistory,
	}); err != nil {
		return fmt.Errorf("could not persist statistics: %w", err)
	}
	return nil
}

func (a *Aggregator) Snapshot() Snapshot {
	history := make([]Window, len(a.history))
	copy(history, a.history)
	return Snapshot{AllTime: a.allTime, Daily: a.daily, DailyHistory: history}
}

// Reset clears all windows, starting them at now.
func (a *Aggregator) Reset(now time.Time) {
	a.allTime = Window{WindowStart: now}
	a.daily = Window{WindowStart: now}
	a.history = nil
	a.lastPersist = now
	a.dirty = false
}
