package statistics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"thomas-leister.de/greenhouse/store"
)

var start = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{DayLength: 24 * time.Hour, HistoryDays: 7, PersistInterval: 30 * time.Second}
}

func TestRecordAndRollover(t *testing.T) {
	a := New(testConfig(), store.NewMemoryStore(), start)

	for i, temp := range []float64{10, 20, 30} {
		a.Record(temp, start.Add(time.Duration(i)*time.Minute))
	}

	s := a.Snapshot()
	for _, w := range []Window{s.AllTime, s.Daily} {
		assert.Equal(t, 10.0, w.MinTemp)
		assert.Equal(t, 30.0, w.MaxTemp)
		assert.InDelta(t, 20.0, w.Avg(), 1e-9)
		assert.Equal(t, 3, w.ReadingCount)
	}
	assert.Empty(t, s.DailyHistory)

	a.Record(15, start.Add(24*time.Hour))

	s = a.Snapshot()
	assert.Equal(t, 15.0, s.Daily.MinTemp)
	assert.Equal(t, 15.0, s.Daily.MaxTemp)
	assert.Equal(t, 1, s.Daily.ReadingCount)
	assert.True(t, s.Daily.WindowStart.Equal(start.Add(24*time.Hour)))

	require.Len(t, s.DailyHistory, 1)
	archived := s.DailyHistory[0]
	assert.Equal(t, 10.0, archived.MinTemp)
	assert.Equal(t, 30.0, archived.MaxTemp)
	assert.InDelta(t, 20.0, archived.Avg(), 1e-9)
	assert.Equal(t, 3, archived.ReadingCount)

	assert.Equal(t, 4, s.AllTime.ReadingCount)
	assert.Equal(t, 10.0, s.AllTime.MinTemp)
}

func TestEmptyWindowAvg(t *testing.T) {
	assert.Equal(t, 0.0, Window{}.Avg())
}

func TestHistoryMostRecentFirstAndCapped(t *testing.T) {
	config := testConfig()
	config.HistoryDays = 3
	a := New(config, store.NewMemoryStore(), start)

	for day := 0; day < 5; day++ {
		a.Record(float64(day), start.Add(time.Duration(day)*24*time.Hour))
	}
	// Close the last day
	a.MaybeRollDaily(start.Add(5 * 24 * time.Hour))

	s := a.Snapshot()
	require.Len(t, s.DailyHistory, 3)
	assert.Equal(t, 4.0, s.DailyHistory[0].MinTemp)
	assert.Equal(t, 3.0, s.DailyHistory[1].MinTemp)
	assert.Equal(t, 2.0, s.DailyHistory[2].MinTemp)
}

func TestEmptyDayNotArchived(t *testing.T) {
	a := New(testConfig(), store.NewMemoryStore(), start)
	assert.True(t, a.MaybeRollDaily(start.Add(25*time.Hour)))
	assert.Empty(t, a.Snapshot().DailyHistory)
	assert.False(t, a.MaybeRollDaily(start.Add(26*time.Hour)))
}

func TestPersistAndLoad(t *testing.T) {
	s := store.NewMemoryStore()
	a := New(testConfig(), s, start)
	a.Record(12, start)
	a.Record(18, start.Add(time.Minute))

	assert.False(t, a.PersistDue(start.Add(10*time.Second)))
	assert.True(t, a.PersistDue(start.Add(30*time.Second)))
	assert.True(t, a.Dirty())
	require.NoError(t, a.Persist(start.Add(30*time.Second)))
	assert.False(t, a.Dirty())
	assert.False(t, a.PersistDue(start.Add(40*time.Second)))

	restored := New(testConfig(), s, start.Add(time.Hour))
	require.NoError(t, restored.Load(start.Add(time.Hour)))
	snap := restored.Snapshot()
	assert.Equal(t, 2, snap.AllTime.ReadingCount)
	assert.Equal(t, 2, snap.Daily.ReadingCount)
	assert.Equal(t, 12.0, snap.Daily.MinTemp)
	assert.True(t, snap.Daily.WindowStart.Equal(start))
}

func TestLoadRollsExpiredDay(t *testing.T) {
	s := store.NewMemoryStore()
	a := New(testConfig(), s, start)
	a.Record(21, start)
	require.NoError(t, a.Persist(start))

	later := start.Add(30 * time.Hour)
	restored := New(testConfig(), s, later)
	require.NoError(t, restored.Load(later))

	snap := restored.Snapshot()
	assert.Equal(t, 0, snap.Daily.ReadingCount)
	assert.True(t, snap.Daily.WindowStart.Equal(later))
	require.Len(t, snap.DailyHistory, 1)
	assert.Equal(t, 21.0, snap.DailyHistory[0].MaxTemp)
	assert.Equal(t, 1, snap.AllTime.ReadingCount)
}

func TestLoadWithoutRecord(t *testing.T) {
	a := New(testConfig(), store.NewMemoryStore(), start)
	require.NoError(t, a.Load(start))
	assert.Equal(t, 0, a.Snapshot().AllTime.ReadingCount)
}

type failingStore struct{}

func (failingStore) Save(string, any) error         { return errors.New("disk full") }
func (failingStore) Load(string, any) (bool, error) { return false, errors.New("corrupt") }

func TestStoreErrors(t *testing.T) {
	a := New(testConfig(), failingStore{}, start)
	assert.Error(t, a.Load(start))
	a.Record(20, start)
	assert.Error(t, a.Persist(start))
	assert.True(t, a.Dirty())
}

func TestReset(t *testing.T) {
	a := New(testConfig(), store.NewMemoryStore(), start)
	a.Record(20, start)
	a.MaybeRollDaily(start.Add(24 * time.Hour))
	a.Reset(start.Add(48 * time.Hour))

	s := a.Snapshot()
	assert.Equal(t, 0, s.AllTime.ReadingCount)
	assert.Empty(t, s.DailyHistory)
	assert.True(t, s.Daily.WindowStart.Equal(start.Add(48*time.Hour)))
}
