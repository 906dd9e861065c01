package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"thomas-leister.de/greenhouse/configmanager"
)

type record struct {
	Name    string    `msgpack:"name"`
	Count   int       `msgpack:"count"`
	Values  []float64 `msgpack:"values"`
	Started time.Time `msgpack:"started"`
}

func testStores(t *testing.T) map[string]Store {
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestSaveLoad(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			var missing record
			found, err := s.Load("missing", &missing)
			require.NoError(t, err)
			assert.False(t, found)

			in := record{Name: "statistics", Count: 3, Values: []float64{10, 20, 30}, Started: started}
			require.NoError(t, s.Save("statistics", in))

			var out record
			found, err = s.Load("statistics", &out)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, in.Name, out.Name)
			assert.Equal(t, in.Count, out.Count)
			assert.Equal(t, in.Values, out.Values)
			assert.True(t, in.Started.Equal(out.Started))

			// Overwrite
			in.Count = 4
			require.NoError(t, s.Save("statistics", in))
			found, err = s.Load("statistics", &out)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, 4, out.Count)
		})
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save("k", record{Name: "persisted"}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	var out record
	found, err := s.Load("k", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "persisted", out.Name)
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Save("k", 1), ErrClosed)
	_, err := s.Load("k", new(int))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen(t *testing.T) {
	config := configmanager.Default()
	config.Statistics.Database = ""
	s, err := Open(&config)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	config.Statistics.Database = filepath.Join(t.TempDir(), "x.db")
	s, err = Open(&config)
	require.NoError(t, err)
	defer s.Close()
	assert.IsType(t, &SQLiteStore{}, s)
}
