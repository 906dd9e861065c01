/*
 * Store:
 * Small key/value persistence for state that has to survive a reboot
 */

package store

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"thomas-leister.de/greenhouse/configmanager"
)

var ErrClosed = errors.New("store is closed")

// Store saves msgpack encoded values under a key.
type Store interface {
	Save(key string, v any) error
	// Load decodes the value stored under key into v. It returns false if the key does not exist
	Load(key string, v any) (bool, error)
	Close() error
}

// Open returns a SQLite store for the configured database path, or an in-memory store if the path is empty
func Open(config *configmanager.Config) (Store, error) {
	if config.Statistics.Database == "" {
		return NewMemoryStore(), nil
	}
	return NewSQLiteStore(config.Statistics.Database)
}

func encode(key string, v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("could not encode %s: %w", key, err)
	}
	return data, nil
}

func decode(key string, data []byte, v any) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("could not decode %s: %w", key, err)
	}
	return nil
}
