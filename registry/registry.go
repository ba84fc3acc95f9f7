// Package registry records which channel receives log notices for each guild.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/brensch/modlog/db"
	"github.com/samber/mo"
)

// ErrUnknownBackend is returned by Open for a backend name it does not know.
var ErrUnknownBackend = errors.New("unknown registry backend")

// Store maps a guild ID to its log channel ID. Set always overwrites; Get
// returns mo.None when nothing was ever registered. Stores do not check that
// the channel still exists.
type Store interface {
	Get(ctx context.Context, guildID string) (mo.Option[string], error)
	Set(ctx context.Context, guildID, channelID string) error
	All(ctx context.Context) (map[string]string, error)
}

// Memory is a Store held in process memory.
type Memory struct {
	mu       sync.RWMutex
	channels map[string]string
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{channels: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, guildID string) (mo.Option[string], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[guildID]
	if !ok {
		return mo.None[string](), nil
	}
	return mo.Some(ch), nil
}

func (m *Memory) Set(_ context.Context, guildID, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[guildID] = channelID
	return nil
}

func (m *Memory) All(_ context.Context) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.channels))
	for k, v := range m.channels {
		out[k] = v
	}
	return out, nil
}

// Open returns the Store for backend. dbClient is only used by the duckdb
// backend and may be nil otherwise.
func Open(ctx context.Context, backend string, dbClient *db.Client) (Store, error) {
	switch backend {
	case "memory":
		return NewMemory(), nil
	case "duckdb":
		if dbClient == nil {
			return nil, fmt.Errorf("duckdb backend needs a database client")
		}
		return NewDuckDB(ctx, dbClient)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
