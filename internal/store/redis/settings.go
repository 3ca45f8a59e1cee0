package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/dlbridge/internal/settings"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// SettingsStore keeps the settings document in Redis. It implements settings.Store.
type SettingsStore struct {
	store *Store
}

// Settings returns a settings.Store backed by s
func (s *Store) Settings() *SettingsStore {
	return &SettingsStore{store: s}
}

// Load reads the settings document, merged over the defaults
func (ss *SettingsStore) Load(ctx context.Context) (settings.Settings, error) {
	data, err := ss.store.client.Get(ctx, KeySettings).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return settings.Settings{}, settings.ErrNotFound
		}
		return settings.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	out := settings.Defaults()
	if err := yaml.Unmarshal(data, &out); err != nil {
		return settings.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return out, nil
}

// Save writes the settings document without expiry
func (ss *SettingsStore) Save(ctx context.Context, s settings.Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := ss.store.client.Set(ctx, KeySettings, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
