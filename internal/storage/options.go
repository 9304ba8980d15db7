package storage

import (
	"context"
	"sync"

	"github.com/xwp/ga4-extensions/internal/cache"
)

type OptionSource interface {
	LoadOptions(ctx context.Context) (map[string]string, error)
	SetOption(ctx context.Context, name, value string) error
}

// OptionCache serves option reads from an immutable snapshot of the
// options table. Writes go to the source and then reload the snapshot;
// writes from other processes arrive through the listener.
type OptionCache struct {
	src  OptionSource
	snap cache.Snapshot[map[string]string]

	// refreshMu orders load+store pairs so an older read never replaces a
	// newer snapshot.
	refreshMu sync.Mutex
}

func NewOptionCache(src OptionSource) *OptionCache {
	return &OptionCache{src: src}
}

// Refresh swaps in a fresh copy of all options.
func (c *OptionCache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	opts, err := c.src.LoadOptions(ctx)
	if err != nil {
		return err
	}
	c.snap.Store(opts)
	return nil
}

func (c *OptionCache) GetOption(ctx context.Context, name string) (string, error) {
	opts, ok := c.snap.Load()
	if !ok {
		if err := c.Refresh(ctx); err != nil {
			return "", err
		}
		opts, _ = c.snap.Load()
	}
	v, ok := opts[name]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (c *OptionCache) SetOption(ctx context.Context, name, value string) error {
	if err := c.src.SetOption(ctx, name, value); err != nil {
		return err
	}
	return c.Refresh(ctx)
}
