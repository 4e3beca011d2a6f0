// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package persona

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// entryKey identifies one memoized body.
type entryKey struct {
	persona string
	kind    Kind
}

// snapshot is never modified once published.
type snapshot struct {
	templates map[string]*Template
	bodies    map[entryKey]string
}

// Cache is a lazily populated registry of persona templates.
//
// Reads go through an atomically published snapshot and take no lock.
// Population is serialized by a mutex and concurrent loads of the same key
// are collapsed into one.
//
// Example:
//
//	cache := persona.NewCache(persona.NewFileLoader("./personas"), logger)
//	if err := cache.Warm(ctx, "barista", "kopitiam"); err != nil {
//	    return err
//	}
//	body, err := cache.Body(ctx, "barista", persona.KindOrdering)
type Cache struct {
	loader Loader
	logger *zap.Logger

	mu     sync.Mutex
	snap   atomic.Pointer[snapshot]
	flight singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	loads  atomic.Uint64
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    uint64
	Misses  uint64
	Loads   uint64
	Entries int
}

// NewCache creates an empty cache backed by loader.
func NewCache(loader Loader, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Cache{loader: loader, logger: logger}
	c.snap.Store(&snapshot{
		templates: map[string]*Template{},
		bodies:    map[entryKey]string{},
	})
	return c
}

// Get returns the persona, loading it on first use.
func (c *Cache) Get(ctx context.Context, key string) (*Template, error) {
	if tpl, ok := c.snap.Load().templates[key]; ok {
		c.hits.Add(1)
		return tpl, nil
	}
	c.misses.Add(1)

	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		if tpl, ok := c.snap.Load().templates[key]; ok {
			return tpl, nil
		}
		tpl, err := c.loader.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		c.loads.Add(1)
		c.publish(tpl, false)
		c.logger.Debug("persona loaded",
			zap.String("persona", tpl.Key),
			zap.String("version", tpl.Version),
			zap.Int("kinds", len(tpl.bodies)))
		return tpl, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}

// Body returns the static body of one kind for a persona.
func (c *Cache) Body(ctx context.Context, key string, kind Kind) (string, error) {
	if body, ok := c.snap.Load().bodies[entryKey{key, kind}]; ok {
		c.hits.Add(1)
		return body, nil
	}
	tpl, err := c.Get(ctx, key)
	if err != nil {
		return "", err
	}
	body, ok := tpl.Body(kind)
	if !ok {
		return "", fmt.Errorf("persona %s has no %s template", key, kind)
	}
	return body, nil
}

// Warm loads the given personas concurrently.
func (c *Cache) Warm(ctx context.Context, keys ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, key := range keys {
		g.Go(func() error {
			if _, err := c.Get(gctx, key); err != nil {
				return fmt.Errorf("warm %s: %w", key, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Reload reads key again and replaces the cached template. Callers already
// holding the previous template keep using it.
func (c *Cache) Reload(ctx context.Context, key string) (*Template, error) {
	tpl, err := c.loader.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	c.loads.Add(1)
	c.publish(tpl, true)
	c.logger.Info("persona reloaded",
		zap.String("persona", tpl.Key),
		zap.String("version", tpl.Version))
	return tpl, nil
}

// Cached reports whether key has been loaded.
func (c *Cache) Cached(key string) bool {
	_, ok := c.snap.Load().templates[key]
	return ok
}

// Keys lists the cached persona keys.
func (c *Cache) Keys() []string {
	s := c.snap.Load()
	keys := make([]string, 0, len(s.templates))
	for k := range s.templates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stats returns a point-in-time view of cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Loads:   c.loads.Load(),
		Entries: len(c.snap.Load().templates),
	}
}

// publish copies the current snapshot, adds tpl and swaps it in. An
// existing entry is kept unless replace is set.
func (c *Cache) publish(tpl *Template, replace bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.snap.Load()
	if _, ok := old.templates[tpl.Key]; ok && !replace {
		return
	}
	next := &snapshot{
		templates: make(map[string]*Template, len(old.templates)+1),
		bodies:    make(map[entryKey]string, len(old.bodies)+len(tpl.bodies)),
	}
	for k, v := range old.templates {
		next.templates[k] = v
	}
	for k, v := range old.bodies {
		if k.persona == tpl.Key {
			continue
		}
		next.bodies[k] = v
	}
	next.templates[tpl.Key] = tpl
	for kind, body := range tpl.bodies {
		next.bodies[entryKey{tpl.Key, kind}] = body
	}
	c.snap.Store(next)
}
