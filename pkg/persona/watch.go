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
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Update reports what a watch did with a changed persona file.
type Update struct {
	Key    string
	Action string // "reloaded", "removed" or "error"
	Err    error
}

// Watch reloads cached personas when their files in dir change. Files for
// personas that were never loaded are ignored; they are read on first use.
// A file that fails to parse leaves the previous template in place.
//
// The returned channel is closed once ctx is done.
func (c *Cache) Watch(ctx context.Context, dir string) (<-chan Update, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ch := make(chan Update, 10)
	send := func(u Update) {
		select {
		case ch <- u:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(ch)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				key, ok := personaKey(event.Name)
				if !ok || !c.Cached(key) {
					continue
				}
				switch {
				case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
					if _, err := c.Reload(ctx, key); err != nil {
						c.logger.Warn("persona reload failed, keeping previous version",
							zap.String("persona", key), zap.Error(err))
						send(Update{Key: key, Action: "error", Err: err})
						continue
					}
					send(Update{Key: key, Action: "reloaded"})
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					c.logger.Warn("persona file removed, keeping cached version", zap.String("persona", key))
					send(Update{Key: key, Action: "removed"})
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				send(Update{Action: "error", Err: err})
			}
		}
	}()

	return ch, nil
}

func personaKey(path string) (string, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext != ".yaml" && ext != ".yml" {
		return "", false
	}
	return strings.TrimSuffix(base, ext), true
}
