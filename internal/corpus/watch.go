// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package corpus

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// =============================================================================
// HOLDER
// =============================================================================

// Holder publishes the current corpus. Readers always see a complete corpus;
// reloads swap the pointer.
type Holder struct {
	current atomic.Pointer[Corpus]
}

// NewHolder returns a holder serving c.
func NewHolder(c *Corpus) *Holder {
	h := &Holder{}
	h.current.Store(c)
	return h
}

// Get returns the current corpus.
func (h *Holder) Get() *Corpus {
	return h.current.Load()
}

// Set replaces the current corpus.
func (h *Holder) Set(c *Corpus) {
	h.current.Store(c)
}

// LoadFile reads and loads a JSON corpus file.
func LoadFile(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", path, err)
	}
	return LoadJSON(data)
}

// =============================================================================
// WATCHER
// =============================================================================

// DefaultReloadDebounce is how long a file must stay quiet before reloading.
const DefaultReloadDebounce = 250 * time.Millisecond

// Watch reloads path into h whenever it changes, until ctx is done. Editors
// that save by rename are handled by watching the parent directory. A file
// that fails to parse leaves the previous corpus in place.
func Watch(ctx context.Context, path string, h *Holder, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()

		var (
			timer   *time.Timer
			timerCh <-chan time.Time
		)
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				timerCh = timer.C

			case <-timerCh:
				timerCh = nil
				c, err := LoadFile(abs)
				if err != nil {
					log.Printf("CORPUS_RELOAD_FAILED | path=%s err=%v", abs, err)
					continue
				}
				h.Set(c)
				log.Printf("CORPUS_RELOADED | path=%s entries=%d", abs, c.Len())

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("CORPUS_WATCH_ERROR | path=%s err=%v", abs, err)
			}
		}
	}()
	return nil
}
