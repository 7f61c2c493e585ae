// Package assets tracks whether the fixed render assets are present on disk.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Monitor watches the directories holding the asset files and keeps a
// present/missing flag per file.
type Monitor struct {
	mu      sync.RWMutex
	paths   []string
	status  map[string]bool
	watcher *fsnotify.Watcher
}

func New(paths ...string) (*Monitor, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create asset watcher: %w", err)
	}

	m := &Monitor{
		status:  make(map[string]bool, len(paths)),
		watcher: w,
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = filepath.Clean(p)
		}
		m.paths = append(m.paths, abs)

		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := w.Add(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Cannot watch asset directory")
		}
	}

	m.refresh()
	return m, nil
}

// Start processes watcher events until ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	log.Info().Strs("assets", m.paths).Bool("ready", m.Ready()).Msg("Asset monitor started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if m.tracks(event.Name) {
				log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Asset changed")
				m.refresh()
			}

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Asset watcher error")
		}
	}
}

func (m *Monitor) Stop() error {
	return m.watcher.Close()
}

// Status returns a copy of the per-file presence flags.
func (m *Monitor) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.status))
	for k, v := range m.status {
		out[k] = v
	}
	return out
}

// Ready reports whether every asset is present.
func (m *Monitor) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ok := range m.status {
		if !ok {
			return false
		}
	}
	return true
}

func (m *Monitor) tracks(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	for _, p := range m.paths {
		if p == abs {
			return true
		}
	}
	return false
}

func (m *Monitor) refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.paths {
		info, err := os.Stat(p)
		ok := err == nil && !info.IsDir()
		if prev, seen := m.status[p]; seen && prev != ok {
			log.Info().Str("file", p).Bool("present", ok).Msg("Asset availability changed")
		}
		m.status[p] = ok
	}
}
