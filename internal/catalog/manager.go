package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Manager holds a catalog loaded from a directory and can watch that
// directory for edits, swapping in a freshly validated catalog when its
// files change. Prices drift while a long search runs; watching lets an
// operator update the parts bin without restarting.
type Manager struct {
	catalog Catalog
	lock    sync.RWMutex
	dir     string

	log *slog.Logger
}

// NewManager returns a manager for the catalog directory dir. Nothing is
// loaded until Load or Watch is called.
func NewManager(l *slog.Logger, dir string) *Manager {
	return &Manager{dir: dir, log: l}
}

// Load reads and validates the catalog directory and updates the held
// catalog. On failure the previously held catalog stays in place.
func (m *Manager) Load() error {
	c, err := Load(m.log, m.dir)
	if err != nil {
		return err
	}

	m.lock.Lock()
	m.catalog = c
	m.lock.Unlock()

	m.log.Info("Catalog loaded", "dir", m.dir, "processors", len(c.Processors), "chassis", len(c.Chassis))
	return nil
}

// Catalog returns the currently held catalog. The caller must treat it as
// read-only.
func (m *Manager) Catalog() Catalog {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.catalog
}

// Watch loads the catalog and starts watching its directory for changes.
//
// It returns two channels: one signaling each successfully loaded change,
// and one for unrecoverable watcher errors. Edits that fail validation are
// logged and do not replace the held catalog.
func (m *Manager) Watch(ctx context.Context) (changes <-chan struct{}, errs <-chan error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create watcher: %v", err)
	}

	if err := watcher.Add(m.dir); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("failed to add directory %s to watcher: %v", m.dir, err)
	}

	m.log.Info("Watching catalog directory", "dir", m.dir)
	changesCh := make(chan struct{}, 1)
	errorsCh := make(chan error, 1)

	// Initial load of the catalog
	if err := m.Load(); err != nil {
		m.log.Warn("Error loading initial catalog", "err", err)
	}

	go func() {
		defer close(changesCh)
		defer close(errorsCh)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				m.log.Info("Catalog watcher stopped")
				return
			case event, ok := <-watcher.Events:
				if !ok {
					errorsCh <- fmt.Errorf("watcher events channel closed unexpectedly")
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if !catalogFile(filepath.Base(event.Name)) {
					continue
				}

				m.log.Debug("Catalog file changed. Reloading...", "file", event.Name)
				if err := m.Load(); err != nil {
					m.log.Warn("Error reloading catalog", "err", err)
					continue
				}

				select {
				case changesCh <- struct{}{}:
				default:
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					errorsCh <- fmt.Errorf("watcher errors channel closed unexpectedly")
					return
				}
				m.log.Warn("Watcher error", "err", err)
			}
		}
	}()

	return changesCh, errorsCh, nil
}

// catalogFile reports whether name is one of the files a catalog is made of.
func catalogFile(name string) bool {
	switch name {
	case ProcessorsFile, MemoryFile, MotherboardsFile, BladesFile, ChassisFile, PriceOverridesFile:
		return true
	}
	return false
}
