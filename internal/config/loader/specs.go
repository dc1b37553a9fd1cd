// Package loader maintains the symbol specification book from a yaml file.
// Specs declared in the file override whatever the venue reports, which
// matters for pip size: venues report tick size, not pip convention.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"traderelay/internal/logger"
	"traderelay/internal/venue"
)

type specFile struct {
	Symbols []venue.SymbolSpec `yaml:"symbols"`
}

// SpecBook holds per-symbol specification overrides and hot-reloads them
// when the backing file changes.
type SpecBook struct {
	mu    sync.RWMutex
	path  string
	specs map[string]venue.SymbolSpec
}

// Open reads the spec file at path. An empty path yields an empty book.
func Open(path string) (*SpecBook, error) {
	b := &SpecBook{path: path, specs: make(map[string]venue.SymbolSpec)}
	if path == "" {
		return b, nil
	}
	if err := b.reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// Lookup returns the override for symbol, if any.
func (b *SpecBook) Lookup(symbol string) (venue.SymbolSpec, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	spec, ok := b.specs[symbol]
	return spec, ok
}

// Len returns the number of overrides loaded.
func (b *SpecBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.specs)
}

func (b *SpecBook) reload() error {
	raw, err := os.ReadFile(b.path)
	if err != nil {
		return fmt.Errorf("symbol specs: read %s: %w", b.path, err)
	}
	var f specFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("symbol specs: parse %s: %w", b.path, err)
	}
	next := make(map[string]venue.SymbolSpec, len(f.Symbols))
	for _, s := range f.Symbols {
		if s.Symbol == "" || s.PipSize <= 0 || s.VolumeStep <= 0 {
			return fmt.Errorf("symbol specs: entry %q needs symbol, pip_size and volume_step", s.Symbol)
		}
		next[s.Symbol] = s
	}
	b.mu.Lock()
	b.specs = next
	b.mu.Unlock()
	return nil
}

// Watch reloads the book on file changes until the watcher errors out or
// the process exits. Bad edits are logged and the previous book stays live.
// onReload, when non-nil, runs after every accepted reload so callers can
// drop anything derived from the old specs.
func (b *SpecBook) Watch(onReload func()) error {
	if b.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(b.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := b.reload(); err != nil {
					logger.Errorf("symbol specs reload rejected: %v", err)
					continue
				}
				logger.Infof("symbol specs reloaded, %d symbols", b.Len())
				if onReload != nil {
					onReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("symbol specs watcher: %v", err)
			}
		}
	}()
	return nil
}
