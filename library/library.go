// Package library finds SysEx files on disk and turns them into banks of
// sendable patches.
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"dx7bridge/sysex"
)

var ErrNoPatch = errors.New("no such patch")

// Scan returns every .syx file below root, matched case-insensitively and
// sorted by path. Entries that cannot be read are skipped.
func Scan(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("library %s: %w", root, err)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Printf("[library] skip %s: %v", path, err)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".syx") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// LoadFile reads one file and splits it into patches named after the file.
func LoadFile(path string) (sysex.Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sysex.Bank{}, fmt.Errorf("read %s: %w", path, err)
	}
	return sysex.LoadBank(data, filepath.Base(path)), nil
}

// Entry is one loaded file.
type Entry struct {
	Path string
	sysex.Bank
}

// Library is the set of banks found under one directory. It is safe for
// concurrent use.
type Library struct {
	root string

	mu      sync.RWMutex
	entries []Entry
}

// Open scans root and loads every file found.
func Open(root string) (*Library, error) {
	l := &Library{root: root}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Library) Root() string { return l.root }

// Reload rescans the directory. Files that fail to load are logged and left
// out; the previous contents stay in place if the scan itself fails.
func (l *Library) Reload() error {
	files, err := Scan(l.root)
	if err != nil {
		return err
	}

	entries := make([]Entry, 0, len(files))
	patches := 0
	for _, path := range files {
		bank, err := LoadFile(path)
		if err != nil {
			log.Printf("[library] %v", err)
			continue
		}
		if len(bank.Patches) == 0 {
			log.Printf("[library] %s holds no SysEx messages", path)
			continue
		}
		entries = append(entries, Entry{Path: path, Bank: bank})
		patches += len(bank.Patches)
	}

	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
	log.Printf("[library] loaded %d patches from %d files under %s", patches, len(entries), l.root)
	return nil
}

// Banks returns the loaded files in path order.
func (l *Library) Banks() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Bank returns the bank at index.
func (l *Library) Bank(index int) (Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index < 0 || index >= len(l.entries) {
		return Entry{}, fmt.Errorf("%w: bank %d of %d", ErrNoPatch, index, len(l.entries))
	}
	return l.entries[index], nil
}

// Patch returns patch index of bank.
func (l *Library) Patch(bank, index int) (sysex.Patch, error) {
	e, err := l.Bank(bank)
	if err != nil {
		return sysex.Patch{}, err
	}
	if index < 0 || index >= len(e.Patches) {
		return sysex.Patch{}, fmt.Errorf("%w: %s has %d patches, asked for %d", ErrNoPatch, e.Origin, len(e.Patches), index)
	}
	return e.Patches[index], nil
}

// Find returns the first patch whose name contains fragment, ignoring case.
func (l *Library) Find(fragment string) (sysex.Patch, error) {
	lower := strings.ToLower(fragment)
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, e := range l.entries {
		for _, p := range e.Patches {
			if strings.Contains(strings.ToLower(p.Name), lower) {
				return p, nil
			}
		}
	}
	return sysex.Patch{}, fmt.Errorf("%w: no patch name contains %q", ErrNoPatch, fragment)
}
