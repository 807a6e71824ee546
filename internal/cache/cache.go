// Package cache remembers compilation outcomes per descriptor identity.
//
// The cache file is owned by a single process. Concurrent sweeps sharing a
// backend and library would overwrite each other's entries; no locking is
// attempted.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/specialistvlad/benchgrid/internal/descriptor"
	"github.com/vmihailenco/msgpack/v5"
)

// entry is the on-disk form of one cached outcome.
type entry struct {
	Prog    string `msgpack:"prog"`
	NP      int    `msgpack:"np"`
	Size    string `msgpack:"size"`
	WorkDir string `msgpack:"wd"`
	Fail    bool   `msgpack:"fail"`
}

// FileName returns the cache file name for a backend and library pair.
func FileName(backend, library string) string {
	return fmt.Sprintf(".%s-%s.cache", backend, library)
}

// Cache maps descriptor identities to their compile failure flag.
type Cache struct {
	mu      sync.Mutex
	path    string
	enabled bool
	entries map[descriptor.Identity]bool
}

// Load reads the cache file at path when enabled is true. A missing file
// yields an empty cache. When enabled is false the cache starts empty and
// Record never touches the file.
func Load(path string, enabled bool) (*Cache, error) {
	c := &Cache{
		path:    path,
		enabled: enabled,
		entries: make(map[descriptor.Identity]bool),
	}
	if !enabled {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache %s: %w", path, err)
	}
	var entries []entry
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode cache %s: %w", path, err)
	}
	for _, e := range entries {
		c.entries[descriptor.Identity{Prog: e.Prog, NP: e.NP, Size: e.Size, WorkDir: e.WorkDir}] = e.Fail
	}
	return c, nil
}

// Path returns the file backing the cache.
func (c *Cache) Path() string { return c.path }

// Enabled reports whether the cache is persisted.
func (c *Cache) Enabled() bool { return c.enabled }

// Len returns the number of cached outcomes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Contains reports whether an outcome is cached for d's identity.
func (c *Cache) Contains(d *descriptor.Descriptor) bool {
	_, ok := c.Lookup(d)
	return ok
}

// Lookup returns the cached failure flag for d's identity.
func (c *Cache) Lookup(d *descriptor.Descriptor) (fail bool, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fail, ok = c.entries[d.Identity()]
	return fail, ok
}

// Record stores d's failure flag and, when enabled, rewrites the whole file.
func (c *Cache) Record(d *descriptor.Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[d.Identity()] = d.Failed()
	if !c.enabled {
		return nil
	}
	return c.save()
}

func (c *Cache) save() error {
	entries := make([]entry, 0, len(c.entries))
	for id, fail := range c.entries {
		entries = append(entries, entry{Prog: id.Prog, NP: id.NP, Size: id.Size, WorkDir: id.WorkDir, Fail: fail})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.WorkDir != b.WorkDir {
			return a.WorkDir < b.WorkDir
		}
		if a.Prog != b.Prog {
			return a.Prog < b.Prog
		}
		if a.Size != b.Size {
			return a.Size < b.Size
		}
		return a.NP < b.NP
	})

	data, err := msgpack.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*")
	if err != nil {
		return fmt.Errorf("failed to write cache %s: %w", c.path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache %s: %w", c.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache %s: %w", c.path, err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache %s: %w", c.path, err)
	}
	return nil
}
