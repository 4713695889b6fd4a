// Package seeds holds the fallback datasets served when the ERP backend is
// absent or degraded, and keeps them in sync with optional R2 overrides.
package seeds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"

	domerrors "github.com/garyellow/erp-gateway-go/internal/errors"
	"github.com/garyellow/erp-gateway-go/internal/listing"
)

// Source values reported by Catalog.Source.
const (
	SourceEmbedded = "embedded"
	SourceOverride = "override"
)

type override struct {
	data []byte
	etag string
}

// Catalog stores raw seed bytes per dataset name ("crm/leads").
// Records are decoded on every call so no decoded state is shared between requests.
type Catalog struct {
	mu        sync.RWMutex
	defaults  map[string][]byte
	overrides map[string]override
}

// NewCatalog loads every *.json file below root in fsys. The dataset name is
// the path relative to root without the extension.
func NewCatalog(fsys fs.FS, root string) (*Catalog, error) {
	c := &Catalog{
		defaults:  make(map[string][]byte),
		overrides: make(map[string]override),
	}

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ".json" {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read seed %s: %w", p, err)
		}
		if err := validate(data); err != nil {
			return fmt.Errorf("seed %s: %w", p, err)
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, root+"/"), ".json")
		c.defaults[name] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load seed catalog: %w", err)
	}
	return c, nil
}

// Names returns dataset names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.defaults))
	for name := range c.defaults {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Has reports whether name is a known dataset.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.defaults[name]
	return ok
}

// Raw returns the JSON currently served for name, override first.
func (c *Catalog) Raw(name string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if o, ok := c.overrides[name]; ok {
		return o.data, true
	}
	data, ok := c.defaults[name]
	return data, ok
}

// Records decodes a fresh copy of the dataset.
func (c *Catalog) Records(name string) ([]listing.Record, error) {
	data, ok := c.Raw(name)
	if !ok {
		return nil, fmt.Errorf("dataset %q: %w", name, domerrors.ErrNotFound)
	}
	var records []listing.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode dataset %q: %w", name, err)
	}
	return records, nil
}

// Lookup finds the record whose idField equals id. The returned record is a fresh copy.
func (c *Catalog) Lookup(name, idField, id string) (listing.Record, error) {
	records, err := c.Records(name)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if fmt.Sprint(rec[idField]) == id {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%s %q: %w", name, id, domerrors.ErrNotFound)
}

// SetOverride replaces the dataset with data after validating it is a JSON array of objects.
func (c *Catalog) SetOverride(name string, data []byte, etag string) error {
	if err := validate(data); err != nil {
		return fmt.Errorf("override %s: %w", name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.defaults[name]; !ok {
		return fmt.Errorf("override %s: %w", name, domerrors.ErrNotFound)
	}
	c.overrides[name] = override{data: bytes.Clone(data), etag: etag}
	return nil
}

// ClearOverride restores the embedded dataset.
func (c *Catalog) ClearOverride(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.overrides, name)
}

// ETag returns the ETag of the installed override, or "".
func (c *Catalog) ETag(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overrides[name].etag
}

// Source reports whether name is served from the embedded default or an override.
func (c *Catalog) Source(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.overrides[name]; ok {
		return SourceOverride
	}
	return SourceEmbedded
}

func validate(data []byte) error {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("%w: not a JSON array of objects: %w", domerrors.ErrInvalidInput, err)
	}
	return nil
}
