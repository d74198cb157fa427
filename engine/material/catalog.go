package material

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Catalog is a concurrency-safe set of known brush materials, looked up by GUID when
// an imported material carries a brush identity.
type Catalog struct {
	mu     sync.RWMutex
	byGUID map[uuid.UUID]Material
	byName map[string]Material
}

// NewCatalog returns a catalog holding the given materials.
//
// Parameters:
//   - materials: the initial contents
//
// Returns:
//   - *Catalog: the catalog
//   - error: error if two materials share a GUID
func NewCatalog(materials ...Material) (*Catalog, error) {
	c := &Catalog{
		byGUID: make(map[uuid.UUID]Material),
		byName: make(map[string]Material),
	}
	for _, m := range materials {
		if err := c.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a material.
//
// Parameters:
//   - m: the material to add
//
// Returns:
//   - error: error if another material already has m's GUID
func (c *Catalog) Register(m Material) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.byGUID[m.GUID()]; ok && existing != m {
		return fmt.Errorf("brush %s already registered as %q", m.GUID(), existing.DurableName())
	}
	c.byGUID[m.GUID()] = m
	c.byName[strings.ToLower(m.DurableName())] = m
	return nil
}

// Lookup returns the material with the given GUID.
func (c *Catalog) Lookup(id uuid.UUID) (Material, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byGUID[id]
	return m, ok
}

// LookupName returns the material with the given durable name, ignoring case.
func (c *Catalog) LookupName(name string) (Material, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byName[strings.ToLower(name)]
	return m, ok
}

// Len returns the number of registered materials.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byGUID)
}
