package cache

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kartracer/kartsim/internal/kart"
)

// ErrUnknownVehicle is returned when a command addresses a kart that is not
// in the session.
var ErrUnknownVehicle = errors.New("unknown vehicle")

// ErrDuplicateVehicle is returned when a kart id or name is already taken.
var ErrDuplicateVehicle = errors.New("duplicate vehicle")

// KartCache indexes the session's karts by id and name. Command handlers
// look karts up here on every command, so reads take only a read lock.
type KartCache struct {
	mu     sync.RWMutex
	byID   map[uint16]*kart.Kart
	byName map[string]uint16
}

func NewKartCache() *KartCache {
	return &KartCache{
		byID:   make(map[uint16]*kart.Kart),
		byName: make(map[string]uint16),
	}
}

// Add registers k. Ids and non-empty names must be unique.
func (c *KartCache) Add(k *kart.Kart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[k.ID()]; ok {
		return fmt.Errorf("%w: id %d", ErrDuplicateVehicle, k.ID())
	}
	if name := k.Name(); name != "" {
		if _, ok := c.byName[name]; ok {
			return fmt.Errorf("%w: name %q", ErrDuplicateVehicle, name)
		}
		c.byName[name] = k.ID()
	}
	c.byID[k.ID()] = k
	return nil
}

// Get returns the kart with the given id.
func (c *KartCache) Get(id uint16) (*kart.Kart, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.byID[id]
	return k, ok
}

// MustGet is Get with ErrUnknownVehicle for a miss.
func (c *KartCache) MustGet(id uint16) (*kart.Kart, error) {
	if k, ok := c.Get(id); ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownVehicle, id)
}

// GetByName returns the kart registered under name.
func (c *KartCache) GetByName(name string) (*kart.Kart, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return c.byID[id], true
}

// Remove drops the kart with the given id.
func (c *KartCache) Remove(id uint16) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.byID[id]
	if !ok {
		return false
	}
	delete(c.byName, k.Name())
	delete(c.byID, id)
	return true
}

// All returns the karts ordered by id.
func (c *KartCache) All() []*kart.Kart {
	c.mu.RLock()
	out := make([]*kart.Kart, 0, len(c.byID))
	for _, k := range c.byID {
		out = append(out, k)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (c *KartCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

func (c *KartCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID = make(map[uint16]*kart.Kart)
	c.byName = make(map[string]uint16)
}
