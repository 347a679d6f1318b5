package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/iliyamo/turf-reservation/internal/apperror"
	"github.com/iliyamo/turf-reservation/internal/model"
)

// MemoryCatalog serves venues, units and sports from memory.  It backs
// APP_STORE=memory deployments and is read-only after construction.
type MemoryCatalog struct {
	venues map[uint64]model.Venue
	units  map[uint64]model.Unit
	sports map[string]model.Sport
}

// NewMemoryCatalog indexes seed.
func NewMemoryCatalog(seed Seed) (*MemoryCatalog, error) {
	if err := seed.validate(); err != nil {
		return nil, err
	}
	c := &MemoryCatalog{
		venues: make(map[uint64]model.Venue, len(seed.Venues)),
		units:  make(map[uint64]model.Unit, len(seed.Units)),
		sports: make(map[string]model.Sport, len(seed.Sports)),
	}
	for _, v := range seed.Venues {
		stamp(&v)
		c.venues[v.ID] = v
	}
	for _, u := range seed.Units {
		c.units[u.ID] = u
	}
	for _, s := range seed.Sports {
		c.sports[s.Code] = s
	}
	return c, nil
}

// LoadMemoryCatalog reads a JSON seed file.
func LoadMemoryCatalog(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	return NewMemoryCatalog(seed)
}

func (c *MemoryCatalog) Venue(_ context.Context, id uint64) (*model.Venue, error) {
	v, ok := c.venues[id]
	if !ok {
		return nil, apperror.NotFound("venue", id)
	}
	return &v, nil
}

func (c *MemoryCatalog) Unit(_ context.Context, id uint64) (*model.Unit, error) {
	u, ok := c.units[id]
	if !ok {
		return nil, apperror.NotFound("unit", id)
	}
	return &u, nil
}

func (c *MemoryCatalog) Sport(_ context.Context, code string) (*model.Sport, error) {
	s, ok := c.sports[code]
	if !ok {
		return nil, apperror.NotFound("sport", code)
	}
	return &s, nil
}
