// Package domain defines the workout catalog, activity logs and the statistics derived from them.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWorkoutNotFound is returned when a workout id is not present in the catalog.
	ErrWorkoutNotFound = errors.New("workout not found")
	// ErrInvalidCatalog is returned when catalog definitions fail validation.
	ErrInvalidCatalog = errors.New("invalid workout catalog")
)

// WorkoutDefinition describes a selectable workout type and its metabolic equivalent.
type WorkoutDefinition struct {
	ID   int     `json:"id" toml:"id"`
	Name string  `json:"name" toml:"name"`
	MET  float64 `json:"met" toml:"met"`
}

// Validate ensures the definition can be used for calorie estimation.
func (d WorkoutDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: workout %d has no name", ErrInvalidCatalog, d.ID)
	}
	if d.MET <= 0 {
		return fmt.Errorf("%w: workout %q met must be > 0", ErrInvalidCatalog, d.Name)
	}
	return nil
}

// Catalog is an immutable, ordered set of workout definitions.
type Catalog struct {
	defs []WorkoutDefinition
	byID map[int]int
}

// DefaultWorkouts returns the compiled-in workout list.
func DefaultWorkouts() []WorkoutDefinition {
	return []WorkoutDefinition{
		{ID: 1, Name: "Yoga", MET: 3.0},
		{ID: 2, Name: "Running", MET: 8.0},
		{ID: 3, Name: "Stretching", MET: 2.5},
		{ID: 4, Name: "HIIT", MET: 10.0},
		{ID: 5, Name: "Cycling", MET: 6.0},
		{ID: 6, Name: "Walking", MET: 3.5},
	}
}

// DefaultCatalog builds a Catalog from DefaultWorkouts.
func DefaultCatalog() *Catalog {
	catalog, err := NewCatalog(DefaultWorkouts())
	if err != nil {
		panic(err)
	}
	return catalog
}

// NewCatalog validates defs and freezes them in the supplied order.
func NewCatalog(defs []WorkoutDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no workouts", ErrInvalidCatalog)
	}
	c := &Catalog{
		defs: make([]WorkoutDefinition, 0, len(defs)),
		byID: make(map[int]int, len(defs)),
	}
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate workout id %d", ErrInvalidCatalog, def.ID)
		}
		c.byID[def.ID] = len(c.defs)
		c.defs = append(c.defs, def)
	}
	return c, nil
}

// Find returns the definition for id. Absence is reported through ok, not an error.
func (c *Catalog) Find(id int) (WorkoutDefinition, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return WorkoutDefinition{}, false
	}
	return c.defs[idx], true
}

// All returns a copy of the definitions in catalog order.
func (c *Catalog) All() []WorkoutDefinition {
	out := make([]WorkoutDefinition, len(c.defs))
	copy(out, c.defs)
	return out
}
