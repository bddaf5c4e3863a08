// Package exercises provides the read-only exercise metadata catalog consumed
// by the routine resolver and the info/video panels.
package exercises

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/meltforce/repcal/internal/routine"
)

// Exercise is one library entry, keyed by id.
type Exercise struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Description      string   `json:"description,omitempty"`
	PrimaryMuscles   []string `json:"primaryMuscles,omitempty"`
	SecondaryMuscles []string `json:"secondaryMuscles,omitempty"`
	Equipment        []string `json:"equipment,omitempty"`
	Difficulty       string   `json:"difficulty,omitempty"` // beginner | intermediate | advanced
	Type             string   `json:"type,omitempty"`        // compound | isolation | cardio | flexibility | routine
	VideoURL         string   `json:"videoUrl,omitempty"`
	Instructions     []string `json:"instructions,omitempty"`
	FormCues         []string `json:"formCues,omitempty"`
}

type library struct {
	Exercises []Exercise `json:"exercises"`
}

//go:embed library.json
var defaultLibrary []byte

// Catalog is a keyed lookup over the exercise library. Construct with New and
// call Load before use; lookups on an unloaded catalog miss rather than panic.
type Catalog struct {
	byID   map[string]Exercise
	all    []Exercise
	loaded bool
	log    *slog.Logger
}

// New creates an empty catalog.
func New(log *slog.Logger) *Catalog {
	return &Catalog{byID: make(map[string]Exercise), log: log}
}

// Load populates the catalog from the file at path, or from the embedded
// default library when path is empty.
func (c *Catalog) Load(path string) error {
	data := defaultLibrary
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading exercise library: %w", err)
		}
		data = b
	}
	var lib library
	if err := json.Unmarshal(data, &lib); err != nil {
		return fmt.Errorf("parsing exercise library: %w", err)
	}
	c.byID = make(map[string]Exercise, len(lib.Exercises))
	for _, ex := range lib.Exercises {
		c.byID[ex.ID] = ex
	}
	c.all = lib.Exercises
	c.loaded = true
	c.log.Info("exercise library loaded", "exercises", len(lib.Exercises))
	return nil
}

// Ready reports whether Load has completed.
func (c *Catalog) Ready() bool { return c.loaded }

// Get returns the exercise with the given id.
func (c *Catalog) Get(id string) (Exercise, bool) {
	ex, ok := c.byID[id]
	return ex, ok
}

// GetBySlug returns the exercise whose display-name slug matches.
func (c *Catalog) GetBySlug(slug string) (Exercise, bool) {
	for _, ex := range c.all {
		if routine.Slug(ex.Name) == slug {
			return ex, true
		}
	}
	return Exercise{}, false
}

// All returns every library entry in file order.
func (c *Catalog) All() []Exercise { return c.all }

// Search returns exercises whose name contains the query, case-insensitively.
func (c *Catalog) Search(query string) []Exercise {
	q := strings.ToLower(query)
	var out []Exercise
	for _, ex := range c.all {
		if strings.Contains(strings.ToLower(ex.Name), q) {
			out = append(out, ex)
		}
	}
	return out
}

// ByMuscle returns exercises working the given muscle, primary or secondary.
func (c *Catalog) ByMuscle(muscle string) []Exercise {
	m := strings.ToLower(muscle)
	var out []Exercise
	for _, ex := range c.all {
		if containsFold(ex.PrimaryMuscles, m) || containsFold(ex.SecondaryMuscles, m) {
			out = append(out, ex)
		}
	}
	return out
}

// ByEquipment returns exercises requiring the given equipment.
func (c *Catalog) ByEquipment(equipment string) []Exercise {
	e := strings.ToLower(equipment)
	var out []Exercise
	for _, ex := range c.all {
		if containsFold(ex.Equipment, e) {
			out = append(out, ex)
		}
	}
	return out
}

// ByType returns exercises of the given type tag.
func (c *Catalog) ByType(typ string) []Exercise {
	var out []Exercise
	for _, ex := range c.all {
		if ex.Type == typ {
			out = append(out, ex)
		}
	}
	return out
}

func containsFold(list []string, lowered string) bool {
	for _, s := range list {
		if strings.Contains(strings.ToLower(s), lowered) {
			return true
		}
	}
	return false
}

// LookupExercise implements routine.ExerciseLookup.
func (c *Catalog) LookupExercise(id string) (routine.ExerciseInfo, bool) {
	ex, ok := c.byID[id]
	if !ok {
		return routine.ExerciseInfo{}, false
	}
	return routine.ExerciseInfo{Name: ex.Name, Type: ex.Type}, true
}
