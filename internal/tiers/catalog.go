package tiers

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/guayoyo/loyalty-service/internal/domain"
)

// Catalog is the ordered, immutable list of tiers loaded at startup.
type Catalog struct {
	tiers []domain.TierDefinition
	byID  map[int]int
}

type catalogFile struct {
	Tiers []domain.TierDefinition `yaml:"tiers" validate:"required,min=1,dive"`
}

// Default returns the catalog the shop launched with.
func Default() *Catalog {
	c, err := New([]domain.TierDefinition{
		{ID: 1, Name: "Nivel Inicial", VisitsRequired: 3, Reward: "Café Gratis"},
		{ID: 2, Name: "Nivel Intermedio", VisitsRequired: 5, Reward: "Desayuno ($6)"},
		{ID: 3, Name: "Nivel Avanzado", VisitsRequired: 8, Reward: "Desayuno Premium"},
		{ID: 4, Name: "Socio VIP", VisitsRequired: 10, Reward: "10% Descuento Vitalicio", Terminal: true},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a YAML catalog from path, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML catalog document.
func Parse(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode tiers: %w", err)
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid tiers: %w", err)
	}
	return New(file.Tiers)
}

// New validates ordering rules and builds a catalog.
func New(defs []domain.TierDefinition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog must define at least one tier")
	}
	v := validator.New()
	c := &Catalog{
		tiers: make([]domain.TierDefinition, len(defs)),
		byID:  make(map[int]int, len(defs)),
	}
	for i, def := range defs {
		if err := v.Struct(def); err != nil {
			return nil, fmt.Errorf("tier %d: %w", def.ID, err)
		}
		if i > 0 && def.ID <= defs[i-1].ID {
			return nil, fmt.Errorf("tier ids must be unique and ascending (got %d after %d)", def.ID, defs[i-1].ID)
		}
		if def.Terminal && i != len(defs)-1 {
			return nil, fmt.Errorf("terminal tier %d must be last", def.ID)
		}
		c.tiers[i] = def
		c.byID[def.ID] = i
	}
	return c, nil
}

// Tiers returns a copy of the ordered definitions.
func (c *Catalog) Tiers() []domain.TierDefinition {
	return append([]domain.TierDefinition{}, c.tiers...)
}

// Lookup returns the tier with id and its catalog index.
func (c *Catalog) Lookup(id int) (domain.TierDefinition, int, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return domain.TierDefinition{}, -1, false
	}
	return c.tiers[idx], idx, true
}

// Len reports the number of tiers.
func (c *Catalog) Len() int {
	return len(c.tiers)
}
