/*
Package grid holds the carbon intensity of the electricity grid per deployment region.
*/
package grid

import (
	"fmt"
	"math"
	"sort"
)

// DefaultRegion is the key every table must contain.
const DefaultRegion = "default"

// Table maps a region key to grid carbon intensity in kgCO2eq / kWh.
// Lookups never fail: unknown regions resolve to the "default" entry.
type Table struct {
	intensity map[string]float64
}

// Builtin returns the intensities shipped with the module.
func Builtin() *Table {
	t, _ := New(map[string]float64{
		DefaultRegion: 0.4,
		"us":          0.4,
		"fr":          0.06,
		"cn":          0.55,
	})
	return t
}

// New validates intensities and returns a table over a copy of them.
// The map must contain a "default" entry and every value must be a finite, non-negative number.
func New(intensity map[string]float64) (*Table, error) {
	if _, ok := intensity[DefaultRegion]; !ok {
		return nil, fmt.Errorf("carbon intensity table must contain a %q entry", DefaultRegion)
	}
	t := &Table{intensity: make(map[string]float64, len(intensity))}
	for region, v := range intensity {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("carbon intensity for region %q must be a non-negative number, got %v", region, v)
		}
		t.intensity[region] = v
	}
	return t, nil
}

// Lookup returns the intensity for region in kgCO2eq / kWh, falling back to the default entry.
func (t *Table) Lookup(region string) float64 {
	v, _ := t.Resolve(region)
	return v
}

// Resolve is Lookup that also returns the region key actually used.
func (t *Table) Resolve(region string) (float64, string) {
	if v, ok := t.intensity[region]; ok {
		return v, region
	}
	return t.intensity[DefaultRegion], DefaultRegion
}

// Regions returns the region keys in lexical order.
func (t *Table) Regions() []string {
	keys := make([]string, 0, len(t.intensity))
	for k := range t.intensity {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
