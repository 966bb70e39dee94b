/*
Package hardware maps model identifiers to the accelerator hardware assumed to serve them.
*/
package hardware

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/valyala/fastjson"
)

// DefaultRegion is the grid region used when a profile does not name one.
const DefaultRegion = "default"

//go:embed profiles.json
var builtinJSON []byte

// Profile describes the serving hardware of a model. The operational carbon of a request is
// attributed to the power drawn by all devices for the duration of the request, so only
// DeviceCount, DevicePowerKW and Region take part in the computation.
type Profile struct {
	DeviceCount   int     `json:"device_count"`
	DevicePowerKW float64 `json:"device_power_kw"`
	ChipType      string  `json:"chip_type"`
	Region        string  `json:"region"`
	Notes         string  `json:"notes,omitempty"`
}

// TotalPowerKW returns the steady-state power draw of all devices in kW.
func (p Profile) TotalPowerKW() float64 {
	return float64(p.DeviceCount) * p.DevicePowerKW
}

// DefaultProfile returns the profile used for models missing from a catalog.
func DefaultProfile() Profile {
	const (
		defaultDeviceCount = 1
		defaultPowerKW     = 0.5
		defaultChip        = "H100"
	)

	return Profile{
		DeviceCount:   defaultDeviceCount,
		DevicePowerKW: defaultPowerKW,
		ChipType:      defaultChip,
		Region:        DefaultRegion,
	}
}

// Catalog is a read-only mapping from model identifier to Profile.
// It is safe for concurrent use.
type Catalog struct {
	fallback Profile
	profiles map[string]Profile
}

// New returns a catalog over profiles. Profiles without a region are assigned DefaultRegion.
func New(fallback Profile, profiles map[string]Profile) *Catalog {
	c := &Catalog{
		fallback: normalize(fallback),
		profiles: make(map[string]Profile, len(profiles)),
	}
	for id, p := range profiles {
		c.profiles[id] = normalize(p)
	}
	return c
}

var builtin = sync.OnceValues(func() (*Catalog, error) {
	return Parse(builtinJSON)
})

// Builtin returns the catalog shipped with the module.
func Builtin() *Catalog {
	c, err := builtin()
	if err != nil {
		panic(fmt.Sprintf("hardware: embedded catalog is invalid: %v", err))
	}
	return c
}

// ProfileFor returns the profile registered for modelID, or the fallback profile. It never fails.
// Identifiers are matched exactly and case-sensitively.
func (c *Catalog) ProfileFor(modelID string) Profile {
	p, _ := c.Lookup(modelID)
	return p
}

// Lookup is ProfileFor that also reports whether modelID was known.
func (c *Catalog) Lookup(modelID string) (Profile, bool) {
	if p, ok := c.profiles[modelID]; ok {
		return p, true
	}
	return c.fallback, false
}

// Fallback returns the profile used for unknown models.
func (c *Catalog) Fallback() Profile {
	return c.fallback
}

// Models returns the known model identifiers in lexical order.
func (c *Catalog) Models() []string {
	ids := make([]string, 0, len(c.profiles))
	for id := range c.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads a JSON catalog from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hardware catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded hardware catalog", "path", path, "count", len(c.profiles))
	return c, nil
}

// Parse decodes a JSON catalog of the form
//
//	{"default": {...}, "profiles": [{"model": "gpt-4", "device_count": 16, ...}]}
//
// The "default" object is optional and replaces DefaultProfile when present.
func Parse(data []byte) (*Catalog, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hardware catalog: %w", err)
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("hardware catalog must be a JSON object, got %s", v.Type())
	}

	fallback := DefaultProfile()
	if d := v.Get("default"); d != nil && d.Type() != fastjson.TypeNull {
		fallback, err = parseProfile(d)
		if err != nil {
			return nil, fmt.Errorf("default profile: %w", err)
		}
	}

	profiles := make(map[string]Profile)
	for i, pv := range v.GetArray("profiles") {
		model := string(pv.GetStringBytes("model"))
		if model == "" {
			return nil, fmt.Errorf("profile %d: model cannot be empty", i)
		}
		if _, dup := profiles[model]; dup {
			return nil, fmt.Errorf("profile %d: duplicate model %q", i, model)
		}
		prof, err := parseProfile(pv)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", model, err)
		}
		profiles[model] = prof
	}

	return New(fallback, profiles), nil
}

func parseProfile(v *fastjson.Value) (Profile, error) {
	if v.Type() != fastjson.TypeObject {
		return Profile{}, fmt.Errorf("unexpected type %s, want object", v.Type())
	}

	dc := v.Get("device_count")
	if dc == nil {
		return Profile{}, fmt.Errorf("device_count is required")
	}
	count, err := dc.Int()
	if err != nil {
		return Profile{}, fmt.Errorf("device_count: %w", err)
	}
	if count <= 0 {
		return Profile{}, fmt.Errorf("device_count must be greater than 0")
	}

	pw := v.Get("device_power_kw")
	if pw == nil {
		return Profile{}, fmt.Errorf("device_power_kw is required")
	}
	power, err := pw.Float64()
	if err != nil {
		return Profile{}, fmt.Errorf("device_power_kw: %w", err)
	}
	if power <= 0 {
		return Profile{}, fmt.Errorf("device_power_kw must be greater than 0")
	}

	region := string(v.GetStringBytes("region"))
	if region == "" {
		// older catalogs keyed the grid by country
		region = string(v.GetStringBytes("country"))
	}

	return normalize(Profile{
		DeviceCount:   count,
		DevicePowerKW: power,
		ChipType:      string(v.GetStringBytes("chip_type")),
		Region:        region,
		Notes:         string(v.GetStringBytes("notes")),
	}), nil
}

func normalize(p Profile) Profile {
	if p.Region == "" {
		p.Region = DefaultRegion
	}
	return p
}
