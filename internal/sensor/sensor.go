// Package sensor maps semantic band roles to band indices within an ARD
// frame. Continuum-removal indices additionally need the central
// wavelength of the roles they bracket, so the map carries those too.
package sensor

import (
	"encoding/json"
	"fmt"
	"os"
)

// Role is a semantic band name. Optical roles follow the usual
// blue..swir2 ladder; bnir is the broad NIR band of Sentinel-2 (B8) as
// opposed to the narrow nir (B8A). vv and vh address SAR backscatter.
type Role string

const (
	Blue     Role = "blue"
	Green    Role = "green"
	Red      Role = "red"
	NIR      Role = "nir"
	SWIR0    Role = "swir0"
	SWIR1    Role = "swir1"
	SWIR2    Role = "swir2"
	BNIR     Role = "bnir"
	RedEdge1 Role = "rededge1"
	RedEdge2 Role = "rededge2"
	RedEdge3 Role = "rededge3"
	VV       Role = "vv"
	VH       Role = "vh"
)

// Map resolves band roles to band indices in the ARD frame, and roles to
// central wavelengths (micrometers) where continuum removal needs them.
type Map struct {
	Name        string           `json:"name"`
	Bands       map[Role]int     `json:"bands"`
	Wavelengths map[Role]float64 `json:"wavelengths,omitempty"`
}

// Band resolves a role to its band index.
func (m *Map) Band(r Role) (int, error) {
	b, ok := m.Bands[r]
	if !ok {
		return 0, fmt.Errorf("sensor %q does not provide band role %q", m.Name, r)
	}
	return b, nil
}

// Wavelength resolves a role to its central wavelength in micrometers.
func (m *Map) Wavelength(r Role) (float64, error) {
	w, ok := m.Wavelengths[r]
	if !ok {
		return 0, fmt.Errorf("sensor %q has no wavelength for band role %q", m.Name, r)
	}
	return w, nil
}

// Load reads a sensor map from a JSON file. The schema matches the Map
// struct so presets can be exported and edited.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sensor map: %w", err)
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse sensor map %s: %w", path, err)
	}
	if len(m.Bands) == 0 {
		return nil, fmt.Errorf("sensor map %s defines no bands", path)
	}
	return &m, nil
}

// Preset returns a built-in sensor map by name, or an error listing the
// known presets.
func Preset(name string) (*Map, error) {
	switch name {
	case "sentinel2":
		return Sentinel2(), nil
	case "landsat8":
		return Landsat8(), nil
	case "sentinel1":
		return Sentinel1(), nil
	}
	return nil, fmt.Errorf("unknown sensor preset %q (known: sentinel2, landsat8, sentinel1)", name)
}

// Sentinel2 maps the ten land-surface bands of a Sentinel-2 ARD product
// in their customary stacking order.
func Sentinel2() *Map {
	return &Map{
		Name: "sentinel2",
		Bands: map[Role]int{
			Blue: 0, Green: 1, Red: 2,
			RedEdge1: 3, RedEdge2: 4, RedEdge3: 5,
			BNIR: 6, NIR: 7, SWIR1: 8, SWIR2: 9,
		},
		Wavelengths: map[Role]float64{
			Blue: 0.492, Green: 0.559, Red: 0.665,
			RedEdge1: 0.704, RedEdge2: 0.739, RedEdge3: 0.780,
			BNIR: 0.833, NIR: 0.864, SWIR1: 1.610, SWIR2: 2.186,
		},
	}
}

// Landsat8 maps the six reflective bands of a Landsat-8/9 ARD product.
// The broad and narrow NIR roles collapse onto the single OLI NIR band.
func Landsat8() *Map {
	return &Map{
		Name: "landsat8",
		Bands: map[Role]int{
			Blue: 0, Green: 1, Red: 2,
			NIR: 3, BNIR: 3, SWIR1: 4, SWIR2: 5,
		},
		Wavelengths: map[Role]float64{
			Blue: 0.482, Green: 0.561, Red: 0.655,
			NIR: 0.865, BNIR: 0.865, SWIR1: 1.609, SWIR2: 2.201,
		},
	}
}

// Sentinel1 maps dual-pol SAR backscatter.
func Sentinel1() *Map {
	return &Map{
		Name:  "sentinel1",
		Bands: map[Role]int{VV: 0, VH: 1},
	}
}
