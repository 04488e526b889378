// Package cite collects literature tokens for the index families used in
// a run. The registry is append-only and idempotent on the same token, so
// kernels can announce themselves on every dispatch without flooding the
// run summary.
package cite

import (
	"fmt"
	"io"
	"sync"
)

// Token identifies one citable method or index family.
type Token string

const (
	NDVI        Token = "ndvi"
	EVI         Token = "evi"
	EV2         Token = "evi2"
	NBR         Token = "nbr"
	SARVI       Token = "sarvi"
	TCap        Token = "tasseled-cap"
	Disturbance Token = "tasseled-cap-disturbance"
	NDBI        Token = "ndbi"
	NDWI        Token = "ndwi"
	MNDWI       Token = "mndwi"
	NDSI        Token = "ndsi"
	NDTI        Token = "ndti"
	NDMI        Token = "ndmi"
	KNDVI       Token = "kndvi"
	NDRE1       Token = "ndre1"
	NDRE2       Token = "ndre2"
	CIre        Token = "cire"
	NDVIre1     Token = "ndvire1"
	NDVIre2     Token = "ndvire2"
	NDVIre3     Token = "ndvire3"
	NDVIre1n    Token = "ndvire1n"
	NDVIre2n    Token = "ndvire2n"
	NDVIre3n    Token = "ndvire3n"
	MSRre       Token = "msrre"
	MSRren      Token = "msrren"
	CCI         Token = "cci"
	SMA         Token = "sma"
)

// references maps tokens to the publication a run should acknowledge.
var references = map[Token]string{
	NDVI:        "Tucker (1979): Red and photographic infrared linear combinations for monitoring vegetation",
	EVI:         "Huete et al. (2002): Overview of the radiometric and biophysical performance of the MODIS vegetation indices",
	EV2:         "Jiang et al. (2008): Development of a two-band enhanced vegetation index without a blue band",
	NBR:         "Key & Benson (2006): Landscape assessment: ground measure of severity, the Composite Burn Index",
	SARVI:       "Huete & Liu (1994): An error and sensitivity analysis of the atmospheric- and soil-correcting variants of the NDVI",
	TCap:        "Crist (1985): A TM Tasseled Cap equivalent transformation for reflectance factor data",
	Disturbance: "Healey et al. (2005): Comparison of Tasseled Cap-based Landsat data structures for use in forest disturbance detection",
	NDBI:        "Zha et al. (2003): Use of normalized difference built-up index in automatically mapping urban areas",
	NDWI:        "McFeeters (1996): The use of the Normalized Difference Water Index in the delineation of open water features",
	MNDWI:       "Xu (2006): Modification of normalised difference water index to enhance open water features",
	NDSI:        "Hall et al. (1995): Development of methods for mapping global snow cover",
	NDTI:        "van Deventer et al. (1997): Using Thematic Mapper data to identify contrasting soil plains and tillage practices",
	NDMI:        "Gao (1996): NDWI - A normalized difference water index for remote sensing of vegetation liquid water",
	KNDVI:       "Camps-Valls et al. (2021): A unified vegetation index for quantifying the terrestrial biosphere",
	NDRE1:       "Gitelson & Merzlyak (1994): Spectral reflectance changes associated with autumn senescence",
	NDRE2:       "Barnes et al. (2000): Coincident detection of crop water stress, nitrogen status and canopy density",
	CIre:        "Gitelson et al. (2003): Relationships between leaf chlorophyll content and spectral reflectance",
	NDVIre1:     "Gitelson & Merzlyak (1994): Spectral reflectance changes associated with autumn senescence",
	NDVIre2:     "Fernandez-Manso et al. (2016): Sentinel-2A red-edge spectral indices suitability for discriminating burn severity",
	NDVIre3:     "Fernandez-Manso et al. (2016): Sentinel-2A red-edge spectral indices suitability for discriminating burn severity",
	NDVIre1n:    "Fernandez-Manso et al. (2016): Sentinel-2A red-edge spectral indices suitability for discriminating burn severity",
	NDVIre2n:    "Fernandez-Manso et al. (2016): Sentinel-2A red-edge spectral indices suitability for discriminating burn severity",
	NDVIre3n:    "Fernandez-Manso et al. (2016): Sentinel-2A red-edge spectral indices suitability for discriminating burn severity",
	MSRre:       "Chen (1996): Evaluation of vegetation indices and a modified simple ratio for boreal applications",
	MSRren:      "Chen (1996): Evaluation of vegetation indices and a modified simple ratio for boreal applications",
	CCI:         "Gamon et al. (2016): A remotely sensed pigment index reveals photosynthetic phenology in evergreen conifers",
	SMA:         "Smith et al. (1990): Vegetation in deserts: I. A regional measure of abundance from multispectral images",
}

// Registry accumulates citation tokens. The zero value is unusable; use
// NewRegistry. A nil registry is a no-op sink so callers without a
// citation side-channel can pass nil.
type Registry struct {
	mu    sync.Mutex
	seen  map[Token]bool
	order []Token
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{seen: make(map[Token]bool)}
}

// Cite records a token. Repeated citations of the same token are ignored.
func (r *Registry) Cite(t Token) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[t] {
		return
	}
	r.seen[t] = true
	r.order = append(r.order, t)
}

// Tokens returns the cited tokens in first-citation order.
func (r *Registry) Tokens() []Token {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Token, len(r.order))
	copy(out, r.order)
	return out
}

// Write dumps the cited references, one per line, to w.
func (r *Registry) Write(w io.Writer) error {
	for _, t := range r.Tokens() {
		ref, ok := references[t]
		if !ok {
			ref = string(t)
		}
		if _, err := fmt.Fprintf(w, "%s\n", ref); err != nil {
			return err
		}
	}
	return nil
}
