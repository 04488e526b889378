// Package index evaluates per-pixel spectral index time series over an
// ARD stack. The dispatcher maps an index identifier to one of the
// closed-form scalar kernels, the Tasseled Cap transform, continuum
// removal, or the spectral-mixture-analysis solver, resolving band roles
// through the sensor map.
package index

import (
	"fmt"
	"log"

	"github.com/arden-geo/tsindex/internal/ard"
	"github.com/arden-geo/tsindex/internal/cite"
	"github.com/arden-geo/tsindex/internal/sensor"
	"github.com/arden-geo/tsindex/internal/unmix"
)

// ID identifies a spectral index.
type ID string

// Band copies.
const (
	BLU ID = "BLUE"
	GRN ID = "GREEN"
	RED ID = "RED"
	NIR ID = "NIR"
	SW0 ID = "SWIR0"
	SW1 ID = "SWIR1"
	SW2 ID = "SWIR2"
	RE1 ID = "RE1"
	RE2 ID = "RE2"
	RE3 ID = "RE3"
	BNR ID = "BNIR"
	BVV ID = "VV"
	BVH ID = "VH"
)

// Derived indices.
const (
	NDVI     ID = "NDVI"
	EVI      ID = "EVI"
	EV2      ID = "EVI2"
	NBR      ID = "NBR"
	ARVI     ID = "ARVI"
	SAVI     ID = "SAVI"
	SARVI    ID = "SARVI"
	TCB      ID = "TC-BRIGHT"
	TCG      ID = "TC-GREEN"
	TCW      ID = "TC-WET"
	TCD      ID = "TC-DI"
	NDBI     ID = "NDBI"
	NDWI     ID = "NDWI"
	MNDWI    ID = "MNDWI"
	NDSI     ID = "NDSI"
	NDTI     ID = "NDTI"
	NDMI     ID = "NDMI"
	KNDVI    ID = "KNDVI"
	NDRE1    ID = "NDRE1"
	NDRE2    ID = "NDRE2"
	CIre     ID = "CIRE"
	NDVIre1  ID = "NDVIRE1"
	NDVIre2  ID = "NDVIRE2"
	NDVIre3  ID = "NDVIRE3"
	NDVIre1n ID = "NDVIRE1N"
	NDVIre2n ID = "NDVIRE2N"
	NDVIre3n ID = "NDVIRE3N"
	MSRre    ID = "MSRRE"
	MSRren   ID = "MSRREN"
	CCI      ID = "CCI"
	CSW      ID = "CSW"
	SMA      ID = "SMA"
)

// Engine evaluates spectral indices over an ARD stack. Sensor must be
// set; SMA is required only when the SMA index is dispatched. The
// citation registry may be nil.
type Engine struct {
	Sensor    *sensor.Map
	SMA       *unmix.Solver
	Citations *cite.Registry
	// Workers caps the pixel-loop parallelism; <=0 means one worker per
	// CPU.
	Workers int
}

// Compute evaluates one index over the stack and writes the full T×N
// output. A nil global mask enables every pixel. An unknown identifier
// logs a diagnostic, leaves the output untouched and still reports
// success; shape violations and unresolvable band roles are errors.
func (e *Engine) Compute(st *ard.Stack, mask []byte, out *ard.TimeSeries, id ID, nodata int16) error {
	if e.Sensor == nil {
		return fmt.Errorf("engine has no sensor map")
	}
	if err := st.Validate(); err != nil {
		return fmt.Errorf("ard stack: %w", err)
	}
	if err := out.Validate(st.Dates(), st.Cells()); err != nil {
		return fmt.Errorf("output buffer: %w", err)
	}
	if mask != nil && len(mask) != st.Cells() {
		return fmt.Errorf("global mask has %d cells, expected %d", len(mask), st.Cells())
	}

	w := e.Workers

	switch id {

	case BLU, GRN, RED, NIR, SW0, SW1, SW2, RE1, RE2, RE3, BNR, BVV, BVH:
		b, err := e.Sensor.Band(bandCopyRole[id])
		if err != nil {
			return err
		}
		indexBand(st, mask, out, b, nodata, w)

	case NDVI, NBR, NDBI, NDWI, MNDWI, NDSI, NDTI, NDMI, NDRE1, NDRE2,
		NDVIre1, NDVIre2, NDVIre3, NDVIre1n, NDVIre2n, NDVIre3n, CCI:
		d := diffPresets[id]
		e.cite(d.token)
		bands, err := e.bands(d.b1, d.b2)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		indexDifferenced(st, mask, out, bands[0], bands[1], nodata, w)

	case CIre:
		e.cite(cite.CIre)
		bands, err := e.bands(sensor.RedEdge3, sensor.RedEdge1)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		indexRatioMinusOne(st, mask, out, bands[0], bands[1], nodata, w)

	case MSRre:
		e.cite(cite.MSRre)
		bands, err := e.bands(sensor.BNIR, sensor.RedEdge1)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		indexMSR(st, mask, out, bands[0], bands[1], nodata, w)

	case MSRren:
		e.cite(cite.MSRren)
		bands, err := e.bands(sensor.NIR, sensor.RedEdge1)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		indexMSR(st, mask, out, bands[0], bands[1], nodata, w)

	case KNDVI:
		e.cite(cite.KNDVI)
		bands, err := e.bands(sensor.NIR, sensor.Red)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		indexKernelized(st, mask, out, bands[0], bands[1], nodata, w)

	case EVI, EV2, ARVI, SAVI, SARVI:
		r := resistancePresets[id]
		e.cite(r.token)
		bands, err := e.bands(r.n, r.r, r.b)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		indexResistance(st, mask, out, bands[0], bands[1], bands[2], r.f1, r.f2, r.f3, r.f4, r.rbc, nodata, w)

	case TCB, TCG, TCW, TCD:
		comp := tcBrightness
		switch id {
		case TCG:
			comp = tcGreenness
		case TCW:
			comp = tcWetness
		case TCD:
			comp = tcDisturbance
		}
		if id == TCD {
			e.cite(cite.Disturbance)
		} else {
			e.cite(cite.TCap)
		}
		bands, err := e.bands(sensor.Blue, sensor.Green, sensor.Red, sensor.NIR, sensor.SWIR1, sensor.SWIR2)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		indexTasseled(st, mask, out, comp, bands[0], bands[1], bands[2], bands[3], bands[4], bands[5], nodata, w)

	case CSW:
		bands, err := e.bands(sensor.SWIR1, sensor.NIR, sensor.SWIR2)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		wm, err := e.Sensor.Wavelength(sensor.SWIR1)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		w1, err := e.Sensor.Wavelength(sensor.NIR)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		w2, err := e.Sensor.Wavelength(sensor.SWIR2)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		indexContRemove(st, mask, out, bands[0], bands[1], bands[2], wm, w1, w2, nodata, w)

	case SMA:
		if e.SMA == nil {
			return fmt.Errorf("SMA selected without an unmixing solver")
		}
		if e.SMA.NBands() != st.NBands() {
			return fmt.Errorf("endmember table has %d bands, ARD has %d", e.SMA.NBands(), st.NBands())
		}
		if e.SMA.Params().EmitRMS && out.RMS == nil {
			return fmt.Errorf("SMA residual emission requested but output has no RMS plane")
		}
		e.cite(cite.SMA)
		indexUnmixed(st, mask, out, e.SMA, nodata, w)

	default:
		log.Printf("[engine] unknown index %q, output untouched", id)
	}

	return nil
}

// ComputeAll evaluates a list of indices, allocating one output buffer
// per identifier. The residual plane is allocated only for SMA with
// residual emission enabled.
func (e *Engine) ComputeAll(st *ard.Stack, mask []byte, ids []ID, nodata int16) (map[ID]*ard.TimeSeries, error) {
	out := make(map[ID]*ard.TimeSeries, len(ids))
	for _, id := range ids {
		withRMS := id == SMA && e.SMA != nil && e.SMA.Params().EmitRMS
		ts := ard.NewTimeSeries(st.Dates(), st.Cells(), withRMS)
		if err := e.Compute(st, mask, ts, id, nodata); err != nil {
			return nil, fmt.Errorf("index %s: %w", id, err)
		}
		out[id] = ts
	}
	return out, nil
}

func (e *Engine) cite(t cite.Token) { e.Citations.Cite(t) }

func (e *Engine) bands(roles ...sensor.Role) ([]int, error) {
	out := make([]int, len(roles))
	for i, r := range roles {
		b, err := e.Sensor.Band(r)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// bandCopyRole maps band-copy identifiers to their sensor role.
var bandCopyRole = map[ID]sensor.Role{
	BLU: sensor.Blue,
	GRN: sensor.Green,
	RED: sensor.Red,
	NIR: sensor.NIR,
	SW0: sensor.SWIR0,
	SW1: sensor.SWIR1,
	SW2: sensor.SWIR2,
	RE1: sensor.RedEdge1,
	RE2: sensor.RedEdge2,
	RE3: sensor.RedEdge3,
	BNR: sensor.BNIR,
	BVV: sensor.VV,
	BVH: sensor.VH,
}

// diffPresets holds the band-role pairs of the normalized-difference
// family. MNDWI and NDSI share a preset but keep distinct identifiers
// for citation.
var diffPresets = map[ID]struct {
	b1, b2 sensor.Role
	token  cite.Token
}{
	NDVI:     {sensor.NIR, sensor.Red, cite.NDVI},
	NBR:      {sensor.NIR, sensor.SWIR2, cite.NBR},
	NDBI:     {sensor.SWIR1, sensor.NIR, cite.NDBI},
	NDWI:     {sensor.Green, sensor.NIR, cite.NDWI},
	MNDWI:    {sensor.Green, sensor.SWIR1, cite.MNDWI},
	NDSI:     {sensor.Green, sensor.SWIR1, cite.NDSI},
	NDTI:     {sensor.SWIR1, sensor.SWIR2, cite.NDTI},
	NDMI:     {sensor.NIR, sensor.SWIR1, cite.NDMI},
	NDRE1:    {sensor.RedEdge2, sensor.RedEdge1, cite.NDRE1},
	NDRE2:    {sensor.RedEdge3, sensor.RedEdge1, cite.NDRE2},
	NDVIre1:  {sensor.BNIR, sensor.RedEdge1, cite.NDVIre1},
	NDVIre2:  {sensor.BNIR, sensor.RedEdge2, cite.NDVIre2},
	NDVIre3:  {sensor.BNIR, sensor.RedEdge3, cite.NDVIre3},
	NDVIre1n: {sensor.NIR, sensor.RedEdge1, cite.NDVIre1n},
	NDVIre2n: {sensor.NIR, sensor.RedEdge2, cite.NDVIre2n},
	NDVIre3n: {sensor.NIR, sensor.RedEdge3, cite.NDVIre3n},
	CCI:      {sensor.Green, sensor.Red, cite.CCI},
}

// resistancePresets holds the literal parameter tuples of the
// resistance family.
var resistancePresets = map[ID]struct {
	n, r, b        sensor.Role
	f1, f2, f3, f4 float64
	rbc            bool
	token          cite.Token
}{
	EVI:   {sensor.NIR, sensor.Red, sensor.Blue, 2.5, 6.0, 7.5, 1.0, false, cite.EVI},
	EV2:   {sensor.NIR, sensor.Red, sensor.Red, 2.4, 1.0, 0.0, 1.0, false, cite.EV2},
	ARVI:  {sensor.NIR, sensor.Red, sensor.Blue, 1.0, 1.0, 0.0, 0.0, true, cite.SARVI},
	SAVI:  {sensor.NIR, sensor.Red, sensor.Blue, 1.5, 1.0, 0.0, 0.5, false, cite.SARVI},
	SARVI: {sensor.NIR, sensor.Red, sensor.Blue, 1.5, 1.0, 0.0, 0.5, true, cite.SARVI},
}

// All returns every index identifier the dispatcher knows, band copies
// first.
func All() []ID {
	return []ID{
		BLU, GRN, RED, NIR, SW0, SW1, SW2, RE1, RE2, RE3, BNR, BVV, BVH,
		NDVI, EVI, EV2, NBR, ARVI, SAVI, SARVI,
		TCB, TCG, TCW, TCD,
		NDBI, NDWI, MNDWI, NDSI, NDTI, NDMI, KNDVI,
		NDRE1, NDRE2, CIre,
		NDVIre1, NDVIre2, NDVIre3, NDVIre1n, NDVIre2n, NDVIre3n,
		MSRre, MSRren, CCI, CSW, SMA,
	}
}

// Parse resolves a case-sensitive identifier string, reporting whether
// the dispatcher knows it.
func Parse(s string) (ID, bool) {
	id := ID(s)
	for _, known := range All() {
		if id == known {
			return id, true
		}
	}
	return id, false
}
