package index

import (
	"math"

	"github.com/arden-geo/tsindex/internal/ard"
)

// reflectanceScale is the int16 encoding of reflectance: 10000 == 1.0.
const reflectanceScale = 10000.0

// ratioScale is the smaller encoding used by the ratio-minus-one family.
const ratioScale = 1000.0

// toShort converts a scaled index value to int16, truncating toward
// zero. Values outside the int16 range report ok=false and become
// nodata at the call site.
func toShort(v float64) (int16, bool) {
	if v > math.MaxInt16 || v < math.MinInt16 {
		return 0, false
	}
	return int16(v), true
}

// maskedPixelLoop runs the shared scalar-kernel shape: a static parallel
// loop over pixels; pixels rejected by the global mask get nodata across
// all dates, everything else is handed to perDate once per (t,p) with
// the frame-mask check already applied.
func maskedPixelLoop(st *ard.Stack, mask []byte, out *ard.TimeSeries, nodata int16, workers int, perDate func(f *ard.Frame, t, p int) int16) {
	forEachPixelStatic(workers, st.Cells(), func(p int) {
		if mask != nil && mask[p] == 0 {
			for t := range st.Frames {
				out.TSS[t][p] = nodata
			}
			return
		}
		for t, f := range st.Frames {
			if f.Mask[p] == 0 {
				out.TSS[t][p] = nodata
				continue
			}
			out.TSS[t][p] = perDate(f, t, p)
		}
	})
}

// indexBand copies one ARD band through the masking logic.
func indexBand(st *ard.Stack, mask []byte, out *ard.TimeSeries, b int, nodata int16, workers int) {
	maskedPixelLoop(st, mask, out, nodata, workers, func(f *ard.Frame, t, p int) int16 {
		return f.Bands[b][p]
	})
}

// indexDifferenced computes (b1-b2)/(b1+b2), e.g. NDVI.
func indexDifferenced(st *ard.Stack, mask []byte, out *ard.TimeSeries, b1, b2 int, nodata int16, workers int) {
	maskedPixelLoop(st, mask, out, nodata, workers, func(f *ard.Frame, t, p int) int16 {
		v1 := float64(f.Bands[b1][p])
		v2 := float64(f.Bands[b2][p])
		sum := v1 + v2
		if sum == 0 {
			return nodata
		}
		ind := (v1 - v2) / sum
		if ind < -1 || ind > 1 {
			return nodata
		}
		return int16(ind * reflectanceScale)
	})
}

// indexRatioMinusOne computes (b1/b2)-1 at scale 1000, e.g. CIre.
func indexRatioMinusOne(st *ard.Stack, mask []byte, out *ard.TimeSeries, b1, b2 int, nodata int16, workers int) {
	maskedPixelLoop(st, mask, out, nodata, workers, func(f *ard.Frame, t, p int) int16 {
		if f.Bands[b2][p] == 0 {
			return nodata
		}
		ind := float64(f.Bands[b1][p])/float64(f.Bands[b2][p]) - 1.0
		v, ok := toShort(ind * ratioScale)
		if !ok {
			return nodata
		}
		return v
	})
}

// indexMSR computes the modified simple ratio ((b1/b2)-1)/sqrt((b1/b2)+1).
func indexMSR(st *ard.Stack, mask []byte, out *ard.TimeSeries, b1, b2 int, nodata int16, workers int) {
	maskedPixelLoop(st, mask, out, nodata, workers, func(f *ard.Frame, t, p int) int16 {
		if f.Bands[b2][p] == 0 {
			return nodata
		}
		r := float64(f.Bands[b1][p]) / float64(f.Bands[b2][p])
		lower := math.Sqrt(r + 1.0)
		if lower == 0 || math.IsNaN(lower) {
			return nodata
		}
		v, ok := toShort((r - 1.0) / lower * reflectanceScale)
		if !ok {
			return nodata
		}
		return v
	})
}

// indexKernelized computes the kernelized NDVI with an RBF kernel whose
// length scale is the band mean. Both bands must be strictly positive.
func indexKernelized(st *ard.Stack, mask []byte, out *ard.TimeSeries, b1, b2 int, nodata int16, workers int) {
	maskedPixelLoop(st, mask, out, nodata, workers, func(f *ard.Frame, t, p int) int16 {
		if f.Bands[b1][p] <= 0 || f.Bands[b2][p] <= 0 {
			return nodata
		}
		v1 := float64(f.Bands[b1][p])
		v2 := float64(f.Bands[b2][p])
		sigma := 0.5 * (v1 + v2)
		diff := v1 - v2
		k := math.Exp(-(diff * diff) / (2 * sigma * sigma))
		return int16((1 - k) / (1 + k) * reflectanceScale)
	})
}

// indexResistance computes the soil/atmosphere resistance family
// f1*(nir-red)/(nir+f2*red-f3*blue+f4*scale). With rbc the red band is
// first red-blue corrected: red -= blue-red.
func indexResistance(st *ard.Stack, mask []byte, out *ard.TimeSeries, n, r, b int, f1, f2, f3, f4 float64, rbc bool, nodata int16, workers int) {
	x := 0.0
	if rbc {
		x = 1.0
	}
	maskedPixelLoop(st, mask, out, nodata, workers, func(f *ard.Frame, t, p int) int16 {
		nir := float64(f.Bands[n][p])
		red := float64(f.Bands[r][p])
		blue := float64(f.Bands[b][p])
		red -= x * (blue - red)
		den := nir + f2*red - f3*blue + f4*reflectanceScale
		if den == 0 {
			return nodata
		}
		// The classic |ind|<=1 validity band is deliberately not
		// enforced here; EVI and friends can leave it.
		v, ok := toShort(f1 * (nir - red) / den * reflectanceScale)
		if !ok {
			return nodata
		}
		return v
	})
}

// indexContRemove subtracts a linearly interpolated baseline between the
// bracketing bands (b1 at w1, b2 at w2) from the central band bm at wm.
// The difference stays in raw band units; a result outside the int16
// range becomes nodata rather than wrapping.
func indexContRemove(st *ard.Stack, mask []byte, out *ard.TimeSeries, bm, b1, b2 int, wm, w1, w2 float64, nodata int16, workers int) {
	maskedPixelLoop(st, mask, out, nodata, workers, func(f *ard.Frame, t, p int) int16 {
		baseline := (float64(f.Bands[b1][p])*(w2-wm) + float64(f.Bands[b2][p])*(wm-w1)) / (w2 - w1)
		v, ok := toShort(float64(f.Bands[bm][p]) - baseline)
		if !ok {
			return nodata
		}
		return v
	})
}
