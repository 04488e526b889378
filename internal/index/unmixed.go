package index

import (
	"math"
	"sync"

	"github.com/arden-geo/tsindex/internal/ard"
	"github.com/arden-geo/tsindex/internal/unmix"
)

// roundShort rounds a scaled fraction/RMSE to int16; out-of-range or
// non-finite values become nodata.
func roundShort(v float64, nodata int16) int16 {
	r := math.Round(v)
	if math.IsNaN(r) || r > math.MaxInt16 || r < math.MinInt16 {
		return nodata
	}
	return int16(r)
}

// smaScratch bundles one worker's solver scratch with the spectrum
// staging buffer.
type smaScratch struct {
	sc       *unmix.Scratch
	spectrum []float64
}

// indexUnmixed runs the SMA solver over every valid (date, pixel). The
// NNLS inner loop has wide runtime variance, so pixels are scheduled
// dynamically with granularity 1; workers draw their scratch from a pool
// so the pixel loop itself never allocates.
func indexUnmixed(st *ard.Stack, mask []byte, out *ard.TimeSeries, sv *unmix.Solver, nodata int16, workers int) {
	params := sv.Params()
	nb := sv.NBands()
	sel := params.SelectedEndmember - 1
	emitRMS := params.EmitRMS && out.RMS != nil

	pool := sync.Pool{New: func() any {
		return &smaScratch{sc: sv.NewScratch(), spectrum: make([]float64, nb)}
	}}

	forEachPixelDynamic(workers, st.Cells(), func(p int) {
		if mask != nil && mask[p] == 0 {
			for t := range st.Frames {
				out.TSS[t][p] = nodata
				if emitRMS {
					out.RMS[t][p] = nodata
				}
			}
			return
		}

		ws := pool.Get().(*smaScratch)
		defer pool.Put(ws)

		for t, f := range st.Frames {
			if f.Mask[p] == 0 {
				out.TSS[t][p] = nodata
				if emitRMS {
					out.RMS[t][p] = nodata
				}
				continue
			}

			for i := 0; i < nb; i++ {
				ws.spectrum[i] = float64(f.Bands[i][p]) / reflectanceScale
			}

			frac, rmse := sv.Unmix(ws.sc, ws.spectrum)
			if emitRMS {
				out.RMS[t][p] = roundShort(rmse*reflectanceScale, nodata)
			}
			if params.ShadeNormalize {
				sv.ShadeNormalize(frac)
			}
			out.TSS[t][p] = roundShort(frac[sel]*reflectanceScale, nodata)
		}
	})
}
