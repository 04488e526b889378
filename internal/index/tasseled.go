package index

import "github.com/arden-geo/tsindex/internal/ard"

// Tasseled Cap components.
const (
	tcBrightness = iota
	tcGreenness
	tcWetness
	tcDisturbance
)

// tcCoef is the Crist (1985) reflectance-factor coefficient matrix for
// the six bands blue, green, red, nir, swir1, swir2.
var tcCoef = [3][6]float64{
	{0.2043, 0.4158, 0.5524, 0.5741, 0.3124, 0.2303},   // brightness
	{-0.1603, -0.2819, -0.4934, 0.7940, -0.0002, -0.1446}, // greenness
	{0.0315, 0.2021, 0.3102, 0.1594, -0.6806, -0.6109},  // wetness
}

// indexTasseled computes one Tasseled Cap component, or for the
// disturbance composite the signed sum brightness - greenness - wetness.
// Results stay in raw band units.
func indexTasseled(st *ard.Stack, mask []byte, out *ard.TimeSeries, comp, b, g, r, n, s1, s2 int, nodata int16, workers int) {
	comp0, comp1 := comp, comp+1
	sign := [3]float64{1, 1, 1}
	if comp == tcDisturbance {
		comp0, comp1 = 0, 3
		sign[1] = -1
		sign[2] = -1
	}

	maskedPixelLoop(st, mask, out, nodata, workers, func(f *ard.Frame, t, p int) int16 {
		var ind float64
		for i := comp0; i < comp1; i++ {
			c := &tcCoef[i]
			dot := c[0]*float64(f.Bands[b][p]) + c[1]*float64(f.Bands[g][p]) +
				c[2]*float64(f.Bands[r][p]) + c[3]*float64(f.Bands[n][p]) +
				c[4]*float64(f.Bands[s1][p]) + c[5]*float64(f.Bands[s2][p])
			ind += sign[i] * dot
		}
		v, ok := toShort(ind)
		if !ok {
			return nodata
		}
		return v
	})
}
