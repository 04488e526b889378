package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arden-geo/tsindex/internal/ard"
	"github.com/arden-geo/tsindex/internal/endmember"
	"github.com/arden-geo/tsindex/internal/sensor"
	"github.com/arden-geo/tsindex/internal/unmix"
)

func smaTable() *endmember.Table {
	return &endmember.Table{
		Names: []string{"veg", "soil"},
		Values: [][]float64{
			{0.1, 0.4},
			{0.5, 0.2},
		},
	}
}

func smaEngine(t *testing.T, p unmix.Params) *Engine {
	t.Helper()
	sv, err := unmix.NewSolver(smaTable(), p)
	require.NoError(t, err)
	return &Engine{
		Sensor:  &sensor.Map{Name: "sma-test", Bands: map[sensor.Role]int{}},
		SMA:     sv,
		Workers: 1,
	}
}

// twoBandStack builds a one-date stack of the given pixels, two bands
// per pixel, all frame-valid.
func twoBandStack(pixels [][2]int16) *ard.Stack {
	n := len(pixels)
	f := &ard.Frame{
		Bands: [][]int16{make([]int16, n), make([]int16, n)},
		Mask:  make([]byte, n),
	}
	for p, px := range pixels {
		f.Bands[0][p] = px[0]
		f.Bands[1][p] = px[1]
		f.Mask[p] = 1
	}
	return ard.NewStack(n, f)
}

func TestSMAHalfAndHalf(t *testing.T) {
	t.Parallel()
	eng := smaEngine(t, unmix.Params{Positivity: true, SumToOne: true, SelectedEndmember: 1})
	// x = 0.5*E1 + 0.5*E2 = (0.25, 0.35) -> reflectance ints (2500, 3500)
	st := twoBandStack([][2]int16{{2500, 3500}})
	out := ard.NewTimeSeries(1, 1, false)
	require.NoError(t, eng.Compute(st, nil, out, SMA, nodata))
	assert.InDelta(t, 5000, out.TSS[0][0], 2)
}

func TestSMAEmitRMS(t *testing.T) {
	t.Parallel()
	eng := smaEngine(t, unmix.Params{Positivity: true, SumToOne: true, SelectedEndmember: 1, EmitRMS: true})
	st := twoBandStack([][2]int16{{2500, 3500}})
	out := ard.NewTimeSeries(1, 1, true)
	require.NoError(t, eng.Compute(st, nil, out, SMA, nodata))
	// exact convex combination fits with ~zero residual
	assert.InDelta(t, 0, out.RMS[0][0], 1)
}

func TestSMAEmitRMSRequiresPlane(t *testing.T) {
	t.Parallel()
	eng := smaEngine(t, unmix.Params{Positivity: true, SelectedEndmember: 1, EmitRMS: true})
	st := twoBandStack([][2]int16{{2500, 3500}})
	out := ard.NewTimeSeries(1, 1, false)
	require.Error(t, eng.Compute(st, nil, out, SMA, nodata))
}

func TestSMABandCountMismatchIsFatal(t *testing.T) {
	t.Parallel()
	eng := smaEngine(t, unmix.Params{Positivity: true, SelectedEndmember: 1})
	f := &ard.Frame{Bands: [][]int16{{2500}, {3500}, {100}}, Mask: []byte{1}}
	st := ard.NewStack(1, f)
	out := ard.NewTimeSeries(1, 1, false)
	err := eng.Compute(st, nil, out, SMA, nodata)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endmember")
}

func TestSMAMaskDominanceCoversRMS(t *testing.T) {
	t.Parallel()
	eng := smaEngine(t, unmix.Params{Positivity: true, SumToOne: true, SelectedEndmember: 1, EmitRMS: true})
	st := twoBandStack([][2]int16{{2500, 3500}, {2500, 3500}, {2500, 3500}})
	st.Frames[0].Mask[2] = 0

	out := ard.NewTimeSeries(1, 3, true)
	require.NoError(t, eng.Compute(st, []byte{0, 1, 1}, out, SMA, nodata))

	// pixel 0 globally masked, pixel 2 frame-masked
	assert.Equal(t, nodata, out.TSS[0][0])
	assert.Equal(t, nodata, out.RMS[0][0])
	assert.Equal(t, nodata, out.TSS[0][2])
	assert.Equal(t, nodata, out.RMS[0][2])
	// pixel 1 computed
	assert.InDelta(t, 5000, out.TSS[0][1], 2)
}

func TestSMAShadeNormalization(t *testing.T) {
	t.Parallel()
	table := &endmember.Table{
		Names: []string{"veg", "soil", "shade"},
		Values: [][]float64{
			{0.10, 0.40, 0.0},
			{0.50, 0.20, 0.0},
		},
	}
	sv, err := unmix.NewSolver(table, unmix.Params{
		Positivity: true, SumToOne: true, ShadeNormalize: true, SelectedEndmember: 1,
	})
	require.NoError(t, err)
	eng := &Engine{
		Sensor:  &sensor.Map{Name: "sma-test", Bands: map[sensor.Role]int{}},
		SMA:     sv,
		Workers: 1,
	}

	// x = 0.25*E1 + 0.25*E2 + 0.5*shade: after shade normalization the
	// vegetation fraction rescales from 0.25 to 0.5
	st := twoBandStack([][2]int16{{1250, 1750}})
	out := ard.NewTimeSeries(1, 1, false)
	require.NoError(t, eng.Compute(st, nil, out, SMA, nodata))
	assert.InDelta(t, 5000, out.TSS[0][0], 5)
}

func TestSMARetainsSelectedEndmember(t *testing.T) {
	t.Parallel()
	eng := smaEngine(t, unmix.Params{Positivity: true, SumToOne: true, SelectedEndmember: 2})
	// x = 0.3*E1 + 0.7*E2 = (0.31, 0.29)
	st := twoBandStack([][2]int16{{3100, 2900}})
	out := ard.NewTimeSeries(1, 1, false)
	require.NoError(t, eng.Compute(st, nil, out, SMA, nodata))
	assert.InDelta(t, 7000, out.TSS[0][0], 2)
}

func TestSMADynamicSchedulingDeterminism(t *testing.T) {
	t.Parallel()
	eng := smaEngine(t, unmix.Params{Positivity: true, SumToOne: true, SelectedEndmember: 1})
	eng.Workers = 4

	pixels := make([][2]int16, 101)
	for p := range pixels {
		pixels[p] = [2]int16{int16(1000 + p*17%3000), int16(1200 + p*31%3000)}
	}
	st := twoBandStack(pixels)

	out1 := ard.NewTimeSeries(1, len(pixels), false)
	out2 := ard.NewTimeSeries(1, len(pixels), false)
	require.NoError(t, eng.Compute(st, nil, out1, SMA, nodata))
	require.NoError(t, eng.Compute(st, nil, out2, SMA, nodata))
	assert.Equal(t, out1.TSS, out2.TSS)
}
