package unmix

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arden-geo/tsindex/internal/endmember"
)

// twoMember is the S5 matrix: two bands, two endmembers.
func twoMember() *endmember.Table {
	return &endmember.Table{
		Names: []string{"veg", "soil"},
		Values: [][]float64{
			{0.1, 0.4},
			{0.5, 0.2},
		},
	}
}

// threeMember ends with a shade column.
func threeMember() *endmember.Table {
	return &endmember.Table{
		Names: []string{"veg", "soil", "shade"},
		Values: [][]float64{
			{0.10, 0.40, 0.02},
			{0.50, 0.20, 0.02},
			{0.30, 0.35, 0.02},
		},
	}
}

func TestNewSolverValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSolver(nil, Params{SelectedEndmember: 1})
	require.Error(t, err)

	_, err = NewSolver(twoMember(), Params{SelectedEndmember: 0})
	require.Error(t, err)

	_, err = NewSolver(twoMember(), Params{SelectedEndmember: 3})
	require.Error(t, err)

	sv, err := NewSolver(twoMember(), Params{SelectedEndmember: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, sv.NBands())
	assert.Equal(t, 2, sv.NEndmembers())
}

func TestUnmixExactConvexCombinationNNLS(t *testing.T) {
	t.Parallel()
	sv, err := NewSolver(twoMember(), Params{Positivity: true, SumToOne: true, SelectedEndmember: 1})
	require.NoError(t, err)

	sc := sv.NewScratch()
	// x = 0.5*E1 + 0.5*E2
	frac, rmse := sv.Unmix(sc, []float64{0.25, 0.35})
	assert.InDelta(t, 0.5, frac[0], 2e-4)
	assert.InDelta(t, 0.5, frac[1], 2e-4)
	assert.InDelta(t, 0, rmse, 1e-6)
}

func TestUnmixUnconstrainedSumToOne(t *testing.T) {
	t.Parallel()
	sv, err := NewSolver(twoMember(), Params{SumToOne: true, SelectedEndmember: 1})
	require.NoError(t, err)

	sc := sv.NewScratch()
	for _, w := range []float64{0.0, 0.25, 0.5, 0.8, 1.0} {
		x := []float64{
			w*0.1 + (1-w)*0.4,
			w*0.5 + (1-w)*0.2,
		}
		frac, _ := sv.Unmix(sc, x)
		assert.InDelta(t, 1.0, frac[0]+frac[1], 1e-9, "w=%v", w)
		assert.InDelta(t, w, frac[0], 1e-9, "w=%v", w)
	}
}

func TestUnmixNonNegativity(t *testing.T) {
	t.Parallel()
	sv, err := NewSolver(twoMember(), Params{Positivity: true, SumToOne: true, SelectedEndmember: 1})
	require.NoError(t, err)

	sc := sv.NewScratch()
	// observations outside the simplex would drive a fraction negative
	// in unconstrained mode
	obs := [][]float64{
		{0.05, 0.62}, {0.55, 0.05}, {0.9, 0.9}, {0.0, 0.0},
	}
	for _, x := range obs {
		frac, _ := sv.Unmix(sc, x)
		for i, f := range frac {
			assert.GreaterOrEqual(t, f, -tol, "x=%v i=%d", x, i)
		}
	}
}

func TestUnconstrainedAllowsNegativeFractions(t *testing.T) {
	t.Parallel()
	sv, err := NewSolver(twoMember(), Params{SumToOne: true, SelectedEndmember: 1})
	require.NoError(t, err)

	sc := sv.NewScratch()
	// extrapolated beyond E1: w=1.5 -> soil fraction -0.5
	x := []float64{1.5*0.1 - 0.5*0.4, 1.5*0.5 - 0.5*0.2}
	frac, _ := sv.Unmix(sc, x)
	assert.InDelta(t, 1.5, frac[0], 1e-9)
	assert.InDelta(t, -0.5, frac[1], 1e-9)
}

func TestShadeNormalize(t *testing.T) {
	t.Parallel()
	sv, err := NewSolver(threeMember(), Params{Positivity: true, SelectedEndmember: 1, ShadeNormalize: true})
	require.NoError(t, err)

	frac := []float64{0.3, 0.2, 0.5}
	sv.ShadeNormalize(frac)
	assert.InDelta(t, 0.6, frac[0], 1e-12)
	assert.InDelta(t, 0.4, frac[1], 1e-12)
	assert.Equal(t, 0.0, frac[2])
	assert.InDelta(t, 1.0, frac[0]+frac[1], 1e-12)
}

func TestResidualRMSEForExactFit(t *testing.T) {
	t.Parallel()
	sv, err := NewSolver(threeMember(), Params{Positivity: true, SumToOne: true, SelectedEndmember: 1, EmitRMS: true})
	require.NoError(t, err)

	sc := sv.NewScratch()
	// x = 0.2*E1 + 0.3*E2 + 0.5*E3
	x := make([]float64, 3)
	tab := threeMember()
	for i := 0; i < 3; i++ {
		x[i] = 0.2*tab.Values[i][0] + 0.3*tab.Values[i][1] + 0.5*tab.Values[i][2]
	}
	frac, rmse := sv.Unmix(sc, x)
	assert.InDelta(t, 0.2, frac[0], 1e-6)
	assert.InDelta(t, 0.3, frac[1], 1e-6)
	assert.InDelta(t, 0.5, frac[2], 1e-6)
	assert.InDelta(t, 0, rmse, 1e-9)
}

func TestResidualRMSEForPoorFit(t *testing.T) {
	t.Parallel()
	sv, err := NewSolver(twoMember(), Params{Positivity: true, SumToOne: true, SelectedEndmember: 1, EmitRMS: true})
	require.NoError(t, err)

	sc := sv.NewScratch()
	_, rmse := sv.Unmix(sc, []float64{0.9, 0.9})
	assert.Greater(t, rmse, 0.1)
	assert.False(t, math.IsNaN(rmse))
}

func TestDegenerateTableTerminates(t *testing.T) {
	t.Parallel()
	// duplicate endmembers make the two-member passive subsystem singular
	dup := &endmember.Table{
		Names: []string{"a", "b"},
		Values: [][]float64{
			{0.3, 0.3},
			{0.6, 0.6},
		},
	}
	sv, err := NewSolver(dup, Params{Positivity: true, SelectedEndmember: 1})
	require.NoError(t, err)

	sc := sv.NewScratch()
	frac, rmse := sv.Unmix(sc, []float64{0.3, 0.6})
	require.Len(t, frac, 2)
	assert.False(t, math.IsNaN(rmse))
}

func TestUnmixDeterminism(t *testing.T) {
	t.Parallel()
	sv, err := NewSolver(threeMember(), Params{Positivity: true, SumToOne: true, SelectedEndmember: 1})
	require.NoError(t, err)

	x := []float64{0.22, 0.31, 0.27}

	sc1 := sv.NewScratch()
	frac1, rmse1 := sv.Unmix(sc1, x)
	got1 := append([]float64(nil), frac1...)

	sc2 := sv.NewScratch()
	frac2, rmse2 := sv.Unmix(sc2, x)
	got2 := append([]float64(nil), frac2...)

	assert.Equal(t, rmse1, rmse2)
	if diff := cmp.Diff(got1, got2); diff != "" {
		t.Fatalf("fractions differ between runs:\n%s", diff)
	}
}

func TestScratchReuseAcrossPixels(t *testing.T) {
	t.Parallel()
	sv, err := NewSolver(twoMember(), Params{Positivity: true, SumToOne: true, SelectedEndmember: 1})
	require.NoError(t, err)

	sc := sv.NewScratch()
	// solve an off-simplex pixel first, then verify an exact pixel is
	// unaffected by the leftover state
	sv.Unmix(sc, []float64{0.9, 0.05})
	frac, _ := sv.Unmix(sc, []float64{0.25, 0.35})
	assert.InDelta(t, 0.5, frac[0], 2e-4)
	assert.InDelta(t, 0.5, frac[1], 2e-4)
}
