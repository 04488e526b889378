// Package unmix solves the per-pixel linear spectral unmixing problem:
// find the endmember fraction vector d with Z d ≈ x, optionally under a
// non-negativity constraint (Lawson-Hanson active-set NNLS) and a
// sum-to-one row augmentation. The solver is built once per run; each
// worker carries its own Scratch so pixels can be unmixed concurrently
// without locks.
package unmix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/arden-geo/tsindex/internal/endmember"
)

const (
	// tol is the smallest normalized float32. Solution components this
	// close to zero are treated as zero by the active-set tests.
	tol = 1.1754943508222875e-38

	// notACandidate marks entries excluded from the min-ratio search.
	// A step of this size is never taken: if the minimum ratio reaches
	// it, the inner loop gives up on the trial instead.
	notACandidate = float64(math.MaxInt32)
)

// Params selects the unmixing mode.
type Params struct {
	// Positivity switches from the unconstrained LU solve to NNLS.
	Positivity bool
	// SumToOne augments Z with a row of ones and the observation with 1,
	// pushing the fractions toward a convex combination.
	SumToOne bool
	// ShadeNormalize treats the last endmember as shade and rescales the
	// remaining fractions to sum to one after removing it.
	ShadeNormalize bool
	// EmitRMS requests the residual RMSE plane.
	EmitRMS bool
	// SelectedEndmember is the 1-based column whose fraction is retained.
	SelectedEndmember int
}

// Solver holds the run-constant parts of the unmixing problem: the
// (possibly augmented) endmember matrix Z, its crossproduct ZtZ, and for
// the unconstrained mode a one-time LU factorization of ZtZ. All fields
// are read-only after NewSolver and safe to share across workers.
type Solver struct {
	params Params
	nb     int // spectral bands in the table
	l      int // effective rows of Z (nb, +1 when sum-to-one)
	m      int // endmembers
	z      *mat.Dense
	ztz    *mat.Dense
	luZtZ  mat.LU
}

// NewSolver validates the parameter bundle against the endmember table
// and precomputes Z and ZtZ.
func NewSolver(table *endmember.Table, p Params) (*Solver, error) {
	if table == nil {
		return nil, fmt.Errorf("unmixing requires an endmember table")
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("endmember table invalid: %w", err)
	}
	m := table.NEndmembers()
	if p.SelectedEndmember < 1 || p.SelectedEndmember > m {
		return nil, fmt.Errorf("selected endmember %d outside [1,%d]", p.SelectedEndmember, m)
	}
	if p.ShadeNormalize && m < 2 {
		return nil, fmt.Errorf("shade normalization needs at least two endmembers")
	}

	nb := table.NBands()
	l := nb
	if p.SumToOne {
		l++
	}

	z := mat.NewDense(l, m, nil)
	for i := 0; i < nb; i++ {
		for j := 0; j < m; j++ {
			z.Set(i, j, table.Values[i][j])
		}
	}
	if p.SumToOne {
		for j := 0; j < m; j++ {
			z.Set(l-1, j, 1)
		}
	}

	ztz := mat.NewDense(m, m, nil)
	ztz.Mul(z.T(), z)

	sv := &Solver{params: p, nb: nb, l: l, m: m, z: z, ztz: ztz}
	if !p.Positivity {
		sv.luZtZ.Factorize(ztz)
	}
	return sv, nil
}

// Params returns the parameter bundle the solver was built with.
func (sv *Solver) Params() Params { return sv.params }

// NBands returns the number of spectral bands the solver expects per
// observation (excluding the sum-to-one augmentation).
func (sv *Solver) NBands() int { return sv.nb }

// NEndmembers returns the number of endmember fractions solved for.
func (sv *Solver) NEndmembers() int { return sv.m }

// Scratch holds one worker's working vectors and subset buffers. All
// buffers are sized once at their maximum (M or M×M) and re-sliced as
// the passive set changes, so the pixel loop never allocates.
type Scratch struct {
	x       []float64 // observation, length L
	ztx     []float64 // Zᵀx, length M
	d       []float64 // current solution
	s       []float64 // trial solution
	w       []float64 // dual / reduced cost
	a       []float64 // min-ratio buffer
	passive []bool
	idx     []int     // passive index gather list
	subBuf  []float64 // M×M backing for the passive subsystem
	rhsBuf  []float64
	solBuf  []float64
	lu      mat.LU
}

// NewScratch allocates a worker's working set.
func (sv *Solver) NewScratch() *Scratch {
	sc := &Scratch{
		x:       make([]float64, sv.l),
		ztx:     make([]float64, sv.m),
		d:       make([]float64, sv.m),
		s:       make([]float64, sv.m),
		w:       make([]float64, sv.m),
		a:       make([]float64, sv.m),
		passive: make([]bool, sv.m),
		idx:     make([]int, sv.m),
		subBuf:  make([]float64, sv.m*sv.m),
		rhsBuf:  make([]float64, sv.m),
		solBuf:  make([]float64, sv.m),
	}
	if sv.params.SumToOne {
		sc.x[sv.l-1] = 1
	}
	return sc
}

// Unmix solves one observation. spectrum holds the NBands() reflectances
// (already scaled to [0,1]). The returned fraction slice aliases the
// scratch and is only valid until the next Unmix call on sc; rmse is the
// residual RMSE of the fit before any shade normalization.
func (sv *Solver) Unmix(sc *Scratch, spectrum []float64) (fractions []float64, rmse float64) {
	copy(sc.x[:sv.nb], spectrum)

	// Ztx = Zᵀ x
	for j := 0; j < sv.m; j++ {
		var sum float64
		for i := 0; i < sv.l; i++ {
			sum += sv.z.At(i, j) * sc.x[i]
		}
		sc.ztx[j] = sum
	}

	if sv.params.Positivity {
		sv.solveNNLS(sc)
	} else {
		sv.solveUnconstrained(sc)
	}

	return sc.d, sv.residualRMSE(sc)
}

// ShadeNormalize rescales the non-shade fractions by 1/(1-shade) and
// zeroes the shade fraction. The shade endmember is the last column.
func (sv *Solver) ShadeNormalize(fractions []float64) {
	f := 1.0 / (1.0 - fractions[sv.m-1])
	for i := 0; i < sv.m-1; i++ {
		fractions[i] *= f
	}
	fractions[sv.m-1] = 0
}

// solveUnconstrained computes d = (ZᵀZ)⁻¹ Zᵀx using the factorization
// prepared in NewSolver.
func (sv *Solver) solveUnconstrained(sc *Scratch) {
	rhs := mat.NewVecDense(sv.m, sc.ztx)
	dst := mat.NewVecDense(sv.m, sc.d)
	if err := sv.luZtZ.SolveVecTo(dst, false, rhs); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			for i := range sc.d {
				sc.d[i] = 0
			}
		}
	}
}

// solveNNLS runs the Lawson-Hanson active-set iteration. The iteration
// budget 30·M spans the whole pixel; when it is exhausted the current
// iterate is returned as-is.
func (sv *Solver) solveNNLS(sc *Scratch) {
	m := sv.m
	itmax := 30 * m

	for i := 0; i < m; i++ {
		sc.passive[i] = false
		sc.d[i] = 0
		sc.s[i] = 0
		sc.a[i] = notACandidate
	}
	nActive := m

	// w = Ztx - ZtZ d; d starts at zero
	copy(sc.w, sc.ztx)

	it := 0
	for nActive > 0 && maxOf(sc.w) > tol {

		// move the index with the largest reduced cost to the passive set
		mi := argmax(sc.w)
		sc.passive[mi] = true
		nActive--

		sMin := sv.solvePassive(sc)

		for sMin <= 0 && it < itmax {
			it++

			// alpha = min over passive i with s_i<=0 of d_i/(d_i - s_i)
			for i := 0; i < m; i++ {
				if sc.passive[i] && sc.s[i] <= tol {
					sc.a[i] = sc.d[i] / (sc.d[i] - sc.s[i])
				} else {
					sc.a[i] = notACandidate
				}
			}
			alpha := minOf(sc.a)
			if alpha >= notACandidate {
				break
			}

			for i := 0; i < m; i++ {
				sc.d[i] += alpha * (sc.s[i] - sc.d[i])
			}

			// indices driven to zero leave the passive set
			for i := 0; i < m; i++ {
				if sc.passive[i] && math.Abs(sc.d[i]) < tol {
					sc.passive[i] = false
					nActive++
				}
			}

			sMin = sv.solvePassive(sc)
		}

		copy(sc.d, sc.s)

		// w = Ztx - ZtZ d; passive entries are pinned to -1 so the loop
		// condition only tests the active set
		for i := 0; i < m; i++ {
			if sc.passive[i] {
				sc.w[i] = -1
				continue
			}
			var sum float64
			for j := 0; j < m; j++ {
				sum += sv.ztz.At(i, j) * sc.d[j]
			}
			sc.w[i] = sc.ztx[i] - sum
		}
	}
}

// solvePassive solves the passive subsystem ZtZ_P s_P = Ztx_P by LU and
// scatters the trial back into s, zeroing active positions. Returns the
// minimum of s over the passive set (+Inf when the set is empty).
func (sv *Solver) solvePassive(sc *Scratch) float64 {
	nP := 0
	for i := 0; i < sv.m; i++ {
		if sc.passive[i] {
			sc.idx[nP] = i
			nP++
		}
	}
	if nP == 0 {
		for i := range sc.s {
			sc.s[i] = 0
		}
		return math.Inf(1)
	}

	sub := mat.NewDense(nP, nP, sc.subBuf[:nP*nP])
	rhs := mat.NewVecDense(nP, sc.rhsBuf[:nP])
	sol := mat.NewVecDense(nP, sc.solBuf[:nP])
	for ik, i := range sc.idx[:nP] {
		rhs.SetVec(ik, sc.ztx[i])
		for jk, j := range sc.idx[:nP] {
			sub.Set(ik, jk, sv.ztz.At(i, j))
		}
	}

	sc.lu.Factorize(sub)
	if err := sc.lu.SolveVecTo(sol, false, rhs); err != nil {
		if _, ok := err.(mat.Condition); !ok {
			// singular subsystem: zero the trial so the active-set
			// machinery moves on
			for i := 0; i < nP; i++ {
				sol.SetVec(i, 0)
			}
		}
	}

	sMin := math.Inf(1)
	k := 0
	for i := 0; i < sv.m; i++ {
		if sc.passive[i] {
			sc.s[i] = sol.AtVec(k)
			k++
			if sc.s[i] < sMin {
				sMin = sc.s[i]
			}
		} else {
			sc.s[i] = 0
		}
	}
	return sMin
}

// residualRMSE computes sqrt(|x - Z d|² / L) over the effective rows,
// including the sum-to-one row when present.
func (sv *Solver) residualRMSE(sc *Scratch) float64 {
	var rsum float64
	for i := 0; i < sv.l; i++ {
		var fit float64
		for j := 0; j < sv.m; j++ {
			fit += sc.d[j] * sv.z.At(i, j)
		}
		r := sc.x[i] - fit
		rsum += r * r
	}
	return math.Sqrt(rsum / float64(sv.l))
}

func maxOf(v []float64) float64 {
	mx := v[0]
	for _, x := range v[1:] {
		if x > mx {
			mx = x
		}
	}
	return mx
}

func minOf(v []float64) float64 {
	mn := v[0]
	for _, x := range v[1:] {
		if x < mn {
			mn = x
		}
	}
	return mn
}

func argmax(v []float64) int {
	mi, mx := 0, v[0]
	for i, x := range v[1:] {
		if x > mx {
			mi, mx = i+1, x
		}
	}
	return mi
}
