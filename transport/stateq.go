package transport

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/astromol/linert/grid"
	"github.com/astromol/linert/moldata"
)

const (
	// MinPop is the floor applied to solved level populations. Negative
	// or tiny results are numerical noise.
	MinPop = 1e-6

	popFloor = 1e-30

	// maxSolveRetries bounds the local retries on a singular equilibrium
	// system before the point is abandoned for this sweep.
	maxSolveRetries = 3
)

// stateqScratch holds the reusable matrices of one worker's equilibrium
// solves.
type stateqScratch struct {
	rates *mat.Dense
	b     *mat.VecDense
	x     *mat.VecDense
	colli [][]float64 // per-species collision rate matrix buffer
}

func newStateqScratch(mols []*moldata.Molecule) *stateqScratch {
	maxLev := 0
	sc := &stateqScratch{colli: make([][]float64, len(mols))}
	for si, m := range mols {
		if m.NLev > maxLev {
			maxLev = m.NLev
		}
		sc.colli[si] = make([]float64, m.NLev*m.NLev)
	}
	sc.rates = mat.NewDense(maxLev, maxLev, nil)
	sc.b = mat.NewVecDense(maxLev, nil)
	sc.x = mat.NewVecDense(maxLev, nil)
	return sc
}

// collisionRates fills the species' level-to-level collisional rate
// matrix at one point: downward rates interpolated from the
// temperature-binned tables, upward rates from detailed balance.
func collisionRates(m *moldata.Molecule, p *grid.Point, pop *grid.Pops,
	out []float64) {

	n := m.NLev
	for i := range out {
		out[i] = 0
	}

	for pi := range m.Part {
		part := &m.Part[pi]
		nTemp := len(part.Temps)
		if nTemp == 0 {
			continue
		}

		dens := 0.0
		if part.DensityIndex >= 0 && part.DensityIndex < len(p.Dens) {
			dens = p.Dens[part.DensityIndex]
		}
		if dens == 0 {
			continue
		}

		bin, coeff := pop.PartBin[pi], pop.PartInterp[pi]
		for ti := 0; ti < part.NTrans(); ti++ {
			lo := part.Down[ti*nTemp+bin]
			var hi float64
			if bin+1 < nTemp {
				hi = part.Down[ti*nTemp+bin+1]
			} else {
				hi = lo
			}
			down := lo + coeff*(hi-lo)

			u, l := part.LCU[ti], part.LCL[ti]
			up := down * m.GStat[u] / m.GStat[l] *
				math.Exp(-m.EnergyK(u, l)/p.TKin)

			out[u*n+l] += dens * down // u -> l
			out[l*n+u] += dens * up   // l -> u
		}
	}
}

// solveStatEq assembles and solves the statistical-equilibrium system of
// one species at one point: detailed balance between every pair of
// levels, with the last row replaced by the normalization condition. The
// dense solve is delegated to gonum's pivoted LU. On persistent
// singularity the point keeps its previous populations and reports
// failure; the sweep continues.
//
// newPops must have length m.NLev; it receives the clamped solution.
// converged reports whether the relative change stayed below tol.
func solveStatEq(m *moldata.Molecule, p *grid.Point, pop *grid.Pops,
	jbar []float64, sc *stateqScratch, si int, tol float64,
	newPops []float64) (converged, ok bool) {

	n := m.NLev
	rates := sc.rates.Slice(0, n, 0, n).(*mat.Dense)
	b := sc.b.SliceVec(0, n).(*mat.VecDense)
	x := sc.x.SliceVec(0, n).(*mat.VecDense)

	colli := sc.colli[si]
	collisionRates(m, p, pop, colli)

	// P[j*n+i] is the transition rate j -> i. Radiative terms first.
	rates.Zero()
	for li := 0; li < m.NLine; li++ {
		u, l := m.LAU[li], m.LAL[li]
		rates.Set(u, l, rates.At(u, l)+
			m.AEinst[li]+m.BeinstU[li]*jbar[li])
		rates.Set(l, u, rates.At(l, u)+m.BeinstL[li]*jbar[li])
	}
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			if i != j {
				rates.Set(j, i, rates.At(j, i)+colli[j*n+i])
			}
		}
	}

	// Balance equations: row i states sum_j n_j P_ji - n_i sum_j P_ij = 0.
	// The matrix is transposed into A[i][j] = P_ji with A[i][i] =
	// -sum_j P_ij, and the last balance row is replaced by the
	// normalization sum_i n_i = 1.
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			a.Set(i, j, rates.At(j, i))
			a.Set(i, i, a.At(i, i)-rates.At(i, j))
		}
	}
	for j := 0; j < n; j++ {
		a.Set(n-1, j, 1)
		b.SetVec(j, 0)
	}
	b.SetVec(n-1, 1)

	solved := false
	for try := 0; try < maxSolveRetries; try++ {
		if err := x.SolveVec(a, b); err == nil {
			solved = true
			break
		}
		// Near-singular system: nudge the diagonal and retry.
		for j := 0; j < n-1; j++ {
			a.Set(j, j, a.At(j, j)*(1+1e-10)-popFloor)
		}
	}
	if !solved {
		copy(newPops, pop.Pops)
		return false, false
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		v := x.AtVec(i)
		if v < popFloor {
			v = popFloor
		}
		newPops[i] = v
		sum += v
	}
	for i := 0; i < n; i++ {
		newPops[i] /= sum
	}

	converged = true
	for i := 0; i < n; i++ {
		old := pop.Pops[i]
		if newPops[i] > MinPop && old > MinPop {
			if math.Abs(newPops[i]-old)/newPops[i] > tol {
				converged = false
				break
			}
		}
	}
	return converged, true
}
