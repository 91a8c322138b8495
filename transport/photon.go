// Package transport computes non-LTE level populations on the mesh: a
// Monte-Carlo photon engine estimates the mean radiation intensity at
// every point, a statistical-equilibrium solver turns those intensities
// into populations, and a Gauss-Jacobi sweep scheduler repeats the pair
// until the population field converges.
package transport

import (
	"math"
	"math/rand"

	"github.com/astromol/linert/grid"
	"github.com/astromol/linert/moldata"
	"github.com/astromol/linert/physics"
)

const (
	// nRanPerSegment is the number of jittered sub-samples used to
	// integrate the line profile across one photon segment.
	nRanPerSegment = 3

	// profileCutoff bounds the frequency offset sampled around line
	// center, in units of the local Doppler width.
	profileCutoff = 4.3

	// tauCeil caps the accumulated optical depth of a photon walk; beyond
	// it every further contribution underflows anyway.
	tauCeil = 30.0
)

// molPhot accumulates one species' photon statistics at one point during
// a sweep.
type molPhot struct {
	phot []float64 // per-line incoming intensity, nline*nphot
	vfac []float64 // local profile weight of each photon
	jbar []float64 // per-line mean intensity estimate
}

// pointData is the per-point scratch state shared between the photon
// engine and the equilibrium solver within one sweep. Each worker owns
// its own instance.
type pointData struct {
	mol []molPhot
}

func newPointData(mols []*moldata.Molecule, nPhot int) *pointData {
	pd := &pointData{mol: make([]molPhot, len(mols))}
	for si, m := range mols {
		pd.mol[si] = molPhot{
			phot: make([]float64, m.NLine*nPhot),
			vfac: make([]float64, nPhot),
			jbar: make([]float64, m.NLine),
		}
	}
	return pd
}

// popField is the frozen population snapshot of the previous sweep:
// [point][species][level] plus the derived caches the photon engine
// reads. Keeping photon propagation on the snapshot is what makes a
// sweep Gauss-Jacobi.
type popField [][][]float64

// snapshotPops copies the current population field of the grid.
func snapshotPops(g *grid.Grid) popField {
	f := make(popField, len(g.Points))
	for i := range g.Points {
		f[i] = make([][]float64, len(g.Points[i].Mol))
		for si := range g.Points[i].Mol {
			src := g.Points[i].Mol[si].Pops
			dst := make([]float64, len(src))
			copy(dst, src)
			f[i][si] = dst
		}
	}
	return f
}

// gaussline evaluates the Gaussian line profile at velocity offset v for
// inverse width binv.
func gaussline(v, binv float64) float64 {
	x := v * binv
	return math.Exp(-x * x)
}

// segmentVfac integrates the line profile across one neighbor edge:
// nRanPerSegment jittered positions sample the projected bulk velocity
// stored along the edge, each evaluated against the photon's frequency
// offset deltav.
func segmentVfac(nb *grid.Neighbor, deltav, binv float64, rng *rand.Rand) float64 {
	v := 0.0
	for s := 0; s < nRanPerSegment; s++ {
		frac := (float64(s) + rng.Float64()) / nRanPerSegment
		v += gaussline(deltav-edgeVelProj(nb, frac), binv)
	}
	return v / nRanPerSegment
}

// edgeVelProj linearly interpolates the projected bulk velocity at a
// fractional position along an edge.
func edgeVelProj(nb *grid.Neighbor, frac float64) float64 {
	f := frac * float64(grid.NEdgeVelSamples-1)
	i := int(f)
	if i >= grid.NEdgeVelSamples-1 {
		return nb.VelProj[grid.NEdgeVelSamples-1]
	}
	t := f - float64(i)
	return nb.VelProj[i] + t*(nb.VelProj[i+1]-nb.VelProj[i])
}

// nextEdge picks an outgoing neighbor edge with probability proportional
// to its angular weight, by rejection sampling against the weight table.
func nextEdge(p *grid.Point, rng *rand.Rand) *grid.Neighbor {
	for {
		k := rng.Intn(len(p.Neigh))
		if rng.Float64() < float64(len(p.Neigh))*p.Neigh[k].Weight {
			return &p.Neigh[k]
		}
	}
}

// photon runs the full photon set of one point: each photon draws a
// frequency offset within the local line profile and a neighbor-weighted
// direction, then walks point to point until it leaves through a sink,
// accumulating the attenuated in-mesh source contributions and finally
// the attenuated background. Populations are read exclusively from the
// frozen snapshot.
func (s *Solver) photon(id int, pops popField, pd *pointData, rng *rand.Rand) {
	p := &s.g.Points[id]

	nLineTot := 0
	for _, m := range s.mols {
		nLineTot += m.NLine
	}
	tau := make([]float64, nLineTot)

	for iphot := 0; iphot < s.NPhot; iphot++ {
		// Frequency displacement of this photon from line center, in
		// velocity units, common to all lines.
		deltav := (2*rng.Float64() - 1) * profileCutoff / p.Mol[0].Binv

		for i := range tau {
			tau[i] = 0
		}
		for si := range s.mols {
			pd.mol[si].vfac[iphot] = gaussline(deltav, p.Mol[si].Binv)
		}

		here := p
		edge := nextEdge(here, rng)

		for {
			next := &s.g.Points[edge.Point]

			lineOff := 0
			for si, m := range s.mols {
				mp := &pd.mol[si]
				vfac := segmentVfac(edge, deltav, here.Mol[si].Binv, rng)

				for li := 0; li < m.NLine; li++ {
					jnu, alpha := 0.0, 0.0

					// Both endpoints contribute half the segment, with
					// the snapshot populations of each.
					sourceFuncLine(m, li, vfac,
						&here.Mol[si], pops[here.ID][si], &jnu, &alpha)
					sourceFuncLine(m, li, vfac,
						&next.Mol[si], pops[next.ID][si], &jnu, &alpha)
					sourceFuncCont(&here.Mol[si], li, &jnu, &alpha)
					sourceFuncCont(&next.Mol[si], li, &jnu, &alpha)
					jnu, alpha = 0.5*jnu, 0.5*alpha

					s.addBlends(si, li, deltav, here, next,
						pops, &jnu, &alpha)

					ti := lineOff + li
					dtau := alpha * edge.DS
					if dtau < -tauCeil {
						dtau = -tauCeil
					}
					if math.Abs(alpha) > 0 {
						snu := jnu / alpha
						mp.phot[li*s.NPhot+iphot] +=
							s.exp.Exp(tau[ti]) * (1 - s.exp.Exp(dtau)) * snu
					}
					tau[ti] += dtau
					if tau[ti] > tauCeil {
						tau[ti] = tauCeil
					}
				}
				lineOff += m.NLine
			}

			here = next
			if here.Sink {
				break
			}
			edge = nextEdge(here, rng)
		}

		// The walk left the mesh: the background field enters attenuated
		// by everything along the way.
		lineOff := 0
		for si, m := range s.mols {
			mp := &pd.mol[si]
			for li := 0; li < m.NLine; li++ {
				mp.phot[li*s.NPhot+iphot] +=
					s.exp.Exp(tau[lineOff+li]) * m.CMB[li]
			}
			lineOff += m.NLine
		}
	}
}

// addBlends folds spectrally overlapping lines of any species into the
// segment's emissivity and opacity, with the profile shifted by each
// blend's velocity offset.
func (s *Solver) addBlends(si, li int, deltav float64,
	here, next *grid.Point, pops popField, jnu, alpha *float64) {

	lb := s.blends.ForMol(si).ForLine(li)
	if lb == nil {
		return
	}

	for _, e := range lb.Blends {
		om := s.mols[e.Mol]
		// Shift against the blended line's rest frame.
		bvfac := gaussline(deltav+e.DeltaV, here.Mol[e.Mol].Binv)

		bj, ba := 0.0, 0.0
		sourceFuncLine(om, e.Line, bvfac,
			&here.Mol[e.Mol], pops[here.ID][e.Mol], &bj, &ba)
		sourceFuncLine(om, e.Line, bvfac,
			&next.Mol[e.Mol], pops[next.ID][e.Mol], &bj, &ba)
		*jnu += 0.5 * bj
		*alpha += 0.5 * ba
	}
}

// sourceFuncLine adds one endpoint's line emissivity and opacity for a
// segment: j_nu ~ vfac * n * pop_u * A, alpha_nu ~ vfac * n *
// (pop_l B_lu - pop_u B_ul), in inverse-width units.
func sourceFuncLine(m *moldata.Molecule, li int, vfac float64,
	gp *grid.Pops, pops []float64, jnu, alpha *float64) {

	factor := vfac * physics.HPIP * gp.Binv * gp.NMol
	*jnu += factor * pops[m.LAU[li]] * m.AEinst[li]
	*alpha += factor * (pops[m.LAL[li]]*m.BeinstL[li] -
		pops[m.LAU[li]]*m.BeinstU[li])
}

// sourceFuncCont adds one endpoint's dust continuum.
func sourceFuncCont(gp *grid.Pops, li int, jnu, alpha *float64) {
	*jnu += gp.Dust[li] * gp.Knu[li]
	*alpha += gp.Knu[li]
}

// getJbar collapses the photon set into one mean-intensity estimate per
// line: a profile-weighted average of the incoming intensities.
func getJbar(pd *pointData, mols []*moldata.Molecule, nPhot int) {
	for si, m := range mols {
		mp := &pd.mol[si]
		vsum := 0.0
		for _, v := range mp.vfac {
			vsum += v
		}

		for li := 0; li < m.NLine; li++ {
			mp.jbar[li] = 0
			if vsum == 0 {
				continue
			}
			for iphot := 0; iphot < nPhot; iphot++ {
				mp.jbar[li] += mp.vfac[iphot] * mp.phot[li*nPhot+iphot]
			}
			mp.jbar[li] /= vsum
		}
	}
}
