package transport

import (
	"github.com/astromol/linert/grid"
	"github.com/astromol/linert/moldata"
)

// LTE sets every point's populations to the Boltzmann distribution at its
// local kinetic temperature. Used for the LTE-only mode, as the fixed
// state of sink points, and optionally as the starting guess of the
// non-LTE loop.
func LTE(g *grid.Grid, mols []*moldata.Molecule) {
	for i := range g.Points {
		p := &g.Points[i]
		for si, m := range mols {
			m.LTEPops(p.TKin, p.Mol[si].Pops)
		}
	}
}

// UniformStart initializes every inner point's populations to 1/nlev,
// the default starting guess when the LTE start is not requested. Sink
// points take the Boltzmann distribution at their local temperature:
// sweeps never rewrite them, and photon walks terminating at the
// boundary read their state as the edge of the domain.
func UniformStart(g *grid.Grid, mols []*moldata.Molecule) {
	for i := range g.Points {
		p := &g.Points[i]
		for si, m := range mols {
			if p.Sink {
				m.LTEPops(p.TKin, p.Mol[si].Pops)
				continue
			}
			for l := 0; l < m.NLev; l++ {
				p.Mol[si].Pops[l] = 1 / float64(m.NLev)
			}
		}
	}
}
