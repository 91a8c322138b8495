// Package grid builds and owns the irregular 3-D mesh the transfer engine
// runs on: a contiguous arena of sample points with a symmetric neighbor
// graph, and the Delaunay cell arena derived from an external
// triangulation. All adjacency is by integer index into the arenas, so
// the mesh can be read concurrently and torn down in one step.
package grid

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/astromol/linert/moldata"
	"github.com/astromol/linert/physics"
)

const (
	// NEdgeVelSamples is the number of evenly spaced bulk-velocity samples
	// stored along each neighbor edge for line-profile integration.
	NEdgeVelSamples = 5

	// nWeightSamples is the number of Monte-Carlo directions used to
	// estimate each point's angular neighbor weights.
	nWeightSamples = 1000
)

// Model supplies the physical state of the source at an arbitrary
// position. It is implemented by the caller.
type Model interface {
	// NumDensities returns how many density components Density fills
	// (one per collision partner the model distinguishes).
	NumDensities() int
	// Density fills out (length NumDensities) with number densities
	// [1/m^3] at pos.
	Density(pos Vec, out []float64)
	// Temperature returns the kinetic and dust temperatures [K] at pos.
	Temperature(pos Vec) (tKin, tDust float64)
	// Abundance fills out (one entry per species) with the fractional
	// abundance at pos.
	Abundance(pos Vec, out []float64)
	// Doppler returns the turbulent line-width b parameter [m/s] at pos.
	Doppler(pos Vec) float64
	// Velocity returns the bulk velocity [m/s] at pos.
	Velocity(pos Vec) Vec
	// MagField returns the magnetic field direction at pos.
	MagField(pos Vec) Vec
	// GasToDust returns the gas-to-dust mass ratio at pos.
	GasToDust(pos Vec) float64
}

// Triangulator computes the Delaunay tessellation of a point set,
// returning the vertex index quadruples of its simplices. The routine is
// supplied externally.
type Triangulator func(points []Vec) ([][4]int, error)

// Neighbor is one edge of the point neighbor graph.
type Neighbor struct {
	Point  int     // arena index of the neighbor
	Dir    Vec     // unit vector towards the neighbor
	DS     float64 // edge length
	Weight float64 // angular path weight (Voronoi solid-angle proxy)

	// VelProj holds the bulk velocity projected onto Dir at
	// NEdgeVelSamples evenly spaced positions along the edge, from this
	// point (index 0) to the neighbor.
	VelProj [NEdgeVelSamples]float64
}

// Pops is the per-species population record of one point. Pops is the
// only mutable field of the mesh once built, and only the
// statistical-equilibrium solver writes it.
type Pops struct {
	Pops []float64 // level populations, sum to 1

	Knu  []float64 // per-line dust continuum opacity [1/m]
	Dust []float64 // per-line dust source function (Planck at T_dust)

	Binv float64 // inverse total line width 1/b [s/m]
	NMol float64 // molecular number density [1/m^3]

	// Temperature-bin cache for each collision partner: bin index and
	// interpolation coefficient into the partner's rate table.
	PartBin    []int
	PartInterp []float64
}

// Point is one mesh sample location.
type Point struct {
	ID   int
	X    Vec
	Vel  Vec
	B    Vec
	Sink bool

	Neigh []Neighbor

	Dens      []float64
	TKin      float64
	TDust     float64
	Abun      []float64
	DopB      float64
	GasToDust float64

	Mol []Pops // one record per species
}

// Cell is a Delaunay simplex. Face i is the one opposite vertex i, and
// Neigh[i] is the cell sharing that face, or -1 at the domain boundary.
type Cell struct {
	ID     int
	Vert   [4]int
	Neigh  [4]int
	Centre Vec
}

// Grid owns the point and cell arenas.
type Grid struct {
	Points []Point
	Cells  []Cell

	// NInner counts non-sink points.
	NInner int
}

// BuildOpts collects the inputs of Build. Positions and Sink come from
// the external point-placement stage; Tri is the external triangulation
// routine; Dust may be nil for line-only runs.
type BuildOpts struct {
	Positions []Vec
	Sink      []bool
	Model     Model
	Tri       Triangulator
	Mols      []*moldata.Molecule
	Dust      *moldata.DustOpacity
	Seed      int64
}

// Build constructs the mesh: evaluates the physical model at every point,
// triangulates, derives the neighbor graph with geometric weights and
// per-edge velocity samples, and fills the per-species continuum and
// collision-rate caches. Degenerate input is an error; the caller treats
// it as fatal.
func Build(opts BuildOpts) (*Grid, error) {
	n := len(opts.Positions)
	if n < 5 {
		return nil, fmt.Errorf("grid: %d points cannot span a 3-D mesh", n)
	}
	if len(opts.Sink) != n {
		return nil, fmt.Errorf("grid: %d sink flags for %d points",
			len(opts.Sink), n)
	}

	g := &Grid{Points: make([]Point, n)}
	for i := range g.Points {
		p := &g.Points[i]
		p.ID = i
		p.X = opts.Positions[i]
		p.Sink = opts.Sink[i]
		if !p.Sink {
			g.NInner++
		}
		evalModel(p, opts.Model, len(opts.Mols))
	}
	if g.NInner == 0 {
		return nil, fmt.Errorf("grid: every point is a sink point")
	}

	simplices, err := opts.Tri(opts.Positions)
	if err != nil {
		return nil, fmt.Errorf("grid: triangulation failed: %v", err)
	}
	if len(simplices) == 0 {
		return nil, fmt.Errorf("grid: triangulation returned no cells " +
			"(degenerate point set)")
	}
	if err := g.buildCells(simplices); err != nil {
		return nil, err
	}

	g.buildNeighbors(simplices)
	g.calcWeights(opts.Seed)
	g.sampleEdgeVelocities(opts.Model)
	g.fillMolCaches(opts.Mols, opts.Dust)

	return g, nil
}

// evalModel evaluates the physical model callbacks at one point.
func evalModel(p *Point, m Model, nSpecies int) {
	p.Dens = make([]float64, m.NumDensities())
	m.Density(p.X, p.Dens)
	p.TKin, p.TDust = m.Temperature(p.X)
	p.Abun = make([]float64, nSpecies)
	m.Abundance(p.X, p.Abun)
	p.DopB = m.Doppler(p.X)
	p.Vel = m.Velocity(p.X)
	p.B = m.MagField(p.X)
	p.GasToDust = m.GasToDust(p.X)
	if p.GasToDust <= 0 {
		p.GasToDust = 100
	}
}

// faceKey identifies a cell face by its sorted vertex indices.
type faceKey [3]int

func cellFace(vert [4]int, fi int) faceKey {
	var f faceKey
	k := 0
	for i := 0; i < 4; i++ {
		if i == fi {
			continue
		}
		f[k] = vert[i]
		k++
	}
	sort.Ints(f[:])
	return f
}

// buildCells fills the cell arena and links cells across shared faces.
// A face appearing in more than two cells means the triangulation is
// inconsistent.
func (g *Grid) buildCells(simplices [][4]int) error {
	g.Cells = make([]Cell, len(simplices))

	type facing struct {
		cell, face int
	}
	faces := make(map[faceKey][]facing, 2*len(simplices))

	for ci, vert := range simplices {
		for _, v := range vert {
			if v < 0 || v >= len(g.Points) {
				return fmt.Errorf(
					"grid: cell %d references point %d of %d",
					ci, v, len(g.Points))
			}
		}

		c := &g.Cells[ci]
		c.ID = ci
		c.Vert = vert
		c.Neigh = [4]int{-1, -1, -1, -1}
		for _, v := range vert {
			c.Centre = c.Centre.Add(g.Points[v].X)
		}
		c.Centre = c.Centre.Scale(0.25)

		for fi := 0; fi < 4; fi++ {
			key := cellFace(vert, fi)
			faces[key] = append(faces[key], facing{ci, fi})
		}
	}

	for key, fs := range faces {
		switch len(fs) {
		case 1:
			// Domain boundary face; neighbor stays -1.
		case 2:
			g.Cells[fs[0].cell].Neigh[fs[0].face] = fs[1].cell
			g.Cells[fs[1].cell].Neigh[fs[1].face] = fs[0].cell
		default:
			return fmt.Errorf(
				"grid: face %v shared by %d cells", key, len(fs))
		}
	}

	return nil
}

// buildNeighbors derives the symmetric point neighbor graph from the cell
// edges, then fills directions and edge lengths. Neighbor lists are
// sorted by index so iteration order is deterministic.
func (g *Grid) buildNeighbors(simplices [][4]int) {
	sets := make([]map[int]bool, len(g.Points))
	for i := range sets {
		sets[i] = make(map[int]bool)
	}
	for _, vert := range simplices {
		for a := 0; a < 4; a++ {
			for b := a + 1; b < 4; b++ {
				sets[vert[a]][vert[b]] = true
				sets[vert[b]][vert[a]] = true
			}
		}
	}

	for i := range g.Points {
		p := &g.Points[i]
		ids := make([]int, 0, len(sets[i]))
		for id := range sets[i] {
			ids = append(ids, id)
		}
		sort.Ints(ids)

		p.Neigh = make([]Neighbor, len(ids))
		for k, id := range ids {
			d := g.Points[id].X.Sub(p.X)
			ds := d.Norm()
			p.Neigh[k] = Neighbor{
				Point: id,
				Dir:   d.Scale(1 / ds),
				DS:    ds,
			}
		}
	}
}

// calcWeights estimates each point's angular neighbor weights by
// Monte-Carlo: random unit directions are assigned to the closest
// neighbor direction, and the hit fraction becomes the weight. Seeded
// per point so the mesh is reproducible.
func (g *Grid) calcWeights(seed int64) {
	for i := range g.Points {
		p := &g.Points[i]
		if len(p.Neigh) == 0 {
			continue
		}

		rng := rand.New(rand.NewSource(seed + int64(i)))
		counts := make([]int, len(p.Neigh))
		for s := 0; s < nWeightSamples; s++ {
			dir := randomDir(rng)
			best, bestDot := 0, math.Inf(-1)
			for k := range p.Neigh {
				if d := dir.Dot(p.Neigh[k].Dir); d > bestDot {
					best, bestDot = k, d
				}
			}
			counts[best]++
		}

		// Every edge keeps a floor of one count so no direction has zero
		// sampling probability.
		total := nWeightSamples
		for k := range counts {
			if counts[k] == 0 {
				counts[k] = 1
				total++
			}
		}
		for k := range p.Neigh {
			p.Neigh[k].Weight = float64(counts[k]) / float64(total)
		}
	}
}

// randomDir draws an isotropic unit vector.
func randomDir(rng *rand.Rand) Vec {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	r := math.Sqrt(1 - z*z)
	return Vec{r * math.Cos(phi), r * math.Sin(phi), z}
}

// sampleEdgeVelocities stores the bulk velocity projected onto each edge
// at evenly spaced positions, so line-profile integration can follow the
// velocity field inside a segment.
func (g *Grid) sampleEdgeVelocities(m Model) {
	for i := range g.Points {
		p := &g.Points[i]
		for k := range p.Neigh {
			nb := &p.Neigh[k]
			for s := 0; s < NEdgeVelSamples; s++ {
				frac := float64(s) / float64(NEdgeVelSamples-1)
				pos := p.X.Add(nb.Dir.Scale(frac * nb.DS))
				nb.VelProj[s] = m.Velocity(pos).Dot(nb.Dir)
			}
		}
	}
}

// fillMolCaches allocates the per-species population records and fills
// the line-width, molecular density, dust continuum, and collision-rate
// caches.
func (g *Grid) fillMolCaches(mols []*moldata.Molecule, dust *moldata.DustOpacity) {
	for i := range g.Points {
		p := &g.Points[i]
		p.Mol = make([]Pops, len(mols))

		for si, m := range mols {
			pop := &p.Mol[si]
			pop.Pops = make([]float64, m.NLev)
			pop.Knu = make([]float64, m.NLine)
			pop.Dust = make([]float64, m.NLine)

			pop.Binv = 1 / math.Sqrt(
				p.DopB*p.DopB+2*physics.KBoltz/m.AMass*p.TKin)
			pop.NMol = p.Abun[si] * p.Dens[0]

			if dust != nil {
				// Dust mass density from the main collision partner,
				// assuming mean molecular weight 2.4 amu per H2.
				rhoDust := 2.4 * physics.AMU * p.Dens[0] / p.GasToDust
				for li := 0; li < m.NLine; li++ {
					pop.Knu[li] = dust.Kappa(m.Freq[li]) * rhoDust
					pop.Dust[li] = moldata.Planck(m.Freq[li], p.TDust)
				}
			}

			pop.PartBin = make([]int, len(m.Part))
			pop.PartInterp = make([]float64, len(m.Part))
			for pi := range m.Part {
				bin, coeff := rateBin(m.Part[pi].Temps, p.TKin)
				pop.PartBin[pi] = bin
				pop.PartInterp[pi] = coeff
			}
		}
	}
}

// rateBin locates a temperature inside a partner's bin table, clamping
// outside the tabulated range.
func rateBin(temps []float64, t float64) (bin int, coeff float64) {
	n := len(temps)
	if n == 0 {
		return 0, 0
	}
	if t <= temps[0] {
		return 0, 0
	}
	if t >= temps[n-1] {
		return n - 2, 1
	}
	for i := 0; i < n-1; i++ {
		if t < temps[i+1] {
			return i, (t - temps[i]) / (temps[i+1] - temps[i])
		}
	}
	return n - 2, 1
}

// NearestPoint returns the index of the mesh point closest to pos.
func (g *Grid) NearestPoint(pos Vec) int {
	best, bestDist := 0, math.Inf(1)
	for i := range g.Points {
		d := g.Points[i].X.Sub(pos)
		if dd := d.Dot(d); dd < bestDist {
			best, bestDist = i, dd
		}
	}
	return best
}

// CheckConsistency verifies the mesh invariants: the neighbor relation is
// symmetric and every shared cell face is mutually consistent.
func (g *Grid) CheckConsistency() error {
	for i := range g.Points {
		for _, nb := range g.Points[i].Neigh {
			if !g.hasNeighbor(nb.Point, i) {
				return fmt.Errorf(
					"grid: %d neighbors %d but not vice versa", i, nb.Point)
			}
		}
	}

	for ci := range g.Cells {
		c := &g.Cells[ci]
		for fi := 0; fi < 4; fi++ {
			other := c.Neigh[fi]
			if other == -1 {
				continue
			}
			oc := &g.Cells[other]
			back := -1
			for ofi := 0; ofi < 4; ofi++ {
				if oc.Neigh[ofi] == ci {
					back = ofi
					break
				}
			}
			if back == -1 {
				return fmt.Errorf(
					"grid: cell %d lists neighbor %d one-sidedly", ci, other)
			}
			if cellFace(c.Vert, fi) != cellFace(oc.Vert, back) {
				return fmt.Errorf(
					"grid: cells %d and %d disagree on their shared face",
					ci, other)
			}
		}
	}

	return nil
}

func (g *Grid) hasNeighbor(p, q int) bool {
	for _, nb := range g.Points[p].Neigh {
		if nb.Point == q {
			return true
		}
	}
	return false
}
