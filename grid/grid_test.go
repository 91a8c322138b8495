package grid

import (
	"math"
	"testing"

	"github.com/astromol/linert/moldata"
	"github.com/astromol/linert/physics"
)

// uniformModel is a constant-state source with a linear shear flow, used
// to exercise the mesh builder.
type uniformModel struct {
	dens, tKin, tDust float64
	abun, dopB, g2d   float64
	shear             float64 // v_x = shear * z
}

func (m *uniformModel) NumDensities() int { return 1 }
func (m *uniformModel) Density(pos Vec, out []float64) {
	out[0] = m.dens
}
func (m *uniformModel) Temperature(pos Vec) (float64, float64) {
	return m.tKin, m.tDust
}
func (m *uniformModel) Abundance(pos Vec, out []float64) {
	for i := range out {
		out[i] = m.abun
	}
}
func (m *uniformModel) Doppler(pos Vec) float64 { return m.dopB }
func (m *uniformModel) Velocity(pos Vec) Vec {
	return Vec{m.shear * pos[2], 0, 0}
}
func (m *uniformModel) MagField(pos Vec) Vec { return Vec{} }
func (m *uniformModel) GasToDust(pos Vec) float64 { return m.g2d }

func testModel() *uniformModel {
	return &uniformModel{
		dens: 1e10, tKin: 15, tDust: 15,
		abun: 1e-9, dopB: 200, g2d: 100,
		shear: 0,
	}
}

func testMolecule() *moldata.Molecule {
	return &moldata.Molecule{
		Name:   "gridtest",
		AMass:  29 * physics.AMU,
		NLev:   2,
		NLine:  1,
		LAU:    []int{1},
		LAL:    []int{0},
		AEinst: []float64{1e-5},
		Freq:   []float64{1e11},
		Eterm:  []float64{0, 3.3},
		GStat:  []float64{1, 3},
		Part: []moldata.CollPartner{{
			ID:           moldata.H2,
			Temps:        []float64{10, 20},
			Down:         []float64{3e-17, 3.2e-17},
			LCL:          []int{0},
			LCU:          []int{1},
			DensityIndex: 0,
		}},
	}
}

func buildLattice(t *testing.T, n int, mols []*moldata.Molecule) *Grid {
	t.Helper()
	positions, sink, tri := LatticeMesh(n, 1.0)
	g, err := Build(BuildOpts{
		Positions: positions,
		Sink:      sink,
		Model:     testModel(),
		Tri:       tri,
		Mols:      mols,
		Seed:      42,
	})
	if err != nil {
		t.Fatal(err.Error())
	}
	return g
}

func TestLatticeMesh(t *testing.T) {
	n := 5
	positions, sink, tri := LatticeMesh(n, 2.0)

	if len(positions) != n*n*n {
		t.Fatalf("got %d points, want %d", len(positions), n*n*n)
	}

	nSink := 0
	for i, s := range sink {
		if s {
			nSink++
		}
		for d := 0; d < 3; d++ {
			if math.Abs(positions[i][d]) > 1+1e-12 {
				t.Fatalf("point %d outside the lattice cube: %v",
					i, positions[i])
			}
		}
	}
	wantSink := n*n*n - (n-2)*(n-2)*(n-2)
	if nSink != wantSink {
		t.Errorf("got %d sink points, want %d", nSink, wantSink)
	}

	simplices, err := tri(positions)
	if err != nil {
		t.Fatal(err.Error())
	}
	if want := 6 * (n - 1) * (n - 1) * (n - 1); len(simplices) != want {
		t.Errorf("got %d simplices, want %d", len(simplices), want)
	}
}

func TestBuildConsistency(t *testing.T) {
	n := 5
	g := buildLattice(t, n, nil)

	if err := g.CheckConsistency(); err != nil {
		t.Fatal(err.Error())
	}
	if want := (n - 2) * (n - 2) * (n - 2); g.NInner != want {
		t.Errorf("NInner = %d, want %d", g.NInner, want)
	}

	for i := range g.Points {
		p := &g.Points[i]
		if len(p.Neigh) == 0 {
			t.Fatalf("point %d has no neighbors", i)
		}

		sum := 0.0
		for _, nb := range p.Neigh {
			sum += nb.Weight

			if math.Abs(nb.Dir.Norm()-1) > 1e-12 {
				t.Errorf("point %d: neighbor direction not a unit vector", i)
			}
			want := g.Points[nb.Point].X.Sub(p.X).Norm()
			if math.Abs(nb.DS-want) > 1e-12 {
				t.Errorf("point %d: edge length %g, want %g", i, nb.DS, want)
			}
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("point %d: neighbor weights sum to %g", i, sum)
		}
	}
}

func TestBuildEdgeVelocities(t *testing.T) {
	positions, sink, tri := LatticeMesh(5, 1.0)
	m := testModel()
	m.shear = 100.0
	g, err := Build(BuildOpts{
		Positions: positions,
		Sink:      sink,
		Model:     m,
		Tri:       tri,
		Seed:      42,
	})
	if err != nil {
		t.Fatal(err.Error())
	}

	for i := range g.Points {
		p := &g.Points[i]
		for _, nb := range p.Neigh {
			for s := 0; s < NEdgeVelSamples; s++ {
				frac := float64(s) / float64(NEdgeVelSamples-1)
				pos := p.X.Add(nb.Dir.Scale(frac * nb.DS))
				want := m.Velocity(pos).Dot(nb.Dir)
				if math.Abs(nb.VelProj[s]-want) > 1e-12 {
					t.Fatalf("point %d: velocity sample %d is %g, want %g",
						i, s, nb.VelProj[s], want)
				}
			}
		}
	}
}

func TestBuildMolCaches(t *testing.T) {
	mol := testMolecule()
	g := buildLattice(t, 5, []*moldata.Molecule{mol})
	m := testModel()

	for i := range g.Points {
		pop := &g.Points[i].Mol[0]

		wantBinv := 1 / math.Sqrt(
			m.dopB*m.dopB+2*physics.KBoltz/mol.AMass*m.tKin)
		if math.Abs(pop.Binv-wantBinv)/wantBinv > 1e-12 {
			t.Fatalf("point %d: Binv = %g, want %g", i, pop.Binv, wantBinv)
		}

		if want := m.abun * m.dens; pop.NMol != want {
			t.Fatalf("point %d: NMol = %g, want %g", i, pop.NMol, want)
		}

		// tKin = 15 sits halfway into the [10, 20] rate bin.
		if pop.PartBin[0] != 0 || math.Abs(pop.PartInterp[0]-0.5) > 1e-12 {
			t.Fatalf("point %d: rate bin %d/%g, want 0/0.5",
				i, pop.PartBin[0], pop.PartInterp[0])
		}
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	positions, sink, tri := LatticeMesh(3, 1.0)

	if _, err := Build(BuildOpts{
		Positions: positions[:4],
		Sink:      sink[:4],
		Model:     testModel(),
		Tri:       tri,
	}); err == nil {
		t.Error("Build accepted a 4-point mesh")
	}

	if _, err := Build(BuildOpts{
		Positions: positions,
		Sink:      sink[:5],
		Model:     testModel(),
		Tri:       tri,
	}); err == nil {
		t.Error("Build accepted mismatched sink flags")
	}

	allSink := make([]bool, len(positions))
	for i := range allSink {
		allSink[i] = true
	}
	if _, err := Build(BuildOpts{
		Positions: positions,
		Sink:      allSink,
		Model:     testModel(),
		Tri:       tri,
	}); err == nil {
		t.Error("Build accepted an all-sink mesh")
	}
}

func TestNearestPoint(t *testing.T) {
	g := buildLattice(t, 5, nil)

	for _, i := range []int{0, 13, 62, len(g.Points) - 1} {
		probe := g.Points[i].X.Add(Vec{1e-3, -1e-3, 1e-3})
		if got := g.NearestPoint(probe); got != i {
			t.Errorf("NearestPoint near point %d returned %d", i, got)
		}
	}
}
