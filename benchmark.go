package linert

import (
	"math"

	"github.com/astromol/linert/grid"
	"github.com/astromol/linert/io"
	"github.com/astromol/linert/moldata"
	"github.com/astromol/linert/physics"
)

// DemoMolecule returns a built-in five-level linear rotor modeled on
// HCO+, with rates for collisions against H2. It backs the bundled
// benchmark model and the package tests; real runs construct their
// Molecule records from external line data instead.
func DemoMolecule() *moldata.Molecule {
	down := func(r10, r20 float64) []float64 { return []float64{r10, r20} }

	m := &moldata.Molecule{
		Name:  "demo-rotor",
		AMass: 29.0 * physics.AMU,
		NLev:  5,
		NLine: 4,

		LAU:    []int{1, 2, 3, 4},
		LAL:    []int{0, 1, 2, 3},
		AEinst: []float64{4.2512e-05, 4.0828e-04, 1.4756e-03, 3.6269e-03},
		Freq: []float64{
			8.91885247e10, 1.7837505630e11, 2.6755762590e11, 3.5673422300e11,
		},
		Eterm: []float64{0, 2.975010, 8.924752, 17.848648, 29.745105},
		GStat: []float64{1, 3, 5, 7, 9},

		Part: []moldata.CollPartner{{
			ID:    moldata.H2,
			Temps: []float64{10, 20},
			LCU:   []int{1, 2, 2, 3, 3, 3, 4, 4, 4, 4},
			LCL:   []int{0, 0, 1, 0, 1, 2, 0, 1, 2, 3},
			Down: concat(
				down(2.6e-16, 2.3e-16),
				down(1.1e-16, 1.0e-16),
				down(2.4e-16, 2.2e-16),
				down(5.5e-17, 6.5e-17),
				down(1.6e-16, 1.5e-16),
				down(2.6e-16, 2.4e-16),
				down(4.9e-17, 4.6e-17),
				down(9.5e-17, 1.0e-16),
				down(1.8e-16, 1.7e-16),
				down(2.7e-16, 2.5e-16),
			),
			DensityIndex: 0,
		}},
	}
	return m
}

func concat(rows ...[]float64) []float64 {
	out := []float64{}
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

// CloudModel is the bundled benchmark source: a spherical cloud with a
// power-law density profile, uniform temperatures and abundance, and an
// optional radial infall. It exists so the binary can run end to end
// without user code.
type CloudModel struct {
	cfg    io.ModelConfig
	radius float64 // [m]
	rMin   float64 // density flattens inside this radius
}

// NewCloudModel builds the benchmark cloud from its config section.
func NewCloudModel(cfg *io.ModelConfig) *CloudModel {
	r := cfg.RadiusPC * physics.PC
	return &CloudModel{cfg: *cfg, radius: r, rMin: r / 100}
}

// Radius returns the cloud radius in meters.
func (c *CloudModel) Radius() float64 { return c.radius }

func (c *CloudModel) NumDensities() int { return 1 }

func (c *CloudModel) Density(pos grid.Vec, out []float64) {
	r := pos.Norm()
	if r < c.rMin {
		r = c.rMin
	}
	out[0] = c.cfg.CenterDensity * math.Pow(c.rMin/r, c.cfg.PowerIndex)
}

func (c *CloudModel) Temperature(pos grid.Vec) (tKin, tDust float64) {
	return c.cfg.TKin, c.cfg.TDust
}

func (c *CloudModel) Abundance(pos grid.Vec, out []float64) {
	for i := range out {
		out[i] = c.cfg.Abundance
	}
}

func (c *CloudModel) Doppler(pos grid.Vec) float64 { return c.cfg.DopplerB }

// Velocity is radial infall scaling as 1/sqrt(r), normalized to the
// configured speed at the outer edge.
func (c *CloudModel) Velocity(pos grid.Vec) grid.Vec {
	if c.cfg.InfallVel == 0 {
		return grid.Vec{}
	}
	r := pos.Norm()
	if r < c.rMin {
		r = c.rMin
	}
	v := -c.cfg.InfallVel * math.Sqrt(c.radius/r)
	return pos.Scale(v / r)
}

func (c *CloudModel) MagField(pos grid.Vec) grid.Vec {
	return grid.Vec{0, 0, c.cfg.BFieldZ}
}

func (c *CloudModel) GasToDust(pos grid.Vec) float64 { return 100 }
