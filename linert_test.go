package linert

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromol/linert/grid"
	"github.com/astromol/linert/io"
	"github.com/astromol/linert/physics"
)

var _ grid.Model = (*CloudModel)(nil)

func TestDemoMolecule(t *testing.T) {
	m := DemoMolecule()
	require.NoError(t, m.Validate())
	m.Setup(physics.TCMB)

	pops := make([]float64, m.NLev)
	m.LTEPops(20, pops)
	sum := 0.0
	for _, p := range pops {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestCloudModelProfiles(t *testing.T) {
	cfg := &io.ModelConfig{
		RadiusPC:      0.1,
		CenterDensity: 1e10,
		PowerIndex:    1.5,
		TKin:          20,
		TDust:         18,
		Abundance:     1e-9,
		DopplerB:      200,
		InfallVel:     1000,
		LatticeN:      9,
	}
	c := NewCloudModel(cfg)

	out := make([]float64, 1)

	// Flat core inside rMin.
	c.Density(grid.Vec{}, out)
	assert.Equal(t, cfg.CenterDensity, out[0])

	// Power-law falloff outside it.
	r1, r2 := 0.2*c.Radius(), 0.4*c.Radius()
	c.Density(grid.Vec{r1, 0, 0}, out)
	n1 := out[0]
	c.Density(grid.Vec{0, r2, 0}, out)
	n2 := out[0]
	assert.InEpsilon(t, math.Pow(2, cfg.PowerIndex), n1/n2, 1e-12)

	tk, td := c.Temperature(grid.Vec{r1, 0, 0})
	assert.Equal(t, 20.0, tk)
	assert.Equal(t, 18.0, td)

	// Infall points inward and reaches the configured speed at the edge.
	v := c.Velocity(grid.Vec{c.Radius(), 0, 0})
	assert.InEpsilon(t, -cfg.InfallVel, v[0], 1e-12)
	assert.Equal(t, 0.0, v[1])
}

func TestRunBenchmarkEndToEnd(t *testing.T) {
	dir := t.TempDir()
	popFile := filepath.Join(dir, "pops.pop")
	cubeFile := filepath.Join(dir, "line.cube")

	wrap := io.DefaultRunWrapper()
	wrap.Run.NPhot = 20
	wrap.Run.MaxSweeps = 2
	wrap.Run.Threads = 2
	wrap.Run.PopFile = popFile
	wrap.Model = io.ModelConfig{
		RadiusPC:      0.01,
		CenterDensity: 1e11,
		PowerIndex:    1.5,
		TKin:          20,
		TDust:         20,
		Abundance:     1e-9,
		DopplerB:      200,
		LatticeN:      5,
	}
	wrap.Image = map[string]*io.ImageConfig{
		"line": {
			Pixels:   8,
			ImgRes:   7.5,
			NChan:    3,
			VelRes:   100,
			Mol:      0,
			Trans:    0,
			Distance: 100,
			Unit:     "Kelvin",
			Filename: cubeFile,
		},
	}

	require.NoError(t, RunBenchmark(wrap))

	for _, path := range []string{popFile, cubeFile} {
		info, err := os.Stat(path)
		require.NoError(t, err, path)
		assert.Positive(t, info.Size(), path)
	}
}

func TestRunBenchmarkRejectsBadModel(t *testing.T) {
	wrap := io.DefaultRunWrapper()
	wrap.Model.LatticeN = 0
	assert.Error(t, RunBenchmark(wrap))
}

func TestRunRejectsBadConfig(t *testing.T) {
	wrap := io.DefaultRunWrapper()
	wrap.Run.NPhot = -1
	err := Run(&RunOpts{Run: &wrap.Run})
	assert.Error(t, err)
}
