package io

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromol/linert/grid"
	"github.com/astromol/linert/moldata"
	"github.com/astromol/linert/physics"
	"github.com/astromol/linert/raytrace"
)

type testCloud struct{}

func (testCloud) NumDensities() int { return 1 }
func (testCloud) Density(pos grid.Vec, out []float64) { out[0] = 1e10 }
func (testCloud) Temperature(pos grid.Vec) (float64, float64) {
	return 15, 15
}
func (testCloud) Abundance(pos grid.Vec, out []float64) {
	for i := range out {
		out[i] = 1e-9
	}
}
func (testCloud) Doppler(pos grid.Vec) float64 { return 200 }
func (testCloud) Velocity(pos grid.Vec) grid.Vec { return grid.Vec{} }
func (testCloud) MagField(pos grid.Vec) grid.Vec { return grid.Vec{} }
func (testCloud) GasToDust(pos grid.Vec) float64 { return 100 }

func snapshotMol(t *testing.T) *moldata.Molecule {
	t.Helper()
	m := &moldata.Molecule{
		Name:   "snaptest",
		AMass:  29 * physics.AMU,
		NLev:   3,
		NLine:  2,
		LAU:    []int{1, 2},
		LAL:    []int{0, 1},
		AEinst: []float64{1e-5, 1e-4},
		Freq:   []float64{9e10, 1.8e11},
		Eterm:  []float64{0, 3, 9},
		GStat:  []float64{1, 3, 5},
	}
	require.NoError(t, m.Validate())
	m.Setup(physics.TCMB)
	return m
}

func buildSnapshotGrid(t *testing.T, mols []*moldata.Molecule) *grid.Grid {
	t.Helper()
	positions, sink, tri := grid.LatticeMesh(4, 1.0)
	g, err := grid.Build(grid.BuildOpts{
		Positions: positions,
		Sink:      sink,
		Model:     testCloud{},
		Tri:       tri,
		Mols:      mols,
		Seed:      5,
	})
	require.NoError(t, err)
	return g
}

func TestPopulationSnapshotRoundtrip(t *testing.T) {
	mol := snapshotMol(t)
	g1 := buildSnapshotGrid(t, []*moldata.Molecule{mol})

	// Fill distinguishable populations.
	for i := range g1.Points {
		pops := g1.Points[i].Mol[0].Pops
		pops[0] = 0.5
		pops[1] = 0.3 + 1e-6*float64(i)
		pops[2] = 1 - pops[0] - pops[1]
	}

	buf := &bytes.Buffer{}
	require.NoError(t, WritePopulations(buf, g1))

	g2 := buildSnapshotGrid(t, []*moldata.Molecule{mol})
	require.NoError(t, ReadPopulations(bytes.NewReader(buf.Bytes()), g2))

	for i := range g1.Points {
		a, b := &g1.Points[i].Mol[0], &g2.Points[i].Mol[0]
		if diff := cmp.Diff(a.Pops, b.Pops); diff != "" {
			t.Fatalf("point %d populations differ:\n%s", i, diff)
		}
		assert.Equal(t, a.Binv, b.Binv, "point %d", i)
		assert.Equal(t, a.NMol, b.NMol, "point %d", i)
	}
}

func TestReadPopulationsRejectsMismatch(t *testing.T) {
	mol := snapshotMol(t)
	g := buildSnapshotGrid(t, []*moldata.Molecule{mol})

	buf := &bytes.Buffer{}
	require.NoError(t, WritePopulations(buf, g))

	// A grid carrying no species cannot accept the snapshot.
	bare := buildSnapshotGrid(t, nil)
	assert.Error(t, ReadPopulations(bytes.NewReader(buf.Bytes()), bare))

	// Corrupt magic.
	raw := append([]byte{}, buf.Bytes()...)
	raw[0] ^= 0xff
	assert.Error(t, ReadPopulations(bytes.NewReader(raw), g))

	// Truncated stream.
	assert.Error(t,
		ReadPopulations(bytes.NewReader(buf.Bytes()[:buf.Len()/2]), g))
}

func TestWriteImageCube(t *testing.T) {
	img, err := raytrace.NewImage(raytrace.ImageParams{
		Pixels:   3,
		ImgRes:   1e-6,
		NChan:    2,
		VelRes:   100,
		Distance: physics.PC,
	})
	require.NoError(t, err)

	for pix := range img.Intensity {
		for ch := range img.Intensity[pix] {
			img.Intensity[pix][ch] = float64(10*pix + ch)
			img.Tau[pix][ch] = math.Pi
		}
	}

	buf := &bytes.Buffer{}
	require.NoError(t, WriteImageCube(buf, img))

	wantLen := 6*8 + // header
		9*2*8 + // intensity
		9*2*8 + // tau
		9*3*8 // stokes
	assert.Equal(t, wantLen, buf.Len())

	var hd cubeHeader
	require.NoError(t, binary.Read(buf, end, &hd))
	assert.Equal(t, cubeMagic, hd.Magic)
	assert.Equal(t, int64(3), hd.Pixels)
	assert.Equal(t, int64(2), hd.NChan)

	var first [4]float64
	require.NoError(t, binary.Read(buf, end, &first))
	assert.Equal(t, [4]float64{0, 1, 10, 11}, first)
}
