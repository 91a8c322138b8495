package io

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gcfg.v1"

	"github.com/astromol/linert/physics"
	"github.com/astromol/linert/raytrace"
)

func TestExampleRunFileParses(t *testing.T) {
	wrap := DefaultRunWrapper()
	require.NoError(t, gcfg.ReadStringInto(wrap, ExampleRunFile))

	assert.Equal(t, 500, wrap.Run.NPhot)
	assert.True(t, wrap.Run.ValidNPhot())
	assert.True(t, wrap.Run.ValidPopTol())
	assert.True(t, wrap.Run.ValidConvFrac())
	assert.True(t, wrap.Run.ValidMaxSweeps())

	assert.True(t, wrap.Model.Valid())
	assert.Equal(t, 17, wrap.Model.LatticeN)

	require.Contains(t, wrap.Image, "line")
	img := wrap.Image["line"]
	assert.True(t, img.Valid())
	assert.Equal(t, 64, img.Pixels)
	assert.Equal(t, 1, img.Trans)
}

func TestRunConfigValidation(t *testing.T) {
	c := DefaultRunWrapper().Run
	assert.True(t, c.ValidNPhot())

	c.NPhot = 0
	assert.False(t, c.ValidNPhot())

	c.PopTol = 1
	assert.False(t, c.ValidPopTol())

	c.ConvFrac = 1.5
	assert.False(t, c.ValidConvFrac())

	c.MaxSweeps = -1
	assert.False(t, c.ValidMaxSweeps())
}

func TestImageConfigToParams(t *testing.T) {
	c := &ImageConfig{
		Pixels:   32,
		ImgRes:   0.5,
		NChan:    21,
		VelRes:   100,
		Mol:      0,
		Trans:    2,
		Theta:    0.3,
		Distance: 140,
		Unit:     "Jansky",
		Filename: "out.cube",
	}
	require.True(t, c.Valid())

	par := c.ToParams()
	assert.Equal(t, 32, par.Pixels)
	assert.InEpsilon(t, 0.5*arcsecToRad, par.ImgRes, 1e-12)
	assert.InEpsilon(t, 140*physics.PC, par.Distance, 1e-12)
	assert.Equal(t, raytrace.UnitJanskyPerPixel, par.Unit)

	c.Unit = "Tau"
	assert.Equal(t, raytrace.UnitTau, c.ToParams().Unit)

	// Anything unrecognized falls back to brightness temperature.
	c.Unit = ""
	assert.Equal(t, raytrace.UnitKelvin, c.ToParams().Unit)
}

func TestImageConfigValid(t *testing.T) {
	c := &ImageConfig{
		Pixels: 32, ImgRes: 0.5, NChan: 1, Distance: 140,
		Filename: "out.cube",
	}
	assert.True(t, c.Valid())

	c.Filename = ""
	assert.False(t, c.Valid())

	c.Filename = "out.cube"
	c.Distance = 0
	assert.False(t, c.Valid())
}
