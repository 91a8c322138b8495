// Package io holds the run configuration and the binary interchange
// formats: population snapshot files for restarts and raw image cubes
// for the external image writer.
package io

import (
	"math"

	"github.com/astromol/linert/physics"
	"github.com/astromol/linert/raytrace"
)

const (
	arcsecToRad = math.Pi / 648000
)

// RunConfig is the [Run] section of a configuration file. It is opaque,
// read-only input to the engine.
type RunConfig struct {
	// Monte-Carlo and convergence controls.
	NPhot     int
	PopTol    float64
	ConvFrac  float64
	MaxSweeps int
	Threads   int
	Seed      int64

	// Mode flags.
	LTEOnly bool
	InitLTE bool
	Blend   bool

	// Optional inputs and outputs.
	DustFile    string
	RestartFile string // read populations instead of solving
	PopFile     string // write converged populations here
	LogFile     string
}

// ValidNPhot reports whether the photon count is usable.
func (c *RunConfig) ValidNPhot() bool { return c.NPhot > 0 }

// ValidPopTol reports whether the convergence tolerance is usable.
func (c *RunConfig) ValidPopTol() bool {
	return c.PopTol > 0 && c.PopTol < 1
}

// ValidConvFrac reports whether the sweep-ending fraction is usable.
func (c *RunConfig) ValidConvFrac() bool {
	return c.ConvFrac > 0 && c.ConvFrac <= 1
}

// ValidMaxSweeps reports whether the sweep cap is usable.
func (c *RunConfig) ValidMaxSweeps() bool { return c.MaxSweeps > 0 }

// ImageConfig is one [Image "name"] section: the projection geometry and
// channelization of one output image. Angular sizes are in arcsec,
// distances in pc, velocities in m/s.
type ImageConfig struct {
	Pixels    int
	ImgRes    float64 // arcsec per pixel
	NChan     int
	VelRes    float64 // m/s
	Mol       int
	Trans     int     // -1 for continuum
	Freq      float64 // Hz, continuum images only
	Theta     float64 // rad
	Phi       float64 // rad
	Distance  float64 // pc
	SourceVel float64 // m/s

	Unit         string // "Kelvin", "Jansky", "SI", or "Tau"
	Polarization bool
	AntiAlias    int

	Filename string
}

// Valid reports whether the image section is complete enough to render.
func (c *ImageConfig) Valid() bool {
	return c.Pixels > 0 && c.ImgRes > 0 && c.NChan > 0 &&
		c.Distance > 0 && c.Filename != ""
}

// ToParams converts the config units into the raytracer's SI parameters.
func (c *ImageConfig) ToParams() raytrace.ImageParams {
	unit := raytrace.UnitKelvin
	switch c.Unit {
	case "Jansky":
		unit = raytrace.UnitJanskyPerPixel
	case "SI":
		unit = raytrace.UnitSI
	case "Tau":
		unit = raytrace.UnitTau
	}

	return raytrace.ImageParams{
		Pixels:       c.Pixels,
		ImgRes:       c.ImgRes * arcsecToRad,
		NChan:        c.NChan,
		VelRes:       c.VelRes,
		Mol:          c.Mol,
		Trans:        c.Trans,
		Freq:         c.Freq,
		Theta:        c.Theta,
		Phi:          c.Phi,
		Distance:     c.Distance * physics.PC,
		SourceVel:    c.SourceVel,
		Unit:         unit,
		Polarization: c.Polarization,
		AntiAlias:    c.AntiAlias,
	}
}

// ModelConfig is the [Model] section used by the bundled benchmark
// model: a spherically symmetric cloud with power-law density. Real
// applications supply their own Model implementation and ignore this.
type ModelConfig struct {
	RadiusPC      float64 // cloud radius [pc]
	CenterDensity float64 // H2 number density at the inner edge [1/m^3]
	PowerIndex    float64 // density falls off as r^-PowerIndex
	TKin          float64 // kinetic temperature [K]
	TDust         float64 // dust temperature [K]
	Abundance     float64 // molecular abundance relative to H2
	DopplerB      float64 // turbulent b parameter [m/s]
	InfallVel     float64 // radial infall speed at the outer edge [m/s]
	BFieldZ       float64 // uniform magnetic field along z
	LatticeN      int     // mesh lattice points per axis
}

// Valid reports whether the model section describes a usable cloud.
func (c *ModelConfig) Valid() bool {
	return c.RadiusPC > 0 && c.CenterDensity > 0 && c.TKin > 0 &&
		c.DopplerB > 0 && c.LatticeN >= 3
}

// RunWrapper is the top-level gcfg parse target.
type RunWrapper struct {
	Run   RunConfig
	Model ModelConfig
	Image map[string]*ImageConfig
}

// DefaultRunWrapper returns a wrapper with the standard numeric
// defaults filled in, ready for gcfg.ReadFileInto.
func DefaultRunWrapper() *RunWrapper {
	return &RunWrapper{
		Run: RunConfig{
			NPhot:     500,
			PopTol:    1e-6,
			ConvFrac:  0.99,
			MaxSweeps: 16,
			Seed:      1978,
			Blend:     false,
		},
	}
}

// ExampleRunFile is printed by the -ExampleConfig mode.
const ExampleRunFile = `[Run]

#######################
# Required Parameters #
#######################

# Number of photon walks per grid point per sweep.
NPhot = 500

#######################
# Optional Parameters #
#######################

# Relative population change below which a point counts as converged.
# PopTol = 1e-6

# Fraction of converged points that ends the sweep loop.
# ConvFrac = 0.99

# Maximum number of sweeps before giving up (non-fatal).
# MaxSweeps = 16

# Worker threads for the sweep and raytracing loops. Default is the
# number of logical cores.
# Threads = 8

# Global random seed. Reruns with the same seed are bit-identical.
# Seed = 1978

# Skip the Monte-Carlo solve and use LTE populations everywhere.
# LTEOnly = false

# Start the solve from LTE populations instead of a uniform guess.
# InitLTE = true

# Account for spectrally overlapping lines.
# Blend = false

# Two-column dust opacity table (wavelength [micron], kappa [cm^2/g]).
# DustFile = jena_thin_e6.tab

# Write the converged populations here, and restart from such a file.
# PopFile = populations.pop
# RestartFile =

# Redirect the run log.
# LogFile = run.log

[Model]

# The bundled benchmark cloud (spherical, power-law density). External
# applications provide their own model callbacks instead.
RadiusPC = 0.1
CenterDensity = 1.0e10
PowerIndex = 1.5
TKin = 20
TDust = 20
Abundance = 1.0e-9
DopplerB = 200
InfallVel = 0
BFieldZ = 0
LatticeN = 17

[Image "line"]

Pixels = 64
# arcsec per pixel
ImgRes = 0.5
NChan = 61
# m/s per channel
VelRes = 50
Mol = 0
Trans = 1
Theta = 0.7
Phi = 0
# pc
Distance = 140
Unit = Kelvin
AntiAlias = 1
Filename = line.cube
`
