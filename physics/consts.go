// Package physics holds the physical constants used throughout the line
// transfer engine. Values are NIST (2015) and IAU (2009).
package physics

const (
	AMU     = 1.66053904e-27  // atomic mass unit [kg]
	CLight  = 2.99792458e8    // speed of light in vacuum [m/s]
	HPlanck = 6.626070040e-34 // Planck constant [J s]
	KBoltz  = 1.38064852e-23  // Boltzmann constant [J/K]

	Grav = 6.67428e-11    // gravitational constant [m^3 / kg / s^2]
	AU   = 1.495978707e11 // astronomical unit [m]
	PC   = 3.08567758e16  // parsec [m]

	// HPIP = HPlanck * CLight / (4 pi sqrt(pi)): the line emissivity
	// prefactor for a Gaussian profile in inverse-b units.
	HPIP = 8.918502221e-27
	// HCKB = 100 * HPlanck * CLight / KBoltz: converts level energies in
	// cm^-1 to Kelvin.
	HCKB = 1.43877735

	SqrtPi = 1.77245385091
)

// TCMB is the present-day cosmic microwave background temperature [K],
// the default background radiation field.
const TCMB = 2.728
