package raytrace

import (
	"fmt"
	"math"

	"github.com/astromol/linert/grid"
	"github.com/astromol/linert/physics"
)

// Unit selects the intensity scale pixels are converted to at write time.
type Unit int

const (
	UnitKelvin Unit = iota // Rayleigh-Jeans brightness temperature
	UnitJanskyPerPixel
	UnitSI
	UnitTau // optical depth instead of intensity
)

// ImageParams is the projection geometry and channelization of one output
// image.
type ImageParams struct {
	Pixels int     // image is Pixels x Pixels
	ImgRes float64 // angular size of one pixel [rad]
	NChan  int     // spectral channels; 1 with Trans < 0 means continuum
	VelRes float64 // channel width [m/s]

	Mol   int     // species index
	Trans int     // line index within the species; -1 for pure continuum
	Freq  float64 // continuum frequency [Hz], used when Trans < 0

	Theta, Phi float64 // viewing rotation [rad]
	Distance   float64 // observer distance [m]
	SourceVel  float64 // systemic velocity offset [m/s]

	Unit         Unit
	Polarization bool
	AntiAlias    int // sub-rays per pixel; 0 and 1 both mean one
}

// Image is the rendered output buffer: per-pixel spectra, optical
// depths, and Stokes aggregates.
type Image struct {
	ImageParams

	RotMat [3][3]float64

	// Intensity and Tau are indexed [pixel][channel], with pixel =
	// y*Pixels + x. Stokes is [pixel][I, Q, U], filled only for
	// polarization images.
	Intensity [][]float64
	Tau       [][]float64
	Stokes    [][3]float64
}

// NewImage allocates the output buffers and the viewing rotation for the
// given parameters.
func NewImage(par ImageParams) (*Image, error) {
	if par.Pixels < 1 {
		return nil, fmt.Errorf("image: %d pixels", par.Pixels)
	}
	if par.NChan < 1 {
		return nil, fmt.Errorf("image: %d channels", par.NChan)
	}
	if par.Distance <= 0 {
		return nil, fmt.Errorf("image: non-positive distance %g", par.Distance)
	}
	if par.AntiAlias < 1 {
		par.AntiAlias = 1
	}

	img := &Image{ImageParams: par}
	img.RotMat = rotationMatrix(par.Theta, par.Phi)

	n := par.Pixels * par.Pixels
	img.Intensity = make([][]float64, n)
	img.Tau = make([][]float64, n)
	img.Stokes = make([][3]float64, n)
	for i := range img.Intensity {
		img.Intensity[i] = make([]float64, par.NChan)
		img.Tau[i] = make([]float64, par.NChan)
	}

	return img, nil
}

// rotationMatrix builds the model-to-observer rotation: first about the
// z axis by phi, then about the y axis by theta. The observer looks down
// the rotated -z axis.
func rotationMatrix(theta, phi float64) [3][3]float64 {
	ct, st := math.Cos(theta), math.Sin(theta)
	cp, sp := math.Cos(phi), math.Sin(phi)

	// R = Ry(theta) * Rz(phi)
	return [3][3]float64{
		{ct * cp, ct * sp, -st},
		{-sp, cp, 0},
		{st * cp, st * sp, ct},
	}
}

// rotate applies the image rotation to a model-frame vector.
func (img *Image) rotate(v grid.Vec) grid.Vec {
	var out grid.Vec
	for i := 0; i < 3; i++ {
		out[i] = img.RotMat[i][0]*v[0] +
			img.RotMat[i][1]*v[1] +
			img.RotMat[i][2]*v[2]
	}
	return out
}

// rotateBack applies the inverse (transpose) rotation, taking an
// image-frame vector into the model frame.
func (img *Image) rotateBack(v grid.Vec) grid.Vec {
	var out grid.Vec
	for i := 0; i < 3; i++ {
		out[i] = img.RotMat[0][i]*v[0] +
			img.RotMat[1][i]*v[1] +
			img.RotMat[2][i]*v[2]
	}
	return out
}

// PixelScale returns the physical width of one pixel at the source [m].
func (img *Image) PixelScale() float64 {
	return img.ImgRes * img.Distance
}

// ChannelVel returns the velocity of channel i relative to the line
// center [m/s].
func (img *Image) ChannelVel(i int) float64 {
	return (float64(i)-0.5*float64(img.NChan-1))*img.VelRes + img.SourceVel
}

// ToUnit converts a raw specific intensity at frequency nu into the
// image's output unit. UnitTau images never pass through here: the
// integrator stores the accumulated optical depth in the intensity
// plane directly.
func (img *Image) ToUnit(inu, nu float64) float64 {
	switch img.Unit {
	case UnitKelvin:
		return inu * physics.CLight * physics.CLight /
			(2 * physics.KBoltz * nu * nu)
	case UnitJanskyPerPixel:
		return 1e26 * inu * img.ImgRes * img.ImgRes
	default:
		return inu
	}
}
