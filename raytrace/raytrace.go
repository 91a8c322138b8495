package raytrace

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/astromol/linert/fastexp"
	"github.com/astromol/linert/grid"
	"github.com/astromol/linert/moldata"
	"github.com/astromol/linert/physics"
)

const (
	// maxPolarization is the maximum dust grain polarization fraction.
	maxPolarization = 0.15

	// dtauCutoff switches the remnant source function to its Taylor form
	// to avoid catastrophic cancellation at small optical depth steps.
	dtauCutoff = 1e-4

	// maxSegSubSteps caps the subdivision of one cell crossing.
	maxSegSubSteps = 10
)

// Raytracer integrates the transfer equation through a converged mesh.
// All referenced state is read-only during rendering, so one Raytracer
// may serve many images in sequence.
type Raytracer struct {
	G    *grid.Grid
	Mols []*moldata.Molecule
	Exp  *fastexp.Tables
	Erf  *fastexp.ErfTable
	Dust *moldata.DustOpacity // may be nil: no continuum

	NThreads int
	Seed     int64
}

// interpState is the physical state barycentrically interpolated at one
// ray-face crossing, restricted to what the integrator needs.
type interpState struct {
	dist   float64
	vRay   float64 // bulk velocity projected on the ray [m/s]
	binv   float64
	nu     float64 // upper level number density [1/m^3]
	nl     float64 // lower level number density
	knu    float64 // continuum opacity [1/m]
	dust   float64 // continuum source function
	bfield grid.Vec
}

// Render synthesizes one image. Pixels are farmed to a fixed worker pool;
// each pixel's writes are disjoint, so no locking is needed, and each
// pixel's jitter stream is seeded from its own index, so the image is
// reproducible for any worker count.
func (rt *Raytracer) Render(par ImageParams) (*Image, error) {
	img, err := NewImage(par)
	if err != nil {
		return nil, err
	}
	if par.Mol < 0 || par.Mol >= len(rt.Mols) {
		return nil, fmt.Errorf("image: species %d of %d", par.Mol, len(rt.Mols))
	}
	if par.Trans >= rt.Mols[par.Mol].NLine {
		return nil, fmt.Errorf("image: transition %d of %d",
			par.Trans, rt.Mols[par.Mol].NLine)
	}
	if par.Trans < 0 && par.Freq <= 0 {
		return nil, fmt.Errorf("image: continuum image needs a frequency")
	}

	nThreads := rt.NThreads
	if nThreads <= 0 {
		nThreads = runtime.NumCPU()
	}

	// Parallel rays from behind the mesh towards the observer.
	radius := rt.meshRadius()
	dir := img.rotateBack(grid.Vec{0, 0, -1})

	n := par.Pixels * par.Pixels
	pixels := make(chan int, n)
	for i := 0; i < n; i++ {
		pixels <- i
	}
	close(pixels)

	var wg sync.WaitGroup
	for w := 0; w < nThreads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pix := range pixels {
				rt.renderPixel(img, pix, dir, radius)
			}
		}()
	}
	wg.Wait()

	return img, nil
}

// meshRadius returns the radius of the sphere around the origin
// containing every mesh point.
func (rt *Raytracer) meshRadius() float64 {
	r2 := 0.0
	for i := range rt.G.Points {
		if d := rt.G.Points[i].X.Dot(rt.G.Points[i].X); d > r2 {
			r2 = d
		}
	}
	return math.Sqrt(r2)
}

// renderPixel traces the pixel's sub-rays and averages them. The first
// sub-ray goes through the pixel center; antialiasing sub-rays jitter
// within the pixel with a per-pixel deterministic stream.
func (rt *Raytracer) renderPixel(img *Image, pix int, dir grid.Vec, radius float64) {
	scale := img.PixelScale()
	px := pix % img.Pixels
	py := pix / img.Pixels
	cx := (float64(px) - 0.5*float64(img.Pixels) + 0.5) * scale
	cy := (float64(py) - 0.5*float64(img.Pixels) + 0.5) * scale

	rng := rand.New(rand.NewSource(rt.Seed + int64(pix)))

	nSub := img.AntiAlias
	nHit := 0
	for s := 0; s < nSub; s++ {
		x, y := cx, cy
		if s > 0 {
			x += (rng.Float64() - 0.5) * scale
			y += (rng.Float64() - 0.5) * scale
		}
		orig := img.rotateBack(grid.Vec{x, y, 2 * radius})

		hit := rt.traceRay(img, pix, orig, dir, s == 0)
		if hit {
			nHit++
		}
	}

	if nHit > 1 {
		for ch := range img.Intensity[pix] {
			img.Intensity[pix][ch] /= float64(nHit)
		}
		for k := 0; k < 3; k++ {
			img.Stokes[pix][k] /= float64(nHit)
		}
	}
}

// traceRay integrates one sub-ray and accumulates into the pixel.
// Intensity and Stokes sums accumulate across sub-rays; optical depth is
// taken from the central sub-ray only. Broken chains (degenerate
// geometry the tolerance fallback could not repair) skip the sub-ray.
func (rt *Raytracer) traceRay(img *Image, pix int, orig, dir grid.Vec,
	central bool) bool {

	cell, face, entry, ok := FindEntry(rt.G, orig, dir)
	if !ok {
		return false
	}
	cells, exits, ok := FollowRay(rt.G, orig, dir, cell, face, entry)
	if !ok {
		return false
	}

	m := rt.Mols[img.Mol]
	nu := img.Freq
	if img.Trans >= 0 {
		nu = m.Freq[img.Trans]
	}

	// Interpolate the state at the entry crossing and at every exit.
	states := make([]interpState, 0, len(exits)+1)
	states = append(states,
		rt.interpAt(&rt.G.Cells[cells[0]], entry, img, dir, nu))
	for i := range exits {
		states = append(states,
			rt.interpAt(&rt.G.Cells[cells[i]], exits[i], img, dir, nu))
	}

	if img.Polarization {
		rt.integrateStokes(img, pix, states)
		return true
	}

	for ch := 0; ch < img.NChan; ch++ {
		vChan := img.ChannelVel(ch)
		inten, tau := rt.integrateChannel(img, states, vChan)
		if img.Unit == UnitTau {
			img.Intensity[pix][ch] += tau
		} else {
			img.Intensity[pix][ch] += img.ToUnit(inten, nu)
		}
		if central {
			img.Tau[pix][ch] = tau
		}
	}
	return true
}

// interpAt evaluates the integrator's state at one crossing by
// barycentric weighting of the face's three vertices.
func (rt *Raytracer) interpAt(c *grid.Cell, inter Intersection, img *Image,
	dir grid.Vec, nu float64) interpState {

	ids := faceVertIDs(c, inter.Face)
	m := rt.Mols[img.Mol]

	var st interpState
	st.dist = inter.Dist

	for k := 0; k < 3; k++ {
		w := inter.Bary[k]
		p := &rt.G.Points[ids[k]]
		pop := &p.Mol[img.Mol]

		st.vRay += w * p.Vel.Dot(dir)
		st.binv += w * pop.Binv
		st.bfield = st.bfield.Add(p.B.Scale(w))

		if img.Trans >= 0 {
			li := img.Trans
			st.nu += w * pop.Pops[m.LAU[li]] * pop.NMol
			st.nl += w * pop.Pops[m.LAL[li]] * pop.NMol
			st.knu += w * pop.Knu[li]
			st.dust += w * pop.Dust[li]
		} else if rt.Dust != nil {
			rhoDust := 2.4 * physics.AMU * p.Dens[0] / p.GasToDust
			st.knu += w * rt.Dust.Kappa(nu) * rhoDust
			st.dust += w * moldata.Planck(nu, p.TDust)
		}
	}

	return st
}

// integrateChannel walks the interpolated state chain for one spectral
// channel, integrating the transfer equation analytically per substep
// under piecewise-linear source and opacity.
func (rt *Raytracer) integrateChannel(img *Image, states []interpState,
	vChan float64) (inten, tau float64) {

	m := rt.Mols[img.Mol]
	li := img.Trans

	for i := 0; i+1 < len(states); i++ {
		s0, s1 := &states[i], &states[i+1]
		ds := s1.dist - s0.dist
		if ds <= 0 {
			continue
		}

		// Subdivide so the projected velocity shift per substep stays
		// well under a line width.
		nSub := 1
		if li >= 0 {
			binv := 0.5 * (s0.binv + s1.binv)
			nSub = 1 + int(math.Abs(s1.vRay-s0.vRay)*binv/0.3)
			if nSub > maxSegSubSteps {
				nSub = maxSegSubSteps
			}
		}

		for k := 0; k < nSub; k++ {
			f0 := float64(k) / float64(nSub)
			f1 := float64(k+1) / float64(nSub)
			fm := 0.5 * (f0 + f1)

			binv := lerp(s0.binv, s1.binv, fm)
			jnu, alpha := 0.0, 0.0

			if li >= 0 {
				// Profile-averaged line terms across the substep.
				x0 := (vChan - lerp(s0.vRay, s1.vRay, f0)) * binv
				x1 := (vChan - lerp(s0.vRay, s1.vRay, f1)) * binv
				vfac := rt.Erf.GaussAverage(x0, x1)

				nUp := lerp(s0.nu, s1.nu, fm)
				nLo := lerp(s0.nl, s1.nl, fm)
				factor := vfac * physics.HPIP * binv
				jnu += factor * nUp * m.AEinst[li]
				alpha += factor * (nLo*m.BeinstL[li] - nUp*m.BeinstU[li])
			}

			knu := lerp(s0.knu, s1.knu, fm)
			jnu += lerp(s0.dust, s1.dust, fm) * knu
			alpha += knu

			dtau := alpha * ds / float64(nSub)
			remnant, _ := calcSourceFn(rt.Exp, dtau)
			if alpha != 0 {
				snu := jnu / alpha
				inten += rt.Exp.Exp(tau) * remnant * dtau * snu
			}
			tau += dtau
		}
	}

	return inten, tau
}

// integrateStokes integrates the polarized dust continuum: Stokes I, Q,
// and U from the magnetic-field-derived rotation of the grain emission.
func (rt *Raytracer) integrateStokes(img *Image, pix int, states []interpState) {
	tau := 0.0

	for i := 0; i+1 < len(states); i++ {
		s0, s1 := &states[i], &states[i+1]
		ds := s1.dist - s0.dist
		if ds <= 0 {
			continue
		}

		knu := 0.5 * (s0.knu + s1.knu)
		dust := 0.5 * (s0.dust + s1.dust)
		b := img.rotate(s0.bfield.Add(s1.bfield).Scale(0.5))

		jI, jQ, jU := polarizedEmission(dust*knu, b)

		dtau := knu * ds
		remnant, _ := calcSourceFn(rt.Exp, dtau)
		att := rt.Exp.Exp(tau) * remnant * ds
		img.Stokes[pix][0] += att * jI
		img.Stokes[pix][1] += att * jQ
		img.Stokes[pix][2] += att * jU
		tau += dtau
	}

	img.Tau[pix][0] = tau
}

// polarizedEmission splits the dust emissivity into Stokes components
// for a magnetic field b expressed in image coordinates (z along the
// line of sight).
func polarizedEmission(jnu float64, b grid.Vec) (jI, jQ, jU float64) {
	b2 := b.Dot(b)
	if b2 == 0 {
		return jnu, 0, 0
	}

	cosGamma2 := b[2] * b[2] / b2 // squared cosine of the LOS angle
	sinGamma2 := 1 - cosGamma2

	bSky2 := b[0]*b[0] + b[1]*b[1]
	cos2Chi, sin2Chi := 1.0, 0.0
	if bSky2 > 0 {
		cos2Chi = (b[0]*b[0] - b[1]*b[1]) / bSky2
		sin2Chi = 2 * b[0] * b[1] / bSky2
	}

	jI = jnu * (1 - maxPolarization*(cosGamma2-2.0/3.0))
	jQ = jnu * maxPolarization * cos2Chi * sinGamma2
	jU = jnu * maxPolarization * sin2Chi * sinGamma2
	return jI, jQ, jU
}

// calcSourceFn returns the remnant source function (1-exp(-dtau))/dtau
// and exp(-dtau), switching to the Taylor form at small dtau.
func calcSourceFn(exp *fastexp.Tables, dtau float64) (remnant, expDTau float64) {
	if math.Abs(dtau) < dtauCutoff {
		remnant = 1 - dtau*(0.5-dtau/6)
		expDTau = 1 - dtau*remnant
		return remnant, expDTau
	}
	expDTau = exp.Exp(dtau)
	remnant = (1 - expDTau) / dtau
	return remnant, expDTau
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}
