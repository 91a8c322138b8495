// Package interpolate provides the 1D interpolators used for dust opacity
// curves and collision rate tables: a natural cubic spline and a
// log-log wrapper for power-law-like data.
package interpolate

import (
	"log"
	"math"
)

// Spline represents a 1D natural cubic spline which can be used to
// interpolate between points.
type Spline struct {
	xs, ys, y2s, sqrs []float64

	// Evaluation outside the table range clamps to the end values rather
	// than failing. Opacity tables are finite; rays sample past band edges.
	clamp bool

	// Usually the input data is uniform. This is our estimate of the point
	// spacing.
	dx float64
}

// NewSpline creates a spline based off a table of x and y values. The
// values must be sorted in increasing order in x.
//
// xs and ys must not be modified throughout the lifetime of the Spline.
func NewSpline(xs, ys []float64) *Spline {
	if len(xs) != len(ys) {
		log.Fatalf(
			"Table given to NewSpline() has len(xs) = %d but len(ys) = %d.",
			len(xs), len(ys),
		)
	} else if len(xs) <= 2 {
		log.Fatalf("Table given to NewSpline() has length of %d.", len(xs))
	}
	for i := 0; i < len(xs)-1; i++ {
		if xs[i+1] <= xs[i] {
			log.Fatal("Table given to NewSpline() not sorted.")
		}
	}

	sp := new(Spline)
	sp.xs, sp.ys = xs, ys
	sp.y2s = make([]float64, len(xs))
	sp.sqrs = make([]float64, len(xs)-1)
	sp.dx = (xs[len(xs)-1] - xs[0]) / float64(len(xs)-1)

	sp.secondDerivative()
	for i := range sp.sqrs {
		sp.sqrs[i] = (xs[i+1] - xs[i]) * (xs[i+1] - xs[i])
	}

	return sp
}

// Clamp makes out-of-range evaluations return the table end values
// instead of being fatal. It returns the spline for chaining.
func (sp *Spline) Clamp() *Spline {
	sp.clamp = true
	return sp
}

// Eval interpolates the table of x and y values given in NewSpline to
// the point x.
//
// Unless Clamp() was called, x must be within the range of x values given
// to NewSpline().
func (sp *Spline) Eval(x float64) float64 {
	n := len(sp.xs)
	if x < sp.xs[0] || x > sp.xs[n-1] {
		if !sp.clamp {
			log.Fatalf("Point %g given to Spline.Eval() out of bounds [%g, %g].",
				x, sp.xs[0], sp.xs[n-1])
		}
		if x < sp.xs[0] {
			return sp.ys[0]
		}
		return sp.ys[n-1]
	}

	lo := sp.bsearch(x)
	hi := lo + 1

	A := (sp.xs[hi] - x) / (sp.xs[hi] - sp.xs[lo])
	B := 1 - A
	C := (A*A*A - A) * sp.sqrs[lo] / 6
	D := (B*B*B - B) * sp.sqrs[lo] / 6
	return A*sp.ys[lo] + B*sp.ys[hi] + C*sp.y2s[lo] + D*sp.y2s[hi]
}

// bsearch returns the index of the largest element in xs which is smaller
// than x.
func (sp *Spline) bsearch(x float64) int {
	// Guess under the assumption of uniform spacing.
	guess := int((x - sp.xs[0]) / sp.dx)
	if guess >= 0 && guess < len(sp.xs)-1 &&
		sp.xs[guess] <= x && sp.xs[guess+1] >= x {

		return guess
	}

	// Binary search.
	lo, hi := 0, len(sp.xs)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if x >= sp.xs[mid] {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// secondDerivative computes the second derivative at every point in the
// table given in NewSpline. Natural boundary conditions: the second
// derivative is zero at both ends.
func (sp *Spline) secondDerivative() {
	n := len(sp.xs)
	as, bs := make([]float64, n-2), make([]float64, n-2)
	cs, rs := make([]float64, n-2), make([]float64, n-2)

	sp.y2s[0], sp.y2s[n-1] = 0, 0

	xs, ys := sp.xs, sp.ys
	for i := range rs {
		// j indexes into xs and ys.
		j := i + 1

		as[i] = (xs[j] - xs[j-1]) / 6
		bs[i] = (xs[j+1] - xs[j-1]) / 3
		cs[i] = (xs[j+1] - xs[j]) / 6
		rs[i] = ((ys[j+1] - ys[j]) / (xs[j+1] - xs[j])) -
			((ys[j] - ys[j-1]) / (xs[j] - xs[j-1]))
	}

	TriDiagAt(as, bs, cs, rs, sp.y2s[1:n-1])
}

// LogSpline is a cubic spline fit in log-log space. Dust opacity tables
// span several decades in both axes and are close to power laws, so the
// fit is done on the logarithms.
type LogSpline struct {
	sp *Spline
}

// NewLogSpline creates a log-log spline from a table of positive x and y
// values sorted in increasing x.
func NewLogSpline(xs, ys []float64) *LogSpline {
	lxs := make([]float64, len(xs))
	lys := make([]float64, len(ys))
	for i := range xs {
		if xs[i] <= 0 || i < len(ys) && ys[i] <= 0 {
			log.Fatalf("Table given to NewLogSpline() has non-positive "+
				"entry at row %d.", i)
		}
		lxs[i] = math.Log(xs[i])
		lys[i] = math.Log(ys[i])
	}
	return &LogSpline{NewSpline(lxs, lys).Clamp()}
}

// Eval interpolates the table at x, clamping to the table ends.
func (lsp *LogSpline) Eval(x float64) float64 {
	return math.Exp(lsp.sp.Eval(math.Log(x)))
}

// TriDiagAt solves the system of equations
//
//	| b0 c0 ..    |   | out0 |   | r0 |
//	| a1 b1 c1 .. |   | out1 |   | r1 |
//	| ..          | * | ..   | = | .. |
//	| ..    an bn |   | outn |   | rn |
//
// for out0 .. outn in place in the given slice.
func TriDiagAt(as, bs, cs, rs, out []float64) {
	if len(as) != len(bs) || len(as) != len(cs) ||
		len(as) != len(out) || len(as) != len(rs) {

		log.Fatal("Lengths of arguments to TriDiagAt are unequal.")
	}

	tmp := make([]float64, len(as))

	beta := bs[0]
	if beta == 0 {
		log.Fatal("TriDiagAt cannot solve given system.")
	}
	out[0] = rs[0] / beta

	for i := 1; i < len(out); i++ {
		tmp[i] = cs[i-1] / beta
		beta = bs[i] - as[i]*tmp[i]
		if beta == 0 {
			log.Fatal("TriDiagAt cannot solve given system.")
		}
		out[i] = (rs[i] - as[i]*out[i-1]) / beta
	}

	for i := len(out) - 2; i >= 0; i-- {
		out[i] -= tmp[i+1] * out[i+1]
	}
}
