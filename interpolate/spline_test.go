package interpolate

import (
	"math"
	"testing"
)

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

func TestSplineReproducesKnots(t *testing.T) {
	xs := []float64{0, 0.5, 1.3, 2, 3.1}
	ys := []float64{2, -1, 0.5, 4, 3}
	sp := NewSpline(xs, ys)

	for i := range xs {
		if got := sp.Eval(xs[i]); math.Abs(got-ys[i]) > 1e-12 {
			t.Errorf("Eval(%g) = %g, want knot value %g", xs[i], got, ys[i])
		}
	}
}

func TestSplineLinearData(t *testing.T) {
	// A natural cubic spline through collinear points is the line itself.
	xs := linspace(0, 4, 9)
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = 3*x - 1
	}
	sp := NewSpline(xs, ys)

	for _, x := range linspace(0, 4, 101) {
		want := 3*x - 1
		if got := sp.Eval(x); math.Abs(got-want) > 1e-10 {
			t.Errorf("Eval(%g) = %g, want %g", x, got, want)
		}
	}
}

func TestSplineSmoothFunction(t *testing.T) {
	xs := linspace(0, math.Pi, 21)
	ys := make([]float64, len(xs))
	for i, x := range xs {
		ys[i] = math.Sin(x)
	}
	sp := NewSpline(xs, ys)

	for _, x := range linspace(0, math.Pi, 200) {
		if got := sp.Eval(x); math.Abs(got-math.Sin(x)) > 1e-3 {
			t.Errorf("Eval(%g) = %g, want %g", x, got, math.Sin(x))
		}
	}
}

func TestSplineClamp(t *testing.T) {
	xs := []float64{1, 2, 3}
	ys := []float64{10, 20, 30}
	sp := NewSpline(xs, ys).Clamp()

	if got := sp.Eval(0); got != 10 {
		t.Errorf("clamped Eval below range = %g, want 10", got)
	}
	if got := sp.Eval(5); got != 30 {
		t.Errorf("clamped Eval above range = %g, want 30", got)
	}
}

func TestLogSplinePowerLaw(t *testing.T) {
	// A pure power law is linear in log-log space, so the fit is exact up
	// to rounding.
	xs := make([]float64, 12)
	ys := make([]float64, 12)
	for i := range xs {
		xs[i] = math.Pow(10, float64(i)/2)
		ys[i] = 7 * math.Pow(xs[i], -1.8)
	}
	lsp := NewLogSpline(xs, ys)

	for _, x := range []float64{1.5, 22, 480, 1e4} {
		want := 7 * math.Pow(x, -1.8)
		got := lsp.Eval(x)
		if math.Abs(got-want)/want > 1e-8 {
			t.Errorf("LogSpline.Eval(%g) = %g, want %g", x, got, want)
		}
	}
}

func TestTriDiagAt(t *testing.T) {
	// Solve a fixed 4x4 tridiagonal system and check the residual. The
	// first sub-diagonal and last super-diagonal entries are unused.
	as := []float64{0, 1, 2, 1}
	bs := []float64{4, 5, 6, 4}
	cs := []float64{1, 1, 2, 0}
	rs := []float64{5, 13, 22, 14}
	out := make([]float64, 4)

	TriDiagAt(as, bs, cs, rs, out)

	res := []float64{
		bs[0]*out[0] + cs[0]*out[1],
		as[1]*out[0] + bs[1]*out[1] + cs[1]*out[2],
		as[2]*out[1] + bs[2]*out[2] + cs[2]*out[3],
		as[3]*out[2] + bs[3]*out[3],
	}
	for i := range res {
		if math.Abs(res[i]-rs[i]) > 1e-12 {
			t.Errorf("row %d residual: got %g, want %g", i, res[i], rs[i])
		}
	}
}
