// Package fastexp approximates exp(-x) for x >= 0 without a transcendental
// call. The innermost transfer-integration loops evaluate attenuation
// factors millions of times per image, and the full math.Exp dominates
// their cost.
//
// The argument is rounded to float32 and split at the bit level into its
// exponent and three mantissa byte groups j0 (7 bits), j1, j2 (8 bits
// each), so that
//
//	x = 2^e * (1 + j0/2^7 + j1/2^15 + j2/2^23).
//
// exp(-x) then factors into three precomputed table entries. Because the
// three groups cover the full float32 mantissa, the only approximation
// error over the table range is the float64-to-float32 rounding of the
// argument. Below the table range a fixed-order Taylor polynomial is used;
// above it the result underflows to 0. The documented relative error
// bound over the whole supported domain is 1e-6 (see TestExpErrorBound).
package fastexp

import (
	"log"
	"math"
)

const (
	// MaxTaylor is the order of the truncated Taylor series used below the
	// table range. Don't increase this past 8 without extending oneOverI.
	MaxTaylor = 3

	// ErrBudget is the relative error bound the table range is chosen to
	// respect. It is a correctness parameter of the transfer integration,
	// not a tuning knob.
	ErrBudget = 1e-6

	ieee754ExpOffset   = 127
	ieee754NumMantBits = 23

	numMantJ0       = 128 // top 7 mantissa bits
	numMantJ12      = 256 // middle and bottom bytes
	maxNumExponents = 12
)

var oneOverI = [9]float64{
	0, 1, 1.0 / 2, 1.0 / 3, 1.0 / 4, 1.0 / 5, 1.0 / 6, 1.0 / 7, 1.0 / 8,
}

// Tables holds the precomputed exponential lookup. It is built once at
// startup and is read-only afterwards, so it may be shared freely between
// worker goroutines.
type Tables struct {
	lowestExp int // table range starts at 2^lowestExp
	numExp    int
	expOffset uint32 // ieee754ExpOffset + lowestExp

	exp2D [numMantJ0][maxNumExponents]float64
	exp3D [numMantJ12][2][maxNumExponents]float64
}

// CalcRange determines the exponent range the lookup tables must cover:
// the lowest exponent is the first power of two at which the Taylor
// branch no longer meets ErrBudget, and the highest is the first at which
// exp(-2^e) is negligible compared to ErrBudget.
func CalcRange() (lowestExp, numExp int) {
	lowestExp = -30
	for e := -30; e < 0; e++ {
		x := math.Pow(2, float64(e))
		relErr := math.Abs(taylor(x)-math.Exp(-x)) / math.Exp(-x)
		if relErr > ErrBudget {
			lowestExp = e
			break
		}
	}

	highestExp := lowestExp
	for e := lowestExp; e < lowestExp+maxNumExponents; e++ {
		highestExp = e + 1
		if math.Exp(-math.Pow(2, float64(e))) < ErrBudget {
			break
		}
	}

	return lowestExp, highestExp - lowestExp
}

// New builds the lookup tables for the range returned by CalcRange.
func New() *Tables {
	lowestExp, numExp := CalcRange()
	if numExp > maxNumExponents {
		log.Fatalf("fastexp range of %d exponents exceeds table size %d.",
			numExp, maxNumExponents)
	}

	t := &Tables{
		lowestExp: lowestExp,
		numExp:    numExp,
		expOffset: uint32(ieee754ExpOffset + lowestExp),
	}

	for l := 0; l < numExp; l++ {
		scale := math.Pow(2, float64(l+lowestExp))
		for j := 0; j < numMantJ0; j++ {
			t.exp2D[j][l] = math.Exp(-scale * (1 + float64(j)/numMantJ0))
		}
		for j := 0; j < numMantJ12; j++ {
			t.exp3D[j][0][l] = math.Exp(-scale * float64(j) / (1 << 15))
			t.exp3D[j][1][l] = math.Exp(-scale * float64(j) / (1 << 23))
		}
	}

	return t
}

// Exp approximates exp(-x) for x >= 0. Negative arguments fall back to the
// exact exponential. Exp(0) == 1 exactly.
func (t *Tables) Exp(x float64) float64 {
	if x < 0 {
		return math.Exp(-x)
	}
	if x == 0 {
		return 1
	}

	bits := math.Float32bits(float32(x))
	l := int((bits>>ieee754NumMantBits)&0xff) - int(t.expOffset)

	if l < 0 {
		return taylor(x)
	} else if l >= t.numExp {
		return 0
	}

	j0 := (bits >> 16) & 0x7f
	j1 := (bits >> 8) & 0xff
	j2 := bits & 0xff

	return t.exp2D[j0][l] * t.exp3D[j1][0][l] * t.exp3D[j2][1][l]
}

// taylor evaluates the order-MaxTaylor truncation of exp(-x) in Horner
// form.
func taylor(x float64) float64 {
	result := 1.0
	for i := MaxTaylor; i > 0; i-- {
		result = 1.0 - x*result*oneOverI[i]
	}
	return result
}
