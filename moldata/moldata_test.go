package moldata

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromol/linert/physics"
)

// twoLevel returns a minimal valid two-level species.
func twoLevel() *Molecule {
	return &Molecule{
		Name:   "test",
		AMass:  28 * physics.AMU,
		NLev:   2,
		NLine:  1,
		LAU:    []int{1},
		LAL:    []int{0},
		AEinst: []float64{1e-5},
		Freq:   []float64{1.15e11},
		Eterm:  []float64{0, 3.845},
		GStat:  []float64{1, 3},
		Part: []CollPartner{{
			ID:           H2,
			Temps:        []float64{10, 20, 40},
			Down:         []float64{3e-17, 3.2e-17, 3.5e-17},
			LCL:          []int{0},
			LCU:          []int{1},
			DensityIndex: 0,
		}},
	}
}

func TestValidateAcceptsGoodRecord(t *testing.T) {
	assert.NoError(t, twoLevel().Validate())
}

func TestValidateRejectsBadRecords(t *testing.T) {
	break1 := twoLevel()
	break1.Eterm = []float64{0}

	break2 := twoLevel()
	break2.LAU = []int{5}

	break3 := twoLevel()
	break3.Part[0].Down = []float64{3e-17}

	break4 := twoLevel()
	break4.Part[0].Temps = []float64{20, 20, 10}

	break5 := twoLevel()
	break5.Part[0].ID = PartnerID(99)

	for i, m := range []*Molecule{break1, break2, break3, break4, break5} {
		assert.Error(t, m.Validate(), "case %d", i)
	}
}

func TestSetupEinsteinRelations(t *testing.T) {
	m := twoLevel()
	require.NoError(t, m.Validate())
	m.Setup(physics.TCMB)

	nu := m.Freq[0]
	wantBU := m.AEinst[0] * physics.CLight * physics.CLight /
		(2 * physics.HPlanck * nu * nu * nu)
	assert.InEpsilon(t, wantBU, m.BeinstU[0], 1e-12)

	// Detailed balance between the stimulated coefficients.
	assert.InEpsilon(t, m.GStat[1]*m.BeinstU[0], m.GStat[0]*m.BeinstL[0],
		1e-12)

	assert.InEpsilon(t, Planck(nu, physics.TCMB), m.CMB[0], 1e-12)
}

func TestPlanck(t *testing.T) {
	// Rayleigh-Jeans limit at low frequency.
	nu, temp := 1e9, 100.0
	rj := 2 * nu * nu * physics.KBoltz * temp /
		(physics.CLight * physics.CLight)
	assert.InEpsilon(t, rj, Planck(nu, temp), 1e-3)

	assert.Equal(t, 0.0, Planck(1e11, 0))

	// Deep Wien tail underflows to zero rather than NaN.
	assert.Equal(t, 0.0, Planck(1e15, 1e-3))
}

func TestLTEPops(t *testing.T) {
	m := twoLevel()
	pops := make([]float64, 2)
	m.LTEPops(25.0, pops)

	assert.InDelta(t, 1.0, pops[0]+pops[1], 1e-12)

	wantRatio := m.GStat[1] / m.GStat[0] *
		math.Exp(-m.EnergyK(1, 0)/25.0)
	assert.InEpsilon(t, wantRatio, pops[1]/pops[0], 1e-12)
}

func TestEnergyK(t *testing.T) {
	m := twoLevel()
	want := physics.HCKB * m.Eterm[1]
	assert.InEpsilon(t, want, m.EnergyK(1, 0), 1e-12)
}
