// Package moldata holds the per-species molecular data the transfer
// engine consumes: energy levels, radiative transitions, and per-partner
// collision rate tables. Records are filled by an external reader (or
// directly by tests), validated once, and immutable afterwards.
package moldata

import (
	"fmt"
	"math"

	"github.com/astromol/linert/physics"
)

// PartnerID identifies a collision partner species. The values follow the
// standard line-data numbering.
type PartnerID int

const (
	H2 PartnerID = iota + 1
	ParaH2
	OrthoH2
	Electron
	AtomicH
	He
	HPlus
)

var partnerNames = map[PartnerID]string{
	H2:       "H2",
	ParaH2:   "p-H2",
	OrthoH2:  "o-H2",
	Electron: "e",
	AtomicH:  "H",
	He:       "He",
	HPlus:    "H+",
}

func (id PartnerID) String() string {
	if name, ok := partnerNames[id]; ok {
		return name
	}
	return fmt.Sprintf("partner(%d)", int(id))
}

// Valid reports whether id is one of the recognized collision partners.
func (id PartnerID) Valid() bool {
	_, ok := partnerNames[id]
	return ok
}

// CollPartner is one collision partner's temperature-binned downward rate
// table. Upward rates are derived from detailed balance at solve time.
type CollPartner struct {
	ID PartnerID

	// Temps holds the table's temperature bins in increasing order. Down
	// is indexed [transition*len(Temps) + bin].
	Temps []float64
	Down  []float64

	// Lower/upper level index per collisional transition.
	LCL, LCU []int

	// DensityIndex selects which density component of the physical model
	// sets this partner's number density.
	DensityIndex int
}

// NTrans returns the number of collisional transitions in the table.
func (p *CollPartner) NTrans() int { return len(p.LCL) }

// Molecule is an immutable per-species record of levels, lines, and
// collision rate tables.
type Molecule struct {
	Name  string
	AMass float64 // molecular mass [kg]

	NLev, NLine int

	// Per-line upper and lower level indices.
	LAU, LAL []int

	AEinst []float64 // Einstein A [1/s]
	Freq   []float64 // rest frequency [Hz]
	Eterm  []float64 // level energy [cm^-1]
	GStat  []float64 // statistical weight

	// Derived by Setup: stimulated coefficients and the per-line
	// background radiation field.
	BeinstU, BeinstL []float64
	CMB              []float64

	Part []CollPartner
}

// Validate checks the internal consistency of the record: every table a
// line or level index points into must exist and agree on its counts.
// Mismatches are fatal to the run (the caller aborts), since they mean
// the input data itself is corrupt.
func (m *Molecule) Validate() error {
	if m.NLev < 2 {
		return fmt.Errorf("molecule %s: %d levels, need at least 2",
			m.Name, m.NLev)
	}
	if m.NLine < 1 {
		return fmt.Errorf("molecule %s: no radiative transitions", m.Name)
	}
	if len(m.Eterm) != m.NLev || len(m.GStat) != m.NLev {
		return fmt.Errorf(
			"molecule %s: level tables sized %d/%d, expected %d",
			m.Name, len(m.Eterm), len(m.GStat), m.NLev)
	}
	if len(m.LAU) != m.NLine || len(m.LAL) != m.NLine ||
		len(m.AEinst) != m.NLine || len(m.Freq) != m.NLine {
		return fmt.Errorf(
			"molecule %s: line tables sized %d/%d/%d/%d, expected %d",
			m.Name, len(m.LAU), len(m.LAL), len(m.AEinst), len(m.Freq),
			m.NLine)
	}
	for i := 0; i < m.NLine; i++ {
		if m.LAU[i] < 0 || m.LAU[i] >= m.NLev ||
			m.LAL[i] < 0 || m.LAL[i] >= m.NLev {
			return fmt.Errorf("molecule %s: line %d links levels %d-%d "+
				"outside [0, %d)", m.Name, i, m.LAU[i], m.LAL[i], m.NLev)
		}
	}

	for pi := range m.Part {
		p := &m.Part[pi]
		if !p.ID.Valid() {
			return fmt.Errorf("molecule %s: unknown collision partner id %d",
				m.Name, int(p.ID))
		}
		if len(p.LCL) != len(p.LCU) {
			return fmt.Errorf("molecule %s, partner %v: %d lower vs %d "+
				"upper transition indices", m.Name, p.ID,
				len(p.LCL), len(p.LCU))
		}
		if len(p.Down) != len(p.LCL)*len(p.Temps) {
			return fmt.Errorf(
				"molecule %s, partner %v: rate table has %d entries, "+
					"expected %d transitions x %d bins",
				m.Name, p.ID, len(p.Down), len(p.LCL), len(p.Temps))
		}
		for ti := range p.LCL {
			if p.LCL[ti] < 0 || p.LCL[ti] >= m.NLev ||
				p.LCU[ti] < 0 || p.LCU[ti] >= m.NLev {
				return fmt.Errorf(
					"molecule %s, partner %v: transition %d links levels "+
						"%d-%d outside [0, %d)",
					m.Name, p.ID, ti, p.LCU[ti], p.LCL[ti], m.NLev)
			}
		}
		for ti := 1; ti < len(p.Temps); ti++ {
			if p.Temps[ti] <= p.Temps[ti-1] {
				return fmt.Errorf(
					"molecule %s, partner %v: temperature bins not "+
						"increasing at bin %d", m.Name, p.ID, ti)
			}
		}
	}

	return nil
}

// Setup derives the stimulated-emission coefficients from the Einstein A
// values and fills the per-line background radiation field for a
// blackbody of temperature tcmb. It must run once, after Validate and
// before any transport work.
func (m *Molecule) Setup(tcmb float64) {
	m.BeinstU = make([]float64, m.NLine)
	m.BeinstL = make([]float64, m.NLine)
	m.CMB = make([]float64, m.NLine)

	for i := 0; i < m.NLine; i++ {
		nu := m.Freq[i]
		m.BeinstU[i] = m.AEinst[i] * physics.CLight * physics.CLight /
			(2 * physics.HPlanck * nu * nu * nu)
		m.BeinstL[i] = m.GStat[m.LAU[i]] / m.GStat[m.LAL[i]] * m.BeinstU[i]

		if tcmb > 0 {
			m.CMB[i] = Planck(nu, tcmb)
		}
	}
}

// Planck is the blackbody specific intensity B_nu(T) [W / m^2 / Hz / sr].
func Planck(nu, t float64) float64 {
	if t <= 0 {
		return 0
	}
	x := physics.HPlanck * nu / (physics.KBoltz * t)
	if x > 700 {
		return 0
	}
	return 2 * physics.HPlanck * nu * nu * nu /
		(physics.CLight * physics.CLight) / (math.Exp(x) - 1)
}

// LTEPops fills pops with the Boltzmann level distribution at the given
// kinetic temperature, normalized to sum to one.
func (m *Molecule) LTEPops(tKin float64, pops []float64) {
	sum := 0.0
	for i := 0; i < m.NLev; i++ {
		pops[i] = m.GStat[i] *
			math.Exp(-physics.HCKB*m.Eterm[i]/tKin)
		sum += pops[i]
	}
	for i := 0; i < m.NLev; i++ {
		pops[i] /= sum
	}
}

// EnergyK returns the energy gap between two levels in Kelvin.
func (m *Molecule) EnergyK(upper, lower int) float64 {
	return physics.HCKB * (m.Eterm[upper] - m.Eterm[lower])
}
