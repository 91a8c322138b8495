// Package blend derives, once per run, the table of line pairs close
// enough in velocity to radiatively cross-interact. The scan is quadratic
// in the total line count, which is acceptable because molecular line
// lists are short.
package blend

import (
	"github.com/astromol/linert/moldata"
	"github.com/astromol/linert/physics"
)

// MaxDeltaV is the rest-frequency-derived velocity separation [m/s]
// below which two lines count as blended.
const MaxDeltaV = 1.0e4

// Entry points at another line overlapping the one it is attached to.
// DeltaV is the velocity offset of the other line's rest frequency as
// seen from this line.
type Entry struct {
	Mol, Line int
	DeltaV    float64
}

// LineBlends lists the lines blended with one line.
type LineBlends struct {
	Line   int
	Blends []Entry
}

// MolBlends lists, per species, which of its lines carry blends.
type MolBlends struct {
	Mol   int
	Lines []LineBlends
}

// Info is the full blend table. A nil or empty Info means no line pair
// overlaps.
type Info struct {
	Mols []MolBlends
}

// Resolve scans every ordered pair of lines across all species and
// records the overlapping ones. It runs once, after the molecular data is
// loaded and before any transport sweep.
func Resolve(mols []*moldata.Molecule) *Info {
	info := &Info{}

	for mi, m := range mols {
		var lines []LineBlends
		for li := 0; li < m.NLine; li++ {
			var entries []Entry
			for mj, other := range mols {
				for lj := 0; lj < other.NLine; lj++ {
					if mi == mj && li == lj {
						continue
					}
					deltaV := (other.Freq[lj] - m.Freq[li]) /
						m.Freq[li] * physics.CLight
					if deltaV < MaxDeltaV && deltaV > -MaxDeltaV {
						entries = append(entries, Entry{mj, lj, deltaV})
					}
				}
			}
			if len(entries) > 0 {
				lines = append(lines, LineBlends{li, entries})
			}
		}
		if len(lines) > 0 {
			info.Mols = append(info.Mols, MolBlends{mi, lines})
		}
	}

	return info
}

// ForMol returns the blend list of the given species, or nil.
func (info *Info) ForMol(mol int) *MolBlends {
	if info == nil {
		return nil
	}
	for i := range info.Mols {
		if info.Mols[i].Mol == mol {
			return &info.Mols[i]
		}
	}
	return nil
}

// ForLine returns the blends of one line of one species, or nil.
func (mb *MolBlends) ForLine(line int) *LineBlends {
	if mb == nil {
		return nil
	}
	for i := range mb.Lines {
		if mb.Lines[i].Line == line {
			return &mb.Lines[i]
		}
	}
	return nil
}
