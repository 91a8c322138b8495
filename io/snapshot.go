package io

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/astromol/linert/grid"
)

var end = binary.LittleEndian

// popMagic marks a population snapshot file.
const popMagic = int64(0x504f5053) // "POPS"

// popHeader is the fixed-size header of a population snapshot.
type popHeader struct {
	Magic    int64
	NPoints  int64
	NSpecies int64
}

// WritePopulations writes the population field and the per-point
// continuum caches of a converged grid, so a later run can restart from
// it and go straight to raytracing.
func WritePopulations(w io.Writer, g *grid.Grid) error {
	if len(g.Points) == 0 {
		return fmt.Errorf("population snapshot: empty grid")
	}

	hd := popHeader{
		Magic:    popMagic,
		NPoints:  int64(len(g.Points)),
		NSpecies: int64(len(g.Points[0].Mol)),
	}
	if err := binary.Write(w, end, &hd); err != nil {
		return err
	}

	// Per-species level and line counts, taken from the first point.
	for si := range g.Points[0].Mol {
		counts := [2]int64{
			int64(len(g.Points[0].Mol[si].Pops)),
			int64(len(g.Points[0].Mol[si].Knu)),
		}
		if err := binary.Write(w, end, &counts); err != nil {
			return err
		}
	}

	for i := range g.Points {
		p := &g.Points[i]
		for si := range p.Mol {
			pop := &p.Mol[si]
			if err := binary.Write(w, end, pop.Pops); err != nil {
				return err
			}
			if err := binary.Write(w, end, pop.Knu); err != nil {
				return err
			}
			if err := binary.Write(w, end, pop.Dust); err != nil {
				return err
			}
			scalars := [2]float64{pop.Binv, pop.NMol}
			if err := binary.Write(w, end, &scalars); err != nil {
				return err
			}
		}
	}

	return nil
}

// ReadPopulations restores a snapshot into a grid built with the same
// point count and species set. Shape mismatches are errors; the caller
// treats them as fatal.
func ReadPopulations(r io.Reader, g *grid.Grid) error {
	var hd popHeader
	if err := binary.Read(r, end, &hd); err != nil {
		return err
	}
	if hd.Magic != popMagic {
		return fmt.Errorf("population snapshot: bad magic %#x", hd.Magic)
	}
	if hd.NPoints != int64(len(g.Points)) {
		return fmt.Errorf("population snapshot: %d points, grid has %d",
			hd.NPoints, len(g.Points))
	}
	if hd.NSpecies != int64(len(g.Points[0].Mol)) {
		return fmt.Errorf("population snapshot: %d species, grid has %d",
			hd.NSpecies, len(g.Points[0].Mol))
	}

	for si := range g.Points[0].Mol {
		var counts [2]int64
		if err := binary.Read(r, end, &counts); err != nil {
			return err
		}
		if counts[0] != int64(len(g.Points[0].Mol[si].Pops)) ||
			counts[1] != int64(len(g.Points[0].Mol[si].Knu)) {
			return fmt.Errorf(
				"population snapshot: species %d shaped %dx%d, grid wants "+
					"%dx%d", si, counts[0], counts[1],
				len(g.Points[0].Mol[si].Pops), len(g.Points[0].Mol[si].Knu))
		}
	}

	for i := range g.Points {
		p := &g.Points[i]
		for si := range p.Mol {
			pop := &p.Mol[si]
			if err := binary.Read(r, end, pop.Pops); err != nil {
				return err
			}
			if err := binary.Read(r, end, pop.Knu); err != nil {
				return err
			}
			if err := binary.Read(r, end, pop.Dust); err != nil {
				return err
			}
			var scalars [2]float64
			if err := binary.Read(r, end, &scalars); err != nil {
				return err
			}
			pop.Binv, pop.NMol = scalars[0], scalars[1]
		}
	}

	return nil
}

// WritePopulationFile writes a snapshot to the named file.
func WritePopulationFile(path string, g *grid.Grid) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WritePopulations(f, g)
}

// ReadPopulationFile restores a snapshot from the named file.
func ReadPopulationFile(path string, g *grid.Grid) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReadPopulations(f, g)
}
