package moldata

import (
	"fmt"

	"github.com/phil-mansfield/table"

	"github.com/astromol/linert/interpolate"
	"github.com/astromol/linert/physics"
)

// DustOpacity interpolates a tabulated dust opacity curve. The table file
// has two whitespace-separated columns: wavelength [micron] and opacity
// [cm^2/g]. Tables of this kind span several decades, so the fit is done
// in log-log space and clamped at the band edges.
type DustOpacity struct {
	lsp *interpolate.LogSpline
}

// LoadDustOpacity reads and fits a dust opacity table.
func LoadDustOpacity(file string) (*DustOpacity, error) {
	cols, err := table.ReadTable(file, []int{0, 1}, nil)
	if err != nil {
		return nil, fmt.Errorf("dust opacity table %s: %v", file, err)
	}
	lambda, kappa := cols[0], cols[1]
	if len(lambda) < 3 {
		return nil, fmt.Errorf(
			"dust opacity table %s has only %d rows", file, len(lambda))
	}

	// Convert microns to frequency [Hz] and cm^2/g to m^2/kg. The table
	// is sorted by wavelength, so it must be reversed for frequency order.
	freqs := make([]float64, len(lambda))
	kap := make([]float64, len(lambda))
	n := len(lambda)
	for i := range lambda {
		freqs[n-1-i] = physics.CLight / (1e-6 * lambda[i])
		kap[n-1-i] = 0.1 * kappa[i]
	}
	for i := 1; i < n; i++ {
		if freqs[i] <= freqs[i-1] {
			return nil, fmt.Errorf(
				"dust opacity table %s: wavelengths not monotonic", file)
		}
	}

	return &DustOpacity{interpolate.NewLogSpline(freqs, kap)}, nil
}

// Kappa returns the dust opacity [m^2/kg of dust] at the given frequency.
func (d *DustOpacity) Kappa(nu float64) float64 {
	return d.lsp.Eval(nu)
}
