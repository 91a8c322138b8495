package moldata

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromol/linert/physics"
)

func writeOpacityTable(t *testing.T, lambdas, kappas []float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opacity.tab")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	for i := range lambdas {
		fmt.Fprintf(f, "%g %g\n", lambdas[i], kappas[i])
	}
	return path
}

func TestLoadDustOpacityPowerLaw(t *testing.T) {
	// kappa(lambda) = 10 (lambda/100um)^-2 cm^2/g: a pure power law the
	// log-log fit reproduces exactly.
	lambdas := make([]float64, 10)
	kappas := make([]float64, 10)
	for i := range lambdas {
		lambdas[i] = math.Pow(10, float64(i)/3) // 1 um .. 1 mm
		kappas[i] = 10 * math.Pow(lambdas[i]/100, -2)
	}
	path := writeOpacityTable(t, lambdas, kappas)

	d, err := LoadDustOpacity(path)
	require.NoError(t, err)

	lam := 50.0
	nu := physics.CLight / (lam * 1e-6)
	want := 0.1 * 10 * math.Pow(lam/100, -2) // m^2/kg
	assert.InEpsilon(t, want, d.Kappa(nu), 1e-8)
}

func TestLoadDustOpacityRejectsShortTables(t *testing.T) {
	path := writeOpacityTable(t, []float64{10, 100}, []float64{1, 2})
	_, err := LoadDustOpacity(path)
	assert.Error(t, err)
}
