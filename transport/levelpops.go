package transport

import (
	"log"
	"math/rand"
	"runtime"
	"sync"

	"github.com/astromol/linert/blend"
	"github.com/astromol/linert/fastexp"
	"github.com/astromol/linert/grid"
	"github.com/astromol/linert/moldata"
)

// State is the scheduler's lifecycle state.
type State int

const (
	Idle State = iota
	Sweeping
	Converged
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sweeping:
		return "sweeping"
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Params are the numeric controls of the population solve. They are
// read-only once the solver is created.
type Params struct {
	NPhot     int     // photon walks per point per sweep
	PopTol    float64 // per-point relative convergence tolerance
	ConvFrac  float64 // converged fraction that ends the loop
	MaxSweeps int
	NThreads  int
	Seed      int64
}

// DefaultParams returns the standard controls.
func DefaultParams() Params {
	return Params{
		NPhot:     500,
		PopTol:    1e-6,
		ConvFrac:  0.99,
		MaxSweeps: 16,
		NThreads:  runtime.NumCPU(),
		Seed:      1978,
	}
}

// Solver orchestrates the sweep loop over the whole mesh.
type Solver struct {
	Params

	g      *grid.Grid
	mols   []*moldata.Molecule
	blends *blend.Info
	exp    *fastexp.Tables

	state     State
	sweepsRun int

	// fraction of non-sink points converged after the last sweep
	convFrac float64
}

// NewSolver creates a population solver over a built mesh.
func NewSolver(g *grid.Grid, mols []*moldata.Molecule, blends *blend.Info,
	exp *fastexp.Tables, params Params) *Solver {

	if params.NThreads <= 0 {
		params.NThreads = runtime.NumCPU()
	}
	return &Solver{
		Params: params,
		g:      g,
		mols:   mols,
		blends: blends,
		exp:    exp,
		state:  Idle,
	}
}

// State returns the scheduler state.
func (s *Solver) State() State { return s.state }

// SweepsRun returns how many sweeps have executed.
func (s *Solver) SweepsRun() int { return s.sweepsRun }

// ConvergedFraction returns the converged fraction of non-sink points
// after the most recent sweep.
func (s *Solver) ConvergedFraction() float64 { return s.convFrac }

// Run executes sweeps until the converged fraction clears ConvFrac or
// MaxSweeps is exhausted. Exhaustion is reported as a warning, not an
// error: the run continues to raytracing with a partially converged
// field.
func (s *Solver) Run() {
	if s.state != Idle {
		log.Fatalf("population solver re-run from state %v", s.state)
	}
	s.state = Sweeping

	for iter := 0; iter < s.MaxSweeps; iter++ {
		s.convFrac = s.sweep(iter)
		s.sweepsRun++
		log.Printf("Sweep %d/%d: %.1f%% of points converged",
			s.sweepsRun, s.MaxSweeps, 100*s.convFrac)

		if s.convFrac >= s.ConvFrac {
			s.state = Converged
			return
		}
	}

	s.state = Exhausted
	log.Printf("Warning: sweep budget exhausted with %.1f%% of points "+
		"converged; output will be partially converged.", 100*s.convFrac)
}

// sweep runs one Gauss-Jacobi pass: every non-sink point's new
// populations are computed from the previous sweep's snapshot and written
// into the point's own record. Points are farmed to a fixed worker pool;
// because reads come from the frozen snapshot and each point writes only
// itself, the result is identical for any worker count.
func (s *Solver) sweep(iter int) (convFrac float64) {
	snapshot := snapshotPops(s.g)

	ids := make(chan int, len(s.g.Points))
	for i := range s.g.Points {
		if !s.g.Points[i].Sink {
			ids <- i
		}
	}
	close(ids)

	convFlags := make([]bool, len(s.g.Points))

	var wg sync.WaitGroup
	for w := 0; w < s.NThreads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			pd := newPointData(s.mols, s.NPhot)
			sc := newStateqScratch(s.mols)

			for id := range ids {
				convFlags[id] = s.updatePoint(id, iter, snapshot, pd, sc)
			}
		}()
	}
	wg.Wait()

	nConv := 0
	for i := range s.g.Points {
		if !s.g.Points[i].Sink && convFlags[i] {
			nConv++
		}
	}
	return float64(nConv) / float64(s.g.NInner)
}

// updatePoint runs the photon engine and the equilibrium solve for one
// point. The per-point RNG is seeded from the global seed, the sweep
// number, and the point identity, so the stochastic sampling is
// reproducible regardless of which worker picks the point up.
func (s *Solver) updatePoint(id, iter int, snapshot popField,
	pd *pointData, sc *stateqScratch) (converged bool) {

	p := &s.g.Points[id]
	rng := rand.New(rand.NewSource(
		s.Seed + int64(iter)*int64(len(s.g.Points)) + int64(id)))

	for si := range pd.mol {
		mp := &pd.mol[si]
		for i := range mp.phot {
			mp.phot[i] = 0
		}
	}

	s.photon(id, snapshot, pd, rng)
	getJbar(pd, s.mols, s.NPhot)

	converged = true
	for si, m := range s.mols {
		pop := &p.Mol[si]

		// Solve against the snapshot state; only on success does the
		// point's own buffer take the new values.
		prev := snapshot[id][si]
		saved := pop.Pops
		pop.Pops = prev

		newPops := make([]float64, m.NLev)
		conv, ok := solveStatEq(m, p, pop, pd.mol[si].jbar, sc, si,
			s.PopTol, newPops)

		pop.Pops = saved
		if !ok {
			// Near-singular solve: keep the previous populations and
			// mark the point unconverged.
			copy(pop.Pops, prev)
			converged = false
			continue
		}
		copy(pop.Pops, newPops)
		if !conv {
			converged = false
		}
	}
	return converged
}
