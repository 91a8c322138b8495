// Package linert is a non-LTE molecular line radiative transfer engine
// for irregularly sampled source models: a Monte-Carlo photon transport
// and statistical equilibrium solver over a Delaunay mesh, followed by
// ray-traced synthesis of line and continuum images.
package linert

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/astromol/linert/blend"
	"github.com/astromol/linert/fastexp"
	"github.com/astromol/linert/grid"
	"github.com/astromol/linert/io"
	"github.com/astromol/linert/moldata"
	"github.com/astromol/linert/physics"
	"github.com/astromol/linert/raytrace"
	"github.com/astromol/linert/transport"
)

// RunOpts collects everything one run needs: the parsed configuration
// plus the caller-supplied source model, species records, point set, and
// triangulation routine.
type RunOpts struct {
	Run    *io.RunConfig
	Images map[string]*io.ImageConfig

	Model     grid.Model
	Mols      []*moldata.Molecule
	Positions []grid.Vec
	Sink      []bool
	Tri       grid.Triangulator
}

// Run executes the full pipeline: build the mesh, solve the level
// populations (or load them), and render every configured image.
func Run(opts *RunOpts) error {
	cfg := opts.Run
	switch {
	case !cfg.ValidNPhot():
		return fmt.Errorf("Run.NPhot = %d, but must be positive", cfg.NPhot)
	case !cfg.ValidPopTol():
		return fmt.Errorf("Run.PopTol = %g, but must be in (0, 1)", cfg.PopTol)
	case !cfg.ValidConvFrac():
		return fmt.Errorf("Run.ConvFrac = %g, but must be in (0, 1]",
			cfg.ConvFrac)
	case !cfg.ValidMaxSweeps():
		return fmt.Errorf("Run.MaxSweeps = %d, but must be positive",
			cfg.MaxSweeps)
	}

	if cfg.LogFile != "" {
		f, err := os.Create(cfg.LogFile)
		if err != nil {
			return err
		}
		defer f.Close()
		log.SetOutput(f)
	}

	for _, m := range opts.Mols {
		if err := m.Validate(); err != nil {
			return err
		}
		m.Setup(physics.TCMB)
	}

	exp := fastexp.New()
	erf := fastexp.NewErfTable()

	var dust *moldata.DustOpacity
	if cfg.DustFile != "" {
		var err error
		dust, err = moldata.LoadDustOpacity(cfg.DustFile)
		if err != nil {
			return err
		}
	}

	log.Printf("linert: building mesh over %d points", len(opts.Positions))
	g, err := grid.Build(grid.BuildOpts{
		Positions: opts.Positions,
		Sink:      opts.Sink,
		Model:     opts.Model,
		Tri:       opts.Tri,
		Mols:      opts.Mols,
		Dust:      dust,
		Seed:      cfg.Seed,
	})
	if err != nil {
		return err
	}
	log.Printf("linert: mesh has %d cells, %d inner points",
		len(g.Cells), g.NInner)

	var blends *blend.Info
	if cfg.Blend {
		blends = blend.Resolve(opts.Mols)
		log.Printf("linert: line blending enabled")
	}

	switch {
	case cfg.RestartFile != "":
		if err := io.ReadPopulationFile(cfg.RestartFile, g); err != nil {
			return err
		}
		log.Printf("linert: populations restarted from %s", cfg.RestartFile)
	case cfg.InitLTE || cfg.LTEOnly:
		transport.LTE(g, opts.Mols)
	default:
		transport.UniformStart(g, opts.Mols)
	}

	if !cfg.LTEOnly && cfg.RestartFile == "" {
		solver := transport.NewSolver(g, opts.Mols, blends, exp,
			transport.Params{
				NPhot:     cfg.NPhot,
				PopTol:    cfg.PopTol,
				ConvFrac:  cfg.ConvFrac,
				MaxSweeps: cfg.MaxSweeps,
				NThreads:  cfg.Threads,
				Seed:      cfg.Seed,
			})
		solver.Run()
		log.Printf("linert: population solve %s after %d sweeps "+
			"(%.1f%% of points converged)", solver.State(),
			solver.SweepsRun(), 100*solver.ConvergedFraction())
	}

	if cfg.PopFile != "" {
		if err := io.WritePopulationFile(cfg.PopFile, g); err != nil {
			return err
		}
		log.Printf("linert: populations written to %s", cfg.PopFile)
	}

	if len(opts.Images) == 0 {
		return nil
	}

	rt := &raytrace.Raytracer{
		G:        g,
		Mols:     opts.Mols,
		Exp:      exp,
		Erf:      erf,
		Dust:     dust,
		NThreads: cfg.Threads,
		Seed:     cfg.Seed,
	}

	names := make([]string, 0, len(opts.Images))
	for name := range opts.Images {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ic := opts.Images[name]
		if !ic.Valid() {
			return fmt.Errorf("image %q: incomplete section", name)
		}
		img, err := rt.Render(ic.ToParams())
		if err != nil {
			return fmt.Errorf("image %q: %v", name, err)
		}
		if err := io.WriteImageCubeFile(ic.Filename, img); err != nil {
			return fmt.Errorf("image %q: %v", name, err)
		}
		log.Printf("linert: image %q written to %s", name, ic.Filename)
	}
	return nil
}

// RunBenchmark runs the bundled cloud model end to end from a parsed
// configuration file.
func RunBenchmark(cfg *io.RunWrapper) error {
	if !cfg.Model.Valid() {
		return fmt.Errorf("incomplete [Model] section")
	}
	model := NewCloudModel(&cfg.Model)
	positions, sink, tri := grid.LatticeMesh(
		cfg.Model.LatticeN, 2*model.Radius(),
	)
	return Run(&RunOpts{
		Run:       &cfg.Run,
		Images:    cfg.Image,
		Model:     model,
		Mols:      []*moldata.Molecule{DemoMolecule()},
		Positions: positions,
		Sink:      sink,
		Tri:       tri,
	})
}
