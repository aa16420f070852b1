package job

import (
	"math/rand"

	"github.com/turtacn/idock-worker/internal/domain/docking/box"
	"github.com/turtacn/idock-worker/internal/domain/docking/conformation"
	"github.com/turtacn/idock-worker/internal/domain/docking/gridmap"
	"github.com/turtacn/idock-worker/internal/domain/docking/ligand"
	"github.com/turtacn/idock-worker/internal/domain/docking/merge"
	"github.com/turtacn/idock-worker/internal/domain/docking/montecarlo"
	"github.com/turtacn/idock-worker/internal/domain/docking/pool"
	"github.com/turtacn/idock-worker/internal/domain/docking/receptor"
	"github.com/turtacn/idock-worker/internal/domain/docking/rescore"
	"github.com/turtacn/idock-worker/internal/domain/docking/result"
	"github.com/turtacn/idock-worker/internal/domain/docking/scoring"
	"github.com/turtacn/idock-worker/internal/math/vec3"
	"github.com/turtacn/idock-worker/pkg/errors"
)

// alphaLadder is alphas[i] = 10^-i for i=0..4, spec.md §4.4's fixed BFGS
// backtracking ladder.
var alphaLadder = [montecarlo.NumAlphas]float64{1, 0.1, 0.01, 0.001, 0.0001}

// Config holds the per-job tuning knobs of SPEC_FULL.md §6.7, loaded from
// the job queue row.
type Config struct {
	Bounds               Bounds
	FilteringProbability float64
	NumMCTasks           int
	MaxConformations     int // montecarlo.Task.MaxSteps
	MaxResultsPerTask    int
	EnergyRange          float64
}

// DefaultConfig returns the original implementation's documented defaults
// (spec.md §6): num_mc_tasks 32, max_conformations 100,
// max_results_per_task 20, energy_range 3.0.
func DefaultConfig() Config {
	return Config{
		NumMCTasks:        32,
		MaxConformations:  100,
		MaxResultsPerTask: 20,
		EnergyRange:       3.0,
	}
}

// Outcome is the result of successfully docking one ligand: the fields
// written to a single slice CSV row.
type Outcome struct {
	LigandIndex  int
	Energy       float64 // r.Energy * lig.FlexibilityPenaltyFactor
	RFScore      float64
	Conformation conformation.Conformation
	Coords       []vec3.Vec3 // posed world coordinates, for ligands.pdbqt.gz
}

// RunLigand executes the full per-ligand pipeline of spec.md §2's "Control
// flow per ligand": populate any missing grid-map slabs for lig's
// interaction types via p, fan out cfg.NumMCTasks Monte Carlo searches via
// p, merge their results, rescore the winner, and return its Outcome. A
// nil, nil return means the ligand produced no valid conformation
// (spec.md §7 NoConformation — a silent skip, not an error). rng supplies
// per-task seeds; it is the job-level "master RNG" of spec.md §9's RNG
// design note, so that reproducibility depends only on rng's own seed and
// not on goroutine scheduling order.
func RunLigand(
	lig *ligand.Ligand,
	ligandIndex int,
	rec *receptor.Receptor,
	b *box.Box,
	cache *gridmap.Cache,
	sf *scoring.Table,
	forest *rescore.Forest,
	p *pool.Pool,
	rng *rand.Rand,
	cfg Config,
) (*Outcome, error) {
	if lig.NumHeavyAtoms == 0 {
		return nil, nil
	}

	if err := EnsureGridMaps(lig, rec, b, cache, sf, p); err != nil {
		return nil, err
	}

	merged, err := runMonteCarloBatch(lig, sf, b, cache.Grids(), p, rng, cfg)
	if err != nil {
		return nil, err
	}
	if merged.Len() == 0 {
		return nil, nil
	}

	best := merged.Results()[0]
	features := rescore.BuildFeatureVector(lig, best.Coords, rec)
	rfscore := forest.Score(features)

	return &Outcome{
		LigandIndex:  ligandIndex,
		Energy:       best.Energy * lig.FlexibilityPenaltyFactor,
		RFScore:      rfscore,
		Conformation: best.Conformation,
		Coords:       best.Coords,
	}, nil
}

// EnsureGridMaps populates every grid-map slab lig needs that cache does
// not already have, one pool task per box slab along the x axis, matching
// spec.md §4.2's "one slab per task" partitioning.
func EnsureGridMaps(lig *ligand.Ligand, rec *receptor.Receptor, b *box.Box, cache *gridmap.Cache, sf *scoring.Table, p *pool.Pool) error {
	missing := cache.MissingTypes(lig.InteractionTypes())
	if len(missing) == 0 {
		return nil
	}
	cache.EnsureAllocated(missing)

	numSlabs := b.NumProbes[0]
	tasks := make([]func() error, numSlabs)
	for x := 0; x < numSlabs; x++ {
		x := x
		tasks[x] = func() error {
			gridmap.BuildSlab(cache.Grids(), missing, x, sf, b, rec, gridmap.Partitions(rec.Partitions))
			return nil
		}
	}

	if err := p.SubmitBatch(tasks); err != nil {
		return errors.Wrap(err, errors.CodeTaskPanic, "submitting grid-map batch")
	}
	if errs := firstError(p.Wait()); errs != nil {
		return errors.Wrap(errs, errors.CodeTaskPanic, "grid-map slab construction failed")
	}

	cache.MarkPopulated(missing)
	return nil
}

// runMonteCarloBatch fans out cfg.NumMCTasks independent montecarlo.Run
// calls via p and merges their per-task result lists into one global,
// energy-sorted merge.List, draining tasks in submission-index order so the
// merge is deterministic per spec.md §4.5's "host side enforces this".
//
// The global merge is keyed on total energy (merge.ByEnergy), not
// clustering energy: spec.md §4.5 reads `r.e` for the merger's own sort key
// while §4.4's per-task cluster-insert explicitly says "keyed on the
// clustering energy" — see DESIGN.md for this Open Question resolution,
// consistent with main.cpp's final slice CSV sorting by `r.f` (the
// non-clustering energy).
func runMonteCarloBatch(lig *ligand.Ligand, sf *scoring.Table, b *box.Box, maps []gridmap.Grid3D, p *pool.Pool, rng *rand.Rand, cfg Config) (*merge.List, error) {
	numTasks := cfg.NumMCTasks
	if numTasks == 0 {
		numTasks = DefaultConfig().NumMCTasks
	}

	perTask := make([][]result.Result, numTasks)
	tasks := make([]func() error, numTasks)
	for i := 0; i < numTasks; i++ {
		i := i
		seed := rng.Uint64()
		tasks[i] = func() error {
			perTask[i] = montecarlo.Run(montecarlo.Task{
				Lig:        lig,
				Seed:       seed,
				Alphas:     alphaLadder,
				SF:         sf,
				Box:        b,
				Maps:       maps,
				MaxSteps:   cfg.MaxConformations,
				MaxResults: cfg.MaxResultsPerTask,
			})
			return nil
		}
	}

	if err := p.SubmitBatch(tasks); err != nil {
		return nil, errors.Wrap(err, errors.CodeTaskPanic, "submitting Monte Carlo batch")
	}
	if errs := firstError(p.Wait()); errs != nil {
		return nil, errors.Wrap(errs, errors.CodeTaskPanic, "Monte Carlo batch failed")
	}

	capacity := numTasks * cfg.MaxResultsPerTask
	if capacity == 0 {
		capacity = numTasks * DefaultConfig().MaxResultsPerTask
	}
	merged := merge.NewList(capacity, merge.ByEnergy)
	thrSqr := 4 * float64(lig.NumHeavyAtoms)
	for i := 0; i < numTasks; i++ {
		for _, r := range perTask[i] {
			merged.Add(r, thrSqr)
		}
	}
	return merged, nil
}

func firstError(errs []error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
