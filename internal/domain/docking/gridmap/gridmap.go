// Package gridmap builds and caches the receptor-dependent 3-D scoring
// grids the evaluator interpolates against: one scalar field per
// Interaction type, populated lazily and one slab at a time.
//
// Grounded on spec.md §4.2 "Grid-map builder (one slab per task)" and the
// per-slab `grid_map_task` dispatch pattern visible in
// _examples/original_source/idock/src/main.cpp, which is the only place in
// the retrieved pack showing how slab tasks are fanned out across the
// worker pool.
package gridmap

import (
	"github.com/turtacn/idock-worker/internal/domain/docking/atomtype"
	"github.com/turtacn/idock-worker/internal/domain/docking/box"
	"github.com/turtacn/idock-worker/internal/domain/docking/receptor"
	"github.com/turtacn/idock-worker/internal/domain/docking/scoring"
	"github.com/turtacn/idock-worker/internal/math/vec3"
)

// Partitions is the receptor's partition-to-atom-index grid, as built by
// receptor.Parse. Declared here as its own named type since BuildSlab's
// contract treats it as an opaque lookup structure independent of how the
// receptor constructed it.
type Partitions [][][][]int

// Grid3D is a single 3-D scalar field over the box's probe lattice, stored
// flat in x-major order.
type Grid3D struct {
	NumProbes [3]int
	Values    []float64
}

func newGrid3D(numProbes [3]int) Grid3D {
	n := numProbes[0] * numProbes[1] * numProbes[2]
	return Grid3D{NumProbes: numProbes, Values: make([]float64, n)}
}

func (g *Grid3D) index(x, y, z int) int {
	return (x*g.NumProbes[1]+y)*g.NumProbes[2] + z
}

// At returns the grid value at probe index (x,y,z).
func (g *Grid3D) At(x, y, z int) float64 {
	return g.Values[g.index(x, y, z)]
}

// Set writes the grid value at probe index (x,y,z).
func (g *Grid3D) Set(x, y, z int, v float64) {
	g.Values[g.index(x, y, z)] = v
}

// Cache holds one Grid3D per Interaction type, lazily populated against a
// specific receptor+box pair. Cleared wholesale on receptor or box change
// (a new docking job), matching spec.md §3's grid-map lifetime contract.
type Cache struct {
	box    *box.Box
	grids  []Grid3D
	filled []bool
}

// NewCache constructs an empty, unpopulated Cache sized to b's probe grid.
func NewCache(b *box.Box) *Cache {
	n := int(atomtype.NumInteraction)
	return &Cache{
		box:    b,
		grids:  make([]Grid3D, n),
		filled: make([]bool, n),
	}
}

// Grids returns the cache's backing slice, indexed by Interaction, for
// passing directly to evaluator.Evaluate.
func (c *Cache) Grids() []Grid3D {
	return c.grids
}

// MissingTypes filters types to those not yet fully populated in the
// cache.
func (c *Cache) MissingTypes(types []atomtype.Interaction) []atomtype.Interaction {
	var missing []atomtype.Interaction
	for _, t := range types {
		if !c.filled[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

// EnsureAllocated sizes (but does not populate) the grids for the given
// types, so that concurrent BuildSlab calls across disjoint slabs never
// race on slice allocation.
func (c *Cache) EnsureAllocated(types []atomtype.Interaction) {
	for _, t := range types {
		if c.grids[t].Values == nil {
			c.grids[t] = newGrid3D(c.box.NumProbes)
		}
	}
}

// MarkPopulated records that every slab for the given types has been
// built, so future ligands needing only these types skip grid-map
// construction entirely.
func (c *Cache) MarkPopulated(types []atomtype.Interaction) {
	for _, t := range types {
		c.filled[t] = true
	}
}

// Clear discards every grid, for use when the receptor or box changes.
func (c *Cache) Clear() {
	for i := range c.grids {
		c.grids[i] = Grid3D{}
		c.filled[i] = false
	}
}

// BuildSlab populates slab x (i.e. maps[t].Values at probe-index x across
// every y,z) for every type t in typesToPopulate. Slab tasks over disjoint
// x are independent and may run concurrently; the partition lookup is the
// sole optimization contract — a probe consults only its own partition's
// atom list, never the full receptor, per spec.md §4.2.
func BuildSlab(maps []Grid3D, typesToPopulate []atomtype.Interaction, x int,
	sf *scoring.Table, b *box.Box, rec *receptor.Receptor, partitions Partitions) {

	ny, nz := b.NumProbes[1], b.NumProbes[2]

	for _, t := range typesToPopulate {
		g := &maps[t]
		for y := 0; y < ny; y++ {
			for z := 0; z < nz; z++ {
				probe := b.ProbeCoordinate(x, y, z)
				px, py, pz := partitionIndex(b, x, y, z)

				var sum float64
				if px < len(partitions) && py < len(partitions[px]) && pz < len(partitions[px][py]) {
					for _, idx := range partitions[px][py][pz] {
						a := rec.Atoms[idx]
						r2 := vec3.DistanceSqr(probe, a.Coordinate)
						if r2 > scoring.CutoffSqr {
							continue
						}
						pair := scoring.PairCode(t, a.Interaction)
						sum += sf.Evaluate(pair, r2).E
					}
				}
				g.Set(x, y, z, sum)
			}
		}
	}
}

func partitionIndex(b *box.Box, x, y, z int) (int, int, int) {
	idx := b.PartitionIndexOfProbe(x, y, z)
	return idx[0], idx[1], idx[2]
}
