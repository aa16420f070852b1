// Package result defines the pose record produced by a Monte-Carlo task and
// consumed by the result merger: an energy, a clustering energy, the
// originating conformation, and the posed world coordinates of every heavy
// atom. It is its own package, rather than living in montecarlo or merge,
// because both of those packages need to produce and consume the same
// type without importing one another.
package result

import (
	"github.com/turtacn/idock-worker/internal/domain/docking/conformation"
	"github.com/turtacn/idock-worker/internal/math/vec3"
)

// Result is a single locally-minimized pose: its energy, its
// clustering-only energy (energy with the intra-ligand term excluded, per
// spec.md §4.3), the conformation that produced it, and the posed
// world-space coordinate of every heavy atom (used for RMSD clustering).
type Result struct {
	Energy           float64
	ClusteringEnergy float64
	Conformation     conformation.Conformation
	Coords           []vec3.Vec3
}

// SquaredDistance returns the RMSD-clustering distance between a and b:
// the sum over heavy atoms of the squared Cartesian distance between their
// posed coordinates. Two results belong to the same cluster when this is
// below a threshold of 4*numHeavyAtoms (RMSD < 2 Angstrom), per spec.md
// §4.5.
func SquaredDistance(a, b Result) float64 {
	return vec3.AccumulatedDistanceSqr(a.Coords, b.Coords)
}
