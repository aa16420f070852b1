// Package box defines the cuboid search space a ligand is docked within,
// its discretization into a probe grid for grid-map construction, and a
// coarser partition grid used to bucket receptor atoms for nearest-neighbor
// lookups during grid-map construction.
package box

import (
	"math"

	"github.com/turtacn/idock-worker/internal/math/vec3"
)

// DefaultGranularity is the default probe spacing in Angstrom.
const DefaultGranularity = 0.08

// probesPerPartition is the coarse-bucketing factor: each partition spans
// this many probes along each axis.
const probesPerPartition = 3

// Box represents the docking search space: a corner (Corner1), a size
// vector, and the probe/partition grids derived from it.
type Box struct {
	Center      vec3.Vec3
	Size        vec3.Vec3
	Granularity float64

	Corner1 vec3.Vec3 // Center - Size/2
	Corner2 vec3.Vec3 // Center + Size/2

	NumProbes     [3]int // probe count per axis = ceil(size/granularity) + 1
	NumPartitions [3]int // partition count per axis = ceil((NumProbes-1)/probesPerPartition)
}

// New constructs a Box from its center, size and granularity. Granularity
// defaults to DefaultGranularity when zero.
func New(center, size vec3.Vec3, granularity float64) *Box {
	if granularity == 0 {
		granularity = DefaultGranularity
	}
	b := &Box{
		Center:      center,
		Size:        size,
		Granularity: granularity,
	}
	half := vec3.Scale(size, 0.5)
	b.Corner1 = vec3.Sub(center, half)
	b.Corner2 = vec3.Add(center, half)

	for i := 0; i < 3; i++ {
		b.NumProbes[i] = int(math.Ceil(size[i]/granularity)) + 1
		b.NumPartitions[i] = (b.NumProbes[i] - 1 + probesPerPartition - 1) / probesPerPartition
	}
	return b
}

// Within reports whether a Cartesian coordinate lies inside the box.
func (b *Box) Within(coord vec3.Vec3) bool {
	for i := 0; i < 3; i++ {
		if coord[i] < b.Corner1[i] || coord[i] > b.Corner2[i] {
			return false
		}
	}
	return true
}

// ProbeIndex maps a Cartesian coordinate inside the box to the index of the
// probe at or below it per axis (the offset is truncated, not rounded).
func (b *Box) ProbeIndex(coord vec3.Vec3) [3]int {
	var idx [3]int
	for i := 0; i < 3; i++ {
		idx[i] = int((coord[i] - b.Corner1[i]) / b.Granularity)
	}
	return idx
}

// PartitionIndex maps a Cartesian coordinate inside the box to its
// partition-grid index per axis, used to bucket receptor atoms coarsely
// before a finer distance check.
func (b *Box) PartitionIndex(coord vec3.Vec3) [3]int {
	probe := b.ProbeIndex(coord)
	var idx [3]int
	for i := 0; i < 3; i++ {
		idx[i] = probe[i] / probesPerPartition
		if idx[i] >= b.NumPartitions[i] {
			idx[i] = b.NumPartitions[i] - 1
		}
	}
	return idx
}

// ProbeCoordinate returns the Cartesian coordinate of probe-grid index
// (ix,iy,iz), the inverse of ProbeIndex.
func (b *Box) ProbeCoordinate(ix, iy, iz int) vec3.Vec3 {
	return vec3.Vec3{
		b.Corner1[0] + float64(ix)*b.Granularity,
		b.Corner1[1] + float64(iy)*b.Granularity,
		b.Corner1[2] + float64(iz)*b.Granularity,
	}
}

// PartitionIndexOfProbe maps a probe-grid index directly to its enclosing
// partition-grid index, without the coordinate round-trip PartitionIndex
// requires. Used by the grid-map builder, which already works in
// probe-index space.
func (b *Box) PartitionIndexOfProbe(ix, iy, iz int) [3]int {
	probe := [3]int{ix, iy, iz}
	var idx [3]int
	for i := 0; i < 3; i++ {
		idx[i] = probe[i] / probesPerPartition
		if idx[i] >= b.NumPartitions[i] {
			idx[i] = b.NumPartitions[i] - 1
		}
	}
	return idx
}

// PartitionCorner1 returns the Cartesian coordinate of the lower corner of
// partition (px,py,pz).
func (b *Box) PartitionCorner1(px, py, pz int) vec3.Vec3 {
	return vec3.Vec3{
		b.Corner1[0] + float64(px*probesPerPartition)*b.Granularity,
		b.Corner1[1] + float64(py*probesPerPartition)*b.Granularity,
		b.Corner1[2] + float64(pz*probesPerPartition)*b.Granularity,
	}
}

// WithinCutoff reports whether two Cartesian coordinates are within cutoff
// distance of one another. Used for both atom-level neighbor checks and
// partition-corner-level coarse bucketing.
func WithinCutoff(a, b vec3.Vec3, cutoffSqr float64) bool {
	return vec3.DistanceSqr(a, b) < cutoffSqr
}
