// Package evaluator scores a single ligand conformation against the grid
// maps and the intra-ligand scoring table, returning the energy, a
// clustering-only energy, and the gradient in conformation-change space.
//
// Grounded on spec.md §4.3 "Evaluator", the only module in the original
// source whose algorithm was never retrieved as C++ (only its name and
// contract appear, in monte_carlo_task.hpp's declaration and main.cpp's
// usage). The four-step pipeline below — pose, grid interaction,
// intra-ligand sum, reverse-DFS force/torque projection — follows the
// spec's prose exactly.
package evaluator

import (
	"github.com/turtacn/idock-worker/internal/domain/docking/box"
	"github.com/turtacn/idock-worker/internal/domain/docking/conformation"
	"github.com/turtacn/idock-worker/internal/domain/docking/gridmap"
	"github.com/turtacn/idock-worker/internal/domain/docking/ligand"
	"github.com/turtacn/idock-worker/internal/domain/docking/scoring"
	"github.com/turtacn/idock-worker/internal/math/quaternion"
	"github.com/turtacn/idock-worker/internal/math/vec3"
)

// outOfBoxStiffness is the quadratic penalty coefficient applied per axis
// an atom strays outside the box. Its exact magnitude is not specified by
// the source material; it is chosen stiff enough that BFGS reliably drives
// out-of-box atoms back in, and is applied identically to every axis.
const outOfBoxStiffness = 10.0

// Evaluate scores conf against sf/maps within box b, returning the total
// energy e, the clustering energy eClustering (e with the intra-ligand
// term excluded), the gradient g in Change space, and the posed world
// coordinates of every heavy atom. ok is false only for a degenerate
// ligand with zero heavy atoms; an out-of-box pose is not itself a
// failure — it is scored with a saturating penalty, matching the
// original's behavior of never hard-failing on geometry.
func Evaluate(lig *ligand.Ligand, conf *conformation.Conformation, sf *scoring.Table, b *box.Box, maps []gridmap.Grid3D) (e, eClustering float64, g *conformation.Change, coords []vec3.Vec3, ok bool) {
	if lig.NumHeavyAtoms == 0 {
		return 0, 0, nil, nil, false
	}

	coords, pivots, rotations := pose(lig, conf)

	grad := make([]vec3.Vec3, lig.NumHeavyAtoms)

	for i, atom := range lig.Atoms {
		atomE, atomGrad := gridContribution(b, &maps[atom.Interaction], coords[i])
		eClustering += atomE
		grad[i] = atomGrad
	}
	e = eClustering

	for _, ip := range lig.Interactions {
		el := sf.Evaluate(ip.Pair, vec3.DistanceSqr(coords[ip.I], coords[ip.J]))
		e += el.E
		delta := vec3.Scale(vec3.Sub(coords[ip.I], coords[ip.J]), el.Dor)
		grad[ip.I] = vec3.Add(grad[ip.I], delta)
		grad[ip.J] = vec3.Sub(grad[ip.J], delta)
	}

	g = projectGradient(lig, coords, grad, pivots, rotations)

	return e, eClustering, g, coords, true
}

// pose walks the frame tree in depth-first pre-order (the order frames are
// already stored in) and returns, for every heavy atom, its world
// coordinate; and for every frame, its pivot's world coordinate and its
// accumulated world rotation, both needed by the reverse pass.
func pose(lig *ligand.Ligand, conf *conformation.Conformation) (coords []vec3.Vec3, pivots []vec3.Vec3, rotations []quaternion.Quaternion) {
	n := len(lig.Frames)
	coords = make([]vec3.Vec3, lig.NumHeavyAtoms)
	pivots = make([]vec3.Vec3, n)
	rotations = make([]quaternion.Quaternion, n)

	for fi, f := range lig.Frames {
		var pivot vec3.Vec3
		var rot quaternion.Quaternion

		if f.Parent < 0 {
			pivot = conf.Position
			rot = conf.Orientation
		} else {
			parentPivot := pivots[f.Parent]
			parentRot := rotations[f.Parent]
			axisDirWorld := parentRot.Rotate(f.AxisDirection)
			pivot = vec3.Add(parentPivot, parentRot.Rotate(vec3.Sub(f.AxisOrigin, frameReferencePivot(lig, f.Parent))))
			rot = quaternion.Mul(quaternion.FromAxisAngle(axisDirWorld, torsionAngle(lig, conf, fi)), parentRot)
		}

		pivots[fi] = pivot
		rotations[fi] = rot

		refPivot := frameReferencePivot(lig, fi)
		for a := f.AtomBegin; a < f.AtomEnd; a++ {
			local := vec3.Sub(lig.Atoms[a].Coordinate, refPivot)
			coords[a] = vec3.Add(pivot, rot.Rotate(local))
		}
	}
	return coords, pivots, rotations
}

// frameReferencePivot returns the reference-space (template) pivot point
// of frame fi: the origin for the root frame (root atoms' own coordinates
// serve as their reference displacement from the ligand's placement point),
// or the frame's stored axis origin for any other frame.
func frameReferencePivot(lig *ligand.Ligand, fi int) vec3.Vec3 {
	if lig.Frames[fi].Parent < 0 {
		return vec3.Vec3{}
	}
	return lig.Frames[fi].AxisOrigin
}

func torsionAngle(lig *ligand.Ligand, conf *conformation.Conformation, frameIndex int) float64 {
	idx := torsionIndexOfFrame(lig)[frameIndex]
	if idx < 0 {
		return 0
	}
	return conf.Torsions[idx]
}

func torsionIndexOfFrame(lig *ligand.Ligand) []int {
	idx := make([]int, len(lig.Frames))
	next := 0
	for i, f := range lig.Frames {
		if f.Active {
			idx[i] = next
			next++
		} else {
			idx[i] = -1
		}
	}
	return idx
}

// gridContribution returns the trilinearly interpolated grid energy and its
// analytical world-space gradient at coord, for the grid g. Out-of-box
// coordinates get a stiff quadratic penalty with a gradient that always
// points back toward the box.
func gridContribution(b *box.Box, g *gridmap.Grid3D, coord vec3.Vec3) (float64, vec3.Vec3) {
	if g.Values == nil {
		return 0, vec3.Vec3{}
	}
	if !b.Within(coord) {
		return outOfBoxPenalty(b, coord)
	}

	rel := vec3.Sub(coord, b.Corner1)
	var base [3]int
	var frac [3]float64
	for i := 0; i < 3; i++ {
		f := rel[i] / b.Granularity
		bi := int(f)
		if bi >= g.NumProbes[i]-1 {
			bi = g.NumProbes[i] - 2
		}
		if bi < 0 {
			bi = 0
		}
		base[i] = bi
		frac[i] = f - float64(bi)
	}

	fx, fy, fz := frac[0], frac[1], frac[2]
	c000 := g.At(base[0], base[1], base[2])
	c100 := g.At(base[0]+1, base[1], base[2])
	c010 := g.At(base[0], base[1]+1, base[2])
	c001 := g.At(base[0], base[1], base[2]+1)
	c110 := g.At(base[0]+1, base[1]+1, base[2])
	c101 := g.At(base[0]+1, base[1], base[2]+1)
	c011 := g.At(base[0], base[1]+1, base[2]+1)
	c111 := g.At(base[0]+1, base[1]+1, base[2]+1)

	e := c000*(1-fx)*(1-fy)*(1-fz) +
		c100*fx*(1-fy)*(1-fz) +
		c010*(1-fx)*fy*(1-fz) +
		c001*(1-fx)*(1-fy)*fz +
		c101*fx*(1-fy)*fz +
		c011*(1-fx)*fy*fz +
		c110*fx*fy*(1-fz) +
		c111*fx*fy*fz

	dEdfx := (c100-c000)*(1-fy)*(1-fz) + (c110-c010)*fy*(1-fz) + (c101-c001)*(1-fy)*fz + (c111-c011)*fy*fz
	dEdfy := (c010-c000)*(1-fx)*(1-fz) + (c110-c100)*fx*(1-fz) + (c011-c001)*(1-fx)*fz + (c111-c101)*fx*fz
	dEdfz := (c001-c000)*(1-fx)*(1-fy) + (c101-c100)*fx*(1-fy) + (c011-c010)*(1-fx)*fy + (c111-c110)*fx*fy

	grad := vec3.Scale(vec3.Vec3{dEdfx, dEdfy, dEdfz}, 1/b.Granularity)
	return e, grad
}

func outOfBoxPenalty(b *box.Box, coord vec3.Vec3) (float64, vec3.Vec3) {
	var e float64
	var grad vec3.Vec3
	for i := 0; i < 3; i++ {
		if coord[i] < b.Corner1[i] {
			over := b.Corner1[i] - coord[i]
			e += outOfBoxStiffness * over * over
			grad[i] = -2 * outOfBoxStiffness * over
		} else if coord[i] > b.Corner2[i] {
			over := coord[i] - b.Corner2[i]
			e += outOfBoxStiffness * over * over
			grad[i] = 2 * outOfBoxStiffness * over
		}
	}
	return e, grad
}

// projectGradient runs the reverse depth-first pass of spec.md §4.3 step 4:
// each frame's torque is computed about its own pivot from the atoms in
// its own range, combined with its already-propagated children, then
// propagated to its parent via the parallel-axis correction. The root
// frame's total force and torque become the position and orientation
// gradient; each active frame's torque projected onto its own rotation
// axis becomes that frame's torsion gradient.
func projectGradient(lig *ligand.Ligand, coords, grad, pivots []vec3.Vec3, rotations []quaternion.Quaternion) *conformation.Change {
	n := len(lig.Frames)
	accumForce := make([]vec3.Vec3, n)
	accumTorque := make([]vec3.Vec3, n)
	torsionIdx := torsionIndexOfFrame(lig)

	change := conformation.NewChange(lig.NumActiveTorsions)

	for fi := n - 1; fi >= 0; fi-- {
		f := lig.Frames[fi]
		origin := pivots[fi]

		force := accumForce[fi]
		torque := accumTorque[fi]
		for a := f.AtomBegin; a < f.AtomEnd; a++ {
			force = vec3.Add(force, grad[a])
			torque = vec3.Add(torque, vec3.Cross(vec3.Sub(coords[a], origin), grad[a]))
		}

		if f.Active {
			parentRot := quaternion.Identity
			if f.Parent >= 0 {
				parentRot = rotations[f.Parent]
			}
			axisDirWorld := parentRot.Rotate(f.AxisDirection)
			change.Torsions[torsionIdx[fi]] = torque.Dot(axisDirWorld)
		}

		if f.Parent >= 0 {
			offset := vec3.Sub(origin, pivots[f.Parent])
			accumForce[f.Parent] = vec3.Add(accumForce[f.Parent], force)
			accumTorque[f.Parent] = vec3.Add(accumTorque[f.Parent], vec3.Add(torque, vec3.Cross(offset, force)))
		} else {
			change.Position = force
			change.Orientation = torque
		}
	}

	return &change
}
