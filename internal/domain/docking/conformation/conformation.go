// Package conformation defines a ligand pose (Conformation) and the
// gradient-like displacement (Change) the evaluator and BFGS local search
// operate on.
package conformation

import (
	"math"

	"github.com/turtacn/idock-worker/internal/math/quaternion"
	"github.com/turtacn/idock-worker/internal/math/vec3"
)

// Conformation is a full ligand pose: the root frame's position and
// orientation, plus one dihedral angle (radians) per active rotatable bond.
type Conformation struct {
	Position    vec3.Vec3
	Orientation quaternion.Quaternion
	Torsions    []float64
}

// New constructs a Conformation with numTorsions active torsions, all
// initialized to zero, positioned at the origin with identity orientation.
func New(numTorsions int) Conformation {
	return Conformation{
		Orientation: quaternion.Identity,
		Torsions:    make([]float64, numTorsions),
	}
}

// Clone returns a deep copy of c.
func (c Conformation) Clone() Conformation {
	torsions := make([]float64, len(c.Torsions))
	copy(torsions, c.Torsions)
	return Conformation{Position: c.Position, Orientation: c.Orientation, Torsions: torsions}
}

// Change is a displacement in the tangent space of Conformation: a
// Cartesian position delta, an angular-velocity-like orientation delta
// (axis-angle, not a quaternion), and one torsional delta per active
// rotatable bond. BFGS and the Monte Carlo perturbation step both operate
// on Change vectors rather than directly on Conformation, since the
// orientation component of a Conformation is not a vector space.
type Change struct {
	Position    vec3.Vec3
	Orientation vec3.Vec3
	Torsions    []float64
}

// NewChange constructs a zero Change with numTorsions torsional components.
func NewChange(numTorsions int) Change {
	return Change{Torsions: make([]float64, numTorsions)}
}

// NumDimensions returns the total dimensionality of g (3 position + 3
// orientation + len(Torsions)), used to size BFGS's working vectors.
func (g Change) NumDimensions() int {
	return 6 + len(g.Torsions)
}

// Dot returns the inner product of two Change vectors, treating them as
// flat vectors in R^(6+n).
func Dot(a, b Change) float64 {
	sum := a.Position.Dot(b.Position) + a.Orientation.Dot(b.Orientation)
	for i := range a.Torsions {
		sum += a.Torsions[i] * b.Torsions[i]
	}
	return sum
}

// Scale returns g scaled by the constant s.
func Scale(g Change, s float64) Change {
	out := Change{
		Position:    vec3.Scale(g.Position, s),
		Orientation: vec3.Scale(g.Orientation, s),
		Torsions:    make([]float64, len(g.Torsions)),
	}
	for i, t := range g.Torsions {
		out.Torsions[i] = t * s
	}
	return out
}

// Add returns the pairwise sum of two Change vectors.
func Add(a, b Change) Change {
	out := Change{
		Position:    vec3.Add(a.Position, b.Position),
		Orientation: vec3.Add(a.Orientation, b.Orientation),
		Torsions:    make([]float64, len(a.Torsions)),
	}
	for i := range a.Torsions {
		out.Torsions[i] = a.Torsions[i] + b.Torsions[i]
	}
	return out
}

// Sub returns the pairwise difference a-b.
func Sub(a, b Change) Change {
	return Add(a, Scale(b, -1))
}

// Apply advances conformation c by step*g: the position moves linearly, the
// orientation is rotated by the quaternion corresponding to the rotation
// vector step*g.Orientation (composed on the left, matching the original's
// convention of applying the incremental rotation in the world frame), and
// each torsion is advanced and wrapped into (-pi, pi].
func Apply(c Conformation, g Change, step float64) Conformation {
	next := c.Clone()
	next.Position = vec3.Add(c.Position, vec3.Scale(g.Position, step))

	rotVec := vec3.Scale(g.Orientation, step)
	delta := quaternion.FromRotationVector(rotVec)
	next.Orientation = quaternion.Mul(delta, c.Orientation).Normalize()

	for i := range next.Torsions {
		next.Torsions[i] = wrapAngle(c.Torsions[i] + step*g.Torsions[i])
	}
	return next
}

func wrapAngle(a float64) float64 {
	const twoPi = 2 * math.Pi
	for a > math.Pi {
		a -= twoPi
	}
	for a <= -math.Pi {
		a += twoPi
	}
	return a
}
