// Package quaternion implements the unit quaternion used to represent a
// ligand's rigid-body orientation during docking.
package quaternion

import (
	"math"

	"github.com/turtacn/idock-worker/internal/math/vec3"
)

// Quaternion is a Hamilton quaternion {a,b,c,d} = a + bi + cj + dk.
type Quaternion struct {
	A, B, C, D float64
}

// Identity is the identity rotation.
var Identity = Quaternion{A: 1}

// FromAxisAngle constructs the unit quaternion representing a rotation of
// angle radians about the given (not necessarily normalized) axis.
func FromAxisAngle(axis vec3.Vec3, angle float64) Quaternion {
	n := axis.Normalize()
	half := angle / 2
	s := math.Sin(half)
	return Quaternion{A: math.Cos(half), B: n[0] * s, C: n[1] * s, D: n[2] * s}
}

// FromRotationVector constructs a quaternion from a rotation vector whose
// direction is the rotation axis and whose norm is the rotation angle in
// radians. The zero vector maps to Identity.
func FromRotationVector(r vec3.Vec3) Quaternion {
	angle := r.Norm()
	if angle == 0 {
		return Identity
	}
	return FromAxisAngle(r, angle)
}

// NormSqr returns the squared norm of q.
func (q Quaternion) NormSqr() float64 {
	return q.A*q.A + q.B*q.B + q.C*q.C + q.D*q.D
}

// Norm returns the norm of q.
func (q Quaternion) Norm() float64 {
	return math.Sqrt(q.NormSqr())
}

// IsNormalized reports whether q has unit norm.
func (q Quaternion) IsNormalized() bool {
	const eps = 1e-6
	return math.Abs(q.NormSqr()-1) < eps
}

// Normalize returns q scaled to unit norm.
func (q Quaternion) Normalize() Quaternion {
	factor := 1 / q.Norm()
	return Quaternion{q.A * factor, q.B * factor, q.C * factor, q.D * factor}
}

// Mul returns the Hamilton product q*r, representing the composition of
// rotation r followed by rotation q.
func Mul(q, r Quaternion) Quaternion {
	return Quaternion{
		A: q.A*r.A - q.B*r.B - q.C*r.C - q.D*r.D,
		B: q.A*r.B + q.B*r.A + q.C*r.D - q.D*r.C,
		C: q.A*r.C - q.B*r.D + q.C*r.A + q.D*r.B,
		D: q.A*r.D + q.B*r.C - q.C*r.B + q.D*r.A,
	}
}

// ToMat3 returns the 3x3 rotation matrix (row-major) equivalent to unit
// quaternion q.
func (q Quaternion) ToMat3() [3][3]float64 {
	a, b, c, d := q.A, q.B, q.C, q.D
	aa, bb, cc, dd := a*a, b*b, c*c, d*d
	bc, ad, bd, ac, ab, cd := b*c, a*d, b*d, a*c, a*b, c*d

	return [3][3]float64{
		{aa + bb - cc - dd, 2 * (bc - ad), 2 * (bd + ac)},
		{2 * (bc + ad), aa - bb + cc - dd, 2 * (cd - ab)},
		{2 * (bd - ac), 2 * (cd + ab), aa - bb - cc + dd},
	}
}

// Rotate applies q's rotation to vector v.
func (q Quaternion) Rotate(v vec3.Vec3) vec3.Vec3 {
	m := q.ToMat3()
	return vec3.Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}
