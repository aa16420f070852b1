// Package scoring implements the pairwise empirical scoring function used to
// evaluate atom-atom interactions during docking. The function is a weighted
// sum of five distance-dependent terms (steric repulsion/attraction,
// hydrophobic contact, hydrogen bonding) evaluated over the surface distance
// between two atoms, after subtracting their Van der Waals radii.
//
// Because the scoring function is evaluated billions of times during a
// docking run, values are precalculated on a uniform grid of squared
// distances for every atom-type pair and looked up in constant time via
// Evaluate, rather than recomputed from the closed-form expression on every
// call.
package scoring

import (
	"math"

	"github.com/turtacn/idock-worker/internal/domain/docking/atomtype"
)

// Scoring function weights, one per term.
const (
	weightGaussian1   = -0.035579
	weightGaussian2   = -0.005156
	weightRepulsion   = 0.840245
	weightHydrophobic = -0.035069
	weightHBond       = -0.587439
)

// Cutoff is the interaction cutoff distance in Angstrom; pairs separated by
// more than Cutoff contribute zero score.
const Cutoff = 8.0

// CutoffSqr is Cutoff squared.
const CutoffSqr = Cutoff * Cutoff

// Factor scales a squared distance into a sample-table index.
const Factor = 256.0

// FactorInverse is 1/Factor.
const FactorInverse = 1.0 / Factor

// NumSamples is the number of precalculated sample points covering
// [0, CutoffSqr].
const NumSamples = int(Factor*CutoffSqr) + 1

// Element is a single precalculated sample: the scoring function value E and
// its derivative-over-r Dor (d(e)/dr / r, i.e. the scalar multiplying a
// displacement vector to obtain a force contribution).
type Element struct {
	E   float64
	Dor float64
}

// PairIndex identifies an unordered pair of Interaction atom types in a
// Table's triangular storage.
type PairIndex int

// PairCode returns the triangular-matrix index for the unordered pair
// (t1, t2). The table is stored as a lower-triangular matrix indexed by the
// larger type on the outer dimension, so the two orderings of a pair map to
// the same row.
func PairCode(t1, t2 atomtype.Interaction) PairIndex {
	a, b := int(t1), int(t2)
	if a > b {
		a, b = b, a
	}
	return PairIndex(b*(b+1)/2 + a)
}

// Table holds precalculated scoring-function samples for every pair of
// Interaction atom types that has been requested via Precalculate.
type Table struct {
	rows [][]Element
}

// NewTable constructs an empty Table sized for every possible Interaction
// pair; each row starts as nil until Precalculate fills it.
func NewTable() *Table {
	n := int(atomtype.NumInteraction)
	numPairs := n * (n + 1) / 2
	return &Table{rows: make([][]Element, numPairs)}
}

// score evaluates the closed-form scoring function at surface distance d
// between two atoms of the given interaction types, where r is the actual
// (non-squared) distance between them.
func score(t1, t2 atomtype.Interaction, r float64) float64 {
	d := r - (t1.VdwRadius() + t2.VdwRadius())

	e := weightGaussian1*math.Exp(-sqr(d*2)) +
		weightGaussian2*math.Exp(-sqr((d-3.0)*0.5))

	if d <= 0 {
		e += weightRepulsion * d * d
	}

	if t1.IsHydrophobic() && t2.IsHydrophobic() {
		var ramp float64
		switch {
		case d >= 1.5:
			ramp = 0
		case d <= 0.5:
			ramp = 1
		default:
			ramp = 1.5 - d
		}
		e += weightHydrophobic * ramp
	}

	if atomtype.HBond(t1, t2) {
		var ramp float64
		switch {
		case d >= 0:
			ramp = 0
		case d <= -0.7:
			ramp = 1
		default:
			ramp = d * -1.4285714285714286
		}
		e += weightHBond * ramp
	}

	return e
}

func sqr(x float64) float64 { return x * x }

// AccumulateVectorized adds the five unweighted scoring-function terms for
// the pair (t1, t2) at squared distance rSqr into v[0:5] (v must have at
// least 5 elements; callers rescoring with RF-Score pass a sub-slice
// positioned at the vector's own term offset). Unlike score/Evaluate, the
// terms are not combined with the five scoring weights: RF-Score learns
// its own coefficients for them downstream. Grounded directly on
// scoring_function::score(float*, t1, t2, r2) in
// _examples/original_source/idock/src/scoring_function.cpp, the one place
// in the retrieved pack showing this accumulate-into-vector variant of
// the same pairwise formula Evaluate uses.
func AccumulateVectorized(v []float64, t1, t2 atomtype.Interaction, rSqr float64) {
	d := math.Sqrt(rSqr) - (t1.VdwRadius() + t2.VdwRadius())

	v[0] += math.Exp(-4 * d * d)
	v[1] += math.Exp(-0.25 * sqr(d-3.0))
	if d < 0 {
		v[2] += d * d
	}
	if t1.IsHydrophobic() && t2.IsHydrophobic() {
		switch {
		case d >= 1.5:
		case d <= 0.5:
			v[3] += 1
		default:
			v[3] += 1.5 - d
		}
	}
	if atomtype.HBond(t1, t2) {
		switch {
		case d >= 0:
		case d <= -0.7:
			v[4] += 1
		default:
			v[4] += d * -1.4285714285714286
		}
	}
}

// SampleDistances returns the NumSamples actual distances (not squared) at
// which every atom-type pair's scoring function is precalculated, i.e.
// rs[i] = sqrt(i / Factor). Callers precalculate a Table once at process
// startup by looping every Interaction pair over the same rs slice, the Go
// shape of main.cpp's own startup precalculation loop.
func SampleDistances() []float64 {
	rs := make([]float64, NumSamples)
	for i := range rs {
		rs[i] = math.Sqrt(float64(i) * FactorInverse)
	}
	return rs
}

// Precalculate fills the row for the pair (t1, t2) with samples evaluated at
// each distance in rs, where rs[i] is the actual (non-squared) distance of
// sample point i. len(rs) must equal NumSamples. Dor is computed by forward
// difference, (e[i+1]-e[i]) / ((rs[i+1]-rs[i])*rs[i]), except at the two
// endpoints where it is defined to be zero.
func (t *Table) Precalculate(t1, t2 atomtype.Interaction, rs []float64) {
	idx := PairCode(t1, t2)
	row := make([]Element, len(rs))

	for i, r := range rs {
		row[i].E = score(t1, t2, r)
	}

	for i := 1; i < len(rs)-1; i++ {
		row[i].Dor = (row[i+1].E - row[i].E) / ((rs[i+1] - rs[i]) * rs[i])
	}
	row[0].Dor = 0
	row[len(row)-1].Dor = 0

	t.rows[idx] = row
}

// Evaluate performs a constant-time lookup of the precalculated sample at
// index floor(Factor*rSqr), the sample at or just below rSqr, for the pair
// identified by pair. rSqr must not exceed
// CutoffSqr.
func (t *Table) Evaluate(pair PairIndex, rSqr float64) Element {
	row := t.rows[pair]
	i := int(Factor * rSqr)
	if i >= len(row) {
		i = len(row) - 1
	}
	return row[i]
}
