// Package montecarlo implements a single independent Monte-Carlo
// Simulated-Annealing search: random restart, a fixed-length outer loop of
// Gaussian perturbation + BFGS quasi-Newton local minimization +
// Metropolis acceptance, and an intra-task RMSD-clustered local result
// list.
//
// Grounded on spec.md §4.4 "Monte-Carlo task", the second package in this
// ledger with no retrievable C++ body: only the function's declaration
// and call contract surface, in
// _examples/original_source/idock/src/monte_carlo_task.hpp and its call
// site in src/main.cpp. Every numbered step below is transcribed directly
// from the spec's prose; constants the spec leaves unspecified (the
// perturbation amplitudes, the Metropolis temperature, the curvature
// epsilon, the bounded retry count) are chosen and documented inline as
// such, the same way evaluator.outOfBoxStiffness is.
package montecarlo

import (
	"math"
	"math/rand"

	"github.com/turtacn/idock-worker/internal/domain/docking/box"
	"github.com/turtacn/idock-worker/internal/domain/docking/conformation"
	"github.com/turtacn/idock-worker/internal/domain/docking/evaluator"
	"github.com/turtacn/idock-worker/internal/domain/docking/gridmap"
	"github.com/turtacn/idock-worker/internal/domain/docking/ligand"
	"github.com/turtacn/idock-worker/internal/domain/docking/merge"
	"github.com/turtacn/idock-worker/internal/domain/docking/result"
	"github.com/turtacn/idock-worker/internal/domain/docking/scoring"
	"github.com/turtacn/idock-worker/internal/math/quaternion"
	"github.com/turtacn/idock-worker/internal/math/vec3"
)

// NumAlphas is the length of the backtracking line-search alpha ladder.
const NumAlphas = 5

const (
	defaultMaxSteps   = 100
	defaultMaxResults = 20

	bfgsMaxSteps      = 15
	armijoC           = 1e-4 // spec.md §9 Open Question (ii): not exposed by the source, this is the observed/default Armijo constant
	curvatureEpsilon  = 1e-10

	maxInitAttempts = 10 // bounded retry for the random-restart trivial-validity check

	perturbPositionSigma    = 2.0 // Angstrom, per-component Gaussian perturbation scale
	perturbOrientationSigma = 0.5 // radians, small-rotation-vector Gaussian scale
	perturbTorsionSigma     = 0.5 // radians

	metropolisTemperature = 1.0 // kcal/mol-scale fixed temperature; not exposed by the retrieved source
)

// Task bundles a single Monte-Carlo search's inputs.
type Task struct {
	Lig        *ligand.Ligand
	Seed       uint64
	Alphas     [NumAlphas]float64 // alphas[i] = 10^-i, the backtracking line-search ladder
	SF         *scoring.Table
	Box        *box.Box
	Maps       []gridmap.Grid3D
	MaxSteps   int // outer loop length; 0 means defaultMaxSteps (100)
	MaxResults int // local result list capacity; 0 means defaultMaxResults (20)
}

// Run executes t's search to completion and returns its local result list,
// ascending by clustering energy, with length at most t.MaxResults. Deterministic given
// Seed: the task's own *rand.Rand is seeded once at the start and no other
// source of randomness or goroutine-scheduling dependence is used.
func Run(t Task) []result.Result {
	if t.Lig.NumHeavyAtoms == 0 {
		return nil
	}
	maxSteps := t.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	maxResults := t.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	rng := rand.New(rand.NewSource(int64(t.Seed)))
	thrSqr := 4 * float64(t.Lig.NumHeavyAtoms)
	local := merge.NewList(maxResults, merge.ByClusteringEnergy)

	current, eCur, _, _, _ := bfgsMinimize(t, randomInitialConformation(t, rng))

	for iter := 0; iter < maxSteps; iter++ {
		candidate := perturb(t.Lig, current, rng)
		minimized, eCand, eClusteringCand, coordsCand, _ := bfgsMinimize(t, candidate)

		if metropolisAccept(eCand, eCur, rng) {
			current = minimized
			eCur = eCand
		}

		local.Add(result.Result{
			Energy:           eCand,
			ClusteringEnergy: eClusteringCand,
			Conformation:     minimized,
			Coords:           coordsCand,
		}, thrSqr)
	}

	return local.Results()
}

// randomInitialConformation draws position uniform in the box, orientation
// uniform on SO(3), and every torsion uniform in [-pi,pi]. The trivial
// validity check (finite energy) is retried a bounded number of times;
// evaluator.Evaluate never hard-fails for a non-degenerate ligand in this
// implementation, so the retry loop exists for parity with the spec's
// described behavior rather than because failure is expected.
func randomInitialConformation(t Task, rng *rand.Rand) conformation.Conformation {
	var conf conformation.Conformation
	for attempt := 0; attempt < maxInitAttempts; attempt++ {
		conf = conformation.New(t.Lig.NumActiveTorsions)
		for i := 0; i < 3; i++ {
			conf.Position[i] = t.Box.Corner1[i] + rng.Float64()*t.Box.Size[i]
		}
		conf.Orientation = randomQuaternion(rng)
		for i := range conf.Torsions {
			conf.Torsions[i] = rng.Float64()*2*math.Pi - math.Pi
		}

		e, _, _, _, _ := evaluator.Evaluate(t.Lig, &conf, t.SF, t.Box, t.Maps)
		if !math.IsNaN(e) && !math.IsInf(e, 0) {
			break
		}
	}
	return conf
}

// randomQuaternion samples uniformly from SO(3) by normalizing a
// 4-dimensional standard-Gaussian vector, the standard exact method for
// uniform sampling on S^3 (and hence of rotations, via the double cover).
func randomQuaternion(rng *rand.Rand) quaternion.Quaternion {
	q := quaternion.Quaternion{
		A: rng.NormFloat64(),
		B: rng.NormFloat64(),
		C: rng.NormFloat64(),
		D: rng.NormFloat64(),
	}
	return q.Normalize()
}

// perturb generates a Monte-Carlo candidate: a Gaussian perturbation
// scaled per-component, applied via conformation.Apply so the orientation
// is composed by quaternion multiplication (and renormalized) and
// torsions wrap, exactly as spec.md §4.4 bullet 2 describes.
func perturb(lig *ligand.Ligand, conf conformation.Conformation, rng *rand.Rand) conformation.Conformation {
	delta := conformation.NewChange(lig.NumActiveTorsions)
	for i := 0; i < 3; i++ {
		delta.Position[i] = rng.NormFloat64() * perturbPositionSigma
		delta.Orientation[i] = rng.NormFloat64() * perturbOrientationSigma
	}
	for i := range delta.Torsions {
		delta.Torsions[i] = rng.NormFloat64() * perturbTorsionSigma
	}
	return conformation.Apply(conf, delta, 1.0)
}

// metropolisAccept accepts the candidate energy eCand against the current
// energy eCur with probability min(1, exp(-(eCand-eCur)/T)) at a fixed
// temperature, per spec.md §4.4 bullet 2.
func metropolisAccept(eCand, eCur float64, rng *rand.Rand) bool {
	if eCand <= eCur {
		return true
	}
	p := math.Exp(-(eCand - eCur) / metropolisTemperature)
	return rng.Float64() < p
}

// bfgsMinimize runs up to bfgsMaxSteps of quasi-Newton local minimization
// from conf, per spec.md §4.4 bullet 2's BFGS description: inverse-Hessian
// H initialized to identity, descent direction d = -H*g, backtracking
// Armijo line search over t.Alphas, BFGS rank-two update skipped when the
// curvature condition s^T*y > epsilon fails. Returns the minimized
// conformation, its energy, clustering energy, and posed coordinates.
func bfgsMinimize(t Task, conf conformation.Conformation) (conformation.Conformation, float64, float64, []vec3.Vec3, *conformation.Change) {
	x := conf
	e, eClustering, g, coords, _ := evaluator.Evaluate(t.Lig, &x, t.SF, t.Box, t.Maps)

	dim := g.NumDimensions()
	h := identityMatrix(dim)

	for step := 0; step < bfgsMaxSteps; step++ {
		gFlat := flatten(*g)
		dFlat := negate(matVec(h, gFlat))
		dChange := unflatten(dFlat, len(g.Torsions))
		gd := dot(gFlat, dFlat)

		accepted := false
		var xNew conformation.Conformation
		var eNew, eClusteringNew float64
		var gNew *conformation.Change
		var coordsNew []vec3.Vec3
		var alphaUsed float64

		for _, alpha := range t.Alphas {
			candidate := conformation.Apply(x, dChange, alpha)
			eCand, eClusteringCand, gCand, coordsCand, _ := evaluator.Evaluate(t.Lig, &candidate, t.SF, t.Box, t.Maps)
			if eCand <= e+armijoC*alpha*gd {
				xNew, eNew, eClusteringNew, gNew, coordsNew = candidate, eCand, eClusteringCand, gCand, coordsCand
				alphaUsed = alpha
				accepted = true
				break
			}
		}
		if !accepted {
			break
		}

		sFlat := scaleFlat(dFlat, alphaUsed)
		yFlat := flatten(conformation.Sub(*gNew, *g))
		sy := dot(sFlat, yFlat)
		if sy > curvatureEpsilon {
			h = bfgsUpdate(h, sFlat, yFlat, sy)
		}

		x, e, eClustering, g, coords = xNew, eNew, eClusteringNew, gNew, coordsNew
	}

	return x, e, eClustering, coords, g
}

// --- flat-vector linear algebra over Change's tangent space ---

func flatten(c conformation.Change) []float64 {
	v := make([]float64, c.NumDimensions())
	v[0], v[1], v[2] = c.Position[0], c.Position[1], c.Position[2]
	v[3], v[4], v[5] = c.Orientation[0], c.Orientation[1], c.Orientation[2]
	copy(v[6:], c.Torsions)
	return v
}

func unflatten(v []float64, numTorsions int) conformation.Change {
	c := conformation.NewChange(numTorsions)
	c.Position = vec3.Vec3{v[0], v[1], v[2]}
	c.Orientation = vec3.Vec3{v[3], v[4], v[5]}
	copy(c.Torsions, v[6:])
	return c
}

func identityMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

func matVec(m [][]float64, v []float64) []float64 {
	out := make([]float64, len(v))
	for i, row := range m {
		var sum float64
		for j, val := range row {
			sum += val * v[j]
		}
		out[i] = sum
	}
	return out
}

func negate(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = -x
	}
	return out
}

func scaleFlat(v []float64, s float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * s
	}
	return out
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// bfgsUpdate applies the standard BFGS inverse-Hessian rank-two update:
//
//	rho   = 1 / (y^T s)
//	H_new = (I - rho*s*y^T) H (I - rho*y*s^T) + rho*s*s^T
func bfgsUpdate(h [][]float64, s, y []float64, sy float64) [][]float64 {
	n := len(s)
	rho := 1 / sy

	// left = I - rho*s*y^T
	left := identityMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			left[i][j] -= rho * s[i] * y[j]
		}
	}
	// right = I - rho*y*s^T
	right := identityMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			right[i][j] -= rho * y[i] * s[j]
		}
	}

	tmp := matMul(left, h)
	out := matMul(tmp, right)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out[i][j] += rho * s[i] * s[j]
		}
	}
	return out
}

func matMul(a, b [][]float64) [][]float64 {
	n := len(a)
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}
