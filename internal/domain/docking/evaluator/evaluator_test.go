package evaluator

import (
	"math"
	"testing"

	"github.com/turtacn/idock-worker/internal/domain/docking/atomtype"
	"github.com/turtacn/idock-worker/internal/domain/docking/box"
	"github.com/turtacn/idock-worker/internal/domain/docking/conformation"
	"github.com/turtacn/idock-worker/internal/domain/docking/gridmap"
	"github.com/turtacn/idock-worker/internal/domain/docking/ligand"
	"github.com/turtacn/idock-worker/internal/domain/docking/scoring"
	"github.com/turtacn/idock-worker/internal/math/vec3"
)

func flatMaps(b *box.Box, value float64) []gridmap.Grid3D {
	n := int(atomtype.NumInteraction)
	maps := make([]gridmap.Grid3D, n)
	for t := 0; t < n; t++ {
		g := gridmap.Grid3D{NumProbes: b.NumProbes, Values: make([]float64, b.NumProbes[0]*b.NumProbes[1]*b.NumProbes[2])}
		for i := range g.Values {
			g.Values[i] = value
		}
		maps[t] = g
	}
	return maps
}

func TestEvaluate_ZeroHeavyAtomsIsNotOK(t *testing.T) {
	lig := &ligand.Ligand{}
	b := box.New(vec3.Vec3{0, 0, 0}, vec3.Vec3{10, 10, 10}, 1.0)
	conf := conformation.New(0)
	_, _, _, _, ok := Evaluate(lig, &conf, scoring.NewTable(), b, flatMaps(b, 0))
	if ok {
		t.Error("expected ok=false for a ligand with zero heavy atoms")
	}
}

func TestEvaluate_FlatZeroGridGivesZeroEnergyAtOrigin(t *testing.T) {
	lig := &ligand.Ligand{
		Atoms: []ligand.Atom{
			{Coordinate: vec3.Vec3{}, Source: atomtype.C, Interaction: atomtype.CH},
		},
		Frames:        []ligand.Frame{{Parent: -1, AtomBegin: 0, AtomEnd: 1}},
		NumHeavyAtoms: 1,
	}
	b := box.New(vec3.Vec3{5, 5, 5}, vec3.Vec3{10, 10, 10}, 1.0)
	conf := conformation.New(0)
	conf.Position = vec3.Vec3{5, 5, 5}

	e, eClustering, g, coords, ok := Evaluate(lig, &conf, scoring.NewTable(), b, flatMaps(b, 0))
	if !ok {
		t.Fatal("expected ok=true")
	}
	if e != 0 || eClustering != 0 {
		t.Errorf("e=%v eClustering=%v, want 0,0 on a flat zero grid", e, eClustering)
	}
	if coords[0] != (vec3.Vec3{5, 5, 5}) {
		t.Errorf("posed coordinate = %v, want (5,5,5)", coords[0])
	}
	if g.Position != (vec3.Vec3{}) {
		t.Errorf("position gradient = %v, want zero on a flat grid", g.Position)
	}
}

func TestEvaluate_OutOfBoxIncursPenalty(t *testing.T) {
	lig := &ligand.Ligand{
		Atoms: []ligand.Atom{
			{Coordinate: vec3.Vec3{}, Source: atomtype.C, Interaction: atomtype.CH},
		},
		Frames:        []ligand.Frame{{Parent: -1, AtomBegin: 0, AtomEnd: 1}},
		NumHeavyAtoms: 1,
	}
	b := box.New(vec3.Vec3{0, 0, 0}, vec3.Vec3{4, 4, 4}, 1.0)
	conf := conformation.New(0)
	conf.Position = vec3.Vec3{100, 0, 0} // far outside the box

	e, _, g, _, ok := Evaluate(lig, &conf, scoring.NewTable(), b, flatMaps(b, 0))
	if !ok {
		t.Fatal("expected ok=true (out-of-box is not a hard failure)")
	}
	if e <= 0 {
		t.Errorf("expected a strictly positive out-of-box penalty, got %v", e)
	}
	if g.Position[0] >= 0 {
		t.Errorf("gradient x-component should point back toward the box (negative), got %v", g.Position[0])
	}
}

func TestEvaluate_RigidTwoAtomLigand_IntraLigandExcluded(t *testing.T) {
	// Both atoms in the same (sole, root) rigid frame: no interaction pairs,
	// matching the intra-ligand exclusion rule for same-frame atoms.
	lig := &ligand.Ligand{
		Atoms: []ligand.Atom{
			{Coordinate: vec3.Vec3{0, 0, 0}, Source: atomtype.C, Interaction: atomtype.CH},
			{Coordinate: vec3.Vec3{1.3, 0, 0}, Source: atomtype.C, Interaction: atomtype.CH},
		},
		Frames:        []ligand.Frame{{Parent: -1, AtomBegin: 0, AtomEnd: 2}},
		NumHeavyAtoms: 2,
		Interactions:  nil,
	}
	b := box.New(vec3.Vec3{5, 5, 5}, vec3.Vec3{10, 10, 10}, 1.0)
	conf := conformation.New(0)
	conf.Position = vec3.Vec3{5, 5, 5}

	e, eClustering, _, _, ok := Evaluate(lig, &conf, scoring.NewTable(), b, flatMaps(b, 0))
	if !ok {
		t.Fatal("expected ok=true")
	}
	if e != eClustering {
		t.Errorf("e=%v should equal eClustering=%v when there are no intra-ligand pairs", e, eClustering)
	}
}

func TestEvaluate_TorsionRotatesBranchAtom(t *testing.T) {
	lig := &ligand.Ligand{
		Atoms: []ligand.Atom{
			{Coordinate: vec3.Vec3{0, 0, 0}, Source: atomtype.C, Interaction: atomtype.CH},
			{Coordinate: vec3.Vec3{1, 0, 0}, Source: atomtype.C, Interaction: atomtype.CH},
			{Coordinate: vec3.Vec3{2, 1, 0}, Source: atomtype.C, Interaction: atomtype.CH},
		},
		Frames: []ligand.Frame{
			{Parent: -1, AtomBegin: 0, AtomEnd: 1},
			{Parent: 0, AtomBegin: 1, AtomEnd: 3, AxisOrigin: vec3.Vec3{1, 0, 0}, AxisDirection: vec3.Vec3{0, 0, 1}, Active: true},
		},
		NumHeavyAtoms:     3,
		NumActiveTorsions: 1,
	}
	b := box.New(vec3.Vec3{5, 5, 5}, vec3.Vec3{20, 20, 20}, 1.0)
	conf := conformation.New(1)
	conf.Position = vec3.Vec3{5, 5, 5}
	conf.Torsions[0] = math.Pi / 2

	_, _, _, coords, ok := Evaluate(lig, &conf, scoring.NewTable(), b, flatMaps(b, 0))
	if !ok {
		t.Fatal("expected ok=true")
	}
	// Frame 1's pivot is conf.Position + axis origin (1,0,0) = (6,5,5).
	// Atom 2 at local (2,1,0) relative to axis origin (1,0,0) -> offset
	// (1,1,0); rotating 90 degrees about +z maps (1,1,0) -> (-1,1,0), giving
	// a world coordinate of (6,5,5) + (-1,1,0) = (5,6,5).
	want := vec3.Vec3{5, 6, 5}
	for i := 0; i < 3; i++ {
		if math.Abs(coords[2][i]-want[i]) > 1e-9 {
			t.Errorf("posed atom 2 = %v, want %v", coords[2], want)
			break
		}
	}
}
