package job

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/turtacn/idock-worker/internal/domain/docking/atomtype"
	"github.com/turtacn/idock-worker/internal/domain/docking/box"
	"github.com/turtacn/idock-worker/internal/domain/docking/gridmap"
	"github.com/turtacn/idock-worker/internal/domain/docking/ligand"
	"github.com/turtacn/idock-worker/internal/domain/docking/pool"
	"github.com/turtacn/idock-worker/internal/domain/docking/receptor"
	"github.com/turtacn/idock-worker/internal/domain/docking/rescore"
	"github.com/turtacn/idock-worker/internal/domain/docking/scoring"
	"github.com/turtacn/idock-worker/internal/math/vec3"
)

// buildAtomLine constructs a syntactically valid fixed-column PDBQT ATOM
// record for a receptor carbon at (x,y,z), following the same column
// layout receptor_test.go's fixtures use.
func buildAtomLine(x, y, z float64) string {
	line := make([]byte, 80)
	for i := range line {
		line[i] = ' '
	}
	copy(line[0:6], "ATOM  ")
	copy(line[22:26], "A  1")
	putFixed(line[30:38], x)
	putFixed(line[38:46], y)
	putFixed(line[46:54], z)
	copy(line[77:79], "C ")
	return string(line)
}

func putFixed(dst []byte, v float64) {
	s := fmt.Sprintf("%.3f", v)
	for len(s) < len(dst) {
		s = " " + s
	}
	copy(dst, s[len(s)-len(dst):])
}

func singleAtomLigand(flex float64) *ligand.Ligand {
	return &ligand.Ligand{
		Atoms: []ligand.Atom{
			{Coordinate: vec3.Vec3{}, Source: atomtype.C, Interaction: atomtype.CH},
		},
		Frames:                   []ligand.Frame{{Parent: -1, AtomBegin: 0, AtomEnd: 1}},
		NumHeavyAtoms:            1,
		FlexibilityPenaltyFactor: flex,
	}
}

// carbonTable returns a scoring table with the C_H/C_H row precalculated,
// the only pair the receptor carbon and ligand carbon below can form.
func carbonTable() *scoring.Table {
	sf := scoring.NewTable()
	sf.Precalculate(atomtype.CH, atomtype.CH, scoring.SampleDistances())
	return sf
}

func trivialForest(t *testing.T) *rescore.Forest {
	t.Helper()
	f, err := rescore.LoadForest(strings.NewReader("TREE 1\n0 LEAF 5.0\n"))
	if err != nil {
		t.Fatalf("LoadForest failed: %v", err)
	}
	return f
}

func TestRunLigand_ZeroHeavyAtomsSkipsSilently(t *testing.T) {
	b := box.New(vec3.Vec3{5, 5, 5}, vec3.Vec3{4, 4, 4}, 1.0)
	rec, err := receptor.Parse(strings.NewReader(buildAtomLine(5, 5, 5)), b)
	if err != nil {
		t.Fatalf("receptor.Parse failed: %v", err)
	}
	p := pool.New(2)
	defer p.Close()

	outcome, err := RunLigand(&ligand.Ligand{}, 0, rec, b, gridmap.NewCache(b), scoring.NewTable(), trivialForest(t), p, rand.New(rand.NewSource(1)), DefaultConfig())
	if err != nil {
		t.Fatalf("RunLigand returned an error: %v", err)
	}
	if outcome != nil {
		t.Errorf("expected a nil outcome for a ligand with zero heavy atoms, got %+v", outcome)
	}
}

func TestRunLigand_ProducesOutcomeAndPopulatesGridMaps(t *testing.T) {
	b := box.New(vec3.Vec3{5, 5, 5}, vec3.Vec3{4, 4, 4}, 1.0)
	rec, err := receptor.Parse(strings.NewReader(buildAtomLine(5, 5, 5)), b)
	if err != nil {
		t.Fatalf("receptor.Parse failed: %v", err)
	}
	p := pool.New(2)
	defer p.Close()

	cache := gridmap.NewCache(b)
	lig := singleAtomLigand(1.0)
	cfg := Config{NumMCTasks: 2, MaxConformations: 5, MaxResultsPerTask: 5}

	outcome, err := RunLigand(lig, 3, rec, b, cache, carbonTable(), trivialForest(t), p, rand.New(rand.NewSource(7)), cfg)
	if err != nil {
		t.Fatalf("RunLigand returned an error: %v", err)
	}
	if outcome == nil {
		t.Fatal("expected a non-nil outcome")
	}
	if outcome.LigandIndex != 3 {
		t.Errorf("LigandIndex = %v, want 3", outcome.LigandIndex)
	}
	if outcome.RFScore != 5.0 {
		t.Errorf("RFScore = %v, want 5.0 (the trivial forest's single leaf value)", outcome.RFScore)
	}
	if len(cache.MissingTypes(lig.InteractionTypes())) != 0 {
		t.Error("expected RunLigand to have populated the grid map for the ligand's interaction type")
	}
}

func TestRunLigand_SecondCallReusesPopulatedGridMaps(t *testing.T) {
	b := box.New(vec3.Vec3{5, 5, 5}, vec3.Vec3{4, 4, 4}, 1.0)
	rec, err := receptor.Parse(strings.NewReader(buildAtomLine(5, 5, 5)), b)
	if err != nil {
		t.Fatalf("receptor.Parse failed: %v", err)
	}
	p := pool.New(2)
	defer p.Close()

	cache := gridmap.NewCache(b)
	lig := singleAtomLigand(1.0)
	cfg := Config{NumMCTasks: 2, MaxConformations: 5, MaxResultsPerTask: 5}
	forest := trivialForest(t)

	sf := carbonTable()
	if _, err := RunLigand(lig, 0, rec, b, cache, sf, forest, p, rand.New(rand.NewSource(1)), cfg); err != nil {
		t.Fatalf("first RunLigand call failed: %v", err)
	}
	if _, err := RunLigand(lig, 1, rec, b, cache, sf, forest, p, rand.New(rand.NewSource(2)), cfg); err != nil {
		t.Fatalf("second RunLigand call failed: %v", err)
	}
}
