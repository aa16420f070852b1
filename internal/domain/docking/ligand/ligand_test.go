package ligand

import (
	"strings"
	"testing"

	"github.com/turtacn/idock-worker/pkg/errors"
)

// atomLine builds a syntactically valid ATOM record with a given serial,
// coordinate and AD4 type token, using direct column indexing so tests stay
// independent of any particular formatting helper.
func atomLine(serial int, x, y, z float64, adType string) string {
	line := make([]byte, 80)
	for i := range line {
		line[i] = ' '
	}
	copy(line[0:6], "ATOM  ")
	copy(line[6:11], padLeft(itoa(serial), 5))
	copy(line[30:38], padLeft(ftoa(x), 8))
	copy(line[38:46], padLeft(ftoa(y), 8))
	copy(line[46:54], padLeft(ftoa(z), 8))
	copy(line[77:79], pad(adType, 2))
	return string(line)
}

func pad(s string, n int) string {
	for len(s) < n {
		s += " "
	}
	return s
}

func padLeft(s string, n int) string {
	for len(s) < n {
		s = " " + s
	}
	return s
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var digits []byte
	for v > 0 {
		digits = append([]byte{byte('0' + v%10)}, digits...)
		v /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func ftoa(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	whole := int(v)
	frac := int((v-float64(whole))*1000 + 0.5)
	s := itoa(whole) + "." + padFrac(frac)
	if neg {
		s = "-" + s
	}
	return s
}

func padFrac(f int) string {
	s := itoa(f)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}

// twoAtomRigidBody is a two-heavy-atom ligand with no rotatable bonds,
// matching spec.md's rigid-ligand edge case.
func twoAtomRigidBody() string {
	return strings.Join([]string{
		"ROOT",
		atomLine(1, 0, 0, 0, "C"),
		atomLine(2, 1.3, 0, 0, "C"),
		"ENDROOT",
		"TORSDOF 0",
	}, "\n")
}

func TestParse_RigidLigand_NoActiveTorsions(t *testing.T) {
	lig, err := Parse(strings.NewReader(twoAtomRigidBody()))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if lig.NumHeavyAtoms != 2 {
		t.Fatalf("NumHeavyAtoms = %d, want 2", lig.NumHeavyAtoms)
	}
	if lig.NumActiveTorsions != 0 {
		t.Errorf("NumActiveTorsions = %d, want 0", lig.NumActiveTorsions)
	}
	if lig.FlexibilityPenaltyFactor != 1 {
		t.Errorf("FlexibilityPenaltyFactor = %v, want 1", lig.FlexibilityPenaltyFactor)
	}
	if len(lig.Frames) != 1 {
		t.Fatalf("len(Frames) = %d, want 1 (root only)", len(lig.Frames))
	}
	if lig.Frames[0].Parent != -1 {
		t.Errorf("root Parent = %d, want -1", lig.Frames[0].Parent)
	}
}

func TestParse_WithOneRotatableBond(t *testing.T) {
	content := strings.Join([]string{
		"ROOT",
		atomLine(1, 0, 0, 0, "C"),
		"ENDROOT",
		"BRANCH 1 2",
		atomLine(2, 1.3, 0, 0, "C"),
		atomLine(3, 2.6, 0, 0, "C"),
		"ENDBRANCH 1 2",
		"TORSDOF 1",
	}, "\n")

	lig, err := Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if lig.NumHeavyAtoms != 3 {
		t.Fatalf("NumHeavyAtoms = %d, want 3", lig.NumHeavyAtoms)
	}
	if lig.NumActiveTorsions != 1 {
		t.Errorf("NumActiveTorsions = %d, want 1", lig.NumActiveTorsions)
	}
	if len(lig.Frames) != 2 {
		t.Fatalf("len(Frames) = %d, want 2", len(lig.Frames))
	}
	child := lig.Frames[1]
	if child.Parent != 0 {
		t.Errorf("child Parent = %d, want 0", child.Parent)
	}
	if !child.Active {
		t.Error("BRANCH frame should be active")
	}
	if child.AtomBegin != 1 || child.AtomEnd != 3 {
		t.Errorf("child atom range = [%d,%d), want [1,3)", child.AtomBegin, child.AtomEnd)
	}
	torsions := 1.0
	wantFactor := 1 / (1 + flexibilityCoefficient*torsions)
	if lig.FlexibilityPenaltyFactor != wantFactor {
		t.Errorf("FlexibilityPenaltyFactor = %v, want %v", lig.FlexibilityPenaltyFactor, wantFactor)
	}
}

func TestParse_SkipsNonPolarHydrogen(t *testing.T) {
	content := strings.Join([]string{
		"ROOT",
		atomLine(1, 0, 0, 0, "C"),
		atomLine(2, 1, 0, 0, "H"),
		"ENDROOT",
	}, "\n")
	lig, err := Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if lig.NumHeavyAtoms != 1 {
		t.Fatalf("NumHeavyAtoms = %d, want 1", lig.NumHeavyAtoms)
	}
}

func TestParse_UnsupportedAtomTypeIsParseError(t *testing.T) {
	content := strings.Join([]string{
		"ROOT",
		atomLine(1, 0, 0, 0, "Xx"),
		"ENDROOT",
	}, "\n")
	_, err := Parse(strings.NewReader(content))
	if err == nil {
		t.Fatal("expected error for unsupported atom type")
	}
	if !errors.IsCode(err, errors.CodeParseError) {
		t.Errorf("expected CodeParseError, got %v", err)
	}
}

func TestParse_ExcludesSameFrameAndCloseBondedPairs(t *testing.T) {
	// Within the same ROOT frame, no pairs should be scored.
	content := strings.Join([]string{
		"ROOT",
		atomLine(1, 0, 0, 0, "C"),
		atomLine(2, 1.3, 0, 0, "C"),
		atomLine(3, 2.6, 0, 0, "C"),
		"ENDROOT",
	}, "\n")
	lig, err := Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(lig.Interactions) != 0 {
		t.Errorf("len(Interactions) = %d, want 0 (all atoms share one rigid frame)", len(lig.Interactions))
	}
}

func TestParse_ScoresPairsAcrossDistantFrames(t *testing.T) {
	// Two frames joined by a rotatable bond, with atoms far enough apart
	// across the bond that they are not 1-2/1-3/1-4 bonded neighbors.
	content := strings.Join([]string{
		"ROOT",
		atomLine(1, 0, 0, 0, "C"),
		"ENDROOT",
		"BRANCH 1 2",
		atomLine(2, 1.3, 0, 0, "C"),
		atomLine(3, 2.6, 0, 0, "C"),
		atomLine(4, 3.9, 0, 0, "C"),
		atomLine(5, 5.2, 0, 0, "C"),
		"ENDBRANCH 1 2",
	}, "\n")
	lig, err := Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	found := false
	for _, ip := range lig.Interactions {
		if ip.I == 0 && ip.J == 4 {
			found = true
		}
	}
	if !found {
		t.Error("expected atom 0 (root) and atom 4 (far end of branch) to be scored, 1-5 apart in bonds")
	}
}

func TestInteractionTypes_DeduplicatesAcrossAtoms(t *testing.T) {
	content := strings.Join([]string{
		"ROOT",
		atomLine(1, 0, 0, 0, "C"),
		atomLine(2, 1.3, 0, 0, "C"),
		"ENDROOT",
	}, "\n")
	lig, err := Parse(strings.NewReader(content))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	types := lig.InteractionTypes()
	if len(types) != 1 {
		t.Errorf("len(InteractionTypes()) = %d, want 1 (both atoms are C_H/C_P)", len(types))
	}
}
