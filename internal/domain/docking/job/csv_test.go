package job

import (
	"bytes"
	"testing"

	"github.com/turtacn/idock-worker/internal/domain/docking/conformation"
	"github.com/turtacn/idock-worker/internal/math/quaternion"
	"github.com/turtacn/idock-worker/internal/math/vec3"
)

func sampleOutcome() Outcome {
	return Outcome{
		LigandIndex: 7,
		Energy:      -8.25,
		RFScore:     6.1,
		Conformation: conformation.Conformation{
			Position:    vec3.Vec3{1.5, -2.25, 0},
			Orientation: quaternion.Quaternion{A: 1, B: 0, C: 0, D: 0},
			Torsions:    []float64{0.5, -1.2},
		},
	}
}

func TestWriteSliceRow_ParseSliceRow_RoundTrips(t *testing.T) {
	o := sampleOutcome()
	var buf bytes.Buffer
	if err := WriteSliceRow(&buf, o); err != nil {
		t.Fatalf("WriteSliceRow failed: %v", err)
	}

	row, err := ParseSliceRow(buf.String())
	if err != nil {
		t.Fatalf("ParseSliceRow failed: %v", err)
	}

	if row.LigandIndex != o.LigandIndex {
		t.Errorf("LigandIndex = %v, want %v", row.LigandIndex, o.LigandIndex)
	}
	if row.Energy != o.Energy {
		t.Errorf("Energy = %v, want %v", row.Energy, o.Energy)
	}
	if row.RFScore != o.RFScore {
		t.Errorf("RFScore = %v, want %v", row.RFScore, o.RFScore)
	}
	if row.Conformation.Position != o.Conformation.Position {
		t.Errorf("Position = %v, want %v", row.Conformation.Position, o.Conformation.Position)
	}
	if row.Conformation.Orientation != o.Conformation.Orientation {
		t.Errorf("Orientation = %v, want %v", row.Conformation.Orientation, o.Conformation.Orientation)
	}
	if len(row.Conformation.Torsions) != len(o.Conformation.Torsions) {
		t.Fatalf("len(Torsions) = %v, want %v", len(row.Conformation.Torsions), len(o.Conformation.Torsions))
	}
	for i := range o.Conformation.Torsions {
		if row.Conformation.Torsions[i] != o.Conformation.Torsions[i] {
			t.Errorf("Torsions[%d] = %v, want %v", i, row.Conformation.Torsions[i], o.Conformation.Torsions[i])
		}
	}
}

func TestParseSliceRow_MalformedRowIsParseError(t *testing.T) {
	if _, err := ParseSliceRow("not,enough,fields"); err == nil {
		t.Error("expected a parse error for a short row")
	}
}

func TestCombineSlices_SortsByEnergyAscendingAndTruncates(t *testing.T) {
	rows := []string{
		"2,-5.0,1.0,0,0,0,1,0,0,0",
		"0,-9.0,1.0,0,0,0,1,0,0,0",
		"1,-7.0,1.0,0,0,0,1,0,0,0",
	}
	combined := CombineSlices(rows, 2)
	if len(combined) != 2 {
		t.Fatalf("len(combined) = %v, want 2", len(combined))
	}
	if combined[0].LigandIndex != 0 || combined[1].LigandIndex != 1 {
		t.Errorf("expected energy-ascending order [0,1], got [%v,%v]", combined[0].LigandIndex, combined[1].LigandIndex)
	}
}

func TestCombineSlices_DropsUnparseableRowsWithoutFailing(t *testing.T) {
	rows := []string{
		"0,-9.0,1.0,0,0,0,1,0,0,0",
		"garbage row",
		"",
	}
	combined := CombineSlices(rows, 10)
	if len(combined) != 1 {
		t.Fatalf("len(combined) = %v, want 1 (bad rows dropped)", len(combined))
	}
}

func TestWriteLogRow_ContainsExpectedFields(t *testing.T) {
	var buf bytes.Buffer
	row := LogRow{
		SliceRow:   SliceRow{Energy: -8.256, RFScore: 6.123},
		Properties: Properties{ID: "00000007", MolecularWeight: 277.364},
	}
	if err := WriteLogRow(&buf, row, 20); err != nil {
		t.Fatalf("WriteLogRow failed: %v", err)
	}
	got := buf.String()
	if got == "" {
		t.Fatal("expected non-empty log row")
	}
	if got[:8] != "00000007" {
		t.Errorf("expected row to start with the ligand ID, got %q", got)
	}
}
