package job

import (
	"fmt"
	"io"

	"github.com/turtacn/idock-worker/internal/domain/docking/ligand"
	"github.com/turtacn/idock-worker/internal/math/vec3"
)

// WriteModel writes one PDBQT MODEL block for lig's posed heavy atoms,
// the Go equivalent of main.cpp's `lig.write_model(ligands_pdbqt_gz,
// remarks, s, r, b, grid_maps)` bracketed by its own "MODEL"/"ENDMDL"
// lines (main.cpp lines 566-568). remark, when non-empty, is written as a
// single REMARK line before the ATOM records — this repository's REMARK
// payload is the idock score and RF-Score rather than the property line
// ParseProperties reads, since those came from the input ligand file and
// are not recomputed here.
func WriteModel(w io.Writer, modelIndex int, lig *ligand.Ligand, coords []vec3.Vec3, remark string) error {
	if len(coords) != len(lig.Atoms) {
		return fmt.Errorf("job: %d posed coordinates for %d atoms", len(coords), len(lig.Atoms))
	}

	if _, err := fmt.Fprintf(w, "MODEL     %4d\n", modelIndex); err != nil {
		return err
	}
	if remark != "" {
		if _, err := fmt.Fprintf(w, "REMARK    %s\n", remark); err != nil {
			return err
		}
	}
	for i, a := range lig.Atoms {
		c := coords[i]
		if _, err := fmt.Fprintf(w,
			"ATOM  %5d %-4s%1s%3s %1s%4d    %8.3f%8.3f%8.3f%6.2f%6.2f    %6.3f %-2s\n",
			i+1, a.Source.String(), " ", "LIG", "A", 1, c[0], c[1], c[2], 1.0, 0.0, 0.0, a.Source.String(),
		); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "ENDMDL\n")
	return err
}
