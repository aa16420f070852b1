package job

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/turtacn/idock-worker/internal/domain/docking/conformation"
	"github.com/turtacn/idock-worker/internal/math/quaternion"
	"github.com/turtacn/idock-worker/internal/math/vec3"
	"github.com/turtacn/idock-worker/pkg/errors"
)

// slicePrecision is the count of digits after the decimal point the original uses for the
// per-slice CSV ("dump as many digits as possible in order to recover
// accurate conformations in summaries", main.cpp), and logPrecision is the
// coarser precision used only for the final combined log, per
// SPEC_FULL.md §6.6.
const (
	slicePrecision = 12
	logPrecision   = 3
)

// WriteSliceRow writes one per-slice CSV row for a successfully docked
// ligand: ligand index, energy·flexibility_penalty_factor, rescorer score,
// 3 position reals, 4 quaternion components, then the active-torsion
// values in frame pre-order — exactly spec.md §6's "Per-slice output"
// format, with slicePrecision digits after the decimal point so the row can be parsed
// back into an exact Conformation during the phase-2 combine pass.
func WriteSliceRow(w io.Writer, o Outcome) error {
	q := o.Conformation.Orientation
	fields := make([]string, 0, 9+len(o.Conformation.Torsions))
	fields = append(fields,
		strconv.Itoa(o.LigandIndex),
		formatFixed(o.Energy),
		formatFixed(o.RFScore),
		formatFixed(o.Conformation.Position[0]),
		formatFixed(o.Conformation.Position[1]),
		formatFixed(o.Conformation.Position[2]),
		formatFixed(q.A),
		formatFixed(q.B),
		formatFixed(q.C),
		formatFixed(q.D),
	)
	for _, t := range o.Conformation.Torsions {
		fields = append(fields, formatFixed(t))
	}

	if _, err := io.WriteString(w, strings.Join(fields, ",")+"\n"); err != nil {
		return errors.Wrap(err, errors.CodeIOError, "writing slice csv row")
	}
	return nil
}

func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', slicePrecision, 64)
}

// SliceRow is a single slice CSV row parsed back into its typed fields.
type SliceRow struct {
	LigandIndex  int
	Energy       float64
	RFScore      float64
	Conformation conformation.Conformation
}

// ParseSliceRow reconstructs a SliceRow — including a fully populated
// Conformation — from one line previously written by WriteSliceRow. This
// is what lets the phase-2 combine pass re-pose a ligand for the final
// ligands.pdbqt.gz output without re-running any Monte Carlo search.
func ParseSliceRow(line string) (SliceRow, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), ",")
	if len(fields) < 10 {
		return SliceRow{}, errors.New(errors.CodeParseError, "malformed slice csv row: "+line)
	}

	idx, err := strconv.Atoi(fields[0])
	if err != nil {
		return SliceRow{}, errors.Wrap(err, errors.CodeParseError, "malformed slice csv ligand index")
	}

	nums := make([]float64, len(fields)-1)
	for i, f := range fields[1:] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return SliceRow{}, errors.Wrap(err, errors.CodeParseError, "malformed slice csv numeric field")
		}
		nums[i] = v
	}

	numTorsions := len(nums) - 9
	if numTorsions < 0 {
		return SliceRow{}, errors.New(errors.CodeParseError, "malformed slice csv row: "+line)
	}

	return SliceRow{
		LigandIndex: idx,
		Energy:      nums[0],
		RFScore:     nums[1],
		Conformation: conformation.Conformation{
			Position:    vec3.Vec3{nums[2], nums[3], nums[4]},
			Orientation: quaternion.Quaternion{A: nums[5], B: nums[6], C: nums[7], D: nums[8]},
			Torsions:    append([]float64{}, nums[9:]...),
		},
	}, nil
}

// CombineSlices reads every slice CSV row in rows, parses them, sorts by
// energy ascending, and truncates to at most numLigands rows — the phase-2
// "Combine slice csv files" pass of main.cpp. A row that fails to parse is
// dropped rather than aborting the whole combine (an isolated bad row must
// not sink an entire job's results).
func CombineSlices(rows []string, numLigands int) []SliceRow {
	parsed := make([]SliceRow, 0, len(rows))
	for _, line := range rows {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r, err := ParseSliceRow(line)
		if err != nil {
			continue
		}
		parsed = append(parsed, r)
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].Energy < parsed[j].Energy })

	if numLigands > 0 && len(parsed) > numLigands {
		parsed = parsed[:numLigands]
	}
	return parsed
}

// ReadSliceRows reads every line of r (a single slice's .csv file) into a
// slice of raw lines, for passing to CombineSlices.
func ReadSliceRows(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeIOError, "reading slice csv")
	}
	return lines, nil
}

// LogRow is one row of the final combined log.csv.gz, joining a SliceRow's
// docking score with the ligand's own REMARK properties and identifiers.
type LogRow struct {
	SliceRow
	Properties Properties
}

// WriteLogHeader writes the final log.csv.gz column header, verbatim from
// main.cpp's log_csv_gz column list.
func WriteLogHeader(w io.Writer) error {
	const header = "ZINC ID,idock score (kcal/mol),RF-Score (pKd),Heavy atoms,Molecular weight (g/mol),Partition coefficient xlogP,Apolar desolvation (kcal/mol),Polar desolvation (kcal/mol),Hydrogen bond donors,Hydrogen bond acceptors,Polar surface area tPSA (A^2),Net charge,Rotatable bonds\n"
	if _, err := io.WriteString(w, header); err != nil {
		return errors.Wrap(err, errors.CodeIOError, "writing log csv header")
	}
	return nil
}

// WriteLogRow writes one final log.csv.gz row with logPrecision digits
// after the decimal point, per SPEC_FULL.md §6.6's "the original uses setprecision(3) for
// the final log".
func WriteLogRow(w io.Writer, row LogRow, numHeavyAtoms int) error {
	fields := []string{
		row.Properties.ID,
		strconv.FormatFloat(row.Energy, 'f', logPrecision, 64),
		strconv.FormatFloat(row.RFScore, 'f', logPrecision, 64),
		strconv.Itoa(numHeavyAtoms),
		strconv.FormatFloat(row.Properties.MolecularWeight, 'f', logPrecision, 64),
		strconv.FormatFloat(row.Properties.LogP, 'f', logPrecision, 64),
		strconv.FormatFloat(row.Properties.ApolarDesolvation, 'f', logPrecision, 64),
		strconv.FormatFloat(row.Properties.PolarDesolvation, 'f', logPrecision, 64),
		strconv.Itoa(row.Properties.HBondDonors),
		strconv.Itoa(row.Properties.HBondAcceptors),
		strconv.Itoa(row.Properties.TPSA),
		strconv.Itoa(row.Properties.NetCharge),
		strconv.Itoa(row.Properties.RotatableBonds),
	}
	if _, err := fmt.Fprintln(w, strings.Join(fields, ",")); err != nil {
		return errors.Wrap(err, errors.CodeIOError, "writing log csv row")
	}
	return nil
}
