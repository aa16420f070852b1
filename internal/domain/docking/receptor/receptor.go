// Package receptor parses the rigid PDBQT receptor structure into an
// ordered list of heavy atoms with refined interaction types, and buckets
// those atoms into the box's partition grid for fast neighbor lookup during
// grid-map construction.
//
// Parsing is grounded on _examples/original_source/idock/receptor.cpp:
// ATOM/HETATM records are read line by line; non-polar hydrogens are
// dropped; a polar hydrogen bonded to a hetero atom in the same residue
// donorizes that atom; after the full residue is parsed, any carbon
// covalently bonded to a hetero atom in the same residue is
// dehydrophobicized.
package receptor

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/idock-worker/internal/domain/docking/atomtype"
	"github.com/turtacn/idock-worker/internal/domain/docking/box"
	"github.com/turtacn/idock-worker/internal/math/vec3"
	"github.com/turtacn/idock-worker/pkg/errors"
)

// Atom is a single rigid receptor heavy atom.
type Atom struct {
	Name        string
	Coordinate  vec3.Vec3
	Source      atomtype.Source
	Interaction atomtype.Interaction
}

// CovalentRadius returns the atom's covalent bonding radius in Angstrom.
func (a Atom) CovalentRadius() float64 {
	return a.Source.CovalentRadius()
}

// IsNeighbor reports whether a and b are covalently bonded, i.e. their
// distance is below the sum of their 1.1x-allowance covalent radii.
func IsNeighbor(a, b Atom) bool {
	return vec3.DistanceSqr(a.Coordinate, b.Coordinate) < sqr(a.CovalentRadius()+b.CovalentRadius())
}

func sqr(x float64) float64 { return x * x }

// Receptor is the ordered list of rigid heavy atoms plus a partition grid
// built against a specific Box: Partitions[x][y][z] holds the indices into
// Atoms of every atom that may lie within the scoring cutoff of any probe
// in that partition.
type Receptor struct {
	Atoms      []Atom
	Partitions [][][][]int
}

// scoringCutoffSqr is the squared scoring cutoff (8 Angstrom) used to
// decide partition membership: a partition includes any atom within cutoff
// of some point of the partition's own cell.
const scoringCutoffSqr = 64.0

// residueAtoms records the starting atom index of a residue encountered
// while parsing, keyed by the residue-number columns (23-26) of its records.
type residueAtoms struct {
	key   string
	start int
}

// Parse reads PDBQT ATOM/HETATM records from r and builds a Receptor whose
// atoms are bucketed into b's partition grid. It returns a ParseError-coded
// error on the first unsupported atom-type token encountered.
func Parse(r io.Reader, b *box.Box) (*Receptor, error) {
	rec := &Receptor{}
	rec.Atoms = make([]Atom, 0, 5000)

	var residues []residueAtoms
	currentKey := "\x00\x00\x00\x00"

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !strings.HasPrefix(line, "ATOM") && !strings.HasPrefix(line, "HETATM") {
			continue
		}
		if len(line) < 79 {
			continue
		}

		typeToken := atomTypeToken(line)
		src, ok := atomtype.ParseSource(typeToken)
		if !ok {
			return nil, errors.New(errors.CodeParseError, "unsupported receptor atom type "+typeToken).
				WithDetail("line " + strconv.Itoa(lineNo))
		}
		if src == atomtype.H {
			continue
		}

		x, xerr := parseFloatField(line, 30, 38)
		y, yerr := parseFloatField(line, 38, 46)
		z, zerr := parseFloatField(line, 46, 54)
		if xerr != nil || yerr != nil || zerr != nil {
			return nil, errors.New(errors.CodeParseError, "malformed coordinate field").
				WithDetail("line " + strconv.Itoa(lineNo))
		}

		atom := Atom{
			Coordinate:  vec3.Vec3{x, y, z},
			Source:      src,
			Interaction: src.ToInteraction(),
		}

		if src == atomtype.HD {
			if len(residues) > 0 && residueKey(line) == currentKey {
				start := residues[len(residues)-1].start
				for i := len(rec.Atoms); i > start; {
					i--
					cand := &rec.Atoms[i]
					if !cand.Source.IsHetero() {
						continue
					}
					if IsNeighbor(atom, *cand) {
						cand.Interaction = atomtype.Donorize(cand.Interaction)
						break
					}
				}
			}
			continue
		}

		key := residueKey(line)
		if key != currentKey {
			currentKey = key
			residues = append(residues, residueAtoms{key: key, start: len(rec.Atoms)})
		}
		rec.Atoms = append(rec.Atoms, atom)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeIOError, "failed reading receptor stream")
	}

	dehydrophobicizeResidues(rec.Atoms, residues)

	if b != nil {
		rec.Partitions = buildPartitions(rec.Atoms, b)
	}

	return rec, nil
}

func atomTypeToken(line string) string {
	// 1-based columns [78,79]; Go 0-indexed [77,79).
	if len(line) < 79 {
		return ""
	}
	if line[78] == ' ' {
		return line[77:78]
	}
	return line[77:79]
}

func residueKey(line string) string {
	if len(line) < 26 {
		return ""
	}
	return line[22:26]
}

func parseFloatField(line string, start, end int) (float64, error) {
	if end > len(line) {
		return 0, errors.New(errors.CodeParseError, "field out of range")
	}
	return strconv.ParseFloat(strings.TrimSpace(line[start:end]), 64)
}

// dehydrophobicizeResidues applies the second, whole-residue pass: any
// carbon covalently bonded to a hetero atom within the same residue is no
// longer hydrophobic.
func dehydrophobicizeResidues(atoms []Atom, residues []residueAtoms) {
	n := len(residues)
	for r := 0; r < n; r++ {
		begin := residues[r].start
		end := len(atoms)
		if r+1 < n {
			end = residues[r+1].start
		}
		for i := begin; i < end; i++ {
			a := atoms[i]
			if !a.Source.IsHetero() {
				continue
			}
			for j := begin; j < end; j++ {
				if atoms[j].Source.IsHetero() {
					continue
				}
				if IsNeighbor(a, atoms[j]) {
					atoms[j].Interaction = atomtype.Dehydrophobicize(atoms[j].Interaction)
				}
			}
		}
	}
}

// buildPartitions buckets every atom into every partition cell whose
// expanded region (widened by the scoring cutoff) contains the atom,
// satisfying the "a probe may consult only its own partition's atom list"
// contract from BuildSlab.
func buildPartitions(atoms []Atom, b *box.Box) [][][][]int {
	nx, ny, nz := b.NumPartitions[0], b.NumPartitions[1], b.NumPartitions[2]
	partitions := make([][][][]int, nx)
	for x := range partitions {
		partitions[x] = make([][][]int, ny)
		for y := range partitions[x] {
			partitions[x][y] = make([][]int, nz)
		}
	}

	cellSize := float64(3) * b.Granularity // probesPerPartition probes per cell edge

	for idx, a := range atoms {
		for x := 0; x < nx; x++ {
			for y := 0; y < ny; y++ {
				for z := 0; z < nz; z++ {
					corner1 := b.PartitionCorner1(x, y, z)
					corner2 := vec3.Add(corner1, vec3.Vec3{cellSize, cellSize, cellSize})
					if nearestDistSqr(a.Coordinate, corner1, corner2) < scoringCutoffSqr {
						partitions[x][y][z] = append(partitions[x][y][z], idx)
					}
				}
			}
		}
	}
	return partitions
}

// nearestDistSqr returns the squared distance from point p to the nearest
// point of the axis-aligned box [corner1, corner2].
func nearestDistSqr(p, corner1, corner2 vec3.Vec3) float64 {
	var sum float64
	for i := 0; i < 3; i++ {
		v := p[i]
		if v < corner1[i] {
			d := corner1[i] - v
			sum += d * d
		} else if v > corner2[i] {
			d := v - corner2[i]
			sum += d * d
		}
	}
	return sum
}
