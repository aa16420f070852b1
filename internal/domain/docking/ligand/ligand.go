// Package ligand parses a flexible PDBQT ligand record into a flat frame
// tree plus the precomputed intra-ligand interaction list the evaluator
// scores on every pose.
//
// Grounded on spec.md §3 "Ligand" and SPEC_FULL.md's restatement: the frame
// tree is represented as a flat, parent-indexed slice built directly from
// PDBQT ROOT/BRANCH/ENDBRANCH/TORSDOF records, in the same style as
// receptor.Parse's single forward scan over fixed-column ATOM/HETATM
// records.
package ligand

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/idock-worker/internal/domain/docking/atomtype"
	"github.com/turtacn/idock-worker/internal/domain/docking/scoring"
	"github.com/turtacn/idock-worker/internal/math/vec3"
	"github.com/turtacn/idock-worker/pkg/errors"
)

// flexibilityCoefficient is Vina's flexibility-penalty coefficient c in
// 1/(1+c*n_active_torsions).
const flexibilityCoefficient = 0.05846

// bondExclusionDepth is the maximum bond-graph distance (in covalent bonds)
// excluded from the intra-ligand interaction list: 1-2, 1-3 and 1-4
// neighbors are excluded, 1-5 and beyond are scored.
const bondExclusionDepth = 3

// Atom is a single ligand atom after donorize/dehydrophobicize refinement.
type Atom struct {
	Coordinate  vec3.Vec3
	Source      atomtype.Source
	Interaction atomtype.Interaction
}

// Frame is a rigid fragment of the ligand, connected to its parent by at
// most one rotatable bond. Frames are stored as a flat, parent-indexed
// slice built in depth-first pre-order, matching the order PDBQT
// ROOT/BRANCH records already appear in.
type Frame struct {
	Parent        int // -1 for the root frame
	AtomBegin     int // half-open [AtomBegin,AtomEnd) range into Ligand.Atoms
	AtomEnd       int
	AxisOrigin    vec3.Vec3 // rotation axis origin, in the parent's frame
	AxisDirection vec3.Vec3 // normalized rotation axis direction
	Active        bool      // true iff this frame is attached by a rotatable bond
	PreOrder      int
	PostOrder     int
}

// InteractionPair is one entry of the intra-ligand interaction list: two
// atom indices and their precomputed scoring-table pair code.
type InteractionPair struct {
	I, J int
	Pair scoring.PairIndex
}

// Ligand is the fully parsed, ready-to-evaluate ligand model.
type Ligand struct {
	Frames                   []Frame
	Atoms                    []Atom
	Interactions             []InteractionPair
	NumHeavyAtoms            int
	NumActiveTorsions        int
	FlexibilityPenaltyFactor float64
}

// InteractionTypes returns the distinct Interaction types present in the
// ligand, used by the job layer to decide which grid-map slabs must exist
// before this ligand can be evaluated.
func (l *Ligand) InteractionTypes() []atomtype.Interaction {
	seen := make(map[atomtype.Interaction]bool)
	var out []atomtype.Interaction
	for _, a := range l.Atoms {
		if !seen[a.Interaction] {
			seen[a.Interaction] = true
			out = append(out, a.Interaction)
		}
	}
	return out
}

type parseFrame struct {
	frameIndex int
	firstAtom  int // index of the atom the BRANCH's "i" serial resolved to, for axis origin
}

// Parse reads a single PDBQT ligand body (ROOT ... ENDROOT, nested
// BRANCH/ENDBRANCH blocks, a trailing TORSDOF) from r and builds the
// Ligand's frame tree, atom list and intra-ligand interaction list. It
// returns a ParseError-coded error on malformed records or an unsupported
// atom type.
func Parse(r io.Reader) (*Ligand, error) {
	lig := &Ligand{}
	serialIndex := make(map[int]int) // PDBQT atom serial -> Atoms index
	var atomFrame []int              // Atoms index -> owning frame index
	var stack []parseFrame
	order := 0

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "ROOT":
			lig.Frames = append(lig.Frames, Frame{Parent: -1, AtomBegin: 0, PreOrder: order})
			order++
			stack = append(stack, parseFrame{frameIndex: 0})

		case trimmed == "ENDROOT":
			cur := stack[len(stack)-1]
			lig.Frames[cur.frameIndex].AtomEnd = len(lig.Atoms)
			lig.Frames[cur.frameIndex].PostOrder = order
			order++

		case strings.HasPrefix(trimmed, "BRANCH"):
			fields := strings.Fields(trimmed)
			if len(fields) != 3 {
				return nil, errors.New(errors.CodeParseError, "malformed BRANCH record").
					WithDetail("line " + strconv.Itoa(lineNo))
			}
			iSerial, ierr := strconv.Atoi(fields[1])
			jSerial, jerr := strconv.Atoi(fields[2])
			if ierr != nil || jerr != nil {
				return nil, errors.New(errors.CodeParseError, "malformed BRANCH serials").
					WithDetail("line " + strconv.Itoa(lineNo))
			}
			iIdx, ok := serialIndex[iSerial]
			if !ok {
				return nil, errors.New(errors.CodeParseError, "BRANCH references unknown atom serial").
					WithDetail("line " + strconv.Itoa(lineNo))
			}
			parent := stack[len(stack)-1].frameIndex
			newIndex := len(lig.Frames)
			lig.Frames = append(lig.Frames, Frame{
				Parent:     parent,
				AtomBegin:  len(lig.Atoms),
				AxisOrigin: lig.Atoms[iIdx].Coordinate,
				Active:     true,
				PreOrder:   order,
			})
			order++
			stack = append(stack, parseFrame{frameIndex: newIndex, firstAtom: jSerial})

		case strings.HasPrefix(trimmed, "ENDBRANCH"):
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			frame := &lig.Frames[cur.frameIndex]
			frame.AtomEnd = len(lig.Atoms)
			frame.PostOrder = order
			order++
			if jIdx, ok := serialIndex[cur.firstAtom]; ok && frame.AtomEnd > frame.AtomBegin {
				dir := vec3.Sub(lig.Atoms[jIdx].Coordinate, frame.AxisOrigin)
				frame.AxisDirection = dir.Normalize()
			}

		case strings.HasPrefix(trimmed, "TORSDOF"):
			// Informational torsion-count record; NumActiveTorsions is
			// derived directly from the frame tree instead of trusted from
			// this field, since it must stay consistent with the atom data
			// actually parsed.

		case strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM"):
			if len(line) < 79 {
				continue
			}
			serial, serr := strconv.Atoi(strings.TrimSpace(line[6:11]))
			if serr != nil {
				return nil, errors.New(errors.CodeParseError, "malformed atom serial").
					WithDetail("line " + strconv.Itoa(lineNo))
			}
			typeToken := atomTypeToken(line)
			src, ok := atomtype.ParseSource(typeToken)
			if !ok {
				return nil, errors.New(errors.CodeParseError, "unsupported ligand atom type "+typeToken).
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
				for i := len(lig.Atoms); i > 0; {
					i--
					cand := &lig.Atoms[i]
					if !cand.Source.IsHetero() {
						continue
					}
					if isNeighbor(atom, *cand) {
						cand.Interaction = atomtype.Donorize(cand.Interaction)
						break
					}
				}
				continue
			}

			serialIndex[serial] = len(lig.Atoms)
			atomFrame = append(atomFrame, stack[len(stack)-1].frameIndex)
			lig.Atoms = append(lig.Atoms, atom)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeIOError, "failed reading ligand stream")
	}

	dehydrophobicizeAll(lig.Atoms)

	lig.NumHeavyAtoms = len(lig.Atoms)
	for _, f := range lig.Frames {
		if f.Active {
			lig.NumActiveTorsions++
		}
	}
	lig.FlexibilityPenaltyFactor = 1 / (1 + flexibilityCoefficient*float64(lig.NumActiveTorsions))

	lig.Interactions = buildInteractionList(lig.Atoms, atomFrame)

	return lig, nil
}

func atomTypeToken(line string) string {
	if len(line) < 79 {
		return ""
	}
	if line[78] == ' ' {
		return line[77:78]
	}
	return line[77:79]
}

func parseFloatField(line string, start, end int) (float64, error) {
	if end > len(line) {
		return 0, errors.New(errors.CodeParseError, "field out of range")
	}
	return strconv.ParseFloat(strings.TrimSpace(line[start:end]), 64)
}

func isNeighbor(a, b Atom) bool {
	d := a.Source.CovalentRadius() + b.Source.CovalentRadius()
	return vec3.DistanceSqr(a.Coordinate, b.Coordinate) < d*d
}

// dehydrophobicizeAll applies the whole-ligand second pass: every carbon
// covalently bonded to a hetero atom loses its hydrophobic classification.
// Ligands have no residue concept, so the pass runs over the entire atom
// list rather than being scoped the way receptor.Parse scopes it per
// residue.
func dehydrophobicizeAll(atoms []Atom) {
	for i := range atoms {
		if !atoms[i].Source.IsHetero() {
			continue
		}
		for j := range atoms {
			if atoms[j].Source.IsHetero() {
				continue
			}
			if isNeighbor(atoms[i], atoms[j]) {
				atoms[j].Interaction = atomtype.Dehydrophobicize(atoms[j].Interaction)
			}
		}
	}
}

// buildInteractionList enumerates every unordered atom pair not excluded by
// 1-2/1-3/1-4 bond-graph adjacency or same-rigid-frame membership, and
// precomputes each surviving pair's scoring-table pair code.
func buildInteractionList(atoms []Atom, atomFrame []int) []InteractionPair {
	n := len(atoms)
	adjacency := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if isNeighbor(atoms[i], atoms[j]) {
				adjacency[i] = append(adjacency[i], j)
				adjacency[j] = append(adjacency[j], i)
			}
		}
	}

	var interactions []InteractionPair
	for i := 0; i < n; i++ {
		excluded := bondNeighborsWithinDepth(adjacency, i, bondExclusionDepth)
		for j := i + 1; j < n; j++ {
			if excluded[j] {
				continue
			}
			if atomFrame != nil && atomFrame[i] == atomFrame[j] {
				continue
			}
			interactions = append(interactions, InteractionPair{
				I:    i,
				J:    j,
				Pair: scoring.PairCode(atoms[i].Interaction, atoms[j].Interaction),
			})
		}
	}
	return interactions
}

// bondNeighborsWithinDepth returns the set of atom indices reachable from
// start within maxDepth covalent bonds (start itself included).
func bondNeighborsWithinDepth(adjacency [][]int, start, maxDepth int) map[int]bool {
	visited := map[int]bool{start: true}
	frontier := []int{start}
	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []int
		for _, u := range frontier {
			for _, v := range adjacency[u] {
				if !visited[v] {
					visited[v] = true
					next = append(next, v)
				}
			}
		}
		frontier = next
	}
	return visited
}
