// Package rescore implements the RF-Score random-forest rescoring pass
// applied to a Monte-Carlo winner: a 42-feature vector over element-pair
// contact counts and the scoring function's five raw terms, fed through a
// loaded random-forest regressor.
//
// Grounded on spec.md's mention of RF-Score rescoring and
// _examples/original_source/idock/src/main.cpp's feature-vector
// construction loop (the only place in the retrieved pack that builds
// the vector; neither forest.hpp/forest.cpp nor the
// "pdbbind-latest-refined-x42.rf" file itself was retrieved, so the
// forest's on-disk format and traversal are this package's own design —
// see LoadForest's doc comment and DESIGN.md for that explicit
// boundary). The 9(ligand)×4(protein) = 36 element-pair split is the
// well-known RF-Score-v1 scheme (Ballester & Mitchell): ligand atoms are
// typed over 9 elements, protein/receptor atoms only over the four most
// common (C, N, O, S).
package rescore

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/turtacn/idock-worker/internal/domain/docking/atomtype"
	"github.com/turtacn/idock-worker/internal/domain/docking/ligand"
	"github.com/turtacn/idock-worker/internal/domain/docking/receptor"
	"github.com/turtacn/idock-worker/internal/domain/docking/scoring"
	"github.com/turtacn/idock-worker/internal/math/vec3"
	"github.com/turtacn/idock-worker/pkg/errors"
)

// NumFeatures is the length of the feature vector RF-Score scores: 36
// element-pair contact counts, 5 raw scoring-function terms, and 1
// ligand flexibility-penalty factor.
const NumFeatures = 42

// rfScoreCutoffSqr and vinaCutoffSqr are the two nested distance cutoffs
// of main.cpp's feature loop: 12A for the element-pair contact counts,
// 8A (the scoring function's own cutoff) for the five raw terms.
const (
	rfScoreCutoffSqr = 144.0
	vinaCutoffSqr    = 64.0

	numProteinRescoreTypes = 4 // RFC, RFN, RFO, RFS only; see package doc.
)

// proteinRescoreIndex narrows a receptor atom's RF-Score type to the four
// protein-side classes (C, N, O, S) the 36-slot element-pair table
// reserves for it; any other element contributes no pair-count feature.
func proteinRescoreIndex(s atomtype.Source) (int, bool) {
	r, ok := atomtype.SourceToRescore(s)
	if !ok || int(r) >= numProteinRescoreTypes {
		return 0, false
	}
	return int(r), true
}

// BuildFeatureVector constructs the 42-element RF-Score feature vector
// for a posed ligand (heavy-atom world coordinates in coords, index-
// aligned with lig.Atoms) against receptor rec. Grounded directly on
// main.cpp's feature loop
// (lines ~373-390 of src/main.cpp): for every ligand heavy atom with a
// known RF-Score type and every receptor atom with a known (and
// protein-narrowed) RF-Score type, within 12A increment the element-pair
// count at v[(ligandType*4)+proteinType]; within the tighter 8A Vina
// cutoff, additionally accumulate the five raw scoring terms at v[36:41]
// when both atoms also have a known scoring Interaction type. The final
// slot v[41] holds the ligand's flexibility penalty factor.
func BuildFeatureVector(lig *ligand.Ligand, coords []vec3.Vec3, rec *receptor.Receptor) []float64 {
	v := make([]float64, NumFeatures)

	for i, la := range lig.Atoms {
		ligandIdx, ok := atomtype.SourceToRescore(la.Source)
		if !ok {
			continue
		}
		for _, ra := range rec.Atoms {
			proteinIdx, ok := proteinRescoreIndex(ra.Source)
			if !ok {
				continue
			}
			distSqr := vec3.DistanceSqr(coords[i], ra.Coordinate)
			if distSqr >= rfScoreCutoffSqr {
				continue
			}
			v[int(ligandIdx)*numProteinRescoreTypes+proteinIdx]++

			if distSqr >= vinaCutoffSqr {
				continue
			}
			scoring.AccumulateVectorized(v[36:41], la.Interaction, ra.Interaction, distSqr)
		}
	}

	v[41] = lig.FlexibilityPenaltyFactor
	return v
}

// Forest scores a feature vector via an ensemble of regression trees,
// averaging each tree's predicted leaf value.
type Forest struct {
	trees []tree
}

type tree struct {
	nodes []treeNode
}

type treeNode struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      int
	right     int
}

// Score runs v through every tree in f and returns the ensemble average.
func (f *Forest) Score(v []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.trees {
		sum += t.evaluate(v)
	}
	return sum / float64(len(f.trees))
}

func (t *tree) evaluate(v []float64) float64 {
	idx := 0
	for {
		n := t.nodes[idx]
		if n.leaf {
			return n.value
		}
		if v[n.feature] < n.threshold {
			idx = n.left
		} else {
			idx = n.right
		}
	}
}

// LoadForest parses a random-forest model from r.
//
// No copy of "pdbbind-latest-refined-x42.rf" or its format description
// was retrieved anywhere in the example pack — only the load/score call
// site in main.cpp ("f.load(...)", "f(v)"). This repository therefore
// defines its own line-oriented text serialization rather than guess at
// an unseen binary layout:
//
//	TREE <numNodes>
//	<nodeIndex> LEAF <value>
//	<nodeIndex> SPLIT <featureIndex> <threshold> <leftChildIndex> <rightChildIndex>
//	...repeated per tree...
//
// Node 0 of each TREE block is its root. This boundary is recorded in
// DESIGN.md: the model file itself is produced by an offline training
// step outside this repository's scope (per spec.md's Non-goals around
// model training), so only the loader's parse contract needs to match
// whatever artifact that step emits.
func LoadForest(r io.Reader) (*Forest, error) {
	scanner := bufio.NewScanner(r)
	f := &Forest{}
	var current *tree

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		if fields[0] == "TREE" {
			if len(fields) != 2 {
				return nil, errors.New(errors.CodeParseError, "malformed TREE header: "+line)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeParseError, "invalid TREE node count")
			}
			f.trees = append(f.trees, tree{nodes: make([]treeNode, n)})
			current = &f.trees[len(f.trees)-1]
			continue
		}

		if current == nil {
			return nil, errors.New(errors.CodeParseError, "node record before any TREE header: "+line)
		}

		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeParseError, "invalid node index")
		}
		if idx < 0 || idx >= len(current.nodes) {
			return nil, errors.New(errors.CodeParseError, fmt.Sprintf("node index %d out of range for tree of size %d", idx, len(current.nodes)))
		}

		switch fields[1] {
		case "LEAF":
			value, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeParseError, "invalid leaf value")
			}
			current.nodes[idx] = treeNode{leaf: true, value: value}
		case "SPLIT":
			if len(fields) != 6 {
				return nil, errors.New(errors.CodeParseError, "malformed SPLIT record: "+line)
			}
			feature, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeParseError, "invalid split feature index")
			}
			threshold, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeParseError, "invalid split threshold")
			}
			left, err := strconv.Atoi(fields[4])
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeParseError, "invalid split left child")
			}
			right, err := strconv.Atoi(fields[5])
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeParseError, "invalid split right child")
			}
			current.nodes[idx] = treeNode{feature: feature, threshold: threshold, left: left, right: right}
		default:
			return nil, errors.New(errors.CodeParseError, "unknown node record kind: "+fields[1])
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeIOError, "reading random forest model")
	}
	return f, nil
}
