// Package job implements the per-ligand and per-slice orchestration layer:
// fixed-column property filtering, header-offset lookup, the grid-map /
// Monte-Carlo / merge / rescore pipeline for a single ligand, per-slice CSV
// row formatting, and the phase-2 slice-combining pass that reconstructs
// conformations from high-precision slice CSV rows to produce the final
// log and docked-pose artifacts.
//
// Grounded on spec.md §6 and SPEC_FULL.md §6.1/§6.5/§6.6, concretizing
// _examples/original_source/idock/src/main.cpp's single-threaded per-slice
// loop (REMARK property parsing, on-demand grid-map population, Monte
// Carlo fan-out, result merge, RF-Score rescoring, slice CSV emission, and
// the phase-2 combine pass) over this repository's pool/montecarlo/merge/
// rescore packages.
package job

import (
	"strconv"
	"strings"

	"github.com/turtacn/idock-worker/pkg/errors"
)

// Properties holds the nine physicochemical fields carried in a ligand's
// REMARK header line, used only by the external property filter.
type Properties struct {
	ID                string
	MolecularWeight   float64
	LogP              float64
	ApolarDesolvation float64
	PolarDesolvation  float64
	HBondDonors       int
	HBondAcceptors    int
	TPSA              int
	NetCharge         int
	RotatableBonds    int
}

// Fixed column ranges (half-open, 0-indexed) of a ligand REMARK property
// line, transcribed directly from main.cpp's right_cast<T>(property, begin,
// end) calls:
//
//	REMARK     00000007  277.364     2.51        9   -14.93   0   4  39   0   8
//	0         1         2         3         4         5         6         7
//	0123456789012345678901234567890123456789012345678901234567890123456789012345
const (
	colIDBegin, colIDEnd   = 11, 19
	colMwtBegin, colMwtEnd = 21, 28
	colLgpBegin, colLgpEnd = 30, 37
	colAdsBegin, colAdsEnd = 39, 46
	colPdsBegin, colPdsEnd = 48, 55
	colHbdBegin, colHbdEnd = 57, 59
	colHbaBegin, colHbaEnd = 61, 63
	colPsaBegin, colPsaEnd = 65, 67
	colChgBegin, colChgEnd = 69, 71
	colNrbBegin, colNrbEnd = 73, 75
)

func column(line string, begin, end int) string {
	if begin >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[begin:end])
}

func columnFloat(line string, begin, end int) (float64, error) {
	s := column(line, begin, end)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeParseError, "malformed property field")
	}
	return v, nil
}

func columnInt(line string, begin, end int) (int, error) {
	s := column(line, begin, end)
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeParseError, "malformed property field")
	}
	return v, nil
}

// ParseProperties parses a single ligand REMARK property line into its nine
// filter fields plus the ligand's ID, by fixed column position exactly as
// main.cpp's right_cast calls do.
func ParseProperties(line string) (Properties, error) {
	var p Properties
	var err error

	p.ID = column(line, colIDBegin, colIDEnd)
	if p.MolecularWeight, err = columnFloat(line, colMwtBegin, colMwtEnd); err != nil {
		return Properties{}, err
	}
	if p.LogP, err = columnFloat(line, colLgpBegin, colLgpEnd); err != nil {
		return Properties{}, err
	}
	if p.ApolarDesolvation, err = columnFloat(line, colAdsBegin, colAdsEnd); err != nil {
		return Properties{}, err
	}
	if p.PolarDesolvation, err = columnFloat(line, colPdsBegin, colPdsEnd); err != nil {
		return Properties{}, err
	}
	if p.HBondDonors, err = columnInt(line, colHbdBegin, colHbdEnd); err != nil {
		return Properties{}, err
	}
	if p.HBondAcceptors, err = columnInt(line, colHbaBegin, colHbaEnd); err != nil {
		return Properties{}, err
	}
	if p.TPSA, err = columnInt(line, colPsaBegin, colPsaEnd); err != nil {
		return Properties{}, err
	}
	if p.NetCharge, err = columnInt(line, colChgBegin, colChgEnd); err != nil {
		return Properties{}, err
	}
	if p.RotatableBonds, err = columnInt(line, colNrbBegin, colNrbEnd); err != nil {
		return Properties{}, err
	}
	return p, nil
}

// Bounds is the inclusive [lb,ub] range per filter field, per SPEC_FULL.md
// §6.7's configuration enumeration.
type Bounds struct {
	MwtLB, MwtUB float64
	LogPLB, LogPUB float64
	AdsLB, AdsUB float64
	PdsLB, PdsUB float64
	HBDLB, HBDUB int
	HBALB, HBAUB int
	TPSALB, TPSAUB int
	ChgLB, ChgUB int
	NrbLB, NrbUB int
}

// Admits reports whether p satisfies every bound in b, matching main.cpp's
// single conjunctive filter condition.
func (b Bounds) Admits(p Properties) bool {
	return b.MwtLB <= p.MolecularWeight && p.MolecularWeight <= b.MwtUB &&
		b.LogPLB <= p.LogP && p.LogP <= b.LogPUB &&
		b.AdsLB <= p.ApolarDesolvation && p.ApolarDesolvation <= b.AdsUB &&
		b.PdsLB <= p.PolarDesolvation && p.PolarDesolvation <= b.PdsUB &&
		b.HBDLB <= p.HBondDonors && p.HBondDonors <= b.HBDUB &&
		b.HBALB <= p.HBondAcceptors && p.HBondAcceptors <= b.HBAUB &&
		b.TPSALB <= p.TPSA && p.TPSA <= b.TPSAUB &&
		b.ChgLB <= p.NetCharge && p.NetCharge <= b.ChgUB &&
		b.NrbLB <= p.RotatableBonds && p.RotatableBonds <= b.NrbUB
}

// RandomSample reports whether a ligand that already passed Bounds.Admits
// should still be docked, given the job's filtering_probability (the ratio
// of a configured ligand-count target to the slice's total candidate
// count). u01 is a caller-supplied uniform [0,1) sample so the decision
// stays deterministic under a task-local RNG, matching main.cpp's
// `u01(rng) > filtering_probability` random-thinning step.
func RandomSample(u01, filteringProbability float64) bool {
	return u01 <= filteringProbability
}
