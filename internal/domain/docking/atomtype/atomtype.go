// Package atomtype defines the three atom-typing schemes used across the
// docking pipeline: the AutoDock4 "source" type parsed directly from PDBQT
// files, the XScore "interaction" type used by the scoring function and grid
// maps, and the RF-Score "rescore" type used by the Random Forest rescorer.
//
// A Source type is refined into an Interaction type once at parse time via
// Donorize/Dehydrophobicize, never re-derived afterwards.
package atomtype

import "fmt"

// Source is an AutoDock4 atom type, the type recorded verbatim in a PDBQT
// atom record.
type Source int

const (
	H  Source = iota // Non-polar hydrogen, bonded to carbon.
	HD               // Polar hydrogen, bonded to a hetero atom.
	C                // Carbon, not in a ring.
	A                // Carbon, in a ring.
	N                // Nitrogen, not a hydrogen bond acceptor.
	NA               // Nitrogen, a hydrogen bond acceptor.
	OA               // Oxygen, a hydrogen bond acceptor.
	S                // Sulfur, not a hydrogen bond acceptor.
	SA               // Sulfur, a hydrogen bond acceptor.
	Se               // Selenium.
	P                // Phosphorus.
	F                // Fluorine.
	Cl               // Chlorine.
	Br               // Bromine.
	I                // Iodine.
	Zn               // Zinc.
	Fe               // Iron.
	Mg               // Magnesium.
	Ca               // Calcium.
	Mn               // Manganese.
	Cu               // Copper.
	Na               // Sodium.
	K                // Potassium.
	Hg               // Mercury.
	Ni               // Nickel.
	Co               // Cobalt.
	Cd               // Cadmium.
	As               // Arsenic.
	Sr               // Strontium.
	numSource        // Number of supported AutoDock4 atom types.
)

var sourceNames = [numSource]string{
	"H", "HD", "C", "A", "N", "NA", "OA", "S", "SA", "Se",
	"P", "F", "Cl", "Br", "I", "Zn", "Fe", "Mg", "Ca", "Mn",
	"Cu", "Na", "K", "Hg", "Ni", "Co", "Cd", "As", "Sr",
}

// String returns the PDBQT atom-type token for s.
func (s Source) String() string {
	if s < 0 || s >= numSource {
		return fmt.Sprintf("Source(%d)", int(s))
	}
	return sourceNames[s]
}

// ParseSource maps a PDBQT atom-type token to a Source. ok is false if the
// token does not match any supported AutoDock4 atom type.
func ParseSource(token string) (s Source, ok bool) {
	for i, name := range sourceNames {
		if name == token {
			return Source(i), true
		}
	}
	return 0, false
}

// Covalent radii in Angstrom, pre-multiplied by 1.1 for bond-detection
// allowance. Values per http://en.wikipedia.org/wiki/Atomic_radii_of_the_elements_(data_page).
var covalentRadii = [numSource]float64{
	0.407, 0.407, 0.847, 0.847, 0.825, 0.825, 0.803, 1.122, 1.122, 1.276,
	1.166, 0.781, 1.089, 1.254, 1.463, 1.441, 1.375, 1.430, 1.914, 1.529,
	1.518, 1.694, 2.156, 1.639, 1.331, 1.386, 1.628, 1.309, 2.112,
}

// CovalentRadius returns the 1.1x-allowance covalent radius of s in Angstrom.
func (s Source) CovalentRadius() float64 {
	return covalentRadii[s]
}

// IsHydrogen reports whether s is H or HD.
func (s Source) IsHydrogen() bool {
	return s == H || s == HD
}

// IsHetero reports whether s is a non-carbon heavy atom.
func (s Source) IsHetero() bool {
	return s >= N
}

// Interaction is an XScore atom type, used by the scoring function and by
// grid-map construction.
type Interaction int

const (
	CH    Interaction = iota // Carbon, hydrophobic, not bonded to a hetero atom.
	CP                       // Carbon, bonded to a hetero atom.
	NP                       // Nitrogen, neither donor nor acceptor.
	ND                       // Nitrogen, hydrogen bond donor.
	NAcc                     // Nitrogen, hydrogen bond acceptor.
	NDA                      // Nitrogen, both donor and acceptor.
	OAcc                     // Oxygen, hydrogen bond acceptor.
	ODA                      // Oxygen, both donor and acceptor.
	SP                       // Sulfur or Selenium.
	PP                       // Phosphorus.
	FH                       // Fluorine, hydrophobic.
	ClH                      // Chlorine, hydrophobic.
	BrH                      // Bromine, hydrophobic.
	IH                       // Iodine, hydrophobic.
	MetD                     // Metal, hydrogen bond donor.
	NumInteraction           // Number of supported XScore atom types.
)

// Van der Waals radii in Angstrom for each Interaction type.
var vdwRadii = [NumInteraction]float64{
	1.9, 1.9, 1.8, 1.8, 1.8, 1.8, 1.7, 1.7, 2.0, 2.1, 1.5, 1.8, 2.0, 2.2, 1.2,
}

// VdwRadius returns the Van der Waals radius of t in Angstrom.
func (t Interaction) VdwRadius() float64 {
	return vdwRadii[t]
}

// IsHydrophobic reports whether t is a hydrophobic carbon or halogen type.
func (t Interaction) IsHydrophobic() bool {
	switch t {
	case CH, FH, ClH, BrH, IH:
		return true
	default:
		return false
	}
}

// IsDonor reports whether t can act as a hydrogen bond donor.
func (t Interaction) IsDonor() bool {
	switch t {
	case ND, NDA, ODA, MetD:
		return true
	default:
		return false
	}
}

// IsAcceptor reports whether t can act as a hydrogen bond acceptor.
func (t Interaction) IsAcceptor() bool {
	switch t {
	case NAcc, NDA, OAcc, ODA:
		return true
	default:
		return false
	}
}

// IsDonorAcceptor reports whether t is either a donor or an acceptor.
func (t Interaction) IsDonorAcceptor() bool {
	return t.IsDonor() || t.IsAcceptor()
}

// HBond reports whether t1 and t2 form a donor/acceptor pair in either order.
func HBond(t1, t2 Interaction) bool {
	return (t1.IsDonor() && t2.IsAcceptor()) || (t2.IsDonor() && t1.IsAcceptor())
}

// sourceToInteraction is the total mapping from Source to Interaction prior
// to any donorize/dehydrophobicize refinement.
var sourceToInteraction = [numSource]Interaction{
	CH, CH, CH, CH, NP, NAcc, OAcc, SP, SP, SP,
	PP, FH, ClH, BrH, IH, MetD, MetD, MetD, MetD, MetD,
	MetD, MetD, MetD, MetD, MetD, MetD, MetD, MetD, MetD,
}

// ToInteraction returns the initial, unrefined Interaction type for s.
// Hydrogen atoms (H, HD) map to CH as a placeholder; callers exclude
// hydrogens from interaction-level processing using s.IsHydrogen.
func (s Source) ToInteraction() Interaction {
	return sourceToInteraction[s]
}

// Rescore is an RF-Score atom type, used by the Random Forest rescorer's
// element-pair-count feature vector. Not every Source type has a mapping;
// see SourceToRescore.
type Rescore int

const (
	RFC Rescore = iota
	RFN
	RFO
	RFS
	RFP
	RFF
	RFCl
	RFBr
	RFI
	NumRescore // Number of supported RF-Score atom types; also the "no mapping" sentinel.
)

var sourceToRescore = [numSource]Rescore{
	NumRescore, NumRescore, RFC, RFC, RFN, RFN, RFO, RFS, RFS, NumRescore,
	RFP, RFF, RFCl, RFBr, RFI, NumRescore, NumRescore, NumRescore, NumRescore, NumRescore,
	NumRescore, NumRescore, NumRescore, NumRescore, NumRescore, NumRescore, NumRescore, NumRescore, NumRescore,
}

// SourceToRescore returns the RF-Score type for s. ok is false if s has no
// RF-Score mapping (all hydrogens and most metals/Se).
func SourceToRescore(s Source) (r Rescore, ok bool) {
	r = sourceToRescore[s]
	return r, r != NumRescore
}

// Donorize revises a nitrogen or oxygen Interaction type to make it a
// hydrogen bond donor. It is a monotonic refinement: NP->ND, NAcc->NDA,
// OAcc->ODA. Any other type is left unchanged.
func Donorize(t Interaction) Interaction {
	switch t {
	case NP:
		return ND
	case NAcc:
		return NDA
	case OAcc:
		return ODA
	default:
		return t
	}
}

// Dehydrophobicize revises a carbon Interaction type to make it non-
// hydrophobic (CP). It must only be called on non-hetero Source atoms; the
// caller is responsible for that invariant since Interaction alone cannot
// recover the originating Source.
func Dehydrophobicize(Interaction) Interaction {
	return CP
}

// HbondDistSqr is the squared distance requirement historically used for
// hydrogen bond geometry checks in the original scoring model.
const HbondDistSqr = 3.5 * 3.5
