package job

import "testing"

const sampleRemark = "REMARK     00000007  277.364     2.51        9   -14.93   0   4  39   0   8"

func TestParseProperties_FixedColumns(t *testing.T) {
	p, err := ParseProperties(sampleRemark)
	if err != nil {
		t.Fatalf("ParseProperties failed: %v", err)
	}
	if p.ID != "00000007" {
		t.Errorf("ID = %q, want 00000007", p.ID)
	}
	if p.MolecularWeight != 277.364 {
		t.Errorf("MolecularWeight = %v, want 277.364", p.MolecularWeight)
	}
	if p.LogP != 2.51 {
		t.Errorf("LogP = %v, want 2.51", p.LogP)
	}
	if p.ApolarDesolvation != 9 {
		t.Errorf("ApolarDesolvation = %v, want 9", p.ApolarDesolvation)
	}
	if p.PolarDesolvation != -14.93 {
		t.Errorf("PolarDesolvation = %v, want -14.93", p.PolarDesolvation)
	}
	if p.HBondDonors != 0 {
		t.Errorf("HBondDonors = %v, want 0", p.HBondDonors)
	}
	if p.HBondAcceptors != 4 {
		t.Errorf("HBondAcceptors = %v, want 4", p.HBondAcceptors)
	}
	if p.TPSA != 39 {
		t.Errorf("TPSA = %v, want 39", p.TPSA)
	}
	if p.NetCharge != 0 {
		t.Errorf("NetCharge = %v, want 0", p.NetCharge)
	}
	if p.RotatableBonds != 8 {
		t.Errorf("RotatableBonds = %v, want 8", p.RotatableBonds)
	}
}

func TestParseProperties_MalformedFieldIsParseError(t *testing.T) {
	bad := "REMARK     00000007  not_a_num    2.51        9   -14.93   0   4  39   0   8"
	if _, err := ParseProperties(bad); err == nil {
		t.Error("expected a parse error for a non-numeric molecular weight field")
	}
}

func wideOpenBounds() Bounds {
	return Bounds{
		MwtLB: -1e9, MwtUB: 1e9,
		LogPLB: -1e9, LogPUB: 1e9,
		AdsLB: -1e9, AdsUB: 1e9,
		PdsLB: -1e9, PdsUB: 1e9,
		HBDLB: -1 << 30, HBDUB: 1 << 30,
		HBALB: -1 << 30, HBAUB: 1 << 30,
		TPSALB: -1 << 30, TPSAUB: 1 << 30,
		ChgLB: -1 << 30, ChgUB: 1 << 30,
		NrbLB: -1 << 30, NrbUB: 1 << 30,
	}
}

func TestBounds_AdmitsWithinRange(t *testing.T) {
	p, err := ParseProperties(sampleRemark)
	if err != nil {
		t.Fatal(err)
	}
	if !wideOpenBounds().Admits(p) {
		t.Error("wide-open bounds should admit any property set")
	}
}

func TestBounds_RejectsOutOfRangeHBondDonors(t *testing.T) {
	p, err := ParseProperties(sampleRemark)
	if err != nil {
		t.Fatal(err)
	}
	b := wideOpenBounds()
	b.HBDLB, b.HBDUB = 5, 10 // sample has hbd=0
	if b.Admits(p) {
		t.Error("expected rejection when hbd falls below HBDLB")
	}
}

func TestRandomSample(t *testing.T) {
	if !RandomSample(0.3, 0.5) {
		t.Error("u01=0.3 should be admitted at filtering_probability=0.5")
	}
	if RandomSample(0.7, 0.5) {
		t.Error("u01=0.7 should be rejected at filtering_probability=0.5")
	}
}
