package box

import (
	"testing"

	"github.com/turtacn/idock-worker/internal/math/vec3"
)

func TestNew_DefaultGranularity(t *testing.T) {
	b := New(vec3.Vec3{0, 0, 0}, vec3.Vec3{20, 20, 20}, 0)
	if b.Granularity != DefaultGranularity {
		t.Errorf("Granularity = %v, want %v", b.Granularity, DefaultGranularity)
	}
}

func TestNew_CornersAndProbes(t *testing.T) {
	b := New(vec3.Vec3{10, 10, 10}, vec3.Vec3{20, 20, 20}, 1.0)
	if b.Corner1 != (vec3.Vec3{0, 0, 0}) {
		t.Errorf("Corner1 = %v, want (0,0,0)", b.Corner1)
	}
	if b.Corner2 != (vec3.Vec3{20, 20, 20}) {
		t.Errorf("Corner2 = %v, want (20,20,20)", b.Corner2)
	}
	for i := 0; i < 3; i++ {
		if b.NumProbes[i] != 21 {
			t.Errorf("NumProbes[%d] = %d, want 21", i, b.NumProbes[i])
		}
	}
}

func TestWithin(t *testing.T) {
	b := New(vec3.Vec3{0, 0, 0}, vec3.Vec3{10, 10, 10}, 1.0)
	if !b.Within(vec3.Vec3{0, 0, 0}) {
		t.Error("center should be within box")
	}
	if b.Within(vec3.Vec3{100, 0, 0}) {
		t.Error("far point should not be within box")
	}
	if !b.Within(b.Corner1) {
		t.Error("Corner1 should be within box (inclusive boundary)")
	}
	if !b.Within(b.Corner2) {
		t.Error("Corner2 should be within box (inclusive boundary)")
	}
}

func TestProbeIndex(t *testing.T) {
	b := New(vec3.Vec3{0, 0, 0}, vec3.Vec3{10, 10, 10}, 1.0)
	idx := b.ProbeIndex(b.Corner1)
	if idx != ([3]int{0, 0, 0}) {
		t.Errorf("ProbeIndex(corner1) = %v, want (0,0,0)", idx)
	}
}

func TestPartitionIndex_ClampsToLastPartition(t *testing.T) {
	b := New(vec3.Vec3{0, 0, 0}, vec3.Vec3{10, 10, 10}, 1.0)
	idx := b.PartitionIndex(b.Corner2)
	for i := 0; i < 3; i++ {
		if idx[i] >= b.NumPartitions[i] {
			t.Errorf("PartitionIndex axis %d = %d should be < NumPartitions %d", i, idx[i], b.NumPartitions[i])
		}
	}
}

func TestWithinCutoff(t *testing.T) {
	a := vec3.Vec3{0, 0, 0}
	b := vec3.Vec3{3, 4, 0}
	if !WithinCutoff(a, b, 26) {
		t.Error("distance 5 should be within cutoff sqrt(26)")
	}
	if WithinCutoff(a, b, 24) {
		t.Error("distance 5 should not be within cutoff sqrt(24)")
	}
}
