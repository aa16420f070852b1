package merge

import (
	"testing"

	"github.com/turtacn/idock-worker/internal/domain/docking/result"
	"github.com/turtacn/idock-worker/internal/math/vec3"
)

func coordsAt(x float64) []vec3.Vec3 {
	return []vec3.Vec3{{x, 0, 0}}
}

func TestAdd_DistinctClustersBothKept(t *testing.T) {
	l := NewList(10, ByEnergy)
	l.Add(result.Result{Energy: -5, Coords: coordsAt(0)}, 1.0)
	l.Add(result.Result{Energy: -3, Coords: coordsAt(10)}, 1.0)

	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 for two far-apart results", l.Len())
	}
	rs := l.Results()
	if rs[0].Energy != -5 || rs[1].Energy != -3 {
		t.Errorf("results not energy-ascending: %v", rs)
	}
}

func TestAdd_SameClusterKeepsBetterEnergy(t *testing.T) {
	l := NewList(10, ByEnergy)
	l.Add(result.Result{Energy: -3, Coords: coordsAt(0)}, 100.0)
	l.Add(result.Result{Energy: -5, Coords: coordsAt(0.1)}, 100.0) // within threshold, better

	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 (same cluster)", l.Len())
	}
	if l.Results()[0].Energy != -5 {
		t.Errorf("expected the better (-5) energy to survive, got %v", l.Results()[0].Energy)
	}
}

func TestAdd_SameClusterWorseIsDiscarded(t *testing.T) {
	l := NewList(10, ByEnergy)
	l.Add(result.Result{Energy: -5, Coords: coordsAt(0)}, 100.0)
	l.Add(result.Result{Energy: -3, Coords: coordsAt(0.1)}, 100.0) // within threshold, worse

	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	if l.Results()[0].Energy != -5 {
		t.Errorf("expected the original (-5) energy to be retained, got %v", l.Results()[0].Energy)
	}
}

func TestAdd_CapacityEvictsWorstEntry(t *testing.T) {
	l := NewList(2, ByEnergy)
	l.Add(result.Result{Energy: -1, Coords: coordsAt(0)}, 1.0)
	l.Add(result.Result{Energy: -2, Coords: coordsAt(100)}, 1.0)
	l.Add(result.Result{Energy: -10, Coords: coordsAt(200)}, 1.0) // best, distinct cluster, forces an eviction

	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (capacity-bounded)", l.Len())
	}
	rs := l.Results()
	if rs[0].Energy != -10 || rs[1].Energy != -2 {
		t.Errorf("expected the worst entry (-1) evicted, got %v", rs)
	}
}

func TestAdd_ByClusteringEnergyUsesClusteringField(t *testing.T) {
	l := NewList(10, ByClusteringEnergy)
	l.Add(result.Result{Energy: -1, ClusteringEnergy: -9, Coords: coordsAt(0)}, 100.0)
	l.Add(result.Result{Energy: -100, ClusteringEnergy: -2, Coords: coordsAt(0.1)}, 100.0)

	if l.Results()[0].ClusteringEnergy != -9 {
		t.Errorf("expected the lower-clustering-energy result to survive, got %v", l.Results()[0])
	}
}
