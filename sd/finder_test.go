package sd

import "testing"

func TestTargetFinder_Update_IndexesByContainerID(t *testing.T) {
	f, err := NewTargetFinder(16)
	if err != nil {
		t.Fatal(err)
	}
	f.Update(TargetsOptions{
		Targets: []DiscoveryTarget{
			{labelContainerID: "cid1", "app": "checkout"},
		},
	})

	f.mu.Lock()
	target, ok := f.cidToTarget["cid1"]
	f.mu.Unlock()
	if !ok {
		t.Fatal("expected target indexed by container id")
	}
	if target.Labels()["app"] != "checkout" {
		t.Fatal("expected label to survive indexing")
	}
}

func TestTargetFinder_FindTarget_ReturnsNilWhenNothingMatches(t *testing.T) {
	f, err := NewTargetFinder(16)
	if err != nil {
		t.Fatal(err)
	}
	f.Update(TargetsOptions{
		Targets: []DiscoveryTarget{{labelContainerID: "cid1", "app": "checkout"}},
	})

	if target := f.FindTarget(999999); target != nil {
		t.Fatalf("expected nil target for an unmatched pid, got %v", target.Labels())
	}
}

func TestTargetFinder_RemovePid(t *testing.T) {
	f, err := NewTargetFinder(16)
	if err != nil {
		t.Fatal(err)
	}

	f.mu.Lock()
	f.pidToTarget[42] = NewTarget("", 0, DiscoveryTarget{"app": "x"})
	f.mu.Unlock()
	f.containerIDs.Add(uint32(42), "cid1")

	f.RemovePid(42)

	f.mu.Lock()
	_, cached := f.pidToTarget[42]
	f.mu.Unlock()
	if cached {
		t.Fatal("expected pid cache entry to be removed")
	}
	if _, ok := f.containerIDs.Get(42); ok {
		t.Fatal("expected container id cache entry to be removed")
	}
}
