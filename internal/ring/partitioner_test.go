package ring

import (
	"fmt"
	"math"
	"testing"

	"github.com/ringdb/ringdb/pkg/types"
)

func testNodes() []types.Node {
	return []types.Node{
		{IPAddress: "10.0.0.1", Port: 9042, TokenRange: types.TokenRange{Start: math.MinInt64, End: -3074457345618258603}},
		{IPAddress: "10.0.0.2", Port: 9042, TokenRange: types.TokenRange{Start: -3074457345618258602, End: 3074457345618258602}},
		{IPAddress: "10.0.0.3", Port: 9042, TokenRange: types.TokenRange{Start: 3074457345618258603, End: math.MaxInt64}},
	}
}

func TestHashDeterministic(t *testing.T) {
	if Hash("testkey") != Hash("testkey") {
		t.Error("same key hashed to different tokens")
	}
}

func TestReplicasForDistinctAndConsecutive(t *testing.T) {
	p, err := New(testNodes(), "10.0.0.1")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)
		replicas, err := p.ReplicasFor(key)
		if err != nil {
			t.Fatalf("ReplicasFor(%s) failed: %v", key, err)
		}
		if len(replicas) != 3 {
			t.Fatalf("expected 3 replicas, got %d", len(replicas))
		}

		seen := make(map[string]bool)
		for _, r := range replicas {
			if seen[r.IPAddress] {
				t.Errorf("duplicate replica %s for key %s", r.IPAddress, key)
			}
			seen[r.IPAddress] = true
		}

		// The first replica owns the key's token; the others are its ring
		// successors.
		if !replicas[0].TokenRange.Contains(Hash(key)) {
			t.Errorf("first replica does not own key %s", key)
		}
	}
}

func TestReplicasAgreeAcrossNodes(t *testing.T) {
	nodes := testNodes()
	p1, _ := New(nodes, "10.0.0.1")
	p2, _ := New(nodes, "10.0.0.2")
	p3, _ := New(nodes, "10.0.0.3")

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", i)
		r1, _ := p1.ReplicasFor(key)
		r2, _ := p2.ReplicasFor(key)
		r3, _ := p3.ReplicasFor(key)

		for j := range r1 {
			if !r1[j].Equal(r2[j]) || !r1[j].Equal(r3[j]) {
				t.Fatalf("replica sets diverge for key %s", key)
			}
		}
	}
}

func TestReplicasForMalformedRing(t *testing.T) {
	// A ring with a hole: keys hashing into the gap have no owner.
	nodes := []types.Node{
		{IPAddress: "10.0.0.1", Port: 9042, TokenRange: types.TokenRange{Start: 0, End: 100}},
	}
	p, err := New(nodes, "10.0.0.1")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	found := false
	for i := 0; i < 1000; i++ {
		if _, err := p.ReplicasFor(fmt.Sprintf("key-%d", i)); err != nil {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected some key to miss the partial ring")
	}
}

func TestAllNodes(t *testing.T) {
	p, _ := New(testNodes(), "10.0.0.2")
	all := p.AllNodes()
	if len(all) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(all))
	}
	if !p.Self().Equal(all[1]) {
		t.Error("self node mismatch")
	}
	if !p.IsSelf(all[1]) || p.IsSelf(all[0]) {
		t.Error("IsSelf misidentifies nodes")
	}
}

func TestNewUnknownNode(t *testing.T) {
	if _, err := New(testNodes(), "10.9.9.9"); err == nil {
		t.Error("expected error for node missing from the ring")
	}
}
