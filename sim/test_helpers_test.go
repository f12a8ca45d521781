package sim

import "testing"

// fixedHardware is a deterministic Hardware stub for protocol tests:
// fixed one-tick delays and a forced outcome for non-degenerate draws.
// Degenerate probabilities keep their exact semantics so p=1 links succeed
// regardless of the forced outcome.
type fixedHardware struct {
	succeed bool
	delay   int64
}

func (h *fixedHardware) ScheduleDelay(DelayKind) int64 { return h.delay }

func (h *fixedHardware) DrawSuccess(probability float64) bool {
	if probability >= 1 {
		return true
	}
	if probability <= 0 {
		return false
	}
	return h.succeed
}

// newLinkedPair builds a two-node network (alice, bob) with a classical
// channel and a quantum link between them.
func newLinkedPair(t *testing.T, slots int, delay int64, successProb, fidelity float64, hw Hardware) (*Network, *Node, *Node) {
	t.Helper()
	net := NewNetwork(NewTimeline())
	a := net.AddNode("alice", slots, hw)
	b := net.AddNode("bob", slots, hw)
	if err := net.Connect("alice", "bob", delay); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := net.AddLink("alice", "bob", successProb, fidelity); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	return net, a, b
}

// loadGenerationRules installs the initiator rule on a toward b and the
// responder rule on b toward a, covering all slots.
func loadGenerationRules(t *testing.T, a, b *Node, slots int) {
	t.Helper()
	if err := b.Resources.Rules.Load(NewGenerationRule(a.Name, false, 0, slots, 0)); err != nil {
		t.Fatalf("load responder rule: %v", err)
	}
	if err := a.Resources.Rules.Load(NewGenerationRule(b.Name, true, 0, slots, 0)); err != nil {
		t.Fatalf("load initiator rule: %v", err)
	}
}
