package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newChain builds the alice - bob - charlie topology: bob holds one slot per
// side, the end nodes hold one slot each, and the ends initiate generation.
func newChain(t *testing.T, hw Hardware, leftFid, rightFid float64) (*Network, *Node, *Node, *Node) {
	t.Helper()
	net := NewNetwork(NewTimeline())
	a := net.AddNode("alice", 1, hw)
	b := net.AddNode("bob", 2, hw)
	c := net.AddNode("charlie", 1, hw)
	require.NoError(t, net.Connect("alice", "bob", 10))
	require.NoError(t, net.Connect("bob", "charlie", 10))
	require.NoError(t, net.AddLink("alice", "bob", 1.0, leftFid))
	require.NoError(t, net.AddLink("bob", "charlie", 1.0, rightFid))
	return net, a, b, c
}

func loadChainRules(t *testing.T, a, b, c *Node, swapProb, degradation float64) {
	t.Helper()
	require.NoError(t, b.Resources.Rules.Load(NewSwappingRule("alice", "charlie", swapProb, degradation, 10)))
	require.NoError(t, a.Resources.Rules.Load(NewSwapEndRule("bob", 10)))
	require.NoError(t, c.Resources.Rules.Load(NewSwapEndRule("bob", 10)))
	require.NoError(t, b.Resources.Rules.Load(NewGenerationRule("alice", false, 0, 1, 0)))
	require.NoError(t, b.Resources.Rules.Load(NewGenerationRule("charlie", false, 1, 2, 0)))
	require.NoError(t, a.Resources.Rules.Load(NewGenerationRule("bob", true, 0, 1, 0)))
	require.NoError(t, c.Resources.Rules.Load(NewGenerationRule("bob", true, 0, 1, 0)))
}

func TestSwapping_ChainEndsEntangleAtFidelityProduct(t *testing.T) {
	// GIVEN a three-node chain with perfect links and a perfect swap
	net, a, b, c := newChain(t, &fixedHardware{succeed: true, delay: 1}, 0.9, 0.8)
	loadChainRules(t, a, b, c, 1.0, 1.0)

	// WHEN the simulation runs to quiescence
	net.Timeline.RunUntil(100000)

	// THEN the end nodes hold one mutual pair at the product fidelity
	require.Equal(t, 1, net.Metrics.SwapAttempts)
	require.Equal(t, 1, net.Metrics.SwapSuccesses)

	left := a.Memory.Get(0)
	right := c.Memory.Get(0)
	require.Equal(t, Entangled, left.State)
	require.Equal(t, Entangled, right.State)
	assert.Equal(t, "charlie", left.RemoteNode)
	assert.Equal(t, "alice", right.RemoteNode)
	assert.Equal(t, right.Name, left.RemoteMemo)
	assert.Equal(t, left.Name, right.RemoteMemo)
	assert.InDelta(t, 0.9*0.8, left.Fidelity, 1e-12)
	assert.InDelta(t, 0.9*0.8, right.Fidelity, 1e-12)

	// AND the middle node released both of its slots
	assert.Equal(t, 0, b.Memory.EntangledCount())
}

func TestSwapping_DegradationAppliesToFidelity(t *testing.T) {
	net, a, b, c := newChain(t, &fixedHardware{succeed: true, delay: 1}, 0.9, 0.9)
	loadChainRules(t, a, b, c, 1.0, 0.95)

	net.Timeline.RunUntil(100000)

	require.Equal(t, 1, net.Metrics.SwapSuccesses)
	assert.InDelta(t, 0.9*0.9*0.95, a.Memory.Get(0).Fidelity, 1e-12)
	assert.InDelta(t, 0.9*0.9*0.95, c.Memory.Get(0).Fidelity, 1e-12)
}

func TestSwapping_FailedMeasurementRevertsAllThreeNodes(t *testing.T) {
	// GIVEN a swap that always fails (probability 0 short-circuits)
	net, a, b, c := newChain(t, &fixedHardware{succeed: true, delay: 1}, 0.9, 0.8)
	loadChainRules(t, a, b, c, 0.0, 1.0)

	// WHEN several generate-swap-fail cycles run
	net.Timeline.RunUntil(500)

	// THEN no end-to-end pair ever appears and failures revert cleanly
	assert.Greater(t, net.Metrics.SwapAttempts, 1)
	assert.Equal(t, 0, net.Metrics.SwapSuccesses)
	assert.NotEqual(t, "charlie", a.Memory.Get(0).RemoteNode)
	assert.NotEqual(t, "alice", c.Memory.Get(0).RemoteNode)
}

func TestSwapping_RejectAfterPartialConfirmAbortsPairedEnd(t *testing.T) {
	// GIVEN a chain where charlie never offers its slot for swapping, so
	// bob's swap negotiation gets alice's confirmation and charlie's reject
	net, a, b, c := newChain(t, &fixedHardware{succeed: true, delay: 1}, 0.9, 0.8)
	require.NoError(t, b.Resources.Rules.Load(NewSwappingRule("alice", "charlie", 1.0, 1.0, 10)))
	require.NoError(t, a.Resources.Rules.Load(NewSwapEndRule("bob", 10)))
	require.NoError(t, b.Resources.Rules.Load(NewGenerationRule("alice", false, 0, 1, 0)))
	require.NoError(t, b.Resources.Rules.Load(NewGenerationRule("charlie", false, 1, 2, 0)))
	require.NoError(t, a.Resources.Rules.Load(NewGenerationRule("bob", true, 0, 1, 0)))
	require.NoError(t, c.Resources.Rules.Load(NewGenerationRule("bob", true, 0, 1, 0)))

	// WHEN the simulation runs well past the reject
	net.Timeline.RunUntil(500)

	// THEN the reject reached bob and bob notified the already-confirmed end
	require.Equal(t, 1, net.Metrics.NegotiationRejects)
	require.Equal(t, 1, net.Metrics.ProtocolsCancelled)
	assert.Equal(t, 0, net.Metrics.SwapAttempts)

	// AND alice's slot was released and regenerated instead of staying
	// claimed by the orphaned endpoint protocol
	assert.Equal(t, 3, net.Metrics.GenerationSuccesses)
	require.Equal(t, Entangled, b.Memory.Get(0).State)
	assert.Equal(t, "alice", b.Memory.Get(0).RemoteNode)
	for _, p := range a.protoByName {
		assert.NotEqual(t, Active, p.State(), "%s left active after abort", p.Name())
	}
}

func TestSwapping_NoSwapWithoutBothSides(t *testing.T) {
	// GIVEN a chain whose right link is dead
	net := NewNetwork(NewTimeline())
	hw := &fixedHardware{succeed: true, delay: 1}
	a := net.AddNode("alice", 1, hw)
	b := net.AddNode("bob", 2, hw)
	c := net.AddNode("charlie", 1, hw)
	require.NoError(t, net.Connect("alice", "bob", 10))
	require.NoError(t, net.Connect("bob", "charlie", 10))
	require.NoError(t, net.AddLink("alice", "bob", 1.0, 0.9))
	require.NoError(t, net.AddLink("bob", "charlie", 0.0, 0.8))
	loadChainRules(t, a, b, c, 1.0, 1.0)

	net.Timeline.RunUntil(500)

	// THEN the left pair exists but is claimed by a swap that can never
	// complete its right side, and no measurement ran
	assert.Equal(t, 0, net.Metrics.SwapAttempts)
	assert.Equal(t, 0, c.Memory.EntangledCount())
}
