package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qnetsim/qnetsim/sim/trace"
)

func runScenario(t *testing.T, spec *ScenarioSpec) *Network {
	t.Helper()
	net, err := BuildNetwork(spec)
	require.NoError(t, err)
	net.Timeline.RunUntil(spec.Horizon)
	return net
}

func TestScenario_TwoNodePerfectLink(t *testing.T) {
	// The canonical smoke scenario: two nodes, ten memories each, perfect
	// link. Every slot ends entangled with a mutual partner reference.
	net := runScenario(t, &ScenarioSpec{
		Seed:    1,
		Horizon: 100000,
		Nodes: []NodeSpec{
			{Name: "alice", Memories: 10},
			{Name: "bob", Memories: 10},
		},
		Links: []LinkSpec{
			{A: "alice", B: "bob", Delay: 10, SuccessProb: 1.0, Fidelity: 0.9},
		},
	})

	a, b := net.Node("alice"), net.Node("bob")
	require.Equal(t, 10, a.Memory.EntangledCount())
	require.Equal(t, 10, b.Memory.EntangledCount())
	for info := range a.Memory.Iterate() {
		partner := b.Memory.Get(info.Index)
		// deterministic pairing: slot i on one end pairs slot i on the other
		assert.Equal(t, partner.Name, info.RemoteMemo)
		assert.Equal(t, info.Name, partner.RemoteMemo)
	}
}

func TestScenario_ThreeNodeSwapChain(t *testing.T) {
	// alice - bob - charlie with perfect links and a perfect swap: the end
	// nodes finish entangled at the product of the link fidelities.
	net := runScenario(t, &ScenarioSpec{
		Seed:    1,
		Horizon: 100000,
		Nodes: []NodeSpec{
			{Name: "alice", Memories: 1},
			{Name: "bob", Memories: 2},
			{Name: "charlie", Memories: 1},
		},
		Links: []LinkSpec{
			{A: "alice", B: "bob", Delay: 10, SuccessProb: 1.0, Fidelity: 0.9, BSlots: []int{0, 1}},
			{A: "charlie", B: "bob", Delay: 10, SuccessProb: 1.0, Fidelity: 0.8, BSlots: []int{1, 2}},
		},
		Swaps: []SwapSpec{
			{Node: "bob", Left: "alice", Right: "charlie", SuccessProb: 1.0, Priority: 10},
		},
	})

	a, b, c := net.Node("alice"), net.Node("bob"), net.Node("charlie")
	require.Equal(t, 1, net.Metrics.SwapSuccesses)
	left, right := a.Memory.Get(0), c.Memory.Get(0)
	require.Equal(t, Entangled, left.State)
	assert.Equal(t, "charlie", left.RemoteNode)
	assert.Equal(t, "alice", right.RemoteNode)
	assert.InDelta(t, 0.72, left.Fidelity, 1e-12)
	assert.InDelta(t, 0.72, right.Fidelity, 1e-12)
	assert.Equal(t, 0, b.Memory.EntangledCount())
}

func TestScenario_SameSeedIsReproducible(t *testing.T) {
	spec := func() *ScenarioSpec {
		return &ScenarioSpec{
			Seed:    99,
			Horizon: 5000,
			Nodes: []NodeSpec{
				{Name: "alice", Memories: 6},
				{Name: "bob", Memories: 6},
			},
			Links: []LinkSpec{
				{A: "alice", B: "bob", Delay: 10, SuccessProb: 0.5, Fidelity: 0.9},
			},
		}
	}

	first := runScenario(t, spec())
	second := runScenario(t, spec())

	assert.Equal(t, first.Metrics.GenerationAttempts, second.Metrics.GenerationAttempts)
	assert.Equal(t, first.Metrics.GenerationSuccesses, second.Metrics.GenerationSuccesses)
	assert.Equal(t, first.Timeline.ExecutedEvents, second.Timeline.ExecutedEvents)
	for _, name := range []string{"alice", "bob"} {
		fm := first.Node(name).Memory
		sm := second.Node(name).Memory
		for info := range fm.Iterate() {
			other := sm.Get(info.Index)
			assert.Equal(t, info.State, other.State, "%s state diverged", info.Name)
			assert.Equal(t, info.Fidelity, other.Fidelity, "%s fidelity diverged", info.Name)
			assert.Equal(t, info.RemoteMemo, other.RemoteMemo, "%s partner diverged", info.Name)
		}
	}
}

func TestScenario_TraceRecordsNegotiationAndLifecycle(t *testing.T) {
	spec := &ScenarioSpec{
		Seed:    1,
		Horizon: 10000,
		Nodes: []NodeSpec{
			{Name: "alice", Memories: 2},
			{Name: "bob", Memories: 2},
		},
		Links: []LinkSpec{
			{A: "alice", B: "bob", Delay: 10, SuccessProb: 1.0, Fidelity: 0.9},
		},
	}
	net, err := BuildNetwork(spec)
	require.NoError(t, err)
	net.Trace = trace.NewSimulationTrace()
	net.Timeline.RunUntil(spec.Horizon)

	s := net.Trace.Summarize()
	// requests recorded after the trace was attached: spawn happens during
	// BuildNetwork, confirms during the run
	assert.Equal(t, 2, s.Negotiations["confirm"])
	assert.Equal(t, 4, s.Outcomes["generation/SUCCESS"])
	assert.NotEmpty(t, net.Trace.RunID)
}

func TestScenario_LossyLinkMakesPartialProgress(t *testing.T) {
	// With a 50% link some attempts fail and re-fire; entanglement still
	// accumulates because failed slots revert and retry.
	net := runScenario(t, &ScenarioSpec{
		Seed:    7,
		Horizon: 20000,
		Nodes: []NodeSpec{
			{Name: "alice", Memories: 6},
			{Name: "bob", Memories: 6},
		},
		Links: []LinkSpec{
			{A: "alice", B: "bob", Delay: 10, SuccessProb: 0.5, Fidelity: 0.9},
		},
	})

	assert.Greater(t, net.Metrics.GenerationAttempts, net.Metrics.GenerationSuccesses)
	assert.Equal(t, 6, net.Node("alice").Memory.EntangledCount())
	assert.Equal(t, 6, net.Node("bob").Memory.EntangledCount())
}
