// Tracks simulation-wide counters for final reporting.

package sim

import "fmt"

// Metrics aggregates statistics about the simulation for final reporting.
// Useful for evaluating entanglement distribution behavior and debugging
// protocol interplay over time.
type Metrics struct {
	MessagesSent      int // messages handed to classical channels
	MessagesDelivered int // messages delivered to nodes
	MessagesDropped   int // deliveries whose receiver no longer existed

	NegotiationRequests int
	NegotiationConfirms int
	NegotiationRejects  int
	ProtocolsCancelled  int

	GenerationAttempts    int
	GenerationSuccesses   int
	PurificationRounds    int
	PurificationSuccesses int
	SwapAttempts          int
	SwapSuccesses         int

	Spawned   map[string]int // protocol kind -> instances created
	Completed map[string]int // protocol kind -> SUCCESS terminals
	Failed    map[string]int // protocol kind -> FAILED terminals
}

// NewMetrics creates a zeroed Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Spawned:   make(map[string]int),
		Completed: make(map[string]int),
		Failed:    make(map[string]int),
	}
}

func (m *Metrics) countSpawn(kind ProtocolKind) {
	m.Spawned[kind.String()]++
}

func (m *Metrics) countTerminal(kind ProtocolKind, st ProtocolState) {
	if st == Succeeded {
		m.Completed[kind.String()]++
	} else {
		m.Failed[kind.String()]++
	}
}

// Print displays aggregated metrics and the final memory census at the end
// of the simulation.
func (m *Metrics) Print(net *Network) {
	tl := net.Timeline
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Simulated time       : %d ticks\n", tl.Clock)
	fmt.Printf("Events executed      : %d\n", tl.ExecutedEvents)
	fmt.Printf("Messages sent        : %d (delivered %d, dropped %d)\n", m.MessagesSent, m.MessagesDelivered, m.MessagesDropped)
	fmt.Printf("Negotiations         : %d requests, %d confirms, %d rejects, %d cancelled\n",
		m.NegotiationRequests, m.NegotiationConfirms, m.NegotiationRejects, m.ProtocolsCancelled)
	fmt.Printf("Generation           : %d/%d attempts succeeded\n", m.GenerationSuccesses, m.GenerationAttempts)
	fmt.Printf("Purification         : %d/%d rounds succeeded\n", m.PurificationSuccesses, m.PurificationRounds)
	fmt.Printf("Swapping             : %d/%d measurements succeeded\n", m.SwapSuccesses, m.SwapAttempts)
	for kind, n := range m.Spawned {
		fmt.Printf("  %-14s spawned=%d success=%d failed=%d\n", kind, n, m.Completed[kind], m.Failed[kind])
	}
	fmt.Println("=== Final Memory State ===")
	for _, node := range net.Nodes() {
		fmt.Printf("%s: %d/%d entangled\n", node.Name, node.Memory.EntangledCount(), node.Memory.Size())
		for info := range node.Memory.Iterate() {
			if info.State != Entangled {
				continue
			}
			fmt.Printf("  %-16s <-> %s/%s f=%.4f t=%d\n", info.Name, info.RemoteNode, info.RemoteMemo, info.Fidelity, info.EntangleTime)
		}
	}
}
