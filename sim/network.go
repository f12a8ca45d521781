package sim

import (
	"fmt"

	"github.com/qnetsim/qnetsim/sim/trace"
)

// Network is the node registry for one simulation run. It ties the nodes to
// a shared Timeline and collects run-wide metrics and (optionally) a
// decision trace.
type Network struct {
	Timeline *Timeline
	Metrics  *Metrics
	// Trace is optional; nil disables trace recording.
	Trace *trace.SimulationTrace

	nodes map[string]*Node
	order []*Node
}

// NewNetwork creates an empty network bound to the timeline.
func NewNetwork(tl *Timeline) *Network {
	return &Network{
		Timeline: tl,
		Metrics:  NewMetrics(),
		nodes:    make(map[string]*Node),
	}
}

// AddNode creates and registers a node with numSlots memory slots.
func (net *Network) AddNode(name string, numSlots int, hw Hardware) *Node {
	n := newNode(net, name, numSlots, hw)
	net.nodes[name] = n
	net.order = append(net.order, n)
	return n
}

// Node returns the named node, or nil.
func (net *Network) Node(name string) *Node {
	return net.nodes[name]
}

// Nodes returns all nodes in insertion order.
func (net *Network) Nodes() []*Node {
	return net.order
}

// Connect wires a bidirectional classical channel between two nodes with the
// given one-way delay.
func (net *Network) Connect(a, b string, delay int64) error {
	na, nb := net.nodes[a], net.nodes[b]
	if na == nil || nb == nil {
		return fmt.Errorf("connect %s-%s: unknown node", a, b)
	}
	cc := NewClassicalChannel(fmt.Sprintf("cc.%s-%s", a, b), net.Timeline, delay)
	cc.SetEnds(na, nb)
	return nil
}

// AddLink wires a quantum link between two adjacent nodes.
func (net *Network) AddLink(a, b string, successProb, fidelity float64) error {
	na, nb := net.nodes[a], net.nodes[b]
	if na == nil || nb == nil {
		return fmt.Errorf("link %s-%s: unknown node", a, b)
	}
	ql := NewQuantumLink(fmt.Sprintf("ql.%s-%s", a, b), successProb, fidelity)
	ql.SetEnds(na, nb)
	return nil
}

func (net *Network) recordNegotiation(clock int64, node, typ, requester, responder string) {
	if net.Trace == nil {
		return
	}
	net.Trace.RecordNegotiation(trace.NegotiationRecord{
		Clock:     clock,
		Node:      node,
		Type:      typ,
		Requester: requester,
		Responder: responder,
	})
}

func (net *Network) recordProtocol(clock int64, node, name string, kind ProtocolKind, st ProtocolState) {
	if net.Trace == nil {
		return
	}
	net.Trace.RecordProtocol(trace.ProtocolRecord{
		Clock: clock,
		Node:  node,
		Name:  name,
		Kind:  kind.String(),
		State: st.String(),
	})
}
