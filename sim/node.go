package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Node is one repeater (or endpoint) in the simulated network. It owns its
// memory slots and resource management; other nodes are reachable only via
// classical channels and are referenced by name. Nodes never alias each
// other's mutable state.
type Node struct {
	Name      string
	Timeline  *Timeline
	Memory    *MemoryManager
	Resources *ResourceManager
	Hardware  Hardware

	net       *Network
	cchannels map[string]*ClassicalChannel
	qlinks    map[string]*QuantumLink

	protoOrder  []Protocol
	protoByName map[string]Protocol
	nextProtoID int
}

func newNode(net *Network, name string, numSlots int, hw Hardware) *Node {
	n := &Node{
		Name:        name,
		Timeline:    net.Timeline,
		Memory:      NewMemoryManager(name, numSlots),
		Hardware:    hw,
		net:         net,
		cchannels:   make(map[string]*ClassicalChannel),
		qlinks:      make(map[string]*QuantumLink),
		protoByName: make(map[string]Protocol),
	}
	n.Resources = newResourceManager(n)
	n.Memory.SetOnUpdate(n.Resources.handleMemoryUpdate)
	return n
}

func (n *Node) assignChannel(peer string, cc *ClassicalChannel) {
	n.cchannels[peer] = cc
}

func (n *Node) assignLink(peer string, ql *QuantumLink) {
	n.qlinks[peer] = ql
}

// LinkTo returns the quantum link toward the named peer, or nil.
func (n *Node) LinkTo(peer string) *QuantumLink {
	return n.qlinks[peer]
}

// Send dispatches a message toward msg.Dst over the classical channel to
// that node. The sender field is stamped here. A missing channel drops the
// message with a warning; topology wiring is the operator's responsibility.
func (n *Node) Send(msg Message) {
	msg.Src = n.Name
	cc := n.cchannels[msg.Dst]
	if cc == nil {
		logrus.Warnf("%s: no classical channel to %s, dropping %T", n.Name, msg.Dst, msg.Payload)
		return
	}
	n.net.Metrics.MessagesSent++
	cc.Transmit(msg)
}

// Receive routes an inbound message: to the resource manager, to a named
// protocol instance, or broadcast to all active protocols of the message's
// kind. A receiver that no longer exists (completed or cancelled target) is
// dropped silently, never fatal.
func (n *Node) Receive(msg Message) {
	n.net.Metrics.MessagesDelivered++
	switch {
	case msg.Receiver == ResourceManagerAddress:
		n.Resources.receive(msg.Src, msg.Payload)
	case msg.Receiver != "":
		p := n.protoByName[msg.Receiver]
		if p == nil {
			n.net.Metrics.MessagesDropped++
			logrus.Debugf("%s: dropping %T for unknown receiver %q", n.Name, msg.Payload, msg.Receiver)
			return
		}
		p.HandleMessage(msg.Src, msg.Payload)
	default:
		// Broadcast by kind. Snapshot the registry: handlers may finish
		// protocols, mutating it.
		live := make([]Protocol, len(n.protoOrder))
		copy(live, n.protoOrder)
		for _, p := range live {
			if p.Kind() == msg.Kind && p.State() == Active {
				p.HandleMessage(msg.Src, msg.Payload)
			}
		}
	}
}

// nextProtocolName mints a node-unique instance name. Names are never
// reused, so identity checks on late-arriving negotiation messages are
// exact.
func (n *Node) nextProtocolName(kind ProtocolKind) string {
	n.nextProtoID++
	return fmt.Sprintf("%s.%s.%d", n.Name, kind.short(), n.nextProtoID)
}

func (n *Node) registerProtocol(p Protocol) {
	n.protoOrder = append(n.protoOrder, p)
	n.protoByName[p.Name()] = p
}

// finishProtocol unhooks a terminal protocol from the node registry, its
// owning rule, and any pending negotiation entry, then records the outcome.
func (n *Node) finishProtocol(name string, kind ProtocolKind, rule *Rule, st ProtocolState) {
	if _, ok := n.protoByName[name]; !ok {
		return
	}
	delete(n.protoByName, name)
	for i, p := range n.protoOrder {
		if p.Name() == name {
			n.protoOrder = append(n.protoOrder[:i], n.protoOrder[i+1:]...)
			break
		}
	}
	if rule != nil {
		rule.dropProtocol(name)
	}
	n.Resources.dropPending(name)
	n.net.Metrics.countTerminal(kind, st)
	n.net.recordProtocol(n.Timeline.Now(), n.Name, name, kind, st)
	logrus.Debugf("%s: %s finished %s", n.Name, name, st)
}
