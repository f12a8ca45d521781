package sim

import "github.com/sirupsen/logrus"

// SwappingA executes the Bell-state measurement at an intermediate node
// holding entanglement with both a "left" and a "right" remote partner. On
// success the two distant partners end up entangled with each other at a
// degraded fidelity; on failure everyone reverts. Either way both middle
// slots are released.
type SwappingA struct {
	baseProtocol
	left  *MemoryInfo
	right *MemoryInfo

	leftNode, leftMemo   string
	rightNode, rightMemo string
	leftFid, rightFid    float64

	successProb float64
	degradation float64

	leftProto  string
	rightProto string
}

func newSwappingA(node *Node, left, right *MemoryInfo, successProb, degradation float64) *SwappingA {
	p := &SwappingA{
		left:        left,
		right:       right,
		leftNode:    left.RemoteNode,
		leftMemo:    left.RemoteMemo,
		rightNode:   right.RemoteNode,
		rightMemo:   right.RemoteMemo,
		leftFid:     left.Fidelity,
		rightFid:    right.Fidelity,
		successProb: successProb,
		degradation: degradation,
	}
	p.name = node.nextProtocolName(KindSwappingA)
	p.kind = KindSwappingA
	p.node = node
	p.memories = []*MemoryInfo{left, right}
	return p
}

// setCounterpart records the end-node protocol names as the two
// confirmations arrive; the confirming node's name says which side it is.
func (p *SwappingA) setCounterpart(node, name, _ string) {
	switch node {
	case p.leftNode:
		p.leftProto = name
	case p.rightNode:
		p.rightProto = name
	default:
		logrus.Debugf("%s: %s ignoring counterpart from unrelated node %s", p.node.Name, p.name, node)
	}
}

func (p *SwappingA) counterparts() []pairRef {
	var refs []pairRef
	if p.leftProto != "" {
		refs = append(refs, pairRef{node: p.leftNode, name: p.leftProto})
	}
	if p.rightProto != "" {
		refs = append(refs, pairRef{node: p.rightNode, name: p.rightProto})
	}
	return refs
}

// Start schedules the Bell-state measurement.
func (p *SwappingA) Start() {
	tl := p.node.Timeline
	tl.mustSchedule(&swapMeasureEvent{
		time: tl.Now() + p.node.Hardware.ScheduleDelay(DelaySwap),
		p:    p,
	})
}

// measure draws the swap outcome and notifies both ends before releasing
// the middle slots. Each end learns the *other* end's node and memory name,
// so the surviving pair's references stay mutual.
func (p *SwappingA) measure() {
	if p.state != Active {
		return
	}
	ok := p.node.Hardware.DrawSuccess(p.successProb)
	fidelity := p.leftFid * p.rightFid * p.degradation
	p.node.net.Metrics.SwapAttempts++
	if ok {
		p.node.net.Metrics.SwapSuccesses++
	}
	logrus.Debugf("%s: swap %s<->%s -> %v (f=%.4f)", p.node.Name, p.leftNode, p.rightNode, ok, fidelity)

	p.node.Send(Message{
		Dst:      p.leftNode,
		Receiver: p.leftProto,
		Kind:     KindSwappingB,
		Payload:  SwapResult{Success: ok, NewNode: p.rightNode, NewMemo: p.rightMemo, Fidelity: fidelity},
	})
	p.node.Send(Message{
		Dst:      p.rightNode,
		Receiver: p.rightProto,
		Kind:     KindSwappingB,
		Payload:  SwapResult{Success: ok, NewNode: p.leftNode, NewMemo: p.leftMemo, Fidelity: fidelity},
	})

	if ok {
		p.conclude(Succeeded)
	} else {
		p.conclude(Failed)
	}
	p.node.Memory.SetRaw(p.left.Index)
	p.node.Memory.SetRaw(p.right.Index)
}

// HandleMessage: SwappingA drives itself; nothing addresses it after
// negotiation.
func (p *SwappingA) HandleMessage(src string, payload any) {
	logrus.Debugf("%s: %s ignoring %T from %s", p.node.Name, p.name, payload, src)
}

type swapMeasureEvent struct {
	time int64
	p    *SwappingA
}

func (e *swapMeasureEvent) Timestamp() int64 { return e.time }
func (e *swapMeasureEvent) Execute()         { e.p.measure() }

// SwappingB finalizes one endpoint of a swap: it holds the endpoint's slot
// while the middle node measures, then either re-points the slot at the far
// partner or reverts it.
type SwappingB struct {
	baseProtocol
	slot   *MemoryInfo
	middle string
}

func newSwappingB(node *Node, slot *MemoryInfo) *SwappingB {
	p := &SwappingB{slot: slot, middle: slot.RemoteNode}
	p.name = node.nextProtocolName(KindSwappingB)
	p.kind = KindSwappingB
	p.node = node
	p.memories = []*MemoryInfo{slot}
	return p
}

// Start: passive; the middle node's result message drives the finish.
func (p *SwappingB) Start() {}

// HandleMessage finalizes the endpoint slot from the middle node's result.
func (p *SwappingB) HandleMessage(src string, payload any) {
	r, ok := payload.(SwapResult)
	if !ok || p.state != Active {
		logrus.Debugf("%s: %s ignoring %T from %s", p.node.Name, p.name, payload, src)
		return
	}
	now := p.node.Timeline.Now()
	if r.Success {
		p.conclude(Succeeded)
		p.node.Memory.SetEntangled(p.slot.Index, r.NewNode, r.NewMemo, r.Fidelity, now)
	} else {
		p.conclude(Failed)
		p.node.Memory.SetRaw(p.slot.Index)
	}
}

// === Built-in rule pieces ===

// swapCondition matches a pair of entangled slots at the middle node, one
// toward each configured side. Only the left-facing slot triggers the match,
// so a pass produces each pairing once.
type swapCondition struct {
	left, right string
}

func (c *swapCondition) Qualify(info *MemoryInfo, mgr *MemoryManager) []*MemoryInfo {
	if info.State != Entangled || info.RemoteNode != c.left {
		return nil
	}
	for other := range mgr.Iterate() {
		if other.State == Entangled && other.RemoteNode == c.right {
			return []*MemoryInfo{info, other}
		}
	}
	return nil
}

type swapAction struct {
	successProb float64
	degradation float64
}

func (a *swapAction) Produce(node *Node, memories []*MemoryInfo) (Protocol, []string, []Matcher) {
	left, right := memories[0], memories[1]
	p := newSwappingA(node, left, right, a.successProb, a.degradation)
	return p, []string{left.RemoteNode, right.RemoteNode}, []Matcher{
		&swapEndMatcher{memo: left.RemoteMemo},
		&swapEndMatcher{memo: right.RemoteMemo},
	}
}

// swapEndMatcher selects the endpoint protocol holding the named memory.
type swapEndMatcher struct {
	memo string
}

func (m *swapEndMatcher) Match(pending []Protocol) Protocol {
	for _, c := range pending {
		if q, ok := c.(*SwappingB); ok && q.IdentityKey() == m.memo {
			return c
		}
	}
	return nil
}

// swapEndCondition matches an entangled slot facing the middle node.
type swapEndCondition struct {
	middle string
}

func (c *swapEndCondition) Qualify(info *MemoryInfo, _ *MemoryManager) []*MemoryInfo {
	if info.State != Entangled || info.RemoteNode != c.middle {
		return nil
	}
	return []*MemoryInfo{info}
}

type swapEndAction struct{}

func (swapEndAction) Produce(node *Node, memories []*MemoryInfo) (Protocol, []string, []Matcher) {
	return newSwappingB(node, memories[0]), []string{""}, []Matcher{nil}
}

// NewSwappingRule builds the middle-node rule combining entanglement with
// left and right into one long-distance pair.
func NewSwappingRule(left, right string, successProb, degradation float64, priority int) *Rule {
	return &Rule{
		Name:      "SWAP." + left + "-" + right,
		Priority:  priority,
		Condition: &swapCondition{left: left, right: right},
		Action:    &swapAction{successProb: successProb, degradation: degradation},
	}
}

// NewSwapEndRule builds the endpoint rule offering slots entangled with the
// middle node for swapping.
func NewSwapEndRule(middle string, priority int) *Rule {
	return &Rule{
		Name:      "SWAPEND." + middle,
		Priority:  priority,
		Condition: &swapEndCondition{middle: middle},
		Action:    swapEndAction{},
	}
}
