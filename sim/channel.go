package sim

import "github.com/sirupsen/logrus"

// ClassicalChannel carries messages between two nodes with a fixed delay.
// Delivery is asynchronous: Transmit schedules an arrival event and returns;
// there is no synchronous call/return between nodes.
type ClassicalChannel struct {
	Name  string
	Delay int64

	timeline *Timeline
	ends     [2]*Node
}

// NewClassicalChannel creates a channel with the given one-way delay in ticks.
func NewClassicalChannel(name string, tl *Timeline, delay int64) *ClassicalChannel {
	return &ClassicalChannel{Name: name, Delay: delay, timeline: tl}
}

// SetEnds attaches the channel to both endpoint nodes. Each node registers
// the channel under the other end's name.
func (cc *ClassicalChannel) SetEnds(a, b *Node) {
	cc.ends[0], cc.ends[1] = a, b
	a.assignChannel(b.Name, cc)
	b.assignChannel(a.Name, cc)
}

// Transmit schedules delivery of msg at the destination end after the
// channel delay.
func (cc *ClassicalChannel) Transmit(msg Message) {
	var dst *Node
	switch msg.Dst {
	case cc.ends[0].Name:
		dst = cc.ends[0]
	case cc.ends[1].Name:
		dst = cc.ends[1]
	default:
		logrus.Warnf("channel %s: no end named %q, dropping message from %s", cc.Name, msg.Dst, msg.Src)
		return
	}
	cc.timeline.mustSchedule(&messageArrivalEvent{
		time: cc.timeline.Now() + cc.Delay,
		node: dst,
		msg:  msg,
	})
}

// messageArrivalEvent delivers a message to its destination node.
type messageArrivalEvent struct {
	time int64
	node *Node
	msg  Message
}

func (e *messageArrivalEvent) Timestamp() int64 { return e.time }

func (e *messageArrivalEvent) Execute() {
	e.node.Receive(e.msg)
}

// QuantumLink holds the physical parameters of the entangling connection
// between two adjacent nodes: per-attempt success probability and the
// fidelity of a freshly generated pair. Timing comes from Hardware.
type QuantumLink struct {
	Name        string
	SuccessProb float64
	Fidelity    float64
}

// NewQuantumLink creates a link with the given attempt success probability
// and generated-pair fidelity.
func NewQuantumLink(name string, successProb, fidelity float64) *QuantumLink {
	return &QuantumLink{Name: name, SuccessProb: successProb, Fidelity: fidelity}
}

// SetEnds registers the link on both endpoint nodes under the other end's
// name.
func (ql *QuantumLink) SetEnds(a, b *Node) {
	a.assignLink(b.Name, ql)
	b.assignLink(a.Name, ql)
}
