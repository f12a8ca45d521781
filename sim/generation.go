package sim

import "github.com/sirupsen/logrus"

// GenerationProtocol produces a fresh entangled pair across one quantum
// link. The initiator side drives the attempt and ships the drawn outcome to
// the responder; the responder waits passively after pairing. Both ends
// apply the same outcome, so the nodes always agree on the pair.
type GenerationProtocol struct {
	baseProtocol
	peer      string
	link      *QuantumLink
	mem       *MemoryInfo
	initiator bool
}

func newGenerationProtocol(node *Node, mem *MemoryInfo, peer string, initiator bool) *GenerationProtocol {
	p := &GenerationProtocol{
		peer:      peer,
		link:      node.LinkTo(peer),
		mem:       mem,
		initiator: initiator,
	}
	p.name = node.nextProtocolName(KindGeneration)
	p.kind = KindGeneration
	p.node = node
	p.memories = []*MemoryInfo{mem}
	return p
}

// Start schedules the physical attempt on the initiator side. The responder
// has nothing to do until the result message arrives.
func (p *GenerationProtocol) Start() {
	if !p.initiator {
		return
	}
	tl := p.node.Timeline
	tl.mustSchedule(&generationAttemptEvent{
		time: tl.Now() + p.node.Hardware.ScheduleDelay(DelayGeneration),
		p:    p,
	})
}

// attempt draws the outcome of one generation round and applies it locally.
// The result goes out before the local apply: the peer must observe its half
// of the entanglement no later than any follow-on negotiation triggered by
// this side's memory update.
func (p *GenerationProtocol) attempt() {
	if p.state != Active {
		return // cancelled while the attempt was in flight
	}
	now := p.node.Timeline.Now()
	ok := p.node.Hardware.DrawSuccess(p.link.SuccessProb)
	p.node.net.Metrics.GenerationAttempts++
	if ok {
		p.node.net.Metrics.GenerationSuccesses++
	}
	logrus.Debugf("%s: generation attempt with %s -> %v", p.node.Name, p.peer, ok)

	p.sendToPeer(GenerationResult{Memory: p.mem.Name, Success: ok, Fidelity: p.link.Fidelity})

	if ok {
		p.conclude(Succeeded)
		p.node.Memory.SetEntangled(p.mem.Index, p.peer, p.peerKey, p.link.Fidelity, now)
	} else {
		p.conclude(Failed)
		p.node.Memory.SetRaw(p.mem.Index)
	}
}

// HandleMessage finalizes the responder side from the initiator's result.
func (p *GenerationProtocol) HandleMessage(src string, payload any) {
	r, ok := payload.(GenerationResult)
	if !ok || p.state != Active {
		logrus.Debugf("%s: %s ignoring %T from %s", p.node.Name, p.name, payload, src)
		return
	}
	now := p.node.Timeline.Now()
	if r.Success {
		p.conclude(Succeeded)
		p.node.Memory.SetEntangled(p.mem.Index, p.peer, r.Memory, r.Fidelity, now)
	} else {
		p.conclude(Failed)
		p.node.Memory.SetRaw(p.mem.Index)
	}
}

type generationAttemptEvent struct {
	time int64
	p    *GenerationProtocol
}

func (e *generationAttemptEvent) Timestamp() int64 { return e.time }
func (e *generationAttemptEvent) Execute()         { e.p.attempt() }

// === Built-in rule pieces ===

// generationCondition matches Raw slots within an index range reserved for
// one link.
type generationCondition struct {
	lo, hi int
}

func (c *generationCondition) Qualify(info *MemoryInfo, _ *MemoryManager) []*MemoryInfo {
	if info.State != Raw || info.Index < c.lo || info.Index >= c.hi {
		return nil
	}
	return []*MemoryInfo{info}
}

type generationAction struct {
	peer      string
	initiator bool
}

func (a *generationAction) Produce(node *Node, memories []*MemoryInfo) (Protocol, []string, []Matcher) {
	p := newGenerationProtocol(node, memories[0], a.peer, a.initiator)
	if a.initiator {
		if p.link == nil {
			logrus.Panicf("%s: generation rule toward %s without a quantum link", node.Name, a.peer)
		}
		return p, []string{a.peer}, []Matcher{&generationMatcher{requester: node.Name}}
	}
	return p, []string{""}, []Matcher{nil}
}

// generationMatcher pairs with any unpaired responder-side generation
// protocol facing the requesting node.
type generationMatcher struct {
	requester string
}

func (m *generationMatcher) Match(pending []Protocol) Protocol {
	for _, c := range pending {
		if g, ok := c.(*GenerationProtocol); ok && !g.initiator && g.peer == m.requester {
			return c
		}
	}
	return nil
}

// NewGenerationRule builds a rule that keeps slots [lo, hi) entangled with
// peer. Exactly one side of a link installs the initiator rule; the other
// installs the responder rule.
func NewGenerationRule(peer string, initiator bool, lo, hi, priority int) *Rule {
	role := "responder"
	if initiator {
		role = "initiator"
	}
	return &Rule{
		Name:      "EG." + role + "." + peer,
		Priority:  priority,
		Condition: &generationCondition{lo: lo, hi: hi},
		Action:    &generationAction{peer: peer, initiator: initiator},
	}
}
