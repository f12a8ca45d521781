package sim

import "github.com/sirupsen/logrus"

// purificationSuccessProb is the BBPSSW normalizer for two Werner pairs with
// fidelities f and k; it doubles as the round's success probability.
func purificationSuccessProb(f, k float64) float64 {
	return f*k + f*(1-k)/3 + (1-f)*k/3 + 5*(1-f)*(1-k)/9
}

// purifiedFidelity is the kept pair's fidelity after a successful BBPSSW
// round. For f, k >= 0.5 the result never drops below f.
func purifiedFidelity(f, k float64) float64 {
	return (f*k + (1-f)*(1-k)/9) / purificationSuccessProb(f, k)
}

// PurificationProtocol runs one BBPSSW round: two entangled pairs with the
// same remote node are consumed, and on success the kept pair's fidelity is
// upgraded while the measured pair is released. The two sides pair up by the
// partner memory names, so the merge always joins the two halves of the same
// pairs, never two independent remote pairs.
type PurificationProtocol struct {
	baseProtocol
	peer      string
	kept      *MemoryInfo
	measured  *MemoryInfo
	initiator bool

	// Entanglement data snapshotted at creation; the slots are Occupied
	// (cleared) while the protocol is in flight.
	keptFid            float64
	measuredFid        float64
	keptRemoteMemo     string
	measuredRemoteMemo string
	measuredName       string
}

func newPurificationProtocol(node *Node, kept, measured *MemoryInfo, initiator bool) *PurificationProtocol {
	p := &PurificationProtocol{
		peer:               kept.RemoteNode,
		kept:               kept,
		measured:           measured,
		initiator:          initiator,
		keptFid:            kept.Fidelity,
		measuredFid:        measured.Fidelity,
		keptRemoteMemo:     kept.RemoteMemo,
		measuredRemoteMemo: measured.RemoteMemo,
		measuredName:       measured.Name,
	}
	p.name = node.nextProtocolName(KindPurification)
	p.kind = KindPurification
	p.node = node
	p.memories = []*MemoryInfo{kept, measured}
	return p
}

// setCounterpart aligns the passive side with the initiator's orientation.
// The key names the initiator's kept slot; when the local scan picked the two
// pairs in the opposite order the roles swap, so both sides always upgrade
// the same physical pair. The BBPSSW map is symmetric in the two input
// fidelities, so the swap does not change the outcome.
func (p *PurificationProtocol) setCounterpart(node, name, key string) {
	p.baseProtocol.setCounterpart(node, name, key)
	if p.initiator || key != p.measuredRemoteMemo {
		return
	}
	p.kept, p.measured = p.measured, p.kept
	p.keptFid, p.measuredFid = p.measuredFid, p.keptFid
	p.keptRemoteMemo, p.measuredRemoteMemo = p.measuredRemoteMemo, p.keptRemoteMemo
	p.measuredName = p.measured.Name
	p.memories[0], p.memories[1] = p.memories[1], p.memories[0]
}

// Start schedules the local measurement on the initiator side.
func (p *PurificationProtocol) Start() {
	if !p.initiator {
		return
	}
	tl := p.node.Timeline
	tl.mustSchedule(&purificationMeasureEvent{
		time: tl.Now() + p.node.Hardware.ScheduleDelay(DelayPurification),
		p:    p,
	})
}

// measure draws the round's outcome and ships it to the counterpart before
// applying it locally, so both sides apply the identical outcome.
func (p *PurificationProtocol) measure() {
	if p.state != Active {
		return
	}
	z := purificationSuccessProb(p.keptFid, p.measuredFid)
	ok := p.node.Hardware.DrawSuccess(z)
	upgraded := purifiedFidelity(p.keptFid, p.measuredFid)
	p.node.net.Metrics.PurificationRounds++
	if ok {
		p.node.net.Metrics.PurificationSuccesses++
	}
	logrus.Debugf("%s: purification of %s/%s -> %v (f %.4f -> %.4f)",
		p.node.Name, p.kept.Name, p.measuredName, ok, p.keptFid, upgraded)

	p.sendToPeer(PurificationResult{Success: ok, Fidelity: upgraded})
	p.apply(ok, upgraded)
}

// apply finalizes both slots. On success exactly one input pair is consumed;
// on failure both revert, never partially.
func (p *PurificationProtocol) apply(success bool, fidelity float64) {
	now := p.node.Timeline.Now()
	if success {
		p.conclude(Succeeded)
		p.node.Memory.SetEntangled(p.kept.Index, p.peer, p.keptRemoteMemo, fidelity, now)
		p.node.Memory.SetRaw(p.measured.Index)
	} else {
		p.conclude(Failed)
		p.node.Memory.SetRaw(p.kept.Index)
		p.node.Memory.SetRaw(p.measured.Index)
	}
}

// HandleMessage finalizes the passive side from the initiator's outcome.
func (p *PurificationProtocol) HandleMessage(src string, payload any) {
	r, ok := payload.(PurificationResult)
	if !ok || p.state != Active {
		logrus.Debugf("%s: %s ignoring %T from %s", p.node.Name, p.name, payload, src)
		return
	}
	p.apply(r.Success, r.Fidelity)
}

type purificationMeasureEvent struct {
	time int64
	p    *PurificationProtocol
}

func (e *purificationMeasureEvent) Timestamp() int64 { return e.time }
func (e *purificationMeasureEvent) Execute()         { e.p.measure() }

// === Built-in rule pieces ===

// purificationCondition pairs two entangled slots that share a remote node
// and sit below the target fidelity. Only pairs at or above 0.5 qualify:
// below that the BBPSSW map stops improving fidelity.
type purificationCondition struct {
	peer      string // "" matches any remote node
	threshold float64
}

func (c *purificationCondition) eligible(info *MemoryInfo) bool {
	return info.State == Entangled &&
		info.Fidelity < c.threshold &&
		info.Fidelity >= 0.5 &&
		(c.peer == "" || info.RemoteNode == c.peer)
}

func (c *purificationCondition) Qualify(info *MemoryInfo, mgr *MemoryManager) []*MemoryInfo {
	if !c.eligible(info) {
		return nil
	}
	for other := range mgr.Iterate() {
		if other.Index == info.Index || other.RemoteNode != info.RemoteNode {
			continue
		}
		if c.eligible(other) {
			return []*MemoryInfo{info, other}
		}
	}
	return nil
}

type purificationAction struct{}

func (purificationAction) Produce(node *Node, memories []*MemoryInfo) (Protocol, []string, []Matcher) {
	kept, measured := memories[0], memories[1]
	remote := kept.RemoteNode
	// The lexicographically smaller node name initiates; the other side
	// waits to be matched. This yields exactly one request per merged pair.
	if node.Name < remote {
		p := newPurificationProtocol(node, kept, measured, true)
		m := &purificationMatcher{kept: kept.RemoteMemo, measured: measured.RemoteMemo}
		return p, []string{remote}, []Matcher{m}
	}
	p := newPurificationProtocol(node, kept, measured, false)
	return p, []string{""}, []Matcher{nil}
}

// purificationMatcher selects the remote protocol holding the partner halves
// of this side's kept and measured pairs, identified by memory name. The
// match is orientation-agnostic: the passive side may have scanned the two
// pairs in either order, and setCounterpart realigns a mirrored pick.
type purificationMatcher struct {
	kept     string
	measured string
}

func (m *purificationMatcher) Match(pending []Protocol) Protocol {
	for _, c := range pending {
		q, ok := c.(*PurificationProtocol)
		if !ok || q.initiator {
			continue
		}
		if q.IdentityKey() == m.kept && q.measuredName == m.measured {
			return c
		}
		if q.IdentityKey() == m.measured && q.measuredName == m.kept {
			return c
		}
	}
	return nil
}

// NewPurificationRule builds a rule that purifies pairs with peer (any peer
// if empty) while their fidelity is below threshold.
func NewPurificationRule(peer string, threshold float64, priority int) *Rule {
	name := "BBPSSW"
	if peer != "" {
		name += "." + peer
	}
	return &Rule{
		Name:      name,
		Priority:  priority,
		Condition: &purificationCondition{peer: peer, threshold: threshold},
		Action:    purificationAction{},
	}
}
