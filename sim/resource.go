package sim

import (
	"github.com/sirupsen/logrus"
)

// pendingEntry is the negotiation bookkeeping for one protocol that has been
// created but not yet confirmed. outstanding counts unresolved requirements;
// inbound counts how many of those are passive (satisfied by an inbound
// request matching this protocol rather than by a confirmation).
type pendingEntry struct {
	proto       Protocol
	outstanding int
	inbound     int
	paired      []pairRef
	created     int64
}

// ResourceManager is the per-node orchestrator between the rule manager and
// the messaging boundary: it runs rule evaluation, instantiates protocols
// from matched rules, and drives the cross-node requirement negotiation.
type ResourceManager struct {
	// Rules is the node's rule manager; operators install rules through it.
	Rules *RuleManager

	node    *Node
	pending map[string]*pendingEntry
	// order holds pending protocol names in creation order so matchers see a
	// deterministic candidate sequence.
	order []string

	evaluating bool
	dirty      bool

	// expiry, when > 0, bounds how long an unanswered requirement may stay
	// pending. Zero (the default) preserves the no-timeout behavior.
	expiry int64
}

func newResourceManager(n *Node) *ResourceManager {
	rm := &ResourceManager{
		node:    n,
		pending: make(map[string]*pendingEntry),
	}
	rm.Rules = newRuleManager(rm)
	return rm
}

// SetRequirementExpiry bounds unanswered negotiations: a protocol whose
// requirements are still unresolved d ticks after creation fails exactly as
// a rejection would. d <= 0 restores the default no-timeout behavior.
func (rm *ResourceManager) SetRequirementExpiry(d int64) {
	rm.expiry = d
}

// handleMemoryUpdate is the MemoryManager hook: every slot mutation triggers
// a rule evaluation pass.
func (rm *ResourceManager) handleMemoryUpdate(*MemoryInfo) {
	rm.requestEvaluation()
}

// requestEvaluation runs rule evaluation, collapsing re-entrant triggers:
// slot mutations performed while a pass is running mark the state dirty and
// are observed by a follow-up pass instead of recursing. Each pass therefore
// sees a consistent snapshot.
func (rm *ResourceManager) requestEvaluation() {
	rm.dirty = true
	if rm.evaluating {
		return
	}
	rm.evaluating = true
	for rm.dirty {
		rm.dirty = false
		rm.Rules.evaluate()
	}
	rm.evaluating = false
}

// spawn installs a freshly produced protocol: claims its memory slots,
// registers it, and either activates it immediately (no required peers) or
// opens negotiation with each peer.
func (rm *ResourceManager) spawn(r *Rule, p Protocol, peers []string, matchers []Matcher) {
	for _, m := range p.Memories() {
		if m.State == Occupied {
			// Exclusive allocation: a correctly written condition never
			// yields a slot claimed by a higher-priority rule.
			logrus.Panicf("rule %q: protocol %s claims OCCUPIED slot %s", r.Name, p.Name(), m.Name)
		}
	}
	p.setOwner(r)
	rm.node.registerProtocol(p)
	r.addProtocol(p)
	for _, m := range p.Memories() {
		rm.node.Memory.SetOccupied(m.Index)
	}
	now := rm.node.Timeline.Now()
	rm.node.net.Metrics.countSpawn(p.Kind())
	rm.node.net.recordProtocol(now, rm.node.Name, p.Name(), p.Kind(), Pending)

	if len(peers) == 0 {
		rm.activateNow(p)
		return
	}

	e := &pendingEntry{proto: p, outstanding: len(peers), created: now}
	rm.pending[p.Name()] = e
	rm.order = append(rm.order, p.Name())

	for i, peer := range peers {
		if peer == "" {
			e.inbound++
			continue
		}
		rm.node.net.Metrics.NegotiationRequests++
		rm.node.net.recordNegotiation(now, rm.node.Name, "request", p.Name(), "")
		rm.node.Send(Message{
			Dst:      peer,
			Receiver: ResourceManagerAddress,
			Payload: RequestPayload{
				Protocol: p.Name(),
				Key:      p.IdentityKey(),
				Matcher:  matchers[i],
			},
		})
	}
	if rm.expiry > 0 {
		rm.node.Timeline.mustSchedule(&requirementExpiryEvent{
			time: now + rm.expiry,
			rm:   rm,
			name: p.Name(),
		})
	}
}

// receive dispatches a message addressed to the resource manager.
func (rm *ResourceManager) receive(src string, payload any) {
	switch pl := payload.(type) {
	case RequestPayload:
		rm.handleRequest(src, pl)
	case ConfirmPayload:
		rm.handleConfirm(src, pl)
	case RejectPayload:
		rm.handleReject(src, pl)
	case AbortPayload:
		rm.handleAbort(src, pl)
	default:
		logrus.Debugf("%s: resource manager dropping unexpected %T from %s", rm.node.Name, payload, src)
	}
}

// handleRequest evaluates an inbound matcher against the currently pending
// local protocols and answers with a confirmation or a rejection.
func (rm *ResourceManager) handleRequest(src string, pl RequestPayload) {
	now := rm.node.Timeline.Now()

	// Matchers run over a snapshot: pairing mutates the pending table, and
	// that mutation must never happen under an iteration over it.
	candidates := make([]Protocol, 0, len(rm.order))
	for _, name := range rm.order {
		if e := rm.pending[name]; e != nil && e.inbound > 0 {
			candidates = append(candidates, e.proto)
		}
	}

	var match Protocol
	if pl.Matcher != nil {
		match = pl.Matcher.Match(candidates)
	}
	if match == nil {
		rm.node.net.Metrics.NegotiationRejects++
		rm.node.net.recordNegotiation(now, rm.node.Name, "reject", pl.Protocol, "")
		logrus.Debugf("%s: no pending protocol matches request from %s.%s", rm.node.Name, src, pl.Protocol)
		rm.node.Send(Message{
			Dst:      src,
			Receiver: ResourceManagerAddress,
			Payload:  RejectPayload{Requester: pl.Protocol},
		})
		return
	}

	e := rm.pending[match.Name()]
	e.inbound--
	e.outstanding--
	e.paired = append(e.paired, pairRef{node: src, name: pl.Protocol})
	match.setCounterpart(src, pl.Protocol, pl.Key)

	rm.node.net.Metrics.NegotiationConfirms++
	rm.node.net.recordNegotiation(now, rm.node.Name, "confirm", pl.Protocol, match.Name())
	rm.node.Send(Message{
		Dst:      src,
		Receiver: ResourceManagerAddress,
		Payload: ConfirmPayload{
			Requester: pl.Protocol,
			Responder: match.Name(),
			Key:       match.IdentityKey(),
		},
	})
	if e.outstanding == 0 {
		rm.activate(e)
	}
}

// handleConfirm resolves one requirement of a pending protocol. A confirm
// for a protocol that was cancelled or already finished is dropped silently:
// the sender may legitimately be answering a request whose issuer no longer
// exists.
func (rm *ResourceManager) handleConfirm(src string, pl ConfirmPayload) {
	e := rm.pending[pl.Requester]
	if e == nil {
		logrus.Debugf("%s: dropping stale confirm for %q from %s", rm.node.Name, pl.Requester, src)
		return
	}
	e.proto.setCounterpart(src, pl.Responder, pl.Key)
	e.paired = append(e.paired, pairRef{node: src, name: pl.Responder})
	e.outstanding--
	if e.outstanding == 0 {
		rm.activate(e)
	}
}

// handleReject fails the pending protocol immediately: its slots revert to
// Raw and the rule may re-fire on a later evaluation pass. Logged, not fatal.
func (rm *ResourceManager) handleReject(src string, pl RejectPayload) {
	e := rm.pending[pl.Requester]
	if e == nil {
		logrus.Debugf("%s: dropping stale reject for %q from %s", rm.node.Name, pl.Requester, src)
		return
	}
	logrus.Infof("%s: negotiation for %s rejected by %s", rm.node.Name, pl.Requester, src)
	rm.abandon(e)
}

// handleAbort tears down the named local protocol on a peer's best-effort
// cancellation notice. Unknown names are dropped: the protocol may already
// have finished.
func (rm *ResourceManager) handleAbort(src string, pl AbortPayload) {
	p := rm.node.protoByName[pl.Protocol]
	if p == nil {
		logrus.Debugf("%s: dropping abort for unknown %q from %s", rm.node.Name, pl.Protocol, src)
		return
	}
	rm.node.net.Metrics.ProtocolsCancelled++
	rm.node.net.recordNegotiation(rm.node.Timeline.Now(), rm.node.Name, "abort", pl.Protocol, "")
	p.fail()
}

// abandon tears down a pending protocol whose negotiation cannot complete.
// A peer that already confirmed holds a live counterpart instance claiming a
// slot; it gets a best-effort abort notice before the local failure so that
// slot is not held by a protocol that can never activate.
func (rm *ResourceManager) abandon(e *pendingEntry) {
	for _, ref := range e.paired {
		rm.node.Send(Message{
			Dst:      ref.node,
			Receiver: ResourceManagerAddress,
			Payload:  AbortPayload{Protocol: ref.name},
		})
	}
	e.proto.fail()
}

// cancel tears down one spawned protocol on rule expiry: best-effort abort
// notices to every negotiated peer, then local failure. Later-arriving
// confirms or rejects referencing the cancelled instance miss the pending
// table and are ignored.
func (rm *ResourceManager) cancel(p Protocol) {
	if p.State() == Succeeded || p.State() == Failed {
		return
	}
	for _, ref := range p.counterparts() {
		rm.node.Send(Message{
			Dst:      ref.node,
			Receiver: ResourceManagerAddress,
			Payload:  AbortPayload{Protocol: ref.name},
		})
	}
	rm.node.net.Metrics.ProtocolsCancelled++
	p.fail()
}

// activate moves a fully negotiated protocol out of the pending table (a
// single atomic replace, never an in-place mutation during matching) and
// starts its physical steps.
func (rm *ResourceManager) activate(e *pendingEntry) {
	rm.dropPending(e.proto.Name())
	rm.activateNow(e.proto)
}

func (rm *ResourceManager) activateNow(p Protocol) {
	p.activate()
	rm.node.net.recordProtocol(rm.node.Timeline.Now(), rm.node.Name, p.Name(), p.Kind(), Active)
	p.Start()
}

// dropPending removes a protocol from the negotiation table, if present.
func (rm *ResourceManager) dropPending(name string) {
	if _, ok := rm.pending[name]; !ok {
		return
	}
	delete(rm.pending, name)
	for i, n := range rm.order {
		if n == name {
			rm.order = append(rm.order[:i], rm.order[i+1:]...)
			return
		}
	}
}

// PendingCount reports how many protocols are awaiting negotiation.
func (rm *ResourceManager) PendingCount() int {
	return len(rm.pending)
}

// requirementExpiryEvent fires the optional negotiation timeout.
type requirementExpiryEvent struct {
	time int64
	rm   *ResourceManager
	name string
}

func (e *requirementExpiryEvent) Timestamp() int64 { return e.time }

func (e *requirementExpiryEvent) Execute() {
	entry := e.rm.pending[e.name]
	if entry == nil {
		return // resolved or torn down in time
	}
	logrus.Infof("%s: negotiation for %s expired after %d ticks", e.rm.node.Name, e.name, e.rm.expiry)
	e.rm.abandon(entry)
}
