package sim

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// Condition is the matching half of a rule: given one memory slot and the
// owning manager it returns the qualifying slots (possibly involving other
// slots, e.g. a purification pair), or nothing. Conditions are explicit
// values, not closures over mutable state, so rules can be inspected and
// reinstalled.
type Condition interface {
	Qualify(info *MemoryInfo, mgr *MemoryManager) []*MemoryInfo
}

// Action is the spawning half of a rule: from the qualifying slots it builds
// a new protocol instance, the list of peer node names whose cooperation is
// required, and one matcher per peer. A peer entry of "" means the protocol
// sends no request and instead waits to be matched by an inbound one (the
// responder half of a negotiation). An empty peer list activates the
// protocol immediately.
type Action interface {
	Produce(node *Node, memories []*MemoryInfo) (Protocol, []string, []Matcher)
}

// Matcher identifies the negotiation partner among a remote node's pending
// protocols. It is evaluated on the receiving node; returning nil rejects
// the request.
type Matcher interface {
	Match(pending []Protocol) Protocol
}

// Rule is a prioritized (condition, action) pair installed on a node.
// Higher priority evaluates first; ties break by installation order. The
// rule tracks the protocol instances it has spawned so expiring it can tear
// them down.
type Rule struct {
	Name      string
	Priority  int
	Condition Condition
	Action    Action

	seq       int
	protocols []Protocol
}

// Protocols returns the rule's live spawned protocol instances.
func (r *Rule) Protocols() []Protocol {
	out := make([]Protocol, len(r.protocols))
	copy(out, r.protocols)
	return out
}

func (r *Rule) addProtocol(p Protocol) {
	r.protocols = append(r.protocols, p)
}

func (r *Rule) dropProtocol(name string) {
	for i, p := range r.protocols {
		if p.Name() == name {
			r.protocols = append(r.protocols[:i], r.protocols[i+1:]...)
			return
		}
	}
}

// RuleManager holds a node's installed rules in evaluation order.
type RuleManager struct {
	rm      *ResourceManager
	rules   []*Rule
	nextSeq int
}

func newRuleManager(rm *ResourceManager) *RuleManager {
	return &RuleManager{rm: rm}
}

// Load installs a rule and immediately evaluates it against current memory
// state, so rules installed after entanglement exists still fire.
func (m *RuleManager) Load(r *Rule) error {
	if r == nil || r.Condition == nil || r.Action == nil {
		return fmt.Errorf("rule must carry a condition and an action")
	}
	for _, have := range m.rules {
		if have == r {
			return fmt.Errorf("rule %q already installed", r.Name)
		}
	}
	r.seq = m.nextSeq
	m.nextSeq++
	m.rules = append(m.rules, r)
	sort.SliceStable(m.rules, func(i, j int) bool {
		if m.rules[i].Priority != m.rules[j].Priority {
			return m.rules[i].Priority > m.rules[j].Priority
		}
		return m.rules[i].seq < m.rules[j].seq
	})
	logrus.Debugf("%s: loaded rule %q priority=%d", m.rm.node.Name, r.Name, r.Priority)
	m.rm.requestEvaluation()
	return nil
}

// Expire removes a rule and cancels every protocol it spawned that has not
// reached a terminal state: memory reverts to Raw and negotiated peers get a
// best-effort abort notice.
func (m *RuleManager) Expire(r *Rule) {
	for i, have := range m.rules {
		if have == r {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			break
		}
	}
	for _, p := range r.Protocols() {
		m.rm.cancel(p)
	}
	logrus.Debugf("%s: expired rule %q", m.rm.node.Name, r.Name)
}

// Rules returns the installed rules in evaluation order.
func (m *RuleManager) Rules() []*Rule {
	out := make([]*Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// evaluate runs one full matching pass: rules in descending priority order,
// each against every slot not currently Occupied. A slot claimed by a
// higher-priority match earlier in the pass is Occupied by the time lower
// priority rules see it, which enforces exclusive allocation.
//
// Only the ResourceManager calls this, behind its re-entrancy guard.
func (m *RuleManager) evaluate() {
	mm := m.rm.node.Memory
	rules := make([]*Rule, len(m.rules))
	copy(rules, m.rules)
	for _, r := range rules {
		for info := range mm.Iterate() {
			if info.State == Occupied {
				continue
			}
			matched := r.Condition.Qualify(info, mm)
			if len(matched) == 0 {
				continue
			}
			proto, peers, matchers := r.Action.Produce(m.rm.node, matched)
			if proto == nil {
				continue
			}
			if len(peers) != len(matchers) {
				// Malformed rule, not a runtime condition.
				logrus.Panicf("rule %q: action returned %d peers but %d matchers", r.Name, len(peers), len(matchers))
			}
			m.rm.spawn(r, proto, peers, matchers)
		}
	}
}
