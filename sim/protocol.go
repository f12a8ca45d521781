package sim

import "fmt"

// ProtocolKind is the tagged variant over the fixed protocol families.
// Matchers and broadcast routing dispatch on the kind tag instead of
// dynamic type inspection.
type ProtocolKind int

const (
	KindGeneration ProtocolKind = iota
	KindPurification
	KindSwappingA
	KindSwappingB
)

func (k ProtocolKind) String() string {
	switch k {
	case KindGeneration:
		return "generation"
	case KindPurification:
		return "purification"
	case KindSwappingA:
		return "swapping_a"
	case KindSwappingB:
		return "swapping_b"
	default:
		return fmt.Sprintf("ProtocolKind(%d)", int(k))
	}
}

// short returns the tag used in generated protocol instance names.
func (k ProtocolKind) short() string {
	switch k {
	case KindGeneration:
		return "EG"
	case KindPurification:
		return "BBPSSW"
	case KindSwappingA:
		return "SWA"
	case KindSwappingB:
		return "SWB"
	default:
		return "UNK"
	}
}

// ProtocolState is the shared lifecycle of all protocol instances.
type ProtocolState int

const (
	// Pending: created by a rule action, negotiation unresolved.
	Pending ProtocolState = iota
	// Active: negotiation complete, physical steps executing.
	Active
	// Succeeded is terminal.
	Succeeded
	// Failed is terminal; covers rejection, physical failure, and cancellation.
	Failed
)

func (s ProtocolState) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Active:
		return "ACTIVE"
	case Succeeded:
		return "SUCCESS"
	case Failed:
		return "FAILED"
	default:
		return fmt.Sprintf("ProtocolState(%d)", int(s))
	}
}

// pairRef names a protocol instance on a remote node.
type pairRef struct {
	node string
	name string
}

// Protocol is a state-machine instance spawned by a rule action. It owns its
// memory slots exclusively while live; on reaching a terminal state any slot
// still Occupied reverts to Raw unless it was promoted to Entangled.
//
// The unexported methods seal the interface to the fixed kinds in this
// package; the lifecycle plumbing is driven by the ResourceManager.
type Protocol interface {
	Name() string
	Kind() ProtocolKind
	State() ProtocolState
	// IdentityKey is the owning (primary) memory name, used for matcher
	// lookups across nodes.
	IdentityKey() string
	Memories() []*MemoryInfo
	// Start begins the physical steps once negotiation completes.
	Start()
	// HandleMessage processes a message addressed to this instance.
	HandleMessage(src string, payload any)

	owner() *Rule
	setOwner(r *Rule)
	setCounterpart(node, name, key string)
	counterparts() []pairRef
	activate()
	fail()
}

// baseProtocol carries the state shared by all protocol kinds. Generation
// and purification have a single counterpart; SwappingA overrides the
// counterpart bookkeeping for its two ends.
type baseProtocol struct {
	name     string
	kind     ProtocolKind
	state    ProtocolState
	node     *Node
	rule     *Rule
	memories []*MemoryInfo

	peerNode  string
	peerProto string
	peerKey   string
}

func (b *baseProtocol) Name() string            { return b.name }
func (b *baseProtocol) Kind() ProtocolKind      { return b.kind }
func (b *baseProtocol) State() ProtocolState    { return b.state }
func (b *baseProtocol) Memories() []*MemoryInfo { return b.memories }

func (b *baseProtocol) IdentityKey() string {
	if len(b.memories) == 0 {
		return ""
	}
	return b.memories[0].Name
}

func (b *baseProtocol) owner() *Rule     { return b.rule }
func (b *baseProtocol) setOwner(r *Rule) { b.rule = r }

func (b *baseProtocol) setCounterpart(node, name, key string) {
	b.peerNode, b.peerProto, b.peerKey = node, name, key
}

func (b *baseProtocol) counterparts() []pairRef {
	if b.peerProto == "" {
		return nil
	}
	return []pairRef{{node: b.peerNode, name: b.peerProto}}
}

func (b *baseProtocol) activate() { b.state = Active }

func (b *baseProtocol) terminal() bool {
	return b.state == Succeeded || b.state == Failed
}

func (b *baseProtocol) fail() {
	if b.terminal() {
		return
	}
	b.conclude(Failed)
	b.revertOccupied()
}

// conclude moves the protocol to a terminal state and unhooks it from its
// node, rule, and any pending negotiation. Memory writes happen after the
// unhook: rule evaluation triggered by those writes must never observe a
// half-finished instance, and a slot promoted by this protocol must not be
// reverted after another rule claims it.
func (b *baseProtocol) conclude(st ProtocolState) {
	b.state = st
	b.node.finishProtocol(b.name, b.kind, b.rule, st)
}

// revertOccupied releases every slot this protocol still holds back to Raw.
func (b *baseProtocol) revertOccupied() {
	for _, m := range b.memories {
		if m.State == Occupied {
			b.node.Memory.SetRaw(m.Index)
		}
	}
}

// sendToPeer addresses the negotiated counterpart protocol instance.
func (b *baseProtocol) sendToPeer(payload any) {
	b.node.Send(Message{
		Dst:      b.peerNode,
		Receiver: b.peerProto,
		Kind:     b.kind,
		Payload:  payload,
	})
}
