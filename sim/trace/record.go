// Package trace provides decision-trace recording for negotiation and
// protocol-lifecycle analysis. This package has no dependencies on sim/:
// it stores pure data types.
package trace

// NegotiationRecord captures a single negotiation step at one node.
// Type is one of "request", "confirm", "reject", "abort".
type NegotiationRecord struct {
	Clock     int64
	Node      string
	Type      string
	Requester string
	Responder string // set on confirms
}

// ProtocolRecord captures one protocol lifecycle transition at one node.
// State is the protocol state reached: PENDING on spawn, ACTIVE on
// negotiation completion, SUCCESS or FAILED on termination.
type ProtocolRecord struct {
	Clock int64
	Node  string
	Name  string
	Kind  string
	State string
}
