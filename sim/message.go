package sim

// ResourceManagerAddress is the literal receiver spec that routes a message
// to the destination node's ResourceManager instead of a named protocol.
const ResourceManagerAddress = "resource_manager"

// Message is the unit of classical communication between nodes. Receiver is
// either a specific protocol name, ResourceManagerAddress, or empty; empty
// broadcasts to all active protocols of the matching Kind on the destination.
type Message struct {
	Src      string
	Dst      string
	Receiver string
	Kind     ProtocolKind
	Payload  any
}

// === Negotiation payloads (handled by the ResourceManager) ===

// RequestPayload asks a peer to pair one of its pending protocols with the
// named requester protocol. Key is the requester's identity key (its primary
// memory name), available to the matched protocol for bookkeeping.
type RequestPayload struct {
	Protocol string
	Key      string
	Matcher  Matcher
}

// ConfirmPayload reports a successful match. Responder names the matched
// protocol on the confirming node; Key is its identity key.
type ConfirmPayload struct {
	Requester string
	Responder string
	Key       string
}

// RejectPayload reports that no pending protocol matched the request.
type RejectPayload struct {
	Requester string
}

// AbortPayload is the best-effort cancellation notice sent to a negotiated
// peer when the local protocol is torn down. Protocol names the peer's own
// protocol instance.
type AbortPayload struct {
	Protocol string
}

// === Protocol payloads ===

// GenerationResult carries the initiator's drawn outcome of a generation
// attempt to the responder. Memory is the initiator's memory name, used as
// the responder's RemoteMemo on success.
type GenerationResult struct {
	Memory   string
	Success  bool
	Fidelity float64
}

// PurificationResult carries the initiator's drawn purification outcome.
// Fidelity is the kept pair's upgraded fidelity, valid only on success.
type PurificationResult struct {
	Success  bool
	Fidelity float64
}

// SwapResult tells an endpoint how to finalize after a Bell-state measurement
// at the middle node: on success the endpoint's slot is re-pointed at
// NewNode/NewMemo with the degraded Fidelity; on failure it reverts to Raw.
type SwapResult struct {
	Success  bool
	NewNode  string
	NewMemo  string
	Fidelity float64
}
