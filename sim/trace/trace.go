package trace

import "github.com/google/uuid"

// SimulationTrace collects negotiation and protocol records during a run.
// Attach one to a network to enable recording; a nil trace disables it with
// zero overhead.
type SimulationTrace struct {
	// RunID uniquely identifies this run's trace output.
	RunID string

	Negotiations []NegotiationRecord
	Protocols    []ProtocolRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace() *SimulationTrace {
	return &SimulationTrace{
		RunID:        uuid.NewString(),
		Negotiations: make([]NegotiationRecord, 0),
		Protocols:    make([]ProtocolRecord, 0),
	}
}

// RecordNegotiation appends a negotiation step record.
func (st *SimulationTrace) RecordNegotiation(record NegotiationRecord) {
	st.Negotiations = append(st.Negotiations, record)
}

// RecordProtocol appends a protocol lifecycle record.
func (st *SimulationTrace) RecordProtocol(record ProtocolRecord) {
	st.Protocols = append(st.Protocols, record)
}
