// Package sim provides the core discrete-event simulation engine for qnetsim.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - timeline.go: the event loop, logical clock, and FIFO tie-break ordering
//   - memory.go: quantum memory slots (RAW → OCCUPIED → ENTANGLED) and their manager
//   - resource.go: rule evaluation, protocol instantiation, and cross-node negotiation
//
// # Architecture
//
// A Timeline owns a time-ordered queue of pending events and is the only
// driver of execution; every state change is serialized through it. Each Node
// holds a MemoryManager (slot registry) and a ResourceManager (rule matching
// plus the requirement-negotiation protocol). Rules installed on a node match
// against memory state on every change and spawn protocol instances:
//   - generation.go: entanglement generation between adjacent nodes
//   - purification.go: BBPSSW two-pair purification
//   - swapping.go: entanglement swapping at an intermediate node
//
// Protocols coordinate across node pairs exclusively through messages carried
// by classical channels; there is no cross-node aliasing of mutable state;
// remote memories and protocols are referenced by name and resolved at
// negotiation time.
//
// # Key Interfaces
//
// The extension points are small interfaces:
//   - Condition: predicate over a memory slot, yields qualifying slots
//   - Action: builds a protocol plus its peer requirements from matched slots
//   - Matcher: identifies the negotiation partner among a peer's pending protocols
//   - Hardware: physical delays and probabilistic outcome draws
package sim
