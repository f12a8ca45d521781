package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNode_Send_WithoutChannelDrops(t *testing.T) {
	net := NewNetwork(NewTimeline())
	a := net.AddNode("alice", 1, &fixedHardware{succeed: true, delay: 1})

	assert.NotPanics(t, func() {
		a.Send(Message{Dst: "nowhere", Receiver: ResourceManagerAddress, Payload: RejectPayload{}})
	})
	assert.Equal(t, 0, net.Metrics.MessagesSent)
	assert.Equal(t, 0, net.Timeline.Len())
}

func TestNode_Send_DeliversAfterChannelDelay(t *testing.T) {
	net, a, _ := newLinkedPair(t, 1, 25, 1.0, 0.9, &fixedHardware{succeed: true, delay: 1})

	a.Send(Message{Dst: "bob", Receiver: ResourceManagerAddress, Payload: RejectPayload{Requester: "x"}})
	assert.Equal(t, 1, net.Metrics.MessagesSent)

	net.Timeline.RunUntil(25)
	assert.Equal(t, 0, net.Metrics.MessagesDelivered)
	net.Timeline.RunUntil(26)
	assert.Equal(t, 1, net.Metrics.MessagesDelivered)
}

func TestNode_Receive_UnknownReceiverDropped(t *testing.T) {
	net, _, b := newLinkedPair(t, 1, 10, 1.0, 0.9, &fixedHardware{succeed: true, delay: 1})

	assert.NotPanics(t, func() {
		b.Receive(Message{Src: "alice", Receiver: "bob.EG.42", Payload: GenerationResult{Success: true}})
	})
	assert.Equal(t, 1, net.Metrics.MessagesDropped)
	assert.Equal(t, 0, b.Memory.EntangledCount())
}

func TestNode_Receive_EmptyReceiverBroadcastsByKind(t *testing.T) {
	// GIVEN an active generation protocol waiting on its attempt
	net, a, b := newLinkedPair(t, 1, 10, 1.0, 0.9, &fixedHardware{succeed: true, delay: 50})
	loadGenerationRules(t, a, b, 1)
	net.Timeline.RunUntil(25) // negotiated at t=20, attempt not due until t=70

	// WHEN a result arrives with no named receiver
	a.Receive(Message{
		Src:     "bob",
		Kind:    KindGeneration,
		Payload: GenerationResult{Memory: "bob.mem[0]", Success: true, Fidelity: 0.9},
	})

	// THEN the active protocol of that kind handles it
	assert.Equal(t, Entangled, a.Memory.Get(0).State)
	assert.Equal(t, "bob.mem[0]", a.Memory.Get(0).RemoteMemo)
}

func TestNode_ProtocolNamesAreUniquePerNode(t *testing.T) {
	_, a, _ := newLinkedPair(t, 1, 10, 1.0, 0.9, &fixedHardware{succeed: true, delay: 1})

	n1 := a.nextProtocolName(KindGeneration)
	n2 := a.nextProtocolName(KindGeneration)
	n3 := a.nextProtocolName(KindSwappingB)

	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, n2, n3)
	assert.Contains(t, n1, "alice.EG.")
	assert.Contains(t, n3, "alice.SWB.")
}
