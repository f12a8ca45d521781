package sim

import (
	"fmt"
	"iter"

	"github.com/sirupsen/logrus"
)

// MemoryState tags the lifecycle state of a quantum memory slot.
type MemoryState int

const (
	// Raw marks an unused slot.
	Raw MemoryState = iota
	// Occupied marks a slot exclusively claimed by an in-flight protocol.
	// Occupied slots are invisible to rule matching.
	Occupied
	// Entangled marks a slot holding one half of an entangled pair.
	Entangled
)

func (s MemoryState) String() string {
	switch s {
	case Raw:
		return "RAW"
	case Occupied:
		return "OCCUPIED"
	case Entangled:
		return "ENTANGLED"
	default:
		return fmt.Sprintf("MemoryState(%d)", int(s))
	}
}

// MemoryInfo is the record for a single memory slot. RemoteNode, RemoteMemo,
// Fidelity and EntangleTime are meaningful only while State is Entangled;
// every transition away from Entangled clears them.
type MemoryInfo struct {
	// Index is the stable slot id within the owning node.
	Index int
	// Name is the slot's global identity key, "<node>.mem[<index>]".
	// Matchers and cross-node references resolve memories by this name,
	// never by direct reference.
	Name  string
	State MemoryState

	RemoteNode   string
	RemoteMemo   string
	Fidelity     float64
	EntangleTime int64
}

// MemoryManager is the per-node registry of memory slots. All slot mutation
// routes through it so rule evaluation always observes a consistent snapshot:
// each Set* call completes the mutation before notifying the update hook.
type MemoryManager struct {
	node     string
	slots    []*MemoryInfo
	onUpdate func(*MemoryInfo)
}

// NewMemoryManager creates a manager with numSlots Raw slots owned by node.
func NewMemoryManager(node string, numSlots int) *MemoryManager {
	mm := &MemoryManager{node: node, slots: make([]*MemoryInfo, numSlots)}
	for i := range mm.slots {
		mm.slots[i] = &MemoryInfo{
			Index: i,
			Name:  fmt.Sprintf("%s.mem[%d]", node, i),
		}
	}
	return mm
}

// SetOnUpdate installs the hook invoked after every slot mutation. The
// ResourceManager uses it to trigger rule evaluation.
func (mm *MemoryManager) SetOnUpdate(fn func(*MemoryInfo)) {
	mm.onUpdate = fn
}

// Size returns the number of slots.
func (mm *MemoryManager) Size() int {
	return len(mm.slots)
}

// Get returns the slot with the given index, or nil if out of range.
func (mm *MemoryManager) Get(index int) *MemoryInfo {
	if index < 0 || index >= len(mm.slots) {
		return nil
	}
	return mm.slots[index]
}

// Iterate returns a lazy, restartable sequence of slots in index order.
// Read-only from the caller's perspective; reporting layers use it to
// inspect final state.
func (mm *MemoryManager) Iterate() iter.Seq[*MemoryInfo] {
	return func(yield func(*MemoryInfo) bool) {
		for _, info := range mm.slots {
			if !yield(info) {
				return
			}
		}
	}
}

// SetOccupied claims the slot for an in-flight protocol.
func (mm *MemoryManager) SetOccupied(index int) {
	info := mm.slots[index]
	info.State = Occupied
	mm.clearRemote(info)
	mm.notify(info)
}

// SetRaw releases the slot back to the unused pool.
func (mm *MemoryManager) SetRaw(index int) {
	info := mm.slots[index]
	info.State = Raw
	mm.clearRemote(info)
	mm.notify(info)
}

// SetEntangled records one half of an entangled pair on the slot.
func (mm *MemoryManager) SetEntangled(index int, remoteNode, remoteMemo string, fidelity float64, t int64) {
	info := mm.slots[index]
	info.State = Entangled
	info.RemoteNode = remoteNode
	info.RemoteMemo = remoteMemo
	info.Fidelity = fidelity
	info.EntangleTime = t
	mm.notify(info)
}

// EntangledCount reports how many slots currently hold entanglement.
func (mm *MemoryManager) EntangledCount() int {
	n := 0
	for _, info := range mm.slots {
		if info.State == Entangled {
			n++
		}
	}
	return n
}

func (mm *MemoryManager) clearRemote(info *MemoryInfo) {
	info.RemoteNode = ""
	info.RemoteMemo = ""
	info.Fidelity = 0
	info.EntangleTime = 0
}

func (mm *MemoryManager) notify(info *MemoryInfo) {
	logrus.Debugf("%s -> %s (remote=%s/%s f=%.4f)", info.Name, info.State, info.RemoteNode, info.RemoteMemo, info.Fidelity)
	if mm.onUpdate != nil {
		mm.onUpdate(info)
	}
}
