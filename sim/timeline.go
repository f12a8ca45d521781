package sim

import (
	"container/heap"
	"errors"

	"github.com/sirupsen/logrus"
)

// ErrPastEvent is returned by Timeline.Schedule when an event's timestamp is
// earlier than the current clock. Scheduling into the past violates the
// monotonic-time invariant and is always a caller bug.
var ErrPastEvent = errors.New("event scheduled before current simulation time")

// queueItem pairs an event with its insertion sequence number. The sequence
// number breaks ties between equal timestamps so that equal-time events pop
// in strict FIFO order, which keeps runs reproducible.
type queueItem struct {
	ev  Event
	seq uint64
}

// eventQueue implements heap.Interface and orders events by (timestamp, seq).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type eventQueue []queueItem

func (eq eventQueue) Len() int { return len(eq) }

func (eq eventQueue) Less(i, j int) bool {
	ti, tj := eq[i].ev.Timestamp(), eq[j].ev.Timestamp()
	if ti != tj {
		return ti < tj
	}
	return eq[i].seq < eq[j].seq
}

func (eq eventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *eventQueue) Push(x any) {
	*eq = append(*eq, x.(queueItem))
}

func (eq *eventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	*eq = old[0 : n-1]
	return item
}

// Timeline is the discrete-event kernel: it holds the logical clock and the
// queue of pending events, and advances time strictly forward by executing
// one event at a time. It is created once per simulation run and is the only
// driver of execution; there are no concurrent mutators by construction.
type Timeline struct {
	Clock int64
	// ExecutedEvents counts events dispatched so far, for end-of-run reporting.
	ExecutedEvents int64

	queue   eventQueue
	nextSeq uint64
}

// NewTimeline creates a Timeline with the clock at zero and an empty queue.
func NewTimeline() *Timeline {
	return &Timeline{queue: make(eventQueue, 0)}
}

// Now returns the current logical time in ticks.
func (tl *Timeline) Now() int64 {
	return tl.Clock
}

// Len returns the number of pending events.
func (tl *Timeline) Len() int {
	return len(tl.queue)
}

// Schedule inserts an event into the queue. The event is owned by the
// timeline until executed. Returns ErrPastEvent if the event's timestamp is
// earlier than the current clock.
func (tl *Timeline) Schedule(ev Event) error {
	if ev.Timestamp() < tl.Clock {
		return ErrPastEvent
	}
	heap.Push(&tl.queue, queueItem{ev: ev, seq: tl.nextSeq})
	tl.nextSeq++
	return nil
}

// mustSchedule is the internal scheduling path. Engine code always computes
// delivery times as now+delay with delay >= 0, so a past event here is a
// programming error, not a runtime condition.
func (tl *Timeline) mustSchedule(ev Event) {
	if err := tl.Schedule(ev); err != nil {
		logrus.Panicf("invalid schedule: %T at %d ticks with clock at %d", ev, ev.Timestamp(), tl.Clock)
	}
}

// RunUntil pops the minimum-time event and executes it, advancing the clock
// to that event's time, until the queue is empty or the next event's time
// reaches end. Events scheduled at exactly end do not run. Equal-time events
// execute in insertion order.
func (tl *Timeline) RunUntil(end int64) {
	for len(tl.queue) > 0 {
		next := tl.queue[0]
		t := next.ev.Timestamp()
		if t >= end {
			break
		}
		heap.Pop(&tl.queue)
		if t < tl.Clock {
			// The queue ordering guarantees non-decreasing pop times; a
			// regression means the heap invariant was corrupted.
			logrus.Panicf("event time regression: popped %d with clock at %d", t, tl.Clock)
		}
		tl.Clock = t
		tl.ExecutedEvents++
		logrus.Debugf("[tick %07d] executing %T", tl.Clock, next.ev)
		next.ev.Execute()
	}
}
