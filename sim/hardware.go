package sim

import "math/rand"

// DelayKind selects which physical step a hardware delay applies to.
type DelayKind int

const (
	// DelayGeneration is the photon emission + heralding round of a
	// generation attempt.
	DelayGeneration DelayKind = iota
	// DelayPurification is the local CNOT + measurement of a purification round.
	DelayPurification
	// DelaySwap is the Bell-state measurement at the swapping node.
	DelaySwap
)

// Hardware is the physical-model boundary consumed by protocol state
// machines: how long a physical step takes, and whether a probabilistic
// step succeeds. Implementations must be deterministic for a fixed seed.
type Hardware interface {
	ScheduleDelay(kind DelayKind) int64
	DrawSuccess(probability float64) bool
}

// BasicHardware is the default Hardware: fixed per-kind delays and a
// seeded RNG for outcome draws.
type BasicHardware struct {
	delays map[DelayKind]int64
	rng    *rand.Rand
}

// NewBasicHardware builds a BasicHardware. Missing delay kinds default to
// one tick so every physical step advances simulated time.
func NewBasicHardware(rng *rand.Rand, delays map[DelayKind]int64) *BasicHardware {
	d := map[DelayKind]int64{
		DelayGeneration:   1,
		DelayPurification: 1,
		DelaySwap:         1,
	}
	for k, v := range delays {
		d[k] = v
	}
	return &BasicHardware{delays: d, rng: rng}
}

// ScheduleDelay returns the configured delay for the given step kind.
func (h *BasicHardware) ScheduleDelay(kind DelayKind) int64 {
	return h.delays[kind]
}

// DrawSuccess draws a Bernoulli outcome with the given probability.
// Degenerate probabilities short-circuit without consuming the stream, so
// all-deterministic scenarios produce identical traces regardless of seed.
func (h *BasicHardware) DrawSuccess(probability float64) bool {
	if probability >= 1 {
		return true
	}
	if probability <= 0 {
		return false
	}
	return h.rng.Float64() < probability
}
