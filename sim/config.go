package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScenarioSpec is the top-level scenario configuration.
// Loaded from YAML via LoadScenario(path).
type ScenarioSpec struct {
	Seed    int64        `yaml:"seed"`
	Horizon int64        `yaml:"horizon"`
	Delays  DelaySpec    `yaml:"delays,omitempty"`
	Nodes   []NodeSpec   `yaml:"nodes"`
	Links   []LinkSpec   `yaml:"links"`
	Swaps   []SwapSpec   `yaml:"swaps,omitempty"`
	Purify  []PurifySpec `yaml:"purify,omitempty"`
}

// DelaySpec sets the physical step delays, in ticks. Zero values fall back
// to one tick so every physical step advances simulated time.
type DelaySpec struct {
	Generation   int64 `yaml:"generation,omitempty"`
	Purification int64 `yaml:"purification,omitempty"`
	Swap         int64 `yaml:"swap,omitempty"`
}

// NodeSpec declares one node and its memory array size.
type NodeSpec struct {
	Name     string `yaml:"name"`
	Memories int    `yaml:"memories"`
}

// LinkSpec declares one adjacent pair: a classical channel plus a quantum
// link, and the generation rules keeping it entangled. ASlots/BSlots reserve
// [lo, hi) index ranges on each end; empty reserves the whole array. The A
// side initiates unless Initiator names B.
type LinkSpec struct {
	A           string  `yaml:"a"`
	B           string  `yaml:"b"`
	Delay       int64   `yaml:"delay"`
	SuccessProb float64 `yaml:"success_prob"`
	Fidelity    float64 `yaml:"fidelity"`
	Initiator   string  `yaml:"initiator,omitempty"`
	ASlots      []int   `yaml:"a_slots,omitempty"`
	BSlots      []int   `yaml:"b_slots,omitempty"`
	Priority    int     `yaml:"priority,omitempty"`
}

// SwapSpec installs swapping at Node between its Left and Right neighbors.
type SwapSpec struct {
	Node        string  `yaml:"node"`
	Left        string  `yaml:"left"`
	Right       string  `yaml:"right"`
	SuccessProb float64 `yaml:"success_prob"`
	Degradation float64 `yaml:"degradation,omitempty"` // 0 means 1.0 (no degradation)
	Priority    int     `yaml:"priority,omitempty"`
}

// PurifySpec installs purification on Node for pairs with Peer (any peer if
// empty) below Threshold.
type PurifySpec struct {
	Node      string  `yaml:"node"`
	Peer      string  `yaml:"peer,omitempty"`
	Threshold float64 `yaml:"threshold"`
	Priority  int     `yaml:"priority,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*ScenarioSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var spec ScenarioSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks cross-references and value ranges.
func (s *ScenarioSpec) Validate() error {
	if s.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive")
	}
	if len(s.Nodes) == 0 {
		return fmt.Errorf("scenario declares no nodes")
	}
	sizes := make(map[string]int, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.Name == "" {
			return fmt.Errorf("node with empty name")
		}
		if _, dup := sizes[n.Name]; dup {
			return fmt.Errorf("duplicate node %q", n.Name)
		}
		if n.Memories <= 0 {
			return fmt.Errorf("node %q: memories must be positive", n.Name)
		}
		sizes[n.Name] = n.Memories
	}
	for i, l := range s.Links {
		if _, ok := sizes[l.A]; !ok {
			return fmt.Errorf("link %d: unknown node %q", i, l.A)
		}
		if _, ok := sizes[l.B]; !ok {
			return fmt.Errorf("link %d: unknown node %q", i, l.B)
		}
		if l.Delay <= 0 {
			return fmt.Errorf("link %s-%s: delay must be positive", l.A, l.B)
		}
		if l.SuccessProb < 0 || l.SuccessProb > 1 {
			return fmt.Errorf("link %s-%s: success_prob outside [0,1]", l.A, l.B)
		}
		if l.Fidelity < 0 || l.Fidelity > 1 {
			return fmt.Errorf("link %s-%s: fidelity outside [0,1]", l.A, l.B)
		}
		if l.Initiator != "" && l.Initiator != l.A && l.Initiator != l.B {
			return fmt.Errorf("link %s-%s: initiator %q is not an endpoint", l.A, l.B, l.Initiator)
		}
		if err := validateSlots(l.ASlots, sizes[l.A], l.A); err != nil {
			return err
		}
		if err := validateSlots(l.BSlots, sizes[l.B], l.B); err != nil {
			return err
		}
	}
	for _, sw := range s.Swaps {
		for _, name := range []string{sw.Node, sw.Left, sw.Right} {
			if _, ok := sizes[name]; !ok {
				return fmt.Errorf("swap at %q: unknown node %q", sw.Node, name)
			}
		}
		if sw.SuccessProb < 0 || sw.SuccessProb > 1 {
			return fmt.Errorf("swap at %q: success_prob outside [0,1]", sw.Node)
		}
		if sw.Degradation < 0 || sw.Degradation > 1 {
			return fmt.Errorf("swap at %q: degradation outside [0,1]", sw.Node)
		}
	}
	for _, p := range s.Purify {
		if _, ok := sizes[p.Node]; !ok {
			return fmt.Errorf("purify: unknown node %q", p.Node)
		}
		if p.Threshold <= 0.5 || p.Threshold > 1 {
			return fmt.Errorf("purify at %q: threshold must be in (0.5, 1]", p.Node)
		}
	}
	return nil
}

func validateSlots(slots []int, size int, node string) error {
	if len(slots) == 0 {
		return nil
	}
	if len(slots) != 2 {
		return fmt.Errorf("%s: slot range must be [lo, hi]", node)
	}
	if slots[0] < 0 || slots[1] > size || slots[0] >= slots[1] {
		return fmt.Errorf("%s: slot range [%d, %d) out of bounds for %d memories", node, slots[0], slots[1], size)
	}
	return nil
}

func slotRange(slots []int, size int) (int, int) {
	if len(slots) == 2 {
		return slots[0], slots[1]
	}
	return 0, size
}

// BuildNetwork constructs the nodes, channels, links, and rules of a
// validated scenario on a fresh timeline.
func BuildNetwork(spec *ScenarioSpec) (*Network, error) {
	tl := NewTimeline()
	net := NewNetwork(tl)
	rng := NewPartitionedRNG(NewSimulationKey(spec.Seed))

	delays := map[DelayKind]int64{}
	if spec.Delays.Generation > 0 {
		delays[DelayGeneration] = spec.Delays.Generation
	}
	if spec.Delays.Purification > 0 {
		delays[DelayPurification] = spec.Delays.Purification
	}
	if spec.Delays.Swap > 0 {
		delays[DelaySwap] = spec.Delays.Swap
	}

	sizes := make(map[string]int, len(spec.Nodes))
	for _, n := range spec.Nodes {
		hw := NewBasicHardware(rng.ForSubsystem(SubsystemNode(n.Name)), delays)
		net.AddNode(n.Name, n.Memories, hw)
		sizes[n.Name] = n.Memories
	}

	for _, l := range spec.Links {
		if err := net.Connect(l.A, l.B, l.Delay); err != nil {
			return nil, err
		}
		if err := net.AddLink(l.A, l.B, l.SuccessProb, l.Fidelity); err != nil {
			return nil, err
		}
	}

	// Swap-end and purification rules first: higher-level rules must be in
	// place before generation starts changing memory state.
	for _, p := range spec.Purify {
		node := net.Node(p.Node)
		if err := node.Resources.Rules.Load(NewPurificationRule(p.Peer, p.Threshold, p.Priority)); err != nil {
			return nil, err
		}
	}
	for _, sw := range spec.Swaps {
		deg := sw.Degradation
		if deg == 0 {
			deg = 1.0
		}
		if err := net.Node(sw.Node).Resources.Rules.Load(NewSwappingRule(sw.Left, sw.Right, sw.SuccessProb, deg, sw.Priority)); err != nil {
			return nil, err
		}
		for _, end := range []string{sw.Left, sw.Right} {
			if err := net.Node(end).Resources.Rules.Load(NewSwapEndRule(sw.Node, sw.Priority)); err != nil {
				return nil, err
			}
		}
	}

	for _, l := range spec.Links {
		initiator := l.Initiator
		if initiator == "" {
			initiator = l.A
		}
		aLo, aHi := slotRange(l.ASlots, sizes[l.A])
		bLo, bHi := slotRange(l.BSlots, sizes[l.B])
		aRule := NewGenerationRule(l.B, initiator == l.A, aLo, aHi, l.Priority)
		bRule := NewGenerationRule(l.A, initiator == l.B, bLo, bHi, l.Priority)
		if err := net.Node(l.A).Resources.Rules.Load(aRule); err != nil {
			return nil, err
		}
		if err := net.Node(l.B).Resources.Rules.Load(bRule); err != nil {
			return nil, err
		}
	}

	return net, nil
}
