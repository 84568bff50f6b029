package catalog

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/rmon-protocol/rmon-go/pkg/wire"
)

// Policy names accepted by NewPolicy.
const (
	PolicyRandom     = "random"
	PolicyRoundRobin = "round-robin"
	PolicyNone       = "none"
)

// Suggestions is the fixed set of next commands handed to push-mode agents.
var Suggestions = []wire.NextCommand{
	{Type: "shell", Command: "ps | head -10"},
	{Type: "location", Command: "get_location"},
	{Type: "system_info", Command: "get_device_info"},
}

// Policy picks the next command returned to a push-mode agent.
// Implementations must be safe for concurrent use.
type Policy interface {
	Next() wire.NextCommand
}

// RandomPolicy picks uniformly at random from a fixed set.
type RandomPolicy struct {
	choices []wire.NextCommand

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomPolicy creates a RandomPolicy over choices. A nil rng uses a
// randomly seeded source.
func NewRandomPolicy(choices []wire.NextCommand, rng *rand.Rand) *RandomPolicy {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomPolicy{
		choices: append([]wire.NextCommand(nil), choices...),
		rng:     rng,
	}
}

// Next returns one of the configured choices.
func (p *RandomPolicy) Next() wire.NextCommand {
	if len(p.choices) == 0 {
		return wire.NextCommand{}
	}
	p.mu.Lock()
	i := p.rng.IntN(len(p.choices))
	p.mu.Unlock()
	return p.choices[i]
}

// RoundRobinPolicy cycles through a fixed set in order.
type RoundRobinPolicy struct {
	choices []wire.NextCommand

	mu   sync.Mutex
	next int
}

// NewRoundRobinPolicy creates a RoundRobinPolicy over choices.
func NewRoundRobinPolicy(choices []wire.NextCommand) *RoundRobinPolicy {
	return &RoundRobinPolicy{choices: append([]wire.NextCommand(nil), choices...)}
}

// Next returns the next choice in sequence.
func (p *RoundRobinPolicy) Next() wire.NextCommand {
	if len(p.choices) == 0 {
		return wire.NextCommand{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.choices[p.next]
	p.next = (p.next + 1) % len(p.choices)
	return c
}

// FixedPolicy always returns the same command. The zero value returns an
// empty next command, which tells the agent to stay idle.
type FixedPolicy struct {
	Command wire.NextCommand
}

// Next returns p.Command.
func (p FixedPolicy) Next() wire.NextCommand {
	return p.Command
}

// NewPolicy builds a policy over Suggestions by name.
func NewPolicy(name string) (Policy, error) {
	switch name {
	case "", PolicyRandom:
		return NewRandomPolicy(Suggestions, nil), nil
	case PolicyRoundRobin:
		return NewRoundRobinPolicy(Suggestions), nil
	case PolicyNone:
		return FixedPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown suggestion policy %q", name)
	}
}

var (
	_ Policy = (*RandomPolicy)(nil)
	_ Policy = (*RoundRobinPolicy)(nil)
	_ Policy = FixedPolicy{}
)
