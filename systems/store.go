package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/slime/components"
)

// AgentStore owns the agent population as ECS entities with Position and
// Heading components. The population is fixed when the store is created.
//
// Passes work on a contiguous []Agent snapshot: Load copies components out,
// workers update the slice in parallel (one slot per task), and Store writes
// the results back after the barrier.
type AgentStore struct {
	world  *ecs.World
	mapper *ecs.Map2[components.Position, components.Heading]
	filter *ecs.Filter2[components.Position, components.Heading]
	count  int
}

// NewAgentStore creates one entity per agent, in slice order.
func NewAgentStore(agents []Agent) *AgentStore {
	world := ecs.NewWorld()

	s := &AgentStore{
		world:  world,
		mapper: ecs.NewMap2[components.Position, components.Heading](world),
		filter: ecs.NewFilter2[components.Position, components.Heading](world),
	}

	for _, a := range agents {
		pos := components.Position{X: a.X, Y: a.Y}
		head := components.Heading{Angle: a.Angle}
		s.mapper.NewEntity(&pos, &head)
		s.count++
	}
	return s
}

// Len returns the population size.
func (s *AgentStore) Len() int {
	return s.count
}

// Load copies every agent into dst, growing it if needed, and returns it.
// Order is stable across calls.
func (s *AgentStore) Load(dst []Agent) []Agent {
	if cap(dst) < s.count {
		dst = make([]Agent, s.count)
	}
	dst = dst[:s.count]

	i := 0
	query := s.filter.Query()
	for query.Next() {
		pos, head := query.Get()
		dst[i] = Agent{X: pos.X, Y: pos.Y, Angle: head.Angle}
		i++
	}
	return dst
}

// Store writes src back to the components in Load order. src must have
// Len() entries; extra entries are ignored.
func (s *AgentStore) Store(src []Agent) {
	i := 0
	query := s.filter.Query()
	for query.Next() {
		if i < len(src) {
			pos, head := query.Get()
			a := src[i]
			pos.X, pos.Y = a.X, a.Y
			head.Angle = a.Angle
		}
		i++
	}
}
