// Package components defines the ECS components backing the agent store.
package components

// Position is an agent's location in field-pixel coordinates.
type Position struct {
	X, Y float32
}

// Heading is an agent's direction of travel.
type Heading struct {
	Angle float32 // radians, normalized to [0, 2π)
}
