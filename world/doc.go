// Package world defines the narrow interfaces the scheduler consumes from the
// simulated world: entity lookup, worker and facility listings, path
// distance, and the action primitives workers and facilities can perform.
//
// Sensing, pathing and movement execution live outside this module; the
// world/sim package provides a deterministic in-memory implementation used by
// tests and the swarmflow CLI.
package world
