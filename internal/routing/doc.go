// Package routing decides which activities a ticket needs.
//
// The engine is a pure function of a classification and, for the elevated
// path, the result of one knowledge search. It performs no I/O and reads no
// clock, so replaying a workflow from its start reproduces the same plan.
//
// Paths, in precedence order:
//
//	critical  urgency == critical
//	elevated  sentiment == negative or urgency == high
//	normal    everything else
//
// The elevated path is planned in two phases: Route returns a pending plan
// that ends with a search, and Resume extends it once the search result is
// known.
package routing
