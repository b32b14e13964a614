// Package ticket defines the support-ticket domain model shared by the
// activities, the routing engine and the orchestrator.
//
// All values in this package are plain data. A Ticket is supplied by the
// caller and never mutated; a Classification is derived once per ticket;
// an Outcome is the terminal artifact of one workflow execution.
//
// Failures crossing an activity or orchestrator boundary are reported as
// *OperationError values carrying one of the Kind constants, so callers can
// branch on the failure class with errors.As instead of string matching.
package ticket
