// Package services assembles the ticket processing stack from
// configuration: the idempotency store, the activity providers, the status
// system of record and the in-process orchestrator. Both binaries build
// through here so the HTTP server and the Temporal worker run identical
// activities.
package services
