// Package finding provides vulnerability reports and the finding store.
//
// A Report is a candidate security issue backed by structured Evidence:
// captured HTTP exchanges, numbered reproduction steps, a proof-of-concept
// payload, and reporter control tests. Evidence requirements exist to keep
// unverifiable claims out of the pipeline; a report that cannot demonstrate
// exploitation is rejected at submission time.
//
// The Store tracks every report in exactly one of four queues keyed by
// status: pending verification, verified, rejected, needs manual review.
// Transitions are one-way out of pending; terminal queues never change.
// Report ids follow the vuln-NNNN format and increase monotonically under
// the store's mutex.
package finding
