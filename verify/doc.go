// Package verify orchestrates two-phase verification of pending findings.
//
// Every report added to the pending queue gets its own verifier agent:
// max 50 iterations, a 600 second watchdog, and a decision tool. The
// decision either finalizes the report (with reproduction and validity
// evidence) or rejects it with a reason. Verifiers that exit without a
// decision, or outlive the watchdog, push the report to manual review.
//
// The package also owns the finish gates: a verifier may not call
// agent_finish while its report is pending, and the root agent may not
// call finish_scan while any agent is active or any finding is pending.
package verify
