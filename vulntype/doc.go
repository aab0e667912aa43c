// Package vulntype provides the closed vulnerability type registry.
//
// Each entry binds a type id (referenced by reports as vulnerability_type)
// to its display name, the semantic claim the class makes, the control
// tests a reporter must run before submission, validity criteria, and
// known false-positive patterns.
//
// The registry ships as an embedded YAML data file and is read-only at
// runtime. Validity criteria and false-positive patterns are CEL
// expressions compiled at load time and evaluated against a report and its
// evidence during verification; a criterion that fails or a pattern that
// matches does not veto a decision by itself, it is surfaced to the
// verifier as a signal.
package vulntype
