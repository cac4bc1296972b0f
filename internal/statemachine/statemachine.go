// Package statemachine encodes the document, job, and processor-execution
// lifecycles as static transition tables keyed by (machine, from, to), per
// SPEC_FULL §9's design note: "encode transitions as a static table... reject
// at the persistence boundary."
package statemachine

import "github.com/docuflow/enginecore/internal/core"

// Machine names one of the three state machines spec.md §4.7 defines.
type Machine string

const (
	MachineDocument           Machine = "document"
	MachineDocumentJob        Machine = "document_job"
	MachineProcessorExecution Machine = "processor_execution"
)

type transition struct {
	machine  Machine
	from, to string
}

// allowed is the full legal-transition table. Every (from, to) pair actually
// persisted by any component must appear here, per invariant 7 in spec.md §8.
var allowed = map[transition]bool{
	// Document: pending -> queued -> processing -> {completed | failed | cancelled}
	{MachineDocument, "pending", "queued"}:        true,
	{MachineDocument, "queued", "processing"}:     true,
	{MachineDocument, "processing", "completed"}:  true,
	{MachineDocument, "processing", "failed"}:     true,
	{MachineDocument, "processing", "cancelled"}:  true,
	{MachineDocument, "pending", "cancelled"}:      true,
	{MachineDocument, "queued", "cancelled"}:       true,
	// failed -> failed is the one permitted self-loop (idempotent re-fail on
	// retry exhaustion; see DESIGN.md Open Question #2).
	{MachineDocument, "failed", "failed"}: true,

	// DocumentJob: pending -> queued -> running -> {completed|failed|cancelled},
	// plus failed -> queued when retries remain.
	{MachineDocumentJob, "pending", "queued"}:       true,
	{MachineDocumentJob, "queued", "running"}:       true,
	{MachineDocumentJob, "running", "running"}:      true, // idempotent re-mark (step 3 of §4.7)
	{MachineDocumentJob, "running", "completed"}:    true,
	{MachineDocumentJob, "running", "failed"}:        true,
	{MachineDocumentJob, "failed", "queued"}:         true,
	{MachineDocumentJob, "pending", "cancelled"}:     true,
	{MachineDocumentJob, "queued", "cancelled"}:      true,
	{MachineDocumentJob, "running", "cancelled"}:     true,
	{MachineDocumentJob, "failed", "failed"}:         true,

	// ProcessorExecution: pending -> running -> {completed|failed|skipped}
	{MachineProcessorExecution, "pending", "running"}:   true,
	{MachineProcessorExecution, "running", "completed"}: true,
	{MachineProcessorExecution, "running", "failed"}:    true,
	{MachineProcessorExecution, "running", "skipped"}:   true,
	{MachineProcessorExecution, "pending", "skipped"}:   true,
}

// terminalStates names the from-states that accept no further transitions
// for each machine, used by IsTerminal.
var terminalStates = map[Machine]map[string]bool{
	MachineDocument:           {"completed": true, "failed": true, "cancelled": true},
	MachineDocumentJob:        {"completed": true, "cancelled": true},
	MachineProcessorExecution: {"completed": true, "failed": true, "skipped": true},
}

// Check validates a (from, to) transition, returning a
// StateTransitionRejectedError when the pair is not in the allow-list.
func Check(machine Machine, from, to string) error {
	if allowed[transition{machine, from, to}] {
		return nil
	}
	return &core.StateTransitionRejectedError{Machine: string(machine), From: from, To: to}
}

// IsTerminal reports whether `state` accepts no further transitions for the
// named machine. DocumentJob's "failed" is deliberately NOT terminal here:
// failed -> queued remains legal while retries are outstanding, and
// failed -> failed remains legal once they're exhausted.
func IsTerminal(machine Machine, state string) bool {
	return terminalStates[machine][state]
}
