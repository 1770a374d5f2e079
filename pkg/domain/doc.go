/*
Package domain contains the core types of the vmtune reconciliation engine.

It defines what a reconciliation is about (Fragments and their Parts), how far it got
(Phase), how it ended (Outcome and Result) and why it failed (Error and Code). This
package is kept free of I/O so that adapters, the planner and the runtime can share
it without import cycles.

# Key Entities

  - Fragment: A resolved target fragment (selector, desired content, merge policy).
  - Status: What the matcher found (Satisfied, Absent, PartiallyPresent, Conflicting).
  - Phase: The transaction state machine (Idle .. Committed, RolledBack, RollbackFailed).
  - Backup: The immutable raw-text snapshot taken before the first mutation.
  - Result: The caller-facing summary of a reconciliation attempt.
*/
package domain
