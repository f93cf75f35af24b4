// Package transfer contains the Transfer Queue bounded context.
// Detected entity changes are queued here for mandatory human review before
// they are pushed to the accounting platform.
//
// Key concepts:
//   - QueueEntry: aggregate root carrying the approval workflow state machine
//     PENDING_REVIEW -> APPROVED -> TRANSFERRED, with REJECTED and FAILED exits
//   - Snapshot: sealed variant over Contact, Company, Invoice and LineItem
//     payloads captured at enqueue time
//   - ChangeDetector / EntityDataProvider: ports to the change-detection engine
//     and the entity repositories that live outside this service
//
// At most one entry per (tenant, entity type, entity id) may be PENDING_REVIEW
// or APPROVED at a time. The store enforces this with a partial unique index.
package transfer
