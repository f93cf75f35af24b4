// Package models holds the GORM row types for the transfer queue, integration
// configuration and audit tables, with conversions to and from domain aggregates.
//
// Structure:
// - base.go: shared columns (AggregateModel, CircuitBreakerColumns)
// - transfer.go: transfer queue entries
// - integration.go: integration and webhook configurations
// - audit.go: configuration audit log
//
// Index definitions mirror migrations/*.sql so AutoMigrate in tests builds the
// same constraints, including the partial unique index that deduplicates
// active queue entries.
package models
