// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
//   - base.go: AggregateModel (id, version column for optimistic locking, timestamps)
//   - account.go: financial acts and act allocations
//   - insurance.go: insurance claims and their invoice items
//
// The SQL schema itself lives in the top-level migrations directory; the gorm
// tags here only need to be enough for AutoMigrate in tests.
package models
