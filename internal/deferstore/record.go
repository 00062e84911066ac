package deferstore

import (
	"time"

	"nathanbeddoewebdev/carbonq/internal/domain"
)

// Status is the lifecycle state of a persisted deferred request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Record is a deferred request plus its persisted lifecycle.
type Record struct {
	Request domain.DeferredRequest

	Status Status

	// Detail carries the failure message or the final decision reason.
	Detail string

	UpdatedAt time.Time
}
