package billing

import (
	"errors"
	"fmt"
)

// ReconciliationErrorKind classifies why a verified event could not be applied.
type ReconciliationErrorKind int

const (
	UnknownPlan ReconciliationErrorKind = iota + 1
	UpstreamUnavailable
	StorageFailure
	MissingStoreReference
)

func (k ReconciliationErrorKind) String() string {
	switch k {
	case UnknownPlan:
		return "unknown_plan"
	case UpstreamUnavailable:
		return "upstream_unavailable"
	case StorageFailure:
		return "storage_failure"
	case MissingStoreReference:
		return "missing_store_reference"
	default:
		return "unknown"
	}
}

var (
	ErrUnknownPlan           = errors.New("unknown plan")
	ErrUpstreamUnavailable   = errors.New("payment processor unavailable")
	ErrStorageFailure        = errors.New("subscription storage failure")
	ErrMissingStoreReference = errors.New("event carries no store reference")

	// ErrUnknownPrice is returned when a checkout is requested for a price outside the catalog.
	ErrUnknownPrice = errors.New("price is not in the plan catalog")
	// ErrSubscriptionNotFound is returned by repositories when no record exists for a store.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// ReconciliationError is returned by Service.Reconcile. The webhook layer answers
// any of them with a non-2xx status so the processor redelivers.
type ReconciliationError struct {
	Kind    ReconciliationErrorKind
	EventID string
	Err     error
}

func (e *ReconciliationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reconcile event %s: %s: %v", e.EventID, e.Kind, e.Err)
	}
	return fmt.Sprintf("reconcile event %s: %s", e.EventID, e.Kind)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}

func (e *ReconciliationError) Is(target error) bool {
	switch target {
	case ErrUnknownPlan:
		return e.Kind == UnknownPlan
	case ErrUpstreamUnavailable:
		return e.Kind == UpstreamUnavailable
	case ErrStorageFailure:
		return e.Kind == StorageFailure
	case ErrMissingStoreReference:
		return e.Kind == MissingStoreReference
	default:
		return false
	}
}
