package billing

import "time"

// EventTypeCheckoutSessionCompleted is the processor event that marks a paid checkout.
const EventTypeCheckoutSessionCompleted = "checkout.session.completed"

// EventKind is the part of an event type the reconciler acts on.
type EventKind int

const (
	EventIgnored EventKind = iota
	EventCheckoutCompleted
)

func (k EventKind) String() string {
	switch k {
	case EventCheckoutCompleted:
		return "checkout_completed"
	default:
		return "ignored"
	}
}

// CheckoutSessionRef holds the ids copied out of a completed checkout session.
type CheckoutSessionRef struct {
	ID                string
	ClientReferenceID string
	CustomerID        string
	SubscriptionID    string
}

// VerifiedEvent is a billing event whose signature has been checked.
type VerifiedEvent struct {
	ID      string
	Type    string
	Kind    EventKind
	Created time.Time
	Session CheckoutSessionRef
}

// ReconciliationResult reports what Reconcile did with an event.
type ReconciliationResult struct {
	EventID string
	Ignored bool
	StoreID string
	Plan    string
	Status  string
}

// CheckoutInput is what the dashboard supplies to start a checkout.
type CheckoutInput struct {
	StoreID string
	Email   string
	PriceID string
}

// CheckoutSession is a created hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}
