package models

// PaymentStatus tracks where a service request or order is in its payment lifecycle
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsSettled reports whether a new checkout must be refused.
// Rows created before the status column existed carry an empty status and count as pending.
func (s PaymentStatus) IsSettled() bool {
	return s != "" && s != PaymentStatusPending
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Rewriting the current status is allowed so repeated webhook deliveries stay harmless.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == "" {
		s = PaymentStatusPending
	}
	if s == next {
		return true
	}

	switch s {
	case PaymentStatusPending:
		return next == PaymentStatusPaid || next == PaymentStatusRefunded
	case PaymentStatusPaid:
		return next == PaymentStatusRefunded
	default:
		return false
	}
}
