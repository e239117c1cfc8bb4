package booking

import "errors"

var (
	// ErrSlotInvalid means the requested (date, time) is not in the freshly
	// recomputed candidate set: a stale client cache, or a tuple outside the
	// doctor's work window or the policy bounds.
	ErrSlotInvalid = errors.New("requested slot is not available")

	// ErrSlotConflict means another reservation won the race for the tuple.
	ErrSlotConflict = errors.New("slot was booked by someone else")

	// ErrPolicyViolation means the operation falls outside a policy bound
	// (minAdvanceHours, maxAdvanceDays, same-day rule, cancel deadline).
	ErrPolicyViolation = errors.New("operation violates clinic booking policy")

	// ErrInvalidTransition means the requested lifecycle change is illegal.
	ErrInvalidTransition = errors.New("invalid appointment status transition")

	// ErrMaintenanceMode means booking is administratively disabled.
	ErrMaintenanceMode = errors.New("booking is disabled for maintenance")
)
