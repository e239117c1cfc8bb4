package booking

import "github.com/digihealth/clinic-scheduler/internal/policy"

// InitialStatus decides what state a fresh reservation starts in.
func InitialStatus(pol policy.Policy) Status {
	if pol.AutoConfirmAppointments {
		return StatusConfirmed
	}
	return StatusPending
}

// CheckTransition validates a lifecycle change. CANCELLED and COMPLETED are
// terminal; confirming and completing are staff actions. The cancellation
// deadline is a policy concern handled by the service, not here.
func CheckTransition(from, to Status, actor Actor) error {
	switch {
	case from == StatusPending && to == StatusConfirmed:
		if actor != ActorStaff {
			return ErrInvalidTransition
		}
		return nil
	case from == StatusPending && to == StatusCancelled:
		return nil
	case from == StatusConfirmed && to == StatusCancelled:
		return nil
	case from == StatusConfirmed && to == StatusCompleted:
		if actor != ActorStaff {
			return ErrInvalidTransition
		}
		return nil
	}
	return ErrInvalidTransition
}
