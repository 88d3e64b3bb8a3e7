package appointment

import "fmt"

// IsTerminal reports whether no transition can leave s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusExpired, StatusCompleted:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	return s == StatusActive || s.IsTerminal()
}

// CanTransition checks the lifecycle guard for moving an appointment from
// `from` to `to`. Only active appointments move, and only into a terminal
// state. Rescheduling (active to active) goes through CanReschedule.
func CanTransition(from, to Status) error {
	if !to.IsTerminal() {
		return fmt.Errorf("%w: %q is not a terminal status", ErrInvalidTransition, to)
	}
	if from != StatusActive {
		return fmt.Errorf("%w: appointment is %s", ErrInvalidTransition, from)
	}
	return nil
}

func CanReschedule(current Status) error {
	if current != StatusActive {
		return fmt.Errorf("%w: appointment is %s", ErrInvalidTransition, current)
	}
	return nil
}

func eventFor(to Status) string {
	switch to {
	case StatusCancelled:
		return EventAppointmentCancelled
	case StatusCompleted:
		return EventAppointmentCompleted
	case StatusExpired:
		return EventAppointmentExpired
	}
	return ""
}
