package orders

// Status is the lifecycle state shared by sales and purchase orders.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusReadyToShip    Status = "ready_to_ship"
	StatusShipping       Status = "shipping"
	StatusPaymentPending Status = "payment_pending"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

// transitions lists the allowed targets per source state. Terminal states
// have no entry.
var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusReadyToShip, StatusCancelled},
	StatusReadyToShip:    {StatusShipping, StatusCancelled},
	StatusShipping:       {StatusPaymentPending, StatusCancelled},
	StatusPaymentPending: {StatusCompleted, StatusCancelled},
}

// AllStatuses returns every state in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusConfirmed,
		StatusReadyToShip,
		StatusShipping,
		StatusPaymentPending,
		StatusCompleted,
		StatusCancelled,
	}
}

// IsValid reports whether s is a known state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusReadyToShip, StatusShipping,
		StatusPaymentPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// LinesEditable reports whether order lines may still change in state s.
func (s Status) LinesEditable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// AllowedTransitions returns a copy of the targets reachable from s.
func AllowedTransitions(from Status) []Status {
	targets := transitions[from]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}

// IsValidTransition reports whether moving from current to requested is
// permitted. Same-state requests are never valid.
func IsValidTransition(current, requested Status) bool {
	for _, target := range transitions[current] {
		if target == requested {
			return true
		}
	}
	return false
}

// Action is an externally triggered workflow command.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionPrepare  Action = "prepare"
	ActionDispatch Action = "dispatch"
	// ActionShip marks goods as shipped. The order then waits for payment,
	// so the resulting state is payment_pending.
	ActionShip     Action = "ship"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
)

var actionTargets = map[Action]Status{
	ActionConfirm:  StatusConfirmed,
	ActionPrepare:  StatusReadyToShip,
	ActionDispatch: StatusShipping,
	ActionShip:     StatusPaymentPending,
	ActionComplete: StatusCompleted,
	ActionCancel:   StatusCancelled,
}

// TargetFor resolves the status an action leads to.
func TargetFor(action Action) (Status, bool) {
	target, ok := actionTargets[action]
	return target, ok
}
