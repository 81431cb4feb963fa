package models

import "fmt"

// Status is the lifecycle state of an exchange transaction
type Status string

const (
	StatusRequested Status = "requested"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
	StatusPickedUp  Status = "picked_up"
	StatusReturned  Status = "returned"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Operation is an actor-initiated transition
type Operation string

const (
	OpPickUp   Operation = "pickup"
	OpReturn   Operation = "return"
	OpComplete Operation = "complete"
	OpCancel   Operation = "cancel"
)

// Role is the actor's side of a transaction
type Role int

const (
	RoleNone Role = iota
	RoleBorrower
	RoleLender
)

// RoleOf returns the role userID plays in t.
func RoleOf(t *Transaction, userID string) Role {
	switch userID {
	case t.LenderID:
		return RoleLender
	case t.BorrowerID:
		return RoleBorrower
	}
	return RoleNone
}

// TransitionErrorKind distinguishes authorization from state failures
type TransitionErrorKind int

const (
	TransitionUnauthorized TransitionErrorKind = iota + 1
	TransitionInvalidState
)

// TransitionError is returned by NextStatus
type TransitionError struct {
	Kind    TransitionErrorKind
	Message string
}

func (e *TransitionError) Error() string {
	return e.Message
}

type transitionRule struct {
	from       Status
	lenderOnly bool
	denied     string
	wrongState string
}

var transitionRules = map[Operation]transitionRule{
	OpPickUp: {
		from:       StatusConfirmed,
		wrongState: "Transaction must be confirmed before pickup",
	},
	OpReturn: {
		from:       StatusPickedUp,
		lenderOnly: true,
		denied:     "Only the lender can mark items as returned",
		wrongState: "Transaction must be picked up before return",
	},
	// Nothing in this service produces StatusReturned; the guard is kept for
	// rows written by other tooling.
	OpComplete: {
		from:       StatusReturned,
		lenderOnly: true,
		denied:     "Only the lender can mark transactions as complete",
		wrongState: "Transaction must be returned before completion",
	},
	OpCancel: {
		from:       StatusConfirmed,
		wrongState: "Can only cancel before pickup",
	},
}

// NextStatus is the single transition function of the exchange lifecycle.
// Authorization is checked before the current status.
func NextStatus(current Status, op Operation, role Role, policy CategoryPolicy) (Status, error) {
	rule, ok := transitionRules[op]
	if !ok {
		return current, fmt.Errorf("unknown operation %q", op)
	}

	if rule.lenderOnly && role != RoleLender {
		return current, &TransitionError{Kind: TransitionUnauthorized, Message: rule.denied}
	}
	if role == RoleNone {
		return current, &TransitionError{Kind: TransitionUnauthorized, Message: "Unauthorized"}
	}
	if current != rule.from {
		return current, &TransitionError{Kind: TransitionInvalidState, Message: rule.wrongState}
	}

	switch op {
	case OpPickUp:
		if policy.Returnable {
			return StatusPickedUp, nil
		}
		return StatusCompleted, nil
	case OpCancel:
		return StatusRejected, nil
	default:
		return StatusCompleted, nil
	}
}
