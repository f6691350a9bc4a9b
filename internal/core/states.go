package core

import (
	"errors"
	"fmt"
)

// ErrUnknownAction is returned for action names outside the transition
// table.
var ErrUnknownAction = errors.New("unknown expense action")

const (
	StateDraft     ExpenseState = "draft"
	StateSubmitted ExpenseState = "submitted"
	StateApproved  ExpenseState = "approved"
	StateRejected  ExpenseState = "rejected"
	StatePaid      ExpenseState = "paid"
)

const (
	BudgetDraft  BudgetState = "draft"
	BudgetActive BudgetState = "active"
	BudgetClosed BudgetState = "closed"
)

type (
	ExpenseState string
	BudgetState  string

	// Transition is one expense state-machine action. The table below is
	// deliberately permissive: any action may fire from any state, which
	// matches how approvals are actually used here (an approver can
	// reset or re-approve at will). Note is the audit text recorded on
	// the expense when the action fires.
	Transition struct {
		Action string
		To     ExpenseState
		Note   string
	}
)

const (
	ActionSubmit       = "submit"
	ActionApprove      = "approve"
	ActionReject       = "reject"
	ActionMarkPaid     = "mark_paid"
	ActionResetToDraft = "reset_to_draft"
)

var transitions = map[string]Transition{
	ActionSubmit:       {Action: ActionSubmit, To: StateSubmitted, Note: "Expense submitted for approval"},
	ActionApprove:      {Action: ActionApprove, To: StateApproved, Note: "Expense approved"},
	ActionReject:       {Action: ActionReject, To: StateRejected, Note: "Expense rejected"},
	ActionMarkPaid:     {Action: ActionMarkPaid, To: StatePaid, Note: "Expense marked as paid"},
	ActionResetToDraft: {Action: ActionResetToDraft, To: StateDraft, Note: "Expense reset to draft"},
}

// LookupTransition resolves an action name to its transition.
func LookupTransition(action string) (Transition, error) {
	t, ok := transitions[action]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return t, nil
}

// CountsTowardSpent reports whether an expense in this state contributes
// to its budget's spent amount.
func (s ExpenseState) CountsTowardSpent() bool {
	return s == StateApproved || s == StatePaid
}

func (s ExpenseState) Valid() bool {
	switch s {
	case StateDraft, StateSubmitted, StateApproved, StateRejected, StatePaid:
		return true
	}
	return false
}

func (s BudgetState) Valid() bool {
	switch s {
	case BudgetDraft, BudgetActive, BudgetClosed:
		return true
	}
	return false
}
