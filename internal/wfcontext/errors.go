package wfcontext

import "fmt"

// BudgetExceededError is raised by Context.AddCost when the running total
// strictly exceeds the configured limit. The offending cost has already
// been recorded before this error is constructed, so the next checkpoint
// still shows it.
type BudgetExceededError struct {
	Message     string
	CurrentCost float64
	BudgetLimit float64
}

func (e *BudgetExceededError) Error() string { return e.Message }

func newBudgetExceeded(current, limit float64) *BudgetExceededError {
	return &BudgetExceededError{
		Message:     fmt.Sprintf("Budget exceeded: $%.2f > $%.2f", current, limit),
		CurrentCost: current,
		BudgetLimit: limit,
	}
}
