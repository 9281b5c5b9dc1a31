package enums

import "fmt"

// SaleStatus tracks the lifecycle of a sale.
type SaleStatus string

const (
	SaleStatusPending    SaleStatus = "pending"
	SaleStatusProcessing SaleStatus = "processing"
	SaleStatusCompleted  SaleStatus = "completed"
	SaleStatusFailed     SaleStatus = "failed"
	SaleStatusCancelled  SaleStatus = "cancelled"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusPending,
	SaleStatusProcessing,
	SaleStatusCompleted,
	SaleStatusFailed,
	SaleStatusCancelled,
}

var saleTransitions = map[SaleStatus][]SaleStatus{
	SaleStatusPending:    {SaleStatusProcessing, SaleStatusCancelled},
	SaleStatusProcessing: {SaleStatusCompleted, SaleStatusFailed},
	SaleStatusFailed:     {SaleStatusCancelled},
}

// String implements fmt.Stringer.
func (s SaleStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SaleStatus.
func (s SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s SaleStatus) IsTerminal() bool {
	return len(saleTransitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition.
func (s SaleStatus) CanTransitionTo(next SaleStatus) bool {
	for _, candidate := range saleTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseSaleStatus converts raw input into a SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	for _, candidate := range validSaleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}
