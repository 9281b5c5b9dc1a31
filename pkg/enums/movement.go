package enums

import "fmt"

// MovementDirection distinguishes stock entering and leaving inventory.
type MovementDirection string

const (
	MovementDirectionEntry MovementDirection = "entry"
	MovementDirectionExit  MovementDirection = "exit"
)

var validMovementDirections = []MovementDirection{
	MovementDirectionEntry,
	MovementDirectionExit,
}

func (m MovementDirection) String() string {
	return string(m)
}

func (m MovementDirection) IsValid() bool {
	for _, candidate := range validMovementDirections {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementDirection converts raw input into a MovementDirection.
func ParseMovementDirection(value string) (MovementDirection, error) {
	for _, candidate := range validMovementDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement direction %q", value)
}

// MovementReference records what triggered a stock movement.
type MovementReference string

const (
	MovementReferenceSale       MovementReference = "sale"
	MovementReferenceAdjustment MovementReference = "adjustment"
	MovementReferenceManual     MovementReference = "manual"
)

var validMovementReferences = []MovementReference{
	MovementReferenceSale,
	MovementReferenceAdjustment,
	MovementReferenceManual,
}

func (m MovementReference) String() string {
	return string(m)
}

func (m MovementReference) IsValid() bool {
	for _, candidate := range validMovementReferences {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementReference converts raw input into a MovementReference.
func ParseMovementReference(value string) (MovementReference, error) {
	for _, candidate := range validMovementReferences {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement reference %q", value)
}
