package enums

import "testing"

func TestSaleStatusTransitions(t *testing.T) {
	cases := []struct {
		from    SaleStatus
		to      SaleStatus
		allowed bool
	}{
		{SaleStatusPending, SaleStatusProcessing, true},
		{SaleStatusPending, SaleStatusCancelled, true},
		{SaleStatusPending, SaleStatusCompleted, false},
		{SaleStatusProcessing, SaleStatusCompleted, true},
		{SaleStatusProcessing, SaleStatusFailed, true},
		{SaleStatusProcessing, SaleStatusCancelled, false},
		{SaleStatusFailed, SaleStatusCancelled, true},
		{SaleStatusFailed, SaleStatusPending, false},
		{SaleStatusCompleted, SaleStatusCancelled, false},
		{SaleStatusCancelled, SaleStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestParseSaleStatus(t *testing.T) {
	status, err := ParseSaleStatus("pending")
	if err != nil {
		t.Fatalf("parse pending: %v", err)
	}
	if status != SaleStatusPending {
		t.Fatalf("unexpected status: %s", status)
	}

	if _, err := ParseSaleStatus("shipped"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestSaleStatusIsTerminal(t *testing.T) {
	for status, terminal := range map[SaleStatus]bool{
		SaleStatusPending:    false,
		SaleStatusProcessing: false,
		SaleStatusFailed:     false,
		SaleStatusCompleted:  true,
		SaleStatusCancelled:  true,
	} {
		if got := status.IsTerminal(); got != terminal {
			t.Errorf("%s: IsTerminal got %v, want %v", status, got, terminal)
		}
	}
}
