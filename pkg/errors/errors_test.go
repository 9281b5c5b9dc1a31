package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeDependency, cause, "dependency failed")

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %q", err.Code())
	}
}

func TestAsFindsTypedErrorInChain(t *testing.T) {
	inner := New(CodeInsufficientStock, "only 2 left")
	outer := fmt.Errorf("finalize sale: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatal("expected typed error in chain")
	}
	if typed.Code() != CodeInsufficientStock {
		t.Fatalf("unexpected code %q", typed.Code())
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"insufficient stock", New(CodeInsufficientStock, "short"), true},
		{"lock timeout", New(CodeLockTimeout, "busy"), true},
		{"dependency", New(CodeDependency, "redis down"), true},
		{"state conflict", New(CodeStateConflict, "already completed"), false},
		{"not found", New(CodeNotFound, "missing"), false},
		{"untyped", stdErrors.New("plain"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	if meta != metadataByCode[CodeInternal] {
		t.Fatalf("expected internal metadata fallback, got %+v", meta)
	}
}
